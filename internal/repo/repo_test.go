package repo

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"haventory/internal/model"
)

// fakeClock — часы, которые двигаются только вручную
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T) (*Store, *fakeClock) {
	t.Helper()
	clk := newFakeClock()
	return NewStore(WithClock(clk.Now), WithCursorSecret("test-secret")), clk
}

func ptr[T any](v T) *T { return &v }

func mustItem(t *testing.T, s *Store, in model.ItemCreate) model.Item {
	t.Helper()
	it, err := s.CreateItem(in)
	require.NoError(t, err)
	return it
}

func mustLocation(t *testing.T, s *Store, name string, parent *string) model.Location {
	t.Helper()
	l, err := s.CreateLocation(model.LocationCreate{Name: name, ParentID: parent})
	require.NoError(t, err)
	return l
}
