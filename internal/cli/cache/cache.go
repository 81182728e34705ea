// Package cache keeps a local mirror of the item list in sync with the server.
//
// All state changes run on one event-loop goroutine: optimistic patches, server
// replies and push events are applied in arrival order. Network calls are made from
// the caller's goroutine and their outcome is queued back onto the loop.
package cache

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"haventory/internal/apperr"
	"haventory/internal/cli/api"
	"haventory/internal/model"
	"haventory/internal/protocol"
)

// PrefetchThreshold — доля прокрутки, после которой подгружается следующая страница.
const PrefetchThreshold = 0.8

const defaultPageSize = 50

// Channel is the remote side of the cache. *api.Client implements it.
type Channel interface {
	Call(ctx context.Context, op protocol.Op, payload any, out any) error
	Subscribe(ctx context.Context, p protocol.Subscribe) (string, error)
	Unsubscribe(ctx context.Context, subID string) error
	Events() <-chan api.Event
}

var _ Channel = (*api.Client)(nil)

// ErrorEntry is a failed write kept for the user to resolve.
type ErrorEntry struct {
	Code    apperr.Code
	Message string
	ItemID  string
	Op      protocol.Op
	// Changes is the change the user intended, as it was sent.
	Changes any

	replay func(ctx context.Context) error
}

// State is a snapshot of the cache.
type State struct {
	Items      []model.Item
	Filter     model.ItemFilter
	Sort       model.Sort
	NextCursor *string
	Counts     *model.Counts
	Errors     []ErrorEntry
	Pending    int
	Loading    bool
}

func (s State) clone() State {
	out := s
	out.Items = make([]model.Item, len(s.Items))
	for i, it := range s.Items {
		out.Items[i] = it.Clone()
	}
	out.Errors = slices.Clone(s.Errors)
	if s.Counts != nil {
		c := *s.Counts
		out.Counts = &c
	}
	return out
}

func (s *State) index(id string) int {
	return slices.IndexFunc(s.Items, func(it model.Item) bool { return it.ID == id })
}

// upsert replaces the item with the same id or puts a new one first.
// A copy older than the cached one is ignored: replies and events for one item
// can arrive out of version order.
func (s *State) upsert(it model.Item) {
	if i := s.index(it.ID); i >= 0 {
		if it.Version < s.Items[i].Version {
			return
		}
		s.Items[i] = it
		return
	}
	s.Items = slices.Insert(s.Items, 0, it)
}

// reconcile folds a server copy of an item into the list: kept when it matches the
// filter, dropped when it no longer does. Stale copies change nothing.
func (s *State) reconcile(it model.Item) {
	if i := s.index(it.ID); i >= 0 && it.Version < s.Items[i].Version {
		return
	}
	if s.inScope(it) {
		s.upsert(it.Clone())
		return
	}
	s.remove(it.ID)
}

func (s *State) remove(id string) (model.Item, int, bool) {
	i := s.index(id)
	if i < 0 {
		return model.Item{}, -1, false
	}
	it := s.Items[i]
	s.Items = slices.Delete(s.Items, i, i+1)
	return it, i, true
}

// inScope mirrors the location part of the active filter.
func (s *State) inScope(it model.Item) bool {
	loc := s.Filter.LocationID
	if loc == nil {
		return true
	}
	if s.Filter.IncludeSubtree {
		return it.LocationPath.Contains(*loc)
	}
	return it.LocationID != nil && *it.LocationID == *loc
}

type Option func(*Cache)

func WithPageSize(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// Cache — локальное зеркало списка предметов.
type Cache struct {
	ch       Channel
	logger   *zap.SugaredLogger
	pageSize int
	group    singleflight.Group

	tasks   chan func(*State)
	stopped chan struct{}

	// принадлежат циклу
	state State
	gen   int

	subMu    sync.Mutex
	itemsSub string
	statsSub string
}

// New starts the event loop; it runs until ctx is cancelled.
func New(ctx context.Context, ch Channel, logger *zap.SugaredLogger, opts ...Option) *Cache {
	c := &Cache{
		ch:       ch,
		logger:   logger,
		pageSize: defaultPageSize,
		tasks:    make(chan func(*State)),
		stopped:  make(chan struct{}),
		state:    State{Items: []model.Item{}},
	}
	for _, o := range opts {
		o(c)
	}
	go c.loop(ctx)
	return c
}

func (c *Cache) loop(ctx context.Context) {
	defer close(c.stopped)
	events := c.ch.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-c.tasks:
			task(&c.state)
		case ev, ok := <-events:
			if !ok {
				// канал закрыт: события больше не придут, очередь задач продолжает работать
				events = nil
				continue
			}
			c.merge(ev)
		}
	}
}

// do runs fn on the loop and waits for it.
func (c *Cache) do(fn func(*State)) {
	done := make(chan struct{})
	select {
	case c.tasks <- func(s *State) { fn(s); close(done) }:
	case <-c.stopped:
		return
	}
	select {
	case <-done:
	case <-c.stopped:
	}
}

// Snapshot returns a deep copy of the current state.
func (c *Cache) Snapshot() State {
	var out State
	c.do(func(s *State) { out = s.clone() })
	return out
}

// Items is a shortcut for Snapshot().Items.
func (c *Cache) Items() []model.Item { return c.Snapshot().Items }

// Done is closed when the event loop has stopped.
func (c *Cache) Done() <-chan struct{} { return c.stopped }
