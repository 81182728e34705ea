package subscription

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"haventory/internal/apperr"
	"haventory/internal/model"
)

// recConn складывает полученные события
type recConn struct {
	id   string
	mu   sync.Mutex
	got  []string
	fail bool
}

func (c *recConn) ID() string { return c.id }

func (c *recConn) Send(subID string, ev Event) error {
	if c.fail {
		return errors.New("closed")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, subID+":"+ev.Action)
	return nil
}

func (c *recConn) received() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.got...)
}

var _ Conn = (*recConn)(nil)

func itemAt(path ...string) *model.Item {
	it := &model.Item{ID: "item", LocationPath: model.LocationPath{IDPath: path}}
	if len(path) > 0 {
		leaf := path[len(path)-1]
		it.LocationID = &leaf
	}
	return it
}

func TestMatches_ItemScopes(t *testing.T) {
	ev := Event{Topic: TopicItems, Action: "updated", Item: itemAt("house", "kitchen", "drawer")}

	assert.True(t, Matches(Subscription{Topic: TopicItems}, ev))
	assert.False(t, Matches(Subscription{Topic: TopicLocations}, ev))
	assert.True(t, Matches(Subscription{Topic: TopicItems, Scope: &Scope{LocationID: "kitchen", IncludeSubtree: true}}, ev))
	assert.False(t, Matches(Subscription{Topic: TopicItems, Scope: &Scope{LocationID: "kitchen"}}, ev))
	assert.True(t, Matches(Subscription{Topic: TopicItems, Scope: &Scope{LocationID: "drawer"}}, ev))
	assert.False(t, Matches(Subscription{Topic: TopicItems, Scope: &Scope{LocationID: "garage", IncludeSubtree: true}}, ev))
}

func TestMatches_ItemMovedOutOfScope(t *testing.T) {
	prev := itemAt("garage")
	ev := Event{Topic: TopicItems, Action: "moved", Item: itemAt("house")}.WithPreviousItem(*prev)
	assert.True(t, Matches(Subscription{Topic: TopicItems, Scope: &Scope{LocationID: "garage", IncludeSubtree: true}}, ev))
	assert.True(t, Matches(Subscription{Topic: TopicItems, Scope: &Scope{LocationID: "garage"}}, ev))
}

func TestMatches_LocationScopes(t *testing.T) {
	loc := &model.Location{ID: "kitchen", Path: model.LocationPath{IDPath: []string{"house", "kitchen"}}}
	ev := Event{Topic: TopicLocations, Action: "renamed", Location: loc}

	assert.True(t, Matches(Subscription{Topic: TopicLocations, Scope: &Scope{LocationID: "house", IncludeSubtree: true}}, ev))
	assert.False(t, Matches(Subscription{Topic: TopicLocations, Scope: &Scope{LocationID: "house"}}, ev))
	assert.True(t, Matches(Subscription{Topic: TopicLocations, Scope: &Scope{LocationID: "kitchen"}}, ev))
}

func TestMatches_StatsIgnoresScope(t *testing.T) {
	ev := Event{Topic: TopicStats, Action: "counts", Counts: &model.Counts{ItemsTotal: 1}}
	assert.True(t, Matches(Subscription{Topic: TopicStats, Scope: &Scope{LocationID: "x"}}, ev))
}

func TestRouter_SubscribePublishUnsubscribe(t *testing.T) {
	r := NewRouter(zap.NewNop().Sugar())
	a := &recConn{id: "a"}
	b := &recConn{id: "b"}

	require.NoError(t, r.Subscribe(a, Subscription{ID: "1", Topic: TopicItems}))
	require.NoError(t, r.Subscribe(a, Subscription{ID: "2", Topic: TopicStats}))
	require.NoError(t, r.Subscribe(b, Subscription{ID: "1", Topic: TopicItems, Scope: &Scope{LocationID: "elsewhere", IncludeSubtree: true}}))
	assert.Equal(t, 3, r.Len())

	n := r.Publish(Event{Topic: TopicItems, Action: "created", Item: itemAt("house")})
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"1:created"}, a.received())
	assert.Empty(t, b.received())

	assert.True(t, r.Unsubscribe("a", "1"))
	assert.False(t, r.Unsubscribe("a", "1"), "second unsubscribe is a no-op")
	assert.False(t, r.Unsubscribe("nobody", "1"))
	assert.Equal(t, 0, r.Publish(Event{Topic: TopicItems, Action: "updated", Item: itemAt()}))
}

func TestRouter_SubscribeValidation(t *testing.T) {
	r := NewRouter(zap.NewNop().Sugar())
	err := r.Subscribe(&recConn{id: "a"}, Subscription{ID: "1", Topic: "weather"})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	err = r.Subscribe(&recConn{id: "a"}, Subscription{Topic: TopicItems})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	assert.Equal(t, 0, r.Len())
}

func TestRouter_DropRemovesAllOfConnection(t *testing.T) {
	r := NewRouter(zap.NewNop().Sugar())
	a := &recConn{id: "a"}
	b := &recConn{id: "b"}
	for _, id := range []string{"1", "2", "3"} {
		require.NoError(t, r.Subscribe(a, Subscription{ID: id, Topic: TopicLocations}))
	}
	require.NoError(t, r.Subscribe(b, Subscription{ID: "1", Topic: TopicLocations}))

	r.Drop("a")
	assert.Empty(t, r.Subscriptions("a"))
	assert.Equal(t, 1, r.Len())
	r.Drop("a")
}

func TestRouter_FailingConnDoesNotBlockOthers(t *testing.T) {
	r := NewRouter(zap.NewNop().Sugar())
	bad := &recConn{id: "bad", fail: true}
	good := &recConn{id: "good"}
	require.NoError(t, r.Subscribe(bad, Subscription{ID: "1", Topic: TopicStats}))
	require.NoError(t, r.Subscribe(good, Subscription{ID: "1", Topic: TopicStats}))

	assert.Equal(t, 1, r.Publish(Event{Topic: TopicStats, Action: "counts", Counts: &model.Counts{}}))
	assert.Equal(t, []string{"1:counts"}, good.received())
}
