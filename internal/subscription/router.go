package subscription

import (
	"sync"

	"go.uber.org/zap"

	"haventory/internal/apperr"
	"haventory/internal/model"
)

type Topic string

const (
	TopicItems     Topic = "items"
	TopicLocations Topic = "locations"
	TopicStats     Topic = "stats"
)

// Scope limits a subscription to a location (and optionally its subtree).
type Scope struct {
	LocationID     string
	IncludeSubtree bool
}

type Subscription struct {
	ID    string
	Topic Topic
	Scope *Scope
}

// Event — полезная нагрузка push-сообщения.
type Event struct {
	Topic    Topic           `json:"topic"`
	Action   string          `json:"action"`
	TS       string          `json:"ts"`
	Item     *model.Item     `json:"item,omitempty"`
	Location *model.Location `json:"location,omitempty"`
	Counts   *model.Counts   `json:"counts,omitempty"`

	// prior state for moves: a subscriber scoped to the old place still sees the item leave
	prevItemPath     *model.LocationPath
	PrevItemLocation *string `json:"-"`
	prevLocPath      *model.LocationPath
}

// WithPreviousItem attaches the pre-mutation placement of an item.
func (e Event) WithPreviousItem(prev model.Item) Event {
	p := prev.LocationPath.Clone()
	e.prevItemPath = &p
	e.PrevItemLocation = prev.LocationID
	return e
}

// WithPreviousLocation attaches the pre-mutation path of a location.
func (e Event) WithPreviousLocation(prev model.Location) Event {
	p := prev.Path.Clone()
	e.prevLocPath = &p
	return e
}

// Conn is one connected client able to receive events.
type Conn interface {
	ID() string
	Send(subscriptionID string, ev Event) error
}

type connSubs struct {
	conn Conn
	subs map[string]Subscription
}

// Router keeps per-connection subscriptions and fans events out to matching ones.
type Router struct {
	mu     sync.RWMutex
	conns  map[string]*connSubs
	logger *zap.SugaredLogger
}

func NewRouter(logger *zap.SugaredLogger) *Router {
	return &Router{conns: map[string]*connSubs{}, logger: logger}
}

// Subscribe registers sub for c. Re-using an id replaces the previous subscription.
func (r *Router) Subscribe(c Conn, sub Subscription) error {
	switch sub.Topic {
	case TopicItems, TopicLocations, TopicStats:
	default:
		return apperr.Validation("topic must be one of: items, locations, stats")
	}
	if sub.ID == "" {
		return apperr.Validation("subscription id is required")
	}
	if sub.Scope != nil && sub.Scope.LocationID == "" {
		sub.Scope = nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	cs, ok := r.conns[c.ID()]
	if !ok {
		cs = &connSubs{conn: c, subs: map[string]Subscription{}}
		r.conns[c.ID()] = cs
	}
	cs.subs[sub.ID] = sub
	r.logger.Debugw("subscribed", "conn", c.ID(), "subscription", sub.ID, "topic", sub.Topic)
	return nil
}

// Unsubscribe is idempotent; it reports whether something was removed.
func (r *Router) Unsubscribe(connID, subID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cs, ok := r.conns[connID]
	if !ok {
		return false
	}
	_, removed := cs.subs[subID]
	delete(cs.subs, subID)
	if len(cs.subs) == 0 {
		delete(r.conns, connID)
	}
	return removed
}

// Drop removes every subscription of a closed connection.
func (r *Router) Drop(connID string) {
	r.mu.Lock()
	delete(r.conns, connID)
	r.mu.Unlock()
}

// Subscriptions returns the subscriptions of one connection.
func (r *Router) Subscriptions(connID string) []Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cs, ok := r.conns[connID]
	if !ok {
		return nil
	}
	out := make([]Subscription, 0, len(cs.subs))
	for _, s := range cs.subs {
		out = append(out, s)
	}
	return out
}

// Len returns the total number of active subscriptions.
func (r *Router) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, cs := range r.conns {
		n += len(cs.subs)
	}
	return n
}

type delivery struct {
	conn  Conn
	subID string
}

// Publish delivers ev to every matching subscription and returns the delivery count.
// Sends happen outside the lock; a failing connection does not stop the fan-out.
func (r *Router) Publish(ev Event) int {
	r.mu.RLock()
	var targets []delivery
	for _, cs := range r.conns {
		for id, sub := range cs.subs {
			if Matches(sub, ev) {
				targets = append(targets, delivery{conn: cs.conn, subID: id})
			}
		}
	}
	r.mu.RUnlock()

	sent := 0
	for _, d := range targets {
		if err := d.conn.Send(d.subID, ev); err != nil {
			r.logger.Debugw("event delivery failed", "conn", d.conn.ID(), "subscription", d.subID, "error", err)
			continue
		}
		sent++
	}
	return sent
}

// Matches reports whether ev falls within the topic and scope of sub.
func Matches(sub Subscription, ev Event) bool {
	if sub.Topic != ev.Topic {
		return false
	}
	if sub.Scope == nil || ev.Topic == TopicStats {
		return true
	}
	sc := sub.Scope
	switch ev.Topic {
	case TopicItems:
		if ev.Item == nil {
			return true
		}
		if itemInScope(sc, ev.Item.LocationID, ev.Item.LocationPath) {
			return true
		}
		return ev.prevItemPath != nil && itemInScope(sc, ev.PrevItemLocation, *ev.prevItemPath)
	case TopicLocations:
		if ev.Location == nil {
			return true
		}
		if locationInScope(sc, ev.Location.ID, ev.Location.Path) {
			return true
		}
		return ev.prevLocPath != nil && locationInScope(sc, ev.Location.ID, *ev.prevLocPath)
	}
	return false
}

func itemInScope(sc *Scope, locID *string, path model.LocationPath) bool {
	if sc.IncludeSubtree {
		return path.Contains(sc.LocationID)
	}
	return locID != nil && *locID == sc.LocationID
}

func locationInScope(sc *Scope, id string, path model.LocationPath) bool {
	if id == sc.LocationID {
		return true
	}
	return sc.IncludeSubtree && path.Contains(sc.LocationID)
}
