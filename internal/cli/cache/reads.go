package cache

import (
	"context"
	"encoding/json"
	"errors"

	"haventory/internal/apperr"
	"haventory/internal/cli/api"
	"haventory/internal/model"
	"haventory/internal/protocol"
	"haventory/internal/subscription"
)

// page — результат item/list.
type page struct {
	Items      []model.Item `json:"items"`
	NextCursor *string      `json:"next_cursor"`
}

// list issues item/list; identical queries in flight share one request.
func (c *Cache) list(ctx context.Context, q protocol.ItemList) (page, error) {
	key, err := json.Marshal(q)
	if err != nil {
		return page{}, err
	}
	v, err, shared := c.group.Do("list:"+string(key), func() (any, error) {
		var p page
		err := c.ch.Call(ctx, protocol.OpItemList, q, &p)
		return p, err
	})
	if shared {
		c.logger.Debugw("list request shared", "cursor", q.Cursor)
	}
	if err != nil {
		return page{}, err
	}
	return v.(page), nil
}

func (c *Cache) get(ctx context.Context, id string) (model.Item, error) {
	v, err, _ := c.group.Do("get:"+id, func() (any, error) {
		var it model.Item
		err := c.ch.Call(ctx, protocol.OpItemGet, protocol.ItemRef{ItemID: id}, &it)
		return it, err
	})
	if err != nil {
		return model.Item{}, err
	}
	return v.(model.Item), nil
}

// Start subscribes and loads the first page with an empty filter.
func (c *Cache) Start(ctx context.Context) error {
	return c.SetFilter(ctx, model.ItemFilter{}, model.Sort{})
}

// SetFilter drops loaded items and the cursor, moves the item subscription to the
// filter's location scope and fetches the first page.
func (c *Cache) SetFilter(ctx context.Context, f model.ItemFilter, srt model.Sort) error {
	c.do(func(s *State) {
		s.Filter, s.Sort = f, srt
		s.Items = []model.Item{}
		s.NextCursor = nil
		c.gen++
	})
	if err := c.resubscribe(ctx, f); err != nil {
		return err
	}
	return c.Reload(ctx)
}

func (c *Cache) resubscribe(ctx context.Context, f model.ItemFilter) error {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	if c.itemsSub != "" {
		if err := c.ch.Unsubscribe(ctx, c.itemsSub); err != nil {
			c.logger.Warnw("unsubscribe failed", "subscription", c.itemsSub, "error", err)
		}
		c.itemsSub = ""
	}
	incl := f.IncludeSubtree
	id, err := c.ch.Subscribe(ctx, protocol.Subscribe{
		Topic:          string(subscription.TopicItems),
		LocationID:     f.LocationID,
		IncludeSubtree: &incl,
	})
	if err != nil {
		return err
	}
	c.itemsSub = id

	if c.statsSub == "" {
		id, err := c.ch.Subscribe(ctx, protocol.Subscribe{Topic: string(subscription.TopicStats)})
		if err != nil {
			c.logger.Warnw("stats subscription failed", "error", err)
		} else {
			c.statsSub = id
		}
	}
	return nil
}

// Reload fetches the first page for the active filter, replacing loaded items.
func (c *Cache) Reload(ctx context.Context) error {
	var (
		q   protocol.ItemList
		gen int
	)
	limit := c.pageSize
	c.do(func(s *State) {
		q = protocol.ItemList{Filter: s.Filter, Sort: s.Sort, Limit: &limit}
		gen = c.gen
		s.Loading = true
	})

	p, err := c.list(ctx, q)

	c.do(func(s *State) {
		s.Loading = false
		if gen != c.gen {
			return
		}
		if err != nil {
			s.Errors = append(s.Errors, c.newEntry(err, protocol.OpItemList, "", q, c.Reload))
			return
		}
		s.Items = make([]model.Item, 0, len(p.Items))
		for _, it := range p.Items {
			s.Items = append(s.Items, it.Clone())
		}
		s.NextCursor = p.NextCursor
	})
	return err
}

// LoadMore appends the next page. Items already present, e.g. delivered by an
// event before their page, are not duplicated.
func (c *Cache) LoadMore(ctx context.Context) (bool, error) {
	var (
		q    protocol.ItemList
		gen  int
		more bool
	)
	limit := c.pageSize
	c.do(func(s *State) {
		if s.NextCursor == nil {
			return
		}
		more = true
		q = protocol.ItemList{Filter: s.Filter, Sort: s.Sort, Limit: &limit, Cursor: *s.NextCursor}
		gen = c.gen
		s.Loading = true
	})
	if !more {
		return false, nil
	}

	p, err := c.list(ctx, q)

	c.do(func(s *State) {
		s.Loading = false
		if gen != c.gen {
			return
		}
		if err != nil {
			s.Errors = append(s.Errors, c.newEntry(err, protocol.OpItemList, "", q, func(ctx context.Context) error {
				_, err := c.LoadMore(ctx)
				return err
			}))
			return
		}
		// страницу уже применил параллельный вызов
		if s.NextCursor == nil || *s.NextCursor != q.Cursor {
			return
		}
		for _, it := range p.Items {
			if s.index(it.ID) < 0 {
				s.Items = append(s.Items, it.Clone())
			}
		}
		s.NextCursor = p.NextCursor
	})
	return err == nil, err
}

// MaybePrefetch loads the next page once the viewer has scrolled past PrefetchThreshold.
func (c *Cache) MaybePrefetch(ctx context.Context, ratio float64) (bool, error) {
	if ratio < PrefetchThreshold {
		return false, nil
	}
	return c.LoadMore(ctx)
}

// Refresh overwrites the cached item with the server's copy unless a newer one is
// already cached; a vanished item is dropped.
func (c *Cache) Refresh(ctx context.Context, id string) (model.Item, error) {
	it, err := c.get(ctx, id)
	c.do(func(s *State) {
		switch {
		case err == nil:
			s.reconcile(it)
		case errors.Is(err, apperr.ErrNotFound):
			s.remove(id)
		}
	})
	return it, err
}

// merge folds one push event into the cache. Runs on the loop.
func (c *Cache) merge(ev api.Event) {
	s := &c.state
	switch ev.Event.Topic {
	case subscription.TopicStats:
		if ev.Event.Counts != nil {
			counts := *ev.Event.Counts
			s.Counts = &counts
		}
	case subscription.TopicItems:
		it := ev.Event.Item
		if it == nil {
			return
		}
		if ev.Event.Action == "deleted" {
			s.remove(it.ID)
			return
		}
		s.reconcile(*it)
	}
}
