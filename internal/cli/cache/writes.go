package cache

import (
	"context"
	"slices"
	"strings"
	"time"

	"haventory/internal/apperr"
	"haventory/internal/cli/api"
	"haventory/internal/model"
	"haventory/internal/protocol"
)

// DraftPrefix marks ids of items created locally and not yet confirmed by the server.
const DraftPrefix = "draft-"

// IsDraft reports whether id belongs to an unconfirmed local item.
func IsDraft(id string) bool { return strings.HasPrefix(id, DraftPrefix) }

// mutation — одна оптимистичная запись по существующему предмету.
type mutation struct {
	op      protocol.Op
	itemID  string
	changes any
	patch   func(model.Item) model.Item
	payload func(t protocol.ItemTarget) any
}

func (c *Cache) newEntry(err error, op protocol.Op, itemID string, changes any, replay func(context.Context) error) ErrorEntry {
	ae := apperr.From(err)
	c.logger.Warnw("write failed", "op", op, "item_id", itemID, "code", ae.Code, "error", err)
	return ErrorEntry{Code: ae.Code, Message: ae.Error(), ItemID: itemID, Op: op, Changes: changes, replay: replay}
}

// apply patches the cached item, sends the request and reconciles with the reply.
// The cached version goes out as expected_version.
func (c *Cache) apply(ctx context.Context, m mutation) (model.Item, error) {
	var (
		prev   model.Item
		cached bool
		ver    *int64
	)
	c.do(func(s *State) {
		s.Pending++
		i := s.index(m.itemID)
		if i < 0 {
			return
		}
		prev, cached = s.Items[i].Clone(), true
		v := prev.Version
		ver = &v
		s.Items[i] = m.patch(s.Items[i].Clone())
	})

	var out model.Item
	err := c.ch.Call(ctx, m.op, m.payload(protocol.ItemTarget{ItemID: m.itemID, ExpectedVersion: ver}), &out)

	c.do(func(s *State) {
		s.Pending--
		if err != nil {
			// откатываем только свой патч: более новую версию от сервера не трогаем
			if i := s.index(m.itemID); cached && i >= 0 && s.Items[i].Version == prev.Version {
				s.Items[i] = prev
			}
			s.Errors = append(s.Errors, c.newEntry(err, m.op, m.itemID, m.changes, func(ctx context.Context) error {
				_, err := c.apply(ctx, m)
				return err
			}))
			return
		}
		s.reconcile(out)
	})
	return out, err
}

// UpdateItem applies a partial patch.
func (c *Cache) UpdateItem(ctx context.Context, id string, changes model.ItemUpdate) (model.Item, error) {
	return c.apply(ctx, mutation{
		op:      protocol.OpItemUpdate,
		itemID:  id,
		changes: changes,
		patch: func(it model.Item) model.Item {
			// локально невалидный патч не показываем, сервер всё равно ответит ошибкой
			if out, err := changes.Apply(it); err == nil {
				return out
			}
			return it
		},
		payload: func(t protocol.ItemTarget) any {
			return protocol.ItemUpdate{ItemTarget: t, ItemUpdate: changes}
		},
	})
}

func (c *Cache) AdjustQuantity(ctx context.Context, id string, delta int) (model.Item, error) {
	return c.apply(ctx, mutation{
		op:      protocol.OpItemAdjustQuantity,
		itemID:  id,
		changes: map[string]any{"delta": delta},
		patch: func(it model.Item) model.Item {
			it.Quantity += delta
			return it
		},
		payload: func(t protocol.ItemTarget) any {
			return protocol.AdjustQuantity{ItemTarget: t, Delta: &delta}
		},
	})
}

func (c *Cache) CheckOut(ctx context.Context, id string, dueDate *string) (model.Item, error) {
	return c.apply(ctx, mutation{
		op:      protocol.OpItemCheckOut,
		itemID:  id,
		changes: map[string]any{"due_date": dueDate},
		patch: func(it model.Item) model.Item {
			it.CheckedOut = true
			it.DueDate = dueDate
			return it
		},
		payload: func(t protocol.ItemTarget) any {
			return protocol.CheckOut{ItemTarget: t, DueDate: dueDate}
		},
	})
}

func (c *Cache) CheckIn(ctx context.Context, id string) (model.Item, error) {
	return c.apply(ctx, mutation{
		op:      protocol.OpItemCheckIn,
		itemID:  id,
		changes: map[string]any{},
		patch: func(it model.Item) model.Item {
			it.CheckedOut = false
			it.DueDate = nil
			return it
		},
		payload: func(t protocol.ItemTarget) any {
			return protocol.CheckIn{ItemTarget: t}
		},
	})
}

// MoveItem puts the item under locationID; nil takes it out of any location.
func (c *Cache) MoveItem(ctx context.Context, id string, locationID *string) (model.Item, error) {
	return c.apply(ctx, mutation{
		op:      protocol.OpItemMove,
		itemID:  id,
		changes: map[string]any{"location_id": locationID},
		patch: func(it model.Item) model.Item {
			it.LocationID = locationID
			return it
		},
		payload: func(t protocol.ItemTarget) any {
			return protocol.ItemMove{ItemTarget: t, LocationID: locationID}
		},
	})
}

// DeleteItem removes the item at once and puts it back where it was if the server refuses.
func (c *Cache) DeleteItem(ctx context.Context, id string) error {
	var (
		prev model.Item
		pos  = -1
		ver  *int64
	)
	c.do(func(s *State) {
		s.Pending++
		if it, i, ok := s.remove(id); ok {
			prev, pos = it, i
			v := it.Version
			ver = &v
		}
	})

	err := c.ch.Call(ctx, protocol.OpItemDelete, protocol.ItemDelete{
		ItemTarget: protocol.ItemTarget{ItemID: id, ExpectedVersion: ver},
	}, nil)

	c.do(func(s *State) {
		s.Pending--
		if err == nil {
			s.remove(id)
			return
		}
		if pos >= 0 && s.index(id) < 0 {
			s.Items = slices.Insert(s.Items, min(pos, len(s.Items)), prev)
		}
		s.Errors = append(s.Errors, c.newEntry(err, protocol.OpItemDelete, id, nil, func(ctx context.Context) error {
			return c.DeleteItem(ctx, id)
		}))
	})
	return err
}

// CreateItem shows a draft immediately and swaps it for the server's item on success.
func (c *Cache) CreateItem(ctx context.Context, in model.ItemCreate) (model.Item, error) {
	draft := draftItem(DraftPrefix+api.NewRequestID(), in)
	c.do(func(s *State) {
		s.Pending++
		if s.inScope(draft) {
			s.Items = slices.Insert(s.Items, 0, draft)
		}
	})

	var out model.Item
	err := c.ch.Call(ctx, protocol.OpItemCreate, in, &out)

	c.do(func(s *State) {
		s.Pending--
		i := s.index(draft.ID)
		if err != nil {
			if i >= 0 {
				s.Items = slices.Delete(s.Items, i, i+1)
			}
			s.Errors = append(s.Errors, c.newEntry(err, protocol.OpItemCreate, "", in, func(ctx context.Context) error {
				_, err := c.CreateItem(ctx, in)
				return err
			}))
			return
		}
		switch {
		case i >= 0 && s.index(out.ID) < 0 && s.inScope(out):
			s.Items[i] = out.Clone()
		case i >= 0:
			// событие created пришло раньше ответа
			s.Items = slices.Delete(s.Items, i, i+1)
			if s.inScope(out) {
				s.upsert(out.Clone())
			}
		case s.inScope(out):
			s.upsert(out.Clone())
		}
	})
	return out, err
}

func draftItem(id string, in model.ItemCreate) model.Item {
	now := model.Truncate(time.Now())
	it := model.Item{
		ID:                id,
		Name:              strings.TrimSpace(in.Name),
		Description:       in.Description,
		Quantity:          1,
		CheckedOut:        in.CheckedOut,
		DueDate:           in.DueDate,
		LocationID:        in.LocationID,
		Tags:              model.NormalizeTags(in.Tags),
		Category:          model.NormalizeCategory(in.Category),
		LowStockThreshold: in.LowStockThreshold,
		CustomFields:      in.CustomFields,
		CreatedAt:         now,
		UpdatedAt:         now,
		LocationPath:      model.EmptyPath(),
	}
	if in.Quantity != nil {
		it.Quantity = *in.Quantity
	}
	if it.CustomFields == nil {
		it.CustomFields = map[string]any{}
	}
	return it.Clone()
}
