package repo

import (
	"maps"
	"slices"

	"haventory/internal/apperr"
	"haventory/internal/model"
)

// CreateItem validates the input and stores a new item at version 1.
func (s *Store) CreateItem(in model.ItemCreate) (model.Item, error) {
	name, err := model.ValidateName(in.Name)
	if err != nil {
		return model.Item{}, err
	}
	qty := 1
	if in.Quantity != nil {
		qty = *in.Quantity
	}
	if err := model.ValidateQuantity(qty); err != nil {
		return model.Item{}, err
	}
	if in.LowStockThreshold != nil {
		if err := model.ValidateThreshold(*in.LowStockThreshold); err != nil {
			return model.Item{}, err
		}
	}
	due, err := model.ValidateDueDate(in.CheckedOut, in.DueDate)
	if err != nil {
		return model.Item{}, err
	}
	cf, err := model.NormalizeCustomFields(in.CustomFields)
	if err != nil {
		return model.Item{}, err
	}
	if in.LocationID != nil {
		if err := model.ValidateID("location_id", *in.LocationID); err != nil {
			return model.Item{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.pathFor(in.LocationID)
	if err != nil {
		return model.Item{}, err
	}
	now := model.Truncate(s.now())
	it := model.Item{
		ID:                model.NewID(),
		Name:              name,
		Description:       in.Description,
		Quantity:          qty,
		CheckedOut:        in.CheckedOut,
		DueDate:           due,
		LocationID:        in.LocationID,
		Tags:              model.NormalizeTags(in.Tags),
		Category:          model.NormalizeCategory(in.Category),
		LowStockThreshold: in.LowStockThreshold,
		CustomFields:      cf,
		CreatedAt:         now,
		UpdatedAt:         now,
		Version:           1,
		LocationPath:      path,
	}
	it = it.Clone()
	s.items[it.ID] = &it
	s.indexItem(&it)
	return it.Clone(), nil
}

// GetItem returns a snapshot of one item.
func (s *Store) GetItem(id string) (model.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return model.Item{}, apperr.NotFound("item not found")
	}
	return it.Clone(), nil
}

// mutateItem — общий путь read-check-write для всех мутаций предмета.
// fn получает копию текущего состояния; при ошибке хранилище не меняется.
func (s *Store) mutateItem(id string, expected *int64, fn func(cur model.Item) (model.Item, error)) (model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.items[id]
	if !ok {
		return model.Item{}, apperr.NotFound("item not found")
	}
	if expected != nil && *expected != cur.Version {
		return model.Item{}, apperr.Conflict(*expected, cur.Version)
	}
	next, err := fn(cur.Clone())
	if err != nil {
		return model.Item{}, err
	}
	path, err := s.pathFor(next.LocationID)
	if err != nil {
		return model.Item{}, err
	}
	next.LocationPath = path
	next.ID = cur.ID
	next.CreatedAt = cur.CreatedAt
	next.Version = cur.Version + 1
	next.UpdatedAt = model.NextTimestamp(cur.UpdatedAt, s.now())

	s.unindexItem(cur)
	s.items[id] = &next
	s.indexItem(&next)
	return next.Clone(), nil
}

func (s *Store) UpdateItem(id string, u model.ItemUpdate, expected *int64) (model.Item, error) {
	return s.mutateItem(id, expected, u.Apply)
}

// DeleteItem removes the item and returns its last snapshot.
func (s *Store) DeleteItem(id string, expected *int64) (model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.items[id]
	if !ok {
		return model.Item{}, apperr.NotFound("item not found")
	}
	if expected != nil && *expected != cur.Version {
		return model.Item{}, apperr.Conflict(*expected, cur.Version)
	}
	s.unindexItem(cur)
	delete(s.items, id)
	return cur.Clone(), nil
}

// AdjustQuantity rejects results below zero instead of clamping.
func (s *Store) AdjustQuantity(id string, delta int, expected *int64) (model.Item, error) {
	return s.mutateItem(id, expected, func(cur model.Item) (model.Item, error) {
		q := cur.Quantity + delta
		if q < 0 {
			return cur, apperr.Validation("quantity would become negative (%d)", q)
		}
		cur.Quantity = q
		return cur, nil
	})
}

func (s *Store) SetQuantity(id string, quantity int, expected *int64) (model.Item, error) {
	return s.mutateItem(id, expected, func(cur model.Item) (model.Item, error) {
		if err := model.ValidateQuantity(quantity); err != nil {
			return cur, err
		}
		cur.Quantity = quantity
		return cur, nil
	})
}

func (s *Store) CheckOut(id string, dueDate *string, expected *int64) (model.Item, error) {
	return s.mutateItem(id, expected, func(cur model.Item) (model.Item, error) {
		due, err := model.ValidateDueDate(true, dueDate)
		if err != nil {
			return cur, err
		}
		cur.CheckedOut = true
		cur.DueDate = due
		return cur, nil
	})
}

func (s *Store) CheckIn(id string, expected *int64) (model.Item, error) {
	return s.mutateItem(id, expected, func(cur model.Item) (model.Item, error) {
		cur.CheckedOut = false
		cur.DueDate = nil
		return cur, nil
	})
}

func (s *Store) AddTags(id string, tags []string, expected *int64) (model.Item, error) {
	return s.mutateItem(id, expected, func(cur model.Item) (model.Item, error) {
		cur.Tags = model.NormalizeTags(append(cur.Tags, tags...))
		return cur, nil
	})
}

// RemoveTags is a set difference; absent tags are ignored.
func (s *Store) RemoveTags(id string, tags []string, expected *int64) (model.Item, error) {
	drop := model.NormalizeTags(tags)
	return s.mutateItem(id, expected, func(cur model.Item) (model.Item, error) {
		cur.Tags = slices.DeleteFunc(cur.Tags, func(t string) bool { return slices.Contains(drop, t) })
		return cur, nil
	})
}

// UpdateCustomFields merges set over the current map, then removes unset keys.
func (s *Store) UpdateCustomFields(id string, setFields map[string]any, unset []string, expected *int64) (model.Item, error) {
	norm, err := model.NormalizeCustomFields(setFields)
	if err != nil {
		return model.Item{}, err
	}
	return s.mutateItem(id, expected, func(cur model.Item) (model.Item, error) {
		maps.Copy(cur.CustomFields, norm)
		for _, k := range unset {
			delete(cur.CustomFields, k)
		}
		return cur, nil
	})
}

func (s *Store) SetLowStockThreshold(id string, threshold *int, expected *int64) (model.Item, error) {
	if threshold != nil {
		if err := model.ValidateThreshold(*threshold); err != nil {
			return model.Item{}, err
		}
	}
	return s.mutateItem(id, expected, func(cur model.Item) (model.Item, error) {
		if threshold == nil {
			cur.LowStockThreshold = nil
		} else {
			v := *threshold
			cur.LowStockThreshold = &v
		}
		return cur, nil
	})
}

// MoveItem changes location_id; nil unplaces the item.
func (s *Store) MoveItem(id string, locationID *string, expected *int64) (model.Item, error) {
	if locationID != nil {
		if err := model.ValidateID("location_id", *locationID); err != nil {
			return model.Item{}, err
		}
	}
	return s.mutateItem(id, expected, func(cur model.Item) (model.Item, error) {
		if locationID == nil {
			cur.LocationID = nil
		} else {
			v := *locationID
			cur.LocationID = &v
		}
		return cur, nil
	})
}
