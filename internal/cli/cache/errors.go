package cache

import (
	"context"
	"errors"
	"slices"

	"haventory/internal/apperr"
)

// ErrNoEntry is returned for an error-queue index that does not exist.
var ErrNoEntry = errors.New("no such error entry")

// Errors returns the queued failures, oldest first.
func (c *Cache) Errors() []ErrorEntry { return c.Snapshot().Errors }

// Dismiss drops an entry without acting on it.
func (c *Cache) Dismiss(i int) error {
	_, err := c.take(i)
	return err
}

// ViewLatest drops the entry and overwrites the local item with the server's state.
func (c *Cache) ViewLatest(ctx context.Context, i int) error {
	e, err := c.take(i)
	if err != nil {
		return err
	}
	if e.ItemID == "" {
		return c.Reload(ctx)
	}
	// удалённый на сервере предмет просто исчезает из кеша
	if _, err := c.Refresh(ctx, e.ItemID); err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}
	return nil
}

// Reapply drops the entry and sends the same intended change again against the
// currently cached version. Nothing is resent without this call.
func (c *Cache) Reapply(ctx context.Context, i int) error {
	e, err := c.take(i)
	if err != nil {
		return err
	}
	if e.replay == nil {
		return nil
	}
	return e.replay(ctx)
}

func (c *Cache) take(i int) (ErrorEntry, error) {
	var (
		e  ErrorEntry
		ok bool
	)
	c.do(func(s *State) {
		if i < 0 || i >= len(s.Errors) {
			return
		}
		e, ok = s.Errors[i], true
		s.Errors = slices.Delete(s.Errors, i, i+1)
	})
	if !ok {
		return ErrorEntry{}, ErrNoEntry
	}
	return e, nil
}
