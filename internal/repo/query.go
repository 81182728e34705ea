package repo

import (
	"slices"
	"strings"

	"haventory/internal/apperr"
	"haventory/internal/model"
)

// ItemQuery — фильтр, сортировка и страница. Limit 0 означает «всё».
type ItemQuery struct {
	Filter model.ItemFilter
	Sort   model.Sort
	Limit  int
	Cursor string
}

// Page is one slice of a sorted result set.
type Page struct {
	Items      []model.Item `json:"items"`
	NextCursor *string      `json:"next_cursor"`
}

// ListItems filters, sorts and pages. The cursor is resolved by key comparison, so
// inserting or deleting unrelated items between pages does not shift the position.
func (s *Store) ListItems(q ItemQuery) (Page, error) {
	if q.Limit < 0 {
		return Page{}, apperr.Validation("limit must be >= 0")
	}
	srt, err := q.Sort.Normalize()
	if err != nil {
		return Page{}, err
	}
	var after *Cursor
	if q.Cursor != "" {
		c, err := s.cursors.Decode(q.Cursor)
		if err != nil {
			return Page{}, err
		}
		if c.Sort != srt {
			return Page{}, apperr.Validation("cursor does not match the requested sort")
		}
		after = &c
	}

	m := newMatcher(q.Filter)

	s.mu.RLock()
	matched := make([]model.Item, 0, len(s.items))
	for _, it := range s.items {
		if m.match(it, s.effectiveAreaLocked) {
			matched = append(matched, it.Clone())
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b model.Item) int { return model.CompareItems(a, b, srt) })

	start := 0
	if after != nil {
		start = len(matched)
		for i, it := range matched {
			if model.CompareKeys(model.KeyOf(it, srt.Field), it.ID, after.Key, after.ID, srt) > 0 {
				start = i
				break
			}
		}
	}
	rest := matched[start:]
	if q.Limit == 0 || len(rest) <= q.Limit {
		return Page{Items: rest}, nil
	}
	page := rest[:q.Limit]
	last := page[len(page)-1]
	token, err := s.cursors.Encode(Cursor{Sort: srt, Key: model.KeyOf(last, srt.Field), ID: last.ID})
	if err != nil {
		return Page{}, apperr.Unknown(err)
	}
	return Page{Items: page, NextCursor: &token}, nil
}

type matcher struct {
	f        model.ItemFilter
	q        string
	tagsAny  []string
	tagsAll  []string
	category string
}

func newMatcher(f model.ItemFilter) matcher {
	m := matcher{
		f:       f,
		q:       model.FoldText(strings.TrimSpace(f.Q)),
		tagsAny: model.NormalizeTags(f.TagsAny),
		tagsAll: model.NormalizeTags(f.TagsAll),
	}
	if f.Category != nil {
		m.category = model.FoldText(strings.TrimSpace(*f.Category))
	}
	return m
}

func (m matcher) match(it *model.Item, areaOf func(model.LocationPath) string) bool {
	f := m.f
	if m.q != "" && !m.matchText(it) {
		return false
	}
	if len(m.tagsAny) > 0 && !slices.ContainsFunc(m.tagsAny, it.HasTag) {
		return false
	}
	for _, t := range m.tagsAll {
		if !it.HasTag(t) {
			return false
		}
	}
	if m.category != "" {
		if it.Category == nil || model.FoldText(strings.TrimSpace(*it.Category)) != m.category {
			return false
		}
	}
	if f.CheckedOut != nil && it.CheckedOut != *f.CheckedOut {
		return false
	}
	if f.LowStockOnly && !it.IsLowStock() {
		return false
	}
	if f.LocationID != nil {
		if it.LocationID == nil {
			return false
		}
		if f.IncludeSubtree {
			if !it.LocationPath.Contains(*f.LocationID) {
				return false
			}
		} else if *it.LocationID != *f.LocationID {
			return false
		}
	}
	if f.AreaID != nil && areaOf(it.LocationPath) != *f.AreaID {
		return false
	}
	if f.UpdatedAfter != nil && !it.UpdatedAt.After(*f.UpdatedAfter) {
		return false
	}
	if f.CreatedAfter != nil && !it.CreatedAt.After(*f.CreatedAfter) {
		return false
	}
	return true
}

func (m matcher) matchText(it *model.Item) bool {
	if strings.Contains(model.FoldText(it.Name), m.q) {
		return true
	}
	if it.Description != nil && strings.Contains(model.FoldText(*it.Description), m.q) {
		return true
	}
	for _, t := range it.Tags {
		if strings.Contains(t, m.q) {
			return true
		}
	}
	return strings.Contains(model.FoldText(it.LocationPath.DisplayPath), m.q)
}
