package model

import (
	"time"

	"haventory/internal/apperr"
)

type SortField string

const (
	SortUpdatedAt SortField = "updated_at"
	SortCreatedAt SortField = "created_at"
	SortName      SortField = "name"
	SortQuantity  SortField = "quantity"
)

type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// Sort defaults to updated_at desc.
type Sort struct {
	Field SortField `json:"field,omitempty"`
	Order SortOrder `json:"order,omitempty"`
}

// Normalize fills defaults and rejects unknown values.
func (s Sort) Normalize() (Sort, error) {
	if s.Field == "" {
		s.Field = SortUpdatedAt
	}
	if s.Order == "" {
		if s.Field == SortName {
			s.Order = OrderAsc
		} else {
			s.Order = OrderDesc
		}
	}
	switch s.Field {
	case SortUpdatedAt, SortCreatedAt, SortName, SortQuantity:
	default:
		return s, apperr.Validation("sort.field must be one of: updated_at, created_at, name, quantity")
	}
	if s.Order != OrderAsc && s.Order != OrderDesc {
		return s, apperr.Validation("sort.order must be 'asc' or 'desc'")
	}
	return s, nil
}

// ItemFilter — все заданные условия объединяются через AND.
type ItemFilter struct {
	Q              string     `json:"q,omitempty"`
	TagsAny        []string   `json:"tags_any,omitempty"`
	TagsAll        []string   `json:"tags_all,omitempty"`
	Category       *string    `json:"category,omitempty"`
	CheckedOut     *bool      `json:"checked_out,omitempty"`
	LowStockOnly   bool       `json:"low_stock_only,omitempty"`
	LocationID     *string    `json:"location_id,omitempty"`
	IncludeSubtree bool       `json:"include_subtree,omitempty"`
	AreaID         *string    `json:"area_id,omitempty"`
	UpdatedAfter   *time.Time `json:"updated_after,omitempty"`
	CreatedAfter   *time.Time `json:"created_after,omitempty"`
}
