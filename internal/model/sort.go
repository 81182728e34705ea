package model

import "strings"

// SortKey is the primary ordering value of an item for one sort field.
// Строковые ключи только у name, остальные поля сравниваются как числа.
type SortKey struct {
	S string `json:"s,omitempty"`
	N int64  `json:"n,omitempty"`
}

// KeyOf extracts the sort key of it for field.
func KeyOf(it Item, field SortField) SortKey {
	switch field {
	case SortName:
		return SortKey{S: NormalizeSortText(it.Name)}
	case SortQuantity:
		return SortKey{N: int64(it.Quantity)}
	case SortCreatedAt:
		return SortKey{N: it.CreatedAt.Unix()}
	default:
		return SortKey{N: it.UpdatedAt.Unix()}
	}
}

// CompareKeys orders two (key, id) positions: primary key in the requested order,
// then id ascending regardless of order.
func CompareKeys(a SortKey, aID string, b SortKey, bID string, s Sort) int {
	var c int
	if s.Field == SortName {
		c = strings.Compare(a.S, b.S)
	} else {
		switch {
		case a.N < b.N:
			c = -1
		case a.N > b.N:
			c = 1
		}
	}
	if s.Order == OrderDesc {
		c = -c
	}
	if c != 0 {
		return c
	}
	return strings.Compare(aID, bID)
}

// CompareItems orders items under s; s must be normalised.
func CompareItems(a, b Item, s Sort) int {
	return CompareKeys(KeyOf(a, s.Field), a.ID, KeyOf(b, s.Field), b.ID, s)
}
