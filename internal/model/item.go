package model

import (
	"maps"
	"slices"
	"time"
)

// Item — отслеживаемый предмет инвентаря.
type Item struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Description       *string        `json:"description"`
	Quantity          int            `json:"quantity"`
	CheckedOut        bool           `json:"checked_out"`
	DueDate           *string        `json:"due_date"`
	LocationID        *string        `json:"location_id"`
	Tags              []string       `json:"tags"`
	Category          *string        `json:"category"`
	LowStockThreshold *int           `json:"low_stock_threshold"`
	CustomFields      map[string]any `json:"custom_fields"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	Version           int64          `json:"version"`
	LocationPath      LocationPath   `json:"location_path"`
}

// Clone returns a deep copy; snapshots handed out of the store never alias its state.
func (it Item) Clone() Item {
	out := it
	out.Description = clonePtr(it.Description)
	out.DueDate = clonePtr(it.DueDate)
	out.LocationID = clonePtr(it.LocationID)
	out.Category = clonePtr(it.Category)
	out.LowStockThreshold = clonePtr(it.LowStockThreshold)
	out.Tags = slices.Clone(it.Tags)
	if out.Tags == nil {
		out.Tags = []string{}
	}
	out.CustomFields = maps.Clone(it.CustomFields)
	if out.CustomFields == nil {
		out.CustomFields = map[string]any{}
	}
	out.LocationPath = it.LocationPath.Clone()
	return out
}

// IsLowStock: threshold задан и quantity не выше него (0 — валидный порог).
func (it Item) IsLowStock() bool {
	return it.LowStockThreshold != nil && it.Quantity <= *it.LowStockThreshold
}

// HasTag reports whether a normalised tag is present.
func (it Item) HasTag(tag string) bool {
	return slices.Contains(it.Tags, tag)
}

// ItemCreate is the validated-at-boundary input for item creation.
type ItemCreate struct {
	Name              string         `json:"name" validate:"required"`
	Description       *string        `json:"description,omitempty"`
	Quantity          *int           `json:"quantity,omitempty" validate:"omitempty,gte=0"`
	CheckedOut        bool           `json:"checked_out,omitempty"`
	DueDate           *string        `json:"due_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	LocationID        *string        `json:"location_id,omitempty" validate:"omitempty,uuid4"`
	Tags              []string       `json:"tags,omitempty"`
	Category          *string        `json:"category,omitempty"`
	LowStockThreshold *int           `json:"low_stock_threshold,omitempty" validate:"omitempty,gte=0"`
	CustomFields      map[string]any `json:"custom_fields,omitempty"`
}

// ItemUpdate is a partial patch. Absent fields are untouched, explicit null clears.
type ItemUpdate struct {
	Name              Field[string]         `json:"name,omitzero"`
	Description       Field[string]         `json:"description,omitzero"`
	Quantity          Field[int]            `json:"quantity,omitzero"`
	CheckedOut        Field[bool]           `json:"checked_out,omitzero"`
	DueDate           Field[string]         `json:"due_date,omitzero"`
	LocationID        Field[string]         `json:"location_id,omitzero"`
	Tags              Field[[]string]       `json:"tags,omitzero"`
	Category          Field[string]         `json:"category,omitzero"`
	LowStockThreshold Field[int]            `json:"low_stock_threshold,omitzero"`
	CustomFields      Field[map[string]any] `json:"custom_fields,omitzero"`
}

// Apply applies the patch to a copy of it. The location field is only validated here;
// path recomputation needs the location tree and is done by the store.
func (u ItemUpdate) Apply(it Item) (Item, error) {
	out := it.Clone()

	if u.Name.Set {
		if u.Name.Value == nil {
			return it, errNullField("name")
		}
		name, err := ValidateName(*u.Name.Value)
		if err != nil {
			return it, err
		}
		out.Name = name
	}
	if u.Description.Set {
		out.Description = clonePtr(u.Description.Value)
	}
	if u.Quantity.Set {
		if u.Quantity.Value == nil {
			return it, errNullField("quantity")
		}
		if err := ValidateQuantity(*u.Quantity.Value); err != nil {
			return it, err
		}
		out.Quantity = *u.Quantity.Value
	}
	if u.CheckedOut.Set {
		if u.CheckedOut.Value == nil {
			return it, errNullField("checked_out")
		}
		out.CheckedOut = *u.CheckedOut.Value
	}
	if u.DueDate.Set {
		out.DueDate = clonePtr(u.DueDate.Value)
	}
	due, err := ValidateDueDate(out.CheckedOut, out.DueDate)
	if err != nil {
		return it, err
	}
	out.DueDate = due

	if u.LocationID.Set {
		if u.LocationID.Value != nil {
			if err := ValidateID("location_id", *u.LocationID.Value); err != nil {
				return it, err
			}
		}
		out.LocationID = clonePtr(u.LocationID.Value)
	}
	if u.Tags.Set {
		if u.Tags.Value == nil {
			out.Tags = []string{}
		} else {
			out.Tags = NormalizeTags(*u.Tags.Value)
		}
	}
	if u.Category.Set {
		out.Category = NormalizeCategory(u.Category.Value)
	}
	if u.LowStockThreshold.Set {
		if u.LowStockThreshold.Value != nil {
			if err := ValidateThreshold(*u.LowStockThreshold.Value); err != nil {
				return it, err
			}
		}
		out.LowStockThreshold = clonePtr(u.LowStockThreshold.Value)
	}
	if u.CustomFields.Set {
		if u.CustomFields.Value == nil {
			out.CustomFields = map[string]any{}
		} else {
			cf, err := NormalizeCustomFields(*u.CustomFields.Value)
			if err != nil {
				return it, err
			}
			out.CustomFields = cf
		}
	}
	return out, nil
}

// MovesLocation reports whether the patch touches location_id.
func (u ItemUpdate) MovesLocation() bool { return u.LocationID.Set }

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
