package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"haventory/internal/model"
	"haventory/internal/subscription"
)

type Ping struct {
	Echo any `json:"echo,omitempty"`
}

type ItemRef struct {
	ItemID string `json:"item_id" validate:"required,uuid4"`
}

// ItemTarget addresses an existing item, optionally with an expected version.
type ItemTarget struct {
	ItemID          string `json:"item_id" validate:"required,uuid4"`
	ExpectedVersion *int64 `json:"expected_version,omitempty" validate:"omitempty,gte=1"`
}

type ItemCreate = model.ItemCreate

type ItemUpdate struct {
	ItemTarget
	model.ItemUpdate
}

type ItemDelete struct {
	ItemTarget
}

type AdjustQuantity struct {
	ItemTarget
	Delta *int `json:"delta" validate:"required"`
}

type SetQuantity struct {
	ItemTarget
	Quantity *int `json:"quantity" validate:"required,gte=0"`
}

type CheckOut struct {
	ItemTarget
	DueDate *string `json:"due_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

type CheckIn struct {
	ItemTarget
}

type Tags struct {
	ItemTarget
	Tags []string `json:"tags" validate:"required"`
}

type CustomFields struct {
	ItemTarget
	Set   map[string]any `json:"set,omitempty"`
	Unset []string       `json:"unset,omitempty" validate:"omitempty,dive,required"`
}

type LowStockThreshold struct {
	ItemTarget
	LowStockThreshold *int `json:"low_stock_threshold" validate:"omitempty,gte=0"`
}

type ItemMove struct {
	ItemTarget
	LocationID *string `json:"location_id" validate:"omitempty,uuid4"`
}

// ItemList — фильтр, сортировка и страница. Отсутствующий limit означает «всё».
type ItemList struct {
	Filter model.ItemFilter `json:"filter"`
	Sort   model.Sort       `json:"sort"`
	Limit  *int             `json:"limit,omitempty" validate:"omitempty,gte=0"`
	Cursor string           `json:"cursor,omitempty"`
}

// OpID accepts both strings and integers on the wire.
type OpID string

func (o *OpID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*o = OpID(s)
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("op_id must be a string or integer, got %s", b)
	}
	*o = OpID(strconv.FormatInt(n, 10))
	return nil
}

// BulkOperation is one element of items/bulk. Unknown kinds are not rejected here;
// they fail individually so the rest of the batch still runs.
type BulkOperation struct {
	OpID    OpID            `json:"op_id" validate:"required"`
	Kind    string          `json:"kind" validate:"required"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Bulk struct {
	Operations []BulkOperation `json:"operations" validate:"required,dive"`
}

// BulkResult is the wire shape of the items/bulk response.
type BulkResult[T any] struct {
	Results map[string]T `json:"results"`
}

type LocationRef struct {
	LocationID string `json:"location_id" validate:"required,uuid4"`
}

type LocationCreate = model.LocationCreate

type LocationUpdate struct {
	LocationRef
	Name        model.Field[string] `json:"name,omitzero"`
	NewParentID model.Field[string] `json:"new_parent_id,omitzero"`
	AreaID      model.Field[string] `json:"area_id,omitzero"`
}

// Changes converts the wire patch into the store patch.
func (p LocationUpdate) Changes() model.LocationUpdate {
	return model.LocationUpdate{Name: p.Name, ParentID: p.NewParentID, AreaID: p.AreaID}
}

type LocationList struct {
	ParentID  *string `json:"parent_id,omitempty" validate:"omitempty,uuid4"`
	RootsOnly bool    `json:"roots_only,omitempty"`
}

type MoveSubtree struct {
	LocationRef
	NewParentID *string `json:"new_parent_id" validate:"omitempty,uuid4"`
}

// Subscribe registers a push subscription. include_subtree defaults to true.
type Subscribe struct {
	Topic          string  `json:"topic" validate:"required,oneof=items locations stats"`
	LocationID     *string `json:"location_id,omitempty" validate:"omitempty,uuid4"`
	IncludeSubtree *bool   `json:"include_subtree,omitempty"`
}

// Subscription builds the router registration for a subscribe request id.
func (p Subscribe) Subscription(id string) subscription.Subscription {
	sub := subscription.Subscription{ID: id, Topic: subscription.Topic(p.Topic)}
	if p.LocationID != nil {
		incl := true
		if p.IncludeSubtree != nil {
			incl = *p.IncludeSubtree
		}
		sub.Scope = &subscription.Scope{LocationID: *p.LocationID, IncludeSubtree: incl}
	}
	return sub
}

type Unsubscribe struct {
	Subscription string `json:"subscription" validate:"required"`
}
