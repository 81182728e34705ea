package service

import (
	"haventory/internal/apperr"
	"haventory/internal/model"
	"haventory/internal/repo"
)

// Kind identifies an item operation, both as a single call and inside a bulk batch.
type Kind string

const (
	KindCreate             Kind = "item_create"
	KindUpdate             Kind = "item_update"
	KindDelete             Kind = "item_delete"
	KindMove               Kind = "item_move"
	KindAdjustQuantity     Kind = "item_adjust_quantity"
	KindSetQuantity        Kind = "item_set_quantity"
	KindCheckOut           Kind = "item_check_out"
	KindCheckIn            Kind = "item_check_in"
	KindAddTags            Kind = "item_add_tags"
	KindRemoveTags         Kind = "item_remove_tags"
	KindUpdateCustomFields Kind = "item_update_custom_fields"
	KindSetLowStock        Kind = "item_set_low_stock_threshold"
)

// ItemOp — типизированная мутация предмета.
type ItemOp interface {
	Kind() Kind
}

type CreateItemOp struct{ Input model.ItemCreate }

type UpdateItemOp struct {
	ID              string
	Changes         model.ItemUpdate
	ExpectedVersion *int64
}

type DeleteItemOp struct {
	ID              string
	ExpectedVersion *int64
}

type MoveItemOp struct {
	ID              string
	LocationID      *string
	ExpectedVersion *int64
}

type AdjustQuantityOp struct {
	ID              string
	Delta           int
	ExpectedVersion *int64
}

type SetQuantityOp struct {
	ID              string
	Quantity        int
	ExpectedVersion *int64
}

type CheckOutOp struct {
	ID              string
	DueDate         *string
	ExpectedVersion *int64
}

type CheckInOp struct {
	ID              string
	ExpectedVersion *int64
}

type AddTagsOp struct {
	ID              string
	Tags            []string
	ExpectedVersion *int64
}

type RemoveTagsOp struct {
	ID              string
	Tags            []string
	ExpectedVersion *int64
}

type UpdateCustomFieldsOp struct {
	ID              string
	Set             map[string]any
	Unset           []string
	ExpectedVersion *int64
}

type SetLowStockThresholdOp struct {
	ID              string
	Threshold       *int
	ExpectedVersion *int64
}

func (CreateItemOp) Kind() Kind           { return KindCreate }
func (UpdateItemOp) Kind() Kind           { return KindUpdate }
func (DeleteItemOp) Kind() Kind           { return KindDelete }
func (MoveItemOp) Kind() Kind             { return KindMove }
func (AdjustQuantityOp) Kind() Kind       { return KindAdjustQuantity }
func (SetQuantityOp) Kind() Kind          { return KindSetQuantity }
func (CheckOutOp) Kind() Kind             { return KindCheckOut }
func (CheckInOp) Kind() Kind              { return KindCheckIn }
func (AddTagsOp) Kind() Kind              { return KindAddTags }
func (RemoveTagsOp) Kind() Kind           { return KindRemoveTags }
func (UpdateCustomFieldsOp) Kind() Kind   { return KindUpdateCustomFields }
func (SetLowStockThresholdOp) Kind() Kind { return KindSetLowStock }

// targetID returns the id of the item an op addresses, "" for create.
func targetID(op ItemOp) string {
	switch o := op.(type) {
	case UpdateItemOp:
		return o.ID
	case DeleteItemOp:
		return o.ID
	case MoveItemOp:
		return o.ID
	case AdjustQuantityOp:
		return o.ID
	case SetQuantityOp:
		return o.ID
	case CheckOutOp:
		return o.ID
	case CheckInOp:
		return o.ID
	case AddTagsOp:
		return o.ID
	case RemoveTagsOp:
		return o.ID
	case UpdateCustomFieldsOp:
		return o.ID
	case SetLowStockThresholdOp:
		return o.ID
	}
	return ""
}

// outcome — результат исполнения одной операции до публикации.
type outcome struct {
	item   model.Item
	prev   *model.Item
	action string
}

// exec applies op to the store without publishing or persisting. Callers hold writeMu,
// so the snapshot read here is the one the store mutates.
func (s *InventoryService) exec(op ItemOp) (outcome, error) {
	id := targetID(op)
	var prev *model.Item
	if id != "" {
		if cur, err := s.store.GetItem(id); err == nil {
			prev = &cur
		}
	}

	var (
		it     model.Item
		err    error
		action = "updated"
	)
	switch o := op.(type) {
	case CreateItemOp:
		it, err = s.store.CreateItem(o.Input)
		action = "created"
	case UpdateItemOp:
		it, err = s.store.UpdateItem(o.ID, o.Changes, o.ExpectedVersion)
	case DeleteItemOp:
		it, err = s.store.DeleteItem(o.ID, o.ExpectedVersion)
		action = "deleted"
	case MoveItemOp:
		it, err = s.store.MoveItem(o.ID, o.LocationID, o.ExpectedVersion)
	case AdjustQuantityOp:
		it, err = s.store.AdjustQuantity(o.ID, o.Delta, o.ExpectedVersion)
		action = "quantity_changed"
	case SetQuantityOp:
		it, err = s.store.SetQuantity(o.ID, o.Quantity, o.ExpectedVersion)
		action = "quantity_changed"
	case CheckOutOp:
		it, err = s.store.CheckOut(o.ID, o.DueDate, o.ExpectedVersion)
		action = "checked_out"
	case CheckInOp:
		it, err = s.store.CheckIn(o.ID, o.ExpectedVersion)
		action = "checked_in"
	case AddTagsOp:
		it, err = s.store.AddTags(o.ID, o.Tags, o.ExpectedVersion)
	case RemoveTagsOp:
		it, err = s.store.RemoveTags(o.ID, o.Tags, o.ExpectedVersion)
	case UpdateCustomFieldsOp:
		it, err = s.store.UpdateCustomFields(o.ID, o.Set, o.Unset, o.ExpectedVersion)
	case SetLowStockThresholdOp:
		it, err = s.store.SetLowStockThreshold(o.ID, o.Threshold, o.ExpectedVersion)
	default:
		return outcome{}, apperr.Validation("unsupported item operation %T", op)
	}
	if err != nil {
		return outcome{}, withID(err, "item_id", id)
	}
	if action == "updated" && prev != nil && locationKey(prev.LocationID) != locationKey(it.LocationID) {
		action = "moved"
	}
	return outcome{item: it, prev: prev, action: action}, nil
}

func locationKey(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func (s *InventoryService) publishItem(o outcome) {
	ev := s.itemEvent(o.action, o.item)
	if o.prev != nil {
		ev = ev.WithPreviousItem(*o.prev)
	}
	s.pub.Publish(ev)
}

// Apply runs one item mutation through the full cycle: store, event, stats, persistence.
// On a storage failure the returned item is still the committed in-memory state.
func (s *InventoryService) Apply(op ItemOp) (model.Item, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	o, err := s.exec(op)
	if err != nil {
		s.logger.Debugw("item op rejected", "kind", op.Kind(), "code", apperr.CodeOf(err))
		return model.Item{}, err
	}
	s.publishItem(o)
	return o.item, s.commit(map[string]any{"item_id": o.item.ID})
}

func (s *InventoryService) CreateItem(in model.ItemCreate) (model.Item, error) {
	return s.Apply(CreateItemOp{Input: in})
}

func (s *InventoryService) UpdateItem(id string, u model.ItemUpdate, expected *int64) (model.Item, error) {
	return s.Apply(UpdateItemOp{ID: id, Changes: u, ExpectedVersion: expected})
}

func (s *InventoryService) DeleteItem(id string, expected *int64) (model.Item, error) {
	return s.Apply(DeleteItemOp{ID: id, ExpectedVersion: expected})
}

func (s *InventoryService) GetItem(id string) (model.Item, error) {
	it, err := s.store.GetItem(id)
	return it, withID(err, "item_id", id)
}

func (s *InventoryService) ListItems(q repo.ItemQuery) (repo.Page, error) {
	return s.store.ListItems(q)
}
