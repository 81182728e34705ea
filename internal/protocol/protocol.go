// Package protocol describes the message envelope exchanged over the bidirectional
// channel and the typed payload of every operation.
package protocol

import (
	"encoding/json"

	"haventory/internal/apperr"
	"haventory/internal/subscription"
)

// Op — идентификатор операции в поле type запроса.
type Op string

const (
	OpPing    Op = "ping"
	OpVersion Op = "version"
	OpStats   Op = "stats"
	OpHealth  Op = "health"
	OpAreas   Op = "areas/list"

	OpSubscribe   Op = "subscribe"
	OpUnsubscribe Op = "unsubscribe"

	OpItemCreate             Op = "item/create"
	OpItemGet                Op = "item/get"
	OpItemUpdate             Op = "item/update"
	OpItemDelete             Op = "item/delete"
	OpItemAdjustQuantity     Op = "item/adjust_quantity"
	OpItemSetQuantity        Op = "item/set_quantity"
	OpItemCheckOut           Op = "item/check_out"
	OpItemCheckIn            Op = "item/check_in"
	OpItemAddTags            Op = "item/add_tags"
	OpItemRemoveTags         Op = "item/remove_tags"
	OpItemUpdateCustomFields Op = "item/update_custom_fields"
	OpItemSetLowStock        Op = "item/set_low_stock_threshold"
	OpItemMove               Op = "item/move"
	OpItemList               Op = "item/list"
	OpItemsBulk              Op = "items/bulk"

	OpLocationCreate      Op = "location/create"
	OpLocationGet         Op = "location/get"
	OpLocationUpdate      Op = "location/update"
	OpLocationDelete      Op = "location/delete"
	OpLocationList        Op = "location/list"
	OpLocationTree        Op = "location/tree"
	OpLocationMoveSubtree Op = "location/move_subtree"
)

// SchemaVersion of the persisted snapshot, reported by the version op.
const SchemaVersion = 1

const (
	TypeResult = "result"
	TypeEvent  = "event"
)

// Request is one client call. ID is chosen by the caller and echoed in the response.
type Request struct {
	ID      string          `json:"id"`
	Type    Op              `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response answers exactly one Request.
type Response struct {
	ID      string        `json:"id"`
	Type    string        `json:"type"`
	Success bool          `json:"success"`
	Result  any           `json:"result,omitempty"`
	Error   *apperr.Error `json:"error,omitempty"`
}

// EventMessage is a push message; ID is the id of the subscribe request.
type EventMessage struct {
	ID    string             `json:"id"`
	Type  string             `json:"type"`
	Event subscription.Event `json:"event"`
}

// Inbound — то, что читает клиент: либо результат, либо событие.
type Inbound struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *apperr.Error   `json:"error,omitempty"`
	Event   json.RawMessage `json:"event,omitempty"`
}

func Result(id string, v any) Response {
	return Response{ID: id, Type: TypeResult, Success: true, Result: v}
}

// Failure classifies err and adds the op name to its context.
func Failure(id string, op Op, err error) Response {
	return Response{ID: id, Type: TypeResult, Error: apperr.WithContext(err, map[string]any{"op": string(op)})}
}

func Event(subID string, ev subscription.Event) EventMessage {
	return EventMessage{ID: subID, Type: TypeEvent, Event: ev}
}

// VersionInfo is the result of the version op.
type VersionInfo struct {
	ServerVersion string `json:"server_version"`
	SchemaVersion int    `json:"schema_version"`
}
