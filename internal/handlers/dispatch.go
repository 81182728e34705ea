package handlers

import (
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"haventory/internal/apperr"
	"haventory/internal/model"
	"haventory/internal/protocol"
	"haventory/internal/repo"
	"haventory/internal/service"
	"haventory/internal/subscription"
)

// opFunc handles one decoded request on behalf of a connection.
type opFunc func(c subscription.Conn, req protocol.Request) (any, error)

// Dispatcher maps operation identifiers to service calls.
type Dispatcher struct {
	svc     *service.InventoryService
	router  *subscription.Router
	logger  *zap.SugaredLogger
	version string
	now     func() time.Time
	ops     map[protocol.Op]opFunc
}

func NewDispatcher(svc *service.InventoryService, router *subscription.Router, logger *zap.SugaredLogger, version string) *Dispatcher {
	d := &Dispatcher{svc: svc, router: router, logger: logger, version: version, now: time.Now}
	d.ops = d.routes()
	return d
}

// decoded adapts a typed handler: payload decoding and validation happen before fn runs.
func decoded[T any](fn func(c subscription.Conn, id string, p T) (any, error)) opFunc {
	return func(c subscription.Conn, req protocol.Request) (any, error) {
		p, err := protocol.Decode[T](req.Payload)
		if err != nil {
			return nil, err
		}
		return fn(c, req.ID, p)
	}
}

// itemMutation routes a single item op through the same decoder the bulk executor uses.
func (d *Dispatcher) itemMutation(kind service.Kind) opFunc {
	return func(_ subscription.Conn, req protocol.Request) (any, error) {
		op, err := DecodeItemOp(kind, req.Payload)
		if err != nil {
			return nil, err
		}
		it, err := d.svc.Apply(op)
		if err != nil {
			return nil, err
		}
		if kind == service.KindDelete {
			return nil, nil
		}
		return it, nil
	}
}

func (d *Dispatcher) routes() map[protocol.Op]opFunc {
	return map[protocol.Op]opFunc{
		protocol.OpPing: decoded(func(_ subscription.Conn, _ string, p protocol.Ping) (any, error) {
			return map[string]any{"echo": p.Echo, "ts": model.FormatTime(d.now())}, nil
		}),
		protocol.OpVersion: func(subscription.Conn, protocol.Request) (any, error) {
			return protocol.VersionInfo{ServerVersion: d.version, SchemaVersion: protocol.SchemaVersion}, nil
		},
		protocol.OpStats: func(subscription.Conn, protocol.Request) (any, error) {
			return d.svc.Counts(), nil
		},
		protocol.OpHealth: func(subscription.Conn, protocol.Request) (any, error) {
			return d.svc.Health(), nil
		},
		protocol.OpAreas: func(subscription.Conn, protocol.Request) (any, error) {
			return map[string]any{"areas": d.svc.Areas()}, nil
		},

		protocol.OpSubscribe: decoded(func(c subscription.Conn, id string, p protocol.Subscribe) (any, error) {
			return nil, d.router.Subscribe(c, p.Subscription(id))
		}),
		protocol.OpUnsubscribe: decoded(func(c subscription.Conn, _ string, p protocol.Unsubscribe) (any, error) {
			d.router.Unsubscribe(c.ID(), p.Subscription)
			return nil, nil
		}),

		protocol.OpItemCreate: decoded(func(_ subscription.Conn, _ string, p protocol.ItemCreate) (any, error) {
			return d.svc.CreateItem(p)
		}),
		protocol.OpItemGet: decoded(func(_ subscription.Conn, _ string, p protocol.ItemRef) (any, error) {
			return d.svc.GetItem(p.ItemID)
		}),
		protocol.OpItemList: decoded(func(_ subscription.Conn, _ string, p protocol.ItemList) (any, error) {
			q := repo.ItemQuery{Filter: p.Filter, Sort: p.Sort, Cursor: p.Cursor}
			if p.Limit != nil {
				q.Limit = *p.Limit
			}
			return d.svc.ListItems(q)
		}),
		protocol.OpItemUpdate:             d.itemMutation(service.KindUpdate),
		protocol.OpItemDelete:             d.itemMutation(service.KindDelete),
		protocol.OpItemMove:               d.itemMutation(service.KindMove),
		protocol.OpItemAdjustQuantity:     d.itemMutation(service.KindAdjustQuantity),
		protocol.OpItemSetQuantity:        d.itemMutation(service.KindSetQuantity),
		protocol.OpItemCheckOut:           d.itemMutation(service.KindCheckOut),
		protocol.OpItemCheckIn:            d.itemMutation(service.KindCheckIn),
		protocol.OpItemAddTags:            d.itemMutation(service.KindAddTags),
		protocol.OpItemRemoveTags:         d.itemMutation(service.KindRemoveTags),
		protocol.OpItemUpdateCustomFields: d.itemMutation(service.KindUpdateCustomFields),
		protocol.OpItemSetLowStock:        d.itemMutation(service.KindSetLowStock),
		protocol.OpItemsBulk: decoded(func(_ subscription.Conn, _ string, p protocol.Bulk) (any, error) {
			entries := make([]service.BulkEntry, 0, len(p.Operations))
			for _, o := range p.Operations {
				kind := service.Kind(o.Kind)
				op, err := DecodeItemOp(kind, o.Payload)
				entries = append(entries, service.BulkEntry{OpID: string(o.OpID), Kind: kind, Op: op, Err: err})
			}
			res, err := d.svc.Bulk(entries)
			return protocol.BulkResult[service.BulkResult]{Results: res}, err
		}),

		protocol.OpLocationCreate: decoded(func(_ subscription.Conn, _ string, p protocol.LocationCreate) (any, error) {
			return d.svc.CreateLocation(p)
		}),
		protocol.OpLocationGet: decoded(func(_ subscription.Conn, _ string, p protocol.LocationRef) (any, error) {
			return d.svc.GetLocation(p.LocationID)
		}),
		protocol.OpLocationUpdate: decoded(func(_ subscription.Conn, _ string, p protocol.LocationUpdate) (any, error) {
			return d.svc.UpdateLocation(p.LocationID, p.Changes())
		}),
		protocol.OpLocationDelete: decoded(func(_ subscription.Conn, _ string, p protocol.LocationRef) (any, error) {
			_, err := d.svc.DeleteLocation(p.LocationID)
			return nil, err
		}),
		protocol.OpLocationList: decoded(func(_ subscription.Conn, _ string, p protocol.LocationList) (any, error) {
			return d.svc.ListLocations(p.ParentID, p.RootsOnly), nil
		}),
		protocol.OpLocationTree: func(subscription.Conn, protocol.Request) (any, error) {
			return d.svc.Tree(), nil
		},
		protocol.OpLocationMoveSubtree: decoded(func(_ subscription.Conn, _ string, p protocol.MoveSubtree) (any, error) {
			return d.svc.MoveSubtree(p.LocationID, p.NewParentID)
		}),
	}
}

// Handle runs one request and always produces exactly one response.
func (d *Dispatcher) Handle(c subscription.Conn, req protocol.Request) protocol.Response {
	fn, ok := d.ops[req.Type]
	if !ok {
		err := apperr.Validation("unknown operation %q", req.Type)
		d.logger.Warnw("request rejected", "op", req.Type, "code", apperr.CodeValidation)
		return protocol.Failure(req.ID, req.Type, err)
	}
	res, err := d.safeCall(fn, c, req)
	if err != nil {
		code := apperr.CodeOf(err)
		if code == apperr.CodeStorage || code == apperr.CodeUnknown {
			d.logger.Errorw("request failed", "op", req.Type, "code", code, "error", err)
		} else {
			d.logger.Warnw("request rejected", "op", req.Type, "code", code, "error", err)
		}
		return protocol.Failure(req.ID, req.Type, err)
	}
	return protocol.Result(req.ID, res)
}

// safeCall turns a panic inside an op into unknown_error instead of dropping the connection.
func (d *Dispatcher) safeCall(fn opFunc, c subscription.Conn, req protocol.Request) (res any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Errorw("panic in op handler", "op", req.Type, "panic", r)
			res, err = nil, apperr.Unknown(fmt.Errorf("internal error: %v", r))
		}
	}()
	return fn(c, req)
}

func decodeAs[T any](raw json.RawMessage, build func(T) service.ItemOp) (service.ItemOp, error) {
	p, err := protocol.Decode[T](raw)
	if err != nil {
		return nil, err
	}
	return build(p), nil
}

// DecodeItemOp decodes the payload of an item mutation into its typed op.
func DecodeItemOp(kind service.Kind, raw json.RawMessage) (service.ItemOp, error) {
	switch kind {
	case service.KindCreate:
		return decodeAs(raw, func(p protocol.ItemCreate) service.ItemOp {
			return service.CreateItemOp{Input: p}
		})
	case service.KindUpdate:
		return decodeAs(raw, func(p protocol.ItemUpdate) service.ItemOp {
			return service.UpdateItemOp{ID: p.ItemID, Changes: p.ItemUpdate, ExpectedVersion: p.ExpectedVersion}
		})
	case service.KindDelete:
		return decodeAs(raw, func(p protocol.ItemDelete) service.ItemOp {
			return service.DeleteItemOp{ID: p.ItemID, ExpectedVersion: p.ExpectedVersion}
		})
	case service.KindMove:
		return decodeAs(raw, func(p protocol.ItemMove) service.ItemOp {
			return service.MoveItemOp{ID: p.ItemID, LocationID: p.LocationID, ExpectedVersion: p.ExpectedVersion}
		})
	case service.KindAdjustQuantity:
		return decodeAs(raw, func(p protocol.AdjustQuantity) service.ItemOp {
			return service.AdjustQuantityOp{ID: p.ItemID, Delta: *p.Delta, ExpectedVersion: p.ExpectedVersion}
		})
	case service.KindSetQuantity:
		return decodeAs(raw, func(p protocol.SetQuantity) service.ItemOp {
			return service.SetQuantityOp{ID: p.ItemID, Quantity: *p.Quantity, ExpectedVersion: p.ExpectedVersion}
		})
	case service.KindCheckOut:
		return decodeAs(raw, func(p protocol.CheckOut) service.ItemOp {
			return service.CheckOutOp{ID: p.ItemID, DueDate: p.DueDate, ExpectedVersion: p.ExpectedVersion}
		})
	case service.KindCheckIn:
		return decodeAs(raw, func(p protocol.CheckIn) service.ItemOp {
			return service.CheckInOp{ID: p.ItemID, ExpectedVersion: p.ExpectedVersion}
		})
	case service.KindAddTags:
		return decodeAs(raw, func(p protocol.Tags) service.ItemOp {
			return service.AddTagsOp{ID: p.ItemID, Tags: p.Tags, ExpectedVersion: p.ExpectedVersion}
		})
	case service.KindRemoveTags:
		return decodeAs(raw, func(p protocol.Tags) service.ItemOp {
			return service.RemoveTagsOp{ID: p.ItemID, Tags: p.Tags, ExpectedVersion: p.ExpectedVersion}
		})
	case service.KindUpdateCustomFields:
		return decodeAs(raw, func(p protocol.CustomFields) service.ItemOp {
			return service.UpdateCustomFieldsOp{ID: p.ItemID, Set: p.Set, Unset: p.Unset, ExpectedVersion: p.ExpectedVersion}
		})
	case service.KindSetLowStock:
		return decodeAs(raw, func(p protocol.LowStockThreshold) service.ItemOp {
			return service.SetLowStockThresholdOp{ID: p.ItemID, Threshold: p.LowStockThreshold, ExpectedVersion: p.ExpectedVersion}
		})
	}
	return nil, apperr.Validation("unknown operation kind %q", kind)
}
