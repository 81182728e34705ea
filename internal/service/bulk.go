package service

import (
	"haventory/internal/apperr"
	"haventory/internal/model"
)

// BulkEntry is one element of a batch. Err carries a boundary decoding failure so the
// entry is reported in order without being executed.
type BulkEntry struct {
	OpID string
	Kind Kind
	Op   ItemOp
	Err  error
}

// BulkResult — исход одной операции пакета.
type BulkResult struct {
	Success bool          `json:"success"`
	Result  *model.Item   `json:"result,omitempty"`
	Error   *apperr.Error `json:"error,omitempty"`
}

// Bulk executes entries sequentially. A failed entry neither aborts nor rolls back the
// others. Results are keyed by op id; with duplicate ids the last result wins.
// One stats event and one persistence request follow the batch if anything succeeded.
func (s *InventoryService) Bulk(entries []BulkEntry) (map[string]BulkResult, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	results := make(map[string]BulkResult, len(entries))
	succeeded := 0
	for _, e := range entries {
		op := e.Op
		err := e.Err
		if err == nil && op == nil {
			err = apperr.Validation("unsupported op kind %q", e.Kind)
		}
		var o outcome
		if err == nil {
			o, err = s.exec(op)
		}
		if err != nil {
			ae := apperr.WithContext(err, map[string]any{"op_id": e.OpID, "kind": string(e.Kind)})
			results[e.OpID] = BulkResult{Error: ae}
			continue
		}
		s.publishItem(o)
		it := o.item
		results[e.OpID] = BulkResult{Success: true, Result: &it}
		succeeded++
	}
	s.logger.Debugw("bulk executed", "ops", len(entries), "succeeded", succeeded)
	if succeeded == 0 {
		return results, nil
	}
	return results, s.commit(map[string]any{"ops": len(entries)})
}
