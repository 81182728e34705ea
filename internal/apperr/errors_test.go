package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(nil))
	assert.Equal(t, CodeValidation, CodeOf(Validation("bad %s", "name")))
	assert.Equal(t, CodeConflict, CodeOf(fmt.Errorf("wrapped: %w", Conflict(1, 2))))
	assert.Equal(t, CodeUnknown, CodeOf(errors.New("boom")))
}

func TestConflict_MessageAndContext(t *testing.T) {
	err := Conflict(3, 5)
	assert.Equal(t, "version conflict: expected 3, actual 5", err.Error())
	assert.Equal(t, int64(3), err.Context["expected_version"])
	assert.Equal(t, int64(5), err.Context["actual_version"])
	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestWithContext_DoesNotMutateSource(t *testing.T) {
	src := NotFound("item not found")
	got := WithContext(src, map[string]any{"op": "item/get", "item_id": "x", "skip": nil})

	assert.Equal(t, "item/get", got.Context["op"])
	assert.Equal(t, "x", got.Context["item_id"])
	assert.NotContains(t, got.Context, "skip")
	assert.Nil(t, src.Context)

	// ключи самой ошибки приоритетнее внешних
	c := WithContext(Conflict(1, 2), map[string]any{"expected_version": int64(99)})
	assert.Equal(t, int64(1), c.Context["expected_version"])
}

func TestStorage_Unwraps(t *testing.T) {
	base := errors.New("disk full")
	err := Storage(base)
	assert.True(t, errors.Is(err, base))
	assert.True(t, errors.Is(err, ErrStorage))
	assert.Contains(t, err.Error(), "disk full")
}
