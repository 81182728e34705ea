package model

import (
	"bytes"
	"encoding/json"
)

// Field — трёхзначное поле патча: отсутствует / null / значение.
// Отсутствующее поле пропускается при маршалинге через тег omitzero.
type Field[T any] struct {
	Set   bool
	Value *T
}

// Set returns a field carrying v.
func Set[T any](v T) Field[T] { return Field[T]{Set: true, Value: &v} }

// Null returns an explicit null field.
func Null[T any]() Field[T] { return Field[T]{Set: true} }

// IsZero reports an absent field.
func (f Field[T]) IsZero() bool { return !f.Set }

func (f Field[T]) IsNull() bool { return f.Set && f.Value == nil }

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if f.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*f.Value)
}

func (f *Field[T]) UnmarshalJSON(b []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		f.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	f.Value = &v
	return nil
}
