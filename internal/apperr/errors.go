package apperr

import (
	"errors"
	"fmt"
	"maps"
)

// Code — машинно-читаемый класс ошибки, уходит клиенту как есть.
type Code string

const (
	CodeValidation Code = "validation_error"
	CodeNotFound   Code = "not_found"
	CodeConflict   Code = "conflict"
	CodeStorage    Code = "storage_error"
	CodeUnknown    Code = "unknown_error"
)

// Error is the single error type crossing the service boundary.
type Error struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
	Err     error          `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so errors.Is(err, apperr.ErrConflict) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Message == "" && t.Context == nil
}

// Sentinels for errors.Is checks.
var (
	ErrValidation = &Error{Code: CodeValidation}
	ErrNotFound   = &Error{Code: CodeNotFound}
	ErrConflict   = &Error{Code: CodeConflict}
	ErrStorage    = &Error{Code: CodeStorage}
)

func newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error { return newf(CodeValidation, format, args...) }

func NotFound(format string, args ...any) *Error { return newf(CodeNotFound, format, args...) }

// Conflict builds the optimistic-concurrency rejection.
func Conflict(expected, actual int64) *Error {
	e := newf(CodeConflict, "version conflict: expected %d, actual %d", expected, actual)
	e.Context = map[string]any{"expected_version": expected, "actual_version": actual}
	return e
}

// Storage wraps a persistence failure.
func Storage(err error) *Error {
	return &Error{Code: CodeStorage, Message: fmt.Sprintf("storage failure: %v", err), Err: err}
}

func Unknown(err error) *Error {
	return &Error{Code: CodeUnknown, Message: err.Error(), Err: err}
}

// From classifies any error into *Error. Ошибки не из этого пакета считаются unknown.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Unknown(err)
}

// CodeOf returns the classification code of err.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	return From(err).Code
}

// WithContext returns a copy of err (classified) with kv merged into its context.
// Existing keys are kept; identifiers closer to the failure win.
func WithContext(err error, kv map[string]any) *Error {
	src := From(err)
	if src == nil {
		return nil
	}
	out := *src
	out.Context = make(map[string]any, len(src.Context)+len(kv))
	for k, v := range kv {
		if v == nil {
			continue
		}
		out.Context[k] = v
	}
	maps.Copy(out.Context, src.Context)
	return &out
}
