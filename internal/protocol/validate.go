package protocol

import (
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"haventory/internal/apperr"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		// в сообщениях — имена полей из json-тегов
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// Decode unmarshals a payload into T and runs its validate tags. An empty payload
// decodes into the zero value. Every failure is a validation error.
func Decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &v); err != nil {
			return v, apperr.Validation("malformed payload: %v", err)
		}
	}
	if err := Validate(v); err != nil {
		return v, err
	}
	return v, nil
}

// Validate checks a struct against its validate tags.
func Validate(v any) error {
	if reflect.Indirect(reflect.ValueOf(v)).Kind() != reflect.Struct {
		return nil
	}
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return apperr.Validation("invalid payload: %v", err)
	}
	fe := ves[0]
	e := apperr.Validation("%s", describe(fe))
	e.Context = map[string]any{"field": fe.Field()}
	return e
}

func describe(fe validator.FieldError) string {
	f := fe.Field()
	switch fe.Tag() {
	case "required":
		return f + " is required"
	case "uuid4":
		return f + " must be a UUIDv4 string"
	case "gte":
		return f + " must be >= " + fe.Param()
	case "oneof":
		return f + " must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "datetime":
		return f + " must be a YYYY-MM-DD date"
	}
	return f + " is invalid"
}
