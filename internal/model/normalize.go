package model

import (
	"encoding/json"
	"math"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"haventory/internal/apperr"
)

const (
	NameMaxLength = 120
	DateLayout    = "2006-01-02"
	TimeLayout    = "2006-01-02T15:04:05Z"
)

// NewID returns a fresh hyphenated UUIDv4.
func NewID() string { return uuid.NewString() }

// ValidateID принимает только UUIDv4 в каноническом виде с дефисами.
func ValidateID(field, v string) error {
	u, err := uuid.Parse(v)
	if err != nil || u.Version() != 4 || u.String() != strings.ToLower(v) {
		return apperr.Validation("%s must be a hyphenated UUIDv4", field)
	}
	return nil
}

// ValidateName trims and checks a display name.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validation("name must be a non-empty string")
	}
	if utf8.RuneCountInString(name) > NameMaxLength {
		return "", apperr.Validation("name must be at most %d characters", NameMaxLength)
	}
	return name, nil
}

func ValidateQuantity(q int) error {
	if q < 0 {
		return apperr.Validation("quantity must be an integer >= 0")
	}
	return nil
}

func ValidateThreshold(v int) error {
	if v < 0 {
		return apperr.Validation("low_stock_threshold must be an integer >= 0 or null")
	}
	return nil
}

// ValidateDueDate enforces that a due date only exists while checked out
// and is a real calendar date.
func ValidateDueDate(checkedOut bool, due *string) (*string, error) {
	if due == nil {
		return nil, nil
	}
	if !checkedOut {
		return nil, apperr.Validation("due_date is only valid when checked_out is true")
	}
	d := strings.TrimSpace(*due)
	if _, err := time.Parse(DateLayout, d); err != nil {
		return nil, apperr.Validation("due_date must be a valid calendar date (YYYY-MM-DD)")
	}
	return &d, nil
}

// FoldText — регистронезависимая форма для сравнения (Unicode case folding).
func FoldText(s string) string {
	return cases.Fold().String(s)
}

// NormalizeSortText folds accents, collapses whitespace and case-folds.
func NormalizeSortText(s string) string {
	if s == "" {
		return ""
	}
	decomposed := norm.NFKD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}
	return FoldText(strings.Join(strings.Fields(b.String()), " "))
}

// NormalizeTags trims, folds and dedupes tags keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, raw := range tags {
		tag := FoldText(strings.TrimSpace(raw))
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

// NormalizeCategory trims; an empty category is stored as null.
func NormalizeCategory(c *string) *string {
	if c == nil {
		return nil
	}
	v := strings.TrimSpace(*c)
	if v == "" {
		return nil
	}
	return &v
}

// NormalizeCustomFields validates keys and scalar values, converting JSON numbers.
func NormalizeCustomFields(in map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(in))
	for k, v := range in {
		if strings.TrimSpace(k) == "" {
			return nil, apperr.Validation("custom_fields keys must be non-empty strings")
		}
		sv, err := normalizeScalar(v)
		if err != nil {
			return nil, err
		}
		out[k] = sv
	}
	return out, nil
}

func normalizeScalar(v any) (any, error) {
	switch x := v.(type) {
	case string, bool, int, int64, int32:
		return x, nil
	case float32:
		return normalizeScalar(float64(x))
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, errScalar()
		}
		return x, nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, errScalar()
		}
		return normalizeScalar(f)
	default:
		return nil, errScalar()
	}
}

func errScalar() error {
	return apperr.Validation("custom_fields values must be scalar (string, number, or boolean)")
}

func errNullField(field string) error {
	return apperr.Validation("%s cannot be null", field)
}

// Truncate приводит время к UTC с точностью до секунды.
func Truncate(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// NextTimestamp keeps updated_at strictly increasing for one entity.
func NextTimestamp(prev, now time.Time) time.Time {
	now = Truncate(now)
	if !now.After(prev) {
		return prev.Add(time.Second)
	}
	return now
}

// FormatTime renders a second-precision UTC timestamp with a trailing Z.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
