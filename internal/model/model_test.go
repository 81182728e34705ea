package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"haventory/internal/apperr"
)

func TestNormalizeTags_Idempotent(t *testing.T) {
	got := NormalizeTags([]string{" Fruit", "fruit ", "FRUIT", "", "  ", "Snack"})
	assert.Equal(t, []string{"fruit", "snack"}, got)
	assert.Equal(t, got, NormalizeTags(got))
}

func TestNormalizeSortText(t *testing.T) {
	assert.Equal(t, "creme brulee", NormalizeSortText("  Crème   Brûlée "))
	assert.Equal(t, "", NormalizeSortText(""))
	// не-латиница не выбрасывается, только складывается регистр
	assert.Equal(t, "кухня", NormalizeSortText("Кухня"))
}

func TestValidateName(t *testing.T) {
	n, err := ValidateName("  Bananas ")
	require.NoError(t, err)
	assert.Equal(t, "Bananas", n)

	_, err = ValidateName("   ")
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	_, err = ValidateName(strings.Repeat("я", NameMaxLength))
	assert.NoError(t, err)
	_, err = ValidateName(strings.Repeat("я", NameMaxLength+1))
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

func TestValidateDueDate(t *testing.T) {
	d := "2024-02-30"
	_, err := ValidateDueDate(true, &d)
	assert.Error(t, err, "invalid calendar date")

	d = "2024-02-29"
	got, err := ValidateDueDate(true, &d)
	require.NoError(t, err)
	assert.Equal(t, "2024-02-29", *got)

	_, err = ValidateDueDate(false, &d)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	got, err = ValidateDueDate(false, nil)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestValidateID(t *testing.T) {
	id := NewID()
	assert.NoError(t, ValidateID("id", id))
	assert.NoError(t, ValidateID("id", strings.ToUpper(id)))
	assert.Error(t, ValidateID("id", strings.ReplaceAll(id, "-", "")))
	assert.Error(t, ValidateID("id", "not-a-uuid"))
	// v1 uuid отклоняется
	assert.Error(t, ValidateID("id", "6ba7b810-9dad-11d1-80b4-00c04fd430c8"))
}

func TestNormalizeCustomFields(t *testing.T) {
	got, err := NormalizeCustomFields(map[string]any{"color": "red", "size": 2.5, "ok": true, "n": json.Number("3")})
	require.NoError(t, err)
	assert.Equal(t, int64(3), got["n"])

	_, err = NormalizeCustomFields(map[string]any{" ": "x"})
	assert.Error(t, err)
	_, err = NormalizeCustomFields(map[string]any{"nested": map[string]any{}})
	assert.Error(t, err)
	_, err = NormalizeCustomFields(map[string]any{"nil": nil})
	assert.Error(t, err)
}

func TestField_JSON(t *testing.T) {
	var u ItemUpdate
	require.NoError(t, json.Unmarshal([]byte(`{"name":"X","description":null}`), &u))
	assert.True(t, u.Name.Set)
	assert.Equal(t, "X", *u.Name.Value)
	assert.True(t, u.Description.IsNull())
	assert.False(t, u.Quantity.Set)

	b, err := json.Marshal(ItemUpdate{Name: Set("Y"), Category: Null[string]()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Y","category":null}`, string(b))

	// дробное количество не проходит декодирование
	assert.Error(t, json.Unmarshal([]byte(`{"quantity":1.5}`), &u))
}

func TestItemUpdate_Apply(t *testing.T) {
	desc := "old"
	base := Item{ID: NewID(), Name: "Drill", Description: &desc, Quantity: 2, Tags: []string{"tools"}}

	t.Run("null clears nullable, absent keeps", func(t *testing.T) {
		out, err := ItemUpdate{Description: Null[string]()}.Apply(base)
		require.NoError(t, err)
		assert.Nil(t, out.Description)
		assert.Equal(t, "Drill", out.Name)
		assert.Equal(t, "old", *base.Description, "source untouched")
	})

	t.Run("null on required field rejected", func(t *testing.T) {
		_, err := ItemUpdate{Name: Null[string]()}.Apply(base)
		assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	})

	t.Run("due date requires checked out", func(t *testing.T) {
		_, err := ItemUpdate{DueDate: Set("2030-01-01")}.Apply(base)
		assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

		out, err := ItemUpdate{CheckedOut: Set(true), DueDate: Set("2030-01-01")}.Apply(base)
		require.NoError(t, err)
		assert.Equal(t, "2030-01-01", *out.DueDate)
	})

	t.Run("tags normalised", func(t *testing.T) {
		out, err := ItemUpdate{Tags: Set([]string{"A", "a", " b"})}.Apply(base)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, out.Tags)
	})

	t.Run("negative quantity", func(t *testing.T) {
		_, err := ItemUpdate{Quantity: Set(-1)}.Apply(base)
		assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	})
}

func TestNextTimestamp_Monotonic(t *testing.T) {
	prev := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, prev.Add(time.Second), NextTimestamp(prev, prev))
	assert.Equal(t, prev.Add(time.Second), NextTimestamp(prev, prev.Add(-time.Hour)))
	later := prev.Add(time.Minute + 300*time.Millisecond)
	assert.Equal(t, prev.Add(time.Minute), NextTimestamp(prev, later))
	assert.Equal(t, "2024-01-01T10:00:00Z", FormatTime(prev))
}

func TestBuildPath(t *testing.T) {
	root := Location{ID: "r", Name: "Garage"}
	shelf := Location{ID: "s", Name: "Shelf  Á"}
	p := BuildPath([]Location{root, shelf})
	assert.Equal(t, []string{"r", "s"}, p.IDPath)
	assert.Equal(t, "Garage / Shelf  Á", p.DisplayPath)
	assert.Equal(t, "garage / shelf a", p.SortKey)
	assert.Equal(t, "s", p.Leaf())
	assert.Equal(t, "", EmptyPath().Leaf())
}

func TestSort_Normalize(t *testing.T) {
	s, err := Sort{}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, Sort{Field: SortUpdatedAt, Order: OrderDesc}, s)

	s, err = Sort{Field: SortName}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, OrderAsc, s.Order)

	_, err = Sort{Field: "color"}.Normalize()
	assert.Error(t, err)
	_, err = Sort{Field: SortName, Order: "up"}.Normalize()
	assert.Error(t, err)
}

func TestItem_CloneIsDeep(t *testing.T) {
	it := Item{Tags: []string{"a"}, CustomFields: map[string]any{"k": "v"}}
	c := it.Clone()
	c.Tags[0] = "b"
	c.CustomFields["k"] = "w"
	assert.Equal(t, "a", it.Tags[0])
	assert.Equal(t, "v", it.CustomFields["k"])
}
