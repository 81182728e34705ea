package repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"haventory/internal/apperr"
	"haventory/internal/model"
)

func TestCreateItem_Defaults(t *testing.T) {
	s, clk := newTestStore(t)
	it := mustItem(t, s, model.ItemCreate{Name: "  Bananas ", Tags: []string{"Fruit", "fruit"}})

	assert.NoError(t, model.ValidateID("id", it.ID))
	assert.Equal(t, "Bananas", it.Name)
	assert.Equal(t, 1, it.Quantity)
	assert.Equal(t, int64(1), it.Version)
	assert.Equal(t, []string{"fruit"}, it.Tags)
	assert.Equal(t, clk.Now(), it.CreatedAt)
	assert.Equal(t, it.CreatedAt, it.UpdatedAt)
	assert.Empty(t, it.LocationPath.IDPath)
}

func TestCreateItem_Validation(t *testing.T) {
	s, _ := newTestStore(t)
	cases := map[string]model.ItemCreate{
		"empty name":          {Name: " "},
		"negative quantity":   {Name: "x", Quantity: ptr(-1)},
		"due without checkout": {Name: "x", DueDate: ptr("2030-01-01")},
		"bad location id":     {Name: "x", LocationID: ptr("nope")},
		"unknown location":    {Name: "x", LocationID: ptr(model.NewID())},
		"negative threshold":  {Name: "x", LowStockThreshold: ptr(-2)},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := s.CreateItem(in)
			assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
		})
	}
	assert.Equal(t, 0, s.Counts().ItemsTotal)
}

func TestVersion_IncrementsByOnePerMutation(t *testing.T) {
	s, clk := newTestStore(t)
	loc := mustLocation(t, s, "Pantry", nil)
	it := mustItem(t, s, model.ItemCreate{Name: "Rice"})

	steps := []func() (model.Item, error){
		func() (model.Item, error) { return s.UpdateItem(it.ID, model.ItemUpdate{Name: model.Set("Brown rice")}, nil) },
		func() (model.Item, error) { return s.AdjustQuantity(it.ID, 4, nil) },
		func() (model.Item, error) { return s.SetQuantity(it.ID, 2, nil) },
		func() (model.Item, error) { return s.CheckOut(it.ID, ptr("2030-02-01"), nil) },
		func() (model.Item, error) { return s.CheckIn(it.ID, nil) },
		func() (model.Item, error) { return s.AddTags(it.ID, []string{"grain"}, nil) },
		func() (model.Item, error) { return s.RemoveTags(it.ID, []string{"absent"}, nil) },
		func() (model.Item, error) { return s.UpdateCustomFields(it.ID, map[string]any{"k": "v"}, nil, nil) },
		func() (model.Item, error) { return s.SetLowStockThreshold(it.ID, ptr(1), nil) },
		func() (model.Item, error) { return s.MoveItem(it.ID, &loc.ID, nil) },
	}
	prev := it.UpdatedAt
	for i, step := range steps {
		got, err := step()
		require.NoError(t, err, "step %d", i)
		assert.Equal(t, int64(i+2), got.Version, "step %d", i)
		assert.True(t, got.UpdatedAt.After(prev), "updated_at must grow even with a frozen clock")
		prev = got.UpdatedAt
	}
	clk.Advance(time.Hour)
	got, err := s.GetItem(it.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1+len(steps)), got.Version)
}

func TestStaleExpectedVersion_Conflict(t *testing.T) {
	s, _ := newTestStore(t)
	it := mustItem(t, s, model.ItemCreate{Name: "Lamp"})
	_, err := s.UpdateItem(it.ID, model.ItemUpdate{Name: model.Set("Desk lamp")}, ptr(int64(1)))
	require.NoError(t, err)

	before, _ := s.GetItem(it.ID)
	_, err = s.UpdateItem(it.ID, model.ItemUpdate{Name: model.Set("Floor lamp")}, ptr(int64(1)))
	require.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))
	assert.EqualError(t, err, "version conflict: expected 1, actual 2")

	_, err = s.DeleteItem(it.ID, ptr(int64(1)))
	assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))

	after, _ := s.GetItem(it.ID)
	assert.Equal(t, before, after)
}

func TestAdjustQuantity_RejectsNegative(t *testing.T) {
	s, _ := newTestStore(t)
	it := mustItem(t, s, model.ItemCreate{Name: "Eggs", Quantity: ptr(2)})

	_, err := s.AdjustQuantity(it.ID, -3, nil)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	got, _ := s.GetItem(it.ID)
	assert.Equal(t, 2, got.Quantity)
	assert.Equal(t, int64(1), got.Version)

	got, err = s.AdjustQuantity(it.ID, -2, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Quantity)
}

func TestTags_AddTwiceStoresOnce(t *testing.T) {
	s, _ := newTestStore(t)
	it := mustItem(t, s, model.ItemCreate{Name: "Tape"})

	_, err := s.AddTags(it.ID, []string{" Sticky"}, nil)
	require.NoError(t, err)
	got, err := s.AddTags(it.ID, []string{"STICKY "}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"sticky"}, got.Tags)

	got, err = s.RemoveTags(it.ID, []string{"Sticky", "missing"}, nil)
	require.NoError(t, err)
	assert.Empty(t, got.Tags)
}

func TestCustomFields_Merge(t *testing.T) {
	s, _ := newTestStore(t)
	it := mustItem(t, s, model.ItemCreate{Name: "Paint", CustomFields: map[string]any{"color": "red", "size": 1.0}})

	got, err := s.UpdateCustomFields(it.ID, map[string]any{"color": "blue", "glossy": true}, []string{"size", "unknown"}, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"color": "blue", "glossy": true}, got.CustomFields)

	_, err = s.UpdateCustomFields(it.ID, map[string]any{"bad": []int{1}}, nil, nil)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

func TestCheckOutCheckIn(t *testing.T) {
	s, _ := newTestStore(t)
	it := mustItem(t, s, model.ItemCreate{Name: "Ladder"})

	got, err := s.CheckOut(it.ID, ptr("2030-13-01"), nil)
	assert.Error(t, err)

	got, err = s.CheckOut(it.ID, ptr("2030-01-31"), nil)
	require.NoError(t, err)
	assert.True(t, got.CheckedOut)
	assert.Equal(t, 1, s.Counts().CheckedOutCount)

	// снять checked_out через update, оставив due_date, нельзя
	_, err = s.UpdateItem(it.ID, model.ItemUpdate{CheckedOut: model.Set(false)}, nil)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	got, err = s.CheckIn(it.ID, nil)
	require.NoError(t, err)
	assert.False(t, got.CheckedOut)
	assert.Nil(t, got.DueDate)
	assert.Equal(t, 0, s.Counts().CheckedOutCount)
}

func TestDeleteItem_ReturnsSnapshot(t *testing.T) {
	s, _ := newTestStore(t)
	it := mustItem(t, s, model.ItemCreate{Name: "Old phone", LowStockThreshold: ptr(5)})
	assert.Equal(t, 1, s.Counts().LowStockCount)

	got, err := s.DeleteItem(it.ID, ptr(int64(1)))
	require.NoError(t, err)
	assert.Equal(t, it, got)

	_, err = s.GetItem(it.ID)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
	_, err = s.DeleteItem(it.ID, nil)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
	assert.Equal(t, model.Counts{}, s.Counts())
}

func TestMoveItem_RecomputesPath(t *testing.T) {
	s, _ := newTestStore(t)
	garage := mustLocation(t, s, "Garage", nil)
	shelf := mustLocation(t, s, "Shelf", &garage.ID)
	it := mustItem(t, s, model.ItemCreate{Name: "Hammer"})

	got, err := s.MoveItem(it.ID, &shelf.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{garage.ID, shelf.ID}, got.LocationPath.IDPath)
	assert.Equal(t, "Garage / Shelf", got.LocationPath.DisplayPath)

	got, err = s.MoveItem(it.ID, nil, nil)
	require.NoError(t, err)
	assert.Nil(t, got.LocationID)
	assert.Empty(t, got.LocationPath.IDPath)

	_, err = s.MoveItem(it.ID, ptr(model.NewID()), nil)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

func TestConcurrentUpdates_NoLostVersions(t *testing.T) {
	s, _ := newTestStore(t)
	it := mustItem(t, s, model.ItemCreate{Name: "Counter", Quantity: ptr(0)})

	const n = 50
	done := make(chan struct{})
	for i := 0; i < n; i++ {
		go func() {
			_, _ = s.AdjustQuantity(it.ID, 1, nil)
			done <- struct{}{}
		}()
	}
	for i := 0; i < n; i++ {
		<-done
	}
	got, _ := s.GetItem(it.ID)
	assert.Equal(t, n, got.Quantity)
	assert.Equal(t, int64(1+n), got.Version)
}
