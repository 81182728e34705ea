package repo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"haventory/internal/apperr"
	"haventory/internal/model"
)

func TestCreateLocation_Path(t *testing.T) {
	s, _ := newTestStore(t)
	house := mustLocation(t, s, "House", nil)
	kitchen := mustLocation(t, s, "Kitchen", &house.ID)

	assert.Equal(t, []string{house.ID, kitchen.ID}, kitchen.Path.IDPath)
	assert.Equal(t, []string{"House", "Kitchen"}, kitchen.Path.NamePath)
	assert.Equal(t, "house / kitchen", kitchen.Path.SortKey)

	_, err := s.CreateLocation(model.LocationCreate{Name: "Ghost", ParentID: ptr(model.NewID())})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	_, err = s.CreateLocation(model.LocationCreate{Name: ""})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
}

func TestUpdateLocation_CycleRejected(t *testing.T) {
	s, _ := newTestStore(t)
	a := mustLocation(t, s, "A", nil)
	b := mustLocation(t, s, "B", &a.ID)
	c := mustLocation(t, s, "C", &b.ID)
	before := s.Tree()

	_, err := s.UpdateLocation(a.ID, model.LocationUpdate{ParentID: model.Set(c.ID)})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	_, err = s.MoveSubtree(a.ID, &b.ID)
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	_, err = s.UpdateLocation(a.ID, model.LocationUpdate{ParentID: model.Set(a.ID)})
	assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))

	assert.Equal(t, before, s.Tree())
	assert.True(t, s.Health().Healthy)
}

func TestUpdateLocation_RenameRefreshesItems(t *testing.T) {
	s, _ := newTestStore(t)
	house := mustLocation(t, s, "House", nil)
	kitchen := mustLocation(t, s, "Kitchen", &house.ID)
	it := mustItem(t, s, model.ItemCreate{Name: "Pan", LocationID: &kitchen.ID})
	other := mustItem(t, s, model.ItemCreate{Name: "Loose"})

	ch, err := s.UpdateLocation(house.ID, model.LocationUpdate{Name: model.Set("Home")})
	require.NoError(t, err)
	assert.True(t, ch.Renamed)
	assert.False(t, ch.Moved)
	require.Len(t, ch.Items, 1)
	assert.Equal(t, it.ID, ch.Items[0].ID)
	assert.Equal(t, int64(2), ch.Items[0].Version)
	assert.Equal(t, "Home / Kitchen", ch.Items[0].LocationPath.DisplayPath)

	k, _ := s.GetLocation(kitchen.ID)
	assert.Equal(t, "Home / Kitchen", k.Path.DisplayPath)
	o, _ := s.GetItem(other.ID)
	assert.Equal(t, int64(1), o.Version)
}

func TestMoveSubtree(t *testing.T) {
	s, _ := newTestStore(t)
	a := mustLocation(t, s, "A", nil)
	b := mustLocation(t, s, "B", nil)
	box := mustLocation(t, s, "Box", &a.ID)
	it := mustItem(t, s, model.ItemCreate{Name: "Cable", LocationID: &box.ID})

	ch, err := s.MoveSubtree(box.ID, &b.ID)
	require.NoError(t, err)
	assert.True(t, ch.Moved)
	got, _ := s.GetItem(it.ID)
	assert.Equal(t, []string{b.ID, box.ID}, got.LocationPath.IDPath)

	ch, err = s.MoveSubtree(box.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, ch.Location.ParentID)
	assert.Len(t, s.ListLocations(nil, true), 3)
}

func TestUpdateLocation_LastWriteWins(t *testing.T) {
	s, _ := newTestStore(t)
	l := mustLocation(t, s, "Attic", nil)

	// два «одновременных» редактирования без версии: второе молча перезаписывает первое
	_, err := s.UpdateLocation(l.ID, model.LocationUpdate{Name: model.Set("Loft")})
	require.NoError(t, err)
	_, err = s.UpdateLocation(l.ID, model.LocationUpdate{Name: model.Set("Storage")})
	require.NoError(t, err)

	got, _ := s.GetLocation(l.ID)
	assert.Equal(t, "Storage", got.Name)
}

func TestDeleteLocation_RejectsWhenNotEmpty(t *testing.T) {
	s, _ := newTestStore(t)
	root := mustLocation(t, s, "Shed", nil)
	child := mustLocation(t, s, "Rack", &root.ID)
	it := mustItem(t, s, model.ItemCreate{Name: "Saw", LocationID: &child.ID})

	_, err := s.DeleteLocation(root.ID)
	require.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	assert.Equal(t, 1, apperr.From(err).Context["children"])

	_, err = s.DeleteLocation(child.ID)
	require.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	assert.Equal(t, 1, apperr.From(err).Context["items"])

	_, err = s.DeleteItem(it.ID, nil)
	require.NoError(t, err)
	_, err = s.DeleteLocation(child.ID)
	require.NoError(t, err)
	_, err = s.DeleteLocation(root.ID)
	require.NoError(t, err)
	_, err = s.DeleteLocation(root.ID)
	assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
	assert.Equal(t, 0, s.Counts().LocationsTotal)
}

func TestTreeAndList(t *testing.T) {
	s, _ := newTestStore(t)
	b := mustLocation(t, s, "beta", nil)
	a := mustLocation(t, s, "Alpha", nil)
	mustLocation(t, s, "Child", &b.ID)

	tree := s.Tree()
	require.Len(t, tree, 2)
	assert.Equal(t, a.ID, tree[0].ID)
	require.Len(t, tree[1].Children, 1)
	assert.Equal(t, "Child", tree[1].Children[0].Name)

	kids := s.ListLocations(&b.ID, false)
	require.Len(t, kids, 1)
	assert.Len(t, s.ListLocations(nil, false), 3)
}

func TestExportLoad_RoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	l := mustLocation(t, s, "Cellar", nil)
	mustItem(t, s, model.ItemCreate{Name: "Wine", LocationID: &l.ID, CheckedOut: true, DueDate: ptr("2031-01-01")})
	st := s.Export()

	s2, _ := newTestStore(t)
	require.NoError(t, s2.Load(st))
	assert.Equal(t, st, s2.Export())
	assert.Equal(t, s.Counts(), s2.Counts())
	assert.True(t, s2.Health().Healthy)

	// битая ссылка на родителя не портит текущее состояние
	broken := s2.Export()
	loc := broken.Locations[l.ID]
	loc.ParentID = ptr(model.NewID())
	broken.Locations[l.ID] = loc
	assert.Error(t, s2.Load(broken))
	assert.Equal(t, st, s2.Export())
}

func TestHealth_DetectsIndexDrift(t *testing.T) {
	s, _ := newTestStore(t)
	it := mustItem(t, s, model.ItemCreate{Name: "Fuse"})
	assert.True(t, s.Health().Healthy)

	s.mu.Lock()
	s.checkedOut.add(it.ID)
	s.mu.Unlock()

	rep := s.Health()
	assert.False(t, rep.Healthy)
	assert.Len(t, rep.Issues, 1)
}
