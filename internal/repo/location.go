package repo

import (
	"slices"
	"strings"

	"haventory/internal/apperr"
	"haventory/internal/model"
)

// LocationChange describes the outcome of a rename/move.
type LocationChange struct {
	Location model.Location
	Previous model.Location
	Renamed  bool
	Moved    bool
	// Items — предметы поддерева, у которых пересчитан location_path (версия увеличена).
	Items []model.Item
	// Before holds the same items prior to the refresh, index-aligned with Items.
	Before []model.Item
}

// LocationNode is one node of the location tree.
type LocationNode struct {
	model.Location
	Children []LocationNode `json:"children"`
}

func normalizeAreaID(a *string) *string {
	if a == nil {
		return nil
	}
	v := strings.TrimSpace(*a)
	if v == "" {
		return nil
	}
	return &v
}

func (s *Store) CreateLocation(in model.LocationCreate) (model.Location, error) {
	name, err := model.ValidateName(in.Name)
	if err != nil {
		return model.Location{}, err
	}
	if in.ParentID != nil {
		if err := model.ValidateID("parent_id", *in.ParentID); err != nil {
			return model.Location{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var chain []model.Location
	if in.ParentID != nil {
		if _, ok := s.locations[*in.ParentID]; !ok {
			return model.Location{}, apperr.Validation("parent_id must reference an existing location")
		}
		if chain, err = s.chain(*in.ParentID); err != nil {
			return model.Location{}, err
		}
	}
	loc := model.Location{
		ID:       model.NewID(),
		Name:     name,
		ParentID: in.ParentID,
		AreaID:   normalizeAreaID(in.AreaID),
	}
	loc.Path = model.BuildPath(append(chain, loc))
	loc = loc.Clone()
	s.locations[loc.ID] = &loc
	s.indexLocation(&loc)
	return loc.Clone(), nil
}

func (s *Store) GetLocation(id string) (model.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.locations[id]
	if !ok {
		return model.Location{}, apperr.NotFound("location not found")
	}
	return l.Clone(), nil
}

// UpdateLocation renames and/or re-parents a location. Last write wins: locations carry
// no version. Cycles are rejected and leave the tree unchanged.
func (s *Store) UpdateLocation(id string, u model.LocationUpdate) (LocationChange, error) {
	var name *string
	if u.Name.Set {
		if u.Name.Value == nil {
			return LocationChange{}, apperr.Validation("name cannot be null")
		}
		n, err := model.ValidateName(*u.Name.Value)
		if err != nil {
			return LocationChange{}, err
		}
		name = &n
	}
	if u.ParentID.Value != nil {
		if err := model.ValidateID("parent_id", *u.ParentID.Value); err != nil {
			return LocationChange{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.locations[id]
	if !ok {
		return LocationChange{}, apperr.NotFound("location not found")
	}
	if u.ParentID.Set {
		if err := s.checkParentLocked(id, u.ParentID.Value); err != nil {
			return LocationChange{}, err
		}
	}

	next := cur.Clone()
	ch := LocationChange{Previous: cur.Clone()}
	if name != nil && *name != cur.Name {
		next.Name = *name
		ch.Renamed = true
	}
	if u.ParentID.Set && parentKey(u.ParentID.Value) != parentKey(cur.ParentID) {
		next.ParentID = u.ParentID.Value
		ch.Moved = true
	}
	if u.AreaID.Set {
		next.AreaID = normalizeAreaID(u.AreaID.Value)
	}

	s.unindexLocation(cur)
	s.locations[id] = &next
	s.indexLocation(&next)

	if ch.Renamed || ch.Moved {
		items, before, err := s.refreshSubtreeLocked(id)
		if err != nil {
			// путь не строится — откатываем staged-изменение целиком
			s.unindexLocation(&next)
			s.locations[id] = cur
			s.indexLocation(cur)
			return LocationChange{}, err
		}
		ch.Items, ch.Before = items, before
	}
	ch.Location = s.locations[id].Clone()
	return ch, nil
}

// MoveSubtree re-parents a location together with everything beneath it.
func (s *Store) MoveSubtree(id string, newParentID *string) (LocationChange, error) {
	u := model.LocationUpdate{ParentID: model.Null[string]()}
	if newParentID != nil {
		u.ParentID = model.Set(*newParentID)
	}
	return s.UpdateLocation(id, u)
}

// checkParentLocked rejects self-parenting, descendants and unknown parents.
func (s *Store) checkParentLocked(id string, parent *string) error {
	if parent == nil {
		return nil
	}
	if *parent == id {
		return apperr.Validation("location cannot be its own parent")
	}
	if _, ok := s.locations[*parent]; !ok {
		return apperr.Validation("parent_id must reference an existing location")
	}
	cur := *parent
	for steps := 0; cur != ""; steps++ {
		if steps >= model.MaxAncestorSteps {
			return apperr.Validation("location graph too deep or cyclic")
		}
		if cur == id {
			return apperr.Validation("cannot move a location under its own descendant")
		}
		l, ok := s.locations[cur]
		if !ok {
			break
		}
		cur = parentKey(l.ParentID)
	}
	return nil
}

// subtreeLocked returns id and all its descendants, parents before children.
func (s *Store) subtreeLocked(id string) []string {
	out := []string{id}
	for i := 0; i < len(out); i++ {
		kids := make([]string, 0, len(s.childrenByParent[out[i]]))
		for k := range s.childrenByParent[out[i]] {
			kids = append(kids, k)
		}
		slices.Sort(kids)
		out = append(out, kids...)
	}
	return out
}

// refreshSubtreeLocked recomputes paths under id. Items get a version bump since
// their location_path changed.
func (s *Store) refreshSubtreeLocked(id string) (after, before []model.Item, err error) {
	ids := s.subtreeLocked(id)
	paths := make(map[string]model.LocationPath, len(ids))
	for _, lid := range ids {
		ch, err := s.chain(lid)
		if err != nil {
			return nil, nil, err
		}
		paths[lid] = model.BuildPath(ch)
	}
	for _, lid := range ids {
		s.locations[lid].Path = paths[lid]
	}

	var itemIDs []string
	for _, lid := range ids {
		for iid := range s.itemsByLocation[lid] {
			itemIDs = append(itemIDs, iid)
		}
	}
	slices.Sort(itemIDs)
	now := s.now()
	after = make([]model.Item, 0, len(itemIDs))
	before = make([]model.Item, 0, len(itemIDs))
	for _, iid := range itemIDs {
		it := s.items[iid]
		before = append(before, it.Clone())
		it.LocationPath = paths[*it.LocationID].Clone()
		it.Version++
		it.UpdatedAt = model.NextTimestamp(it.UpdatedAt, now)
		after = append(after, it.Clone())
	}
	return after, before, nil
}

// DeleteLocation rejects deletion while children or items reference the location.
func (s *Store) DeleteLocation(id string) (model.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.locations[id]
	if !ok {
		return model.Location{}, apperr.NotFound("location not found")
	}
	children, items := len(s.childrenByParent[id]), len(s.itemsByLocation[id])
	if children > 0 || items > 0 {
		e := apperr.Validation("location is not empty: %d child locations, %d items", children, items)
		e.Context = map[string]any{"children": children, "items": items}
		return model.Location{}, e
	}
	s.unindexLocation(cur)
	delete(s.locations, id)
	return cur.Clone(), nil
}

// ListLocations returns locations ordered by path sort key. With rootsOnly only
// top-level nodes are returned; with parentID only its direct children.
func (s *Store) ListLocations(parentID *string, rootsOnly bool) []model.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Location, 0, len(s.locations))
	switch {
	case parentID != nil || rootsOnly:
		for id := range s.childrenByParent[parentKey(parentID)] {
			out = append(out, s.locations[id].Clone())
		}
	default:
		for _, l := range s.locations {
			out = append(out, l.Clone())
		}
	}
	sortLocations(out)
	return out
}

func sortLocations(ls []model.Location) {
	slices.SortFunc(ls, func(a, b model.Location) int {
		if c := strings.Compare(a.Path.SortKey, b.Path.SortKey); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// Tree returns the full location forest.
func (s *Store) Tree() []LocationNode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.treeLocked("")
}

func (s *Store) treeLocked(parent string) []LocationNode {
	kids := make([]model.Location, 0, len(s.childrenByParent[parent]))
	for id := range s.childrenByParent[parent] {
		kids = append(kids, s.locations[id].Clone())
	}
	sortLocations(kids)
	out := make([]LocationNode, 0, len(kids))
	for _, k := range kids {
		out = append(out, LocationNode{Location: k, Children: s.treeLocked(k.ID)})
	}
	return out
}

// effectiveAreaLocked — area ближайшей к предмету локации на пути (включая саму).
func (s *Store) effectiveAreaLocked(p model.LocationPath) string {
	for i := len(p.IDPath) - 1; i >= 0; i-- {
		if l, ok := s.locations[p.IDPath[i]]; ok && l.AreaID != nil {
			return *l.AreaID
		}
	}
	return ""
}
