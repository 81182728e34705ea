package service

import (
	"haventory/internal/model"
	"haventory/internal/repo"
)

// LocationView — локация с именем области для отображения.
type LocationView struct {
	model.Location
	AreaName *string `json:"area_name"`
}

// TreeNode is a location tree node enriched with the area name.
type TreeNode struct {
	LocationView
	Children []TreeNode `json:"children"`
}

func (s *InventoryService) view(l model.Location) LocationView {
	v := LocationView{Location: l}
	if l.AreaID != nil {
		if name, ok := s.areas.Resolve(*l.AreaID); ok {
			v.AreaName = &name
		}
	}
	return v
}

func (s *InventoryService) CreateLocation(in model.LocationCreate) (LocationView, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	l, err := s.store.CreateLocation(in)
	if err != nil {
		return LocationView{}, err
	}
	s.pub.Publish(s.locationEvent("created", l))
	return s.view(l), s.commit(map[string]any{"location_id": l.ID})
}

// UpdateLocation renames, re-parents or re-areas a location. Items whose path changed
// are published as updated, with their previous placement attached.
func (s *InventoryService) UpdateLocation(id string, u model.LocationUpdate) (LocationView, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ch, err := s.store.UpdateLocation(id, u)
	if err != nil {
		return LocationView{}, withID(err, "location_id", id)
	}
	s.publishLocationChange(ch)
	return s.view(ch.Location), s.commit(map[string]any{"location_id": id})
}

func (s *InventoryService) MoveSubtree(id string, parentID *string) (LocationView, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	ch, err := s.store.MoveSubtree(id, parentID)
	if err != nil {
		return LocationView{}, withID(err, "location_id", id)
	}
	s.publishLocationChange(ch)
	return s.view(ch.Location), s.commit(map[string]any{"location_id": id})
}

func (s *InventoryService) publishLocationChange(ch repo.LocationChange) {
	var actions []string
	if ch.Renamed {
		actions = append(actions, "renamed")
	}
	if ch.Moved {
		actions = append(actions, "moved")
	}
	if len(actions) == 0 {
		actions = append(actions, "updated")
	}
	for _, a := range actions {
		s.pub.Publish(s.locationEvent(a, ch.Location).WithPreviousLocation(ch.Previous))
	}
	for i, it := range ch.Items {
		s.pub.Publish(s.itemEvent("updated", it).WithPreviousItem(ch.Before[i]))
	}
}

func (s *InventoryService) DeleteLocation(id string) (LocationView, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	l, err := s.store.DeleteLocation(id)
	if err != nil {
		return LocationView{}, withID(err, "location_id", id)
	}
	s.pub.Publish(s.locationEvent("deleted", l))
	return s.view(l), s.commit(map[string]any{"location_id": id})
}

func (s *InventoryService) GetLocation(id string) (LocationView, error) {
	l, err := s.store.GetLocation(id)
	if err != nil {
		return LocationView{}, withID(err, "location_id", id)
	}
	return s.view(l), nil
}

func (s *InventoryService) ListLocations(parentID *string, rootsOnly bool) []LocationView {
	ls := s.store.ListLocations(parentID, rootsOnly)
	out := make([]LocationView, 0, len(ls))
	for _, l := range ls {
		out = append(out, s.view(l))
	}
	return out
}

func (s *InventoryService) Tree() []TreeNode {
	return s.treeViews(s.store.Tree())
}

func (s *InventoryService) treeViews(nodes []repo.LocationNode) []TreeNode {
	out := make([]TreeNode, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, TreeNode{LocationView: s.view(n.Location), Children: s.treeViews(n.Children)})
	}
	return out
}
