package repo

import (
	"fmt"
	"slices"

	"haventory/internal/apperr"
	"haventory/internal/model"
)

// State — полный снимок для персистентности.
type State struct {
	Items     map[string]model.Item     `json:"items"`
	Locations map[string]model.Location `json:"locations"`
}

// Export returns a deep copy of the current state.
func (s *Store) Export() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := State{
		Items:     make(map[string]model.Item, len(s.items)),
		Locations: make(map[string]model.Location, len(s.locations)),
	}
	for id, it := range s.items {
		st.Items[id] = it.Clone()
	}
	for id, l := range s.locations {
		st.Locations[id] = l.Clone()
	}
	return st
}

// Load replaces the state and rebuilds indexes and derived paths.
// On error the previous state is kept.
func (s *Store) Load(st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, locations := s.items, s.locations
	byLoc, children := s.itemsByLocation, s.childrenByParent
	low, out := s.lowStock, s.checkedOut

	s.reset()
	if err := s.loadLocked(st); err != nil {
		s.items, s.locations = items, locations
		s.itemsByLocation, s.childrenByParent = byLoc, children
		s.lowStock, s.checkedOut = low, out
		return err
	}
	return nil
}

func (s *Store) loadLocked(st State) error {
	for id, l := range st.Locations {
		l := l.Clone()
		if l.ID != id {
			return apperr.Validation("location key %q does not match id %q", id, l.ID)
		}
		s.locations[id] = &l
		s.indexLocation(&l)
	}
	for id := range s.locations {
		ch, err := s.chain(id)
		if err != nil {
			return fmt.Errorf("location %s: %w", id, err)
		}
		s.locations[id].Path = model.BuildPath(ch)
	}
	for id, it := range st.Items {
		it := it.Clone()
		if it.ID != id {
			return apperr.Validation("item key %q does not match id %q", id, it.ID)
		}
		path, err := s.pathFor(it.LocationID)
		if err != nil {
			return fmt.Errorf("item %s: %w", id, err)
		}
		it.LocationPath = path
		s.items[id] = &it
		s.indexItem(&it)
	}
	return nil
}

// HealthReport lists index inconsistencies found by Health.
type HealthReport struct {
	Healthy bool         `json:"healthy"`
	Issues  []string     `json:"issues"`
	Counts  model.Counts `json:"counts"`
}

// Health cross-checks secondary indexes and derived paths against primary data.
func (s *Store) Health() HealthReport {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var issues []string
	for id, it := range s.items {
		_, low := s.lowStock[id]
		if low != it.IsLowStock() {
			issues = append(issues, fmt.Sprintf("item %s: low-stock index mismatch", id))
		}
		_, co := s.checkedOut[id]
		if co != it.CheckedOut {
			issues = append(issues, fmt.Sprintf("item %s: checked-out index mismatch", id))
		}
		if it.LocationID != nil {
			if _, ok := s.itemsByLocation[*it.LocationID][id]; !ok {
				issues = append(issues, fmt.Sprintf("item %s: missing from location index", id))
			}
			path, err := s.pathFor(it.LocationID)
			if err != nil {
				issues = append(issues, fmt.Sprintf("item %s: %v", id, err))
			} else if !slices.Equal(path.IDPath, it.LocationPath.IDPath) || path.DisplayPath != it.LocationPath.DisplayPath {
				issues = append(issues, fmt.Sprintf("item %s: stale location path", id))
			}
		}
	}
	for lid, ids := range s.itemsByLocation {
		for id := range ids {
			it, ok := s.items[id]
			if !ok || it.LocationID == nil || *it.LocationID != lid {
				issues = append(issues, fmt.Sprintf("location index %s: dangling item %s", lid, id))
			}
		}
	}
	for id, l := range s.locations {
		if _, ok := s.childrenByParent[parentKey(l.ParentID)][id]; !ok {
			issues = append(issues, fmt.Sprintf("location %s: missing from children index", id))
		}
		if _, err := s.chain(id); err != nil {
			issues = append(issues, fmt.Sprintf("location %s: %v", id, err))
		}
	}
	slices.Sort(issues)
	return HealthReport{Healthy: len(issues) == 0, Issues: issues, Counts: s.countsLocked()}
}
