package areas

import (
	"slices"
	"strings"
)

// Area is one (id, name) pair from the external registry.
type Area struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Lookup — узкая read-only возможность реестра областей.
// Используется только для отображения, никогда для мутаций.
type Lookup interface {
	Resolve(id string) (name string, ok bool)
	List() []Area
}

// Static is an immutable in-process registry.
type Static struct {
	byID  map[string]string
	areas []Area
}

var _ Lookup = (*Static)(nil)

func NewStatic(list []Area) *Static {
	s := &Static{byID: make(map[string]string, len(list))}
	for _, a := range list {
		if a.ID == "" {
			continue
		}
		if _, dup := s.byID[a.ID]; dup {
			continue
		}
		s.byID[a.ID] = a.Name
		s.areas = append(s.areas, a)
	}
	slices.SortFunc(s.areas, func(a, b Area) int { return strings.Compare(a.ID, b.ID) })
	return s
}

// Parse reads "id=Name,id2=Name 2". Пустой id пропускается, имя по умолчанию равно id.
func Parse(spec string) *Static {
	var list []Area
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, name, found := strings.Cut(part, "=")
		id, name = strings.TrimSpace(id), strings.TrimSpace(name)
		if !found || name == "" {
			name = id
		}
		list = append(list, Area{ID: id, Name: name})
	}
	return NewStatic(list)
}

func (s *Static) Resolve(id string) (string, bool) {
	n, ok := s.byID[id]
	return n, ok
}

func (s *Static) List() []Area { return slices.Clone(s.areas) }

// ResolveByName finds an area id by case-insensitive name.
func ResolveByName(l Lookup, name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, a := range l.List() {
		if strings.EqualFold(a.Name, name) {
			return a.ID, true
		}
	}
	return "", false
}
