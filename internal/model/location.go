package model

import (
	"slices"
	"strings"
)

// MaxAncestorSteps bounds parent walks; exceeding it means a corrupt parent graph.
const MaxAncestorSteps = 10000

const pathSeparator = " / "

// LocationPath — денормализованный путь от корня до локации.
type LocationPath struct {
	IDPath      []string `json:"id_path"`
	NamePath    []string `json:"name_path"`
	DisplayPath string   `json:"display_path"`
	SortKey     string   `json:"sort_key"`
}

func (p LocationPath) Clone() LocationPath {
	out := p
	out.IDPath = slices.Clone(p.IDPath)
	out.NamePath = slices.Clone(p.NamePath)
	if out.IDPath == nil {
		out.IDPath = []string{}
	}
	if out.NamePath == nil {
		out.NamePath = []string{}
	}
	return out
}

// Contains reports whether id is on the path.
func (p LocationPath) Contains(id string) bool {
	return slices.Contains(p.IDPath, id)
}

// Leaf returns the last id on the path or "" for an empty path.
func (p LocationPath) Leaf() string {
	if len(p.IDPath) == 0 {
		return ""
	}
	return p.IDPath[len(p.IDPath)-1]
}

// EmptyPath is the path of an unplaced item.
func EmptyPath() LocationPath {
	return LocationPath{IDPath: []string{}, NamePath: []string{}}
}

// BuildPath builds a path from a chain ordered root -> leaf.
func BuildPath(chain []Location) LocationPath {
	if len(chain) == 0 {
		return EmptyPath()
	}
	p := LocationPath{
		IDPath:   make([]string, 0, len(chain)),
		NamePath: make([]string, 0, len(chain)),
	}
	for _, l := range chain {
		p.IDPath = append(p.IDPath, l.ID)
		p.NamePath = append(p.NamePath, l.Name)
	}
	p.DisplayPath = strings.Join(p.NamePath, pathSeparator)
	p.SortKey = NormalizeSortText(p.DisplayPath)
	return p
}

// Location — узел дерева размещения.
type Location struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	ParentID *string      `json:"parent_id"`
	AreaID   *string      `json:"area_id"`
	Path     LocationPath `json:"path"`
}

func (l Location) Clone() Location {
	out := l
	out.ParentID = clonePtr(l.ParentID)
	out.AreaID = clonePtr(l.AreaID)
	out.Path = l.Path.Clone()
	return out
}

type LocationCreate struct {
	Name     string  `json:"name" validate:"required"`
	ParentID *string `json:"parent_id,omitempty" validate:"omitempty,uuid4"`
	AreaID   *string `json:"area_id,omitempty"`
}

// LocationUpdate follows the same tri-state rules as ItemUpdate.
type LocationUpdate struct {
	Name     Field[string] `json:"name,omitzero"`
	ParentID Field[string] `json:"parent_id,omitzero"`
	AreaID   Field[string] `json:"area_id,omitzero"`
}

// Counts — агрегаты для топика stats.
type Counts struct {
	ItemsTotal      int `json:"items_total"`
	LowStockCount   int `json:"low_stock_count"`
	CheckedOutCount int `json:"checked_out_count"`
	LocationsTotal  int `json:"locations_total"`
}
