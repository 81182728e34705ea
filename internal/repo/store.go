package repo

import (
	"sync"
	"time"

	"haventory/internal/apperr"
	"haventory/internal/model"
)

// ItemRepository — мутации и чтение предметов.
type ItemRepository interface {
	CreateItem(in model.ItemCreate) (model.Item, error)
	GetItem(id string) (model.Item, error)
	UpdateItem(id string, u model.ItemUpdate, expected *int64) (model.Item, error)
	DeleteItem(id string, expected *int64) (model.Item, error)
	AdjustQuantity(id string, delta int, expected *int64) (model.Item, error)
	SetQuantity(id string, quantity int, expected *int64) (model.Item, error)
	CheckOut(id string, dueDate *string, expected *int64) (model.Item, error)
	CheckIn(id string, expected *int64) (model.Item, error)
	AddTags(id string, tags []string, expected *int64) (model.Item, error)
	RemoveTags(id string, tags []string, expected *int64) (model.Item, error)
	UpdateCustomFields(id string, set map[string]any, unset []string, expected *int64) (model.Item, error)
	SetLowStockThreshold(id string, threshold *int, expected *int64) (model.Item, error)
	MoveItem(id string, locationID *string, expected *int64) (model.Item, error)
	ListItems(q ItemQuery) (Page, error)
}

// LocationRepository — мутации и чтение дерева локаций.
type LocationRepository interface {
	CreateLocation(in model.LocationCreate) (model.Location, error)
	GetLocation(id string) (model.Location, error)
	UpdateLocation(id string, u model.LocationUpdate) (LocationChange, error)
	MoveSubtree(id string, newParentID *string) (LocationChange, error)
	DeleteLocation(id string) (model.Location, error)
	ListLocations(parentID *string, rootsOnly bool) []model.Location
	Tree() []LocationNode
}

// Inventory is everything the service layer needs from the store.
type Inventory interface {
	ItemRepository
	LocationRepository
	Counts() model.Counts
	Health() HealthReport
	Export() State
	Load(st State) error
}

var _ Inventory = (*Store)(nil)

// Clock returns the current time; tests substitute a fixed clock.
type Clock func() time.Time

type set map[string]struct{}

func (s set) add(id string)    { s[id] = struct{}{} }
func (s set) remove(id string) { delete(s, id) }

// Store is the in-memory authoritative state with secondary indexes.
// Every mutation runs its read-check-write under the exclusive lock.
type Store struct {
	mu sync.RWMutex

	items     map[string]*model.Item
	locations map[string]*model.Location

	itemsByLocation  map[string]set
	childrenByParent map[string]set // "" — корневые локации
	lowStock         set
	checkedOut       set

	now     Clock
	cursors *CursorCodec
}

type Option func(*Store)

// WithClock overrides time.Now.
func WithClock(c Clock) Option { return func(s *Store) { s.now = c } }

// WithCursorSecret sets the HMAC secret for cursor tokens.
func WithCursorSecret(secret string) Option {
	return func(s *Store) { s.cursors = NewCursorCodec(secret) }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{now: time.Now}
	s.reset()
	for _, o := range opts {
		o(s)
	}
	if s.cursors == nil {
		s.cursors = NewCursorCodec("")
	}
	return s
}

func (s *Store) reset() {
	s.items = map[string]*model.Item{}
	s.locations = map[string]*model.Location{}
	s.itemsByLocation = map[string]set{}
	s.childrenByParent = map[string]set{}
	s.lowStock = set{}
	s.checkedOut = set{}
}

func (s *Store) indexItem(it *model.Item) {
	if it.LocationID != nil {
		m := s.itemsByLocation[*it.LocationID]
		if m == nil {
			m = set{}
			s.itemsByLocation[*it.LocationID] = m
		}
		m.add(it.ID)
	}
	if it.IsLowStock() {
		s.lowStock.add(it.ID)
	}
	if it.CheckedOut {
		s.checkedOut.add(it.ID)
	}
}

func (s *Store) unindexItem(it *model.Item) {
	if it.LocationID != nil {
		if m := s.itemsByLocation[*it.LocationID]; m != nil {
			m.remove(it.ID)
			if len(m) == 0 {
				delete(s.itemsByLocation, *it.LocationID)
			}
		}
	}
	s.lowStock.remove(it.ID)
	s.checkedOut.remove(it.ID)
}

func parentKey(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func (s *Store) indexLocation(l *model.Location) {
	k := parentKey(l.ParentID)
	m := s.childrenByParent[k]
	if m == nil {
		m = set{}
		s.childrenByParent[k] = m
	}
	m.add(l.ID)
}

func (s *Store) unindexLocation(l *model.Location) {
	k := parentKey(l.ParentID)
	if m := s.childrenByParent[k]; m != nil {
		m.remove(l.ID)
		if len(m) == 0 {
			delete(s.childrenByParent, k)
		}
	}
}

// chain returns the ancestor chain root -> id.
func (s *Store) chain(id string) ([]model.Location, error) {
	var rev []model.Location
	cur := id
	for steps := 0; cur != ""; steps++ {
		if steps >= model.MaxAncestorSteps {
			return nil, apperr.Validation("location graph too deep or cyclic")
		}
		l, ok := s.locations[cur]
		if !ok {
			return nil, apperr.Validation("location_id must reference an existing location chain")
		}
		rev = append(rev, *l)
		cur = parentKey(l.ParentID)
	}
	out := make([]model.Location, len(rev))
	for i, l := range rev {
		out[len(rev)-1-i] = l
	}
	return out, nil
}

// pathFor resolves the location path of an item placed at locID.
func (s *Store) pathFor(locID *string) (model.LocationPath, error) {
	if locID == nil {
		return model.EmptyPath(), nil
	}
	if _, ok := s.locations[*locID]; !ok {
		return model.LocationPath{}, apperr.Validation("location_id must reference an existing location")
	}
	ch, err := s.chain(*locID)
	if err != nil {
		return model.LocationPath{}, err
	}
	return model.BuildPath(ch), nil
}

// Counts returns the aggregate counters.
func (s *Store) Counts() model.Counts {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countsLocked()
}

func (s *Store) countsLocked() model.Counts {
	return model.Counts{
		ItemsTotal:      len(s.items),
		LowStockCount:   len(s.lowStock),
		CheckedOutCount: len(s.checkedOut),
		LocationsTotal:  len(s.locations),
	}
}
