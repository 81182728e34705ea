package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"haventory/internal/apperr"
	"haventory/internal/areas"
	"haventory/internal/model"
	"haventory/internal/repo"
	"haventory/internal/subscription"
)

// Publisher receives change notifications.
type Publisher interface {
	Publish(ev subscription.Event) int
}

// Persistence — две явные формы записи состояния.
type Persistence interface {
	ScheduleWrite() error
	FlushNow(ctx context.Context) error
}

// InventoryService orchestrates a mutation: store change, event fan-out, stats
// recomputation and persistence. Engines never retry; every failure is returned.
type InventoryService struct {
	// writeMu охватывает мутацию и её публикацию: события уходят в порядке версий,
	// а прочитанное до мутации состояние совпадает с тем, что было изменено
	writeMu sync.Mutex

	store   repo.Inventory
	pub     Publisher
	persist Persistence
	areas   areas.Lookup
	logger  *zap.SugaredLogger
	now     func() time.Time
}

type Option func(*InventoryService)

func WithAreas(l areas.Lookup) Option { return func(s *InventoryService) { s.areas = l } }

func WithClock(now func() time.Time) Option { return func(s *InventoryService) { s.now = now } }

func NewInventoryService(store repo.Inventory, pub Publisher, persist Persistence, logger *zap.SugaredLogger, opts ...Option) *InventoryService {
	s := &InventoryService{
		store:   store,
		pub:     pub,
		persist: persist,
		areas:   areas.NewStatic(nil),
		logger:  logger,
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *InventoryService) ts() string { return model.FormatTime(s.now()) }

func (s *InventoryService) itemEvent(action string, it model.Item) subscription.Event {
	return subscription.Event{Topic: subscription.TopicItems, Action: action, TS: s.ts(), Item: &it}
}

func (s *InventoryService) locationEvent(action string, l model.Location) subscription.Event {
	return subscription.Event{Topic: subscription.TopicLocations, Action: action, TS: s.ts(), Location: &l}
}

// publishCounts recomputes aggregates and sends one stats event.
func (s *InventoryService) publishCounts() {
	c := s.store.Counts()
	s.pub.Publish(subscription.Event{Topic: subscription.TopicStats, Action: "counts", TS: s.ts(), Counts: &c})
}

// commit runs the shared post-mutation cycle: stats, then persistence.
// In-memory state has already advanced; a persistence failure is reported, not undone.
func (s *InventoryService) commit(ids map[string]any) error {
	s.publishCounts()
	if err := s.persist.ScheduleWrite(); err != nil {
		s.logger.Errorw("persist after mutation failed", "error", err)
		return apperr.WithContext(apperr.Storage(err), ids)
	}
	return nil
}

// Flush forces a synchronous write, for explicit service-triggered save points.
func (s *InventoryService) Flush(ctx context.Context) error {
	if err := s.persist.FlushNow(ctx); err != nil {
		return apperr.From(err)
	}
	return nil
}

func (s *InventoryService) Counts() model.Counts { return s.store.Counts() }

func (s *InventoryService) Health() repo.HealthReport { return s.store.Health() }

func (s *InventoryService) Areas() []areas.Area { return s.areas.List() }

func withID(err error, key, id string) error {
	if err == nil {
		return nil
	}
	return apperr.WithContext(err, map[string]any{key: id})
}
