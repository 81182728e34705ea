package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Sink is the durable key-value persistence collaborator.
// Load returns ok=false when nothing has been saved yet.
type Sink interface {
	Load(ctx context.Context) (rec Record, ok bool, err error)
	Save(ctx context.Context, rec Record) error
	Close() error
}

// MemorySink keeps the record in process memory.
type MemorySink struct {
	mu  sync.Mutex
	rec *Record
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (m *MemorySink) Load(context.Context) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil {
		return Record{}, false, nil
	}
	return *m.rec, true, nil
}

func (m *MemorySink) Save(_ context.Context, rec Record) error {
	m.mu.Lock()
	m.rec = &rec
	m.mu.Unlock()
	return nil
}

func (m *MemorySink) Close() error { return nil }

// Open выбирает реализацию по DSN:
// memory, redis://..., postgres://... / postgresql://..., иначе путь к sqlite.
func Open(ctx context.Context, dsn, key string, logger *zap.SugaredLogger) (Sink, error) {
	switch {
	case dsn == "memory":
		logger.Warnw("persistence disabled, state lives in memory only")
		return NewMemorySink(), nil
	case strings.HasPrefix(dsn, "redis://") || strings.HasPrefix(dsn, "rediss://"):
		opts, err := redis.ParseURL(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return NewRedisSink(client, key), nil
	default:
		db, err := InitDB(dsn)
		if err != nil {
			return nil, err
		}
		return NewGormSink(db, key), nil
	}
}
