package storage

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"haventory/internal/apperr"
	"haventory/internal/repo"
)

// StateSource provides the full state to persist.
type StateSource interface {
	Export() repo.State
}

// Persister has two write modes: ScheduleWrite coalesces writes within the debounce
// window, FlushNow writes synchronously. Debounce 0 turns every schedule into a flush.
type Persister struct {
	sink     Sink
	source   StateSource
	debounce time.Duration
	logger   *zap.SugaredLogger

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	lastErr error

	// writeMu сериализует записи в sink
	writeMu sync.Mutex
}

func NewPersister(sink Sink, source StateSource, debounce time.Duration, logger *zap.SugaredLogger) *Persister {
	return &Persister{sink: sink, source: source, debounce: debounce, logger: logger}
}

// Load reads and decodes the persisted state. ok=false means a fresh store.
func (p *Persister) Load(ctx context.Context) (repo.State, bool, error) {
	rec, ok, err := p.sink.Load(ctx)
	if err != nil {
		return repo.State{}, false, apperr.Storage(err)
	}
	if !ok {
		return repo.State{}, false, nil
	}
	st, err := Decode(rec)
	if err != nil {
		return repo.State{}, false, err
	}
	return st, true, nil
}

// ScheduleWrite requests a write. It returns the error of the most recent failed write
// (if no write has succeeded since), so callers learn about a sink that is down.
func (p *Persister) ScheduleWrite() error {
	if p.debounce <= 0 {
		return p.FlushNow(context.Background())
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = true
	if p.timer == nil {
		p.timer = time.AfterFunc(p.debounce, p.fire)
	}
	if p.lastErr != nil {
		return apperr.Storage(p.lastErr)
	}
	return nil
}

func (p *Persister) fire() {
	p.mu.Lock()
	p.timer = nil
	p.mu.Unlock()
	if err := p.FlushNow(context.Background()); err != nil {
		p.logger.Errorw("debounced persist failed", "error", err)
	}
}

// FlushNow cancels a pending debounced write and persists the current state,
// blocking until the sink reports durability.
func (p *Persister) FlushNow(ctx context.Context) error {
	p.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.pending = false
	p.mu.Unlock()

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	rec, err := Encode(p.source.Export())
	if err == nil {
		err = p.sink.Save(ctx, rec)
	}

	p.mu.Lock()
	p.lastErr = err
	p.mu.Unlock()
	if err != nil {
		return apperr.Storage(err)
	}
	return nil
}

// Pending reports whether a debounced write is outstanding.
func (p *Persister) Pending() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

// Close flushes outstanding state and closes the sink.
func (p *Persister) Close(ctx context.Context) error {
	err := p.FlushNow(ctx)
	if cerr := p.sink.Close(); err == nil && cerr != nil {
		err = apperr.Storage(cerr)
	}
	return err
}
