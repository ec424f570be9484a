// Package progress keeps batch progress snapshots for the automation
// orchestrator, either in the lead store or in Redis.
package progress

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach/internal/config"
	"github.com/sells-group/outreach/internal/model"
)

// Backend names.
const (
	BackendStore = "store"
	BackendRedis = "redis"
	BackendNone  = "none"
)

// Tracker records and reads batch progress.
type Tracker interface {
	StartBatch(ctx context.Context, p model.BatchProgress) error
	RecordItem(ctx context.Context, batchID string, succeeded bool) error
	FinishBatch(ctx context.Context, batchID string) error
	GetProgress(ctx context.Context, batchID string) (*model.BatchProgress, error)
}

// BatchStore is the subset of the lead store that holds progress rows.
type BatchStore interface {
	CreateBatchProgress(ctx context.Context, p model.BatchProgress) error
	IncrementBatchProgress(ctx context.Context, batchID string, succeeded bool) error
	FinishBatchProgress(ctx context.Context, batchID string, at time.Time) error
	GetBatchProgress(ctx context.Context, batchID string) (*model.BatchProgress, error)
}

// New builds the tracker selected by cfg.Backend. It returns a nil Tracker
// for the "none" backend. The returned close function is never nil.
func New(ctx context.Context, cfg config.ProgressConfig, st BatchStore) (Tracker, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case BackendStore, "":
		if st == nil {
			return nil, noop, eris.New("progress: store backend needs a store")
		}
		return NewStoreTracker(st), noop, nil
	case BackendRedis:
		rt, err := NewRedisTracker(ctx, RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      time.Duration(cfg.TTLHours) * time.Hour,
		})
		if err != nil {
			return nil, noop, err
		}
		return rt, rt.Close, nil
	case BackendNone:
		return nil, noop, nil
	default:
		return nil, noop, eris.Errorf("progress: unknown backend %q", cfg.Backend)
	}
}

// StoreTracker keeps progress in the lead store's batch_progress table.
type StoreTracker struct {
	store BatchStore
	now   func() time.Time
}

// NewStoreTracker creates a StoreTracker.
func NewStoreTracker(st BatchStore) *StoreTracker {
	return &StoreTracker{store: st, now: func() time.Time { return time.Now().UTC() }}
}

// StartBatch inserts the initial snapshot.
func (t *StoreTracker) StartBatch(ctx context.Context, p model.BatchProgress) error {
	if p.StartedAt.IsZero() {
		p.StartedAt = t.now()
	}
	return eris.Wrapf(t.store.CreateBatchProgress(ctx, p), "progress: start batch %s", p.BatchID)
}

// RecordItem counts one settled lead.
func (t *StoreTracker) RecordItem(ctx context.Context, batchID string, succeeded bool) error {
	return eris.Wrapf(t.store.IncrementBatchProgress(ctx, batchID, succeeded), "progress: record item %s", batchID)
}

// FinishBatch stamps the batch as done.
func (t *StoreTracker) FinishBatch(ctx context.Context, batchID string) error {
	return eris.Wrapf(t.store.FinishBatchProgress(ctx, batchID, t.now()), "progress: finish batch %s", batchID)
}

// GetProgress returns the stored snapshot. A missing batch yields
// model.ErrNotFound unwrapped.
func (t *StoreTracker) GetProgress(ctx context.Context, batchID string) (*model.BatchProgress, error) {
	p, err := t.store.GetBatchProgress(ctx, batchID)
	if err != nil {
		if eris.Is(err, model.ErrNotFound) {
			return nil, model.ErrNotFound
		}
		return nil, eris.Wrapf(err, "progress: get batch %s", batchID)
	}
	return p, nil
}
