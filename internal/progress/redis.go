package progress

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach/internal/model"
)

const (
	keyPrefix  = "outreach:batch:"
	defaultTTL = 24 * time.Hour

	fieldUserID     = "user_id"
	fieldTotal      = "total"
	fieldProcessed  = "processed"
	fieldSucceeded  = "succeeded"
	fieldFailed     = "failed"
	fieldStartedAt  = "started_at"
	fieldFinishedAt = "finished_at"
)

// RedisConfig configures the Redis tracker.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// TTL bounds how long a snapshot outlives its last update. Zero means 24h.
	TTL time.Duration
}

// RedisTracker keeps one hash per batch. Counters move with HINCRBY so
// concurrent items never lose an update.
type RedisTracker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTracker connects to Redis and verifies the connection.
func NewRedisTracker(ctx context.Context, cfg RedisConfig) (*RedisTracker, error) {
	if cfg.Addr == "" {
		return nil, eris.New("progress: redis address is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, eris.Wrap(err, "progress: ping redis")
	}
	return &RedisTracker{client: client, ttl: cfg.TTL}, nil
}

// Close releases the Redis connection pool.
func (t *RedisTracker) Close() error {
	return t.client.Close()
}

// BatchKey returns the hash key of batchID.
func BatchKey(batchID string) string {
	return keyPrefix + batchID
}

// StartBatch writes the initial snapshot.
func (t *RedisTracker) StartBatch(ctx context.Context, p model.BatchProgress) error {
	if p.StartedAt.IsZero() {
		p.StartedAt = time.Now().UTC()
	}
	key := BatchKey(p.BatchID)
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, encodeProgress(p))
		pipe.Expire(ctx, key, t.ttl)
		return nil
	})
	return eris.Wrapf(err, "progress: start batch %s", p.BatchID)
}

// RecordItem counts one settled lead.
func (t *RedisTracker) RecordItem(ctx context.Context, batchID string, succeeded bool) error {
	key := BatchKey(batchID)
	outcome := fieldFailed
	if succeeded {
		outcome = fieldSucceeded
	}
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, key, fieldProcessed, 1)
		pipe.HIncrBy(ctx, key, outcome, 1)
		pipe.Expire(ctx, key, t.ttl)
		return nil
	})
	return eris.Wrapf(err, "progress: record item %s", batchID)
}

// FinishBatch stamps the batch as done.
func (t *RedisTracker) FinishBatch(ctx context.Context, batchID string) error {
	key := BatchKey(batchID)
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fieldFinishedAt, time.Now().UTC().Format(time.RFC3339Nano))
		pipe.Expire(ctx, key, t.ttl)
		return nil
	})
	return eris.Wrapf(err, "progress: finish batch %s", batchID)
}

// GetProgress reads the snapshot. An expired or unknown batch yields
// model.ErrNotFound.
func (t *RedisTracker) GetProgress(ctx context.Context, batchID string) (*model.BatchProgress, error) {
	fields, err := t.client.HGetAll(ctx, BatchKey(batchID)).Result()
	if err != nil {
		return nil, eris.Wrapf(err, "progress: get batch %s", batchID)
	}
	if len(fields) == 0 {
		return nil, model.ErrNotFound
	}
	return decodeProgress(batchID, fields)
}

func encodeProgress(p model.BatchProgress) map[string]any {
	m := map[string]any{
		fieldUserID:    p.UserID,
		fieldTotal:     p.Total,
		fieldProcessed: p.Processed,
		fieldSucceeded: p.Succeeded,
		fieldFailed:    p.Failed,
		fieldStartedAt: p.StartedAt.UTC().Format(time.RFC3339Nano),
	}
	if p.FinishedAt != nil {
		m[fieldFinishedAt] = p.FinishedAt.UTC().Format(time.RFC3339Nano)
	}
	return m
}

func decodeProgress(batchID string, fields map[string]string) (*model.BatchProgress, error) {
	p := &model.BatchProgress{BatchID: batchID, UserID: fields[fieldUserID]}

	counters := []struct {
		name string
		dst  *int
	}{
		{fieldTotal, &p.Total},
		{fieldProcessed, &p.Processed},
		{fieldSucceeded, &p.Succeeded},
		{fieldFailed, &p.Failed},
	}
	for _, c := range counters {
		v, ok := fields[c.name]
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, eris.Wrapf(err, "progress: decode %s of batch %s", c.name, batchID)
		}
		*c.dst = n
	}

	if v := fields[fieldStartedAt]; v != "" {
		ts, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, eris.Wrapf(err, "progress: decode started_at of batch %s", batchID)
		}
		p.StartedAt = ts
	}
	if v := fields[fieldFinishedAt]; v != "" {
		ts, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, eris.Wrapf(err, "progress: decode finished_at of batch %s", batchID)
		}
		p.FinishedAt = &ts
		p.Done = true
	}
	return p, nil
}
