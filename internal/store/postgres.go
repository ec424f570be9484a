package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it in
// tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	leads   leadTable
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool reading and
// writing the lead table of schema.
func NewPostgres(ctx context.Context, connString string, schema Schema, poolCfg *PoolConfig) (*PostgresStore, error) {
	table, err := tableFor(schema)
	if err != nil {
		return nil, err
	}

	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, leads: table, closeFn: pool.Close}, nil
}

func postgresMigration(t leadTable) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id       TEXT NOT NULL,
	website       TEXT,
	%[2]s          TEXT,
	%[3]s         TEXT,
	status        TEXT NOT NULL DEFAULT '%[4]s',
	source        TEXT NOT NULL DEFAULT '%[5]s',
	subject       TEXT,
	body          TEXT,
	error_message TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_%[1]s_user_status ON %[1]s(user_id, status);

CREATE TABLE IF NOT EXISTS product_materials (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	user_id    TEXT NOT NULL,
	name       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_product_materials_user ON product_materials(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS batch_progress (
	batch_id    TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	total       INTEGER NOT NULL,
	processed   INTEGER NOT NULL DEFAULT 0,
	succeeded   INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at TIMESTAMPTZ
);
`, t.name, t.nameCol, t.emailCol, t.status(model.LeadStatusPending), t.source(model.DefaultLeadSource))
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration(s.leads))
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateLead(ctx context.Context, lead model.Lead) (*model.Lead, error) {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	if lead.Status == "" {
		lead.Status = model.LeadStatusPending
	}
	if lead.Source == "" {
		lead.Source = model.DefaultLeadSource
	}
	lead.UpdatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, user_id, website, %s, %s, status, source, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
			s.leads.name, s.leads.nameCol, s.leads.emailCol),
		lead.ID, lead.UserID, nullString(lead.Website), nullString(lead.Name), nullString(lead.Email),
		s.leads.status(lead.Status), s.leads.source(lead.Source), lead.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert lead")
	}
	return &lead, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, s.leads.selectColumns(), s.leads.name),
		id,
	)
	lead, err := s.leads.scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}
	return lead, nil
}

func (s *PostgresStore) ListPending(ctx context.Context, userID string) ([]model.Lead, error) {
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = $1 AND status = $2 ORDER BY created_at, id`,
			s.leads.selectColumns(), s.leads.name),
		userID, s.leads.status(model.LeadStatusPending),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pending leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		lead, err := s.leads.scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list pending leads iterate")
}

// MarkProcessing moves the given leads to processing and clears any error left
// by a previous run.
func (s *PostgresStore) MarkProcessing(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET status = $1, error_message = NULL, updated_at = $2 WHERE id = ANY($3)`, s.leads.name),
		s.leads.status(model.LeadStatusProcessing), time.Now().UTC(), ids,
	)
	return eris.Wrap(err, "postgres: mark processing")
}

// MarkResult writes a terminal outcome. A completed result replaces subject
// and body and clears the error; a failed result keeps any earlier draft.
func (s *PostgresStore) MarkResult(ctx context.Context, id, userID string, r model.LeadResult) error {
	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET status = $1, subject = COALESCE($2, subject), body = COALESCE($3, body), error_message = $4, updated_at = $5 WHERE id = $6 AND user_id = $7`, s.leads.name),
		s.leads.status(r.Status), nullString(r.Subject), nullString(r.Body), nullString(r.ErrorMessage),
		time.Now().UTC(), id, userID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark result %s", id)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListProductContext(ctx context.Context, userID string, limit int) ([]model.ProductMaterial, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, created_at FROM product_materials WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list product materials")
	}
	defer rows.Close()

	var out []model.ProductMaterial
	for rows.Next() {
		var m model.ProductMaterial
		if err := rows.Scan(&m.ID, &m.UserID, &m.Name, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan product material")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list product materials iterate")
}

func (s *PostgresStore) AddProductMaterial(ctx context.Context, userID, name string) (*model.ProductMaterial, error) {
	m := model.ProductMaterial{ID: uuid.New().String(), UserID: userID, Name: name, CreatedAt: time.Now().UTC()}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO product_materials (id, user_id, name, created_at) VALUES ($1, $2, $3, $4)`,
		m.ID, m.UserID, m.Name, m.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: add product material")
	}
	return &m, nil
}

func (s *PostgresStore) CreateBatchProgress(ctx context.Context, p model.BatchProgress) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO batch_progress (batch_id, user_id, total, started_at) VALUES ($1, $2, $3, $4)`,
		p.BatchID, p.UserID, p.Total, p.StartedAt,
	)
	return eris.Wrapf(err, "postgres: create batch progress %s", p.BatchID)
}

func (s *PostgresStore) IncrementBatchProgress(ctx context.Context, batchID string, succeeded bool) error {
	ok, failed := progressDelta(succeeded)
	tag, err := s.pool.Exec(ctx,
		`UPDATE batch_progress SET processed = processed + 1, succeeded = succeeded + $1, failed = failed + $2 WHERE batch_id = $3`,
		ok, failed, batchID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: increment batch progress %s", batchID)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FinishBatchProgress(ctx context.Context, batchID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE batch_progress SET finished_at = $1 WHERE batch_id = $2`,
		at, batchID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish batch progress %s", batchID)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetBatchProgress(ctx context.Context, batchID string) (*model.BatchProgress, error) {
	var p model.BatchProgress
	err := s.pool.QueryRow(ctx,
		`SELECT batch_id, user_id, total, processed, succeeded, failed, started_at, finished_at FROM batch_progress WHERE batch_id = $1`,
		batchID,
	).Scan(&p.BatchID, &p.UserID, &p.Total, &p.Processed, &p.Succeeded, &p.Failed, &p.StartedAt, &p.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get batch progress %s", batchID)
	}
	p.Done = p.FinishedAt != nil
	return &p, nil
}
