package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/outreach/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db    *sql.DB
	leads leadTable
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string, schema Schema) (*SQLiteStore, error) {
	table, err := tableFor(schema)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Pragmas are per connection and the pipeline writes concurrently.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, leads: table}, nil
}

func sqliteMigration(t leadTable) string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	website       TEXT,
	%[2]s          TEXT,
	%[3]s         TEXT,
	status        TEXT NOT NULL DEFAULT '%[4]s',
	source        TEXT NOT NULL DEFAULT '%[5]s',
	subject       TEXT,
	body          TEXT,
	error_message TEXT,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_%[1]s_user_status ON %[1]s(user_id, status);

CREATE TABLE IF NOT EXISTS product_materials (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	name       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_product_materials_user ON product_materials(user_id, created_at);

CREATE TABLE IF NOT EXISTS batch_progress (
	batch_id    TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	total       INTEGER NOT NULL,
	processed   INTEGER NOT NULL DEFAULT 0,
	succeeded   INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);
`, t.name, t.nameCol, t.emailCol, t.status(model.LeadStatusPending), t.source(model.DefaultLeadSource))
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration(s.leads))
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateLead(ctx context.Context, lead model.Lead) (*model.Lead, error) {
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

	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, user_id, website, %s, %s, status, source, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.leads.name, s.leads.nameCol, s.leads.emailCol),
		lead.ID, lead.UserID, nullString(lead.Website), nullString(lead.Name), nullString(lead.Email),
		s.leads.status(lead.Status), s.leads.source(lead.Source), lead.UpdatedAt, lead.UpdatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert lead")
	}
	return &lead, nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, s.leads.selectColumns(), s.leads.name),
		id,
	)
	lead, err := s.leads.scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}
	return lead, nil
}

func (s *SQLiteStore) ListPending(ctx context.Context, userID string) ([]model.Lead, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = ? AND status = ? ORDER BY created_at, id`,
			s.leads.selectColumns(), s.leads.name),
		userID, s.leads.status(model.LeadStatusPending),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pending leads")
	}
	defer rows.Close() //nolint:errcheck

	var leads []model.Lead
	for rows.Next() {
		lead, err := s.leads.scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *lead)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list pending leads iterate")
}

func (s *SQLiteStore) MarkProcessing(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	args := []any{s.leads.status(model.LeadStatusProcessing), time.Now().UTC()}
	for _, id := range ids {
		args = append(args, id)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")

	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET status = ?, error_message = NULL, updated_at = ? WHERE id IN (%s)`, s.leads.name, placeholders),
		args...,
	)
	return eris.Wrap(err, "sqlite: mark processing")
}

func (s *SQLiteStore) MarkResult(ctx context.Context, id, userID string, r model.LeadResult) error {
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET status = ?, subject = COALESCE(?, subject), body = COALESCE(?, body), error_message = ?, updated_at = ? WHERE id = ? AND user_id = ?`, s.leads.name),
		s.leads.status(r.Status), nullString(r.Subject), nullString(r.Body), nullString(r.ErrorMessage),
		time.Now().UTC(), id, userID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark result %s", id)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) ListProductContext(ctx context.Context, userID string, limit int) ([]model.ProductMaterial, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, created_at FROM product_materials WHERE user_id = ? ORDER BY created_at DESC, id LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list product materials")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ProductMaterial
	for rows.Next() {
		var m model.ProductMaterial
		if err := rows.Scan(&m.ID, &m.UserID, &m.Name, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan product material")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list product materials iterate")
}

func (s *SQLiteStore) AddProductMaterial(ctx context.Context, userID, name string) (*model.ProductMaterial, error) {
	m := model.ProductMaterial{ID: uuid.New().String(), UserID: userID, Name: name, CreatedAt: time.Now().UTC()}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO product_materials (id, user_id, name, created_at) VALUES (?, ?, ?, ?)`,
		m.ID, m.UserID, m.Name, m.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: add product material")
	}
	return &m, nil
}

func (s *SQLiteStore) CreateBatchProgress(ctx context.Context, p model.BatchProgress) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO batch_progress (batch_id, user_id, total, started_at) VALUES (?, ?, ?, ?)`,
		p.BatchID, p.UserID, p.Total, p.StartedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: create batch progress %s", p.BatchID)
}

func (s *SQLiteStore) IncrementBatchProgress(ctx context.Context, batchID string, succeeded bool) error {
	ok, failed := progressDelta(succeeded)
	res, err := s.db.ExecContext(ctx,
		`UPDATE batch_progress SET processed = processed + 1, succeeded = succeeded + ?, failed = failed + ? WHERE batch_id = ?`,
		ok, failed, batchID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment batch progress %s", batchID)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) FinishBatchProgress(ctx context.Context, batchID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE batch_progress SET finished_at = ? WHERE batch_id = ?`,
		at.UTC(), batchID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish batch progress %s", batchID)
	}
	return checkRowsAffected(res)
}

func (s *SQLiteStore) GetBatchProgress(ctx context.Context, batchID string) (*model.BatchProgress, error) {
	var p model.BatchProgress
	var finished sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT batch_id, user_id, total, processed, succeeded, failed, started_at, finished_at FROM batch_progress WHERE batch_id = ?`,
		batchID,
	).Scan(&p.BatchID, &p.UserID, &p.Total, &p.Processed, &p.Succeeded, &p.Failed, &p.StartedAt, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get batch progress %s", batchID)
	}
	if finished.Valid {
		t := finished.Time
		p.FinishedAt = &t
		p.Done = true
	}
	return &p, nil
}

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}
