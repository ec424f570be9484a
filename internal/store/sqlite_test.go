package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach/internal/model"
)

func newTestSQLiteStore(t *testing.T, schema Schema) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath, schema)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedLead(t *testing.T, st Store, userID, website string) *model.Lead {
	t.Helper()
	lead, err := st.CreateLead(context.Background(), model.Lead{
		UserID:  userID,
		Website: website,
		Name:    "Jane Doe",
		Email:   "jane@" + website,
	})
	require.NoError(t, err)
	return lead
}

func TestNewSQLite_UnknownSchema(t *testing.T) {
	_, err := NewSQLite(filepath.Join(t.TempDir(), "x.db"), "v3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported schema")
}

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t, SchemaLegacy)
	require.NoError(t, st.Migrate(context.Background()))
}

// --- Leads ---

func TestSQLite_CreateAndGetLead(t *testing.T) {
	st := newTestSQLiteStore(t, SchemaLegacy)
	ctx := context.Background()

	created := seedLead(t, st, "user-1", "acme.com")
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, model.LeadStatusPending, created.Status)
	assert.Equal(t, model.LeadSourceManual, created.Source)

	got, err := st.GetLead(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "acme.com", got.Website)
	assert.Equal(t, "Jane Doe", got.Name)
	assert.Equal(t, "jane@acme.com", got.Email)
	assert.Equal(t, model.LeadStatusPending, got.Status)
	assert.Empty(t, got.Subject)
	assert.Empty(t, got.ErrorMessage)
}

func TestSQLite_GetLead_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t, SchemaLegacy)

	_, err := st.GetLead(context.Background(), "missing-id")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSQLite_ListPending_FiltersUserAndStatus(t *testing.T) {
	st := newTestSQLiteStore(t, SchemaLegacy)
	ctx := context.Background()

	a := seedLead(t, st, "user-1", "a.com")
	b := seedLead(t, st, "user-1", "b.com")
	seedLead(t, st, "user-2", "c.com")
	done, err := st.CreateLead(ctx, model.Lead{UserID: "user-1", Website: "d.com", Status: model.LeadStatusCompleted})
	require.NoError(t, err)

	leads, err := st.ListPending(ctx, "user-1")
	require.NoError(t, err)

	var ids []string
	for _, l := range leads {
		ids = append(ids, l.ID)
		assert.Equal(t, model.LeadStatusPending, l.Status)
	}
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)
	assert.NotContains(t, ids, done.ID)
}

func TestSQLite_ListPending_None(t *testing.T) {
	st := newTestSQLiteStore(t, SchemaLegacy)

	leads, err := st.ListPending(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestSQLite_MarkProcessing(t *testing.T) {
	st := newTestSQLiteStore(t, SchemaLegacy)
	ctx := context.Background()

	a := seedLead(t, st, "user-1", "a.com")
	b := seedLead(t, st, "user-1", "b.com")
	c := seedLead(t, st, "user-1", "c.com")

	require.NoError(t, st.MarkProcessing(ctx, []string{a.ID, b.ID}))
	require.NoError(t, st.MarkProcessing(ctx, nil))

	for id, want := range map[string]model.LeadStatus{
		a.ID: model.LeadStatusProcessing,
		b.ID: model.LeadStatusProcessing,
		c.ID: model.LeadStatusPending,
	} {
		got, err := st.GetLead(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Status, id)
	}
}

func TestSQLite_MarkResult_Completed(t *testing.T) {
	st := newTestSQLiteStore(t, SchemaLegacy)
	ctx := context.Background()

	lead := seedLead(t, st, "user-1", "acme.com")
	require.NoError(t, st.MarkResult(ctx, lead.ID, "user-1", model.FailedResult("timeout")))
	require.NoError(t, st.MarkResult(ctx, lead.ID, "user-1", model.CompletedResult(model.EmailDraft{
		Subject: "Quick idea for Acme",
		Body:    "Hi Jane,",
	})))

	got, err := st.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusCompleted, got.Status)
	assert.Equal(t, "Quick idea for Acme", got.Subject)
	assert.Equal(t, "Hi Jane,", got.Body)
	assert.Empty(t, got.ErrorMessage)
}

func TestSQLite_MarkResult_FailedKeepsEarlierDraft(t *testing.T) {
	st := newTestSQLiteStore(t, SchemaLegacy)
	ctx := context.Background()

	lead := seedLead(t, st, "user-1", "acme.com")
	require.NoError(t, st.MarkResult(ctx, lead.ID, "user-1", model.CompletedResult(model.EmailDraft{Subject: "s1", Body: "b1"})))
	require.NoError(t, st.MarkResult(ctx, lead.ID, "user-1", model.FailedResult("quota exceeded")))

	got, err := st.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusFailed, got.Status)
	assert.Equal(t, "quota exceeded", got.ErrorMessage)
	assert.Equal(t, "s1", got.Subject)
}

func TestSQLite_MarkResult_ScopedByUser(t *testing.T) {
	st := newTestSQLiteStore(t, SchemaLegacy)
	ctx := context.Background()

	lead := seedLead(t, st, "user-1", "acme.com")
	err := st.MarkResult(ctx, lead.ID, "user-2", model.FailedResult("x"))
	assert.ErrorIs(t, err, model.ErrNotFound)

	got, err := st.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusPending, got.Status)
}

// --- Customer schema ---

func TestSQLite_CustomerSchema_TranslatesVocabulary(t *testing.T) {
	st := newTestSQLiteStore(t, SchemaCustomer)
	ctx := context.Background()

	lead, err := st.CreateLead(ctx, model.Lead{
		UserID:  "user-1",
		Website: "acme.com",
		Name:    "Acme",
		Source:  model.LeadSourceExcel,
	})
	require.NoError(t, err)

	var rawStatus, rawSource, company string
	require.NoError(t, st.db.QueryRowContext(ctx,
		`SELECT status, source, company_name FROM customer_leads WHERE id = ?`, lead.ID,
	).Scan(&rawStatus, &rawSource, &company))
	assert.Equal(t, "new", rawStatus)
	assert.Equal(t, "excel_import", rawSource)
	assert.Equal(t, "Acme", company)

	pending, err := st.ListPending(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, model.LeadStatusPending, pending[0].Status)
	assert.Equal(t, model.LeadSourceExcel, pending[0].Source)

	require.NoError(t, st.MarkProcessing(ctx, []string{lead.ID}))
	require.NoError(t, st.db.QueryRowContext(ctx,
		`SELECT status FROM customer_leads WHERE id = ?`, lead.ID,
	).Scan(&rawStatus))
	assert.Equal(t, "contacted", rawStatus)

	require.NoError(t, st.MarkResult(ctx, lead.ID, "user-1", model.FailedResult("boom")))
	got, err := st.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusFailed, got.Status)
}

func TestSQLite_CustomerSchema_ConvertedReadsAsCompleted(t *testing.T) {
	st := newTestSQLiteStore(t, SchemaCustomer)
	ctx := context.Background()

	lead := seedLead(t, st, "user-1", "acme.com")
	_, err := st.db.ExecContext(ctx, `UPDATE customer_leads SET status = 'converted' WHERE id = ?`, lead.ID)
	require.NoError(t, err)

	got, err := st.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusCompleted, got.Status)
}

// --- Product context ---

func TestSQLite_ProductContext(t *testing.T) {
	st := newTestSQLiteStore(t, SchemaLegacy)
	ctx := context.Background()

	for _, name := range []string{"Deck", "Pricing", "Case Study", "Brochure", "Demo", "FAQ"} {
		_, err := st.AddProductMaterial(ctx, "user-1", name)
		require.NoError(t, err)
	}
	_, err := st.AddProductMaterial(ctx, "user-2", "Other")
	require.NoError(t, err)

	got, err := st.ListProductContext(ctx, "user-1", 5)
	require.NoError(t, err)
	assert.Len(t, got, 5)
	for _, m := range got {
		assert.Equal(t, "user-1", m.UserID)
		assert.NotEqual(t, "Other", m.Name)
	}

	none, err := st.ListProductContext(ctx, "user-3", 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}

// --- Batch progress ---

func TestSQLite_BatchProgress_Lifecycle(t *testing.T) {
	st := newTestSQLiteStore(t, SchemaLegacy)
	ctx := context.Background()
	started := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, st.CreateBatchProgress(ctx, model.BatchProgress{
		BatchID:   "batch-1",
		UserID:    "user-1",
		Total:     3,
		StartedAt: started,
	}))
	require.NoError(t, st.IncrementBatchProgress(ctx, "batch-1", true))
	require.NoError(t, st.IncrementBatchProgress(ctx, "batch-1", false))

	p, err := st.GetBatchProgress(ctx, "batch-1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, 2, p.Processed)
	assert.Equal(t, 1, p.Succeeded)
	assert.Equal(t, 1, p.Failed)
	assert.False(t, p.Done)
	assert.Nil(t, p.FinishedAt)
	assert.Equal(t, 1, p.Remaining())

	require.NoError(t, st.IncrementBatchProgress(ctx, "batch-1", true))
	require.NoError(t, st.FinishBatchProgress(ctx, "batch-1", started.Add(time.Minute)))

	p, err = st.GetBatchProgress(ctx, "batch-1")
	require.NoError(t, err)
	assert.True(t, p.Done)
	require.NotNil(t, p.FinishedAt)
	assert.Equal(t, 0, p.Remaining())
}

func TestSQLite_BatchProgress_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t, SchemaLegacy)
	ctx := context.Background()

	_, err := st.GetBatchProgress(ctx, "nope")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorIs(t, st.IncrementBatchProgress(ctx, "nope", true), model.ErrNotFound)
	assert.ErrorIs(t, st.FinishBatchProgress(ctx, "nope", time.Now()), model.ErrNotFound)
}
