package store

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/outreach/internal/model"
)

// Store defines the persistence interface for the lead pipeline.
type Store interface {
	// Leads
	CreateLead(ctx context.Context, lead model.Lead) (*model.Lead, error)
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	ListPending(ctx context.Context, userID string) ([]model.Lead, error)
	MarkProcessing(ctx context.Context, ids []string) error
	MarkResult(ctx context.Context, id, userID string, r model.LeadResult) error

	// Product context
	ListProductContext(ctx context.Context, userID string, limit int) ([]model.ProductMaterial, error)
	AddProductMaterial(ctx context.Context, userID, name string) (*model.ProductMaterial, error)

	// Batch progress
	CreateBatchProgress(ctx context.Context, p model.BatchProgress) error
	IncrementBatchProgress(ctx context.Context, batchID string, succeeded bool) error
	FinishBatchProgress(ctx context.Context, batchID string, at time.Time) error
	GetBatchProgress(ctx context.Context, batchID string) (*model.BatchProgress, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Schema names the lead table layout a store reads and writes.
type Schema string

const (
	// SchemaLegacy is the original leads table using the canonical vocabulary.
	SchemaLegacy Schema = "legacy"
	// SchemaCustomer is the customer_leads table with the customer vocabulary.
	SchemaCustomer Schema = "customer"
)

// leadTable maps canonical lead fields onto one table layout. Pipeline code
// only ever sees canonical statuses and sources; the translation happens here.
type leadTable struct {
	name     string
	nameCol  string
	emailCol string
	customer bool
}

func tableFor(schema Schema) (leadTable, error) {
	switch schema {
	case SchemaLegacy, "":
		return leadTable{name: "leads", nameCol: "name", emailCol: "email"}, nil
	case SchemaCustomer:
		return leadTable{name: "customer_leads", nameCol: "company_name", emailCol: "contact_email", customer: true}, nil
	default:
		return leadTable{}, eris.Errorf("store: unsupported schema %q", schema)
	}
}

func (t leadTable) status(s model.LeadStatus) string {
	if t.customer {
		return string(model.LegacyToCustomerStatus(s))
	}
	return string(s)
}

func (t leadTable) parseStatus(v string) model.LeadStatus {
	if t.customer {
		return model.CustomerToLegacyStatus(model.CustomerStatus(v))
	}
	for _, s := range model.AllLeadStatuses() {
		if string(s) == v {
			return s
		}
	}
	return model.DefaultLeadStatus
}

func (t leadTable) source(s model.LeadSource) string {
	if t.customer {
		return string(model.LegacyToCustomerSource(s))
	}
	return string(s)
}

func (t leadTable) parseSource(v string) model.LeadSource {
	if t.customer {
		return model.CustomerToLegacySource(model.CustomerSource(v))
	}
	for _, s := range model.AllLeadSources() {
		if string(s) == v {
			return s
		}
	}
	return model.DefaultLeadSource
}

// selectColumns lists lead columns in scanLead order. Nullable text columns are
// coalesced so they scan into plain strings.
func (t leadTable) selectColumns() string {
	return fmt.Sprintf(
		"id, user_id, COALESCE(website, ''), COALESCE(%s, ''), COALESCE(%s, ''), status, COALESCE(source, ''), "+
			"COALESCE(subject, ''), COALESCE(body, ''), COALESCE(error_message, ''), updated_at",
		t.nameCol, t.emailCol,
	)
}

type scannable interface {
	Scan(dest ...any) error
}

func (t leadTable) scanLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var status, source string
	if err := row.Scan(
		&l.ID, &l.UserID, &l.Website, &l.Name, &l.Email, &status, &source,
		&l.Subject, &l.Body, &l.ErrorMessage, &l.UpdatedAt,
	); err != nil {
		return nil, err
	}
	l.Status = t.parseStatus(status)
	l.Source = t.parseSource(source)
	return &l, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func progressDelta(succeeded bool) (int, int) {
	if succeeded {
		return 1, 0
	}
	return 0, 1
}
