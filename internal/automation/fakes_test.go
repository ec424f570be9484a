package automation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sells-group/outreach/internal/model"
	"github.com/sells-group/outreach/internal/resilience"
)

// memStore is an in-memory LeadStore that records every call.
type memStore struct {
	mu        sync.Mutex
	leads     map[string]*model.Lead
	order     []string
	materials []model.ProductMaterial
	calls     []string
	events    *eventLog

	listErr        error
	markProcErr    error
	resultFailures int
	resultErr      error
}

func newMemStore(events *eventLog) *memStore {
	return &memStore{leads: make(map[string]*model.Lead), events: events}
}

func (s *memStore) add(leads ...model.Lead) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range leads {
		if l.Status == "" {
			l.Status = model.LeadStatusPending
		}
		s.leads[l.ID] = &l
		s.order = append(s.order, l.ID)
	}
}

func (s *memStore) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *memStore) callNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *memStore) get(id string) model.Lead {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.leads[id]
}

func (s *memStore) ListPending(_ context.Context, userID string) ([]model.Lead, error) {
	s.record("ListPending")
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Lead
	for _, id := range s.order {
		l := s.leads[id]
		if l.UserID == userID && l.Status == model.LeadStatusPending {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (s *memStore) GetLead(_ context.Context, id string) (*model.Lead, error) {
	s.record("GetLead")
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.leads[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *l
	return &cp, nil
}

func (s *memStore) MarkProcessing(_ context.Context, ids []string) error {
	s.record("MarkProcessing")
	if s.markProcErr != nil {
		return s.markProcErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if l, ok := s.leads[id]; ok {
			l.Status = model.LeadStatusProcessing
			l.ErrorMessage = ""
		}
	}
	return nil
}

func (s *memStore) MarkResult(_ context.Context, id, userID string, r model.LeadResult) error {
	s.record("MarkResult")
	s.mu.Lock()
	if s.resultFailures > 0 {
		s.resultFailures--
		s.mu.Unlock()
		return resilience.NewTransientError(fmt.Errorf("connection reset by peer"), 0)
	}
	if s.resultErr != nil {
		s.mu.Unlock()
		return s.resultErr
	}
	l, ok := s.leads[id]
	if !ok || l.UserID != userID {
		s.mu.Unlock()
		return model.ErrNotFound
	}
	l.Status = r.Status
	if r.Subject != "" {
		l.Subject = r.Subject
	}
	if r.Body != "" {
		l.Body = r.Body
	}
	l.ErrorMessage = r.ErrorMessage
	s.mu.Unlock()

	if s.events != nil {
		s.events.add("settle:" + id)
	}
	return nil
}

func (s *memStore) ListProductContext(_ context.Context, userID string, limit int) ([]model.ProductMaterial, error) {
	s.record("ListProductContext")
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ProductMaterial
	for _, m := range s.materials {
		if m.UserID == userID && len(out) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

// eventLog is an ordered, concurrency-safe record of pipeline events.
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (e *eventLog) add(ev string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

func (e *eventLog) all() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.events...)
}

// funcAnalyzer adapts a function to Analyzer.
type funcAnalyzer func(ctx context.Context, website string) (*model.WebsiteAnalysis, error)

func (f funcAnalyzer) Analyze(ctx context.Context, website string) (*model.WebsiteAnalysis, error) {
	return f(ctx, website)
}

// funcGenerator adapts a function to Generator and counts calls.
type funcGenerator struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, a *model.WebsiteAnalysis, name, email, productContext string) (*model.EmailDraft, error)
}

func (g *funcGenerator) Generate(ctx context.Context, a *model.WebsiteAnalysis, name, email, productContext string) (*model.EmailDraft, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	return g.fn(ctx, a, name, email, productContext)
}

func (g *funcGenerator) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func okAnalyzer() funcAnalyzer {
	return func(_ context.Context, website string) (*model.WebsiteAnalysis, error) {
		return &model.WebsiteAnalysis{URL: "https://" + website, Summary: "Makes widgets."}, nil
	}
}

func okGenerator() *funcGenerator {
	return &funcGenerator{fn: func(_ context.Context, a *model.WebsiteAnalysis, name, _, _ string) (*model.EmailDraft, error) {
		return &model.EmailDraft{Subject: "Idea for " + a.URL, Body: "Hi " + name}, nil
	}}
}

// memProgress is an in-memory ProgressTracker.
type memProgress struct {
	mu      sync.Mutex
	batches map[string]*model.BatchProgress
}

func newMemProgress() *memProgress {
	return &memProgress{batches: make(map[string]*model.BatchProgress)}
}

func (p *memProgress) StartBatch(_ context.Context, b model.BatchProgress) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches[b.BatchID] = &b
	return nil
}

func (p *memProgress) RecordItem(_ context.Context, batchID string, succeeded bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.batches[batchID]
	if !ok {
		return model.ErrNotFound
	}
	b.Processed++
	if succeeded {
		b.Succeeded++
	} else {
		b.Failed++
	}
	return nil
}

func (p *memProgress) FinishBatch(_ context.Context, batchID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.batches[batchID]
	if !ok {
		return model.ErrNotFound
	}
	now := time.Now()
	b.FinishedAt = &now
	b.Done = true
	return nil
}

func (p *memProgress) GetProgress(_ context.Context, batchID string) (*model.BatchProgress, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.batches[batchID]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func fastWriteRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	}
}

func noSleep(context.Context, time.Duration) {}
