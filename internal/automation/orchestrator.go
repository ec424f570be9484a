// Package automation runs the lead pipeline: website analysis, then email
// generation, then a terminal status write, fanned out over pending leads in
// paced groups.
package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/outreach/internal/model"
	"github.com/sells-group/outreach/internal/resilience"
)

// MessageNoPending is returned when a batch finds nothing to process.
const MessageNoPending = "no pending leads"

// unknownErrorMessage is recorded when a failure carries no message.
const unknownErrorMessage = "unknown error"

// LeadStore is the persistence the orchestrator needs.
type LeadStore interface {
	ListPending(ctx context.Context, userID string) ([]model.Lead, error)
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	MarkProcessing(ctx context.Context, ids []string) error
	MarkResult(ctx context.Context, id, userID string, r model.LeadResult) error
	ListProductContext(ctx context.Context, userID string, limit int) ([]model.ProductMaterial, error)
}

// Analyzer summarizes a lead's website.
type Analyzer interface {
	Analyze(ctx context.Context, website string) (*model.WebsiteAnalysis, error)
}

// Generator drafts an outreach email.
type Generator interface {
	Generate(ctx context.Context, analysis *model.WebsiteAnalysis, name, email, productContext string) (*model.EmailDraft, error)
}

// ProgressTracker records batch progress. It is optional; its failures are
// logged and never affect lead processing.
type ProgressTracker interface {
	StartBatch(ctx context.Context, p model.BatchProgress) error
	RecordItem(ctx context.Context, batchID string, succeeded bool) error
	FinishBatch(ctx context.Context, batchID string) error
	GetProgress(ctx context.Context, batchID string) (*model.BatchProgress, error)
}

// Config tunes batch pacing.
type Config struct {
	// GroupSize caps how many leads of a batch are in flight at once.
	GroupSize int
	// GroupDelay is the pause between groups. No pause follows the last group.
	GroupDelay time.Duration
	// ProductContextLimit is how many product materials feed the prompt.
	ProductContextLimit int
}

// DefaultConfig returns groups of 3 leads, 2s apart, with 5 product materials.
func DefaultConfig() Config {
	return Config{GroupSize: 3, GroupDelay: 2 * time.Second, ProductContextLimit: 5}
}

// BatchResult is returned to the caller of StartBatch before any lead is
// processed.
type BatchResult struct {
	Accepted int    `json:"count"`
	BatchID  string `json:"batchId,omitempty"`
	Message  string `json:"message"`
}

// Orchestrator starts batch and single-lead runs and executes them detached
// from the caller.
type Orchestrator struct {
	store     LeadStore
	analyzer  Analyzer
	generator Generator
	progress  ProgressTracker
	cfg       Config

	preflight  func() error
	sleep      func(ctx context.Context, d time.Duration)
	newID      func() string
	writeRetry resilience.RetryConfig

	wg sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithProgress enables batch progress tracking.
func WithProgress(t ProgressTracker) Option {
	return func(o *Orchestrator) { o.progress = t }
}

// WithPreflight adds a configuration check run before every start.
func WithPreflight(fn func() error) Option {
	return func(o *Orchestrator) { o.preflight = fn }
}

// WithSleep replaces the pause between groups.
func WithSleep(fn func(ctx context.Context, d time.Duration)) Option {
	return func(o *Orchestrator) { o.sleep = fn }
}

// WithIDGenerator replaces batch id generation.
func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) { o.newID = fn }
}

// WithWriteRetry sets the retry policy for result writes.
func WithWriteRetry(cfg resilience.RetryConfig) Option {
	return func(o *Orchestrator) { o.writeRetry = cfg }
}

// New creates an Orchestrator. Zero Config fields fall back to DefaultConfig,
// except GroupDelay, where zero means no pause.
func New(store LeadStore, analyzer Analyzer, generator Generator, cfg Config, opts ...Option) *Orchestrator {
	if cfg.ProductContextLimit <= 0 {
		cfg.ProductContextLimit = DefaultConfig().ProductContextLimit
	}
	o := &Orchestrator{
		store:      store,
		analyzer:   analyzer,
		generator:  generator,
		cfg:        cfg,
		sleep:      sleepContext,
		newID:      func() string { return uuid.New().String() },
		writeRetry: resilience.StoreWriteRetryConfig(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.writeRetry.OnRetry == nil {
		o.writeRetry.OnRetry = resilience.RetryLogger("store", "mark_result")
	}
	return o
}

func (o *Orchestrator) checkConfig() error {
	var problems []string
	if o.store == nil {
		problems = append(problems, "lead store")
	}
	if o.analyzer == nil {
		problems = append(problems, "website analyzer")
	}
	if o.generator == nil {
		problems = append(problems, "email generator")
	}
	if o.cfg.GroupSize <= 0 {
		problems = append(problems, fmt.Sprintf("group size %d", o.cfg.GroupSize))
	}
	if len(problems) > 0 {
		return &ConfigurationError{Err: eris.Errorf("missing or invalid %s", strings.Join(problems, ", "))}
	}
	if o.preflight != nil {
		if err := o.preflight(); err != nil {
			return &ConfigurationError{Err: err}
		}
	}
	return nil
}

// StartBatch accepts every pending lead of userID, marks them processing and
// returns. The leads are processed in the background in groups of GroupSize.
func (o *Orchestrator) StartBatch(ctx context.Context, userID string) (*BatchResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, &ValidationError{Field: "userId"}
	}
	if err := o.checkConfig(); err != nil {
		return nil, err
	}

	leads, err := o.store.ListPending(ctx, userID)
	if err != nil {
		return nil, eris.Wrapf(err, "automation: list pending leads for %s", userID)
	}
	if len(leads) == 0 {
		return &BatchResult{Message: MessageNoPending}, nil
	}

	ids := make([]string, len(leads))
	for i := range leads {
		ids[i] = leads[i].ID
		leads[i].Status = model.LeadStatusProcessing
	}
	log := zap.L().With(zap.String("user_id", userID))
	if err := o.store.MarkProcessing(ctx, ids); err != nil {
		log.Warn("automation: mark processing failed, continuing", zap.Int("leads", len(ids)), zap.Error(err))
	}

	batchID := o.newID()
	bg := context.WithoutCancel(ctx)
	o.startProgress(bg, model.BatchProgress{
		BatchID:   batchID,
		UserID:    userID,
		Total:     len(leads),
		StartedAt: time.Now().UTC(),
	})

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runBatch(bg, batchID, userID, leads)
	}()

	log.Info("automation: batch accepted", zap.String("batch_id", batchID), zap.Int("leads", len(leads)))
	return &BatchResult{
		Accepted: len(leads),
		BatchID:  batchID,
		Message:  fmt.Sprintf("processing %d leads", len(leads)),
	}, nil
}

// StartOne marks a single lead processing and runs it in the background.
func (o *Orchestrator) StartOne(ctx context.Context, leadID string) error {
	leadID = strings.TrimSpace(leadID)
	if leadID == "" {
		return &ValidationError{Field: "leadId"}
	}
	if err := o.checkConfig(); err != nil {
		return err
	}

	lead, err := o.store.GetLead(ctx, leadID)
	if errors.Is(err, model.ErrNotFound) {
		return &NotFoundError{Kind: "lead", ID: leadID}
	}
	if err != nil {
		return eris.Wrapf(err, "automation: get lead %s", leadID)
	}

	log := zap.L().With(zap.String("lead_id", lead.ID), zap.String("user_id", lead.UserID))
	if err := o.store.MarkProcessing(ctx, []string{lead.ID}); err != nil {
		log.Warn("automation: mark processing failed, continuing", zap.Error(err))
	}
	lead.Status = model.LeadStatusProcessing

	bg := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		productContext := o.loadProductContext(bg, lead.UserID)
		o.ProcessLead(bg, *lead, productContext)
	}()

	log.Info("automation: lead accepted")
	return nil
}

// GetProgress returns the snapshot of batchID.
func (o *Orchestrator) GetProgress(ctx context.Context, batchID string) (*model.BatchProgress, error) {
	if strings.TrimSpace(batchID) == "" {
		return nil, &ValidationError{Field: "batchId"}
	}
	if o.progress == nil {
		return nil, &NotFoundError{Kind: "batch", ID: batchID}
	}
	p, err := o.progress.GetProgress(ctx, batchID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, &NotFoundError{Kind: "batch", ID: batchID}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "automation: get progress %s", batchID)
	}
	return p, nil
}

// Wait blocks until every background run has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Drain waits for background runs like Wait, giving up when ctx is done.
func (o *Orchestrator) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "automation: drain background runs")
	}
}

func (o *Orchestrator) runBatch(ctx context.Context, batchID, userID string, leads []model.Lead) {
	log := zap.L().With(zap.String("batch_id", batchID), zap.String("user_id", userID))
	defer func() {
		if r := recover(); r != nil {
			log.Error("automation: batch run panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	start := time.Now()
	productContext := o.loadProductContext(ctx, userID)
	groups := Chunk(leads, o.cfg.GroupSize)

	var succeeded, failed atomic.Int64
	for i, group := range groups {
		if i > 0 {
			o.sleep(ctx, o.cfg.GroupDelay)
		}

		var g errgroup.Group
		for _, lead := range group {
			g.Go(func() error {
				status := o.ProcessLead(ctx, lead, productContext)
				ok := status == model.LeadStatusCompleted
				if ok {
					succeeded.Add(1)
				} else {
					failed.Add(1)
				}
				o.recordProgress(ctx, batchID, ok)
				return nil
			})
		}
		_ = g.Wait()

		log.Debug("automation: group settled", zap.Int("group", i+1), zap.Int("groups", len(groups)))
	}

	o.finishProgress(ctx, batchID)
	log.Info("automation: batch finished",
		zap.Int("leads", len(leads)),
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// ProcessLead runs analyze then generate for one lead and records the
// terminal result. It never returns an error and never panics; the returned
// status is what it tried to record.
func (o *Orchestrator) ProcessLead(ctx context.Context, lead model.Lead, productContext string) (status model.LeadStatus) {
	log := zap.L().With(zap.String("lead_id", lead.ID), zap.String("user_id", lead.UserID))
	status = model.LeadStatusFailed
	defer func() {
		if r := recover(); r != nil {
			log.Error("automation: recording lead result panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()

	result := o.runPipeline(ctx, lead, productContext, log)
	status = result.Status
	o.writeResult(ctx, lead, result, log)
	return status
}

func (o *Orchestrator) runPipeline(ctx context.Context, lead model.Lead, productContext string, log *zap.Logger) (result model.LeadResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("automation: lead pipeline panicked", zap.Any("panic", r), zap.Stack("stack"))
			result = o.failure(&CollaboratorError{Stage: StagePipeline, Err: fmt.Errorf("panic: %v", r)}, log)
		}
	}()

	analysis, err := o.analyzer.Analyze(ctx, lead.Website)
	if err == nil && analysis == nil {
		err = eris.New("analyzer returned no result")
	}
	if err != nil {
		return o.failure(&CollaboratorError{Stage: StageAnalyze, Err: err}, log)
	}

	draft, err := o.generator.Generate(ctx, analysis, lead.Name, lead.Email, productContext)
	if err == nil && draft == nil {
		err = eris.New("generator returned no draft")
	}
	if err != nil {
		return o.failure(&CollaboratorError{Stage: StageGenerate, Err: err}, log)
	}

	log.Info("automation: lead completed")
	return model.CompletedResult(*draft)
}

func (o *Orchestrator) failure(err *CollaboratorError, log *zap.Logger) model.LeadResult {
	log.Warn("automation: lead failed", zap.String("stage", string(err.Stage)), zap.Error(err.Err))
	return model.FailedResult(errorMessage(err.Err))
}

// writeResult records r, retrying transient store errors. A write that still
// fails is logged and dropped.
func (o *Orchestrator) writeResult(ctx context.Context, lead model.Lead, r model.LeadResult, log *zap.Logger) {
	err := resilience.Do(ctx, o.writeRetry, func(ctx context.Context) error {
		return o.store.MarkResult(ctx, lead.ID, lead.UserID, r)
	})
	if err != nil {
		werr := &TransientWriteError{LeadID: lead.ID, Status: r.Status, Err: err}
		log.Error("automation: lead result not recorded, lead may remain processing",
			zap.String("status", string(r.Status)), zap.Error(werr))
	}
}

func (o *Orchestrator) loadProductContext(ctx context.Context, userID string) string {
	materials, err := o.store.ListProductContext(ctx, userID, o.cfg.ProductContextLimit)
	if err != nil {
		zap.L().Warn("automation: load product context failed, continuing without it",
			zap.String("user_id", userID), zap.Error(err))
		return ""
	}
	return ProductContext(materials, o.cfg.ProductContextLimit)
}

func (o *Orchestrator) startProgress(ctx context.Context, p model.BatchProgress) {
	if o.progress == nil {
		return
	}
	if err := o.progress.StartBatch(ctx, p); err != nil {
		zap.L().Warn("automation: start progress failed", zap.String("batch_id", p.BatchID), zap.Error(err))
	}
}

func (o *Orchestrator) recordProgress(ctx context.Context, batchID string, succeeded bool) {
	if o.progress == nil {
		return
	}
	if err := o.progress.RecordItem(ctx, batchID, succeeded); err != nil {
		zap.L().Warn("automation: record progress failed", zap.String("batch_id", batchID), zap.Error(err))
	}
}

func (o *Orchestrator) finishProgress(ctx context.Context, batchID string) {
	if o.progress == nil {
		return
	}
	if err := o.progress.FinishBatch(ctx, batchID); err != nil {
		zap.L().Warn("automation: finish progress failed", zap.String("batch_id", batchID), zap.Error(err))
	}
}

// ProductContext joins the names of at most limit materials with ", ".
func ProductContext(materials []model.ProductMaterial, limit int) string {
	names := make([]string, 0, len(materials))
	for _, m := range materials {
		if limit > 0 && len(names) == limit {
			break
		}
		if name := strings.TrimSpace(m.Name); name != "" {
			names = append(names, name)
		}
	}
	return strings.Join(names, ", ")
}

// Chunk splits items into consecutive groups of at most size.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 || len(items) == 0 {
		return nil
	}
	groups := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		groups = append(groups, items[start:end:end])
	}
	return groups
}

func errorMessage(err error) string {
	if err == nil {
		return unknownErrorMessage
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return unknownErrorMessage
}

func sleepContext(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
