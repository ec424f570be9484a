package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outreach/internal/analyzer"
	"github.com/sells-group/outreach/internal/automation"
	"github.com/sells-group/outreach/internal/emailgen"
	"github.com/sells-group/outreach/internal/progress"
	"github.com/sells-group/outreach/internal/resilience"
	"github.com/sells-group/outreach/internal/store"
	anthropicpkg "github.com/sells-group/outreach/pkg/anthropic"
	"github.com/sells-group/outreach/pkg/jina"
)

// automationEnv holds the store, clients and orchestrator needed by the
// serve/batch/start/status commands.
type automationEnv struct {
	Store        store.Store
	Orchestrator *automation.Orchestrator
	Progress     progress.Tracker // nil when progress.backend is "none"

	closeProgress func() error
}

// Close releases resources held by the environment.
func (ae *automationEnv) Close() {
	if ae.closeProgress != nil {
		if err := ae.closeProgress(); err != nil {
			zap.L().Warn("close progress tracker", zap.Error(err))
		}
	}
	if ae.Store != nil {
		_ = ae.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	schema := store.Schema(cfg.Store.Schema)
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "outreach.db"
		}
		return store.NewSQLite(dsn, schema)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, schema, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initAutomation validates configuration for scope, opens and migrates the
// store and builds the orchestrator. Callers should defer env.Close().
func initAutomation(ctx context.Context, scope string) (*automationEnv, error) {
	if err := cfg.Validate(scope); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	tracker, closeProgress, err := progress.New(ctx, cfg.Progress, st)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "init progress tracker")
	}
	env := &automationEnv{Store: st, Progress: tracker, closeProgress: closeProgress}

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)

	var jinaOpts []jina.Option
	if cfg.Jina.BaseURL != "" {
		jinaOpts = append(jinaOpts, jina.WithBaseURL(cfg.Jina.BaseURL))
	}
	if cfg.Jina.TimeoutSecs > 0 {
		jinaOpts = append(jinaOpts, jina.WithTimeout(time.Duration(cfg.Jina.TimeoutSecs)*time.Second))
	}
	jinaClient := jina.NewClient(cfg.Jina.Key, jinaOpts...)
	if cfg.Jina.Key == "" {
		zap.L().Debug("OUTREACH_JINA_KEY not set, using the anonymous reader quota")
	}

	websiteAnalyzer := analyzer.New(jinaClient, anthropicClient,
		analyzer.WithModel(cfg.Anthropic.AnalysisModel),
		analyzer.WithMaxTokens(cfg.Anthropic.MaxTokens),
		analyzer.WithMaxContentChars(cfg.Automation.MaxContentChars),
	)

	var breaker *resilience.Breaker
	if cfg.Anthropic.BreakerThreshold > 0 {
		breaker = resilience.NewBreaker("claude-email", cfg.Anthropic.BreakerThreshold,
			time.Duration(cfg.Anthropic.BreakerCooldownSecs)*time.Second)
	}
	generator := emailgen.New(anthropicClient,
		emailgen.WithModel(cfg.Anthropic.EmailModel),
		emailgen.WithMaxTokens(cfg.Anthropic.MaxTokens),
		emailgen.WithBreaker(breaker),
	)

	opts := []automation.Option{
		automation.WithPreflight(func() error { return cfg.Validate("automation") }),
	}
	if tracker != nil {
		opts = append(opts, automation.WithProgress(tracker))
	}

	env.Orchestrator = automation.New(st, websiteAnalyzer, generator, automation.Config{
		GroupSize:           cfg.Automation.GroupSize,
		GroupDelay:          cfg.Automation.GroupDelay(),
		ProductContextLimit: cfg.Automation.ProductContextLimit,
	}, opts...)

	zap.L().Info("automation ready",
		zap.String("store", cfg.Store.Driver),
		zap.String("schema", cfg.Store.Schema),
		zap.String("progress", cfg.Progress.Backend),
		zap.Int("group_size", cfg.Automation.GroupSize),
		zap.Duration("group_delay", cfg.Automation.GroupDelay()),
	)
	return env, nil
}
