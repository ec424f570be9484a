package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Automation AutomationConfig `yaml:"automation" mapstructure:"automation"`
	Progress   ProgressConfig   `yaml:"progress" mapstructure:"progress"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Auth       AuthConfig       `yaml:"auth" mapstructure:"auth"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the lead store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	// Schema selects the lead table layout: "legacy" (leads) or "customer" (customer_leads).
	Schema   string `yaml:"schema" mapstructure:"schema"`
	MaxConns int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	AnalysisModel string `yaml:"analysis_model" mapstructure:"analysis_model"`
	EmailModel    string `yaml:"email_model" mapstructure:"email_model"`
	MaxTokens     int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
	// BreakerThreshold consecutive failures open the drafting circuit for
	// BreakerCooldownSecs.
	BreakerThreshold    int `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerCooldownSecs int `yaml:"breaker_cooldown_secs" mapstructure:"breaker_cooldown_secs"`
}

// JinaConfig holds Jina AI Reader settings. The key is optional.
type JinaConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// AutomationConfig tunes the batch lead-processing pipeline.
type AutomationConfig struct {
	GroupSize           int `yaml:"group_size" mapstructure:"group_size"`
	GroupDelayMs        int `yaml:"group_delay_ms" mapstructure:"group_delay_ms"`
	ProductContextLimit int `yaml:"product_context_limit" mapstructure:"product_context_limit"`
	MaxContentChars     int `yaml:"max_content_chars" mapstructure:"max_content_chars"`
}

// GroupDelay returns the pause between successive concurrency groups.
func (a AutomationConfig) GroupDelay() time.Duration {
	return time.Duration(a.GroupDelayMs) * time.Millisecond
}

// ProgressConfig selects where batch progress snapshots are kept.
type ProgressConfig struct {
	// Backend is one of "store", "redis" or "none".
	Backend       string `yaml:"backend" mapstructure:"backend"`
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`
	TTLHours      int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port                int      `yaml:"port" mapstructure:"port"`
	RateLimitRPS        float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst      int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
	CORSOrigins         []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	ShutdownTimeoutSecs int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// AuthConfig holds the secret used to verify bearer tokens.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" mapstructure:"jwt_secret"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ValidationError lists the configuration keys a command needs but lacks.
type ValidationError struct {
	Scope   string
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s requires %s", e.Scope, strings.Join(e.Missing, ", "))
}

// Validate checks that the keys required by scope ("automation" or "serve")
// are set. Missing keys are reported together in a *ValidationError.
func (c *Config) Validate(scope string) error {
	var missing []string

	requireAutomation := func() {
		switch c.Store.Driver {
		case "postgres":
			if c.Store.DatabaseURL == "" {
				missing = append(missing, "store.database_url (OUTREACH_STORE_DATABASE_URL)")
			}
		case "sqlite":
		default:
			missing = append(missing, fmt.Sprintf("store.driver (unsupported %q)", c.Store.Driver))
		}
		if c.Store.Schema != "legacy" && c.Store.Schema != "customer" {
			missing = append(missing, fmt.Sprintf("store.schema (unsupported %q)", c.Store.Schema))
		}
		if c.Anthropic.Key == "" {
			missing = append(missing, "anthropic.key (OUTREACH_ANTHROPIC_KEY)")
		}
		if c.Automation.GroupSize <= 0 {
			missing = append(missing, "automation.group_size (> 0)")
		}
		if c.Progress.Backend == "redis" && c.Progress.RedisAddr == "" {
			missing = append(missing, "progress.redis_addr (OUTREACH_PROGRESS_REDIS_ADDR)")
		}
	}

	switch scope {
	case "automation":
		requireAutomation()
	case "serve":
		requireAutomation()
		if c.Auth.JWTSecret == "" {
			missing = append(missing, "auth.jwt_secret (OUTREACH_AUTH_JWT_SECRET)")
		}
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port (> 0)")
		}
	default:
		return eris.Errorf("config: unknown mode %q", scope)
	}

	if len(missing) > 0 {
		return &ValidationError{Scope: scope, Missing: missing}
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.schema", "legacy")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.analysis_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.email_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("anthropic.breaker_threshold", 5)
	v.SetDefault("anthropic.breaker_cooldown_secs", 30)
	v.SetDefault("jina.key", "")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.timeout_secs", 30)
	v.SetDefault("automation.group_size", 3)
	v.SetDefault("automation.group_delay_ms", 2000)
	v.SetDefault("automation.product_context_limit", 5)
	v.SetDefault("automation.max_content_chars", 12000)
	v.SetDefault("progress.backend", "store")
	v.SetDefault("progress.redis_addr", "")
	v.SetDefault("progress.redis_password", "")
	v.SetDefault("progress.redis_db", 0)
	v.SetDefault("progress.ttl_hours", 24)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_limit_rps", 10)
	v.SetDefault("server.rate_limit_burst", 20)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout_secs", 30)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
