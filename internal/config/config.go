package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Collect   CollectConfig   `yaml:"collect" mapstructure:"collect"`
	Google    GoogleConfig    `yaml:"google" mapstructure:"google"`
	Jina      JinaConfig      `yaml:"jina" mapstructure:"jina"`
	Judge     JudgeConfig     `yaml:"judge" mapstructure:"judge"`
	Consensus ConsensusConfig `yaml:"consensus" mapstructure:"consensus"`
	Scorer    ScorerConfig    `yaml:"scorer" mapstructure:"scorer"`
	Pricing   PricingConfig   `yaml:"pricing" mapstructure:"pricing"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// CacheConfig configures the persistent lead cache.
type CacheConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	Path          string `yaml:"path" mapstructure:"path"`
	DatabaseURL   string `yaml:"database_url" mapstructure:"database_url"`
	RedisAddr     string `yaml:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `yaml:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `yaml:"redis_db" mapstructure:"redis_db"`
	KeyPrefix     string `yaml:"key_prefix" mapstructure:"key_prefix"`
	TTLHours      int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
}

// BatchConfig configures batch processing.
type BatchConfig struct {
	MaxConcurrentLeads int `yaml:"max_concurrent_leads" mapstructure:"max_concurrent_leads"`
	LeadTimeoutSecs    int `yaml:"lead_timeout_secs" mapstructure:"lead_timeout_secs"`
}

// RetryConfig is the retry policy for a family of calls.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// CircuitConfig configures circuit breakers.
type CircuitConfig struct {
	FailureThreshold int `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs int `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// CollectConfig configures contact data collection.
type CollectConfig struct {
	BudgetSecs int                     `yaml:"budget_secs" mapstructure:"budget_secs"`
	Retry      RetryConfig             `yaml:"retry" mapstructure:"retry"`
	Circuit    CircuitConfig           `yaml:"circuit" mapstructure:"circuit"`
	UserAgent  string                  `yaml:"user_agent" mapstructure:"user_agent"`
	Sources    map[string]SourceConfig `yaml:"sources" mapstructure:"sources"`
}

// SourceConfig configures one collection source.
type SourceConfig struct {
	Enabled     bool    `yaml:"enabled" mapstructure:"enabled"`
	Priority    string  `yaml:"priority" mapstructure:"priority"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	Rate        float64 `yaml:"rate" mapstructure:"rate"`
	Burst       int     `yaml:"burst" mapstructure:"burst"`
	MaxResults  int     `yaml:"max_results" mapstructure:"max_results"`
}

// GoogleConfig holds Google Places API settings.
type GoogleConfig struct {
	Key      string `yaml:"key" mapstructure:"key"`
	Language string `yaml:"language" mapstructure:"language"`
	Region   string `yaml:"region" mapstructure:"region"`
}

// JinaConfig holds Jina AI reader and search settings.
type JinaConfig struct {
	Key             string `yaml:"key" mapstructure:"key"`
	BaseURL         string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL   string `yaml:"search_base_url" mapstructure:"search_base_url"`
	Country         string `yaml:"country" mapstructure:"country"`
	Language        string `yaml:"language" mapstructure:"language"`
	ReadTimeoutSecs int    `yaml:"read_timeout_secs" mapstructure:"read_timeout_secs"`
}

// JudgeConfig configures the LLM providers.
type JudgeConfig struct {
	TimeoutSecs int              `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	Retry       RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Circuit     CircuitConfig    `yaml:"circuit" mapstructure:"circuit"`
	MaxTokens   int              `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64          `yaml:"temperature" mapstructure:"temperature"`
	Providers   []ProviderConfig `yaml:"providers" mapstructure:"providers"`
}

// ProviderConfig configures one LLM provider. Zero MaxTokens and
// Temperature inherit the judge-level values.
type ProviderConfig struct {
	Name        string   `yaml:"name" mapstructure:"name"`
	Kind        string   `yaml:"kind" mapstructure:"kind"`
	Model       string   `yaml:"model" mapstructure:"model"`
	BaseURL     string   `yaml:"base_url" mapstructure:"base_url"`
	APIKeyEnv   string   `yaml:"api_key_env" mapstructure:"api_key_env"`
	MaxTokens   int      `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature *float64 `yaml:"temperature" mapstructure:"temperature"`
	JSONMode    bool     `yaml:"json_mode" mapstructure:"json_mode"`
	Enabled     *bool    `yaml:"enabled" mapstructure:"enabled"`
}

// ConsensusConfig configures reconciliation thresholds.
type ConsensusConfig struct {
	HighThreshold float64            `yaml:"high_threshold" mapstructure:"high_threshold"`
	LowThreshold  float64            `yaml:"low_threshold" mapstructure:"low_threshold"`
	FieldWeights  map[string]float64 `yaml:"field_weights" mapstructure:"field_weights"`
	CountryCode   string             `yaml:"country_code" mapstructure:"country_code"`
}

// ScorerConfig configures quality scoring and qualification.
type ScorerConfig struct {
	CompletenessWeight  float64             `yaml:"completeness_weight" mapstructure:"completeness_weight"`
	AgreementWeight     float64             `yaml:"agreement_weight" mapstructure:"agreement_weight"`
	CorroborationWeight float64             `yaml:"corroboration_weight" mapstructure:"corroboration_weight"`
	CorroborationTarget int                 `yaml:"corroboration_target" mapstructure:"corroboration_target"`
	Tiers               []QualificationTier `yaml:"tiers" mapstructure:"tiers"`
}

// QualificationTier maps a minimum score to a decision and next action.
type QualificationTier struct {
	MinScore float64 `yaml:"min_score" mapstructure:"min_score"`
	Decision string  `yaml:"decision" mapstructure:"decision"`
	Action   string  `yaml:"action" mapstructure:"action"`
}

// PricingConfig holds per-model token pricing.
type PricingConfig struct {
	Models map[string]ModelPricing `yaml:"models" mapstructure:"models"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LEADS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)

	v.SetDefault("cache.driver", "sqlite")
	v.SetDefault("cache.path", "leads_cache.db")
	v.SetDefault("cache.key_prefix", "leads:cache:")
	v.SetDefault("cache.ttl_hours", 168)

	v.SetDefault("batch.max_concurrent_leads", 5)
	v.SetDefault("batch.lead_timeout_secs", 180)

	v.SetDefault("collect.budget_secs", 90)
	v.SetDefault("collect.user_agent", "Mozilla/5.0 (compatible; lead-consensus/1.0)")
	setRetryDefaults(v, "collect")
	v.SetDefault("collect.circuit.failure_threshold", 5)
	v.SetDefault("collect.circuit.reset_timeout_secs", 60)

	sources := map[string]SourceConfig{
		"input":   {Enabled: true, Priority: "critical", TimeoutSecs: 5, MaxAttempts: 1},
		"places":  {Enabled: true, Priority: "high", TimeoutSecs: 20, MaxAttempts: 2, Rate: 5, Burst: 5},
		"website": {Enabled: true, Priority: "high", TimeoutSecs: 30, MaxAttempts: 2, Rate: 2, Burst: 2},
		"search":  {Enabled: true, Priority: "medium", TimeoutSecs: 20, MaxAttempts: 2, Rate: 1, Burst: 1, MaxResults: 5},
	}
	for name, s := range sources {
		prefix := "collect.sources." + name + "."
		v.SetDefault(prefix+"enabled", s.Enabled)
		v.SetDefault(prefix+"priority", s.Priority)
		v.SetDefault(prefix+"timeout_secs", s.TimeoutSecs)
		v.SetDefault(prefix+"max_attempts", s.MaxAttempts)
		v.SetDefault(prefix+"rate", s.Rate)
		v.SetDefault(prefix+"burst", s.Burst)
		v.SetDefault(prefix+"max_results", s.MaxResults)
	}

	v.SetDefault("google.language", "pt-BR")
	v.SetDefault("google.region", "BR")

	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("jina.country", "BR")
	v.SetDefault("jina.language", "pt")
	v.SetDefault("jina.read_timeout_secs", 20)

	v.SetDefault("judge.timeout_secs", 60)
	v.SetDefault("judge.max_tokens", 500)
	v.SetDefault("judge.temperature", 0.7)
	setRetryDefaults(v, "judge")
	v.SetDefault("judge.circuit.failure_threshold", 5)
	v.SetDefault("judge.circuit.reset_timeout_secs", 60)

	v.SetDefault("consensus.high_threshold", 0.7)
	v.SetDefault("consensus.low_threshold", 0.4)
	v.SetDefault("consensus.country_code", "55")

	v.SetDefault("scorer.completeness_weight", 40)
	v.SetDefault("scorer.agreement_weight", 35)
	v.SetDefault("scorer.corroboration_weight", 25)
	v.SetDefault("scorer.corroboration_target", 2)
	v.SetDefault("scorer.tiers", []map[string]any{
		{"min_score": 80, "decision": "qualified", "action": "contact_now"},
		{"min_score": 60, "decision": "qualified", "action": "schedule_follow_up"},
		{"min_score": 40, "decision": "needs_review", "action": "manual_review"},
		{"min_score": 0, "decision": "disqualified", "action": "discard"},
	})
}

func setRetryDefaults(v *viper.Viper, section string) {
	v.SetDefault(section+".retry.max_attempts", 3)
	v.SetDefault(section+".retry.initial_backoff_ms", 1000)
	v.SetDefault(section+".retry.max_backoff_ms", 30000)
	v.SetDefault(section+".retry.multiplier", 2.0)
	v.SetDefault(section+".retry.jitter_fraction", 0.25)
}

// Validate checks the settings a command mode depends on. Modes: "run",
// "serve", "cache".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "run", "serve":
		if c.Batch.MaxConcurrentLeads < 1 || c.Batch.MaxConcurrentLeads > 50 {
			errs = append(errs, "batch.max_concurrent_leads must be between 1 and 50")
		}
		if c.Batch.LeadTimeoutSecs <= 0 {
			errs = append(errs, "batch.lead_timeout_secs must be > 0")
		}
		if c.Collect.BudgetSecs <= 0 {
			errs = append(errs, "collect.budget_secs must be > 0")
		}
		if c.Judge.TimeoutSecs <= 0 {
			errs = append(errs, "judge.timeout_secs must be > 0")
		}
		if c.Consensus.HighThreshold < -1 || c.Consensus.HighThreshold > 1 ||
			c.Consensus.LowThreshold < -1 || c.Consensus.LowThreshold > 1 {
			errs = append(errs, "consensus thresholds must be between -1 and 1")
		}
		if c.Consensus.LowThreshold > c.Consensus.HighThreshold {
			errs = append(errs, "consensus.low_threshold must be <= consensus.high_threshold")
		}
		if c.Scorer.CompletenessWeight < 0 || c.Scorer.AgreementWeight < 0 || c.Scorer.CorroborationWeight < 0 {
			errs = append(errs, "scorer weights must be >= 0")
		}
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		errs = append(errs, c.validateCache()...)
	case "cache":
		errs = append(errs, c.validateCache()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateCache() []string {
	var errs []string
	switch c.Cache.Driver {
	case "sqlite":
		if c.Cache.Path == "" {
			errs = append(errs, "cache.path is required for sqlite")
		}
	case "postgres":
		if c.Cache.DatabaseURL == "" {
			errs = append(errs, "cache.database_url is required for postgres")
		}
	case "redis":
		if c.Cache.RedisAddr == "" {
			errs = append(errs, "cache.redis_addr is required for redis")
		}
	case "none":
	default:
		errs = append(errs, fmt.Sprintf("cache.driver %q is not supported", c.Cache.Driver))
	}
	if c.Cache.TTLHours <= 0 {
		errs = append(errs, "cache.ttl_hours must be > 0")
	}
	return errs
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
