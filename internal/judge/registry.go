package judge

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-consensus/pkg/anthropic"
	"github.com/sells-group/lead-consensus/pkg/chat"
)

// Provider kinds.
const (
	KindAnthropic        = "anthropic"
	KindOpenAICompatible = "openai_compatible"
)

// DefaultMaxTokens bounds provider answers when no limit is configured.
const DefaultMaxTokens = 500

// ProviderConfig describes one configured provider.
type ProviderConfig struct {
	Name        string  `yaml:"name" mapstructure:"name"`
	Kind        string  `yaml:"kind" mapstructure:"kind"`
	Model       string  `yaml:"model" mapstructure:"model"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env" mapstructure:"api_key_env"`
	APIKey      string  `yaml:"-" mapstructure:"api_key"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	JSONMode    bool    `yaml:"json_mode" mapstructure:"json_mode"`
	Enabled     *bool   `yaml:"enabled" mapstructure:"enabled"`
}

// Factory builds a provider from its configuration and resolved API key.
type Factory func(cfg ProviderConfig, apiKey string) (Provider, error)

// Registry maps provider kinds to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry returns a registry with the built-in kinds registered.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(KindAnthropic, newAnthropicFromConfig)
	r.Register(KindOpenAICompatible, newChatFromConfig)
	return r
}

// Register adds or replaces the factory for kind.
func (r *Registry) Register(kind string, f Factory) {
	r.factories[kind] = f
}

// Build creates providers for cfgs in order. Disabled providers and
// providers whose API key is missing are skipped with a log line. lookupEnv
// defaults to os.LookupEnv.
func (r *Registry) Build(cfgs []ProviderConfig, lookupEnv func(string) (string, bool)) ([]Provider, error) {
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}

	seen := make(map[string]bool, len(cfgs))
	var out []Provider
	for _, cfg := range cfgs {
		if cfg.Name == "" {
			return nil, eris.New("judge: provider name is required")
		}
		if seen[cfg.Name] {
			return nil, eris.Errorf("judge: duplicate provider %q", cfg.Name)
		}
		seen[cfg.Name] = true

		if cfg.Enabled != nil && !*cfg.Enabled {
			zap.L().Info("judge: provider disabled", zap.String("provider", cfg.Name))
			continue
		}

		factory, ok := r.factories[cfg.Kind]
		if !ok {
			return nil, eris.Errorf("judge: provider %q has unknown kind %q", cfg.Name, cfg.Kind)
		}

		key := strings.TrimSpace(cfg.APIKey)
		if key == "" && cfg.APIKeyEnv != "" {
			v, _ := lookupEnv(cfg.APIKeyEnv)
			key = strings.TrimSpace(v)
		}
		if key == "" {
			zap.L().Warn("judge: provider skipped, no api key",
				zap.String("provider", cfg.Name),
				zap.String("env", cfg.APIKeyEnv),
			)
			continue
		}

		p, err := factory(cfg, key)
		if err != nil {
			return nil, eris.Wrapf(err, "judge: build provider %s", cfg.Name)
		}
		out = append(out, p)
	}
	return out, nil
}

func newAnthropicFromConfig(cfg ProviderConfig, apiKey string) (Provider, error) {
	if cfg.Model == "" {
		return nil, eris.New("model is required")
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	client := anthropic.NewClient(apiKey, anthropic.WithBaseURL(cfg.BaseURL))
	temp := cfg.Temperature
	return NewAnthropicProvider(cfg.Name, cfg.Model, client, maxTokens, &temp), nil
}

func newChatFromConfig(cfg ProviderConfig, apiKey string) (Provider, error) {
	if cfg.Model == "" {
		return nil, eris.New("model is required")
	}
	client := chat.NewClient(apiKey,
		chat.WithBaseURL(cfg.BaseURL),
		chat.WithModel(cfg.Model),
		chat.WithName(cfg.Name),
	)
	temp := cfg.Temperature
	return NewChatProvider(cfg.Name, cfg.Model, client, cfg.MaxTokens, &temp, cfg.JSONMode), nil
}

// DefaultProviders returns the five default providers.
func DefaultProviders() []ProviderConfig {
	return []ProviderConfig{
		{Name: "openai", Kind: KindOpenAICompatible, Model: "gpt-4o-mini", BaseURL: "https://api.openai.com/v1", APIKeyEnv: "OPENAI_API_KEY", MaxTokens: 500, Temperature: 0.7, JSONMode: true},
		{Name: "anthropic", Kind: KindAnthropic, Model: "claude-3-haiku-20240307", APIKeyEnv: "ANTHROPIC_API_KEY", MaxTokens: 500, Temperature: 0.7},
		{Name: "gemini", Kind: KindOpenAICompatible, Model: "gemini-1.5-flash", BaseURL: "https://generativelanguage.googleapis.com/v1beta/openai", APIKeyEnv: "GEMINI_API_KEY", MaxTokens: 500, Temperature: 0.7, JSONMode: true},
		{Name: "deepseek", Kind: KindOpenAICompatible, Model: "deepseek-chat", BaseURL: "https://api.deepseek.com/v1", APIKeyEnv: "DEEPSEEK_API_KEY", MaxTokens: 500, Temperature: 0.7, JSONMode: true},
		{Name: "zhipuai", Kind: KindOpenAICompatible, Model: "glm-4-flash", BaseURL: "https://open.bigmodel.cn/api/paas/v4", APIKeyEnv: "ZHIPUAI_API_KEY", MaxTokens: 500, Temperature: 0.7},
	}
}
