package judge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestRegistry_BuildSkipsMissingKeys(t *testing.T) {
	r := NewRegistry()
	providers, err := r.Build(DefaultProviders(), envMap(map[string]string{
		"OPENAI_API_KEY":    "sk-test",
		"ANTHROPIC_API_KEY": "sk-ant-test",
		"DEEPSEEK_API_KEY":  "  ",
	}))
	require.NoError(t, err)
	require.Len(t, providers, 2)

	assert.Equal(t, "openai", providers[0].Name())
	assert.IsType(t, &ChatProvider{}, providers[0])
	assert.Equal(t, "anthropic", providers[1].Name())
	assert.IsType(t, &AnthropicProvider{}, providers[1])
	assert.Equal(t, "claude-3-haiku-20240307", providers[1].Model())
}

func TestRegistry_BuildInlineKey(t *testing.T) {
	r := NewRegistry()
	providers, err := r.Build([]ProviderConfig{
		{Name: "local", Kind: KindOpenAICompatible, Model: "llama3", BaseURL: "http://localhost:11434/v1", APIKey: "none"},
	}, envMap(nil))
	require.NoError(t, err)
	require.Len(t, providers, 1)
	assert.Equal(t, "llama3", providers[0].Model())
}

func TestRegistry_BuildDisabled(t *testing.T) {
	off := false
	r := NewRegistry()
	providers, err := r.Build([]ProviderConfig{
		{Name: "openai", Kind: KindOpenAICompatible, Model: "gpt-4o-mini", APIKey: "k", Enabled: &off},
	}, envMap(nil))
	require.NoError(t, err)
	assert.Empty(t, providers)
}

func TestRegistry_BuildErrors(t *testing.T) {
	tests := []struct {
		name string
		cfgs []ProviderConfig
		want string
	}{
		{
			name: "unknown kind",
			cfgs: []ProviderConfig{{Name: "x", Kind: "grpc", Model: "m", APIKey: "k"}},
			want: "unknown kind",
		},
		{
			name: "duplicate",
			cfgs: []ProviderConfig{
				{Name: "openai", Kind: KindOpenAICompatible, Model: "m", APIKey: "k"},
				{Name: "openai", Kind: KindOpenAICompatible, Model: "m", APIKey: "k"},
			},
			want: "duplicate provider",
		},
		{
			name: "missing name",
			cfgs: []ProviderConfig{{Kind: KindAnthropic, Model: "m", APIKey: "k"}},
			want: "name is required",
		},
		{
			name: "missing model",
			cfgs: []ProviderConfig{{Name: "anthropic", Kind: KindAnthropic, APIKey: "k"}},
			want: "model is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry().Build(tt.cfgs, envMap(nil))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestRegistry_CustomKind(t *testing.T) {
	r := NewRegistry()
	r.Register("fake", func(cfg ProviderConfig, apiKey string) (Provider, error) {
		return &fakeProvider{name: cfg.Name, model: apiKey}, nil
	})

	providers, err := r.Build([]ProviderConfig{{Name: "stub", Kind: "fake", APIKeyEnv: "STUB_KEY"}},
		envMap(map[string]string{"STUB_KEY": "secret"}))
	require.NoError(t, err)
	require.Len(t, providers, 1)
	assert.Equal(t, "secret", providers[0].Model())
}
