package main

import (
	"context"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-consensus/internal/cache"
	"github.com/sells-group/lead-consensus/internal/collect"
	"github.com/sells-group/lead-consensus/internal/config"
	"github.com/sells-group/lead-consensus/internal/consensus"
	"github.com/sells-group/lead-consensus/internal/cost"
	"github.com/sells-group/lead-consensus/internal/judge"
	"github.com/sells-group/lead-consensus/internal/pipeline"
	"github.com/sells-group/lead-consensus/internal/resilience"
	"github.com/sells-group/lead-consensus/internal/scorer"
	"github.com/sells-group/lead-consensus/pkg/google"
	"github.com/sells-group/lead-consensus/pkg/jina"
)

// leadEnv holds the cache and the assembled pipeline used by the run and
// serve commands.
type leadEnv struct {
	Cache    *cache.Tracked
	Pipeline *pipeline.Pipeline
}

// Close releases the cache backend.
func (e *leadEnv) Close() {
	if e.Cache != nil {
		_ = e.Cache.Backend().Close()
	}
}

// initEnv validates the configuration for mode and builds the pipeline.
// A non-empty sources list restricts collection to those sources. Callers
// should defer env.Close().
func initEnv(ctx context.Context, c *config.Config, mode string, lookupEnv func(string) (string, bool), sources ...string) (*leadEnv, error) {
	if err := c.Validate(mode); err != nil {
		return nil, err
	}
	if err := scorer.ValidateConfig(c.Scorer); err != nil {
		return nil, err
	}
	consCfg := consensusConfig(c.Consensus)
	if err := consCfg.Validate(); err != nil {
		return nil, err
	}

	registry, err := buildSources(c)
	if err != nil {
		return nil, err
	}
	if registry, err = registry.Select(sources); err != nil {
		return nil, err
	}
	orch := collect.NewOrchestrator(registry, collect.Options{
		Budget:   seconds(c.Collect.BudgetSecs),
		Policy:   retryPolicy(c.Collect.Retry),
		Breakers: resilience.NewBreakers(resilience.BreakerFromConfig(c.Collect.Circuit.FailureThreshold, c.Collect.Circuit.ResetTimeoutSecs)),
	})

	providers, err := judge.NewRegistry().Build(providerConfigs(c.Judge), lookupEnv)
	if err != nil {
		return nil, err
	}
	if len(providers) == 0 {
		zap.L().Warn("no judgment providers configured; every lead will lack consensus")
	}
	costs := cost.NewCalculator(pricing(c.Pricing))
	for _, p := range providers {
		if !costs.Known(p.Model()) {
			zap.L().Warn("no pricing for provider model, cost reported as 0",
				zap.String("provider", p.Name()),
				zap.String("model", p.Model()),
			)
		}
	}
	dispatcher := judge.NewDispatcher(providers, judge.DispatcherOptions{
		Timeout:  seconds(c.Judge.TimeoutSecs),
		Policy:   retryPolicy(c.Judge.Retry),
		Breakers: resilience.NewBreakers(resilience.BreakerFromConfig(c.Judge.Circuit.FailureThreshold, c.Judge.Circuit.ResetTimeoutSecs)),
		Costs:    costs,
	})

	backend, cacheErr := cache.OpenOrNoop(ctx, cacheConfig(c.Cache))
	tracked := cache.NewTracked(backend)
	tracked.MarkUnavailable(cacheErr)

	engine := consensus.NewEngine(consCfg)
	p := pipeline.New(orch, dispatcher, engine, scorer.NewScorer(c.Scorer, engine.Normalizer()), tracked, pipeline.Options{
		Concurrency: c.Batch.MaxConcurrentLeads,
		LeadTimeout: seconds(c.Batch.LeadTimeoutSecs),
		TTL:         time.Duration(c.Cache.TTLHours) * time.Hour,
	})

	zap.L().Info("pipeline ready",
		zap.Strings("sources", orch.Sources()),
		zap.Strings("providers", dispatcher.Providers()),
		zap.String("cache", c.Cache.Driver),
	)
	return &leadEnv{Cache: tracked, Pipeline: p}, nil
}

// openCache opens the configured cache backend for the cache subcommands,
// which fail when it is unavailable.
func openCache(ctx context.Context, c config.CacheConfig) (cache.Cache, error) {
	backend, err := cache.Open(ctx, cacheConfig(c))
	if err != nil {
		return nil, eris.Wrap(err, "open cache")
	}
	return backend, nil
}

func cacheConfig(c config.CacheConfig) cache.Config {
	return cache.Config{
		Driver:        c.Driver,
		Path:          c.Path,
		DatabaseURL:   c.DatabaseURL,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
		KeyPrefix:     c.KeyPrefix,
	}
}

// buildSources registers every enabled source in name order.
func buildSources(c *config.Config) (*collect.Registry, error) {
	names := make([]string, 0, len(c.Collect.Sources))
	for name := range c.Collect.Sources {
		names = append(names, name)
	}
	sort.Strings(names)

	httpClient := &http.Client{Timeout: 60 * time.Second}
	jinaOpts := []jina.Option{
		jina.WithHTTPClient(httpClient),
		jina.WithReadTimeout(seconds(c.Jina.ReadTimeoutSecs)),
	}
	if c.Jina.BaseURL != "" {
		jinaOpts = append(jinaOpts, jina.WithBaseURL(c.Jina.BaseURL))
	}
	if c.Jina.SearchBaseURL != "" {
		jinaOpts = append(jinaOpts, jina.WithSearchBaseURL(c.Jina.SearchBaseURL))
	}
	jinaClient := jina.NewClient(c.Jina.Key, jinaOpts...)

	registry := collect.NewRegistry()
	for _, name := range names {
		sc := c.Collect.Sources[name]
		if !sc.Enabled {
			zap.L().Info("source disabled", zap.String("source", name))
			continue
		}

		var src collect.Source
		switch name {
		case "input":
			src = collect.NewInputSource()
		case "places":
			if c.Google.Key == "" {
				zap.L().Warn("source skipped, no google key", zap.String("source", name))
				continue
			}
			src = collect.NewPlacesSource(google.NewClient(c.Google.Key,
				google.WithHTTPClient(httpClient),
				google.WithLocale(c.Google.Language, c.Google.Region),
			))
		case "website":
			src = collect.NewWebsiteSource(
				collect.WithHTTPClient(httpClient),
				collect.WithReader(jinaClient),
				collect.WithUserAgent(c.Collect.UserAgent),
			)
		case "search":
			var bias []jina.SearchOption
			if c.Jina.Country != "" {
				bias = append(bias, jina.WithCountry(c.Jina.Country))
			}
			if c.Jina.Language != "" {
				bias = append(bias, jina.WithLanguage(c.Jina.Language))
			}
			src = collect.NewSearchSource(jinaClient, sc.MaxResults, bias...)
		default:
			return nil, eris.Errorf("collect: unknown source %q", name)
		}

		priority, err := collect.ParsePriority(sc.Priority)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(src, collect.Settings{
			Priority:    priority,
			Timeout:     seconds(sc.TimeoutSecs),
			MaxAttempts: sc.MaxAttempts,
			Rate:        sc.Rate,
			Burst:       sc.Burst,
		}); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// providerConfigs converts configured providers, falling back to the
// default provider set. Unset limits inherit the judge-level values.
func providerConfigs(j config.JudgeConfig) []judge.ProviderConfig {
	if len(j.Providers) == 0 {
		defaults := judge.DefaultProviders()
		for i := range defaults {
			if j.MaxTokens > 0 {
				defaults[i].MaxTokens = j.MaxTokens
			}
			defaults[i].Temperature = j.Temperature
		}
		return defaults
	}

	out := make([]judge.ProviderConfig, 0, len(j.Providers))
	for _, p := range j.Providers {
		pc := judge.ProviderConfig{
			Name:        p.Name,
			Kind:        p.Kind,
			Model:       p.Model,
			BaseURL:     p.BaseURL,
			APIKeyEnv:   p.APIKeyEnv,
			MaxTokens:   p.MaxTokens,
			Temperature: j.Temperature,
			JSONMode:    p.JSONMode,
			Enabled:     p.Enabled,
		}
		if pc.MaxTokens <= 0 {
			pc.MaxTokens = j.MaxTokens
		}
		if p.Temperature != nil {
			pc.Temperature = *p.Temperature
		}
		out = append(out, pc)
	}
	return out
}

func consensusConfig(c config.ConsensusConfig) consensus.Config {
	cc := consensus.DefaultConfig()
	cc.HighThreshold = c.HighThreshold
	cc.LowThreshold = c.LowThreshold
	for k, w := range c.FieldWeights {
		cc.FieldWeights[k] = w
	}
	if c.CountryCode != "" {
		cc.CountryCode = c.CountryCode
	}
	return cc
}

func pricing(p config.PricingConfig) cost.Rates {
	if len(p.Models) == 0 {
		return cost.DefaultRates()
	}
	rates := cost.Rates{Models: make(map[string]cost.ModelRate, len(p.Models))}
	for model, m := range p.Models {
		rates.Models[model] = cost.ModelRate{Input: m.Input, Output: m.Output}
	}
	return rates
}

func retryPolicy(r config.RetryConfig) resilience.Policy {
	return resilience.PolicyFromConfig(r.MaxAttempts, r.InitialBackoffMs, r.MaxBackoffMs, r.Multiplier, r.JitterFraction)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// lookupEnv is the environment lookup used for provider API keys.
var lookupEnv = os.LookupEnv
