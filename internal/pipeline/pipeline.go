// Package pipeline runs batches of leads through collection, provider
// judgment, consensus and scoring.
//
// Each lead passes a two-phase barrier. Phase A (concurrent, bounded) does
// the cache lookup, collects raw data and dispatches it to every provider.
// Phase B (sequential, input order) builds the batch reliability ranking,
// reconciles, scores and writes the cache.
package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-consensus/internal/cache"
	"github.com/sells-group/lead-consensus/internal/consensus"
	"github.com/sells-group/lead-consensus/internal/model"
	"github.com/sells-group/lead-consensus/internal/scorer"
)

// Defaults.
const (
	DefaultConcurrency = 5
	DefaultLeadTimeout = 180 * time.Second
)

// Collector gathers raw contact data for a lead. It returns an error only
// for a lead that cannot be processed.
type Collector interface {
	Collect(ctx context.Context, lead model.Lead) (*model.RawCollectedData, error)
}

// Judge asks every configured provider to judge a lead.
type Judge interface {
	Dispatch(ctx context.Context, lead model.Lead, data *model.RawCollectedData) []model.ProviderOutcome
	Providers() []string
}

// Options configure a Pipeline.
type Options struct {
	// Concurrency bounds leads in flight. Default: 5.
	Concurrency int
	// LeadTimeout bounds phase A for one lead. Default: 180s.
	LeadTimeout time.Duration
	// TTL is the lifetime of written cache entries. Default: 168h.
	TTL time.Duration
	// Now stamps computed results. Default: time.Now.
	Now func() time.Time
}

// Pipeline wires the collection, judgment, consensus and scoring stages.
type Pipeline struct {
	collector Collector
	judge     Judge
	engine    *consensus.Engine
	scorer    *scorer.Scorer
	cache     *cache.Tracked
	opts      Options
}

// New creates a Pipeline. A nil cache disables caching.
func New(collector Collector, judge Judge, engine *consensus.Engine, sc *scorer.Scorer, c *cache.Tracked, opts Options) *Pipeline {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.LeadTimeout <= 0 {
		opts.LeadTimeout = DefaultLeadTimeout
	}
	if opts.TTL <= 0 {
		opts.TTL = cache.DefaultTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if c == nil {
		c = cache.NewTracked(nil)
	}
	return &Pipeline{
		collector: collector,
		judge:     judge,
		engine:    engine,
		scorer:    sc,
		cache:     c,
		opts:      opts,
	}
}

// Cache returns the tracked cache used by the pipeline.
func (p *Pipeline) Cache() *cache.Tracked {
	return p.cache
}

// prepared is the phase A output for one fingerprint.
type prepared struct {
	cached   *model.Enrichment
	raw      *model.RawCollectedData
	outcomes []model.ProviderOutcome
	cacheErr string
	err      error
}

// Run processes leads and returns exactly one result per lead, in input
// order. Per-lead failures become error results; Run itself never fails.
func (p *Pipeline) Run(ctx context.Context, leads []model.Lead) *model.BatchResult {
	start := time.Now()
	batch := &model.BatchResult{
		ID:      uuid.New().String(),
		Results: make([]model.LeadResult, len(leads)),
	}
	log := zap.L().With(zap.String("batch_id", batch.ID))
	log.Info("pipeline: batch started",
		zap.Int("leads", len(leads)),
		zap.Int("concurrency", p.opts.Concurrency),
	)

	// Phase A.
	fps := make([]string, len(leads))
	preps := make([]*prepared, len(leads))
	elapsed := make([]time.Duration, len(leads))
	locks := newLockTable()

	var g errgroup.Group
	g.SetLimit(p.opts.Concurrency)
	for i, lead := range leads {
		g.Go(func() error {
			leadStart := time.Now()
			defer func() { elapsed[i] = time.Since(leadStart) }()

			if err := lead.Validate(); err != nil {
				preps[i] = &prepared{err: err}
				return nil
			}
			fps[i] = lead.Fingerprint()
			preps[i] = locks.do(fps[i], func() *prepared {
				return p.prepare(ctx, lead, fps[i])
			})
			return nil
		})
	}
	_ = g.Wait()

	// Phase B.
	tracker := p.engine.NewTracker(p.judge.Providers())
	observed := make(map[string]bool)
	for i, pr := range preps {
		if pr.err != nil || pr.cached != nil || observed[fps[i]] {
			continue
		}
		observed[fps[i]] = true
		tracker.Observe(pr.outcomes)
	}
	ranking := tracker.Ranking()

	done := make(map[string]*model.Enrichment)
	for i, lead := range leads {
		res := p.finish(ctx, i, lead, fps[i], preps[i], ranking, done)
		res.Meta.Elapsed = elapsed[i]
		batch.Results[i] = res

		if res.Status == model.ResultError {
			log.Warn("pipeline: lead failed",
				zap.Int("index", i),
				zap.String("lead_id", lead.ID),
				zap.String("error", res.Error),
			)
			continue
		}
		log.Info("pipeline: lead complete",
			zap.Int("index", i),
			zap.String("lead_id", lead.ID),
			zap.Float64("score", res.Enrichment.Quality.Score),
			zap.String("decision", res.Decision),
			zap.Bool("cache_hit", res.Meta.CacheHit),
			zap.Bool("deduplicated", res.Meta.Deduplicated),
		)
	}

	batch.Stats = summarize(batch.Results, ranking)
	batch.Stats.Elapsed = time.Since(start)

	log.Info("pipeline: batch complete",
		zap.Int("succeeded", batch.Stats.Succeeded),
		zap.Int("failed", batch.Stats.Failed),
		zap.Int("cache_hits", batch.Stats.CacheHits),
		zap.Float64("cost_usd", batch.Stats.CostUSD),
		zap.Duration("elapsed", batch.Stats.Elapsed),
	)
	return batch
}

// RunOne processes a single lead as a batch of one.
func (p *Pipeline) RunOne(ctx context.Context, lead model.Lead) model.LeadResult {
	return p.Run(ctx, []model.Lead{lead}).Results[0]
}

// prepare runs phase A for one fingerprint: cache lookup, then collection
// and judgment under the lead timeout.
func (p *Pipeline) prepare(ctx context.Context, lead model.Lead, fp string) *prepared {
	pr := &prepared{}
	if err := ctx.Err(); err != nil {
		pr.err = eris.Wrap(err, "pipeline: batch canceled")
		return pr
	}

	entry, err := p.cache.Lookup(ctx, fp)
	if err != nil {
		pr.cacheErr = err.Error()
	}
	if entry != nil {
		var enr model.Enrichment
		if err = json.Unmarshal(entry.Payload, &enr); err == nil {
			pr.cached = &enr
			return pr
		}
		zap.L().Warn("pipeline: cached payload unreadable, recomputing",
			zap.String("fingerprint", fp),
			zap.Error(err),
		)
		pr.cacheErr = eris.Wrap(err, "pipeline: decode cached payload").Error()
	}

	leadCtx, cancel := context.WithTimeout(ctx, p.opts.LeadTimeout)
	defer cancel()

	raw, err := p.collector.Collect(leadCtx, lead)
	if err != nil {
		pr.err = err
		return pr
	}
	pr.raw = raw
	pr.outcomes = p.judge.Dispatch(leadCtx, lead, raw)

	// A lead timeout degrades to partial data; a canceled batch does not.
	if err := ctx.Err(); err != nil {
		pr.err = eris.Wrap(err, "pipeline: batch canceled")
	}
	return pr
}

// finish runs phase B for one lead.
func (p *Pipeline) finish(
	ctx context.Context,
	i int,
	lead model.Lead,
	fp string,
	pr *prepared,
	ranking []model.ProviderReliability,
	done map[string]*model.Enrichment,
) model.LeadResult {
	res := model.LeadResult{Index: i, LeadID: lead.ID, Input: lead, Fingerprint: fp}

	if pr.err != nil {
		res.Status = model.ResultError
		res.Error = pr.err.Error()
		res.Decision, res.Action = scorer.QualifyError(pr.err)
		return res
	}

	res.Status = model.ResultOK
	res.Meta.CacheError = pr.cacheErr

	enr, seen := done[fp]
	switch {
	case seen:
		res.Enrichment = enr
		res.Meta.Deduplicated = true
		res.Meta.CacheHit = pr.cached != nil
	case pr.cached != nil:
		res.Enrichment = pr.cached
		res.Meta.CacheHit = true
	default:
		res.Enrichment = p.enrich(lead, fp, pr, ranking)
		res.Meta.Sources = pr.raw.Statuses
		res.Meta.Providers = pr.outcomes
		for _, o := range pr.outcomes {
			res.Meta.CostUSD += o.CostUSD
		}
		if model.ValidJudgments(pr.outcomes) > 0 {
			if err := p.store(ctx, res.Enrichment); err != nil {
				res.Meta.CacheError = err.Error()
			}
		}
	}
	done[fp] = res.Enrichment

	res.Decision = res.Enrichment.Quality.Decision
	res.Action = res.Enrichment.Quality.Action
	return res
}

// enrich reconciles and scores a freshly computed lead.
func (p *Pipeline) enrich(lead model.Lead, fp string, pr *prepared, ranking []model.ProviderReliability) *model.Enrichment {
	cons := p.engine.Reconcile(pr.outcomes, ranking)
	return &model.Enrichment{
		Fingerprint: fp,
		Lead:        lead,
		Consensus:   *cons,
		Quality:     p.scorer.Score(cons, pr.raw),
		Sources:     pr.raw.Statuses,
		Providers:   p.judge.Providers(),
		ComputedAt:  p.opts.Now().UTC(),
	}
}

func (p *Pipeline) store(ctx context.Context, enr *model.Enrichment) error {
	payload, err := json.Marshal(enr)
	if err != nil {
		return eris.Wrap(err, "pipeline: marshal enrichment")
	}
	return p.cache.Store(ctx, model.CacheEntry{
		Fingerprint: enr.Fingerprint,
		Payload:     payload,
		CreatedAt:   enr.ComputedAt,
		TTL:         p.opts.TTL,
	})
}

func summarize(results []model.LeadResult, ranking []model.ProviderReliability) model.BatchStats {
	stats := model.BatchStats{Total: len(results), Reliability: ranking}
	for _, r := range results {
		if r.Status == model.ResultError {
			stats.Failed++
			continue
		}
		stats.Succeeded++
		if r.Meta.CacheHit {
			stats.CacheHits++
		}
		stats.CostUSD += r.Meta.CostUSD
	}
	return stats
}
