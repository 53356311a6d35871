package model

import (
	"encoding/json"
	"time"
)

// Lead result statuses.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Quality is the scorer's verdict on a consolidated record.
type Quality struct {
	Score          float64       `json:"score"`
	Completeness   float64       `json:"completeness"`
	Agreement      float64       `json:"agreement"`
	Corroboration  float64       `json:"corroboration"`
	Corroborations map[Field]int `json:"corroborations"`
	Decision       string        `json:"decision"`
	Action         string        `json:"action"`
}

// Enrichment is the cached payload for a fingerprint. Lead is the lead it
// was computed for; leads that share the fingerprint reuse it as is.
type Enrichment struct {
	Fingerprint string          `json:"fingerprint"`
	Lead        Lead            `json:"lead"`
	Consensus   ConsensusResult `json:"consensus"`
	Quality     Quality         `json:"quality"`
	Sources     []SourceStatus  `json:"sources"`
	Providers   []string        `json:"providers"`
	ComputedAt  time.Time       `json:"computed_at"`
}

// LeadMeta is per-run processing metadata; it is never cached.
type LeadMeta struct {
	Elapsed      time.Duration     `json:"elapsed_ns"`
	CacheHit     bool              `json:"cache_hit"`
	Deduplicated bool              `json:"deduplicated"`
	CacheError   string            `json:"cache_error,omitempty"`
	Sources      []SourceStatus    `json:"sources,omitempty"`
	Providers    []ProviderOutcome `json:"providers,omitempty"`
	CostUSD      float64           `json:"cost_usd"`
}

// LeadResult is returned for every submitted lead, in input order.
type LeadResult struct {
	Index       int         `json:"index"`
	LeadID      string      `json:"lead_id"`
	Input       Lead        `json:"input"`
	Fingerprint string      `json:"fingerprint,omitempty"`
	Status      string      `json:"status"`
	Error       string      `json:"error,omitempty"`
	Decision    string      `json:"decision"`
	Action      string      `json:"action"`
	Enrichment  *Enrichment `json:"enrichment,omitempty"`
	Meta        LeadMeta    `json:"meta"`
}

// BatchStats summarizes one batch run.
type BatchStats struct {
	Total       int                   `json:"total"`
	Succeeded   int                   `json:"succeeded"`
	Failed      int                   `json:"failed"`
	CacheHits   int                   `json:"cache_hits"`
	Elapsed     time.Duration         `json:"elapsed_ns"`
	CostUSD     float64               `json:"cost_usd"`
	Reliability []ProviderReliability `json:"reliability"`
}

// BatchResult holds one result per submitted lead plus batch statistics.
type BatchResult struct {
	ID      string       `json:"id"`
	Results []LeadResult `json:"results"`
	Stats   BatchStats   `json:"stats"`
}

// CacheEntry is a stored payload keyed by fingerprint.
type CacheEntry struct {
	Fingerprint string          `json:"fingerprint"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	TTL         time.Duration   `json:"ttl"`
}

// ExpiresAt returns the instant after which the entry is treated as absent.
func (e CacheEntry) ExpiresAt() time.Time {
	return e.CreatedAt.Add(e.TTL)
}

// Expired reports whether the entry is stale at now.
func (e CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt())
}
