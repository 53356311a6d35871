// Package collect fans a lead out to its contact sources under a shared
// retry policy, per-source rate limits and circuit breakers, and merges
// whatever comes back into one RawCollectedData.
package collect

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-consensus/internal/model"
)

// Source collects contact fields for a lead from one data source.
type Source interface {
	// Name is the namespace used for the source's fields.
	Name() string
	// Supports reports whether the source has anything to work with for
	// lead. Unsupported sources are recorded as skipped.
	Supports(lead model.Lead) bool
	// Collect returns the fields the source found. A nil value means the
	// field was looked for but not found.
	Collect(ctx context.Context, lead model.Lead) (*Result, error)
}

// Result is one source's output for one lead.
type Result struct {
	Fields map[string]*string
	// Partial is set when some of the source's sub-requests failed.
	Partial bool
}

// Present counts the non-blank values in the result.
func (r *Result) Present() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, v := range r.Fields {
		if v != nil && strings.TrimSpace(*v) != "" {
			n++
		}
	}
	return n
}

// Priority orders sources for logging and merging.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityMedium
	PriorityLow
	PriorityOptional
)

var priorityNames = map[Priority]string{
	PriorityCritical: "critical",
	PriorityHigh:     "high",
	PriorityMedium:   "medium",
	PriorityLow:      "low",
	PriorityOptional: "optional",
}

func (p Priority) String() string {
	if s, ok := priorityNames[p]; ok {
		return s
	}
	return "unknown"
}

// ParsePriority parses a priority name. Empty means medium.
func ParsePriority(s string) (Priority, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return PriorityMedium, nil
	}
	for p, name := range priorityNames {
		if name == s {
			return p, nil
		}
	}
	return 0, eris.Errorf("collect: unknown priority %q", s)
}

// Settings tune how the orchestrator drives one source.
type Settings struct {
	Priority    Priority
	Timeout     time.Duration // per attempt
	MaxAttempts int
	Rate        float64 // requests per second, 0 = unlimited
	Burst       int
}

func (s Settings) withDefaults() Settings {
	if s.Timeout <= 0 {
		s.Timeout = 30 * time.Second
	}
	if s.MaxAttempts <= 0 {
		s.MaxAttempts = 3
	}
	if s.Burst <= 0 {
		s.Burst = 1
	}
	return s
}

type entry struct {
	source   Source
	settings Settings
	seq      int
}

// Registry maps source names to their implementations and settings.
type Registry struct {
	entries map[string]entry
	order   []string // insertion order for deterministic iteration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a source. Names must be unique and must not contain ".".
func (r *Registry) Register(s Source, settings Settings) error {
	name := s.Name()
	if name == "" || strings.Contains(name, ".") {
		return eris.Errorf("collect: invalid source name %q", name)
	}
	if _, dup := r.entries[name]; dup {
		return eris.Errorf("collect: source %q already registered", name)
	}
	r.entries[name] = entry{source: s, settings: settings.withDefaults(), seq: len(r.order)}
	r.order = append(r.order, name)
	return nil
}

// Get returns a source by name.
func (r *Registry) Get(name string) (Source, Settings, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, Settings{}, eris.Errorf("collect: unknown source %q", name)
	}
	return e.source, e.settings, nil
}

// Select returns a registry restricted to names. Empty names selects all.
func (r *Registry) Select(names []string) (*Registry, error) {
	if len(names) == 0 {
		return r, nil
	}
	out := NewRegistry()
	for _, name := range names {
		e, ok := r.entries[name]
		if !ok {
			return nil, eris.Errorf("collect: unknown source %q", name)
		}
		if err := out.Register(e.source, e.settings); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Names returns source names ordered by priority, then registration.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	sort.SliceStable(out, func(i, j int) bool {
		return r.entries[out[i]].settings.Priority < r.entries[out[j]].settings.Priority
	})
	return out
}

// Len returns the number of registered sources.
func (r *Registry) Len() int {
	return len(r.order)
}
