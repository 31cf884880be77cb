package analysis

import (
	"context"
	"time"
)

// AnalyzeRequest carries one chunk's worth of text to a provider.
type AnalyzeRequest struct {
	Text       string
	SourceFile string
	PageCount  int
}

// Provider analyzes one chunk of document text and returns the structured
// result plus fresh inference metadata. Implementations are stateless: one
// instance safely serves sequential calls for the life of the process.
type Provider interface {
	Name() string
	Analyze(ctx context.Context, req AnalyzeRequest) (DocumentAnalysis, InferenceMetadata, error)
}

// Registry is a fixed name→provider table with one configured default. The
// provider set is closed; callers select a backend by name without depending
// on any concrete adapter.
type Registry struct {
	providers   map[string]Provider
	defaultName string
}

// NewRegistry builds a registry from the given providers, keyed by Name().
// defaultName is used when Get is called with an empty name.
func NewRegistry(defaultName string, providers ...Provider) *Registry {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	return &Registry{providers: m, defaultName: defaultName}
}

// Get looks up a provider by name, or the configured default for "".
// An unknown name is a ConfigError listing the valid keys — a configuration
// problem, never retried.
func (r *Registry) Get(name string) (Provider, error) {
	if name == "" {
		name = r.defaultName
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, unknownProviderError(name, r.providers)
	}
	return p, nil
}

// DefaultTimeout bounds a single provider invocation when the adapter was not
// configured with one. Subprocess analysis of a 50-page chunk routinely takes
// minutes.
const DefaultTimeout = 10 * time.Minute

func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// estimateInputTokens is a cheap ~4-chars-per-token fallback so cost analysis
// has a value even when the provider omits usage.
func estimateInputTokens(text string) int {
	return len(text) / 4
}
