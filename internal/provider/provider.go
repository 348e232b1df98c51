// Package provider defines the common registry-enricher capability and its
// implementations. Each provider models one corporate-registry data source
// and returns confidence-scored candidates; the engine applies the
// acceptance threshold.
package provider

import (
	"context"
	"sync"
)

// NameQuery identifies a company by name and location for lookup.
type NameQuery struct {
	Name  string
	City  string
	State string
}

// Candidate is one confidence-scored registry match.
type Candidate struct {
	Key         string  `json:"key"`
	LegalName   string  `json:"legal_name"`
	TradeName   string  `json:"trade_name,omitempty"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
}

// CompanyData is a full registry record fetched by key.
type CompanyData struct {
	Key       string         `json:"key"`
	LegalName string         `json:"legal_name"`
	TradeName string         `json:"trade_name,omitempty"`
	SizeClass string         `json:"size_class,omitempty"`
	Email     string         `json:"email,omitempty"`
	Phone     string         `json:"phone,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// CompanyProvider is the common lookup capability all registry enrichers
// implement.
type CompanyProvider interface {
	// Name returns the provider identifier used in config and provenance.
	Name() string
	// LookupByName returns zero or more candidates ordered by descending
	// confidence. An empty result is not an error.
	LookupByName(ctx context.Context, q NameQuery) ([]Candidate, error)
	// EnrichByKey fetches the full record for an already-assigned key.
	EnrichByKey(ctx context.Context, key string) (*CompanyData, error)
}

// Registry holds the constructed providers for a run.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]CompanyProvider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]CompanyProvider)}
}

// Register adds a provider to the registry.
func (r *Registry) Register(p CompanyProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns a provider by name, or nil if not found.
func (r *Registry) Get(name string) CompanyProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name]
}

// List returns all registered provider names.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
