package model

import "time"

// SourceType identifies which class of source supplied a field value.
type SourceType string

const (
	SourceOfficialWebsite  SourceType = "official_website"
	SourceProviderLookup   SourceType = "provider_lookup"
	SourceOfficialProvider SourceType = "official_provider"
	SourceDiscovery        SourceType = "discovery"
)

// Evidence is the raw supporting material for a provenance entry.
type Evidence struct {
	URL      string `json:"url,omitempty"`
	Provider string `json:"provider,omitempty"`
	Method   string `json:"method,omitempty"`
	Query    string `json:"query,omitempty"`
	Snippet  string `json:"snippet,omitempty"`
}

// LeadSource is one append-only provenance ledger entry: which stage or
// provider supplied a field value, with what confidence, on what evidence.
// Entries are never edited or deleted; corrections are new rows.
type LeadSource struct {
	ID         int64      `json:"id"`
	LeadID     int64      `json:"lead_id"`
	FieldName  string     `json:"field_name"`
	SourceType SourceType `json:"source_type"`
	Value      string     `json:"value"`
	Confidence float64    `json:"confidence"`
	Evidence   Evidence   `json:"evidence"`
	CreatedAt  time.Time  `json:"created_at"`
}
