package model

import "time"

// LeadStatus is the lead lifecycle. Leads are never deleted, only
// status-transitioned.
type LeadStatus string

const (
	LeadNew             LeadStatus = "new"
	LeadEnrichedDetails LeadStatus = "enriched_details"
	LeadScored          LeadStatus = "scored"
	LeadExported        LeadStatus = "exported"
	LeadDiscarded       LeadStatus = "discarded"
)

// EmployeeRange is an estimated employee-count band. Min=1, Max=0 is the
// explicit "unknown size class" sentinel; Min=0, Max=0 means no class at all.
type EmployeeRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Known returns true when the range carries a usable estimate.
func (r EmployeeRange) Known() bool {
	return r.Max >= r.Min && r.Max > 0
}

// Lead is the canonical deduplicated business record. Uniqueness is enforced
// on (tenant, run, place_id) by the store.
type Lead struct {
	ID             int64          `json:"id"`
	TenantID       string         `json:"tenant_id"`
	RunID          int64          `json:"run_id"`
	PlaceID        string         `json:"place_id"`
	Name           string         `json:"name"`
	Address        string         `json:"address,omitempty"`
	City           string         `json:"city,omitempty"`
	State          string         `json:"state,omitempty"`
	Website        string         `json:"website,omitempty"`
	Domain         string         `json:"domain,omitempty"`
	Phone          string         `json:"phone,omitempty"`
	RegistryKey    string         `json:"registry_key,omitempty"`
	Employees      EmployeeRange  `json:"employees"`
	Email          string         `json:"email,omitempty"`
	EmailSourceURL string         `json:"email_source_url,omitempty"`
	Rating         float64        `json:"rating,omitempty"`
	ReviewCount    int            `json:"review_count,omitempty"`
	Score          float64        `json:"score"`
	Status         LeadStatus     `json:"status"`
	Extra          map[string]any `json:"extra,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
