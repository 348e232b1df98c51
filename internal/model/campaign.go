package model

import "time"

// Campaign is a named prospecting definition owned by a tenant. The name is
// unique per tenant; the config is the full campaign document as loaded from
// YAML.
type Campaign struct {
	ID        int64          `json:"id"`
	TenantID  string         `json:"tenant_id"`
	Name      string         `json:"name"`
	Config    CampaignConfig `json:"config"`
	CreatedAt time.Time      `json:"created_at"`
}

// Region is one geographic search area.
type Region struct {
	Country  string `json:"country" yaml:"country"`
	State    string `json:"state" yaml:"state"`
	City     string `json:"city" yaml:"city"`
	RadiusKM int    `json:"radius_km" yaml:"radius_km"`
}

// Categories holds discovery-source category include/exclude lists.
type Categories struct {
	Include []string `json:"include" yaml:"include"`
	Exclude []string `json:"exclude" yaml:"exclude"`
}

// Limits bounds how much work a run may generate.
type Limits struct {
	MaxLeadsTotal     int `json:"max_leads_total" yaml:"max_leads_total"`
	MaxPerRegion      int `json:"max_per_region" yaml:"max_per_region"`
	MaxPagesPerDomain int `json:"max_pages_per_domain" yaml:"max_pages_per_domain"`
}

// UnknownPolicy controls how range filters treat leads whose value is unknown.
type UnknownPolicy string

const (
	UnknownInclude   UnknownPolicy = "include"
	UnknownExclude   UnknownPolicy = "exclude"
	UnknownScoreZero UnknownPolicy = "score_zero"
)

// RangeFilter is a numeric min/max filter with an explicit unknown policy.
type RangeFilter struct {
	Min           *int          `json:"min,omitempty" yaml:"min"`
	Max           *int          `json:"max,omitempty" yaml:"max"`
	PolicyUnknown UnknownPolicy `json:"policy_unknown" yaml:"policy_unknown"`
}

// ContactsFilter declares which contact channels a lead must have.
type ContactsFilter struct {
	RequirePhone   bool `json:"require_phone" yaml:"require_phone"`
	RequireEmail   bool `json:"require_email" yaml:"require_email"`
	RequireWebsite bool `json:"require_website" yaml:"require_website"`
}

// RegistryKeyFilter constrains leads by their corporate-registry key.
// Include, when non-empty, is an allowlist; Exclude always wins over Include.
// Keys are compared digits-only.
type RegistryKeyFilter struct {
	Require bool     `json:"require" yaml:"require"`
	Include []string `json:"include" yaml:"include"`
	Exclude []string `json:"exclude" yaml:"exclude"`
}

// Filters groups all campaign filter policy.
type Filters struct {
	RegistryKey RegistryKeyFilter `json:"registry_key" yaml:"registry_key"`
	Employees   RangeFilter       `json:"employees" yaml:"employees"`
	Contacts    ContactsFilter    `json:"contacts" yaml:"contacts"`
}

// ScoringWeights holds the per-attribute point values used by the score stage.
type ScoringWeights struct {
	HasPhone         int `json:"has_phone" yaml:"has_phone"`
	HasEmail         int `json:"has_email" yaml:"has_email"`
	HasWebsite       int `json:"has_website" yaml:"has_website"`
	EmployeesInRange int `json:"employees_in_range" yaml:"employees_in_range"`
	Rating           int `json:"rating" yaml:"rating"`
	Reviews          int `json:"reviews" yaml:"reviews"`
}

// CampaignConfig is the full campaign document.
type CampaignConfig struct {
	Name       string         `json:"name" yaml:"name"`
	Goal       string         `json:"goal" yaml:"goal"`
	Regions    []Region       `json:"regions" yaml:"regions"`
	Keywords   []string       `json:"keywords" yaml:"keywords"`
	Categories Categories     `json:"categories" yaml:"categories"`
	Limits     Limits         `json:"limits" yaml:"limits"`
	Filters    Filters        `json:"filters" yaml:"filters"`
	Weights    ScoringWeights `json:"scoring_weights" yaml:"scoring_weights"`
	Exports    []string       `json:"exports" yaml:"exports"`
}

// SearchTerms returns the union of keywords and included categories, which is
// what bootstrap crosses against regions.
func (c CampaignConfig) SearchTerms() []string {
	terms := make([]string, 0, len(c.Keywords)+len(c.Categories.Include))
	terms = append(terms, c.Keywords...)
	terms = append(terms, c.Categories.Include...)
	return terms
}

// RunStatus represents the lifecycle of a campaign run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusError     RunStatus = "error"
)

// RunStats is the aggregate task accounting for a run. Task-level failures
// never force the run itself into an error state; partial completion is a
// reportable outcome.
type RunStats struct {
	TasksEnqueued  int `json:"tasks_enqueued"`
	TasksCompleted int `json:"tasks_completed"`
	TasksFailed    int `json:"tasks_failed"`
	LeadsCreated   int `json:"leads_created"`
}

// Run is one execution of a campaign.
type Run struct {
	ID          int64      `json:"id"`
	CampaignID  int64      `json:"campaign_id"`
	TenantID    string     `json:"tenant_id"`
	Status      RunStatus  `json:"status"`
	Stats       RunStats   `json:"stats"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
