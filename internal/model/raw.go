package model

import (
	"encoding/json"
	"time"
)

// RawResponse is a write-once snapshot of one external request+response,
// keyed by the request fingerprint and tagged with the pipeline stage that
// issued it. Retained for compliance and replay independently of cache
// expiry; duplicate identifiers are allowed so history accumulates per run.
type RawResponse struct {
	ID          int64           `json:"id"`
	TenantID    string          `json:"tenant_id,omitempty"`
	RunID       int64           `json:"run_id,omitempty"`
	Stage       string          `json:"stage"`
	Fingerprint string          `json:"fingerprint"`
	Request     json.RawMessage `json:"request,omitempty"`
	Response    json.RawMessage `json:"response"`
	FetchedAt   time.Time       `json:"fetched_at"`
}

// OptOutScope is the kind of value an opt-out entry suppresses.
type OptOutScope string

const (
	OptOutDomain OptOutScope = "domain"
	OptOutEmail  OptOutScope = "email"
	OptOutPhone  OptOutScope = "phone"
)

// OptOutEntry suppresses contact discovery for a value until removed by an
// operator. Unique per (tenant, scope, value).
type OptOutEntry struct {
	ID        int64       `json:"id"`
	TenantID  string      `json:"tenant_id"`
	Scope     OptOutScope `json:"scope"`
	Value     string      `json:"value"`
	Reason    string      `json:"reason,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// ExportStatus is the export record lifecycle.
type ExportStatus string

const (
	ExportPending    ExportStatus = "pending"
	ExportProcessing ExportStatus = "processing"
	ExportCompleted  ExportStatus = "completed"
	ExportFailed     ExportStatus = "failed"
)

// Export records one export of a run's leads to a file.
type Export struct {
	ID        int64        `json:"id"`
	TenantID  string       `json:"tenant_id"`
	RunID     int64        `json:"run_id"`
	Format    string       `json:"format"`
	Status    ExportStatus `json:"status"`
	FilePath  string       `json:"file_path,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}
