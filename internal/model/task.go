package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// TaskType tags a unit of pipeline work.
type TaskType string

const (
	TaskDiscover       TaskType = "discover"
	TaskDetail         TaskType = "detail"
	TaskRegistryEnrich TaskType = "registry_enrich"
	TaskContactCrawl   TaskType = "contact_crawl"
)

// TaskStatus is the task lifecycle state. Transitions are monotonic:
// pending → processing → completed | failed. Terminal states are never
// re-entered; retries create a new task row.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Task is one schedulable unit of pipeline work.
type Task struct {
	ID        int64           `json:"id"`
	TenantID  string          `json:"tenant_id"`
	RunID     int64           `json:"run_id"`
	Type      TaskType        `json:"type"`
	Status    TaskStatus      `json:"status"`
	Input     json.RawMessage `json:"input"`
	Result    json.RawMessage `json:"result,omitempty"`
	ErrorLog  string          `json:"error_log,omitempty"`
	Retries   int             `json:"retries"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// WorkUnit is one (region, search term) pair produced at bootstrap. It is
// immutable and consumed by exactly one discover task, so it lives as that
// task's input payload rather than its own table.
type WorkUnit struct {
	RunID  int64  `json:"run_id"`
	Query  string `json:"query"`
	Term   string `json:"term"`
	Region Region `json:"region"`
}

// ComposeQuery builds the discovery query string for a term and region.
func ComposeQuery(term string, region Region) string {
	return fmt.Sprintf("%s in %s, %s", term, region.City, region.State)
}

// DetailInput is the payload for a detail task.
type DetailInput struct {
	PlaceID string `json:"place_id"`
}

// EnrichInput is the payload for a registry_enrich task.
type EnrichInput struct {
	LeadID int64 `json:"lead_id"`
}

// CrawlInput is the payload for a contact_crawl task.
type CrawlInput struct {
	LeadID  int64  `json:"lead_id"`
	Website string `json:"website"`
}

// MarshalInput serializes a task payload, panicking only on unmarshalable
// types (programming error, not runtime input).
func MarshalInput(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("model: marshal task input: %v", err))
	}
	return b
}
