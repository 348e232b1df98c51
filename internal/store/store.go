package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/model"
)

// ErrDuplicateCampaign signals a (tenant, name) collision on campaign
// creation. Both backends translate their driver's unique-violation error
// into it.
var ErrDuplicateCampaign = eris.New("store: campaign already exists")

// Store defines the persistence interface for the prospecting pipeline. It is
// the only durable shared state: components communicate exclusively by
// reading and writing it or by enqueueing tasks through it.
type Store interface {
	// Campaigns. CreateCampaign returns ErrDuplicateCampaign when the
	// tenant already has a campaign by that name.
	CreateCampaign(ctx context.Context, tenantID, name string, cfg model.CampaignConfig) (*model.Campaign, error)
	GetCampaign(ctx context.Context, tenantID, name string) (*model.Campaign, error)
	ListCampaigns(ctx context.Context, tenantID string) ([]model.Campaign, error)

	// Runs
	CreateRun(ctx context.Context, campaignID int64, tenantID string) (*model.Run, error)
	GetRun(ctx context.Context, runID int64) (*model.Run, error)
	UpdateRunStats(ctx context.Context, runID int64, stats model.RunStats) error
	FinishRun(ctx context.Context, runID int64, status model.RunStatus) error

	// Tasks. ClaimNextTask atomically moves one pending task to processing
	// and returns it; nil means the queue is drained. Completion and failure
	// are terminal.
	CreateTask(ctx context.Context, t *model.Task) (*model.Task, error)
	ClaimNextTask(ctx context.Context, runID int64) (*model.Task, error)
	CompleteTask(ctx context.Context, taskID int64, result json.RawMessage) error
	FailTask(ctx context.Context, taskID int64, errLog string) error
	TaskCounts(ctx context.Context, runID int64) (map[model.TaskStatus]int, error)

	// Leads. CreateLeadIfAbsent enforces (tenant, run, place_id) uniqueness:
	// a duplicate insert is a silent no-op returning the existing row.
	CreateLeadIfAbsent(ctx context.Context, lead *model.Lead) (bool, *model.Lead, error)
	GetLead(ctx context.Context, leadID int64) (*model.Lead, error)
	GetLeadByPlace(ctx context.Context, tenantID string, runID int64, placeID string) (*model.Lead, error)
	UpdateLeadDetails(ctx context.Context, lead *model.Lead) error
	// AssignRegistryKey writes the key and its provenance row in one
	// transaction; if the provenance write fails the key is not visible.
	AssignRegistryKey(ctx context.Context, leadID int64, key string, src model.LeadSource) error
	ApplyEnrichment(ctx context.Context, leadID int64, key string, emp model.EmployeeRange, extra map[string]any, src model.LeadSource) error
	SetLeadContact(ctx context.Context, leadID int64, email, sourceURL string, src model.LeadSource) error
	SetLeadScore(ctx context.Context, leadID int64, score float64, status model.LeadStatus) error
	ListLeads(ctx context.Context, tenantID string, runID int64) ([]model.Lead, error)
	CountLeads(ctx context.Context, tenantID string, runID int64) (int, error)

	// Provenance ledger (append-only).
	AddLeadSource(ctx context.Context, src *model.LeadSource) error
	ListLeadSources(ctx context.Context, leadID int64) ([]model.LeadSource, error)

	// Raw-response ledger (append-only, write-once) and response cache.
	AppendRawResponse(ctx context.Context, rr *model.RawResponse) error
	GetCachedResponse(ctx context.Context, fingerprint string) ([]byte, bool, error)
	PutCachedResponse(ctx context.Context, fingerprint string, body []byte, ttl time.Duration) error

	// Opt-out registry.
	AddOptOut(ctx context.Context, e *model.OptOutEntry) error
	RemoveOptOut(ctx context.Context, tenantID string, scope model.OptOutScope, value string) error
	IsOptedOut(ctx context.Context, tenantID string, scope model.OptOutScope, value string) (bool, error)
	ListOptOuts(ctx context.Context, tenantID string) ([]model.OptOutEntry, error)

	// Exports
	CreateExport(ctx context.Context, tenantID string, runID int64, format string) (*model.Export, error)
	FinishExport(ctx context.Context, exportID int64, status model.ExportStatus, filePath string) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
