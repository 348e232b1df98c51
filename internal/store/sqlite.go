package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/prospector/internal/db"
	"github.com/sells-group/prospector/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sdb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// The task claim path relies on a single writer at a time.
	sdb.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := sdb.Exec(pragma); err != nil {
			sdb.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sdb}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS campaigns (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	tenant_id  TEXT NOT NULL,
	name       TEXT NOT NULL,
	config     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (tenant_id, name)
);

CREATE TABLE IF NOT EXISTS campaign_runs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	campaign_id  INTEGER NOT NULL REFERENCES campaigns(id),
	tenant_id    TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	stats        TEXT NOT NULL DEFAULT '{}',
	started_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME
);

CREATE TABLE IF NOT EXISTS tasks (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	tenant_id  TEXT NOT NULL,
	run_id     INTEGER NOT NULL REFERENCES campaign_runs(id),
	type       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	input      TEXT NOT NULL DEFAULT '{}',
	result     TEXT,
	error_log  TEXT NOT NULL DEFAULT '',
	retries    INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS leads (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	tenant_id        TEXT NOT NULL,
	run_id           INTEGER NOT NULL REFERENCES campaign_runs(id),
	place_id         TEXT NOT NULL,
	name             TEXT NOT NULL,
	address          TEXT NOT NULL DEFAULT '',
	city             TEXT NOT NULL DEFAULT '',
	state            TEXT NOT NULL DEFAULT '',
	website          TEXT NOT NULL DEFAULT '',
	domain           TEXT NOT NULL DEFAULT '',
	phone            TEXT NOT NULL DEFAULT '',
	registry_key     TEXT NOT NULL DEFAULT '',
	employees_min    INTEGER NOT NULL DEFAULT 0,
	employees_max    INTEGER NOT NULL DEFAULT 0,
	email            TEXT NOT NULL DEFAULT '',
	email_source_url TEXT NOT NULL DEFAULT '',
	rating           REAL NOT NULL DEFAULT 0,
	review_count     INTEGER NOT NULL DEFAULT 0,
	score            REAL NOT NULL DEFAULT 0,
	status           TEXT NOT NULL DEFAULT 'new',
	extra            TEXT NOT NULL DEFAULT '{}',
	created_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at       DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (tenant_id, run_id, place_id)
);

CREATE TABLE IF NOT EXISTS lead_sources (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	lead_id     INTEGER NOT NULL REFERENCES leads(id),
	field_name  TEXT NOT NULL,
	source_type TEXT NOT NULL,
	value       TEXT NOT NULL,
	confidence  REAL NOT NULL DEFAULT 1.0,
	evidence    TEXT NOT NULL DEFAULT '{}',
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS raw_responses (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	tenant_id   TEXT NOT NULL DEFAULT '',
	run_id      INTEGER NOT NULL DEFAULT 0,
	stage       TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	request     TEXT,
	response    TEXT NOT NULL,
	fetched_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS response_cache (
	fingerprint TEXT PRIMARY KEY,
	body        BLOB NOT NULL,
	expires_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS opt_outs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	tenant_id  TEXT NOT NULL,
	scope      TEXT NOT NULL,
	value      TEXT NOT NULL,
	reason     TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (tenant_id, scope, value)
);

CREATE TABLE IF NOT EXISTS exports (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	tenant_id  TEXT NOT NULL,
	run_id     INTEGER NOT NULL REFERENCES campaign_runs(id),
	format     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	file_path  TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_tasks_run_status ON tasks(run_id, status);
CREATE INDEX IF NOT EXISTS idx_leads_run ON leads(tenant_id, run_id);
CREATE INDEX IF NOT EXISTS idx_leads_domain ON leads(tenant_id, domain);
CREATE INDEX IF NOT EXISTS idx_lead_sources_lead ON lead_sources(lead_id);
CREATE INDEX IF NOT EXISTS idx_raw_fingerprint ON raw_responses(fingerprint);
CREATE INDEX IF NOT EXISTS idx_cache_expires ON response_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateCampaign(ctx context.Context, tenantID, name string, cfg model.CampaignConfig) (*model.Campaign, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal campaign config")
	}
	now := time.Now().UTC()

	var id int64
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO campaigns (tenant_id, name, config, created_at) VALUES (?, ?, ?, ?) RETURNING id`,
		tenantID, name, string(cfgJSON), now,
	).Scan(&id)
	if db.IsUniqueViolation(err) {
		return nil, eris.Wrapf(ErrDuplicateCampaign, "sqlite: campaign %s", name)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert campaign %s", name)
	}

	return &model.Campaign{ID: id, TenantID: tenantID, Name: name, Config: cfg, CreatedAt: now}, nil
}

func (s *SQLiteStore) GetCampaign(ctx context.Context, tenantID, name string) (*model.Campaign, error) {
	var c model.Campaign
	var cfgJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, name, config, created_at FROM campaigns WHERE tenant_id = ? AND name = ?`,
		tenantID, name,
	).Scan(&c.ID, &c.TenantID, &c.Name, &cfgJSON, &c.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get campaign %s", name)
	}
	if err := json.Unmarshal([]byte(cfgJSON), &c.Config); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal campaign config")
	}
	return &c, nil
}

func (s *SQLiteStore) ListCampaigns(ctx context.Context, tenantID string) ([]model.Campaign, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, name, config, created_at FROM campaigns WHERE tenant_id = ? ORDER BY id`,
		tenantID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list campaigns")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Campaign
	for rows.Next() {
		var c model.Campaign
		var cfgJSON string
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &cfgJSON, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan campaign")
		}
		if err := json.Unmarshal([]byte(cfgJSON), &c.Config); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal campaign config")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, campaignID int64, tenantID string) (*model.Run, error) {
	now := time.Now().UTC()
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO campaign_runs (campaign_id, tenant_id, status, stats, started_at) VALUES (?, ?, ?, '{}', ?) RETURNING id`,
		campaignID, tenantID, string(model.RunStatusRunning), now,
	).Scan(&id)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return &model.Run{ID: id, CampaignID: campaignID, TenantID: tenantID, Status: model.RunStatusRunning, StartedAt: now}, nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID int64) (*model.Run, error) {
	var r model.Run
	var statsJSON string
	var completed sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, campaign_id, tenant_id, status, stats, started_at, completed_at FROM campaign_runs WHERE id = ?`,
		runID,
	).Scan(&r.ID, &r.CampaignID, &r.TenantID, &r.Status, &statsJSON, &r.StartedAt, &completed)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %d", runID)
	}
	if err := json.Unmarshal([]byte(statsJSON), &r.Stats); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal run stats")
	}
	if completed.Valid {
		t := completed.Time
		r.CompletedAt = &t
	}
	return &r, nil
}

func (s *SQLiteStore) UpdateRunStats(ctx context.Context, runID int64, stats model.RunStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run stats")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE campaign_runs SET stats = ? WHERE id = ?`,
		string(statsJSON), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run stats %d", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID int64, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE campaign_runs SET status = ?, completed_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %d", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) CreateTask(ctx context.Context, t *model.Task) (*model.Task, error) {
	now := time.Now().UTC()
	input := t.Input
	if input == nil {
		input = json.RawMessage("{}")
	}
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO tasks (tenant_id, run_id, type, status, input, retries, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
		t.TenantID, t.RunID, string(t.Type), string(model.TaskPending), string(input), t.Retries, now, now,
	).Scan(&id)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert %s task", t.Type)
	}

	created := *t
	created.ID = id
	created.Status = model.TaskPending
	created.CreatedAt = now
	created.UpdatedAt = now
	return &created, nil
}

func (s *SQLiteStore) ClaimNextTask(ctx context.Context, runID int64) (*model.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin claim")
	}
	defer tx.Rollback() //nolint:errcheck

	var t model.Task
	var input, result sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT id, tenant_id, run_id, type, status, input, result, error_log, retries, created_at, updated_at
		 FROM tasks WHERE run_id = ? AND status = 'pending' ORDER BY id LIMIT 1`,
		runID,
	).Scan(&t.ID, &t.TenantID, &t.RunID, &t.Type, &t.Status, &input, &result, &t.ErrorLog, &t.Retries, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: select pending task")
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE tasks SET status = 'processing', updated_at = ? WHERE id = ? AND status = 'pending'`,
		time.Now().UTC(), t.ID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: claim task %d", t.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: claim rows affected")
	}
	if n == 0 {
		// Lost the claim race; the caller polls again.
		return nil, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit claim")
	}

	t.Status = model.TaskProcessing
	if input.Valid {
		t.Input = json.RawMessage(input.String)
	}
	if result.Valid {
		t.Result = json.RawMessage(result.String)
	}
	return &t, nil
}

func (s *SQLiteStore) CompleteTask(ctx context.Context, taskID int64, result json.RawMessage) error {
	var resultArg any
	if result != nil {
		resultArg = string(result)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = 'completed', result = ?, updated_at = ? WHERE id = ? AND status = 'processing'`,
		resultArg, time.Now().UTC(), taskID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete task %d", taskID)
	}
	return checkRowsAffected(res, "task", taskID)
}

func (s *SQLiteStore) FailTask(ctx context.Context, taskID int64, errLog string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = 'failed', error_log = ?, updated_at = ? WHERE id = ? AND status = 'processing'`,
		errLog, time.Now().UTC(), taskID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail task %d", taskID)
	}
	return checkRowsAffected(res, "task", taskID)
}

func (s *SQLiteStore) TaskCounts(ctx context.Context, runID int64) (map[model.TaskStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM tasks WHERE run_id = ? GROUP BY status`, runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: task counts")
	}
	defer rows.Close() //nolint:errcheck

	counts := make(map[model.TaskStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan task count")
		}
		counts[model.TaskStatus(status)] = n
	}
	return counts, rows.Err()
}

const leadColumns = `id, tenant_id, run_id, place_id, name, address, city, state, website, domain, phone,
	registry_key, employees_min, employees_max, email, email_source_url, rating, review_count,
	score, status, extra, created_at, updated_at`

func scanLead(row interface{ Scan(...any) error }) (*model.Lead, error) {
	var l model.Lead
	var extraJSON string
	err := row.Scan(
		&l.ID, &l.TenantID, &l.RunID, &l.PlaceID, &l.Name, &l.Address, &l.City, &l.State,
		&l.Website, &l.Domain, &l.Phone, &l.RegistryKey, &l.Employees.Min, &l.Employees.Max,
		&l.Email, &l.EmailSourceURL, &l.Rating, &l.ReviewCount, &l.Score, &l.Status,
		&extraJSON, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if extraJSON != "" && extraJSON != "{}" {
		if err := json.Unmarshal([]byte(extraJSON), &l.Extra); err != nil {
			return nil, eris.Wrap(err, "unmarshal lead extra")
		}
	}
	return &l, nil
}

func (s *SQLiteStore) CreateLeadIfAbsent(ctx context.Context, lead *model.Lead) (bool, *model.Lead, error) {
	extraJSON, err := marshalExtra(lead.Extra)
	if err != nil {
		return false, nil, eris.Wrap(err, "sqlite: marshal lead extra")
	}
	now := time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (tenant_id, run_id, place_id, name, address, city, state, website, domain,
			phone, status, extra, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, run_id, place_id) DO NOTHING`,
		lead.TenantID, lead.RunID, lead.PlaceID, lead.Name, lead.Address, lead.City, lead.State,
		lead.Website, lead.Domain, lead.Phone, string(model.LeadNew), extraJSON, now, now,
	)
	if err != nil {
		return false, nil, eris.Wrapf(err, "sqlite: insert lead %s", lead.PlaceID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, nil, eris.Wrap(err, "sqlite: lead rows affected")
	}

	existing, err := s.GetLeadByPlace(ctx, lead.TenantID, lead.RunID, lead.PlaceID)
	if err != nil {
		return false, nil, err
	}
	return n > 0, existing, nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, leadID int64) (*model.Lead, error) {
	l, err := scanLead(s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE id = ?`, leadID,
	))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %d", leadID)
	}
	return l, nil
}

func (s *SQLiteStore) GetLeadByPlace(ctx context.Context, tenantID string, runID int64, placeID string) (*model.Lead, error) {
	l, err := scanLead(s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE tenant_id = ? AND run_id = ? AND place_id = ?`,
		tenantID, runID, placeID,
	))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead by place %s", placeID)
	}
	return l, nil
}

func (s *SQLiteStore) UpdateLeadDetails(ctx context.Context, lead *model.Lead) error {
	extraJSON, err := marshalExtra(lead.Extra)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal lead extra")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET name = ?, address = ?, city = ?, state = ?, website = ?, domain = ?, phone = ?,
			rating = ?, review_count = ?, status = ?, extra = ?, updated_at = ?
		 WHERE id = ?`,
		lead.Name, lead.Address, lead.City, lead.State, lead.Website, lead.Domain, lead.Phone,
		lead.Rating, lead.ReviewCount, string(lead.Status), extraJSON, time.Now().UTC(), lead.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update lead %d", lead.ID)
	}
	return checkRowsAffected(res, "lead", lead.ID)
}

func (s *SQLiteStore) AssignRegistryKey(ctx context.Context, leadID int64, key string, src model.LeadSource) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin assign key")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertLeadSourceTx(ctx, tx, leadID, src); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE leads SET registry_key = ?, updated_at = ? WHERE id = ?`,
		key, time.Now().UTC(), leadID,
	); err != nil {
		return eris.Wrapf(err, "sqlite: assign registry key to lead %d", leadID)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit assign key")
}

func (s *SQLiteStore) ApplyEnrichment(ctx context.Context, leadID int64, key string, emp model.EmployeeRange, extra map[string]any, src model.LeadSource) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin enrichment")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertLeadSourceTx(ctx, tx, leadID, src); err != nil {
		return err
	}

	extraJSON, err := marshalExtra(extra)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal enrichment extra")
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE leads SET registry_key = ?, employees_min = ?, employees_max = ?,
			extra = json_patch(extra, ?), updated_at = ?
		 WHERE id = ?`,
		key, emp.Min, emp.Max, extraJSON, time.Now().UTC(), leadID,
	); err != nil {
		return eris.Wrapf(err, "sqlite: apply enrichment to lead %d", leadID)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit enrichment")
}

func (s *SQLiteStore) SetLeadContact(ctx context.Context, leadID int64, email, sourceURL string, src model.LeadSource) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin contact")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := insertLeadSourceTx(ctx, tx, leadID, src); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE leads SET email = ?, email_source_url = ?, updated_at = ? WHERE id = ?`,
		email, sourceURL, time.Now().UTC(), leadID,
	); err != nil {
		return eris.Wrapf(err, "sqlite: set contact on lead %d", leadID)
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit contact")
}

func (s *SQLiteStore) SetLeadScore(ctx context.Context, leadID int64, score float64, status model.LeadStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE leads SET score = ?, status = ?, updated_at = ? WHERE id = ?`,
		score, string(status), time.Now().UTC(), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set score on lead %d", leadID)
	}
	return checkRowsAffected(res, "lead", leadID)
}

func (s *SQLiteStore) ListLeads(ctx context.Context, tenantID string, runID int64) ([]model.Lead, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE tenant_id = ? AND run_id = ? ORDER BY id`,
		tenantID, runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CountLeads(ctx context.Context, tenantID string, runID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM leads WHERE tenant_id = ? AND run_id = ?`, tenantID, runID,
	).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count leads")
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertLeadSourceTx(ctx context.Context, tx execer, leadID int64, src model.LeadSource) error {
	evJSON, err := json.Marshal(src.Evidence)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal evidence")
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO lead_sources (lead_id, field_name, source_type, value, confidence, evidence, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		leadID, src.FieldName, string(src.SourceType), src.Value, src.Confidence, string(evJSON), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert lead source %s", src.FieldName)
}

func (s *SQLiteStore) AddLeadSource(ctx context.Context, src *model.LeadSource) error {
	return insertLeadSourceTx(ctx, s.db, src.LeadID, *src)
}

func (s *SQLiteStore) ListLeadSources(ctx context.Context, leadID int64) ([]model.LeadSource, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lead_id, field_name, source_type, value, confidence, evidence, created_at
		 FROM lead_sources WHERE lead_id = ? ORDER BY id`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list lead sources")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.LeadSource
	for rows.Next() {
		var src model.LeadSource
		var evJSON string
		if err := rows.Scan(&src.ID, &src.LeadID, &src.FieldName, &src.SourceType, &src.Value, &src.Confidence, &evJSON, &src.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead source")
		}
		if err := json.Unmarshal([]byte(evJSON), &src.Evidence); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal evidence")
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AppendRawResponse(ctx context.Context, rr *model.RawResponse) error {
	var reqArg any
	if rr.Request != nil {
		reqArg = string(rr.Request)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO raw_responses (tenant_id, run_id, stage, fingerprint, request, response, fetched_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rr.TenantID, rr.RunID, rr.Stage, rr.Fingerprint, reqArg, string(rr.Response), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: append raw response")
}

func (s *SQLiteStore) GetCachedResponse(ctx context.Context, fingerprint string) ([]byte, bool, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM response_cache WHERE fingerprint = ? AND expires_at > ?`,
		fingerprint, time.Now().UTC(),
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: get cached response")
	}
	return body, true, nil
}

func (s *SQLiteStore) PutCachedResponse(ctx context.Context, fingerprint string, body []byte, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO response_cache (fingerprint, body, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (fingerprint) DO UPDATE SET body = excluded.body, expires_at = excluded.expires_at`,
		fingerprint, body, time.Now().UTC().Add(ttl),
	)
	return eris.Wrap(err, "sqlite: put cached response")
}

func (s *SQLiteStore) AddOptOut(ctx context.Context, e *model.OptOutEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO opt_outs (tenant_id, scope, value, reason, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, scope, value) DO NOTHING`,
		e.TenantID, string(e.Scope), e.Value, e.Reason, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: add opt-out")
}

func (s *SQLiteStore) RemoveOptOut(ctx context.Context, tenantID string, scope model.OptOutScope, value string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM opt_outs WHERE tenant_id = ? AND scope = ? AND value = ?`,
		tenantID, string(scope), value,
	)
	return eris.Wrap(err, "sqlite: remove opt-out")
}

func (s *SQLiteStore) IsOptedOut(ctx context.Context, tenantID string, scope model.OptOutScope, value string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM opt_outs WHERE tenant_id = ? AND scope = ? AND value = ?`,
		tenantID, string(scope), value,
	).Scan(&n)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: check opt-out")
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListOptOuts(ctx context.Context, tenantID string) ([]model.OptOutEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, tenant_id, scope, value, reason, created_at FROM opt_outs WHERE tenant_id = ? ORDER BY id`,
		tenantID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list opt-outs")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.OptOutEntry
	for rows.Next() {
		var e model.OptOutEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Scope, &e.Value, &e.Reason, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan opt-out")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) CreateExport(ctx context.Context, tenantID string, runID int64, format string) (*model.Export, error) {
	now := time.Now().UTC()
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO exports (tenant_id, run_id, format, status, created_at) VALUES (?, ?, ?, ?, ?) RETURNING id`,
		tenantID, runID, format, string(model.ExportProcessing), now,
	).Scan(&id)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert export")
	}
	return &model.Export{ID: id, TenantID: tenantID, RunID: runID, Format: format, Status: model.ExportProcessing, CreatedAt: now}, nil
}

func (s *SQLiteStore) FinishExport(ctx context.Context, exportID int64, status model.ExportStatus, filePath string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE exports SET status = ?, file_path = ? WHERE id = ?`,
		string(status), filePath, exportID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish export %d", exportID)
	}
	return checkRowsAffected(res, "export", exportID)
}

func marshalExtra(extra map[string]any) (string, error) {
	if len(extra) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(extra)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func checkRowsAffected(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s %d not found", kind, id)
	}
	return nil
}
