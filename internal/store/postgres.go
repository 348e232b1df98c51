package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/db"
	"github.com/sells-group/prospector/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool db.Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS campaigns (
	id         BIGSERIAL PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	name       TEXT NOT NULL,
	config     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (tenant_id, name)
);

CREATE TABLE IF NOT EXISTS campaign_runs (
	id           BIGSERIAL PRIMARY KEY,
	campaign_id  BIGINT NOT NULL REFERENCES campaigns(id),
	tenant_id    TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	stats        JSONB NOT NULL DEFAULT '{}',
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS tasks (
	id         BIGSERIAL PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	run_id     BIGINT NOT NULL REFERENCES campaign_runs(id),
	type       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	input      JSONB NOT NULL DEFAULT '{}',
	result     JSONB,
	error_log  TEXT NOT NULL DEFAULT '',
	retries    INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS leads (
	id               BIGSERIAL PRIMARY KEY,
	tenant_id        TEXT NOT NULL,
	run_id           BIGINT NOT NULL REFERENCES campaign_runs(id),
	place_id         TEXT NOT NULL,
	name             TEXT NOT NULL,
	address          TEXT NOT NULL DEFAULT '',
	city             TEXT NOT NULL DEFAULT '',
	state            TEXT NOT NULL DEFAULT '',
	website          TEXT NOT NULL DEFAULT '',
	domain           TEXT NOT NULL DEFAULT '',
	phone            TEXT NOT NULL DEFAULT '',
	registry_key     TEXT NOT NULL DEFAULT '',
	employees_min    INT NOT NULL DEFAULT 0,
	employees_max    INT NOT NULL DEFAULT 0,
	email            TEXT NOT NULL DEFAULT '',
	email_source_url TEXT NOT NULL DEFAULT '',
	rating           DOUBLE PRECISION NOT NULL DEFAULT 0,
	review_count     INT NOT NULL DEFAULT 0,
	score            DOUBLE PRECISION NOT NULL DEFAULT 0,
	status           TEXT NOT NULL DEFAULT 'new',
	extra            JSONB NOT NULL DEFAULT '{}',
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (tenant_id, run_id, place_id)
);

CREATE TABLE IF NOT EXISTS lead_sources (
	id          BIGSERIAL PRIMARY KEY,
	lead_id     BIGINT NOT NULL REFERENCES leads(id),
	field_name  TEXT NOT NULL,
	source_type TEXT NOT NULL,
	value       TEXT NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL DEFAULT 1.0,
	evidence    JSONB NOT NULL DEFAULT '{}',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS raw_responses (
	id          BIGSERIAL PRIMARY KEY,
	tenant_id   TEXT NOT NULL DEFAULT '',
	run_id      BIGINT NOT NULL DEFAULT 0,
	stage       TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	request     JSONB,
	response    JSONB NOT NULL,
	fetched_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS response_cache (
	fingerprint TEXT PRIMARY KEY,
	body        BYTEA NOT NULL,
	expires_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS opt_outs (
	id         BIGSERIAL PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	scope      TEXT NOT NULL,
	value      TEXT NOT NULL,
	reason     TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (tenant_id, scope, value)
);

CREATE TABLE IF NOT EXISTS exports (
	id         BIGSERIAL PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	run_id     BIGINT NOT NULL REFERENCES campaign_runs(id),
	format     TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	file_path  TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_tasks_run_status ON tasks(run_id, status);
CREATE INDEX IF NOT EXISTS idx_leads_run ON leads(tenant_id, run_id);
CREATE INDEX IF NOT EXISTS idx_leads_domain ON leads(tenant_id, domain);
CREATE INDEX IF NOT EXISTS idx_lead_sources_lead ON lead_sources(lead_id);
CREATE INDEX IF NOT EXISTS idx_raw_fingerprint ON raw_responses(fingerprint);
CREATE INDEX IF NOT EXISTS idx_cache_expires ON response_cache(expires_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateCampaign(ctx context.Context, tenantID, name string, cfg model.CampaignConfig) (*model.Campaign, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal campaign config")
	}

	var c model.Campaign
	err = s.pool.QueryRow(ctx,
		`INSERT INTO campaigns (tenant_id, name, config) VALUES ($1, $2, $3) RETURNING id, created_at`,
		tenantID, name, cfgJSON,
	).Scan(&c.ID, &c.CreatedAt)
	if db.IsUniqueViolation(err) {
		return nil, eris.Wrapf(ErrDuplicateCampaign, "postgres: campaign %s", name)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert campaign %s", name)
	}

	c.TenantID = tenantID
	c.Name = name
	c.Config = cfg
	return &c, nil
}

func (s *PostgresStore) GetCampaign(ctx context.Context, tenantID, name string) (*model.Campaign, error) {
	var c model.Campaign
	var cfgJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, name, config, created_at FROM campaigns WHERE tenant_id = $1 AND name = $2`,
		tenantID, name,
	).Scan(&c.ID, &c.TenantID, &c.Name, &cfgJSON, &c.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get campaign %s", name)
	}
	if err := json.Unmarshal(cfgJSON, &c.Config); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal campaign config")
	}
	return &c, nil
}

func (s *PostgresStore) ListCampaigns(ctx context.Context, tenantID string) ([]model.Campaign, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, name, config, created_at FROM campaigns WHERE tenant_id = $1 ORDER BY id`,
		tenantID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list campaigns")
	}
	defer rows.Close()

	var out []model.Campaign
	for rows.Next() {
		var c model.Campaign
		var cfgJSON []byte
		if err := rows.Scan(&c.ID, &c.TenantID, &c.Name, &cfgJSON, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan campaign")
		}
		if err := json.Unmarshal(cfgJSON, &c.Config); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal campaign config")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateRun(ctx context.Context, campaignID int64, tenantID string) (*model.Run, error) {
	var r model.Run
	err := s.pool.QueryRow(ctx,
		`INSERT INTO campaign_runs (campaign_id, tenant_id) VALUES ($1, $2) RETURNING id, started_at`,
		campaignID, tenantID,
	).Scan(&r.ID, &r.StartedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	r.CampaignID = campaignID
	r.TenantID = tenantID
	r.Status = model.RunStatusRunning
	return &r, nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID int64) (*model.Run, error) {
	var r model.Run
	var statsJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT id, campaign_id, tenant_id, status, stats, started_at, completed_at FROM campaign_runs WHERE id = $1`,
		runID,
	).Scan(&r.ID, &r.CampaignID, &r.TenantID, &r.Status, &statsJSON, &r.StartedAt, &r.CompletedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %d", runID)
	}
	if err := json.Unmarshal(statsJSON, &r.Stats); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal run stats")
	}
	return &r, nil
}

func (s *PostgresStore) UpdateRunStats(ctx context.Context, runID int64, stats model.RunStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run stats")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE campaign_runs SET stats = $1 WHERE id = $2`, statsJSON, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run stats %d", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run %d not found", runID)
	}
	return nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID int64, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE campaign_runs SET status = $1, completed_at = now() WHERE id = $2`,
		string(status), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %d", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run %d not found", runID)
	}
	return nil
}

func (s *PostgresStore) CreateTask(ctx context.Context, t *model.Task) (*model.Task, error) {
	input := t.Input
	if input == nil {
		input = json.RawMessage("{}")
	}

	created := *t
	created.Status = model.TaskPending
	err := s.pool.QueryRow(ctx,
		`INSERT INTO tasks (tenant_id, run_id, type, input, retries) VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at, updated_at`,
		t.TenantID, t.RunID, string(t.Type), []byte(input), t.Retries,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert %s task", t.Type)
	}
	return &created, nil
}

func (s *PostgresStore) ClaimNextTask(ctx context.Context, runID int64) (*model.Task, error) {
	var t model.Task
	var input, result []byte
	err := s.pool.QueryRow(ctx,
		`UPDATE tasks SET status = 'processing', updated_at = now()
		 WHERE id = (
			SELECT id FROM tasks WHERE run_id = $1 AND status = 'pending'
			ORDER BY id LIMIT 1 FOR UPDATE SKIP LOCKED
		 )
		 RETURNING id, tenant_id, run_id, type, status, input, result, error_log, retries, created_at, updated_at`,
		runID,
	).Scan(&t.ID, &t.TenantID, &t.RunID, &t.Type, &t.Status, &input, &result, &t.ErrorLog, &t.Retries, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: claim next task")
	}
	t.Input = input
	t.Result = result
	return &t, nil
}

func (s *PostgresStore) CompleteTask(ctx context.Context, taskID int64, result json.RawMessage) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tasks SET status = 'completed', result = $1, updated_at = now() WHERE id = $2 AND status = 'processing'`,
		[]byte(result), taskID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete task %d", taskID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("task %d not found or not processing", taskID)
	}
	return nil
}

func (s *PostgresStore) FailTask(ctx context.Context, taskID int64, errLog string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tasks SET status = 'failed', error_log = $1, updated_at = now() WHERE id = $2 AND status = 'processing'`,
		errLog, taskID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail task %d", taskID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("task %d not found or not processing", taskID)
	}
	return nil
}

func (s *PostgresStore) TaskCounts(ctx context.Context, runID int64) (map[model.TaskStatus]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM tasks WHERE run_id = $1 GROUP BY status`, runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: task counts")
	}
	defer rows.Close()

	counts := make(map[model.TaskStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan task count")
		}
		counts[model.TaskStatus(status)] = n
	}
	return counts, rows.Err()
}

const pgLeadColumns = `id, tenant_id, run_id, place_id, name, address, city, state, website, domain, phone,
	registry_key, employees_min, employees_max, email, email_source_url, rating, review_count,
	score, status, extra, created_at, updated_at`

func scanPgLead(row pgx.Row) (*model.Lead, error) {
	var l model.Lead
	var extraJSON []byte
	err := row.Scan(
		&l.ID, &l.TenantID, &l.RunID, &l.PlaceID, &l.Name, &l.Address, &l.City, &l.State,
		&l.Website, &l.Domain, &l.Phone, &l.RegistryKey, &l.Employees.Min, &l.Employees.Max,
		&l.Email, &l.EmailSourceURL, &l.Rating, &l.ReviewCount, &l.Score, &l.Status,
		&extraJSON, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(extraJSON) > 0 && string(extraJSON) != "{}" {
		if err := json.Unmarshal(extraJSON, &l.Extra); err != nil {
			return nil, eris.Wrap(err, "unmarshal lead extra")
		}
	}
	return &l, nil
}

func (s *PostgresStore) CreateLeadIfAbsent(ctx context.Context, lead *model.Lead) (bool, *model.Lead, error) {
	extraJSON, err := marshalExtra(lead.Extra)
	if err != nil {
		return false, nil, eris.Wrap(err, "postgres: marshal lead extra")
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO leads (tenant_id, run_id, place_id, name, address, city, state, website, domain, phone, extra)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (tenant_id, run_id, place_id) DO NOTHING`,
		lead.TenantID, lead.RunID, lead.PlaceID, lead.Name, lead.Address, lead.City, lead.State,
		lead.Website, lead.Domain, lead.Phone, []byte(extraJSON),
	)
	if err != nil {
		return false, nil, eris.Wrapf(err, "postgres: insert lead %s", lead.PlaceID)
	}

	existing, err := s.GetLeadByPlace(ctx, lead.TenantID, lead.RunID, lead.PlaceID)
	if err != nil {
		return false, nil, err
	}
	return tag.RowsAffected() > 0, existing, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, leadID int64) (*model.Lead, error) {
	l, err := scanPgLead(s.pool.QueryRow(ctx,
		`SELECT `+pgLeadColumns+` FROM leads WHERE id = $1`, leadID,
	))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %d", leadID)
	}
	return l, nil
}

func (s *PostgresStore) GetLeadByPlace(ctx context.Context, tenantID string, runID int64, placeID string) (*model.Lead, error) {
	l, err := scanPgLead(s.pool.QueryRow(ctx,
		`SELECT `+pgLeadColumns+` FROM leads WHERE tenant_id = $1 AND run_id = $2 AND place_id = $3`,
		tenantID, runID, placeID,
	))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead by place %s", placeID)
	}
	return l, nil
}

func (s *PostgresStore) UpdateLeadDetails(ctx context.Context, lead *model.Lead) error {
	extraJSON, err := marshalExtra(lead.Extra)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal lead extra")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET name = $1, address = $2, city = $3, state = $4, website = $5, domain = $6,
			phone = $7, rating = $8, review_count = $9, status = $10, extra = $11, updated_at = now()
		 WHERE id = $12`,
		lead.Name, lead.Address, lead.City, lead.State, lead.Website, lead.Domain,
		lead.Phone, lead.Rating, lead.ReviewCount, string(lead.Status), []byte(extraJSON), lead.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update lead %d", lead.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("lead %d not found", lead.ID)
	}
	return nil
}

func (s *PostgresStore) AssignRegistryKey(ctx context.Context, leadID int64, key string, src model.LeadSource) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin assign key")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := insertPgLeadSource(ctx, tx, leadID, src); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE leads SET registry_key = $1, updated_at = now() WHERE id = $2`, key, leadID,
	); err != nil {
		return eris.Wrapf(err, "postgres: assign registry key to lead %d", leadID)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit assign key")
}

func (s *PostgresStore) ApplyEnrichment(ctx context.Context, leadID int64, key string, emp model.EmployeeRange, extra map[string]any, src model.LeadSource) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin enrichment")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := insertPgLeadSource(ctx, tx, leadID, src); err != nil {
		return err
	}

	extraJSON, err := marshalExtra(extra)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal enrichment extra")
	}
	if _, err := tx.Exec(ctx,
		`UPDATE leads SET registry_key = $1, employees_min = $2, employees_max = $3,
			extra = extra || $4::jsonb, updated_at = now()
		 WHERE id = $5`,
		key, emp.Min, emp.Max, []byte(extraJSON), leadID,
	); err != nil {
		return eris.Wrapf(err, "postgres: apply enrichment to lead %d", leadID)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit enrichment")
}

func (s *PostgresStore) SetLeadContact(ctx context.Context, leadID int64, email, sourceURL string, src model.LeadSource) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin contact")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := insertPgLeadSource(ctx, tx, leadID, src); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE leads SET email = $1, email_source_url = $2, updated_at = now() WHERE id = $3`,
		email, sourceURL, leadID,
	); err != nil {
		return eris.Wrapf(err, "postgres: set contact on lead %d", leadID)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit contact")
}

func (s *PostgresStore) SetLeadScore(ctx context.Context, leadID int64, score float64, status model.LeadStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE leads SET score = $1, status = $2, updated_at = now() WHERE id = $3`,
		score, string(status), leadID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set score on lead %d", leadID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("lead %d not found", leadID)
	}
	return nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, tenantID string, runID int64) ([]model.Lead, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgLeadColumns+` FROM leads WHERE tenant_id = $1 AND run_id = $2 ORDER BY id`,
		tenantID, runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var out []model.Lead
	for rows.Next() {
		l, err := scanPgLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountLeads(ctx context.Context, tenantID string, runID int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM leads WHERE tenant_id = $1 AND run_id = $2`, tenantID, runID,
	).Scan(&n)
	return n, eris.Wrap(err, "postgres: count leads")
}

func insertPgLeadSource(ctx context.Context, tx pgx.Tx, leadID int64, src model.LeadSource) error {
	evJSON, err := json.Marshal(src.Evidence)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal evidence")
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO lead_sources (lead_id, field_name, source_type, value, confidence, evidence)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		leadID, src.FieldName, string(src.SourceType), src.Value, src.Confidence, evJSON,
	)
	return eris.Wrapf(err, "postgres: insert lead source %s", src.FieldName)
}

func (s *PostgresStore) AddLeadSource(ctx context.Context, src *model.LeadSource) error {
	evJSON, err := json.Marshal(src.Evidence)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal evidence")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO lead_sources (lead_id, field_name, source_type, value, confidence, evidence)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		src.LeadID, src.FieldName, string(src.SourceType), src.Value, src.Confidence, evJSON,
	)
	return eris.Wrapf(err, "postgres: insert lead source %s", src.FieldName)
}

func (s *PostgresStore) ListLeadSources(ctx context.Context, leadID int64) ([]model.LeadSource, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, lead_id, field_name, source_type, value, confidence, evidence, created_at
		 FROM lead_sources WHERE lead_id = $1 ORDER BY id`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list lead sources")
	}
	defer rows.Close()

	var out []model.LeadSource
	for rows.Next() {
		var src model.LeadSource
		var evJSON []byte
		if err := rows.Scan(&src.ID, &src.LeadID, &src.FieldName, &src.SourceType, &src.Value, &src.Confidence, &evJSON, &src.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead source")
		}
		if err := json.Unmarshal(evJSON, &src.Evidence); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal evidence")
		}
		out = append(out, src)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AppendRawResponse(ctx context.Context, rr *model.RawResponse) error {
	var reqArg any
	if rr.Request != nil {
		reqArg = []byte(rr.Request)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO raw_responses (tenant_id, run_id, stage, fingerprint, request, response)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rr.TenantID, rr.RunID, rr.Stage, rr.Fingerprint, reqArg, []byte(rr.Response),
	)
	return eris.Wrap(err, "postgres: append raw response")
}

func (s *PostgresStore) GetCachedResponse(ctx context.Context, fingerprint string) ([]byte, bool, error) {
	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM response_cache WHERE fingerprint = $1 AND expires_at > now()`, fingerprint,
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: get cached response")
	}
	return body, true, nil
}

func (s *PostgresStore) PutCachedResponse(ctx context.Context, fingerprint string, body []byte, ttl time.Duration) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO response_cache (fingerprint, body, expires_at) VALUES ($1, $2, $3)
		 ON CONFLICT (fingerprint) DO UPDATE SET body = EXCLUDED.body, expires_at = EXCLUDED.expires_at`,
		fingerprint, body, time.Now().UTC().Add(ttl),
	)
	return eris.Wrap(err, "postgres: put cached response")
}

func (s *PostgresStore) AddOptOut(ctx context.Context, e *model.OptOutEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO opt_outs (tenant_id, scope, value, reason) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (tenant_id, scope, value) DO NOTHING`,
		e.TenantID, string(e.Scope), e.Value, e.Reason,
	)
	return eris.Wrap(err, "postgres: add opt-out")
}

func (s *PostgresStore) RemoveOptOut(ctx context.Context, tenantID string, scope model.OptOutScope, value string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM opt_outs WHERE tenant_id = $1 AND scope = $2 AND value = $3`,
		tenantID, string(scope), value,
	)
	return eris.Wrap(err, "postgres: remove opt-out")
}

func (s *PostgresStore) IsOptedOut(ctx context.Context, tenantID string, scope model.OptOutScope, value string) (bool, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM opt_outs WHERE tenant_id = $1 AND scope = $2 AND value = $3`,
		tenantID, string(scope), value,
	).Scan(&n)
	if err != nil {
		return false, eris.Wrap(err, "postgres: check opt-out")
	}
	return n > 0, nil
}

func (s *PostgresStore) ListOptOuts(ctx context.Context, tenantID string) ([]model.OptOutEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, tenant_id, scope, value, reason, created_at FROM opt_outs WHERE tenant_id = $1 ORDER BY id`,
		tenantID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list opt-outs")
	}
	defer rows.Close()

	var out []model.OptOutEntry
	for rows.Next() {
		var e model.OptOutEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Scope, &e.Value, &e.Reason, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan opt-out")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreateExport(ctx context.Context, tenantID string, runID int64, format string) (*model.Export, error) {
	e := &model.Export{TenantID: tenantID, RunID: runID, Format: format, Status: model.ExportProcessing}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO exports (tenant_id, run_id, format, status) VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		tenantID, runID, format, string(model.ExportProcessing),
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert export")
	}
	return e, nil
}

func (s *PostgresStore) FinishExport(ctx context.Context, exportID int64, status model.ExportStatus, filePath string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE exports SET status = $1, file_path = $2 WHERE id = $3`,
		string(status), filePath, exportID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish export %d", exportID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("export %d not found", exportID)
	}
	return nil
}
