package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector/internal/model"
)

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

func TestPostgresClaimNextTask(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery(`UPDATE tasks SET status = 'processing'`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "tenant_id", "run_id", "type", "status", "input", "result", "error_log", "retries", "created_at", "updated_at",
		}).AddRow(
			int64(42), "acme", int64(7), "discover", "processing",
			[]byte(`{"query":"dentist in Sorocaba, SP"}`), []byte(nil), "", 0, now, now,
		))

	task, err := s.ClaimNextTask(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, int64(42), task.ID)
	assert.Equal(t, model.TaskDiscover, task.Type)
	assert.Equal(t, model.TaskProcessing, task.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresClaimNextTaskDrained(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`UPDATE tasks SET status = 'processing'`).
		WithArgs(int64(7)).
		WillReturnError(pgx.ErrNoRows)

	task, err := s.ClaimNextTask(context.Background(), 7)
	require.NoError(t, err)
	assert.Nil(t, task)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresCreateLeadIfAbsentConflict(t *testing.T) {
	s, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectExec(`INSERT INTO leads`).
		WithArgs("acme", int64(7), "pid-1", "Clinica Sorriso", "", "", "", "", "", "", []byte("{}")).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(`SELECT .+ FROM leads WHERE tenant_id = \$1 AND run_id = \$2 AND place_id = \$3`).
		WithArgs("acme", int64(7), "pid-1").
		WillReturnRows(leadRows().AddRow(
			int64(5), "acme", int64(7), "pid-1", "Clinica Sorriso", "", "", "", "", "", "",
			"", 0, 0, "", "", 0.0, 0, 0.0, "new", []byte("{}"), now, now,
		))

	created, lead, err := s.CreateLeadIfAbsent(context.Background(), &model.Lead{
		TenantID: "acme", RunID: 7, PlaceID: "pid-1", Name: "Clinica Sorriso",
	})
	require.NoError(t, err)
	assert.False(t, created, "conflicting place is a silent no-op")
	assert.Equal(t, int64(5), lead.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAssignRegistryKeyTransactional(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO lead_sources`).
		WithArgs(int64(5), "registry_key", "provider_lookup", "12345678000190", 0.91, []byte(`{"provider":"cnpjws"}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE leads SET registry_key = \$1`).
		WithArgs("12345678000190", int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := s.AssignRegistryKey(context.Background(), 5, "12345678000190", model.LeadSource{
		FieldName:  "registry_key",
		SourceType: model.SourceProviderLookup,
		Value:      "12345678000190",
		Confidence: 0.91,
		Evidence:   model.Evidence{Provider: "cnpjws"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresAssignRegistryKeyRollsBackOnProvenanceFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO lead_sources`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := s.AssignRegistryKey(context.Background(), 5, "12345678000190", model.LeadSource{
		FieldName: "registry_key", SourceType: model.SourceProviderLookup, Value: "12345678000190",
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func leadRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "tenant_id", "run_id", "place_id", "name", "address", "city", "state", "website", "domain", "phone",
		"registry_key", "employees_min", "employees_max", "email", "email_source_url", "rating", "review_count",
		"score", "status", "extra", "created_at", "updated_at",
	})
}
