package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/store"
)

func newServeStore(t *testing.T) (*store.SQLiteStore, *model.Run) {
	t.Helper()
	ctx := context.Background()

	s, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { s.Close() }) //nolint:errcheck

	c, err := s.CreateCampaign(ctx, "acme", "dentists-sp", model.CampaignConfig{
		Keywords: []string{"dentist"},
		Regions:  []model.Region{{City: "Sorocaba", State: "SP", Country: "BR"}},
	})
	require.NoError(t, err)
	run, err := s.CreateRun(ctx, c.ID, "acme")
	require.NoError(t, err)

	_, _, err = s.CreateLeadIfAbsent(ctx, &model.Lead{
		TenantID: "acme",
		RunID:    run.ID,
		PlaceID:  "pid-1",
		Name:     "Clinica Sorriso",
		Status:   model.LeadNew,
	})
	require.NoError(t, err)

	return s, run
}

func TestRouterHealth(t *testing.T) {
	s, _ := newServeStore(t)
	router := newRouter(s)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouterRunStatus(t *testing.T) {
	s, run := newServeStore(t)
	router := newRouter(s)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/runs/1", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Run   model.Run                `json:"run"`
		Tasks map[model.TaskStatus]int `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, run.ID, body.Run.ID)
	assert.Equal(t, "acme", body.Run.TenantID)
}

func TestRouterRunLeads(t *testing.T) {
	s, _ := newServeStore(t)
	router := newRouter(s)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/runs/1/leads", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var leads []model.Lead
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &leads))
	require.Len(t, leads, 1)
	assert.Equal(t, "Clinica Sorriso", leads[0].Name)
}

func TestRouterUnknownRun(t *testing.T) {
	s, _ := newServeStore(t)
	router := newRouter(s)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/runs/999", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/runs/nope", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
