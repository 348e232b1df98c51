package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector/internal/model"
)

func writeCampaignFile(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "campaign.yaml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func TestLoadCampaignFileAppliesDefaults(t *testing.T) {
	path := writeCampaignFile(t, `
name: dentists-sp
goal: find dental clinics
regions:
  - city: Sorocaba
    state: SP
keywords:
  - dentist
`)

	cc, err := LoadCampaignFile(path)
	require.NoError(t, err)

	assert.Equal(t, "dentists-sp", cc.Name)
	assert.Equal(t, "BR", cc.Regions[0].Country)
	assert.Equal(t, 10, cc.Regions[0].RadiusKM)
	assert.Equal(t, 3, cc.Limits.MaxPagesPerDomain)
	assert.Equal(t, model.UnknownInclude, cc.Filters.Employees.PolicyUnknown)
	assert.Equal(t, 20, cc.Weights.HasEmail)
	assert.Equal(t, []string{"csv", "json"}, cc.Exports)
}

func TestLoadCampaignFileFull(t *testing.T) {
	path := writeCampaignFile(t, `
name: clinics
regions:
  - city: Campinas
    state: SP
    country: BR
    radius_km: 25
keywords: [clinica]
categories:
  include: [dental_clinic]
  exclude: [hospital]
limits:
  max_leads_total: 100
  max_per_region: 40
  max_pages_per_domain: 5
filters:
  registry_key:
    require: true
    exclude: ["12.345.678/0001-90"]
  employees:
    min: 2
    max: 50
    policy_unknown: score_zero
  contacts:
    require_email: true
scoring_weights:
  has_phone: 5
  has_email: 25
exports: [xlsx]
`)

	cc, err := LoadCampaignFile(path)
	require.NoError(t, err)

	assert.Equal(t, 25, cc.Regions[0].RadiusKM)
	assert.ElementsMatch(t, []string{"clinica", "dental_clinic"}, cc.SearchTerms())
	assert.Equal(t, 100, cc.Limits.MaxLeadsTotal)
	assert.Equal(t, 5, cc.Limits.MaxPagesPerDomain)
	assert.True(t, cc.Filters.RegistryKey.Require)
	assert.Equal(t, []string{"12.345.678/0001-90"}, cc.Filters.RegistryKey.Exclude)
	require.NotNil(t, cc.Filters.Employees.Min)
	assert.Equal(t, 2, *cc.Filters.Employees.Min)
	assert.Equal(t, model.UnknownScoreZero, cc.Filters.Employees.PolicyUnknown)
	assert.True(t, cc.Filters.Contacts.RequireEmail)
	assert.Equal(t, 25, cc.Weights.HasEmail)
	// Explicit weights replace the default block wholesale.
	assert.Zero(t, cc.Weights.Rating)
	assert.Equal(t, []string{"xlsx"}, cc.Exports)
}

func TestLoadCampaignFileRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing name", "regions: [{city: X, state: SP}]\nkeywords: [a]"},
		{"no regions", "name: x\nkeywords: [a]"},
		{"no search terms", "name: x\nregions: [{city: X, state: SP}]"},
		{
			"bad unknown policy",
			"name: x\nregions: [{city: X, state: SP}]\nkeywords: [a]\nfilters:\n  employees:\n    policy_unknown: maybe",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCampaignFile(writeCampaignFile(t, tt.doc))
			assert.Error(t, err)
		})
	}
}
