package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/prospector/internal/model"
)

func intp(v int) *int { return &v }

func baseConfig() model.CampaignConfig {
	return model.CampaignConfig{
		Weights: model.ScoringWeights{
			HasPhone: 10, HasEmail: 20, HasWebsite: 10, EmployeesInRange: 15, Rating: 5, Reviews: 5,
		},
	}
}

func TestEvaluateLeadScoring(t *testing.T) {
	cfg := baseConfig()
	lead := &model.Lead{
		Phone:       "15 3333-4444",
		Email:       "contato@sorriso.com.br",
		Website:     "https://sorriso.com.br",
		Employees:   model.EmployeeRange{Min: 2, Max: 9},
		Rating:      4.6,
		ReviewCount: 31,
	}

	score, keep := evaluateLead(lead, cfg)
	assert.True(t, keep)
	assert.Equal(t, 65.0, score)

	bare := &model.Lead{Name: "Empresa Sem Nada"}
	score, keep = evaluateLead(bare, cfg)
	assert.True(t, keep)
	assert.Zero(t, score)
}

func TestEvaluateLeadFilters(t *testing.T) {
	lead := &model.Lead{Phone: "15 3333-4444"}

	cfg := baseConfig()
	cfg.Filters.RegistryKey.Require = true
	_, keep := evaluateLead(lead, cfg)
	assert.False(t, keep)

	cfg = baseConfig()
	cfg.Filters.Contacts.RequireEmail = true
	_, keep = evaluateLead(lead, cfg)
	assert.False(t, keep)

	cfg = baseConfig()
	cfg.Filters.Contacts.RequirePhone = true
	_, keep = evaluateLead(lead, cfg)
	assert.True(t, keep)
}

func TestPassesKeyFilter(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		filter model.RegistryKeyFilter
		want   bool
	}{
		{"no policy", "12345678000190", model.RegistryKeyFilter{}, true},
		{"no policy keyless", "", model.RegistryKeyFilter{}, true},
		{"required keyless", "", model.RegistryKeyFilter{Require: true}, false},
		{
			"excluded formatted key",
			"12345678000190",
			model.RegistryKeyFilter{Exclude: []string{"12.345.678/0001-90"}},
			false,
		},
		{
			"allowlisted",
			"12.345.678/0001-90",
			model.RegistryKeyFilter{Include: []string{"12345678000190"}},
			true,
		},
		{
			"not on allowlist",
			"99887766000155",
			model.RegistryKeyFilter{Include: []string{"12345678000190"}},
			false,
		},
		{
			"exclude wins over include",
			"12345678000190",
			model.RegistryKeyFilter{
				Include: []string{"12345678000190"},
				Exclude: []string{"12345678000190"},
			},
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, passesKeyFilter(tt.key, tt.filter))
		})
	}
}

func TestApplyEmployeeFilter(t *testing.T) {
	filter := model.RangeFilter{Min: intp(5), Max: intp(50), PolicyUnknown: model.UnknownInclude}

	tests := []struct {
		name      string
		emp       model.EmployeeRange
		filter    model.RangeFilter
		inRange   bool
		keep      bool
		zeroScore bool
	}{
		{"overlapping band", model.EmployeeRange{Min: 2, Max: 9}, filter, true, true, false},
		{"band below range", model.EmployeeRange{Min: 1, Max: 1}, filter, false, false, false},
		{"band above range", model.EmployeeRange{Min: 50, Max: 999}, filter, true, true, false},
		{"unknown included", model.EmployeeRange{Min: 1, Max: 0}, filter, false, true, false},
		{
			"unknown excluded",
			model.EmployeeRange{},
			model.RangeFilter{Min: intp(5), PolicyUnknown: model.UnknownExclude},
			false, false, false,
		},
		{
			"unknown score zero",
			model.EmployeeRange{},
			model.RangeFilter{Min: intp(5), PolicyUnknown: model.UnknownScoreZero},
			false, true, true,
		},
		{"no filter configured", model.EmployeeRange{Min: 2, Max: 9}, model.RangeFilter{}, true, true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inRange, keep, zeroScore := applyEmployeeFilter(tt.emp, tt.filter)
			assert.Equal(t, tt.inRange, inRange)
			assert.Equal(t, tt.keep, keep)
			assert.Equal(t, tt.zeroScore, zeroScore)
		})
	}
}
