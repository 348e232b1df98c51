package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/prospector/internal/model"
)

func TestEstimateEmployees(t *testing.T) {
	tests := []struct {
		name      string
		sizeClass string
		want      model.EmployeeRange
	}{
		{"micro individual", "MEI", model.EmployeeRange{Min: 1, Max: 1}},
		{"micro", "ME", model.EmployeeRange{Min: 2, Max: 9}},
		{"small", "EPP", model.EmployeeRange{Min: 10, Max: 49}},
		{"larger", "DEMAIS", model.EmployeeRange{Min: 50, Max: 999}},
		{"lowercase", "epp", model.EmployeeRange{Min: 10, Max: 49}},
		{"padded", "  me ", model.EmployeeRange{Min: 2, Max: 9}},
		{"embedded label", "EMPRESA DE PEQUENO PORTE (EPP)", model.EmployeeRange{Min: 10, Max: 49}},
		{"mei not matched as me", "MEI", model.EmployeeRange{Min: 1, Max: 1}},
		{"unknown label", "GRANDE", model.EmployeeRange{Min: 1, Max: 0}},
		{"empty", "", model.EmployeeRange{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateEmployees(tt.sizeClass))
		})
	}
}

func TestEmployeeRangeKnown(t *testing.T) {
	assert.True(t, model.EmployeeRange{Min: 2, Max: 9}.Known())
	assert.False(t, model.EmployeeRange{Min: 1, Max: 0}.Known(), "unknown sentinel is not a usable estimate")
	assert.False(t, model.EmployeeRange{}.Known())
}
