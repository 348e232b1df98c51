package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Clínica Sorriso Ltda", "CLINICA SORRISO"},
		{"Padaria São João ME", "PADARIA SAO JOAO"},
		{"Construtora Alvorada S.A.", "CONSTRUTORA ALVORADA"},
		{"  acentuação   múltipla  ", "ACENTUACAO MULTIPLA"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeName(tt.in), "input %q", tt.in)
	}
}

func TestNormalizeKey(t *testing.T) {
	assert.Equal(t, "12345678000190", NormalizeKey("12.345.678/0001-90"))
	assert.Equal(t, "12345678000190", NormalizeKey("12345678000190"))
	assert.Equal(t, "", NormalizeKey("sem chave"))
}

func TestNameSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, NameSimilarity("Clínica Sorriso LTDA", "CLINICA SORRISO"))
	assert.Greater(t, NameSimilarity("Clinica Sorriso", "Clinica Sorrizo"), 0.8)
	assert.Less(t, NameSimilarity("Clinica Sorriso", "Auto Pecas Alvorada"), 0.5)
	assert.Zero(t, NameSimilarity("", "anything"))
}
