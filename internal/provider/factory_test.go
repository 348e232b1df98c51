package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector/internal/config"
)

func TestBuildSelectsConfiguredDefault(t *testing.T) {
	cfg := config.ProvidersConfig{
		Default: "cnpjws",
		CNPJWS:  config.CNPJWSConfig{Token: "tok"},
	}

	reg, err := Build(cfg, &nopCache{}, CallMeta{TenantID: "acme", RunID: 1})
	require.NoError(t, err)
	require.NotNil(t, reg.Get("cnpjws"))
	assert.Equal(t, "cnpjws", reg.Get("cnpjws").Name())
	assert.NotNil(t, reg.Get("casadosdados"))
}

func TestBuildSkipsTokenlessCNPJWS(t *testing.T) {
	cfg := config.ProvidersConfig{Default: "casadosdados"}

	reg, err := Build(cfg, &nopCache{}, CallMeta{})
	require.NoError(t, err)
	assert.Nil(t, reg.Get("cnpjws"))
	assert.NotNil(t, reg.Get("casadosdados"))
}

func TestBuildRejectsUnconfiguredDefault(t *testing.T) {
	cfg := config.ProvidersConfig{Default: "cnpjws"}

	_, err := Build(cfg, &nopCache{}, CallMeta{})
	assert.Error(t, err)
}
