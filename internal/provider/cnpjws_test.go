package provider

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector/internal/connector"
	"github.com/sells-group/prospector/internal/model"
)

type fakeCNPJWS struct {
	searchBody []byte
	searchErr  error
	officeBody []byte
	officeErr  error
	calls      int
}

func (f *fakeCNPJWS) SearchByName(context.Context, string, string, string) ([]byte, error) {
	f.calls++
	return f.searchBody, f.searchErr
}

func (f *fakeCNPJWS) Office(context.Context, string) ([]byte, error) {
	f.calls++
	return f.officeBody, f.officeErr
}

type nopCache struct{}

func (nopCache) GetCachedResponse(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (nopCache) PutCachedResponse(context.Context, string, []byte, time.Duration) error {
	return nil
}

func (nopCache) AppendRawResponse(context.Context, *model.RawResponse) error {
	return nil
}

func newTestProvider(api *fakeCNPJWS) CompanyProvider {
	conn := connector.New("cnpjws", nopCache{}, connector.Config{QPS: 1000, Burst: 1000, TTL: time.Hour})
	return NewCNPJWS(api, conn, CallMeta{TenantID: "acme", RunID: 1})
}

func TestLookupByNameRanksByConfidence(t *testing.T) {
	api := &fakeCNPJWS{searchBody: []byte(`{"data":[
		{"cnpj":"111","razao_social":"AUTO PECAS ALVORADA LTDA","municipio":"Sorocaba","uf":"SP"},
		{"cnpj":"222","razao_social":"CLINICA SORRISO LTDA","municipio":"Sorocaba","uf":"SP"},
		{"cnpj":"333","razao_social":"X COMERCIO","nome_fantasia":"Clinica Sorriso","municipio":"Sorocaba","uf":"SP"}
	]}`)}
	p := newTestProvider(api)

	candidates, err := p.LookupByName(context.Background(), NameQuery{Name: "Clínica Sorriso", City: "Sorocaba", State: "SP"})
	require.NoError(t, err)
	require.Len(t, candidates, 3)

	assert.Equal(t, 1.0, candidates[0].Confidence)
	// Exact legal-name match sorts ahead of the trade-name match; the
	// sort is stable so equal scores keep provider order.
	assert.Contains(t, []string{"222", "333"}, candidates[0].Key)
	assert.Equal(t, "111", candidates[2].Key)
	assert.Less(t, candidates[2].Confidence, 0.5)
	assert.Contains(t, candidates[0].Explanation, "name similarity")
}

func TestLookupByNameEmptyResult(t *testing.T) {
	api := &fakeCNPJWS{searchBody: []byte(`{"data":[]}`)}
	p := newTestProvider(api)

	candidates, err := p.LookupByName(context.Background(), NameQuery{Name: "Inexistente"})
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestEnrichByKey(t *testing.T) {
	api := &fakeCNPJWS{officeBody: []byte(`{
		"cnpj":"12345678000190",
		"razao_social":"CLINICA SORRISO LTDA",
		"nome_fantasia":"Clinica Sorriso",
		"porte":"ME",
		"email":"contato@sorriso.com.br",
		"telefone":"15 3333-4444",
		"cnae_principal":"8630-5/04"
	}`)}
	p := newTestProvider(api)

	data, err := p.EnrichByKey(context.Background(), "12345678000190")
	require.NoError(t, err)
	assert.Equal(t, "CLINICA SORRISO LTDA", data.LegalName)
	assert.Equal(t, "ME", data.SizeClass)
	assert.Equal(t, "contato@sorriso.com.br", data.Email)
	assert.Equal(t, "8630-5/04", data.Extra["cnae"])
}
