package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sells-group/prospector/internal/connector"
	"github.com/sells-group/prospector/internal/resilience"
	"github.com/sells-group/prospector/pkg/casadosdados"
)

type casaProvider struct {
	api  casadosdados.Client
	conn *connector.Client
	meta CallMeta
}

// NewCasaDosDados builds the Casa dos Dados registry enricher. The public
// search API has no keyed office endpoint, so EnrichByKey re-queries search
// by the key and returns just the name fields; size class stays empty.
func NewCasaDosDados(api casadosdados.Client, conn *connector.Client, meta CallMeta) CompanyProvider {
	return &casaProvider{api: api, conn: conn, meta: meta}
}

func (p *casaProvider) Name() string { return "casadosdados" }

func (p *casaProvider) LookupByName(ctx context.Context, q NameQuery) ([]Candidate, error) {
	results, err := p.search(ctx, q.Name, q.City, q.State)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(results))
	for _, co := range results {
		conf, matched := bestNameMatch(q.Name, co.RazaoSocial, co.NomeFantasia)
		candidates = append(candidates, Candidate{
			Key:         NormalizeKey(co.CNPJ),
			LegalName:   co.RazaoSocial,
			TradeName:   co.NomeFantasia,
			Confidence:  conf,
			Explanation: fmt.Sprintf("name similarity %.2f against %q (%s, %s)", conf, matched, co.City, co.State),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	return candidates, nil
}

func (p *casaProvider) EnrichByKey(ctx context.Context, key string) (*CompanyData, error) {
	key = NormalizeKey(key)
	results, err := p.search(ctx, key, "", "")
	if err != nil {
		return nil, err
	}
	for _, co := range results {
		if NormalizeKey(co.CNPJ) == key {
			return &CompanyData{
				Key:       key,
				LegalName: co.RazaoSocial,
				TradeName: co.NomeFantasia,
			}, nil
		}
	}
	return nil, resilience.ErrNoMatch
}

func (p *casaProvider) search(ctx context.Context, term, city, state string) ([]casadosdados.Company, error) {
	req := connector.Request{
		TenantID: p.meta.TenantID,
		RunID:    p.meta.RunID,
		Stage:    "registry_enrich",
		Endpoint: "casadosdados/search",
		Params: map[string]string{
			"term":  term,
			"city":  city,
			"state": state,
		},
	}
	body, err := p.conn.Call(ctx, req, func(ctx context.Context) ([]byte, error) {
		return p.api.Search(ctx, term, city, state)
	})
	if errors.Is(err, resilience.ErrNoMatch) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	resp, err := casadosdados.ParseSearch(body)
	if err != nil {
		return nil, err
	}
	return resp.Data.Results, nil
}
