package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/connector"
	"github.com/sells-group/prospector/internal/resilience"
	"github.com/sells-group/prospector/pkg/cnpjws"
)

// CallMeta pins a provider instance to the run whose ledger its calls are
// recorded under.
type CallMeta struct {
	TenantID string
	RunID    int64
}

type cnpjwsProvider struct {
	api  cnpjws.Client
	conn *connector.Client
	meta CallMeta
}

// NewCNPJWS builds the CNPJ.ws registry enricher.
func NewCNPJWS(api cnpjws.Client, conn *connector.Client, meta CallMeta) CompanyProvider {
	return &cnpjwsProvider{api: api, conn: conn, meta: meta}
}

func (p *cnpjwsProvider) Name() string { return "cnpjws" }

func (p *cnpjwsProvider) LookupByName(ctx context.Context, q NameQuery) ([]Candidate, error) {
	req := connector.Request{
		TenantID: p.meta.TenantID,
		RunID:    p.meta.RunID,
		Stage:    "registry_enrich",
		Endpoint: "cnpjws/search",
		Params: map[string]string{
			"name":  q.Name,
			"city":  q.City,
			"state": q.State,
		},
	}
	body, err := p.conn.Call(ctx, req, func(ctx context.Context) ([]byte, error) {
		return p.api.SearchByName(ctx, q.Name, q.City, q.State)
	})
	if errors.Is(err, resilience.ErrNoMatch) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	resp, err := cnpjws.ParseSearch(body)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(resp.Data))
	for _, est := range resp.Data {
		conf, matched := bestNameMatch(q.Name, est.RazaoSocial, est.NomeFantasia)
		candidates = append(candidates, Candidate{
			Key:         NormalizeKey(est.CNPJ),
			LegalName:   est.RazaoSocial,
			TradeName:   est.NomeFantasia,
			Confidence:  conf,
			Explanation: fmt.Sprintf("name similarity %.2f against %q (%s, %s)", conf, matched, est.City, est.State),
		})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Confidence > candidates[j].Confidence
	})
	return candidates, nil
}

func (p *cnpjwsProvider) EnrichByKey(ctx context.Context, key string) (*CompanyData, error) {
	key = NormalizeKey(key)
	req := connector.Request{
		TenantID: p.meta.TenantID,
		RunID:    p.meta.RunID,
		Stage:    "registry_enrich",
		Endpoint: "cnpjws/office",
		Params:   map[string]string{"cnpj": key},
	}
	body, err := p.conn.Call(ctx, req, func(ctx context.Context) ([]byte, error) {
		return p.api.Office(ctx, key)
	})
	if err != nil {
		return nil, err
	}

	est, err := cnpjws.ParseOffice(body)
	if err != nil {
		return nil, err
	}
	if est.CNPJ == "" {
		return nil, eris.Wrapf(resilience.ErrNoMatch, "cnpjws: empty office record for %s", key)
	}

	return &CompanyData{
		Key:       NormalizeKey(est.CNPJ),
		LegalName: est.RazaoSocial,
		TradeName: est.NomeFantasia,
		SizeClass: est.Porte,
		Email:     est.Email,
		Phone:     est.Phone,
		Extra: map[string]any{
			"cnae":     est.CNAE,
			"situacao": est.Situacao,
		},
	}, nil
}

// bestNameMatch scores the query against both registry name forms and
// returns the higher score with the name that produced it.
func bestNameMatch(query, legalName, tradeName string) (float64, string) {
	conf, matched := NameSimilarity(query, legalName), legalName
	if tradeName != "" {
		if tc := NameSimilarity(query, tradeName); tc > conf {
			conf, matched = tc, tradeName
		}
	}
	return conf, matched
}
