// Package casadosdados is a thin client for the Casa dos Dados public CNPJ
// search API, used as an alternative registry lookup source. Methods return
// the raw response body so callers can fingerprint, cache, and ledger it
// before parsing.
package casadosdados

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/resilience"
)

const defaultBaseURL = "https://api.casadosdados.com.br/v2"

// Client performs Casa dos Dados API operations.
type Client interface {
	Search(ctx context.Context, term, city, state string) ([]byte, error)
}

// SearchResponse is the parsed search response.
type SearchResponse struct {
	Data struct {
		Count   int       `json:"count"`
		Results []Company `json:"cnpj"`
	} `json:"data"`
}

// Company is one search result record.
type Company struct {
	CNPJ         string `json:"cnpj"`
	RazaoSocial  string `json:"razao_social"`
	NomeFantasia string `json:"nome_fantasia"`
	City         string `json:"municipio"`
	State        string `json:"uf"`
}

// ParseSearch decodes a raw search response body.
func ParseSearch(body []byte) (*SearchResponse, error) {
	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "casadosdados: unmarshal search response")
	}
	return &result, nil
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Casa dos Dados client. An empty apiKey hits the public
// search endpoint unauthenticated, at its stricter rate limits.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type searchRequest struct {
	Query struct {
		Termo     []string `json:"termo"`
		UF        []string `json:"uf,omitempty"`
		Municipio []string `json:"municipio,omitempty"`
	} `json:"query"`
	Page int `json:"page"`
}

func (c *httpClient) Search(ctx context.Context, term, city, state string) ([]byte, error) {
	var sr searchRequest
	sr.Query.Termo = []string{term}
	if state != "" {
		sr.Query.UF = []string{state}
	}
	if city != "" {
		sr.Query.Municipio = []string{city}
	}
	sr.Page = 1

	body, err := json.Marshal(sr)
	if err != nil {
		return nil, eris.Wrap(err, "casadosdados: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/public/cnpj/search", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "casadosdados: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "casadosdados: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "casadosdados: read response")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return respBody, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, resilience.ErrNoMatch
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &resilience.AuthError{Provider: "casadosdados", Err: eris.Errorf("status %d", resp.StatusCode)}
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(eris.Errorf("casadosdados: status %d", resp.StatusCode), resp.StatusCode)
	default:
		return nil, eris.Errorf("casadosdados: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
}
