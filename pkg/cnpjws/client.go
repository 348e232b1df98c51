// Package cnpjws is a thin client for the CNPJ.ws corporate registry API.
// Methods return the raw response body so callers can fingerprint, cache,
// and ledger it before parsing.
package cnpjws

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/resilience"
)

const defaultBaseURL = "https://comercial.cnpj.ws"

// Client performs CNPJ.ws API operations.
type Client interface {
	SearchByName(ctx context.Context, name, city, state string) ([]byte, error)
	Office(ctx context.Context, cnpj string) ([]byte, error)
}

// SearchResponse is the parsed establishment search response.
type SearchResponse struct {
	Data []Establishment `json:"data"`
}

// Establishment is one registry record.
type Establishment struct {
	CNPJ         string `json:"cnpj"`
	RazaoSocial  string `json:"razao_social"`
	NomeFantasia string `json:"nome_fantasia"`
	Porte        string `json:"porte"`
	City         string `json:"municipio"`
	State        string `json:"uf"`
	Email        string `json:"email"`
	Phone        string `json:"telefone"`
	CNAE         string `json:"cnae_principal"`
	Situacao     string `json:"situacao_cadastral"`
}

// ParseSearch decodes a raw search response body.
func ParseSearch(body []byte) (*SearchResponse, error) {
	var result SearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "cnpjws: unmarshal search response")
	}
	return &result, nil
}

// ParseOffice decodes a raw office lookup body.
func ParseOffice(body []byte) (*Establishment, error) {
	var result Establishment
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "cnpjws: unmarshal office response")
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

// NewClient creates a CNPJ.ws client.
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

func (c *httpClient) SearchByName(ctx context.Context, name, city, state string) ([]byte, error) {
	q := url.Values{}
	q.Set("razao_social", name)
	if city != "" {
		q.Set("municipio", city)
	}
	if state != "" {
		q.Set("uf", state)
	}
	return c.get(ctx, "/estabelecimentos?"+q.Encode())
}

func (c *httpClient) Office(ctx context.Context, cnpj string) ([]byte, error) {
	return c.get(ctx, "/cnpj/"+url.PathEscape(cnpj))
}

func (c *httpClient) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, eris.Wrap(err, "cnpjws: create request")
	}
	req.Header.Set("x_api_token", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "cnpjws: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "cnpjws: read response")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return respBody, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, resilience.ErrNoMatch
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &resilience.AuthError{Provider: "cnpjws", Err: eris.Errorf("status %d", resp.StatusCode)}
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(eris.Errorf("cnpjws: status %d", resp.StatusCode), resp.StatusCode)
	default:
		return nil, eris.Errorf("cnpjws: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
}
