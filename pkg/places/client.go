// Package places is a thin client for the Places API (v1 surface): text
// search for discovery and place details for per-entity attribute fetch.
// Methods return the raw response body so callers can fingerprint, cache,
// and ledger it before parsing.
package places

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

const defaultBaseURL = "https://places.googleapis.com/v1"

const (
	searchFieldMask = "places.id,places.displayName,places.formattedAddress,places.websiteUri,places.nationalPhoneNumber,places.rating,places.userRatingCount,places.types"
	detailFieldMask = "id,displayName,formattedAddress,websiteUri,nationalPhoneNumber,rating,userRatingCount,types"
)

// Client performs Places API operations.
type Client interface {
	TextSearch(ctx context.Context, query string) ([]byte, error)
	Details(ctx context.Context, placeID string) ([]byte, error)
}

// TextSearchResponse is the parsed Text Search response.
type TextSearchResponse struct {
	Places []Place `json:"places"`
}

// Place is one place record.
type Place struct {
	ID                  string      `json:"id"`
	DisplayName         DisplayName `json:"displayName"`
	FormattedAddress    string      `json:"formattedAddress"`
	WebsiteURI          string      `json:"websiteUri"`
	NationalPhoneNumber string      `json:"nationalPhoneNumber"`
	Rating              float64     `json:"rating"`
	UserRatingCount     int         `json:"userRatingCount"`
	Types               []string    `json:"types"`
}

// DisplayName holds the place's display name.
type DisplayName struct {
	Text string `json:"text"`
}

// ParseTextSearch decodes a raw Text Search body.
func ParseTextSearch(body []byte) (*TextSearchResponse, error) {
	var result TextSearchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "places: unmarshal search response")
	}
	return &result, nil
}

// ParseDetails decodes a raw place details body.
func ParseDetails(body []byte) (*Place, error) {
	var result Place
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, eris.Wrap(err, "places: unmarshal details response")
	}
	return &result, nil
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
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

// NewClient creates a Places API client.
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

type textSearchRequest struct {
	TextQuery string `json:"textQuery"`
}

func (c *httpClient) TextSearch(ctx context.Context, query string) ([]byte, error) {
	body, err := json.Marshal(textSearchRequest{TextQuery: query})
	if err != nil {
		return nil, eris.Wrap(err, "places: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/places:searchText", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "places: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", searchFieldMask)

	return c.do(req)
}

func (c *httpClient) Details(ctx context.Context, placeID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/places/"+placeID, nil)
	if err != nil {
		return nil, eris.Wrap(err, "places: create request")
	}
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", detailFieldMask)

	return c.do(req)
}

func (c *httpClient) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "places: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "places: read response")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return respBody, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &resilience.AuthError{Provider: "places", Err: eris.Errorf("status %d: %s", resp.StatusCode, string(respBody))}
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return nil, resilience.NewTransientError(eris.Errorf("places: status %d", resp.StatusCode), resp.StatusCode)
	default:
		return nil, eris.Errorf("places: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
}
