package places

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector/internal/resilience"
)

func TestTextSearch(t *testing.T) {
	var gotMask, gotKey string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/places:searchText", r.URL.Path)
		gotMask = r.Header.Get("X-Goog-FieldMask")
		gotKey = r.Header.Get("X-Goog-Api-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Write([]byte(`{"places":[{"id":"pid-1","displayName":{"text":"Clinica Sorriso"},"rating":4.6,"userRatingCount":31}]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	body, err := c.TextSearch(context.Background(), "dentist in Sorocaba SP")
	require.NoError(t, err)

	assert.Equal(t, "test-key", gotKey)
	assert.Contains(t, gotMask, "places.id")
	assert.Equal(t, "dentist in Sorocaba SP", gotBody["textQuery"])

	resp, err := ParseTextSearch(body)
	require.NoError(t, err)
	require.Len(t, resp.Places, 1)
	assert.Equal(t, "pid-1", resp.Places[0].ID)
	assert.Equal(t, "Clinica Sorriso", resp.Places[0].DisplayName.Text)
	assert.Equal(t, 4.6, resp.Places[0].Rating)
}

func TestDetails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/places/pid-1", r.URL.Path)
		w.Write([]byte(`{"id":"pid-1","websiteUri":"https://sorriso.com.br","nationalPhoneNumber":"15 3333-4444"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	body, err := c.Details(context.Background(), "pid-1")
	require.NoError(t, err)

	place, err := ParseDetails(body)
	require.NoError(t, err)
	assert.Equal(t, "https://sorriso.com.br", place.WebsiteURI)
	assert.Equal(t, "15 3333-4444", place.NationalPhoneNumber)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{"forbidden is auth", http.StatusForbidden, func(t *testing.T, err error) {
			assert.True(t, resilience.IsAuth(err))
		}},
		{"unauthorized is auth", http.StatusUnauthorized, func(t *testing.T, err error) {
			assert.True(t, resilience.IsAuth(err))
		}},
		{"rate limited is transient", http.StatusTooManyRequests, func(t *testing.T, err error) {
			assert.True(t, resilience.IsTransient(err))
		}},
		{"server error is transient", http.StatusBadGateway, func(t *testing.T, err error) {
			assert.True(t, resilience.IsTransient(err))
		}},
		{"bad request is terminal", http.StatusBadRequest, func(t *testing.T, err error) {
			assert.False(t, resilience.IsTransient(err))
			assert.False(t, resilience.IsAuth(err))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := NewClient("k", WithBaseURL(srv.URL))
			_, err := c.TextSearch(context.Background(), "q")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}
