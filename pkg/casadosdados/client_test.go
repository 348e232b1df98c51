package casadosdados

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

func TestSearch(t *testing.T) {
	var got searchRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/public/cnpj/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"data":{"count":1,"cnpj":[{"cnpj":"12345678000190","razao_social":"CLINICA SORRISO LTDA","municipio":"SOROCABA","uf":"SP"}]}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient("", WithBaseURL(srv.URL))
	body, err := c.Search(context.Background(), "clinica sorriso", "Sorocaba", "SP")
	require.NoError(t, err)

	assert.Equal(t, []string{"clinica sorriso"}, got.Query.Termo)
	assert.Equal(t, []string{"SP"}, got.Query.UF)
	assert.Equal(t, []string{"Sorocaba"}, got.Query.Municipio)
	assert.Equal(t, 1, got.Page)

	resp, err := ParseSearch(body)
	require.NoError(t, err)
	require.Len(t, resp.Data.Results, 1)
	assert.Equal(t, "12345678000190", resp.Data.Results[0].CNPJ)
}

func TestSearchSendsCredentials(t *testing.T) {
	var gotAuth, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotKey = r.Header.Get("x-api-key")
		w.Write([]byte(`{"data":{"count":0,"cnpj":[]}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient("secret-key", WithBaseURL(srv.URL))
	_, err := c.Search(context.Background(), "empresa", "", "")
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-key", gotAuth)
	assert.Equal(t, "secret-key", gotKey)
}

func TestSearchOmitsCredentialsWhenUnset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.Empty(t, r.Header.Get("x-api-key"))
		w.Write([]byte(`{"data":{"count":0,"cnpj":[]}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient("", WithBaseURL(srv.URL))
	_, err := c.Search(context.Background(), "empresa", "", "")
	require.NoError(t, err)
}

func TestSearchAuthRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient("revoked", WithBaseURL(srv.URL))
	_, err := c.Search(context.Background(), "x", "", "")
	assert.True(t, resilience.IsAuth(err))
	assert.False(t, resilience.IsTransient(err))
}

func TestSearchTransientStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient("", WithBaseURL(srv.URL))
	_, err := c.Search(context.Background(), "x", "", "")
	assert.True(t, resilience.IsTransient(err))
}
