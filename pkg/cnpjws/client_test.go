package cnpjws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector/internal/resilience"
)

func TestSearchByName(t *testing.T) {
	var gotQuery map[string][]string
	var gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/estabelecimentos", r.URL.Path)
		gotQuery = r.URL.Query()
		gotToken = r.Header.Get("x_api_token")
		w.Write([]byte(`{"data":[{"cnpj":"12345678000190","razao_social":"CLINICA SORRISO LTDA","porte":"ME","municipio":"Sorocaba","uf":"SP"}]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient("tok", WithBaseURL(srv.URL))
	body, err := c.SearchByName(context.Background(), "Clinica Sorriso", "Sorocaba", "SP")
	require.NoError(t, err)

	assert.Equal(t, "tok", gotToken)
	assert.Equal(t, []string{"Clinica Sorriso"}, gotQuery["razao_social"])
	assert.Equal(t, []string{"Sorocaba"}, gotQuery["municipio"])
	assert.Equal(t, []string{"SP"}, gotQuery["uf"])

	resp, err := ParseSearch(body)
	require.NoError(t, err)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "12345678000190", resp.Data[0].CNPJ)
	assert.Equal(t, "ME", resp.Data[0].Porte)
}

func TestSearchOmitsEmptyLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.False(t, r.URL.Query().Has("municipio"))
		assert.False(t, r.URL.Query().Has("uf"))
		w.Write([]byte(`{"data":[]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient("tok", WithBaseURL(srv.URL))
	_, err := c.SearchByName(context.Background(), "Empresa", "", "")
	require.NoError(t, err)
}

func TestOffice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/cnpj/12345678000190", r.URL.Path)
		w.Write([]byte(`{"cnpj":"12345678000190","razao_social":"CLINICA SORRISO LTDA","porte":"ME","email":"contato@sorriso.com.br","telefone":"15 3333-4444"}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := NewClient("tok", WithBaseURL(srv.URL))
	body, err := c.Office(context.Background(), "12345678000190")
	require.NoError(t, err)

	est, err := ParseOffice(body)
	require.NoError(t, err)
	assert.Equal(t, "contato@sorriso.com.br", est.Email)
	assert.Equal(t, "15 3333-4444", est.Phone)
}

func TestOfficeNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient("tok", WithBaseURL(srv.URL))
	_, err := c.Office(context.Background(), "00000000000000")
	assert.True(t, errors.Is(err, resilience.ErrNoMatch))
}

func TestAuthRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient("bad", WithBaseURL(srv.URL))
	_, err := c.Office(context.Background(), "12345678000190")
	assert.True(t, resilience.IsAuth(err))
}
