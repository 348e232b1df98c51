package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/resilience"
)

type fakeOptOuts struct {
	domains map[string]bool
}

func (f *fakeOptOuts) IsOptedOut(_ context.Context, _ string, scope model.OptOutScope, value string) (bool, error) {
	return scope == model.OptOutDomain && f.domains[value], nil
}

func newTestCrawler(maxPages int, optOutDomains ...string) *Crawler {
	domains := map[string]bool{}
	for _, d := range optOutDomains {
		domains[d] = true
	}
	return New(&fakeOptOuts{domains: domains}, "acme", Config{MaxPages: maxPages, Timeout: 2 * time.Second})
}

func TestFindEmailOnContactPath(t *testing.T) {
	var fetches int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&fetches, 1)
		switch r.URL.Path {
		case "/":
			w.Write([]byte(`<html><a href="/equipe">Equipe</a></html>`)) //nolint:errcheck
		case "/contato":
			w.Write([]byte(`<html>Fale conosco: contato@sorriso.com.br</html>`)) //nolint:errcheck
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	res, err := newTestCrawler(5).Find(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "contato@sorriso.com.br", res.Email)
	assert.Equal(t, srv.URL+"/contato", res.SourceURL)
}

func TestCrawlBoundedByPageBudget(t *testing.T) {
	var fetches int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&fetches, 1)
		// Every page links to many more discoverable pages; none carry
		// an email, so only the budget stops the crawl.
		w.Write([]byte(`<html>
			<a href="/p1">1</a><a href="/p2">2</a><a href="/p3">3</a>
			<a href="/p4">4</a><a href="/p5">5</a><a href="/p6">6</a>
		</html>`)) //nolint:errcheck
	}))
	defer srv.Close()

	res, err := newTestCrawler(3).Find(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Empty(t, res.Email)
	assert.Equal(t, 3, res.PagesFetched)
	assert.Equal(t, int64(3), atomic.LoadInt64(&fetches))
}

func TestOptedOutDomainPerformsZeroFetches(t *testing.T) {
	var fetches int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt64(&fetches, 1)
		w.Write([]byte(`contato@sorriso.com.br`)) //nolint:errcheck
	}))
	defer srv.Close()

	domain := CanonicalDomain(srv.Listener.Addr().String())
	res, err := newTestCrawler(3, domain).Find(context.Background(), srv.URL+"/qualquer/pagina")
	require.ErrorIs(t, err, resilience.ErrOptedOut)
	assert.Nil(t, res)
	assert.Equal(t, int64(0), atomic.LoadInt64(&fetches))
}

func TestBlacklistedDomainSkipped(t *testing.T) {
	res, err := newTestCrawler(3).Find(context.Background(), "https://www.facebook.com/sorrisoclinica")
	require.ErrorIs(t, err, resilience.ErrOptedOut)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "blacklisted")
}

func TestCrossDomainLinksNotFollowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			w.Write([]byte(`<html><a href="https://outra-empresa.com.br/contato">x</a></html>`)) //nolint:errcheck
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	res, err := newTestCrawler(10).Find(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Empty(t, res.Email)
	// Root plus the heuristic contact paths only; the external link adds
	// nothing to the queue.
	assert.Equal(t, 6, res.PagesFetched)
}

func TestFetchErrorsAreSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			http.Error(w, "boom", http.StatusInternalServerError)
		case "/contact":
			w.Write([]byte(`vendas@empresa.com.br`)) //nolint:errcheck
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	res, err := newTestCrawler(3).Find(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "vendas@empresa.com.br", res.Email)
}

func TestFirstValidEmailFiltersPlaceholders(t *testing.T) {
	body := []byte(`
		<img src="logo@2x.png">
		<script>user = "test@example.com";</script>
		contato: atendimento@clinica.com.br
	`)
	assert.Equal(t, "atendimento@clinica.com.br", firstValidEmail(body))
	assert.Empty(t, firstValidEmail([]byte(`only test@example.com here`)))
}

func TestCanonicalDomain(t *testing.T) {
	assert.Equal(t, "sorriso.com.br", CanonicalDomain("www.sorriso.com.br"))
	assert.Equal(t, "sorriso.com.br", CanonicalDomain("Sorriso.com.br:443"))
	assert.Equal(t, "sorriso.com.br", CanonicalDomain("sorriso.com.br"))
	assert.Equal(t, "::1", CanonicalDomain("[::1]"))
	assert.Equal(t, "::1", CanonicalDomain("[::1]:8080"))
	assert.Equal(t, "192.168.0.10", CanonicalDomain("192.168.0.10:3000"))
}
