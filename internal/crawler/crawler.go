// Package crawler discovers a contact email address on an entity's own web
// domain via a bounded breadth-first crawl. Compliance gates (opt-out
// registry, social/aggregator blacklist) run before any network traffic.
package crawler

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/resilience"
)

const defaultUserAgent = "Mozilla/5.0 (compatible; ProspectorBot/1.0)"

// Paths commonly hosting contact details, seeded alongside the root so a
// tiny page budget still reaches them.
var contactPaths = []string{"/contact", "/contato", "/fale-conosco", "/sobre", "/about"}

// Social networks and aggregators are never the entity's own domain.
var domainBlacklist = []string{
	"facebook.com",
	"instagram.com",
	"linkedin.com",
	"google.com",
}

// OptOutChecker is the slice of the store the crawler consults before
// fetching.
type OptOutChecker interface {
	IsOptedOut(ctx context.Context, tenantID string, scope model.OptOutScope, value string) (bool, error)
}

// Result is the outcome of one crawl.
type Result struct {
	Email        string
	SourceURL    string
	PagesFetched int
}

// Crawler fetches pages from a single root domain.
type Crawler struct {
	http      *http.Client
	optOuts   OptOutChecker
	tenantID  string
	maxPages  int
	userAgent string
}

// Config tunes the crawler.
type Config struct {
	MaxPages  int
	Timeout   time.Duration
	UserAgent string
}

// New creates a Crawler.
func New(optOuts OptOutChecker, tenantID string, cfg Config) *Crawler {
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 3
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	return &Crawler{
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 5 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		},
		optOuts:   optOuts,
		tenantID:  tenantID,
		maxPages:  maxPages,
		userAgent: ua,
	}
}

// Find crawls the site rooted at rawURL and returns the first valid email
// found, with the page it was found on as evidence. Single-page fetch
// errors are swallowed. Compliance gates report resilience.ErrOptedOut
// before any traffic; only those gates and URL parsing fail the crawl
// outright.
func (c *Crawler) Find(ctx context.Context, rawURL string) (*Result, error) {
	rootStr, err := normalizeURL(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "crawler: parse root url %s", rawURL)
	}
	root, err := url.Parse(rootStr)
	if err != nil {
		return nil, eris.Wrapf(err, "crawler: parse root url %s", rawURL)
	}
	domain := CanonicalDomain(root.Host)

	if blacklisted(domain) {
		return nil, eris.Wrapf(resilience.ErrOptedOut, "crawler: domain %s is blacklisted", domain)
	}
	optedOut, err := c.optOuts.IsOptedOut(ctx, c.tenantID, model.OptOutDomain, domain)
	if err != nil {
		return nil, eris.Wrap(err, "crawler: opt-out check")
	}
	if optedOut {
		return nil, eris.Wrapf(resilience.ErrOptedOut, "crawler: domain %s is on the opt-out registry", domain)
	}

	seen := map[string]bool{rootStr: true}
	queue := []string{rootStr}
	for _, p := range contactPaths {
		u := root.ResolveReference(&url.URL{Path: p}).String()
		if !seen[u] {
			seen[u] = true
			queue = append(queue, u)
		}
	}

	result := &Result{}
	for len(queue) > 0 && result.PagesFetched < c.maxPages {
		pageURL := queue[0]
		queue = queue[1:]

		result.PagesFetched++
		body, err := c.fetch(ctx, pageURL)
		if err != nil {
			zap.L().Debug("crawler: page fetch failed",
				zap.String("url", pageURL),
				zap.Error(err),
			)
			continue
		}

		if email := firstValidEmail(body); email != "" {
			result.Email = email
			result.SourceURL = pageURL
			return result, nil
		}

		for _, link := range sameDomainLinks(string(body), root) {
			if !seen[link] {
				seen[link] = true
				queue = append(queue, link)
			}
		}
	}
	return result, nil
}

func (c *Crawler) fetch(ctx context.Context, pageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "execute request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 512*1024))
}

// sameDomainLinks extracts href targets resolving to the root host.
// Cross-domain links are never followed.
func sameDomainLinks(html string, root *url.URL) []string {
	var links []string
	seen := make(map[string]bool)

	idx := 0
	for {
		pos := strings.Index(html[idx:], "href=\"")
		if pos == -1 {
			break
		}
		idx += pos + 6

		end := strings.Index(html[idx:], "\"")
		if end == -1 {
			break
		}
		href := html[idx : idx+end]
		idx += end + 1

		if strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
			continue
		}
		resolved, err := url.Parse(href)
		if err != nil {
			continue
		}
		absolute := root.ResolveReference(resolved)
		if CanonicalDomain(absolute.Host) != CanonicalDomain(root.Host) {
			continue
		}

		absolute.Fragment = ""
		normalized := absolute.String()
		if !seen[normalized] {
			seen[normalized] = true
			links = append(links, normalized)
		}
	}
	return links
}

// CanonicalDomain lowercases a host and strips port and www prefix, so
// opt-out entries match regardless of the URL form that was discovered.
func CanonicalDomain(host string) string {
	h := strings.ToLower(host)
	if hp, _, err := net.SplitHostPort(h); err == nil {
		h = hp
	} else {
		// No port. Unbracket a bare IPv6 literal.
		h = strings.TrimSuffix(strings.TrimPrefix(h, "["), "]")
	}
	return strings.TrimPrefix(h, "www.")
}

func blacklisted(domain string) bool {
	for _, b := range domainBlacklist {
		if domain == b || strings.HasSuffix(domain, "."+b) {
			return true
		}
	}
	return false
}

func normalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", eris.New("empty url")
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", eris.Errorf("no host in %q", raw)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return u.String(), nil
}
