// Package connector wraps calls to external data providers behind a shared
// discipline: canonical request fingerprinting, a per-provider token bucket,
// TTL response caching, bounded retries, and the write-once raw-response
// audit ledger.
package connector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/prospector/internal/model"
	"github.com/sells-group/prospector/internal/resilience"
)

// CacheStore is the slice of the store the connector needs.
type CacheStore interface {
	GetCachedResponse(ctx context.Context, fingerprint string) ([]byte, bool, error)
	PutCachedResponse(ctx context.Context, fingerprint string, body []byte, ttl time.Duration) error
	AppendRawResponse(ctx context.Context, rr *model.RawResponse) error
}

// Request describes one external call: everything semantically relevant to
// the response, used for fingerprinting and for the audit ledger.
type Request struct {
	TenantID string
	RunID    int64
	Stage    string
	Endpoint string
	Params   map[string]string
}

// Fingerprint returns a stable hash of the normalized request. Parameter
// order never changes the result.
func (r Request) Fingerprint() string {
	keys := make([]string, 0, len(r.Params))
	for k := range r.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(r.Endpoint)
	for _, k := range keys {
		b.WriteByte('|')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(r.Params[k])
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func (r Request) marshalForLedger() json.RawMessage {
	b, err := json.Marshal(map[string]any{
		"endpoint": r.Endpoint,
		"params":   r.Params,
	})
	if err != nil {
		return nil
	}
	return b
}

// Client gates a single provider's external calls. The token bucket is the
// only point of contention for that provider; one Client per provider
// instance, constructed once and injected.
type Client struct {
	name    string
	store   CacheStore
	limiter *rate.Limiter
	ttl     time.Duration
	policy  resilience.Policy
}

// Config tunes one provider connector.
type Config struct {
	QPS   float64
	Burst int
	TTL   time.Duration
}

// New builds a connector for the named provider.
func New(name string, store CacheStore, cfg Config) *Client {
	qps := cfg.QPS
	if qps <= 0 {
		qps = 1
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &Client{
		name:    name,
		store:   store,
		limiter: rate.NewLimiter(rate.Limit(qps), burst),
		ttl:     ttl,
		policy:  resilience.DefaultPolicy(),
	}
}

// Call returns the response for req, from cache when a non-expired entry
// exists for its fingerprint. A cache hit consumes no rate-limit token and
// issues no network call. Every success, hit or miss, is appended to the
// raw-response ledger tagged with the calling stage.
func (c *Client) Call(ctx context.Context, req Request, do func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	fp := req.Fingerprint()

	body, hit, err := c.store.GetCachedResponse(ctx, fp)
	if err != nil {
		return nil, eris.Wrapf(err, "connector %s: cache read", c.name)
	}
	if hit {
		zap.L().Debug("cache hit",
			zap.String("provider", c.name),
			zap.String("endpoint", req.Endpoint),
			zap.String("fingerprint", fp),
		)
		c.appendLedger(ctx, req, fp, body)
		return body, nil
	}

	op := c.name + " " + req.Endpoint
	body, err = resilience.DoVal(ctx, c.policy, op, func(ctx context.Context) ([]byte, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrapf(err, "connector %s: rate wait", c.name)
		}
		return do(ctx)
	})
	if err != nil {
		return nil, eris.Wrapf(err, "connector %s: call %s", c.name, req.Endpoint)
	}

	if err := c.store.PutCachedResponse(ctx, fp, body, c.ttl); err != nil {
		// A cache write failure degrades to more network calls; the
		// response itself is fine.
		zap.L().Warn("cache write failed",
			zap.String("provider", c.name),
			zap.String("fingerprint", fp),
			zap.Error(err),
		)
	}
	c.appendLedger(ctx, req, fp, body)
	return body, nil
}

func (c *Client) appendLedger(ctx context.Context, req Request, fp string, body []byte) {
	err := c.store.AppendRawResponse(ctx, &model.RawResponse{
		TenantID:    req.TenantID,
		RunID:       req.RunID,
		Stage:       req.Stage,
		Fingerprint: fp,
		Request:     req.marshalForLedger(),
		Response:    body,
	})
	if err != nil {
		zap.L().Warn("raw response ledger write failed",
			zap.String("provider", c.name),
			zap.String("stage", req.Stage),
			zap.Error(err),
		)
	}
}
