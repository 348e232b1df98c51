package provider

import (
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospector/internal/config"
	"github.com/sells-group/prospector/internal/connector"
	"github.com/sells-group/prospector/pkg/casadosdados"
	"github.com/sells-group/prospector/pkg/cnpjws"
)

// Build constructs the configured registry enrichers for one run. Each
// provider gets its own connector so rate-limit state is never shared
// across providers.
func Build(cfg config.ProvidersConfig, store connector.CacheStore, meta CallMeta) (*Registry, error) {
	reg := NewRegistry()

	connCfg := connector.Config{
		QPS:   cfg.QPS,
		Burst: cfg.Burst,
		TTL:   time.Duration(cfg.CacheTTLDays) * 24 * time.Hour,
	}
	httpTimeout := 15 * time.Second
	if cfg.TimeoutSecs > 0 {
		httpTimeout = time.Duration(cfg.TimeoutSecs) * time.Second
	}

	if cfg.CNPJWS.Token != "" {
		opts := []cnpjws.Option{cnpjws.WithHTTPClient(&http.Client{Timeout: httpTimeout})}
		if cfg.CNPJWS.BaseURL != "" {
			opts = append(opts, cnpjws.WithBaseURL(cfg.CNPJWS.BaseURL))
		}
		api := cnpjws.NewClient(cfg.CNPJWS.Token, opts...)
		reg.Register(NewCNPJWS(api, connector.New("cnpjws", store, connCfg), meta))
	}

	opts := []casadosdados.Option{casadosdados.WithHTTPClient(&http.Client{Timeout: httpTimeout})}
	if cfg.CasaDosDados.BaseURL != "" {
		opts = append(opts, casadosdados.WithBaseURL(cfg.CasaDosDados.BaseURL))
	}
	api := casadosdados.NewClient(cfg.CasaDosDados.APIKey, opts...)
	reg.Register(NewCasaDosDados(api, connector.New("casadosdados", store, connCfg), meta))

	if reg.Get(cfg.Default) == nil {
		return nil, eris.Errorf("provider: default provider %q not configured", cfg.Default)
	}
	return reg, nil
}
