package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Tenant    string          `yaml:"tenant" mapstructure:"tenant"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Places    PlacesConfig    `yaml:"places" mapstructure:"places"`
	Providers ProvidersConfig `yaml:"providers" mapstructure:"providers"`
	Crawl     CrawlConfig     `yaml:"crawl" mapstructure:"crawl"`
	Engine    EngineConfig    `yaml:"engine" mapstructure:"engine"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PlacesConfig configures the discovery source and detail fetcher.
type PlacesConfig struct {
	APIKey       string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL      string  `yaml:"base_url" mapstructure:"base_url"`
	LanguageCode string  `yaml:"language_code" mapstructure:"language_code"`
	RegionCode   string  `yaml:"region_code" mapstructure:"region_code"`
	QPS          float64 `yaml:"qps" mapstructure:"qps"`
	Burst        int     `yaml:"burst" mapstructure:"burst"`
	TimeoutSecs  int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	CacheTTLDays int     `yaml:"cache_ttl_days" mapstructure:"cache_ttl_days"`
}

// ProvidersConfig selects and configures corporate-registry providers.
type ProvidersConfig struct {
	Default      string             `yaml:"default" mapstructure:"default"`
	QPS          float64            `yaml:"qps" mapstructure:"qps"`
	Burst        int                `yaml:"burst" mapstructure:"burst"`
	TimeoutSecs  int                `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	CacheTTLDays int                `yaml:"cache_ttl_days" mapstructure:"cache_ttl_days"`
	CNPJWS       CNPJWSConfig       `yaml:"cnpjws" mapstructure:"cnpjws"`
	CasaDosDados CasaDosDadosConfig `yaml:"casadosdados" mapstructure:"casadosdados"`
}

// CNPJWSConfig holds CNPJ.ws credentials.
type CNPJWSConfig struct {
	Token   string `yaml:"token" mapstructure:"token"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CasaDosDadosConfig holds Casa dos Dados credentials.
type CasaDosDadosConfig struct {
	APIKey  string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// CrawlConfig configures the contact crawler.
type CrawlConfig struct {
	MaxPages    int    `yaml:"max_pages" mapstructure:"max_pages"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// EngineConfig configures the task worker pool.
type EngineConfig struct {
	Concurrency    int `yaml:"concurrency" mapstructure:"concurrency"`
	MaxTaskRetries int `yaml:"max_task_retries" mapstructure:"max_task_retries"`
	PollMillis     int `yaml:"poll_millis" mapstructure:"poll_millis"`
}

// ServerConfig configures the read-only status server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PROSPECTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("tenant", "default")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "prospector.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("places.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("places.language_code", "pt-BR")
	v.SetDefault("places.region_code", "BR")
	v.SetDefault("places.qps", 5)
	v.SetDefault("places.burst", 5)
	v.SetDefault("places.timeout_secs", 30)
	v.SetDefault("places.cache_ttl_days", 7)
	v.SetDefault("providers.default", "cnpjws")
	v.SetDefault("providers.qps", 2)
	v.SetDefault("providers.burst", 2)
	v.SetDefault("providers.timeout_secs", 15)
	v.SetDefault("providers.cache_ttl_days", 30)
	v.SetDefault("providers.cnpjws.base_url", "https://comercial.cnpj.ws")
	v.SetDefault("providers.casadosdados.base_url", "https://api.casadosdados.com.br/v2")
	v.SetDefault("crawl.max_pages", 3)
	v.SetDefault("crawl.timeout_secs", 10)
	v.SetDefault("crawl.user_agent", "Mozilla/5.0 (compatible; ProspectorBot/1.0)")
	v.SetDefault("engine.concurrency", 4)
	v.SetDefault("engine.max_task_retries", 3)
	v.SetDefault("engine.poll_millis", 250)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
