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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Brave     BraveConfig     `yaml:"brave" mapstructure:"brave"`
	Scrape    ScrapeConfig    `yaml:"scrape" mapstructure:"scrape"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Sheet     SheetConfig     `yaml:"sheet" mapstructure:"sheet"`
	Notion    NotionConfig    `yaml:"notion" mapstructure:"notion"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int    `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// BraveConfig holds Brave Search API settings.
type BraveConfig struct {
	Key            string `yaml:"key" mapstructure:"key"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	ResultsPerPage int    `yaml:"results_per_page" mapstructure:"results_per_page"`
}

// ScrapeConfig configures website fetching.
type ScrapeConfig struct {
	TimeoutSecs   int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	DelayMs       int `yaml:"delay_ms" mapstructure:"delay_ms"`
	MaxContentLen int `yaml:"max_content_len" mapstructure:"max_content_len"`
	Retries       int `yaml:"retries" mapstructure:"retries"`
}

// PipelineConfig configures pipeline-wide behavior.
type PipelineConfig struct {
	MaxResults     int `yaml:"max_results" mapstructure:"max_results"`
	MaxConcurrency int `yaml:"max_concurrency" mapstructure:"max_concurrency"`
}

// SheetConfig configures the cumulative results workbook.
type SheetConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// NotionConfig holds Notion API credentials and the target database ID.
type NotionConfig struct {
	Token          string `yaml:"token" mapstructure:"token"`
	ManufacturerDB string `yaml:"manufacturer_db" mapstructure:"manufacturer_db"`
}

// ServerConfig configures the HTTP API server.
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

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SOURCING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "sourcing.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 4096)
	v.SetDefault("brave.base_url", "https://api.search.brave.com/res/v1")
	v.SetDefault("brave.results_per_page", 10)
	v.SetDefault("scrape.timeout_secs", 15)
	v.SetDefault("scrape.delay_ms", 1000)
	v.SetDefault("scrape.max_content_len", 10000)
	v.SetDefault("scrape.retries", 1)
	v.SetDefault("pipeline.max_results", 10)
	v.SetDefault("pipeline.max_concurrency", 4)
	v.SetDefault("sheet.path", "manufacturers_scores.xlsx")

	// Read config file (optional)
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

// Validate checks that the configuration is usable for the given mode.
// Modes correspond to top-level commands: "run", "rescore", "serve",
// "export". Errors list every missing or out-of-range field.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			problems = append(problems, "store.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}

	if c.Pipeline.MaxConcurrency < 1 || c.Pipeline.MaxConcurrency > 32 {
		problems = append(problems, "pipeline.max_concurrency must be between 1 and 32")
	}
	if c.Pipeline.MaxResults < 1 || c.Pipeline.MaxResults > 50 {
		problems = append(problems, "pipeline.max_results must be between 1 and 50")
	}

	switch mode {
	case "run", "serve":
		if c.Anthropic.Key == "" {
			problems = append(problems, "anthropic.key is required")
		}
		if c.Brave.Key == "" {
			problems = append(problems, "brave.key is required")
		}
		if mode == "serve" && c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	case "rescore":
		// Re-scoring works entirely from the store.
	case "export":
		if c.Notion.Token == "" || c.Notion.ManufacturerDB == "" {
			problems = append(problems, "notion.token and notion.manufacturer_db are required")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
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
