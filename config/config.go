package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the ReviewPulse service
type Config struct {
	General     GeneralConfig     `mapstructure:"general"`
	LLM         LLMConfig         `mapstructure:"llm"`
	VectorStore VectorStoreConfig `mapstructure:"vector_store"`
	Ingest      IngestConfig      `mapstructure:"ingest"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	Listen         string        `mapstructure:"listen"`
	Debug          bool          `mapstructure:"debug"`
	AdminToken     string        `mapstructure:"admin_token"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LLMConfig configures the hosted completion provider
type LLMConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Version     string        `mapstructure:"version"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
}

// VectorStoreConfig configures the managed vector index
type VectorStoreConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	IndexHost  string        `mapstructure:"index_host"`
	APIVersion string        `mapstructure:"api_version"`
	Namespace  string        `mapstructure:"namespace"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
}

func (v VectorStoreConfig) Validate() error {
	if strings.TrimSpace(v.IndexHost) == "" {
		return fmt.Errorf("vector_store.index_host is required")
	}
	if v.MaxRetries < 0 {
		return fmt.Errorf("vector_store.max_retries cannot be negative")
	}
	return nil
}

// IngestConfig controls document ingestion
type IngestConfig struct {
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
	PdftotextBin string `mapstructure:"pdftotext_bin"`
	DataDir      string `mapstructure:"data_dir"`
}

func (i IngestConfig) Validate() error {
	if i.ChunkSize <= 0 {
		return fmt.Errorf("ingest.chunk_size must be > 0")
	}
	if i.ChunkOverlap < 0 || i.ChunkOverlap >= i.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap must be in [0, chunk_size)")
	}
	return nil
}

// StorageConfig groups backing stores
type StorageConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig contains the document registry connection settings.
// The registry is optional: an empty config disables it.
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	DBName   string        `mapstructure:"dbname"`
	SSLMode  string        `mapstructure:"sslmode"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Enabled reports whether a registry connection is configured at all.
func (p PostgresConfig) Enabled() bool {
	return strings.TrimSpace(p.URL) != "" || strings.TrimSpace(p.Host) != ""
}

// DSN builds a connection string from the individual fields unless a full
// URL was provided.
func (p PostgresConfig) DSN() (string, error) {
	if strings.TrimSpace(p.URL) != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (storage.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// CacheConfig configures the optional Redis answer cache.
type CacheConfig struct {
	Host     string        `mapstructure:"host"`
	Port     string        `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Enabled reports whether the answer cache should be wired in.
func (c CacheConfig) Enabled() bool {
	return strings.TrimSpace(c.Host) != ""
}

// Addr returns the redis host:port pair.
func (c CacheConfig) Addr() string {
	port := c.Port
	if port == "" {
		port = "6379"
	}
	return fmt.Sprintf("%s:%s", c.Host, port)
}

// TelemetryConfig contains monitoring settings
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadConfig loads config from file with env overrides (REVIEWPULSE_*)
func LoadConfig(path string) (*Config, error) {
	viper.SetConfigName("config")

	viper.SetDefault("general.listen", ":8080")
	viper.SetDefault("general.debug", false)
	viper.SetDefault("general.request_timeout", 90*time.Second)
	viper.SetDefault("llm.base_url", "https://api.anthropic.com")
	viper.SetDefault("llm.model", "claude-sonnet-4-5-20250929")
	viper.SetDefault("llm.version", "2023-06-01")
	viper.SetDefault("llm.timeout", 60*time.Second)
	viper.SetDefault("llm.max_tokens", 700)
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("vector_store.api_version", "2025-01")
	viper.SetDefault("vector_store.timeout", 30*time.Second)
	viper.SetDefault("vector_store.max_retries", 2)
	viper.SetDefault("ingest.chunk_size", 500)
	viper.SetDefault("ingest.chunk_overlap", 50)
	viper.SetDefault("ingest.pdftotext_bin", "pdftotext")
	viper.SetDefault("ingest.data_dir", "data")
	viper.SetDefault("cache.ttl", 5*time.Minute)
	viper.SetDefault("telemetry.enabled", true)

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("REVIEWPULSE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A config file is optional; env and defaults are enough to run.
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.VectorStore.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Ingest.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
