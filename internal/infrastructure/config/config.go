package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Neo4J    Neo4JConfig    `mapstructure:"neo4j"`
	Moralis  MoralisConfig  `mapstructure:"moralis"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// AppConfig represents application-specific configuration
type AppConfig struct {
	Env             string        `mapstructure:"env"`
	LogLevel        string        `mapstructure:"log_level"`
	HTTPPort        int           `mapstructure:"http_port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
}

// NATSConfig represents NATS configuration
type NATSConfig struct {
	URL                string        `mapstructure:"url"`
	SubjectPrefix      string        `mapstructure:"subject_prefix"`
	ConsumerGroup      string        `mapstructure:"consumer_group"`
	ConnectTimeout     time.Duration `mapstructure:"connect_timeout"`
	ReconnectAttempts  int           `mapstructure:"reconnect_attempts"`
	ReconnectDelay     time.Duration `mapstructure:"reconnect_delay"`
	MaxPendingMessages int           `mapstructure:"max_pending_messages"`
	Enabled            bool          `mapstructure:"enabled"`
}

// RequestSubject is the subject analysis requests arrive on
func (c NATSConfig) RequestSubject() string {
	return c.SubjectPrefix + ".requests"
}

// CompletedSubject is the subject completion events are published on
func (c NATSConfig) CompletedSubject() string {
	return c.SubjectPrefix + ".completed"
}

// Neo4JConfig represents Neo4J configuration
type Neo4JConfig struct {
	Enabled                      bool          `mapstructure:"enabled"`
	URI                          string        `mapstructure:"uri"`
	Username                     string        `mapstructure:"username"`
	Password                     string        `mapstructure:"password"`
	Database                     string        `mapstructure:"database"`
	ConnectTimeout               time.Duration `mapstructure:"connect_timeout"`
	MaxConnectionPoolSize        int           `mapstructure:"max_connection_pool_size"`
	ConnectionAcquisitionTimeout time.Duration `mapstructure:"connection_acquisition_timeout"`
	BatchSize                    int           `mapstructure:"batch_size"`
}

// MoralisConfig represents the transaction indexer API configuration
type MoralisConfig struct {
	APIKey                   string        `mapstructure:"api_key"`
	BaseURL                  string        `mapstructure:"base_url"`
	Timeout                  time.Duration `mapstructure:"timeout"`
	RequestsPerSecond        float64       `mapstructure:"requests_per_second"`
	Burst                    int           `mapstructure:"burst"`
	PageSize                 int           `mapstructure:"page_size"`
	MaxTransactionsPerWallet int           `mapstructure:"max_transactions_per_wallet"`
	LookbackDays             int           `mapstructure:"lookback_days"`
}

// OpenAIConfig represents the narrative analysis API configuration
type OpenAIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
}

// AnalysisConfig represents analysis job configuration
type AnalysisConfig struct {
	MaxWalletsPerRequest int           `mapstructure:"max_wallets_per_request"`
	FetchConcurrency     int           `mapstructure:"fetch_concurrency"`
	JobTimeout           time.Duration `mapstructure:"job_timeout"`
	ResultTTL            time.Duration `mapstructure:"result_ttl"`
	MaxResults           int           `mapstructure:"max_results"`
	LouvainResolution    float64       `mapstructure:"louvain_resolution"`
	LouvainSeed          uint64        `mapstructure:"louvain_seed"`
}

// MetricsConfig represents metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load loads configuration from environment variables and files
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/wallet-cluster-analyzer")

	// Environment variables
	viper.AutomaticEnv()
	viper.SetEnvPrefix("")

	// Map environment variables to nested config keys
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Default values
	setDefaults()

	// Read config file if exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks values that would make the service misbehave silently
func (c *Config) Validate() error {
	if c.Analysis.MaxWalletsPerRequest <= 0 {
		return fmt.Errorf("analysis.max_wallets_per_request must be positive, got %d", c.Analysis.MaxWalletsPerRequest)
	}
	if c.Analysis.FetchConcurrency <= 0 {
		return fmt.Errorf("analysis.fetch_concurrency must be positive, got %d", c.Analysis.FetchConcurrency)
	}
	if c.Analysis.MaxResults <= 0 {
		return fmt.Errorf("analysis.max_results must be positive, got %d", c.Analysis.MaxResults)
	}
	if c.Analysis.ResultTTL <= 0 {
		return fmt.Errorf("analysis.result_ttl must be positive, got %s", c.Analysis.ResultTTL)
	}
	if c.Moralis.RequestsPerSecond <= 0 {
		return fmt.Errorf("moralis.requests_per_second must be positive, got %v", c.Moralis.RequestsPerSecond)
	}
	return nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// App defaults
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.http_port", 8000)
	viper.SetDefault("app.shutdown_timeout", "15s")
	viper.SetDefault("app.max_upload_bytes", 1<<20)

	// NATS defaults
	viper.SetDefault("nats.url", "nats://localhost:4222")
	viper.SetDefault("nats.subject_prefix", "wallet_analysis")
	viper.SetDefault("nats.consumer_group", "wallet-cluster-analyzer")
	viper.SetDefault("nats.connect_timeout", "10s")
	viper.SetDefault("nats.reconnect_attempts", 5)
	viper.SetDefault("nats.reconnect_delay", "2s")
	viper.SetDefault("nats.max_pending_messages", 1000)
	viper.SetDefault("nats.enabled", false)

	// Neo4J defaults
	viper.SetDefault("neo4j.enabled", false)
	viper.SetDefault("neo4j.uri", "neo4j://localhost:7687")
	viper.SetDefault("neo4j.username", "neo4j")
	viper.SetDefault("neo4j.password", "password")
	viper.SetDefault("neo4j.database", "neo4j")
	viper.SetDefault("neo4j.connect_timeout", "10s")
	viper.SetDefault("neo4j.max_connection_pool_size", 50)
	viper.SetDefault("neo4j.connection_acquisition_timeout", "60s")
	viper.SetDefault("neo4j.batch_size", 500)

	// Moralis defaults
	viper.SetDefault("moralis.api_key", "")
	viper.SetDefault("moralis.base_url", "https://deep-index.moralis.io/api/v2.2")
	viper.SetDefault("moralis.timeout", "30s")
	viper.SetDefault("moralis.requests_per_second", 5)
	viper.SetDefault("moralis.burst", 5)
	viper.SetDefault("moralis.page_size", 100)
	viper.SetDefault("moralis.max_transactions_per_wallet", 1000)
	viper.SetDefault("moralis.lookback_days", 180)

	// OpenAI defaults
	viper.SetDefault("openai.api_key", "")
	viper.SetDefault("openai.base_url", "https://api.openai.com/v1")
	viper.SetDefault("openai.model", "gpt-4")
	viper.SetDefault("openai.timeout", "60s")
	viper.SetDefault("openai.temperature", 0.3)
	viper.SetDefault("openai.max_tokens", 1500)

	// Analysis defaults
	viper.SetDefault("analysis.max_wallets_per_request", 100)
	viper.SetDefault("analysis.fetch_concurrency", 5)
	viper.SetDefault("analysis.job_timeout", "30m")
	viper.SetDefault("analysis.result_ttl", "24h")
	viper.SetDefault("analysis.max_results", 1000)
	viper.SetDefault("analysis.louvain_resolution", 1.0)
	viper.SetDefault("analysis.louvain_seed", 1)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)

	// Bind env for API keys and NATS URL
	viper.BindEnv("nats.url", "NATS_URL")
	viper.BindEnv("moralis.api_key", "MORALIS_API_KEY")
	viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
}
