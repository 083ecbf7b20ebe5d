package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"candle-aggregator/src/data_source/binance"
	"candle-aggregator/src/models"
	"candle-aggregator/src/timerange"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g. CANDLES_STREAM_URL
const EnvPrefix = "CANDLES_"

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig loads the YAML file, applies .env and CANDLES_* overrides, fills
// defaults and validates the result
func NewConfig(configPath string) (*Config, error) {
	// 1. Optional .env in the working directory
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// 2. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	// 3. Environment overrides
	if err := env.ParseWithOptions(&modelConfig, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment overrides: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.ApplyDefaults()

	// 4. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// ApplyDefaults fills optional fields left empty
func (c *Config) ApplyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if c.GrpcHost == "" {
		c.GrpcHost = c.Host
	}
	if c.Stream.Provider == "" {
		c.Stream.Provider = "Binance"
	}
	if c.Stream.URL == "" {
		c.Stream.URL = binance.DefaultStreamURL
	}
	if c.Stream.Type == "" {
		c.Stream.Type = "kline_1m"
	}
	if c.Stream.ReconnectDelaySeconds == 0 {
		c.Stream.ReconnectDelaySeconds = 1
	}
	if c.Stream.MaxReconnectDelaySeconds == 0 {
		c.Stream.MaxReconnectDelaySeconds = 60
	}
	if c.Aggregation.CloseOffsetMs == 0 {
		c.Aggregation.CloseOffsetMs = timerange.DefaultCloseOffsetMs
	}
	if c.Aggregation.ContinuityGapMs == 0 {
		c.Aggregation.ContinuityGapMs = timerange.DefaultContinuityGapMs
	}
	if c.Storage.MaxRetries == 0 {
		c.Storage.MaxRetries = 5
	}
	if c.Server.SendBuffer == 0 {
		c.Server.SendBuffer = 256
	}
	if c.Server.HistorySize == 0 {
		c.Server.HistorySize = 500
	}
}

// -----------------------------------------------------------------------------

// Validate performs configuration validation
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG", "INFO", "WARNING", "WARN", "ERROR":
	default:
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}

	// Server
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}
	if c.GrpcPort != 0 && (c.GrpcPort <= 1024 || c.GrpcPort > 65535 || c.GrpcPort == c.Port) {
		return fmt.Errorf("invalid grpc port number: %d", c.GrpcPort)
	}
	if c.Server.SendBuffer < 0 || c.Server.HistorySize < 0 {
		return fmt.Errorf("server buffers cannot be negative")
	}

	// Stream
	if !strings.EqualFold(c.Stream.Provider, "binance") {
		return fmt.Errorf("unsupported stream provider %q", c.Stream.Provider)
	}
	if c.Stream.ReconnectDelaySeconds < 0 || c.Stream.MaxReconnectDelaySeconds < c.Stream.ReconnectDelaySeconds {
		return fmt.Errorf("invalid reconnect delays: %ds..%ds", c.Stream.ReconnectDelaySeconds, c.Stream.MaxReconnectDelaySeconds)
	}

	// Symbols
	if len(c.Params.Symbols) == 0 {
		return fmt.Errorf("at least one symbol must be configured")
	}
	seen := make(map[string]struct{}, len(c.Params.Symbols))
	for i, symbol := range c.Params.Symbols {
		if symbol == "" {
			return fmt.Errorf("symbol %d cannot be empty", i)
		}
		if _, dup := seen[symbol]; dup {
			return fmt.Errorf("duplicate symbol %q", symbol)
		}
		seen[symbol] = struct{}{}
	}

	// Timeranges and window policy
	if c.Aggregation.ContinuityGapMs < 0 {
		return fmt.Errorf("continuity gap cannot be negative")
	}
	if _, err := timerange.NewCatalog(c.Timeranges, c.Aggregation.CloseOffsetMs); err != nil {
		return fmt.Errorf("invalid timeranges: %w", err)
	}

	// Storage
	switch strings.ToLower(c.Storage.DBType) {
	case "sqlite":
		if c.Storage.DBPath == "" {
			return fmt.Errorf("database path cannot be empty for sqlite")
		}
	case "postgres", "postgresql":
		if c.Storage.DBConnectionString == "" {
			return fmt.Errorf("database connection string cannot be empty for postgres")
		}
	case "":
		return fmt.Errorf("database type cannot be empty")
	default:
		return fmt.Errorf("unsupported database type %q", c.Storage.DBType)
	}
	if c.Storage.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.Storage.RetentionDays < 0 {
		return fmt.Errorf("retention days cannot be negative")
	}

	// Kafka
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return fmt.Errorf("kafka enabled but no brokers configured")
		}
		if c.Kafka.Topic == "" {
			return fmt.Errorf("kafka enabled but no topic configured")
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
