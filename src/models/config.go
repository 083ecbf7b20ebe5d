package models

// MConfig Structure
type MConfig struct {
	Name        string             `yaml:"name" env:"NAME"`
	Host        string             `yaml:"host" env:"HOST"`
	Port        int                `yaml:"port" env:"PORT"`
	LogLevel    string             `yaml:"log_level" env:"LOG_LEVEL"`
	GrpcHost    string             `yaml:"grpc_host" env:"GRPC_HOST"`
	GrpcPort    int                `yaml:"grpc_port" env:"GRPC_PORT"`
	Stream      MStreamConfig      `yaml:"stream" envPrefix:"STREAM_"`
	Params      MParamsConfig      `yaml:"params" envPrefix:"PARAMS_"`
	Timeranges  []string           `yaml:"timeranges" env:"TIMERANGES" envSeparator:","`
	Aggregation MAggregationConfig `yaml:"aggregation" envPrefix:"AGGREGATION_"`
	Storage     MStorageConfig     `yaml:"storage" envPrefix:"STORAGE_"`
	Kafka       MKafkaConfig       `yaml:"kafka" envPrefix:"KAFKA_"`
	Server      MServerConfig      `yaml:"server" envPrefix:"SERVER_"`
}

type MStreamConfig struct {
	Provider                 string `yaml:"provider" env:"PROVIDER"`
	URL                      string `yaml:"url" env:"URL"`
	Type                     string `yaml:"type" env:"TYPE"`
	ReconnectDelaySeconds    int    `yaml:"reconnect_delay_seconds" env:"RECONNECT_DELAY_SECONDS"`
	MaxReconnectDelaySeconds int    `yaml:"max_reconnect_delay_seconds" env:"MAX_RECONNECT_DELAY_SECONDS"`
}

type MParamsConfig struct {
	Symbols []string `yaml:"symbols" env:"SYMBOLS" envSeparator:","`
}

type MAggregationConfig struct {
	CloseOffsetMs   int64 `yaml:"close_offset_ms" env:"CLOSE_OFFSET_MS"`
	ContinuityGapMs int64 `yaml:"continuity_gap_ms" env:"CONTINUITY_GAP_MS"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type" env:"DB_TYPE"`
	DBPath             string `yaml:"db_path" env:"DB_PATH"`
	DBConnectionString string `yaml:"db_connection_string" env:"DB_CONNECTION_STRING"`
	Schema             string `yaml:"schema" env:"SCHEMA"`
	MaxRetries         int    `yaml:"retries" env:"RETRIES"`
	RetentionDays      int    `yaml:"retention_days" env:"RETENTION_DAYS"`
}

type MKafkaConfig struct {
	Enabled bool     `yaml:"enabled" env:"ENABLED"`
	Brokers []string `yaml:"brokers" env:"BROKERS" envSeparator:","`
	Topic   string   `yaml:"topic" env:"TOPIC"`
}

type MServerConfig struct {
	SendBuffer  int `yaml:"send_buffer" env:"SEND_BUFFER"`
	HistorySize int `yaml:"history_size" env:"HISTORY_SIZE"`
}
