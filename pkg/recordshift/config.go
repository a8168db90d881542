package recordshift

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the root configuration for the recordshift client.
// Zero values are omitted when the configuration is handed to the client, so
// every unset field keeps its default.
type Config struct {
	// AttributeStore contains configuration for the store holding record attributes.
	AttributeStore AttributeStoreConfig `yaml:"attribute_store,omitempty" json:"attribute_store,omitempty"`

	// Database contains configuration for the relational database holding the row tables.
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Migration contains driver settings.
	Migration MigrationConfig `yaml:"migration,omitempty" json:"migration,omitempty"`

	// Journal contains outcome journal settings.
	Journal JournalConfig `yaml:"journal,omitempty" json:"journal,omitempty"`

	// Log contains logging settings.
	Log LogConfig `yaml:"log,omitempty" json:"log,omitempty"`
}

// AttributeStoreConfig contains configuration for the attribute store.
type AttributeStoreConfig struct {
	// Type is one of "sql" (default), "redis", "dynamodb" or "memory".
	Type string `yaml:"type,omitempty" json:"type,omitempty"`

	// Namespace prefixes Redis keys and de-duplication keys.
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty"`

	// TableName is the attribute table for the sql store.
	TableName string `yaml:"table_name,omitempty" json:"table_name,omitempty"`

	RedisConfig    RedisConfig    `yaml:"redis_config,omitempty" json:"redis_config,omitempty"`
	DynamoDBConfig DynamoDBConfig `yaml:"dynamodb_config,omitempty" json:"dynamodb_config,omitempty"`

	MaxRetries   int           `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	DialTimeout  time.Duration `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty"`
	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
}

// RedisConfig contains Redis-specific configuration.
type RedisConfig struct {
	Endpoints    []string `yaml:"endpoints,omitempty" json:"endpoints,omitempty"`
	Password     string   `yaml:"password,omitempty" json:"password,omitempty"`
	DB           int      `yaml:"db,omitempty" json:"db,omitempty"`
	PoolSize     int      `yaml:"pool_size,omitempty" json:"pool_size,omitempty"`
	MinIdleConns int      `yaml:"min_idle_conns,omitempty" json:"min_idle_conns,omitempty"`
}

// DynamoDBConfig contains DynamoDB-specific configuration.
type DynamoDBConfig struct {
	Region    string `yaml:"region,omitempty" json:"region,omitempty"`
	TableName string `yaml:"table_name,omitempty" json:"table_name,omitempty"`

	// Endpoint overrides the AWS endpoint, e.g. for DynamoDB Local.
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
}

// DatabaseConfig contains configuration for the relational database.
type DatabaseConfig struct {
	// Type is one of "mysql", "postgres" or "sqlite".
	Type string `yaml:"type" json:"type"`

	Host     string `yaml:"host,omitempty" json:"host,omitempty"`
	Port     int    `yaml:"port,omitempty" json:"port,omitempty"`
	Database string `yaml:"database,omitempty" json:"database,omitempty"`
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// SSLMode is the SSL mode for PostgreSQL (e.g., "require", "disable").
	SSLMode string `yaml:"ssl_mode,omitempty" json:"ssl_mode,omitempty"`

	// Path is the database file for sqlite.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`

	MaxOpenConns      int           `yaml:"max_open_conns,omitempty" json:"max_open_conns,omitempty"`
	MaxIdleConns      int           `yaml:"max_idle_conns,omitempty" json:"max_idle_conns,omitempty"`
	ConnMaxLifetime   time.Duration `yaml:"conn_max_lifetime,omitempty" json:"conn_max_lifetime,omitempty"`
	ConnMaxIdleTime   time.Duration `yaml:"conn_max_idle_time,omitempty" json:"conn_max_idle_time,omitempty"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout,omitempty" json:"connection_timeout,omitempty"`
}

// MigrationConfig contains driver settings.
type MigrationConfig struct {
	// BatchSize is the number of IDs fetched per batch. Defaults to 500.
	BatchSize int `yaml:"batch_size,omitempty" json:"batch_size,omitempty"`

	// DeleteSource deletes the migrated attribute keys after each insert.
	DeleteSource bool `yaml:"delete_source,omitempty" json:"delete_source,omitempty"`

	// DeleteRowsOnBackfill deletes each row after it is restored to attributes.
	DeleteRowsOnBackfill bool `yaml:"delete_rows_on_backfill,omitempty" json:"delete_rows_on_backfill,omitempty"`

	// RatePerSecond bounds the number of records processed per second. 0 disables throttling.
	RatePerSecond int `yaml:"rate_per_second,omitempty" json:"rate_per_second,omitempty"`

	// MaxRecords stops a run after this many records. 0 means unbounded.
	MaxRecords int `yaml:"max_records,omitempty" json:"max_records,omitempty"`

	// RecordsTable is the registry of record IDs and kinds. Defaults to "records".
	RecordsTable string `yaml:"records_table,omitempty" json:"records_table,omitempty"`

	// Tables overrides the row table per kind ("order", "refund").
	Tables map[string]string `yaml:"tables,omitempty" json:"tables,omitempty"`
}

// JournalConfig contains outcome journal settings.
type JournalConfig struct {
	// Type is one of "none", "memory" (default), "redis" or "kafka".
	Type        string      `yaml:"type,omitempty" json:"type,omitempty"`
	BufferSize  int         `yaml:"buffer_size,omitempty" json:"buffer_size,omitempty"`
	RedisKey    string      `yaml:"redis_key,omitempty" json:"redis_key,omitempty"`
	KafkaConfig KafkaConfig `yaml:"kafka_config,omitempty" json:"kafka_config,omitempty"`
}

// KafkaConfig contains Kafka-specific configuration.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers,omitempty" json:"brokers,omitempty"`
	Topic   string   `yaml:"topic,omitempty" json:"topic,omitempty"`
	GroupID string   `yaml:"group_id,omitempty" json:"group_id,omitempty"`

	BatchSize    int           `yaml:"batch_size,omitempty" json:"batch_size,omitempty"`
	BatchTimeout time.Duration `yaml:"batch_timeout,omitempty" json:"batch_timeout,omitempty"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
	ReadTimeout  time.Duration `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`

	// RequiredAcks is -1 for all replicas, 0 for none, 1 for the leader.
	RequiredAcks    int `yaml:"required_acks,omitempty" json:"required_acks,omitempty"`
	MaxMessageBytes int `yaml:"max_message_bytes,omitempty" json:"max_message_bytes,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"` // json or console
	Path   string `yaml:"path,omitempty" json:"path,omitempty"`
}

// GetYAML renders the configuration for the internal config loader.
func (c *Config) GetYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// LoadConfig reads a YAML or JSON configuration file, chosen by extension.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	case ".json":
		err = json.Unmarshal(data, config)
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return config, nil
}
