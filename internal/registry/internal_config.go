package registry

import (
	"time"
)

// InternalConfig represents the internal configuration structure.
// This is a copy of the public Config type to avoid import cycles.
type InternalConfig struct {
	AttributeStore InternalAttributeStoreConfig `yaml:"attribute_store" json:"attribute_store"`
	Database       InternalDatabaseConfig       `yaml:"database" json:"database"`
	Migration      InternalMigrationConfig      `yaml:"migration" json:"migration"`
	Journal        InternalJournalConfig        `yaml:"journal" json:"journal"`
	Log            InternalLogConfig            `yaml:"log" json:"log"`
}

// InternalAttributeStoreConfig contains configuration for the attribute store.
// Backends (sql, redis, dynamodb, memory) plug in through the kvstore factory registry.
type InternalAttributeStoreConfig struct {
	Type           string                 `yaml:"type" json:"type"`
	Namespace      string                 `yaml:"namespace,omitempty" json:"namespace,omitempty"`
	TableName      string                 `yaml:"table_name,omitempty" json:"table_name,omitempty"`
	RedisConfig    InternalRedisConfig    `yaml:"redis_config,omitempty" json:"redis_config,omitempty"`
	DynamoDBConfig InternalDynamoDBConfig `yaml:"dynamodb_config,omitempty" json:"dynamodb_config,omitempty"`
	MaxRetries     int                    `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	DialTimeout    time.Duration          `yaml:"dial_timeout,omitempty" json:"dial_timeout,omitempty"`
	ReadTimeout    time.Duration          `yaml:"read_timeout,omitempty" json:"read_timeout,omitempty"`
	WriteTimeout   time.Duration          `yaml:"write_timeout,omitempty" json:"write_timeout,omitempty"`
}

// InternalRedisConfig contains Redis-specific configuration.
type InternalRedisConfig struct {
	Endpoints    []string `yaml:"endpoints" json:"endpoints"`
	Password     string   `yaml:"password,omitempty" json:"password,omitempty"`
	DB           int      `yaml:"db" json:"db"`
	PoolSize     int      `yaml:"pool_size" json:"pool_size"`
	MinIdleConns int      `yaml:"min_idle_conns" json:"min_idle_conns"`
}

// InternalDynamoDBConfig contains DynamoDB-specific configuration.
type InternalDynamoDBConfig struct {
	Region          string `yaml:"region" json:"region"`
	TableName       string `yaml:"table_name" json:"table_name"`
	Endpoint        string `yaml:"endpoint,omitempty" json:"endpoint,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" json:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" json:"secret_access_key,omitempty"`
}

// InternalDatabaseConfig contains configuration for the relational database
// holding the row tables, the records table and (for the sql attribute
// store) the attribute table.
type InternalDatabaseConfig struct {
	Type              string        `yaml:"type" json:"type"`
	Host              string        `yaml:"host,omitempty" json:"host,omitempty"`
	Port              int           `yaml:"port,omitempty" json:"port,omitempty"`
	Database          string        `yaml:"database,omitempty" json:"database,omitempty"`
	Username          string        `yaml:"username,omitempty" json:"username,omitempty"`
	Password          string        `yaml:"password,omitempty" json:"password,omitempty"`
	SSLMode           string        `yaml:"ssl_mode,omitempty" json:"ssl_mode,omitempty"`
	Path              string        `yaml:"path,omitempty" json:"path,omitempty"`
	MaxOpenConns      int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns      int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime   time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime   time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout" json:"connection_timeout"`
}

// InternalMigrationConfig contains migration driver settings.
type InternalMigrationConfig struct {
	BatchSize            int               `yaml:"batch_size" json:"batch_size"`
	DeleteSource         bool              `yaml:"delete_source" json:"delete_source"`
	DeleteRowsOnBackfill bool              `yaml:"delete_rows_on_backfill" json:"delete_rows_on_backfill"`
	RatePerSecond        int               `yaml:"rate_per_second" json:"rate_per_second"` // 0 disables throttling
	MaxRecords           int               `yaml:"max_records" json:"max_records"`         // 0 means unbounded
	RecordsTable         string            `yaml:"records_table" json:"records_table"`
	Tables               map[string]string `yaml:"tables" json:"tables"` // kind -> row table
}

// InternalJournalConfig contains outcome journal settings.
type InternalJournalConfig struct {
	Type        string              `yaml:"type" json:"type"`
	BufferSize  int                 `yaml:"buffer_size" json:"buffer_size"`
	RedisKey    string              `yaml:"redis_key,omitempty" json:"redis_key,omitempty"`
	KafkaConfig InternalKafkaConfig `yaml:"kafka_config" json:"kafka_config"`
}

// InternalKafkaConfig contains Kafka-specific configuration.
type InternalKafkaConfig struct {
	Brokers         []string      `yaml:"brokers" json:"brokers"`
	Topic           string        `yaml:"topic" json:"topic"`
	GroupID         string        `yaml:"group_id" json:"group_id"`
	BatchSize       int           `yaml:"batch_size" json:"batch_size"`
	BatchTimeout    time.Duration `yaml:"batch_timeout" json:"batch_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	RequiredAcks    int           `yaml:"required_acks" json:"required_acks"`
	MaxMessageBytes int           `yaml:"max_message_bytes" json:"max_message_bytes"`
	MinBytes        int           `yaml:"min_bytes" json:"min_bytes"`
	MaxBytes        int           `yaml:"max_bytes" json:"max_bytes"`
	MaxWait         time.Duration `yaml:"max_wait" json:"max_wait"`
}

// InternalLogConfig contains logging settings.
type InternalLogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"` // json or console
	Path   string `yaml:"path,omitempty" json:"path,omitempty"`
}
