package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rzpsarthak13/recordshift/internal/core"
)

// EnvPrefix is the prefix of every environment variable read by LoadFromEnv.
const EnvPrefix = "RECORDSHIFT_"

// ConfigValidator is the Strategy interface for validating configuration.
// Each attribute store backend (sql, redis, dynamodb, memory) provides its own
// validator for its section of the configuration.
type ConfigValidator interface {
	// Validate validates the attribute store section of the internal configuration.
	Validate(config *InternalConfig) error

	// Type returns the type identifier for this validator (e.g., "redis", "dynamodb").
	Type() string
}

var (
	// validatorRegistry stores all registered config validators.
	validatorRegistry = make(map[string]ConfigValidator)

	// validatorRegistryMutex protects the validator registry from concurrent access.
	validatorRegistryMutex sync.RWMutex
)

// ValidationStrategyRegistry provides methods to register and retrieve config validators.
type ValidationStrategyRegistry struct{}

// Register registers a config validator.
// Panics if validator is nil, type is empty, or type is already registered.
func (r *ValidationStrategyRegistry) Register(validator ConfigValidator) {
	if validator == nil {
		panic("validator cannot be nil")
	}
	if validator.Type() == "" {
		panic("validator type cannot be empty")
	}

	validatorRegistryMutex.Lock()
	defer validatorRegistryMutex.Unlock()

	if _, exists := validatorRegistry[validator.Type()]; exists {
		panic(fmt.Sprintf("validator for type %q is already registered", validator.Type()))
	}

	validatorRegistry[validator.Type()] = validator
}

// Get retrieves a validator by type.
func (r *ValidationStrategyRegistry) Get(validatorType string) (ConfigValidator, bool) {
	validatorRegistryMutex.RLock()
	defer validatorRegistryMutex.RUnlock()

	validator, exists := validatorRegistry[validatorType]
	return validator, exists
}

// RegisterValidator registers a validator with the default registry.
// This is the preferred way to register validators from init() functions.
func RegisterValidator(validator ConfigValidator) {
	defaultValidationRegistry.Register(validator)
}

// GetValidator retrieves a validator by type from the default registry.
func GetValidator(validatorType string) (ConfigValidator, bool) {
	return defaultValidationRegistry.Get(validatorType)
}

var defaultValidationRegistry = &ValidationStrategyRegistry{}

// ConfigManager handles loading and managing configuration from various sources.
type ConfigManager struct {
	config *InternalConfig
}

// NewConfigManager creates a new configuration manager with default configuration.
func NewConfigManager() *ConfigManager {
	return &ConfigManager{
		config: defaultInternalConfig(),
	}
}

// DefaultTables maps each record kind to its default row table.
var DefaultTables = map[core.Kind]string{
	core.KindOrder:  "orders",
	core.KindRefund: "refunds",
}

// defaultInternalConfig returns a configuration with sensible defaults.
func defaultInternalConfig() *InternalConfig {
	tables := make(map[string]string, len(DefaultTables))
	for kind, table := range DefaultTables {
		tables[string(kind)] = table
	}

	return &InternalConfig{
		AttributeStore: InternalAttributeStoreConfig{
			Type:      "sql",
			Namespace: "recordshift",
			TableName: "record_attributes",
			RedisConfig: InternalRedisConfig{
				Endpoints:    []string{"localhost:6379"},
				DB:           0,
				PoolSize:     10,
				MinIdleConns: 5,
			},
			MaxRetries:   3,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Database: InternalDatabaseConfig{
			Type:              "mysql",
			Host:              "localhost",
			Port:              3306,
			MaxOpenConns:      25,
			MaxIdleConns:      5,
			ConnMaxLifetime:   5 * time.Minute,
			ConnMaxIdleTime:   10 * time.Minute,
			ConnectionTimeout: 10 * time.Second,
		},
		Migration: InternalMigrationConfig{
			BatchSize:    500,
			RecordsTable: "records",
			Tables:       tables,
		},
		Journal: InternalJournalConfig{
			Type:       "memory",
			BufferSize: 10000,
			RedisKey:   "recordshift:journal",
			KafkaConfig: InternalKafkaConfig{
				Brokers:         []string{"localhost:9092"},
				Topic:           "recordshift-outcomes",
				GroupID:         "recordshift-outcomes",
				BatchSize:       100,
				BatchTimeout:    10 * time.Millisecond,
				WriteTimeout:    10 * time.Second,
				ReadTimeout:     10 * time.Second,
				RequiredAcks:    -1,      // All replicas
				MaxMessageBytes: 1000000, // 1MB
				MinBytes:        1,
				MaxBytes:        10 * 1024 * 1024, // 10MB
				MaxWait:         100 * time.Millisecond,
			},
		},
		Log: InternalLogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// LoadFromFile loads configuration from a YAML or JSON file.
// The file format is determined by the file extension (.yaml, .yml, or .json).
func (cm *ConfigManager) LoadFromFile(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".yaml", ".yml":
		return cm.LoadFromYAML(data)
	case ".json":
		return cm.LoadFromJSON(data)
	default:
		return fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json)", ext)
	}
}

// LoadFromYAML loads configuration from YAML data.
func (cm *ConfigManager) LoadFromYAML(data []byte) error {
	config := defaultInternalConfig()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	return cm.apply(config)
}

// LoadFromJSON loads configuration from JSON data.
func (cm *ConfigManager) LoadFromJSON(data []byte) error {
	config := defaultInternalConfig()
	if len(data) > 0 {
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON config: %w", err)
		}
	}
	return cm.apply(config)
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables follow the pattern: RECORDSHIFT_<SECTION>_<KEY>
// Examples:
//   - RECORDSHIFT_ATTRIBUTE_STORE_TYPE=redis
//   - RECORDSHIFT_DATABASE_TYPE=sqlite
//   - RECORDSHIFT_DATABASE_PATH=/var/lib/recordshift.db
//   - RECORDSHIFT_MIGRATION_BATCH_SIZE=200
//   - RECORDSHIFT_MIGRATION_TABLE_ORDER=orders_v2
func (cm *ConfigManager) LoadFromEnv() error {
	config := defaultInternalConfig()

	// Attribute store configuration
	envString("ATTRIBUTE_STORE_TYPE", &config.AttributeStore.Type)
	envString("ATTRIBUTE_STORE_NAMESPACE", &config.AttributeStore.Namespace)
	envString("ATTRIBUTE_STORE_TABLE_NAME", &config.AttributeStore.TableName)
	envList("ATTRIBUTE_STORE_REDIS_ENDPOINTS", &config.AttributeStore.RedisConfig.Endpoints)
	envString("ATTRIBUTE_STORE_REDIS_PASSWORD", &config.AttributeStore.RedisConfig.Password)
	envInt("ATTRIBUTE_STORE_REDIS_DB", &config.AttributeStore.RedisConfig.DB)
	envInt("ATTRIBUTE_STORE_REDIS_POOL_SIZE", &config.AttributeStore.RedisConfig.PoolSize)
	envString("ATTRIBUTE_STORE_DYNAMODB_REGION", &config.AttributeStore.DynamoDBConfig.Region)
	envString("ATTRIBUTE_STORE_DYNAMODB_TABLE_NAME", &config.AttributeStore.DynamoDBConfig.TableName)
	envString("ATTRIBUTE_STORE_DYNAMODB_ENDPOINT", &config.AttributeStore.DynamoDBConfig.Endpoint)
	envInt("ATTRIBUTE_STORE_MAX_RETRIES", &config.AttributeStore.MaxRetries)

	// Database configuration
	envString("DATABASE_TYPE", &config.Database.Type)
	envString("DATABASE_HOST", &config.Database.Host)
	envInt("DATABASE_PORT", &config.Database.Port)
	envString("DATABASE_DATABASE", &config.Database.Database)
	envString("DATABASE_USERNAME", &config.Database.Username)
	envString("DATABASE_PASSWORD", &config.Database.Password)
	envString("DATABASE_SSL_MODE", &config.Database.SSLMode)
	envString("DATABASE_PATH", &config.Database.Path)
	envInt("DATABASE_MAX_OPEN_CONNS", &config.Database.MaxOpenConns)
	envInt("DATABASE_MAX_IDLE_CONNS", &config.Database.MaxIdleConns)
	envDuration("DATABASE_CONNECTION_TIMEOUT", &config.Database.ConnectionTimeout)

	// Migration configuration
	envInt("MIGRATION_BATCH_SIZE", &config.Migration.BatchSize)
	envBool("MIGRATION_DELETE_SOURCE", &config.Migration.DeleteSource)
	envBool("MIGRATION_DELETE_ROWS_ON_BACKFILL", &config.Migration.DeleteRowsOnBackfill)
	envInt("MIGRATION_RATE_PER_SECOND", &config.Migration.RatePerSecond)
	envInt("MIGRATION_MAX_RECORDS", &config.Migration.MaxRecords)
	envString("MIGRATION_RECORDS_TABLE", &config.Migration.RecordsTable)
	for _, kind := range core.Kinds() {
		if val := os.Getenv(EnvPrefix + "MIGRATION_TABLE_" + strings.ToUpper(string(kind))); val != "" {
			config.Migration.Tables[string(kind)] = val
		}
	}

	// Journal configuration
	envString("JOURNAL_TYPE", &config.Journal.Type)
	envInt("JOURNAL_BUFFER_SIZE", &config.Journal.BufferSize)
	envString("JOURNAL_REDIS_KEY", &config.Journal.RedisKey)
	envList("JOURNAL_KAFKA_BROKERS", &config.Journal.KafkaConfig.Brokers)
	envString("JOURNAL_KAFKA_TOPIC", &config.Journal.KafkaConfig.Topic)
	envString("JOURNAL_KAFKA_GROUP_ID", &config.Journal.KafkaConfig.GroupID)

	// Log configuration
	envString("LOG_LEVEL", &config.Log.Level)
	envString("LOG_FORMAT", &config.Log.Format)
	envString("LOG_PATH", &config.Log.Path)

	return cm.apply(config)
}

func envString(name string, target *string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*target = val
	}
}

func envList(name string, target *[]string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*target = strings.Split(val, ",")
	}
}

func envInt(name string, target *int) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			*target = n
		}
	}
}

func envBool(name string, target *bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*target = val == "true" || val == "1"
	}
}

func envDuration(name string, target *time.Duration) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*target = d
		}
	}
}

func (cm *ConfigManager) apply(config *InternalConfig) error {
	if err := cm.validateConfig(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cm.config = config
	return nil
}

// GetConfig returns the current internal configuration.
func (cm *ConfigManager) GetConfig() *InternalConfig {
	return cm.config
}

// TableFor returns the row table configured for a kind, falling back to the default.
func (cm *ConfigManager) TableFor(kind core.Kind) string {
	if table, ok := cm.config.Migration.Tables[string(kind)]; ok && table != "" {
		return table
	}
	return DefaultTables[kind]
}

// validateConfig validates the configuration and returns an error if invalid.
// Attribute store validation is delegated to the registered strategy.
func (cm *ConfigManager) validateConfig(config *InternalConfig) error {
	if config.AttributeStore.Type == "" {
		return fmt.Errorf("attribute_store.type is required")
	}
	validator, exists := GetValidator(config.AttributeStore.Type)
	if !exists {
		return fmt.Errorf("unsupported attribute store type: %s", config.AttributeStore.Type)
	}
	if err := validator.Validate(config); err != nil {
		return fmt.Errorf("attribute_store validation failed: %w", err)
	}

	if err := validateDatabase(config.Database); err != nil {
		return err
	}

	// Migration configuration
	if config.Migration.BatchSize <= 0 {
		return fmt.Errorf("migration.batch_size must be greater than 0")
	}
	if config.Migration.RatePerSecond < 0 {
		return fmt.Errorf("migration.rate_per_second must be non-negative")
	}
	if config.Migration.MaxRecords < 0 {
		return fmt.Errorf("migration.max_records must be non-negative")
	}
	if config.Migration.RecordsTable == "" {
		return fmt.Errorf("migration.records_table is required")
	}
	for kind := range config.Migration.Tables {
		if _, err := core.ParseKind(kind); err != nil {
			return fmt.Errorf("migration.tables: %w", err)
		}
	}

	// Journal configuration
	switch config.Journal.Type {
	case "", "none", "memory", "redis":
	case "kafka":
		if len(config.Journal.KafkaConfig.Brokers) == 0 {
			return fmt.Errorf("journal.kafka_config.brokers is required when journal.type is 'kafka'")
		}
		if config.Journal.KafkaConfig.Topic == "" {
			return fmt.Errorf("journal.kafka_config.topic is required when journal.type is 'kafka'")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'memory', 'redis', or 'kafka'")
	}
	if config.Journal.Type == "redis" && config.AttributeStore.Type != "redis" {
		return fmt.Errorf("journal.type 'redis' requires attribute_store.type 'redis'")
	}

	if config.Log.Format != "" && config.Log.Format != "json" && config.Log.Format != "console" {
		return fmt.Errorf("log.format must be 'json' or 'console'")
	}

	return nil
}

func validateDatabase(db InternalDatabaseConfig) error {
	switch db.Type {
	case "":
		return fmt.Errorf("database.type is required")
	case "sqlite":
		if db.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
		return nil
	case "mysql", "postgres":
	default:
		return fmt.Errorf("database.type must be 'mysql', 'postgres' or 'sqlite'")
	}

	if db.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if db.Port <= 0 || db.Port > 65535 {
		return fmt.Errorf("database.port must be between 1 and 65535")
	}
	if db.Database == "" {
		return fmt.Errorf("database.database is required")
	}
	if db.Username == "" {
		return fmt.Errorf("database.username is required")
	}
	if db.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be greater than 0")
	}
	return nil
}
