package database

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/rzpsarthak13/recordshift/internal/registry"
)

var dialects = map[string]dialect{
	"mysql":    mysqlDialect{},
	"postgres": postgresDialect{},
	"sqlite":   sqliteDialect{},
}

type opener func(cfg registry.InternalDatabaseConfig, pool PoolConfig, log zerolog.Logger) (*SQLDatabase, error)

// openers selects the connection strategy by database.type.
var openers = map[string]opener{
	"mysql": func(cfg registry.InternalDatabaseConfig, pool PoolConfig, log zerolog.Logger) (*SQLDatabase, error) {
		return NewMySQLDatabase(cfg.Host, cfg.Port, cfg.Database, cfg.Username, cfg.Password, pool, log)
	},
	"postgres": func(cfg registry.InternalDatabaseConfig, pool PoolConfig, log zerolog.Logger) (*SQLDatabase, error) {
		return NewPostgresDatabase(cfg.Host, cfg.Port, cfg.Database, cfg.Username, cfg.Password, cfg.SSLMode, pool, log)
	},
	"sqlite": func(cfg registry.InternalDatabaseConfig, _ PoolConfig, log zerolog.Logger) (*SQLDatabase, error) {
		return NewSQLiteDatabase(cfg.Path, log)
	},
}

// New opens the database described by cfg.
func New(cfg registry.InternalDatabaseConfig, log zerolog.Logger) (*SQLDatabase, error) {
	connect, ok := openers[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
	pool := PoolConfig{
		MaxOpenConns:      cfg.MaxOpenConns,
		MaxIdleConns:      cfg.MaxIdleConns,
		ConnMaxLifetime:   cfg.ConnMaxLifetime,
		ConnMaxIdleTime:   cfg.ConnMaxIdleTime,
		ConnectionTimeout: cfg.ConnectionTimeout,
	}
	db, err := connect(cfg, pool, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Type, err)
	}
	return db, nil
}
