package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rzpsarthak13/recordshift/internal/core"
	"github.com/rzpsarthak13/recordshift/internal/database"
	"github.com/rzpsarthak13/recordshift/internal/journal"
	"github.com/rzpsarthak13/recordshift/internal/kvstore"
	"github.com/rzpsarthak13/recordshift/internal/logger"
	"github.com/rzpsarthak13/recordshift/internal/migrate"
	"github.com/rzpsarthak13/recordshift/internal/read"
	"github.com/rzpsarthak13/recordshift/internal/registry"
	"github.com/rzpsarthak13/recordshift/internal/rowstore"
)

// ErrClosed is returned by every method once the client is closed.
var ErrClosed = errors.New("client is closed")

// ConfigProvider is an interface to provide configuration as YAML without importing the public package.
type ConfigProvider interface {
	GetYAML() ([]byte, error)
}

// ClientImpl owns every connection and the components built on them.
type ClientImpl struct {
	mu        sync.RWMutex
	configMgr *registry.ConfigManager
	kinds     *registry.KindRegistry
	logData   *logger.LogData
	log       zerolog.Logger
	database  core.Database
	attrs     core.AttributeStore
	journal   core.Journal
	driver    *migrate.Driver
	healer    *read.Healer
	closed    bool
}

// NewClientImpl loads the configuration and wires the stores, engines,
// driver, healer and journal. Kinds whose row table does not exist are left
// unconfigured; at least one kind must be usable.
func NewClientImpl(ctx context.Context, configProvider ConfigProvider) (*ClientImpl, error) {
	if configProvider == nil {
		return nil, fmt.Errorf("config provider cannot be nil")
	}

	configMgr := registry.NewConfigManager()
	yamlData, err := configProvider.GetYAML()
	if err != nil {
		return nil, fmt.Errorf("failed to get config YAML: %w", err)
	}
	if err := configMgr.LoadFromYAML(yamlData); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	config := configMgr.GetConfig()

	logData, err := logger.New().
		FromPath(config.Log.Path).
		WithLevel(config.Log.Level).
		Console(config.Log.Format == "console").
		Make()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	c := &ClientImpl{
		configMgr: configMgr,
		kinds:     registry.NewKindRegistry(configMgr, registry.NewLifecycleManager(registry.RequireMappedColumns())),
		logData:   logData,
		log:       logData.Logger,
	}
	if err := c.initialize(ctx); err != nil {
		c.release()
		return nil, err
	}
	return c, nil
}

func (c *ClientImpl) initialize(ctx context.Context) error {
	config := c.configMgr.GetConfig()

	db, err := database.New(config.Database, c.log)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	c.database = db

	attrs, err := kvstore.Create(config.AttributeStore, kvstore.Dependencies{Database: db, Logger: c.log})
	if err != nil {
		return fmt.Errorf("failed to create attribute store: %w", err)
	}
	c.attrs = attrs

	engines, err := c.buildEngines(ctx)
	if err != nil {
		return err
	}

	tables := make(map[core.Kind]string, len(engines))
	for kind, engine := range engines {
		tables[kind] = engine.Rows().Table()
	}
	candidates, err := rowstore.NewCandidates(db, config.Migration.RecordsTable, tables)
	if err != nil {
		return fmt.Errorf("failed to create candidate source: %w", err)
	}
	loader, err := rowstore.NewLoader(db, config.Migration.RecordsTable)
	if err != nil {
		return fmt.Errorf("failed to create record loader: %w", err)
	}

	c.driver, err = migrate.NewDriver(engines, candidates, loader, migrate.DriverConfig{
		DeleteSource:         config.Migration.DeleteSource,
		DeleteRowsOnBackfill: config.Migration.DeleteRowsOnBackfill,
		RatePerSecond:        config.Migration.RatePerSecond,
		MaxRecords:           config.Migration.MaxRecords,
	}, c.log)
	if err != nil {
		return fmt.Errorf("failed to create driver: %w", err)
	}

	c.journal, err = journal.New(config.Journal, attrs, c.log)
	if err != nil {
		return fmt.Errorf("failed to create journal: %w", err)
	}
	c.driver.SetJournal(c.journal)

	c.healer, err = read.NewHealer(engines, loader, config.AttributeStore.Namespace, c.log)
	if err != nil {
		return fmt.Errorf("failed to create healer: %w", err)
	}
	return nil
}

func (c *ClientImpl) buildEngines(ctx context.Context) (map[core.Kind]*migrate.Engine, error) {
	existing, err := c.database.GetTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	present := make(map[string]bool, len(existing))
	for _, t := range existing {
		present[t] = true
	}

	engines := make(map[core.Kind]*migrate.Engine)
	for _, kind := range core.Kinds() {
		table := c.configMgr.TableFor(kind)
		if !present[table] {
			c.log.Warn().Str("kind", kind.String()).Str("table", table).Msg("Row table not found, kind disabled")
			continue
		}

		s, err := c.database.GetSchema(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("failed to discover schema for table %q: %w", table, err)
		}
		if err := c.kinds.Register(ctx, kind, s); err != nil {
			return nil, fmt.Errorf("failed to register %s: %w", kind, err)
		}
		metadata, err := c.kinds.Get(kind)
		if err != nil {
			return nil, err
		}

		rows, err := rowstore.NewStore(c.database, metadata.Schema, c.log)
		if err != nil {
			return nil, fmt.Errorf("failed to create row store for %s: %w", kind, err)
		}
		engine, err := migrate.NewEngine(c.attrs, rows, metadata.Mapping, c.log)
		if err != nil {
			return nil, fmt.Errorf("failed to create engine for %s: %w", kind, err)
		}
		engines[kind] = engine
	}

	if len(engines) == 0 {
		return nil, fmt.Errorf("no row table exists for any kind")
	}
	return engines, nil
}

// Driver returns the batch migration driver.
func (c *ClientImpl) Driver() (*migrate.Driver, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}
	return c.driver, nil
}

// Healer returns the read-side healer.
func (c *ClientImpl) Healer() (*read.Healer, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}
	return c.healer, nil
}

// Journal returns the outcome journal.
func (c *ClientImpl) Journal() (core.Journal, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrClosed
	}
	return c.journal, nil
}

// Kinds returns the kinds that have a usable row table.
func (c *ClientImpl) Kinds() []core.Kind {
	return c.kinds.Kinds()
}

// BatchSize returns the configured batch size.
func (c *ClientImpl) BatchSize() int {
	return c.configMgr.GetConfig().Migration.BatchSize
}

// Logger returns the root logger.
func (c *ClientImpl) Logger() zerolog.Logger {
	return c.log
}

// Close closes all connections and releases resources.
func (c *ClientImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	ctx := context.Background()
	for _, kind := range c.kinds.Kinds() {
		if err := c.kinds.Unregister(ctx, kind); err != nil {
			c.log.Warn().Err(err).Str("kind", kind.String()).Msg("Failed to unregister kind")
		}
	}
	return c.release()
}

func (c *ClientImpl) release() error {
	var errs []error
	if c.journal != nil {
		if err := c.journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close journal: %w", err))
		}
	}
	if c.attrs != nil {
		if err := c.attrs.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close attribute store: %w", err))
		}
	}
	if c.database != nil {
		if err := c.database.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}
	if err := c.logData.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close log file: %w", err))
	}
	return errors.Join(errs...)
}
