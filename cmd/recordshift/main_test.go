package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/recordshift/internal/core"
	"github.com/rzpsarthak13/recordshift/internal/database"
	"github.com/rzpsarthak13/recordshift/internal/migrate"
)

func writeFixture(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "shop.db")

	db, err := database.NewSQLiteDatabase(dbPath, zerolog.Nop())
	require.NoError(t, err)
	defer db.Close()

	for _, ddl := range []string{
		"CREATE TABLE records (id INTEGER PRIMARY KEY, kind TEXT NOT NULL, created_at DATETIME NOT NULL)",
		"CREATE TABLE record_attributes (record_id BIGINT NOT NULL, attr_key TEXT NOT NULL, attr_value TEXT)",
		`CREATE TABLE refunds (
			id INTEGER PRIMARY KEY, status TEXT, currency TEXT, total_amount DECIMAL(26,8),
			tax_amount DECIMAL(26,8), date_created_gmt DATETIME, date_updated_gmt DATETIME,
			parent_order_id BIGINT, refund_amount DECIMAL(26,8), refunded_by BIGINT,
			refunded_payment BOOLEAN, refund_reason TEXT)`,
	} {
		_, err := db.Exec(ctx, ddl)
		require.NoError(t, err)
	}
	for id := 1; id <= 2; id++ {
		_, err := db.Exec(ctx, "INSERT INTO records (id, kind, created_at) VALUES (?, 'refund', ?)",
			id, fmt.Sprintf("2024-05-01 09:00:0%d", id))
		require.NoError(t, err)
		_, err = db.Exec(ctx, "INSERT INTO record_attributes (record_id, attr_key, attr_value) VALUES (?, '_refund_reason', 'damaged')", id)
		require.NoError(t, err)
	}
	// refunded_by must be numeric, so record 2 is skipped.
	_, err = db.Exec(ctx, "INSERT INTO record_attributes (record_id, attr_key, attr_value) VALUES (2, '_refunded_by', 'support team')")
	require.NoError(t, err)

	configPath := filepath.Join(dir, "recordshift.yaml")
	config := fmt.Sprintf("database:\n  type: sqlite\n  path: %s\nlog:\n  level: error\n", dbPath)
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0o600))
	return configPath
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMigrateCommandReportsSkips(t *testing.T) {
	configPath := writeFixture(t)

	out, err := run(t, "--config", configPath, "pending")
	require.NoError(t, err)
	assert.Equal(t, "refund\t2\n", out)

	out, err = run(t, "--config", configPath, "migrate", "refund", "--batch-size", "1")
	require.NoError(t, err, "skipped records do not fail the run")
	assert.Contains(t, out, "Migrated 1 refund records (2 pending at start)")
	assert.Contains(t, out, "Skipped 1: 2")

	out, err = run(t, "--config", configPath, "read", "refund", "1")
	require.NoError(t, err)
	assert.Contains(t, out, `"healed": false`)
	assert.Contains(t, out, `"refund_reason": "damaged"`)

	_, err = run(t, "--config", configPath, "verify", "refund", "1")
	assert.NoError(t, err)
}

func TestCommandArgumentErrors(t *testing.T) {
	configPath := writeFixture(t)

	_, err := run(t, "--config", configPath, "migrate", "coupon")
	assert.Error(t, err)

	_, err = run(t, "--config", configPath, "read", "refund", "abc")
	assert.Error(t, err)

	_, err = run(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "pending")
	assert.Error(t, err)

	_, err = run(t, "--config", configPath, "pending", "order")
	assert.Error(t, err, "orders table does not exist")
}

func TestExitCode(t *testing.T) {
	structural := &migrate.StructuralError{Kind: core.KindOrder, Batch: []int64{4}, Err: migrate.ErrNoProgress}
	assert.Equal(t, exitStructural, exitCode(structural))
	assert.Equal(t, exitStructural, exitCode(fmt.Errorf("run: %w", structural)))
	assert.Equal(t, exitFailure, exitCode(errors.New("connection refused")))
}

func TestJoinIDs(t *testing.T) {
	assert.Equal(t, "3, 10, 7", joinIDs([]int64{3, 10, 7}))
	assert.Equal(t, "", joinIDs(nil))
}
