package migrate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rzpsarthak13/recordshift/internal/core"
	"github.com/rzpsarthak13/recordshift/internal/database"
	"github.com/rzpsarthak13/recordshift/internal/kvstore"
	"github.com/rzpsarthak13/recordshift/internal/mapping"
	"github.com/rzpsarthak13/recordshift/internal/rowstore"
	"github.com/rzpsarthak13/recordshift/internal/schema"
)

const ordersDDL = `CREATE TABLE orders (
	id INTEGER PRIMARY KEY,
	status TEXT,
	currency TEXT,
	total_amount DECIMAL(26,8),
	tax_amount DECIMAL(26,8),
	date_created_gmt DATETIME,
	date_updated_gmt DATETIME,
	parent_order_id BIGINT,
	customer_id BIGINT,
	billing_email TEXT,
	payment_method TEXT,
	payment_method_title TEXT,
	transaction_id TEXT,
	customer_ip_address TEXT,
	customer_user_agent TEXT,
	customer_note TEXT,
	prices_include_tax BOOLEAN,
	date_paid_gmt DATETIME,
	date_completed_gmt DATETIME,
	legacy_flag TEXT
)`

const recordsDDL = `CREATE TABLE records (
	id INTEGER PRIMARY KEY,
	kind TEXT NOT NULL,
	created_at DATETIME NOT NULL
)`

func orderAttributes() map[string]string {
	return map[string]string{
		"_status":               "wc-processing",
		"_order_currency":       "USD",
		"_order_total":          "12.50",
		"_order_tax":            "1.25",
		"_date_created":         "2024-03-01 10:30:00",
		"_date_modified":        "2024-03-02 11:00:00",
		"_parent_id":            "0",
		"_customer_user":        "7",
		"_billing_email":        "buyer@example.com",
		"_payment_method":       "stripe",
		"_payment_method_title": "Credit card",
		"_transaction_id":       "ch_1",
		"_customer_ip_address":  "127.0.0.1",
		"_customer_user_agent":  "curl/8.0",
		"_customer_note":        "leave at the door",
		"_prices_include_tax":   "no",
		"_paid_date":            "1709289060",
		"_completed_date":       "1709456400",
	}
}

// flakyAttributes fails writes or deletes of selected keys.
type flakyAttributes struct {
	*kvstore.MemoryAttributeStore
	failSet    map[string]bool
	failDelete map[string]bool
}

func (f *flakyAttributes) Set(ctx context.Context, recordID int64, key, value string) error {
	if f.failSet[key] {
		return errors.New("write refused")
	}
	return f.MemoryAttributeStore.Set(ctx, recordID, key, value)
}

func (f *flakyAttributes) Delete(ctx context.Context, recordID int64, key string) (bool, error) {
	if f.failDelete[key] {
		return false, errors.New("delete refused")
	}
	return f.MemoryAttributeStore.Delete(ctx, recordID, key)
}

// recordingJournal keeps every appended entry.
type recordingJournal struct {
	entries []*core.JournalEntry
}

func (j *recordingJournal) Append(ctx context.Context, entry *core.JournalEntry) error {
	j.entries = append(j.entries, entry)
	return nil
}

func (j *recordingJournal) Drain(ctx context.Context, max int) ([]*core.JournalEntry, error) {
	return nil, nil
}

func (j *recordingJournal) Size() int    { return len(j.entries) }
func (j *recordingJournal) Close() error { return nil }

func (j *recordingJournal) outcomes() map[core.Outcome]int {
	out := make(map[core.Outcome]int)
	for _, e := range j.entries {
		out[e.Outcome]++
	}
	return out
}

type fixture struct {
	db      *database.SQLDatabase
	attrs   *flakyAttributes
	rows    *rowstore.Store
	engine  *Engine
	journal *recordingJournal
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.NewSQLiteDatabase(":memory:", zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	for _, ddl := range []string{ordersDDL, recordsDDL} {
		_, err := db.Exec(ctx, ddl)
		require.NoError(t, err)
	}

	rows, err := rowstore.Open(ctx, db, "orders", zerolog.Nop())
	require.NoError(t, err)

	attrs := &flakyAttributes{
		MemoryAttributeStore: kvstore.NewMemoryAttributeStore(),
		failSet:              map[string]bool{},
		failDelete:           map[string]bool{},
	}
	m, err := mapping.For(core.KindOrder)
	require.NoError(t, err)
	engine, err := NewEngine(attrs, rows, m, zerolog.Nop())
	require.NoError(t, err)

	return &fixture{db: db, attrs: attrs, rows: rows, engine: engine, journal: &recordingJournal{}}
}

// seed registers an order and stores its attributes.
func (f *fixture) seed(t *testing.T, id int64, attrs map[string]string) {
	t.Helper()
	ctx := context.Background()
	_, err := f.db.Exec(ctx, "INSERT INTO records (id, kind, created_at) VALUES (?, ?, ?)",
		id, "order", time.Date(2024, 1, 1, 0, 0, int(id), 0, time.UTC))
	require.NoError(t, err)
	for k, v := range attrs {
		require.NoError(t, f.attrs.Set(ctx, id, k, v))
	}
}

func (f *fixture) driver(t *testing.T, config DriverConfig) *Driver {
	t.Helper()
	candidates, err := rowstore.NewCandidates(f.db, "records", map[core.Kind]string{core.KindOrder: "orders"})
	require.NoError(t, err)
	loader, err := rowstore.NewLoader(f.db, "records")
	require.NoError(t, err)
	d, err := NewDriver(map[core.Kind]*Engine{core.KindOrder: f.engine}, candidates, loader, config, zerolog.Nop())
	require.NoError(t, err)
	d.SetJournal(f.journal)
	return d
}

func rowAsAttributes(t *testing.T, row *core.Row, m *mapping.Mapping) map[string]string {
	t.Helper()
	translator := schema.NewTranslator()
	out := make(map[string]string)
	for _, pair := range m.Pairs() {
		v, ok := row.Get(pair.Column)
		if !ok || v == nil {
			continue
		}
		s, err := translator.ToAttribute(v, pair)
		require.NoError(t, err)
		out[pair.Key] = s
	}
	return out
}

func TestMigrateToRowRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, 1, orderAttributes())

	outcome, err := f.engine.MigrateToRow(ctx, 1, false)
	require.NoError(t, err)
	assert.False(t, outcome.Partial())
	assert.Zero(t, outcome.KeysDeleted)

	row, found, err := f.rows.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, orderAttributes(), rowAsAttributes(t, row, f.engine.Mapping()))

	attrs, err := f.attrs.GetAll(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, orderAttributes(), attrs, "source kept without deleteSource")
}

func TestMigrateToRowDeletesSource(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	attrs := orderAttributes()
	attrs["_edit_lock"] = "1700000000:1"
	f.seed(t, 1, attrs)

	outcome, err := f.engine.MigrateToRow(ctx, 1, true)
	require.NoError(t, err)
	assert.Equal(t, len(orderAttributes()), outcome.KeysDeleted)

	left, err := f.attrs.GetAll(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"_edit_lock": "1700000000:1"}, left, "unmapped keys are not touched")
}

func TestMigrateToRowSkipsEmptyAttributes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, 1, map[string]string{"_status": "wc-pending", "_billing_email": "  ", "_customer_note": ""})

	_, err := f.engine.MigrateToRow(ctx, 1, false)
	require.NoError(t, err)

	row, _, err := f.rows.Get(ctx, 1)
	require.NoError(t, err)
	email, _ := row.Get("billing_email")
	assert.Nil(t, email)
	status, _ := row.Get("status")
	assert.Equal(t, "wc-pending", status)
}

func TestMigrateToRowConflictLeavesAttributes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, 1, orderAttributes())
	_, err := f.db.Exec(ctx, "INSERT INTO orders (id, status) VALUES (1, 'wc-completed')")
	require.NoError(t, err)

	_, err = f.engine.MigrateToRow(ctx, 1, true)
	var me *MigrationError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, int64(1), me.RecordID)
	assert.Equal(t, OpInsert, me.Op)

	attrs, err := f.attrs.GetAll(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, orderAttributes(), attrs)
}

func TestMigrateToRowRejectsUnconvertibleValue(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, 1, map[string]string{"_customer_user": "guest"})

	_, err := f.engine.MigrateToRow(ctx, 1, true)
	var me *MigrationError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, OpBuild, me.Op)

	_, found, err := f.rows.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMigrateToRowPartialCleanup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, 1, orderAttributes())
	f.attrs.failDelete["_status"] = true

	outcome, err := f.engine.MigrateToRow(ctx, 1, true)
	require.NoError(t, err, "cleanup failure does not fail the migration")
	assert.True(t, outcome.Partial())
	assert.Equal(t, len(orderAttributes())-1, outcome.KeysDeleted)

	var me *MigrationError
	require.ErrorAs(t, outcome.CleanupErr, &me)
	assert.Equal(t, OpCleanup, me.Op)

	_, found, err := f.rows.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestRestoreToAttributesRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(t, 1, orderAttributes())

	_, err := f.engine.MigrateToRow(ctx, 1, true)
	require.NoError(t, err)
	attrs, err := f.attrs.GetAll(ctx, 1)
	require.NoError(t, err)
	require.Empty(t, attrs)

	require.NoError(t, f.engine.RestoreToAttributes(ctx, 1, true))

	attrs, err = f.attrs.GetAll(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, orderAttributes(), attrs)

	_, found, err := f.rows.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, found, "row deleted after a full restore")
}

func TestRestoreKeepsNativeAttributeForms(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	attrs := map[string]string{
		"_status":             "wc-completed",
		"_order_total":        "10.00",
		"_order_tax":          "0.125",
		"_prices_include_tax": "yes",
		"_completed_date":     "1709456400",
		"_date_created":       "2024-03-01 10:30:00",
	}
	f.seed(t, 1, attrs)

	_, err := f.engine.MigrateToRow(ctx, 1, true)
	require.NoError(t, err)

	row, _, err := f.rows.Get(ctx, 1)
	require.NoError(t, err)
	completed, _ := row.Get("date_completed_gmt")
	require.IsType(t, time.Time{}, completed)
	assert.True(t, time.Date(2024, 3, 3, 9, 0, 0, 0, time.UTC).Equal(completed.(time.Time)))

	require.NoError(t, f.engine.RestoreToAttributes(ctx, 1, true))

	restored, err := f.attrs.GetAll(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, attrs, restored)
}

func TestRestoreUnmappedColumnIsFatal(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.db.Exec(ctx, "INSERT INTO orders (id, status, legacy_flag) VALUES (4, 'wc-pending', 'x')")
	require.NoError(t, err)

	err = f.engine.RestoreToAttributes(ctx, 4, true)
	var mme *MigrationMappingError
	require.ErrorAs(t, err, &mme)
	assert.Equal(t, "orders", mme.Table)
	assert.Equal(t, "legacy_flag", mme.Column)
	assert.Equal(t, int64(4), mme.RecordID)

	attrs, err := f.attrs.GetAll(ctx, 4)
	require.NoError(t, err)
	assert.Empty(t, attrs, "nothing written before the mapping check")

	_, found, err := f.rows.Get(ctx, 4)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestRestoreDropsEmptyUnmappedColumn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.db.Exec(ctx, "INSERT INTO orders (id, status, legacy_flag) VALUES (4, 'wc-pending', '')")
	require.NoError(t, err)

	require.NoError(t, f.engine.RestoreToAttributes(ctx, 4, false))

	attrs, err := f.attrs.GetAll(ctx, 4)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"_status": "wc-pending"}, attrs)
}

func TestRestoreRemovesKeysOfEmptyColumns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.db.Exec(ctx, "INSERT INTO orders (id, status) VALUES (4, 'wc-pending')")
	require.NoError(t, err)
	require.NoError(t, f.attrs.Set(ctx, 4, "_customer_note", "stale"))

	require.NoError(t, f.engine.RestoreToAttributes(ctx, 4, false))

	_, ok, err := f.attrs.Get(ctx, 4, "_customer_note")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRestoreReportsPendingColumns(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.db.Exec(ctx, "INSERT INTO orders (id, status, currency) VALUES (4, 'wc-pending', 'EUR')")
	require.NoError(t, err)
	f.attrs.failSet["_status"] = true

	err = f.engine.RestoreToAttributes(ctx, 4, true)
	var me *MigrationError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, OpRestore, me.Op)
	assert.Equal(t, []string{"status"}, me.Columns)

	_, found, err := f.rows.Get(ctx, 4)
	require.NoError(t, err)
	assert.True(t, found, "row kept when the restore is incomplete")
}

func TestRestoreMissingRow(t *testing.T) {
	f := newFixture(t)
	err := f.engine.RestoreToAttributes(context.Background(), 99, false)
	assert.ErrorIs(t, err, core.ErrRowNotFound)
}

func TestDeleteRow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	_, err := f.db.Exec(ctx, "INSERT INTO orders (id) VALUES (4)")
	require.NoError(t, err)

	ok, err := f.engine.DeleteRow(ctx, 4)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.engine.DeleteRow(ctx, 4)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNewEngineRequiresCollaborators(t *testing.T) {
	f := newFixture(t)
	m, _ := mapping.For(core.KindOrder)
	_, err := NewEngine(nil, f.rows, m, zerolog.Nop())
	assert.Error(t, err)
	_, err = NewEngine(f.attrs, nil, m, zerolog.Nop())
	assert.Error(t, err)
	_, err = NewEngine(f.attrs, f.rows, nil, zerolog.Nop())
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	attrs := orderAttributes()
	attrs["_order_total"] = "12.50"
	attrs["_prices_include_tax"] = "no"
	f.seed(t, 1, attrs)

	report, err := f.engine.Verify(ctx, 1)
	require.NoError(t, err)
	assert.False(t, report.RowFound)
	assert.False(t, report.Consistent())
	assert.Equal(t, len(attrs), report.Attributes)

	_, err = f.engine.MigrateToRow(ctx, 1, false)
	require.NoError(t, err)

	report, err = f.engine.Verify(ctx, 1)
	require.NoError(t, err)
	assert.True(t, report.Consistent(), "%v", report.Mismatches)

	require.NoError(t, f.attrs.Set(ctx, 1, "_status", "wc-cancelled"))
	report, err = f.engine.Verify(ctx, 1)
	require.NoError(t, err)
	require.Len(t, report.Mismatches, 1)
	assert.Equal(t, Mismatch{Column: "status", Key: "_status", Attribute: "wc-cancelled", Row: "wc-processing"}, report.Mismatches[0])
}
