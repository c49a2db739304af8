package source

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sithafal/sithafal/internal/quarantine"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openWritable(path string) (*sql.DB, error) {
	return sql.Open("sqlite", path)
}

func TestSeedRows(t *testing.T) {
	src, err := Open(context.Background(), "", testLogger())
	require.NoError(t, err)
	assert.Equal(t, Builtin, src.Name())

	rows, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 10)

	c := quarantine.New(rows)
	assert.Equal(t, quarantine.Counts{Total: 10, High: 5, Medium: 5}, c.Counts())
	assert.Equal(t, "q-1001", rows[0].ID)
	assert.Equal(t, time.Date(2024, 1, 15, 14, 30, 0, 0, time.UTC), rows[0].Received)
}

func TestRecordRow_Defaults(t *testing.T) {
	r := Record{Sender: "  a@x.com ", Received: "not a date", Risk: "CRITICAL"}.Row()
	assert.NotEmpty(t, r.ID, "missing id gets a derived one")
	assert.Equal(t, "a@x.com", r.Sender)
	assert.Empty(t, r.Subject)
	assert.True(t, r.Received.IsZero())
	assert.Equal(t, quarantine.RiskLow, r.Risk)

	other := Record{}.Row()
	assert.NotEqual(t, r.ID, other.ID)
}

func TestRecordRow_DerivedIDsAreStable(t *testing.T) {
	rec := Record{Sender: "billing@vendor.io", Subject: "Invoice 42", Received: "2024-01-15 09:00", Risk: "high"}
	assert.Equal(t, rec.Row().ID, rec.Row().ID)
	assert.Equal(t, "q-7", Record{ID: " q-7 ", Sender: "x@y.z"}.Row().ID)

	rows := Rows([]Record{rec, {Sender: "other@vendor.io"}, rec})
	require.Len(t, rows, 3)
	assert.Equal(t, rec.Row().ID, rows[0].ID)
	assert.NotEqual(t, rows[0].ID, rows[2].ID, "identical records stay distinct")
	assert.Equal(t, rows, Rows([]Record{rec, {Sender: "other@vendor.io"}, rec}))
}

func TestYAMLFile_IDlessRowsAddressableAcrossLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.yaml")
	data := "rows:\n  - sender: a@x.com\n    subject: Hello\n    risk: medium\n  - sender: b@y.com\n    subject: Hi\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	src := NewYAMLFile(path)
	first, err := src.Load(t.Context())
	require.NoError(t, err)
	second, err := src.Load(t.Context())
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[1].ID, second[1].ID)

	c := quarantine.New(second)
	p, err := c.Preview(first[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", p.Sender)
}

func TestParseTimeLayouts(t *testing.T) {
	for _, s := range []string{"2024-01-15T14:30:00Z", "2024-01-15 14:30:00", "2024-01-15 14:30", "2024-01-15"} {
		_, ok := parseTime(s)
		assert.True(t, ok, s)
	}
}

func TestOpen_Unsupported(t *testing.T) {
	_, err := Open(context.Background(), "mailbox.mbox", testLogger())
	assert.True(t, errors.Is(err, ErrUnsupportedSource))
}

func TestYAMLFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.yaml")
	in := []quarantine.Row{
		{ID: "a", Sender: "a@x.com", Subject: "one", Received: time.Date(2024, 3, 1, 9, 15, 0, 0, time.UTC), Risk: quarantine.RiskHigh},
		{ID: "b", Sender: "b@y.com", Risk: quarantine.RiskMedium},
	}
	require.NoError(t, WriteYAML(path, in))

	src, err := Open(context.Background(), path, testLogger())
	require.NoError(t, err)
	out, err := src.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestYAMLFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.yml")
	require.NoError(t, os.WriteFile(path, []byte("rows: [unterminated"), 0o600))

	_, err := NewYAMLFile(path).Load(context.Background())
	assert.Error(t, err)
}

func TestSQLite_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quarantine.db")
	in := []quarantine.Row{
		{ID: "old", Sender: "old@x.com", Subject: "older", Received: time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC), Risk: quarantine.RiskMedium},
		{ID: "new", Sender: "new@x.com", Subject: "newer", Received: time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC), Risk: quarantine.RiskHigh},
	}
	require.NoError(t, WriteSQLite(context.Background(), path, in))

	src, err := Open(context.Background(), "sqlite:"+path, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })
	assert.Equal(t, "sqlite:"+path, src.Name())

	out, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "new", out[0].ID, "newest first")
	assert.Equal(t, in[0], out[1])
}

func TestSQLite_NullColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.sqlite")
	require.NoError(t, WriteSQLite(context.Background(), path, nil))

	// Insert a sparse row directly.
	db, err := openWritable(path)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO quarantined_emails (id) VALUES ('sparse')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	src, err := Open(context.Background(), path, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })

	rows, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, quarantine.Row{ID: "sparse", Risk: quarantine.RiskLow}, rows[0])
}

func TestSQLite_MissingFile(t *testing.T) {
	_, err := OpenSQLite(filepath.Join(t.TempDir(), "absent.db"), testLogger())
	assert.Error(t, err)
}

func TestPostgres_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, err := Open(ctx, "postgres://sithafal@127.0.0.1:1/mail?connect_timeout=1", testLogger())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrUnsupportedSource))
}

func TestWatcher_ReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.yaml")
	require.NoError(t, WriteYAML(path, []quarantine.Row{{ID: "first", Risk: quarantine.RiskHigh}}))

	reloads := make(chan int, 4)
	w, err := Watch(context.Background(), NewYAMLFile(path), testLogger(), func(n int) { reloads <- n })
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	rows, err := w.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)

	require.NoError(t, WriteYAML(path, []quarantine.Row{{ID: "first"}, {ID: "second"}}))

	select {
	case n := <-reloads:
		assert.Equal(t, 2, n)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not reload")
	}
	rows, err = w.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.NoError(t, w.Err())
}

func TestWatcher_KeepsRowsOnBadReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.yaml")
	require.NoError(t, WriteYAML(path, []quarantine.Row{{ID: "keep"}}))

	w, err := Watch(context.Background(), NewYAMLFile(path), testLogger(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, os.WriteFile(path, []byte("rows: ["), 0o600))
	require.Eventually(t, func() bool { return w.Err() != nil }, 3*time.Second, 20*time.Millisecond)

	rows, err := w.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "keep", rows[0].ID)

	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}

func TestWatcher_ConcurrentClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rows.yaml")
	require.NoError(t, WriteYAML(path, []quarantine.Row{{ID: "a"}}))

	w, err := Watch(context.Background(), NewYAMLFile(path), testLogger(), nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, w.Close())
		}()
	}
	wg.Wait()
	assert.NoError(t, w.Close())
}
