package sqlstore

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benchtrail/benchtrail/internal/benchmark"
	"github.com/benchtrail/benchtrail/internal/history"
)

func openSQLite(t *testing.T, path, document string) *Medium {
	t.Helper()
	m, err := Open(context.Background(), BackendSQLite, path, document)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestMedium_CompareAndSwap(t *testing.T) {
	ctx := context.Background()
	m := openSQLite(t, filepath.Join(t.TempDir(), "bench.db"), "")

	content, rev, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, content)
	assert.Equal(t, history.Revision(""), rev)

	rev1, err := m.Store(ctx, []byte("one"), "")
	require.NoError(t, err)
	assert.Equal(t, history.Revision("1"), rev1)

	_, err = m.Store(ctx, []byte("again"), "")
	assert.ErrorIs(t, err, history.ErrRevisionConflict)

	rev2, err := m.Store(ctx, []byte("two"), rev1)
	require.NoError(t, err)
	assert.Equal(t, history.Revision("2"), rev2)

	_, err = m.Store(ctx, []byte("stale"), rev1)
	assert.ErrorIs(t, err, history.ErrRevisionConflict)

	content, rev, err = m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "two", string(content))
	assert.Equal(t, rev2, rev)
}

func TestMedium_DocumentsAreSeparate(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bench.db")
	a := openSQLite(t, path, "a")
	b := openSQLite(t, path, "b")

	_, err := a.Store(ctx, []byte("for a"), "")
	require.NoError(t, err)

	content, _, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, content)
	assert.Contains(t, a.String(), `document "a"`)
}

func TestMedium_BehindStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bench.db")
	cfg := history.Config{Backoff: -1, Logger: log.New(io.Discard, "", 0)}

	// Two handles on the same database behave like two CI jobs.
	first := history.New(openSQLite(t, path, ""), cfg)
	second := history.New(openSQLite(t, path, ""), cfg)

	run := func(id string, date int64) benchmark.Run {
		r, err := benchmark.NewRun(benchmark.Commit{ID: id}, date, "pytest",
			[]benchmark.Case{{Name: "test_a", Value: 10, Unit: "iter/sec"}})
		require.NoError(t, err)
		return *r
	}

	_, err := first.Append(ctx, "Benchmark", run("c1", 1))
	require.NoError(t, err)
	res, err := second.Append(ctx, "Benchmark", run("c2", 2))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Length)

	runs, err := first.Read(ctx, "Benchmark")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "c2", runs[1].Commit.ID)
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "x", "")
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestRebind(t *testing.T) {
	pg := &Medium{backend: BackendPostgres}
	assert.Equal(t, "UPDATE t SET a = $1 WHERE b = $2", pg.rebind("UPDATE t SET a = ? WHERE b = ?"))

	lite := &Medium{backend: BackendSQLite}
	assert.Equal(t, "SELECT ?", lite.rebind("SELECT ?"))
}
