package history

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benchtrail/benchtrail/internal/publish"
)

func seededMedium(t *testing.T) *MemoryMedium {
	t.Helper()
	m := NewMemoryMedium(nil)
	store := New(m, quietConfig())
	_, err := store.Append(context.Background(), testGroup, testRun("c1", 1))
	require.NoError(t, err)
	_, err = store.Append(context.Background(), testGroup, testRun("c2", 2))
	require.NoError(t, err)
	return m
}

func TestMigrate_CopiesHistory(t *testing.T) {
	ctx := context.Background()
	src := seededMedium(t)
	dst := NewMemoryMedium(nil)

	res, err := Migrate(ctx, src, dst, MigrateOptions{RepoURL: "https://example.com/other"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Groups)
	assert.Equal(t, 2, res.Runs)
	assert.NotEmpty(t, res.Revision)

	doc, err := publish.Decode(dst.Content())
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/other", doc.RepoURL)
	assert.Len(t, doc.Runs(testGroup), 2)
}

func TestMigrate_RefusesNonEmptyDestination(t *testing.T) {
	ctx := context.Background()
	src := seededMedium(t)
	dst := seededMedium(t)

	_, err := Migrate(ctx, src, dst, MigrateOptions{})
	assert.ErrorIs(t, err, ErrNotEmpty)

	_, err = Migrate(ctx, src, dst, MigrateOptions{Overwrite: true})
	assert.NoError(t, err)
}

func TestMigrate_DryRunWritesNothing(t *testing.T) {
	ctx := context.Background()
	dst := NewMemoryMedium(nil)

	res, err := Migrate(ctx, seededMedium(t), dst, MigrateOptions{DryRun: true})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Runs)
	assert.Equal(t, 0, dst.Writes())
}

func TestMigrate_CorruptSource(t *testing.T) {
	src := NewMemoryMedium([]byte("window.BENCHMARK_DATA = {"))
	_, err := Migrate(context.Background(), src, NewMemoryMedium(nil), MigrateOptions{})
	assert.ErrorIs(t, err, ErrCorruptHistory)

	_, err = Migrate(context.Background(), NewMemoryMedium(nil), NewMemoryMedium(nil), MigrateOptions{})
	assert.Error(t, err)
}
