package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "saves")
	fs, err := NewFileStore(dir, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, fs.Save(ctx, "b-2", []byte{1, 2, 3}))
	require.NoError(t, fs.Save(ctx, "b-1", []byte{4}))
	require.NoError(t, fs.Save(ctx, "b-2", []byte{5, 6}))

	data, err := fs.Load(ctx, "b-2")
	require.NoError(t, err)
	assert.Equal(t, []byte{5, 6}, data)

	ids, err := fs.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b-1", "b-2"}, ids)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files are left behind")

	require.NoError(t, fs.Delete(ctx, "b-1"))
	_, err = fs.Load(ctx, "b-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, fs.Delete(ctx, "b-1"), ErrNotFound)

	stats := fs.Stats()
	assert.Equal(t, int64(3), stats.Saved)
	assert.Equal(t, int64(1), stats.Loaded)
	assert.Equal(t, int64(1), stats.Deleted)
	assert.Equal(t, int64(6), stats.BytesWritten)
	assert.False(t, stats.LastSaveTime.IsZero())
}

func TestFileStore_InvalidIDs(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	for _, id := range []string{"", "..", "a/b", `a\b`} {
		assert.ErrorIs(t, fs.Save(context.Background(), id, nil), ErrInvalidID, id)
	}
}

func TestFileStore_CancelledContext(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, fs.Save(ctx, "b", []byte{1}), context.Canceled)
}

func TestNew(t *testing.T) {
	s, err := New(Config{Type: StoreTypeNone}, zerolog.Nop())
	require.NoError(t, err)
	assert.NoError(t, s.Save(context.Background(), "b", []byte{1}))
	_, err = s.Load(context.Background(), "b")
	assert.ErrorIs(t, err, ErrNotConfigured)

	s, err = New(Config{Type: StoreTypeFile, BaseDir: t.TempDir()}, zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = New(Config{Type: "s3"}, zerolog.Nop())
	assert.ErrorIs(t, err, ErrInvalidStoreType)
}
