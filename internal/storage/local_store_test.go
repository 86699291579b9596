package storage_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/photosync/internal/events"
	"github.com/TheMichaelB/photosync/internal/storage"
)

func newLocalStore(t *testing.T) (*storage.LocalStore, string) {
	t.Helper()
	tmpDir := t.TempDir()
	var buf bytes.Buffer
	store, err := storage.NewLocalStore(tmpDir, events.NewTestLogger(events.DebugLevel, "json", &buf))
	require.NoError(t, err)
	return store, tmpDir
}

func TestWriteStream(t *testing.T) {
	store, tmpDir := newLocalStore(t)
	store.SetChunkSize(4)

	content := strings.Repeat("0123456789", 100)
	n, err := store.WriteStream("2021/IMG_0001.jpg", strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), n)

	data, err := os.ReadFile(filepath.Join(tmpDir, "2021", "IMG_0001.jpg"))
	require.NoError(t, err)
	assert.Equal(t, content, string(data))

	exists, err := store.Exists("2021/IMG_0001.jpg")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestWriteStreamNeverOverwrites(t *testing.T) {
	store, tmpDir := newLocalStore(t)

	_, err := store.WriteStream("2021/a.jpg", strings.NewReader("first"))
	require.NoError(t, err)

	_, err = store.WriteStream("2021/a.jpg", strings.NewReader("second"))
	assert.ErrorIs(t, err, storage.ErrFileExists)

	data, err := os.ReadFile(filepath.Join(tmpDir, "2021", "a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
}

type failingReader struct {
	remaining int
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.remaining <= 0 {
		return 0, errors.New("connection reset")
	}
	n := len(p)
	if n > r.remaining {
		n = r.remaining
	}
	r.remaining -= n
	return n, nil
}

func TestWriteStreamFailureLeavesNothing(t *testing.T) {
	store, tmpDir := newLocalStore(t)

	_, err := store.WriteStream("2021/broken.mp4", &failingReader{remaining: 100})
	require.Error(t, err)

	entries, err := os.ReadDir(filepath.Join(tmpDir, "2021"))
	require.NoError(t, err)
	assert.Empty(t, entries)

	entries, err = os.ReadDir(filepath.Join(tmpDir, ".partial"))
	require.NoError(t, err)
	assert.Empty(t, entries, "temp file must be removed")
}

func TestNewLocalStoreSweepsInterruptedWrites(t *testing.T) {
	tmpDir := t.TempDir()
	partial := filepath.Join(tmpDir, ".partial")
	require.NoError(t, os.MkdirAll(partial, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(partial, "IMG_0001.jpg.123456"), []byte("half"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, "2021"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "2021", "kept.jpg"), []byte("done"), 0644))

	var buf bytes.Buffer
	store, err := storage.NewLocalStore(tmpDir, events.NewTestLogger(events.DebugLevel, "json", &buf))
	require.NoError(t, err)

	entries, err := os.ReadDir(partial)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.FileExists(t, filepath.Join(tmpDir, "2021", "kept.jpg"))
	assert.Contains(t, buf.String(), "Removed interrupted writes")

	_, err = store.WriteStream("2021/IMG_0001.jpg", strings.NewReader("whole"))
	require.NoError(t, err)
	entries, err = os.ReadDir(partial)
	require.NoError(t, err)
	assert.Empty(t, entries, "completed write leaves nothing behind")
}

func TestWriteStreamSizeLimit(t *testing.T) {
	store, tmpDir := newLocalStore(t)
	store.SetMaxFileSize(10)

	_, err := store.WriteStream("big.bin", io.LimitReader(zeroReader{}, 11))
	assert.ErrorIs(t, err, storage.ErrFileTooLarge)
	assert.NoFileExists(t, filepath.Join(tmpDir, "big.bin"))

	_, err = store.WriteStream("ok.bin", io.LimitReader(zeroReader{}, 10))
	assert.NoError(t, err)
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

func TestDelete(t *testing.T) {
	store, tmpDir := newLocalStore(t)

	_, err := store.WriteStream("2019/old.jpg", strings.NewReader("x"))
	require.NoError(t, err)

	require.NoError(t, store.Delete("2019/old.jpg"))
	assert.NoFileExists(t, filepath.Join(tmpDir, "2019", "old.jpg"))
	assert.NoDirExists(t, filepath.Join(tmpDir, "2019"), "empty year directory is removed")
	assert.DirExists(t, tmpDir)

	// deleting again is not an error
	assert.NoError(t, store.Delete("2019/old.jpg"))
}

func TestEnsureDirIdempotent(t *testing.T) {
	store, tmpDir := newLocalStore(t)

	require.NoError(t, store.EnsureDir("2020"))
	require.NoError(t, store.EnsureDir("2020"))
	assert.DirExists(t, filepath.Join(tmpDir, "2020"))
}

func TestPathValidation(t *testing.T) {
	store, _ := newLocalStore(t)

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"normal", "2021/photo.jpg", false},
		{"dots inside name", "2021/holiday..final.jpg", false},
		{"traversal", "../outside.jpg", true},
		{"nested traversal", "2021/../../outside.jpg", true},
		{"null byte", "2021/a\x00.jpg", true},
		{"absolute is rooted", "/2021/photo.jpg", false},
		{"partial directory is reserved", ".partial/photo.jpg", true},
		{"dot name inside year", "2021/.partial", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := store.Exists(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, storage.ErrInvalidPath)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
