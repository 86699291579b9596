package sync_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/photosync/internal/index"
	"github.com/TheMichaelB/photosync/internal/models"
	"github.com/TheMichaelB/photosync/internal/storage"
	"github.com/TheMichaelB/photosync/test/testutil"
)

func indexAll(t *testing.T, h *harness) {
	t.Helper()
	_, err := h.pager().RetrieveFullIndex(context.Background())
	require.NoError(t, err)
}

func TestDownloaderStoresByKindAndYear(t *testing.T) {
	h := newHarness(t, 10)
	photo := testutil.Photo("a", "2021-03-04")
	video := testutil.Video("v", "2019-07-08")
	h.server.Add(photo, video)
	indexAll(t, h)

	stats, err := h.downloader().MaterializePending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 2, stats.Stored)
	assert.Equal(t, int64(len(photo.Payload)+len(video.Payload)), stats.Bytes)

	assert.Equal(t, photo.Payload, readFile(t, h.photoPath("2021", "a.jpg")))
	assert.Equal(t, video.Payload, readFile(t, h.videoPath("2019", "v.mp4")))

	assert.Equal(t, []string{models.PhotoDownloadModifier}, h.server.Fetches("a"))
	assert.Equal(t, []string{models.VideoDownloadModifier}, h.server.Fetches("v"))

	for _, dir := range []string{"2019", "2021"} {
		assert.DirExists(t, filepath.Join(h.imagesDir, dir))
		assert.DirExists(t, filepath.Join(h.videosDir, dir))
	}

	assert.Equal(t, models.StateStored, h.state(t, "a"))
	assert.Equal(t, models.StateStored, h.state(t, "v"))

	again, err := h.downloader().MaterializePending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, again.Pending)
	assert.Equal(t, 1, h.server.DetailCalls("a"))
}

func TestDownloaderRemovesItemsDeletedUpstream(t *testing.T) {
	h := newHarness(t, 10)
	h.server.Add(testutil.Photo("gone", "2021-01-01"), testutil.Photo("kept", "2021-01-01"))
	indexAll(t, h)
	h.server.Delete("gone")

	stats, err := h.downloader().MaterializePending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.RemovedUpstream)
	assert.Equal(t, 1, stats.Stored)

	_, err = h.store.Get("gone")
	assert.ErrorIs(t, err, index.ErrItemNotFound)
	assert.NoFileExists(t, h.photoPath("2021", "gone.jpg"))
	assert.Empty(t, h.server.Fetches("gone"))
}

func TestDownloaderSkipsUnprocessedVideo(t *testing.T) {
	h := newHarness(t, 10)
	h.server.Add(testutil.Video("x", "2021-01-01"))
	indexAll(t, h)
	h.server.SetVideoStatus("x", "PROCESSING")

	stats, err := h.downloader().MaterializePending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.NotReady)
	assert.Zero(t, stats.Transient, "not ready is not a fetch failure")
	assert.Equal(t, models.StatePending, h.state(t, "x"))
	assert.NoFileExists(t, h.videoPath("2021", "x.mp4"))
	assert.Empty(t, h.server.Fetches("x"))

	h.server.SetVideoStatus("x", models.VideoStatusReady)

	stats, err = h.downloader().MaterializePending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Stored)
	assert.Equal(t, models.StateStored, h.state(t, "x"))
}

func TestDownloaderRejectsErrorPages(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		payload     []byte
	}{
		{"html content type", "text/html; charset=UTF-8", []byte("<html><body>expired</body></html>")},
		{"plain text content type", "text/plain", []byte("expired")},
		{"html body behind image content type", "image/jpeg", []byte("<!DOCTYPE html><html><head><title>Error</title></head></html>")},
		{"empty body", "image/jpeg", []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 10)
			bad := testutil.Photo("bad", "2021-01-02")
			bad.ContentType = tt.contentType
			bad.Payload = tt.payload
			h.server.Add(bad, testutil.Photo("good", "2021-01-01"))
			indexAll(t, h)

			stats, err := h.downloader().MaterializePending(context.Background())
			require.NoError(t, err)

			assert.Equal(t, 1, stats.Transient)
			assert.Equal(t, 1, stats.Stored, "the batch continues after a bad payload")
			assert.Equal(t, models.StatePending, h.state(t, "bad"))
			assert.Equal(t, models.StateStored, h.state(t, "good"))
			assert.NoFileExists(t, h.photoPath("2021", "bad.jpg"))
		})
	}
}

func TestDownloaderMarksExistingFileAsConflict(t *testing.T) {
	h := newHarness(t, 10)
	h.server.Add(testutil.Photo("a", "2021-01-01"))
	indexAll(t, h)

	target := h.photoPath("2021", "a.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0755))
	require.NoError(t, os.WriteFile(target, []byte("already here"), 0644))

	stats, err := h.downloader().MaterializePending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Conflicts)
	assert.Equal(t, models.StateConflict, h.state(t, "a"))
	assert.Equal(t, []byte("already here"), readFile(t, target))
	assert.Empty(t, h.server.Fetches("a"))
}

func TestDownloaderCrashBeforeStateUpdate(t *testing.T) {
	store := index.NewMockStore()
	h := newHarnessWith(t, 10, store)
	item := testutil.Photo("a", "2021-01-01")
	h.server.Add(item)
	indexAll(t, h)

	store.Fail = func(op string, id int64) error {
		if op == "set_state" {
			return errors.New("database is locked")
		}
		return nil
	}

	_, err := h.downloader().MaterializePending(context.Background())
	require.Error(t, err, "an index write failure ends the pass")
	assert.Equal(t, models.StatePending, h.state(t, "a"))

	store.Fail = nil

	stats, err := h.downloader().MaterializePending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Conflicts)
	assert.Equal(t, models.StateConflict, h.state(t, "a"))

	entries, err := os.ReadDir(filepath.Join(h.imagesDir, "2021"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "one file per remote id")
	assert.Equal(t, item.Payload, readFile(t, h.photoPath("2021", "a.jpg")))
}

func TestDownloaderLocalIOFailure(t *testing.T) {
	h := newHarness(t, 10)
	images := storage.NewMockStore()
	images.Fail = func(op, path string) error {
		if op == "write" && path == "2021/a.jpg" {
			return errors.New("no space left on device")
		}
		return nil
	}
	videos := storage.NewMockStore()
	h.mirror = storage.NewMirrorFrom(images, videos)

	h.server.Add(testutil.Photo("a", "2021-01-02"), testutil.Photo("b", "2021-01-01"))
	indexAll(t, h)

	stats, err := h.downloader().MaterializePending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.LocalIO)
	assert.Equal(t, 1, stats.Stored)
	assert.Equal(t, models.StatePending, h.state(t, "a"))

	_, ok := images.Read("2021/a.jpg")
	assert.False(t, ok)
	_, ok = images.Read("2021/b.jpg")
	assert.True(t, ok)
	assert.True(t, videos.HasDir("2021"))
}

func TestDownloaderYearDirectoryFailure(t *testing.T) {
	h := newHarness(t, 10)
	images := storage.NewMockStore()
	images.Fail = func(op, path string) error {
		if op == "mkdir" && path == "2020" {
			return errors.New("permission denied")
		}
		return nil
	}
	h.mirror = storage.NewMirrorFrom(images, storage.NewMockStore())

	h.server.Add(testutil.Photo("new", "2021-01-01"), testutil.Photo("old", "2020-01-01"))
	indexAll(t, h)

	stats, err := h.downloader().MaterializePending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.LocalIO)
	assert.Equal(t, models.StateStored, h.state(t, "new"))
	assert.Equal(t, models.StatePending, h.state(t, "old"))
	assert.Equal(t, 0, h.server.DetailCalls("old"))
}

func TestDownloaderAuthFailureEndsPass(t *testing.T) {
	h := newHarness(t, 10)
	h.server.Add(testutil.Photo("a", "2021-01-02"), testutil.Photo("b", "2021-01-01"))
	indexAll(t, h)

	h.tokens.RefreshErr = fmt.Errorf("%w: token revoked", models.ErrAuthFailure)
	h.server.RejectNext(1)

	_, err := h.downloader().MaterializePending(context.Background())
	assert.ErrorIs(t, err, models.ErrAuthFailure)
	assert.Equal(t, models.StatePending, h.state(t, "a"))
	assert.Equal(t, models.StatePending, h.state(t, "b"))
}

func TestDownloaderCancelled(t *testing.T) {
	h := newHarness(t, 10)
	h.server.Add(testutil.Photo("a", "2021-01-01"))
	indexAll(t, h)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.downloader().MaterializePending(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, models.StatePending, h.state(t, "a"))
}
