package sync_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/photosync/internal/config"
	"github.com/TheMichaelB/photosync/internal/index"
	"github.com/TheMichaelB/photosync/internal/models"
	"github.com/TheMichaelB/photosync/internal/services/library"
	"github.com/TheMichaelB/photosync/internal/services/sync"
	"github.com/TheMichaelB/photosync/internal/storage"
	"github.com/TheMichaelB/photosync/internal/transport"
	"github.com/TheMichaelB/photosync/test/testutil"
)

var testNow = time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)

type harness struct {
	server    *testutil.LibraryServer
	tokens    *testutil.StaticTokens
	library   *library.Service
	store     index.Store
	mirror    *storage.Mirror
	imagesDir string
	videosDir string
}

// newHarness wires a fake library, a SQLite index and a mirror in temp directories.
func newHarness(t *testing.T, pageSize int) *harness {
	t.Helper()
	dir := t.TempDir()

	dbPath := filepath.Join(dir, "photosync.db")
	require.NoError(t, index.Provision(dbPath, ""))
	store, err := index.Open(dbPath, testutil.NewTestLogger())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return newHarnessWith(t, pageSize, store)
}

func newHarnessWith(t *testing.T, pageSize int, store index.Store) *harness {
	t.Helper()
	dir := t.TempDir()
	logger := testutil.NewTestLogger()

	server := testutil.NewLibraryServer()
	t.Cleanup(server.Close)

	client, err := transport.NewHTTPClient(&config.APIConfig{
		BaseURL:    server.BaseURL(),
		Timeout:    5 * time.Second,
		MaxRetries: 1,
		UserAgent:  "photosync-test",
	}, logger)
	require.NoError(t, err)
	client.SetRetryDelay(time.Millisecond)

	tokens := testutil.NewStaticTokens(server)

	h := &harness{
		server:    server,
		tokens:    tokens,
		library:   library.NewService(client, tokens, pageSize, logger),
		store:     store,
		imagesDir: filepath.Join(dir, "images"),
		videosDir: filepath.Join(dir, "videos"),
	}

	h.mirror, err = storage.NewMirror(h.imagesDir, h.videosDir, 1<<30, 4096, logger)
	require.NoError(t, err)

	return h
}

func (h *harness) pager() *sync.Pager {
	return sync.NewPager(h.library, h.store, testutil.NewTestLogger())
}

func (h *harness) downloader() *sync.Downloader {
	return sync.NewDownloader(h.library, h.store, h.mirror, testutil.NewTestLogger())
}

func (h *harness) reconciler(cooldown, window time.Duration) *sync.Reconciler {
	r := sync.NewReconciler(h.library, h.store, h.mirror, cooldown, window, testutil.NewTestLogger())
	r.SetClock(func() time.Time { return testNow })
	return r
}

// materialize indexes and downloads everything the server lists.
func (h *harness) materialize(t *testing.T) {
	t.Helper()
	_, err := h.pager().RetrieveFullIndex(context.Background())
	require.NoError(t, err)
	_, err = h.downloader().MaterializePending(context.Background())
	require.NoError(t, err)
}

func (h *harness) item(t *testing.T, remoteID string) *models.MediaItem {
	t.Helper()
	item, err := h.store.Get(remoteID)
	require.NoError(t, err)
	return item
}

func (h *harness) state(t *testing.T, remoteID string) models.StorageState {
	t.Helper()
	return h.item(t, remoteID).State
}

func (h *harness) photoPath(year, name string) string {
	return filepath.Join(h.imagesDir, year, name)
}

func (h *harness) videoPath(year, name string) string {
	return filepath.Join(h.videosDir, year, name)
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}
