package testutil

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/TheMichaelB/photosync/internal/config"
	"github.com/TheMichaelB/photosync/internal/creds"
	"github.com/TheMichaelB/photosync/internal/events"
)

// JPEGHeader is enough of a JPEG for content sniffing.
var JPEGHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

// MP4Header is enough of an MP4 for content sniffing.
var MP4Header = []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'm', 'p', '4', '2', 0x00, 0x00, 0x00, 0x00, 'm', 'p', '4', '2', 'i', 's', 'o', 'm'}

// NewTestLogger creates a logger for testing.
func NewTestLogger() *events.Logger {
	var buf bytes.Buffer
	return events.NewTestLogger(events.DebugLevel, "json", &buf)
}

// Photo builds a photo item created on the given day.
func Photo(id, day string) LibraryItem {
	return LibraryItem{
		ID:       id,
		Filename: id + ".jpg",
		MimeType: "image/jpeg",
		Created:  day + "T12:00:00Z",
		Payload:  append(append([]byte(nil), JPEGHeader...), []byte("photo "+id)...),
	}
}

// Video builds a video item created on the given day.
func Video(id, day string) LibraryItem {
	return LibraryItem{
		ID:       id,
		Filename: id + ".mp4",
		MimeType: "video/mp4",
		Created:  day + "T12:00:00Z",
		Payload:  append(append([]byte(nil), MP4Header...), []byte("video "+id)...),
	}
}

// Photos builds n photos p0..p(n-1), one day apart, newest first.
func Photos(n int, newest time.Time) []LibraryItem {
	items := make([]LibraryItem, 0, n)
	for i := 0; i < n; i++ {
		day := newest.AddDate(0, 0, -i).Format("2006-01-02")
		items = append(items, Photo(fmt.Sprintf("p%d", i), day))
	}
	return items
}

// TestConfig returns a valid config rooted in a temp directory and pointed at baseURL.
func TestConfig(t testing.TB, baseURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.API.BaseURL = baseURL
	cfg.API.Timeout = 5 * time.Second
	cfg.API.MaxRetries = 1
	cfg.Storage.DataDir = dir
	cfg.Storage.DBPath = filepath.Join(dir, "photosync.db")
	cfg.Storage.ImagesDir = filepath.Join(dir, "images")
	cfg.Storage.VideosDir = filepath.Join(dir, "videos")
	cfg.Auth.ClientSecretsFile = filepath.Join(dir, "client_secret.json")
	cfg.Auth.TokenFile = filepath.Join(dir, "token.json")
	cfg.Sync.RetryDelay = time.Millisecond
	return cfg
}

// ClientSecretsJSON is an installed-app client secrets document.
const ClientSecretsJSON = `{
	"installed": {
		"client_id": "client-id",
		"client_secret": "client-secret",
		"auth_uri": "https://accounts.example.com/o/oauth2/auth",
		"token_uri": "https://oauth2.example.com/token",
		"redirect_uris": ["urn:ietf:wg:oauth:2.0:oob"]
	}
}`

// WriteCredentials writes client secrets and a valid "test-token" token to the configured paths.
func WriteCredentials(cfg *config.Config) error {
	if err := os.WriteFile(cfg.Auth.ClientSecretsFile, []byte(ClientSecretsJSON), 0600); err != nil {
		return err
	}
	return creds.SaveToken(cfg.Auth.TokenFile, &oauth2.Token{
		AccessToken:  "test-token",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	})
}
