package storage

import (
	"fmt"
	"path"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/TheMichaelB/photosync/internal/events"
	"github.com/TheMichaelB/photosync/internal/models"
)

// Mirror is the date-partitioned local tree: one root per media kind,
// one flat directory per year below it.
type Mirror struct {
	images BlobStore
	videos BlobStore
}

// NewMirror creates local stores for both media roots.
func NewMirror(imagesDir, videosDir string, maxFileSize int64, chunkSize int, logger *events.Logger) (*Mirror, error) {
	images, err := NewLocalStore(imagesDir, logger.WithField("media_kind", string(models.KindPhoto)))
	if err != nil {
		return nil, fmt.Errorf("images root: %w", err)
	}
	videos, err := NewLocalStore(videosDir, logger.WithField("media_kind", string(models.KindVideo)))
	if err != nil {
		return nil, fmt.Errorf("videos root: %w", err)
	}

	for _, s := range []*LocalStore{images, videos} {
		s.SetMaxFileSize(maxFileSize)
		s.SetChunkSize(chunkSize)
	}

	return &Mirror{images: images, videos: videos}, nil
}

// NewMirrorFrom builds a mirror over existing stores.
func NewMirrorFrom(images, videos BlobStore) *Mirror {
	return &Mirror{images: images, videos: videos}
}

// Store returns the blob store for a media kind.
func (m *Mirror) Store(kind models.MediaKind) BlobStore {
	if kind == models.KindVideo {
		return m.videos
	}
	return m.images
}

// EnsureYear creates the year directory under both roots.
func (m *Mirror) EnsureYear(year int) error {
	dir := YearDir(year)
	if err := m.images.EnsureDir(dir); err != nil {
		return err
	}
	return m.videos.EnsureDir(dir)
}

// MediaPath returns the item's path relative to its kind root: <year>/<filename>.
func MediaPath(item *models.MediaItem) string {
	return path.Join(YearDir(item.Year()), SafeFilename(item.Filename, item.RemoteID))
}

// YearDir names a year partition.
func YearDir(year int) string {
	return fmt.Sprintf("%04d", year)
}

// SafeFilename NFC-normalizes a remote filename and strips path separators.
// An empty result falls back to the remote id.
func SafeFilename(name, fallback string) string {
	name = norm.NFC.String(name)
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, name)
	name = strings.TrimSpace(name)

	if name == "" || name == "." || name == ".." {
		return SafeFilename(fallback, "item")
	}
	return name
}
