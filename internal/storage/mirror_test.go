package storage_test

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/photosync/internal/events"
	"github.com/TheMichaelB/photosync/internal/models"
	"github.com/TheMichaelB/photosync/internal/storage"
)

func TestMirrorLayout(t *testing.T) {
	tmpDir := t.TempDir()
	imagesDir := filepath.Join(tmpDir, "images")
	videosDir := filepath.Join(tmpDir, "videos")

	mirror, err := storage.NewMirror(imagesDir, videosDir, 1024, 16, events.Discard())
	require.NoError(t, err)

	require.NoError(t, mirror.EnsureYear(2021))
	assert.DirExists(t, filepath.Join(imagesDir, "2021"))
	assert.DirExists(t, filepath.Join(videosDir, "2021"))

	video := &models.MediaItem{
		RemoteID:  "v1",
		Filename:  "clip.mp4",
		Kind:      models.KindVideo,
		CreatedAt: time.Date(2021, 7, 4, 12, 0, 0, 0, time.UTC),
	}
	_, err = mirror.Store(video.Kind).WriteStream(storage.MediaPath(video), strings.NewReader("frames"))
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(videosDir, "2021", "clip.mp4"))
	assert.NoFileExists(t, filepath.Join(imagesDir, "2021", "clip.mp4"))
}

func TestMediaPath(t *testing.T) {
	created := time.Date(2008, 2, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		filename string
		want     string
	}{
		{"plain", "IMG_0001.JPG", "2008/IMG_0001.JPG"},
		{"separator", "a/b.jpg", "2008/a_b.jpg"},
		{"backslash", `a\b.jpg`, "2008/a_b.jpg"},
		{"empty falls back to remote id", "", "2008/AF1Qip-x"},
		{"dot dot", "..", "2008/AF1Qip-x"},
		{"decomposed unicode is composed", "Cafe\u0301.jpg", "2008/Caf\u00e9.jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := &models.MediaItem{RemoteID: "AF1Qip-x", Filename: tt.filename, CreatedAt: created}
			assert.Equal(t, tt.want, storage.MediaPath(item))
		})
	}
}

func TestMockStore(t *testing.T) {
	mock := storage.NewMockStore()

	_, err := mock.WriteStream("2020/a.jpg", strings.NewReader("abc"))
	require.NoError(t, err)

	_, err = mock.WriteStream("2020/a.jpg", strings.NewReader("def"))
	assert.ErrorIs(t, err, storage.ErrFileExists)

	data, ok := mock.Read("2020/a.jpg")
	require.True(t, ok)
	assert.Equal(t, "abc", string(data))

	mock.Fail = func(op, _ string) error {
		if op == "write" {
			return assert.AnError
		}
		return nil
	}
	_, err = mock.WriteStream("2020/b.jpg", strings.NewReader("x"))
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, 1, mock.FileCount())
}
