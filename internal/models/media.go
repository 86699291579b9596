package models

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is how creation times are stored in the index.
const TimestampLayout = "2006-01-02T15:04:05Z"

// MediaKind distinguishes photos from videos.
type MediaKind string

const (
	KindPhoto MediaKind = "photo"
	KindVideo MediaKind = "video"
)

// KindFromMime classifies a mime type. ok is false for anything that is neither an image nor a video.
func KindFromMime(mimeType string) (kind MediaKind, ok bool) {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return KindPhoto, true
	case strings.HasPrefix(mimeType, "video/"):
		return KindVideo, true
	default:
		return "", false
	}
}

// StorageState is the materialization state of an indexed item.
type StorageState int

const (
	StatePending  StorageState = 0
	StateStored   StorageState = 1
	StateConflict StorageState = 2
)

func (s StorageState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateStored:
		return "stored"
	case StateConflict:
		return "conflict"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// CanTransition reports whether s may move to next. Only pending items change state.
func (s StorageState) CanTransition(next StorageState) bool {
	return s == StatePending && (next == StateStored || next == StateConflict)
}

// MediaItem is one row of the item index.
type MediaItem struct {
	ID        int64        `json:"id"`
	RemoteID  string       `json:"remote_id"`
	Filename  string       `json:"filename"`
	MimeType  string       `json:"mime_type"`
	Kind      MediaKind    `json:"media_kind"`
	CreatedAt time.Time    `json:"creation_time"`
	State     StorageState `json:"storage_state"`
}

// Year is the partition the item is stored under.
func (m *MediaItem) Year() int {
	return m.CreatedAt.UTC().Year()
}
