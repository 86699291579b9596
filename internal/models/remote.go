package models

import (
	"fmt"
	"time"
)

// Fetch modifiers appended to a base URL.
const (
	PhotoDownloadModifier = "=d"
	VideoDownloadModifier = "=dv"
)

// VideoStatusReady marks a video whose processing has finished.
const VideoStatusReady = "READY"

// MediaItemsPage is one page of the list endpoint.
type MediaItemsPage struct {
	// nil when the field is absent from the response
	MediaItems    []RemoteItem `json:"mediaItems"`
	NextPageToken string       `json:"nextPageToken,omitempty"`
}

// RemoteItem is a media item descriptor as returned by the library API.
type RemoteItem struct {
	ID            string        `json:"id"`
	Description   string        `json:"description,omitempty"`
	ProductURL    string        `json:"productUrl,omitempty"`
	BaseURL       string        `json:"baseUrl,omitempty"`
	MimeType      string        `json:"mimeType"`
	Filename      string        `json:"filename"`
	MediaMetadata MediaMetadata `json:"mediaMetadata"`
}

// MediaMetadata holds the creation time and kind-specific metadata.
type MediaMetadata struct {
	CreationTime string         `json:"creationTime"`
	Width        string         `json:"width,omitempty"`
	Height       string         `json:"height,omitempty"`
	Photo        *PhotoMetadata `json:"photo,omitempty"`
	Video        *VideoMetadata `json:"video,omitempty"`
}

// PhotoMetadata is present on photo items.
type PhotoMetadata struct {
	CameraMake  string `json:"cameraMake,omitempty"`
	CameraModel string `json:"cameraModel,omitempty"`
}

// VideoMetadata is present on video items.
type VideoMetadata struct {
	FPS    float64 `json:"fps,omitempty"`
	Status string  `json:"status,omitempty"`
}

// VideoReady reports whether a video item can be fetched. Photos are always ready.
func (r *RemoteItem) VideoReady() bool {
	if r.MediaMetadata.Video == nil {
		return true
	}
	return r.MediaMetadata.Video.Status == VideoStatusReady
}

// ToMediaItem converts a list descriptor into a pending index row.
func (r *RemoteItem) ToMediaItem() (*MediaItem, error) {
	if r.ID == "" {
		return nil, fmt.Errorf("%w: item without id", ErrMalformedResponse)
	}
	kind, ok := KindFromMime(r.MimeType)
	if !ok {
		return nil, fmt.Errorf("unsupported mime type %q", r.MimeType)
	}
	created, err := time.Parse(time.RFC3339, r.MediaMetadata.CreationTime)
	if err != nil {
		return nil, fmt.Errorf("%w: creation time %q: %v", ErrMalformedResponse, r.MediaMetadata.CreationTime, err)
	}
	return &MediaItem{
		RemoteID:  r.ID,
		Filename:  r.Filename,
		MimeType:  r.MimeType,
		Kind:      kind,
		CreatedAt: created.UTC(),
		State:     StatePending,
	}, nil
}

// BatchGetResponse is returned by the batch get endpoint.
type BatchGetResponse struct {
	MediaItemResults []MediaItemResult `json:"mediaItemResults"`
}

// MediaItemResult is one entry of a batch get. Exactly one of MediaItem and Status is set.
type MediaItemResult struct {
	MediaItem *RemoteItem `json:"mediaItem,omitempty"`
	Status    *Status     `json:"status,omitempty"`
}

// Status is the API's error envelope payload.
type Status struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

// ErrorResponse wraps Status in error bodies.
type ErrorResponse struct {
	Error Status `json:"error"`
}
