package sync

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/TheMichaelB/photosync/internal/events"
	"github.com/TheMichaelB/photosync/internal/index"
	"github.com/TheMichaelB/photosync/internal/models"
	"github.com/TheMichaelB/photosync/internal/storage"
)

// sniffLen is how much of a payload is inspected before it is written.
const sniffLen = 3072

var errIndexWrite = errors.New("index write failed")

// Downloader materializes pending items into the local mirror.
type Downloader struct {
	library Library
	store   index.Store
	mirror  *storage.Mirror
	logger  *events.Logger
}

// DownloadStats summarizes one download pass.
type DownloadStats struct {
	Pending         int
	Stored          int
	Conflicts       int
	NotReady        int
	RemovedUpstream int
	Transient       int
	LocalIO         int
	Bytes           int64
}

type outcome int

const (
	outcomeStored outcome = iota
	outcomeConflict
	outcomeRemoved
)

// NewDownloader creates a downloader.
func NewDownloader(library Library, store index.Store, mirror *storage.Mirror, logger *events.Logger) *Downloader {
	return &Downloader{
		library: library,
		store:   store,
		mirror:  mirror,
		logger:  logger.WithField("component", "downloader"),
	}
}

// MaterializePending downloads every pending item, newest first.
//
// Per-item failures are logged and leave the item pending for the next run.
// Cancellation, authentication failures and index write failures end the pass.
func (d *Downloader) MaterializePending(ctx context.Context) (*DownloadStats, error) {
	logger := withRun(ctx, d.logger)

	items, err := d.store.Pending()
	if err != nil {
		return nil, fmt.Errorf("list pending items: %w", err)
	}

	stats := &DownloadStats{Pending: len(items)}
	logger.WithField("pending", len(items)).Info("Downloading pending items")

	years := make(map[int]bool)

	for _, item := range items {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		itemLogger := logger.WithFields(map[string]interface{}{
			"remote_id": item.RemoteID,
			"filename":  item.Filename,
			"kind":      item.Kind,
		})

		result, n, err := d.materialize(ctx, item, years)
		if errors.Is(err, models.ErrNotYetProcessed) {
			stats.NotReady++
			itemLogger.Info("Video not processed yet, skipping")
			continue
		}
		if err != nil {
			if d.isFatalError(err) {
				return stats, err
			}

			switch {
			case errors.Is(err, models.ErrLocalIO):
				stats.LocalIO++
			default:
				stats.Transient++
			}
			itemLogger.WithError(err).Warn("Download failed, item stays pending")
			continue
		}

		switch result {
		case outcomeStored:
			stats.Stored++
			stats.Bytes += n
			itemLogger.WithField("size", n).Debug("Item stored")
		case outcomeConflict:
			stats.Conflicts++
			itemLogger.Warn("Local file already exists, marked as conflict")
		case outcomeRemoved:
			stats.RemovedUpstream++
			itemLogger.Info("Item deleted upstream, removed from index")
		}
	}

	logger.WithFields(map[string]interface{}{
		"stored":           stats.Stored,
		"conflicts":        stats.Conflicts,
		"not_ready":        stats.NotReady,
		"removed_upstream": stats.RemovedUpstream,
		"transient":        stats.Transient,
		"local_io":         stats.LocalIO,
		"bytes":            stats.Bytes,
	}).Info("Download pass finished")

	return stats, nil
}

// materialize processes one pending item.
func (d *Downloader) materialize(ctx context.Context, item *models.MediaItem, years map[int]bool) (outcome, int64, error) {
	relPath := storage.MediaPath(item)

	if !years[item.Year()] {
		if err := d.mirror.EnsureYear(item.Year()); err != nil {
			return 0, 0, d.itemError(item, storage.YearDir(item.Year()), fmt.Errorf("%w: %w", models.ErrLocalIO, err))
		}
		years[item.Year()] = true
	}

	remote, err := d.library.GetItem(ctx, item.RemoteID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			if err := d.store.Delete(item.ID); err != nil {
				return 0, 0, fmt.Errorf("%w: delete %s: %w", errIndexWrite, item.RemoteID, err)
			}
			return outcomeRemoved, 0, nil
		}
		if d.isFatalError(err) {
			return 0, 0, err
		}
		return 0, 0, d.itemError(item, "", fmt.Errorf("%w: %w", models.ErrTransientFetch, err))
	}

	if item.Kind == models.KindVideo && !remote.VideoReady() {
		return 0, 0, fmt.Errorf("%w: %s status %s", models.ErrNotYetProcessed, item.RemoteID, remote.MediaMetadata.Video.Status)
	}

	blobs := d.mirror.Store(item.Kind)

	exists, err := blobs.Exists(relPath)
	if err != nil {
		return 0, 0, d.itemError(item, relPath, fmt.Errorf("%w: %w", models.ErrLocalIO, err))
	}
	if exists {
		return d.markConflict(item)
	}

	payload, err := d.library.Fetch(ctx, remote, item.Kind)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, 0, ctxErr
		}
		return 0, 0, d.itemError(item, relPath, err)
	}
	defer payload.Close()

	body, err := validatePayload(payload.ContentType, payload.Body)
	if err != nil {
		return 0, 0, d.itemError(item, relPath, err)
	}

	n, err := blobs.WriteStream(relPath, body)
	if err != nil {
		if errors.Is(err, storage.ErrFileExists) {
			return d.markConflict(item)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, 0, ctxErr
		}
		return 0, 0, d.itemError(item, relPath, fmt.Errorf("%w: %w", models.ErrLocalIO, err))
	}

	if err := d.store.SetStorageState(item.ID, models.StateStored); err != nil {
		return 0, 0, fmt.Errorf("%w: mark %s stored: %w", errIndexWrite, item.RemoteID, err)
	}

	return outcomeStored, n, nil
}

func (d *Downloader) markConflict(item *models.MediaItem) (outcome, int64, error) {
	if err := d.store.SetStorageState(item.ID, models.StateConflict); err != nil {
		return 0, 0, fmt.Errorf("%w: mark %s conflict: %w", errIndexWrite, item.RemoteID, err)
	}
	return outcomeConflict, 0, nil
}

func (d *Downloader) itemError(item *models.MediaItem, path string, err error) error {
	return &models.SyncError{
		Phase:    models.PhaseDownload,
		RemoteID: item.RemoteID,
		Path:     path,
		Err:      err,
	}
}

// isFatalError decides which errors end the download pass.
func (d *Downloader) isFatalError(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, models.ErrAuthFailure):
		return true
	case errors.Is(err, errIndexWrite):
		return true
	default:
		return false
	}
}

// validatePayload rejects payloads that are error pages rather than media.
// An expired base URL can still answer 200 with an HTML body.
func validatePayload(contentType string, body io.Reader) (io.Reader, error) {
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return nil, fmt.Errorf("%w: content type %q: %v", models.ErrTransientFetch, contentType, err)
		}
		if strings.HasPrefix(mediaType, "text/") || mediaType == "application/xhtml+xml" {
			return nil, fmt.Errorf("%w: unexpected content type %s", models.ErrTransientFetch, mediaType)
		}
	}

	br := bufio.NewReaderSize(body, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: read payload: %v", models.ErrTransientFetch, err)
	}
	if len(head) == 0 {
		return nil, fmt.Errorf("%w: empty payload", models.ErrTransientFetch)
	}

	if detected := mimetype.Detect(head); detected.Is("text/html") {
		return nil, fmt.Errorf("%w: payload is %s", models.ErrTransientFetch, detected.String())
	}

	return br, nil
}
