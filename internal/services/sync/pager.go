package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/TheMichaelB/photosync/internal/events"
	"github.com/TheMichaelB/photosync/internal/index"
	"github.com/TheMichaelB/photosync/internal/models"
)

// Pager walks the remote item list and indexes every item it has not seen.
type Pager struct {
	library  Library
	store    index.Store
	progress *index.Progress
	logger   *events.Logger
}

// PageStats summarizes one pagination pass.
type PageStats struct {
	CatchUp    bool // list_complete was already set when the pass started
	Pages      int
	Inserted   int
	Duplicates int
	Skipped    int // descriptors that could not be indexed
	Complete   bool
}

// NewPager creates a pager.
func NewPager(library Library, store index.Store, logger *events.Logger) *Pager {
	return &Pager{
		library:  library,
		store:    store,
		progress: index.NewProgress(store),
		logger:   logger.WithField("component", "pager"),
	}
}

// RetrieveFullIndex pages through the remote list, inserting new items as pending.
//
// Until the list has been walked once to its last page every page is requested and
// duplicates are skipped. Afterwards the first duplicate ends the walk, since the list
// is ordered newest first and everything past a known item is already indexed.
func (p *Pager) RetrieveFullIndex(ctx context.Context) (*PageStats, error) {
	logger := withRun(ctx, p.logger)

	catchUp, err := p.progress.ListComplete()
	if err != nil {
		return nil, fmt.Errorf("read list marker: %w", err)
	}

	stats := &PageStats{CatchUp: catchUp}
	logger.WithField("catch_up", catchUp).Info("Retrieving item list")

	pageToken := ""
	for {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		page, err := p.library.ListPage(ctx, pageToken)
		if err != nil {
			return stats, fmt.Errorf("retrieve page %d: %w", stats.Pages+1, err)
		}
		stats.Pages++

		known, err := p.indexPage(logger, page, stats)
		if err != nil {
			return stats, err
		}

		if known && catchUp {
			logger.WithField("pages", stats.Pages).Info("Reached already indexed items")
			break
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	stats.Complete = true

	if !catchUp {
		if err := p.progress.SetListComplete(); err != nil {
			return stats, fmt.Errorf("set list marker: %w", err)
		}
	}

	logger.WithFields(map[string]interface{}{
		"pages":      stats.Pages,
		"inserted":   stats.Inserted,
		"duplicates": stats.Duplicates,
		"skipped":    stats.Skipped,
	}).Info("Item list retrieved")

	return stats, nil
}

// indexPage inserts a page's descriptors in order. In catch-up mode it stops at the
// first known item and reports it.
func (p *Pager) indexPage(logger *events.Logger, page *models.MediaItemsPage, stats *PageStats) (bool, error) {
	for i := range page.MediaItems {
		remote := &page.MediaItems[i]

		item, err := remote.ToMediaItem()
		if err != nil {
			logger.WithError(err).WithFields(map[string]interface{}{
				"remote_id": remote.ID,
				"filename":  remote.Filename,
				"mime_type": remote.MimeType,
			}).Warn("Skipping item")
			stats.Skipped++
			continue
		}

		if _, err := p.store.Insert(item); err != nil {
			if !errors.Is(err, models.ErrDuplicate) {
				return false, fmt.Errorf("index item %s: %w", item.RemoteID, err)
			}

			stats.Duplicates++
			if stats.CatchUp {
				logger.WithField("remote_id", item.RemoteID).Debug("Found known item")
				return true, nil
			}
			continue
		}

		stats.Inserted++
	}

	return false, nil
}
