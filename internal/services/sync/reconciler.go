package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/TheMichaelB/photosync/internal/events"
	"github.com/TheMichaelB/photosync/internal/index"
	"github.com/TheMichaelB/photosync/internal/models"
	"github.com/TheMichaelB/photosync/internal/storage"
)

// Reconciler purges materialized items that were deleted upstream.
type Reconciler struct {
	library  Library
	store    index.Store
	mirror   *storage.Mirror
	progress *index.Progress
	logger   *events.Logger

	cooldown time.Duration
	window   time.Duration
	now      func() time.Time
}

// ReconcileStats summarizes one reconciliation pass.
type ReconcileStats struct {
	Ran        bool
	ResumedAt  int64 // row id the pass resumed from, 0 for a fresh pass
	Selected   int
	Checked    int
	Purged     int
	FileErrors int
}

// NewReconciler creates a reconciler. A zero window checks every materialized item.
func NewReconciler(library Library, store index.Store, mirror *storage.Mirror, cooldown, window time.Duration, logger *events.Logger) *Reconciler {
	return &Reconciler{
		library:  library,
		store:    store,
		mirror:   mirror,
		progress: index.NewProgress(store),
		logger:   logger.WithField("component", "reconciler"),
		cooldown: cooldown,
		window:   window,
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (r *Reconciler) SetClock(now func() time.Time) {
	r.now = now
}

// Due reports whether the cooldown since the last completed pass has elapsed.
func (r *Reconciler) Due() (bool, error) {
	last, ok, err := r.progress.LastReconciliation()
	if err != nil {
		return false, fmt.Errorf("read reconciliation marker: %w", err)
	}
	if !ok {
		return true, nil
	}
	return r.now().Sub(last) >= r.cooldown, nil
}

// Reconcile runs a pass if one is due and reports whether it ran.
func (r *Reconciler) Reconcile(ctx context.Context) (bool, error) {
	stats, err := r.Pass(ctx, false)
	if stats == nil {
		return false, err
	}
	return stats.Ran, err
}

// Pass checks every stored or conflict item, oldest row first, against the remote.
// Items gone upstream lose their local file and their index row.
//
// If the pass stops early the current row id is saved as the resume marker and
// the next pass starts from it. A completed pass clears the marker and stamps
// the completion time. force ignores the cooldown.
func (r *Reconciler) Pass(ctx context.Context, force bool) (*ReconcileStats, error) {
	logger := withRun(ctx, r.logger)
	stats := &ReconcileStats{}

	if !force {
		due, err := r.Due()
		if err != nil {
			return stats, err
		}
		if !due {
			logger.Debug("Reconciliation not due")
			return stats, nil
		}
	}

	fromID, resumed, err := r.progress.ResumeMarker()
	if err != nil {
		return stats, fmt.Errorf("read resume marker: %w", err)
	}
	if err := r.progress.ClearResumeMarker(); err != nil {
		return stats, fmt.Errorf("clear resume marker: %w", err)
	}
	if resumed {
		stats.ResumedAt = fromID
	}

	var notBefore time.Time
	if r.window > 0 {
		notBefore = r.now().Add(-r.window)
	}

	items, err := r.store.Materialized(fromID, notBefore)
	if err != nil {
		return stats, fmt.Errorf("list materialized items: %w", err)
	}

	stats.Ran = true
	stats.Selected = len(items)

	logger.WithFields(map[string]interface{}{
		"items":      len(items),
		"resumed_at": stats.ResumedAt,
	}).Info("Reconciling with remote")

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return stats, r.checkpoint(logger, item, err)
		}

		exists, err := r.library.Exists(ctx, item.RemoteID)
		if err != nil {
			return stats, r.checkpoint(logger, item, err)
		}
		stats.Checked++

		if exists {
			continue
		}

		if err := r.purge(logger, item, stats); err != nil {
			return stats, r.checkpoint(logger, item, err)
		}
	}

	if err := r.progress.SetLastReconciliation(r.now()); err != nil {
		return stats, fmt.Errorf("stamp reconciliation: %w", err)
	}

	logger.WithFields(map[string]interface{}{
		"checked": stats.Checked,
		"purged":  stats.Purged,
	}).Info("Reconciliation completed")

	return stats, nil
}

// purge removes an item deleted upstream. A failed file removal is logged only.
// A conflict row never wrote its path, so the file there is left alone.
func (r *Reconciler) purge(logger *events.Logger, item *models.MediaItem, stats *ReconcileStats) error {
	relPath := storage.MediaPath(item)
	itemLogger := logger.WithFields(map[string]interface{}{
		"remote_id": item.RemoteID,
		"path":      relPath,
		"state":     item.State,
	})

	if item.State == models.StateConflict {
		itemLogger.Debug("Conflict item does not own its local file, keeping it")
	} else if err := r.mirror.Store(item.Kind).Delete(relPath); err != nil {
		stats.FileErrors++
		itemLogger.WithError(err).Warn("Failed to delete local file")
	}

	if err := r.store.Delete(item.ID); err != nil {
		return fmt.Errorf("delete index row: %w", err)
	}

	stats.Purged++
	itemLogger.Info("Purged item deleted upstream")
	return nil
}

// checkpoint saves the resume marker at the current item and returns the cause.
func (r *Reconciler) checkpoint(logger *events.Logger, item *models.MediaItem, cause error) error {
	syncErr := &models.SyncError{
		Phase:    models.PhaseReconcile,
		RemoteID: item.RemoteID,
		Err:      cause,
	}

	if err := r.progress.SetResumeMarker(item.ID); err != nil {
		logger.WithError(err).Error("Failed to save resume marker")
		return fmt.Errorf("%w (resume marker not saved: %v)", syncErr, err)
	}

	logger.WithFields(map[string]interface{}{
		"resume_at": item.ID,
		"remote_id": item.RemoteID,
	}).WithError(cause).Warn("Reconciliation interrupted")

	return syncErr
}
