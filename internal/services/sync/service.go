package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/TheMichaelB/photosync/internal/config"
	"github.com/TheMichaelB/photosync/internal/events"
	"github.com/TheMichaelB/photosync/internal/index"
	"github.com/TheMichaelB/photosync/internal/models"
	"github.com/TheMichaelB/photosync/internal/storage"
)

// Service runs the sync pipeline: list, download, reconcile.
type Service struct {
	pager      *Pager
	downloader *Downloader
	reconciler *Reconciler
	logger     *events.Logger

	now func() time.Time

	mu      sync.Mutex
	syncing bool
}

// RunOptions configures a run.
type RunOptions struct {
	SkipDownload   bool
	SkipReconcile  bool
	ForceReconcile bool // ignore the reconciliation cooldown
}

// Report summarizes a run.
type Report struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	// Pagination
	CatchUp    bool `json:"catch_up"`
	Pages      int  `json:"pages"`
	Inserted   int  `json:"inserted"`
	Duplicates int  `json:"duplicates"`
	Skipped    int  `json:"skipped"`

	// Download
	Stored          int   `json:"stored"`
	Conflicts       int   `json:"conflicts"`
	NotReady        int   `json:"not_ready"`
	RemovedUpstream int   `json:"removed_upstream"`
	Transient       int   `json:"transient_failures"`
	LocalIO         int   `json:"local_io_failures"`
	Bytes           int64 `json:"bytes"`

	// Reconciliation
	ReconcileRan bool `json:"reconcile_ran"`
	Reconciled   int  `json:"reconciled"`
	Purged       int  `json:"purged"`
}

// NewService creates a sync service over one index and one mirror.
func NewService(library Library, store index.Store, mirror *storage.Mirror, cfg *config.SyncConfig, logger *events.Logger) *Service {
	return &Service{
		pager:      NewPager(library, store, logger),
		downloader: NewDownloader(library, store, mirror, logger),
		reconciler: NewReconciler(library, store, mirror, cfg.ReconcileCooldown, cfg.ReconcileWindow, logger),
		logger:     logger.WithField("service", "sync"),
		now:        time.Now,
	}
}

// SetClock replaces the time source used for reconciliation scheduling.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
	s.reconciler.SetClock(now)
}

// Run executes one sync run. The report is returned even when the run fails
// and counts what was done up to the failure.
func (s *Service) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	s.mu.Lock()
	if s.syncing {
		s.mu.Unlock()
		return nil, models.ErrSyncInProgress
	}
	s.syncing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.syncing = false
		s.mu.Unlock()
	}()

	if events.GetRunID(ctx) == "" {
		ctx = events.WithRunID(ctx)
	}
	logger := withRun(ctx, s.logger)

	report := &Report{
		RunID:     events.GetRunID(ctx),
		StartedAt: s.now(),
	}
	defer func() {
		report.Duration = s.now().Sub(report.StartedAt)
	}()

	logger.WithFields(map[string]interface{}{
		"skip_download":   opts.SkipDownload,
		"skip_reconcile":  opts.SkipReconcile,
		"force_reconcile": opts.ForceReconcile,
	}).Info("Starting sync")

	pageStats, err := s.pager.RetrieveFullIndex(ctx)
	report.addPages(pageStats)
	if err != nil {
		return report, s.fail(logger, fmt.Errorf("retrieve index: %w", err))
	}

	if !opts.SkipDownload {
		downloadStats, err := s.downloader.MaterializePending(ctx)
		report.addDownloads(downloadStats)
		if err != nil {
			return report, s.fail(logger, fmt.Errorf("materialize pending: %w", err))
		}
	}

	if !opts.SkipReconcile {
		reconcileStats, err := s.reconciler.Pass(ctx, opts.ForceReconcile)
		report.addReconcile(reconcileStats)
		if err != nil {
			return report, s.fail(logger, fmt.Errorf("reconcile: %w", err))
		}
	}

	logger.WithFields(map[string]interface{}{
		"inserted":      report.Inserted,
		"stored":        report.Stored,
		"conflicts":     report.Conflicts,
		"purged":        report.Purged,
		"reconcile_ran": report.ReconcileRan,
		"duration":      s.now().Sub(report.StartedAt),
	}).Info("Sync completed")

	return report, nil
}

func (s *Service) fail(logger *events.Logger, err error) error {
	logger.WithError(err).Error("Sync failed")
	return err
}

func (r *Report) addPages(stats *PageStats) {
	if stats == nil {
		return
	}
	r.CatchUp = stats.CatchUp
	r.Pages = stats.Pages
	r.Inserted = stats.Inserted
	r.Duplicates = stats.Duplicates
	r.Skipped = stats.Skipped
}

func (r *Report) addDownloads(stats *DownloadStats) {
	if stats == nil {
		return
	}
	r.Stored = stats.Stored
	r.Conflicts = stats.Conflicts
	r.NotReady = stats.NotReady
	r.RemovedUpstream = stats.RemovedUpstream
	r.Transient = stats.Transient
	r.LocalIO = stats.LocalIO
	r.Bytes = stats.Bytes
}

func (r *Report) addReconcile(stats *ReconcileStats) {
	if stats == nil {
		return
	}
	r.ReconcileRan = stats.Ran
	r.Reconciled = stats.Checked
	r.Purged = stats.Purged
}

// withRun tags a component logger with the run id carried by ctx.
func withRun(ctx context.Context, logger *events.Logger) *events.Logger {
	if id := events.GetRunID(ctx); id != "" {
		return logger.WithField("run_id", id)
	}
	return logger
}
