package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TheMichaelB/photosync/internal/config"
	"github.com/TheMichaelB/photosync/internal/creds"
	"github.com/TheMichaelB/photosync/internal/events"
	"github.com/TheMichaelB/photosync/internal/index"
	"github.com/TheMichaelB/photosync/internal/models"
	"github.com/TheMichaelB/photosync/internal/services/auth"
	"github.com/TheMichaelB/photosync/internal/services/library"
	"github.com/TheMichaelB/photosync/internal/services/sync"
	"github.com/TheMichaelB/photosync/internal/storage"
	"github.com/TheMichaelB/photosync/internal/transport"
)

// Client holds everything one sync run needs. Close releases the index
// and idle connections and must be called on every exit path.
type Client struct {
	Auth    *auth.Service
	Library *library.Service
	Sync    *sync.Service
	Index   index.Store
	Mirror  *storage.Mirror

	config    *config.Config
	logger    *events.Logger
	transport transport.Transport
}

// New opens the index and wires the services. The index must already exist;
// a missing database yields models.ErrSchemaMissing.
func New(cfg *config.Config, logger *events.Logger) (*Client, error) {
	authService, err := NewAuth(cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := index.Open(cfg.Storage.DBPath, logger)
	if err != nil {
		return nil, err
	}

	mirror, err := storage.NewMirror(
		cfg.Storage.ImagesDir,
		cfg.Storage.VideosDir,
		cfg.Storage.MaxFileSize,
		cfg.Sync.ChunkSize,
		logger,
	)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create mirror: %w", err)
	}

	httpClient, err := transport.NewHTTPClient(&cfg.API, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create transport: %w", err)
	}
	if cfg.Sync.RetryDelay > 0 {
		httpClient.SetRetryDelay(cfg.Sync.RetryDelay)
	}

	libraryService := library.NewService(httpClient, authService, cfg.API.PageSize, logger)
	syncService := sync.NewService(libraryService, store, mirror, &cfg.Sync, logger)

	return &Client{
		Auth:      authService,
		Library:   libraryService,
		Sync:      syncService,
		Index:     store,
		Mirror:    mirror,
		config:    cfg,
		logger:    logger,
		transport: httpClient,
	}, nil
}

// NewAuth creates the credential provider from the client secrets file.
func NewAuth(cfg *config.Config, logger *events.Logger) (*auth.Service, error) {
	secrets, err := creds.LoadClientSecrets(cfg.Auth.ClientSecretsFile)
	if err != nil {
		return nil, fmt.Errorf("load client secrets: %w", err)
	}
	return auth.NewService(creds.OAuthConfig(secrets), cfg.Auth.TokenFile, logger), nil
}

// Run executes one sync run.
func (c *Client) Run(ctx context.Context, opts sync.RunOptions) (*sync.Report, error) {
	if ok, _ := c.Auth.Status(); !ok {
		return nil, fmt.Errorf("run sync: %w", models.ErrNotAuthenticated)
	}
	return c.Sync.Run(ctx, opts)
}

// Status summarizes the index.
type Status struct {
	Counts             map[string]int `json:"counts"`
	ListComplete       bool           `json:"list_complete"`
	LastReconciliation string         `json:"last_reconciliation_at,omitempty"`
	ResumeMarker       int64          `json:"reconciliation_resume_marker,omitempty"`
}

// Status reads item counts and progress markers.
func (c *Client) Status() (*Status, error) {
	return ReadStatus(c.Index)
}

// ReadStatus reads item counts and progress markers from a store.
func ReadStatus(store index.Store) (*Status, error) {
	counts, err := store.Counts()
	if err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}

	status := &Status{Counts: make(map[string]int)}
	for _, state := range []models.StorageState{models.StatePending, models.StateStored, models.StateConflict} {
		status.Counts[state.String()] = counts[state]
	}

	progress := index.NewProgress(store)

	if status.ListComplete, err = progress.ListComplete(); err != nil {
		return nil, err
	}

	last, ok, err := progress.LastReconciliation()
	if err != nil {
		return nil, err
	}
	if ok {
		status.LastReconciliation = last.Format(time.RFC3339)
	}

	marker, ok, err := progress.ResumeMarker()
	if err != nil {
		return nil, err
	}
	if ok {
		status.ResumeMarker = marker
	}

	return status, nil
}

// Close releases the index and idle connections.
func (c *Client) Close() error {
	var errs []error
	if c.transport != nil {
		errs = append(errs, c.transport.Close())
	}
	if c.Index != nil {
		errs = append(errs, c.Index.Close())
	}
	return errors.Join(errs...)
}
