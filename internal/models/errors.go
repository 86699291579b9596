package models

import (
	"errors"
	"fmt"
	"net/http"
)

// Sync phases used in SyncError.
const (
	PhaseList      = "list"
	PhaseDownload  = "download"
	PhaseReconcile = "reconcile"
)

// Sentinel errors
var (
	// Remote side
	ErrAuthFailure       = errors.New("authentication failed")
	ErrNotFound          = errors.New("remote item not found")
	ErrTransientFetch    = errors.New("transient fetch failure")
	ErrMalformedResponse = errors.New("malformed response")
	ErrListUnavailable   = errors.New("item list unavailable")
	ErrNotYetProcessed   = errors.New("item not yet processed")

	// Local side
	ErrDuplicate         = errors.New("duplicate remote id")
	ErrLocalIO           = errors.New("local I/O failure")
	ErrSchemaMissing     = errors.New("index schema missing")
	ErrInvalidTransition = errors.New("invalid storage state transition")
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrSyncInProgress    = errors.New("sync already in progress")
)

// APIError represents a non-2xx response from the library API.
type APIError struct {
	StatusCode int    `json:"code"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("API error %d (%s): %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the status codes the engines act on to sentinels.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return ErrAuthFailure
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return nil
	}
}

// Retryable reports whether the request may succeed if repeated.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// SyncError provides detailed per-item failure information.
type SyncError struct {
	Phase    string
	RemoteID string
	Path     string
	Err      error
}

func (e *SyncError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("sync %s: item %s: %s: %v", e.Phase, e.RemoteID, e.Path, e.Err)
	}
	return fmt.Sprintf("sync %s: item %s: %v", e.Phase, e.RemoteID, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}
