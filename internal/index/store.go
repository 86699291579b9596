package index

import (
	"errors"
	"time"

	"github.com/TheMichaelB/photosync/internal/models"
)

// Store manages the item index and its sync progress markers.
//
// Every mutation commits on its own; there are no multi-row transactions.
type Store interface {
	// Insert adds a pending item and returns its row id. A known remote id yields models.ErrDuplicate.
	Insert(item *models.MediaItem) (int64, error)

	// Get looks an item up by remote id.
	Get(remoteID string) (*models.MediaItem, error)

	// Pending returns items not yet materialized, newest first.
	Pending() ([]*models.MediaItem, error)

	// Materialized returns stored and conflict items with id >= fromID
	// created at or after notBefore (zero = unbounded), ordered by id.
	Materialized(fromID int64, notBefore time.Time) ([]*models.MediaItem, error)

	// SetStorageState moves a pending item to stored or conflict.
	SetStorageState(id int64, state models.StorageState) error

	// Delete removes an item row.
	Delete(id int64) error

	// Marker reads a progress marker. ok is false when unset.
	Marker(key string) (value string, ok bool, err error)

	// SetMarker writes a progress marker.
	SetMarker(key, value string) error

	// ClearMarker removes a progress marker.
	ClearMarker(key string) error

	// Counts returns the number of items per storage state.
	Counts() (map[models.StorageState]int, error)

	// Close releases resources.
	Close() error
}

// Progress marker keys.
const (
	KeyListComplete       = "list_complete"
	KeyLastReconciliation = "last_reconciliation_at"
	KeyResumeMarker       = "reconciliation_resume_marker"
)

// Errors
var (
	ErrItemNotFound = errors.New("item not in index")
)
