package index

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/TheMichaelB/photosync/internal/events"
	"github.com/TheMichaelB/photosync/internal/models"
)

// SQLiteStore implements Store on a pre-provisioned SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *events.Logger
}

// Open opens an existing index database. It never creates tables:
// a missing file or schema is reported as models.ErrSchemaMissing.
func Open(dbPath string, logger *events.Logger) (*SQLiteStore, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("open index %s: %w: %v", dbPath, models.ErrSchemaMissing, err)
	}

	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=rw&_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{
		db:     db,
		logger: logger.WithField("component", "item_index"),
	}

	if err := store.verifySchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) verifySchema() error {
	var tables int
	err := s.db.QueryRow(`
        SELECT COUNT(*) FROM sqlite_master
        WHERE type = 'table' AND name IN ('media_items', 'sync_progress')
    `).Scan(&tables)
	if err != nil {
		return fmt.Errorf("inspect schema: %w", err)
	}
	if tables != 2 {
		return fmt.Errorf("verify schema: %w", models.ErrSchemaMissing)
	}
	return nil
}

// Insert adds a pending item.
func (s *SQLiteStore) Insert(item *models.MediaItem) (int64, error) {
	res, err := s.db.Exec(`
        INSERT INTO media_items (remote_id, filename, media_kind, mime_type, creation_time, storage_state)
        VALUES (?, ?, ?, ?, ?, ?)
    `, item.RemoteID, item.Filename, string(item.Kind), item.MimeType,
		item.CreatedAt.UTC().Format(models.TimestampLayout), int(models.StatePending))

	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return 0, fmt.Errorf("insert %s: %w", item.RemoteID, models.ErrDuplicate)
		}
		return 0, fmt.Errorf("insert %s: %w", item.RemoteID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert %s: last id: %w", item.RemoteID, err)
	}
	item.ID = id
	item.State = models.StatePending

	return id, nil
}

// Get looks an item up by remote id.
func (s *SQLiteStore) Get(remoteID string) (*models.MediaItem, error) {
	row := s.db.QueryRow(selectItems+" WHERE remote_id = ?", remoteID)

	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", remoteID, err)
	}
	return item, nil
}

// Pending returns pending items, newest creation time first.
func (s *SQLiteStore) Pending() ([]*models.MediaItem, error) {
	return s.query(selectItems+" WHERE storage_state = ? ORDER BY creation_time DESC, id DESC",
		int(models.StatePending))
}

// Materialized returns stored and conflict items in id order.
func (s *SQLiteStore) Materialized(fromID int64, notBefore time.Time) ([]*models.MediaItem, error) {
	q := selectItems + " WHERE storage_state != ? AND id >= ?"
	args := []interface{}{int(models.StatePending), fromID}

	if !notBefore.IsZero() {
		q += " AND creation_time >= ?"
		args = append(args, notBefore.UTC().Format(models.TimestampLayout))
	}

	return s.query(q+" ORDER BY id", args...)
}

// SetStorageState moves a pending item to stored or conflict.
func (s *SQLiteStore) SetStorageState(id int64, state models.StorageState) error {
	if !models.StatePending.CanTransition(state) {
		return fmt.Errorf("set state %s on item %d: %w", state, id, models.ErrInvalidTransition)
	}

	res, err := s.db.Exec(`
        UPDATE media_items SET storage_state = ?
        WHERE id = ? AND storage_state = ?
    `, int(state), id, int(models.StatePending))
	if err != nil {
		return fmt.Errorf("update state of item %d: %w", id, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update state of item %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("set state %s on item %d: %w", state, id, models.ErrInvalidTransition)
	}

	return nil
}

// Delete removes an item row.
func (s *SQLiteStore) Delete(id int64) error {
	if _, err := s.db.Exec("DELETE FROM media_items WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete item %d: %w", id, err)
	}
	return nil
}

// Marker reads a progress marker.
func (s *SQLiteStore) Marker(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM sync_progress WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read marker %s: %w", key, err)
	}
	return value, true, nil
}

// SetMarker writes a progress marker.
func (s *SQLiteStore) SetMarker(key, value string) error {
	s.logger.WithFields(map[string]interface{}{
		"key":   key,
		"value": value,
	}).Debug("Writing progress marker")

	_, err := s.db.Exec(`
        INSERT INTO sync_progress (key, value) VALUES (?, ?)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value
    `, key, value)
	if err != nil {
		return fmt.Errorf("write marker %s: %w", key, err)
	}
	return nil
}

// ClearMarker removes a progress marker.
func (s *SQLiteStore) ClearMarker(key string) error {
	if _, err := s.db.Exec("DELETE FROM sync_progress WHERE key = ?", key); err != nil {
		return fmt.Errorf("clear marker %s: %w", key, err)
	}
	return nil
}

// Counts returns the number of items per storage state.
func (s *SQLiteStore) Counts() (map[models.StorageState]int, error) {
	rows, err := s.db.Query("SELECT storage_state, COUNT(*) FROM media_items GROUP BY storage_state")
	if err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}
	defer rows.Close()

	counts := map[models.StorageState]int{
		models.StatePending:  0,
		models.StateStored:   0,
		models.StateConflict: 0,
	}
	for rows.Next() {
		var state, n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[models.StorageState(state)] = n
	}

	return counts, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const selectItems = `
    SELECT id, remote_id, filename, media_kind, mime_type, creation_time, storage_state
    FROM media_items`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row scanner) (*models.MediaItem, error) {
	var (
		item    models.MediaItem
		kind    string
		created string
		state   int
	)
	if err := row.Scan(&item.ID, &item.RemoteID, &item.Filename, &kind, &item.MimeType, &created, &state); err != nil {
		return nil, err
	}

	t, err := time.Parse(models.TimestampLayout, created)
	if err != nil {
		return nil, fmt.Errorf("item %d: parse creation time %q: %w", item.ID, created, err)
	}

	item.Kind = models.MediaKind(kind)
	item.CreatedAt = t
	item.State = models.StorageState(state)
	return &item, nil
}

func (s *SQLiteStore) query(q string, args ...interface{}) ([]*models.MediaItem, error) {
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()

	var items []*models.MediaItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}
