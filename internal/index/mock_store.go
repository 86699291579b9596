package index

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/TheMichaelB/photosync/internal/models"
)

// MockStore provides an in-memory Store for testing.
type MockStore struct {
	mu      sync.RWMutex
	nextID  int64
	items   map[int64]*models.MediaItem
	markers map[string]string

	// Fail, when set, is consulted before every mutation; a non-nil result is returned as the error.
	Fail func(op string, id int64) error
}

// NewMockStore creates a mock index store.
func NewMockStore() *MockStore {
	return &MockStore{
		items:   make(map[int64]*models.MediaItem),
		markers: make(map[string]string),
	}
}

func (m *MockStore) fail(op string, id int64) error {
	if m.Fail == nil {
		return nil
	}
	return m.Fail(op, id)
}

// Insert adds a pending item.
func (m *MockStore) Insert(item *models.MediaItem) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("insert", 0); err != nil {
		return 0, err
	}
	for _, existing := range m.items {
		if existing.RemoteID == item.RemoteID {
			return 0, fmt.Errorf("insert %s: %w", item.RemoteID, models.ErrDuplicate)
		}
	}

	m.nextID++
	item.ID = m.nextID
	item.State = models.StatePending
	copy := *item
	m.items[copy.ID] = &copy
	return copy.ID, nil
}

// Get looks an item up by remote id.
func (m *MockStore) Get(remoteID string) (*models.MediaItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, item := range m.items {
		if item.RemoteID == remoteID {
			copy := *item
			return &copy, nil
		}
	}
	return nil, ErrItemNotFound
}

// Pending returns pending items, newest first.
func (m *MockStore) Pending() ([]*models.MediaItem, error) {
	items := m.filter(func(item *models.MediaItem) bool {
		return item.State == models.StatePending
	})
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
	return items, nil
}

// Materialized returns stored and conflict items in id order.
func (m *MockStore) Materialized(fromID int64, notBefore time.Time) ([]*models.MediaItem, error) {
	items := m.filter(func(item *models.MediaItem) bool {
		return item.State != models.StatePending &&
			item.ID >= fromID &&
			(notBefore.IsZero() || !item.CreatedAt.Before(notBefore))
	})
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

// SetStorageState moves a pending item to stored or conflict.
func (m *MockStore) SetStorageState(id int64, state models.StorageState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("set_state", id); err != nil {
		return err
	}
	item, ok := m.items[id]
	if !ok || !item.State.CanTransition(state) {
		return fmt.Errorf("set state %s on item %d: %w", state, id, models.ErrInvalidTransition)
	}
	item.State = state
	return nil
}

// Delete removes an item row.
func (m *MockStore) Delete(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("delete", id); err != nil {
		return err
	}
	delete(m.items, id)
	return nil
}

// Marker reads a progress marker.
func (m *MockStore) Marker(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.markers[key]
	return value, ok, nil
}

// SetMarker writes a progress marker.
func (m *MockStore) SetMarker(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fail("set_marker", 0); err != nil {
		return err
	}
	m.markers[key] = value
	return nil
}

// ClearMarker removes a progress marker.
func (m *MockStore) ClearMarker(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.markers, key)
	return nil
}

// Counts returns the number of items per storage state.
func (m *MockStore) Counts() (map[models.StorageState]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := map[models.StorageState]int{
		models.StatePending:  0,
		models.StateStored:   0,
		models.StateConflict: 0,
	}
	for _, item := range m.items {
		counts[item.State]++
	}
	return counts, nil
}

// Close closes the store (no-op for mock).
func (m *MockStore) Close() error {
	return nil
}

// Len returns the number of rows.
func (m *MockStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *MockStore) filter(keep func(*models.MediaItem) bool) []*models.MediaItem {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var items []*models.MediaItem
	for _, item := range m.items {
		if keep(item) {
			copy := *item
			items = append(items, &copy)
		}
	}
	return items
}
