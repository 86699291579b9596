package storage

import (
	"fmt"
	"io"
	"path"
	"sync"
)

// MockStore provides an in-memory BlobStore for testing.
type MockStore struct {
	mu    sync.RWMutex
	files map[string][]byte
	dirs  map[string]bool

	// Fail, when set, is consulted before every operation; a non-nil result is returned as the error.
	Fail func(op, path string) error
}

// NewMockStore creates a mock blob store.
func NewMockStore() *MockStore {
	return &MockStore{
		files: make(map[string][]byte),
		dirs:  make(map[string]bool),
	}
}

func (m *MockStore) fail(op, p string) error {
	if m.Fail == nil {
		return nil
	}
	return m.Fail(op, p)
}

// WriteStream saves data from a reader.
func (m *MockStore) WriteStream(p string, reader io.Reader) (int64, error) {
	if err := m.fail("write", p); err != nil {
		return 0, err
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return 0, fmt.Errorf("write stream: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.files[p]; ok {
		return 0, fmt.Errorf("%s: %w", p, ErrFileExists)
	}
	m.files[p] = data
	return int64(len(data)), nil
}

// Delete removes a file.
func (m *MockStore) Delete(p string) error {
	if err := m.fail("delete", p); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, p)
	return nil
}

// Exists checks if a file exists.
func (m *MockStore) Exists(p string) (bool, error) {
	if err := m.fail("exists", p); err != nil {
		return false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	_, exists := m.files[p]
	return exists, nil
}

// EnsureDir creates a directory.
func (m *MockStore) EnsureDir(p string) error {
	if err := m.fail("mkdir", p); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs[path.Clean(p)] = true
	return nil
}

// Root returns a fixed pseudo root.
func (m *MockStore) Root() string {
	return "/mock"
}

// Helper methods for testing

// Put stores a file directly (for test setup).
func (m *MockStore) Put(p string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[p] = data
}

// Read returns a file's contents.
func (m *MockStore) Read(p string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.files[p]
	return data, ok
}

// HasDir reports whether EnsureDir was called for p.
func (m *MockStore) HasDir(p string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dirs[path.Clean(p)]
}

// FileCount returns the number of stored files.
func (m *MockStore) FileCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}
