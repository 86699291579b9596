package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/TheMichaelB/photosync/internal/events"
)

// partialDir holds in-flight writes below the store root. Year directories
// are digits only, so it never collides with a mirrored path.
const partialDir = ".partial"

// LocalStore implements BlobStore on the local file system.
type LocalStore struct {
	baseDir string
	logger  *events.Logger

	chunkSize     int
	maxPathLength int
	maxFileSize   int64
}

// NewLocalStore creates a local file store rooted at baseDir.
func NewLocalStore(baseDir string, logger *events.Logger) (*LocalStore, error) {
	absPath, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("resolve base directory: %w", err)
	}

	if err := os.MkdirAll(absPath, 0755); err != nil {
		return nil, fmt.Errorf("create base directory: %w", err)
	}

	s := &LocalStore{
		baseDir:       absPath,
		logger:        logger.WithField("component", "local_store"),
		chunkSize:     8 * 1024,
		maxPathLength: 4096,
		maxFileSize:   16 * 1024 * 1024 * 1024, // 16GB
	}

	if err := s.sweepPartial(); err != nil {
		return nil, err
	}

	return s, nil
}

// sweepPartial removes writes left behind by an interrupted process.
func (s *LocalStore) sweepPartial() error {
	dir := filepath.Join(s.baseDir, partialDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read partial directory: %w", err)
	}

	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("remove partial write %s: %w", entry.Name(), err)
		}
	}

	if len(entries) > 0 {
		s.logger.WithField("count", len(entries)).Info("Removed interrupted writes")
	}
	return nil
}

// SetMaxFileSize sets the maximum file size limit.
func (s *LocalStore) SetMaxFileSize(size int64) {
	s.maxFileSize = size
}

// SetChunkSize sets the copy buffer size used by WriteStream.
func (s *LocalStore) SetChunkSize(size int) {
	if size > 0 {
		s.chunkSize = size
	}
}

// Root returns the absolute root directory.
func (s *LocalStore) Root() string {
	return s.baseDir
}

// WriteStream copies reader into path in fixed-size chunks.
func (s *LocalStore) WriteStream(path string, reader io.Reader) (int64, error) {
	safePath, err := s.sanitizePath(path)
	if err != nil {
		return 0, fmt.Errorf("sanitize path: %w", err)
	}

	if exists, err := s.Exists(path); err != nil {
		return 0, err
	} else if exists {
		return 0, fmt.Errorf("%s: %w", path, ErrFileExists)
	}

	parentDir := filepath.Dir(safePath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		return 0, fmt.Errorf("create parent directory: %w", err)
	}

	tempDir := filepath.Join(s.baseDir, partialDir)
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return 0, fmt.Errorf("create partial directory: %w", err)
	}

	tempFile, err := os.CreateTemp(tempDir, filepath.Base(safePath)+".*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()

	success := false
	defer func() {
		tempFile.Close()
		if !success {
			os.Remove(tempPath)
		}
	}()

	if err := tempFile.Chmod(0644); err != nil {
		return 0, fmt.Errorf("chmod temp file: %w", err)
	}

	limited := &io.LimitedReader{
		R: reader,
		N: s.maxFileSize + 1, // +1 to detect oversized
	}

	// Hide ReadFrom so the copy always goes through the fixed buffer.
	buf := make([]byte, s.chunkSize)
	written, err := io.CopyBuffer(struct{ io.Writer }{tempFile}, limited, buf)
	if err != nil {
		return written, fmt.Errorf("write stream: %w", err)
	}

	if limited.N <= 0 {
		return written, fmt.Errorf("%w: exceeds %d bytes", ErrFileTooLarge, s.maxFileSize)
	}

	if err := tempFile.Sync(); err != nil {
		return written, fmt.Errorf("sync file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return written, fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tempPath, safePath); err != nil {
		return written, fmt.Errorf("rename temp file: %w", err)
	}

	success = true

	s.logger.WithFields(map[string]interface{}{
		"path": path,
		"size": written,
	}).Debug("Stream written")

	return written, nil
}

// Delete removes a file.
func (s *LocalStore) Delete(path string) error {
	safePath, err := s.sanitizePath(path)
	if err != nil {
		return fmt.Errorf("sanitize path: %w", err)
	}

	s.logger.WithField("path", path).Debug("Deleting file")

	if err := os.Remove(safePath); err != nil {
		if os.IsNotExist(err) {
			return nil // Already deleted
		}
		return fmt.Errorf("delete file: %w", err)
	}

	s.cleanEmptyDirs(filepath.Dir(safePath))

	return nil
}

// Exists checks if a file exists.
func (s *LocalStore) Exists(path string) (bool, error) {
	safePath, err := s.sanitizePath(path)
	if err != nil {
		return false, fmt.Errorf("sanitize path: %w", err)
	}

	_, err = os.Lstat(safePath)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// EnsureDir creates a directory if it doesn't exist.
func (s *LocalStore) EnsureDir(path string) error {
	safePath, err := s.sanitizePath(path)
	if err != nil {
		return fmt.Errorf("sanitize path: %w", err)
	}

	if err := os.MkdirAll(safePath, 0755); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

// sanitizePath validates a relative path and joins it onto the base directory.
func (s *LocalStore) sanitizePath(path string) (string, error) {
	if strings.ContainsRune(path, 0) {
		return "", fmt.Errorf("%w: contains null bytes", ErrInvalidPath)
	}

	cleaned := filepath.Clean(filepath.FromSlash(path))
	cleaned = strings.TrimPrefix(cleaned, string(filepath.Separator))

	parts := strings.Split(cleaned, string(filepath.Separator))
	for _, part := range parts {
		if part == ".." {
			return "", fmt.Errorf("%w: contains '..'", ErrInvalidPath)
		}
	}
	if parts[0] == partialDir {
		return "", fmt.Errorf("%w: reserved directory %s", ErrInvalidPath, partialDir)
	}

	fullPath := filepath.Join(s.baseDir, cleaned)

	if !strings.HasPrefix(fullPath, s.baseDir+string(filepath.Separator)) && fullPath != s.baseDir {
		return "", fmt.Errorf("%w: escapes base directory", ErrInvalidPath)
	}

	if len(fullPath) > s.maxPathLength {
		return "", fmt.Errorf("%w: too long: %d characters (max: %d)", ErrInvalidPath, len(fullPath), s.maxPathLength)
	}

	return fullPath, nil
}

// cleanEmptyDirs removes empty parent directories up to the base directory.
func (s *LocalStore) cleanEmptyDirs(dirPath string) {
	for dirPath != s.baseDir && strings.HasPrefix(dirPath, s.baseDir) {
		entries, err := os.ReadDir(dirPath)
		if err != nil || len(entries) > 0 {
			break
		}

		if err := os.Remove(dirPath); err != nil {
			break
		}

		dirPath = filepath.Dir(dirPath)
	}
}
