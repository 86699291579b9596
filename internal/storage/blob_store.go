package storage

import (
	"errors"
	"io"
)

// BlobStore manages files under one media root.
type BlobStore interface {
	// WriteStream saves data from a reader via a temp file and rename.
	// An existing target yields ErrFileExists and is left untouched.
	WriteStream(path string, reader io.Reader) (int64, error)

	// Delete removes a file. A missing file is not an error.
	Delete(path string) error

	// Exists checks if a file exists.
	Exists(path string) (bool, error)

	// EnsureDir creates a directory if it doesn't exist.
	EnsureDir(path string) error

	// Root returns the absolute root directory.
	Root() string
}

// Errors
var (
	ErrFileExists   = errors.New("file already exists")
	ErrFileTooLarge = errors.New("file too large")
	ErrInvalidPath  = errors.New("invalid path")
)
