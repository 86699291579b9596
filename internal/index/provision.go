package index

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

//go:embed schema.sql
var schemaSQL string

// Schema returns the schema template used when no template database is configured.
func Schema() string {
	return schemaSQL
}

// Exists reports whether an index database is present at path.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", path, err)
}

// Provision creates the index database at dst. With a template path the
// template file is copied; otherwise the embedded schema is applied to a new
// database. An existing dst is left untouched.
func Provision(dst, template string) error {
	exists, err := Exists(dst)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0700); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	if template != "" {
		return copyTemplate(dst, template)
	}
	return createFromSchema(dst)
}

func copyTemplate(dst, template string) error {
	src, err := os.Open(template)
	if err != nil {
		return fmt.Errorf("open template: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".index-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("copy template: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename template copy: %w", err)
	}
	return nil
}

func createFromSchema(dst string) error {
	db, err := sql.Open("sqlite3", dst)
	if err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	defer db.Close()

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		os.Remove(dst)
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
