package ledger

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/Veraticus/tripwallet/internal/model"
)

// DefaultFilePath is the ledger location when none is configured.
const DefaultFilePath = "expenses.csv"

// FileDocument stores the ledger as a CSV file on the local filesystem.
type FileDocument struct {
	path string
}

// NewFileDocument creates a document at path.
func NewFileDocument(path string) *FileDocument {
	if path == "" {
		path = DefaultFilePath
	}
	return &FileDocument{path: path}
}

// NewFileStore returns a Store backed by a local CSV file.
func NewFileStore(path string, logger *slog.Logger) *WholeFileStore {
	return NewWholeFileStore(NewFileDocument(path), logger)
}

// Name implements Document.
func (d *FileDocument) Name() string {
	return "file:" + d.path
}

// Read implements Document.
func (d *FileDocument) Read(_ context.Context) (Snapshot, error) {
	f, err := os.Open(d.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	defer f.Close()

	records, _, err := Decode(f)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %s: %w", ErrStorageUnavailable, d.path, err)
	}
	return Snapshot{Records: records, Exists: true}, nil
}

// Write implements Document. The file is replaced through a rename so a
// crash never leaves a half-written ledger.
func (d *FileDocument) Write(_ context.Context, records []model.ExpenseRecord, _ Snapshot) error {
	data, err := Marshal(records)
	if err != nil {
		return err
	}

	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*.csv")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if err := os.Rename(tmpName, d.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

// Delete implements Document. Deleting a missing file is not an error.
func (d *FileDocument) Delete(_ context.Context) error {
	err := os.Remove(d.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}
