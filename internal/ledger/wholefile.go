package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/tripwallet/internal/model"
)

// Snapshot is a ledger as read from a Document.
type Snapshot struct {
	Records []model.ExpenseRecord
	// Revision is the backend's version token (a blob SHA for GitHub), if any.
	Revision string
	// Rows is the stored row count including the header and blank rows,
	// for backends that address rows.
	Rows   int
	Exists bool
}

// Document is a backend that can only read and write the whole ledger at once.
type Document interface {
	// Read returns Exists=false and a nil error when no ledger exists yet.
	Read(ctx context.Context) (Snapshot, error)
	// Write replaces the ledger. prev is the snapshot the change was based on;
	// backends with revisions use it as a write precondition.
	Write(ctx context.Context, records []model.ExpenseRecord, prev Snapshot) error
	Delete(ctx context.Context) error
	// Name identifies the backend in logs.
	Name() string
}

// WholeFileStore implements Store over a Document by read-modify-write.
// It does not serialize callers; wrap it in Serialized for that.
type WholeFileStore struct {
	doc    Document
	logger *slog.Logger
}

// NewWholeFileStore creates a Store over doc.
func NewWholeFileStore(doc Document, logger *slog.Logger) *WholeFileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &WholeFileStore{doc: doc, logger: logger.With("backend", doc.Name())}
}

// LoadAll implements Store.
func (s *WholeFileStore) LoadAll(ctx context.Context) ([]model.ExpenseRecord, error) {
	snap, err := s.doc.Read(ctx)
	if err != nil {
		return nil, err
	}
	if snap.Records == nil {
		return []model.ExpenseRecord{}, nil
	}
	return snap.Records, nil
}

// Append implements Store.
func (s *WholeFileStore) Append(ctx context.Context, record model.ExpenseRecord) error {
	snap, err := s.doc.Read(ctx)
	if err != nil {
		return err
	}

	records := make([]model.ExpenseRecord, 0, len(snap.Records)+1)
	records = append(records, snap.Records...)
	records = append(records, record)

	if err := s.doc.Write(ctx, records, snap); err != nil {
		return err
	}

	s.logger.Debug("appended record", "id", record.ID, "records", len(records))
	return nil
}

// RemoveLast implements Store.
func (s *WholeFileStore) RemoveLast(ctx context.Context) (model.ExpenseRecord, error) {
	return s.rewrite(ctx, dropLast)
}

// Remove implements Store.
func (s *WholeFileStore) Remove(ctx context.Context, id string) (model.ExpenseRecord, error) {
	return s.rewrite(ctx, func(records []model.ExpenseRecord) ([]model.ExpenseRecord, model.ExpenseRecord, error) {
		return dropByID(records, id)
	})
}

// Reset implements Store.
func (s *WholeFileStore) Reset(ctx context.Context) error {
	if err := s.doc.Delete(ctx); err != nil {
		return err
	}
	s.logger.Info("ledger reset")
	return nil
}

func (s *WholeFileStore) rewrite(
	ctx context.Context,
	edit func([]model.ExpenseRecord) ([]model.ExpenseRecord, model.ExpenseRecord, error),
) (model.ExpenseRecord, error) {
	snap, err := s.doc.Read(ctx)
	if err != nil {
		return model.ExpenseRecord{}, err
	}

	rest, removed, err := edit(snap.Records)
	if err != nil {
		return model.ExpenseRecord{}, err
	}

	if err := s.doc.Write(ctx, rest, snap); err != nil {
		return model.ExpenseRecord{}, fmt.Errorf("failed to remove record %s: %w", removed.ID, err)
	}

	s.logger.Debug("removed record", "id", removed.ID, "records", len(rest))
	return removed, nil
}
