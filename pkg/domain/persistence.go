package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound reports a missing entity by type and identifier.
type ErrNotFound struct {
	Entity string
	ID     string
}

func (e ErrNotFound) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ErrRevisionConflict is returned by UpsertTest when the supplied revision
// token no longer matches the stored record (a concurrent edit won).
var ErrRevisionConflict = errors.New("test record revision conflict")

// Transaction exposes the mutations a persistence implementation must
// support within an atomic scope.
type Transaction interface {
	CreateExperiment(Experiment) (Experiment, error)
	UpdateExperiment(id string, mutator func(*Experiment) error) (Experiment, error)
	// DeleteExperiment removes the experiment and cascades to its test
	// records and photo metadata rows.
	DeleteExperiment(id string) error
	// UpsertTest replaces the full record keyed on
	// (experiment, repetition, test number). Partial patches do not exist.
	// A non-zero Revision must match the stored record or the upsert fails
	// with ErrRevisionConflict.
	UpsertTest(TestRecord) (TestRecord, error)
	// InsertPhotoAssets writes a batch of metadata rows; all or none.
	InsertPhotoAssets([]PhotoAsset) error
	DeletePhotoAssets(ids []string) error
}

// TransactionView provides read-only access to committed state.
type TransactionView interface {
	GetExperiment(id string) (Experiment, bool)
	ListExperiments() []Experiment
	FindTest(experimentID string, repetition, testNumber int) (TestRecord, bool)
	GetTest(id string) (TestRecord, bool)
	ListTestsByExperiment(experimentID string) []TestRecord
	// ListPhotoAssets returns all rows for a test ordered by
	// (photo index, creation time).
	ListPhotoAssets(testID string) []PhotoAsset
	// ListDayPhotoAssets filters by checkpoint day and kind, same ordering.
	ListDayPhotoAssets(testID string, day CheckDay, kind PhotoKind) []PhotoAsset
	// LatestMerged returns the most recently created merged asset for the
	// test and day, if any.
	LatestMerged(testID string, day CheckDay) (PhotoAsset, bool)
}

// PersistentStore is the minimal abstraction over durable backends consumed
// by the service layer.
type PersistentStore interface {
	TransactionView
	RunInTransaction(ctx context.Context, fn func(Transaction) error) error
	View(ctx context.Context, fn func(TransactionView) error) error
}
