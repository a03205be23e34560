// Package core wires persistence, evidence storage, and the progress rules
// into the application service consumed by the CLI and future transports.
package core

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"sporelab/internal/evidence"
	"sporelab/internal/raster"
	"sporelab/pkg/domain"
)

// Gate errors for the sequential repetition workflow.
var (
	// ErrRepetitionLocked means the test's repetition is not reachable yet:
	// the previous repetition has not been fully completed.
	ErrRepetitionLocked = errors.New("core: repetition is locked")
	// ErrExperimentClosed means every repetition is done and the experiment
	// no longer accepts edits.
	ErrExperimentClosed = errors.New("core: experiment is closed")
)

// Service exposes the experiment evidence and progress operations.
type Service struct {
	store    domain.PersistentStore
	evidence *evidence.Store
	log      *slog.Logger
	metrics  MetricsRecorder
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService constructs a service over the given backends.
func NewService(store domain.PersistentStore, ev *evidence.Store, opts ...Option) *Service {
	s := &Service{store: store, evidence: ev, log: slog.Default(), metrics: NopMetricsRecorder{}}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) observe(ctx context.Context, op string, start time.Time, err error) {
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
	if err != nil {
		s.log.Error("operation failed", "op", op, "error", err)
	}
}

// CreateExperiment registers a new experiment.
func (s *Service) CreateExperiment(ctx context.Context, exp domain.Experiment) (out domain.Experiment, err error) {
	defer func(start time.Time) { s.observe(ctx, "create_experiment", start, err) }(time.Now())
	err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var txErr error
		out, txErr = tx.CreateExperiment(exp)
		return txErr
	})
	return out, err
}

// UpdateExperiment applies mutator to the stored experiment.
func (s *Service) UpdateExperiment(ctx context.Context, id string, mutator func(*domain.Experiment) error) (out domain.Experiment, err error) {
	defer func(start time.Time) { s.observe(ctx, "update_experiment", start, err) }(time.Now())
	err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var txErr error
		out, txErr = tx.UpdateExperiment(id, mutator)
		return txErr
	})
	return out, err
}

// DeleteExperiment removes the experiment with its tests and photo rows.
// Stored blobs become orphans and are reclaimed by the sweep.
func (s *Service) DeleteExperiment(ctx context.Context, id string) (err error) {
	defer func(start time.Time) { s.observe(ctx, "delete_experiment", start, err) }(time.Now())
	return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.DeleteExperiment(id)
	})
}

// GetExperiment fetches one experiment.
func (s *Service) GetExperiment(ctx context.Context, id string) (domain.Experiment, error) {
	exp, ok := s.store.GetExperiment(id)
	if !ok {
		return domain.Experiment{}, domain.ErrNotFound{Entity: "experiment", ID: id}
	}
	return exp, nil
}

// ListExperiments returns all experiments ordered by number.
func (s *Service) ListExperiments(ctx context.Context) []domain.Experiment {
	return s.store.ListExperiments()
}

// snapshotFor pairs a record with its current single-photo paths.
func snapshotFor(v domain.TransactionView, rec domain.TestRecord) *domain.TestSnapshot {
	snap := &domain.TestSnapshot{TestRecord: rec}
	for _, a := range v.ListDayPhotoAssets(rec.ID, domain.Day7, domain.KindSingle) {
		snap.Photos7Day = append(snap.Photos7Day, a.StoragePath)
	}
	for _, a := range v.ListDayPhotoAssets(rec.ID, domain.Day14, domain.KindSingle) {
		snap.Photos14Day = append(snap.Photos14Day, a.StoragePath)
	}
	return snap
}

// Progress derives the full dashboard state of an experiment.
func (s *Service) Progress(ctx context.Context, experimentID string) (out domain.ExperimentProgress, err error) {
	defer func(start time.Time) { s.observe(ctx, "progress", start, err) }(time.Now())
	err = s.store.View(ctx, func(v domain.TransactionView) error {
		exp, ok := v.GetExperiment(experimentID)
		if !ok {
			return domain.ErrNotFound{Entity: "experiment", ID: experimentID}
		}
		out = domain.ComputeProgress(exp, func(rep, test int) *domain.TestSnapshot {
			rec, found := v.FindTest(experimentID, rep, test)
			if !found {
				return nil
			}
			return snapshotFor(v, rec)
		})
		return nil
	})
	return out, err
}

// TestSnapshot fetches a record with its photo listing.
func (s *Service) TestSnapshot(ctx context.Context, testID string) (*domain.TestSnapshot, error) {
	var snap *domain.TestSnapshot
	err := s.store.View(ctx, func(v domain.TransactionView) error {
		rec, ok := v.GetTest(testID)
		if !ok {
			return domain.ErrNotFound{Entity: "test", ID: testID}
		}
		snap = snapshotFor(v, rec)
		return nil
	})
	return snap, err
}

// gate rejects writes to closed experiments and locked repetitions.
func (s *Service) gate(ctx context.Context, experimentID string, repetition int) error {
	progress, err := s.Progress(ctx, experimentID)
	if err != nil {
		return err
	}
	if progress.AllRepetitionsDone {
		return ErrExperimentClosed
	}
	for _, rep := range progress.Repetitions {
		if rep.Number == repetition {
			if rep.State == domain.StateLocked {
				return ErrRepetitionLocked
			}
			return nil
		}
	}
	return fmt.Errorf("core: repetition %d out of range", repetition)
}

// UpsertTest stores the full record after the repetition gate admits it.
func (s *Service) UpsertTest(ctx context.Context, rec domain.TestRecord) (out domain.TestRecord, err error) {
	defer func(start time.Time) { s.observe(ctx, "upsert_test", start, err) }(time.Now())
	if err = s.gate(ctx, rec.ExperimentID, rec.RepetitionNumber); err != nil {
		return domain.TestRecord{}, err
	}
	err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var txErr error
		out, txErr = tx.UpsertTest(rec)
		return txErr
	})
	return out, err
}

// ReplaceDayPhotos swaps the test's photo set for one checkpoint day. The
// same repetition gate as for field entry applies.
func (s *Service) ReplaceDayPhotos(ctx context.Context, testID string, day domain.CheckDay, photos []evidence.PhotoInput) (n int, err error) {
	defer func(start time.Time) { s.observe(ctx, "replace_day_photos", start, err) }(time.Now())
	rec, ok := s.store.GetTest(testID)
	if !ok {
		return 0, domain.ErrNotFound{Entity: "test", ID: testID}
	}
	exp, ok := s.store.GetExperiment(rec.ExperimentID)
	if !ok {
		return 0, domain.ErrNotFound{Entity: "experiment", ID: rec.ExperimentID}
	}
	if err = s.gate(ctx, exp.ID, rec.RepetitionNumber); err != nil {
		return 0, err
	}
	return s.evidence.ReplaceDayPhotos(ctx, exp.OwnerID, testID, day, photos)
}

// GalleryItem is one photo of a test gallery with its resolved URL and the
// markers placed on it, so callers can redraw annotations over the photo
// without decoding pixels.
type GalleryItem struct {
	Asset       domain.PhotoAsset
	URL         string
	Annotations []domain.Annotation
}

// TestGallery lists the test's single photos for a day with signed URLs,
// ordered by photo index.
func (s *Service) TestGallery(ctx context.Context, testID string, day domain.CheckDay) (items []GalleryItem, err error) {
	defer func(start time.Time) { s.observe(ctx, "test_gallery", start, err) }(time.Now())
	rec, ok := s.store.GetTest(testID)
	if !ok {
		return nil, domain.ErrNotFound{Entity: "test", ID: testID}
	}
	assets := s.store.ListDayPhotoAssets(testID, day, domain.KindSingle)
	paths := make([]string, len(assets))
	for i, a := range assets {
		paths[i] = a.StoragePath
	}
	urls := s.evidence.SignedURLs(ctx, paths)
	markers := rec.AnnotationsFor(day)
	items = make([]GalleryItem, len(assets))
	for i, a := range assets {
		items[i] = GalleryItem{Asset: a, URL: urls[i]}
		if a.PhotoIndex != nil {
			items[i].Annotations = markers[*a.PhotoIndex]
		}
	}
	return items, nil
}

// BuildDayMosaic composes the test's current single photos for a day into
// a merged grid and records it as the newest merged asset.
func (s *Service) BuildDayMosaic(ctx context.Context, testID string, day domain.CheckDay) (asset domain.PhotoAsset, err error) {
	defer func(start time.Time) { s.observe(ctx, "build_day_mosaic", start, err) }(time.Now())
	rec, ok := s.store.GetTest(testID)
	if !ok {
		return domain.PhotoAsset{}, domain.ErrNotFound{Entity: "test", ID: testID}
	}
	exp, ok := s.store.GetExperiment(rec.ExperimentID)
	if !ok {
		return domain.PhotoAsset{}, domain.ErrNotFound{Entity: "experiment", ID: rec.ExperimentID}
	}
	singles := s.store.ListDayPhotoAssets(testID, day, domain.KindSingle)
	if len(singles) == 0 {
		return domain.PhotoAsset{}, fmt.Errorf("core: test %s has no day %d photos to merge", testID, day)
	}
	images := make([]image.Image, 0, len(singles))
	for _, a := range singles {
		data, gerr := s.evidence.GetPhoto(ctx, a.StoragePath)
		if gerr != nil {
			return domain.PhotoAsset{}, gerr
		}
		img, derr := raster.Decode(data)
		if derr != nil {
			return domain.PhotoAsset{}, derr
		}
		images = append(images, img)
	}
	grid, err := raster.DayMosaic(images)
	if err != nil {
		return domain.PhotoAsset{}, err
	}
	data, err := raster.EncodeJPEG(grid)
	if err != nil {
		return domain.PhotoAsset{}, err
	}
	return s.evidence.PutMosaic(ctx, exp.OwnerID, testID, day, data)
}

// OrphanSweep reclaims unreferenced blobs older than minAge.
func (s *Service) OrphanSweep(ctx context.Context, minAge time.Duration) (removed int, err error) {
	defer func(start time.Time) { s.observe(ctx, "orphan_sweep", start, err) }(time.Now())
	return s.evidence.OrphanSweep(ctx, minAge)
}
