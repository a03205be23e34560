package evidence

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"sporelab/internal/blob"
	"sporelab/internal/signedurl"
	"sporelab/pkg/domain"
)

// ErrMixedPhotoSources is returned when a replace batch mixes fresh bytes
// with references to already stored photos. A batch is either all-new or
// all-kept; partial replacement of a day is not supported.
var ErrMixedPhotoSources = errors.New("evidence: photo batch mixes new uploads and existing references")

// PhotoInput is one slot of a day batch. Exactly one of Data or Ref is set:
// Data carries freshly captured bytes, Ref names a storage path that is
// already persisted and should be kept as-is.
type PhotoInput struct {
	Data        []byte
	ContentType string
	Ref         string
}

// Store coordinates blob writes with metadata rows so that readers always
// see a consistent photo set for a test and day.
type Store struct {
	db     domain.PersistentStore
	blobs  blob.Store
	cache  *signedurl.Cache
	log    *slog.Logger
	now    func() time.Time
	newID  func() string
	urlTTL time.Duration
}

// Option customizes a Store.
type Option func(*Store)

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator injects the asset ID source, for tests.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// WithURLTTL sets the signed URL lifetime (default 1h).
func WithURLTTL(ttl time.Duration) Option {
	return func(s *Store) { s.urlTTL = ttl }
}

// NewStore wires an evidence store over the given persistence and blob
// backends.
func NewStore(db domain.PersistentStore, blobs blob.Store, cache *signedurl.Cache, log *slog.Logger, opts ...Option) *Store {
	if log == nil {
		log = slog.Default()
	}
	s := &Store{
		db:     db,
		blobs:  blobs,
		cache:  cache,
		log:    log,
		now:    time.Now,
		newID:  uuid.NewString,
		urlTTL: time.Hour,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ReplaceDayPhotos atomically replaces the active single-photo set of a test
// for one checkpoint day with the given batch. The sequence is upload-first:
// new blobs are written before any metadata changes, the row swap happens in
// one transaction, and only then are the superseded blobs removed. A failure
// before commit leaves the old set fully intact; blob deletions after commit
// are best-effort and never fail the call.
//
// A batch consisting entirely of Refs (or an empty batch) means "keep what
// is stored" and is a no-op. Returns the number of newly stored photos.
func (s *Store) ReplaceDayPhotos(ctx context.Context, ownerID, testID string, day domain.CheckDay, photos []PhotoInput) (int, error) {
	if !day.Valid() {
		return 0, fmt.Errorf("evidence: invalid checkpoint day %d", day)
	}
	if _, ok := s.db.GetTest(testID); !ok {
		return 0, domain.ErrNotFound{Entity: "test", ID: testID}
	}

	fresh := make([]PhotoInput, 0, len(photos))
	refs := 0
	for i, p := range photos {
		switch {
		case p.Ref != "" && len(p.Data) > 0:
			return 0, ErrMixedPhotoSources
		case p.Ref != "":
			refs++
		case len(p.Data) > 0:
			fresh = append(fresh, p)
		default:
			return 0, fmt.Errorf("evidence: photo slot %d has neither data nor reference", i)
		}
	}
	if refs > 0 && len(fresh) > 0 {
		return 0, ErrMixedPhotoSources
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	old := s.db.ListDayPhotoAssets(testID, day, domain.KindSingle)

	// Upload before touching rows so a failed write cannot lose the old set.
	stamp := s.now().UnixMilli()
	uploaded := make([]domain.PhotoAsset, 0, len(fresh))
	for slot, p := range fresh {
		path := BuildPhotoPath(ownerID, testID, day, slot+1, stamp+int64(slot))
		if err := ValidatePhotoPath(path, ownerID, testID); err != nil {
			s.cleanupBlobs(ctx, uploaded)
			return 0, err
		}
		ct := p.ContentType
		if ct == "" {
			ct = "image/jpeg"
		}
		if _, err := s.blobs.Put(ctx, path, bytes.NewReader(p.Data), blob.PutOptions{ContentType: ct}); err != nil {
			s.cleanupBlobs(ctx, uploaded)
			return 0, fmt.Errorf("evidence: upload slot %d: %w", slot, err)
		}
		idx := slot
		uploaded = append(uploaded, domain.PhotoAsset{
			ID:          s.newID(),
			TestID:      testID,
			Day:         day,
			Kind:        domain.KindSingle,
			PhotoIndex:  &idx,
			StoragePath: path,
			CreatedAt:   s.now().UTC(),
		})
	}

	err := s.db.RunInTransaction(ctx, func(tx domain.Transaction) error {
		if err := tx.InsertPhotoAssets(uploaded); err != nil {
			return err
		}
		oldIDs := make([]string, len(old))
		for i, a := range old {
			oldIDs[i] = a.ID
		}
		return tx.DeletePhotoAssets(oldIDs)
	})
	if err != nil {
		s.cleanupBlobs(ctx, uploaded)
		return 0, fmt.Errorf("evidence: swap photo rows: %w", err)
	}

	// Old binaries are unreachable now; removal failures only leak storage
	// and are picked up by the orphan sweep.
	for _, a := range old {
		if _, err := s.blobs.Delete(ctx, a.StoragePath); err != nil {
			s.log.Warn("superseded photo blob not deleted", "path", a.StoragePath, "error", err)
		}
	}
	if s.cache != nil {
		s.cache.Clear(ownerID + "/" + testID + "/")
	}
	return len(uploaded), nil
}

func (s *Store) cleanupBlobs(ctx context.Context, assets []domain.PhotoAsset) {
	for _, a := range assets {
		if _, err := s.blobs.Delete(ctx, a.StoragePath); err != nil {
			s.log.Warn("orphaned upload not cleaned", "path", a.StoragePath, "error", err)
		}
	}
}

// PutMosaic stores a derived day mosaic and records it as the latest merged
// asset for the test and day. Mosaics accumulate; readers take the newest.
// The key continues the day's photo numbering past the stored singles and
// earlier mosaics and passes the same path validation as a captured photo.
func (s *Store) PutMosaic(ctx context.Context, ownerID, testID string, day domain.CheckDay, jpegData []byte) (domain.PhotoAsset, error) {
	if !day.Valid() {
		return domain.PhotoAsset{}, fmt.Errorf("evidence: invalid checkpoint day %d", day)
	}
	number := len(s.db.ListDayPhotoAssets(testID, day, domain.KindSingle)) +
		len(s.db.ListDayPhotoAssets(testID, day, domain.KindMerged)) + 1
	path := BuildPhotoPath(ownerID, testID, day, number, s.now().UnixMilli())
	if err := ValidatePhotoPath(path, ownerID, testID); err != nil {
		return domain.PhotoAsset{}, err
	}
	if _, err := s.blobs.Put(ctx, path, bytes.NewReader(jpegData), blob.PutOptions{ContentType: "image/jpeg"}); err != nil {
		return domain.PhotoAsset{}, fmt.Errorf("evidence: upload mosaic: %w", err)
	}
	asset := domain.PhotoAsset{
		ID:          s.newID(),
		TestID:      testID,
		Day:         day,
		Kind:        domain.KindMerged,
		StoragePath: path,
		CreatedAt:   s.now().UTC(),
	}
	err := s.db.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return tx.InsertPhotoAssets([]domain.PhotoAsset{asset})
	})
	if err != nil {
		if _, derr := s.blobs.Delete(ctx, path); derr != nil {
			s.log.Warn("orphaned mosaic not cleaned", "path", path, "error", derr)
		}
		return domain.PhotoAsset{}, fmt.Errorf("evidence: record mosaic: %w", err)
	}
	return asset, nil
}

// GetPhoto reads a stored photo's bytes by storage path.
func (s *Store) GetPhoto(ctx context.Context, path string) ([]byte, error) {
	_, rc, err := s.blobs.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("evidence: read photo %s: %w", path, err)
	}
	defer func() { _ = rc.Close() }()
	return io.ReadAll(rc)
}

// OrphanSweep deletes stored blobs that no metadata row references and that
// are older than minAge. Returns the number of blobs removed.
func (s *Store) OrphanSweep(ctx context.Context, minAge time.Duration) (int, error) {
	referenced := make(map[string]struct{})
	err := s.db.View(ctx, func(v domain.TransactionView) error {
		for _, exp := range v.ListExperiments() {
			for _, t := range v.ListTestsByExperiment(exp.ID) {
				for _, a := range v.ListPhotoAssets(t.ID) {
					referenced[a.StoragePath] = struct{}{}
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	infos, err := s.blobs.List(ctx, "")
	if err != nil {
		return 0, fmt.Errorf("evidence: list blobs: %w", err)
	}
	cutoff := s.now().Add(-minAge)
	removed := 0
	for _, info := range infos {
		if _, ok := referenced[info.Key]; ok {
			continue
		}
		if info.LastModified.After(cutoff) {
			continue
		}
		ok, err := s.blobs.Delete(ctx, info.Key)
		if err != nil {
			s.log.Warn("orphan blob not deleted", "path", info.Key, "error", err)
			continue
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}
