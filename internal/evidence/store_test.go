package evidence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"sporelab/internal/blob"
	"sporelab/internal/persistence/memory"
	"sporelab/internal/signedurl"
	"sporelab/pkg/domain"
)

type fixture struct {
	db    *memory.Store
	blobs blob.Store
	cache *signedurl.Cache
	store *Store
	test  domain.TestRecord
}

func newFixture(t *testing.T, blobs blob.Store) *fixture {
	t.Helper()
	db := memory.NewStore(memory.WithIDGenerator(func() string { return testID }))
	ctx := context.Background()
	var exp domain.Experiment
	var rec domain.TestRecord
	err := db.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		exp, err = tx.CreateExperiment(domain.Experiment{ID: ownerID, Number: 1, RepetitionCount: 1, TestCount: 1, OwnerID: ownerID})
		if err != nil {
			return err
		}
		rec, err = tx.UpsertTest(domain.TestRecord{ExperimentID: exp.ID, RepetitionNumber: 1, TestNumber: 1})
		return err
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if blobs == nil {
		blobs = blob.NewMemory()
	}
	cache := signedurl.New()
	store := NewStore(db, blobs, cache, slog.New(slog.NewTextHandler(io.Discard, nil)),
		WithClock(func() time.Time { return time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC) }))
	return &fixture{db: db, blobs: blobs, cache: cache, store: store, test: rec}
}

func freshBatch(n int) []PhotoInput {
	out := make([]PhotoInput, n)
	for i := range out {
		out[i] = PhotoInput{Data: []byte(fmt.Sprintf("jpeg-%d", i))}
	}
	return out
}

func TestReplaceDayPhotosStoresBatch(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	n, err := f.store.ReplaceDayPhotos(ctx, ownerID, f.test.ID, domain.Day7, freshBatch(3))
	if err != nil || n != 3 {
		t.Fatalf("replace: %d %v", n, err)
	}
	rows := f.db.ListDayPhotoAssets(f.test.ID, domain.Day7, domain.KindSingle)
	if len(rows) != 3 {
		t.Fatalf("want 3 rows, got %d", len(rows))
	}
	for i, r := range rows {
		if r.PhotoIndex == nil || *r.PhotoIndex != i {
			t.Fatalf("row %d has wrong index %+v", i, r.PhotoIndex)
		}
		if !strings.Contains(r.StoragePath, fmt.Sprintf("/day7_photo%d_", i+1)) {
			t.Fatalf("row %d file name must carry the 1-based number: %s", i, r.StoragePath)
		}
		if err := ValidatePhotoPath(r.StoragePath, ownerID, f.test.ID); err != nil {
			t.Fatalf("stored path invalid: %v", err)
		}
		if _, err := f.blobs.Head(ctx, r.StoragePath); err != nil {
			t.Fatalf("blob missing for %s: %v", r.StoragePath, err)
		}
	}
}

func TestReplaceDayPhotosSwapsOldSet(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.store.ReplaceDayPhotos(ctx, ownerID, f.test.ID, domain.Day7, freshBatch(2)); err != nil {
		t.Fatalf("first replace: %v", err)
	}
	oldRows := f.db.ListDayPhotoAssets(f.test.ID, domain.Day7, domain.KindSingle)

	f.store.now = func() time.Time { return time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC) }
	if _, err := f.store.ReplaceDayPhotos(ctx, ownerID, f.test.ID, domain.Day7, freshBatch(1)); err != nil {
		t.Fatalf("second replace: %v", err)
	}

	rows := f.db.ListDayPhotoAssets(f.test.ID, domain.Day7, domain.KindSingle)
	if len(rows) != 1 {
		t.Fatalf("old rows should be gone, got %d", len(rows))
	}
	for _, old := range oldRows {
		if _, err := f.blobs.Head(ctx, old.StoragePath); err == nil {
			t.Fatalf("old blob %s should be deleted", old.StoragePath)
		}
	}
}

func TestReplaceDayPhotosKeepBatchIsNoOp(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.store.ReplaceDayPhotos(ctx, ownerID, f.test.ID, domain.Day7, freshBatch(2)); err != nil {
		t.Fatalf("seed photos: %v", err)
	}
	before := f.db.ListDayPhotoAssets(f.test.ID, domain.Day7, domain.KindSingle)

	n, err := f.store.ReplaceDayPhotos(ctx, ownerID, f.test.ID, domain.Day7, []PhotoInput{
		{Ref: before[0].StoragePath}, {Ref: before[1].StoragePath},
	})
	if err != nil || n != 0 {
		t.Fatalf("keep batch: %d %v", n, err)
	}
	n, err = f.store.ReplaceDayPhotos(ctx, ownerID, f.test.ID, domain.Day7, nil)
	if err != nil || n != 0 {
		t.Fatalf("empty batch: %d %v", n, err)
	}
	after := f.db.ListDayPhotoAssets(f.test.ID, domain.Day7, domain.KindSingle)
	if len(after) != len(before) || after[0].ID != before[0].ID {
		t.Fatalf("no-op batches must not touch rows")
	}
}

func TestReplaceDayPhotosRejectsMixedAndEmptySlots(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.store.ReplaceDayPhotos(ctx, ownerID, f.test.ID, domain.Day7, []PhotoInput{
		{Data: []byte("x")}, {Ref: "some/stored/path"},
	})
	if !errors.Is(err, ErrMixedPhotoSources) {
		t.Fatalf("want mixed sources error, got %v", err)
	}
	_, err = f.store.ReplaceDayPhotos(ctx, ownerID, f.test.ID, domain.Day7, []PhotoInput{
		{Data: []byte("x"), Ref: "both/set"},
	})
	if !errors.Is(err, ErrMixedPhotoSources) {
		t.Fatalf("slot with both sources is mixed, got %v", err)
	}
	if _, err = f.store.ReplaceDayPhotos(ctx, ownerID, f.test.ID, domain.Day7, []PhotoInput{{}}); err == nil {
		t.Fatalf("empty slot should be rejected")
	}
}

func TestReplaceDayPhotosInvalidInputs(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.store.ReplaceDayPhotos(ctx, ownerID, f.test.ID, domain.CheckDay(9), freshBatch(1)); err == nil {
		t.Fatalf("invalid day should fail")
	}
	_, err := f.store.ReplaceDayPhotos(ctx, ownerID, "ffffffff-ffff-ffff-ffff-ffffffffffff", domain.Day7, freshBatch(1))
	var nf domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("unknown test should be not found, got %v", err)
	}
}

// failingBlobs wraps a real store and fails operations on demand.
type failingBlobs struct {
	blob.Store
	failPutAfter int // fail the Nth put (1-based); 0 disables
	puts         int
	failDelete   bool
}

func (f *failingBlobs) Put(ctx context.Context, key string, r io.Reader, opts blob.PutOptions) (blob.Info, error) {
	f.puts++
	if f.failPutAfter > 0 && f.puts >= f.failPutAfter {
		return blob.Info{}, errors.New("injected put failure")
	}
	return f.Store.Put(ctx, key, r, opts)
}

func (f *failingBlobs) Delete(ctx context.Context, key string) (bool, error) {
	if f.failDelete {
		return false, errors.New("injected delete failure")
	}
	return f.Store.Delete(ctx, key)
}

func TestReplaceDayPhotosUploadFailureKeepsOldSet(t *testing.T) {
	inner := blob.NewMemory()
	f := newFixture(t, inner)
	ctx := context.Background()
	if _, err := f.store.ReplaceDayPhotos(ctx, ownerID, f.test.ID, domain.Day7, freshBatch(1)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	old := f.db.ListDayPhotoAssets(f.test.ID, domain.Day7, domain.KindSingle)

	failing := &failingBlobs{Store: inner, failPutAfter: 2} // second put of next batch
	f.store.blobs = failing
	f.store.now = func() time.Time { return time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC) }

	if _, err := f.store.ReplaceDayPhotos(ctx, ownerID, f.test.ID, domain.Day7, freshBatch(2)); err == nil {
		t.Fatalf("expected upload failure")
	}
	rows := f.db.ListDayPhotoAssets(f.test.ID, domain.Day7, domain.KindSingle)
	if len(rows) != 1 || rows[0].ID != old[0].ID {
		t.Fatalf("old rows must survive a failed upload: %+v", rows)
	}
	// The one blob uploaded before the failure must have been cleaned up.
	infos, _ := inner.List(ctx, "")
	if len(infos) != 1 || infos[0].Key != old[0].StoragePath {
		t.Fatalf("partial uploads must be cleaned, listing %+v", infos)
	}
}

func TestReplaceDayPhotosSwallowsOldBlobDeleteFailure(t *testing.T) {
	inner := blob.NewMemory()
	f := newFixture(t, inner)
	ctx := context.Background()
	if _, err := f.store.ReplaceDayPhotos(ctx, ownerID, f.test.ID, domain.Day7, freshBatch(1)); err != nil {
		t.Fatalf("seed: %v", err)
	}

	f.store.blobs = &failingBlobs{Store: inner, failDelete: true}
	f.store.now = func() time.Time { return time.Date(2026, 4, 2, 11, 0, 0, 0, time.UTC) }

	n, err := f.store.ReplaceDayPhotos(ctx, ownerID, f.test.ID, domain.Day7, freshBatch(1))
	if err != nil || n != 1 {
		t.Fatalf("post-commit delete failures must not fail the call: %d %v", n, err)
	}
	if rows := f.db.ListDayPhotoAssets(f.test.ID, domain.Day7, domain.KindSingle); len(rows) != 1 {
		t.Fatalf("rows should reflect the new set, got %d", len(rows))
	}
}

func TestReplaceDayPhotosClearsSignedURLCache(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.cache.Set(ownerID+"/"+f.test.ID+"/day7_photo1_1.jpg", "stale", time.Hour)
	f.cache.Set("other/prefix/key.jpg", "live", time.Hour)

	if _, err := f.store.ReplaceDayPhotos(ctx, ownerID, f.test.ID, domain.Day7, freshBatch(1)); err != nil {
		t.Fatalf("replace: %v", err)
	}
	if _, ok := f.cache.Get(ownerID + "/" + f.test.ID + "/day7_photo1_1.jpg"); ok {
		t.Fatalf("stale cache entry must be cleared")
	}
	if _, ok := f.cache.Get("other/prefix/key.jpg"); !ok {
		t.Fatalf("unrelated entries must survive")
	}
}

func TestSignedURLsDedupeOrderAndErrors(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.store.ReplaceDayPhotos(ctx, ownerID, f.test.ID, domain.Day7, freshBatch(2)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	rows := f.db.ListDayPhotoAssets(f.test.ID, domain.Day7, domain.KindSingle)
	a, b := rows[0].StoragePath, rows[1].StoragePath

	urls := f.store.SignedURLs(ctx, []string{a, b, a, ""})
	if len(urls) != 4 {
		t.Fatalf("output must align with input, got %d", len(urls))
	}
	if urls[0] == "" || urls[1] == "" || urls[0] != urls[2] || urls[3] != "" {
		t.Fatalf("unexpected urls %+v", urls)
	}
	if cached, ok := f.cache.Get(a); !ok || cached != urls[0] {
		t.Fatalf("signed urls should be cached")
	}
}

func TestPutMosaicRecordsLatestMerged(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	first, err := f.store.PutMosaic(ctx, ownerID, f.test.ID, domain.Day7, []byte("mosaic-1"))
	if err != nil {
		t.Fatalf("first mosaic: %v", err)
	}
	f.store.now = func() time.Time { return time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC) }
	second, err := f.store.PutMosaic(ctx, ownerID, f.test.ID, domain.Day7, []byte("mosaic-2"))
	if err != nil {
		t.Fatalf("second mosaic: %v", err)
	}
	latest, ok := f.db.LatestMerged(f.test.ID, domain.Day7)
	if !ok || latest.ID != second.ID {
		t.Fatalf("latest merged should be the newest, got %+v", latest)
	}
	if _, err := f.blobs.Head(ctx, first.StoragePath); err != nil {
		t.Fatalf("mosaics accumulate; first must remain: %v", err)
	}
	for _, a := range []domain.PhotoAsset{first, second} {
		if err := ValidatePhotoPath(a.StoragePath, ownerID, f.test.ID); err != nil {
			t.Fatalf("mosaic path %s must validate: %v", a.StoragePath, err)
		}
	}
	if !strings.Contains(second.StoragePath, "/day7_photo2_") {
		t.Fatalf("second mosaic must take the next photo number: %s", second.StoragePath)
	}
}

func TestPutMosaicNumbersAfterSingles(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.store.ReplaceDayPhotos(ctx, ownerID, f.test.ID, domain.Day7, freshBatch(3)); err != nil {
		t.Fatalf("replace: %v", err)
	}
	mosaic, err := f.store.PutMosaic(ctx, ownerID, f.test.ID, domain.Day7, []byte("mosaic"))
	if err != nil {
		t.Fatalf("mosaic: %v", err)
	}
	if !strings.Contains(mosaic.StoragePath, "/day7_photo4_") {
		t.Fatalf("mosaic numbering must continue after three singles: %s", mosaic.StoragePath)
	}
	if err := ValidatePhotoPath(mosaic.StoragePath, ownerID, f.test.ID); err != nil {
		t.Fatalf("mosaic path must validate: %v", err)
	}
	if mosaic.Kind != domain.KindMerged || mosaic.PhotoIndex != nil {
		t.Fatalf("mosaic asset misrecorded: %+v", mosaic)
	}
	if _, err := f.store.PutMosaic(ctx, "not-a-uuid", f.test.ID, domain.Day7, []byte("x")); err == nil {
		t.Fatalf("mosaic write with a malformed owner must be rejected")
	}
}

func TestOrphanSweepRemovesOnlyStaleUnreferenced(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if _, err := f.store.ReplaceDayPhotos(ctx, ownerID, f.test.ID, domain.Day7, freshBatch(1)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// Unreferenced blob, old enough to sweep.
	if _, err := f.blobs.Put(ctx, "orphan/old.jpg", strings.NewReader("x"), blob.PutOptions{}); err != nil {
		t.Fatalf("orphan put: %v", err)
	}

	f.store.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	removed, err := f.store.OrphanSweep(ctx, 24*time.Hour)
	if err != nil || removed != 1 {
		t.Fatalf("sweep: %d %v", removed, err)
	}
	rows := f.db.ListDayPhotoAssets(f.test.ID, domain.Day7, domain.KindSingle)
	if _, err := f.blobs.Head(ctx, rows[0].StoragePath); err != nil {
		t.Fatalf("referenced blob must survive sweep: %v", err)
	}

	// A fresh orphan stays until it ages past the cutoff.
	f.store.now = time.Now
	if _, err := f.blobs.Put(ctx, "orphan/fresh.jpg", strings.NewReader("y"), blob.PutOptions{}); err != nil {
		t.Fatalf("fresh orphan put: %v", err)
	}
	removed, err = f.store.OrphanSweep(ctx, 24*time.Hour)
	if err != nil || removed != 0 {
		t.Fatalf("fresh orphan should survive: %d %v", removed, err)
	}
}

