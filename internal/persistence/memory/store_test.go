package memory

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"sporelab/pkg/domain"
)

func newTestStore() *Store {
	seq := 0
	return NewStore(
		WithClock(func() time.Time { return time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC) }),
		WithIDGenerator(func() string { seq++; return fmt.Sprintf("id-%03d", seq) }),
	)
}

func mustCreateExperiment(t *testing.T, s *Store, exp domain.Experiment) domain.Experiment {
	t.Helper()
	var created domain.Experiment
	err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		created, err = tx.CreateExperiment(exp)
		return err
	})
	if err != nil {
		t.Fatalf("create experiment: %v", err)
	}
	return created
}

func mustUpsertTest(t *testing.T, s *Store, rec domain.TestRecord) domain.TestRecord {
	t.Helper()
	var stored domain.TestRecord
	err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var err error
		stored, err = tx.UpsertTest(rec)
		return err
	})
	if err != nil {
		t.Fatalf("upsert test: %v", err)
	}
	return stored
}

func TestCreateExperimentAssignsIdentity(t *testing.T) {
	s := newTestStore()
	exp := mustCreateExperiment(t, s, domain.Experiment{Number: 7, RepetitionCount: 3, TestCount: 6, OwnerID: "owner"})
	if exp.ID == "" || exp.CreatedAt.IsZero() {
		t.Fatalf("identity not assigned: %+v", exp)
	}
	got, ok := s.GetExperiment(exp.ID)
	if !ok || got.Number != 7 {
		t.Fatalf("lookup failed: %+v %v", got, ok)
	}
}

func TestCreateExperimentRejectsNonPositiveCounts(t *testing.T) {
	s := newTestStore()
	err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.CreateExperiment(domain.Experiment{Number: 1, RepetitionCount: 0, TestCount: 6})
		return err
	})
	if err == nil {
		t.Fatalf("zero repetition count should be rejected")
	}
}

func TestUpsertTestCreateThenUpdate(t *testing.T) {
	s := newTestStore()
	exp := mustCreateExperiment(t, s, domain.Experiment{Number: 1, RepetitionCount: 2, TestCount: 3})

	unit := "americana"
	created := mustUpsertTest(t, s, domain.TestRecord{ExperimentID: exp.ID, RepetitionNumber: 1, TestNumber: 2, Unit: &unit})
	if created.Revision != 1 || created.ID == "" {
		t.Fatalf("unexpected created record %+v", created)
	}

	strain := "IBCB66"
	updated := mustUpsertTest(t, s, domain.TestRecord{
		ExperimentID: exp.ID, RepetitionNumber: 1, TestNumber: 2,
		Strain: &strain, Revision: created.Revision,
	})
	if updated.ID != created.ID {
		t.Fatalf("upsert must keep identity, got %s want %s", updated.ID, created.ID)
	}
	if updated.Revision != 2 {
		t.Fatalf("revision should increment, got %d", updated.Revision)
	}
	got, _ := s.FindTest(exp.ID, 1, 2)
	if got.Unit != nil {
		t.Fatalf("upsert is full-replace; stale unit survived: %v", *got.Unit)
	}
	if got.Strain == nil || *got.Strain != "IBCB66" {
		t.Fatalf("strain not stored")
	}
}

func TestUpsertTestRevisionConflict(t *testing.T) {
	s := newTestStore()
	exp := mustCreateExperiment(t, s, domain.Experiment{Number: 1, RepetitionCount: 1, TestCount: 1})
	created := mustUpsertTest(t, s, domain.TestRecord{ExperimentID: exp.ID, RepetitionNumber: 1, TestNumber: 1})

	err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, err := tx.UpsertTest(domain.TestRecord{ExperimentID: exp.ID, RepetitionNumber: 1, TestNumber: 1, Revision: created.Revision + 5})
		return err
	})
	if !errors.Is(err, domain.ErrRevisionConflict) {
		t.Fatalf("want revision conflict, got %v", err)
	}

	// Revision zero overwrites unconditionally.
	over := mustUpsertTest(t, s, domain.TestRecord{ExperimentID: exp.ID, RepetitionNumber: 1, TestNumber: 1})
	if over.Revision != created.Revision+1 {
		t.Fatalf("unconditional overwrite should still bump revision")
	}
}

func TestUpsertTestRejectsOutOfRangeCoordinates(t *testing.T) {
	s := newTestStore()
	exp := mustCreateExperiment(t, s, domain.Experiment{Number: 1, RepetitionCount: 2, TestCount: 3})
	for _, rec := range []domain.TestRecord{
		{ExperimentID: exp.ID, RepetitionNumber: 0, TestNumber: 1},
		{ExperimentID: exp.ID, RepetitionNumber: 3, TestNumber: 1},
		{ExperimentID: exp.ID, RepetitionNumber: 1, TestNumber: 4},
		{ExperimentID: "missing", RepetitionNumber: 1, TestNumber: 1},
	} {
		err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
			_, err := tx.UpsertTest(rec)
			return err
		})
		if err == nil {
			t.Fatalf("record %+v should be rejected", rec)
		}
	}
}

func TestFailedTransactionLeavesStateUntouched(t *testing.T) {
	s := newTestStore()
	exp := mustCreateExperiment(t, s, domain.Experiment{Number: 1, RepetitionCount: 1, TestCount: 1})

	err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.UpsertTest(domain.TestRecord{ExperimentID: exp.ID, RepetitionNumber: 1, TestNumber: 1}); err != nil {
			return err
		}
		return errors.New("abort")
	})
	if err == nil {
		t.Fatalf("expected abort error")
	}
	if _, ok := s.FindTest(exp.ID, 1, 1); ok {
		t.Fatalf("aborted upsert must not be visible")
	}
}

func TestDeleteExperimentCascades(t *testing.T) {
	s := newTestStore()
	exp := mustCreateExperiment(t, s, domain.Experiment{Number: 1, RepetitionCount: 1, TestCount: 1})
	rec := mustUpsertTest(t, s, domain.TestRecord{ExperimentID: exp.ID, RepetitionNumber: 1, TestNumber: 1})

	idx := 0
	err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.InsertPhotoAssets([]domain.PhotoAsset{
			{TestID: rec.ID, Day: domain.Day7, Kind: domain.KindSingle, PhotoIndex: &idx, StoragePath: "o/t/day7_photo0_1.jpg"},
		})
	})
	if err != nil {
		t.Fatalf("insert photos: %v", err)
	}

	if err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.DeleteExperiment(exp.ID)
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := s.GetTest(rec.ID); ok {
		t.Fatalf("tests must cascade")
	}
	if got := s.ListPhotoAssets(rec.ID); len(got) != 0 {
		t.Fatalf("photos must cascade, got %d", len(got))
	}
}

func TestInsertPhotoAssetsAllOrNone(t *testing.T) {
	s := newTestStore()
	exp := mustCreateExperiment(t, s, domain.Experiment{Number: 1, RepetitionCount: 1, TestCount: 1})
	rec := mustUpsertTest(t, s, domain.TestRecord{ExperimentID: exp.ID, RepetitionNumber: 1, TestNumber: 1})

	idx := 0
	err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.InsertPhotoAssets([]domain.PhotoAsset{
			{TestID: rec.ID, Day: domain.Day7, Kind: domain.KindSingle, PhotoIndex: &idx, StoragePath: "ok"},
			{TestID: rec.ID, Day: domain.CheckDay(9), Kind: domain.KindSingle, StoragePath: "bad-day"},
		})
	})
	if err == nil {
		t.Fatalf("batch with invalid day should fail")
	}
	if got := s.ListPhotoAssets(rec.ID); len(got) != 0 {
		t.Fatalf("failed batch must insert nothing, got %d", len(got))
	}
}

func TestPhotoOrderingAndLatestMerged(t *testing.T) {
	s := newTestStore()
	exp := mustCreateExperiment(t, s, domain.Experiment{Number: 1, RepetitionCount: 1, TestCount: 1})
	rec := mustUpsertTest(t, s, domain.TestRecord{ExperimentID: exp.ID, RepetitionNumber: 1, TestNumber: 1})

	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	i0, i2 := 0, 2
	assets := []domain.PhotoAsset{
		{ID: "p-unindexed", TestID: rec.ID, Day: domain.Day7, Kind: domain.KindSingle, StoragePath: "u", CreatedAt: base},
		{ID: "p-2", TestID: rec.ID, Day: domain.Day7, Kind: domain.KindSingle, PhotoIndex: &i2, StoragePath: "b", CreatedAt: base.Add(time.Second)},
		{ID: "p-0", TestID: rec.ID, Day: domain.Day7, Kind: domain.KindSingle, PhotoIndex: &i0, StoragePath: "a", CreatedAt: base.Add(2 * time.Second)},
		{ID: "m-old", TestID: rec.ID, Day: domain.Day7, Kind: domain.KindMerged, StoragePath: "m1", CreatedAt: base},
		{ID: "m-new", TestID: rec.ID, Day: domain.Day7, Kind: domain.KindMerged, StoragePath: "m2", CreatedAt: base.Add(time.Minute)},
	}
	if err := s.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		return tx.InsertPhotoAssets(assets)
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	singles := s.ListDayPhotoAssets(rec.ID, domain.Day7, domain.KindSingle)
	if len(singles) != 3 || singles[0].ID != "p-0" || singles[1].ID != "p-2" || singles[2].ID != "p-unindexed" {
		t.Fatalf("unexpected single ordering: %+v", singles)
	}

	merged, ok := s.LatestMerged(rec.ID, domain.Day7)
	if !ok || merged.ID != "m-new" {
		t.Fatalf("latest merged mismatch: %+v %v", merged, ok)
	}
	if _, ok := s.LatestMerged(rec.ID, domain.Day14); ok {
		t.Fatalf("day 14 has no merged asset")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := newTestStore()
	exp := mustCreateExperiment(t, s, domain.Experiment{Number: 1, RepetitionCount: 1, TestCount: 1})
	rec := mustUpsertTest(t, s, domain.TestRecord{ExperimentID: exp.ID, RepetitionNumber: 1, TestNumber: 1})

	snap := s.ExportState()
	restored := NewStore()
	restored.ImportState(snap)

	if _, ok := restored.GetExperiment(exp.ID); !ok {
		t.Fatalf("experiment missing after import")
	}
	got, ok := restored.GetTest(rec.ID)
	if !ok || got.Revision != rec.Revision {
		t.Fatalf("test missing after import: %+v %v", got, ok)
	}

	// Exported snapshot is a deep copy; mutating it must not leak back.
	delete(snap.Experiments, exp.ID)
	if _, ok := s.GetExperiment(exp.ID); !ok {
		t.Fatalf("snapshot mutation leaked into store")
	}
}

func TestReadsReturnClones(t *testing.T) {
	s := newTestStore()
	exp := mustCreateExperiment(t, s, domain.Experiment{Number: 1, RepetitionCount: 1, TestCount: 1})
	unit := "salto"
	rec := mustUpsertTest(t, s, domain.TestRecord{ExperimentID: exp.ID, RepetitionNumber: 1, TestNumber: 1, Unit: &unit})

	got, _ := s.GetTest(rec.ID)
	*got.Unit = "mutated"
	again, _ := s.GetTest(rec.ID)
	if *again.Unit != "salto" {
		t.Fatalf("stored record must not share pointers with reads")
	}
}
