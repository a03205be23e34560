// Package memory provides the authoritative in-memory persistence store.
// Durable backends snapshot this state after every successful transaction.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"sporelab/pkg/domain"
)

var _ domain.PersistentStore = (*Store)(nil)

type memoryState struct {
	experiments map[string]domain.Experiment
	tests       map[string]domain.TestRecord
	photos      map[string]domain.PhotoAsset
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Experiments map[string]domain.Experiment `json:"experiments"`
	Tests       map[string]domain.TestRecord `json:"tests"`
	Photos      map[string]domain.PhotoAsset `json:"photos"`
}

func newMemoryState() memoryState {
	return memoryState{
		experiments: make(map[string]domain.Experiment),
		tests:       make(map[string]domain.TestRecord),
		photos:      make(map[string]domain.PhotoAsset),
	}
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		experiments: make(map[string]domain.Experiment, len(s.experiments)),
		tests:       make(map[string]domain.TestRecord, len(s.tests)),
		photos:      make(map[string]domain.PhotoAsset, len(s.photos)),
	}
	for k, v := range s.experiments {
		out.experiments[k] = v
	}
	for k, v := range s.tests {
		out.tests[k] = cloneTest(v)
	}
	for k, v := range s.photos {
		out.photos[k] = clonePhoto(v)
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTest(t domain.TestRecord) domain.TestRecord {
	out := t
	out.Unit = clonePtr(t.Unit)
	out.Requisition = clonePtr(t.Requisition)
	out.TestType = clonePtr(t.TestType)
	out.TestLot = clonePtr(t.TestLot)
	out.MatrixLot = clonePtr(t.MatrixLot)
	out.Strain = clonePtr(t.Strain)
	out.MPLot = clonePtr(t.MPLot)
	out.AverageHumidity = clonePtr(t.AverageHumidity)
	out.Bozo = clonePtr(t.Bozo)
	out.Sensorial = clonePtr(t.Sensorial)
	out.Quantity = clonePtr(t.Quantity)
	out.Date7Day = clonePtr(t.Date7Day)
	out.Date14Day = clonePtr(t.Date14Day)
	out.Temp7Chamber = clonePtr(t.Temp7Chamber)
	out.Temp7Rice = clonePtr(t.Temp7Rice)
	out.Temp14Chamber = clonePtr(t.Temp14Chamber)
	out.Temp14Rice = clonePtr(t.Temp14Rice)
	out.WetWeight = clonePtr(t.WetWeight)
	out.DryWeight = clonePtr(t.DryWeight)
	out.ExtractedConidiumWeight = clonePtr(t.ExtractedConidiumWeight)
	out.AnnotationsDay7 = t.AnnotationsDay7.Clone()
	out.AnnotationsDay14 = t.AnnotationsDay14.Clone()
	return out
}

func clonePhoto(p domain.PhotoAsset) domain.PhotoAsset {
	out := p
	out.PhotoIndex = clonePtr(p.PhotoIndex)
	return out
}

// Store holds all state behind a single RWMutex. Transactions mutate a
// clone and commit by swapping it in, so a failed transaction leaves the
// committed state untouched.
type Store struct {
	mu    sync.RWMutex
	state memoryState
	nowFn func() time.Time
	idFn  func() string
}

// Option customizes a Store.
type Option func(*Store)

// WithClock injects the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.nowFn = now }
}

// WithIDGenerator injects the ID source, for tests.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.idFn = gen }
}

// NewStore returns an empty in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{state: newMemoryState(), nowFn: time.Now, idFn: uuid.NewString}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ExportState returns a deep copy of the committed state.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state.clone()
	return Snapshot{Experiments: st.experiments, Tests: st.tests, Photos: st.photos}
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := newMemoryState()
	for k, v := range snapshot.Experiments {
		st.experiments[k] = v
	}
	for k, v := range snapshot.Tests {
		st.tests[k] = cloneTest(v)
	}
	for k, v := range snapshot.Photos {
		st.photos[k] = clonePhoto(v)
	}
	s.state = st
}

type transaction struct {
	store *Store
	state memoryState
	now   time.Time
}

// RunInTransaction applies fn to a clone of the state and commits the clone
// on success.
func (s *Store) RunInTransaction(_ context.Context, fn func(domain.Transaction) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &transaction{store: s, state: s.state.clone(), now: s.nowFn().UTC()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.state
	return nil
}

// View executes fn against a read-only clone of the committed state.
func (s *Store) View(_ context.Context, fn func(domain.TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(stateView{state: &snapshot})
}

func (tx *transaction) CreateExperiment(exp domain.Experiment) (domain.Experiment, error) {
	if exp.RepetitionCount <= 0 || exp.TestCount <= 0 {
		return domain.Experiment{}, fmt.Errorf("experiment needs positive repetition and test counts")
	}
	if exp.ID == "" {
		exp.ID = tx.store.idFn()
	}
	if _, exists := tx.state.experiments[exp.ID]; exists {
		return domain.Experiment{}, fmt.Errorf("experiment %s already exists", exp.ID)
	}
	exp.CreatedAt = tx.now
	tx.state.experiments[exp.ID] = exp
	return exp, nil
}

func (tx *transaction) UpdateExperiment(id string, mutator func(*domain.Experiment) error) (domain.Experiment, error) {
	exp, ok := tx.state.experiments[id]
	if !ok {
		return domain.Experiment{}, domain.ErrNotFound{Entity: "experiment", ID: id}
	}
	if err := mutator(&exp); err != nil {
		return domain.Experiment{}, err
	}
	exp.ID = id
	if exp.RepetitionCount <= 0 || exp.TestCount <= 0 {
		return domain.Experiment{}, fmt.Errorf("experiment needs positive repetition and test counts")
	}
	tx.state.experiments[id] = exp
	return exp, nil
}

func (tx *transaction) DeleteExperiment(id string) error {
	if _, ok := tx.state.experiments[id]; !ok {
		return domain.ErrNotFound{Entity: "experiment", ID: id}
	}
	delete(tx.state.experiments, id)
	for tid, t := range tx.state.tests {
		if t.ExperimentID != id {
			continue
		}
		delete(tx.state.tests, tid)
		for pid, p := range tx.state.photos {
			if p.TestID == tid {
				delete(tx.state.photos, pid)
			}
		}
	}
	return nil
}

func (tx *transaction) UpsertTest(rec domain.TestRecord) (domain.TestRecord, error) {
	exp, ok := tx.state.experiments[rec.ExperimentID]
	if !ok {
		return domain.TestRecord{}, domain.ErrNotFound{Entity: "experiment", ID: rec.ExperimentID}
	}
	if rec.RepetitionNumber < 1 || rec.RepetitionNumber > exp.RepetitionCount {
		return domain.TestRecord{}, fmt.Errorf("repetition %d out of range 1..%d", rec.RepetitionNumber, exp.RepetitionCount)
	}
	if rec.TestNumber < 1 || rec.TestNumber > exp.TestCount {
		return domain.TestRecord{}, fmt.Errorf("test number %d out of range 1..%d", rec.TestNumber, exp.TestCount)
	}
	existing, found := findTestIn(tx.state, rec.ExperimentID, rec.RepetitionNumber, rec.TestNumber)
	if found {
		if rec.Revision != 0 && rec.Revision != existing.Revision {
			return domain.TestRecord{}, domain.ErrRevisionConflict
		}
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
		rec.Revision = existing.Revision + 1
	} else {
		if rec.Revision != 0 {
			return domain.TestRecord{}, domain.ErrRevisionConflict
		}
		if rec.ID == "" {
			rec.ID = tx.store.idFn()
		}
		rec.CreatedAt = tx.now
		rec.Revision = 1
	}
	rec.UpdatedAt = tx.now
	stored := cloneTest(rec)
	tx.state.tests[stored.ID] = stored
	return cloneTest(stored), nil
}

func (tx *transaction) InsertPhotoAssets(assets []domain.PhotoAsset) error {
	// Validate the whole batch before touching state.
	for i := range assets {
		a := &assets[i]
		if _, ok := tx.state.tests[a.TestID]; !ok {
			return domain.ErrNotFound{Entity: "test", ID: a.TestID}
		}
		if !a.Day.Valid() {
			return fmt.Errorf("photo asset %d has invalid day %d", i, a.Day)
		}
		if a.Kind != domain.KindSingle && a.Kind != domain.KindMerged {
			return fmt.Errorf("photo asset %d has invalid kind %q", i, a.Kind)
		}
		if a.StoragePath == "" {
			return fmt.Errorf("photo asset %d missing storage path", i)
		}
		if a.ID == "" {
			a.ID = tx.store.idFn()
		}
		if _, exists := tx.state.photos[a.ID]; exists {
			return fmt.Errorf("photo asset %s already exists", a.ID)
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = tx.now
		}
	}
	for _, a := range assets {
		tx.state.photos[a.ID] = clonePhoto(a)
	}
	return nil
}

func (tx *transaction) DeletePhotoAssets(ids []string) error {
	for _, id := range ids {
		delete(tx.state.photos, id)
	}
	return nil
}

// stateView implements domain.TransactionView over a memoryState.
type stateView struct {
	state *memoryState
}

func findTestIn(state memoryState, experimentID string, repetition, testNumber int) (domain.TestRecord, bool) {
	for _, t := range state.tests {
		if t.ExperimentID == experimentID && t.RepetitionNumber == repetition && t.TestNumber == testNumber {
			return t, true
		}
	}
	return domain.TestRecord{}, false
}

func (v stateView) GetExperiment(id string) (domain.Experiment, bool) {
	exp, ok := v.state.experiments[id]
	return exp, ok
}

func (v stateView) ListExperiments() []domain.Experiment {
	out := make([]domain.Experiment, 0, len(v.state.experiments))
	for _, e := range v.state.experiments {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func (v stateView) FindTest(experimentID string, repetition, testNumber int) (domain.TestRecord, bool) {
	t, ok := findTestIn(*v.state, experimentID, repetition, testNumber)
	if !ok {
		return domain.TestRecord{}, false
	}
	return cloneTest(t), true
}

func (v stateView) GetTest(id string) (domain.TestRecord, bool) {
	t, ok := v.state.tests[id]
	if !ok {
		return domain.TestRecord{}, false
	}
	return cloneTest(t), true
}

func (v stateView) ListTestsByExperiment(experimentID string) []domain.TestRecord {
	var out []domain.TestRecord
	for _, t := range v.state.tests {
		if t.ExperimentID == experimentID {
			out = append(out, cloneTest(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RepetitionNumber != out[j].RepetitionNumber {
			return out[i].RepetitionNumber < out[j].RepetitionNumber
		}
		return out[i].TestNumber < out[j].TestNumber
	})
	return out
}

func (v stateView) ListPhotoAssets(testID string) []domain.PhotoAsset {
	var out []domain.PhotoAsset
	for _, p := range v.state.photos {
		if p.TestID == testID {
			out = append(out, clonePhoto(p))
		}
	}
	sortPhotos(out)
	return out
}

func (v stateView) ListDayPhotoAssets(testID string, day domain.CheckDay, kind domain.PhotoKind) []domain.PhotoAsset {
	var out []domain.PhotoAsset
	for _, p := range v.state.photos {
		if p.TestID == testID && p.Day == day && p.Kind == kind {
			out = append(out, clonePhoto(p))
		}
	}
	sortPhotos(out)
	return out
}

func (v stateView) LatestMerged(testID string, day domain.CheckDay) (domain.PhotoAsset, bool) {
	var best domain.PhotoAsset
	found := false
	for _, p := range v.state.photos {
		if p.TestID != testID || p.Day != day || p.Kind != domain.KindMerged {
			continue
		}
		if !found || p.CreatedAt.After(best.CreatedAt) {
			best = clonePhoto(p)
			found = true
		}
	}
	return best, found
}

// sortPhotos orders by photo index with unindexed assets last, then by
// creation time.
func sortPhotos(ps []domain.PhotoAsset) {
	idx := func(p domain.PhotoAsset) int {
		if p.PhotoIndex == nil {
			return 999
		}
		return *p.PhotoIndex
	}
	sort.Slice(ps, func(i, j int) bool {
		if a, b := idx(ps[i]), idx(ps[j]); a != b {
			return a < b
		}
		return ps[i].CreatedAt.Before(ps[j].CreatedAt)
	})
}

// Committed-state read methods satisfying domain.TransactionView on the
// store itself.

func (s *Store) GetExperiment(id string) (domain.Experiment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return stateView{state: &s.state}.GetExperiment(id)
}

func (s *Store) ListExperiments() []domain.Experiment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return stateView{state: &s.state}.ListExperiments()
}

func (s *Store) FindTest(experimentID string, repetition, testNumber int) (domain.TestRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return stateView{state: &s.state}.FindTest(experimentID, repetition, testNumber)
}

func (s *Store) GetTest(id string) (domain.TestRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return stateView{state: &s.state}.GetTest(id)
}

func (s *Store) ListTestsByExperiment(experimentID string) []domain.TestRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return stateView{state: &s.state}.ListTestsByExperiment(experimentID)
}

func (s *Store) ListPhotoAssets(testID string) []domain.PhotoAsset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return stateView{state: &s.state}.ListPhotoAssets(testID)
}

func (s *Store) ListDayPhotoAssets(testID string, day domain.CheckDay, kind domain.PhotoKind) []domain.PhotoAsset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return stateView{state: &s.state}.ListDayPhotoAssets(testID, day, kind)
}

func (s *Store) LatestMerged(testID string, day domain.CheckDay) (domain.PhotoAsset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return stateView{state: &s.state}.LatestMerged(testID, day)
}
