package domain

// RepetitionState is the derived navigability state of one repetition.
// Transitions are monotonic under growing data (a repetition never relocks)
// and the state is recomputed from current data on every read; nothing is
// persisted.
type RepetitionState string

// Repetition states.
const (
	// StateLocked means the preceding repetition is not fully done yet.
	StateLocked RepetitionState = "locked"
	// StateUnlockedIncomplete means navigable but not yet fully done.
	StateUnlockedIncomplete RepetitionState = "unlocked_incomplete"
	// StateUnlockedComplete means navigable and fully done.
	StateUnlockedComplete RepetitionState = "unlocked_complete"
)

// TestProgress is the per-test slice of an experiment progress report.
type TestProgress struct {
	TestNumber int        `json:"test_number"`
	Label      string     `json:"label"`
	Status     TestStatus `json:"status"`
	Completed  bool       `json:"completed"`
}

// RepetitionProgress aggregates one repetition's tests and unlock state.
type RepetitionProgress struct {
	Number    int             `json:"number"`
	Tests     []TestProgress  `json:"tests"`
	FullyDone bool            `json:"fully_done"`
	Unlocked  bool            `json:"unlocked"`
	State     RepetitionState `json:"state"`
}

// ExperimentProgress is the full progress report the navigation UI consumes.
type ExperimentProgress struct {
	ExperimentID       string               `json:"experiment_id"`
	Repetitions        []RepetitionProgress `json:"repetitions"`
	AllRepetitionsDone bool                 `json:"all_repetitions_done"`
}

// SnapshotLookup resolves the test snapshot at (repetition, testNumber),
// or nil when no record exists yet.
type SnapshotLookup func(repetition, testNumber int) *TestSnapshot

// ComputeProgress evaluates the sequential unlock chain over an experiment's
// repetitions. Repetition r is fully done iff every test 1..T passes the
// roll-up check and has at least one photo. Repetition 1 is always unlocked;
// r>1 is unlocked iff r-1 is fully done. No repetition may be skipped
// regardless of its own completion.
func ComputeProgress(exp Experiment, lookup SnapshotLookup) ExperimentProgress {
	fullyDone := make([]bool, exp.RepetitionCount+1)
	doneCount := 0
	for rep := 1; rep <= exp.RepetitionCount; rep++ {
		allDone := true
		for test := 1; test <= exp.TestCount; test++ {
			if !RollupComplete(lookup(rep, test)) {
				allDone = false
				break
			}
		}
		fullyDone[rep] = allDone
		if allDone {
			doneCount++
		}
	}
	allRepetitionsDone := exp.RepetitionCount > 0 && doneCount == exp.RepetitionCount

	progress := ExperimentProgress{
		ExperimentID:       exp.ID,
		Repetitions:        make([]RepetitionProgress, 0, exp.RepetitionCount),
		AllRepetitionsDone: allRepetitionsDone,
	}
	for rep := 1; rep <= exp.RepetitionCount; rep++ {
		unlocked := rep == 1 || fullyDone[rep-1]
		tests := make([]TestProgress, 0, exp.TestCount)
		for test := 1; test <= exp.TestCount; test++ {
			snap := lookup(rep, test)
			status := Status(snap, fullyDone[rep], allRepetitionsDone)
			label := ""
			if snap != nil && snap.TestType != nil {
				label = *snap.TestType
			}
			tests = append(tests, TestProgress{
				TestNumber: test,
				Label:      label,
				Status:     status,
				Completed:  status.Label != StatusPending && status.Label != StatusNeedsPhotos,
			})
		}
		state := StateLocked
		switch {
		case unlocked && fullyDone[rep]:
			state = StateUnlockedComplete
		case unlocked:
			state = StateUnlockedIncomplete
		}
		progress.Repetitions = append(progress.Repetitions, RepetitionProgress{
			Number:    rep,
			Tests:     tests,
			FullyDone: fullyDone[rep],
			Unlocked:  unlocked,
			State:     state,
		})
	}
	return progress
}
