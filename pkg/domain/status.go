package domain

// StatusLabel names the derived completion state of a single test.
type StatusLabel string

// Test status labels, ordered roughly by lifecycle.
const (
	// StatusPending means the record is absent or has unfilled required fields.
	StatusPending StatusLabel = "pending"
	// StatusNeedsPhotos means all fields are filled but no checkpoint has photos.
	StatusNeedsPhotos StatusLabel = "needs_photos"
	// StatusInProgress means fields and at least one photo are present.
	StatusInProgress StatusLabel = "in_progress"
	// StatusCompleted means the test's whole repetition rolled up as done.
	StatusCompleted StatusLabel = "completed"
	// StatusClosed means every repetition of the experiment is done. Terminal.
	StatusClosed StatusLabel = "closed"
)

// StatusSeverity is the badge class the UI renders for a status.
type StatusSeverity string

// Severity badge classes.
const (
	SeverityWarning     StatusSeverity = "warning"
	SeverityDestructive StatusSeverity = "destructive"
	SeverityDefault     StatusSeverity = "default"
	SeverityInfo        StatusSeverity = "info"
)

// TestStatus pairs a status label with its display severity.
type TestStatus struct {
	Label    StatusLabel    `json:"label"`
	Severity StatusSeverity `json:"severity"`
}

// Actionable reports whether the test still accepts field/photo entry,
// which routes the UI to the edit form instead of the read-only view.
func (s TestStatus) Actionable() bool {
	return s.Label == StatusPending || s.Label == StatusNeedsPhotos
}

// Status derives a test's completion state from its field values and photo
// presence. It is a pure function over the snapshot plus the two roll-up
// flags computed by the progress gate.
//
// Precedence: absent record → Pending; experiment fully closed → Closed;
// repetition fully done → Completed; any required field unfilled → Pending;
// no photos on either day → NeedsPhotos; otherwise → InProgress.
func Status(snap *TestSnapshot, repetitionFullyDone, allRepetitionsDone bool) TestStatus {
	if snap == nil {
		return TestStatus{Label: StatusPending, Severity: SeverityWarning}
	}
	if allRepetitionsDone {
		return TestStatus{Label: StatusClosed, Severity: SeverityDestructive}
	}
	if repetitionFullyDone {
		return TestStatus{Label: StatusCompleted, Severity: SeverityDefault}
	}
	if !AllFilled(&snap.TestRecord, StatusRequiredFields) {
		return TestStatus{Label: StatusPending, Severity: SeverityWarning}
	}
	if !snap.HasPhotos() {
		return TestStatus{Label: StatusNeedsPhotos, Severity: SeverityWarning}
	}
	return TestStatus{Label: StatusInProgress, Severity: SeverityInfo}
}

// RollupComplete reports whether the snapshot counts toward its repetition
// being fully done: the stricter roll-up field set must be filled and at
// least one checkpoint must have photos.
func RollupComplete(snap *TestSnapshot) bool {
	if snap == nil {
		return false
	}
	return AllFilled(&snap.TestRecord, RollupRequiredFields) && snap.HasPhotos()
}
