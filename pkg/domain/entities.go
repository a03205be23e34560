// Package domain defines the persistent entities, value types, and derived
// progress primitives used by sporelab.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// CheckDay identifies one of the two photographic checkpoints of a test.
type CheckDay int

// Supported checkpoint days.
const (
	Day7  CheckDay = 7
	Day14 CheckDay = 14
)

// Valid reports whether the day is one of the two supported checkpoints.
func (d CheckDay) Valid() bool { return d == Day7 || d == Day14 }

// PhotoKind distinguishes the raw per-slot captures from the derived mosaic.
type PhotoKind string

// Supported photo asset kinds.
const (
	// KindSingle is one of the per-slot captures committed in a batch.
	KindSingle PhotoKind = "single"
	// KindMerged is the derived day mosaic consumed by the media surface.
	KindMerged PhotoKind = "merged"
)

// MarkerSize selects the marker diameter class of an annotation.
type MarkerSize string

// Supported marker sizes.
const (
	MarkerSmall  MarkerSize = "small"
	MarkerMedium MarkerSize = "medium"
	MarkerLarge  MarkerSize = "large"
)

// Valid reports whether the size is a known class.
func (s MarkerSize) Valid() bool {
	switch s {
	case MarkerSmall, MarkerMedium, MarkerLarge:
		return true
	}
	return false
}

// Annotation is a numbered circular marker placed on a captured photo.
// Coordinates are in the display coordinate space of the image at annotation
// time; a scale factor (original width / displayed width) is reapplied when
// baking onto the full-resolution raster.
type Annotation struct {
	X       float64    `json:"x"`
	Y       float64    `json:"y"`
	Size    MarkerSize `json:"size"`
	Caption string     `json:"caption"`
	Color   string     `json:"color,omitempty"`
}

// AnnotationsByPhotoIndex maps a photo slot index to its ordered marker list.
//
// Legacy records stored a flat annotation list instead of a map; UnmarshalJSON
// normalizes that shape to photo index 0 once, at the decode boundary, so the
// rest of the code only ever sees the map form.
type AnnotationsByPhotoIndex map[int][]Annotation

// UnmarshalJSON accepts either the map form or the legacy flat list form.
func (a *AnnotationsByPhotoIndex) UnmarshalJSON(data []byte) error {
	var asMap map[int][]Annotation
	if err := json.Unmarshal(data, &asMap); err == nil {
		*a = asMap
		return nil
	}
	var flat []Annotation
	if err := json.Unmarshal(data, &flat); err != nil {
		return fmt.Errorf("annotations payload is neither indexed map nor flat list: %w", err)
	}
	if len(flat) == 0 {
		*a = nil
		return nil
	}
	*a = AnnotationsByPhotoIndex{0: flat}
	return nil
}

// Clone returns a deep copy.
func (a AnnotationsByPhotoIndex) Clone() AnnotationsByPhotoIndex {
	if a == nil {
		return nil
	}
	out := make(AnnotationsByPhotoIndex, len(a))
	for idx, list := range a {
		out[idx] = append([]Annotation(nil), list...)
	}
	return out
}

// Experiment is the owning record of a multi-day growth experiment.
type Experiment struct {
	ID              string    `json:"id"`
	Number          int       `json:"number"`
	Strain          string    `json:"strain,omitempty"`
	StartDate       time.Time `json:"start_date"`
	RepetitionCount int       `json:"repetition_count"`
	TestCount       int       `json:"test_count"`
	OwnerID         string    `json:"owner_id"`
	CreatedAt       time.Time `json:"created_at"`
}

// TestRecord holds the measurements and annotations of one test within a
// repetition. Optional scalar fields are pointers; absence and emptiness both
// count as "unfilled" for status evaluation. The record is mutated only
// through a full-record upsert keyed on (experiment, repetition, test number)
// and is never deleted independently of its experiment.
type TestRecord struct {
	ID               string `json:"id"`
	ExperimentID     string `json:"experiment_id"`
	RepetitionNumber int    `json:"repetition_number"`
	TestNumber       int    `json:"test_number"`

	Unit        *string `json:"unit,omitempty"`
	Requisition *string `json:"requisition,omitempty"`
	TestType    *string `json:"test_type,omitempty"`
	TestLot     *string `json:"test_lot,omitempty"`
	MatrixLot   *string `json:"matrix_lot,omitempty"`
	Strain      *string `json:"strain,omitempty"`
	MPLot       *string `json:"mp_lot,omitempty"`

	AverageHumidity *float64 `json:"average_humidity,omitempty"`
	Bozo            *float64 `json:"bozo,omitempty"`
	Sensorial       *float64 `json:"sensorial,omitempty"`
	Quantity        *float64 `json:"quantity,omitempty"`

	Date7Day  *time.Time `json:"date_7_day,omitempty"`
	Date14Day *time.Time `json:"date_14_day,omitempty"`

	Temp7Chamber  *float64 `json:"temp7_chamber,omitempty"`
	Temp7Rice     *float64 `json:"temp7_rice,omitempty"`
	Temp14Chamber *float64 `json:"temp14_chamber,omitempty"`
	Temp14Rice    *float64 `json:"temp14_rice,omitempty"`

	WetWeight               *float64 `json:"wet_weight,omitempty"`
	DryWeight               *float64 `json:"dry_weight,omitempty"`
	ExtractedConidiumWeight *float64 `json:"extracted_conidium_weight,omitempty"`

	AnnotationsDay7  AnnotationsByPhotoIndex `json:"annotations_7_day,omitempty"`
	AnnotationsDay14 AnnotationsByPhotoIndex `json:"annotations_14_day,omitempty"`

	// Revision is the optimistic concurrency token checked by UpsertTest.
	// Zero means "create or overwrite unconditionally".
	Revision  int64     `json:"revision"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AnnotationsFor returns the annotation map for the given checkpoint day.
func (t *TestRecord) AnnotationsFor(day CheckDay) AnnotationsByPhotoIndex {
	if day == Day14 {
		return t.AnnotationsDay14
	}
	return t.AnnotationsDay7
}

// PhotoAsset is one stored photo binary's metadata row.
type PhotoAsset struct {
	ID          string    `json:"id"`
	TestID      string    `json:"test_id"`
	Day         CheckDay  `json:"day"`
	Kind        PhotoKind `json:"kind"`
	PhotoIndex  *int      `json:"photo_index,omitempty"`
	StoragePath string    `json:"storage_path"`
	CreatedAt   time.Time `json:"created_at"`
}

// TestSnapshot pairs a test record with its current photo listing so that
// status evaluation and the roll-up check can consider photo presence.
type TestSnapshot struct {
	TestRecord
	Photos7Day  []string
	Photos14Day []string
}

// HasPhotos reports whether either checkpoint day has at least one photo.
func (s *TestSnapshot) HasPhotos() bool {
	return len(s.Photos7Day) > 0 || len(s.Photos14Day) > 0
}
