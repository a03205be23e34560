package domain

import (
	"math"
	"strings"
	"time"
)

// FieldDescriptor names one optional measurement field and knows how to read
// its raw value off a record. The two required-field sets below are named
// constants over this table; both feed the single Filled predicate, so
// "filled" means the same thing everywhere.
type FieldDescriptor struct {
	Name  string
	value func(*TestRecord) any
}

// Filled reports whether the described field holds a usable value: numbers
// must be non-NaN, strings non-blank after trimming, slices non-empty, and
// pointers non-nil.
func (f FieldDescriptor) Filled(t *TestRecord) bool {
	return filledValue(f.value(t))
}

func filledValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case *string:
		return x != nil && strings.TrimSpace(*x) != ""
	case *float64:
		return x != nil && !math.IsNaN(*x)
	case *time.Time:
		return x != nil && !x.IsZero()
	case []string:
		return len(x) > 0
	default:
		return v != nil
	}
}

// Field descriptors for every optional measurement on a TestRecord.
var (
	fieldUnit            = FieldDescriptor{Name: "unit", value: func(t *TestRecord) any { return t.Unit }}
	fieldRequisition     = FieldDescriptor{Name: "requisition", value: func(t *TestRecord) any { return t.Requisition }}
	fieldTestLot         = FieldDescriptor{Name: "test_lot", value: func(t *TestRecord) any { return t.TestLot }}
	fieldMatrixLot       = FieldDescriptor{Name: "matrix_lot", value: func(t *TestRecord) any { return t.MatrixLot }}
	fieldStrain          = FieldDescriptor{Name: "strain", value: func(t *TestRecord) any { return t.Strain }}
	fieldMPLot           = FieldDescriptor{Name: "mp_lot", value: func(t *TestRecord) any { return t.MPLot }}
	fieldAverageHumidity = FieldDescriptor{Name: "average_humidity", value: func(t *TestRecord) any { return t.AverageHumidity }}
	fieldBozo            = FieldDescriptor{Name: "bozo", value: func(t *TestRecord) any { return t.Bozo }}
	fieldSensorial       = FieldDescriptor{Name: "sensorial", value: func(t *TestRecord) any { return t.Sensorial }}
	fieldQuantity        = FieldDescriptor{Name: "quantity", value: func(t *TestRecord) any { return t.Quantity }}
	fieldTestType        = FieldDescriptor{Name: "test_type", value: func(t *TestRecord) any { return t.TestType }}
	fieldDate7Day        = FieldDescriptor{Name: "date_7_day", value: func(t *TestRecord) any { return t.Date7Day }}
	fieldDate14Day       = FieldDescriptor{Name: "date_14_day", value: func(t *TestRecord) any { return t.Date14Day }}
	fieldTemp7Chamber    = FieldDescriptor{Name: "temp7_chamber", value: func(t *TestRecord) any { return t.Temp7Chamber }}
	fieldTemp7Rice       = FieldDescriptor{Name: "temp7_rice", value: func(t *TestRecord) any { return t.Temp7Rice }}
	fieldTemp14Chamber   = FieldDescriptor{Name: "temp14_chamber", value: func(t *TestRecord) any { return t.Temp14Chamber }}
	fieldTemp14Rice      = FieldDescriptor{Name: "temp14_rice", value: func(t *TestRecord) any { return t.Temp14Rice }}
	fieldWetWeight       = FieldDescriptor{Name: "wet_weight", value: func(t *TestRecord) any { return t.WetWeight }}
	fieldDryWeight       = FieldDescriptor{Name: "dry_weight", value: func(t *TestRecord) any { return t.DryWeight }}
	fieldConidiumWeight  = FieldDescriptor{Name: "extracted_conidium_weight", value: func(t *TestRecord) any { return t.ExtractedConidiumWeight }}
)

// StatusRequiredFields is the full field set consulted by Status before a
// test can leave Pending. Order matches the form layout.
var StatusRequiredFields = []FieldDescriptor{
	fieldUnit,
	fieldRequisition,
	fieldTestLot,
	fieldMatrixLot,
	fieldStrain,
	fieldMPLot,
	fieldAverageHumidity,
	fieldBozo,
	fieldSensorial,
	fieldQuantity,
	fieldTestType,
	fieldDate7Day,
	fieldDate14Day,
	fieldTemp7Chamber,
	fieldTemp7Rice,
	fieldTemp14Chamber,
	fieldTemp14Rice,
	fieldWetWeight,
	fieldDryWeight,
	fieldConidiumWeight,
}

// RollupRequiredFields is the stricter, smaller subset (no checkpoint dates,
// temperatures, or weights) used when rolling a repetition up to "fully
// done". The two lists are deliberately different: they drive different
// gates.
var RollupRequiredFields = []FieldDescriptor{
	fieldUnit,
	fieldRequisition,
	fieldTestLot,
	fieldMatrixLot,
	fieldStrain,
	fieldMPLot,
	fieldAverageHumidity,
	fieldBozo,
	fieldSensorial,
	fieldQuantity,
	fieldTestType,
}

// AllFilled reports whether every descriptor in the set is filled on t.
func AllFilled(t *TestRecord, fields []FieldDescriptor) bool {
	for _, f := range fields {
		if !f.Filled(t) {
			return false
		}
	}
	return true
}
