package model

import (
	"slices"
	"time"
)

type EditStatus string

const (
	EditStatusOpen    EditStatus = "OPEN"
	EditStatusMapped  EditStatus = "MAPPED"
	EditStatusBadSign EditStatus = "BAD_SIGN"
	EditStatusOther   EditStatus = "OTHER"

	// raw values used by the detection service; MAPPED is split into these
	EditStatusFixed        EditStatus = "FIXED"
	EditStatusAlreadyFixed EditStatus = "ALREADY_FIXED"
)

type DetectionMode string

const (
	DetectionModeAutomatic  DetectionMode = "AUTOMATIC"
	DetectionModeManual     DetectionMode = "MANUAL"
	DetectionModeValidation DetectionMode = "VALIDATION"
)

type OsmComparison string

const (
	OsmComparisonNew     OsmComparison = "NEW"
	OsmComparisonChanged OsmComparison = "CHANGED"
	OsmComparisonUnknown OsmComparison = "UNKNOWN"
	OsmComparisonSame    OsmComparison = "SAME"
	OsmComparisonImplied OsmComparison = "IMPLIED"
)

// ConfidenceLevelFilter bounds detection confidence; nil ends are open.
type ConfidenceLevelFilter struct {
	Min *float64 `json:"min,omitempty" yaml:"min"`
	Max *float64 `json:"max,omitempty" yaml:"max"`
}

// DetectionFilter narrows detection and cluster searches. Empty fields mean unfiltered.
type DetectionFilter struct {
	OsmComparisons  []OsmComparison        `json:"osmComparisons,omitempty" yaml:"osm_comparisons"`
	EditStatuses    []EditStatus           `json:"editStatuses,omitempty" yaml:"edit_statuses"`
	SignTypes       []string               `json:"signTypes,omitempty" yaml:"sign_types"`
	SpecificSigns   []Sign                 `json:"specificSigns,omitempty" yaml:"specific_signs"`
	Modes           []DetectionMode        `json:"modes,omitempty" yaml:"modes"`
	Region          string                 `json:"region,omitempty" yaml:"region"`
	ConfidenceLevel *ConfidenceLevelFilter `json:"confidenceLevel,omitempty" yaml:"confidence_level"`
}

// SignNames projects the specific signs to their internal names; nil when unrestricted.
func (f *DetectionFilter) SignNames() []string {
	if f == nil || f.SpecificSigns == nil {
		return nil
	}
	out := make([]string, 0, len(f.SpecificSigns))
	for _, s := range f.SpecificSigns {
		out = append(out, s.InternalName)
	}
	return out
}

// SearchFilter is the user's current selection.
type SearchFilter struct {
	DataTypes       []DataType       `json:"dataTypes" yaml:"data_types"`
	AuthorID        *int64           `json:"authorId,omitempty" yaml:"author_id"`
	Date            *time.Time       `json:"date,omitempty" yaml:"date"`
	DetectionFilter *DetectionFilter `json:"detectionFilter,omitempty" yaml:"detection_filter"`
}

func (f SearchFilter) Has(dt DataType) bool {
	return slices.Contains(f.DataTypes, dt)
}

// WithDataTypes returns a copy requesting only the given types.
func (f SearchFilter) WithDataTypes(dts ...DataType) SearchFilter {
	f.DataTypes = slices.Clone(dts)
	return f
}

// DefaultSearchFilter requests photo locations only.
func DefaultSearchFilter() SearchFilter {
	return SearchFilter{DataTypes: []DataType{DataTypePhoto}}
}
