package model

import (
	"time"

	"github.com/paulmach/orb"
)

// AuthorTypeOSM is the only identity provider the service accepts for author filters.
const AuthorTypeOSM = "OSM"

type Author struct {
	ExternalID string `json:"externalId"`
	UserName   string `json:"userName,omitempty"`
	Type       string `json:"type"`
}

func NewOSMAuthor(externalID string) Author {
	return Author{ExternalID: externalID, Type: AuthorTypeOSM}
}

type Sign struct {
	InternalName string `json:"internalName" yaml:"internal_name"`
	Name         string `json:"name,omitempty" yaml:"name"`
	Type         string `json:"type,omitempty" yaml:"type"`
	Region       string `json:"region,omitempty" yaml:"region"`
}

type Photo struct {
	ID                 int64     `json:"id"`
	SequenceID         int64     `json:"sequenceId"`
	SequenceIndex      int       `json:"sequenceIndex"`
	Location           orb.Point `json:"location"`
	Name               string    `json:"name,omitempty"`
	LargeThumbnailName string    `json:"largeThumbnailName,omitempty"`
	ThumbnailName      string    `json:"thumbnailName,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
	Heading            *float64  `json:"heading,omitempty"`
	Username           string    `json:"username,omitempty"`
}

type Detection struct {
	ID              int64         `json:"id"`
	SequenceID      int64         `json:"sequenceId"`
	SequenceIndex   int           `json:"sequenceIndex"`
	Location        orb.Point     `json:"location"`
	Sign            Sign          `json:"sign"`
	EditStatus      EditStatus    `json:"editStatus,omitempty"`
	Mode            DetectionMode `json:"mode,omitempty"`
	OsmComparison   OsmComparison `json:"osmComparison,omitempty"`
	ConfidenceLevel *float64      `json:"confidenceLevel,omitempty"`
	Author          *Author       `json:"author,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
}

// Cluster aggregates detections of the same sign. A nil DetectionIDs means the
// service did not report members.
type Cluster struct {
	ID              int64         `json:"id"`
	Location        orb.Point     `json:"location"`
	Sign            Sign          `json:"sign"`
	OsmComparison   OsmComparison `json:"osmComparison,omitempty"`
	ConfidenceLevel *float64      `json:"confidenceLevel,omitempty"`
	DetectionIDs    []int64       `json:"detectionIds"`
	PhotoIDs        []int64       `json:"photoIds,omitempty"`
}

// Segment is a road portion with photo coverage.
type Segment struct {
	ID       int64          `json:"id"`
	WayID    int64          `json:"wayId,omitempty"`
	Geometry orb.LineString `json:"geometry"`
	Coverage int            `json:"coverage"`
}

// Visible reports whether any vertex of the segment falls inside box.
func (s Segment) Visible(box BoundingBox) bool {
	if len(s.Geometry) == 0 {
		return false
	}
	if !box.Bound().Intersects(s.Geometry.Bound()) {
		return false
	}
	for _, p := range s.Geometry {
		if box.Contains(p) {
			return true
		}
	}
	return false
}
