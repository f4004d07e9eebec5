// Package model defines core domain types shared across the service.
package model

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
)

// BoundingBox is an immutable geographic rectangle in EPSG:4326 degrees.
type BoundingBox struct {
	North float64 `json:"north" yaml:"north"`
	South float64 `json:"south" yaml:"south"`
	East  float64 `json:"east" yaml:"east"`
	West  float64 `json:"west" yaml:"west"`
}

// NewBoundingBox returns a normalized box; swapped edges are put back in order.
func NewBoundingBox(north, south, east, west float64) BoundingBox {
	return BoundingBox{North: north, South: south, East: east, West: west}.Normalize()
}

// BoundingBoxFromBound converts an orb bound (lon/lat) to a box.
func BoundingBoxFromBound(b orb.Bound) BoundingBox {
	return NewBoundingBox(b.Max.Lat(), b.Min.Lat(), b.Max.Lon(), b.Min.Lon())
}

func (b BoundingBox) Normalize() BoundingBox {
	if b.North < b.South {
		b.North, b.South = b.South, b.North
	}
	if b.East < b.West {
		b.East, b.West = b.West, b.East
	}
	return b
}

// Valid reports whether the box is non-degenerate and inside world limits.
func (b BoundingBox) Valid() bool {
	if !(b.North > b.South && b.East > b.West) {
		return false
	}
	return b.South >= -90 && b.North <= 90 && b.West >= -180 && b.East <= 180
}

// Expand widens every side by margin degrees.
func (b BoundingBox) Expand(margin float64) BoundingBox {
	return BoundingBox{
		North: b.North + margin,
		South: b.South - margin,
		East:  b.East + margin,
		West:  b.West - margin,
	}
}

func (b BoundingBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.West, b.South},
		Max: orb.Point{b.East, b.North},
	}
}

func (b BoundingBox) Center() orb.Point {
	return b.Bound().Center()
}

func (b BoundingBox) Contains(p orb.Point) bool {
	return b.Bound().Contains(p)
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("n=%.6f,s=%.6f,e=%.6f,w=%.6f", b.North, b.South, b.East, b.West)
}

// DataType is the kind of remote entity a query targets.
type DataType string

const (
	DataTypePhoto     DataType = "PHOTO"
	DataTypeDetection DataType = "DETECTION"
	DataTypeCluster   DataType = "CLUSTER"
	DataTypeSegment   DataType = "SEGMENT"
)

// DataTypes lists the closed set in a stable order.
var DataTypes = []DataType{DataTypePhoto, DataTypeDetection, DataTypeCluster, DataTypeSegment}

func ParseDataType(s string) (DataType, error) {
	dt := DataType(strings.ToUpper(strings.TrimSpace(s)))
	switch dt {
	case DataTypePhoto, DataTypeDetection, DataTypeCluster, DataTypeSegment:
		return dt, nil
	default:
		return "", fmt.Errorf("unknown data type %q", s)
	}
}

func (d DataType) Valid() bool {
	_, err := ParseDataType(string(d))
	return err == nil
}

// HighZoom reports whether the type is served by the high zoom search.
func (d DataType) HighZoom() bool {
	return d == DataTypePhoto || d == DataTypeDetection || d == DataTypeCluster
}

func (d DataType) Label() string {
	return strings.ToLower(string(d))
}

// DistinctDataTypes drops duplicates and unknown values, keeping first-seen order.
func DistinctDataTypes(in []DataType) []DataType {
	seen := make(map[DataType]struct{}, len(in))
	out := make([]DataType, 0, len(in))
	for _, dt := range in {
		if !dt.Valid() {
			continue
		}
		if _, ok := seen[dt]; ok {
			continue
		}
		seen[dt] = struct{}{}
		out = append(out, dt)
	}
	return out
}
