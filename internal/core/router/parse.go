package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mohammed-shakir/streetview-viewport/internal/core/model"
	"github.com/mohammed-shakir/streetview-viewport/internal/core/viewmode"
)

const maxBody = 1 << 20

// ParseViewport decodes and validates a viewport change. Swapped box edges
// are normalized; boxes outside world limits are rejected.
func ParseViewport(r *http.Request) (viewmode.Viewport, error) {
	var vp viewmode.Viewport
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&vp); err != nil {
		return viewmode.Viewport{}, fmt.Errorf("invalid viewport: %w", err)
	}
	if vp.Zoom < 0 || vp.Zoom > maxZoom {
		return viewmode.Viewport{}, fmt.Errorf("zoom must be in [0,%d]", maxZoom)
	}
	for i, a := range vp.Areas {
		bb, err := checkBox(a)
		if err != nil {
			return viewmode.Viewport{}, fmt.Errorf("area %d: %w", i, err)
		}
		vp.Areas[i] = bb
	}
	if vp.Bounds != (model.BoundingBox{}) {
		bb, err := checkBox(vp.Bounds)
		if err != nil {
			return viewmode.Viewport{}, fmt.Errorf("bounds: %w", err)
		}
		vp.Bounds = bb
	}
	return vp, nil
}

func checkBox(b model.BoundingBox) (model.BoundingBox, error) {
	b = b.Normalize()
	if b.South < -90 || b.North > 90 {
		return b, errors.New("latitude must be in [-90,90]")
	}
	if b.West < -180 || b.East > 180 {
		return b, errors.New("longitude must be in [-180,180]")
	}
	return b, nil
}

// ParseFilter decodes a search filter. Unknown data types are rejected and
// duplicates removed; an empty type list is rejected.
func ParseFilter(r *http.Request) (model.SearchFilter, error) {
	var f model.SearchFilter
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBody)).Decode(&f); err != nil {
		return model.SearchFilter{}, fmt.Errorf("invalid filter: %w", err)
	}
	for _, dt := range f.DataTypes {
		if !dt.Valid() {
			return model.SearchFilter{}, fmt.Errorf("invalid filter: unknown data type %q", dt)
		}
	}
	f.DataTypes = model.DistinctDataTypes(f.DataTypes)
	if len(f.DataTypes) == 0 {
		return model.SearchFilter{}, errors.New("invalid filter: at least one data type is required")
	}
	if df := f.DetectionFilter; df != nil && df.ConfidenceLevel != nil {
		c := df.ConfidenceLevel
		if c.Min != nil && c.Max != nil && *c.Min > *c.Max {
			return model.SearchFilter{}, errors.New("invalid filter: confidence min exceeds max")
		}
	}
	return f, nil
}
