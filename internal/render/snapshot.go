package render

import (
	"sync"
	"time"

	"github.com/mohammed-shakir/streetview-viewport/internal/core/model"
)

// View is the state a client sees on GET /view.
type View struct {
	Seq           uint64                   `json:"seq"`
	Mode          model.DataType           `json:"mode,omitempty"`
	Segments      []model.Segment          `json:"segments"`
	HighZoom      *model.HighZoomResultSet `json:"highZoom"`
	Paging        PagingState              `json:"paging"`
	SwitchEnabled bool                     `json:"switchEnabled"`
	Selection     *Selection               `json:"selection"`
	UpdatedAt     time.Time                `json:"updatedAt"`
}

// Snapshot is a Sink that keeps the last applied view.
type Snapshot struct {
	mu   sync.RWMutex
	view View
	now  func() time.Time
}

func NewSnapshot() *Snapshot {
	return &Snapshot{now: time.Now}
}

func (s *Snapshot) Apply(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := &s.view
	v.Seq = max(v.Seq, ev.Seq)
	v.UpdatedAt = s.now()
	switch ev.Kind {
	case Clear:
		if ev.ClearSegments {
			v.Segments = nil
		}
		if ev.ClearHighZoom {
			v.HighZoom = nil
			v.Paging = PagingState{}
		}
	case Apply:
		if ev.Mode != "" {
			v.Mode = ev.Mode
		}
		// Mode selects which half of the view is replaced, nil included.
		if ev.Data != nil {
			if ev.Mode == model.DataTypeSegment || ev.Data.HasSegments() {
				v.Segments = ev.Data.Segments
			}
			if ev.Mode.HighZoom() || ev.Data.HighZoom != nil {
				v.HighZoom = ev.Data.HighZoom
			}
		}
		if ev.CheckSelection && v.Selection != nil && !contains(v, *v.Selection) {
			v.Selection = nil
		}
	case Paging:
		v.Paging = ev.Paging
	case SwitchButton:
		v.SwitchEnabled = ev.SwitchEnabled
	case Select:
		v.Selection = ev.Selection
	}
}

// View returns a copy of the current view.
func (s *Snapshot) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// PhotoDataSet returns the displayed photo page, if any.
func (s *Snapshot) PhotoDataSet() *model.PhotoDataSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.view.HighZoom == nil {
		return nil
	}
	return s.view.HighZoom.Photos
}

func contains(v *View, sel Selection) bool {
	hz := v.HighZoom
	switch sel.DataType {
	case model.DataTypePhoto:
		if hz == nil || hz.Photos == nil {
			return false
		}
		for _, p := range hz.Photos.Photos {
			if p.ID == sel.ID {
				return true
			}
		}
	case model.DataTypeDetection:
		if hz == nil {
			return false
		}
		for _, d := range hz.Detections {
			if d.ID == sel.ID {
				return true
			}
		}
	case model.DataTypeCluster:
		if hz == nil {
			return false
		}
		for _, c := range hz.Clusters {
			if c.ID == sel.ID {
				return true
			}
		}
	case model.DataTypeSegment:
		for _, seg := range v.Segments {
			if seg.ID == sel.ID {
				return true
			}
		}
	}
	return false
}
