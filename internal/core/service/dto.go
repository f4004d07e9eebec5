package service

import (
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/streetview-viewport/internal/core/model"
)

type statusDTO struct {
	APICode    string `json:"apiCode"`
	APIMessage string `json:"apiMessage"`
	HTTPCode   int    `json:"httpCode"`
}

type envelope struct {
	Status *statusDTO `json:"status"`
}

type pointDTO struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (p *pointDTO) orb() orb.Point {
	if p == nil {
		return orb.Point{}
	}
	return orb.Point{p.Longitude, p.Latitude}
}

type signDTO struct {
	InternalName string `json:"internalName"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	Region       string `json:"region"`
}

func (s signDTO) model() model.Sign {
	return model.Sign{InternalName: s.InternalName, Name: s.Name, Type: s.Type, Region: s.Region}
}

type authorDTO struct {
	ExternalID string `json:"externalId"`
	UserName   string `json:"userName"`
	Type       string `json:"type"`
}

type photoDTO struct {
	ID                 int64    `json:"id"`
	SequenceID         int64    `json:"sequence_id"`
	SequenceIndex      int      `json:"sequence_index"`
	Lat                float64  `json:"lat"`
	Lng                float64  `json:"lng"`
	Name               string   `json:"name"`
	LargeThumbnailName string   `json:"lth_name"`
	ThumbnailName      string   `json:"th_name"`
	ShotDate           string   `json:"shot_date"`
	Heading            *float64 `json:"heading"`
	Username           string   `json:"username"`
}

type photoPageDTO struct {
	envelope
	CurrentPageItems   []photoDTO `json:"currentPageItems"`
	TotalFilteredItems []int      `json:"totalFilteredItems"`
}

type detectionDTO struct {
	ID                int64      `json:"id"`
	SequenceID        int64      `json:"sequenceId"`
	SequenceIndex     int        `json:"sequenceIndex"`
	Point             *pointDTO  `json:"point"`
	Sign              signDTO    `json:"sign"`
	EditStatus        string     `json:"editStatus"`
	Mode              string     `json:"mode"`
	OsmComparison     string     `json:"osmComparison"`
	ConfidenceLevel   *float64   `json:"confidenceLevel"`
	Author            *authorDTO `json:"author"`
	CreationTimestamp int64      `json:"creationTimestamp"`
}

type detectionListDTO struct {
	envelope
	Detections []detectionDTO `json:"detections"`
}

type detectionOneDTO struct {
	envelope
	Detection *detectionDTO `json:"detection"`
}

type clusterDTO struct {
	ID              int64     `json:"id"`
	Point           *pointDTO `json:"point"`
	Sign            signDTO   `json:"sign"`
	OsmComparison   string    `json:"osmComparison"`
	ConfidenceLevel *float64  `json:"confidenceLevel"`
	DetectionIDs    []int64   `json:"detectionIds"`
	PhotoIDs        []int64   `json:"photoIds"`
}

type clusterListDTO struct {
	envelope
	Clusters []clusterDTO `json:"clusters"`
}

type clusterOneDTO struct {
	envelope
	Cluster *clusterDTO `json:"cluster"`
}

type segmentDTO struct {
	ID       int64        `json:"id"`
	WayID    int64        `json:"wayId"`
	Coverage int          `json:"coverage"`
	Track    [][2]float64 `json:"track"`
}

type segmentListDTO struct {
	envelope
	Tracks []segmentDTO `json:"tracks"`
}

var shotDateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func parseShotDate(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, l := range shotDateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func (p photoDTO) model() model.Photo {
	return model.Photo{
		ID:                 p.ID,
		SequenceID:         p.SequenceID,
		SequenceIndex:      p.SequenceIndex,
		Location:           orb.Point{p.Lng, p.Lat},
		Name:               p.Name,
		LargeThumbnailName: p.LargeThumbnailName,
		ThumbnailName:      p.ThumbnailName,
		Timestamp:          parseShotDate(p.ShotDate),
		Heading:            p.Heading,
		Username:           p.Username,
	}
}

func (d detectionDTO) model() model.Detection {
	out := model.Detection{
		ID:              d.ID,
		SequenceID:      d.SequenceID,
		SequenceIndex:   d.SequenceIndex,
		Location:        d.Point.orb(),
		Sign:            d.Sign.model(),
		EditStatus:      model.EditStatus(d.EditStatus),
		Mode:            model.DetectionMode(d.Mode),
		OsmComparison:   model.OsmComparison(d.OsmComparison),
		ConfidenceLevel: d.ConfidenceLevel,
	}
	if d.Author != nil {
		out.Author = &model.Author{ExternalID: d.Author.ExternalID, UserName: d.Author.UserName, Type: d.Author.Type}
	}
	if d.CreationTimestamp > 0 {
		out.CreatedAt = time.UnixMilli(d.CreationTimestamp).UTC()
	}
	return out
}

func (c clusterDTO) model() model.Cluster {
	return model.Cluster{
		ID:              c.ID,
		Location:        c.Point.orb(),
		Sign:            c.Sign.model(),
		OsmComparison:   model.OsmComparison(c.OsmComparison),
		ConfidenceLevel: c.ConfidenceLevel,
		DetectionIDs:    c.DetectionIDs,
		PhotoIDs:        c.PhotoIDs,
	}
}

func (s segmentDTO) model() model.Segment {
	ls := make(orb.LineString, 0, len(s.Track))
	for _, ll := range s.Track {
		ls = append(ls, orb.Point{ll[1], ll[0]})
	}
	return model.Segment{ID: s.ID, WayID: s.WayID, Geometry: ls, Coverage: s.Coverage}
}

func detections(in []detectionDTO) []model.Detection {
	out := make([]model.Detection, 0, len(in))
	for _, d := range in {
		out = append(out, d.model())
	}
	return out
}
