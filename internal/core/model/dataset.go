package model

type Paging struct {
	Page         int `json:"page"`
	ItemsPerPage int `json:"itemsPerPage"`
}

const DefaultNearbyPhotosMaxItems = 1000

// NearbyPhotosDefault is the shared first-page window used by area searches.
var NearbyPhotosDefault = Paging{Page: 1, ItemsPerPage: DefaultNearbyPhotosMaxItems}

// PhotoDataSet is one page of photo locations.
type PhotoDataSet struct {
	Photos       []Photo `json:"photos"`
	Page         int     `json:"page"`
	ItemsPerPage int     `json:"itemsPerPage"`
	TotalItems   int     `json:"totalItems"`
}

func (p *PhotoDataSet) HasItems() bool {
	return p != nil && len(p.Photos) > 0
}

func (p *PhotoDataSet) AddPhotos(photos []Photo) {
	p.Photos = append(p.Photos, photos...)
}

func (p *PhotoDataSet) HasPreviousPage() bool {
	return p != nil && p.Page > 1
}

func (p *PhotoDataSet) HasNextPage() bool {
	if p == nil || p.ItemsPerPage <= 0 {
		return false
	}
	if p.TotalItems > 0 {
		return p.Page*p.ItemsPerPage < p.TotalItems
	}
	return len(p.Photos) >= p.ItemsPerPage
}

// HighZoomResultSet is the merged result of a multi-type search. A nil field
// means not requested or failed; a non-nil empty slice means requested and empty.
type HighZoomResultSet struct {
	Photos     *PhotoDataSet `json:"photos"`
	Detections []Detection   `json:"detections"`
	Clusters   []Cluster     `json:"clusters"`
}

func (r HighZoomResultSet) Empty() bool {
	return r.Photos == nil && r.Detections == nil && r.Clusters == nil
}

// DataSet is the payload handed to the renderer: segments or high zoom data, never both.
type DataSet struct {
	Segments []Segment          `json:"segments,omitempty"`
	HighZoom *HighZoomResultSet `json:"highZoom,omitempty"`
}

func (d *DataSet) HasSegments() bool {
	return d != nil && d.Segments != nil
}

func (d *DataSet) HasPhotos() bool {
	return d != nil && d.HighZoom != nil && d.HighZoom.Photos != nil
}

func (d *DataSet) PhotoDataSet() *PhotoDataSet {
	if d == nil || d.HighZoom == nil {
		return nil
	}
	return d.HighZoom.Photos
}
