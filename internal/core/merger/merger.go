// Package merger combines partial search results into one consistent set.
package merger

import (
	"github.com/mohammed-shakir/streetview-viewport/internal/core/model"
)

// FilterClusterDetections drops every detection that is a member of one of
// the clusters. A nil clusters slice returns detections unchanged; a cluster
// with nil DetectionIDs excludes nothing. A non-nil input always yields a
// non-nil result.
func FilterClusterDetections(clusters []model.Cluster, detections []model.Detection) []model.Detection {
	if clusters == nil || detections == nil {
		return detections
	}
	members := make(map[int64]struct{})
	for _, c := range clusters {
		for _, id := range c.DetectionIDs {
			members[id] = struct{}{}
		}
	}
	if len(members) == 0 {
		return detections
	}
	out := make([]model.Detection, 0, len(detections))
	for _, d := range detections {
		if _, ok := members[d.ID]; ok {
			continue
		}
		out = append(out, d)
	}
	return out
}

// MergePhotoPages concatenates pages in order, keeping the paging metadata of
// the first non-nil page. The merged set is nil when no photos remain.
func MergePhotoPages(pages []*model.PhotoDataSet) *model.PhotoDataSet {
	var merged *model.PhotoDataSet
	for _, p := range pages {
		if p == nil {
			continue
		}
		if merged == nil {
			merged = &model.PhotoDataSet{
				Photos:       make([]model.Photo, 0, len(p.Photos)),
				Page:         p.Page,
				ItemsPerPage: p.ItemsPerPage,
				TotalItems:   p.TotalItems,
			}
		}
		merged.AddPhotos(p.Photos)
	}
	return NormalizePhotos(merged)
}

// NormalizePhotos collapses an empty photo set to nil.
func NormalizePhotos(ds *model.PhotoDataSet) *model.PhotoDataSet {
	if !ds.HasItems() {
		return nil
	}
	return ds
}
