package merger

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/mohammed-shakir/streetview-viewport/internal/core/model"
)

func dets(ids ...int64) []model.Detection {
	out := make([]model.Detection, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.Detection{ID: id})
	}
	return out
}

func ids(ds []model.Detection) []int64 {
	out := make([]int64, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.ID)
	}
	return out
}

func TestFilterClusterDetections_RemovesMembers(t *testing.T) {
	clusters := []model.Cluster{
		{ID: 1, DetectionIDs: []int64{2, 4}},
		{ID: 2, DetectionIDs: []int64{5}},
	}
	got := FilterClusterDetections(clusters, dets(1, 2, 3, 4, 5, 6))
	if want := []int64{1, 3, 6}; !slices.Equal(ids(got), want) {
		t.Fatalf("got %v want %v", ids(got), want)
	}
}

func TestFilterClusterDetections_AbsentClustersPassThrough(t *testing.T) {
	in := dets(1, 2)
	got := FilterClusterDetections(nil, in)
	if !slices.Equal(ids(got), []int64{1, 2}) {
		t.Fatalf("got %v", ids(got))
	}
}

func TestFilterClusterDetections_NilMembersExcludeNothing(t *testing.T) {
	clusters := []model.Cluster{{ID: 1}, {ID: 2, DetectionIDs: nil}}
	got := FilterClusterDetections(clusters, dets(1, 2, 3))
	if !slices.Equal(ids(got), []int64{1, 2, 3}) {
		t.Fatalf("got %v", ids(got))
	}
}

func TestFilterClusterDetections_AllRemovedIsPresentEmpty(t *testing.T) {
	got := FilterClusterDetections([]model.Cluster{{DetectionIDs: []int64{1}}}, dets(1))
	if got == nil {
		t.Fatalf("present input must stay present when everything is filtered")
	}
	if len(got) != 0 {
		t.Fatalf("got %v", ids(got))
	}
}

func TestFilterClusterDetections_Properties(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for i := range 200 {
		var clusters []model.Cluster
		if i%5 != 0 {
			n := r.IntN(4)
			clusters = make([]model.Cluster, 0, n)
			for c := range n {
				var members []int64
				if r.IntN(3) > 0 {
					for range r.IntN(5) {
						members = append(members, r.Int64N(20))
					}
				}
				clusters = append(clusters, model.Cluster{ID: int64(c), DetectionIDs: members})
			}
		}
		var in []model.Detection
		for range r.IntN(15) {
			in = append(in, model.Detection{ID: r.Int64N(20)})
		}

		union := map[int64]bool{}
		for _, c := range clusters {
			for _, id := range c.DetectionIDs {
				union[id] = true
			}
		}
		var want []int64
		for _, d := range in {
			if clusters == nil || !union[d.ID] {
				want = append(want, d.ID)
			}
		}

		once := FilterClusterDetections(clusters, in)
		if !slices.Equal(ids(once), nonNil(want)) {
			t.Fatalf("case %d: got %v want %v", i, ids(once), want)
		}
		twice := FilterClusterDetections(clusters, once)
		if !slices.Equal(ids(twice), ids(once)) {
			t.Fatalf("case %d: not idempotent: %v then %v", i, ids(once), ids(twice))
		}
	}
}

func nonNil(in []int64) []int64 {
	if in == nil {
		return []int64{}
	}
	return in
}

func TestMergePhotoPages_FirstMetadataWins(t *testing.T) {
	a := &model.PhotoDataSet{Photos: []model.Photo{{ID: 1}, {ID: 2}}, Page: 1, ItemsPerPage: 1000, TotalItems: 2}
	b := &model.PhotoDataSet{Photos: []model.Photo{{ID: 3}}, Page: 4, ItemsPerPage: 5, TotalItems: 99}

	got := MergePhotoPages([]*model.PhotoDataSet{nil, a, b})
	if got == nil {
		t.Fatalf("expected merged set")
	}
	if got.Page != 1 || got.ItemsPerPage != 1000 || got.TotalItems != 2 {
		t.Fatalf("metadata = %+v", got)
	}
	var order []int64
	for _, p := range got.Photos {
		order = append(order, p.ID)
	}
	if !slices.Equal(order, []int64{1, 2, 3}) {
		t.Fatalf("order = %v", order)
	}
	if len(a.Photos) != 2 {
		t.Fatalf("input page must not be mutated")
	}
}

func TestMergePhotoPages_EmptyCollapsesToNil(t *testing.T) {
	empty := &model.PhotoDataSet{Photos: []model.Photo{}, Page: 1, ItemsPerPage: 1000}
	if got := MergePhotoPages([]*model.PhotoDataSet{empty, empty}); got != nil {
		t.Fatalf("want nil, got %+v", got)
	}
	if got := MergePhotoPages(nil); got != nil {
		t.Fatalf("want nil for no pages")
	}
}
