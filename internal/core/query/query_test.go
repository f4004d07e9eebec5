package query

import (
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/mohammed-shakir/streetview-viewport/internal/core/model"
)

func TestSearchClusters_ExpandsBoundingBox(t *testing.T) {
	area := model.BoundingBox{North: 10, South: 9, East: 5, West: 4}
	d := SearchClusters(area, nil, nil)
	v := d.Values()

	want := map[string]float64{
		ParamNorth: 10.004,
		ParamSouth: 8.996,
		ParamEast:  5.004,
		ParamWest:  3.996,
	}
	for k, w := range want {
		got, err := strconv.ParseFloat(v.Get(k), 64)
		if err != nil {
			t.Fatalf("param %q: %v", k, err)
		}
		if math.Abs(got-w) > 1e-9 {
			t.Fatalf("param %q got %v want %v", k, got, w)
		}
	}
	if got := v.Get(ParamNorth); got != "10.004" {
		t.Fatalf("north encoded as %q want 10.004", got)
	}
	if d.Method != MethodSearchClusters {
		t.Fatalf("method=%q", d.Method)
	}
}

func TestSearchClusters_NeverExcludesSignTypesOrAuthor(t *testing.T) {
	d := SearchClusters(model.BoundingBox{North: 1, South: 0, East: 1, West: 0}, nil, &model.DetectionFilter{})
	v := d.Values()
	if v.Has(ParamExcludedSignTypes) {
		t.Fatalf("cluster query must not exclude sign types: %s", d.Query)
	}
	if v.Has(ParamExternalID) {
		t.Fatalf("cluster query must not carry an author: %s", d.Query)
	}
}

func TestSearchDetections_AlwaysExcludesBlurring(t *testing.T) {
	area := model.BoundingBox{North: 46.1, South: 46, East: 23.6, West: 23.5}
	for _, f := range []*model.DetectionFilter{nil, {}, {SignTypes: []string{"SPEED_LIMIT"}}} {
		v := SearchDetections(area, nil, nil, f).Values()
		if got := v.Get(ParamExcludedSignTypes); got != BlurringSignType {
			t.Fatalf("excludedSignTypes=%q want %q", got, BlurringSignType)
		}
	}
}

func TestSearchDetections_MappedExpandsToTwoRawStatuses(t *testing.T) {
	f := &model.DetectionFilter{EditStatuses: []model.EditStatus{model.EditStatusMapped}}
	d := SearchDetections(model.BoundingBox{North: 1, South: 0, East: 1, West: 0}, nil, nil, f)

	got := d.Values().Get(ParamEditStatuses)
	if got != "ALREADY_FIXED,FIXED" {
		t.Fatalf("editStatuses=%q want ALREADY_FIXED,FIXED", got)
	}
	if !strings.Contains(d.Query, ParamEditStatuses+"=ALREADY_FIXED%2CFIXED") {
		t.Fatalf("collection must be one percent-encoded value: %s", d.Query)
	}
}

func TestSearchDetections_AuthorPinsOSMType(t *testing.T) {
	id := int64(4242)
	v := SearchDetections(model.BoundingBox{North: 1, South: 0, East: 1, West: 0}, nil, &id, nil).Values()
	if v.Get(ParamExternalID) != "4242" || v.Get(ParamAuthorType) != "OSM" {
		t.Fatalf("author params wrong: %v", v)
	}

	v = SearchDetections(model.BoundingBox{North: 1, South: 0, East: 1, West: 0}, nil, nil, nil).Values()
	if v.Has(ParamExternalID) || v.Has(ParamAuthorType) {
		t.Fatalf("author params must be absent without author id: %v", v)
	}
}

func TestSearchDetections_FullFilterOrderAndEncoding(t *testing.T) {
	date := time.Date(2024, 3, 9, 23, 30, 0, 0, time.FixedZone("X", -2*3600))
	f := &model.DetectionFilter{
		OsmComparisons: []model.OsmComparison{model.OsmComparisonNew, model.OsmComparisonChanged, model.OsmComparisonNew},
		SignTypes:      []string{"SPEED_LIMIT"},
		SpecificSigns:  []model.Sign{{InternalName: "SPEED_LIMIT_50_US"}, {InternalName: "STOP_US"}},
		Modes:          []model.DetectionMode{model.DetectionModeManual},
	}
	d := SearchDetections(model.BoundingBox{North: 2, South: 1, East: 2, West: 1}, &date, nil, f)

	if !strings.HasPrefix(d.Query, "format=json&north=2&south=1&east=2&west=1&date=2024-03-10") {
		t.Fatalf("unexpected prefix: %s", d.Query)
	}
	v := d.Values()
	if got := v.Get(ParamOsmComparisons); got != "CHANGED,NEW" {
		t.Fatalf("osmComparisons=%q", got)
	}
	if got := v.Get(ParamIncludedSignNames); got != "SPEED_LIMIT_50_US,STOP_US" {
		t.Fatalf("includedSignNames=%q", got)
	}
	if got := v.Get(ParamModes); got != "MANUAL" {
		t.Fatalf("modes=%q", got)
	}
	if v.Has(ParamEditStatuses) {
		t.Fatalf("empty collection must be omitted: %s", d.Query)
	}
}

func TestSearchClusters_ConfidenceRange(t *testing.T) {
	lo, hi := 0.4, 0.9
	f := &model.DetectionFilter{ConfidenceLevel: &model.ConfidenceLevelFilter{Min: &lo, Max: &hi}}
	v := SearchClusters(model.BoundingBox{North: 1, South: 0, East: 1, West: 0}, nil, f).Values()
	if v.Get(ParamMinConfidenceLevel) != "0.4" || v.Get(ParamMaxConfidenceLevel) != "0.9" {
		t.Fatalf("confidence params wrong: %v", v)
	}
	v = SearchDetections(model.BoundingBox{North: 1, South: 0, East: 1, West: 0}, nil, nil, f).Values()
	if v.Has(ParamMinConfidenceLevel) {
		t.Fatalf("detection search does not filter on confidence: %v", v)
	}
}

func TestRetrieveByID(t *testing.T) {
	d := RetrieveByID(MethodRetrieveDetection, 77, true)
	if d.Query != "id=77&excludedSignTypes=BLURRING" {
		t.Fatalf("query=%q", d.Query)
	}
	d = RetrieveByID(MethodRetrieveCluster, 5, false)
	if d.Query != "id=5" {
		t.Fatalf("query=%q", d.Query)
	}
	if got := d.URL("http://svc/apollo/"); got != "http://svc/apollo/retrieveCluster?id=5" {
		t.Fatalf("url=%q", got)
	}
}

func TestNearbyPhotos_Paging(t *testing.T) {
	d := NearbyPhotos(model.BoundingBox{North: 1, South: 0, East: 1, West: 0}, nil, nil, model.Paging{Page: 3, ItemsPerPage: 200})
	v := d.Values()
	if v.Get(ParamPage) != "3" || v.Get(ParamItemsPerPage) != "200" {
		t.Fatalf("paging params wrong: %v", v)
	}
	if v.Has(ParamExcludedSignTypes) {
		t.Fatalf("photo query must not exclude sign types")
	}
}
