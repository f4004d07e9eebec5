// Package query builds the normalized request strings sent to the imagery services.
package query

import (
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/streetview-viewport/internal/core/model"
)

// AreaExtend widens cluster searches so clusters whose centroid sits just
// outside the viewport are still returned.
const AreaExtend = 0.004

const (
	FormatValue      = "json"
	BlurringSignType = "BLURRING"
	dateLayout       = "2006-01-02"
)

// service methods
const (
	MethodNearbyPhotos               = "list/nearby-photos"
	MethodSegments                   = "nearby-tracks"
	MethodSearchDetections           = "searchDetections"
	MethodSearchClusters             = "searchClusters"
	MethodRetrieveDetection          = "retrieveDetection"
	MethodRetrieveCluster            = "retrieveCluster"
	MethodRetrieveClusterDetections  = "retrieveClusterDetections"
	MethodRetrieveClusterPhotos      = "retrieveClusterPhotos"
	MethodRetrieveSequenceDetections = "retrieveSequenceDetections"
	MethodRetrievePhotoDetections    = "retrievePhotoDetections"
)

// parameter names
const (
	ParamFormat             = "format"
	ParamNorth              = "north"
	ParamSouth              = "south"
	ParamEast               = "east"
	ParamWest               = "west"
	ParamDate               = "date"
	ParamExternalID         = "externalId"
	ParamAuthorType         = "authorType"
	ParamOsmComparisons     = "osmComparisons"
	ParamEditStatuses       = "editStatuses"
	ParamIncludedSignTypes  = "includedSignTypes"
	ParamIncludedSignNames  = "includedSignNames"
	ParamRegion             = "region"
	ParamModes              = "modes"
	ParamMinConfidenceLevel = "minConfidenceLevel"
	ParamMaxConfidenceLevel = "maxConfidenceLevel"
	ParamExcludedSignTypes  = "excludedSignTypes"
	ParamID                 = "id"
	ParamSequenceID         = "sequenceId"
	ParamSequenceIndex      = "sequenceIndex"
	ParamPage               = "page"
	ParamItemsPerPage       = "itemsPerPage"
	ParamZoom               = "zoom"
)

// Descriptor is a single service call: method path plus encoded query string.
type Descriptor struct {
	Method string
	Query  string
}

// URL appends the descriptor to a service base path.
func (d Descriptor) URL(base string) string {
	return strings.TrimRight(base, "/") + "/" + d.Method + "?" + d.Query
}

// Values parses the encoded query; mainly useful for inspection.
func (d Descriptor) Values() url.Values {
	v, _ := url.ParseQuery(d.Query)
	return v
}

// ExpandClusterArea widens area by AreaExtend on all four sides.
func ExpandClusterArea(area model.BoundingBox) model.BoundingBox {
	return area.Expand(AreaExtend)
}

func SearchDetections(area model.BoundingBox, date *time.Time, authorID *int64, f *model.DetectionFilter) Descriptor {
	b := newBuilder()
	b.format()
	b.area(area)
	b.date(date)
	b.author(authorID)
	b.detectionFilter(f, false)
	b.excludedSignTypes()
	return b.build(MethodSearchDetections)
}

// SearchClusters always searches an expanded area and never carries an author.
func SearchClusters(area model.BoundingBox, date *time.Time, f *model.DetectionFilter) Descriptor {
	b := newBuilder()
	b.format()
	b.area(ExpandClusterArea(area))
	b.date(date)
	b.detectionFilter(f, true)
	return b.build(MethodSearchClusters)
}

func NearbyPhotos(area model.BoundingBox, date *time.Time, authorID *int64, paging model.Paging) Descriptor {
	b := newBuilder()
	b.format()
	b.area(area)
	b.date(date)
	b.author(authorID)
	if paging.Page > 0 {
		b.add(ParamPage, strconv.Itoa(paging.Page))
	}
	if paging.ItemsPerPage > 0 {
		b.add(ParamItemsPerPage, strconv.Itoa(paging.ItemsPerPage))
	}
	return b.build(MethodNearbyPhotos)
}

func Segments(area model.BoundingBox, zoom int, date *time.Time, authorID *int64) Descriptor {
	b := newBuilder()
	b.format()
	b.area(area)
	b.add(ParamZoom, strconv.Itoa(zoom))
	b.date(date)
	b.author(authorID)
	return b.build(MethodSegments)
}

// RetrieveByID builds a single id lookup; detection lookups exclude blurred signs.
func RetrieveByID(method string, id int64, excludeBlurred bool) Descriptor {
	b := newBuilder()
	b.add(ParamID, strconv.FormatInt(id, 10))
	if excludeBlurred {
		b.excludedSignTypes()
	}
	return b.build(method)
}

func SequenceDetections(sequenceID int64) Descriptor {
	b := newBuilder()
	b.add(ParamSequenceID, strconv.FormatInt(sequenceID, 10))
	b.excludedSignTypes()
	return b.build(MethodRetrieveSequenceDetections)
}

func PhotoDetections(sequenceID int64, sequenceIndex int) Descriptor {
	b := newBuilder()
	b.add(ParamSequenceID, strconv.FormatInt(sequenceID, 10))
	b.add(ParamSequenceIndex, strconv.Itoa(sequenceIndex))
	b.excludedSignTypes()
	return b.build(MethodRetrievePhotoDetections)
}

// RawEditStatuses maps UI statuses to service tokens; MAPPED becomes FIXED and ALREADY_FIXED.
func RawEditStatuses(in []model.EditStatus) []string {
	out := make([]string, 0, len(in)+1)
	for _, s := range in {
		if s == model.EditStatusMapped {
			out = append(out, string(model.EditStatusFixed), string(model.EditStatusAlreadyFixed))
			continue
		}
		out = append(out, string(s))
	}
	return out
}

type builder struct {
	sb strings.Builder
}

func newBuilder() *builder { return &builder{} }

func (b *builder) add(k, v string) {
	if b.sb.Len() > 0 {
		b.sb.WriteByte('&')
	}
	b.sb.WriteString(k)
	b.sb.WriteByte('=')
	b.sb.WriteString(v)
}

func (b *builder) format() {
	b.add(ParamFormat, FormatValue)
}

func (b *builder) area(a model.BoundingBox) {
	b.add(ParamNorth, coord(a.North))
	b.add(ParamSouth, coord(a.South))
	b.add(ParamEast, coord(a.East))
	b.add(ParamWest, coord(a.West))
}

func (b *builder) date(d *time.Time) {
	if d == nil {
		return
	}
	b.add(ParamDate, d.UTC().Format(dateLayout))
}

func (b *builder) author(id *int64) {
	if id == nil {
		return
	}
	a := model.NewOSMAuthor(strconv.FormatInt(*id, 10))
	b.add(ParamExternalID, url.QueryEscape(a.ExternalID))
	b.add(ParamAuthorType, a.Type)
}

func (b *builder) detectionFilter(f *model.DetectionFilter, withConfidence bool) {
	if f == nil {
		return
	}
	b.set(ParamOsmComparisons, stringsOf(f.OsmComparisons))
	b.set(ParamEditStatuses, RawEditStatuses(f.EditStatuses))
	b.set(ParamIncludedSignTypes, f.SignTypes)
	b.set(ParamIncludedSignNames, f.SignNames())
	if r := strings.TrimSpace(f.Region); r != "" {
		b.add(ParamRegion, url.QueryEscape(r))
	}
	b.set(ParamModes, stringsOf(f.Modes))
	if withConfidence && f.ConfidenceLevel != nil {
		if f.ConfidenceLevel.Min != nil {
			b.add(ParamMinConfidenceLevel, strconv.FormatFloat(*f.ConfidenceLevel.Min, 'f', -1, 64))
		}
		if f.ConfidenceLevel.Max != nil {
			b.add(ParamMaxConfidenceLevel, strconv.FormatFloat(*f.ConfidenceLevel.Max, 'f', -1, 64))
		}
	}
}

func (b *builder) excludedSignTypes() {
	b.add(ParamExcludedSignTypes, url.QueryEscape(BlurringSignType))
}

// set writes a collection as one percent-encoded, comma-joined set; empty sets are omitted.
func (b *builder) set(k string, vals []string) {
	v := encodeSet(vals)
	if v == "" {
		return
	}
	b.add(k, v)
}

func (b *builder) build(method string) Descriptor {
	return Descriptor{Method: method, Query: b.sb.String()}
}

func encodeSet(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	uniq := make([]string, 0, len(vals))
	for _, v := range vals {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		uniq = append(uniq, v)
	}
	slices.Sort(uniq)
	uniq = slices.Compact(uniq)
	if len(uniq) == 0 {
		return ""
	}
	return url.QueryEscape(strings.Join(uniq, ","))
}

func stringsOf[T ~string](in []T) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		out = append(out, string(v))
	}
	return out
}

// coordinates are rounded to 1e-7 degrees so margin arithmetic encodes cleanly
func coord(f float64) string {
	return strconv.FormatFloat(math.Round(f*1e7)/1e7, 'f', -1, 64)
}
