// Package coordinator fans out typed searches concurrently and joins them
// into one result set.
package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mohammed-shakir/streetview-viewport/internal/core/merger"
	"github.com/mohammed-shakir/streetview-viewport/internal/core/model"
	"github.com/mohammed-shakir/streetview-viewport/internal/core/observability"
	"github.com/mohammed-shakir/streetview-viewport/internal/core/service"
	"github.com/mohammed-shakir/streetview-viewport/internal/core/suppress"
	"github.com/mohammed-shakir/streetview-viewport/internal/logger"
)

// Policy is the suppression gate consulted once per failed data type.
type Policy interface {
	ShouldNotify(ctx context.Context, dt model.DataType) bool
	RecordUserChoice(ctx context.Context, dt model.DataType, suppress bool) error
}

// Search describes one completed coordinator call.
type Search struct {
	Kind      string
	Areas     []model.BoundingBox
	DataTypes []model.DataType
	Failed    []model.DataType
	Counts    map[model.DataType]int
	Duration  time.Duration
}

// Observer is told about every completed search.
type Observer interface {
	SearchCompleted(ctx context.Context, s Search)
}

type Option func(*Coordinator)

func WithObserver(o Observer) Option {
	return func(c *Coordinator) { c.observer = o }
}

// WithPhotoPageSize sets the page size for area photo searches. Area
// searches always start from the first page.
func WithPhotoPageSize(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.photoPaging = model.Paging{Page: 1, ItemsPerPage: n}
		}
	}
}

type Coordinator struct {
	src         service.Source
	policy      Policy
	prompter    suppress.Prompter
	observer    Observer
	logger      *slog.Logger
	photoPaging model.Paging
	now         func() time.Time
}

func New(src service.Source, policy Policy, prompter suppress.Prompter, lg *slog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		src:         src,
		policy:      policy,
		prompter:    prompter,
		logger:      lg,
		photoPaging: model.NearbyPhotosDefault,
		now:         time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type typeResult struct {
	dt         model.DataType
	photos     *model.PhotoDataSet
	detections []model.Detection
	clusters   []model.Cluster
	err        error
}

// SearchHighZoom runs one pipeline per requested high zoom data type. A
// type's sub-areas are fetched sequentially; different types run in
// parallel. A failed type is absent from the result and never affects the
// others. The call blocks until every type finished and any prompts were
// answered.
func (c *Coordinator) SearchHighZoom(ctx context.Context, areas []model.BoundingBox, filter model.SearchFilter) model.HighZoomResultSet {
	start := c.now()
	var types []model.DataType
	for _, dt := range model.DistinctDataTypes(filter.DataTypes) {
		if dt.HighZoom() {
			types = append(types, dt)
		}
	}
	if len(types) == 0 {
		return model.HighZoomResultSet{}
	}

	jobs := make(chan model.DataType, len(types))
	results := make(chan typeResult, len(types))

	var wg sync.WaitGroup
	wg.Add(len(types))
	for range len(types) {
		go func() {
			defer wg.Done()
			for dt := range jobs {
				results <- c.fetchType(ctx, dt, areas, filter)
			}
		}()
	}
	for _, dt := range types {
		jobs <- dt
	}
	close(jobs)
	wg.Wait()
	close(results)

	byType := make(map[model.DataType]typeResult, len(types))
	for r := range results {
		byType[r.dt] = r
	}

	var out model.HighZoomResultSet
	var failed []model.DataType
	for _, dt := range types {
		r := byType[dt]
		if r.err != nil {
			failed = append(failed, dt)
			c.notify(ctx, dt, r.err)
			continue
		}
		switch dt {
		case model.DataTypePhoto:
			out.Photos = merger.NormalizePhotos(r.photos)
		case model.DataTypeDetection:
			out.Detections = r.detections
		case model.DataTypeCluster:
			out.Clusters = r.clusters
		}
	}

	if out.Detections != nil && out.Clusters != nil {
		before := len(out.Detections)
		out.Detections = merger.FilterClusterDetections(out.Clusters, out.Detections)
		observability.AddDedupRemoved(before - len(out.Detections))
	}

	counts := map[model.DataType]int{}
	if out.Photos != nil {
		counts[model.DataTypePhoto] = len(out.Photos.Photos)
	}
	if out.Detections != nil {
		counts[model.DataTypeDetection] = len(out.Detections)
	}
	if out.Clusters != nil {
		counts[model.DataTypeCluster] = len(out.Clusters)
	}
	c.completed(ctx, Search{Kind: "high_zoom", Areas: areas, DataTypes: types, Failed: failed, Counts: counts}, start)
	return out
}

func (c *Coordinator) fetchType(ctx context.Context, dt model.DataType, areas []model.BoundingBox, filter model.SearchFilter) typeResult {
	res := typeResult{dt: dt}
	switch dt {
	case model.DataTypePhoto:
		pages := make([]*model.PhotoDataSet, 0, len(areas))
		for _, a := range areas {
			p, err := c.src.ListNearbyPhotos(ctx, a, filter.Date, filter.AuthorID, c.photoPaging)
			if err != nil {
				res.err = err
				return res
			}
			pages = append(pages, p)
		}
		res.photos = merger.MergePhotoPages(pages)
	case model.DataTypeDetection:
		res.detections = make([]model.Detection, 0)
		for _, a := range areas {
			d, err := c.src.SearchDetections(ctx, a, filter.Date, filter.AuthorID, filter.DetectionFilter)
			if err != nil {
				res.err = err
				res.detections = nil
				return res
			}
			res.detections = append(res.detections, d...)
		}
	case model.DataTypeCluster:
		res.clusters = make([]model.Cluster, 0)
		for _, a := range areas {
			cl, err := c.src.SearchClusters(ctx, a, filter.Date, filter.DetectionFilter)
			if err != nil {
				res.err = err
				res.clusters = nil
				return res
			}
			res.clusters = append(res.clusters, cl...)
		}
	}
	return res
}

// ListNearbyPhotos fetches one photo page for a single area. The page is
// returned as is, including when empty, so paging state survives.
func (c *Coordinator) ListNearbyPhotos(ctx context.Context, area model.BoundingBox, filter model.SearchFilter, paging model.Paging) (*model.PhotoDataSet, error) {
	start := c.now()
	ds, err := c.src.ListNearbyPhotos(ctx, area, filter.Date, filter.AuthorID, paging)
	s := Search{Kind: "photo_page", Areas: []model.BoundingBox{area}, DataTypes: []model.DataType{model.DataTypePhoto}}
	if err != nil {
		s.Failed = s.DataTypes
		c.notify(ctx, model.DataTypePhoto, err)
		c.completed(ctx, s, start)
		return nil, err
	}
	s.Counts = map[model.DataType]int{model.DataTypePhoto: len(ds.Photos)}
	c.completed(ctx, s, start)
	return ds, nil
}

// SearchSegments fetches segments for every area concurrently and unions
// them by id in area order. Any failure yields nil and the error; segment
// failures are logged, never prompted.
func (c *Coordinator) SearchSegments(ctx context.Context, areas []model.BoundingBox, filter model.SearchFilter, zoom int) ([]model.Segment, error) {
	start := c.now()
	parts := make([][]model.Segment, len(areas))
	errs := make([]error, len(areas))

	var wg sync.WaitGroup
	for i, a := range areas {
		wg.Add(1)
		go func() {
			defer wg.Done()
			parts[i], errs[i] = c.src.ListSegments(ctx, a, zoom, filter.Date, filter.AuthorID)
		}()
	}
	wg.Wait()

	s := Search{Kind: "segments", Areas: areas, DataTypes: []model.DataType{model.DataTypeSegment}}
	for _, err := range errs {
		if err != nil {
			c.logger.WarnContext(logger.WithDataType(ctx, model.DataTypeSegment.Label()), "segment search failed", "err", err)
			s.Failed = s.DataTypes
			c.completed(ctx, s, start)
			return nil, err
		}
	}

	seen := make(map[int64]struct{})
	out := make([]model.Segment, 0)
	for _, p := range parts {
		for _, seg := range p {
			if _, ok := seen[seg.ID]; ok {
				continue
			}
			seen[seg.ID] = struct{}{}
			out = append(out, seg)
		}
	}
	s.Counts = map[model.DataType]int{model.DataTypeSegment: len(out)}
	c.completed(ctx, s, start)
	return out, nil
}

func (c *Coordinator) notify(ctx context.Context, dt model.DataType, err error) {
	ctx = logger.WithDataType(ctx, dt.Label())
	c.logger.WarnContext(ctx, "search failed", "err", err)
	if c.policy == nil || c.prompter == nil || !c.policy.ShouldNotify(ctx, dt) {
		return
	}
	answer := c.prompter.Confirm(ctx, dt, suppress.Message(dt))
	if err := c.policy.RecordUserChoice(ctx, dt, answer); err != nil {
		c.logger.ErrorContext(ctx, "record suppression choice failed", "err", err)
	}
}

func (c *Coordinator) completed(ctx context.Context, s Search, start time.Time) {
	s.Duration = c.now().Sub(start)
	observability.ObserveSearch(s.Kind, s.Duration.Seconds())
	if c.observer != nil {
		c.observer.SearchCompleted(ctx, s)
	}
}
