// Package service talks to the remote imagery and detection services and
// decodes their JSON responses into domain entities.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mohammed-shakir/streetview-viewport/internal/cache/keys"
	"github.com/mohammed-shakir/streetview-viewport/internal/cache/response"
	"github.com/mohammed-shakir/streetview-viewport/internal/core/model"
	"github.com/mohammed-shakir/streetview-viewport/internal/core/observability"
	"github.com/mohammed-shakir/streetview-viewport/internal/core/query"
)

// Source is the typed remote fetch contract used by the coordinator and the API.
type Source interface {
	ListNearbyPhotos(ctx context.Context, area model.BoundingBox, date *time.Time, authorID *int64, paging model.Paging) (*model.PhotoDataSet, error)
	SearchDetections(ctx context.Context, area model.BoundingBox, date *time.Time, authorID *int64, f *model.DetectionFilter) ([]model.Detection, error)
	SearchClusters(ctx context.Context, area model.BoundingBox, date *time.Time, f *model.DetectionFilter) ([]model.Cluster, error)
	ListSegments(ctx context.Context, area model.BoundingBox, zoom int, date *time.Time, authorID *int64) ([]model.Segment, error)
	RetrieveDetection(ctx context.Context, id int64) (*model.Detection, error)
	RetrieveCluster(ctx context.Context, id int64) (*model.Cluster, error)
	RetrieveClusterDetections(ctx context.Context, clusterID int64) ([]model.Detection, error)
	RetrieveSequenceDetections(ctx context.Context, sequenceID int64) ([]model.Detection, error)
}

type Config struct {
	PhotoURL     string
	DetectionURL string
	SegmentURL   string
}

type Option func(*Client)

// WithResponseCache enables caching of by-id lookups, and of area searches
// when searches is true.
func WithResponseCache(store *response.Store, searches bool) Option {
	return func(c *Client) {
		c.cache = store
		c.cacheSearches = searches
	}
}

type Client struct {
	cfg           Config
	http          *http.Client
	logger        *slog.Logger
	cache         *response.Store
	cacheSearches bool
	startNow      func() time.Time // for tests
}

var _ Source = (*Client)(nil)

func New(logger *slog.Logger, hc *http.Client, cfg Config, opts ...Option) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}
	if cfg.SegmentURL == "" {
		cfg.SegmentURL = cfg.PhotoURL
	}
	c := &Client{cfg: cfg, http: hc, logger: logger, startNow: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) ListNearbyPhotos(ctx context.Context, area model.BoundingBox, date *time.Time, authorID *int64, paging model.Paging) (*model.PhotoDataSet, error) {
	d := query.NearbyPhotos(area, date, authorID, paging)
	var page photoPageDTO
	if err := c.get(ctx, model.DataTypePhoto, c.cfg.PhotoURL, d, c.cacheSearches, &page); err != nil {
		return nil, err
	}
	ds := &model.PhotoDataSet{
		Photos:       make([]model.Photo, 0, len(page.CurrentPageItems)),
		Page:         paging.Page,
		ItemsPerPage: paging.ItemsPerPage,
	}
	for _, p := range page.CurrentPageItems {
		ds.Photos = append(ds.Photos, p.model())
	}
	if len(page.TotalFilteredItems) > 0 {
		ds.TotalItems = page.TotalFilteredItems[0]
	}
	return ds, nil
}

func (c *Client) SearchDetections(ctx context.Context, area model.BoundingBox, date *time.Time, authorID *int64, f *model.DetectionFilter) ([]model.Detection, error) {
	d := query.SearchDetections(area, date, authorID, f)
	var out detectionListDTO
	if err := c.get(ctx, model.DataTypeDetection, c.cfg.DetectionURL, d, c.cacheSearches, &out); err != nil {
		return nil, err
	}
	return detections(out.Detections), nil
}

func (c *Client) SearchClusters(ctx context.Context, area model.BoundingBox, date *time.Time, f *model.DetectionFilter) ([]model.Cluster, error) {
	d := query.SearchClusters(area, date, f)
	var out clusterListDTO
	if err := c.get(ctx, model.DataTypeCluster, c.cfg.DetectionURL, d, c.cacheSearches, &out); err != nil {
		return nil, err
	}
	clusters := make([]model.Cluster, 0, len(out.Clusters))
	for _, cl := range out.Clusters {
		clusters = append(clusters, cl.model())
	}
	return clusters, nil
}

func (c *Client) ListSegments(ctx context.Context, area model.BoundingBox, zoom int, date *time.Time, authorID *int64) ([]model.Segment, error) {
	d := query.Segments(area, zoom, date, authorID)
	var out segmentListDTO
	if err := c.get(ctx, model.DataTypeSegment, c.cfg.SegmentURL, d, c.cacheSearches, &out); err != nil {
		return nil, err
	}
	segs := make([]model.Segment, 0, len(out.Tracks))
	for _, s := range out.Tracks {
		segs = append(segs, s.model())
	}
	return segs, nil
}

func (c *Client) RetrieveDetection(ctx context.Context, id int64) (*model.Detection, error) {
	d := query.RetrieveByID(query.MethodRetrieveDetection, id, false)
	var out detectionOneDTO
	if err := c.get(ctx, model.DataTypeDetection, c.cfg.DetectionURL, d, true, &out); err != nil {
		return nil, err
	}
	if out.Detection == nil {
		return nil, failure(model.DataTypeDetection, d.Method, fmt.Errorf("detection %d: %w", id, ErrNotFound))
	}
	det := out.Detection.model()
	return &det, nil
}

func (c *Client) RetrieveCluster(ctx context.Context, id int64) (*model.Cluster, error) {
	d := query.RetrieveByID(query.MethodRetrieveCluster, id, false)
	var out clusterOneDTO
	if err := c.get(ctx, model.DataTypeCluster, c.cfg.DetectionURL, d, true, &out); err != nil {
		return nil, err
	}
	if out.Cluster == nil {
		return nil, failure(model.DataTypeCluster, d.Method, fmt.Errorf("cluster %d: %w", id, ErrNotFound))
	}
	cl := out.Cluster.model()
	return &cl, nil
}

func (c *Client) RetrieveClusterDetections(ctx context.Context, clusterID int64) ([]model.Detection, error) {
	d := query.RetrieveByID(query.MethodRetrieveClusterDetections, clusterID, true)
	var out detectionListDTO
	if err := c.get(ctx, model.DataTypeCluster, c.cfg.DetectionURL, d, true, &out); err != nil {
		return nil, err
	}
	return detections(out.Detections), nil
}

func (c *Client) RetrieveSequenceDetections(ctx context.Context, sequenceID int64) ([]model.Detection, error) {
	d := query.SequenceDetections(sequenceID)
	var out detectionListDTO
	if err := c.get(ctx, model.DataTypeDetection, c.cfg.DetectionURL, d, true, &out); err != nil {
		return nil, err
	}
	return detections(out.Detections), nil
}

// Invalidate evicts cached by-id responses for the given detections or
// clusters and returns the number of keys removed.
func (c *Client) Invalidate(ctx context.Context, dt model.DataType, ids ...int64) (int, error) {
	if c.cache == nil || len(ids) == 0 {
		return 0, nil
	}
	var ks []string
	for _, id := range ids {
		switch dt {
		case model.DataTypeDetection:
			ks = append(ks, c.key(dt, query.RetrieveByID(query.MethodRetrieveDetection, id, false)))
		case model.DataTypeCluster:
			ks = append(ks,
				c.key(dt, query.RetrieveByID(query.MethodRetrieveCluster, id, false)),
				c.key(dt, query.RetrieveByID(query.MethodRetrieveClusterDetections, id, true)))
		default:
			return 0, fmt.Errorf("invalidate: unsupported data type %s", dt)
		}
	}
	if err := c.cache.Delete(ctx, ks...); err != nil {
		return 0, fmt.Errorf("invalidate %s: %w", dt, err)
	}
	return len(ks), nil
}

func (c *Client) key(dt model.DataType, d query.Descriptor) string {
	return keys.ResponseKey(dt.Label(), d.URL(c.cfg.DetectionURL))
}

type statusCarrier interface {
	status() *statusDTO
}

func (e *envelope) status() *statusDTO { return e.Status }

// get fetches d from base and decodes it into out. Every failure is returned
// as a *ServiceFailure for dt.
func (c *Client) get(ctx context.Context, dt model.DataType, base string, d query.Descriptor, cacheable bool, out statusCarrier) error {
	u := d.URL(base)
	key := keys.ResponseKey(dt.Label(), u)

	if cacheable && c.cache != nil {
		if body, ok := c.cache.Get(ctx, key); ok {
			if err := decode(body, out); err == nil {
				return nil
			}
		}
	}

	body, err := c.fetch(ctx, dt, u)
	if err == nil {
		err = decode(body, out)
	}
	if err != nil {
		observability.IncFetchFailure(dt.Label())
		c.logger.Debug("upstream fetch failed", "data_type", dt.Label(), "method", d.Method, "err", err)
		return failure(dt, d.Method, err)
	}

	if cacheable && c.cache != nil {
		c.cache.Put(ctx, key, body)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, dt model.DataType, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := c.startNow()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	observability.ObserveUpstreamLatency(dt.Label(), time.Since(start).Seconds())

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("upstream status %d: %w", resp.StatusCode, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, fmt.Errorf("upstream status %d: %s", resp.StatusCode, string(b))
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return b, nil
}

func decode(body []byte, out statusCarrier) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	st := out.status()
	if st == nil || st.HTTPCode < 400 {
		return nil
	}
	err := fmt.Errorf("api status %d %s: %s", st.HTTPCode, st.APICode, st.APIMessage)
	if st.HTTPCode == http.StatusNotFound {
		return errors.Join(err, ErrNotFound)
	}
	return err
}
