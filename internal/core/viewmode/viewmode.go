// Package viewmode decides, on every viewport change, which data type is
// shown and drives the matching fetch.
package viewmode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mohammed-shakir/streetview-viewport/internal/core/model"
	"github.com/mohammed-shakir/streetview-viewport/internal/core/observability"
	"github.com/mohammed-shakir/streetview-viewport/internal/prefs"
	"github.com/mohammed-shakir/streetview-viewport/internal/render"
)

type State string

const (
	Dormant State = "DORMANT"
	Segment State = "SEGMENT"
	Photo   State = "PHOTO"
)

var ErrSwitchUnavailable = errors.New("data type switch is not available")

type Config struct {
	// MapDataZoom is the minimum zoom at which anything is fetched.
	MapDataZoom int
	// MapPhotoZoom enables the manual switch and bounds manual photo mode.
	MapPhotoZoom int
	// NearbyPhotosMaxItems is the page size for next/previous downloads.
	NearbyPhotosMaxItems int
}

func DefaultConfig() Config {
	return Config{MapDataZoom: 10, MapPhotoZoom: 15, NearbyPhotosMaxItems: model.DefaultNearbyPhotosMaxItems}
}

// Viewport is one viewport change event.
type Viewport struct {
	Zoom  int                 `json:"zoom"`
	Areas []model.BoundingBox `json:"areas"`
	// Bounds is the single area used for photo paging.
	Bounds         model.BoundingBox `json:"bounds"`
	TrackSelected  bool              `json:"trackSelected"`
	CheckSelection bool              `json:"checkSelection"`
}

// Mode is the derived view mode.
type Mode struct {
	ManualSwitchEnabled bool           `json:"manualSwitchEnabled"`
	CurrentDataType     model.DataType `json:"currentDataType,omitempty"`
	ZoomLevel           int            `json:"zoomLevel"`
	TrackSelected       bool           `json:"trackSelected"`
}

// Decision reports what one Update did.
type Decision struct {
	Seq           uint64         `json:"seq"`
	State         State          `json:"state"`
	Previous      model.DataType `json:"previous,omitempty"`
	Fetched       bool           `json:"fetched"`
	Applied       bool           `json:"applied"`
	SwitchEnabled bool           `json:"switchEnabled"`
}

// Searcher runs the fetches; the coordinator implements it.
type Searcher interface {
	SearchHighZoom(ctx context.Context, areas []model.BoundingBox, filter model.SearchFilter) model.HighZoomResultSet
	ListNearbyPhotos(ctx context.Context, area model.BoundingBox, filter model.SearchFilter, paging model.Paging) (*model.PhotoDataSet, error)
	SearchSegments(ctx context.Context, areas []model.BoundingBox, filter model.SearchFilter, zoom int) ([]model.Segment, error)
}

// Publisher delivers render events; the render dispatcher implements it.
type Publisher interface {
	NextSeq() uint64
	Publish(ctx context.Context, ev render.Event) error
}

// Preferences is the subset of the preference store the controller uses.
type Preferences interface {
	DataType(ctx context.Context) (model.DataType, error)
	SetDataType(ctx context.Context, dt model.DataType) error
	MapViewSettings(ctx context.Context) (prefs.MapViewSettings, error)
	SearchFilter(ctx context.Context) (model.SearchFilter, error)
	SetPhotoPaging(ctx context.Context, p model.Paging) error
}

type Controller struct {
	cfg    Config
	search Searcher
	pub    Publisher
	prefs  Preferences
	logger *slog.Logger

	mu        sync.Mutex
	last      Viewport
	hasLast   bool
	displayed model.DataType
	highZoom  *model.HighZoomResultSet
}

func New(cfg Config, search Searcher, pub Publisher, p Preferences, logger *slog.Logger) *Controller {
	def := DefaultConfig()
	if cfg.MapDataZoom <= 0 {
		cfg.MapDataZoom = def.MapDataZoom
	}
	if cfg.MapPhotoZoom <= 0 {
		cfg.MapPhotoZoom = def.MapPhotoZoom
	}
	if cfg.NearbyPhotosMaxItems <= 0 {
		cfg.NearbyPhotosMaxItems = def.NearbyPhotosMaxItems
	}
	return &Controller{cfg: cfg, search: search, pub: pub, prefs: p, logger: logger}
}

// Update evaluates the mode rules for vp and runs the resulting fetch. It
// returns once the result was handed to the publisher.
func (c *Controller) Update(ctx context.Context, vp Viewport) (Decision, error) {
	seq := c.pub.NextSeq()
	c.mu.Lock()
	c.last, c.hasLast = vp, true
	c.mu.Unlock()

	d := Decision{Seq: seq, State: Dormant, Previous: c.displayedType()}
	if vp.Zoom < c.cfg.MapDataZoom {
		return d, nil
	}

	settings, err := c.prefs.MapViewSettings(ctx)
	if err != nil {
		return d, fmt.Errorf("load map view settings: %w", err)
	}
	filter, err := c.prefs.SearchFilter(ctx)
	if err != nil {
		return d, fmt.Errorf("load search filter: %w", err)
	}
	dt, err := c.prefs.DataType(ctx)
	if err != nil {
		return d, fmt.Errorf("load data type: %w", err)
	}

	var mode State
	switch {
	case vp.TrackSelected:
		mode = Photo
	case settings.ManualSwitch:
		d.SwitchEnabled = vp.Zoom >= c.cfg.MapPhotoZoom
		if err := c.publish(ctx, render.Event{Seq: seq, Kind: render.SwitchButton, SwitchEnabled: d.SwitchEnabled}); err != nil {
			return d, err
		}
		if vp.Zoom < c.cfg.MapPhotoZoom {
			if dt == model.DataTypePhoto {
				if err := c.saveDataType(ctx, model.DataTypeSegment); err != nil {
					return d, err
				}
			}
			mode = Segment
		} else if dt == model.DataTypePhoto {
			mode = Photo
		} else {
			mode = Segment
		}
	default:
		if vp.Zoom < settings.PhotoZoom {
			if dt == "" || dt == model.DataTypePhoto {
				if err := c.saveDataType(ctx, model.DataTypeSegment); err != nil {
					return d, err
				}
			}
			mode = Segment
		} else {
			if dt == "" || dt == model.DataTypeSegment {
				if err := c.saveDataType(ctx, model.DataTypePhoto); err != nil {
					return d, err
				}
			}
			mode = Photo
		}
	}

	d.State = mode
	if mode == Photo {
		err = c.updatePhotos(ctx, seq, vp, settings, filter, &d)
	} else {
		err = c.updateSegments(ctx, seq, vp, filter, &d)
	}
	return d, err
}

func (c *Controller) updateSegments(ctx context.Context, seq uint64, vp Viewport, filter model.SearchFilter, d *Decision) error {
	if d.Previous != model.DataTypeSegment && d.Previous != "" {
		if err := c.publish(ctx, render.Event{Seq: seq, Kind: render.Clear, ClearHighZoom: true}); err != nil {
			return err
		}
		c.setDisplayed(model.DataTypeSegment, nil)
	}

	areas := validAreas(vp.Areas)
	if len(areas) == 0 {
		return nil
	}
	d.Fetched = true
	segs, err := c.search.SearchSegments(ctx, areas, filter, vp.Zoom)
	if err != nil {
		segs = nil
	}

	if !c.stillCurrent(ctx, model.DataTypeSegment, false) {
		return nil
	}
	ev := render.Event{
		Seq:            seq,
		Kind:           render.Apply,
		Mode:           model.DataTypeSegment,
		Data:           &model.DataSet{Segments: segs},
		CheckSelection: vp.CheckSelection,
	}
	if err := c.publish(ctx, ev); err != nil {
		return err
	}
	d.Applied = true
	c.transition(d.Previous, model.DataTypeSegment)
	c.setDisplayed(model.DataTypeSegment, nil)
	return nil
}

func (c *Controller) updatePhotos(ctx context.Context, seq uint64, vp Viewport, settings prefs.MapViewSettings, filter model.SearchFilter, d *Decision) error {
	if d.Previous == model.DataTypeSegment {
		if err := c.publish(ctx, render.Event{Seq: seq, Kind: render.Clear, ClearSegments: true}); err != nil {
			return err
		}
		c.setDisplayed("", nil)
	}
	if err := c.publish(ctx, render.Event{Seq: seq, Kind: render.Paging}); err != nil {
		return err
	}

	areas := validAreas(vp.Areas)
	if len(areas) == 0 && vp.Bounds.Valid() {
		areas = []model.BoundingBox{vp.Bounds}
	}
	if len(areas) == 0 {
		return nil
	}
	d.Fetched = true
	result := c.search.SearchHighZoom(ctx, areas, filter.WithDataTypes(highZoomTypes(settings, filter)...))

	if !c.stillCurrent(ctx, model.DataTypePhoto, vp.TrackSelected) {
		return nil
	}
	ev := render.Event{
		Seq:            seq,
		Kind:           render.Apply,
		Mode:           model.DataTypePhoto,
		Data:           &model.DataSet{HighZoom: &result},
		CheckSelection: vp.CheckSelection,
	}
	if err := c.publish(ctx, ev); err != nil {
		return err
	}
	d.Applied = true
	c.transition(d.Previous, model.DataTypePhoto)
	c.setDisplayed(model.DataTypePhoto, &result)
	return c.publish(ctx, render.Event{Seq: seq, Kind: render.Paging, Paging: pagingState(result.Photos)})
}

// DownloadPhotos replaces the displayed photo page with the next or previous
// one. It does nothing and returns nil when no photo page is displayed.
func (c *Controller) DownloadPhotos(ctx context.Context, loadNext bool) (*model.PhotoDataSet, error) {
	c.mu.Lock()
	vp := c.last
	var current *model.PhotoDataSet
	var hz model.HighZoomResultSet
	if c.displayed == model.DataTypePhoto && c.highZoom != nil {
		hz = *c.highZoom
		current = hz.Photos
	}
	c.mu.Unlock()

	if current == nil {
		return nil, nil
	}
	page := current.Page - 1
	if loadNext {
		page = current.Page + 1
	}
	if page < 1 {
		return nil, nil
	}
	paging := model.Paging{Page: page, ItemsPerPage: c.cfg.NearbyPhotosMaxItems}

	area := vp.Bounds
	if !area.Valid() {
		areas := validAreas(vp.Areas)
		if len(areas) == 0 {
			return &model.PhotoDataSet{Page: paging.Page, ItemsPerPage: paging.ItemsPerPage}, nil
		}
		area = areas[0]
	}

	filter, err := c.prefs.SearchFilter(ctx)
	if err != nil {
		return nil, fmt.Errorf("load search filter: %w", err)
	}

	seq := c.pub.NextSeq()
	if err := c.publish(ctx, render.Event{Seq: seq, Kind: render.Paging}); err != nil {
		return nil, err
	}
	ds, err := c.search.ListNearbyPhotos(ctx, area, filter, paging)
	if err != nil {
		if perr := c.publish(ctx, render.Event{Seq: seq, Kind: render.Paging, Paging: pagingState(current)}); perr != nil {
			c.logger.Warn("restore paging controls failed", "page", current.Page, "err", perr)
		}
		return nil, err
	}

	hz.Photos = ds
	ev := render.Event{
		Seq:            seq,
		Kind:           render.Apply,
		Mode:           model.DataTypePhoto,
		Data:           &model.DataSet{HighZoom: &hz},
		CheckSelection: true,
	}
	if err := c.publish(ctx, ev); err != nil {
		return nil, err
	}
	c.setDisplayed(model.DataTypePhoto, &hz)
	if err := c.prefs.SetPhotoPaging(ctx, paging); err != nil {
		c.logger.Warn("save photo paging failed", "err", err)
	}
	if err := c.publish(ctx, render.Event{Seq: seq, Kind: render.Paging, Paging: pagingState(ds)}); err != nil {
		return nil, err
	}
	return ds, nil
}

// PhotoDownloadAllowed reports whether next/previous photo downloads may run.
func (c *Controller) PhotoDownloadAllowed(ctx context.Context, zoom int, trackSelected bool) (bool, error) {
	settings, err := c.prefs.MapViewSettings(ctx)
	if err != nil {
		return false, fmt.Errorf("load map view settings: %w", err)
	}
	if settings.ManualSwitch {
		dt, err := c.prefs.DataType(ctx)
		if err != nil {
			return false, fmt.Errorf("load data type: %w", err)
		}
		return zoom >= c.cfg.MapPhotoZoom && dt == model.DataTypePhoto, nil
	}
	return zoom >= settings.PhotoZoom && !trackSelected, nil
}

// SwitchDataType flips the manual data type between PHOTO and SEGMENT and
// refreshes the last viewport.
func (c *Controller) SwitchDataType(ctx context.Context) (Decision, error) {
	settings, err := c.prefs.MapViewSettings(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("load map view settings: %w", err)
	}
	c.mu.Lock()
	vp, ok := c.last, c.hasLast
	c.mu.Unlock()
	if !settings.ManualSwitch || !ok || vp.Zoom < c.cfg.MapPhotoZoom {
		return Decision{}, ErrSwitchUnavailable
	}

	dt, err := c.prefs.DataType(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("load data type: %w", err)
	}
	next := model.DataTypePhoto
	if dt == model.DataTypePhoto {
		next = model.DataTypeSegment
	}
	if err := c.saveDataType(ctx, next); err != nil {
		return Decision{}, err
	}
	vp.CheckSelection = false
	return c.Update(ctx, vp)
}

// Mode returns the derived view mode for the last viewport.
func (c *Controller) Mode(ctx context.Context) (Mode, error) {
	settings, err := c.prefs.MapViewSettings(ctx)
	if err != nil {
		return Mode{}, fmt.Errorf("load map view settings: %w", err)
	}
	dt, err := c.prefs.DataType(ctx)
	if err != nil {
		return Mode{}, fmt.Errorf("load data type: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Mode{
		ManualSwitchEnabled: settings.ManualSwitch,
		CurrentDataType:     dt,
		ZoomLevel:           c.last.Zoom,
		TrackSelected:       c.last.TrackSelected,
	}, nil
}

// stillCurrent reports whether the stored data type still matches the
// fetched mode, so a switch made during the fetch wins.
func (c *Controller) stillCurrent(ctx context.Context, dt model.DataType, forced bool) bool {
	if forced {
		return true
	}
	stored, err := c.prefs.DataType(ctx)
	if err != nil {
		c.logger.Warn("reload data type failed", "err", err)
		return true
	}
	if stored == dt || (stored == "" && dt == model.DataTypeSegment) {
		return true
	}
	c.logger.Debug("discarding result for superseded mode", "fetched", dt.Label(), "stored", stored.Label())
	return false
}

func (c *Controller) saveDataType(ctx context.Context, dt model.DataType) error {
	if err := c.prefs.SetDataType(ctx, dt); err != nil {
		return fmt.Errorf("save data type: %w", err)
	}
	return nil
}

func (c *Controller) publish(ctx context.Context, ev render.Event) error {
	if err := c.pub.Publish(ctx, ev); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Kind, err)
	}
	return nil
}

func (c *Controller) displayedType() model.DataType {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.displayed
}

func (c *Controller) setDisplayed(dt model.DataType, hz *model.HighZoomResultSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.displayed = dt
	c.highZoom = hz
}

func (c *Controller) transition(from, to model.DataType) {
	if from != to {
		observability.IncViewTransition(from.Label(), to.Label())
	}
}

func validAreas(in []model.BoundingBox) []model.BoundingBox {
	out := make([]model.BoundingBox, 0, len(in))
	for _, a := range in {
		if a = a.Normalize(); a.Valid() {
			out = append(out, a)
		}
	}
	return out
}

func highZoomTypes(settings prefs.MapViewSettings, filter model.SearchFilter) []model.DataType {
	var out []model.DataType
	for _, src := range [][]model.DataType{settings.HighZoomTypes, filter.DataTypes} {
		for _, dt := range model.DistinctDataTypes(src) {
			if dt.HighZoom() {
				out = append(out, dt)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return []model.DataType{model.DataTypePhoto}
}

func pagingState(ds *model.PhotoDataSet) render.PagingState {
	return render.PagingState{Previous: ds.HasPreviousPage(), Next: ds.HasNextPage()}
}
