// Package prefs persists user preferences: the current data type, map view
// settings, the search filter, suppression flags and photo paging state.
package prefs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/mohammed-shakir/streetview-viewport/internal/core/model"
)

const (
	keyDataType        = "data_type"
	keyMapView         = "map_view"
	keySearchFilter    = "search_filter"
	keyPhotoPaging     = "photo_paging"
	keySuppressPrefix  = "suppress."
	defaultPhotoZoom   = 16
	defaultMapDataZoom = 10
)

// MapViewSettings are the user's map view switches.
type MapViewSettings struct {
	ManualSwitch  bool             `json:"manualSwitch"`
	PhotoZoom     int              `json:"photoZoom"`
	HighZoomTypes []model.DataType `json:"highZoomTypes,omitempty"`
}

// Store is the typed preference API. Values that were never written come
// back as their defaults.
type Store interface {
	DataType(ctx context.Context) (model.DataType, error)
	SetDataType(ctx context.Context, dt model.DataType) error
	MapViewSettings(ctx context.Context) (MapViewSettings, error)
	SetMapViewSettings(ctx context.Context, s MapViewSettings) error
	SearchFilter(ctx context.Context) (model.SearchFilter, error)
	SetSearchFilter(ctx context.Context, f model.SearchFilter) error
	SuppressFlag(ctx context.Context, dt model.DataType) (bool, error)
	SetSuppressFlag(ctx context.Context, dt model.DataType, suppress bool) error
	PhotoPaging(ctx context.Context) (model.Paging, bool, error)
	SetPhotoPaging(ctx context.Context, p model.Paging) error
	Close() error
}

// backend is the raw key/value layer every driver provides.
type backend interface {
	get(ctx context.Context, key string) ([]byte, bool, error)
	set(ctx context.Context, key string, val []byte) error
	close() error
}

type store struct {
	kv       backend
	defaults model.SearchFilter
	// photoZoom is returned before settings were saved; saved values below
	// minPhotoZoom fall back to it.
	photoZoom    int
	minPhotoZoom int
}

func newStore(kv backend) *store {
	return &store{
		kv:           kv,
		defaults:     model.DefaultSearchFilter(),
		photoZoom:    defaultPhotoZoom,
		minPhotoZoom: defaultMapDataZoom,
	}
}

// WithDefaultFilter sets the filter returned before one was saved.
func WithDefaultFilter(s Store, f model.SearchFilter) Store {
	if st, ok := s.(*store); ok {
		st.defaults = f
	}
	return s
}

// WithPhotoZoom sets the photo zoom used before map view settings were saved
// and the map data zoom below which a saved photo zoom is rejected.
func WithPhotoZoom(s Store, photoZoom, mapDataZoom int) Store {
	st, ok := s.(*store)
	if !ok {
		return s
	}
	if mapDataZoom > 0 {
		st.minPhotoZoom = mapDataZoom
	}
	if photoZoom >= st.minPhotoZoom {
		st.photoZoom = photoZoom
	} else if st.photoZoom < st.minPhotoZoom {
		st.photoZoom = st.minPhotoZoom
	}
	return s
}

func (s *store) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	b, ok, err := s.kv.get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *store) setJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.set(ctx, key, b); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *store) DataType(ctx context.Context) (model.DataType, error) {
	b, ok, err := s.kv.get(ctx, keyDataType)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", keyDataType, err)
	}
	if !ok || len(b) == 0 {
		return "", nil
	}
	return model.ParseDataType(string(b))
}

func (s *store) SetDataType(ctx context.Context, dt model.DataType) error {
	if dt != "" && !dt.Valid() {
		return fmt.Errorf("invalid data type %q", dt)
	}
	if err := s.kv.set(ctx, keyDataType, []byte(dt)); err != nil {
		return fmt.Errorf("write %s: %w", keyDataType, err)
	}
	return nil
}

func (s *store) MapViewSettings(ctx context.Context) (MapViewSettings, error) {
	def := MapViewSettings{PhotoZoom: s.photoZoom}
	out := def
	if _, err := s.getJSON(ctx, keyMapView, &out); err != nil {
		return def, err
	}
	if out.PhotoZoom < s.minPhotoZoom {
		out.PhotoZoom = s.photoZoom
	}
	return out, nil
}

func (s *store) SetMapViewSettings(ctx context.Context, v MapViewSettings) error {
	return s.setJSON(ctx, keyMapView, v)
}

func (s *store) SearchFilter(ctx context.Context) (model.SearchFilter, error) {
	var f model.SearchFilter
	ok, err := s.getJSON(ctx, keySearchFilter, &f)
	if err != nil || !ok {
		return s.defaults, err
	}
	return f, nil
}

func (s *store) SetSearchFilter(ctx context.Context, f model.SearchFilter) error {
	return s.setJSON(ctx, keySearchFilter, f)
}

func (s *store) SuppressFlag(ctx context.Context, dt model.DataType) (bool, error) {
	key := keySuppressPrefix + dt.Label()
	b, ok, err := s.kv.get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	v, err := strconv.ParseBool(string(b))
	if err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, nil
}

func (s *store) SetSuppressFlag(ctx context.Context, dt model.DataType, suppress bool) error {
	key := keySuppressPrefix + dt.Label()
	if err := s.kv.set(ctx, key, []byte(strconv.FormatBool(suppress))); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *store) PhotoPaging(ctx context.Context) (model.Paging, bool, error) {
	var p model.Paging
	ok, err := s.getJSON(ctx, keyPhotoPaging, &p)
	return p, ok, err
}

func (s *store) SetPhotoPaging(ctx context.Context, p model.Paging) error {
	if p.Page < 1 || p.ItemsPerPage < 1 {
		return errors.New("paging requires page and items per page >= 1")
	}
	return s.setJSON(ctx, keyPhotoPaging, p)
}

func (s *store) Close() error {
	return s.kv.close()
}
