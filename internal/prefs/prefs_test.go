package prefs

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mohammed-shakir/streetview-viewport/internal/cache/redisstore"
	"github.com/mohammed-shakir/streetview-viewport/internal/core/model"
)

func backends(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	return map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemory() },
		"redis": func(t *testing.T) Store {
			mr, err := miniredis.Run()
			if err != nil {
				t.Fatalf("miniredis: %v", err)
			}
			t.Cleanup(mr.Close)
			rc, err := redisstore.New(context.Background(), mr.Addr())
			if err != nil {
				t.Fatalf("redis: %v", err)
			}
			return NewRedis(rc, "s1", rc.Close)
		},
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "prefs.db"))
			if err != nil {
				t.Fatalf("OpenSQLite: %v", err)
			}
			return s
		},
	}
}

func TestStore_Defaults(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })
			ctx := context.Background()

			dt, err := s.DataType(ctx)
			if err != nil || dt != "" {
				t.Fatalf("DataType = %q %v, want unset", dt, err)
			}
			mv, err := s.MapViewSettings(ctx)
			if err != nil || mv.ManualSwitch || mv.PhotoZoom != 16 {
				t.Fatalf("MapViewSettings = %+v %v", mv, err)
			}
			f, err := s.SearchFilter(ctx)
			if err != nil || !f.Has(model.DataTypePhoto) {
				t.Fatalf("SearchFilter = %+v %v", f, err)
			}
			sup, err := s.SuppressFlag(ctx, model.DataTypeCluster)
			if err != nil || sup {
				t.Fatalf("SuppressFlag = %v %v", sup, err)
			}
			if _, ok, err := s.PhotoPaging(ctx); err != nil || ok {
				t.Fatalf("PhotoPaging should be unset, ok=%v err=%v", ok, err)
			}
		})
	}
}

func TestStore_RoundTrip(t *testing.T) {
	date := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	author := int64(42)
	filter := model.SearchFilter{
		DataTypes: []model.DataType{model.DataTypeDetection, model.DataTypeCluster},
		AuthorID:  &author,
		Date:      &date,
		DetectionFilter: &model.DetectionFilter{
			EditStatuses: []model.EditStatus{model.EditStatusMapped},
			SignTypes:    []string{"SPEED_LIMIT"},
		},
	}

	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			t.Cleanup(func() { _ = s.Close() })
			ctx := context.Background()

			if err := s.SetDataType(ctx, model.DataTypeSegment); err != nil {
				t.Fatalf("SetDataType: %v", err)
			}
			if err := s.SetDataType(ctx, model.DataTypePhoto); err != nil {
				t.Fatalf("SetDataType: %v", err)
			}
			if dt, _ := s.DataType(ctx); dt != model.DataTypePhoto {
				t.Fatalf("last write should win, got %s", dt)
			}
			if err := s.SetDataType(ctx, model.DataType("BOGUS")); err == nil {
				t.Fatalf("expected invalid data type error")
			}

			mv := MapViewSettings{ManualSwitch: true, PhotoZoom: 15, HighZoomTypes: []model.DataType{model.DataTypePhoto}}
			if err := s.SetMapViewSettings(ctx, mv); err != nil {
				t.Fatalf("SetMapViewSettings: %v", err)
			}
			got, err := s.MapViewSettings(ctx)
			if err != nil || !got.ManualSwitch || got.PhotoZoom != 15 || len(got.HighZoomTypes) != 1 {
				t.Fatalf("MapViewSettings = %+v %v", got, err)
			}

			if err := s.SetSearchFilter(ctx, filter); err != nil {
				t.Fatalf("SetSearchFilter: %v", err)
			}
			f, err := s.SearchFilter(ctx)
			if err != nil {
				t.Fatalf("SearchFilter: %v", err)
			}
			if f.AuthorID == nil || *f.AuthorID != 42 || f.Date == nil || !f.Date.Equal(date) {
				t.Fatalf("filter = %+v", f)
			}
			if f.DetectionFilter == nil || f.DetectionFilter.EditStatuses[0] != model.EditStatusMapped {
				t.Fatalf("detection filter = %+v", f.DetectionFilter)
			}

			if err := s.SetSuppressFlag(ctx, model.DataTypeCluster, true); err != nil {
				t.Fatalf("SetSuppressFlag: %v", err)
			}
			if v, _ := s.SuppressFlag(ctx, model.DataTypeCluster); !v {
				t.Fatalf("cluster flag not stored")
			}
			if v, _ := s.SuppressFlag(ctx, model.DataTypeDetection); v {
				t.Fatalf("detection flag must be independent")
			}

			if err := s.SetPhotoPaging(ctx, model.Paging{Page: 3, ItemsPerPage: 1000}); err != nil {
				t.Fatalf("SetPhotoPaging: %v", err)
			}
			if p, ok, _ := s.PhotoPaging(ctx); !ok || p.Page != 3 {
				t.Fatalf("PhotoPaging = %+v %v", p, ok)
			}
			if err := s.SetPhotoPaging(ctx, model.Paging{}); err == nil {
				t.Fatalf("expected invalid paging error")
			}
		})
	}
}

func TestSQLite_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.db")
	ctx := context.Background()

	s, err := OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := s.SetSuppressFlag(ctx, model.DataTypePhoto, true); err != nil {
		t.Fatalf("SetSuppressFlag: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = OpenSQLite(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	if v, _ := s.SuppressFlag(ctx, model.DataTypePhoto); !v {
		t.Fatalf("flag lost across reopen")
	}
}

func TestRedis_SessionsAreIsolated(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	ctx := context.Background()
	rc, err := redisstore.New(ctx, mr.Addr())
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })

	a := NewRedis(rc, "a", nil)
	b := NewRedis(rc, "b", nil)
	if err := a.SetDataType(ctx, model.DataTypeSegment); err != nil {
		t.Fatalf("SetDataType: %v", err)
	}
	if dt, _ := b.DataType(ctx); dt != "" {
		t.Fatalf("session b saw %s", dt)
	}
	if !mr.Exists("pref:a:data_type") {
		t.Fatalf("expected key pref:a:data_type, have %v", mr.Keys())
	}
	if mr.TTL("pref:a:data_type") != 0 {
		t.Fatalf("preferences must not expire")
	}
}

func TestWithDefaultFilter(t *testing.T) {
	f := model.SearchFilter{DataTypes: []model.DataType{model.DataTypeSegment}}
	s := WithDefaultFilter(NewMemory(), f)
	got, err := s.SearchFilter(context.Background())
	if err != nil || !got.Has(model.DataTypeSegment) || got.Has(model.DataTypePhoto) {
		t.Fatalf("SearchFilter = %+v %v", got, err)
	}
}

func TestWithPhotoZoom_DefaultsOnlyUnsavedSettings(t *testing.T) {
	ctx := context.Background()
	s := WithPhotoZoom(NewMemory(), 17, 10)

	mv, err := s.MapViewSettings(ctx)
	if err != nil || mv.PhotoZoom != 17 {
		t.Fatalf("unsaved settings should use the configured zoom, got %+v %v", mv, err)
	}

	if err := s.SetMapViewSettings(ctx, MapViewSettings{PhotoZoom: 16}); err != nil {
		t.Fatalf("SetMapViewSettings: %v", err)
	}
	mv, err = s.MapViewSettings(ctx)
	if err != nil || mv.PhotoZoom != 16 {
		t.Fatalf("saved zoom equal to the built-in default must be kept, got %+v %v", mv, err)
	}
}

func TestWithPhotoZoom_RejectsZoomBelowMapDataZoom(t *testing.T) {
	ctx := context.Background()
	s := WithPhotoZoom(NewMemory(), 14, 12)

	if err := s.SetMapViewSettings(ctx, MapViewSettings{PhotoZoom: 11}); err != nil {
		t.Fatalf("SetMapViewSettings: %v", err)
	}
	mv, err := s.MapViewSettings(ctx)
	if err != nil || mv.PhotoZoom != 14 {
		t.Fatalf("zoom 11 is below map data zoom 12, got %+v %v", mv, err)
	}

	if err := s.SetMapViewSettings(ctx, MapViewSettings{PhotoZoom: 12}); err != nil {
		t.Fatalf("SetMapViewSettings: %v", err)
	}
	if mv, _ := s.MapViewSettings(ctx); mv.PhotoZoom != 12 {
		t.Fatalf("zoom at map data zoom is allowed, got %+v", mv)
	}
}
