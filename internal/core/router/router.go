// Package router exposes the viewport controller over HTTP.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/streetview-viewport/internal/core/model"
	"github.com/mohammed-shakir/streetview-viewport/internal/core/observability"
	"github.com/mohammed-shakir/streetview-viewport/internal/core/service"
	"github.com/mohammed-shakir/streetview-viewport/internal/core/viewmode"
	"github.com/mohammed-shakir/streetview-viewport/internal/render"
)

const maxZoom = 22

// Controller is the view mode state machine.
type Controller interface {
	Update(ctx context.Context, vp viewmode.Viewport) (viewmode.Decision, error)
	DownloadPhotos(ctx context.Context, loadNext bool) (*model.PhotoDataSet, error)
	PhotoDownloadAllowed(ctx context.Context, zoom int, trackSelected bool) (bool, error)
	SwitchDataType(ctx context.Context) (viewmode.Decision, error)
	Mode(ctx context.Context) (viewmode.Mode, error)
}

type ViewSource interface {
	View() render.View
}

// Lookup serves by-id reads for the details panels.
type Lookup interface {
	RetrieveDetection(ctx context.Context, id int64) (*model.Detection, error)
	RetrieveCluster(ctx context.Context, id int64) (*model.Cluster, error)
	RetrieveClusterDetections(ctx context.Context, clusterID int64) ([]model.Detection, error)
}

type Publisher interface {
	NextSeq() uint64
	Publish(ctx context.Context, ev render.Event) error
}

type FilterStore interface {
	SearchFilter(ctx context.Context) (model.SearchFilter, error)
	SetSearchFilter(ctx context.Context, f model.SearchFilter) error
}

type API struct {
	ctrl    Controller
	view    ViewSource
	lookup  Lookup
	pub     Publisher
	filters FilterStore
	logger  *slog.Logger
}

func NewAPI(ctrl Controller, view ViewSource, lookup Lookup, pub Publisher, filters FilterStore, logger *slog.Logger) *API {
	return &API{ctrl: ctrl, view: view, lookup: lookup, pub: pub, filters: filters, logger: logger}
}

// Routes mounts the API on r.
func (a *API) Routes(r chi.Router) {
	r.Post("/viewport", a.instrument("/viewport", a.handleViewport))
	r.Post("/photos/next", a.instrument("/photos/next", a.handlePhotos(true)))
	r.Post("/photos/previous", a.instrument("/photos/previous", a.handlePhotos(false)))
	r.Post("/datatype/switch", a.instrument("/datatype/switch", a.handleSwitch))
	r.Post("/selection", a.instrument("/selection", a.handleSelection))
	r.Get("/view", a.instrument("/view", a.handleView))
	r.Get("/mode", a.instrument("/mode", a.handleMode))
	r.Get("/filter", a.instrument("/filter", a.handleGetFilter))
	r.Put("/filter", a.instrument("/filter", a.handlePutFilter))
	r.Get("/detections/{id}", a.instrument("/detections/{id}", a.handleDetection))
	r.Get("/clusters/{id}", a.instrument("/clusters/{id}", a.handleCluster))
}

func (a *API) instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		h(sw, r)
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (a *API) handleViewport(w http.ResponseWriter, r *http.Request) {
	vp, err := ParseViewport(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	d, err := a.ctrl.Update(r.Context(), vp)
	if err != nil {
		a.fail(w, r, "viewport update failed", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *API) handlePhotos(next bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		m, err := a.ctrl.Mode(ctx)
		if err != nil {
			a.fail(w, r, "load view mode failed", err)
			return
		}
		ok, err := a.ctrl.PhotoDownloadAllowed(ctx, m.ZoomLevel, m.TrackSelected)
		if err != nil {
			a.fail(w, r, "photo download check failed", err)
			return
		}
		if !ok {
			http.Error(w, "photo download not allowed in current view mode", http.StatusConflict)
			return
		}
		ds, err := a.ctrl.DownloadPhotos(ctx, next)
		if err != nil {
			a.fail(w, r, "photo download failed", err)
			return
		}
		if ds == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, ds)
	}
}

func (a *API) handleSwitch(w http.ResponseWriter, r *http.Request) {
	d, err := a.ctrl.SwitchDataType(r.Context())
	if errors.Is(err, viewmode.ErrSwitchUnavailable) {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		a.fail(w, r, "data type switch failed", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *API) handleSelection(w http.ResponseWriter, r *http.Request) {
	var sel *render.Selection
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&sel); err != nil {
		http.Error(w, fmt.Sprintf("invalid selection: %v", err), http.StatusBadRequest)
		return
	}
	if sel != nil && (!sel.DataType.Valid() || sel.DataType == model.DataTypeSegment) {
		http.Error(w, "invalid selection: data type must be PHOTO, DETECTION or CLUSTER", http.StatusBadRequest)
		return
	}
	ev := render.Event{Seq: a.pub.NextSeq(), Kind: render.Select, Selection: sel}
	if err := a.pub.Publish(r.Context(), ev); err != nil {
		a.fail(w, r, "publish selection failed", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (a *API) handleView(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.view.View())
}

func (a *API) handleMode(w http.ResponseWriter, r *http.Request) {
	m, err := a.ctrl.Mode(r.Context())
	if err != nil {
		a.fail(w, r, "load view mode failed", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *API) handleGetFilter(w http.ResponseWriter, r *http.Request) {
	f, err := a.filters.SearchFilter(r.Context())
	if err != nil {
		a.fail(w, r, "load search filter failed", err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (a *API) handlePutFilter(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := a.filters.SetSearchFilter(r.Context(), f); err != nil {
		a.fail(w, r, "save search filter failed", err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

type clusterResponse struct {
	Cluster    *model.Cluster    `json:"cluster"`
	Detections []model.Detection `json:"detections"`
}

func (a *API) handleDetection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	d, err := a.lookup.RetrieveDetection(r.Context(), id)
	if err != nil {
		a.fail(w, r, "retrieve detection failed", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (a *API) handleCluster(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx := r.Context()
	c, err := a.lookup.RetrieveCluster(ctx, id)
	if err != nil {
		a.fail(w, r, "retrieve cluster failed", err)
		return
	}
	out := clusterResponse{Cluster: c}
	if r.URL.Query().Get("detections") == "true" {
		ds, err := a.lookup.RetrieveClusterDetections(ctx, id)
		if err != nil {
			a.fail(w, r, "retrieve cluster detections failed", err)
			return
		}
		out.Detections = ds
	}
	writeJSON(w, http.StatusOK, out)
}

// fail maps err to a status code: not found is 404, upstream failures 502,
// a canceled request 499 and anything else 500.
func (a *API) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	code := http.StatusInternalServerError
	var sf *service.ServiceFailure
	switch {
	case errors.Is(err, service.ErrNotFound):
		code = http.StatusNotFound
	case errors.As(err, &sf):
		code = http.StatusBadGateway
	case errors.Is(err, context.Canceled):
		code = 499
	}
	if code >= http.StatusInternalServerError {
		a.logger.ErrorContext(r.Context(), msg, "err", err, "path", r.URL.Path)
	} else {
		a.logger.DebugContext(r.Context(), msg, "err", err, "path", r.URL.Path)
	}
	http.Error(w, http.StatusText(code), code)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
