// Package http exposes the aggregation service over a JSON API.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonasfh/xover/internal/domain"
	"github.com/jonasfh/xover/internal/geo"
	"github.com/jonasfh/xover/internal/observability"
	"github.com/jonasfh/xover/internal/query"
	"github.com/jonasfh/xover/internal/service"
)

// Core is the slice of the service the API serves.
type Core interface {
	DataSetData(ctx context.Context, req service.ProfileRequest) (domain.ProfileData, error)
	DataTypes(ctx context.Context) ([]domain.DataType, error)
	Extent(ctx context.Context, dataSetID int64, minDepth float64) (geo.BoundingBox, error)
	Centroid(ctx context.Context, dataSetID int64) (geo.Point, error)
	Crossovers(ctx context.Context, dataSetID int64, rangeMeters float64, useBBox bool) ([]int64, error)
	Crossover(ctx context.Context, dataSetID int64, rangeMeters float64, useBBox bool, extraTypes []string) (service.CrossoverReport, error)
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server hosts the JSON API plus health and metrics endpoints.
type Server struct {
	core         Core
	store        Pinger
	logger       *slog.Logger
	metrics      *observability.Metrics
	queryTimeout time.Duration

	srv *http.Server
}

// NewServer builds a Server listening on addr.
func NewServer(addr string, core Core, store Pinger, queryTimeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	s := &Server{
		core:         core,
		store:        store,
		logger:       logger,
		metrics:      metrics,
		queryTimeout: queryTimeout,
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/data", s.handleData)
		r.Get("/datatypes", s.handleDataTypes)
		r.Route("/datasets/{id}", func(r chi.Router) {
			r.Get("/extent", s.handleExtent)
			r.Get("/centroid", s.handleCentroid)
			r.Get("/crossovers", s.handleCrossovers)
			r.Get("/crossover", s.handleCrossoverReport)
		})
	})

	return r
}

// ServeHTTP makes the server usable directly in httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.srv.Handler.ServeHTTP(w, r)
}

// Start runs the listener until it fails or Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.metrics.StoreReady.Set(0)
		s.logger.Warn("readiness check failed", "error", err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	s.metrics.StoreReady.Set(1)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	ids, err := parseIDList(r.URL.Query().Get("ids"))
	if err != nil {
		s.writeError(w, r, badRequest("ids", err))
		return
	}
	minDepth, err := parseFloat(r.URL.Query().Get("min_depth"), 0)
	if err != nil {
		s.writeError(w, r, badRequest("min_depth", err))
		return
	}
	maxDepth, err := parseFloat(r.URL.Query().Get("max_depth"), 0)
	if err != nil {
		s.writeError(w, r, badRequest("max_depth", err))
		return
	}
	bounds, err := parseBounds(r.URL.Query().Get("bounds"))
	if err != nil {
		s.writeError(w, r, badRequest("bounds", err))
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	out, err := s.core.DataSetData(ctx, service.ProfileRequest{
		DataSetIDs: ids,
		Types:      parseList(r.URL.Query().Get("types")),
		Bounds:     bounds,
		MinDepth:   minDepth,
		MaxDepth:   maxDepth,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDataTypes(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.requestContext(r)
	defer cancel()

	types, err := s.core.DataTypes(ctx)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"data_types": types})
}

func (s *Server) handleExtent(w http.ResponseWriter, r *http.Request) {
	id, err := dataSetID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	minDepth, err := parseFloat(r.URL.Query().Get("min_depth"), 0)
	if err != nil {
		s.writeError(w, r, badRequest("min_depth", err))
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	box, err := s.core.Extent(ctx, id, minDepth)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"data_set_id": id, "extent": box})
}

func (s *Server) handleCentroid(w http.ResponseWriter, r *http.Request) {
	id, err := dataSetID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	center, err := s.core.Centroid(ctx, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"data_set_id": id, "center": center})
}

func (s *Server) handleCrossovers(w http.ResponseWriter, r *http.Request) {
	id, err := dataSetID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rangeMeters, useBBox, err := crossoverParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	ids, err := s.core.Crossovers(ctx, id, rangeMeters, useBBox)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"data_set_id": id, "crossover_data_set_ids": ids})
}

func (s *Server) handleCrossoverReport(w http.ResponseWriter, r *http.Request) {
	id, err := dataSetID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rangeMeters, useBBox, err := crossoverParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	report, err := s.core.Crossover(ctx, id, rangeMeters, useBBox, parseList(r.URL.Query().Get("types")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), s.queryTimeout)
}

type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string { return e.message }

func badRequest(param string, err error) error {
	return &apiError{status: http.StatusBadRequest, message: fmt.Sprintf("invalid %s: %v", param, err)}
}

// writeError maps core errors onto HTTP statuses. Caller mistakes are
// 400s, a missing data set is a 404, and storage failures are 500s
// with the detail kept out of the response body.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		status  = http.StatusInternalServerError
		message = "internal error"
	)

	var apiErr *apiError
	var unknownType *domain.UnknownMeasurementTypeError
	var dupAlias *domain.DuplicateAliasError
	var emptySet *domain.EmptyDataSetError
	var storeErr *domain.StorageError

	switch {
	case errors.As(err, &apiErr):
		status, message = apiErr.status, apiErr.message
	case errors.As(err, &unknownType),
		errors.As(err, &dupAlias),
		errors.Is(err, domain.ErrEmptyTypeSet),
		errors.Is(err, query.ErrNoDataSets):
		status, message = http.StatusBadRequest, err.Error()
	case errors.As(err, &emptySet):
		status, message = http.StatusNotFound, err.Error()
	case errors.As(err, &storeErr):
		s.logger.Error("storage failure", "path", r.URL.Path, "error", err)
	default:
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
	}

	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("write response", "error", err)
	}
}

func dataSetID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, badRequest("data set id", err)
	}
	return id, nil
}

func crossoverParams(r *http.Request) (rangeMeters float64, useBBox bool, err error) {
	rangeMeters, err = parseFloat(r.URL.Query().Get("range"), 0)
	if err != nil {
		return 0, false, badRequest("range", err)
	}
	// Bounding box prefiltering is the default; exact=true forces the
	// per-station distance scan.
	useBBox = r.URL.Query().Get("exact") != "true"
	return rangeMeters, useBBox, nil
}

func parseList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseIDList(raw string) ([]int64, error) {
	parts := parseList(raw)
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseFloat(raw string, def float64) (float64, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.ParseFloat(raw, 64)
}

// parseBounds reads "min_lat,max_lat,min_lon,max_lon".
func parseBounds(raw string) (*query.Bounds, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("want 4 comma separated values, got %d", len(parts))
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", p)
		}
		vals[i] = v
	}
	return &query.Bounds{MinLat: vals[0], MaxLat: vals[1], MinLon: vals[2], MaxLon: vals[3]}, nil
}
