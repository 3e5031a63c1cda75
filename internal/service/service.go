// Package service wires the aggregation core together: it resolves
// measurement types, compiles and executes profile queries, assembles
// the results, and answers spatial questions through the crossover
// engine.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonasfh/xover/internal/assemble"
	"github.com/jonasfh/xover/internal/domain"
	"github.com/jonasfh/xover/internal/geo"
	"github.com/jonasfh/xover/internal/observability"
	"github.com/jonasfh/xover/internal/query"
)

// Store is the slice of the storage adapter the service needs.
type Store interface {
	DataTypes(ctx context.Context) ([]domain.DataType, error)
	StreamProfileRows(ctx context.Context, q query.Query, fn func(assemble.Row) error) error
}

// SpatialEngine answers extent, centroid, and crossover queries.
type SpatialEngine interface {
	Extent(ctx context.Context, dataSetID int64, minDepth float64) (geo.BoundingBox, error)
	Centroid(ctx context.Context, dataSetID int64) (geo.Point, error)
	Crossovers(ctx context.Context, dataSetID int64, rangeMeters float64, useBBox bool) ([]int64, error)
}

// Options tune crossover report behavior.
type Options struct {
	// CrossoverRangeMeters is used when a caller passes no range.
	CrossoverRangeMeters float64

	// CrossoverMinDepth is the deep-water cutoff applied to both
	// aggregation passes of a crossover report.
	CrossoverMinDepth float64
}

// Service is the external caller's entry point into the core. All
// state is request-scoped; a single Service serves concurrent callers.
type Service struct {
	store   Store
	spatial SpatialEngine
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics

	mu       sync.Mutex
	registry *domain.Registry
}

// New creates a Service over the given collaborators.
func New(store Store, spatial SpatialEngine, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	if opts.CrossoverRangeMeters <= 0 {
		opts.CrossoverRangeMeters = 200_000
	}
	return &Service{
		store:   store,
		spatial: spatial,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// ProfileRequest names the data sets and filters for one aggregation
// pass. Types are measurement type labels; empty defaults to
// temperature.
type ProfileRequest struct {
	DataSetIDs []int64
	Types      []string
	Bounds     *query.Bounds
	MinDepth   float64
	MaxDepth   float64
}

// DataSetData aggregates the requested data sets into the nested
// structure, pivoted by the requested measurement types.
func (s *Service) DataSetData(ctx context.Context, req ProfileRequest) (domain.ProfileData, error) {
	var out domain.ProfileData
	err := s.timed("data_set_data", func() error {
		var err error
		out, err = s.dataSetData(ctx, req)
		return err
	})
	return out, err
}

func (s *Service) dataSetData(ctx context.Context, req ProfileRequest) (domain.ProfileData, error) {
	registry, err := s.registryFor(ctx)
	if err != nil {
		return domain.ProfileData{}, err
	}
	resolved, err := registry.Resolve(req.Types)
	if err != nil {
		return domain.ProfileData{}, err
	}

	q, err := query.Compile(query.Request{
		DataSetIDs: req.DataSetIDs,
		Types:      resolved,
		Bounds:     req.Bounds,
		MinDepth:   req.MinDepth,
		MaxDepth:   req.MaxDepth,
	})
	if err != nil {
		return domain.ProfileData{}, err
	}

	asm := assemble.New(q.OutputColumns)
	if err := s.store.StreamProfileRows(ctx, q, asm.Push); err != nil {
		return domain.ProfileData{}, err
	}

	out := asm.Finish()
	out.GeneratedAt = clock.Now().UTC()
	s.metrics.RowsAssembled.Add(float64(asm.Rows()))
	s.logger.Debug("aggregation finished",
		"data_sets", len(req.DataSetIDs),
		"types", len(resolved),
		"rows", asm.Rows(),
	)
	return out, nil
}

// DataTypes returns the measurement type reference set.
func (s *Service) DataTypes(ctx context.Context) ([]domain.DataType, error) {
	registry, err := s.registryFor(ctx)
	if err != nil {
		return nil, err
	}
	return registry.Types(), nil
}

// Extent returns the bounding box of a data set's stations.
func (s *Service) Extent(ctx context.Context, dataSetID int64, minDepth float64) (geo.BoundingBox, error) {
	var box geo.BoundingBox
	err := s.timed("extent", func() error {
		var err error
		box, err = s.spatial.Extent(ctx, dataSetID, minDepth)
		return err
	})
	return box, err
}

// Centroid returns the center of a data set's bounding box.
func (s *Service) Centroid(ctx context.Context, dataSetID int64) (geo.Point, error) {
	var center geo.Point
	err := s.timed("centroid", func() error {
		var err error
		center, err = s.spatial.Centroid(ctx, dataSetID)
		return err
	})
	return center, err
}

// Crossovers returns the ids of data sets crossing over the given one.
// A rangeMeters of 0 uses the configured default.
func (s *Service) Crossovers(ctx context.Context, dataSetID int64, rangeMeters float64, useBBox bool) ([]int64, error) {
	if rangeMeters <= 0 {
		rangeMeters = s.opts.CrossoverRangeMeters
	}
	var ids []int64
	err := s.timed("crossovers", func() error {
		var err error
		ids, err = s.spatial.Crossovers(ctx, dataSetID, rangeMeters, useBBox)
		return err
	})
	if err == nil {
		s.metrics.CrossoverMatches.Observe(float64(len(ids)))
	}
	return ids, err
}

// crossoverTypes are always part of a crossover report; deep-water
// temperature and salinity are the quantities expeditions are
// cross-calibrated on.
var crossoverTypes = []string{"temperature", "salinity"}

// CrossoverReport bundles everything needed to compare one data set
// against its geographic neighbours.
type CrossoverReport struct {
	DataSetID     int64              `json:"data_set_id"`
	Center        geo.Point          `json:"center"`
	CrossoverIDs  []int64            `json:"crossover_data_set_ids"`
	Data          domain.ProfileData `json:"data"`
	ReferenceData domain.ProfileData `json:"reference_data"`
	GeneratedAt   time.Time          `json:"generated_at"`
}

// Crossover runs the full two-pass crossover flow: aggregate the
// target data set's deep-water profile, find the data sets crossing
// over it, and aggregate those in a second pass restricted to the
// matched ids. Extra measurement types are added on top of the always
// requested temperature and salinity.
func (s *Service) Crossover(ctx context.Context, dataSetID int64, rangeMeters float64, useBBox bool, extraTypes []string) (CrossoverReport, error) {
	var report CrossoverReport
	err := s.timed("crossover_report", func() error {
		var err error
		report, err = s.crossover(ctx, dataSetID, rangeMeters, useBBox, extraTypes)
		return err
	})
	return report, err
}

func (s *Service) crossover(ctx context.Context, dataSetID int64, rangeMeters float64, useBBox bool, extraTypes []string) (CrossoverReport, error) {
	if rangeMeters <= 0 {
		rangeMeters = s.opts.CrossoverRangeMeters
	}
	types := append([]string{}, crossoverTypes...)
	types = append(types, extraTypes...)

	data, err := s.dataSetData(ctx, ProfileRequest{
		DataSetIDs: []int64{dataSetID},
		Types:      types,
		MinDepth:   s.opts.CrossoverMinDepth,
	})
	if err != nil {
		return CrossoverReport{}, err
	}

	center, err := s.spatial.Centroid(ctx, dataSetID)
	if err != nil {
		return CrossoverReport{}, err
	}

	ids, err := s.spatial.Crossovers(ctx, dataSetID, rangeMeters, useBBox)
	if err != nil {
		return CrossoverReport{}, err
	}
	s.metrics.CrossoverMatches.Observe(float64(len(ids)))

	reference := domain.ProfileData{DataColumns: data.DataColumns, DataSets: []domain.DataSetNode{}}
	if len(ids) > 0 {
		reference, err = s.dataSetData(ctx, ProfileRequest{
			DataSetIDs: ids,
			Types:      types,
			MinDepth:   s.opts.CrossoverMinDepth,
		})
		if err != nil {
			return CrossoverReport{}, err
		}
	}

	return CrossoverReport{
		DataSetID:     dataSetID,
		Center:        center,
		CrossoverIDs:  ids,
		Data:          data,
		ReferenceData: reference,
		GeneratedAt:   clock.Now().UTC(),
	}, nil
}

// registryFor lazily loads the measurement type registry. The
// reference set is immutable, so one load serves the process lifetime.
func (s *Service) registryFor(ctx context.Context) (*domain.Registry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.registry != nil {
		return s.registry, nil
	}
	types, err := s.store.DataTypes(ctx)
	if err != nil {
		return nil, err
	}
	s.registry = domain.NewRegistry(types)
	s.logger.Info("measurement type registry loaded", "types", len(types))
	return s.registry, nil
}

// timed runs op, recording its duration and outcome.
func (s *Service) timed(operation string, fn func() error) error {
	start := time.Now()
	err := fn()

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.metrics.RequestsTotal.WithLabelValues(operation, outcome).Inc()
	s.metrics.RequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	return err
}
