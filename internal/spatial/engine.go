// Package spatial computes data set extents, centroids, and crossovers
// from station positions.
package spatial

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/dhconnelly/rtreego"

	"github.com/jonasfh/xover/internal/domain"
	"github.com/jonasfh/xover/internal/geo"
)

// StationPosition is one station's location as the store reports it.
type StationPosition struct {
	DataSetID int64
	StationID int64
	Point     geo.Point
}

// PositionSource supplies station positions. Implemented by the
// postgres store.
type PositionSource interface {
	// StationPositions returns the positions of one data set's
	// stations. When minDepth > 0 only stations with at least one
	// depth sample deeper than minDepth are included.
	StationPositions(ctx context.Context, dataSetID int64, minDepth float64) ([]StationPosition, error)

	// StationPositionsExcluding returns the positions of every station
	// belonging to any other data set.
	StationPositionsExcluding(ctx context.Context, dataSetID int64) ([]StationPosition, error)
}

// Engine answers extent, centroid, and crossover queries. It is
// stateless between calls and safe for concurrent use.
type Engine struct {
	src    PositionSource
	logger *slog.Logger
}

// NewEngine creates an Engine reading positions from src.
func NewEngine(src PositionSource, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{src: src, logger: logger}
}

// Extent returns the bounding box of the data set's station positions.
// A minDepth > 0 restricts the box to stations that sampled deeper
// than it. Fails with EmptyDataSetError when no stations qualify.
func (e *Engine) Extent(ctx context.Context, dataSetID int64, minDepth float64) (geo.BoundingBox, error) {
	stations, err := e.src.StationPositions(ctx, dataSetID, minDepth)
	if err != nil {
		return geo.BoundingBox{}, err
	}
	box, ok := geo.Extent(points(stations))
	if !ok {
		return geo.BoundingBox{}, &domain.EmptyDataSetError{DataSetID: dataSetID}
	}
	return box, nil
}

// Centroid returns the center of the data set's bounding box as
// (longitude, latitude carried in a Point). Fails with
// EmptyDataSetError when the data set has no stations.
func (e *Engine) Centroid(ctx context.Context, dataSetID int64) (geo.Point, error) {
	box, err := e.Extent(ctx, dataSetID, 0)
	if err != nil {
		return geo.Point{}, err
	}
	return box.Center(), nil
}

// Crossovers returns the ids of every other data set with at least one
// station within rangeMeters of this data set, deduplicated and in
// ascending id order.
//
// With useBBox the target's stations are replaced by their bounding
// box and candidates are matched on distance to the box. That is
// faster and never misses a true match, but can include data sets
// whose nearest station only approaches the box, not an actual
// station.
func (e *Engine) Crossovers(ctx context.Context, dataSetID int64, rangeMeters float64, useBBox bool) ([]int64, error) {
	if rangeMeters <= 0 {
		return nil, fmt.Errorf("crossover range must be positive, got %g meters", rangeMeters)
	}
	targets, err := e.src.StationPositions(ctx, dataSetID, 0)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return []int64{}, nil
	}
	candidates, err := e.src.StationPositionsExcluding(ctx, dataSetID)
	if err != nil {
		return nil, err
	}

	var matched map[int64]bool
	if useBBox {
		matched = e.matchByBox(targets, candidates, rangeMeters)
	} else {
		matched = e.matchExact(targets, candidates, rangeMeters)
	}

	ids := make([]int64, 0, len(matched))
	for id := range matched {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	e.logger.Debug("crossover search finished",
		"data_set_id", dataSetID,
		"range_meters", rangeMeters,
		"use_bbox", useBBox,
		"candidates", len(candidates),
		"matches", len(ids),
	)
	return ids, nil
}

// matchByBox matches candidates against the bounding box of the
// target stations.
func (e *Engine) matchByBox(targets, candidates []StationPosition, rangeMeters float64) map[int64]bool {
	box, _ := geo.Extent(points(targets))
	matched := make(map[int64]bool)
	for _, c := range candidates {
		if matched[c.DataSetID] {
			continue
		}
		if geo.DistanceToBox(c.Point, box) < rangeMeters {
			matched[c.DataSetID] = true
		}
	}
	return matched
}

// matchExact matches on pairwise station distance. Candidates go into
// an R-tree so each target station only examines candidates inside its
// range-inflated rectangle; every hit is verified with the exact
// great-circle distance, so the result equals the naive pairwise scan.
func (e *Engine) matchExact(targets, candidates []StationPosition, rangeMeters float64) map[int64]bool {
	matched := make(map[int64]bool)
	if len(candidates) == 0 {
		return matched
	}

	tree := rtreego.NewTree(2, 25, 50)
	for i := range candidates {
		tree.Insert(&stationEntry{pos: &candidates[i]})
	}

	for _, target := range targets {
		for _, rect := range searchRects(target.Point, rangeMeters) {
			for _, hit := range tree.SearchIntersect(rect) {
				c := hit.(*stationEntry).pos
				if matched[c.DataSetID] {
					continue
				}
				if geo.Distance(target.Point, c.Point) < rangeMeters {
					matched[c.DataSetID] = true
				}
			}
		}
	}
	return matched
}

// stationEntry adapts a StationPosition to the rtreego index.
type stationEntry struct {
	pos *StationPosition
}

// Bounds implements rtreego.Spatial as a degenerate rectangle at the
// station's position, x = longitude, y = latitude.
func (s *stationEntry) Bounds() rtreego.Rect {
	point := rtreego.Point{s.pos.Point.Lon, s.pos.Point.Lat}
	rect, _ := rtreego.NewRect(point, []float64{1e-9, 1e-9})
	return rect
}

// searchRects returns the query rectangle(s) covering everything
// within rangeMeters of p. The longitude half-width follows the
// spherical cap, asin(sin r / cos lat): the flat dLat/cos(lat)
// approximation undershoots the cap's true extent toward the poles and
// would keep genuinely in-range candidates out of the exact distance
// check. A rectangle spilling over the antimeridian is split into its
// wrapped parts.
func searchRects(p geo.Point, rangeMeters float64) []rtreego.Rect {
	// 0.1% padding guards float rounding at the rectangle edge; the
	// exact distance check discards anything extra.
	rad := rangeMeters * 1.001 / geo.EarthRadiusMeters
	dLat := rad * 180 / math.Pi

	cosLat := math.Cos(p.Lat * math.Pi / 180)
	var dLon float64
	switch {
	case math.Abs(p.Lat)+dLat >= 90 || cosLat < 1e-6:
		// The cap contains a pole and spans every longitude.
		dLon = 360
	case math.Sin(rad) >= cosLat:
		dLon = 360
	default:
		dLon = math.Asin(math.Sin(rad)/cosLat) * 180 / math.Pi
	}
	if dLon >= 180 {
		// Range covers the whole longitude circle at this latitude.
		return []rtreego.Rect{mustRect(-180, p.Lat-dLat, 360, 2*dLat)}
	}

	minLon, maxLon := p.Lon-dLon, p.Lon+dLon
	switch {
	case minLon < -180:
		return []rtreego.Rect{
			mustRect(-180, p.Lat-dLat, maxLon+180, 2*dLat),
			mustRect(minLon+360, p.Lat-dLat, 180-(minLon+360), 2*dLat),
		}
	case maxLon > 180:
		return []rtreego.Rect{
			mustRect(minLon, p.Lat-dLat, 180-minLon, 2*dLat),
			mustRect(-180, p.Lat-dLat, maxLon-180, 2*dLat),
		}
	default:
		return []rtreego.Rect{mustRect(minLon, p.Lat-dLat, 2*dLon, 2*dLat)}
	}
}

func mustRect(lon, lat, width, height float64) rtreego.Rect {
	rect, err := rtreego.NewRect(rtreego.Point{lon, lat}, []float64{width, height})
	if err != nil {
		panic(err)
	}
	return rect
}

func points(stations []StationPosition) []geo.Point {
	pts := make([]geo.Point, len(stations))
	for i, s := range stations {
		pts[i] = s.Point
	}
	return pts
}
