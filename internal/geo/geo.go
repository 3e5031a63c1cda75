// Package geo provides the small amount of spherical geometry the
// crossover engine needs: great-circle distances, bounding boxes of
// station positions, and distances from a point to a box.
package geo

import "github.com/golang/geo/s2"

// EarthRadiusMeters is the mean Earth radius used to scale angular
// distances to surface meters.
const EarthRadiusMeters = 6371000.0

// Point is a WGS-84 position in degrees.
type Point struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// Distance returns the great-circle surface distance between two
// points, in meters.
func Distance(a, b Point) float64 {
	la := s2.LatLngFromDegrees(a.Lat, a.Lon)
	lb := s2.LatLngFromDegrees(b.Lat, b.Lon)
	return la.Distance(lb).Radians() * EarthRadiusMeters
}

// BoundingBox is the minimal axis-aligned rectangle, in degrees,
// enclosing a set of positions.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLon float64 `json:"max_lon"`
}

// Extent computes the bounding box of the given points. The second
// return value is false when the point set is empty.
func Extent(points []Point) (BoundingBox, bool) {
	if len(points) == 0 {
		return BoundingBox{}, false
	}
	box := BoundingBox{
		MinLat: points[0].Lat, MaxLat: points[0].Lat,
		MinLon: points[0].Lon, MaxLon: points[0].Lon,
	}
	for _, p := range points[1:] {
		box.MinLat = min(box.MinLat, p.Lat)
		box.MaxLat = max(box.MaxLat, p.Lat)
		box.MinLon = min(box.MinLon, p.Lon)
		box.MaxLon = max(box.MaxLon, p.Lon)
	}
	return box, true
}

// Center returns the centroid of the box.
func (b BoundingBox) Center() Point {
	return Point{
		Lat: (b.MinLat + b.MaxLat) / 2,
		Lon: (b.MinLon + b.MaxLon) / 2,
	}
}

// Clamp returns the point inside the box nearest to p in coordinate
// space. A point already inside the box is returned unchanged.
func (b BoundingBox) Clamp(p Point) Point {
	return Point{
		Lat: min(max(p.Lat, b.MinLat), b.MaxLat),
		Lon: min(max(p.Lon, b.MinLon), b.MaxLon),
	}
}

// DistanceToBox returns the great-circle distance from p to the
// nearest point of the box, in meters. Zero when p lies inside.
func DistanceToBox(p Point, b BoundingBox) float64 {
	return Distance(p, b.Clamp(p))
}
