// Package geo provides spatial operations for region assignment and
// distance-based candidate validation.
package geo

import (
	"math"

	"github.com/twpayne/go-geom"

	"github.com/roteiro-pt/enrich-cli/internal/model"
)

const earthRadiusKm = 6371.0

// NearestRegion returns the region whose centroid is closest to the point,
// comparing squared Euclidean distance in raw degree space. At country scale
// with tens of regions this approximation is accepted over true polygon
// containment. Regions without a centroid are never selected; nil when no
// region has one.
func NearestRegion(lat, lon float64, regions []model.Region) *model.Region {
	var best *model.Region
	bestDist2 := math.MaxFloat64

	for i := range regions {
		r := &regions[i]
		if !r.HasCentroid() {
			continue
		}
		dx := lat - *r.Lat
		dy := lon - *r.Lon
		dist2 := dx*dx + dy*dy
		if dist2 < bestDist2 {
			bestDist2 = dist2
			best = r
		}
	}

	return best
}

// HaversineKm returns the great-circle distance between two WGS84 points.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

// BoundsAround returns a degree-space bounding box of half-width delta
// centered on the point, in lon/lat (x/y) order for source queries.
func BoundsAround(lat, lon, delta float64) *geom.Bounds {
	return geom.NewBounds(geom.XY).Set(lon-delta, lat-delta, lon+delta, lat+delta)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
