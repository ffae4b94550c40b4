package overpass

import (
	"fmt"
	"strings"
)

// Element is one OSM node, way or relation from an Overpass response. Ways
// and relations carry their centroid under "center" instead of lat/lon.
type Element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat"`
	Lon    *float64          `json:"lon"`
	Center *ElementCenter    `json:"center"`
	Tags   map[string]string `json:"tags"`
}

// ElementCenter is the computed centroid of a way or relation.
type ElementCenter struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// OSMID returns the stable external identifier, e.g. "osm:node/123".
func (e Element) OSMID() string {
	return fmt.Sprintf("osm:%s/%d", e.Type, e.ID)
}

// Name returns the Portuguese name when tagged, falling back to the default
// name tag.
func (e Element) Name() string {
	if n := strings.TrimSpace(e.Tags["name:pt"]); n != "" {
		return n
	}
	return strings.TrimSpace(e.Tags["name"])
}

// Coordinates resolves the element position, preferring the node position
// and falling back to the way/relation centroid.
func (e Element) Coordinates() (lat, lon float64, ok bool) {
	if e.Lat != nil && e.Lon != nil {
		return *e.Lat, *e.Lon, true
	}
	if e.Center != nil {
		return e.Center.Lat, e.Center.Lon, true
	}
	return 0, 0, false
}

// Category derives a coarse category from the element's tags. Ordering
// matters: a palace tagged historic=castle is still a castle.
func (e Element) Category() string {
	historic := e.Tags["historic"]
	switch {
	case historic == "castle" || historic == "fort":
		return "castle"
	case historic == "monastery" || e.Tags["amenity"] == "place_of_worship":
		return "church"
	case e.Tags["building"] == "palace":
		return "palace"
	case historic == "monument" || historic == "memorial" || historic == "ruins":
		return "monument"
	case e.Tags["tourism"] == "viewpoint":
		return "viewpoint"
	case e.Tags["leisure"] == "park" || e.Tags["leisure"] == "garden":
		return "park"
	case e.Tags["tourism"] == "museum":
		return "cultural"
	default:
		return ""
	}
}
