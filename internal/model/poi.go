// Package model defines the core entities of the POI enrichment pipeline.
package model

import (
	"strings"
	"time"
)

// Provenance tags. A POI's Source records which pipeline stage last
// contributed to it. Only POIs originating from the OSM ingestion source
// are ever touched by enrichment; manual and commercial entries are left
// alone.
const (
	SourceOSM      = "osm"
	SourceEnriched = "osm+enriched"
	SourceManual   = "manual"
)

// PlaceholderDescription is stored whenever no source yielded a usable
// description. A POI is never returned with an empty description.
const PlaceholderDescription = "Ponto de interesse ainda sem descrição detalhada."

// Poi is a point of interest under enrichment. Coordinates come from the
// ingestion source and are authoritative: enrichment sources only add
// descriptive fields, never overwrite lat/lon.
type Poi struct {
	ID            int64      `json:"id"`
	RegionID      *int64     `json:"region_id,omitempty"`
	Name          string     `json:"name"`
	NamePT        string     `json:"name_pt,omitempty"`
	Category      string     `json:"category"`
	Description   string     `json:"description,omitempty"`
	Lat           *float64   `json:"lat,omitempty"`
	Lon           *float64   `json:"lon,omitempty"`
	WikipediaURL  string     `json:"wikipedia_url,omitempty"`
	RegistryID    string     `json:"registry_id,omitempty"`
	ExternalOSMID string     `json:"external_osm_id,omitempty"`
	Source        string     `json:"source"`
	Image         string     `json:"image,omitempty"`
	Images        []string   `json:"images,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// HasCoordinates reports whether both lat and lon are set.
func (p *Poi) HasCoordinates() bool {
	return p.Lat != nil && p.Lon != nil
}

// FromIngestion reports whether the POI originated from the primary
// ingestion source and is therefore eligible for enrichment.
func (p *Poi) FromIngestion() bool {
	return strings.HasPrefix(p.Source, SourceOSM)
}

// DisplayName returns the Portuguese name when present, otherwise the
// default name. Matching and lookups key off this.
func (p *Poi) DisplayName() string {
	if strings.TrimSpace(p.NamePT) != "" {
		return p.NamePT
	}
	return p.Name
}

// HasDescription reports whether the POI carries a real description,
// i.e. non-blank and not the placeholder.
func (p *Poi) HasDescription() bool {
	d := strings.TrimSpace(p.Description)
	return d != "" && d != PlaceholderDescription
}

// AddImage appends an image URL to the ordered image list unless it is
// already present. Returns true if the list changed.
func (p *Poi) AddImage(url string) bool {
	if url == "" {
		return false
	}
	for _, existing := range p.Images {
		if existing == url {
			return false
		}
	}
	p.Images = append(p.Images, url)
	return true
}
