// Package enrich coordinates external sources, matching and persistence to
// fill in missing descriptive fields on points of interest.
package enrich

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/roteiro-pt/enrich-cli/internal/geo"
	"github.com/roteiro-pt/enrich-cli/internal/match"
	"github.com/roteiro-pt/enrich-cli/internal/model"
	"github.com/roteiro-pt/enrich-cli/internal/poitype"
	"github.com/roteiro-pt/enrich-cli/internal/textnorm"
)

// Orchestrator runs the enrichment sequence for individual POIs and batches.
type Orchestrator struct {
	store        Store
	registry     RegistrySource
	encyclopedia EncyclopediaSource
	classifier   *poitype.Classifier

	// maxDistanceKm rejects candidates whose coordinates sit too far from
	// the POI; workers bounds batch concurrency.
	maxDistanceKm float64
	workers       int
	batchLimit    int
	bounds        Bounds
}

// Bounds is the latitude/longitude window of eligible POIs. Points outside
// it are skipped during batch runs.
type Bounds struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// MainlandBounds covers continental Portugal.
func MainlandBounds() Bounds {
	return Bounds{MinLat: 36.8, MaxLat: 42.3, MinLon: -9.8, MaxLon: -6.0}
}

// Contains reports whether the point falls inside the window.
func (b Bounds) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithMaxDistanceKm overrides the candidate distance cutoff.
func WithMaxDistanceKm(km float64) Option {
	return func(o *Orchestrator) { o.maxDistanceKm = km }
}

// WithWorkers sets the batch concurrency limit.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithBatchLimit caps how many POIs one batch run picks up.
func WithBatchLimit(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.batchLimit = n
		}
	}
}

// WithBounds overrides the eligibility window.
func WithBounds(b Bounds) Option {
	return func(o *Orchestrator) { o.bounds = b }
}

// WithClassifier overrides the type classifier.
func WithClassifier(c *poitype.Classifier) Option {
	return func(o *Orchestrator) {
		if c != nil {
			o.classifier = c
		}
	}
}

// NewOrchestrator wires the enrichment sequence.
func NewOrchestrator(store Store, registry RegistrySource, encyclopedia EncyclopediaSource, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:         store,
		registry:      registry,
		encyclopedia:  encyclopedia,
		classifier:    poitype.NewClassifier(),
		maxDistanceKm: 60,
		workers:       6,
		batchLimit:    500,
		bounds:        MainlandBounds(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NeedsEnrichment reports whether a POI is eligible and has at least one
// gap an external source could fill. Manual and commercial entries are
// never touched.
func (o *Orchestrator) NeedsEnrichment(poi *model.Poi) bool {
	if !poi.FromIngestion() {
		return false
	}
	return poi.RegistryID == "" ||
		poi.WikipediaURL == "" ||
		!poi.HasDescription() ||
		poi.Image == "" ||
		poi.RegionID == nil
}

// EnrichOne runs the full enrichment sequence for a single POI, mutating it
// in place. It returns whether anything changed; the caller persists. A
// failing collaborator degrades to "no candidate from that source" and never
// aborts the sequence.
func (o *Orchestrator) EnrichOne(ctx context.Context, poi *model.Poi, regions []model.Region) bool {
	if !o.NeedsEnrichment(poi) {
		return false
	}

	changed := o.assignRegion(poi, regions)

	if matched := o.enrichFromRegistry(ctx, poi); matched {
		changed = true
	}
	if matched := o.enrichFromEncyclopedia(ctx, poi); matched {
		changed = true
	}

	if !poi.HasDescription() && poi.Description != model.PlaceholderDescription {
		poi.Description = model.PlaceholderDescription
		changed = true
	}

	if changed && poi.Source == model.SourceOSM {
		poi.Source = model.SourceEnriched
	}
	return changed
}

// assignRegion fills the region reference by nearest centroid when missing.
func (o *Orchestrator) assignRegion(poi *model.Poi, regions []model.Region) bool {
	if poi.RegionID != nil || !poi.HasCoordinates() {
		return false
	}
	region := geo.NearestRegion(*poi.Lat, *poi.Lon, regions)
	if region == nil {
		return false
	}
	poi.RegionID = &region.ID
	return true
}

// enrichFromRegistry matches the POI against the heritage inventory. With
// coordinates the window search around the point runs first; name search
// takes over when the window yields nothing acceptable.
func (o *Orchestrator) enrichFromRegistry(ctx context.Context, poi *model.Poi) bool {
	if poi.RegistryID != "" && poi.HasDescription() {
		return false
	}

	var best *model.Candidate
	if poi.HasCoordinates() {
		candidates, err := o.registry.SearchByBbox(ctx, *poi.Lat, *poi.Lon)
		if err != nil {
			zap.L().Warn("registry window search failed",
				zap.Int64("poi_id", poi.ID), zap.Error(err))
			candidates = nil
		}
		best = o.selectCandidate(poi, candidates)
	}
	if best == nil {
		candidates, err := o.registry.SearchByName(ctx, poi.DisplayName())
		if err != nil {
			zap.L().Warn("registry name search failed",
				zap.Int64("poi_id", poi.ID), zap.Error(err))
			candidates = nil
		}
		best = o.selectCandidate(poi, candidates)
	}
	if best == nil {
		return false
	}

	changed := false
	if poi.RegistryID == "" && best.SourceID != "" {
		poi.RegistryID = best.SourceID
		changed = true
	}
	if !poi.HasDescription() && strings.TrimSpace(best.Description) != "" {
		poi.Description = strings.TrimSpace(best.Description)
		changed = true
	}
	if poi.NamePT == "" && best.Title != poi.Name {
		poi.NamePT = best.Title
		changed = true
	}
	return changed
}

// enrichFromEncyclopedia consults the encyclopedia regardless of registry
// outcome; it is the only source of article links and images.
func (o *Orchestrator) enrichFromEncyclopedia(ctx context.Context, poi *model.Poi) bool {
	cand, err := o.encyclopedia.Lookup(ctx, poi.DisplayName(), poi.Lat, poi.Lon)
	if err != nil {
		zap.L().Warn("encyclopedia lookup failed",
			zap.Int64("poi_id", poi.ID), zap.Error(err))
		return false
	}
	if cand == nil || !o.compatible(poi, cand) || !o.withinRange(poi, cand) {
		return false
	}

	changed := false
	if !poi.HasDescription() && strings.TrimSpace(cand.Description) != "" {
		poi.Description = strings.TrimSpace(cand.Description)
		changed = true
	}
	if poi.WikipediaURL == "" && cand.URL != "" {
		poi.WikipediaURL = cand.URL
		changed = true
	}
	if cand.ImageURL != "" {
		if poi.Image == "" {
			poi.Image = cand.ImageURL
			changed = true
		}
		if poi.AddImage(cand.ImageURL) {
			changed = true
		}
	}
	return changed
}

// selectCandidate gates candidates on type compatibility and distance, then
// picks the best name match.
func (o *Orchestrator) selectCandidate(poi *model.Poi, candidates []model.Candidate) *model.Candidate {
	eligible := make([]model.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !o.compatible(poi, &c) || !o.withinRange(poi, &c) {
			continue
		}
		eligible = append(eligible, c)
	}
	if len(eligible) == 0 {
		return nil
	}

	queryTokens := textnorm.Tokenize(poi.DisplayName())
	candidateTokens := make([][]string, len(eligible))
	for i, c := range eligible {
		candidateTokens[i] = textnorm.Tokenize(c.Title)
	}

	idx, score := match.SelectBest(queryTokens, candidateTokens)
	if idx < 0 {
		return nil
	}
	zap.L().Debug("candidate accepted",
		zap.Int64("poi_id", poi.ID),
		zap.String("source", eligible[idx].Source),
		zap.String("title", eligible[idx].Title),
		zap.Float64("score", score),
	)
	return &eligible[idx]
}

// compatible gates a candidate on semantic type: the declared POI category
// against the type inferred from the candidate's full text. The description
// participates so a neutral title cannot smuggle in text about something else.
func (o *Orchestrator) compatible(poi *model.Poi, cand *model.Candidate) bool {
	declared := o.classifier.ClassifyDeclared(poi.Category)
	inferred := o.classifier.InferFromText(cand.Title + " " + cand.Description)
	return poitype.Compatible(declared, inferred)
}

// withinRange rejects candidates that carry coordinates too far from the
// POI. Candidates without coordinates pass; the name gate carries them.
func (o *Orchestrator) withinRange(poi *model.Poi, cand *model.Candidate) bool {
	if !poi.HasCoordinates() || !cand.HasCoordinates() {
		return true
	}
	return geo.HaversineKm(*poi.Lat, *poi.Lon, *cand.Lat, *cand.Lon) <= o.maxDistanceKm
}
