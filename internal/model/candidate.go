package model

// Candidate is a transient match proposal from one external source. It is
// never persisted on its own; accepted candidates contribute fields to the
// POI being enriched.
type Candidate struct {
	Source      string   `json:"source"`
	SourceID    string   `json:"source_id,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	URL         string   `json:"url,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	Lat         *float64 `json:"lat,omitempty"`
	Lon         *float64 `json:"lon,omitempty"`
}

// HasCoordinates reports whether the candidate carries coordinates.
func (c *Candidate) HasCoordinates() bool {
	return c.Lat != nil && c.Lon != nil
}

// MatchResult is the accepted-or-rejected outcome of scoring one candidate
// against one POI. Reason explains rejections for observability.
type MatchResult struct {
	Candidate Candidate `json:"candidate"`
	Score     float64   `json:"score"`
	Accepted  bool      `json:"accepted"`
	Reason    string    `json:"reason,omitempty"`
}
