package model

// Region is a coarse administrative district approximated by a centroid.
// The region set is small (tens of rows) and is loaded wholesale per
// resolution call; a region without a centroid is never selected by
// nearest-centroid assignment.
type Region struct {
	ID                 int64    `json:"id"`
	Name               string   `json:"name"`
	NamePT             string   `json:"name_pt,omitempty"`
	Description        string   `json:"description,omitempty"`
	Lat                *float64 `json:"lat,omitempty"`
	Lon                *float64 `json:"lon,omitempty"`
	Population         int      `json:"population,omitempty"`
	MunicipalityCount  int      `json:"municipalities,omitempty"`
	ParishCount        int      `json:"parishes,omitempty"`
}

// HasCentroid reports whether the region has a usable centroid.
func (r *Region) HasCentroid() bool {
	return r.Lat != nil && r.Lon != nil
}
