package registry

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/roteiro-pt/enrich-cli/internal/model"
)

// GML GetFeature responses differ between WFS 1.1 (featureMember) and 2.0
// (member); both shapes are accepted.
type featureCollection struct {
	XMLName        xml.Name        `xml:"FeatureCollection"`
	FeatureMembers []featureMember `xml:"featureMember"`
	Members        []featureMember `xml:"member"`
}

type featureMember struct {
	Monument monumentFeature `xml:",any"`
}

type monumentFeature struct {
	Code        string   `xml:"COD_SIG"`
	Name        string   `xml:"INF_NOME"`
	Description string   `xml:"INF_DESCRICAO"`
	URL         string   `xml:"INF_URL"`
	Point       gmlPoint `xml:"Point"`
}

type gmlPoint struct {
	Pos         string `xml:"pos"`
	Coordinates string `xml:"coordinates"`
}

// parseFeatureCollection converts a raw GML payload into candidates. Features
// without a name are dropped; features without coordinates are kept, since
// the inventory text is still usable for enrichment.
func parseFeatureCollection(body []byte) ([]model.Candidate, error) {
	var fc featureCollection
	if err := xml.Unmarshal(body, &fc); err != nil {
		return nil, eris.Wrap(err, "registry: parse gml")
	}

	members := fc.FeatureMembers
	if len(members) == 0 {
		members = fc.Members
	}

	out := make([]model.Candidate, 0, len(members))
	for _, m := range members {
		f := m.Monument
		title := strings.TrimSpace(f.Name)
		if title == "" {
			continue
		}

		cand := model.Candidate{
			Source:      "registry",
			SourceID:    strings.TrimSpace(f.Code),
			Title:       title,
			Description: strings.TrimSpace(f.Description),
			URL:         strings.TrimSpace(f.URL),
		}
		if lat, lon, ok := f.Point.latLon(); ok {
			cand.Lat = &lat
			cand.Lon = &lon
		}
		out = append(out, cand)
	}
	return out, nil
}

// latLon extracts a coordinate pair from either gml:pos ("lat lon",
// space-separated, EPSG:4326 axis order) or gml:coordinates ("lon,lat").
func (p gmlPoint) latLon() (lat, lon float64, ok bool) {
	if pos := strings.Fields(p.Pos); len(pos) >= 2 {
		return parsePair(pos[0], pos[1])
	}
	if parts := strings.Split(strings.TrimSpace(p.Coordinates), ","); len(parts) >= 2 {
		return parsePair(parts[1], parts[0])
	}
	return 0, 0, false
}

func parsePair(latStr, lonStr string) (lat, lon float64, ok bool) {
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	lon, errLon := strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if errLat != nil || errLon != nil {
		return 0, 0, false
	}
	return lat, lon, true
}
