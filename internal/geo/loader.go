package geo

import (
	"context"
	"os"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"

	"github.com/roteiro-pt/enrich-cli/internal/model"
)

// RegionWriter is the store surface the loaders need.
type RegionWriter interface {
	AllRegions(ctx context.Context) ([]model.Region, error)
	UpsertRegion(ctx context.Context, region *model.Region) error
}

// regionRow is the CSV schema for district metadata.
type regionRow struct {
	Name           string   `csv:"name"`
	NamePT         string   `csv:"name_pt"`
	Description    string   `csv:"description,omitempty"`
	Population     int      `csv:"population,omitempty"`
	Municipalities int      `csv:"municipalities,omitempty"`
	Parishes       int      `csv:"parishes,omitempty"`
	Lat            *float64 `csv:"lat,omitempty"`
	Lon            *float64 `csv:"lon,omitempty"`
}

// ImportRegionCSV loads district metadata (names, counts, centroids) from a
// CSV file and upserts each region keyed by its Portuguese name. Returns the
// number of regions written.
func ImportRegionCSV(ctx context.Context, store RegionWriter, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, eris.Wrapf(err, "geo: read region csv %s", path)
	}

	var rows []regionRow
	if err := csvutil.Unmarshal(data, &rows); err != nil {
		return 0, eris.Wrap(err, "geo: parse region csv")
	}

	existing, err := store.AllRegions(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "geo: list regions")
	}
	byName := make(map[string]model.Region, len(existing))
	for _, r := range existing {
		byName[strings.ToLower(r.NamePT)] = r
	}

	imported := 0
	for _, row := range rows {
		if strings.TrimSpace(row.NamePT) == "" {
			continue
		}

		region := byName[strings.ToLower(row.NamePT)]
		region.Name = row.Name
		region.NamePT = row.NamePT
		if row.Description != "" {
			region.Description = row.Description
		}
		if row.Population > 0 {
			region.Population = row.Population
		}
		if row.Municipalities > 0 {
			region.MunicipalityCount = row.Municipalities
		}
		if row.Parishes > 0 {
			region.ParishCount = row.Parishes
		}
		if row.Lat != nil && row.Lon != nil {
			region.Lat = row.Lat
			region.Lon = row.Lon
		}

		if err := store.UpsertRegion(ctx, &region); err != nil {
			zap.L().Warn("geo: failed to upsert region",
				zap.String("name_pt", row.NamePT),
				zap.Error(err),
			)
			continue
		}
		imported++
	}

	zap.L().Info("region metadata imported",
		zap.String("path", path),
		zap.Int("rows", len(rows)),
		zap.Int("imported", imported),
	)
	return imported, nil
}

// ImportRegionShapefile reads district polygons from a shapefile, computes a
// centroid per district and fills it in for regions that are still missing
// one. The shapefile must carry a name attribute matching the region's
// Portuguese name. Returns the number of centroids assigned.
func ImportRegionShapefile(ctx context.Context, store RegionWriter, path, nameField string) (int, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return 0, eris.Wrapf(err, "geo: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	nameIdx := fieldIndex(reader, nameField)
	if nameIdx < 0 {
		return 0, eris.Errorf("geo: shapefile field %q not found", nameField)
	}

	existing, err := store.AllRegions(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "geo: list regions")
	}
	byName := make(map[string]*model.Region, len(existing))
	for i := range existing {
		byName[strings.ToLower(existing[i].NamePT)] = &existing[i]
	}

	assigned := 0
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || len(poly.Points) == 0 {
			continue
		}

		name := strings.TrimSpace(reader.Attribute(nameIdx))
		region, found := byName[strings.ToLower(name)]
		if !found {
			zap.L().Debug("geo: shapefile district not in store", zap.String("name", name))
			continue
		}
		if region.HasCentroid() {
			continue
		}

		centroid, err := polygonCentroid(poly)
		if err != nil {
			zap.L().Warn("geo: centroid computation failed",
				zap.String("name", name),
				zap.Error(err),
			)
			continue
		}

		lon, lat := centroid.X(), centroid.Y()
		region.Lon = &lon
		region.Lat = &lat
		if err := store.UpsertRegion(ctx, region); err != nil {
			zap.L().Warn("geo: failed to store centroid",
				zap.String("name", name),
				zap.Error(err),
			)
			continue
		}
		assigned++
	}

	zap.L().Info("region centroids assigned from shapefile",
		zap.String("path", path),
		zap.Int("assigned", assigned),
	)
	return assigned, nil
}

// polygonCentroid converts the shapefile outer ring to a go-geom polygon and
// returns its area centroid.
func polygonCentroid(p *shp.Polygon) (geom.Coord, error) {
	end := len(p.Points)
	if p.NumParts > 1 {
		end = int(p.Parts[1])
	}

	ring := make([]geom.Coord, 0, end+1)
	for _, pt := range p.Points[:end] {
		ring = append(ring, geom.Coord{pt.X, pt.Y})
	}
	// close the ring if the source left it open
	if len(ring) > 0 && !ring[0].Equal(geom.XY, ring[len(ring)-1]) {
		ring = append(ring, ring[0])
	}
	if len(ring) < 4 {
		return nil, eris.New("geo: degenerate polygon ring")
	}

	polygon := geom.NewPolygon(geom.XY)
	if _, err := polygon.SetCoords([][]geom.Coord{ring}); err != nil {
		return nil, eris.Wrap(err, "geo: build polygon")
	}
	return xy.Centroid(polygon)
}

// fieldIndex returns the index of a named attribute field, or -1.
func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}
