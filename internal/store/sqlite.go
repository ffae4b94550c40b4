package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/roteiro-pt/enrich-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS regions (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	name           TEXT NOT NULL DEFAULT '',
	name_pt        TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	lat            REAL,
	lon            REAL,
	population     INTEGER NOT NULL DEFAULT 0,
	municipalities INTEGER NOT NULL DEFAULT 0,
	parishes       INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS pois (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	region_id       INTEGER REFERENCES regions(id),
	name            TEXT NOT NULL,
	name_pt         TEXT NOT NULL DEFAULT '',
	category        TEXT NOT NULL DEFAULT '',
	description     TEXT NOT NULL DEFAULT '',
	lat             REAL,
	lon             REAL,
	wikipedia_url   TEXT NOT NULL DEFAULT '',
	registry_id     TEXT NOT NULL DEFAULT '',
	external_osm_id TEXT NOT NULL DEFAULT '',
	source          TEXT NOT NULL DEFAULT 'osm',
	image           TEXT NOT NULL DEFAULT '',
	images          TEXT NOT NULL DEFAULT '[]',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS enrichment_runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL DEFAULT 'running',
	processed   INTEGER NOT NULL DEFAULT 0,
	enriched    INTEGER NOT NULL DEFAULT 0,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_pois_external_osm_id
	ON pois(external_osm_id) WHERE external_osm_id != '';
CREATE UNIQUE INDEX IF NOT EXISTS idx_regions_name_pt ON regions(name_pt COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS idx_pois_source ON pois(source);
CREATE INDEX IF NOT EXISTS idx_pois_region_id ON pois(region_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const poiColumns = `id, region_id, name, name_pt, category, description, lat, lon,
	wikipedia_url, registry_id, external_osm_id, source, image, images, created_at, updated_at`

func (s *SQLiteStore) GetPoi(ctx context.Context, id int64) (*model.Poi, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+poiColumns+` FROM pois WHERE id = ?`, id)

	poi, err := scanPoi(row)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Entity: "poi", ID: fmt.Sprintf("%d", id)}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get poi %d", id)
	}
	return poi, nil
}

func (s *SQLiteStore) SavePoi(ctx context.Context, poi *model.Poi) error {
	imagesJSON, err := json.Marshal(poi.Images)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal images")
	}
	now := time.Now().UTC()

	if poi.ID == 0 {
		poi.CreatedAt = now
		poi.UpdatedAt = now
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO pois (region_id, name, name_pt, category, description, lat, lon,
				wikipedia_url, registry_id, external_osm_id, source, image, images, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			poi.RegionID, poi.Name, poi.NamePT, poi.Category, poi.Description,
			poi.Lat, poi.Lon, poi.WikipediaURL, poi.RegistryID, poi.ExternalOSMID,
			poi.Source, poi.Image, string(imagesJSON), now, now,
		)
		if err != nil {
			return eris.Wrap(err, "sqlite: insert poi")
		}
		poi.ID, err = res.LastInsertId()
		return eris.Wrap(err, "sqlite: poi id")
	}

	poi.UpdatedAt = now
	res, err := s.db.ExecContext(ctx,
		`UPDATE pois SET region_id = ?, name = ?, name_pt = ?, category = ?, description = ?,
			lat = ?, lon = ?, wikipedia_url = ?, registry_id = ?, external_osm_id = ?,
			source = ?, image = ?, images = ?, updated_at = ?
		 WHERE id = ?`,
		poi.RegionID, poi.Name, poi.NamePT, poi.Category, poi.Description,
		poi.Lat, poi.Lon, poi.WikipediaURL, poi.RegistryID, poi.ExternalOSMID,
		poi.Source, poi.Image, string(imagesJSON), now, poi.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update poi %d", poi.ID)
	}
	return checkRowsAffected(res, "poi", fmt.Sprintf("%d", poi.ID))
}

func (s *SQLiteStore) FindNeedingEnrichment(ctx context.Context, limit int) ([]model.Poi, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+poiColumns+` FROM pois
		 WHERE source LIKE 'osm%' AND (
			registry_id = '' OR
			wikipedia_url = '' OR
			trim(description) = '' OR
			description = ? OR
			image = '' OR
			region_id IS NULL
		 )
		 ORDER BY id LIMIT ?`,
		model.PlaceholderDescription, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pois needing enrichment")
	}
	defer rows.Close()

	var pois []model.Poi
	for rows.Next() {
		poi, err := scanPoi(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan poi")
		}
		pois = append(pois, *poi)
	}
	return pois, eris.Wrap(rows.Err(), "sqlite: iterate pois")
}

// UpsertFromOSM inserts imported elements keyed by external OSM id. Existing
// rows only refresh the ingestion-owned fields; enriched fields survive
// re-imports.
func (s *SQLiteStore) UpsertFromOSM(ctx context.Context, pois []model.Poi) (int64, error) {
	if len(pois) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin import tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO pois (name, name_pt, category, lat, lon, external_osm_id, source, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(external_osm_id) WHERE external_osm_id != '' DO UPDATE SET
			name = excluded.name,
			name_pt = excluded.name_pt,
			category = excluded.category,
			lat = excluded.lat,
			lon = excluded.lon,
			updated_at = excluded.updated_at`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare import")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	var count int64
	for _, poi := range pois {
		if poi.ExternalOSMID == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx,
			poi.Name, poi.NamePT, poi.Category, poi.Lat, poi.Lon,
			poi.ExternalOSMID, model.SourceOSM, now, now,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert %s", poi.ExternalOSMID)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit import tx")
	}
	return count, nil
}

const regionColumns = `id, name, name_pt, description, lat, lon, population, municipalities, parishes`

func (s *SQLiteStore) AllRegions(ctx context.Context) ([]model.Region, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+regionColumns+` FROM regions ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list regions")
	}
	defer rows.Close()

	var regions []model.Region
	for rows.Next() {
		var r model.Region
		if err := rows.Scan(&r.ID, &r.Name, &r.NamePT, &r.Description,
			&r.Lat, &r.Lon, &r.Population, &r.MunicipalityCount, &r.ParishCount); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan region")
		}
		regions = append(regions, r)
	}
	return regions, eris.Wrap(rows.Err(), "sqlite: iterate regions")
}

func (s *SQLiteStore) GetRegion(ctx context.Context, id int64) (*model.Region, error) {
	var r model.Region
	err := s.db.QueryRowContext(ctx,
		`SELECT `+regionColumns+` FROM regions WHERE id = ?`, id,
	).Scan(&r.ID, &r.Name, &r.NamePT, &r.Description,
		&r.Lat, &r.Lon, &r.Population, &r.MunicipalityCount, &r.ParishCount)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Entity: "region", ID: fmt.Sprintf("%d", id)}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get region %d", id)
	}
	return &r, nil
}

// UpsertRegion inserts or updates a region keyed by its case-insensitive
// Portuguese name.
func (s *SQLiteStore) UpsertRegion(ctx context.Context, region *model.Region) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO regions (name, name_pt, description, lat, lon, population, municipalities, parishes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(name_pt COLLATE NOCASE) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			lat = COALESCE(excluded.lat, regions.lat),
			lon = COALESCE(excluded.lon, regions.lon),
			population = excluded.population,
			municipalities = excluded.municipalities,
			parishes = excluded.parishes`,
		region.Name, region.NamePT, region.Description, region.Lat, region.Lon,
		region.Population, region.MunicipalityCount, region.ParishCount,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert region %s", region.NamePT)
	}
	if region.ID == 0 {
		if id, err := res.LastInsertId(); err == nil {
			region.ID = id
		}
	}
	return nil
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.EnrichmentRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO enrichment_runs (id, status, processed, enriched, started_at)
		 VALUES (?, ?, ?, ?, ?)`,
		run.ID, string(run.Status), run.Processed, run.Enriched, run.StartedAt,
	)
	return eris.Wrapf(err, "sqlite: insert run %s", run.ID)
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *model.EnrichmentRun) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE enrichment_runs SET status = ?, processed = ?, enriched = ?, finished_at = ?
		 WHERE id = ?`,
		string(run.Status), run.Processed, run.Enriched, run.FinishedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", run.ID)
	}
	return checkRowsAffected(res, "run", run.ID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.EnrichmentRun, error) {
	var run model.EnrichmentRun
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, status, processed, enriched, started_at, finished_at
		 FROM enrichment_runs WHERE id = ?`, id,
	).Scan(&run.ID, &status, &run.Processed, &run.Enriched, &run.StartedAt, &run.FinishedAt)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Entity: "run", ID: id}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", id)
	}
	run.Status = model.RunStatus(status)
	return &run, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPoi(row rowScanner) (*model.Poi, error) {
	var poi model.Poi
	var imagesJSON string
	err := row.Scan(&poi.ID, &poi.RegionID, &poi.Name, &poi.NamePT, &poi.Category,
		&poi.Description, &poi.Lat, &poi.Lon, &poi.WikipediaURL, &poi.RegistryID,
		&poi.ExternalOSMID, &poi.Source, &poi.Image, &imagesJSON,
		&poi.CreatedAt, &poi.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if imagesJSON != "" && imagesJSON != "[]" {
		if err := json.Unmarshal([]byte(imagesJSON), &poi.Images); err != nil {
			return nil, eris.Wrap(err, "unmarshal images")
		}
	}
	return &poi, nil
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return nil
}
