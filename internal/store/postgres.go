package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/roteiro-pt/enrich-cli/internal/db"
	"github.com/roteiro-pt/enrich-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool; used in tests.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: func() {}}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS regions (
	id             BIGSERIAL PRIMARY KEY,
	name           TEXT NOT NULL DEFAULT '',
	name_pt        TEXT NOT NULL DEFAULT '',
	description    TEXT NOT NULL DEFAULT '',
	lat            DOUBLE PRECISION,
	lon            DOUBLE PRECISION,
	population     INTEGER NOT NULL DEFAULT 0,
	municipalities INTEGER NOT NULL DEFAULT 0,
	parishes       INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS pois (
	id              BIGSERIAL PRIMARY KEY,
	region_id       BIGINT REFERENCES regions(id),
	name            TEXT NOT NULL,
	name_pt         TEXT NOT NULL DEFAULT '',
	category        TEXT NOT NULL DEFAULT '',
	description     TEXT NOT NULL DEFAULT '',
	lat             DOUBLE PRECISION,
	lon             DOUBLE PRECISION,
	wikipedia_url   TEXT NOT NULL DEFAULT '',
	registry_id     TEXT NOT NULL DEFAULT '',
	external_osm_id TEXT NOT NULL DEFAULT '',
	source          TEXT NOT NULL DEFAULT 'osm',
	image           TEXT NOT NULL DEFAULT '',
	images          JSONB NOT NULL DEFAULT '[]',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS enrichment_runs (
	id          TEXT PRIMARY KEY,
	status      TEXT NOT NULL DEFAULT 'running',
	processed   INTEGER NOT NULL DEFAULT 0,
	enriched    INTEGER NOT NULL DEFAULT 0,
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_pois_external_osm_id
	ON pois(external_osm_id) WHERE external_osm_id != '';
CREATE UNIQUE INDEX IF NOT EXISTS idx_regions_name_pt ON regions(lower(name_pt));
CREATE INDEX IF NOT EXISTS idx_pois_source ON pois(source);
CREATE INDEX IF NOT EXISTS idx_pois_region_id ON pois(region_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.closeFn()
	return nil
}

const pgPoiColumns = `id, region_id, name, name_pt, category, description, lat, lon,
	wikipedia_url, registry_id, external_osm_id, source, image, images, created_at, updated_at`

func (s *PostgresStore) GetPoi(ctx context.Context, id int64) (*model.Poi, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+pgPoiColumns+` FROM pois WHERE id = $1`, id)

	poi, err := scanPgPoi(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Entity: "poi", ID: fmt.Sprintf("%d", id)}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get poi %d", id)
	}
	return poi, nil
}

func (s *PostgresStore) SavePoi(ctx context.Context, poi *model.Poi) error {
	images := poi.Images
	if images == nil {
		images = []string{}
	}
	now := time.Now().UTC()

	if poi.ID == 0 {
		poi.CreatedAt = now
		poi.UpdatedAt = now
		err := s.pool.QueryRow(ctx,
			`INSERT INTO pois (region_id, name, name_pt, category, description, lat, lon,
				wikipedia_url, registry_id, external_osm_id, source, image, images, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			 RETURNING id`,
			poi.RegionID, poi.Name, poi.NamePT, poi.Category, poi.Description,
			poi.Lat, poi.Lon, poi.WikipediaURL, poi.RegistryID, poi.ExternalOSMID,
			poi.Source, poi.Image, images, now, now,
		).Scan(&poi.ID)
		return eris.Wrap(err, "postgres: insert poi")
	}

	poi.UpdatedAt = now
	tag, err := s.pool.Exec(ctx,
		`UPDATE pois SET region_id = $1, name = $2, name_pt = $3, category = $4, description = $5,
			lat = $6, lon = $7, wikipedia_url = $8, registry_id = $9, external_osm_id = $10,
			source = $11, image = $12, images = $13, updated_at = $14
		 WHERE id = $15`,
		poi.RegionID, poi.Name, poi.NamePT, poi.Category, poi.Description,
		poi.Lat, poi.Lon, poi.WikipediaURL, poi.RegistryID, poi.ExternalOSMID,
		poi.Source, poi.Image, images, now, poi.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update poi %d", poi.ID)
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Entity: "poi", ID: fmt.Sprintf("%d", poi.ID)}
	}
	return nil
}

func (s *PostgresStore) FindNeedingEnrichment(ctx context.Context, limit int) ([]model.Poi, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgPoiColumns+` FROM pois
		 WHERE source LIKE 'osm%' AND (
			registry_id = '' OR
			wikipedia_url = '' OR
			trim(description) = '' OR
			description = $1 OR
			image = '' OR
			region_id IS NULL
		 )
		 ORDER BY id LIMIT $2`,
		model.PlaceholderDescription, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pois needing enrichment")
	}
	defer rows.Close()

	var pois []model.Poi
	for rows.Next() {
		poi, err := scanPgPoi(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan poi")
		}
		pois = append(pois, *poi)
	}
	return pois, eris.Wrap(rows.Err(), "postgres: iterate pois")
}

// UpsertFromOSM bulk-loads imported elements keyed by external OSM id,
// refreshing only the ingestion-owned columns on conflict.
func (s *PostgresStore) UpsertFromOSM(ctx context.Context, pois []model.Poi) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(pois))
	for _, poi := range pois {
		if poi.ExternalOSMID == "" {
			continue
		}
		rows = append(rows, []any{
			poi.Name, poi.NamePT, poi.Category, poi.Lat, poi.Lon,
			poi.ExternalOSMID, model.SourceOSM, now, now,
		})
	}

	return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "pois",
		Columns: []string{
			"name", "name_pt", "category", "lat", "lon",
			"external_osm_id", "source", "created_at", "updated_at",
		},
		ConflictKeys:  []string{"external_osm_id"},
		ConflictWhere: `external_osm_id != ''`,
		UpdateCols:    []string{"name", "name_pt", "category", "lat", "lon", "updated_at"},
	}, rows)
}

const pgRegionColumns = `id, name, name_pt, description, lat, lon, population, municipalities, parishes`

func (s *PostgresStore) AllRegions(ctx context.Context) ([]model.Region, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+pgRegionColumns+` FROM regions ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list regions")
	}
	defer rows.Close()

	var regions []model.Region
	for rows.Next() {
		var r model.Region
		if err := rows.Scan(&r.ID, &r.Name, &r.NamePT, &r.Description,
			&r.Lat, &r.Lon, &r.Population, &r.MunicipalityCount, &r.ParishCount); err != nil {
			return nil, eris.Wrap(err, "postgres: scan region")
		}
		regions = append(regions, r)
	}
	return regions, eris.Wrap(rows.Err(), "postgres: iterate regions")
}

func (s *PostgresStore) GetRegion(ctx context.Context, id int64) (*model.Region, error) {
	var r model.Region
	err := s.pool.QueryRow(ctx,
		`SELECT `+pgRegionColumns+` FROM regions WHERE id = $1`, id,
	).Scan(&r.ID, &r.Name, &r.NamePT, &r.Description,
		&r.Lat, &r.Lon, &r.Population, &r.MunicipalityCount, &r.ParishCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Entity: "region", ID: fmt.Sprintf("%d", id)}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get region %d", id)
	}
	return &r, nil
}

func (s *PostgresStore) UpsertRegion(ctx context.Context, region *model.Region) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO regions (name, name_pt, description, lat, lon, population, municipalities, parishes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (lower(name_pt)) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			lat = COALESCE(EXCLUDED.lat, regions.lat),
			lon = COALESCE(EXCLUDED.lon, regions.lon),
			population = EXCLUDED.population,
			municipalities = EXCLUDED.municipalities,
			parishes = EXCLUDED.parishes
		 RETURNING id`,
		region.Name, region.NamePT, region.Description, region.Lat, region.Lon,
		region.Population, region.MunicipalityCount, region.ParishCount,
	).Scan(&region.ID)
	return eris.Wrapf(err, "postgres: upsert region %s", region.NamePT)
}

func (s *PostgresStore) CreateRun(ctx context.Context, run *model.EnrichmentRun) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO enrichment_runs (id, status, processed, enriched, started_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		run.ID, string(run.Status), run.Processed, run.Enriched, run.StartedAt,
	)
	return eris.Wrapf(err, "postgres: insert run %s", run.ID)
}

func (s *PostgresStore) FinishRun(ctx context.Context, run *model.EnrichmentRun) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE enrichment_runs SET status = $1, processed = $2, enriched = $3, finished_at = $4
		 WHERE id = $5`,
		string(run.Status), run.Processed, run.Enriched, run.FinishedAt, run.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return &NotFoundError{Entity: "run", ID: run.ID}
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*model.EnrichmentRun, error) {
	var run model.EnrichmentRun
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT id, status, processed, enriched, started_at, finished_at
		 FROM enrichment_runs WHERE id = $1`, id,
	).Scan(&run.ID, &status, &run.Processed, &run.Enriched, &run.StartedAt, &run.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Entity: "run", ID: id}
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", id)
	}
	run.Status = model.RunStatus(status)
	return &run, nil
}

func scanPgPoi(row pgx.Row) (*model.Poi, error) {
	var poi model.Poi
	err := row.Scan(&poi.ID, &poi.RegionID, &poi.Name, &poi.NamePT, &poi.Category,
		&poi.Description, &poi.Lat, &poi.Lon, &poi.WikipediaURL, &poi.RegistryID,
		&poi.ExternalOSMID, &poi.Source, &poi.Image, &poi.Images,
		&poi.CreatedAt, &poi.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &poi, nil
}
