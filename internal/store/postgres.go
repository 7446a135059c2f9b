package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/calmcompass/places-cli/internal/db"
	"github.com/calmcompass/places-cli/internal/model"
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

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS cities (
	slug       TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	state      TEXT NOT NULL DEFAULT '',
	country    TEXT NOT NULL DEFAULT '',
	lat        DOUBLE PRECISION NOT NULL,
	lng        DOUBLE PRECISION NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS raw_places (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source       TEXT NOT NULL,
	source_id    TEXT NOT NULL,
	city_slug    TEXT NOT NULL,
	category     TEXT NOT NULL,
	collected_at TIMESTAMPTZ NOT NULL,
	payload      JSONB NOT NULL,
	UNIQUE (source, source_id)
);

CREATE INDEX IF NOT EXISTS idx_raw_places_city_slug ON raw_places(city_slug);
CREATE INDEX IF NOT EXISTS idx_raw_places_city_category ON raw_places(city_slug, category);

CREATE TABLE IF NOT EXISTS places (
	key          TEXT PRIMARY KEY,
	city_slug    TEXT NOT NULL,
	name         TEXT NOT NULL,
	address      TEXT NOT NULL DEFAULT '',
	lat          DOUBLE PRECISION,
	lng          DOUBLE PRECISION,
	phone        TEXT NOT NULL DEFAULT '',
	website      TEXT NOT NULL DEFAULT '',
	rating       DOUBLE PRECISION,
	review_count INTEGER,
	price_level  INTEGER NOT NULL DEFAULT 0,
	category     TEXT NOT NULL,
	categories   JSONB NOT NULL DEFAULT '[]',
	is_closed    BOOLEAN NOT NULL DEFAULT false,
	hours        JSONB,
	source_ids   JSONB NOT NULL DEFAULT '{}',
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_places_city_slug ON places(city_slug);
CREATE INDEX IF NOT EXISTS idx_places_categories ON places USING GIN (categories);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertCity(ctx context.Context, city *model.City) error {
	if city.CreatedAt.IsZero() {
		city.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO cities (slug, name, state, country, lat, lng, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (slug) DO UPDATE SET name = $2, state = $3, country = $4, lat = $5, lng = $6`,
		city.Slug, city.Name, city.State, city.Country, city.Lat, city.Lng, city.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert city %s", city.Slug)
}

func (s *PostgresStore) GetCity(ctx context.Context, slug string) (*model.City, error) {
	var c model.City
	err := s.pool.QueryRow(ctx,
		`SELECT slug, name, state, country, lat, lng, created_at FROM cities WHERE slug = $1`,
		slug,
	).Scan(&c.Slug, &c.Name, &c.State, &c.Country, &c.Lat, &c.Lng, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get city %s", slug)
	}
	return &c, nil
}

func (s *PostgresStore) ListCities(ctx context.Context) ([]model.City, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT slug, name, state, country, lat, lng, created_at FROM cities ORDER BY slug`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list cities")
	}
	defer rows.Close()

	var cities []model.City
	for rows.Next() {
		var c model.City
		if err := rows.Scan(&c.Slug, &c.Name, &c.State, &c.Country, &c.Lat, &c.Lng, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan city")
		}
		cities = append(cities, c)
	}
	return cities, eris.Wrap(rows.Err(), "postgres: list cities iterate")
}

func (s *PostgresStore) SaveRawPlaces(ctx context.Context, records []model.RawPlace) (int, int, error) {
	var inserted, updated int
	for i := range records {
		rec := &records[i]
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		payloadJSON, err := json.Marshal(rec.Payload)
		if err != nil {
			return inserted, updated, eris.Wrapf(err, "postgres: marshal payload %s/%s", rec.Source, rec.SourceID)
		}

		// xmax = 0 distinguishes a fresh insert from a conflict update.
		var isInsert bool
		err = s.pool.QueryRow(ctx,
			`INSERT INTO raw_places (id, source, source_id, city_slug, category, collected_at, payload)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (source, source_id) DO UPDATE SET
			   city_slug = $4, category = $5, collected_at = $6, payload = $7
			 RETURNING (xmax = 0)`,
			rec.ID, string(rec.Source), rec.SourceID, rec.CitySlug, rec.Category, rec.CollectedAt, payloadJSON,
		).Scan(&isInsert)
		if err != nil {
			return inserted, updated, eris.Wrapf(err, "postgres: save raw place %s/%s", rec.Source, rec.SourceID)
		}
		if isInsert {
			inserted++
		} else {
			updated++
		}
	}
	return inserted, updated, nil
}

func (s *PostgresStore) ListRawPlaces(ctx context.Context, filter RawFilter) ([]model.RawPlace, error) {
	query := `SELECT id, source, source_id, city_slug, category, collected_at, payload FROM raw_places WHERE true`
	args := []any{}
	argIdx := 1

	if filter.CitySlug != "" {
		query += fmt.Sprintf(` AND city_slug = $%d`, argIdx)
		args = append(args, filter.CitySlug)
		argIdx++
	}
	if filter.Category != "" {
		query += fmt.Sprintf(` AND category = $%d`, argIdx)
		args = append(args, filter.Category)
		argIdx++
	}
	if filter.Source != "" {
		query += fmt.Sprintf(` AND source = $%d`, argIdx)
		args = append(args, string(filter.Source))
		argIdx++
	}
	query += ` ORDER BY collected_at, source, source_id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list raw places")
	}
	defer rows.Close()

	var records []model.RawPlace
	for rows.Next() {
		var rec model.RawPlace
		var payloadJSON []byte
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.SourceID, &rec.CitySlug, &rec.Category, &rec.CollectedAt, &payloadJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan raw place")
		}
		if err := json.Unmarshal(payloadJSON, &rec.Payload); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal payload")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list raw places iterate")
}

const placeColumns = `key, city_slug, name, address, lat, lng, phone, website, rating, review_count,
	price_level, category, categories, is_closed, hours, source_ids, created_at, updated_at`

func (s *PostgresStore) UpsertPlace(ctx context.Context, place *model.Place) error {
	categoriesJSON, err := json.Marshal(place.Categories)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal categories")
	}
	sourceIDsJSON, err := json.Marshal(place.SourceIDs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal source ids")
	}
	var hoursJSON []byte
	if place.Hours != nil {
		hoursJSON, err = json.Marshal(place.Hours)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal hours")
		}
	}

	var lat, lng *float64
	if place.Coords != nil {
		lat, lng = &place.Coords.Lat, &place.Coords.Lng
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO places (`+placeColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		 ON CONFLICT (key) DO UPDATE SET
		   city_slug = $2, name = $3, address = $4, lat = $5, lng = $6, phone = $7, website = $8,
		   rating = $9, review_count = $10, price_level = $11, category = $12, categories = $13,
		   is_closed = $14, hours = $15, source_ids = $16, updated_at = $18`,
		place.Key, place.CitySlug, place.Name, place.Address, lat, lng, place.Phone, place.Website,
		place.Rating, place.ReviewCount, place.PriceLevel, place.Category, categoriesJSON,
		place.IsClosed, hoursJSON, sourceIDsJSON, place.CreatedAt, place.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert place %s", place.Key)
}

func (s *PostgresStore) ListPlaces(ctx context.Context, citySlug string) ([]model.Place, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+placeColumns+` FROM places WHERE city_slug = $1 ORDER BY key`,
		citySlug,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list places")
	}
	defer rows.Close()
	return scanPlaces(rows)
}

func (s *PostgresStore) ListPlacesByCategory(ctx context.Context, citySlug, category string) ([]model.Place, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+placeColumns+` FROM places
		 WHERE city_slug = $1 AND categories @> to_jsonb($2::text) ORDER BY key`,
		citySlug, category,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list places by category")
	}
	defer rows.Close()
	return scanPlaces(rows)
}

func scanPlaces(rows pgx.Rows) ([]model.Place, error) {
	var places []model.Place
	for rows.Next() {
		var p model.Place
		var lat, lng *float64
		var categoriesJSON, sourceIDsJSON []byte
		var hoursJSON *[]byte

		if err := rows.Scan(&p.Key, &p.CitySlug, &p.Name, &p.Address, &lat, &lng, &p.Phone, &p.Website,
			&p.Rating, &p.ReviewCount, &p.PriceLevel, &p.Category, &categoriesJSON,
			&p.IsClosed, &hoursJSON, &sourceIDsJSON, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan place")
		}
		if lat != nil && lng != nil {
			p.Coords = &model.Coordinates{Lat: *lat, Lng: *lng}
		}
		if err := json.Unmarshal(categoriesJSON, &p.Categories); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal categories")
		}
		if err := json.Unmarshal(sourceIDsJSON, &p.SourceIDs); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal source ids")
		}
		if hoursJSON != nil && len(*hoursJSON) > 0 {
			if err := json.Unmarshal(*hoursJSON, &p.Hours); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal hours")
			}
		}
		places = append(places, p)
	}
	return places, eris.Wrap(rows.Err(), "postgres: iterate places")
}
