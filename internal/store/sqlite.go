package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/calmcompass/places-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := sqldb.Exec(pragma); err != nil {
			sqldb.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sqldb}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS cities (
	slug       TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	state      TEXT NOT NULL DEFAULT '',
	country    TEXT NOT NULL DEFAULT '',
	lat        REAL NOT NULL,
	lng        REAL NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS raw_places (
	id           TEXT PRIMARY KEY,
	source       TEXT NOT NULL,
	source_id    TEXT NOT NULL,
	city_slug    TEXT NOT NULL,
	category     TEXT NOT NULL,
	collected_at DATETIME NOT NULL,
	payload      TEXT NOT NULL,
	UNIQUE (source, source_id)
);

CREATE INDEX IF NOT EXISTS idx_raw_places_city_slug ON raw_places(city_slug);
CREATE INDEX IF NOT EXISTS idx_raw_places_city_category ON raw_places(city_slug, category);

CREATE TABLE IF NOT EXISTS places (
	key          TEXT PRIMARY KEY,
	city_slug    TEXT NOT NULL,
	name         TEXT NOT NULL,
	address      TEXT NOT NULL DEFAULT '',
	lat          REAL,
	lng          REAL,
	phone        TEXT NOT NULL DEFAULT '',
	website      TEXT NOT NULL DEFAULT '',
	rating       REAL,
	review_count INTEGER,
	price_level  INTEGER NOT NULL DEFAULT 0,
	category     TEXT NOT NULL,
	categories   TEXT NOT NULL DEFAULT '[]',
	is_closed    INTEGER NOT NULL DEFAULT 0,
	hours        TEXT,
	source_ids   TEXT NOT NULL DEFAULT '{}',
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_places_city_slug ON places(city_slug);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) UpsertCity(ctx context.Context, city *model.City) error {
	if city.CreatedAt.IsZero() {
		city.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cities (slug, name, state, country, lat, lng, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (slug) DO UPDATE SET
		   name = excluded.name, state = excluded.state, country = excluded.country,
		   lat = excluded.lat, lng = excluded.lng`,
		city.Slug, city.Name, city.State, city.Country, city.Lat, city.Lng, city.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert city %s", city.Slug)
}

func (s *SQLiteStore) GetCity(ctx context.Context, slug string) (*model.City, error) {
	var c model.City
	err := s.db.QueryRowContext(ctx,
		`SELECT slug, name, state, country, lat, lng, created_at FROM cities WHERE slug = ?`,
		slug,
	).Scan(&c.Slug, &c.Name, &c.State, &c.Country, &c.Lat, &c.Lng, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get city %s", slug)
	}
	return &c, nil
}

func (s *SQLiteStore) ListCities(ctx context.Context) ([]model.City, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT slug, name, state, country, lat, lng, created_at FROM cities ORDER BY slug`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list cities")
	}
	defer rows.Close()

	var cities []model.City
	for rows.Next() {
		var c model.City
		if err := rows.Scan(&c.Slug, &c.Name, &c.State, &c.Country, &c.Lat, &c.Lng, &c.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan city")
		}
		cities = append(cities, c)
	}
	return cities, eris.Wrap(rows.Err(), "sqlite: list cities iterate")
}

func (s *SQLiteStore) SaveRawPlaces(ctx context.Context, records []model.RawPlace) (int, int, error) {
	var inserted, updated int
	for i := range records {
		rec := &records[i]
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		payloadJSON, err := json.Marshal(rec.Payload)
		if err != nil {
			return inserted, updated, eris.Wrapf(err, "sqlite: marshal payload %s/%s", rec.Source, rec.SourceID)
		}

		var exists bool
		err = s.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM raw_places WHERE source = ? AND source_id = ?)`,
			string(rec.Source), rec.SourceID,
		).Scan(&exists)
		if err != nil {
			return inserted, updated, eris.Wrapf(err, "sqlite: check raw place %s/%s", rec.Source, rec.SourceID)
		}

		_, err = s.db.ExecContext(ctx,
			`INSERT INTO raw_places (id, source, source_id, city_slug, category, collected_at, payload)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (source, source_id) DO UPDATE SET
			   city_slug = excluded.city_slug, category = excluded.category,
			   collected_at = excluded.collected_at, payload = excluded.payload`,
			rec.ID, string(rec.Source), rec.SourceID, rec.CitySlug, rec.Category, rec.CollectedAt.UTC(), string(payloadJSON),
		)
		if err != nil {
			return inserted, updated, eris.Wrapf(err, "sqlite: save raw place %s/%s", rec.Source, rec.SourceID)
		}
		if exists {
			updated++
		} else {
			inserted++
		}
	}
	return inserted, updated, nil
}

func (s *SQLiteStore) ListRawPlaces(ctx context.Context, filter RawFilter) ([]model.RawPlace, error) {
	query := `SELECT id, source, source_id, city_slug, category, collected_at, payload FROM raw_places WHERE 1=1`
	var args []any

	if filter.CitySlug != "" {
		query += ` AND city_slug = ?`
		args = append(args, filter.CitySlug)
	}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, string(filter.Source))
	}
	query += ` ORDER BY collected_at, source, source_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list raw places")
	}
	defer rows.Close()

	var records []model.RawPlace
	for rows.Next() {
		var rec model.RawPlace
		var payloadJSON string
		if err := rows.Scan(&rec.ID, &rec.Source, &rec.SourceID, &rec.CitySlug, &rec.Category, &rec.CollectedAt, &payloadJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan raw place")
		}
		if err := json.Unmarshal([]byte(payloadJSON), &rec.Payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal payload")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list raw places iterate")
}

func (s *SQLiteStore) UpsertPlace(ctx context.Context, place *model.Place) error {
	categoriesJSON, err := json.Marshal(place.Categories)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal categories")
	}
	sourceIDsJSON, err := json.Marshal(place.SourceIDs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal source ids")
	}
	var hoursJSON any
	if place.Hours != nil {
		b, err := json.Marshal(place.Hours)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal hours")
		}
		hoursJSON = string(b)
	}

	var lat, lng any
	if place.Coords != nil {
		lat, lng = place.Coords.Lat, place.Coords.Lng
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO places (key, city_slug, name, address, lat, lng, phone, website, rating, review_count,
		   price_level, category, categories, is_closed, hours, source_ids, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET
		   city_slug = excluded.city_slug, name = excluded.name, address = excluded.address,
		   lat = excluded.lat, lng = excluded.lng, phone = excluded.phone, website = excluded.website,
		   rating = excluded.rating, review_count = excluded.review_count,
		   price_level = excluded.price_level, category = excluded.category,
		   categories = excluded.categories, is_closed = excluded.is_closed, hours = excluded.hours,
		   source_ids = excluded.source_ids, updated_at = excluded.updated_at`,
		place.Key, place.CitySlug, place.Name, place.Address, lat, lng, place.Phone, place.Website,
		place.Rating, place.ReviewCount, place.PriceLevel, place.Category, string(categoriesJSON),
		place.IsClosed, hoursJSON, string(sourceIDsJSON), place.CreatedAt.UTC(), place.UpdatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: upsert place %s", place.Key)
}

func (s *SQLiteStore) ListPlaces(ctx context.Context, citySlug string) ([]model.Place, error) {
	return s.listPlaces(ctx, citySlug, "")
}

// ListPlacesByCategory filters on the JSON category set in Go; SQLite has no
// native containment operator for the stored array.
func (s *SQLiteStore) ListPlacesByCategory(ctx context.Context, citySlug, category string) ([]model.Place, error) {
	return s.listPlaces(ctx, citySlug, category)
}

func (s *SQLiteStore) listPlaces(ctx context.Context, citySlug, category string) ([]model.Place, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, city_slug, name, address, lat, lng, phone, website, rating, review_count,
		   price_level, category, categories, is_closed, hours, source_ids, created_at, updated_at
		 FROM places WHERE city_slug = ? ORDER BY key`,
		citySlug,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list places")
	}
	defer rows.Close()

	var places []model.Place
	for rows.Next() {
		var p model.Place
		var lat, lng sql.NullFloat64
		var rating sql.NullFloat64
		var reviewCount sql.NullInt64
		var categoriesJSON, sourceIDsJSON string
		var hoursJSON sql.NullString

		if err := rows.Scan(&p.Key, &p.CitySlug, &p.Name, &p.Address, &lat, &lng, &p.Phone, &p.Website,
			&rating, &reviewCount, &p.PriceLevel, &p.Category, &categoriesJSON,
			&p.IsClosed, &hoursJSON, &sourceIDsJSON, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan place")
		}
		if lat.Valid && lng.Valid {
			p.Coords = &model.Coordinates{Lat: lat.Float64, Lng: lng.Float64}
		}
		if rating.Valid {
			v := rating.Float64
			p.Rating = &v
		}
		if reviewCount.Valid {
			v := int(reviewCount.Int64)
			p.ReviewCount = &v
		}
		if err := json.Unmarshal([]byte(categoriesJSON), &p.Categories); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal categories")
		}
		if err := json.Unmarshal([]byte(sourceIDsJSON), &p.SourceIDs); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal source ids")
		}
		if hoursJSON.Valid && hoursJSON.String != "" {
			if err := json.Unmarshal([]byte(hoursJSON.String), &p.Hours); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal hours")
			}
		}
		if category != "" && !p.HasCategory(category) {
			continue
		}
		places = append(places, p)
	}
	return places, eris.Wrap(rows.Err(), "sqlite: iterate places")
}
