package listing

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"go.uber.org/zap"

	"github.com/yycdata/mlxsweep/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS properties (
	list_id            TEXT PRIMARY KEY,
	mls_number         TEXT,
	area_code          TEXT,
	built_year         INTEGER,
	street_number      TEXT,
	street_name        TEXT,
	street_direction   TEXT,
	street_type        TEXT,
	city               TEXT,
	postal_code        TEXT,
	latitude           DOUBLE PRECISION,
	longitude          DOUBLE PRECISION,
	square_feet        DOUBLE PRECISION,
	avg_ft_price       DOUBLE PRECISION,
	list_price         DOUBLE PRECISION,
	sold_price         DOUBLE PRECISION,
	price_difference   DOUBLE PRECISION,
	percent_difference DOUBLE PRECISION,
	list_date          TEXT,
	sold_date          TEXT,
	bedrooms           INTEGER,
	bathrooms          INTEGER,
	agent              TEXT,
	office             TEXT,
	neighborhood       TEXT,
	detail_url         TEXT,
	fetch_date         TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS properties_area_year_idx ON properties (area_code, built_year);
`

const upsert = `
INSERT INTO properties (
	list_id, mls_number, area_code, built_year,
	street_number, street_name, street_direction, street_type,
	city, postal_code, latitude, longitude,
	square_feet, avg_ft_price, list_price, sold_price,
	price_difference, percent_difference, list_date, sold_date,
	bedrooms, bathrooms, agent, office, neighborhood, detail_url
) VALUES (
	:list_id, :mls_number, :area_code, :built_year,
	:street_number, :street_name, :street_direction, :street_type,
	:city, :postal_code, :latitude, :longitude,
	:square_feet, :avg_ft_price, :list_price, :sold_price,
	:price_difference, :percent_difference, :list_date, :sold_date,
	:bedrooms, :bathrooms, :agent, :office, :neighborhood, :detail_url
)
ON CONFLICT (list_id) DO UPDATE SET
	sold_price         = EXCLUDED.sold_price,
	price_difference   = EXCLUDED.price_difference,
	percent_difference = EXCLUDED.percent_difference,
	sold_date          = EXCLUDED.sold_date,
	built_year         = EXCLUDED.built_year,
	fetch_date         = now()
`

// PostgresStore is the system of record for recovered listings.
type PostgresStore struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewPostgresStore(dsn string, logger *zap.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresStore{db: db, logger: logger}, nil
}

// EnsureSchema creates the properties table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Save upserts the slice's records in one transaction. Re-observed
// listings refresh their sale columns; identity rows are never duplicated.
func (s *PostgresStore) Save(
	ctx context.Context, area string, year int, records []domain.Record,
) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, rec := range records {
		l := FromRecord(area, year, rec)
		if l.ListID == "" {
			s.logger.Warn("skipping record without identity",
				zap.String("area", area), zap.Int("year", year))
			continue
		}
		if _, err := tx.NamedExecContext(ctx, upsert, l); err != nil {
			return fmt.Errorf("upsert %s: %w", l.ListID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Ping reports database reachability for the health endpoint.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
