// Package postgres provides a Postgres-backed Store implementation.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quseop/property-ci-scraper/internal/property"
)

// uniqueViolation is the SQLSTATE raised by the listings source-URL unique
// constraint.
const uniqueViolation = "23505"

// Config controls the Postgres connection pool used for listings.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store writes listings into Postgres. It assumes a table schema like:
//
//	CREATE TABLE listings (
//		id UUID PRIMARY KEY,
//		title TEXT NOT NULL,
//		price BIGINT,
//		address TEXT NOT NULL,
//		province TEXT NOT NULL,
//		city TEXT NOT NULL,
//		suburb TEXT,
//		property_type TEXT NOT NULL,
//		bedrooms INT,
//		bathrooms INT,
//		garage_spaces INT,
//		land_size DOUBLE PRECISION,
//		floor_size DOUBLE PRECISION,
//		scraped_at TIMESTAMPTZ NOT NULL,
//		source_url TEXT NOT NULL,
//		latitude DOUBLE PRECISION,
//		longitude DOUBLE PRECISION,
//		CONSTRAINT unique_listing_source_url UNIQUE (source_url)
//	);
type Store struct {
	pool  pgxQuerier
	idGen property.IDGenerator
}

// New creates a Postgres-backed Store using the provided config.
func New(ctx context.Context, cfg Config, idGen property.IDGenerator) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, idGen: idGen}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for
// testing).
func NewWithPool(pool pgxQuerier, idGen property.IDGenerator) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool, idGen: idGen}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const listingColumns = `id, title, price, address, province, city, suburb, property_type,
	bedrooms, bathrooms, garage_spaces, land_size, floor_size, scraped_at,
	source_url, latitude, longitude`

// Create inserts a listing row. A source-URL unique violation is mapped to
// property.ErrDuplicateSourceURL so the pipeline can treat it as a no-op.
func (s *Store) Create(ctx context.Context, listing property.NewListing) (property.Listing, error) {
	id, err := s.idGen.NewID()
	if err != nil {
		return property.Listing{}, fmt.Errorf("generate listing id: %w", err)
	}

	query := `
INSERT INTO listings (` + listingColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err = s.pool.Exec(ctx, query,
		id,
		listing.Title,
		listing.Price,
		listing.Address,
		listing.Province,
		listing.City,
		listing.Suburb,
		listing.PropertyType,
		listing.Bedrooms,
		listing.Bathrooms,
		listing.GarageSpaces,
		listing.LandSize,
		listing.FloorSize,
		listing.ScrapedAt,
		listing.SourceURL,
		listing.Latitude,
		listing.Longitude,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return property.Listing{}, property.ErrDuplicateSourceURL
		}
		return property.Listing{}, fmt.Errorf("insert listing: %w", err)
	}

	return property.Listing{
		ID:           id,
		Title:        listing.Title,
		Price:        listing.Price,
		Address:      listing.Address,
		Province:     listing.Province,
		City:         listing.City,
		Suburb:       listing.Suburb,
		PropertyType: listing.PropertyType,
		Bedrooms:     listing.Bedrooms,
		Bathrooms:    listing.Bathrooms,
		GarageSpaces: listing.GarageSpaces,
		LandSize:     listing.LandSize,
		FloorSize:    listing.FloorSize,
		ScrapedAt:    listing.ScrapedAt,
		SourceURL:    listing.SourceURL,
		Latitude:     listing.Latitude,
		Longitude:    listing.Longitude,
	}, nil
}

// FindAll returns every listing row.
func (s *Store) FindAll(ctx context.Context) ([]property.Listing, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+listingColumns+` FROM listings ORDER BY scraped_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	var out []property.Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, listing)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return out, nil
}

// FindByID fetches one listing row.
func (s *Store) FindByID(ctx context.Context, id string) (property.Listing, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)
	listing, err := scanListing(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return property.Listing{}, property.ErrListingNotFound
		}
		return property.Listing{}, err
	}
	return listing, nil
}

func scanListing(row pgx.Row) (property.Listing, error) {
	var listing property.Listing
	err := row.Scan(
		&listing.ID,
		&listing.Title,
		&listing.Price,
		&listing.Address,
		&listing.Province,
		&listing.City,
		&listing.Suburb,
		&listing.PropertyType,
		&listing.Bedrooms,
		&listing.Bathrooms,
		&listing.GarageSpaces,
		&listing.LandSize,
		&listing.FloorSize,
		&listing.ScrapedAt,
		&listing.SourceURL,
		&listing.Latitude,
		&listing.Longitude,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return property.Listing{}, err
		}
		return property.Listing{}, fmt.Errorf("scan listing: %w", err)
	}
	return listing, nil
}
