package storage

import (
	"context"
	"fmt"

	"github.com/RamiroDLO/HSLU-CIP-FS2025-206/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const upsertListing = `
	INSERT INTO listings (car_model, price_chf, mileage, engine_power_hp, power_mode,
		production_date, consumption_l_per_100km, transmission, listing_url)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (listing_url) DO UPDATE
	SET
		car_model = EXCLUDED.car_model,
		price_chf = EXCLUDED.price_chf,
		mileage = EXCLUDED.mileage,
		engine_power_hp = EXCLUDED.engine_power_hp,
		power_mode = EXCLUDED.power_mode,
		production_date = EXCLUDED.production_date,
		consumption_l_per_100km = EXCLUDED.consumption_l_per_100km,
		transmission = EXCLUDED.transmission,
		updated_at = NOW()`

// PostgresSink upserts records into a listings table keyed by listing_url.
type PostgresSink struct {
	pool *pgxpool.Pool
}

// NewPostgresSink connects to dsn and creates the listings table if needed.
func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresSink{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresSink) Name() string { return "postgres" }

func (s *PostgresSink) Write(ctx context.Context, records []models.ListingRecord) error {
	if len(records) == 0 {
		return nil
	}

	b := &pgx.Batch{}
	for _, r := range records {
		b.Queue(upsertListing,
			nullable(r.Model),
			r.Price,
			r.Mileage,
			r.PowerHP,
			nullable(r.PowerMode),
			nullable(r.ProductionDate),
			r.Consumption,
			nullable(r.Transmission),
			r.URL,
		)
	}

	br := s.pool.SendBatch(ctx, b)
	for _, r := range records {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("upsert listing %q: %w", r.URL, err)
		}
	}
	return br.Close()
}

func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresSink) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS listings (
			id BIGSERIAL PRIMARY KEY,
			car_model TEXT,
			price_chf DOUBLE PRECISION NOT NULL,
			mileage INTEGER,
			engine_power_hp INTEGER,
			power_mode TEXT,
			production_date TEXT,
			consumption_l_per_100km DOUBLE PRECISION,
			transmission TEXT,
			listing_url TEXT NOT NULL UNIQUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// nullable maps the missing marker to SQL NULL.
func nullable(s string) *string {
	if s == "" || s == models.Missing {
		return nil
	}
	return &s
}
