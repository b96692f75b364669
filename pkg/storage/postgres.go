package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eupendra/simple-price-alert/pkg/scraper"
)

const createObservationsTable = `
CREATE TABLE IF NOT EXISTS price_observations (
	id          BIGSERIAL PRIMARY KEY,
	run_id      UUID        NOT NULL,
	product     TEXT        NOT NULL,
	url         TEXT        NOT NULL,
	alert_price NUMERIC     NOT NULL,
	price       NUMERIC,
	observed_at TIMESTAMPTZ NOT NULL,
	alert       BOOLEAN     NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const insertObservation = `
INSERT INTO price_observations (run_id, product, url, alert_price, price, observed_at, alert)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	// one writer per run
	cfg.MaxConns = 2
	cfg.MaxConnIdleTime = 30 * time.Second

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return p, nil
}

// PostgresStore inserts observations into price_observations. Rows are never
// updated or deleted.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createObservationsTable); err != nil {
		return fmt.Errorf("create price_observations: %w", err)
	}
	return nil
}

// Append writes the whole set in one transaction.
func (s *PostgresStore) Append(ctx context.Context, set scraper.ObservationSet) error {
	if set.Len() == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, o := range set.Items() {
		var price *string
		if o.Price.Valid {
			v := o.Price.Amount.String()
			price = &v
		}
		_, err := tx.Exec(ctx, insertObservation,
			o.RunID.String(),
			o.Product.Name,
			o.Product.URL,
			o.Product.AlertPrice.String(),
			price,
			o.Timestamp,
			o.AlertTriggered,
		)
		if err != nil {
			return fmt.Errorf("insert %s: %w", o.Product.URL, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CountRun returns how many observations were stored for a run.
func (s *PostgresStore) CountRun(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM price_observations WHERE run_id = $1`, runID).Scan(&n)
	return n, err
}
