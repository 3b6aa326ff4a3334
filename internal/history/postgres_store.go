package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const schema = `
CREATE TABLE IF NOT EXISTS assistant_requests (
	id          UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	request_id  TEXT NOT NULL,
	provider    TEXT NOT NULL,
	model       TEXT NOT NULL DEFAULT '',
	cached      BOOLEAN NOT NULL DEFAULT false,
	fallback    BOOLEAN NOT NULL DEFAULT false,
	attempts    INTEGER NOT NULL DEFAULT 0,
	tokens      INTEGER NOT NULL DEFAULT 0,
	cost_usd    DOUBLE PRECISION NOT NULL DEFAULT 0,
	latency_ms  BIGINT NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_assistant_requests_created ON assistant_requests (created_at DESC);
`

type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate history: %w", err)
	}
	return nil
}

func (s *PostgresStore) Log(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO assistant_requests (request_id, provider, model, cached, fallback, attempts, tokens, cost_usd, latency_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	err := s.db.QueryRow(ctx, query,
		rec.RequestID, rec.Provider, rec.Model, rec.Cached, rec.Fallback,
		rec.Attempts, rec.Tokens, rec.CostUSD, rec.LatencyMs,
	).Scan(&rec.ID, &rec.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to log request: %w", err)
	}

	return nil
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	query := `
		SELECT id, request_id, provider, model, cached, fallback, attempts, tokens, cost_usd, latency_ms, created_at
		FROM assistant_requests
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		var r Record
		err := rows.Scan(
			&r.ID, &r.RequestID, &r.Provider, &r.Model, &r.Cached, &r.Fallback,
			&r.Attempts, &r.Tokens, &r.CostUSD, &r.LatencyMs, &r.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history record: %w", err)
		}
		out = append(out, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}

	return out, nil
}

func (s *PostgresStore) Summary(ctx context.Context, from, to time.Time) ([]ProviderSummary, error) {
	query := `
		SELECT provider, COUNT(*), COALESCE(AVG(latency_ms), 0), COALESCE(SUM(cost_usd), 0)
		FROM assistant_requests
		WHERE created_at BETWEEN $1 AND $2
		GROUP BY provider
		ORDER BY provider
	`
	rows, err := s.db.Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query history summary: %w", err)
	}
	defer rows.Close()

	var out []ProviderSummary
	for rows.Next() {
		var ps ProviderSummary
		if err := rows.Scan(&ps.Provider, &ps.Requests, &ps.AvgLatencyMs, &ps.TotalCostUSD); err != nil {
			return nil, fmt.Errorf("failed to scan history summary: %w", err)
		}
		out = append(out, ps)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history summary: %w", err)
	}

	return out, nil
}
