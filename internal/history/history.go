// Package history persists one row per answered assistant request so the
// dashboard can show what served recent traffic.
package history

import (
	"context"
	"time"
)

type Record struct {
	ID        string
	RequestID string
	Provider  string // provider id, "cache" or "fallback"
	Model     string
	Cached    bool
	Fallback  bool
	Attempts  int
	Tokens    int
	CostUSD   float64
	LatencyMs int64
	CreatedAt time.Time
}

// ProviderSummary aggregates records for one provider over a time window.
type ProviderSummary struct {
	Provider     string  `json:"provider"`
	Requests     int64   `json:"requests"`
	AvgLatencyMs float64 `json:"avgLatencyMs"`
	TotalCostUSD float64 `json:"totalCostUsd"`
}

type Store interface {
	Log(ctx context.Context, rec *Record) error
	Recent(ctx context.Context, limit int) ([]*Record, error)
	Summary(ctx context.Context, from, to time.Time) ([]ProviderSummary, error)
}
