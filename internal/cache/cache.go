// Package cache memoizes assistant answers for a bounded time window.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

const (
	DefaultTTL         = 300 * time.Second
	DefaultFallbackTTL = 60 * time.Second
)

// Store is implemented by MemoryStore and RedisStore.
type Store interface {
	// Get returns the value for key if present and unexpired.
	Get(ctx context.Context, key string) (string, bool)
	// Put stores value under key, replacing any previous entry and its expiry.
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	// Clear removes every entry and returns how many were removed.
	Clear(ctx context.Context) (int, error)
	// Len returns the number of live entries.
	Len(ctx context.Context) int
}

type keyParts struct {
	Prompt  string `json:"p"`
	Context string `json:"c"`
	Options any    `json:"o"`
}

// Key derives a deterministic cache key. Options are JSON encoded, so
// struct fields keep declaration order and map keys are sorted.
func Key(prompt, system string, options any) string {
	data, err := json.Marshal(keyParts{
		Prompt:  strings.TrimSpace(prompt),
		Context: strings.TrimSpace(system),
		Options: options,
	})
	if err != nil {
		// unencodable options still key on prompt and context
		data = []byte(strings.TrimSpace(prompt) + "\x00" + strings.TrimSpace(system))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
