// Package stats aggregates request, provider and cache counters for the
// admin dashboard. All derived values are computed when a snapshot is taken.
package stats

import (
	"sort"
	"sync"
	"time"
)

type Outcome int

const (
	Success Outcome = iota
	Failure
)

// ProviderRecord is the mutable per-provider accumulator. Response time
// samples grow without bound for the lifetime of the process.
type ProviderRecord struct {
	Calls       int64
	Successes   int64
	Errors      int64
	QuotaErrors int64
	Tokens      int64
	samples     []time.Duration
}

type Collector struct {
	mu        sync.Mutex
	started   time.Time
	total     int64
	succeeded int64
	failed    int64
	fallbacks int64
	hits      int64
	misses    int64
	providers map[string]*ProviderRecord
}

func New() *Collector {
	return &Collector{
		started:   time.Now(),
		providers: make(map[string]*ProviderRecord),
	}
}

func (c *Collector) record(name string) *ProviderRecord {
	r, ok := c.providers[name]
	if !ok {
		r = &ProviderRecord{}
		c.providers[name] = r
	}
	return r
}

// RecordRequest counts an accepted (non-empty) request.
func (c *Collector) RecordRequest() {
	c.mu.Lock()
	c.total++
	c.mu.Unlock()
}

// RecordAnswered counts a request answered by a provider or the cache.
func (c *Collector) RecordAnswered() {
	c.mu.Lock()
	c.succeeded++
	c.mu.Unlock()
}

// RecordAttempt counts one provider call.
func (c *Collector) RecordAttempt(name string, outcome Outcome, elapsed time.Duration, tokens int, quota bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.record(name)
	r.Calls++
	r.samples = append(r.samples, elapsed)
	switch outcome {
	case Success:
		r.Successes++
		r.Tokens += int64(tokens)
	case Failure:
		r.Errors++
		if quota {
			r.QuotaErrors++
		}
	}
}

func (c *Collector) RecordCacheHit() {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

func (c *Collector) RecordCacheMiss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}

// RecordFallback counts a request that exhausted every provider.
func (c *Collector) RecordFallback() {
	c.mu.Lock()
	c.fallbacks++
	c.failed++
	c.mu.Unlock()
}

type RequestStats struct {
	Total      int64 `json:"total"`
	Successful int64 `json:"successful"`
	Failed     int64 `json:"failed"`
}

type ProviderStats struct {
	Calls             int64   `json:"calls"`
	Successes         int64   `json:"success"`
	Errors            int64   `json:"errors"`
	QuotaErrors       int64   `json:"quotaErrors"`
	Tokens            int64   `json:"tokens"`
	AvgResponseTimeMs float64 `json:"avgResponseTimeMs"`
}

type CacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hitRate"`
}

type Snapshot struct {
	Requests      RequestStats             `json:"requests"`
	Providers     map[string]ProviderStats `json:"providers"`
	SuccessRate   float64                  `json:"successRate"`
	Cache         CacheStats               `json:"cache"`
	Fallbacks     int64                    `json:"fallbacks"`
	UptimeSeconds int64                    `json:"uptimeSeconds"`
}

// Snapshot returns a copy of the counters with derived rates.
func (c *Collector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Requests: RequestStats{
			Total:      c.total,
			Successful: c.succeeded,
			Failed:     c.failed,
		},
		Providers: make(map[string]ProviderStats, len(c.providers)),
		Cache: CacheStats{
			Hits:    c.hits,
			Misses:  c.misses,
			HitRate: ratio(c.hits, c.hits+c.misses),
		},
		Fallbacks:     c.fallbacks,
		UptimeSeconds: int64(time.Since(c.started).Seconds()),
	}

	var calls, successes int64
	for name, r := range c.providers {
		calls += r.Calls
		successes += r.Successes
		s.Providers[name] = ProviderStats{
			Calls:             r.Calls,
			Successes:         r.Successes,
			Errors:            r.Errors,
			QuotaErrors:       r.QuotaErrors,
			Tokens:            r.Tokens,
			AvgResponseTimeMs: meanMillis(r.samples),
		}
	}
	s.SuccessRate = ratio(successes, calls)
	return s
}

// ProviderNames returns the providers that have at least one attempt, sorted.
func (s Snapshot) ProviderNames() []string {
	names := make([]string, 0, len(s.Providers))
	for n := range s.Providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func ratio(n, d int64) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func meanMillis(samples []time.Duration) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range samples {
		sum += d
	}
	return float64(sum) / float64(len(samples)) / float64(time.Millisecond)
}
