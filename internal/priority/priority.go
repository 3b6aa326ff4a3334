// Package priority holds the runtime-mutable provider trial order.
package priority

import (
	"fmt"
	"strings"
	"sync/atomic"
)

var (
	// QualityFirst is the default order when cost is not a concern.
	QualityFirst = []string{"claude", "openai", "gemini"}
	// FreeFirst puts free-tier and cheapest providers first.
	FreeFirst = []string{"gemini", "openai", "claude"}
)

// InvalidError is returned by Set when the proposed order is rejected.
type InvalidError struct {
	Reason string
}

func (e *InvalidError) Error() string {
	return "invalid priority: " + e.Reason
}

// Checker reports whether a provider id is configured.
type Checker interface {
	Has(name string) bool
}

// Policy is safe for concurrent use. Readers always observe a complete list.
type Policy struct {
	known Checker
	order atomic.Pointer[[]string]
}

func New(known Checker, initial []string) *Policy {
	p := &Policy{known: known}
	order := append([]string(nil), initial...)
	p.order.Store(&order)
	return p
}

// Default picks the startup order: an explicit list wins, otherwise the
// freeFirst flag chooses between the two fixed orders.
func Default(explicit string, freeFirst bool) []string {
	if list := ParseList(explicit); len(list) > 0 {
		return list
	}
	if freeFirst {
		return append([]string(nil), FreeFirst...)
	}
	return append([]string(nil), QualityFirst...)
}

// ParseList splits a comma separated list, dropping blanks.
func ParseList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.ToLower(strings.TrimSpace(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Get returns the current order restricted to configured providers.
func (p *Policy) Get() []string {
	current := *p.order.Load()
	out := make([]string, 0, len(current))
	for _, name := range current {
		if p.known.Has(name) {
			out = append(out, name)
		}
	}
	return out
}

// Set validates and atomically replaces the order. On error the previous
// order stays in place.
func (p *Policy) Set(order []string) error {
	if len(order) == 0 {
		return &InvalidError{Reason: "priority list must not be empty"}
	}
	seen := make(map[string]struct{}, len(order))
	next := make([]string, 0, len(order))
	for _, raw := range order {
		name := strings.ToLower(strings.TrimSpace(raw))
		if !p.known.Has(name) {
			return &InvalidError{Reason: fmt.Sprintf("provider %q is not configured", raw)}
		}
		if _, dup := seen[name]; dup {
			return &InvalidError{Reason: fmt.Sprintf("provider %q listed more than once", raw)}
		}
		seen[name] = struct{}{}
		next = append(next, name)
	}
	p.order.Store(&next)
	return nil
}
