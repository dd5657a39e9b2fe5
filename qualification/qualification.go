// Package qualification is the side channel for punitive worker
// qualifications: when a finished conversation carries acceptability
// violations, the worker is granted a blocking qualification so the
// crowdsourcing platform stops routing them new work.
package qualification

import (
	"context"
	"sync"
	"time"
)

// Granter applies a punitive qualification to a worker. Implementations must
// be idempotent: granting the same qualification twice is a no-op, not an
// error, because the caller's done-latch already makes double grants a
// should-not-happen.
type Granter interface {
	GrantPunitive(ctx context.Context, workerID, reason string) error
}

// Grant is one recorded punitive grant.
type Grant struct {
	WorkerID  string
	Reason    string
	GrantedAt time.Time
}

// MemoryGranter records grants in memory. Used in tests and local runs.
type MemoryGranter struct {
	mu     sync.Mutex
	grants []Grant
	byID   map[string]int
}

// NewMemoryGranter creates an empty in-memory granter.
func NewMemoryGranter() *MemoryGranter {
	return &MemoryGranter{byID: make(map[string]int)}
}

// GrantPunitive records the grant once per worker.
func (g *MemoryGranter) GrantPunitive(ctx context.Context, workerID, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.byID[workerID]; ok {
		return nil
	}
	g.byID[workerID] = len(g.grants)
	g.grants = append(g.grants, Grant{WorkerID: workerID, Reason: reason, GrantedAt: time.Now()})
	return nil
}

// Grants returns a copy of all recorded grants.
func (g *MemoryGranter) Grants() []Grant {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Grant, len(g.grants))
	copy(out, g.grants)
	return out
}

// Count returns how many distinct workers were granted.
func (g *MemoryGranter) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.grants)
}
