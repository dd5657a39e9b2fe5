// Package roster tracks how many conversations each model variant still
// needs across concurrently-starting conversations. Selection happens in a
// single critical section strictly before an engine is built, never on the
// per-turn hot path, so two conversations can never both be routed to an
// already-exhausted variant.
package roster

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/crowdchat/parley/types"
)

// Roster is the mutex/condition-guarded conversations-needed table.
type Roster struct {
	mu     sync.Mutex
	cond   *sync.Cond
	logger *zap.Logger

	remaining map[string]int
	inFlight  map[string]int
	closed    bool
}

// New builds a roster from the conversations-needed map. Every count must be
// positive and at least one variant is required.
func New(needed map[string]int, logger *zap.Logger) (*Roster, error) {
	if len(needed) == 0 {
		return nil, types.NewError(types.ErrConfiguration, "conversations-needed map is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Roster{
		logger:    logger.With(zap.String("component", "roster")),
		remaining: make(map[string]int, len(needed)),
		inFlight:  make(map[string]int, len(needed)),
	}
	for name, count := range needed {
		if count <= 0 {
			return nil, types.NewErrorf(types.ErrConfiguration, "variant %q needs a positive conversation count, got %d", name, count)
		}
		r.remaining[name] = count
	}
	r.cond = sync.NewCond(&r.mu)
	return r, nil
}

// Acquire reserves one conversation slot on the variant with the largest
// remaining need (ties broken by name for determinism) and returns its name.
//
// When every variant's remaining count is zero but conversations are still
// in flight, Acquire waits: an abandoned conversation may Release its slot.
// Once nothing can ever free up, it fails with VARIANT_EXHAUSTED. Context
// cancellation is observed at wakeups.
func (r *Roster) Acquire(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if r.closed {
			return "", types.NewError(types.ErrClosed, "roster is closed")
		}

		if name, ok := r.pickLocked(); ok {
			r.remaining[name]--
			r.inFlight[name]++
			r.logger.Info("variant reserved",
				zap.String("model", name),
				zap.Int("remaining", r.remaining[name]),
			)
			return name, nil
		}

		if r.totalInFlightLocked() == 0 {
			return "", types.NewError(types.ErrVariantExhausted, "every model variant has collected its needed conversations")
		}
		r.cond.Wait()
	}
}

// Release re-credits a slot reserved by Acquire when the conversation was
// abandoned before completing (disconnect, timeout).
func (r *Roster) Release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFlight[name] == 0 {
		r.logger.Warn("release without matching acquire", zap.String("model", name))
		return
	}
	r.inFlight[name]--
	r.remaining[name]++
	r.cond.Broadcast()
}

// Complete finalizes a reserved slot after the conversation persisted.
func (r *Roster) Complete(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFlight[name] == 0 {
		r.logger.Warn("complete without matching acquire", zap.String("model", name))
		return
	}
	r.inFlight[name]--
	r.cond.Broadcast()
}

// Remaining returns a snapshot of outstanding needs per variant.
func (r *Roster) Remaining() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.remaining))
	for name, count := range r.remaining {
		out[name] = count
	}
	return out
}

// Done reports whether every variant finished collecting.
func (r *Roster) Done() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pickLocked()
	return !ok && r.totalInFlightLocked() == 0
}

// Close wakes all waiters; subsequent Acquire calls fail with CLOSED.
func (r *Roster) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.cond.Broadcast()
}

func (r *Roster) pickLocked() (string, bool) {
	names := make([]string, 0, len(r.remaining))
	for name, count := range r.remaining {
		if count > 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "", false
	}
	sort.Slice(names, func(i, j int) bool {
		if r.remaining[names[i]] != r.remaining[names[j]] {
			return r.remaining[names[i]] > r.remaining[names[j]]
		}
		return names[i] < names[j]
	})
	return names[0], true
}

func (r *Roster) totalInFlightLocked() int {
	total := 0
	for _, n := range r.inFlight {
		total += n
	}
	return total
}
