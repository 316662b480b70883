package correlation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LLMontreal/llmontreal-backend/internal/logger"
)

// Kind distinguishes the payload shape a pending request resolves to.
type Kind string

const (
	KindChat    Kind = "chat"
	KindSummary Kind = "summary"
)

var (
	// ErrDuplicateCorrelationID means Register was called twice with the
	// same id. With UUID ids this is a programmer error.
	ErrDuplicateCorrelationID = errors.New("correlation id already registered")

	// ErrTimeout means the entry expired before a response arrived.
	ErrTimeout = errors.New("request expired")
)

// Outcome is the single value a pending request resolves to: a raw
// result payload or an error, never both.
type Outcome struct {
	Payload json.RawMessage
	Err     error
}

// Pending is the awaitable handle returned by Register. It is resolved
// at most once, by a broker response or by the expiry sweep.
type Pending struct {
	id        string
	kind      Kind
	createdAt time.Time
	done      chan Outcome
	resolved  atomic.Bool
}

func (p *Pending) ID() string { return p.id }
func (p *Pending) Kind() Kind { return p.kind }

// Wait blocks until the request is resolved or ctx is done. The payload
// is only valid when the returned error is nil.
func (p *Pending) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case out := <-p.done:
		if out.Err != nil {
			return nil, out.Err
		}
		return out.Payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// resolve delivers the outcome exactly once. The channel is buffered so
// the winning caller never blocks on an absent waiter.
func (p *Pending) resolve(out Outcome) bool {
	if !p.resolved.CompareAndSwap(false, true) {
		return false
	}
	p.done <- out
	return true
}

// Registry maps correlation ids to pending awaitable slots. Register,
// Resolve and Sweep run concurrently from the dispatcher, the broker
// consumer and the sweep ticker; per-id linearizability comes from
// sync.Map's LoadAndDelete plus the resolve-once CAS on each entry.
type Registry struct {
	pending sync.Map // correlation id -> *Pending
	timeout time.Duration
}

func NewRegistry(timeout time.Duration) *Registry {
	return &Registry{timeout: timeout}
}

// Register creates a pending slot for id and records its creation time.
func (r *Registry) Register(id string, kind Kind) (*Pending, error) {
	p := &Pending{
		id:        id,
		kind:      kind,
		createdAt: time.Now(),
		done:      make(chan Outcome, 1),
	}
	if _, loaded := r.pending.LoadOrStore(id, p); loaded {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateCorrelationID, id)
	}
	return p, nil
}

// Resolve completes the entry for id and removes it. A late or unknown
// id is dropped: logged, not fatal, so duplicate broker deliveries are
// harmless to the resolver.
func (r *Registry) Resolve(id string, out Outcome) bool {
	v, ok := r.pending.LoadAndDelete(id)
	if !ok {
		logger.Warn("Dropping response for unknown correlation id", "correlation_id", id)
		return false
	}
	return v.(*Pending).resolve(out)
}

// Remove discards the entry without resolving it. Used by the dispatcher
// to roll back registration when the broker publish fails; the caller
// still holds the Pending but will never wait on it.
func (r *Registry) Remove(id string) {
	r.pending.LoadAndDelete(id)
}

// Sweep resolves every entry older than the registry timeout with
// ErrTimeout and removes it. Returns the number of expired entries.
func (r *Registry) Sweep(now time.Time) int {
	expired := 0
	r.pending.Range(func(key, value any) bool {
		p := value.(*Pending)
		if now.Sub(p.createdAt) <= r.timeout {
			return true
		}
		if _, ok := r.pending.LoadAndDelete(key); !ok {
			return true // lost the race to a concurrent resolve
		}
		if p.resolve(Outcome{Err: fmt.Errorf("%w: %s", ErrTimeout, p.id)}) {
			expired++
			logger.Warn("Correlation entry expired", "correlation_id", p.id, "kind", string(p.kind))
		}
		return true
	})
	return expired
}

// StartSweeper runs Sweep on a fixed period until ctx is done.
func (r *Registry) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case now := <-ticker.C:
				if n := r.Sweep(now); n > 0 {
					logger.Info("Expired pending requests swept", "count", n)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}
