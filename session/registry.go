package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shopping-cart/cart"
)

// ErrSessionNotFound is returned for ids that were never opened, were ended,
// or expired.
var ErrSessionNotFound = errors.New("session not found")

// DefaultIdleTTL is how long an untouched session keeps its cart.
const DefaultIdleTTL = 24 * time.Hour

type entry struct {
	cart *cart.Facade

	mu       sync.Mutex
	lastSeen time.Time
	dead     bool
}

// touch records activity and reports whether the entry is still usable.
func (e *entry) touch(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead {
		return false
	}
	e.lastSeen = now
	return true
}

// expire marks the entry dead if it has been idle since before cutoff.
// The check and the mark happen under one lock so a concurrent touch either
// keeps the entry alive or sees it dead.
func (e *entry) expire(cutoff time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dead || !e.lastSeen.Before(cutoff) {
		return false
	}
	e.dead = true
	return true
}

func (e *entry) kill() {
	e.mu.Lock()
	e.dead = true
	e.mu.Unlock()
}

// Registry owns one cart per shopper session. Every caller resolving the
// same id gets the same *cart.Facade.
type Registry struct {
	sessions sync.Map // map[string]*entry

	idleTTL time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

type Option func(*Registry)

func WithLogger(l *zap.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

func WithIdleTTL(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.idleTTL = d
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		idleTTL: DefaultIdleTTL,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Open starts a session with an empty cart and returns its id.
func (r *Registry) Open() string {
	for {
		id := uuid.NewString()
		e := &entry{
			cart:     cart.New(cart.WithLogger(r.logger.With(zap.String("session_id", id)))),
			lastSeen: r.now(),
		}
		if _, loaded := r.sessions.LoadOrStore(id, e); !loaded {
			r.logger.Info("session opened", zap.String("session_id", id))
			return id
		}
	}
}

// Cart returns the cart of an open session and marks the session as active.
func (r *Registry) Cart(id string) (*cart.Facade, error) {
	v, ok := r.sessions.Load(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	e := v.(*entry)
	if !e.touch(r.now()) {
		return nil, ErrSessionNotFound
	}
	return e.cart, nil
}

// End terminates a session, discarding its cart. It reports whether the
// session existed.
func (r *Registry) End(id string) bool {
	v, ok := r.sessions.LoadAndDelete(id)
	if !ok {
		return false
	}
	v.(*entry).kill()
	r.logger.Info("session ended", zap.String("session_id", id))
	return true
}

// Sweep ends every session idle for longer than the TTL and returns how many
// were removed.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.idleTTL)
	removed := 0
	r.sessions.Range(func(k, v any) bool {
		if v.(*entry).expire(cutoff) && r.sessions.CompareAndDelete(k, v) {
			removed++
		}
		return true
	})
	if removed > 0 {
		r.logger.Info("expired idle sessions", zap.Int("count", removed))
	}
	return removed
}

// Run sweeps on every tick until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Sweep()
		}
	}
}

func (r *Registry) Len() int {
	n := 0
	r.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
