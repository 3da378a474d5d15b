package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	models "shopping-cart/model"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestOpenAndResolveSharesCart(t *testing.T) {
	r := NewRegistry()
	id := r.Open()
	require.NotEmpty(t, id)

	a, err := r.Cart(id)
	require.NoError(t, err)
	b, err := r.Cart(id)
	require.NoError(t, err)
	assert.Same(t, a, b)

	a.AddOne(models.CatalogItem{ID: 1, Price: decimal.NewFromInt(5), Stock: 2})
	assert.Equal(t, 1, b.QtyOf(1))
}

func TestSessionsAreIsolated(t *testing.T) {
	r := NewRegistry()
	c1, _ := r.Cart(r.Open())
	c2, _ := r.Cart(r.Open())

	c1.AddOne(models.CatalogItem{ID: 1, Price: decimal.NewFromInt(5), Stock: 2})
	assert.Equal(t, 0, c2.QtyOf(1))
	assert.Equal(t, 2, r.Len())
}

func TestUnknownSession(t *testing.T) {
	r := NewRegistry()
	_, err := r.Cart("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.False(t, r.End("nope"))
}

func TestEndDiscardsCart(t *testing.T) {
	r := NewRegistry()
	id := r.Open()
	assert.True(t, r.End(id))
	assert.False(t, r.End(id))

	_, err := r.Cart(id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 0, r.Len())
}

func TestSweepExpiresIdleSessions(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := NewRegistry(WithClock(clock.Now), WithIdleTTL(time.Hour))

	idle := r.Open()
	active := r.Open()

	clock.Advance(45 * time.Minute)
	_, err := r.Cart(active)
	require.NoError(t, err)

	clock.Advance(30 * time.Minute)
	assert.Equal(t, 1, r.Sweep())

	_, err = r.Cart(idle)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = r.Cart(active)
	assert.NoError(t, err)
}

func TestExpiredEntryRefusesCart(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := NewRegistry(WithClock(clock.Now), WithIdleTTL(time.Hour))
	id := r.Open()

	v, ok := r.sessions.Load(id)
	require.True(t, ok)
	e := v.(*entry)

	clock.Advance(2 * time.Hour)
	cutoff := clock.Now().Add(-time.Hour)

	// marked dead but not yet removed from the map
	require.True(t, e.expire(cutoff))
	_, err := r.Cart(id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.False(t, e.expire(cutoff))
}

func TestTouchedEntryDoesNotExpire(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	r := NewRegistry(WithClock(clock.Now), WithIdleTTL(time.Hour))
	id := r.Open()

	clock.Advance(2 * time.Hour)
	cutoff := clock.Now().Add(-time.Hour)
	c, err := r.Cart(id)
	require.NoError(t, err)

	v, _ := r.sessions.Load(id)
	assert.False(t, v.(*entry).expire(cutoff))
	assert.Equal(t, 0, r.Sweep())

	got, err := r.Cart(id)
	require.NoError(t, err)
	assert.Same(t, c, got)
}

func TestEndedCartHandleIsDead(t *testing.T) {
	r := NewRegistry()
	id := r.Open()
	v, _ := r.sessions.Load(id)

	require.True(t, r.End(id))
	assert.False(t, v.(*entry).touch(time.Now()))
}

func TestRunStopsOnCancel(t *testing.T) {
	r := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
