package cart

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	models "shopping-cart/model"
)

// ErrEmpty is returned by Checkout when the cart has no lines.
var ErrEmpty = errors.New("cart empty")

// Snapshot is an immutable view of the cart published after a mutation.
// Callers must not modify Items.
type Snapshot struct {
	Items       []models.LineItem `json:"items"`
	TotalUnique int               `json:"total_unique"`
	TotalQty    int               `json:"total_qty"`
	TotalPrice  decimal.Decimal   `json:"total_price"`
	Version     uint64            `json:"version"`
}

// QtyOf returns the quantity held for id in this snapshot, or 0.
func (s Snapshot) QtyOf(id int64) int {
	for _, l := range s.Items {
		if l.ID == id {
			return l.Qty
		}
	}
	return 0
}

// Facade is the shared handle consumers use to read and change one cart.
// Mutations are serialized behind a single lock; reads see the snapshot
// published by the most recent mutation and never take the lock.
type Facade struct {
	mu    sync.Mutex
	store *Store

	// held for the whole of a checkout, separate from mu so the cart stays
	// usable while an order is being placed
	checkoutMu sync.Mutex
	snap  atomic.Pointer[Snapshot]

	subs   map[uint64]func(Snapshot)
	nextID uint64

	logger *zap.Logger
}

type Option func(*Facade)

func WithLogger(l *zap.Logger) Option {
	return func(f *Facade) {
		if l != nil {
			f.logger = l
		}
	}
}

// New returns a façade over an empty cart.
func New(opts ...Option) *Facade {
	f := &Facade{
		store:  NewStore(),
		subs:   make(map[uint64]func(Snapshot)),
		logger: zap.NewNop(),
	}
	for _, o := range opts {
		o(f)
	}
	f.snap.Store(&Snapshot{Items: []models.LineItem{}, TotalPrice: decimal.Zero})
	return f
}

func (f *Facade) AddOne(item models.CatalogItem) Result {
	return f.mutate("add_one", item.ID, func(s *Store) Result { return s.AddOne(item) })
}

func (f *Facade) Inc(id int64) Result {
	return f.mutate("inc", id, func(s *Store) Result { return s.Inc(id) })
}

func (f *Facade) Dec(id int64) Result {
	return f.mutate("dec", id, func(s *Store) Result { return s.Dec(id) })
}

func (f *Facade) Remove(id int64) Result {
	return f.mutate("remove", id, func(s *Store) Result { return s.Remove(id) })
}

func (f *Facade) Clear() {
	f.mutate("clear", 0, func(s *Store) Result {
		if s.Len() == 0 {
			return NotFound
		}
		s.Clear()
		return OK
	})
}

// Checkout hands the current lines to place and, when place succeeds, takes
// exactly those quantities out of the cart. Checkouts of one cart run one at
// a time, so a repeated checkout sees what the first one left (usually
// ErrEmpty). Lines added or raised while place runs stay in the cart.
func (f *Facade) Checkout(place func(items []models.LineItem) error) error {
	f.checkoutMu.Lock()
	defer f.checkoutMu.Unlock()

	snap := f.Snapshot()
	if len(snap.Items) == 0 {
		return ErrEmpty
	}
	if err := place(snap.Items); err != nil {
		return err
	}
	f.mutate("checkout", 0, func(s *Store) Result { return s.Deduct(snap.Items) })
	return nil
}

// Snapshot returns the latest published state.
func (f *Facade) Snapshot() Snapshot {
	return *f.snap.Load()
}

func (f *Facade) QtyOf(id int64) int {
	return f.snap.Load().QtyOf(id)
}

// Subscribe registers fn to receive every snapshot published after a
// mutation, in mutation order. fn runs while the cart is locked, so it must
// not call AddOne, Inc, Dec, Remove or Clear on the same Facade.
func (f *Facade) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = fn
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			f.mu.Unlock()
		})
	}
}

// mutate applies op under the writer lock. Only state-changing outcomes
// publish a new snapshot and notify subscribers.
func (f *Facade) mutate(op string, id int64, fn func(*Store) Result) Result {
	f.mu.Lock()
	defer f.mu.Unlock()

	res := fn(f.store)
	if res != OK {
		f.logger.Debug("cart mutation had no effect",
			zap.String("op", op),
			zap.Int64("product_id", id),
			zap.Stringer("result", res),
		)
		return res
	}

	t := f.store.Totals()
	next := &Snapshot{
		Items:       f.store.Items(),
		TotalUnique: t.Unique,
		TotalQty:    t.Qty,
		TotalPrice:  t.Price,
		Version:     f.snap.Load().Version + 1,
	}
	f.snap.Store(next)

	for _, fn := range f.subs {
		fn(*next)
	}
	return res
}
