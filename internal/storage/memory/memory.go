// Package memory implements the order UnitOfWork in process memory.
//
// Transactions are fully serialised: Begin blocks until the previous
// transaction committed or rolled back, and works on a private copy of the
// state that replaces the shared state on Commit. This gives the same
// all-or-nothing and no-oversell guarantees as the PostgreSQL adapter, which
// makes the store suitable for workflow tests and local runs.
package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/go-faster/errors"

	"github.com/xenking/shop-orders/internal/domain/order"
	"github.com/xenking/shop-orders/internal/domain/product"
	"github.com/xenking/shop-orders/internal/domain/user"
)

// Op names a store operation that can be made to fail with FailOn.
type Op string

const (
	OpCreateOrder   Op = "orders.create"
	OpCreateDetails Op = "details.create"
	OpUpdateDetail  Op = "details.update"
	OpAppendEvent   Op = "events.append"
	OpReserve       Op = "products.reserve"
)

var errTxDone = errors.New("transaction already committed or rolled back")

type orderRow struct {
	order.Order
	seq int
}

type detailRow struct {
	order.Detail
	seq int
}

type state struct {
	seq      int
	users    map[string]user.User
	products map[string]product.Product
	orders   map[string]orderRow
	details  map[string]detailRow
	events   []order.Event
}

func newState() *state {
	return &state{
		users:    map[string]user.User{},
		products: map[string]product.Product{},
		orders:   map[string]orderRow{},
		details:  map[string]detailRow{},
	}
}

func (s *state) clone() *state {
	return &state{
		seq:      s.seq,
		users:    maps.Clone(s.users),
		products: maps.Clone(s.products),
		orders:   maps.Clone(s.orders),
		details:  maps.Clone(s.details),
		events:   slices.Clone(s.events),
	}
}

func (s *state) next() int {
	s.seq++
	return s.seq
}

// Store is an in-memory order.UnitOfWork.
type Store struct {
	sem chan struct{}

	mu sync.RWMutex
	st *state

	faultsMu sync.Mutex
	faults   map[Op]error
}

var _ order.UnitOfWork = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		sem:    make(chan struct{}, 1),
		st:     newState(),
		faults: map[Op]error{},
	}
}

// FailOn makes every subsequent call of op return err. A nil err clears it.
func (s *Store) FailOn(op Op, err error) {
	s.faultsMu.Lock()
	defer s.faultsMu.Unlock()

	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

func (s *Store) fault(op Op) error {
	s.faultsMu.Lock()
	defer s.faultsMu.Unlock()
	return s.faults[op]
}

// Begin waits for exclusive access to the store and starts a transaction.
func (s *Store) Begin(ctx context.Context) (order.Tx, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.RLock()
	st := s.st.clone()
	s.mu.RUnlock()

	return &tx{store: s, st: st}, nil
}

// mutate applies fn to the state in its own transaction.
func (s *Store) mutate(fn func(st *state)) {
	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.st)
}

func (s *Store) snapshot() *state {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st
}

// PutUser inserts or replaces users.
func (s *Store) PutUser(users ...user.User) {
	s.mutate(func(st *state) {
		for _, u := range users {
			st.users[u.ID] = u
		}
	})
}

// PutProduct inserts or replaces products.
func (s *Store) PutProduct(products ...product.Product) {
	s.mutate(func(st *state) {
		for _, p := range products {
			st.products[p.ID] = p
		}
	})
}

// Product returns the committed state of a product.
func (s *Store) Product(id string) (product.Product, bool) {
	p, ok := s.snapshot().products[id]
	return p, ok
}

// Detail returns the committed state of an order detail, deleted or not.
func (s *Store) Detail(id string) (order.Detail, bool) {
	d, ok := s.snapshot().details[id]
	return d.Detail, ok
}

// OrderCount returns the number of committed orders, deleted or not.
func (s *Store) OrderCount() int {
	return len(s.snapshot().orders)
}

// Events returns every committed outbox event in append order.
func (s *Store) Events() []order.Event {
	return slices.Clone(s.snapshot().events)
}

// Catalog returns a product.Catalog reading committed state.
func (s *Store) Catalog() product.Catalog {
	return catalog{store: s}
}

type catalog struct {
	store *Store
}

func (c catalog) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := c.store.Product(id)
	if !ok {
		return nil, notFound(product.Entity, id)
	}
	return &p, nil
}

func (c catalog) List(_ context.Context, page product.Page) ([]product.Product, error) {
	all := slices.SortedFunc(maps.Values(c.store.snapshot().products), func(a, b product.Product) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return window(all, page.Offset(), page.Limit), nil
}

func window[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
