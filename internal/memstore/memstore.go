// Package memstore implements the persistence ports in process memory. It is
// used for local runs without Postgres and as the store in service tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-shop-core/internal/orders"
)

// Users stores users; soft-deleted users are reported as not found.
type Users struct {
	mu    sync.RWMutex
	users map[string]orders.User
}

func NewUsers() *Users {
	return &Users{users: make(map[string]orders.User)}
}

func (s *Users) Get(ctx context.Context, id string) (orders.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok || u.DeletedAt != nil {
		return orders.User{}, orders.NotFound("user", id)
	}
	return u, nil
}

func (s *Users) Save(ctx context.Context, u orders.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

// Products stores products and serialises every stock write behind one
// mutex, which makes the ledger operations atomic.
type Products struct {
	mu       sync.Mutex
	products map[string]orders.Product
	now      func() time.Time
}

func NewProducts() *Products {
	return &Products{products: make(map[string]orders.Product), now: time.Now}
}

func (s *Products) Get(ctx context.Context, id string) (orders.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return orders.Product{}, orders.NotFound("product", id)
	}
	return p, nil
}

// Save inserts p, or updates everything except stock when p already exists.
func (s *Products) Save(ctx context.Context, p orders.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.products[p.ID]; ok {
		p.Stock = cur.Stock
		p.CreatedAt = cur.CreatedAt
	}
	s.products[p.ID] = p
	return nil
}

func (s *Products) AdjustStock(ctx context.Context, id string, delta int) (orders.StockChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return orders.StockChange{}, orders.NotFound("product", id)
	}
	ch := orders.StockChange{ProductID: id, Previous: p.Stock, Current: p.Stock + delta}
	if ch.Current < 0 {
		ch.Current = 0
		ch.Clamped = true
	}
	p.Stock = ch.Current
	p.UpdatedAt = s.now().UTC()
	s.products[id] = p
	return ch, nil
}

func (s *Products) DecrementStock(ctx context.Context, id string, qty int) (orders.StockChange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return orders.StockChange{}, orders.NotFound("product", id)
	}
	if p.Stock < qty {
		return orders.StockChange{}, &orders.InsufficientStockError{ProductID: id, Requested: qty, Available: p.Stock}
	}
	ch := orders.StockChange{ProductID: id, Previous: p.Stock, Current: p.Stock - qty}
	p.Stock = ch.Current
	p.UpdatedAt = s.now().UTC()
	s.products[id] = p
	return ch, nil
}

type Orders struct {
	mu     sync.RWMutex
	orders map[string]orders.Order
}

func NewOrders() *Orders {
	return &Orders{orders: make(map[string]orders.Order)}
}

func (s *Orders) CreateOrder(ctx context.Context, o orders.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
	return nil
}

func (s *Orders) GetOrder(ctx context.Context, id string) (orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, orders.NotFound("order", id)
	}
	return o, nil
}

func (s *Orders) ListOrdersByUser(ctx context.Context, userID string) ([]orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]orders.Order, 0)
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Orders) TransitionStatus(ctx context.Context, id string, from, to orders.Status, at time.Time) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return orders.Order{}, orders.NotFound("order", id)
	}
	if o.Status != from {
		return orders.Order{}, orders.ErrStatusConflict
	}
	o.Status = to
	o.UpdatedAt = at
	s.orders[id] = o
	return o, nil
}
