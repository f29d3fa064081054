package orders

import (
	"context"
	"time"
)

// StockStore owns the persisted stock integer. Both methods must be atomic
// with respect to concurrent callers on the same product.
type StockStore interface {
	// AdjustStock sets stock to max(0, stock+delta).
	AdjustStock(ctx context.Context, productID string, delta int) (StockChange, error)
	// DecrementStock subtracts qty only if stock >= qty, otherwise it fails
	// with *InsufficientStockError and leaves stock untouched.
	DecrementStock(ctx context.Context, productID string, qty int) (StockChange, error)
}

type OrderStore interface {
	CreateOrder(ctx context.Context, o Order) error
	GetOrder(ctx context.Context, id string) (Order, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]Order, error)
	// TransitionStatus writes to only when the stored status equals from,
	// otherwise it returns ErrStatusConflict.
	TransitionStatus(ctx context.Context, id string, from, to Status, at time.Time) (Order, error)
}

// EntityLookup is the cache-fronted read path for one entity kind.
type EntityLookup[T any] interface {
	FindByID(ctx context.Context, id string) (T, error)
	Invalidate(ctx context.Context, id string) error
	Update(ctx context.Context, id string, patch func(*T) error) (T, error)
}
