package orders

import (
	"context"

	"go.uber.org/zap"
)

// Ledger is the only writer of product stock. Every successful write drops
// the product's cached lookup entry.
type Ledger struct {
	store     StockStore
	products  EntityLookup[Product]
	publisher Publisher
	producer  string
	log       *zap.Logger
}

func NewLedger(store StockStore, products EntityLookup[Product], publisher Publisher, producer string, log *zap.Logger) *Ledger {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &Ledger{
		store:     store,
		products:  products,
		publisher: publisher,
		producer:  producer,
		log:       log,
	}
}

// Adjust applies delta and returns the new stock. Results below zero are
// clamped to zero rather than rejected; callers that need a sufficiency
// guarantee use Decrement.
func (l *Ledger) Adjust(ctx context.Context, productID string, delta int) (int, error) {
	ch, err := l.store.AdjustStock(ctx, productID, delta)
	if err != nil {
		return 0, err
	}
	if ch.Clamped {
		// a caller decremented past zero without holding a sufficiency check
		l.log.Warn("stock adjustment clamped to zero",
			zap.String("product_id", productID),
			zap.Int("previous", ch.Previous),
			zap.Int("delta", delta))
	}
	l.afterWrite(ctx, ch, delta)
	return ch.Current, nil
}

// Decrement removes qty from stock only if enough is available, in one
// atomic step at the store.
func (l *Ledger) Decrement(ctx context.Context, productID string, qty int) (int, error) {
	if qty < 1 {
		return 0, ErrInvalidQuantity
	}
	ch, err := l.store.DecrementStock(ctx, productID, qty)
	if err != nil {
		return 0, err
	}
	l.afterWrite(ctx, ch, -qty)
	return ch.Current, nil
}

// afterWrite runs once the stock write is committed, so its failures are
// logged instead of returned. A failed invalidation leaves the cached product
// stale until its TTL runs out.
func (l *Ledger) afterWrite(ctx context.Context, ch StockChange, delta int) {
	if err := l.products.Invalidate(ctx, ch.ProductID); err != nil {
		l.log.Error("invalidate product cache", zap.String("product_id", ch.ProductID), zap.Error(err))
	}
	env, err := NewEnvelope(EventStockAdjusted, l.producer, ch.ProductID, StockAdjustedPayload{
		ProductID: ch.ProductID,
		Delta:     delta,
		Previous:  ch.Previous,
		Current:   ch.Current,
		Clamped:   ch.Clamped,
	})
	if err == nil {
		err = l.publisher.Publish(ctx, TopicStockAdjusted, ch.ProductID, env)
	}
	if err != nil {
		l.log.Error("publish stock adjusted", zap.String("product_id", ch.ProductID), zap.Error(err))
	}
}
