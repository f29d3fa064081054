package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/ariefcatur/go-shop-core/internal/orders")

// maxStatusAttempts bounds how often a status write is retried after losing
// a compare-and-set race.
const maxStatusAttempts = 3

// settleTimeout bounds writes that finish or undo an operation whose first
// step is already committed. They run even when the caller's context is done.
const settleTimeout = 5 * time.Second

func settleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
}

type CreateOrderInput struct {
	UserID    string       `json:"user_id"`
	ProductID string       `json:"product_id"`
	Quantity  int          `json:"quantity"`
	Shipping  ShippingInfo `json:"shipping"`
}

// Service drives the order lifecycle and its effect on stock.
type Service struct {
	Orders      OrderStore
	Users       EntityLookup[User]
	Products    EntityLookup[Product]
	Ledger      *Ledger
	Publisher   Publisher
	ServiceName string
	Log         *zap.Logger
	Now         func() time.Time
}

// Create places a pending order. Stock is taken with a single conditional
// decrement, so two concurrent orders can never both consume the same units.
func (s *Service) Create(ctx context.Context, in CreateOrderInput) (order Order, err error) {
	ctx, span := tracer.Start(ctx, "orders.Create", trace.WithAttributes(
		attribute.String("user_id", in.UserID),
		attribute.String("product_id", in.ProductID),
		attribute.Int("quantity", in.Quantity),
	))
	defer func() { endSpan(span, err) }()

	if in.Quantity < 1 {
		return Order{}, ErrInvalidQuantity
	}
	user, err := s.Users.FindByID(ctx, in.UserID)
	if err != nil {
		return Order{}, err
	}
	product, err := s.Products.FindByID(ctx, in.ProductID)
	if err != nil {
		return Order{}, err
	}
	if !product.IsAvailable {
		return Order{}, fmt.Errorf("product %s: %w", product.ID, ErrProductUnavailable)
	}
	if product.Stock < in.Quantity {
		return Order{}, &InsufficientStockError{ProductID: product.ID, Requested: in.Quantity, Available: product.Stock}
	}

	unit := RoundPrice(product.Price)
	now := s.now()
	order = Order{
		ID:         uuid.NewString(),
		UserID:     user.ID,
		ProductID:  product.ID,
		Quantity:   in.Quantity,
		UnitPrice:  unit,
		TotalPrice: unit.Mul(decimal.NewFromInt(int64(in.Quantity))),
		Status:     StatusPending,
		Shipping:   in.Shipping,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	// The cached product may be behind; the store re-checks sufficiency.
	if _, err := s.Ledger.Decrement(ctx, product.ID, in.Quantity); err != nil {
		return Order{}, err
	}
	if err := s.Orders.CreateOrder(ctx, order); err != nil {
		sctx, cancel := settleContext(ctx)
		defer cancel()
		if _, rerr := s.Ledger.Adjust(sctx, product.ID, in.Quantity); rerr != nil {
			s.Log.Error("restore stock after failed order insert",
				zap.String("product_id", product.ID),
				zap.Int("quantity", in.Quantity),
				zap.Error(rerr))
		}
		return Order{}, fmt.Errorf("persist order: %w", err)
	}

	s.emit(ctx, TopicOrderCreated, EventOrderCreated, order.ID, OrderCreatedPayload{
		OrderID:    order.ID,
		UserID:     order.UserID,
		ProductID:  order.ProductID,
		Quantity:   order.Quantity,
		UnitPrice:  order.UnitPrice,
		TotalPrice: order.TotalPrice,
	})
	s.Log.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.String("product_id", order.ProductID),
		zap.Int("quantity", order.Quantity),
		zap.String("total_price", order.TotalPrice.StringFixed(PriceScale)))
	return order, nil
}

// UpdateStatus moves an order along the transition graph. Moving to
// cancelled is delegated to Cancel so stock is restored.
func (s *Service) UpdateStatus(ctx context.Context, orderID, status string) (order Order, err error) {
	ctx, span := tracer.Start(ctx, "orders.UpdateStatus", trace.WithAttributes(
		attribute.String("order_id", orderID),
		attribute.String("status", status),
	))
	defer func() { endSpan(span, err) }()

	to, err := ParseStatus(status)
	if err != nil {
		return Order{}, err
	}
	if to == StatusCancelled {
		return s.Cancel(ctx, orderID)
	}

	for attempt := 0; attempt < maxStatusAttempts; attempt++ {
		cur, err := s.Orders.GetOrder(ctx, orderID)
		if err != nil {
			return Order{}, err
		}
		if !CanTransition(cur.Status, to) {
			return Order{}, &InvalidTransitionError{OrderID: orderID, From: cur.Status, To: to}
		}
		order, err = s.Orders.TransitionStatus(ctx, orderID, cur.Status, to, s.now())
		if errors.Is(err, ErrStatusConflict) {
			continue
		}
		if err != nil {
			return Order{}, err
		}
		s.emit(ctx, TopicOrderStatusChanged, EventOrderStatusChanged, orderID, OrderStatusChangedPayload{
			OrderID: orderID, From: cur.Status, To: to,
		})
		s.Log.Info("order status changed",
			zap.String("order_id", orderID),
			zap.String("from", string(cur.Status)),
			zap.String("to", string(to)))
		return order, nil
	}
	return Order{}, &InvalidTransitionError{OrderID: orderID, To: to, Reason: ErrStatusConflict.Error()}
}

// Cancel marks the order cancelled and puts its quantity back into stock.
// The status write happens first and is conditional on the status that was
// read, so concurrent cancels restore stock at most once.
func (s *Service) Cancel(ctx context.Context, orderID string) (order Order, err error) {
	ctx, span := tracer.Start(ctx, "orders.Cancel", trace.WithAttributes(
		attribute.String("order_id", orderID),
	))
	defer func() { endSpan(span, err) }()

	for attempt := 0; attempt < maxStatusAttempts; attempt++ {
		cur, err := s.Orders.GetOrder(ctx, orderID)
		if err != nil {
			return Order{}, err
		}
		switch cur.Status {
		case StatusDelivered:
			return Order{}, &InvalidTransitionError{OrderID: orderID, From: cur.Status, To: StatusCancelled,
				Reason: "cannot cancel a delivered order"}
		case StatusCancelled:
			return Order{}, &InvalidTransitionError{OrderID: orderID, From: cur.Status, To: StatusCancelled,
				Reason: "order already cancelled"}
		}
		if !CanTransition(cur.Status, StatusCancelled) {
			return Order{}, &InvalidTransitionError{OrderID: orderID, From: cur.Status, To: StatusCancelled}
		}

		order, err = s.Orders.TransitionStatus(ctx, orderID, cur.Status, StatusCancelled, s.now())
		if errors.Is(err, ErrStatusConflict) {
			continue
		}
		if err != nil {
			return Order{}, err
		}

		// the order is cancelled from here on; restoring its stock must not
		// depend on the caller still waiting
		sctx, cancel := settleContext(ctx)
		defer cancel()
		if _, err := s.Ledger.Adjust(sctx, cur.ProductID, cur.Quantity); err != nil {
			// put the status back so the cancel can be retried
			if _, rerr := s.Orders.TransitionStatus(sctx, orderID, StatusCancelled, cur.Status, s.now()); rerr != nil {
				s.Log.Error("revert cancelled status",
					zap.String("order_id", orderID),
					zap.String("status", string(cur.Status)),
					zap.Error(rerr))
			}
			return Order{}, fmt.Errorf("restore stock for order %s: %w", orderID, err)
		}

		s.emit(ctx, TopicOrderCancelled, EventOrderCancelled, orderID, OrderCancelledPayload{
			OrderID:   orderID,
			ProductID: cur.ProductID,
			Restored:  cur.Quantity,
			From:      cur.Status,
		})
		s.Log.Info("order cancelled",
			zap.String("order_id", orderID),
			zap.String("product_id", cur.ProductID),
			zap.Int("restored", cur.Quantity))
		return order, nil
	}
	return Order{}, &InvalidTransitionError{OrderID: orderID, To: StatusCancelled, Reason: ErrStatusConflict.Error()}
}

func (s *Service) Get(ctx context.Context, orderID string) (Order, error) {
	return s.Orders.GetOrder(ctx, orderID)
}

// ListByUser returns the user's orders, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	if _, err := s.Users.FindByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.Orders.ListOrdersByUser(ctx, userID)
}

func (s *Service) emit(ctx context.Context, topic, eventType, key string, payload any) {
	pub := s.Publisher
	if pub == nil {
		return
	}
	env, err := NewEnvelope(eventType, s.ServiceName, key, payload)
	if err == nil {
		err = pub.Publish(ctx, topic, key, env)
	}
	if err != nil {
		s.Log.Error("publish event",
			zap.String("event_type", eventType),
			zap.String("key", key),
			zap.Error(err))
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
