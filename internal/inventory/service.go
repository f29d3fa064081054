package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-core/internal/cache"
	kafkax "github.com/ariefcatur/go-shop-core/internal/kafka"
	"github.com/ariefcatur/go-shop-core/internal/orders"
	"github.com/ariefcatur/go-shop-core/internal/redisx"
)

// StockAdjuster is satisfied by *orders.Ledger.
type StockAdjuster interface {
	Adjust(ctx context.Context, productID string, delta int) (int, error)
}

// Service applies restock commands to the ledger.
type Service struct {
	Ledger      StockAdjuster
	Dedup       cache.Cache
	ServiceName string
	Log         *zap.Logger
}

// Dedup entry values. A pending claim is held while the ledger write runs.
const (
	claimPending = "pending"
	claimDone    = "done"
)

// errInFlight makes the consumer retry an event another worker is applying.
var errInFlight = errors.New("restock event is being applied elsewhere")

// HandleRestock: dipasang sebagai handler consumer.
func (s *Service) HandleRestock(ctx context.Context, m kafkago.Message) error {
	// 1) decode envelope
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		// poison message: log and let the offset move on
		s.Log.Error("drop undecodable restock message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventRestockRequested {
		return nil
	} // ignore

	// 2) decode payload
	p, err := kafkax.UnwrapPayload[orders.RestockPayload](env.Payload)
	if err != nil {
		s.Log.Error("drop restock with bad payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	if p.ProductID == "" || p.Delta == 0 {
		s.Log.Warn("ignore empty restock", zap.String("event_id", env.EventID))
		return nil
	}

	// 3) claim event_id; only the claim holder touches the ledger
	dkey := redisx.DedupKey(s.ServiceName, env.EventID)
	claimed, err := s.Dedup.SetNX(ctx, dkey, []byte(claimPending), redisx.TTLClaim)
	if err != nil {
		return fmt.Errorf("dedup claim: %w", err)
	}
	if !claimed {
		v, ok, err := s.Dedup.Get(ctx, dkey)
		if err != nil {
			return fmt.Errorf("dedup lookup: %w", err)
		}
		if ok && string(v) == claimDone {
			return nil
		}
		return fmt.Errorf("event %s: %w", env.EventID, errInFlight)
	}

	// 4) apply
	stock, err := s.Ledger.Adjust(ctx, p.ProductID, p.Delta)
	if errors.Is(err, orders.ErrNotFound) {
		s.Log.Warn("restock for unknown product", zap.String("product_id", p.ProductID))
		s.markDone(ctx, dkey, env.EventID)
		return nil
	}
	if err != nil {
		s.release(ctx, dkey, env.EventID)
		return fmt.Errorf("restock %s: %w", p.ProductID, err)
	}
	s.markDone(ctx, dkey, env.EventID)
	s.Log.Info("restock applied",
		zap.String("event_id", env.EventID),
		zap.String("product_id", p.ProductID),
		zap.Int("delta", p.Delta),
		zap.Int("stock", stock))
	return nil
}

func (s *Service) markDone(ctx context.Context, key, eventID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.Dedup.Set(ctx, key, []byte(claimDone), redisx.TTLDedup); err != nil {
		// the pending claim expires after TTLClaim and the event could be applied again
		s.Log.Error("dedup mark failed", zap.String("event_id", eventID), zap.Error(err))
	}
}

// release drops a claim so a redelivery can apply the event.
func (s *Service) release(ctx context.Context, key, eventID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.Dedup.Delete(ctx, key); err != nil {
		s.Log.Warn("dedup release failed; retry waits for claim expiry",
			zap.String("event_id", eventID), zap.Error(err))
	}
}
