package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	kafkax "github.com/MarcosDevYT/ecommerce-core/internal/kafka"
	"github.com/MarcosDevYT/ecommerce-core/internal/orders"
	"github.com/MarcosDevYT/ecommerce-core/internal/redisx"
)

// Deduper guards against re-sending a confirmation for an event id that was
// already handled.
type Deduper interface {
	// MarkOnce returns true the first time key is seen.
	MarkOnce(ctx context.Context, key string) (bool, error)
}

// RedisDeduper implements Deduper with SET NX + TTL.
type RedisDeduper struct {
	R *redis.Client
}

func (d *RedisDeduper) MarkOnce(ctx context.Context, key string) (bool, error) {
	return d.R.SetNX(ctx, key, "1", redisx.TTLDedup).Result()
}

// Service is the order.paid consumer handler.
type Service struct {
	Sender      Sender
	Dedup       Deduper
	ServiceName string
	Log         *zap.Logger
}

// HandleOrderPaid is installed as the kafka consumer handler. Returning an
// error leaves the message uncommitted for redelivery; the dedup key is set
// before sending so a replayed event never produces a second email.
func (s *Service) HandleOrderPaid(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		s.Log.Warn("undecodable event dropped", zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventOrderPaid {
		return nil // ignore
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, s.ServiceName, env.EventID)
	first, err := s.Dedup.MarkOnce(ctx, dkey)
	if err != nil {
		return err
	}
	if !first {
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.OrderPaidPayload](env.Payload)
	if err != nil {
		s.Log.Warn("malformed order.paid payload dropped", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}
	if p.CustomerEmail == "" {
		s.Log.Warn("order.paid without customer email", zap.String("order_id", p.OrderID))
		return nil
	}

	if err := s.Sender.SendOrderConfirmation(ctx, p); err != nil {
		s.Log.Error("confirmation send failed", zap.String("order_id", p.OrderID), zap.Error(err))
		return nil // best-effort: never bounce the event stream over email
	}
	s.Log.Info("confirmation sent", zap.String("order_id", p.OrderID))
	return nil
}
