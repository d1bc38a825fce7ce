package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/devansh-sx/optishop/internal/inventory/application"
	"github.com/devansh-sx/optishop/internal/inventory/domain"
	"github.com/devansh-sx/optishop/pkg/tracing"
)

// Deliverer hands a reserved unit's payload over to its buyer.
type Deliverer interface {
	Deliver(ctx context.Context, unitID string) (string, error)
}

// Marker is the consumed-message dedupe store. Seen claims the key; a claim
// that does not end in successful processing must be released with Forget.
type Marker interface {
	Key(group, topic string, partition int, offset int64) string
	Seen(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

// Consumer is the delivery side of the shop: it watches for StockAllocated
// events and hands the credential payload over, moving the unit to
// delivered. It runs at-least-once; the delivered transition is a
// compare-and-swap, so replays are harmless.
type Consumer struct {
	log    *slog.Logger
	reader *kafka.Reader
	group  string
	svc    Deliverer
	idem   Marker
	tracer trace.Tracer
}

func NewConsumer(log *slog.Logger, brokers []string, topic, group string, svc *application.Service, idem Marker) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
	return &Consumer{
		log:    log,
		reader: r,
		group:  group,
		svc:    svc,
		idem:   idem,
		tracer: otel.Tracer("delivery-consumer"),
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}
		if c.handle(ctx, msg) {
			_ = c.reader.CommitMessages(ctx, msg)
		}
	}
}

// handle processes one fetched message and reports whether its offset may be
// committed. False leaves the message uncommitted for redelivery.
func (c *Consumer) handle(ctx context.Context, msg kafka.Message) bool {
	if headerValue(msg.Headers, "event_type") != "StockAllocated" {
		return true
	}

	key := c.idem.Key(c.group, msg.Topic, msg.Partition, msg.Offset)
	seen, err := c.idem.Seen(ctx, key)
	if err != nil {
		c.log.Error("idempotency check failed", "err", err)
		return false
	}
	if seen {
		c.log.Info("duplicate message skipped", "key", key)
		return true
	}

	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumeStockAllocated")
	defer span.End()

	var ev domain.StockAllocated
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.log.Error("unmarshal failed", "err", err)
		return true
	}

	payload, err := c.svc.Deliver(msgCtx, ev.UnitID)
	if err != nil {
		// Release the claim before leaving the message uncommitted, or the
		// redelivery would be dropped as a duplicate without delivering.
		if ferr := c.idem.Forget(ctx, key); ferr != nil {
			c.log.Error("idempotency release failed", "key", key, "err", ferr)
		}
		c.log.Error("delivery failed", "unit_id", ev.UnitID, "order_id", ev.OrderID, "err", err)
		return false
	}
	if payload != "" {
		// The payload itself goes to the user channel, never the log.
		c.log.Info("credentials released",
			"order_id", ev.OrderID, "unit_id", ev.UnitID, "account_id", ev.AccountID)
	}
	return true
}

func headerValue(h []kafka.Header, key string) string {
	for _, hh := range h {
		if hh.Key == key {
			return string(hh.Value)
		}
	}
	return ""
}
