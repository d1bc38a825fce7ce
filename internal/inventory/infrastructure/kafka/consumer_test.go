package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

// flakyDeliverer fails the first failures calls, then delivers.
type flakyDeliverer struct {
	failures  int
	delivered []string
}

func (d *flakyDeliverer) Deliver(_ context.Context, unitID string) (string, error) {
	if d.failures > 0 {
		d.failures--
		return "", errors.New("store unavailable")
	}
	d.delivered = append(d.delivered, unitID)
	return "payload-" + unitID, nil
}

type memMarker struct {
	claimed map[string]bool
}

func newMemMarker() *memMarker {
	return &memMarker{claimed: make(map[string]bool)}
}

func (m *memMarker) Key(group, topic string, partition int, offset int64) string {
	return fmt.Sprintf("idem:%s:%s:%d:%d", group, topic, partition, offset)
}

func (m *memMarker) Seen(_ context.Context, key string) (bool, error) {
	if m.claimed[key] {
		return true, nil
	}
	m.claimed[key] = true
	return false, nil
}

func (m *memMarker) Forget(_ context.Context, key string) error {
	delete(m.claimed, key)
	return nil
}

func newTestConsumer(svc Deliverer, idem Marker) *Consumer {
	return &Consumer{
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		group:  "delivery-worker",
		svc:    svc,
		idem:   idem,
		tracer: otel.Tracer("delivery-consumer-test"),
	}
}

func allocatedMessage(offset int64, unitID string) kafka.Message {
	return kafka.Message{
		Topic:     "shop.events",
		Partition: 0,
		Offset:    offset,
		Key:       []byte("order-1"),
		Value:     []byte(fmt.Sprintf(`{"OrderID":"order-1","UnitID":%q,"ProductID":"prod-1","AccountID":"acc-1"}`, unitID)),
		Headers:   []kafka.Header{{Key: "event_type", Value: []byte("StockAllocated")}},
	}
}

func TestHandleDelivers(t *testing.T) {
	d := &flakyDeliverer{}
	c := newTestConsumer(d, newMemMarker())

	commit := c.handle(context.Background(), allocatedMessage(1, "unit-1"))
	assert.True(t, commit)
	assert.Equal(t, []string{"unit-1"}, d.delivered)
}

func TestHandleSkipsOtherEventTypes(t *testing.T) {
	d := &flakyDeliverer{}
	c := newTestConsumer(d, newMemMarker())

	msg := allocatedMessage(1, "unit-1")
	msg.Headers = []kafka.Header{{Key: "event_type", Value: []byte("PaymentCredited")}}

	assert.True(t, c.handle(context.Background(), msg))
	assert.Empty(t, d.delivered)
}

func TestHandleDuplicateSkipped(t *testing.T) {
	d := &flakyDeliverer{}
	c := newTestConsumer(d, newMemMarker())

	msg := allocatedMessage(1, "unit-1")
	require.True(t, c.handle(context.Background(), msg))
	require.True(t, c.handle(context.Background(), msg))
	assert.Equal(t, []string{"unit-1"}, d.delivered)
}

func TestHandleFailureReleasesMarkerForRetry(t *testing.T) {
	d := &flakyDeliverer{failures: 1}
	marker := newMemMarker()
	c := newTestConsumer(d, marker)
	msg := allocatedMessage(1, "unit-1")

	// First attempt fails transiently: no commit, and the claim released so
	// the redelivery is not mistaken for a duplicate.
	assert.False(t, c.handle(context.Background(), msg))
	assert.Empty(t, d.delivered)
	assert.Empty(t, marker.claimed)

	// Redelivery of the uncommitted message actually delivers.
	assert.True(t, c.handle(context.Background(), msg))
	assert.Equal(t, []string{"unit-1"}, d.delivered)
}

func TestHandleMalformedPayloadCommitted(t *testing.T) {
	d := &flakyDeliverer{}
	c := newTestConsumer(d, newMemMarker())

	msg := allocatedMessage(1, "unit-1")
	msg.Value = []byte("{not json")

	// A payload that can never parse must not wedge the partition.
	assert.True(t, c.handle(context.Background(), msg))
	assert.Empty(t, d.delivered)
}
