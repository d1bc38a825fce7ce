package application

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devansh-sx/optishop/internal/inventory/domain"
)

// fakeStock claims units the way the store does: one row per call, under a
// lock, with the order recorded on the claimed unit.
type fakeStock struct {
	mu    sync.Mutex
	units map[string]*domain.InventoryUnit
}

func newFakeStock(productID string, count int) *fakeStock {
	f := &fakeStock{units: make(map[string]*domain.InventoryUnit)}
	for i := 0; i < count; i++ {
		id := fmt.Sprintf("unit-%d", i)
		f.units[id] = &domain.InventoryUnit{
			ID:        id,
			ProductID: productID,
			Payload:   fmt.Sprintf("license-key-%d", i),
			Status:    domain.StatusAvailable,
			CreatedAt: time.Now().UTC(),
		}
	}
	return f
}

func (f *fakeStock) Reserve(_ context.Context, productID, orderID, _ string, _ string) (domain.InventoryUnit, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var claimed *domain.InventoryUnit
	for _, u := range f.units {
		if u.ProductID == productID && u.Status == domain.StatusAvailable {
			claimed = u
			break
		}
	}
	if claimed == nil {
		return domain.InventoryUnit{}, 0, domain.ErrOutOfStock
	}
	now := time.Now().UTC()
	claimed.Status = domain.StatusReserved
	claimed.OrderID = &orderID
	claimed.ReservedAt = &now

	var remaining int64
	for _, u := range f.units {
		if u.ProductID == productID && u.Status == domain.StatusAvailable {
			remaining++
		}
	}
	return *claimed, remaining, nil
}

func (f *fakeStock) MarkDelivered(_ context.Context, unitID string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.units[unitID]
	if !ok || u.Status != domain.StatusReserved {
		return "", false, nil
	}
	now := time.Now().UTC()
	u.Status = domain.StatusDelivered
	u.DeliveredAt = &now
	return u.Payload, true, nil
}

func newTestService(stock *fakeStock) *Service {
	return NewService(slog.New(slog.NewTextHandler(io.Discard, nil)), stock)
}

func TestAllocateConcurrentOversubscribed(t *testing.T) {
	const units = 5
	const buyers = 20
	stock := newFakeStock("prod-1", units)
	svc := newTestService(stock)

	type result struct {
		unit domain.InventoryUnit
		err  error
	}
	results := make(chan result, buyers)
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := svc.Allocate(context.Background(), "prod-1", fmt.Sprintf("order-%d", i), "acc-1")
			results <- result{u, err}
		}(i)
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	var oos int
	for r := range results {
		if r.err != nil {
			assert.ErrorIs(t, r.err, domain.ErrOutOfStock)
			oos++
			continue
		}
		assert.False(t, seen[r.unit.ID], "unit %s issued twice", r.unit.ID)
		seen[r.unit.ID] = true
	}
	assert.Len(t, seen, units)
	assert.Equal(t, buyers-units, oos)
}

func TestAllocateRecordsOrder(t *testing.T) {
	stock := newFakeStock("prod-1", 1)
	svc := newTestService(stock)

	u, err := svc.Allocate(context.Background(), "prod-1", "order-1", "acc-1")
	require.NoError(t, err)
	require.NotNil(t, u.OrderID)
	assert.Equal(t, "order-1", *u.OrderID)
	assert.Equal(t, domain.StatusReserved, u.Status)
}

func TestAllocateWrongProduct(t *testing.T) {
	stock := newFakeStock("prod-1", 3)
	svc := newTestService(stock)

	_, err := svc.Allocate(context.Background(), "prod-2", "order-1", "acc-1")
	assert.ErrorIs(t, err, domain.ErrOutOfStock)
}

func TestDeliverIdempotent(t *testing.T) {
	stock := newFakeStock("prod-1", 1)
	svc := newTestService(stock)

	u, err := svc.Allocate(context.Background(), "prod-1", "order-1", "acc-1")
	require.NoError(t, err)

	payload, err := svc.Deliver(context.Background(), u.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, payload)

	// Redelivered event: no payload handed out a second time.
	again, err := svc.Deliver(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestDeliverUnknownUnitNoop(t *testing.T) {
	stock := newFakeStock("prod-1", 1)
	svc := newTestService(stock)

	payload, err := svc.Deliver(context.Background(), "unit-missing")
	require.NoError(t, err)
	assert.Empty(t, payload)
}
