package redisx

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-storefront-orders/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })
	return &Cache{RDB: rdb}, mr
}

func TestProductReadThrough(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()
	want := domain.Product{ID: "p1", Name: "teh", PriceCents: 1200, Stock: 3, IsActive: true,
		Ratings: domain.Ratings{Average: 4.5, Count: 2, Sum: 9}}

	loads := 0
	load := func(context.Context) (domain.Product, error) {
		loads++
		return want, nil
	}

	got, err := c.Product(ctx, "p1", load)
	require.NoError(t, err)
	assert.Equal(t, want.Ratings, got.Ratings)
	got, err = c.Product(ctx, "p1", load)
	require.NoError(t, err)
	assert.Equal(t, "teh", got.Name)
	assert.Equal(t, 1, loads)
	assert.Equal(t, TTLProduct, mr.TTL(fmt.Sprintf(KeyProduct, "p1")))

	c.InvalidateProduct(ctx, "p1")
	assert.False(t, mr.Exists(fmt.Sprintf(KeyProduct, "p1")))
	_, err = c.Product(ctx, "p1", load)
	require.NoError(t, err)
	assert.Equal(t, 2, loads)
}

func TestProductNegativeCache(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	loads := 0
	missing := func(context.Context) (domain.Product, error) {
		loads++
		return domain.Product{}, fmt.Errorf("%w: product p9", domain.ErrNotFound)
	}
	for i := 0; i < 3; i++ {
		_, err := c.Product(ctx, "p9", missing)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	}
	assert.Equal(t, 1, loads)

	mr.FastForward(TTLProductMissing + time.Second)
	_, err := c.Product(ctx, "p9", missing)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 2, loads)
}

func TestProductTransientErrorsAreNotCached(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	_, err := c.Product(ctx, "p2", func(context.Context) (domain.Product, error) {
		return domain.Product{}, fmt.Errorf("%w: commit", domain.ErrTransaction)
	})
	assert.ErrorIs(t, err, domain.ErrTransaction)
	assert.False(t, mr.Exists(fmt.Sprintf(KeyProduct, "p2")))
}

func TestProductFallsBackWhenRedisFails(t *testing.T) {
	c, mr := newCache(t)
	mr.SetError("LOADING")
	got, err := c.Product(context.Background(), "p3", func(context.Context) (domain.Product, error) {
		return domain.Product{ID: "p3"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "p3", got.ID)
}

func TestOrderStatusCache(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()

	_, ok := c.OrderStatus(ctx, "o1")
	assert.False(t, ok)

	at := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	c.SetOrderStatus(ctx, domain.Order{ID: "o1", UserID: "alice", Status: domain.StatusShipped, PaymentStatus: domain.PaymentPaid, UpdatedAt: at})
	v, ok := c.OrderStatus(ctx, "o1")
	require.True(t, ok)
	assert.Equal(t, OrderStatusView{UserID: "alice", Status: domain.StatusShipped, PaymentStatus: domain.PaymentPaid, UpdatedAt: at}, v)
}

// refuseSet fails every SET while letting other commands through.
type refuseSet struct{}

func (refuseSet) DialHook(next redis.DialHook) redis.DialHook { return next }

func (refuseSet) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		if cmd.Name() == "set" {
			err := errors.New("set refused")
			cmd.SetErr(err)
			return err
		}
		return next(ctx, cmd)
	}
}

func (refuseSet) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func TestOrderStatusFailedWriteDropsStaleView(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	c.SetOrderStatus(ctx, domain.Order{ID: "o1", UserID: "alice", Status: domain.StatusShipped})
	_, ok := c.OrderStatus(ctx, "o1")
	require.True(t, ok)

	c.RDB.AddHook(refuseSet{})
	c.SetOrderStatus(ctx, domain.Order{ID: "o1", UserID: "alice", Status: domain.StatusDelivered})

	_, ok = c.OrderStatus(ctx, "o1")
	assert.False(t, ok, "shipped must not be served after delivered failed to cache")
	assert.False(t, mr.Exists(fmt.Sprintf(KeyOrderStatus, "o1")))
}

func TestCheckoutIdempotency(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()

	_, ok := c.CheckoutOrder(ctx, "alice", "k1")
	assert.False(t, ok)
	c.RememberCheckout(ctx, "alice", "k1", "order-1")

	id, ok := c.CheckoutOrder(ctx, "alice", "k1")
	require.True(t, ok)
	assert.Equal(t, "order-1", id)

	_, ok = c.CheckoutOrder(ctx, "bob", "k1")
	assert.False(t, ok, "keys are scoped per user")

	_, ok = c.CheckoutOrder(ctx, "alice", "")
	assert.False(t, ok)

	mr.FastForward(TTLIdempotency + time.Minute)
	_, ok = c.CheckoutOrder(ctx, "alice", "k1")
	assert.False(t, ok)
}

func TestClaimAndRelease(t *testing.T) {
	c, _ := newCache(t)
	ctx := context.Background()

	first, err := c.Claim(ctx, "reconciler", "ev-1")
	require.NoError(t, err)
	assert.True(t, first)
	again, err := c.Claim(ctx, "reconciler", "ev-1")
	require.NoError(t, err)
	assert.False(t, again)

	other, err := c.Claim(ctx, "audit", "ev-1")
	require.NoError(t, err)
	assert.True(t, other)

	c.Release(ctx, "reconciler", "ev-1")
	retry, err := c.Claim(ctx, "reconciler", "ev-1")
	require.NoError(t, err)
	assert.True(t, retry)
}

func TestNilCacheIsNoop(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	c.SetOrderStatus(ctx, domain.Order{ID: "o1"})
	c.InvalidateProduct(ctx, "p1")
	c.RememberCheckout(ctx, "u", "k", "o")
	_, ok := c.OrderStatus(ctx, "o1")
	assert.False(t, ok)
	claimed, err := c.Claim(ctx, "svc", "ev")
	require.NoError(t, err)
	assert.True(t, claimed)

	p, err := c.Product(ctx, "p1", func(context.Context) (domain.Product, error) { return domain.Product{ID: "p1"}, nil })
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
}
