package catalog

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-storefront-orders/internal/domain"
	"github.com/ariefcatur/go-storefront-orders/internal/memstore"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	seller   = domain.Identity{UserID: "s1", Role: domain.RoleSeller}
	customer = domain.Identity{UserID: "c1", Role: domain.RoleCustomer}
)

func newService(t *testing.T) (*Service, *memstore.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redisx.New(mr.Addr())
	t.Cleanup(func() { _ = rdb.Close() })
	st := memstore.New()
	return &Service{Store: st, Cache: &redisx.Cache{RDB: rdb}}, st
}

func TestCreateAndGet(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, seller, CreateInput{Name: "  Kopi Susu ", PriceCents: 1800, Stock: 12})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Kopi Susu", p.Name)
	assert.True(t, p.IsActive)
	assert.Equal(t, domain.Ratings{}, p.Ratings)

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1800), got.PriceCents)
	assert.Equal(t, 12, got.Stock)
}

func TestCreateRules(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, customer, CreateInput{Name: "x", PriceCents: 1})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	for name, in := range map[string]CreateInput{
		"blank name":     {Name: "   ", PriceCents: 1},
		"negative price": {Name: "x", PriceCents: -1},
		"negative stock": {Name: "x", Stock: -3},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, seller, in)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestPriceChangeInvalidatesCache(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, seller, CreateInput{Name: "teh", PriceCents: 1000, Stock: 1})
	require.NoError(t, err)
	_, err = svc.Get(ctx, p.ID)
	require.NoError(t, err)

	_, err = svc.SetPrice(ctx, seller, p.ID, 1500)
	require.NoError(t, err)
	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), got.PriceCents)

	_, err = svc.SetPrice(ctx, seller, p.ID, -1)
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.SetPrice(ctx, customer, p.ID, 1)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestInactiveProductIsNotFound(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, seller, CreateInput{Name: "roti", PriceCents: 900, Stock: 2})
	require.NoError(t, err)

	_, err = svc.SetActive(ctx, seller, p.ID, false)
	require.NoError(t, err)
	_, err = svc.Get(ctx, p.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// the negative entry must not outlive reactivation
	updated, err := svc.SetActive(ctx, seller, p.ID, true)
	require.NoError(t, err)
	assert.True(t, updated.IsActive)
	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
}

func TestStaleCacheAfterDirectWriteUntilInvalidated(t *testing.T) {
	svc, st := newService(t)
	ctx := context.Background()

	p, err := svc.Create(ctx, seller, CreateInput{Name: "gula", PriceCents: 500, Stock: 9})
	require.NoError(t, err)
	_, err = svc.Get(ctx, p.ID)
	require.NoError(t, err)

	require.NoError(t, st.InTx(ctx, func(tx store.Tx) error {
		_, err := tx.ReserveStock(ctx, p.ID, 4)
		return err
	}))
	cached, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, cached.Stock)

	svc.Cache.InvalidateProduct(ctx, p.ID)
	fresh, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, fresh.Stock)
}

func TestUnknownProduct(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Get(ctx, "6f1c1f6e-6a52-4d0e-9a53-2b5a1f6f2f10")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.Get(ctx, "bogus")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = svc.SetActive(ctx, seller, "6f1c1f6e-6a52-4d0e-9a53-2b5a1f6f2f10", true)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
