package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/domain"
	"github.com/ariefcatur/go-storefront-orders/internal/memstore"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	productA = "0b8f4a52-1d0c-4c57-9d43-6d1f3f0c0a01"
	productB = "0b8f4a52-1d0c-4c57-9d43-6d1f3f0c0a02"
)

func TestRecordDeliveryCountsDistinctProducts(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	o := domain.Order{ID: "o1", UserID: "alice", Items: []domain.LineItem{
		{ProductID: productA, Qty: 2},
		{ProductID: productB, Qty: 1},
		{ProductID: productA, Qty: 1},
	}}
	require.NoError(t, st.InTx(ctx, func(tx store.Tx) error { return RecordDelivery(ctx, tx, o, at) }))
	require.NoError(t, st.InTx(ctx, func(tx store.Tx) error { return RecordDelivery(ctx, tx, o, at.Add(time.Hour)) }))

	svc := &Service{Store: st}
	a, err := svc.Get(ctx, "alice", productA)
	require.NoError(t, err)
	assert.Equal(t, 2, a.PurchaseCount)
	assert.Equal(t, at.Add(time.Hour), a.LastPurchasedAt)
	assert.False(t, a.IsReviewed)

	b, err := svc.Get(ctx, "alice", productB)
	require.NoError(t, err)
	assert.Equal(t, 2, b.PurchaseCount)
}

func TestGetMissingEntryIsZero(t *testing.T) {
	svc := &Service{Store: memstore.New()}
	up, err := svc.Get(context.Background(), "bob", productA)
	require.NoError(t, err)
	assert.Equal(t, domain.UserProduct{UserID: "bob", ProductID: productA}, up)

	_, err = svc.Get(context.Background(), "bob", "nope")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRepair(t *testing.T) {
	st := memstore.New()
	ctx := context.Background()

	require.NoError(t, st.InTx(ctx, func(tx store.Tx) error {
		if err := tx.RecordPurchase(ctx, "alice", productA, time.Now()); err != nil {
			return err
		}
		if err := MarkReviewed(ctx, tx, "bob", productA, true); err != nil {
			return err
		}
		return MarkReviewed(ctx, tx, "carol", productA, true)
	}))

	var n int
	require.NoError(t, st.InTx(ctx, func(tx store.Tx) error {
		var err error
		n, err = Repair(ctx, tx, productA, map[string]bool{"alice": true, "carol": true, "dave": true})
		return err
	}))
	// alice false->true, bob true->false, dave created
	assert.Equal(t, 3, n)

	svc := &Service{Store: st}
	want := map[string]bool{"alice": true, "bob": false, "carol": true, "dave": true}
	for user, reviewed := range want {
		up, err := svc.Get(ctx, user, productA)
		require.NoError(t, err)
		assert.Equal(t, reviewed, up.IsReviewed, user)
	}
	a, _ := svc.Get(ctx, "alice", productA)
	assert.Equal(t, 1, a.PurchaseCount, "repair keeps purchase counts")

	require.NoError(t, st.InTx(ctx, func(tx store.Tx) error {
		var err error
		n, err = Repair(ctx, tx, productA, map[string]bool{"alice": true, "carol": true, "dave": true})
		return err
	}))
	assert.Zero(t, n)
}
