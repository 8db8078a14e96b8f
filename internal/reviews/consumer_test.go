package reviews

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/ariefcatur/go-storefront-orders/internal/domain"
	"github.com/ariefcatur/go-storefront-orders/internal/events"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memClaims struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (c *memClaims) Claim(_ context.Context, service, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.seen == nil {
		c.seen = map[string]bool{}
	}
	k := service + "/" + id
	if c.seen[k] {
		return false, nil
	}
	c.seen[k] = true
	return true, nil
}

func (c *memClaims) Release(_ context.Context, service, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.seen, service+"/"+id)
}

func message(t *testing.T, id, eventType string, payload any) kafka.Message {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	b, err := kafkax.MarshalEnvelope(events.Envelope{EventID: id, EventType: eventType, EventVersion: 1, Payload: raw})
	require.NoError(t, err)
	return kafka.Message{Value: b}
}

func TestReconcilerRepairsOnReviewEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.product(t)
	_, _, err := f.svc.Upsert(ctx, alice, p.ID, UpsertInput{Rating: 4})
	require.NoError(t, err)

	require.NoError(t, f.store.InTx(ctx, func(tx store.Tx) error {
		return tx.SetRatings(ctx, p.ID, domain.Ratings{Average: 2, Count: 3, Sum: 6})
	}))

	rc := &Reconciler{Reviews: f.svc, Dedup: &memClaims{}, Name: "reconciler"}
	m := message(t, "ev-1", events.EventReviewUpserted, events.ReviewChangedPayload{ProductID: p.ID, UserID: "alice"})
	require.NoError(t, rc.HandleReviewEvent(ctx, m))
	assert.Equal(t, domain.Ratings{Average: 4, Count: 1, Sum: 4}, f.ratings(t, p.ID))

	// a redelivery is skipped
	require.NoError(t, f.store.InTx(ctx, func(tx store.Tx) error {
		return tx.SetRatings(ctx, p.ID, domain.Ratings{})
	}))
	require.NoError(t, rc.HandleReviewEvent(ctx, m))
	assert.Equal(t, domain.Ratings{}, f.ratings(t, p.ID))
}

func TestReconcilerIgnoresOtherEvents(t *testing.T) {
	f := newFixture(t)
	claims := &memClaims{}
	rc := &Reconciler{Reviews: f.svc, Dedup: claims, Name: "reconciler"}
	ctx := context.Background()

	require.NoError(t, rc.HandleReviewEvent(ctx, message(t, "ev-2", events.EventRatingsReconciled, events.RatingsReconciledPayload{ProductID: "x"})))
	require.NoError(t, rc.HandleReviewEvent(ctx, kafka.Message{Value: []byte("{not json")}))
	require.NoError(t, rc.HandleReviewEvent(ctx, message(t, "ev-3", events.EventReviewDeleted, events.ReviewChangedPayload{ProductID: "6f1c1f6e-6a52-4d0e-9a53-2b5a1f6f2f10"})))
	assert.Empty(t, f.rec.Types(events.TopicReviews))
}

type brokenStore struct{}

func (brokenStore) InTx(context.Context, func(store.Tx) error) error {
	return fmt.Errorf("%w: commit", domain.ErrTransaction)
}

func TestReconcilerReleasesClaimOnFailure(t *testing.T) {
	claims := &memClaims{}
	rc := &Reconciler{Reviews: &Service{Store: brokenStore{}}, Dedup: claims, Name: "reconciler"}
	ctx := context.Background()
	m := message(t, "ev-4", events.EventReviewUpserted, events.ReviewChangedPayload{ProductID: "6f1c1f6e-6a52-4d0e-9a53-2b5a1f6f2f10"})

	err := rc.HandleReviewEvent(ctx, m)
	assert.ErrorIs(t, err, domain.ErrTransaction)

	claimed, err := claims.Claim(ctx, "reconciler", "ev-4")
	require.NoError(t, err)
	assert.True(t, claimed, "failed events can be retried")
}
