package events_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ariefcatur/go-storefront-orders/internal/domain"
	"github.com/ariefcatur/go-storefront-orders/internal/events"
	"github.com/ariefcatur/go-storefront-orders/internal/events/eventstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitterBuildsEnvelope(t *testing.T) {
	rec := &eventstest.Recorder{}
	em := &events.Emitter{Pub: rec, Producer: "storefront-api"}
	ctx := events.WithTraceID(context.Background(), "req-1")

	em.Emit(ctx, events.TopicReviews, events.EventReviewUpserted, "p1", events.ReviewChangedPayload{
		ProductID: "p1", UserID: "u1", Rating: 4, Active: true,
		Ratings: domain.RatingsFrom(1, 4),
	})

	got := rec.Events()
	require.Len(t, got, 1)
	assert.Equal(t, events.TopicReviews, got[0].Topic)
	assert.Equal(t, "p1", got[0].Key)

	env := got[0].Envelope
	assert.Equal(t, events.EventReviewUpserted, env.EventType)
	assert.Equal(t, 1, env.EventVersion)
	assert.Equal(t, "storefront-api", env.Producer)
	assert.Equal(t, "req-1", env.TraceID)
	assert.Equal(t, "p1", env.CorrelationID)
	assert.NotEmpty(t, env.EventID)

	p, err := events.DecodePayload[events.ReviewChangedPayload](env)
	require.NoError(t, err)
	assert.Equal(t, 4, p.Rating)
	assert.Equal(t, 4.0, p.Ratings.Average)
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, string, []byte, events.Envelope) error {
	return errors.New("broker down")
}

func TestEmitterIsBestEffort(t *testing.T) {
	var nilEmitter *events.Emitter
	assert.NotPanics(t, func() {
		nilEmitter.Emit(context.Background(), events.TopicOrders, events.EventOrderCreated, "o1", nil)
	})
	em := &events.Emitter{Pub: failingPublisher{}}
	assert.NotPanics(t, func() {
		em.Emit(context.Background(), events.TopicOrders, events.EventOrderCreated, "o1", events.OrderCreatedPayload{OrderID: "o1"})
	})
}

func TestOrderCreatedFrom(t *testing.T) {
	p := events.OrderCreatedFrom(domain.Order{
		ID: "o1", Number: "ORD-1", UserID: "u1", TotalCents: 6480, Status: domain.StatusPending,
		Items: []domain.LineItem{{ProductID: "a", Qty: 2, PriceCents: 3000}},
	})
	assert.Equal(t, []events.ItemPrice{{ProductID: "a", Qty: 2, PriceCents: 3000}}, p.Items)
	assert.Equal(t, int64(6480), p.TotalCents)
}
