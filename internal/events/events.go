package events

import (
	"context"
	"encoding/json"
	"github.com/ariefcatur/go-storefront-orders/internal/domain"
	"github.com/google/uuid"
	"log"
	"time"
)

const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventReviewUpserted     = "ReviewUpserted"
	EventReviewDeleted      = "ReviewDeleted"
	EventRatingsReconciled  = "RatingsReconciled"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_id or product_id
	Payload       json.RawMessage `json:"payload"`
}

// ---- payloads ----

type ItemPrice struct {
	ProductID  string `json:"product_id"`
	Qty        int    `json:"qty"`
	PriceCents int64  `json:"price_cents"`
}

type OrderCreatedPayload struct {
	OrderID     string        `json:"order_id"`
	OrderNumber string        `json:"order_number"`
	UserID      string        `json:"user_id"`
	Items       []ItemPrice   `json:"items"`
	TotalCents  int64         `json:"total_cents"`
	Status      domain.Status `json:"status"`
}

type OrderStatusChangedPayload struct {
	OrderID       string               `json:"order_id"`
	UserID        string               `json:"user_id"`
	From          domain.Status        `json:"from"`
	To            domain.Status        `json:"to"`
	PaymentStatus domain.PaymentStatus `json:"payment_status"`
}

type ReviewChangedPayload struct {
	ProductID string         `json:"product_id"`
	UserID    string         `json:"user_id"`
	Rating    int            `json:"rating,omitempty"`
	Active    bool           `json:"active"`
	Ratings   domain.Ratings `json:"ratings"`
}

type RatingsReconciledPayload struct {
	ProductID      string         `json:"product_id"`
	Before         domain.Ratings `json:"before"`
	After          domain.Ratings `json:"after"`
	LedgerRepaired int            `json:"ledger_repaired"`
}

func OrderCreatedFrom(o domain.Order) OrderCreatedPayload {
	items := make([]ItemPrice, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemPrice{ProductID: it.ProductID, Qty: it.Qty, PriceCents: it.PriceCents})
	}
	return OrderCreatedPayload{
		OrderID:     o.ID,
		OrderNumber: o.Number,
		UserID:      o.UserID,
		Items:       items,
		TotalCents:  o.TotalCents,
		Status:      o.Status,
	}
}

// Publisher delivers an envelope to a topic. Key selects the partition so
// that events of one order or product stay ordered.
type Publisher interface {
	Publish(ctx context.Context, topic string, key []byte, env Envelope) error
}

// Emitter builds envelopes and publishes them after a unit of work commits.
// Publishing is best-effort: failures are logged and never undo the commit.
// A nil *Emitter discards events.
type Emitter struct {
	Pub      Publisher
	Producer string
}

func (e *Emitter) Emit(ctx context.Context, topic, eventType, key string, payload any) {
	if e == nil || e.Pub == nil {
		return
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Printf("event %s: marshal payload: %v", eventType, err)
		return
	}
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      e.Producer,
		TraceID:       TraceID(ctx),
		CorrelationID: key,
		Payload:       raw,
	}
	if err := e.Pub.Publish(ctx, topic, PartitionKey(key), env); err != nil {
		log.Printf("event %s key=%s: publish: %v", eventType, key, err)
	}
}

type traceKey struct{}

// WithTraceID attaches the request id so emitted envelopes carry it.
func WithTraceID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, traceKey{}, id)
}

func TraceID(ctx context.Context) string {
	s, _ := ctx.Value(traceKey{}).(string)
	return s
}

// DecodePayload unwraps the payload of an envelope.
func DecodePayload[T any](env Envelope) (T, error) {
	var t T
	err := json.Unmarshal(env.Payload, &t)
	return t, err
}
