package reviews

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-storefront-orders/internal/domain"
	"github.com/ariefcatur/go-storefront-orders/internal/events"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/segmentio/kafka-go"
	"log"
)

// Claimer deduplicates redelivered events.
type Claimer interface {
	Claim(ctx context.Context, service, eventID string) (bool, error)
	Release(ctx context.Context, service, eventID string)
}

// Reconciler re-checks a product every time one of its reviews changes.
type Reconciler struct {
	Reviews *Service
	Dedup   Claimer
	Name    string
}

func (rc *Reconciler) HandleReviewEvent(ctx context.Context, m kafka.Message) error {
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		log.Printf("reconciler: drop offset=%d: %v", m.Offset, err)
		return nil
	}
	if env.EventType != events.EventReviewUpserted && env.EventType != events.EventReviewDeleted {
		return nil
	}
	p, err := events.DecodePayload[events.ReviewChangedPayload](env)
	if err != nil || p.ProductID == "" {
		log.Printf("reconciler: drop event %s: bad payload: %v", env.EventID, err)
		return nil
	}

	claimed, err := rc.Dedup.Claim(ctx, rc.Name, env.EventID)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !claimed {
		return nil
	}

	rep, err := rc.Reviews.Reconcile(events.WithTraceID(ctx, env.TraceID), p.ProductID)
	switch {
	case err == nil:
		if rep.Drifted() {
			log.Printf("reconciler: event %s repaired product %s", env.EventID, p.ProductID)
		}
		return nil
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrValidation):
		log.Printf("reconciler: drop event %s: %v", env.EventID, err)
		return nil
	default:
		rc.Dedup.Release(ctx, rc.Name, env.EventID)
		return err
	}
}
