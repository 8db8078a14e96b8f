package eventstest

import (
	"context"
	"github.com/ariefcatur/go-storefront-orders/internal/events"
	"sync"
)

type Recorded struct {
	Topic    string
	Key      string
	Envelope events.Envelope
}

// Recorder is an in-memory events.Publisher that keeps everything published.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

func (r *Recorder) Publish(_ context.Context, topic string, key []byte, env events.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{Topic: topic, Key: string(key), Envelope: env})
	return nil
}

func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Recorded(nil), r.events...)
}

// Types lists the event types seen on topic, in publish order.
func (r *Recorder) Types(topic string) []string {
	var out []string
	for _, e := range r.Events() {
		if e.Topic == topic {
			out = append(out, e.Envelope.EventType)
		}
	}
	return out
}
