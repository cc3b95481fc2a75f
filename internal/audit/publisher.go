// Package audit records structured events for every state-changing
// operation. Publishing is fire-and-forget from the pipeline's point of
// view: an audit failure never fails an issuance.
package audit

import (
	"context"
	"sync"
	"time"
)

// Sink receives audit events. Implementations: Kafka (production) and
// in-memory (tests, single-node deployments without brokers).
type Sink interface {
	Publish(ctx context.Context, event Event) error
	Close()
}

// Publisher stamps and forwards events to a sink.
type Publisher struct {
	sink Sink
}

func NewPublisher(sink Sink) *Publisher {
	return &Publisher{sink: sink}
}

func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return p.sink.Publish(ctx, event)
}

func (p *Publisher) Close() { p.sink.Close() }

// MemorySink keeps events in memory. Append-only.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Publish(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemorySink) Close() {}

// Events returns a copy of everything published so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}
