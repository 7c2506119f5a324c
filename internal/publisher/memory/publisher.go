// Package memory contains an in-memory run-event publisher for development
// and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/quseop/property-ci-scraper/internal/property"
)

// Publisher records run events instead of pushing them to a broker. It only
// accepts property.RunEvent payloads; the scheduler publishes nothing else.
type Publisher struct {
	mu     sync.RWMutex
	events []RecordedEvent
}

// RecordedEvent captures one published run event and its topic.
type RecordedEvent struct {
	Topic string
	Event property.RunEvent
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the event and returns a pseudo message ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	event, ok := payload.(property.RunEvent)
	if !ok {
		return "", fmt.Errorf("unexpected payload type %T", payload)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, RecordedEvent{Topic: topic, Event: event})
	return fmt.Sprintf("memory-%d", len(p.events)), nil
}

// Events returns all recorded run events in publish order.
func (p *Publisher) Events() []RecordedEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]RecordedEvent, len(p.events))
	copy(out, p.events)
	return out
}

// EventsFor returns the recorded run events published to topic.
func (p *Publisher) EventsFor(topic string) []RecordedEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []RecordedEvent
	for _, e := range p.events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

// LastEvent returns the most recently published run event, if any.
func (p *Publisher) LastEvent() (RecordedEvent, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.events) == 0 {
		return RecordedEvent{}, false
	}
	return p.events[len(p.events)-1], true
}
