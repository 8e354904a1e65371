package publisher

import (
	"context"
	"sync"

	"spout/internal/events"
)

// Memory records published events in order. Tests use it to assert on
// emission without a broker.
type Memory struct {
	mu     sync.Mutex
	events []events.Event
}

// NewMemory constructs an empty recorder.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Publish(_ context.Context, event events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a snapshot of everything published so far.
func (m *Memory) Events() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]events.Event, len(m.events))
	copy(out, m.events)
	return out
}

// ByType filters the recorded events.
func (m *Memory) ByType(t events.Type) []events.Event {
	var out []events.Event
	for _, e := range m.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Reset clears the recorder between test cases.
func (m *Memory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}
