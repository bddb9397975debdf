package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MemoryEventBus is an in-process EventBus. It is the default when no NATS
// URL is configured and the bus used by tests. Handlers run synchronously
// on the publishing goroutine.
type MemoryEventBus struct {
	mu       sync.RWMutex
	handlers map[string][]func(msg *Message)
	closed   bool
}

func NewMemoryEventBus() *MemoryEventBus {
	return &MemoryEventBus{
		handlers: make(map[string][]func(msg *Message)),
	}
}

func (m *MemoryEventBus) Publish(_ context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("event bus closed")
	}
	handlers := append([]func(msg *Message){}, m.handlers[subject]...)
	m.mu.RUnlock()

	msg := &Message{
		Subject:   subject,
		Data:      payload,
		Timestamp: time.Now(),
	}
	for _, h := range handlers {
		h(msg)
	}
	return nil
}

func (m *MemoryEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("event bus closed")
	}
	m.handlers[subject] = append(m.handlers[subject], handler)
	return nil
}

func (m *MemoryEventBus) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.handlers = make(map[string][]func(msg *Message))
	return nil
}
