// Package memory contains an in-process publisher used when no topic is configured.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Publisher stores published payloads as the JSON a broker would receive.
type Publisher struct {
	mu       sync.RWMutex
	messages []PublishedMessage
	limit    int
	seq      int
}

// PublishedMessage captures one publish call.
type PublishedMessage struct {
	ID      string
	Topic   string
	Payload json.RawMessage
}

// New returns a memory Publisher that keeps at most limit messages; limit <= 0 keeps all.
func New(limit int) *Publisher {
	return &Publisher{limit: limit}
}

// Publish marshals and records the message and returns a pseudo ID.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	id := fmt.Sprintf("memory-%d", p.seq)
	p.messages = append(p.messages, PublishedMessage{ID: id, Topic: topic, Payload: data})
	if p.limit > 0 && len(p.messages) > p.limit {
		p.messages = append([]PublishedMessage(nil), p.messages[len(p.messages)-p.limit:]...)
	}
	return id, nil
}

// Messages returns the recorded publishes.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}
