// Package pubsub publishes status events to a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// Attributer is implemented by payloads that contribute message attributes.
type Attributer interface {
	Attributes() map[string]string
}

// Publisher wraps a Pub/Sub topic publisher. It owns the client when created by Dial.
type Publisher struct {
	publisher *pubsub.Publisher
	client    *pubsub.Client
}

// New creates a Publisher for the provided topic publisher.
func New(publisher *pubsub.Publisher) *Publisher {
	return &Publisher{publisher: publisher}
}

// Dial connects with Application Default Credentials and verifies the topic is active.
func Dial(ctx context.Context, projectID, topicID string, logger *zap.Logger) (*Publisher, error) {
	if projectID == "" || topicID == "" {
		return nil, errors.New("pubsub project_id and topic_name are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	name := fullTopicName(projectID, topicID)
	topic, err := client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: name})
	if err == nil && topic.GetState() != pubsubpb.Topic_ACTIVE {
		err = fmt.Errorf("topic state is %s", topic.GetState())
	}
	if err != nil {
		if closeErr := client.Close(); closeErr != nil {
			logger.Warn("close pubsub client after topic check failed", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("pubsub topic %q in project %q: %w", topicID, projectID, err)
	}
	return &Publisher{publisher: client.Publisher(name), client: client}, nil
}

func fullTopicName(projectID, topicID string) string {
	return fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
}

// Publish marshals the payload to JSON and publishes it, carrying the trace
// context and any payload attributes. The topic argument is informational; the
// publisher is bound to one topic.
func (p *Publisher) Publish(ctx context.Context, _ string, payload any) (string, error) {
	if p == nil || p.publisher == nil {
		return "", errors.New("pubsub publisher is not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	msg := &pubsub.Message{Data: data, Attributes: messageAttributes(ctx, payload)}
	result := p.publisher.Publish(ctx, msg)
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

func messageAttributes(ctx context.Context, payload any) map[string]string {
	attrs := make(map[string]string)
	if a, ok := payload.(Attributer); ok {
		for k, v := range a.Attributes() {
			attrs[k] = v
		}
	}
	otel.GetTextMapPropagator().Inject(ctx, &pubsubCarrier{attrs: attrs})
	return attrs
}

// Close flushes pending messages and closes an owned client.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	if p.publisher != nil {
		p.publisher.Stop()
	}
	if p.client == nil {
		return nil
	}
	if err := p.client.Close(); err != nil {
		return fmt.Errorf("close pubsub client: %w", err)
	}
	return nil
}

// pubsubCarrier implements propagation.TextMapCarrier for Pub/Sub attributes.
type pubsubCarrier struct {
	attrs map[string]string
}

func (c *pubsubCarrier) Get(key string) string {
	return c.attrs[key]
}

func (c *pubsubCarrier) Set(key, value string) {
	c.attrs[key] = value
}

func (c *pubsubCarrier) Keys() []string {
	keys := make([]string, 0, len(c.attrs))
	for k := range c.attrs {
		keys = append(keys, k)
	}
	return keys
}
