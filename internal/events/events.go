// Package events publishes run reports to a gocloud.dev/pubsub topic so
// downstream renderers can rebuild the public status pages.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/mempubsub"
)

// Metadata keys set on every published message.
const (
	MetaRunID = "run_id"
	MetaDate  = "date"
)

// Publisher sends JSON payloads to a topic. A Publisher without a topic
// drops everything, which is what an empty topic URL configures.
type Publisher struct {
	topic  *pubsub.Topic
	logger *slog.Logger
}

// Open opens the topic at url (mem://, nats://, rabbit://, kafka:// when the
// driver is linked). An empty url returns a Publisher that drops every message.
// Pass nil logger to use the default logger.
func Open(ctx context.Context, url string, logger *slog.Logger) (*Publisher, error) {
	if url == "" {
		return NewPublisher(nil, logger), nil
	}
	topic, err := pubsub.OpenTopic(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("opening topic %q: %w", url, err)
	}
	return NewPublisher(topic, logger), nil
}

// NewPublisher wraps an already opened topic. topic may be nil.
func NewPublisher(topic *pubsub.Topic, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{topic: topic, logger: logger}
}

// Enabled reports whether messages go anywhere.
func (p *Publisher) Enabled() bool {
	return p != nil && p.topic != nil
}

// Publish encodes payload as JSON and sends it tagged with runID and date.
func (p *Publisher) Publish(ctx context.Context, runID, date string, payload any) error {
	if !p.Enabled() {
		return nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	msg := &pubsub.Message{
		Body: body,
		Metadata: map[string]string{
			MetaRunID: runID,
			MetaDate:  date,
		},
	}
	if err := p.topic.Send(ctx, msg); err != nil {
		return fmt.Errorf("publishing run %s: %w", runID, err)
	}
	p.logger.Debug("run report published", "run_id", runID, "bytes", len(body))
	return nil
}

// Shutdown flushes pending messages and releases the topic.
func (p *Publisher) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	return p.topic.Shutdown(ctx)
}
