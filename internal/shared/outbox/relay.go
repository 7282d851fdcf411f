package outbox

import (
	"context"
	"encoding/json"
	"log/slog"

	"arbor/internal/shared/events"
)

// Publisher is the bus side of the relay.
type Publisher interface {
	Publish(ctx context.Context, topic string, event events.Envelope) error
}

// Source is the persistence side of the relay.
type Source interface {
	FetchPending(ctx context.Context, limit int) ([]Message, error)
	MarkPublished(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// Relay drains pending outbox rows to the bus. Rows that fail to decode or
// publish are marked failed and retried on the next pass.
type Relay struct {
	Source    Source
	Publisher Publisher
	Topic     string
	BatchSize int
	Logger    *slog.Logger
}

func (r Relay) RunOnce(ctx context.Context) error {
	messages, err := r.Source.FetchPending(ctx, r.BatchSize)
	if err != nil {
		return err
	}
	for _, message := range messages {
		var envelope events.Envelope
		if err := json.Unmarshal(message.Payload, &envelope); err != nil {
			r.logger().Error("outbox payload undecodable",
				"event", "outbox_decode_failed",
				"module", "internal/shared/outbox",
				"layer", "worker",
				"outbox_id", message.ID,
				"error", err,
			)
			if err := r.Source.MarkFailed(ctx, message.ID); err != nil {
				return err
			}
			continue
		}
		if err := r.Publisher.Publish(ctx, r.Topic, envelope); err != nil {
			if err := r.Source.MarkFailed(ctx, message.ID); err != nil {
				return err
			}
			continue
		}
		if err := r.Source.MarkPublished(ctx, message.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r Relay) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}
