package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Message is the envelope written to the events channel.
type Message struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Publisher fans domain events out over Redis pub/sub. Delivery is
// at-most-once: subscribers that are not connected miss the message.
type Publisher struct {
	client  redis.UniversalClient
	channel string
	now     func() time.Time
}

// NewPublisher creates a publisher writing to channel.
func NewPublisher(client redis.UniversalClient, channel string) *Publisher {
	return &Publisher{client: client, channel: channel, now: time.Now}
}

// Publish encodes payload as JSON and publishes it under eventType.
func (p *Publisher) Publish(ctx context.Context, eventType string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return errors.Join(ErrEncodeMessage, err)
	}
	msg, err := json.Marshal(Message{Type: eventType, OccurredAt: p.now().UTC(), Payload: raw})
	if err != nil {
		return errors.Join(ErrEncodeMessage, err)
	}
	if err := p.client.Publish(ctx, p.channel, msg).Err(); err != nil {
		return errors.Join(ErrPublishFailed, err)
	}
	return nil
}

// Subscribe returns a channel of decoded messages until ctx is cancelled.
// Messages that fail to decode are skipped.
func (p *Publisher) Subscribe(ctx context.Context) (<-chan Message, error) {
	sub := p.client.Subscribe(ctx, p.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, errors.Join(ErrSubscribeFailed, err)
	}

	out := make(chan Message)
	go func() {
		defer close(out)
		defer sub.Close()
		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-in:
				if !ok {
					return
				}
				var msg Message
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
