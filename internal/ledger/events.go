package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ChangedChannel is the pub/sub channel carrying committed stock changes.
// Subscribing is optional; polling readers stay fully supported.
const ChangedChannel = "stock.changed"

// StockChangedEvent announces one committed transaction.
type StockChangedEvent struct {
	StoreID       int64     `json:"store_id"`
	ProductID     int64     `json:"product_id"`
	ChangeAmount  int64     `json:"change_amount"`
	QuantityAfter int64     `json:"quantity_after"`
	Reason        string    `json:"reason"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher emits committed stock changes to interested listeners.
type Publisher interface {
	Publish(ctx context.Context, event StockChangedEvent) error
}

// RedisPublisher broadcasts events over a Redis pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher constructs a publisher on ChangedChannel.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client, channel: ChangedChannel}
}

// Publish marshals the event and fires it on the channel. Delivery is
// fire-and-forget: a failed publish never fails the committed transaction.
func (p *RedisPublisher) Publish(ctx context.Context, event StockChangedEvent) error {
	if p == nil || p.client == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("ledger: marshal event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("ledger: publish event: %w", err)
	}
	return nil
}
