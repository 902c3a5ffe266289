package events

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"overcooked-storefront/cart-svc/internal/domain"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "cart:"

// RedisRelay carries cart events between cart-svc instances so a surface
// connected to one instance sees changes made through another.
type RedisRelay struct {
	Client *redis.Client
	Origin string
}

func NewRedisRelay(client *redis.Client, origin string) *RedisRelay {
	return &RedisRelay{Client: client, Origin: origin}
}

var _ Sink = (*RedisRelay)(nil)

func (r *RedisRelay) Channel(owner string) string {
	return channelPrefix + owner
}

func (r *RedisRelay) Forward(ctx context.Context, evt domain.CartEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return r.Client.Publish(ctx, r.Channel(evt.Owner), payload).Err()
}

// Run delivers events published by other instances onto bus until ctx ends.
func (r *RedisRelay) Run(ctx context.Context, bus *Bus) error {
	pubsub := r.Client.PSubscribe(ctx, channelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var evt domain.CartEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err != nil {
				log.Printf("[cart-svc] relay: bad payload on %s: %v", msg.Channel, err)
				continue
			}
			if evt.Origin == r.Origin {
				continue
			}
			if evt.Owner == "" {
				evt.Owner = strings.TrimPrefix(msg.Channel, channelPrefix)
			}
			bus.Deliver(evt)
		}
	}
}
