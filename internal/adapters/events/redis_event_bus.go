package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pharmacyonduty/backend/internal/domain/entities"
	"github.com/pharmacyonduty/backend/internal/domain/providers"
	redisclient "github.com/pharmacyonduty/backend/internal/infrastructure/clients/redis"
)

const subscriberBuffer = 64

// RedisEventBus fans duty roster events out over Redis Pub/Sub
type RedisEventBus struct {
	client        *redisclient.Client
	logger        zerolog.Logger
	subscriptions map[string]*redis.PubSub
	subscribers   map[string]map[chan *entities.DutyRosterEvent]struct{}
	mu            sync.Mutex
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewRedisEventBus creates a new Redis-based event bus
func NewRedisEventBus(client *redisclient.Client, logger zerolog.Logger) *RedisEventBus {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisEventBus{
		client:        client,
		logger:        logger.With().Str("component", "event_bus").Logger(),
		subscriptions: make(map[string]*redis.PubSub),
		subscribers:   make(map[string]map[chan *entities.DutyRosterEvent]struct{}),
		ctx:           ctx,
		cancel:        cancel,
	}
}

var _ providers.EventBus = (*RedisEventBus)(nil)

// Publish publishes an event to all subscribers of channel
func (b *RedisEventBus) Publish(ctx context.Context, channel string, event *entities.DutyRosterEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.client.Client().Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug().Str("channel", channel).Str("event_id", event.ID).Msg("published roster event")
	return nil
}

// Subscribe returns a channel of events published on channel. It is closed
// when ctx ends, on Unsubscribe, or on Close.
func (b *RedisEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.DutyRosterEvent, error) {
	for {
		b.mu.Lock()
		if b.ctx.Err() != nil {
			b.mu.Unlock()
			return nil, errors.New("event bus is closed")
		}
		if _, exists := b.subscriptions[channel]; exists {
			eventChan := b.addSubscriberLocked(ctx, channel)
			b.mu.Unlock()
			return eventChan, nil
		}
		b.mu.Unlock()

		// The handshake waits on Redis, so it runs without b.mu.
		pubsub := b.client.Client().Subscribe(b.ctx, channel)
		// Wait for the confirmation so events published right after Subscribe are not lost.
		if _, err := pubsub.Receive(ctx); err != nil {
			_ = pubsub.Close()
			return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
		}

		b.mu.Lock()
		if b.ctx.Err() != nil {
			b.mu.Unlock()
			_ = pubsub.Close()
			return nil, errors.New("event bus is closed")
		}
		if _, exists := b.subscriptions[channel]; exists {
			// a concurrent Subscribe installed the channel first; retry to join it
			b.mu.Unlock()
			_ = pubsub.Close()
			continue
		}
		b.subscriptions[channel] = pubsub
		b.subscribers[channel] = make(map[chan *entities.DutyRosterEvent]struct{})
		go b.receive(channel, pubsub)
		eventChan := b.addSubscriberLocked(ctx, channel)
		b.mu.Unlock()
		return eventChan, nil
	}
}

// addSubscriberLocked registers a subscriber channel that is removed when ctx ends.
func (b *RedisEventBus) addSubscriberLocked(ctx context.Context, channel string) chan *entities.DutyRosterEvent {
	eventChan := make(chan *entities.DutyRosterEvent, subscriberBuffer)
	b.subscribers[channel][eventChan] = struct{}{}
	b.logger.Debug().Str("channel", channel).Int("subscribers", len(b.subscribers[channel])).Msg("subscribed")

	go func() {
		select {
		case <-ctx.Done():
			b.removeSubscriber(channel, eventChan)
		case <-b.ctx.Done():
		}
	}()
	return eventChan
}

func (b *RedisEventBus) receive(channel string, pubsub *redis.PubSub) {
	ch := pubsub.Channel()
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event entities.DutyRosterEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn().Err(err).Str("channel", channel).Msg("dropping undecodable event")
				continue
			}

			b.mu.Lock()
			for subscriber := range b.subscribers[channel] {
				select {
				case subscriber <- &event:
				default:
					b.logger.Warn().Str("channel", channel).Str("event_id", event.ID).Msg("subscriber is full, dropping event")
				}
			}
			b.mu.Unlock()
		}
	}
}

func (b *RedisEventBus) removeSubscriber(channel string, eventChan chan *entities.DutyRosterEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subscribers := b.subscribers[channel]
	if _, ok := subscribers[eventChan]; !ok {
		return
	}
	delete(subscribers, eventChan)
	close(eventChan)

	if len(subscribers) == 0 {
		_ = b.closeChannelLocked(channel)
	}
}

// closeChannelLocked closes every subscriber and the Redis subscription of channel.
func (b *RedisEventBus) closeChannelLocked(channel string) error {
	for subscriber := range b.subscribers[channel] {
		close(subscriber)
	}
	delete(b.subscribers, channel)

	pubsub, ok := b.subscriptions[channel]
	if !ok {
		return nil
	}
	delete(b.subscriptions, channel)
	if err := pubsub.Close(); err != nil {
		return fmt.Errorf("failed to close subscription %s: %w", channel, err)
	}
	b.logger.Debug().Str("channel", channel).Msg("closed subscription")
	return nil
}

// Unsubscribe drops every subscriber of channel
func (b *RedisEventBus) Unsubscribe(_ context.Context, channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeChannelLocked(channel)
}

// Close closes the event bus and all subscriptions
func (b *RedisEventBus) Close() error {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for channel := range b.subscriptions {
		if err := b.closeChannelLocked(channel); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
