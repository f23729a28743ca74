package providers

import (
	"context"

	"github.com/pharmacyonduty/backend/internal/domain/entities"
	"github.com/pharmacyonduty/backend/pkg/utils"
)

// EventBus defines the interface for publishing and subscribing to roster events
type EventBus interface {
	// Publish publishes an event to all subscribers
	Publish(ctx context.Context, channel string, event *entities.DutyRosterEvent) error

	// Subscribe subscribes to events on a channel
	Subscribe(ctx context.Context, channel string) (<-chan *entities.DutyRosterEvent, error)

	// Unsubscribe unsubscribes from a channel
	Unsubscribe(ctx context.Context, channel string) error

	// Close closes the event bus and all subscriptions
	Close() error
}

const (
	// EventChannelDutyRefreshed receives an event for every refreshed city
	EventChannelDutyRefreshed = "duty:refreshed"

	// EventChannelCityPrefix is the prefix for city-specific channels
	EventChannelCityPrefix = "duty:city:"
)

// GetCityChannel returns the channel name for a specific city
func GetCityChannel(cityName string) string {
	return EventChannelCityPrefix + utils.FoldName(cityName)
}
