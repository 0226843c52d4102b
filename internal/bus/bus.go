// Package bus provides the event buses carrying levy requests and results.
package bus

import (
	"errors"
	"fmt"

	"github.com/lawdigitaltwin/tourismlevy/internal/domain"
)

var (
	// ErrClosed is returned by operations on a closed bus.
	ErrClosed = errors.New("bus is closed")

	// ErrNoReplySubject is returned when replying to a message that was
	// published without a reply subject.
	ErrNoReplySubject = errors.New("message has no reply subject")

	// ErrEmptyTopic is returned for an empty topic.
	ErrEmptyTopic = errors.New("topic is required")
)

// New creates a new event bus based on configuration.
// For Community tier: returns ChannelBus.
// For Pro tier: returns NATSBus.
func New(cfg domain.EventBusConfig) (domain.EventBus, error) {
	switch cfg.Type {
	case "channel":
		return NewChannelBus(cfg.ChannelBufferSize), nil

	case "nats":
		return NewNATSBus(cfg)

	default:
		return nil, fmt.Errorf("unsupported event bus type: %s", cfg.Type)
	}
}
