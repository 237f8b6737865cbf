// Package transport defines how reportflow reaches a message broker. Each
// backend (rabbitmq, kafka, nats, aws, http, channel) lives in its own
// sub-package and registers a Builder under the name used by the
// pubsub_system setting.
package transport

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// Transport combines a publisher and subscriber pair produced by a builder.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Close releases both halves. Backends that share one client for publishing
// and subscribing are closed once.
func (t Transport) Close() error {
	var subErr, pubErr error
	if t.Subscriber != nil {
		subErr = t.Subscriber.Close()
	}
	if t.Publisher != nil && !sameInstance(t.Publisher, t.Subscriber) {
		pubErr = t.Publisher.Close()
	}
	if subErr != nil {
		return subErr
	}
	return pubErr
}

func sameInstance(pub message.Publisher, sub message.Subscriber) bool {
	s, ok := any(pub).(message.Subscriber)
	return ok && s == sub
}

// Builder creates a transport from config.
type Builder func(ctx context.Context, cfg Config, logger watermill.LoggerAdapter) (Transport, error)

// Config exposes the settings the built-in backends read. It is satisfied by
// the service configuration without the transports importing it.
type Config interface {
	GetPubSubSystem() string

	// GetConsumerGroup names the Kafka consumer group and the NATS queue
	// group shared by all instances consuming the reporting queues.
	GetConsumerGroup() string

	GetKafkaBrokers() []string
	GetRabbitMQURL() string
	GetNATSURL() string

	GetHTTPServerAddress() string
	GetHTTPPublisherURL() string

	GetAWSRegion() string
	GetAWSAccountID() string
	GetAWSAccessKeyID() string
	GetAWSSecretAccessKey() string
	GetAWSEndpoint() string
}

// CapabilitiesProvider is implemented by transports that can report their capabilities.
type CapabilitiesProvider interface {
	Capabilities() Capabilities
}
