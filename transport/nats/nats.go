// Package nats provides the NATS backends. Subscribers join a queue group so
// each reporting message reaches one consumer instance. The "nats" backend
// uses core NATS; "nats-jetstream" keeps reporting queues in durable streams.
package nats

import (
	"context"
	"errors"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"

	"github.com/drblury/reportflow/transport"
)

const (
	// TransportName selects core NATS.
	TransportName = "nats"
	// JetStreamTransportName selects NATS JetStream.
	JetStreamTransportName = "nats-jetstream"
)

// DefaultQueueGroup is used when the config names no consumer group.
const DefaultQueueGroup = "reportflow"

// SubscribersCount is the number of concurrent NATS subscriptions per topic.
const SubscribersCount = 4

// ReconnectWait is the pause between reconnect attempts.
const ReconnectWait = 2 * time.Second

// ErrNoURL is returned when the config has no server URL.
var ErrNoURL = errors.New("nats: URL is required")

// PublisherFactory allows overriding the publisher creation for testing.
var PublisherFactory = func(cfg nats.PublisherConfig, logger watermill.LoggerAdapter) (message.Publisher, error) {
	return nats.NewPublisher(cfg, logger)
}

// SubscriberFactory allows overriding the subscriber creation for testing.
var SubscriberFactory = func(cfg nats.SubscriberConfig, logger watermill.LoggerAdapter) (message.Subscriber, error) {
	return nats.NewSubscriber(cfg, logger)
}

func init() { Register() }

// Register adds both backends to the default registry.
func Register() {
	transport.Register(TransportName, Build, transport.NATSCapabilities)
	transport.Register(JetStreamTransportName, BuildJetStream, transport.NATSJetStreamCapabilities)
}

// Build creates a core NATS publisher and a queue-group subscriber.
func Build(_ context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	return build(cfg, nats.JetStreamConfig{Disabled: true}, logger)
}

// BuildJetStream creates a JetStream publisher and durable queue-group
// subscriber. Streams are provisioned on first use and messages are acked
// only after the handler succeeds.
func BuildJetStream(_ context.Context, cfg transport.Config, logger watermill.LoggerAdapter) (transport.Transport, error) {
	return build(cfg, nats.JetStreamConfig{
		AutoProvision:    true,
		DurablePrefix:    queueGroup(cfg),
		SubscribeOptions: []nc.SubOpt{nc.DeliverAll(), nc.AckExplicit()},
		TrackMsgId:       true,
	}, logger)
}

func build(cfg transport.Config, js nats.JetStreamConfig, logger watermill.LoggerAdapter) (transport.Transport, error) {
	url := cfg.GetNATSURL()
	if url == "" {
		return transport.Transport{}, ErrNoURL
	}
	marshaler := &nats.NATSMarshaler{}
	options := ConnectOptions()

	publisher, err := PublisherFactory(nats.PublisherConfig{
		URL:         url,
		NatsOptions: options,
		Marshaler:   marshaler,
		JetStream:   js,
	}, logger)
	if err != nil {
		return transport.Transport{}, err
	}

	subscriber, err := SubscriberFactory(nats.SubscriberConfig{
		URL:              url,
		QueueGroupPrefix: queueGroup(cfg),
		SubscribersCount: SubscribersCount,
		NatsOptions:      options,
		Unmarshaler:      marshaler,
		JetStream:        js,
	}, logger)
	if err != nil {
		_ = publisher.Close()
		return transport.Transport{}, err
	}

	return transport.Transport{Publisher: publisher, Subscriber: subscriber}, nil
}

// ConnectOptions are applied to every NATS connection: a client name and
// unlimited reconnects.
func ConnectOptions() []nc.Option {
	return []nc.Option{
		nc.Name(DefaultQueueGroup),
		nc.RetryOnFailedConnect(true),
		nc.MaxReconnects(-1),
		nc.ReconnectWait(ReconnectWait),
	}
}

func queueGroup(cfg transport.Config) string {
	if group := cfg.GetConsumerGroup(); group != "" {
		return group
	}
	return DefaultQueueGroup
}

// Capabilities returns the capabilities of the core NATS backend.
func Capabilities() transport.Capabilities {
	return transport.NATSCapabilities
}
