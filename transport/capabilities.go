package transport

// Capabilities describes what a backend guarantees to the reporting consumer.
type Capabilities struct {
	Name string

	// Durable messages survive a broker restart.
	Durable bool

	// CompetingConsumers spreads one queue over every running instance
	// instead of copying each message to all of them.
	CompetingConsumers bool

	// SupportsNack redelivers a message whose handler failed.
	SupportsNack bool

	// PreservesOrder keeps messages of one queue or partition key in order.
	PreservesOrder bool

	// MaxMessageSize in bytes, 0 when unknown.
	MaxMessageSize int64
}

// SupportsReliableDelivery reports at-least-once delivery: failed messages
// come back and nothing is lost on restart.
func (c Capabilities) SupportsReliableDelivery() bool {
	return c.Durable && c.SupportsNack
}

// Built-in capability sets.
var (
	ChannelCapabilities = Capabilities{
		Name:           "channel",
		SupportsNack:   true,
		PreservesOrder: true,
	}

	KafkaCapabilities = Capabilities{
		Name:               "kafka",
		Durable:            true,
		CompetingConsumers: true,
		SupportsNack:       true,
		PreservesOrder:     true,
		MaxMessageSize:     1 << 20,
	}

	RabbitMQCapabilities = Capabilities{
		Name:               "rabbitmq",
		Durable:            true,
		CompetingConsumers: true,
		SupportsNack:       true,
		PreservesOrder:     true,
	}

	NATSCapabilities = Capabilities{
		Name:               "nats",
		CompetingConsumers: true,
		MaxMessageSize:     1 << 20,
	}

	NATSJetStreamCapabilities = Capabilities{
		Name:               "nats-jetstream",
		Durable:            true,
		CompetingConsumers: true,
		SupportsNack:       true,
		PreservesOrder:     true,
		MaxMessageSize:     1 << 20,
	}

	AWSCapabilities = Capabilities{
		Name:               "aws",
		Durable:            true,
		CompetingConsumers: true,
		SupportsNack:       true,
		MaxMessageSize:     256 << 10,
	}

	HTTPCapabilities = Capabilities{
		Name: "http",
	}
)

// GetCapabilities returns the capabilities registered for name in the
// default registry, or a zero value carrying only the name.
func GetCapabilities(name string) Capabilities {
	caps, _ := DefaultRegistry.Capabilities(name)
	return caps
}
