package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSupportsReliableDelivery(t *testing.T) {
	tests := []struct {
		caps Capabilities
		want bool
	}{
		{RabbitMQCapabilities, true},
		{KafkaCapabilities, true},
		{AWSCapabilities, true},
		{ChannelCapabilities, false},
		{NATSCapabilities, false},
		{NATSJetStreamCapabilities, true},
		{HTTPCapabilities, false},
	}
	for _, tt := range tests {
		t.Run(tt.caps.Name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.caps.SupportsReliableDelivery())
		})
	}
}

func TestBrokerBackendsShareQueues(t *testing.T) {
	for _, caps := range []Capabilities{RabbitMQCapabilities, KafkaCapabilities, NATSCapabilities, NATSJetStreamCapabilities, AWSCapabilities} {
		assert.True(t, caps.CompetingConsumers, caps.Name)
	}
	assert.False(t, ChannelCapabilities.CompetingConsumers)
}
