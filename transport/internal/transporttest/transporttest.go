// Package transporttest holds publisher and subscriber doubles shared by the
// backend tests.
package transporttest

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
)

type Publisher struct{}

func (*Publisher) Publish(string, ...*message.Message) error { return nil }
func (*Publisher) Close() error                              { return nil }

type Subscriber struct{}

func (*Subscriber) Subscribe(context.Context, string) (<-chan *message.Message, error) {
	return make(chan *message.Message), nil
}
func (*Subscriber) Close() error { return nil }
