package reporting

import (
	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/reportflow/internal/runtime/errors"
)

// MessageHandler processes one reporting message.
type MessageHandler interface {
	HandleMessage(msg *message.Message) error
}

// MessageHandlerFunc adapts a function to MessageHandler.
type MessageHandlerFunc func(msg *message.Message) error

func (f MessageHandlerFunc) HandleMessage(msg *message.Message) error { return f(msg) }

// HandlerProvider looks up the handler for a tag. Lookup is a pure mapping:
// each tag has at most one handler.
type HandlerProvider interface {
	ProvideHandler(rt RequestType) (MessageHandler, bool)
}

// MapHandlerProvider is an immutable tag to handler table.
type MapHandlerProvider struct {
	handlers map[RequestType]MessageHandler
}

// NewMapHandlerProvider copies handlers into a provider. Tags outside the known
// set and nil handlers are rejected.
func NewMapHandlerProvider(handlers map[RequestType]MessageHandler) (*MapHandlerProvider, error) {
	table := make(map[RequestType]MessageHandler, len(handlers))
	for rt, h := range handlers {
		if h == nil {
			return nil, errspkg.ErrHandlerRequired
		}
		if !rt.Valid() {
			return nil, errspkg.ErrUnknownRequestType
		}
		table[rt] = h
	}
	return &MapHandlerProvider{handlers: table}, nil
}

func (p *MapHandlerProvider) ProvideHandler(rt RequestType) (MessageHandler, bool) {
	h, ok := p.handlers[rt]
	return h, ok
}

// RequestTypes returns the tags this provider can route.
func (p *MapHandlerProvider) RequestTypes() []RequestType {
	out := make([]RequestType, 0, len(p.handlers))
	for _, rt := range requestTypes {
		if _, ok := p.handlers[rt]; ok {
			out = append(out, rt)
		}
	}
	return out
}
