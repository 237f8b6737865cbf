package reporting

import (
	"context"
	"fmt"
	"reflect"

	"github.com/ThreeDotsLabs/watermill/message"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	errspkg "github.com/drblury/reportflow/internal/runtime/errors"
	jsoncodec "github.com/drblury/reportflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/reportflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/reportflow/internal/runtime/metadata"
)

// Headers are the well-known reporting headers parsed from metadata.
type Headers struct {
	Username     string
	ProjectName  string
	ProjectID    int64
	LaunchID     string
	ItemID       string
	ParentItemID string
	BaseURL      string
}

// ParseHeaders reads the reporting headers from md. Absent or malformed
// numeric headers stay zero.
func ParseHeaders(md metadatapkg.Metadata) Headers {
	projectID, _ := md.Int64(metadatapkg.KeyProjectID)
	return Headers{
		Username:     md[metadatapkg.KeyUsername],
		ProjectName:  md[metadatapkg.KeyProjectName],
		ProjectID:    projectID,
		LaunchID:     md[metadatapkg.KeyLaunchID],
		ItemID:       md[metadatapkg.KeyItemID],
		ParentItemID: md[metadatapkg.KeyParentItemID],
		BaseURL:      md[metadatapkg.KeyBaseURL],
	}
}

// Request is the decoded view of one reporting message handed to typed handlers.
type Request[T any] struct {
	Payload  T
	Headers  Headers
	Metadata metadatapkg.Metadata
	Logger   loggingpkg.ServiceLogger
}

// CorrelationID returns the correlation id header, if present.
func (r Request[T]) CorrelationID() string {
	return r.Metadata[metadatapkg.KeyCorrelationID]
}

// TypedHandler processes one decoded request.
type TypedHandler[T any] func(ctx context.Context, req Request[T]) error

// JSONHandler decodes the payload into a fresh T before calling fn. T must be
// a pointer type.
func JSONHandler[T any](fn TypedHandler[T], logger loggingpkg.ServiceLogger) (MessageHandler, error) {
	if fn == nil {
		return nil, errspkg.ErrHandlerRequired
	}
	newPayload, err := jsonPrototypeFactory[T]()
	if err != nil {
		return nil, err
	}
	logger = loggingpkg.OrNop(logger)

	return MessageHandlerFunc(func(msg *message.Message) error {
		if len(msg.Payload) == 0 {
			return errspkg.ErrPayloadRequired
		}
		typed := newPayload()
		if err := jsoncodec.Unmarshal(msg.Payload, typed); err != nil {
			return fmt.Errorf("failed to unmarshal JSON payload: %w", err)
		}
		return fn(msg.Context(), newRequest(typed, msg, logger))
	}), nil
}

// ProtoHandler decodes a protojson payload into a clone of prototype before
// calling fn.
func ProtoHandler[T proto.Message](prototype T, fn TypedHandler[T], logger loggingpkg.ServiceLogger) (MessageHandler, error) {
	if fn == nil {
		return nil, errspkg.ErrHandlerRequired
	}
	if isNilProto(prototype) {
		return nil, errspkg.ErrPayloadTypeRequired
	}
	logger = loggingpkg.OrNop(logger)

	return MessageHandlerFunc(func(msg *message.Message) error {
		typed, err := clonePrototype(prototype)
		if err != nil {
			return err
		}
		if err := protojson.Unmarshal(msg.Payload, typed); err != nil {
			return fmt.Errorf("failed to unmarshal %T payload: %w", prototype, err)
		}
		return fn(msg.Context(), newRequest(typed, msg, logger))
	}), nil
}

func newRequest[T any](payload T, msg *message.Message, logger loggingpkg.ServiceLogger) Request[T] {
	md := metadatapkg.FromWatermill(msg.Metadata)
	return Request[T]{
		Payload:  payload,
		Headers:  ParseHeaders(md),
		Metadata: md,
		Logger: logger.With(loggingpkg.LogFields{
			"message_uuid": msg.UUID,
			"request_type": md[metadatapkg.KeyRequestType],
		}),
	}
}

func jsonPrototypeFactory[T any]() (func() T, error) {
	var zero T
	typ := reflect.TypeOf(zero)
	if typ == nil {
		return nil, errspkg.ErrPayloadTypeRequired
	}
	if typ.Kind() != reflect.Ptr {
		return nil, errspkg.ErrPayloadPointerRequired
	}
	elem := typ.Elem()
	return func() T {
		return reflect.New(elem).Interface().(T)
	}, nil
}

func clonePrototype[T proto.Message](prototype T) (T, error) {
	cloned := proto.Clone(prototype)
	proto.Reset(cloned)
	typed, ok := cloned.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("unexpected prototype type %T", cloned)
	}
	return typed, nil
}

func isNilProto[T proto.Message](prototype T) bool {
	msg := proto.Message(prototype)
	if msg == nil {
		return true
	}
	val := reflect.ValueOf(msg)
	switch val.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func:
		return val.IsNil()
	default:
		return false
	}
}
