package reporting

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	errspkg "github.com/drblury/reportflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/reportflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/reportflow/internal/runtime/metadata"
	"github.com/drblury/reportflow/internal/runtime/metrics"
	"github.com/drblury/reportflow/internal/runtime/multicaster"
)

const tracerName = "github.com/drblury/reportflow/reporting"

// DefaultMaxRedeliveries is the redelivery count after which a message is
// parked instead of dispatched.
const DefaultMaxRedeliveries = 10

// DefaultParkingLotQueue receives messages that exceeded the redelivery limit.
const DefaultParkingLotQueue = "q.parkingLot.reporting"

// UnknownTypePolicy decides what happens to a message whose tag has no handler.
type UnknownTypePolicy string

const (
	// DropUnknown acknowledges the message without dispatching it.
	DropUnknown UnknownTypePolicy = "drop"
	// RejectUnknown fails the message with an UnprocessableMessageError.
	RejectUnknown UnknownTypePolicy = "reject"
)

// ParseUnknownTypePolicy accepts "drop" and "reject"; empty means drop.
func ParseUnknownTypePolicy(raw string) (UnknownTypePolicy, error) {
	switch UnknownTypePolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", DropUnknown:
		return DropUnknown, nil
	case RejectUnknown:
		return RejectUnknown, nil
	default:
		return "", fmt.Errorf("unknown request type policy %q", raw)
	}
}

// UnprocessableMessageError marks a message that must not be requeued. The
// router's poison middleware filters on it.
type UnprocessableMessageError struct {
	MessageUUID string
	RequestType string
	Err         error
}

func (e *UnprocessableMessageError) Error() string {
	return fmt.Sprintf("unprocessable %s message %s: %v", e.RequestType, e.MessageUUID, e.Err)
}

func (e *UnprocessableMessageError) Unwrap() error { return e.Err }

// IsUnprocessable reports whether err carries an UnprocessableMessageError.
func IsUnprocessable(err error) bool {
	var target *UnprocessableMessageError
	return errors.As(err, &target)
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithLogger sets the consumer logger.
func WithLogger(log loggingpkg.ServiceLogger) ConsumerOption {
	return func(c *Consumer) { c.logger = log }
}

// WithUnknownTypePolicy selects drop or reject for lookup misses.
func WithUnknownTypePolicy(p UnknownTypePolicy) ConsumerOption {
	return func(c *Consumer) { c.policy = p }
}

// WithParkingLot enables the redelivery limit. Messages whose
// metadata.KeyDeathCount exceeds maxRedeliveries are republished to queue
// and acknowledged. A maxRedeliveries of zero selects DefaultMaxRedeliveries.
func WithParkingLot(publisher message.Publisher, queue string, maxRedeliveries int) ConsumerOption {
	return func(c *Consumer) {
		c.parking = publisher
		c.parkingQueue = queue
		c.maxRedeliveries = maxRedeliveries
	}
}

// WithRegisterer enables routing metrics on reg.
func WithRegisterer(reg prometheus.Registerer) ConsumerOption {
	return func(c *Consumer) { c.registerer = reg }
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) ConsumerOption {
	return func(c *Consumer) { c.tracerProvider = tp }
}

// Consumer routes each inbound message to the handler registered for its tag.
// It is safe for concurrent use by several transport workers.
type Consumer struct {
	provider        HandlerProvider
	logger          loggingpkg.ServiceLogger
	policy          UnknownTypePolicy
	parking         message.Publisher
	parkingQueue    string
	maxRedeliveries int
	registerer      prometheus.Registerer
	tracerProvider  trace.TracerProvider

	tracer   trace.Tracer
	messages *prometheus.CounterVec
}

// NewConsumer builds a Consumer over provider.
func NewConsumer(provider HandlerProvider, opts ...ConsumerOption) (*Consumer, error) {
	if provider == nil {
		return nil, errspkg.ErrProviderRequired
	}
	c := &Consumer{provider: provider, policy: DropUnknown}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = loggingpkg.OrNop(c.logger)
	if c.policy != DropUnknown && c.policy != RejectUnknown {
		return nil, fmt.Errorf("unknown request type policy %q", c.policy)
	}
	if c.parking != nil {
		if c.parkingQueue == "" {
			c.parkingQueue = DefaultParkingLotQueue
		}
		if c.maxRedeliveries <= 0 {
			c.maxRedeliveries = DefaultMaxRedeliveries
		}
	}
	if c.tracerProvider == nil {
		c.tracerProvider = otel.GetTracerProvider()
	}
	c.tracer = c.tracerProvider.Tracer(tracerName)
	if c.registerer != nil {
		counter, err := metrics.Register(c.registerer, metrics.NewCounterVec("reporting",
			"messages_total", "Reporting messages by request type and routing outcome.",
			"request_type", "outcome"))
		if err != nil {
			return nil, err
		}
		c.messages = counter
	}
	return c, nil
}

// Handler exposes OnMessage as a Watermill consumer handler.
func (c *Consumer) Handler() message.NoPublishHandlerFunc {
	return c.OnMessage
}

// OnMessage reads the tag, resolves the handler and delegates. A lookup miss
// is dropped or rejected according to the policy. A handler failure is
// returned as an UnprocessableMessageError.
func (c *Consumer) OnMessage(msg *message.Message) error {
	raw := msg.Metadata.Get(metadatapkg.KeyRequestType)
	ctx, span := c.tracer.Start(msg.Context(), "reporting.OnMessage", trace.WithAttributes(
		attribute.String("message.uuid", msg.UUID),
		attribute.String("request_type", raw),
	))
	defer span.End()
	msg.SetContext(ctx)

	log := c.logger.With(loggingpkg.LogFields{
		"message_uuid": msg.UUID,
		"request_type": raw,
	})

	if parked, err := c.parkIfExhausted(msg, log); parked || err != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "parking failed")
		}
		return err
	}

	if raw == "" {
		return c.miss(msg, raw, errspkg.ErrRequestTypeMissing, log, span)
	}
	rt, ok := ParseRequestType(raw)
	if !ok {
		return c.miss(msg, raw, errspkg.ErrUnknownRequestType, log, span)
	}
	handler, ok := c.provider.ProvideHandler(rt)
	if !ok || handler == nil {
		return c.miss(msg, raw, errspkg.ErrUnknownRequestType, log, span)
	}

	err := multicaster.SafeCall(func() error { return handler.HandleMessage(msg) })
	if err != nil {
		c.count(rt.String(), metrics.OutcomeFailure)
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler failed")
		log.Error("Reporting handler failed", err, nil)
		return &UnprocessableMessageError{MessageUUID: msg.UUID, RequestType: rt.String(), Err: err}
	}
	c.count(rt.String(), metrics.OutcomeDispatched)
	return nil
}

func (c *Consumer) miss(msg *message.Message, raw string, cause error, log loggingpkg.ServiceLogger, span trace.Span) error {
	label := labelFor(msg)
	if c.policy == RejectUnknown {
		c.count(label, metrics.OutcomeRejected)
		span.SetStatus(codes.Error, cause.Error())
		log.Error("Rejecting reporting message without handler", cause, nil)
		return &UnprocessableMessageError{MessageUUID: msg.UUID, RequestType: raw, Err: cause}
	}
	c.count(label, metrics.OutcomeDropped)
	log.Info("Dropping reporting message without handler", loggingpkg.LogFields{"reason": cause.Error()})
	return nil
}

func (c *Consumer) parkIfExhausted(msg *message.Message, log loggingpkg.ServiceLogger) (bool, error) {
	if c.parking == nil {
		return false, nil
	}
	deaths, _ := metadatapkg.FromWatermill(msg.Metadata).Int64(metadatapkg.KeyDeathCount)
	if deaths <= int64(c.maxRedeliveries) {
		return false, nil
	}

	parked := msg.Copy()
	parked.Metadata.Set(metadatapkg.KeyParkedReason, errspkg.ErrRetryLimitExceeded.Error())
	if err := c.parking.Publish(c.parkingQueue, parked); err != nil {
		return false, fmt.Errorf("park message %s: %w", msg.UUID, err)
	}
	c.count(labelFor(msg), metrics.OutcomeParked)
	log.Info("Message exceeded redelivery limit and was parked", loggingpkg.LogFields{
		"redeliveries": deaths,
		"queue":        c.parkingQueue,
	})
	return true, nil
}

// labelFor keeps the request_type label inside the closed tag set.
func labelFor(msg *message.Message) string {
	if rt, ok := ParseRequestType(msg.Metadata.Get(metadatapkg.KeyRequestType)); ok {
		return rt.String()
	}
	return "unknown"
}

func (c *Consumer) count(requestType, outcome string) {
	if c.messages == nil {
		return
	}
	c.messages.WithLabelValues(requestType, outcome).Inc()
}
