// Package multicaster delivers published events to every subscriber registered
// for the event's concrete type.
//
// Subscribers are registered on a Builder during composition. Build freezes the
// registry: the resulting Multicaster is immutable and safe for concurrent
// Publish calls without locking. A failing or panicking subscriber is reported
// to the ErrorHandler and never prevents delivery to its siblings.
package multicaster

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	errspkg "github.com/drblury/reportflow/internal/runtime/errors"
	"github.com/drblury/reportflow/internal/runtime/events"
	loggingpkg "github.com/drblury/reportflow/internal/runtime/logging"
)

const tracerName = "github.com/drblury/reportflow/multicaster"

// Handler handles one event type. Name identifies the subscriber in error
// records, logs and metrics.
type Handler[E events.Event] interface {
	Name() string
	Handle(ctx context.Context, ev E) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc[E events.Event] struct {
	ID string
	Fn func(ctx context.Context, ev E) error
}

func (h HandlerFunc[E]) Name() string { return h.ID }

func (h HandlerFunc[E]) Handle(ctx context.Context, ev E) error { return h.Fn(ctx, ev) }

// SubscribeOption tunes a single subscription.
type SubscribeOption func(*subscription)

// WithOrder places the subscriber relative to its siblings. Lower values run
// first; subscribers sharing a value keep registration order. The default is 0.
func WithOrder(order int) SubscribeOption {
	return func(s *subscription) { s.order = order }
}

type subscription struct {
	name   string
	order  int
	seq    int
	invoke func(ctx context.Context, ev events.Event) error
}

// Option configures a Builder.
type Option func(*Builder)

// WithErrorHandler replaces the default logging error handler.
func WithErrorHandler(h ErrorHandler) Option {
	return func(b *Builder) { b.errorHandler = h }
}

// WithExecutor selects synchronous or pooled delivery.
func WithExecutor(e Executor) Option {
	return func(b *Builder) { b.executor = e }
}

// WithLogger sets the logger used by the default error handler and for
// executor rejections.
func WithLogger(log loggingpkg.ServiceLogger) Option {
	return func(b *Builder) { b.logger = log }
}

// WithMetrics records delivery outcomes.
func WithMetrics(m *Metrics) Option {
	return func(b *Builder) { b.metrics = m }
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(b *Builder) { b.tracerProvider = tp }
}

// Builder collects subscriptions before the multicaster is frozen.
type Builder struct {
	subs           map[reflect.Type][]subscription
	seq            int
	built          bool
	errorHandler   ErrorHandler
	executor       Executor
	logger         loggingpkg.ServiceLogger
	metrics        *Metrics
	tracerProvider trace.TracerProvider
}

// NewBuilder returns an empty Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{subs: make(map[reflect.Type][]subscription)}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers h for events of concrete type E.
func Subscribe[E events.Event](b *Builder, h Handler[E], opts ...SubscribeOption) error {
	if b == nil {
		return errspkg.ErrServiceRequired
	}
	if b.built {
		return errspkg.ErrMulticasterBuilt
	}
	if h == nil {
		return errspkg.ErrSubscriberRequired
	}
	if h.Name() == "" {
		return errspkg.ErrNameRequired
	}
	typ := reflect.TypeFor[E]()
	if typ.Kind() == reflect.Interface {
		return fmt.Errorf("%w: %s", errspkg.ErrConcreteEventType, typ)
	}

	sub := subscription{
		name: h.Name(),
		seq:  b.seq,
		invoke: func(ctx context.Context, ev events.Event) error {
			return h.Handle(ctx, ev.(E))
		},
	}
	for _, opt := range opts {
		opt(&sub)
	}
	b.seq++
	b.subs[typ] = append(b.subs[typ], sub)
	return nil
}

// SubscribeFunc registers fn under name for events of type E.
func SubscribeFunc[E events.Event](b *Builder, name string, fn func(ctx context.Context, ev E) error, opts ...SubscribeOption) error {
	if fn == nil {
		return errspkg.ErrSubscriberRequired
	}
	return Subscribe[E](b, HandlerFunc[E]{ID: name, Fn: fn}, opts...)
}

// Build freezes the registry. The Builder cannot be used afterwards.
func (b *Builder) Build() *Multicaster {
	b.built = true

	frozen := make(map[reflect.Type][]subscription, len(b.subs))
	for typ, subs := range b.subs {
		ordered := make([]subscription, len(subs))
		copy(ordered, subs)
		sort.SliceStable(ordered, func(i, j int) bool {
			if ordered[i].order != ordered[j].order {
				return ordered[i].order < ordered[j].order
			}
			return ordered[i].seq < ordered[j].seq
		})
		frozen[typ] = ordered
	}

	log := loggingpkg.OrNop(b.logger)
	errorHandler := b.errorHandler
	if errorHandler == nil {
		errorHandler = LoggingErrorHandler(log)
	}
	executor := b.executor
	if executor == nil {
		executor = SyncExecutor{}
	}
	tp := b.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	return &Multicaster{
		subs:         frozen,
		errorHandler: errorHandler,
		executor:     executor,
		logger:       log,
		metrics:      b.metrics,
		tracer:       tp.Tracer(tracerName),
	}
}

// Multicaster is the frozen dispatcher produced by Builder.Build.
type Multicaster struct {
	subs         map[reflect.Type][]subscription
	errorHandler ErrorHandler
	executor     Executor
	logger       loggingpkg.ServiceLogger
	metrics      *Metrics
	tracer       trace.Tracer
}

// Publish delivers ev to every subscriber of its type. It never reports
// subscriber failures to the caller; they reach the ErrorHandler instead.
func (m *Multicaster) Publish(ctx context.Context, ev events.Event) {
	if ev == nil {
		return
	}
	subs := m.subs[reflect.TypeOf(ev)]
	if len(subs) == 0 {
		return
	}

	err := m.executor.Execute(ctx, func(ctx context.Context) {
		m.deliver(ctx, ev, subs)
	})
	if err != nil {
		m.errorHandler.HandleError(ctx, ErrorRecord{Subscriber: "executor", Event: ev, Err: err})
	}
}

// SubscriberNames lists the subscribers of ev's type in delivery order.
func (m *Multicaster) SubscriberNames(ev events.Event) []string {
	subs := m.subs[reflect.TypeOf(ev)]
	names := make([]string, len(subs))
	for i, s := range subs {
		names[i] = s.name
	}
	return names
}

func (m *Multicaster) deliver(ctx context.Context, ev events.Event, subs []subscription) {
	name := events.Name(ev)
	ctx, span := m.tracer.Start(ctx, "multicaster.Publish", trace.WithAttributes(
		attribute.String("event.name", name),
		attribute.Int("event.subscribers", len(subs)),
	))
	defer span.End()

	failures := 0
	for _, sub := range subs {
		start := time.Now()
		err := SafeCall(func() error { return sub.invoke(ctx, ev) })
		m.metrics.observe(name, sub.name, err, time.Since(start))
		if err != nil {
			failures++
			span.RecordError(err, trace.WithAttributes(attribute.String("subscriber", sub.name)))
			m.errorHandler.HandleError(ctx, ErrorRecord{Subscriber: sub.name, Event: ev, Err: err})
		}
	}
	if failures > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d of %d subscribers failed", failures, len(subs)))
	}
}
