// Package delegating bridges multicaster delivery to project-aware handlers.
//
// A Subscriber fetches the project configuration once per event and hands the
// same map to each ConfigurableHandler, sequentially and in registration
// order. A failing handler is reported and skipped; a failing configuration
// fetch abandons the whole fan-out and is returned to the multicaster.
package delegating

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	errspkg "github.com/drblury/reportflow/internal/runtime/errors"
	"github.com/drblury/reportflow/internal/runtime/events"
	loggingpkg "github.com/drblury/reportflow/internal/runtime/logging"
	"github.com/drblury/reportflow/internal/runtime/metrics"
	"github.com/drblury/reportflow/internal/runtime/multicaster"
	"github.com/drblury/reportflow/internal/runtime/projectconfig"
)

const tracerName = "github.com/drblury/reportflow/delegating"

// ConfigurableHandler handles one event together with the configuration of
// the event's project.
type ConfigurableHandler[E events.ProjectEvent] interface {
	Name() string
	Handle(ctx context.Context, ev E, config map[string]string) error
}

// HandlerFunc adapts a function to ConfigurableHandler.
type HandlerFunc[E events.ProjectEvent] struct {
	ID string
	Fn func(ctx context.Context, ev E, config map[string]string) error
}

func (h HandlerFunc[E]) Name() string { return h.ID }

func (h HandlerFunc[E]) Handle(ctx context.Context, ev E, config map[string]string) error {
	return h.Fn(ctx, ev, config)
}

// ConfigFetchError is returned when the shared configuration lookup fails.
type ConfigFetchError struct {
	ProjectID int64
	Err       error
}

func (e *ConfigFetchError) Error() string {
	return fmt.Sprintf("fetch configuration of project %d: %v", e.ProjectID, e.Err)
}

func (e *ConfigFetchError) Unwrap() []error {
	return []error{errspkg.ErrProjectConfigFetch, e.Err}
}

// Option configures a Subscriber.
type Option func(*options)

type options struct {
	logger         loggingpkg.ServiceLogger
	errorHandler   multicaster.ErrorHandler
	registerer     prometheus.Registerer
	tracerProvider trace.TracerProvider
}

// WithLogger sets the logger used for isolated handler failures.
func WithLogger(log loggingpkg.ServiceLogger) Option {
	return func(o *options) { o.logger = log }
}

// WithErrorHandler shares the process-wide error sink with the multicaster.
// Without it handler failures go to a LoggingErrorHandler on the subscriber's
// logger.
func WithErrorHandler(h multicaster.ErrorHandler) Option {
	return func(o *options) { o.errorHandler = h }
}

// WithRegisterer enables fan-out metrics on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// Subscriber is a multicaster.Handler that fans out to configurable handlers.
type Subscriber[E events.ProjectEvent] struct {
	name         string
	provider     projectconfig.Provider
	handlers     []ConfigurableHandler[E]
	logger       loggingpkg.ServiceLogger
	errorHandler multicaster.ErrorHandler
	handled      *prometheus.CounterVec
	tracer       trace.Tracer
}

// NewSubscriber builds a Subscriber. The handler list is copied and fixed for
// the Subscriber's lifetime.
func NewSubscriber[E events.ProjectEvent](name string, provider projectconfig.Provider, handlers []ConfigurableHandler[E], opts ...Option) (*Subscriber[E], error) {
	if name == "" {
		return nil, errspkg.ErrNameRequired
	}
	if provider == nil {
		return nil, errspkg.ErrProviderRequired
	}
	for _, h := range handlers {
		if h == nil {
			return nil, errspkg.ErrHandlerRequired
		}
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	log := loggingpkg.OrNop(o.logger).With(loggingpkg.LogFields{"subscriber": name})
	tp := o.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	errorHandler := o.errorHandler
	if errorHandler == nil {
		errorHandler = multicaster.LoggingErrorHandler(log)
	}

	s := &Subscriber[E]{
		name:         name,
		provider:     provider,
		handlers:     append([]ConfigurableHandler[E](nil), handlers...),
		logger:       log,
		errorHandler: errorHandler,
		tracer:       tp.Tracer(tracerName),
	}
	if o.registerer != nil {
		handled, err := metrics.Register(o.registerer, metrics.NewCounterVec("delegating",
			"handler_invocations_total", "Configurable handler invocations by outcome.",
			"subscriber", "handler", "outcome"))
		if err != nil {
			return nil, err
		}
		s.handled = handled
	}
	return s, nil
}

func (s *Subscriber[E]) Name() string { return s.name }

// Handle resolves the project configuration of ev and runs every handler.
// Only a configuration failure is returned; handler failures are reported to
// the error handler.
func (s *Subscriber[E]) Handle(ctx context.Context, ev E) error {
	projectID := ev.ProjectID()
	ctx, span := s.tracer.Start(ctx, "delegating.Handle", trace.WithAttributes(
		attribute.String("subscriber", s.name),
		attribute.String("event.name", events.Name(ev)),
		attribute.Int64("project.id", projectID),
	))
	defer span.End()

	if projectID <= 0 {
		err := &ConfigFetchError{ProjectID: projectID, Err: errspkg.ErrProjectIDRequired}
		s.abort(span, err)
		return err
	}

	config, err := s.provider.Provide(ctx, projectID)
	if err != nil {
		fetchErr := &ConfigFetchError{ProjectID: projectID, Err: err}
		s.abort(span, fetchErr)
		return fetchErr
	}
	if config == nil {
		config = map[string]string{}
	}

	for _, h := range s.handlers {
		s.invoke(ctx, h, ev, config)
	}
	return nil
}

func (s *Subscriber[E]) invoke(ctx context.Context, h ConfigurableHandler[E], ev E, config map[string]string) {
	start := time.Now()
	err := multicaster.SafeCall(func() error { return h.Handle(ctx, ev, config) })
	s.count(h.Name(), err)
	if err == nil {
		s.logger.Trace("Configurable handler finished", loggingpkg.LogFields{
			"handler":  h.Name(),
			"duration": time.Since(start),
		})
		return
	}

	s.errorHandler.HandleError(ctx, multicaster.ErrorRecord{
		Subscriber: s.name + "/" + h.Name(),
		Event:      ev,
		Err:        err,
	})
}

func (s *Subscriber[E]) abort(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, "project configuration unavailable")
	if s.handled != nil {
		s.handled.WithLabelValues(s.name, "", metrics.OutcomeAborted).Inc()
	}
}

func (s *Subscriber[E]) count(handler string, err error) {
	if s.handled == nil {
		return
	}
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailure
	}
	s.handled.WithLabelValues(s.name, handler, outcome).Inc()
}
