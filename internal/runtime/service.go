package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/plugin"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	configpkg "github.com/drblury/reportflow/internal/runtime/config"
	errspkg "github.com/drblury/reportflow/internal/runtime/errors"
	loggingpkg "github.com/drblury/reportflow/internal/runtime/logging"
	"github.com/drblury/reportflow/internal/runtime/multicaster"
	"github.com/drblury/reportflow/internal/runtime/reporting"
	transportpkg "github.com/drblury/reportflow/transport"

	// Registers every built-in backend with the default registry.
	_ "github.com/drblury/reportflow/transport/transports"
)

var routerRun = func(router *message.Router, ctx context.Context) error {
	return router.Run(ctx)
}

// ServiceDependencies holds the optional collaborators that the Service can use.
type ServiceDependencies struct {
	// Middlewares are appended after the default middleware chain.
	Middlewares               []MiddlewareRegistration
	DisableDefaultMiddlewares bool

	// Transports selects backends by name. Nil uses the default registry.
	Transports *transportpkg.Registry

	Registerer     prometheus.Registerer
	TracerProvider trace.TracerProvider

	// ErrorHandler receives failures isolated by multicasters and delegating
	// subscribers built from the service. Nil logs them.
	ErrorHandler multicaster.ErrorHandler
}

// HandlerInfo describes one handler attached to the router.
type HandlerInfo struct {
	Name         string
	ConsumeQueue string
	PublishQueue string
}

// Service wires the transport, the Watermill router and the reporting queues.
type Service struct {
	Conf   *configpkg.Config
	Logger loggingpkg.ServiceLogger

	transport    transportpkg.Transport
	capabilities transportpkg.Capabilities
	publisher    message.Publisher
	subscriber   message.Subscriber
	router       *message.Router
	queues       reporting.QueueSelector

	registerer     prometheus.Registerer
	tracerProvider trace.TracerProvider
	errorHandler   multicaster.ErrorHandler

	handlers   []HandlerInfo
	handlersMu sync.RWMutex

	closers   []io.Closer
	closersMu sync.Mutex

	httpServers   map[int]*http.ServeMux
	httpServersMu sync.Mutex
}

// NewService validates conf, builds the configured transport and a router
// carrying the middleware chain. Register consumers before calling Start.
func NewService(conf *configpkg.Config, log loggingpkg.ServiceLogger, ctx context.Context, deps ServiceDependencies) (*Service, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if log == nil {
		return nil, errspkg.ErrLoggerRequired
	}
	resolved := conf.WithDefaults()
	if err := resolved.Validate(); err != nil {
		return nil, err
	}

	log.Info("Creating reporting service", loggingpkg.LogFields{
		"pubsub_system": resolved.PubSubSystem,
		"config":        resolved.String(),
	})

	registry := deps.Transports
	if registry == nil {
		registry = transportpkg.DefaultRegistry
	}
	wmLogger := loggingpkg.NewWatermillAdapter(log)
	tr, err := registry.Build(ctx, &resolved, wmLogger)
	if err != nil {
		return nil, err
	}
	caps, _ := registry.Capabilities(resolved.PubSubSystem)
	if !caps.SupportsReliableDelivery() {
		log.Info("Transport does not guarantee redelivery; failed reporting messages may be lost", loggingpkg.LogFields{
			"pubsub_system": resolved.PubSubSystem,
		})
	}

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		_ = tr.Close()
		return nil, err
	}
	router.AddPlugin(plugin.SignalsHandler)

	s := &Service{
		Conf:           &resolved,
		Logger:         log,
		transport:      tr,
		capabilities:   caps,
		publisher:      tr.Publisher,
		subscriber:     tr.Subscriber,
		router:         router,
		queues:         reporting.NewQueueSelector(resolved.ReportingQueue, resolved.ReportingQueueCount),
		registerer:     deps.Registerer,
		tracerProvider: deps.TracerProvider,
		errorHandler:   deps.ErrorHandler,
	}
	if s.errorHandler == nil {
		s.errorHandler = multicaster.LoggingErrorHandler(log)
	}
	if s.registerer == nil {
		s.registerer = prometheus.DefaultRegisterer
	}
	if s.tracerProvider == nil {
		s.tracerProvider = otel.GetTracerProvider()
	}

	if err := s.registerConfiguredMiddlewares(deps); err != nil {
		_ = tr.Close()
		return nil, err
	}
	return s, nil
}

// Start runs the underlying Watermill router until the provided context is cancelled.
func (s *Service) Start(ctx context.Context) error {
	s.startHTTPServers()
	return routerRun(s.router, ctx)
}

// Running is closed once every handler has subscribed.
func (s *Service) Running() chan struct{} {
	return s.router.Running()
}

// Close stops the router, then releases the transport and every resource the
// service opened on the caller's behalf.
func (s *Service) Close() error {
	errs := []error{s.router.Close()}

	s.closersMu.Lock()
	closers := s.closers
	s.closers = nil
	s.closersMu.Unlock()
	for i := len(closers) - 1; i >= 0; i-- {
		errs = append(errs, closers[i].Close())
	}

	errs = append(errs, s.transport.Close())
	return errors.Join(errs...)
}

// Publisher returns the transport publisher.
func (s *Service) Publisher() message.Publisher { return s.publisher }

// Subscriber returns the transport subscriber.
func (s *Service) Subscriber() message.Subscriber { return s.subscriber }

// Capabilities reports what the configured transport guarantees.
func (s *Service) Capabilities() transportpkg.Capabilities { return s.capabilities }

// Queues returns the reporting queue selector.
func (s *Service) Queues() reporting.QueueSelector { return s.queues }

// Handlers lists the handlers attached so far.
func (s *Service) Handlers() []HandlerInfo {
	s.handlersMu.RLock()
	defer s.handlersMu.RUnlock()
	out := make([]HandlerInfo, len(s.handlers))
	copy(out, s.handlers)
	return out
}

func (s *Service) onClose(c io.Closer) {
	s.closersMu.Lock()
	defer s.closersMu.Unlock()
	s.closers = append(s.closers, c)
}

func (s *Service) registerConfiguredMiddlewares(deps ServiceDependencies) error {
	var defaults []MiddlewareRegistration
	if !deps.DisableDefaultMiddlewares {
		defaults = DefaultMiddlewares()
	}
	registrations := make([]MiddlewareRegistration, 0, len(defaults)+len(deps.Middlewares))
	registrations = append(registrations, defaults...)
	registrations = append(registrations, deps.Middlewares...)

	for _, reg := range registrations {
		if err := s.RegisterMiddleware(reg); err != nil {
			name := reg.Name
			if name == "" {
				name = "anonymous_middleware"
			}
			return fmt.Errorf("register middleware %s: %w", name, err)
		}
	}
	return nil
}

// RegisterHTTPHandler mounts handler on the server listening on port. Servers
// start with the service.
func (s *Service) RegisterHTTPHandler(port int, pattern string, handler http.Handler) {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	if s.httpServers == nil {
		s.httpServers = make(map[int]*http.ServeMux)
	}
	mux, ok := s.httpServers[port]
	if !ok {
		mux = http.NewServeMux()
		s.httpServers[port] = mux
	}
	mux.Handle(pattern, handler)
}

func (s *Service) startHTTPServers() {
	s.httpServersMu.Lock()
	defer s.httpServersMu.Unlock()

	for port, mux := range s.httpServers {
		addr := fmt.Sprintf(":%d", port)
		s.Logger.Info("Starting HTTP server", loggingpkg.LogFields{"address": addr})
		go func(addr string, handler http.Handler) {
			if err := http.ListenAndServe(addr, handler); err != nil {
				s.Logger.Error("HTTP server stopped", err, loggingpkg.LogFields{"address": addr})
			}
		}(addr, mux)
	}
}
