package runtime

import (
	"context"
	"strings"

	configpkg "github.com/drblury/reportflow/internal/runtime/config"
	"github.com/drblury/reportflow/internal/runtime/delegating"
	errspkg "github.com/drblury/reportflow/internal/runtime/errors"
	"github.com/drblury/reportflow/internal/runtime/events"
	loggingpkg "github.com/drblury/reportflow/internal/runtime/logging"
	"github.com/drblury/reportflow/internal/runtime/multicaster"
	"github.com/drblury/reportflow/internal/runtime/projectconfig"
)

// ErrorHandler returns the sink shared by every multicaster and delegating
// subscriber the service builds.
func (s *Service) ErrorHandler() multicaster.ErrorHandler {
	return s.errorHandler
}

// NewMulticasterBuilder returns a builder preloaded with the service logger,
// error handler, metrics registry and tracer. In async mode delivery runs on a worker pool
// that is drained when the service closes. opts are applied last.
func (s *Service) NewMulticasterBuilder(opts ...multicaster.Option) (*multicaster.Builder, error) {
	if s == nil {
		return nil, errspkg.ErrServiceRequired
	}
	m, err := multicaster.NewMetrics(s.registerer)
	if err != nil {
		return nil, err
	}

	var executor multicaster.Executor = multicaster.SyncExecutor{}
	if strings.EqualFold(s.Conf.MulticasterMode, configpkg.MulticasterAsync) {
		pool := multicaster.NewPoolExecutor(s.Conf.MulticasterWorkers, s.Conf.MulticasterQueueSize)
		s.onClose(pool)
		executor = pool
	}

	base := []multicaster.Option{
		multicaster.WithExecutor(executor),
		multicaster.WithErrorHandler(s.errorHandler),
		multicaster.WithLogger(s.Logger),
		multicaster.WithMetrics(m),
		multicaster.WithTracerProvider(s.tracerProvider),
	}
	return multicaster.NewBuilder(append(base, opts...)...), nil
}

// NewDelegatingSubscriber builds a delegating subscriber that reports handler
// failures to the service error handler and counts fan-out on the service
// registry. opts are applied last.
func NewDelegatingSubscriber[E events.ProjectEvent](s *Service, name string, provider projectconfig.Provider, handlers []delegating.ConfigurableHandler[E], opts ...delegating.Option) (*delegating.Subscriber[E], error) {
	if s == nil {
		return nil, errspkg.ErrServiceRequired
	}
	base := []delegating.Option{
		delegating.WithErrorHandler(s.errorHandler),
		delegating.WithLogger(s.Logger),
		delegating.WithRegisterer(s.registerer),
		delegating.WithTracerProvider(s.tracerProvider),
	}
	return delegating.NewSubscriber(name, provider, handlers, append(base, opts...)...)
}

// ProjectConfigProvider opens the configured attribute store. The handle is
// closed with the service. Reads go through a circuit breaker when
// ProjectConfigBreakerFailures is set and through a TTL cache when
// ProjectConfigCacheTTL is set; the cache sits in front of the breaker.
func (s *Service) ProjectConfigProvider(ctx context.Context) (projectconfig.Provider, error) {
	if s == nil {
		return nil, errspkg.ErrServiceRequired
	}
	if s.Conf.ProjectConfigDriver == "" {
		return nil, errspkg.ErrProjectConfigDisabled
	}

	db, err := projectconfig.OpenSQL(ctx, s.Conf.ProjectConfigDriver, s.Conf.ProjectConfigDSN, s.Conf.ProjectConfigTimeout)
	if err != nil {
		return nil, err
	}
	s.onClose(db)

	var provider projectconfig.Provider = projectconfig.NewSQLProvider(db,
		projectconfig.WithTimeout(s.Conf.ProjectConfigTimeout))
	if s.Conf.ProjectConfigBreakerFailures > 0 {
		provider = projectconfig.NewBreakerProvider(provider, projectconfig.BreakerSettings{
			ConsecutiveFailures: s.Conf.ProjectConfigBreakerFailures,
			OpenTimeout:         s.Conf.ProjectConfigBreakerTimeout,
		})
	}
	if s.Conf.ProjectConfigCacheTTL > 0 {
		provider = projectconfig.NewCachingProvider(provider, s.Conf.ProjectConfigCacheTTL)
	}

	s.Logger.Info("Project config provider ready", loggingpkg.LogFields{
		"driver":    s.Conf.ProjectConfigDriver,
		"cache_ttl": s.Conf.ProjectConfigCacheTTL.String(),
		"breaker":   s.Conf.ProjectConfigBreakerFailures > 0,
	})
	return provider, nil
}
