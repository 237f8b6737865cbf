package reportflow

import (
	"context"

	runtimepkg "github.com/drblury/reportflow/internal/runtime"
	configpkg "github.com/drblury/reportflow/internal/runtime/config"
	"github.com/drblury/reportflow/internal/runtime/delegating"
	errspkg "github.com/drblury/reportflow/internal/runtime/errors"
	"github.com/drblury/reportflow/internal/runtime/events"
	idspkg "github.com/drblury/reportflow/internal/runtime/ids"
	jsoncodec "github.com/drblury/reportflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/reportflow/internal/runtime/logging"
	metadatapkg "github.com/drblury/reportflow/internal/runtime/metadata"
	"github.com/drblury/reportflow/internal/runtime/multicaster"
	"github.com/drblury/reportflow/internal/runtime/pipeline"
	"github.com/drblury/reportflow/internal/runtime/projectconfig"
	"github.com/drblury/reportflow/internal/runtime/reporting"
	"github.com/drblury/reportflow/internal/runtime/strategy"
	transportpkg "github.com/drblury/reportflow/transport"
)

type (
	Config              = configpkg.Config
	Service             = runtimepkg.Service
	ServiceDependencies = runtimepkg.ServiceDependencies
	HandlerInfo         = runtimepkg.HandlerInfo
	Producer            = runtimepkg.Producer

	MessageHandlerRegistration = runtimepkg.MessageHandlerRegistration
	MiddlewareBuilder          = runtimepkg.MiddlewareBuilder
	MiddlewareRegistration     = runtimepkg.MiddlewareRegistration
	RetryMiddlewareConfig      = runtimepkg.RetryMiddlewareConfig

	Metadata = metadatapkg.Metadata

	LogFields     = loggingpkg.LogFields
	ServiceLogger = loggingpkg.ServiceLogger

	// Events
	Event            = events.Event
	ProjectEvent     = events.ProjectEvent
	LaunchStarted    = events.LaunchStarted
	LaunchFinished   = events.LaunchFinished
	LaunchStatistics = events.LaunchStatistics
	ItemFinished     = events.ItemFinished
	AnalysisFinished = events.AnalysisFinished

	// Event multicaster
	Multicaster           = multicaster.Multicaster
	MulticasterBuilder    = multicaster.Builder
	MulticasterOption     = multicaster.Option
	SubscribeOption       = multicaster.SubscribeOption
	EventHandler[E Event] = multicaster.Handler[E]
	Executor              = multicaster.Executor
	SyncExecutor          = multicaster.SyncExecutor
	PoolExecutor          = multicaster.PoolExecutor
	ErrorHandler          = multicaster.ErrorHandler
	ErrorRecord           = multicaster.ErrorRecord
	PanicError            = multicaster.PanicError

	// Project configuration
	ProjectConfigProvider = projectconfig.Provider
	StaticProjectConfig   = projectconfig.StaticProvider
	AnalyzerConfig        = projectconfig.AnalyzerConfig

	ConfigurableHandler[E ProjectEvent]     = delegating.ConfigurableHandler[E]
	ConfigurableHandlerFunc[E ProjectEvent] = delegating.HandlerFunc[E]
	DelegatingSubscriber[E ProjectEvent]    = delegating.Subscriber[E]
	DelegatingOption                        = delegating.Option
	ConfigFetchError                        = delegating.ConfigFetchError

	// Strategies and pipelines
	Evaluator[C any, S any]    = strategy.Evaluator[C, S]
	Resolver[C any, S any]     = strategy.Resolver[C, S]
	PipelinePart               = pipeline.Part
	PipelinePartFunc           = pipeline.PartFunc
	PartProvider[S any]        = pipeline.PartProvider[S]
	Pipeline                   = pipeline.Pipeline
	PipelineConstructor[S any] = pipeline.Constructor[S]

	// Reporting consumer
	RequestType                = reporting.RequestType
	ReportingConsumer          = reporting.Consumer
	ReportingConsumerOption    = reporting.ConsumerOption
	ReportingHandler           = reporting.MessageHandler
	ReportingHandlerFunc       = reporting.MessageHandlerFunc
	ReportingHandlerProvider   = reporting.HandlerProvider
	ReportingRequest[T any]    = reporting.Request[T]
	TypedRequestHandler[T any] = reporting.TypedHandler[T]
	UnknownTypePolicy          = reporting.UnknownTypePolicy
	QueueSelector              = reporting.QueueSelector

	// Transports
	TransportBuilder      = transportpkg.Builder
	TransportConfig       = transportpkg.Config
	TransportRegistry     = transportpkg.Registry
	TransportCapabilities = transportpkg.Capabilities
)

var (
	NewService     = runtimepkg.NewService
	LoadConfig     = configpkg.Load
	ValidateConfig = configpkg.ValidateConfig

	RegisterMessageHandler    = runtimepkg.RegisterMessageHandler
	RegisterReportingConsumer = runtimepkg.RegisterReportingConsumer

	DefaultMiddlewares      = runtimepkg.DefaultMiddlewares
	CorrelationIDMiddleware = runtimepkg.CorrelationIDMiddleware
	DeliveryCountMiddleware = runtimepkg.DeliveryCountMiddleware
	LogMessagesMiddleware   = runtimepkg.LogMessagesMiddleware
	TracerMiddleware        = runtimepkg.TracerMiddleware
	MetricsMiddleware       = runtimepkg.MetricsMiddleware
	RetryMiddleware         = runtimepkg.RetryMiddleware
	PoisonQueueMiddleware   = runtimepkg.PoisonQueueMiddleware
	RecovererMiddleware     = runtimepkg.RecovererMiddleware

	NewMulticasterBuilder   = multicaster.NewBuilder
	NewPoolExecutor         = multicaster.NewPoolExecutor
	WithExecutor            = multicaster.WithExecutor
	WithErrorHandler        = multicaster.WithErrorHandler
	WithOrder               = multicaster.WithOrder
	LoggingErrorHandler     = multicaster.LoggingErrorHandler
	ChainErrorHandlers      = multicaster.ChainErrorHandlers
	NewSQLProjectConfig     = projectconfig.NewSQLProvider
	NewCachingProjectConfig = projectconfig.NewCachingProvider
	NewBreakerProjectConfig = projectconfig.NewBreakerProvider
	AnalyzerConfigFrom      = projectconfig.AnalyzerConfigFrom
	ProjectConfigBool       = projectconfig.Bool

	WithDelegatingErrorHandler = delegating.WithErrorHandler
	WithDelegatingLogger       = delegating.WithLogger

	NewReportingConsumer  = reporting.NewConsumer
	NewMapHandlerProvider = reporting.NewMapHandlerProvider
	ParseRequestType      = reporting.ParseRequestType
	NewRequestMessage     = reporting.NewRequestMessage
	NewQueueSelector      = reporting.NewQueueSelector
	IsUnprocessable       = reporting.IsUnprocessable

	DefaultTransportRegistry = transportpkg.DefaultRegistry
	RegisterTransport        = transportpkg.Register
	BuildTransport           = transportpkg.Build
	GetCapabilities          = transportpkg.GetCapabilities

	Marshal   = jsoncodec.Marshal
	Unmarshal = jsoncodec.Unmarshal

	ErrServiceRequired       = errspkg.ErrServiceRequired
	ErrConfigRequired        = errspkg.ErrConfigRequired
	ErrLoggerRequired        = errspkg.ErrLoggerRequired
	ErrPublisherRequired     = errspkg.ErrPublisherRequired
	ErrHandlerRequired       = errspkg.ErrHandlerRequired
	ErrProviderRequired      = errspkg.ErrProviderRequired
	ErrEventRequired         = errspkg.ErrEventRequired
	ErrProjectConfigFetch    = errspkg.ErrProjectConfigFetch
	ErrProjectConfigDisabled = errspkg.ErrProjectConfigDisabled
	ErrUnknownRequestType    = errspkg.ErrUnknownRequestType
	ErrRetryLimitExceeded    = errspkg.ErrRetryLimitExceeded
	ErrExecutorClosed        = errspkg.ErrExecutorClosed
	ErrMulticasterBuilt      = errspkg.ErrMulticasterBuilt

	NewSlogServiceLogger = loggingpkg.NewSlogServiceLogger
	NewNopServiceLogger  = loggingpkg.NewNopServiceLogger

	NewMetadata = metadatapkg.New

	CreateULID = idspkg.CreateULID
)

// Request types carried in the requestType header.
const (
	StartLaunch  = reporting.StartLaunch
	FinishLaunch = reporting.FinishLaunch
	StartTest    = reporting.StartTest
	FinishTest   = reporting.FinishTest
	Log          = reporting.Log
)

// Unknown request type policies.
const (
	DropUnknown   = reporting.DropUnknown
	RejectUnknown = reporting.RejectUnknown
)

// Metadata keys - use these constants for standard reporting headers.
const (
	MetadataKeyRequestType   = metadatapkg.KeyRequestType
	MetadataKeyCorrelationID = metadatapkg.KeyCorrelationID
	MetadataKeyProjectID     = metadatapkg.KeyProjectID
	MetadataKeyProjectName   = metadatapkg.KeyProjectName
	MetadataKeyUsername      = metadatapkg.KeyUsername
	MetadataKeyLaunchID      = metadatapkg.KeyLaunchID
	MetadataKeyLaunchUUID    = metadatapkg.KeyLaunchUUID
	MetadataKeyDeathCount    = metadatapkg.KeyDeathCount
)

func Subscribe[E Event](b *MulticasterBuilder, h EventHandler[E], opts ...SubscribeOption) error {
	return multicaster.Subscribe[E](b, h, opts...)
}

func SubscribeFunc[E Event](b *MulticasterBuilder, name string, fn func(ctx context.Context, ev E) error, opts ...SubscribeOption) error {
	return multicaster.SubscribeFunc[E](b, name, fn, opts...)
}

func NewDelegatingSubscriber[E ProjectEvent](name string, provider ProjectConfigProvider, handlers []ConfigurableHandler[E], opts ...DelegatingOption) (*DelegatingSubscriber[E], error) {
	return delegating.NewSubscriber[E](name, provider, handlers, opts...)
}

// NewServiceDelegatingSubscriber builds a delegating subscriber that reports
// handler failures to svc's error handler.
func NewServiceDelegatingSubscriber[E ProjectEvent](svc *Service, name string, provider ProjectConfigProvider, handlers []ConfigurableHandler[E], opts ...DelegatingOption) (*DelegatingSubscriber[E], error) {
	return runtimepkg.NewDelegatingSubscriber[E](svc, name, provider, handlers, opts...)
}

func NewResolver[C any, S any](evals ...Evaluator[C, S]) (*Resolver[C, S], error) {
	return strategy.NewResolver[C, S](evals...)
}

func NewPipelineConstructor[S any](log ServiceLogger, providers ...PartProvider[S]) (*PipelineConstructor[S], error) {
	return pipeline.NewConstructor[S](log, providers...)
}

// JSONHandler adapts fn into a reporting handler decoding JSON payloads into T.
// T must be a pointer type.
func JSONHandler[T any](fn TypedRequestHandler[T], logger ServiceLogger) (ReportingHandler, error) {
	return reporting.JSONHandler[T](fn, logger)
}
