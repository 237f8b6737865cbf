package errors

import sterrors "errors"

var (
	ErrServiceRequired    = sterrors.New("reportflow: service is required")
	ErrConfigRequired     = sterrors.New("reportflow: configuration is required")
	ErrLoggerRequired     = sterrors.New("reportflow: logger is required")
	ErrPublisherRequired  = sterrors.New("reportflow: publisher is required")
	ErrSubscriberRequired = sterrors.New("reportflow: subscriber is required")
	ErrQueueRequired      = sterrors.New("reportflow: queue name is required")
	ErrNameRequired       = sterrors.New("reportflow: name is required")

	ErrEventRequired          = sterrors.New("reportflow: event is required")
	ErrHandlerRequired        = sterrors.New("reportflow: handler is required")
	ErrProviderRequired       = sterrors.New("reportflow: provider is required")
	ErrEvaluatorRequired      = sterrors.New("reportflow: evaluator predicate and strategy are required")
	ErrProjectIDRequired      = sterrors.New("reportflow: event carries no project id")
	ErrProjectConfigFetch     = sterrors.New("reportflow: project configuration fetch failed")
	ErrUnknownRequestType     = sterrors.New("reportflow: unknown request type")
	ErrRequestTypeMissing     = sterrors.New("reportflow: request type header is missing")
	ErrRetryLimitExceeded     = sterrors.New("reportflow: redelivery limit exceeded")
	ErrPayloadRequired        = sterrors.New("reportflow: message payload is required")
	ErrPayloadTypeRequired    = sterrors.New("reportflow: payload type is required")
	ErrPayloadPointerRequired = sterrors.New("reportflow: payload type must be a pointer")
	ErrAnalysisInProgress     = sterrors.New("reportflow: analysis is already in progress for launch")
	ErrNoAnalyzer             = sterrors.New("reportflow: no analyzer services are deployed")
	ErrNoDataProvider         = sterrors.New("reportflow: no cluster data provider matches the request")
	ErrExecutorClosed         = sterrors.New("reportflow: executor is closed")
	ErrMulticasterBuilt       = sterrors.New("reportflow: multicaster already built")
	ErrConcreteEventType      = sterrors.New("reportflow: subscriptions must name a concrete event type")
	ErrUnsupportedSQLDriver   = sterrors.New("reportflow: unsupported project config driver")
	ErrProjectConfigDisabled  = sterrors.New("reportflow: no project config driver configured")
)
