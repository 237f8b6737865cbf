package runtime

import (
	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/reportflow/internal/runtime/errors"
	"github.com/drblury/reportflow/internal/runtime/reporting"
)

// ReportingHandlerPrefix names the router handlers attached by
// RegisterReportingConsumer, one per reporting queue.
const ReportingHandlerPrefix = "reporting-consumer-"

// MessageHandlerRegistration wires a raw Watermill handler.
type MessageHandlerRegistration struct {
	Name         string
	ConsumeQueue string
	PublishQueue string
	Handler      message.HandlerFunc
	Subscriber   message.Subscriber
	Publisher    message.Publisher
}

// RegisterMessageHandler attaches the provided handler to the service router.
func RegisterMessageHandler(svc *Service, cfg MessageHandlerRegistration) error {
	if svc == nil {
		return errspkg.ErrServiceRequired
	}
	if cfg.Handler == nil {
		return errspkg.ErrHandlerRequired
	}
	if cfg.ConsumeQueue == "" {
		return errspkg.ErrQueueRequired
	}
	if cfg.Name == "" {
		return errspkg.ErrNameRequired
	}
	if cfg.Subscriber == nil {
		cfg.Subscriber = svc.subscriber
	}
	if cfg.Publisher == nil {
		cfg.Publisher = svc.publisher
	}

	svc.router.AddHandler(cfg.Name, cfg.ConsumeQueue, cfg.Subscriber, cfg.PublishQueue, cfg.Publisher, cfg.Handler)
	svc.recordHandler(HandlerInfo{Name: cfg.Name, ConsumeQueue: cfg.ConsumeQueue, PublishQueue: cfg.PublishQueue})
	return nil
}

// RegisterReportingConsumer builds a reporting.Consumer over provider and
// attaches it to every reporting queue. Consumer settings come from the
// service configuration; opts are applied afterwards and win.
func RegisterReportingConsumer(svc *Service, provider reporting.HandlerProvider, opts ...reporting.ConsumerOption) (*reporting.Consumer, error) {
	if svc == nil {
		return nil, errspkg.ErrServiceRequired
	}
	policy, err := reporting.ParseUnknownTypePolicy(svc.Conf.UnknownRequestTypePolicy)
	if err != nil {
		return nil, err
	}

	base := []reporting.ConsumerOption{
		reporting.WithLogger(svc.Logger),
		reporting.WithUnknownTypePolicy(policy),
		reporting.WithParkingLot(svc.publisher, svc.Conf.ParkingLotQueue, svc.Conf.MaxRedeliveries),
		reporting.WithRegisterer(svc.registerer),
		reporting.WithTracerProvider(svc.tracerProvider),
	}
	consumer, err := reporting.NewConsumer(provider, append(base, opts...)...)
	if err != nil {
		return nil, err
	}

	for _, queue := range svc.queues.Queues() {
		name := ReportingHandlerPrefix + queue
		svc.router.AddConsumerHandler(name, queue, svc.subscriber, consumer.Handler())
		svc.recordHandler(HandlerInfo{Name: name, ConsumeQueue: queue})
	}
	return consumer, nil
}

func (s *Service) recordHandler(info HandlerInfo) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.handlers = append(s.handlers, info)
}
