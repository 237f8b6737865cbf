package runtime

import (
	"context"

	errspkg "github.com/drblury/reportflow/internal/runtime/errors"
	metadatapkg "github.com/drblury/reportflow/internal/runtime/metadata"
	"github.com/drblury/reportflow/internal/runtime/reporting"
)

// Producer emits reporting requests onto the reporting queues.
type Producer interface {
	PublishRequest(ctx context.Context, launchUUID string, rt reporting.RequestType, payload any, md metadatapkg.Metadata) error
}

// PublishRequest encodes payload as a reporting message tagged rt and
// publishes it to the queue owning launchUUID, so one launch is always
// consumed from one queue.
func (s *Service) PublishRequest(ctx context.Context, launchUUID string, rt reporting.RequestType, payload any, md metadatapkg.Metadata) error {
	if s == nil {
		return errspkg.ErrServiceRequired
	}
	if s.publisher == nil {
		return errspkg.ErrPublisherRequired
	}
	if launchUUID != "" {
		md = md.With(metadatapkg.KeyLaunchUUID, launchUUID)
	}

	msg, err := reporting.NewRequestMessage(rt, payload, md)
	if err != nil {
		return err
	}
	if ctx != nil {
		msg.SetContext(ctx)
	}
	return s.publisher.Publish(s.queues.Select(launchUUID), msg)
}
