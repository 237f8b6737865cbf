package reporting

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/reportflow/internal/runtime/errors"
	idspkg "github.com/drblury/reportflow/internal/runtime/ids"
	jsoncodec "github.com/drblury/reportflow/internal/runtime/jsoncodec"
	metadatapkg "github.com/drblury/reportflow/internal/runtime/metadata"
)

// Attribute is a key/value label attached to launches and items.
type Attribute struct {
	Key    string `json:"key,omitempty"`
	Value  string `json:"value"`
	System bool   `json:"system,omitempty"`
}

// StartLaunchRequest is the START_LAUNCH payload.
type StartLaunchRequest struct {
	UUID        string      `json:"uuid,omitempty"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Mode        string      `json:"mode,omitempty"`
	StartTime   time.Time   `json:"startTime"`
	Attributes  []Attribute `json:"attributes,omitempty"`
	Rerun       bool        `json:"rerun,omitempty"`
}

// FinishExecutionRequest is the FINISH_LAUNCH and FINISH_TEST payload.
type FinishExecutionRequest struct {
	LaunchUUID string      `json:"launchUuid,omitempty"`
	EndTime    time.Time   `json:"endTime"`
	Status     string      `json:"status,omitempty"`
	Attributes []Attribute `json:"attributes,omitempty"`
}

// StartTestItemRequest is the START_TEST payload.
type StartTestItemRequest struct {
	UUID       string      `json:"uuid,omitempty"`
	LaunchUUID string      `json:"launchUuid"`
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	StartTime  time.Time   `json:"startTime"`
	HasStats   bool        `json:"hasStats,omitempty"`
	Retry      bool        `json:"retry,omitempty"`
	Attributes []Attribute `json:"attributes,omitempty"`
}

// SaveLogRequest is the LOG payload.
type SaveLogRequest struct {
	UUID       string    `json:"uuid,omitempty"`
	LaunchUUID string    `json:"launchUuid"`
	ItemUUID   string    `json:"itemUuid,omitempty"`
	Level      string    `json:"level"`
	Message    string    `json:"message"`
	LogTime    time.Time `json:"time"`
}

// NewRequestMessage encodes payload as JSON and tags it with rt. The extra
// headers in md are copied; a correlation id is generated when absent.
func NewRequestMessage(rt RequestType, payload any, md metadatapkg.Metadata) (*message.Message, error) {
	if !rt.Valid() {
		return nil, fmt.Errorf("%w: %q", errspkg.ErrUnknownRequestType, rt)
	}
	body, err := jsoncodec.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", rt, err)
	}
	headers := md.Clone()
	headers[metadatapkg.KeyRequestType] = rt.String()
	if headers[metadatapkg.KeyCorrelationID] == "" {
		headers[metadatapkg.KeyCorrelationID] = idspkg.CreateULID()
	}

	msg := message.NewMessage(idspkg.CreateULID(), body)
	msg.Metadata = metadatapkg.ToWatermill(headers)
	return msg, nil
}
