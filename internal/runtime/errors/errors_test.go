package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestSentinelErrorsArePrefixed(t *testing.T) {
	all := []error{
		ErrServiceRequired, ErrConfigRequired, ErrLoggerRequired, ErrPublisherRequired,
		ErrSubscriberRequired, ErrQueueRequired, ErrNameRequired, ErrEventRequired,
		ErrHandlerRequired, ErrProviderRequired, ErrEvaluatorRequired, ErrProjectIDRequired,
		ErrProjectConfigFetch, ErrUnknownRequestType, ErrRequestTypeMissing,
		ErrRetryLimitExceeded, ErrPayloadRequired, ErrPayloadTypeRequired, ErrPayloadPointerRequired,
		ErrAnalysisInProgress, ErrNoAnalyzer,
		ErrNoDataProvider, ErrExecutorClosed, ErrMulticasterBuilt, ErrConcreteEventType,
		ErrUnsupportedSQLDriver, ErrProjectConfigDisabled,
	}
	seen := make(map[string]struct{}, len(all))
	for _, err := range all {
		msg := err.Error()
		if !strings.HasPrefix(msg, "reportflow: ") {
			t.Errorf("missing prefix: %q", msg)
		}
		if _, dup := seen[msg]; dup {
			t.Errorf("duplicate message: %q", msg)
		}
		seen[msg] = struct{}{}
	}
}

func TestSentinelErrorsSurviveWrapping(t *testing.T) {
	wrapped := fmt.Errorf("project 7: %w", ErrProjectConfigFetch)
	if !errors.Is(wrapped, ErrProjectConfigFetch) {
		t.Fatal("errors.Is should unwrap to the sentinel")
	}
	if errors.Is(wrapped, ErrUnknownRequestType) {
		t.Fatal("unrelated sentinel should not match")
	}
}
