package multicaster

import (
	"context"
	"fmt"
	"sync"

	"github.com/drblury/reportflow/internal/runtime/events"
	loggingpkg "github.com/drblury/reportflow/internal/runtime/logging"
)

// ErrorRecord describes one isolated failure inside a fan-out.
type ErrorRecord struct {
	// Subscriber is the identity of the unit that failed.
	Subscriber string
	Event      events.Event
	Err        error
}

func (r ErrorRecord) String() string {
	return fmt.Sprintf("subscriber %q failed on %s: %v", r.Subscriber, events.Name(r.Event), r.Err)
}

// ErrorHandler receives every isolated failure. Implementations are shared by
// all dispatch goroutines and must be safe for concurrent use.
type ErrorHandler interface {
	HandleError(ctx context.Context, rec ErrorRecord)
}

// ErrorHandlerFunc adapts a function to ErrorHandler.
type ErrorHandlerFunc func(ctx context.Context, rec ErrorRecord)

func (f ErrorHandlerFunc) HandleError(ctx context.Context, rec ErrorRecord) { f(ctx, rec) }

// LoggingErrorHandler logs failures through the service logger.
func LoggingErrorHandler(log loggingpkg.ServiceLogger) ErrorHandler {
	log = loggingpkg.OrNop(log)
	return ErrorHandlerFunc(func(_ context.Context, rec ErrorRecord) {
		log.Error("Event subscriber failed", rec.Err, loggingpkg.LogFields{
			"subscriber": rec.Subscriber,
			"event":      events.Name(rec.Event),
		})
	})
}

// ChainErrorHandlers fans one record out to several handlers in order.
func ChainErrorHandlers(handlers ...ErrorHandler) ErrorHandler {
	return ErrorHandlerFunc(func(ctx context.Context, rec ErrorRecord) {
		for _, h := range handlers {
			if h != nil {
				h.HandleError(ctx, rec)
			}
		}
	})
}

// RecordingErrorHandler keeps every record in memory. It backs tests and
// diagnostics endpoints.
type RecordingErrorHandler struct {
	mu      sync.Mutex
	records []ErrorRecord
}

func (r *RecordingErrorHandler) HandleError(_ context.Context, rec ErrorRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

// Records returns a copy of the captured records.
func (r *RecordingErrorHandler) Records() []ErrorRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ErrorRecord, len(r.records))
	copy(out, r.records)
	return out
}
