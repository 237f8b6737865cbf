package delegating

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/reportflow/internal/runtime/errors"
	"github.com/drblury/reportflow/internal/runtime/events"
	loggingpkg "github.com/drblury/reportflow/internal/runtime/logging"
	"github.com/drblury/reportflow/internal/runtime/multicaster"
	"github.com/drblury/reportflow/internal/runtime/projectconfig"
)

type countingProvider struct {
	calls  atomic.Int32
	config map[string]string
	err    error
}

func (p *countingProvider) Provide(_ context.Context, projectID int64) (map[string]string, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	return p.config, nil
}

type invocation struct {
	handler string
	event   events.ItemFinished
	config  map[string]string
}

type recordingHandler struct {
	name string
	err  error
	mu   *sync.Mutex
	log  *[]invocation
}

func (h recordingHandler) Name() string { return h.name }

func (h recordingHandler) Handle(_ context.Context, ev events.ItemFinished, config map[string]string) error {
	h.mu.Lock()
	*h.log = append(*h.log, invocation{handler: h.name, event: ev, config: config})
	h.mu.Unlock()
	return h.err
}

func newHandlers(errs ...error) ([]ConfigurableHandler[events.ItemFinished], *[]invocation) {
	var mu sync.Mutex
	log := &[]invocation{}
	handlers := make([]ConfigurableHandler[events.ItemFinished], len(errs))
	for i, err := range errs {
		handlers[i] = recordingHandler{name: "h" + string(rune('0'+i)), err: err, mu: &mu, log: log}
	}
	return handlers, log
}

func TestConfigIsFetchedOncePerEvent(t *testing.T) {
	provider := &countingProvider{config: map[string]string{"notifications.enabled": "true"}}
	handlers, log := newHandlers(nil, nil, nil, nil)
	sub, err := NewSubscriber("item-finished", provider, handlers)
	require.NoError(t, err)

	ev := events.ItemFinished{ItemID: 10, LaunchID: 5, Project: 7}
	require.NoError(t, sub.Handle(context.Background(), ev))

	assert.Equal(t, int32(1), provider.calls.Load())
	require.Len(t, *log, 4)
	for i, inv := range *log {
		assert.Equal(t, handlers[i].Name(), inv.handler)
		assert.Equal(t, ev, inv.event)
		assert.Equal(t, provider.config, inv.config)
	}
}

func TestHandlerFailureIsIsolated(t *testing.T) {
	provider := &countingProvider{config: map[string]string{}}
	boom := errors.New("boom")
	handlers, log := newHandlers(nil, boom, nil)
	sink := &multicaster.RecordingErrorHandler{}
	sub, err := NewSubscriber("item-finished", provider, handlers, WithErrorHandler(sink))
	require.NoError(t, err)

	err = sub.Handle(context.Background(), events.ItemFinished{Project: 7})
	require.NoError(t, err, "handler failures must not reach the multicaster")

	assert.Len(t, *log, 3)
	records := sink.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "item-finished/h1", records[0].Subscriber)
	assert.ErrorIs(t, records[0].Err, boom)
}

func TestHandlerFailureIsLoggedWithoutErrorHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := loggingpkg.NewSlogServiceLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	handlers, _ := newHandlers(errors.New("smtp unreachable"))
	sub, err := NewSubscriber("launch-finished", &countingProvider{config: map[string]string{}}, handlers, WithLogger(logger))
	require.NoError(t, err)

	require.NoError(t, sub.Handle(context.Background(), events.ItemFinished{Project: 7}))

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, "level=ERROR"), out)
	assert.Contains(t, out, "launch-finished/h0")
	assert.Contains(t, out, "smtp unreachable")
}

func TestHandlerPanicIsIsolated(t *testing.T) {
	provider := &countingProvider{config: map[string]string{}}
	handlers, log := newHandlers(nil)
	panicking := HandlerFunc[events.ItemFinished]{ID: "panics", Fn: func(context.Context, events.ItemFinished, map[string]string) error {
		panic("handler exploded")
	}}
	sink := &multicaster.RecordingErrorHandler{}
	sub, err := NewSubscriber("item-finished", provider,
		append([]ConfigurableHandler[events.ItemFinished]{panicking}, handlers...),
		WithErrorHandler(sink))
	require.NoError(t, err)

	require.NoError(t, sub.Handle(context.Background(), events.ItemFinished{Project: 7}))
	assert.Len(t, *log, 1)
	require.Len(t, sink.Records(), 1)
	var panicErr *multicaster.PanicError
	assert.ErrorAs(t, sink.Records()[0].Err, &panicErr)
}

func TestConfigFetchFailureAbortsFanOut(t *testing.T) {
	dbDown := errors.New("db down")
	provider := &countingProvider{err: dbDown}
	handlers, log := newHandlers(nil, nil)
	sub, err := NewSubscriber("item-finished", provider, handlers)
	require.NoError(t, err)

	err = sub.Handle(context.Background(), events.ItemFinished{Project: 7})

	assert.Empty(t, *log, "no handler runs without configuration")
	assert.ErrorIs(t, err, errspkg.ErrProjectConfigFetch)
	assert.ErrorIs(t, err, dbDown)
	var fetchErr *ConfigFetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, int64(7), fetchErr.ProjectID)
}

func TestMissingProjectIDIsAPrerequisiteFailure(t *testing.T) {
	provider := &countingProvider{config: map[string]string{}}
	handlers, log := newHandlers(nil)
	sub, err := NewSubscriber("item-finished", provider, handlers)
	require.NoError(t, err)

	err = sub.Handle(context.Background(), events.ItemFinished{ItemID: 1})

	assert.ErrorIs(t, err, errspkg.ErrProjectIDRequired)
	assert.Zero(t, provider.calls.Load())
	assert.Empty(t, *log)
}

func TestNewSubscriberValidation(t *testing.T) {
	provider := &countingProvider{}
	_, err := NewSubscriber[events.ItemFinished]("", provider, nil)
	assert.ErrorIs(t, err, errspkg.ErrNameRequired)

	_, err = NewSubscriber[events.ItemFinished]("s", nil, nil)
	assert.ErrorIs(t, err, errspkg.ErrProviderRequired)

	_, err = NewSubscriber("s", provider, []ConfigurableHandler[events.ItemFinished]{nil})
	assert.ErrorIs(t, err, errspkg.ErrHandlerRequired)
}

func TestHandlerListIsFixedAtConstruction(t *testing.T) {
	provider := &countingProvider{config: map[string]string{}}
	handlers, log := newHandlers(nil)
	sub, err := NewSubscriber("item-finished", provider, handlers)
	require.NoError(t, err)

	handlers[0] = HandlerFunc[events.ItemFinished]{ID: "swapped", Fn: func(context.Context, events.ItemFinished, map[string]string) error {
		t.Fatal("replaced handler must not run")
		return nil
	}}
	require.NoError(t, sub.Handle(context.Background(), events.ItemFinished{Project: 7}))
	assert.Len(t, *log, 1)
}

func TestFanOutMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	provider := &countingProvider{config: map[string]string{}}
	handlers, _ := newHandlers(nil, errors.New("x"))
	sub, err := NewSubscriber("item-finished", provider, handlers, WithRegisterer(reg))
	require.NoError(t, err)

	require.NoError(t, sub.Handle(context.Background(), events.ItemFinished{Project: 7}))
	provider.err = errors.New("down")
	require.Error(t, sub.Handle(context.Background(), events.ItemFinished{Project: 7}))

	assert.Equal(t, 1.0, testutil.ToFloat64(sub.handled.WithLabelValues("item-finished", "h0", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sub.handled.WithLabelValues("item-finished", "h1", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(sub.handled.WithLabelValues("item-finished", "", "aborted")))
}

// ItemFinished{item=10, launch=5, project=7} published on the multicaster:
// one config fetch, the first handler fails, the second still runs with the
// same map, and the error sink holds one record naming the first handler.
func TestEndToEndThroughMulticaster(t *testing.T) {
	provider := &countingProvider{config: map[string]string{"analyzer.isAutoAnalyzerEnabled": "true"}}
	sink := &multicaster.RecordingErrorHandler{}

	var mu sync.Mutex
	var seen []map[string]string
	first := HandlerFunc[events.ItemFinished]{ID: "first", Fn: func(_ context.Context, _ events.ItemFinished, cfg map[string]string) error {
		mu.Lock()
		seen = append(seen, cfg)
		mu.Unlock()
		return errors.New("first failed")
	}}
	second := HandlerFunc[events.ItemFinished]{ID: "second", Fn: func(_ context.Context, _ events.ItemFinished, cfg map[string]string) error {
		mu.Lock()
		seen = append(seen, cfg)
		mu.Unlock()
		return nil
	}}

	sub, err := NewSubscriber("item-config", projectconfig.Provider(provider),
		[]ConfigurableHandler[events.ItemFinished]{first, second}, WithErrorHandler(sink))
	require.NoError(t, err)

	b := multicaster.NewBuilder(multicaster.WithErrorHandler(sink))
	require.NoError(t, multicaster.Subscribe[events.ItemFinished](b, sub))
	m := b.Build()

	m.Publish(context.Background(), events.ItemFinished{ItemID: 10, LaunchID: 5, Project: 7})

	assert.Equal(t, int32(1), provider.calls.Load())
	require.Len(t, seen, 2)
	assert.Equal(t, seen[0], seen[1])
	records := sink.Records()
	require.Len(t, records, 1)
	assert.True(t, strings.HasSuffix(records[0].Subscriber, "first"))
}

func TestConfigFailureReachesMulticasterErrorHandler(t *testing.T) {
	provider := &countingProvider{err: errors.New("timeout")}
	sink := &multicaster.RecordingErrorHandler{}
	handlers, log := newHandlers(nil)
	sub, err := NewSubscriber("item-config", provider, handlers, WithErrorHandler(sink))
	require.NoError(t, err)

	b := multicaster.NewBuilder(multicaster.WithErrorHandler(sink))
	require.NoError(t, multicaster.Subscribe[events.ItemFinished](b, sub))
	b.Build().Publish(context.Background(), events.ItemFinished{Project: 7})

	assert.Empty(t, *log)
	records := sink.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "item-config", records[0].Subscriber)
	assert.ErrorIs(t, records[0].Err, errspkg.ErrProjectConfigFetch)
}
