package reporting

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errspkg "github.com/drblury/reportflow/internal/runtime/errors"
	idspkg "github.com/drblury/reportflow/internal/runtime/ids"
	metadatapkg "github.com/drblury/reportflow/internal/runtime/metadata"
)

type recordingHandler struct {
	mu    sync.Mutex
	calls []*message.Message
	err   error
}

func (h *recordingHandler) HandleMessage(msg *message.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, msg)
	return h.err
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

type testPublisher struct {
	mu        sync.Mutex
	published map[string][]*message.Message
	err       error
}

func (p *testPublisher) Publish(topic string, msgs ...*message.Message) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.published == nil {
		p.published = map[string][]*message.Message{}
	}
	p.published[topic] = append(p.published[topic], msgs...)
	return nil
}

func (p *testPublisher) Close() error { return nil }

func newMessage(md ...string) *message.Message {
	msg := message.NewMessage(idspkg.CreateULID(), []byte(`{}`))
	for i := 0; i+1 < len(md); i += 2 {
		msg.Metadata.Set(md[i], md[i+1])
	}
	return msg
}

func allHandlers() (map[RequestType]*recordingHandler, map[RequestType]MessageHandler) {
	recs := map[RequestType]*recordingHandler{}
	table := map[RequestType]MessageHandler{}
	for _, rt := range RequestTypes() {
		h := &recordingHandler{}
		recs[rt] = h
		table[rt] = h
	}
	return recs, table
}

func totalCalls(recs map[RequestType]*recordingHandler) int {
	n := 0
	for _, h := range recs {
		n += h.count()
	}
	return n
}

func TestOnMessageRoutesByTag(t *testing.T) {
	recs, table := allHandlers()
	provider, err := NewMapHandlerProvider(table)
	require.NoError(t, err)
	c, err := NewConsumer(provider)
	require.NoError(t, err)

	for _, rt := range RequestTypes() {
		require.NoError(t, c.OnMessage(newMessage(metadatapkg.KeyRequestType, rt.String())))
	}
	for rt, h := range recs {
		assert.Equal(t, 1, h.count(), "handler for %s", rt)
	}
}

func TestOnMessageDropsUnknownTagByDefault(t *testing.T) {
	recs, table := allHandlers()
	provider, err := NewMapHandlerProvider(table)
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	c, err := NewConsumer(provider, WithRegisterer(reg))
	require.NoError(t, err)

	assert.NoError(t, c.OnMessage(newMessage(metadatapkg.KeyRequestType, "UNKNOWN")))
	assert.NoError(t, c.OnMessage(newMessage("type", "UNKNOWN")))

	assert.Zero(t, totalCalls(recs))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.messages.WithLabelValues("unknown", "dropped")))
}

func TestOnMessageDropsKnownTagWithoutHandler(t *testing.T) {
	launches := &recordingHandler{}
	provider, err := NewMapHandlerProvider(map[RequestType]MessageHandler{StartLaunch: launches})
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	c, err := NewConsumer(provider, WithRegisterer(reg))
	require.NoError(t, err)

	assert.NoError(t, c.OnMessage(newMessage(metadatapkg.KeyRequestType, "LOG")))
	assert.Zero(t, launches.count())
	assert.Equal(t, 1.0, testutil.ToFloat64(c.messages.WithLabelValues("LOG", "dropped")))
}

func TestOnMessageRejectPolicySurfacesMiss(t *testing.T) {
	provider, err := NewMapHandlerProvider(nil)
	require.NoError(t, err)
	c, err := NewConsumer(provider, WithUnknownTypePolicy(RejectUnknown))
	require.NoError(t, err)

	err = c.OnMessage(newMessage(metadatapkg.KeyRequestType, "UNKNOWN"))
	assert.ErrorIs(t, err, errspkg.ErrUnknownRequestType)
	assert.True(t, IsUnprocessable(err))

	err = c.OnMessage(newMessage())
	assert.ErrorIs(t, err, errspkg.ErrRequestTypeMissing)
}

func TestOnMessageWrapsHandlerFailure(t *testing.T) {
	boom := errors.New("boom")
	provider, err := NewMapHandlerProvider(map[RequestType]MessageHandler{
		FinishTest: &recordingHandler{err: boom},
	})
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	c, err := NewConsumer(provider, WithRegisterer(reg))
	require.NoError(t, err)

	err = c.OnMessage(newMessage(metadatapkg.KeyRequestType, "FINISH_TEST"))
	assert.ErrorIs(t, err, boom)
	var unprocessable *UnprocessableMessageError
	require.ErrorAs(t, err, &unprocessable)
	assert.Equal(t, "FINISH_TEST", unprocessable.RequestType)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.messages.WithLabelValues("FINISH_TEST", "failure")))
}

func TestOnMessageRecoversHandlerPanic(t *testing.T) {
	provider, err := NewMapHandlerProvider(map[RequestType]MessageHandler{
		Log: MessageHandlerFunc(func(*message.Message) error { panic("bad log") }),
	})
	require.NoError(t, err)
	c, err := NewConsumer(provider)
	require.NoError(t, err)

	err = c.OnMessage(newMessage(metadatapkg.KeyRequestType, "LOG"))
	assert.True(t, IsUnprocessable(err))
}

func TestOnMessageParksExhaustedMessages(t *testing.T) {
	recs, table := allHandlers()
	provider, err := NewMapHandlerProvider(table)
	require.NoError(t, err)
	pub := &testPublisher{}
	reg := prometheus.NewRegistry()
	c, err := NewConsumer(provider, WithParkingLot(pub, "", 0), WithRegisterer(reg))
	require.NoError(t, err)

	require.NoError(t, c.OnMessage(newMessage(
		metadatapkg.KeyRequestType, "START_TEST",
		metadatapkg.KeyDeathCount, "10",
	)))
	assert.Equal(t, 1, recs[StartTest].count(), "the limit itself is still dispatched")

	exhausted := newMessage(metadatapkg.KeyRequestType, "START_TEST", metadatapkg.KeyDeathCount, "11")
	require.NoError(t, c.OnMessage(exhausted))
	assert.Equal(t, 1, recs[StartTest].count())

	parked := pub.published[DefaultParkingLotQueue]
	require.Len(t, parked, 1)
	assert.Equal(t, exhausted.UUID, parked[0].UUID)
	assert.Equal(t, errspkg.ErrRetryLimitExceeded.Error(), parked[0].Metadata.Get(metadatapkg.KeyParkedReason))
	assert.Empty(t, exhausted.Metadata.Get(metadatapkg.KeyParkedReason), "original metadata is untouched")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.messages.WithLabelValues("START_TEST", "parked")))
}

func TestOnMessageReturnsParkingFailure(t *testing.T) {
	recs, table := allHandlers()
	provider, err := NewMapHandlerProvider(table)
	require.NoError(t, err)
	pub := &testPublisher{err: errors.New("broker down")}
	c, err := NewConsumer(provider, WithParkingLot(pub, "parked", 3))
	require.NoError(t, err)

	err = c.OnMessage(newMessage(metadatapkg.KeyRequestType, "LOG", metadatapkg.KeyDeathCount, "4"))
	assert.Error(t, err)
	assert.False(t, IsUnprocessable(err), "parking failures should be redelivered")
	assert.Zero(t, totalCalls(recs))
}

func TestOnMessagePropagatesTraceContext(t *testing.T) {
	var seen context.Context
	provider, err := NewMapHandlerProvider(map[RequestType]MessageHandler{
		StartLaunch: MessageHandlerFunc(func(msg *message.Message) error {
			seen = msg.Context()
			return nil
		}),
	})
	require.NoError(t, err)
	c, err := NewConsumer(provider)
	require.NoError(t, err)

	require.NoError(t, c.Handler()(newMessage(metadatapkg.KeyRequestType, "start_launch")))
	assert.NotNil(t, seen)
}

func TestNewConsumerValidation(t *testing.T) {
	_, err := NewConsumer(nil)
	assert.ErrorIs(t, err, errspkg.ErrProviderRequired)

	provider, err := NewMapHandlerProvider(nil)
	require.NoError(t, err)
	_, err = NewConsumer(provider, WithUnknownTypePolicy("ignore"))
	assert.Error(t, err)
}

func TestMapHandlerProviderValidation(t *testing.T) {
	_, err := NewMapHandlerProvider(map[RequestType]MessageHandler{StartLaunch: nil})
	assert.ErrorIs(t, err, errspkg.ErrHandlerRequired)

	_, err = NewMapHandlerProvider(map[RequestType]MessageHandler{"RERUN": &recordingHandler{}})
	assert.ErrorIs(t, err, errspkg.ErrUnknownRequestType)

	table := map[RequestType]MessageHandler{Log: &recordingHandler{}, StartLaunch: &recordingHandler{}}
	provider, err := NewMapHandlerProvider(table)
	require.NoError(t, err)
	delete(table, Log)
	_, ok := provider.ProvideHandler(Log)
	assert.True(t, ok, "provider keeps its own copy")
	assert.Equal(t, []RequestType{StartLaunch, Log}, provider.RequestTypes())
}

func TestParseRequestType(t *testing.T) {
	rt, ok := ParseRequestType(" finish_launch ")
	assert.True(t, ok)
	assert.Equal(t, FinishLaunch, rt)

	_, ok = ParseRequestType("UNKNOWN")
	assert.False(t, ok)
	assert.False(t, RequestType("log").Valid())
	assert.True(t, Log.Valid())
}

func TestParseUnknownTypePolicy(t *testing.T) {
	p, err := ParseUnknownTypePolicy("")
	require.NoError(t, err)
	assert.Equal(t, DropUnknown, p)
	p, err = ParseUnknownTypePolicy("REJECT")
	require.NoError(t, err)
	assert.Equal(t, RejectUnknown, p)
	_, err = ParseUnknownTypePolicy("requeue")
	assert.Error(t, err)
}
