package runtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"

	configpkg "github.com/drblury/reportflow/internal/runtime/config"
	loggingpkg "github.com/drblury/reportflow/internal/runtime/logging"
	transportpkg "github.com/drblury/reportflow/transport"
)

const recordingTransport = "recording"

type recordingPublisher struct {
	mu        sync.Mutex
	published map[string][]*message.Message
	err       error
}

func (p *recordingPublisher) Publish(topic string, messages ...*message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	if p.published == nil {
		p.published = make(map[string][]*message.Message)
	}
	p.published[topic] = append(p.published[topic], messages...)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) Messages(topic string) []*message.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	clone := make([]*message.Message, len(p.published[topic]))
	copy(clone, p.published[topic])
	return clone
}

type idleSubscriber struct{}

func (idleSubscriber) Subscribe(ctx context.Context, _ string) (<-chan *message.Message, error) {
	ch := make(chan *message.Message)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch, nil
}

func (idleSubscriber) Close() error { return nil }

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// recordingRegistry serves pub under the "recording" transport name.
func recordingRegistry(pub *recordingPublisher) *transportpkg.Registry {
	reg := transportpkg.NewRegistry()
	reg.Register(recordingTransport, func(context.Context, transportpkg.Config, watermill.LoggerAdapter) (transportpkg.Transport, error) {
		return transportpkg.Transport{Publisher: pub, Subscriber: idleSubscriber{}}, nil
	}, transportpkg.Capabilities{Durable: true, SupportsNack: true})
	return reg
}

func newTestConfig() *configpkg.Config {
	return &configpkg.Config{
		PubSubSystem:         "channel",
		RetryMaxRetries:      1,
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     2 * time.Millisecond,
	}
}

func newTestService(t *testing.T, conf *configpkg.Config, deps ServiceDependencies) *Service {
	t.Helper()
	if deps.Registerer == nil {
		deps.Registerer = prometheus.NewRegistry()
	}
	svc, err := NewService(conf, loggingpkg.NewNopServiceLogger(), context.Background(), deps)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func newRecordingService(t *testing.T) (*Service, *recordingPublisher) {
	t.Helper()
	pub := &recordingPublisher{}
	conf := newTestConfig()
	conf.PubSubSystem = recordingTransport
	return newTestService(t, conf, ServiceDependencies{Transports: recordingRegistry(pub)}), pub
}
