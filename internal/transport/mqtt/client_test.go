package mqtt

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/aetherisstack/aetheris-engine/internal/topics"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func completedToken(err error) *fakeToken {
	t := &fakeToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func pendingToken() *fakeToken {
	return &fakeToken{done: make(chan struct{})}
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type publishCall struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakePaho struct {
	paho.Client

	mu           sync.Mutex
	open         bool
	connectErrs  []error
	connects     int
	publishes    []publishCall
	publishToken paho.Token
	filters      chan map[string]byte
	disconnected bool
}

func (f *fakePaho) Connect() paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if len(f.connectErrs) > 0 {
		err := f.connectErrs[0]
		f.connectErrs = f.connectErrs[1:]
		return completedToken(err)
	}
	f.open = true
	return completedToken(nil)
}

func (f *fakePaho) IsConnectionOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *fakePaho) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.publishes = append(f.publishes, publishCall{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	if f.publishToken != nil {
		return f.publishToken
	}
	return completedToken(nil)
}

func (f *fakePaho) SubscribeMultiple(filters map[string]byte, _ paho.MessageHandler) paho.Token {
	if f.filters != nil {
		f.filters <- filters
	}
	return completedToken(nil)
}

func (f *fakePaho) Disconnect(uint) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.open = false
	f.disconnected = true
}

type fakeMessage struct {
	paho.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }

func TestConnectRetriesUntilSuccess(t *testing.T) {
	fake := &fakePaho{connectErrs: []error{errors.New("refused"), errors.New("refused")}}
	client := New(Config{RetryInterval: time.Millisecond}, nil, WithPahoClient(fake))

	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if fake.connects != 3 {
		t.Fatalf("expected 3 connect attempts, got %d", fake.connects)
	}
}

func TestConnectStopsOnCancel(t *testing.T) {
	fake := &fakePaho{connectErrs: []error{errors.New("refused")}}
	client := New(Config{RetryInterval: time.Hour}, nil, WithPahoClient(fake))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := client.Connect(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestPublishUsesQoS1NonRetained(t *testing.T) {
	fake := &fakePaho{open: true}
	client := New(Config{}, nil, WithPahoClient(fake))

	if err := client.Publish(context.Background(), topics.Alerts, []byte(`{}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(fake.publishes) != 1 {
		t.Fatalf("expected one publish, got %d", len(fake.publishes))
	}
	call := fake.publishes[0]
	if call.qos != QoSAtLeastOnce || call.retained || call.topic != topics.Alerts {
		t.Fatalf("unexpected publish %+v", call)
	}
}

func TestPublishErrors(t *testing.T) {
	client := New(Config{}, nil, WithPahoClient(&fakePaho{}))
	if err := client.Publish(context.Background(), "t", nil); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("expected ErrNotConnected, got %v", err)
	}

	brokerErr := errors.New("not authorised")
	client = New(Config{}, nil, WithPahoClient(&fakePaho{open: true, publishToken: completedToken(brokerErr)}))
	if err := client.Publish(context.Background(), "t", []byte("x")); !errors.Is(err, brokerErr) {
		t.Fatalf("expected broker error, got %v", err)
	}

	client = New(Config{PublishTimeout: 10 * time.Millisecond}, nil, WithPahoClient(&fakePaho{open: true, publishToken: pendingToken()}))
	if err := client.Publish(context.Background(), "t", []byte("x")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected publish timeout, got %v", err)
	}
}

func TestOnConnectSubscribesAndReportsState(t *testing.T) {
	fake := &fakePaho{filters: make(chan map[string]byte, 1)}
	var states []bool
	client := New(Config{Subscriptions: topics.Subscriptions()}, nil,
		WithPahoClient(fake),
		WithStateHandler(func(up bool) { states = append(states, up) }),
	)

	client.handleConnect(fake)
	select {
	case filters := <-fake.filters:
		if len(filters) != 6 {
			t.Fatalf("expected 6 filters, got %d", len(filters))
		}
		for topic, qos := range filters {
			if qos != QoSAtLeastOnce {
				t.Fatalf("filter %s subscribed at qos %d", topic, qos)
			}
		}
	case <-time.After(time.Second):
		t.Fatalf("expected subscriptions after connect")
	}
	if !client.Connected() {
		t.Fatalf("expected connected state")
	}

	client.handleConnectionLost(fake, errors.New("eof"))
	client.handleConnectionLost(fake, errors.New("eof"))
	if client.Connected() {
		t.Fatalf("expected disconnected state")
	}
	if len(states) != 2 || !states[0] || states[1] {
		t.Fatalf("expected one up and one down transition, got %v", states)
	}
}

func TestInboundMessagesAreForwarded(t *testing.T) {
	client := New(Config{InboundBuffer: 1}, nil, WithPahoClient(&fakePaho{}))
	client.handleMessage(nil, fakeMessage{topic: topics.Telemetry("RV-001"), payload: []byte("a")})
	client.handleMessage(nil, fakeMessage{topic: topics.Telemetry("RV-002"), payload: []byte("b")})

	d := <-client.Deliveries()
	if d.Topic != "aetheris/telemetry/RV-001" || string(d.Payload) != "a" {
		t.Fatalf("unexpected delivery %+v", d)
	}
	select {
	case extra := <-client.Deliveries():
		t.Fatalf("overflowing delivery should be dropped, got %+v", extra)
	default:
	}
}

func TestCloseDisconnectsOnce(t *testing.T) {
	fake := &fakePaho{open: true}
	client := New(Config{}, nil, WithPahoClient(fake))
	client.Close(10 * time.Millisecond)
	client.Close(10 * time.Millisecond)
	if !fake.disconnected {
		t.Fatalf("expected disconnect")
	}
}
