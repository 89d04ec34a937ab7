package monitor

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/nerrad567/netbeacon/internal/infrastructure/influxdb"
	"github.com/nerrad567/netbeacon/internal/infrastructure/mqtt"
	"github.com/nerrad567/netbeacon/internal/link"
)

var errConnect = errors.New("connection refused")

// fakeLink is a link that is either up from the first poll or never comes up.
type fakeLink struct {
	up     bool
	ip     net.IP
	mac    net.HardwareAddr
	joined bool
}

func (l *fakeLink) Join(context.Context, link.Credentials) error {
	l.joined = true
	return nil
}

func (l *fakeLink) Status() link.Status {
	if l.up {
		return link.StatusConnected
	}
	return link.StatusDisconnected
}

func (l *fakeLink) LocalIP() net.IP                { return l.ip }
func (l *fakeLink) HardwareAddr() net.HardwareAddr { return l.mac }

// fakeClock reports a fixed time and counts refreshes.
type fakeClock struct {
	started    bool
	fresh      bool
	forceErr   error
	formatted  string
	updates    int
	forceCalls int
	offset     time.Duration
}

func (c *fakeClock) Begin() { c.started = true }

func (c *fakeClock) Update(context.Context) bool {
	c.updates++
	return c.fresh
}

func (c *fakeClock) ForceUpdate(context.Context) error {
	c.forceCalls++
	return c.forceErr
}

func (c *fakeClock) FormattedTime() string { return c.formatted }

func (c *fakeClock) Offset() (time.Duration, error) { return c.offset, nil }

type published struct {
	topic   string
	payload string
}

// fakeBroker scripts connect results and records traffic.
type fakeBroker struct {
	clientID string

	// connectErrs are returned by successive Connect calls; once exhausted
	// Connect succeeds.
	connectErrs []error

	connected  bool
	state      int
	connects   int
	published  []published
	subscribed []string
	inbox      []mqtt.Message
	handler    mqtt.MessageHandler
	closed     bool
}

func (b *fakeBroker) Connect(context.Context) error {
	b.connects++
	if len(b.connectErrs) > 0 {
		err := b.connectErrs[0]
		b.connectErrs = b.connectErrs[1:]
		if err != nil {
			b.state = int(mqtt.StateConnectFailed)
			return err
		}
	}
	b.connected = true
	b.state = int(mqtt.StateConnected)
	return nil
}

func (b *fakeBroker) IsConnected() bool { return b.connected }
func (b *fakeBroker) State() int        { return b.state }

func (b *fakeBroker) Publish(topic string, payload []byte, _ byte, _ bool) error {
	b.published = append(b.published, published{topic: topic, payload: string(payload)})
	return nil
}

func (b *fakeBroker) Subscribe(topic string, _ byte) error {
	b.subscribed = append(b.subscribed, topic)
	return nil
}

func (b *fakeBroker) Service() int {
	n := len(b.inbox)
	for _, msg := range b.inbox {
		if b.handler != nil {
			b.handler(msg.Topic, msg.Payload) //nolint:errcheck // Mirrors mqtt.Client, which logs handler errors
		}
	}
	b.inbox = nil
	return n
}

func (b *fakeBroker) SetMessageHandler(h mqtt.MessageHandler) { b.handler = h }

func (b *fakeBroker) Close() error {
	b.closed = true
	b.connected = false
	return nil
}

// drop simulates the broker closing the connection.
func (b *fakeBroker) drop() {
	b.connected = false
	b.state = int(mqtt.StateConnectionLost)
}

// countTopic returns how many publishes went to topic.
func (b *fakeBroker) countTopic(topic string) int {
	n := 0
	for _, p := range b.published {
		if p.topic == topic {
			n++
		}
	}
	return n
}

// fakeTimer fires immediately and records every requested delay.
type fakeTimer struct {
	c      chan time.Time
	delays []time.Duration
}

func newFakeTimer() *fakeTimer { return &fakeTimer{c: make(chan time.Time, 1)} }

func (t *fakeTimer) Start(d time.Duration) {
	t.delays = append(t.delays, d)
	t.c <- time.Time{}
}

func (t *fakeTimer) Stop()               {}
func (t *fakeTimer) C() <-chan time.Time { return t.c }

// fakeJournal records calls in memory.
type fakeJournal struct {
	started  []int
	ended    []string
	messages []string
	next     int
}

func (j *fakeJournal) StartSession(_ context.Context, _, _ string, attempts int) (string, error) {
	j.next++
	j.started = append(j.started, attempts)
	return "session-" + string(rune('0'+j.next)), nil
}

func (j *fakeJournal) EndSession(_ context.Context, id string) error {
	j.ended = append(j.ended, id)
	return nil
}

func (j *fakeJournal) RecordMessage(_ context.Context, sessionID, topic string, payload []byte) error {
	j.messages = append(j.messages, sessionID+" "+topic+" "+string(payload))
	return nil
}

// fakeMetrics records written points.
type fakeMetrics struct {
	heartbeats []influxdb.Heartbeat
	sessions   []int
}

func (m *fakeMetrics) WriteHeartbeat(hb influxdb.Heartbeat) { m.heartbeats = append(m.heartbeats, hb) }

func (m *fakeMetrics) WriteSession(_, _ string, attempts int) {
	m.sessions = append(m.sessions, attempts)
}

// fakeNow is a settable time source.
type fakeNow struct{ t time.Time }

func (n *fakeNow) Now() time.Time          { return n.t }
func (n *fakeNow) Advance(d time.Duration) { n.t = n.t.Add(d) }
