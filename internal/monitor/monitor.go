package monitor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/netbeacon/internal/device"
	"github.com/nerrad567/netbeacon/internal/infrastructure/config"
	"github.com/nerrad567/netbeacon/internal/infrastructure/influxdb"
	"github.com/nerrad567/netbeacon/internal/infrastructure/mqtt"
	"github.com/nerrad567/netbeacon/internal/link"
)

// defaultLoopTick is the idle delay between Run iterations when unset.
const defaultLoopTick = 10 * time.Millisecond

// noAddress is reported when the link has no IPv4 address.
const noAddress = "0.0.0.0"

// Phase is the broker side of the loop's state machine.
type Phase int

const (
	PhaseDisconnected Phase = iota
	PhaseSubscribePending
	PhaseSubscribed
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseDisconnected:
		return "disconnected"
	case PhaseSubscribePending:
		return "subscribe pending"
	case PhaseSubscribed:
		return "subscribed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// State is the mutable loop state.
type State struct {
	// SubscribePending is true until a subscribe has been issued on the
	// current broker session.
	SubscribePending bool

	// LastHeartbeat is when the last heartbeat fired.
	LastHeartbeat time.Time
}

// Monitor is the connectivity monitor loop.
//
// A Monitor is driven from a single goroutine: Setup once, then Step or Run.
// Inbound messages are dispatched inside Step.
type Monitor struct {
	cfg    *config.Config
	deps   Deps
	topics mqtt.Topics
	logger Logger

	identity device.Identity
	broker   Broker
	state    State
	ready    bool

	// Session bookkeeping for the journal and metrics.
	sessionID    string
	sessionStart time.Time
	sessions     int
}

// New creates a monitor. Call Setup before Step or Run.
func New(cfg *config.Config, deps Deps) *Monitor {
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Monitor{
		cfg:    cfg,
		deps:   deps,
		topics: mqtt.NewTopics(cfg.Topics),
		logger: deps.Logger,
	}
}

// Setup joins the link, starts the time client, builds the device identity
// and creates the broker session.
//
// It returns an error wrapping ErrLinkTimeout if the link does not come up
// within network.join_timeout. Console output errors are ignored throughout:
// the console is a best-effort trace.
func (m *Monitor) Setup(ctx context.Context) error {
	con := m.deps.Console
	build := m.deps.Build

	con.Banner(build.Date) //nolint:errcheck // Console is best effort
	m.logger.Info("netbeacon starting",
		"version", build.Version,
		"commit", build.Commit,
		"build_date", build.Date,
	)

	mac := m.deps.Link.HardwareAddr()
	con.Printf("MAC Address: %s\n", device.FormatMAC(mac)) //nolint:errcheck

	if err := m.joinLink(ctx); err != nil {
		return err
	}

	m.deps.Clock.Begin()
	con.Println("NTP Client started") //nolint:errcheck

	identity, err := device.NewIdentity(m.cfg.Device.Label, mac)
	if err != nil {
		return fmt.Errorf("building device identity: %w", err)
	}
	m.identity = identity
	con.Println("MQTT client ID: " + identity.ID()) //nolint:errcheck
	m.logger.Info("device identity", "client_id", identity.ID(), "broker", m.cfg.BrokerAddress())

	m.broker = m.deps.NewBroker(identity.ID())
	m.broker.SetMessageHandler(m.handleMessage)

	m.state.SubscribePending = true
	m.ready = true
	return nil
}

// joinLink starts association and waits for the link to come up.
func (m *Monitor) joinLink(ctx context.Context) error {
	con := m.deps.Console
	netCfg := m.cfg.Network

	con.Printf("\nConnecting to WiFi") //nolint:errcheck

	creds := link.Credentials{SSID: netCfg.SSID, Password: netCfg.Password}
	err := m.deps.Link.Join(ctx, creds)
	if err == nil {
		err = link.Await(ctx, m.deps.Link, netCfg.PollInterval, netCfg.JoinTimeout, func() {
			con.Dot() //nolint:errcheck
		})
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		con.Println("Failed to connect to WiFi. Restarting...") //nolint:errcheck
		m.logger.Error("network link did not come up", "ssid", netCfg.SSID, "timeout", netCfg.JoinTimeout, "error", err)
		return fmt.Errorf("%w: %w", ErrLinkTimeout, err)
	}

	ip := m.localIP()
	con.Println("Connected!")          //nolint:errcheck
	con.Printf("IP address: %s\n", ip) //nolint:errcheck
	m.logger.Info("network link up", "ip", ip)
	return nil
}

// Step runs one loop iteration. It returns an error only when the broker
// cannot be reconnected (context cancelled or attempts exhausted).
func (m *Monitor) Step(ctx context.Context) error {
	if !m.ready {
		return ErrNotSetUp
	}

	if !m.broker.IsConnected() {
		if err := m.reconnect(ctx); err != nil {
			return err
		}
	}

	if m.state.SubscribePending {
		inbound := m.topics.Inbound()
		if err := m.broker.Subscribe(inbound, m.qos()); err != nil {
			m.logger.Warn("subscribe failed", "topic", inbound, "error", err)
		}
		m.state.SubscribePending = false
	}

	m.broker.Service()

	now := m.deps.Now()
	if now.Sub(m.state.LastHeartbeat) > m.cfg.Heartbeat.Interval {
		if err := m.heartbeat(ctx, now); err != nil {
			m.logger.Error("heartbeat skipped", "error", err)
		}
	}

	return nil
}

// Run calls Step every heartbeat.loop_tick until ctx is cancelled.
// Cancellation is a clean stop and returns nil.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.ready {
		return ErrNotSetUp
	}

	tick := m.cfg.Heartbeat.LoopTick
	if tick <= 0 {
		tick = defaultLoopTick
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		if err := m.Step(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Close ends the journal session and disconnects from the broker.
func (m *Monitor) Close() error {
	m.endSession(context.Background())
	if m.broker == nil {
		return nil
	}
	return m.broker.Close()
}

// reconnect connects under the retry policy, then announces and marks the
// subscription pending.
func (m *Monitor) reconnect(ctx context.Context) error {
	con := m.deps.Console
	m.endSession(ctx)

	attempts, err := m.deps.Retry.Do(ctx, func() error {
		con.Printf("Attempting MQTT connection...") //nolint:errcheck
		return m.broker.Connect(ctx)
	}, func(err error, next time.Duration) {
		rc := m.broker.State()
		con.Printf("failed, rc=%d try again in %s\n", rc, formatDelay(next)) //nolint:errcheck
		m.logger.Warn("MQTT connect failed", "rc", rc, "retry_in", next, "error", err)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		m.logger.Error("giving up on broker", "attempts", attempts, "rc", m.broker.State(), "error", err)
		return fmt.Errorf("connecting to broker after %d attempts: %w", attempts, err)
	}

	con.Println("MQTT connected!") //nolint:errcheck
	m.logger.Info("MQTT connected", "broker", m.cfg.BrokerAddress(), "attempts", attempts)

	announce := m.topics.Announce()
	if err := m.broker.Publish(announce, []byte(m.cfg.Announce.Payload), m.qos(), false); err != nil {
		m.logger.Warn("announce failed", "topic", announce, "error", err)
	}
	// Every connect goes through here, so each new session gets both the
	// announce and exactly one subscribe.
	m.state.SubscribePending = true

	m.startSession(ctx, attempts)
	return nil
}

// heartbeat refreshes the clock and publishes the local time and IP address.
func (m *Monitor) heartbeat(ctx context.Context, now time.Time) error {
	m.state.LastHeartbeat = now
	m.deps.Console.Dot() //nolint:errcheck

	if !m.deps.Clock.Update(ctx) {
		if err := m.deps.Clock.ForceUpdate(ctx); err != nil {
			m.logger.Warn("time sync failed, using last known time", "error", err)
		}
	}

	payload, err := formatPayload(m.deps.Clock.FormattedTime(), m.cfg.Heartbeat.MaxPayload)
	if err != nil {
		return err
	}

	id := m.identity.ID()
	ip := m.localIP()

	if err := m.broker.Publish(m.topics.Heartbeat(id), []byte(payload), m.qos(), false); err != nil {
		m.logger.Warn("time publish failed", "error", err)
	}
	if err := m.broker.Publish(m.topics.IPAddr(id), []byte(ip), m.qos(), false); err != nil {
		m.logger.Warn("IP publish failed", "error", err)
	}

	if m.deps.Metrics != nil {
		offset, _ := m.deps.Clock.Offset() //nolint:errcheck // Zero before the first sync
		m.deps.Metrics.WriteHeartbeat(influxdb.Heartbeat{
			DeviceID:      id,
			IP:            ip,
			NTPOffset:     offset,
			Reconnects:    max(m.sessions-1, 0),
			SessionUptime: now.Sub(m.sessionStart),
			Time:          now,
		})
	}
	return nil
}

// handleMessage echoes an inbound message and journals it.
func (m *Monitor) handleMessage(topic string, payload []byte) error {
	err := m.deps.Console.MessageArrived(topic, payload)

	if m.deps.Journal != nil && m.sessionID != "" {
		if jerr := m.deps.Journal.RecordMessage(context.Background(), m.sessionID, topic, payload); jerr != nil {
			err = errors.Join(err, fmt.Errorf("journal: %w", jerr))
		}
	}
	return err
}

func (m *Monitor) startSession(ctx context.Context, attempts int) {
	m.sessions++
	m.sessionStart = m.deps.Now()

	id := m.identity.ID()
	broker := m.cfg.BrokerAddress()

	if m.deps.Metrics != nil {
		m.deps.Metrics.WriteSession(id, broker, attempts)
	}
	if m.deps.Journal != nil {
		sessionID, err := m.deps.Journal.StartSession(ctx, id, broker, attempts)
		if err != nil {
			m.logger.Warn("journal session not recorded", "error", err)
			return
		}
		m.sessionID = sessionID
	}
}

func (m *Monitor) endSession(ctx context.Context) {
	if m.deps.Journal == nil || m.sessionID == "" {
		return
	}
	if err := m.deps.Journal.EndSession(ctx, m.sessionID); err != nil {
		m.logger.Warn("journal session not closed", "session", m.sessionID, "error", err)
	}
	m.sessionID = ""
}

// Phase reports where the loop is in the broker state machine.
func (m *Monitor) Phase() Phase {
	switch {
	case m.broker == nil || !m.broker.IsConnected():
		return PhaseDisconnected
	case m.state.SubscribePending:
		return PhaseSubscribePending
	default:
		return PhaseSubscribed
	}
}

// State returns a copy of the loop state.
func (m *Monitor) State() State {
	return m.state
}

// Identity returns the device identity built by Setup.
func (m *Monitor) Identity() device.Identity {
	return m.identity
}

func (m *Monitor) qos() byte {
	return byte(m.cfg.MQTT.QoS)
}

func (m *Monitor) localIP() string {
	ip := m.deps.Link.LocalIP()
	if ip == nil {
		return noAddress
	}
	return ip.String()
}

// formatPayload copies s into a fresh buffer and rejects it if it is
// longer than limit bytes.
func formatPayload(s string, limit int) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	b.WriteString(s)

	if b.Len() > limit {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, b.Len(), limit)
	}
	return b.String(), nil
}

// formatDelay renders whole-second delays as "5 seconds".
func formatDelay(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%d seconds", int(d/time.Second))
	}
	return d.String()
}
