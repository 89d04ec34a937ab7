package mqtt

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/netbeacon/internal/infrastructure/config"
)

// Client wraps paho.mqtt.golang as a connect-on-demand broker session.
//
// Unlike a long-running service client it does not reconnect by itself:
// the caller decides when to Connect, which lets the monitor loop own the
// retry policy and the per-session subscribe flag.
//
// Inbound messages are queued by paho's goroutines and dispatched on the
// caller's goroutine by Service, so message handlers never run
// concurrently with the loop.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
//   - Handlers run only inside Service.
type Client struct {
	client   pahomqtt.Client
	options  *pahomqtt.ClientOptions
	cfg      config.MQTTConfig
	clientID string

	// inbox buffers messages between paho and Service.
	inbox   chan Message
	dropped atomic.Int64

	handler   MessageHandler
	handlerMu sync.RWMutex

	// subscriptions tracks topics subscribed on the current session.
	subscriptions map[string]byte
	subMu         sync.RWMutex

	connected bool
	connMu    sync.RWMutex

	// state is the last connection status code, see State.
	state atomic.Int32

	onDisconnect func(err error)
	callbackMu   sync.RWMutex

	logger   Logger
	loggerMu sync.RWMutex
}

// Logger interface for optional logging support.
// Compatible with logging.Logger and slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Message is a received publish queued for dispatch.
type Message struct {
	Topic   string
	Payload []byte
}

// MessageHandler is the callback signature for received messages.
//
// Handlers run synchronously inside Service. The returned error is
// logged and does not affect acknowledgement.
type MessageHandler func(topic string, payload []byte) error

// New builds a client for the configured broker without connecting.
//
// Parameters:
//   - cfg: MQTT configuration from config.yaml
//   - clientID: MQTT client identifier (the device identity)
//
// Returns:
//   - *Client: Disconnected client; call Connect to open a session
func New(cfg config.MQTTConfig, clientID string) *Client {
	opts := buildClientOptions(cfg, clientID)
	configureLWT(opts, clientID)

	c := &Client{
		cfg:           cfg,
		clientID:      clientID,
		options:       opts,
		inbox:         make(chan Message, defaultInboxSize),
		subscriptions: make(map[string]byte),
	}
	c.state.Store(int32(StateDisconnected))

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.handleDisconnect(err)
	})

	c.client = pahomqtt.NewClient(opts)
	return c
}

// Connect makes a single connection attempt to the broker.
//
// On success it marks the session connected, clears the session's
// subscriptions and publishes the retained online status. On failure the
// broker status code is available from State.
//
// Parameters:
//   - ctx: Context for cancellation of the attempt
//
// Returns:
//   - error: wraps ErrConnectionFailed if the attempt fails or times out
func (c *Client) Connect(ctx context.Context) error {
	token := c.client.Connect()

	timeout := c.cfg.Broker.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-token.Done():
	case <-waitCtx.Done():
		c.state.Store(int32(StateConnectionTimeout))
		return fmt.Errorf("%w: %w", ErrConnectionFailed, waitCtx.Err())
	}

	if err := token.Error(); err != nil {
		c.state.Store(int32(connectFailureState(token)))
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c.connMu.Lock()
	c.connected = true
	c.connMu.Unlock()
	c.state.Store(int32(StateConnected))

	// Clean session: nothing survives from the previous session.
	c.subMu.Lock()
	c.subscriptions = make(map[string]byte)
	c.subMu.Unlock()

	c.publishOnlineStatus()

	return nil
}

// connectFailureState maps a failed connect token to a State code.
func connectFailureState(token pahomqtt.Token) State {
	ct, ok := token.(*pahomqtt.ConnectToken)
	if !ok {
		return StateConnectFailed
	}
	// Only CONNACK refusals are reported as-is; paho's internal codes
	// (network error, protocol violation) collapse to connect failed.
	if rc := State(ct.ReturnCode()); rc >= StateBadProtocol && rc <= StateUnauthorized {
		return rc
	}
	return StateConnectFailed
}

// handleDisconnect is called when the connection is lost.
func (c *Client) handleDisconnect(err error) {
	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()
	c.state.Store(int32(StateConnectionLost))

	c.callbackMu.RLock()
	callback := c.onDisconnect
	c.callbackMu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// publishOnlineStatus replaces the retained LWT with an online marker.
func (c *Client) publishOnlineStatus() {
	topic := StatusTopic(c.clientID)
	token := c.client.Publish(topic, byte(c.cfg.QoS), true, buildOnlinePayload(c.clientID))
	token.WaitTimeout(defaultPublishTimeout)
}

// Close gracefully disconnects from the MQTT broker.
//
// It publishes the graceful offline status, then disconnects with a
// quiesce period for pending operations.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		topic := StatusTopic(c.clientID)
		token := c.client.Publish(topic, byte(c.cfg.QoS), true, buildOfflinePayload(c.clientID))
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()
	c.state.Store(int32(StateDisconnected))

	return nil
}

// HealthCheck verifies the MQTT connection is alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	return nil
}

// IsConnected returns the current connection state.
func (c *Client) IsConnected() bool {
	if c.client == nil {
		return false
	}
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// State returns the last connection status code.
//
// Negative values are client-side conditions, positive values are the
// broker's CONNACK refusal codes; 0 means connected.
func (c *Client) State() int {
	return int(c.state.Load())
}

// ClientID returns the MQTT client identifier.
func (c *Client) ClientID() string {
	return c.clientID
}

// SetMessageHandler sets the handler Service dispatches inbound messages to.
func (c *Client) SetMessageHandler(handler MessageHandler) {
	c.handlerMu.Lock()
	c.handler = handler
	c.handlerMu.Unlock()
}

// SetOnDisconnect sets a callback invoked when the connection is lost.
// It runs on a paho goroutine.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.callbackMu.Lock()
	c.onDisconnect = callback
	c.callbackMu.Unlock()
}

// SetLogger sets a logger for handler errors and dropped messages.
func (c *Client) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

func (c *Client) getLogger() Logger {
	c.loggerMu.RLock()
	defer c.loggerMu.RUnlock()
	return c.logger
}

// Dropped returns how many inbound messages were discarded because the
// inbox was full.
func (c *Client) Dropped() int64 {
	return c.dropped.Load()
}

// enqueue is the paho message callback. It never blocks paho's router.
func (c *Client) enqueue(_ pahomqtt.Client, msg pahomqtt.Message) {
	m := Message{Topic: msg.Topic(), Payload: append([]byte(nil), msg.Payload()...)}
	select {
	case c.inbox <- m:
	default:
		c.dropped.Add(1)
		if logger := c.getLogger(); logger != nil {
			logger.Warn("MQTT inbox full, message dropped", "topic", m.Topic)
		}
	}
}

// Service dispatches every queued inbound message to the handler on the
// calling goroutine and returns how many were dispatched.
//
// It never blocks waiting for new messages.
func (c *Client) Service() int {
	c.handlerMu.RLock()
	handler := c.handler
	c.handlerMu.RUnlock()

	n := 0
	for {
		select {
		case m := <-c.inbox:
			n++
			if handler != nil {
				c.dispatch(handler, m)
			}
		default:
			return n
		}
	}
}

// dispatch runs a handler with panic recovery and optional logging.
func (c *Client) dispatch(handler MessageHandler, m Message) {
	defer func() {
		if r := recover(); r != nil {
			if logger := c.getLogger(); logger != nil {
				logger.Error("MQTT handler panic recovered",
					"topic", m.Topic,
					"panic", r,
				)
			}
		}
	}()

	if err := handler(m.Topic, m.Payload); err != nil {
		if logger := c.getLogger(); logger != nil {
			logger.Warn("MQTT handler returned error",
				"topic", m.Topic,
				"error", err,
			)
		}
	}
}
