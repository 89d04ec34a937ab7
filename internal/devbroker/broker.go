package devbroker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"

	"github.com/nerrad567/netbeacon/internal/infrastructure/config"
)

// readyTimeout bounds the wait for the listener to accept connections.
const readyTimeout = 2 * time.Second

// ErrNotRunning is returned by operations that need a started broker.
var ErrNotRunning = errors.New("devbroker: broker is not running")

// Message is a publish observed by the broker.
type Message struct {
	ClientID string
	Topic    string
	Payload  []byte
	Retain   bool
}

// Observer receives every publish that passes through the broker.
// Observers run on broker goroutines and must not block.
type Observer func(Message)

// Broker is an embedded MQTT broker for local testing.
type Broker struct {
	cfg    config.DevBrokerConfig
	server *mochi.Server
	log    *slog.Logger

	mu        sync.RWMutex
	running   bool
	addr      string
	observers []Observer
}

// New creates a broker. Port 0 picks a free port on Start.
//
// When a username is configured every client must present matching
// credentials; otherwise all connections are accepted.
func New(cfg config.DevBrokerConfig, log *slog.Logger) (*Broker, error) {
	if log == nil {
		log = slog.New(slog.NewTextHandler(discard{}, nil))
	}

	server := mochi.New(&mochi.Options{
		InlineClient: true,
		Logger:       log,
	})

	b := &Broker{
		cfg:    cfg,
		server: server,
		log:    log,
	}

	if cfg.Username != "" {
		if err := server.AddHook(newAuthHook(cfg.Username, cfg.Password), nil); err != nil {
			return nil, fmt.Errorf("adding auth hook: %w", err)
		}
	} else {
		// mochi rejects every client unless an auth hook allows it.
		if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
			return nil, fmt.Errorf("adding allow hook: %w", err)
		}
	}

	if err := server.AddHook(newObserverHook(b), nil); err != nil {
		return nil, fmt.Errorf("adding observer hook: %w", err)
	}

	return b, nil
}

// Start opens the TCP listener and serves until Stop.
func (b *Broker) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return errors.New("devbroker: broker is already running")
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	port := b.cfg.Port
	if port == 0 {
		free, err := freePort()
		if err != nil {
			return fmt.Errorf("finding free port: %w", err)
		}
		port = free
	}
	addr := fmt.Sprintf("127.0.0.1:%d", port)

	listener := listeners.NewTCP(listeners.Config{
		ID:      fmt.Sprintf("tcp-%d", port),
		Address: addr,
	})
	if err := b.server.AddListener(listener); err != nil {
		return fmt.Errorf("adding listener: %w", err)
	}

	go func() {
		if err := b.server.Serve(); err != nil {
			b.log.Error("MQTT server error", "error", err)
		}
	}()

	if err := waitReady(ctx, addr); err != nil {
		return err
	}

	b.running = true
	b.addr = addr
	b.log.Info("development broker listening", "address", addr, "auth", b.cfg.Username != "")
	return nil
}

// Stop shuts the broker down and disconnects every client.
func (b *Broker) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return nil
	}
	b.running = false

	if err := b.server.Close(); err != nil {
		return fmt.Errorf("closing broker: %w", err)
	}
	return nil
}

// Addr returns the host:port the broker listens on.
func (b *Broker) Addr() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.addr
}

// Port returns the TCP port the broker listens on, or 0 before Start.
func (b *Broker) Port() int {
	_, portStr, err := net.SplitHostPort(b.Addr())
	if err != nil {
		return 0
	}
	var port int
	fmt.Sscanf(portStr, "%d", &port) //nolint:errcheck // port string comes from our own Addr
	return port
}

// Publish injects a message from the broker's inline client.
func (b *Broker) Publish(topic string, payload []byte, retain bool, qos byte) error {
	b.mu.RLock()
	running := b.running
	b.mu.RUnlock()

	if !running {
		return ErrNotRunning
	}
	return b.server.Publish(topic, payload, retain, qos)
}

// Observe registers an observer for every publish seen by the broker.
func (b *Broker) Observe(fn Observer) {
	b.mu.Lock()
	b.observers = append(b.observers, fn)
	b.mu.Unlock()
}

// Clients returns the IDs of connected clients.
func (b *Broker) Clients() []string {
	clients := b.server.Clients.GetAll()
	ids := make([]string, 0, len(clients))
	for id, cl := range clients {
		if cl.Net.Inline {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Kick drops a client's connection without a graceful disconnect, which
// makes the broker publish its will message.
func (b *Broker) Kick(clientID string) error {
	cl, ok := b.server.Clients.Get(clientID)
	if !ok {
		return fmt.Errorf("devbroker: client %q not connected", clientID)
	}
	cl.Stop(errors.New("kicked by devbroker"))
	return nil
}

func (b *Broker) notify(m Message) {
	b.mu.RLock()
	observers := append([]Observer(nil), b.observers...)
	b.mu.RUnlock()

	for _, fn := range observers {
		fn(m)
	}
}

// freePort asks the kernel for an unused TCP port.
func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// waitReady polls the listener until it accepts a TCP connection.
func waitReady(ctx context.Context, addr string) error {
	deadline := time.Now().Add(readyTimeout)
	for {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("devbroker: listener %s not ready: %w", addr, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
