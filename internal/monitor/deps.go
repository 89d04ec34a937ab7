package monitor

import (
	"context"
	"time"

	"github.com/nerrad567/netbeacon/internal/infrastructure/influxdb"
	"github.com/nerrad567/netbeacon/internal/infrastructure/mqtt"
	"github.com/nerrad567/netbeacon/internal/link"
	"github.com/nerrad567/netbeacon/internal/retry"
)

// Broker is a connect-on-demand MQTT session.
// It is satisfied by *mqtt.Client.
type Broker interface {
	Connect(ctx context.Context) error
	IsConnected() bool

	// State returns the last connection status code (0 connected,
	// negative client-side failure, positive broker refusal).
	State() int

	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte) error

	// Service dispatches queued inbound messages to the handler.
	Service() int
	SetMessageHandler(handler mqtt.MessageHandler)

	Close() error
}

// BrokerFactory creates the broker session once the client ID is known.
type BrokerFactory func(clientID string) Broker

// Clock is the network-corrected time source.
// It is satisfied by *timesync.Client.
type Clock interface {
	Begin()
	Update(ctx context.Context) bool
	ForceUpdate(ctx context.Context) error
	FormattedTime() string
	Offset() (time.Duration, error)
}

// Console is the operator console.
// It is satisfied by *console.Console.
type Console interface {
	Banner(buildDate string) error
	Printf(format string, args ...any) error
	Println(args ...any) error
	Dot() error
	MessageArrived(topic string, payload []byte) error
}

// Retrier runs the broker connect attempt under the reconnect policy.
// It is satisfied by *retry.Policy.
type Retrier interface {
	Do(ctx context.Context, op func() error, notify retry.Notify) (int, error)
}

// Journal records sessions and inbound messages.
// It is satisfied by *journal.SQLiteJournal.
type Journal interface {
	StartSession(ctx context.Context, clientID, broker string, attempts int) (string, error)
	EndSession(ctx context.Context, sessionID string) error
	RecordMessage(ctx context.Context, sessionID, topic string, payload []byte) error
}

// Metrics records heartbeat and session points.
// It is satisfied by *influxdb.Client.
type Metrics interface {
	WriteHeartbeat(hb influxdb.Heartbeat)
	WriteSession(deviceID, broker string, attempts int)
}

// Logger defines the logging interface for the monitor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// Deps are the monitor's collaborators. Journal, Metrics, Logger and Now
// are optional.
type Deps struct {
	Link      link.Link
	Clock     Clock
	NewBroker BrokerFactory
	Console   Console
	Retry     Retrier

	Journal Journal
	Metrics Metrics
	Logger  Logger

	// Now defaults to time.Now.
	Now func() time.Time

	Build BuildInfo
}
