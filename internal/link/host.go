package link

import (
	"context"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"sync"

	"github.com/nerrad567/netbeacon/internal/infrastructure/config"
)

// Logger defines the logging interface for the host link.
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

// Host is a Link backed by a kernel network interface.
type Host struct {
	cfg    config.NetworkConfig
	logger Logger

	// Overridable for tests.
	interfaces func() ([]net.Interface, error)
	addrs      func(iface net.Interface) ([]net.Addr, error)
	run        func(ctx context.Context, name string, args ...string) ([]byte, error)

	mu     sync.Mutex
	joined bool
}

// NewHost returns a Link for the configured interface.
func NewHost(cfg config.NetworkConfig) *Host {
	return &Host{
		cfg:        cfg,
		logger:     noopLogger{},
		interfaces: net.Interfaces,
		addrs:      func(iface net.Interface) ([]net.Addr, error) { return iface.Addrs() },
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
	}
}

// SetLogger sets the logger for join diagnostics.
func (h *Host) SetLogger(logger Logger) {
	if logger == nil {
		logger = noopLogger{}
	}
	h.logger = logger
}

// Join runs the configured join command, if any. Without a join command the
// link is assumed to be associated by the host's own network manager.
func (h *Host) Join(ctx context.Context, creds Credentials) error {
	h.mu.Lock()
	h.joined = true
	h.mu.Unlock()

	if len(h.cfg.JoinCommand) == 0 {
		h.logger.Debug("no join command configured, waiting for host network")
		return nil
	}

	iface, _ := h.pick() //nolint:errcheck // interface may not exist before association
	name := h.cfg.Interface
	if iface != nil {
		name = iface.Name
	}

	argv := expandJoinCommand(h.cfg.JoinCommand, creds, name)
	h.logger.Info("joining network", "ssid", creds.SSID, "command", argv[0])

	out, err := h.run(ctx, argv[0], argv[1:]...)
	if err != nil {
		return fmt.Errorf("%w: %s: %w (%s)", ErrJoinFailed, argv[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Status reports StatusConnected once the interface is up with an IPv4
// address. Before Join it reports StatusIdle.
func (h *Host) Status() Status {
	h.mu.Lock()
	joined := h.joined
	h.mu.Unlock()
	if !joined {
		return StatusIdle
	}

	if h.LocalIP() == nil {
		return StatusDisconnected
	}
	return StatusConnected
}

// LocalIP returns the first IPv4 address of the interface.
func (h *Host) LocalIP() net.IP {
	iface, err := h.pick()
	if err != nil || iface.Flags&net.FlagUp == 0 {
		return nil
	}

	addrs, err := h.addrs(*iface)
	if err != nil {
		return nil
	}
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip4 := ip.To4(); ip4 != nil && !ip4.IsLoopback() {
			return ip4
		}
	}
	return nil
}

// HardwareAddr returns the interface's MAC address.
func (h *Host) HardwareAddr() net.HardwareAddr {
	iface, err := h.pick()
	if err != nil {
		return nil
	}
	return iface.HardwareAddr
}

// pick returns the configured interface, or the first interface that is up,
// not loopback and has a hardware address.
func (h *Host) pick() (*net.Interface, error) {
	ifaces, err := h.interfaces()
	if err != nil {
		return nil, fmt.Errorf("listing interfaces: %w", err)
	}

	for i := range ifaces {
		iface := ifaces[i]
		if h.cfg.Interface != "" {
			if iface.Name == h.cfg.Interface {
				return &iface, nil
			}
			continue
		}
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if len(iface.HardwareAddr) == 0 {
			continue
		}
		return &iface, nil
	}

	if h.cfg.Interface != "" {
		return nil, fmt.Errorf("%w: %s", ErrNoInterface, h.cfg.Interface)
	}
	return nil, ErrNoInterface
}

// expandJoinCommand substitutes {ssid}, {password} and {interface}.
func expandJoinCommand(cmd []string, creds Credentials, iface string) []string {
	r := strings.NewReplacer(
		"{ssid}", creds.SSID,
		"{password}", creds.Password,
		"{interface}", iface,
	)
	out := make([]string, len(cmd))
	for i, arg := range cmd {
		out[i] = r.Replace(arg)
	}
	return out
}
