package console

import (
	"fmt"
	"io"
	"sync"

	"github.com/tarm/serial"

	"github.com/nerrad567/netbeacon/internal/infrastructure/config"
)

// defaultBaud matches the device's serial monitor speed.
const defaultBaud = 57600

// openPort is swapped in tests.
var openPort = func(name string, baud int) (io.WriteCloser, error) {
	return serial.OpenPort(&serial.Config{Name: name, Baud: baud})
}

// Console is a serialised writer for operator output.
//
// Thread Safety: all methods are safe for concurrent use.
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	serial io.Closer
}

// New returns a console writing to out.
func New(out io.Writer) *Console {
	return &Console{w: out}
}

// Open returns a console writing to out and, if configured, mirrored to a
// serial port.
func Open(cfg config.ConsoleConfig, out io.Writer) (*Console, error) {
	if cfg.SerialPort == "" {
		return New(out), nil
	}

	baud := cfg.Baud
	if baud <= 0 {
		baud = defaultBaud
	}

	port, err := openPort(cfg.SerialPort, baud)
	if err != nil {
		return nil, fmt.Errorf("opening serial console %s: %w", cfg.SerialPort, err)
	}

	return &Console{
		w:      io.MultiWriter(out, port),
		serial: port,
	}, nil
}

// Close releases the serial port, if any.
func (c *Console) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.serial == nil {
		return nil
	}
	err := c.serial.Close()
	c.serial = nil
	return err
}

// write emits p in a single Write so concurrent output never interleaves.
func (c *Console) write(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.w.Write(p)
	return err
}

// Printf writes formatted text.
func (c *Console) Printf(format string, args ...any) error {
	return c.write(fmt.Appendf(nil, format, args...))
}

// Println writes its arguments followed by a newline.
func (c *Console) Println(args ...any) error {
	return c.write(fmt.Appendln(nil, args...))
}

// Dot writes a single progress dot.
func (c *Console) Dot() error {
	return c.write([]byte{'.'})
}

// Banner writes the startup banner with the build date.
func (c *Console) Banner(buildDate string) error {
	return c.Printf("\n\n/// BUILD: %s ///\n\n", buildDate)
}

// MessageArrived dumps an inbound message. The payload is written verbatim
// with no decoding, so N payload bytes produce exactly N output bytes.
func (c *Console) MessageArrived(topic string, payload []byte) error {
	buf := make([]byte, 0, len(topic)+len(payload)+20)
	buf = append(buf, "\nMessage arrived ["...)
	buf = append(buf, topic...)
	buf = append(buf, "] "...)
	buf = append(buf, payload...)
	buf = append(buf, '\n')
	return c.write(buf)
}
