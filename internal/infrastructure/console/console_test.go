package console

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/nerrad567/netbeacon/internal/infrastructure/config"
)

func TestMessageArrived_Verbatim(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload []byte
	}{
		{name: "text", topic: "inTopic", payload: []byte("hello")},
		{name: "empty payload", topic: "inTopic", payload: nil},
		{name: "binary payload", topic: "inTopic", payload: []byte{0x00, 0xff, '\r', '\n', 0x7f}},
		{name: "topic with levels", topic: "site/a/b", payload: []byte("x")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			c := New(&out)

			if err := c.MessageArrived(tt.topic, tt.payload); err != nil {
				t.Fatalf("MessageArrived() error = %v", err)
			}

			want := append([]byte("\nMessage arrived ["+tt.topic+"] "), tt.payload...)
			want = append(want, '\n')
			if !bytes.Equal(out.Bytes(), want) {
				t.Errorf("output = %q, want %q", out.Bytes(), want)
			}
		})
	}
}

func TestBannerAndDot(t *testing.T) {
	var out bytes.Buffer
	c := New(&out)

	c.Banner("2025-04-01T10:00:00Z") //nolint:errcheck // bytes.Buffer never fails
	c.Dot()                          //nolint:errcheck
	c.Dot()                          //nolint:errcheck

	want := "\n\n/// BUILD: 2025-04-01T10:00:00Z ///\n\n.."
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

type fakePort struct {
	bytes.Buffer
	closed bool
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

func TestOpen_SerialMirror(t *testing.T) {
	port := &fakePort{}
	var gotName string
	var gotBaud int

	orig := openPort
	openPort = func(name string, baud int) (io.WriteCloser, error) {
		gotName, gotBaud = name, baud
		return port, nil
	}
	t.Cleanup(func() { openPort = orig })

	var out bytes.Buffer
	c, err := Open(config.ConsoleConfig{SerialPort: "/dev/ttyUSB0"}, &out)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	if gotName != "/dev/ttyUSB0" || gotBaud != defaultBaud {
		t.Errorf("openPort(%q, %d), want /dev/ttyUSB0 at %d", gotName, gotBaud, defaultBaud)
	}

	c.Println("IP address:", "10.0.0.42") //nolint:errcheck

	if out.String() != "IP address: 10.0.0.42\n" {
		t.Errorf("stdout = %q", out.String())
	}
	if port.String() != out.String() {
		t.Errorf("serial = %q, want mirror of stdout %q", port.String(), out.String())
	}

	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if !port.closed {
		t.Error("serial port not closed")
	}
}

func TestOpen_SerialFailure(t *testing.T) {
	orig := openPort
	openPort = func(string, int) (io.WriteCloser, error) {
		return nil, errors.New("no such device")
	}
	t.Cleanup(func() { openPort = orig })

	if _, err := Open(config.ConsoleConfig{SerialPort: "/dev/ttyUSB9", Baud: 115200}, io.Discard); err == nil {
		t.Error("Open() expected error for missing serial device")
	}
}

func TestOpen_NoSerial(t *testing.T) {
	c, err := Open(config.ConsoleConfig{}, io.Discard)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
