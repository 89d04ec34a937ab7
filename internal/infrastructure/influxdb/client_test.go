package influxdb_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/netbeacon/internal/infrastructure/config"
	"github.com/nerrad567/netbeacon/internal/infrastructure/influxdb"
)

// fakeInflux answers the ping and write endpoints of the InfluxDB v2 API
// and records every line-protocol body it receives.
type fakeInflux struct {
	*httptest.Server

	mu        sync.Mutex
	lines     []string
	writeCode int
}

func newFakeInflux(t *testing.T) *fakeInflux {
	t.Helper()

	f := &fakeInflux{writeCode: http.StatusNoContent}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			body, _ := io.ReadAll(r.Body) //nolint:errcheck // Test server
			f.mu.Lock()
			f.lines = append(f.lines, strings.Split(strings.TrimSpace(string(body)), "\n")...)
			code := f.writeCode
			f.mu.Unlock()
			if code != http.StatusNoContent {
				http.Error(w, `{"code":"invalid","message":"rejected"}`, code)
				return
			}
			w.WriteHeader(code)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeInflux) waitLines(t *testing.T, n int) []string {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		got := append([]string(nil), f.lines...)
		f.mu.Unlock()
		if len(got) >= n {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("received fewer than %d lines", n)
	return nil
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "netbeacon-test-token",
		Org:           "netbeacon",
		Bucket:        "beacons",
		BatchSize:     1,
		FlushInterval: 1,
	}
}

func connect(t *testing.T, f *fakeInflux) *influxdb.Client {
	t.Helper()

	client, err := influxdb.Connect(context.Background(), testConfig(f.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	t.Cleanup(func() { client.Close() }) //nolint:errcheck // Test cleanup
	return client
}

func TestConnect(t *testing.T) {
	client := connect(t, newFakeInflux(t))

	if !client.IsConnected() {
		t.Error("IsConnected() = false after Connect()")
	}
	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Enabled = false

	_, err := influxdb.Connect(context.Background(), cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	f := newFakeInflux(t)
	url := f.URL
	f.Close()

	_, err := influxdb.Connect(context.Background(), testConfig(url))
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWriteHeartbeat(t *testing.T) {
	f := newFakeInflux(t)
	client := connect(t, f)

	client.WriteHeartbeat(influxdb.Heartbeat{
		DeviceID:      "myDevice_AA:BB:CC:DD:EE:FF",
		IP:            "10.0.0.42",
		NTPOffset:     1500 * time.Microsecond,
		Reconnects:    2,
		SessionUptime: 90 * time.Second,
		Time:          time.Unix(1743508800, 0),
	})
	client.Flush()

	line := f.waitLines(t, 1)[0]
	for _, want := range []string{
		`heartbeat,device_id=myDevice_AA:BB:CC:DD:EE:FF `,
		`ip="10.0.0.42"`,
		`ntp_offset_ms=1.5`,
		`reconnects=2i`,
		`session_uptime_s=90`,
		` 1743508800000000000`,
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestWriteSession(t *testing.T) {
	f := newFakeInflux(t)
	client := connect(t, f)

	client.WriteSession("dev_01", "broker.lan:1883", 3)
	client.Flush()

	line := f.waitLines(t, 1)[0]
	if !strings.HasPrefix(line, "broker_session,broker=broker.lan:1883,device_id=dev_01 attempts=3i") {
		t.Errorf("line = %q", line)
	}
}

func TestWriteError_Callback(t *testing.T) {
	f := newFakeInflux(t)
	f.writeCode = http.StatusBadRequest
	client := connect(t, f)

	errCh := make(chan error, 1)
	client.SetOnError(func(err error) {
		select {
		case errCh <- err:
		default:
		}
	})

	client.WriteSession("dev_01", "b:1883", 1)
	client.Flush()

	select {
	case err := <-errCh:
		if err == nil {
			t.Error("callback received nil error")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("write error not reported")
	}
}

func TestClose(t *testing.T) {
	client := connect(t, newFakeInflux(t))

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, influxdb.ErrNotConnected) {
		t.Errorf("HealthCheck() after Close error = %v, want ErrNotConnected", err)
	}

	// Writes and flushes after Close are no-ops.
	client.WriteHeartbeat(influxdb.Heartbeat{DeviceID: "x"})
	client.Flush()
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestClose_Nil(t *testing.T) {
	var client *influxdb.Client
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() on nil client = true")
	}
}
