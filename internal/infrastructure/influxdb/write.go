package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	measurementHeartbeat = "heartbeat"
	measurementSession   = "broker_session"
)

// Heartbeat is one heartbeat's worth of beacon health.
type Heartbeat struct {
	DeviceID string
	IP       string

	// NTPOffset is the last clock correction; zero before the first sync.
	NTPOffset time.Duration

	// Reconnects counts broker sessions opened since startup, minus one.
	Reconnects int

	// SessionUptime is how long the current broker session has been open.
	SessionUptime time.Duration

	Time time.Time
}

// WriteHeartbeat queues a heartbeat point. It is a no-op when disconnected.
func (c *Client) WriteHeartbeat(hb Heartbeat) {
	if !c.IsConnected() {
		return
	}

	ts := hb.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	c.writeAPI.WritePoint(write.NewPoint(
		measurementHeartbeat,
		map[string]string{"device_id": hb.DeviceID},
		map[string]any{
			"ip":               hb.IP,
			"ntp_offset_ms":    float64(hb.NTPOffset) / float64(time.Millisecond),
			"reconnects":       hb.Reconnects,
			"session_uptime_s": hb.SessionUptime.Seconds(),
		},
		ts,
	))
}

// WriteSession queues a point for a newly opened broker session.
func (c *Client) WriteSession(deviceID, broker string, attempts int) {
	if !c.IsConnected() {
		return
	}

	c.writeAPI.WritePoint(write.NewPoint(
		measurementSession,
		map[string]string{
			"device_id": deviceID,
			"broker":    broker,
		},
		map[string]any{"attempts": attempts},
		time.Now(),
	))
}
