package timesync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/netbeacon/internal/infrastructure/config"
)

// fakeClock is a settable time source.
type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

// fakeServer answers queries with a fixed offset or error and counts calls.
type fakeServer struct {
	offset time.Duration
	err    error
	calls  int
}

func (f *fakeServer) query(string, time.Duration) (time.Duration, error) {
	f.calls++
	return f.offset, f.err
}

func newTestClient(offset int) (*Client, *fakeClock, *fakeServer) {
	clock := &fakeClock{t: time.Date(2025, 4, 1, 11, 59, 58, 0, time.UTC)}
	server := &fakeServer{offset: 2 * time.Second}

	c := New(config.NTPConfig{
		Server:         "pool.ntp.org",
		Offset:         offset,
		UpdateInterval: time.Minute,
	})
	c.now = clock.Now
	c.query = server.query
	return c, clock, server
}

func TestFormattedTime(t *testing.T) {
	tests := []struct {
		name   string
		offset int
		want   string
	}{
		{name: "utc plus one", offset: 3600, want: "13:00:00"},
		{name: "utc", offset: 0, want: "12:00:00"},
		{name: "utc minus five thirty", offset: -(5*3600 + 1800), want: "06:30:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _, _ := newTestClient(tt.offset)
			c.Begin()

			if !c.Update(context.Background()) {
				t.Fatal("Update() = false, want true")
			}
			if got := c.FormattedTime(); got != tt.want {
				t.Errorf("FormattedTime() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormattedTime_UnsyncedUsesLocalClock(t *testing.T) {
	c, _, _ := newTestClient(3600)

	if got := c.FormattedTime(); got != "12:59:58" {
		t.Errorf("FormattedTime() = %q, want 12:59:58", got)
	}
	if _, err := c.Offset(); !errors.Is(err, ErrNotSynced) {
		t.Errorf("Offset() error = %v, want ErrNotSynced", err)
	}
}

func TestUpdate_RespectsInterval(t *testing.T) {
	c, clock, server := newTestClient(0)
	c.Begin()

	if !c.Update(context.Background()) {
		t.Fatal("first Update() = false")
	}
	if server.calls != 1 {
		t.Fatalf("queries = %d after first Update, want 1", server.calls)
	}

	clock.Advance(30 * time.Second)
	if !c.Update(context.Background()) {
		t.Error("Update() within interval = false, want true")
	}
	if server.calls != 1 {
		t.Errorf("queries = %d within interval, want 1", server.calls)
	}

	clock.Advance(31 * time.Second)
	if !c.Update(context.Background()) {
		t.Error("Update() after interval = false, want true")
	}
	if server.calls != 2 {
		t.Errorf("queries = %d after interval, want 2", server.calls)
	}
}

func TestUpdate_NotStarted(t *testing.T) {
	c, _, server := newTestClient(0)

	if c.Update(context.Background()) {
		t.Error("Update() before Begin = true, want false")
	}
	if server.calls != 0 {
		t.Errorf("queries = %d before Begin, want 0", server.calls)
	}
}

func TestUpdate_StaleWhenQueryFails(t *testing.T) {
	c, clock, server := newTestClient(0)
	c.Begin()
	c.Update(context.Background())

	server.err = errors.New("i/o timeout")
	server.offset = time.Hour
	clock.Advance(2 * time.Minute)

	if c.Update(context.Background()) {
		t.Error("Update() with failing server = true, want false")
	}

	err := c.ForceUpdate(context.Background())
	if !errors.Is(err, ErrQueryFailed) {
		t.Errorf("ForceUpdate() error = %v, want ErrQueryFailed", err)
	}

	// The last good offset is kept.
	offset, err := c.Offset()
	if err != nil {
		t.Fatalf("Offset() error = %v", err)
	}
	if offset != 2*time.Second {
		t.Errorf("Offset() = %v, want 2s", offset)
	}
}

func TestForceUpdate_CancelledContext(t *testing.T) {
	c, _, server := newTestClient(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := c.ForceUpdate(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("ForceUpdate() error = %v, want context.Canceled", err)
	}
	if server.calls != 0 {
		t.Errorf("queries = %d, want 0", server.calls)
	}
}

func TestZoneName(t *testing.T) {
	tests := map[int]string{
		0:      "UTC+00:00",
		3600:   "UTC+01:00",
		-19800: "UTC-05:30",
	}
	for offset, want := range tests {
		if got := zoneName(offset); got != want {
			t.Errorf("zoneName(%d) = %q, want %q", offset, got, want)
		}
	}
}
