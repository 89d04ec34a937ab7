package timesync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/beevik/ntp"

	"github.com/nerrad567/netbeacon/internal/infrastructure/config"
)

// Default settings used when the config leaves them unset.
const (
	defaultUpdateInterval = 60 * time.Second
	defaultQueryTimeout   = 2 * time.Second
)

// timeLayout is the heartbeat time format.
const timeLayout = "15:04:05"

// QueryFunc asks server for the offset between the local clock and server time.
type QueryFunc func(server string, timeout time.Duration) (time.Duration, error)

// Client is an NTP-corrected clock.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	cfg   config.NTPConfig
	zone  *time.Location
	query QueryFunc
	now   func() time.Time

	mu       sync.Mutex
	started  bool
	synced   bool
	offset   time.Duration
	lastSync time.Time
}

// New creates a client for the configured server. Call Begin before use.
func New(cfg config.NTPConfig) *Client {
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = defaultUpdateInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultQueryTimeout
	}

	return &Client{
		cfg:   cfg,
		zone:  time.FixedZone(zoneName(cfg.Offset), cfg.Offset),
		query: queryNTP,
		now:   time.Now,
	}
}

// queryNTP is the QueryFunc backed by github.com/beevik/ntp.
func queryNTP(server string, timeout time.Duration) (time.Duration, error) {
	resp, err := ntp.QueryWithOptions(server, ntp.QueryOptions{Timeout: timeout})
	if err != nil {
		return 0, err
	}
	if err := resp.Validate(); err != nil {
		return 0, err
	}
	return resp.ClockOffset, nil
}

// Begin starts the client. No query is made until the first Update.
func (c *Client) Begin() {
	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
}

// Update re-syncs if the last sync is older than the update interval.
//
// It reports whether the clock is fresh afterwards: true if a sync is still
// within its interval or a due sync succeeded, false if the client has not
// been started or the due sync failed.
func (c *Client) Update(ctx context.Context) bool {
	c.mu.Lock()
	started := c.started
	fresh := c.synced && c.now().Sub(c.lastSync) < c.cfg.UpdateInterval
	c.mu.Unlock()

	if !started {
		return false
	}
	if fresh {
		return true
	}
	return c.ForceUpdate(ctx) == nil
}

// ForceUpdate queries the server regardless of the last sync time.
// On failure the previous offset is kept.
func (c *Client) ForceUpdate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	offset, err := c.query(c.cfg.Server, c.cfg.Timeout)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrQueryFailed, c.cfg.Server, err)
	}

	c.mu.Lock()
	c.offset = offset
	c.synced = true
	c.lastSync = c.now()
	c.mu.Unlock()

	return nil
}

// Now returns the corrected time in the configured zone.
func (c *Client) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Add(c.offset).In(c.zone)
}

// FormattedTime returns the corrected time as HH:MM:SS.
func (c *Client) FormattedTime() string {
	return c.Now().Format(timeLayout)
}

// Offset returns the clock correction from the last successful sync.
func (c *Client) Offset() (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.synced {
		return 0, ErrNotSynced
	}
	return c.offset, nil
}

// zoneName renders a fixed offset as UTC+HH:MM.
func zoneName(offset int) string {
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	return fmt.Sprintf("UTC%c%02d:%02d", sign, offset/3600, (offset%3600)/60)
}
