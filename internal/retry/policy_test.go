package retry

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/nerrad567/netbeacon/internal/infrastructure/config"
)

// fakeTimer fires immediately and records every requested delay.
type fakeTimer struct {
	c      chan time.Time
	delays []time.Duration
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{c: make(chan time.Time, 1)}
}

func (f *fakeTimer) Start(d time.Duration) {
	f.delays = append(f.delays, d)
	f.c <- time.Time{}
}

func (f *fakeTimer) Stop() {}

func (f *fakeTimer) C() <-chan time.Time { return f.c }

// failing returns an op that fails n times and then succeeds.
func failing(n int) func() error {
	return func() error {
		if n > 0 {
			n--
			return errors.New("connect failed")
		}
		return nil
	}
}

func TestDo_FixedDelay(t *testing.T) {
	timer := newFakeTimer()
	p := New(config.MQTTReconnectConfig{Delay: 5 * time.Second, Multiplier: 1}).WithTimer(timer)

	var notified []time.Duration
	attempts, err := p.Do(context.Background(), failing(3), func(_ error, next time.Duration) {
		notified = append(notified, next)
	})

	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if attempts != 4 {
		t.Errorf("attempts = %d, want 4", attempts)
	}
	want := []time.Duration{5 * time.Second, 5 * time.Second, 5 * time.Second}
	if !reflect.DeepEqual(timer.delays, want) {
		t.Errorf("delays = %v, want %v", timer.delays, want)
	}
	if !reflect.DeepEqual(notified, want) {
		t.Errorf("notified = %v, want %v", notified, want)
	}
}

func TestDo_SucceedsFirstTime(t *testing.T) {
	timer := newFakeTimer()
	p := New(config.MQTTReconnectConfig{Delay: 5 * time.Second}).WithTimer(timer)

	attempts, err := p.Do(context.Background(), failing(0), nil)
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if len(timer.delays) != 0 {
		t.Errorf("delays = %v, want none", timer.delays)
	}
}

func TestDo_Exponential(t *testing.T) {
	timer := newFakeTimer()
	p := New(config.MQTTReconnectConfig{
		Delay:      time.Second,
		MaxDelay:   5 * time.Second,
		Multiplier: 2,
	}).WithTimer(timer)

	if _, err := p.Do(context.Background(), failing(5), nil); err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 5 * time.Second, 5 * time.Second}
	if !reflect.DeepEqual(timer.delays, want) {
		t.Errorf("delays = %v, want %v", timer.delays, want)
	}
}

func TestDo_MaxAttempts(t *testing.T) {
	timer := newFakeTimer()
	p := New(config.MQTTReconnectConfig{Delay: time.Second, MaxAttempts: 3}).WithTimer(timer)

	attempts, err := p.Do(context.Background(), failing(10), nil)
	if err == nil {
		t.Fatal("Do() expected error after max attempts")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if len(timer.delays) != 2 {
		t.Errorf("delays = %d, want 2", len(timer.delays))
	}
}

func TestDo_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := New(config.MQTTReconnectConfig{Delay: time.Hour})

	op := func() error {
		cancel()
		return errors.New("connect failed")
	}

	done := make(chan error, 1)
	go func() {
		_, err := p.Do(ctx, op, nil)
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Do() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Do() did not return after cancellation")
	}
}
