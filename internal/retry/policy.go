package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nerrad567/netbeacon/internal/infrastructure/config"
)

// Notify is called after each failed attempt with the error and the delay
// before the next attempt.
type Notify func(err error, next time.Duration)

// Policy decides how long to wait between attempts and when to give up.
type Policy struct {
	cfg   config.MQTTReconnectConfig
	timer backoff.Timer
}

// New returns a policy for the reconnect configuration.
func New(cfg config.MQTTReconnectConfig) *Policy {
	return &Policy{cfg: cfg}
}

// WithTimer replaces the timer used to wait between attempts.
func (p *Policy) WithTimer(t backoff.Timer) *Policy {
	p.timer = t
	return p
}

// Do runs op until it returns nil, the attempt limit is reached or ctx is
// cancelled. It returns the number of attempts made and the final error.
func (p *Policy) Do(ctx context.Context, op func() error, notify Notify) (int, error) {
	attempts := 0
	counted := func() error {
		attempts++
		return op()
	}

	var n backoff.Notify
	if notify != nil {
		n = backoff.Notify(notify)
	}

	err := backoff.RetryNotifyWithTimer(counted, backoff.WithContext(p.backOff(), ctx), n, p.timer)
	return attempts, err
}

// backOff builds a fresh backoff for one run of Do.
func (p *Policy) backOff() backoff.BackOff {
	var b backoff.BackOff
	if p.cfg.Multiplier <= 1 {
		b = backoff.NewConstantBackOff(p.cfg.Delay)
	} else {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = p.cfg.Delay
		exp.Multiplier = p.cfg.Multiplier
		exp.RandomizationFactor = 0
		exp.MaxInterval = p.cfg.MaxDelay
		if exp.MaxInterval < exp.InitialInterval {
			exp.MaxInterval = exp.InitialInterval
		}
		exp.MaxElapsedTime = 0
		b = exp
	}

	if p.cfg.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(p.cfg.MaxAttempts-1))
	}
	return b
}
