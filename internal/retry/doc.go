// Package retry runs an operation until it succeeds under a reconnect policy.
//
// A Policy is built from config.MQTTReconnectConfig: a fixed delay by
// default, or an exponential delay capped at max_delay when the multiplier is
// greater than one, with an optional cap on attempts. It is backed by
// github.com/cenkalti/backoff/v4. The wait between attempts goes through a
// backoff.Timer so tests can run a policy without sleeping.
package retry
