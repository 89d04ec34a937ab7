package timesync

import "errors"

var (
	// ErrNotSynced is returned by Offset before the first successful sync.
	ErrNotSynced = errors.New("timesync: clock has not been synchronised")

	// ErrQueryFailed is returned when the NTP server cannot be queried.
	ErrQueryFailed = errors.New("timesync: ntp query failed")
)
