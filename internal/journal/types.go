package journal

import "time"

// Session is one broker connection, from connect to disconnect.
type Session struct {
	ID          string
	ClientID    string
	Broker      string
	ConnectedAt time.Time

	// Attempts is the number of connect attempts it took to open the session.
	Attempts int

	// EndedAt is nil while the session is open.
	EndedAt *time.Time
}

// Message is an inbound publish received during a session.
type Message struct {
	ID         int64
	SessionID  string
	Topic      string
	Payload    []byte
	ReceivedAt time.Time
}
