package domain

import "time"

// ConnState is the externally visible state of the stream connection.
type ConnState string

const (
	ConnConnected    ConnState = "CONNECTED"
	ConnReconnecting ConnState = "RECONNECTING"
	ConnFailed       ConnState = "FAILED"
)

// LifecycleEvent is emitted by the stream connection whenever its state
// changes. SessionID identifies one websocket session; it changes on
// every successful (re)connect.
type LifecycleEvent struct {
	State     ConnState
	SessionID string
	// Attempt counts reconnect attempts within the current outage,
	// zero while connected.
	Attempt int
	// Latency is the most recent ping round-trip estimate.
	Latency time.Duration
	At      time.Time
}
