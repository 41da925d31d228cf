package errors

import "errors"

// Client errors.
var (
	ErrEmptySessionID = errors.New("session id must not be empty")
	ErrNotConnected   = errors.New("not connected")
)

// Transport errors.
var (
	ErrHeartbeatTimeout   = errors.New("heartbeat timeout")
	ErrReconnectExhausted = errors.New("reconnect attempts exhausted")
)
