package session

import (
	"encoding/json"

	"github.com/coder/websocket"
)

// Envelope is the {type, data} wrapper around every inbound real-time
// message. Data is left raw; consumers decode it per type.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Inbound message types recognized by the dispatcher. Anything else is
// forwarded as an unknown-message event.
const (
	MsgSegmentCompleted = "SegmentCompleted"
	MsgRecordingStatus  = "RecordingStatus"
	MsgThumbnailReady   = "ThumbnailReady"
	MsgMarkerAdded      = "MarkerAdded"
	MsgError            = "Error"
	MsgWarning          = "Warning"
	MsgHeartbeat        = "Heartbeat"
	MsgSessionInfo      = "SessionInfo"
	MsgBufferStatus     = "BufferStatus"
)

// Outbound message types.
const (
	MsgPing              = "Ping"
	MsgHeartbeatResponse = "HeartbeatResponse"
)

// Application close codes in the private-use WebSocket range. Together
// with normal closure, going-away and no-status-received they suppress
// reconnection; every other code triggers backoff.
const (
	CloseSessionEnded   websocket.StatusCode = 4000
	CloseAuthFailed     websocket.StatusCode = 4001
	CloseInvalidSession websocket.StatusCode = 4002
)

// reconnectEligible reports whether a close code should trigger backoff
// reconnection.
func reconnectEligible(code websocket.StatusCode) bool {
	switch code {
	case websocket.StatusNormalClosure,
		websocket.StatusGoingAway,
		websocket.StatusNoStatusRcvd,
		CloseSessionEnded,
		CloseAuthFailed,
		CloseInvalidSession:
		return false
	}

	return true
}

// pingMessage is the outbound liveness probe.
type pingMessage struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// heartbeatResponse answers a server-initiated Heartbeat.
type heartbeatResponse struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}
