package session

import (
	"sync"

	"github.com/coder/websocket"
)

// EventType identifies an event emitted by the client.
type EventType string

const (
	EventConnected        EventType = "connected"
	EventDisconnected     EventType = "disconnected"
	EventError            EventType = "error"
	EventConnectionFailed EventType = "connectionFailed"
	EventMessage          EventType = "message"
	EventUnknownMessage   EventType = "unknownMessage"
)

// Event carries the payload of a client event. Fields are populated per
// Type: Code and Reason for disconnected, Err for error and
// connectionFailed, Attempts for connectionFailed, Envelope for message
// and unknownMessage.
type Event struct {
	Type     EventType
	ConnID   string
	Code     websocket.StatusCode
	Reason   string
	Err      error
	Attempts int
	Envelope *Envelope
}

// Handler receives client events. Handlers run on the client's own
// goroutines and must not block.
type Handler func(Event)

// emitter dispatches events to handlers registered per event type.
type emitter struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

func (e *emitter) on(t EventType, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handlers == nil {
		e.handlers = make(map[EventType][]Handler)
	}

	e.handlers[t] = append(e.handlers[t], h)
}

func (e *emitter) emit(ev Event) {
	e.mu.RLock()
	handlers := e.handlers[ev.Type]
	e.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}
