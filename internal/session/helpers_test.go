package session

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/coder/websocket"
	"github.com/tidwall/gjson"
)

// fakeTransport is a channel-scripted Transport for driving the read
// loop deterministically. Frames fed to in are served to Read; an
// error fed to errs ends the read loop like a real transport failure.
type fakeTransport struct {
	in   chan []byte
	errs chan error

	mu        sync.Mutex
	writes    [][]byte
	writeErr  error
	closed    bool
	closeCode websocket.StatusCode
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:   make(chan []byte, 16),
		errs: make(chan error, 1),
	}
}

func (t *fakeTransport) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-t.in:
		return data, nil
	case err := <-t.errs:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *fakeTransport) Write(_ context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.writeErr != nil {
		return t.writeErr
	}

	cp := make([]byte, len(data))
	copy(cp, data)
	t.writes = append(t.writes, cp)

	return nil
}

func (t *fakeTransport) Close(code websocket.StatusCode, _ string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	t.closeCode = code

	return nil
}

// writtenTypes decodes the "type" field of every recorded write.
func (t *fakeTransport) writtenTypes() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	types := make([]string, 0, len(t.writes))
	for _, w := range t.writes {
		types = append(types, gjson.GetBytes(w, "type").Str)
	}

	return types
}

func (t *fakeTransport) writeCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.writes)
}

func (t *fakeTransport) wasClosed() (bool, websocket.StatusCode) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.closed, t.closeCode
}

// dialScript is a DialFunc returning a fresh fakeTransport per call,
// optionally failing the first N dials or every dial.
type dialScript struct {
	mu        sync.Mutex
	failFirst int
	failAll   bool
	calls     int
	conns     []*fakeTransport
}

func (d *dialScript) dial(context.Context, string) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls++
	if d.failAll || d.calls <= d.failFirst {
		return nil, errors.New("dial tcp: connection refused")
	}

	ft := newFakeTransport()
	d.conns = append(d.conns, ft)

	return ft, nil
}

func (d *dialScript) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.calls
}

func (d *dialScript) conn(i int) *fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.conns[i]
}

// eventRecorder collects client events across the client's goroutines.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, ev)
}

func (r *eventRecorder) byType(t EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Event

	for _, ev := range r.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}

	return out
}

func (r *eventRecorder) count(t EventType) int {
	return len(r.byType(t))
}

// newTestClient creates a Client with every event type recorded.
func newTestClient(t *testing.T, cfg Config) (*Client, *eventRecorder) {
	t.Helper()

	if cfg.Endpoint == "" {
		cfg.Endpoint = "wss://capture.test"
	}

	c := NewClient(cfg, slog.Default())

	rec := &eventRecorder{}
	for _, et := range []EventType{
		EventConnected, EventDisconnected, EventError,
		EventConnectionFailed, EventMessage, EventUnknownMessage,
	} {
		c.On(et, rec.record)
	}

	return c, rec
}

// decodePayloads unmarshals every recorded write into a generic map.
func decodePayloads(t *testing.T, writes [][]byte) []map[string]any {
	t.Helper()

	out := make([]map[string]any, 0, len(writes))

	for _, w := range writes {
		var m map[string]any
		if err := json.Unmarshal(w, &m); err != nil {
			t.Fatalf("unmarshalling recorded write %q: %v", w, err)
		}

		out = append(out, m)
	}

	return out
}
