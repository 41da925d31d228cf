package session

import (
	"context"
	"fmt"

	"github.com/coder/websocket"
)

// Transport abstracts the duplex channel so the client can be tested
// without a real server. *wsTransport satisfies this interface.
type Transport interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// DialFunc opens a transport to the given session endpoint URL.
type DialFunc func(ctx context.Context, url string) (Transport, error)

// wsReadLimit bounds inbound frame size. Envelopes are small control
// messages; 1MB leaves generous headroom.
const wsReadLimit = 1 * 1024 * 1024

// dialWebSocket is the production DialFunc.
func dialWebSocket(ctx context.Context, url string) (Transport, error) {
	conn, _, err := websocket.Dial(ctx, url, nil) //nolint:bodyclose // websocket.Dial closes the response body internally
	if err != nil {
		return nil, fmt.Errorf("dialing websocket: %w", err)
	}

	conn.SetReadLimit(wsReadLimit)

	return &wsTransport{conn: conn}, nil
}

type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) Read(ctx context.Context) ([]byte, error) {
	_, data, err := t.conn.Read(ctx)

	return data, err
}

func (t *wsTransport) Write(ctx context.Context, data []byte) error {
	return t.conn.Write(ctx, websocket.MessageText, data)
}

func (t *wsTransport) Close(code websocket.StatusCode, reason string) error {
	return t.conn.Close(code, reason)
}
