package dispatch

import (
	"context"

	"github.com/coder/websocket"
)

type MessageType = websocket.MessageType

const (
	MessageText   MessageType = websocket.MessageText
	MessageBinary MessageType = websocket.MessageBinary
)

// SocketConnection is the transport a Dialog drives. WebSocketConnection is
// the implementation used by the server; tests and other transports may
// provide their own. Close may be called while a Read is pending and must
// make that Read return.
type SocketConnection interface {
	Read(ctx context.Context) (*Message, error)
	Write(ctx context.Context, msg *Message) error
	Close(status Status, reason string) error
}

type WebSocketConnection struct {
	conn *websocket.Conn
}

var _ SocketConnection = &WebSocketConnection{}

func NewWebSocketConnection(conn *websocket.Conn) *WebSocketConnection {
	return &WebSocketConnection{
		conn: conn,
	}
}

func (c *WebSocketConnection) Read(ctx context.Context) (*Message, error) {
	messageType, data, err := c.conn.Read(ctx)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type: messageType,
		Data: data,
	}, nil
}

func (c *WebSocketConnection) Write(ctx context.Context, msg *Message) error {
	return c.conn.Write(ctx, msg.Type, msg.Data)
}

func (c *WebSocketConnection) Close(status Status, reason string) error {
	return c.conn.Close(websocket.StatusCode(status), reason)
}
