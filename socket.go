package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

type ConnectionInfo struct {
	RemoteAddr string
	Path       string
	Headers    http.Header
	Query      map[string]string
}

// MessageHandlerFunc receives every complete message read from a dialog.
type MessageHandlerFunc func(dialog *Dialog, message *Message)

// Dialog is an open WebSocket. Send methods may be called from any goroutine.
// Messages are delivered to OnMessage callbacks one at a time, in the order
// the callbacks were registered.
type Dialog struct {
	id                 string
	connectionInfo     *ConnectionInfo
	connection         SocketConnection
	writeMu            sync.Mutex
	callbacksMu        sync.Mutex
	messageHandlers    []MessageHandlerFunc
	closeHandlers      []func(dialog *Dialog)
	associatedValuesMx sync.Mutex
	associatedValues   map[string]any
	roomsMx            sync.RWMutex
	rooms              map[string]*Room
	roomManager        *RoomManager
	closeMu            sync.Mutex
	closed             bool
	closeStatus        Status
	closeStatusSource  CloseSource
	closeReason        string
	frameSent          bool
	readErr            error
	closeErr           error
	onFailure          func(err error, stack string)
	ctx                context.Context
	cancelCtx          context.CancelFunc
}

var _ context.Context = &Dialog{}

func NewDialog(info *ConnectionInfo, conn SocketConnection) *Dialog {
	d := &Dialog{
		id:               uuid.NewString(),
		connectionInfo:   info,
		connection:       conn,
		associatedValues: map[string]any{},
		rooms:            map[string]*Room{},
		closeStatus:      StatusNormalClosure,
	}

	d.ctx, d.cancelCtx = context.WithCancel(context.Background())

	return d
}

func (d *Dialog) ID() string {
	return d.id
}

func (d *Dialog) ConnectionInfo() *ConnectionInfo {
	return d.connectionInfo
}

func (d *Dialog) Headers() http.Header {
	if d.connectionInfo != nil && d.connectionInfo.Headers != nil {
		return d.connectionInfo.Headers
	}

	return http.Header{}
}

// QueryParam returns a query parameter from the upgrade request URL.
func (d *Dialog) QueryParam(key string) string {
	if d.connectionInfo != nil && d.connectionInfo.Query != nil {
		return d.connectionInfo.Query[key]
	}

	return ""
}

func (d *Dialog) RemoteAddr() string {
	if d.connectionInfo != nil {
		return d.connectionInfo.RemoteAddr
	}

	return ""
}

// OnMessage registers a callback for incoming messages. Callbacks registered
// while a message is being delivered take effect from the next message.
func (d *Dialog) OnMessage(handler MessageHandlerFunc) {
	d.callbacksMu.Lock()
	defer d.callbacksMu.Unlock()
	d.messageHandlers = append(d.messageHandlers, handler)
}

// OnClose registers a callback that runs once after the read loop ends.
func (d *Dialog) OnClose(handler func(dialog *Dialog)) {
	d.callbacksMu.Lock()
	defer d.callbacksMu.Unlock()
	d.closeHandlers = append(d.closeHandlers, handler)
}

func (d *Dialog) Send(messageType MessageType, data []byte) error {
	if d.IsClosed() {
		return ErrDialogClosed
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()
	return d.connection.Write(d.ctx, &Message{
		Type: messageType,
		Data: data,
	})
}

func (d *Dialog) SendText(text string) error {
	return d.Send(MessageText, []byte(text))
}

func (d *Dialog) SendBinary(data []byte) error {
	return d.Send(MessageBinary, data)
}

// Close records the close status and sends the close frame. It may be called
// from any goroutine; a read loop blocked on the socket ends once the peer
// answers. Only the first call counts.
func (d *Dialog) Close(status Status, reason string) {
	if !d.close(status, reason, ServerCloseSource) {
		return
	}
	d.closeConnection()
	d.cancelCtx()
}

func (d *Dialog) close(status Status, reason string, source CloseSource) bool {
	d.closeMu.Lock()
	defer d.closeMu.Unlock()
	if d.closed {
		return false
	}

	d.closed = true
	d.closeStatus = status
	d.closeReason = reason
	d.closeStatusSource = source
	return true
}

// closeConnection sends the recorded close status to the peer once. The
// connection is closed outside closeMu so a concurrent Read can return.
func (d *Dialog) closeConnection() {
	d.closeMu.Lock()
	if d.frameSent {
		d.closeMu.Unlock()
		return
	}
	d.frameSent = true
	status, reason := d.closeStatus, d.closeReason
	d.closeMu.Unlock()

	err := d.connection.Close(status, reason)

	d.closeMu.Lock()
	d.closeErr = err
	d.closeMu.Unlock()
}

func (d *Dialog) IsClosed() bool {
	d.closeMu.Lock()
	defer d.closeMu.Unlock()
	return d.closed
}

// CloseStatus returns the recorded close status, reason, and who closed.
func (d *Dialog) CloseStatus() (Status, string, CloseSource) {
	d.closeMu.Lock()
	defer d.closeMu.Unlock()
	return d.closeStatus, d.closeReason, d.closeStatusSource
}

// ReadErr returns the transport error that ended the read loop, if any.
func (d *Dialog) ReadErr() error {
	d.closeMu.Lock()
	defer d.closeMu.Unlock()
	return d.readErr
}

func (d *Dialog) closeError() error {
	d.closeMu.Lock()
	defer d.closeMu.Unlock()
	return d.closeErr
}

func (d *Dialog) Set(key string, value any) {
	d.associatedValuesMx.Lock()
	defer d.associatedValuesMx.Unlock()
	d.associatedValues[key] = value
}

func (d *Dialog) Get(key string) (any, bool) {
	d.associatedValuesMx.Lock()
	defer d.associatedValuesMx.Unlock()
	v, ok := d.associatedValues[key]
	return v, ok
}

func (d *Dialog) MustGet(key string) any {
	d.associatedValuesMx.Lock()
	defer d.associatedValuesMx.Unlock()
	v, ok := d.associatedValues[key]
	if !ok {
		panic(fmt.Sprintf("key %s not found", key))
	}

	return v
}

func (d *Dialog) Delete(key string) {
	d.associatedValuesMx.Lock()
	defer d.associatedValuesMx.Unlock()
	delete(d.associatedValues, key)
}

// Run reads messages until the peer closes, Close is called, or the transport
// fails. The server calls it after a chain ends with Continue.
func (d *Dialog) Run() {
	for d.handleNextMessage() {
	}
}

func (d *Dialog) handleNextMessage() bool {
	if d.IsClosed() {
		return false
	}

	msg, err := d.connection.Read(d)
	if err != nil {
		if closeStatus := websocket.CloseStatus(err); closeStatus != -1 {
			d.close(Status(closeStatus), "", ClientCloseSource)
			return false
		}
		if d.IsClosed() {
			return false
		}

		d.closeMu.Lock()
		d.readErr = err
		d.closeMu.Unlock()
		d.close(StatusInternalError, "", TransportCloseSource)
		return false
	}

	d.callbacksMu.Lock()
	handlers := make([]MessageHandlerFunc, len(d.messageHandlers))
	copy(handlers, d.messageHandlers)
	d.callbacksMu.Unlock()

	for _, handler := range handlers {
		if d.IsClosed() {
			break
		}
		if stack, err := execWithRecovery(func() { handler(d, msg) }); err != nil {
			d.reportFailure(err, stack)
			d.Close(StatusInternalError, "internal error")
		}
	}

	return !d.IsClosed()
}

func (d *Dialog) handleClose() {
	d.callbacksMu.Lock()
	handlers := make([]func(*Dialog), len(d.closeHandlers))
	copy(handlers, d.closeHandlers)
	d.callbacksMu.Unlock()

	for _, handler := range handlers {
		if stack, err := execWithRecovery(func() { handler(d) }); err != nil {
			d.reportFailure(err, stack)
		}
	}
}

func (d *Dialog) reportFailure(err error, stack string) {
	if d.onFailure != nil {
		d.onFailure(err, stack)
	}
}

func (d *Dialog) Deadline() (time.Time, bool) {
	return d.ctx.Deadline()
}

func (d *Dialog) Done() <-chan struct{} {
	return d.ctx.Done()
}

func (d *Dialog) Err() error {
	return d.ctx.Err()
}

func (d *Dialog) Value(key any) any {
	return d.ctx.Value(key)
}

func (d *Dialog) setRoomManager(rm *RoomManager) {
	d.roomManager = rm
}

func (d *Dialog) Join(roomName string) {
	if d.roomManager == nil {
		return
	}

	d.roomsMx.Lock()
	defer d.roomsMx.Unlock()
	room := d.roomManager.Room(roomName)
	d.rooms[roomName] = room
	room.addDialog(d)
}

func (d *Dialog) Leave(roomName string) {
	d.roomsMx.Lock()
	room, exists := d.rooms[roomName]
	if exists {
		delete(d.rooms, roomName)
	}

	d.roomsMx.Unlock()
	if exists && room != nil {
		room.removeDialog(d)
	}
}

func (d *Dialog) Rooms() []string {
	d.roomsMx.RLock()
	defer d.roomsMx.RUnlock()
	rooms := make([]string, 0, len(d.rooms))
	for name := range d.rooms {
		rooms = append(rooms, name)
	}

	return rooms
}

func (d *Dialog) leaveAllRooms() {
	d.roomsMx.Lock()
	rooms := d.rooms
	d.rooms = make(map[string]*Room)
	d.roomsMx.Unlock()
	for _, room := range rooms {
		if room != nil {
			room.removeDialog(d)
		}
	}
}
