package dispatch

import "github.com/coder/websocket"

// Status is a WebSocket close status code.
type Status = websocket.StatusCode

const (
	StatusNormalClosure   Status = websocket.StatusNormalClosure
	StatusGoingAway       Status = websocket.StatusGoingAway
	StatusProtocolError   Status = websocket.StatusProtocolError
	StatusUnsupportedData Status = websocket.StatusUnsupportedData
	StatusAbnormalClosure Status = websocket.StatusAbnormalClosure
	StatusPolicyViolation Status = websocket.StatusPolicyViolation
	StatusMessageTooBig   Status = websocket.StatusMessageTooBig
	StatusInternalError   Status = websocket.StatusInternalError
	StatusTryAgainLater   Status = websocket.StatusTryAgainLater
)

type CloseSource int

const (
	ClientCloseSource CloseSource = iota
	ServerCloseSource
	TransportCloseSource
)

func (s CloseSource) String() string {
	switch s {
	case ClientCloseSource:
		return "client"
	case ServerCloseSource:
		return "server"
	case TransportCloseSource:
		return "transport"
	}
	return "unknown"
}
