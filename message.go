package dispatch

// Message is one complete frame sequence received from or sent to a socket.
type Message struct {
	Type MessageType
	Data []byte
}

func (m *Message) Text() string {
	return string(m.Data)
}

func (m *Message) IsText() bool {
	return m.Type == MessageText
}

func (m *Message) IsBinary() bool {
	return m.Type == MessageBinary
}
