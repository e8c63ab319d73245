package dispatch

// Result is the signal a handler returns to the chain.
type Result int

const (
	// Continue passes control to the next handler in the chain.
	Continue Result = iota
	// Final stops the chain. The handler has produced the response.
	Final
	// Error stops the chain abnormally.
	Error
)

func (r Result) String() string {
	switch r {
	case Continue:
		return "continue"
	case Final:
		return "final"
	case Error:
		return "error"
	}
	return "unknown"
}

type Handler interface {
	Handle(ctx *Context) Result
}

type SocketHandler interface {
	HandleSocket(ctx *Context, dialog *Dialog) Result
}

type HandlerFunc func(ctx *Context) Result

type SocketHandlerFunc func(ctx *Context, dialog *Dialog) Result

type BindType int

const (
	HTTPBindType BindType = iota
	SocketBindType
)

// Any may be passed as the method to Route to match every request method.
const Any = "*"

type HandlerNode struct {
	BindType BindType
	Method   string
	Pattern  *Pattern
	Handlers []any
	Next     *HandlerNode
	chain    []any
}

func (n *HandlerNode) tryMatch(method string, path string, upgrade bool) (Params, bool) {
	switch n.BindType {
	case SocketBindType:
		if !upgrade {
			return nil, false
		}
	default:
		if n.Method != Any && n.Method != method {
			return nil, false
		}
	}
	return n.Pattern.Match(path)
}
