package dispatch

import (
	"fmt"
	"net/http"
	"reflect"
)

// execute runs handlers in order against ctx. The chain stops at the first
// handler that returns Final or Error, or at the first failure. It returns
// Continue only when every handler returned Continue.
func (s *Server) execute(ctx *Context, handlers []any) Result {
	for _, handler := range handlers {
		result := Continue
		stack, err := execWithRecovery(func() {
			result = invokeHandler(handler, ctx)
		})
		if err != nil {
			return s.translateFailure(ctx, err, stack)
		}

		switch result {
		case Continue:
			continue
		case Error:
			if ctx.failure != nil {
				return s.translateFailure(ctx, ctx.failure, "")
			}
			if ctx.dialog == nil && !ctx.Written() {
				ctx.Status(http.StatusInternalServerError)
			}
			return Error
		default:
			return Final
		}
	}

	return Continue
}

func invokeHandler(handler any, ctx *Context) Result {
	if ctx.dialog != nil {
		if h, ok := handler.(SocketHandler); ok {
			return h.HandleSocket(ctx, ctx.dialog)
		}
	}

	switch h := handler.(type) {
	case Handler:
		return h.Handle(ctx)
	case HandlerFunc:
		return h(ctx)
	case func(*Context) Result:
		return h(ctx)
	case SocketHandlerFunc:
		return h(ctx, ctx.dialog)
	case func(*Context, *Dialog) Result:
		return h(ctx, ctx.dialog)
	}

	panic(fmt.Sprintf("Unknown handler type: %s", reflect.TypeOf(handler)))
}

func concatHandlers(middleware []any, handlers []any) []any {
	chain := make([]any, 0, len(middleware)+len(handlers))
	chain = append(chain, middleware...)
	return append(chain, handlers...)
}
