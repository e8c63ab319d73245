package dispatch

import "reflect"

func validateHandlers(handlers []any, allowedTypes ...string) error {
	if len(handlers) == 0 {
		return ErrEmptyHandlerChain
	}
	for _, handler := range handlers {
		if !isValidHandler(handler, allowedTypes...) {
			got := "nil"
			if handler != nil {
				got = reflect.TypeOf(handler).String()
			}
			return &InvalidHandlerError{
				Expected: allowedTypes,
				Got:      got,
			}
		}
	}
	return nil
}

func isValidHandler(handler any, allowedTypes ...string) bool {
	for _, allowedType := range allowedTypes {
		switch allowedType {
		case "Handler":
			if _, ok := handler.(Handler); ok {
				return true
			}
		case "SocketHandler":
			if _, ok := handler.(SocketHandler); ok {
				return true
			}
		case "HandlerFunc":
			if _, ok := handler.(HandlerFunc); ok {
				return true
			}
		case "SocketHandlerFunc":
			if _, ok := handler.(SocketHandlerFunc); ok {
				return true
			}
		case "func(*Context) Result":
			if _, ok := handler.(func(*Context) Result); ok {
				return true
			}
		case "func(*Context, *Dialog) Result":
			if _, ok := handler.(func(*Context, *Dialog) Result); ok {
				return true
			}
		}
	}
	return false
}

func validateHTTPHandlers(handlers []any) error {
	return validateHandlers(handlers, "Handler", "HandlerFunc", "func(*Context) Result")
}

func validateSocketHandlers(handlers []any) error {
	return validateHandlers(handlers,
		"SocketHandler", "SocketHandlerFunc", "func(*Context, *Dialog) Result",
		"Handler", "HandlerFunc", "func(*Context) Result",
	)
}
