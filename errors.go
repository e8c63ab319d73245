package dispatch

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyHandlerChain = errors.New("no handlers provided")
	ErrAlreadyRunning    = errors.New("server is already serving, routes can no longer be registered")
	ErrBadUpgradeRequest = errors.New("expected websocket upgrade request")
	ErrRouteNotFound     = errors.New("no route matches")
	ErrDuplicateParam    = errors.New("duplicate parameter name")
	ErrWildcardNotLast   = errors.New("wildcard must be the last segment")
	ErrEmptyParamName    = errors.New("parameter must have a name")
	ErrEmptySegment      = errors.New("pattern contains an empty segment")
	ErrMissingParam      = errors.New("missing required parameter")
	ErrNoUnmarshaler     = errors.New("no body unmarshaler set")
	ErrNoMarshaller      = errors.New("no response marshaller set")
	ErrDialogClosed      = errors.New("dialog is closed")
	ErrNoConnection      = errors.New("connection info and connection are required")
)

type InvalidHandlerError struct {
	Expected []string
	Got      string
}

func (e *InvalidHandlerError) Error() string {
	return fmt.Sprintf("invalid handler type: expected one of %v, got %s", e.Expected, e.Got)
}

type InvalidPatternError struct {
	Pattern string
	Reason  error
}

func (e *InvalidPatternError) Error() string {
	return fmt.Sprintf("invalid route pattern %q: %v", e.Pattern, e.Reason)
}

func (e *InvalidPatternError) Unwrap() error {
	return e.Reason
}

// HandlerFailure describes a handler that panicked or failed while serving a
// request. It is handed to the failure observer exactly once per request.
type HandlerFailure struct {
	Method string
	Path   string
	Err    error
	Stack  string
}

func (e *HandlerFailure) Error() string {
	return fmt.Sprintf("handler failed for %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *HandlerFailure) Unwrap() error {
	return e.Err
}
