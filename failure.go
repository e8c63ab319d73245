package dispatch

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/sirupsen/logrus"
)

func execWithRecovery(fn func()) (stack string, err error) {
	defer func() {
		if maybeErr := recover(); maybeErr != nil {
			if e, ok := maybeErr.(error); ok {
				err = e
			} else {
				err = fmt.Errorf("%v", maybeErr)
			}
			stackLines := strings.Split(string(debug.Stack()), "\n")
			if len(stackLines) > 6 {
				stackLines = stackLines[6:]
			}
			stack = strings.Join(stackLines, "\n")
		}
	}()
	fn()
	return "", nil
}

// translateFailure reports a failed handler and turns it into a terminal
// result. A 500 is only written when nothing has reached the client yet.
func (s *Server) translateFailure(ctx *Context, err error, stack string) Result {
	failure := &HandlerFailure{
		Method: ctx.Method(),
		Path:   ctx.Path(),
		Err:    err,
		Stack:  stack,
	}
	s.reportFailure(failure)

	if ctx.dialog != nil {
		ctx.dialog.Close(StatusInternalError, "internal error")
		return Error
	}
	if ctx.Written() {
		return Error
	}

	body := http.StatusText(http.StatusInternalServerError)
	if s.verboseErrors {
		body = failure.Error()
		if stack != "" {
			body += "\n\n" + stack
		}
	}
	if writeErr := ctx.Text(http.StatusInternalServerError, body); writeErr != nil {
		s.logger.WithError(writeErr).Error("failed to write error response")
	}
	return Error
}

func (s *Server) reportFailure(failure *HandlerFailure) {
	observer := s.failureObserver
	if observer == nil {
		observer = s.logFailure
	}
	if stack, err := execWithRecovery(func() { observer(failure) }); err != nil {
		s.logger.WithError(err).WithField("stack", stack).Error("failure observer panicked")
	}
}

func (s *Server) logFailure(failure *HandlerFailure) {
	s.logger.WithFields(logrus.Fields{
		"method": failure.Method,
		"path":   failure.Path,
		"stack":  failure.Stack,
	}).WithError(failure.Err).Error("handler failed")
}
