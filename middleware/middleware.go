package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/snapflowio/dispatch"
)

const RequestIDHeader = "X-Request-ID"

func Set[V any](key string, value V) dispatch.HandlerFunc {
	return func(ctx *dispatch.Context) dispatch.Result {
		ctx.Set(key, value)
		return dispatch.Continue
	}
}

func SetFunc[V any](key string, fn func() V) dispatch.HandlerFunc {
	return func(ctx *dispatch.Context) dispatch.Result {
		ctx.Set(key, fn())
		return dispatch.Continue
	}
}

func SetFromContext[V any](key string, fn func(*dispatch.Context) V) dispatch.HandlerFunc {
	return func(ctx *dispatch.Context) dispatch.Result {
		ctx.Set(key, fn(ctx))
		return dispatch.Continue
	}
}

// DialogSet stores value on the dialog of a WebSocket route. It does nothing
// on plain routes.
func DialogSet[V any](key string, value V) dispatch.HandlerFunc {
	return func(ctx *dispatch.Context) dispatch.Result {
		if dialog := ctx.Dialog(); dialog != nil {
			dialog.Set(key, value)
		}
		return dispatch.Continue
	}
}

func Logger(logger *logrus.Logger) dispatch.HandlerFunc {
	if logger == nil {
		logger = logrus.New()
	}
	return func(ctx *dispatch.Context) dispatch.Result {
		logger.WithFields(logrus.Fields{
			"method":    ctx.Method(),
			"path":      ctx.Path(),
			"requestId": ctx.RequestID(),
			"remote":    ctx.RemoteAddr(),
			"websocket": ctx.Dialog() != nil,
		}).Debug("request received")
		return dispatch.Continue
	}
}

// RequestID stores a request id under "requestID" and echoes it in the
// X-Request-ID response header. An id sent by the client is kept.
func RequestID() dispatch.HandlerFunc {
	return func(ctx *dispatch.Context) dispatch.Result {
		requestID := ctx.Headers().Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		ctx.Set("requestID", requestID)
		ctx.Header().Set(RequestIDHeader, requestID)
		return dispatch.Continue
	}
}

// CORS rejects requests from origins that are not allowed and answers
// preflight requests reaching a route bound with dispatch.Any. Requests
// without an Origin header pass through.
func CORS(allowedOrigins []string) dispatch.HandlerFunc {
	originMap := make(map[string]bool)
	for _, origin := range allowedOrigins {
		originMap[origin] = true
	}

	return func(ctx *dispatch.Context) dispatch.Result {
		origin := ctx.Headers().Get("Origin")
		if origin == "" {
			return dispatch.Continue
		}
		if len(originMap) > 0 && !originMap[origin] && !originMap["*"] {
			_ = ctx.Text(http.StatusForbidden, http.StatusText(http.StatusForbidden))
			return dispatch.Final
		}

		ctx.Header().Set("Access-Control-Allow-Origin", origin)
		ctx.Header().Add("Vary", "Origin")
		if ctx.Method() == http.MethodOptions {
			ctx.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			if requested := ctx.Headers().Get("Access-Control-Request-Headers"); requested != "" {
				ctx.Header().Set("Access-Control-Allow-Headers", requested)
			}
			ctx.Status(http.StatusNoContent)
			return dispatch.Final
		}
		return dispatch.Continue
	}
}

// RateLimit allows maxRequests per remote host in each window. Requests over
// the limit get a 429.
func RateLimit(maxRequests int, window time.Duration) dispatch.HandlerFunc {
	limiter := newRateLimiter(maxRequests, window)

	return func(ctx *dispatch.Context) dispatch.Result {
		key := ctx.RemoteAddr()
		if host, _, err := net.SplitHostPort(key); err == nil {
			key = host
		}

		if !limiter.allow(key, time.Now()) {
			_ = ctx.Text(http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests))
			return dispatch.Final
		}
		return dispatch.Continue
	}
}

type rateLimitData struct {
	count     int
	resetTime time.Time
}

type rateLimiter struct {
	maxRequests int
	window      time.Duration
	mu          sync.Mutex
	clients     map[string]*rateLimitData
	nextSweep   time.Time
}

func newRateLimiter(maxRequests int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		maxRequests: maxRequests,
		window:      window,
		clients:     map[string]*rateLimitData{},
	}
}

func (l *rateLimiter) allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Hosts whose window has ended are dropped at most once per window.
	if !now.Before(l.nextSweep) {
		for host, data := range l.clients {
			if now.After(data.resetTime) {
				delete(l.clients, host)
			}
		}
		l.nextSweep = now.Add(l.window)
	}

	data, ok := l.clients[key]
	if !ok {
		data = &rateLimitData{}
		l.clients[key] = data
	}
	if now.After(data.resetTime) {
		data.count = 0
		data.resetTime = now.Add(l.window)
	}
	data.count++
	return data.count <= l.maxRequests
}

// RequirePlugin ends the chain with status unless key holds a value, which is
// how session and auth plugins gate routes. On WebSocket routes the dialog is
// closed with a policy violation instead.
func RequirePlugin[T any](key *dispatch.PluginKey[T], status int) dispatch.HandlerFunc {
	return func(ctx *dispatch.Context) dispatch.Result {
		if key.Has(ctx) {
			return dispatch.Continue
		}
		if dialog := ctx.Dialog(); dialog != nil {
			dialog.Close(dispatch.StatusPolicyViolation, http.StatusText(status))
			return dispatch.Final
		}
		_ = ctx.Text(status, http.StatusText(status))
		return dispatch.Final
	}
}
