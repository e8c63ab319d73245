package middleware_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/snapflowio/dispatch"
	"github.com/snapflowio/dispatch/middleware"
)

func newServer() *dispatch.Server {
	server := dispatch.NewServer()
	server.Logger().SetOutput(io.Discard)
	return server
}

func serve(server *dispatch.Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func ok(ctx *dispatch.Context) dispatch.Result {
	_ = ctx.Text(http.StatusOK, "ok")
	return dispatch.Final
}

func TestSet(t *testing.T) {
	server := newServer()
	_ = server.Get("/",
		middleware.Set("static", "value"),
		middleware.SetFunc("computed", func() int { return 7 }),
		middleware.SetFromContext("path", func(ctx *dispatch.Context) string { return ctx.Path() }),
		func(ctx *dispatch.Context) dispatch.Result {
			if ctx.MustGet("static") != "value" {
				t.Errorf("unexpected static value %v", ctx.MustGet("static"))
			}
			if ctx.MustGet("computed") != 7 {
				t.Errorf("unexpected computed value %v", ctx.MustGet("computed"))
			}
			if ctx.MustGet("path") != "/" {
				t.Errorf("unexpected path value %v", ctx.MustGet("path"))
			}
			return ok(ctx)
		},
	)

	if rec := serve(server, httptest.NewRequest(http.MethodGet, "/", nil)); rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
}

func TestRequestIDGenerated(t *testing.T) {
	server := newServer()
	_ = server.Use(middleware.RequestID())

	var stored string
	_ = server.Get("/", func(ctx *dispatch.Context) dispatch.Result {
		stored, _ = ctx.MustGet("requestID").(string)
		return ok(ctx)
	})

	rec := serve(server, httptest.NewRequest(http.MethodGet, "/", nil))
	header := rec.Header().Get(middleware.RequestIDHeader)
	if _, err := uuid.Parse(header); err != nil {
		t.Errorf("expected a uuid request id, got %q", header)
	}
	if stored != header {
		t.Errorf("expected stored id %q to equal header %q", stored, header)
	}
}

func TestRequestIDKept(t *testing.T) {
	server := newServer()
	_ = server.Use(middleware.RequestID())
	_ = server.Get("/", ok)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(middleware.RequestIDHeader, "client-id")

	rec := serve(server, req)
	if got := rec.Header().Get(middleware.RequestIDHeader); got != "client-id" {
		t.Errorf("expected client id to be kept, got %q", got)
	}
}

func TestLogger(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	server := newServer()
	_ = server.Use(middleware.Logger(logger))
	_ = server.Get("/logged", ok)

	serve(server, httptest.NewRequest(http.MethodGet, "/logged", nil))

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("expected a log entry")
	}
	if entry.Message != "request received" || entry.Level != logrus.DebugLevel {
		t.Errorf("unexpected entry %q at %s", entry.Message, entry.Level)
	}
	if entry.Data["path"] != "/logged" || entry.Data["method"] != http.MethodGet {
		t.Errorf("unexpected fields %v", entry.Data)
	}
	if entry.Data["websocket"] != false {
		t.Errorf("expected websocket field to be false, got %v", entry.Data["websocket"])
	}
}

func TestCORS(t *testing.T) {
	server := newServer()
	_ = server.Use(middleware.CORS([]string{"https://app.example.com"}))
	_ = server.Route(dispatch.Any, "/api", ok)

	t.Run("no origin passes through", func(t *testing.T) {
		rec := serve(server, httptest.NewRequest(http.MethodGet, "/api", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}
		if rec.Header().Get("Access-Control-Allow-Origin") != "" {
			t.Error("expected no CORS headers")
		}
	})

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api", nil)
		req.Header.Set("Origin", "https://app.example.com")
		rec := serve(server, req)
		if rec.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rec.Code)
		}
		if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
			t.Errorf("unexpected allow origin %q", rec.Header().Get("Access-Control-Allow-Origin"))
		}
	})

	t.Run("disallowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		if rec := serve(server, req); rec.Code != http.StatusForbidden {
			t.Errorf("expected status 403, got %d", rec.Code)
		}
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api", nil)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Headers", "Content-Type")
		rec := serve(server, req)
		if rec.Code != http.StatusNoContent {
			t.Errorf("expected status 204, got %d", rec.Code)
		}
		if rec.Header().Get("Access-Control-Allow-Headers") != "Content-Type" {
			t.Errorf("unexpected allow headers %q", rec.Header().Get("Access-Control-Allow-Headers"))
		}
		if rec.Body.Len() != 0 {
			t.Errorf("expected empty preflight body, got %q", rec.Body.String())
		}
	})
}

func TestRateLimit(t *testing.T) {
	server := newServer()
	_ = server.Use(middleware.RateLimit(2, time.Minute))
	_ = server.Get("/limited", ok)

	request := func(remote string) int {
		req := httptest.NewRequest(http.MethodGet, "/limited", nil)
		req.RemoteAddr = remote
		return serve(server, req).Code
	}

	if code := request("10.0.0.1:1000"); code != http.StatusOK {
		t.Errorf("request 1: expected 200, got %d", code)
	}
	if code := request("10.0.0.1:1001"); code != http.StatusOK {
		t.Errorf("request 2: expected 200, got %d", code)
	}
	if code := request("10.0.0.1:1002"); code != http.StatusTooManyRequests {
		t.Errorf("request 3: expected 429, got %d", code)
	}
	if code := request("10.0.0.2:1000"); code != http.StatusOK {
		t.Errorf("other host: expected 200, got %d", code)
	}
}

type session struct {
	User string
}

func TestRequirePlugin(t *testing.T) {
	sessionKey := dispatch.NewPluginKey[*session]("session")

	server := newServer()
	_ = server.Use(func(ctx *dispatch.Context) dispatch.Result {
		if user := ctx.Headers().Get("X-User"); user != "" {
			sessionKey.Set(ctx, &session{User: user})
		}
		return dispatch.Continue
	})

	handlerCalled := false
	_ = server.Get("/me", middleware.RequirePlugin(sessionKey, http.StatusUnauthorized), func(ctx *dispatch.Context) dispatch.Result {
		handlerCalled = true
		s, _ := sessionKey.Get(ctx)
		_ = ctx.Text(http.StatusOK, s.User)
		return dispatch.Final
	})

	rec := serve(server, httptest.NewRequest(http.MethodGet, "/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", rec.Code)
	}
	if handlerCalled {
		t.Error("expected handler not to run without a session")
	}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("X-User", "ada")
	rec = serve(server, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "ada" {
		t.Errorf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
}
