package dispatch

import (
	"bufio"
	"net"
	"net/http"
)

// responseWriter wraps http.ResponseWriter and tracks whether the status line
// has gone out, so the failure translator knows if a 500 can still be sent.
type responseWriter struct {
	http.ResponseWriter
	status   int
	size     int
	written  bool
	hijacked bool
}

var (
	_ http.ResponseWriter = (*responseWriter)(nil)
	_ http.Flusher        = (*responseWriter)(nil)
	_ http.Hijacker       = (*responseWriter)(nil)
)

func (rw *responseWriter) reset(w http.ResponseWriter) {
	rw.ResponseWriter = w
	rw.status = 0
	rw.size = 0
	rw.written = false
	rw.hijacked = false
}

// Status returns the status code sent, or 200 when nothing has been written.
func (rw *responseWriter) Status() int {
	if rw.status == 0 {
		return http.StatusOK
	}
	return rw.status
}

func (rw *responseWriter) WriteHeader(status int) {
	if rw.written || rw.hijacked {
		return
	}
	rw.status = status
	rw.written = true
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if rw.hijacked {
		return 0, http.ErrHijacked
	}
	if !rw.written {
		rw.written = true
		rw.status = http.StatusOK
	}
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func (rw *responseWriter) Flush() {
	_ = http.NewResponseController(rw.ResponseWriter).Flush()
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	conn, buf, err := http.NewResponseController(rw.ResponseWriter).Hijack()
	if err == nil {
		rw.hijacked = true
		rw.status = http.StatusSwitchingProtocols
	}
	return conn, buf, err
}

// detachedResponseWriter stands in for the response of a connection that was
// upgraded outside the server.
type detachedResponseWriter struct {
	header http.Header
}

func (w *detachedResponseWriter) Header() http.Header {
	return w.header
}

func (w *detachedResponseWriter) Write([]byte) (int, error) {
	return 0, http.ErrHijacked
}

func (w *detachedResponseWriter) WriteHeader(int) {}
