package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Context carries one request through its handler chain. It exposes a view
// of the request, a view of the response, associated values, and typed
// plugin data. A Context must not be retained after the chain returns; for
// WebSocket routes it lives until the socket closes.
type Context struct {
	request             *http.Request
	response            responseWriter
	params              Params
	pattern             *Pattern
	dialog              *Dialog
	requestID           string
	associatedValues    map[string]any
	pluginValues        map[any]any
	body                []byte
	bodyRead            bool
	bodyUnmarshaler     func(body []byte, into any) error
	responseMarshaller  func(v any) ([]byte, error)
	responseContentType string
	failure             error
	failureStack        string
}

var _ context.Context = &Context{}

// NewContext builds a Context around a request and response writer. The
// server creates contexts itself; this is exposed for testing handlers and
// middleware in isolation.
func NewContext(res http.ResponseWriter, req *http.Request) *Context {
	ctx := contextFromPool()
	ctx.reset(res, req)
	return ctx
}

var contextPool = sync.Pool{
	New: func() any {
		return &Context{
			associatedValues: map[string]any{},
			pluginValues:     map[any]any{},
		}
	},
}

func contextFromPool() *Context {
	return contextPool.Get().(*Context)
}

func (c *Context) reset(res http.ResponseWriter, req *http.Request) {
	c.request = req
	c.response.reset(res)
	c.requestID = uuid.NewString()
}

func (c *Context) free() {
	c.request = nil
	c.response.reset(nil)
	c.params = nil
	c.pattern = nil
	c.dialog = nil
	c.requestID = ""
	c.body = nil
	c.bodyRead = false
	c.bodyUnmarshaler = nil
	c.responseMarshaller = nil
	c.responseContentType = ""
	c.failure = nil
	c.failureStack = ""

	for k := range c.associatedValues {
		delete(c.associatedValues, k)
	}
	for k := range c.pluginValues {
		delete(c.pluginValues, k)
	}

	contextPool.Put(c)
}

func (c *Context) RequestID() string {
	return c.requestID
}

func (c *Context) Request() *http.Request {
	return c.request
}

func (c *Context) ResponseWriter() http.ResponseWriter {
	return &c.response
}

func (c *Context) Method() string {
	return c.request.Method
}

func (c *Context) Path() string {
	return c.request.URL.Path
}

func (c *Context) RawQuery() string {
	return c.request.URL.RawQuery
}

func (c *Context) Query(name string) string {
	return c.request.URL.Query().Get(name)
}

func (c *Context) Headers() http.Header {
	return c.request.Header
}

func (c *Context) RemoteAddr() string {
	return c.request.RemoteAddr
}

// Param returns a path parameter captured by the matched route.
func (c *Context) Param(name string) (string, bool) {
	return c.params.Get(name)
}

func (c *Context) Params() Params {
	return c.params
}

// Pattern returns the route pattern that matched, or nil before routing.
func (c *Context) Pattern() *Pattern {
	return c.pattern
}

// Dialog returns the open socket for WebSocket routes and nil otherwise.
func (c *Context) Dialog() *Dialog {
	return c.dialog
}

func (c *Context) Body() io.Reader {
	return c.request.Body
}

// BodyBytes reads the full request body once and caches it.
func (c *Context) BodyBytes() ([]byte, error) {
	if c.bodyRead {
		return c.body, nil
	}
	c.bodyRead = true
	if c.request.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(c.request.Body)
	if err != nil {
		return nil, err
	}
	c.body = body
	return body, nil
}

func (c *Context) Form() (url.Values, error) {
	if err := c.request.ParseForm(); err != nil {
		return nil, err
	}
	return c.request.Form, nil
}

func (c *Context) SetBodyUnmarshaler(unmarshaler func(body []byte, into any) error) {
	c.bodyUnmarshaler = unmarshaler
}

func (c *Context) SetResponseMarshaller(contentType string, marshaller func(v any) ([]byte, error)) {
	c.responseContentType = contentType
	c.responseMarshaller = marshaller
}

// Unmarshal decodes the request body with the unmarshaler installed by a
// codec middleware.
func (c *Context) Unmarshal(into any) error {
	if c.bodyUnmarshaler == nil {
		return ErrNoUnmarshaler
	}
	body, err := c.BodyBytes()
	if err != nil {
		return err
	}
	return c.bodyUnmarshaler(body, into)
}

func (c *Context) Set(key string, value any) {
	c.associatedValues[key] = value
}

func (c *Context) Get(key string) (any, bool) {
	v, ok := c.associatedValues[key]
	return v, ok
}

func (c *Context) MustGet(key string) any {
	v, ok := c.associatedValues[key]
	if !ok {
		panic("key not found: " + key)
	}
	return v
}

func (c *Context) Delete(key string) {
	delete(c.associatedValues, key)
}

func (c *Context) Header() http.Header {
	return c.response.Header()
}

// Status sends the status line and the response headers right away. Headers
// must be set before calling it; changes made afterwards are not sent. Only
// the first call has an effect.
func (c *Context) Status(code int) *Context {
	c.response.WriteHeader(code)
	return c
}

// StatusCode returns the status sent so far, or 0 if nothing was written.
func (c *Context) StatusCode() int {
	if !c.response.written {
		return 0
	}
	return c.response.status
}

// Written reports whether the response status has already been sent.
func (c *Context) Written() bool {
	return c.response.written || c.response.hijacked
}

func (c *Context) Write(b []byte) (int, error) {
	return c.response.Write(b)
}

func (c *Context) Text(code int, text string) error {
	if !c.Written() {
		c.response.Header().Set("Content-Type", "text/plain; charset=utf-8")
		c.response.WriteHeader(code)
	}
	_, err := c.response.Write([]byte(text))
	return err
}

func (c *Context) JSON(code int, v any) error {
	if !c.Written() {
		c.response.Header().Set("Content-Type", "application/json; charset=utf-8")
		c.response.WriteHeader(code)
	}
	return json.NewEncoder(&c.response).Encode(v)
}

// Respond encodes v with the marshaller installed by a codec middleware.
func (c *Context) Respond(code int, v any) error {
	if c.responseMarshaller == nil {
		return ErrNoMarshaller
	}
	body, err := c.responseMarshaller(v)
	if err != nil {
		return err
	}
	if !c.Written() {
		if c.responseContentType != "" {
			c.response.Header().Set("Content-Type", c.responseContentType)
		}
		c.response.WriteHeader(code)
	}
	_, err = c.response.Write(body)
	return err
}

// Fail records err as the cause of a failed request and returns Error. The
// failure is reported and translated the same way as a panic.
func (c *Context) Fail(err error) Result {
	if err == nil {
		err = errors.New("handler failed")
	}
	c.failure = err
	return Error
}

func (c *Context) Failure() error {
	return c.failure
}

func (c *Context) requestContext() context.Context {
	if c.request == nil {
		return context.Background()
	}
	return c.request.Context()
}

func (c *Context) Deadline() (time.Time, bool) {
	return c.requestContext().Deadline()
}

func (c *Context) Done() <-chan struct{} {
	return c.requestContext().Done()
}

func (c *Context) Err() error {
	return c.requestContext().Err()
}

func (c *Context) Value(key any) any {
	return c.requestContext().Value(key)
}
