package dispatch

import (
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// Server maps requests to handler chains. Routes and global middleware are
// registered first; once the server starts serving the table is frozen and
// further registration fails with ErrAlreadyRunning.
type Server struct {
	firstHandlerNode *HandlerNode
	lastHandlerNode  *HandlerNode
	middleware       []any
	socketMiddleware []any
	frozen           atomic.Bool
	freezeOnce       sync.Once
	origins          []string
	verboseErrors    bool
	failureObserver  func(*HandlerFailure)
	notFound         HandlerFunc
	logger           *logrus.Logger
	roomManager      *RoomManager
}

var _ http.Handler = &Server{}

func NewServer() *Server {
	logger := logrus.New()
	return &Server{
		logger:      logger,
		roomManager: NewRoomManager(logger),
		notFound: func(ctx *Context) Result {
			_ = ctx.Text(http.StatusNotFound, http.StatusText(http.StatusNotFound))
			return Final
		},
	}
}

func (s *Server) SetLogger(logger *logrus.Logger) {
	s.logger = logger
	if s.roomManager != nil {
		s.roomManager.logger = logger
	}
}

// SetOrigins sets the origin patterns accepted during the WebSocket
// handshake. All origins are accepted when none are set.
func (s *Server) SetOrigins(origins []string) {
	s.origins = origins
}

// SetVerboseErrors includes the failure text and stack in 500 responses.
// Leave it off in production.
func (s *Server) SetVerboseErrors(verbose bool) {
	s.verboseErrors = verbose
}

// SetFailureObserver replaces the default failure logging. The observer is
// called once for every handler failure.
func (s *Server) SetFailureObserver(observer func(*HandlerFailure)) {
	s.failureObserver = observer
}

func (s *Server) SetNotFound(handler HandlerFunc) {
	if handler != nil {
		s.notFound = handler
	}
}

func (s *Server) Logger() *logrus.Logger {
	return s.logger
}

func (s *Server) Rooms() *RoomManager {
	return s.roomManager
}

// Use appends global middleware run before every plain route.
func (s *Server) Use(handlers ...any) error {
	if s.frozen.Load() {
		return ErrAlreadyRunning
	}
	if err := validateHTTPHandlers(handlers); err != nil {
		return err
	}
	s.middleware = append(s.middleware, handlers...)
	return nil
}

// UseSocket appends global middleware run before every WebSocket route.
func (s *Server) UseSocket(handlers ...any) error {
	if s.frozen.Load() {
		return ErrAlreadyRunning
	}
	if err := validateSocketHandlers(handlers); err != nil {
		return err
	}
	s.socketMiddleware = append(s.socketMiddleware, handlers...)
	return nil
}

// Route binds handlers to method and pattern. Pass Any as the method to
// match every method.
func (s *Server) Route(method, pattern string, handlers ...any) error {
	if s.frozen.Load() {
		return ErrAlreadyRunning
	}
	if err := validateHTTPHandlers(handlers); err != nil {
		return err
	}
	return s.bind(HTTPBindType, method, pattern, handlers)
}

// WebSocketRoute binds handlers to pattern for upgrade requests. The chain
// runs after the handshake; if it ends with Continue the dialog's read loop
// starts.
func (s *Server) WebSocketRoute(pattern string, handlers ...any) error {
	if s.frozen.Load() {
		return ErrAlreadyRunning
	}
	if err := validateSocketHandlers(handlers); err != nil {
		return err
	}
	return s.bind(SocketBindType, "", pattern, handlers)
}

func (s *Server) Get(pattern string, handlers ...any) error {
	return s.Route(http.MethodGet, pattern, handlers...)
}

func (s *Server) Post(pattern string, handlers ...any) error {
	return s.Route(http.MethodPost, pattern, handlers...)
}

func (s *Server) Put(pattern string, handlers ...any) error {
	return s.Route(http.MethodPut, pattern, handlers...)
}

func (s *Server) Patch(pattern string, handlers ...any) error {
	return s.Route(http.MethodPatch, pattern, handlers...)
}

func (s *Server) Delete(pattern string, handlers ...any) error {
	return s.Route(http.MethodDelete, pattern, handlers...)
}

func (s *Server) bind(bindType BindType, method, patternStr string, handlers []any) error {
	if s.frozen.Load() {
		return ErrAlreadyRunning
	}

	pattern, err := NewPattern(patternStr)
	if err != nil {
		return err
	}

	nextHandlerNode := &HandlerNode{
		BindType: bindType,
		Method:   strings.ToUpper(method),
		Pattern:  pattern,
		Handlers: handlers,
	}

	if s.firstHandlerNode == nil {
		s.firstHandlerNode = nextHandlerNode
		s.lastHandlerNode = nextHandlerNode
	} else {
		s.lastHandlerNode.Next = nextHandlerNode
		s.lastHandlerNode = nextHandlerNode
	}

	return nil
}

// Freeze ends the configuration phase. It is called automatically when the
// server starts serving.
func (s *Server) Freeze() {
	s.freezeOnce.Do(func() {
		s.frozen.Store(true)
		for node := s.firstHandlerNode; node != nil; node = node.Next {
			switch node.BindType {
			case SocketBindType:
				node.chain = concatHandlers(s.socketMiddleware, node.Handlers)
			default:
				node.chain = concatHandlers(s.middleware, node.Handlers)
			}
		}
	})
}

func (s *Server) Frozen() bool {
	return s.frozen.Load()
}

func (s *Server) ListenAndServe(addr string) error {
	s.Freeze()
	server := &http.Server{
		Addr:    addr,
		Handler: s,
	}
	return server.ListenAndServe()
}

func (s *Server) Serve(listener net.Listener) error {
	s.Freeze()
	server := &http.Server{
		Handler: s,
	}
	return server.Serve(listener)
}

func (s *Server) ServeHTTP(res http.ResponseWriter, req *http.Request) {
	s.Freeze()

	ctx := NewContext(res, req)
	defer ctx.free()

	upgrade := isWebsocketUpgradeRequest(req)
	node, params := s.lookup(req.Method, req.URL.Path, upgrade)
	if node == nil {
		if !upgrade && s.hasSocketRoute(req.URL.Path) {
			s.handleBadUpgrade(ctx)
			return
		}
		s.execute(ctx, []any{s.notFound})
		return
	}

	ctx.params = params
	ctx.pattern = node.Pattern

	if node.BindType == SocketBindType {
		s.handleWebsocketConnection(ctx, node)
		return
	}

	s.execute(ctx, node.chain)
}

func (s *Server) lookup(method, path string, upgrade bool) (*HandlerNode, Params) {
	for node := s.firstHandlerNode; node != nil; node = node.Next {
		if params, ok := node.tryMatch(method, path, upgrade); ok {
			return node, params
		}
	}
	return nil, nil
}

func (s *Server) lookupSocket(path string) (*HandlerNode, Params) {
	for node := s.firstHandlerNode; node != nil; node = node.Next {
		if node.BindType != SocketBindType {
			continue
		}
		if params, ok := node.Pattern.Match(path); ok {
			return node, params
		}
	}
	return nil, nil
}

func (s *Server) hasSocketRoute(path string) bool {
	node, _ := s.lookupSocket(path)
	return node != nil
}

func (s *Server) handleBadUpgrade(ctx *Context) {
	s.logger.WithFields(logrus.Fields{
		"method": ctx.Method(),
		"path":   ctx.Path(),
	}).WithError(ErrBadUpgradeRequest).Debug("rejected websocket route request")

	if err := ctx.Text(http.StatusBadRequest, "Bad Request. Expected websocket upgrade request"); err != nil {
		s.logger.WithError(err).Error("failed to write error response")
	}
}

func (s *Server) handleWebsocketConnection(ctx *Context, node *HandlerNode) {
	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	conn, err := websocket.Accept(ctx.ResponseWriter(), ctx.Request(), &websocket.AcceptOptions{
		OriginPatterns: origins,
	})
	if err != nil {
		s.logger.WithError(err).Error("failed to accept websocket connection")
		return
	}

	queryParams := make(map[string]string)
	for key, values := range ctx.Request().URL.Query() {
		if len(values) > 0 {
			queryParams[key] = values[0]
		}
	}

	info := &ConnectionInfo{
		RemoteAddr: ctx.RemoteAddr(),
		Path:       ctx.Path(),
		Headers:    ctx.Headers(),
		Query:      queryParams,
	}

	s.serveDialog(ctx, node, NewDialog(info, NewWebSocketConnection(conn)))
}

// HandleConnection drives a WebSocket route over a connection accepted
// elsewhere. The route is resolved from info.Path. It returns
// ErrRouteNotFound when no WebSocket route matches, and ErrNoConnection when
// info or connection is nil.
func (s *Server) HandleConnection(info *ConnectionInfo, connection SocketConnection) error {
	if info == nil || connection == nil {
		return ErrNoConnection
	}
	s.Freeze()

	node, params := s.lookupSocket(info.Path)
	if node == nil {
		return ErrRouteNotFound
	}

	rawQuery := url.Values{}
	for key, value := range info.Query {
		rawQuery.Set(key, value)
	}
	req := &http.Request{
		Method:     http.MethodGet,
		URL:        &url.URL{Path: info.Path, RawQuery: rawQuery.Encode()},
		Header:     info.Headers,
		RemoteAddr: info.RemoteAddr,
	}
	if req.Header == nil {
		req.Header = http.Header{}
	}

	ctx := NewContext(&detachedResponseWriter{header: http.Header{}}, req)
	defer ctx.free()
	ctx.response.hijacked = true
	ctx.params = params
	ctx.pattern = node.Pattern

	s.serveDialog(ctx, node, NewDialog(info, connection))
	return nil
}

func (s *Server) serveDialog(ctx *Context, node *HandlerNode, dialog *Dialog) {
	dialog.setRoomManager(s.roomManager)
	method := ctx.Method()
	path := ctx.Path()
	dialog.onFailure = func(err error, stack string) {
		s.reportFailure(&HandlerFailure{
			Method: method,
			Path:   path,
			Err:    err,
			Stack:  stack,
		})
	}
	ctx.dialog = dialog

	if s.execute(ctx, node.chain) == Continue {
		dialog.Run()
	}

	dialog.handleClose()
	dialog.leaveAllRooms()
	dialog.close(StatusNormalClosure, "", ServerCloseSource)

	if readErr := dialog.ReadErr(); readErr != nil {
		s.logger.WithError(readErr).WithField("dialogId", dialog.ID()).Debug("websocket read failed")
	}

	dialog.closeConnection()
	dialog.cancelCtx()
	if err := dialog.closeError(); err != nil {
		s.logger.WithError(err).WithField("dialogId", dialog.ID()).Debug("failed to close websocket connection")
	}
}

func isWebsocketUpgradeRequest(req *http.Request) bool {
	if req.Method != http.MethodGet {
		return false
	}
	if !strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
		return false
	}
	return headerContainsToken(req.Header, "Connection", "upgrade")
}

func headerContainsToken(header http.Header, name, token string) bool {
	for _, value := range header.Values(name) {
		for _, part := range strings.Split(value, ",") {
			if strings.EqualFold(strings.TrimSpace(part), token) {
				return true
			}
		}
	}
	return false
}
