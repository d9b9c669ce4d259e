// Package control serves the operator-facing WebSocket RPC API: bots are
// connected, disconnected and driven through it, and gateway events are
// pushed back to the client that owns each bot.
package control

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"botgate/internal/domain"
	"botgate/internal/infra/middleware"
)

const (
	clientSendBuffer = 256
	writeTimeout     = 5 * time.Second
)

var defaultOrigins = []string{
	"localhost",
	"localhost:*",
	"127.0.0.1",
	"127.0.0.1:*",
	"[::1]",
	"[::1]:*",
}

// RPCHandler handles a single RPC method call.
type RPCHandler func(ctx context.Context, client *ClientInfo, payload json.RawMessage) (json.RawMessage, error)

type clientConn struct {
	id        string
	info      *ClientInfo
	ws        *websocket.Conn
	sendCh    chan Frame
	done      chan struct{}
	closeOnce sync.Once
}

func (cc *clientConn) close() {
	cc.closeOnce.Do(func() { close(cc.done) })
}

// Server is the control API server. It also implements domain.Forwarder,
// delivering gateway events to connected clients by owner name.
type Server struct {
	bus        domain.EventBus
	auth       Authenticator
	addr       string
	origins    []string
	logger     *slog.Logger
	clients    sync.Map // client id -> *clientConn
	handlersMu sync.RWMutex
	handlers   map[string]RPCHandler
	httpRoutes []httpRoute

	idMu    sync.Mutex
	entropy *ulid.MonotonicEntropy

	rateLimit middleware.RateLimitConfig

	httpSrv   *http.Server
	boundAddr string
	ready     chan struct{}
	unsubAll  func()

	delivered   atomic.Uint64
	undelivered atomic.Uint64
}

type httpRoute struct {
	pattern string
	handler http.HandlerFunc
}

// NewServer creates a control server listening on addr. origins extends
// the accepted WebSocket origins beyond localhost.
func NewServer(bus domain.EventBus, auth Authenticator, addr string, origins []string, logger *slog.Logger) *Server {
	return &Server{
		bus:      bus,
		auth:     auth,
		addr:     addr,
		origins:  append(append([]string{}, defaultOrigins...), origins...),
		logger:   logger,
		handlers: make(map[string]RPCHandler),
		entropy:  ulid.Monotonic(rand.Reader, 0),
		ready:    make(chan struct{}),
	}
}

// RegisterHandler adds an RPC handler for method.
func (s *Server) RegisterHandler(method string, handler RPCHandler) {
	s.handlersMu.Lock()
	s.handlers[method] = handler
	s.handlersMu.Unlock()
}

// SetRateLimit configures per-client HTTP rate limiting. Must be called
// before Start; the zero value disables limiting.
func (s *Server) SetRateLimit(cfg middleware.RateLimitConfig) {
	s.rateLimit = cfg
}

// RegisterHTTPRoute adds a plain HTTP route. Must be called before Start.
func (s *Server) RegisterHTTPRoute(pattern string, handler http.HandlerFunc) {
	s.httpRoutes = append(s.httpRoutes, httpRoute{pattern: pattern, handler: handler})
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)
	for _, route := range s.httpRoutes {
		mux.HandleFunc(route.pattern, route.handler)
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("control listen: %w", err)
	}
	s.boundAddr = listener.Addr().String()
	handler := middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.RateLimit(ctx, s.rateLimit),
	)
	s.httpSrv = &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	if s.bus != nil {
		s.unsubAll = s.bus.SubscribeAll(s.pushLifecycle)
	}
	close(s.ready)
	s.logger.Info("control server started", "addr", s.boundAddr)

	go func() {
		<-ctx.Done()
		s.Stop(context.Background())
	}()

	if err := s.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("control serve: %w", err)
	}
	return nil
}

// Ready is closed once the listener is bound.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// BoundAddr returns the bound address. Valid after Ready.
func (s *Server) BoundAddr() string { return s.boundAddr }

// Stop closes every client and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.unsubAll != nil {
		s.unsubAll()
	}
	s.clients.Range(func(key, value any) bool {
		cc := value.(*clientConn)
		cc.close()
		cc.ws.Close(websocket.StatusGoingAway, "server shutting down")
		s.clients.Delete(key)
		return true
	})
	if s.httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
	return nil
}

// Forward implements domain.Forwarder. Events for an owner with no
// connected client are counted and dropped.
func (s *Server) Forward(_ context.Context, d domain.Delivery) error {
	data, err := json.Marshal(d.Payload)
	if err != nil {
		return domain.NewSubSystemError("forward", "Server.Forward", domain.ErrForwardFailed, err.Error())
	}
	payload, err := json.Marshal(DispatchPayload{
		Session:  d.Session.Fingerprint(),
		Event:    d.Event,
		Sequence: d.Sequence,
		Data:     data,
	})
	if err != nil {
		return domain.NewSubSystemError("forward", "Server.Forward", domain.ErrForwardFailed, err.Error())
	}
	frame := Frame{Type: FrameTypeEvent, Method: EventMethodDispatch, Payload: payload}

	sent := false
	s.clients.Range(func(_, value any) bool {
		cc := value.(*clientConn)
		if cc.info.Name == d.Owner && s.enqueue(cc, frame) {
			sent = true
		}
		return true
	})
	if !sent {
		s.undelivered.Add(1)
		s.logger.Debug("no control client for owner", "owner", d.Owner, "event", d.Event)
		return nil
	}
	s.delivered.Add(1)
	return nil
}

// Delivered and Undelivered count forwarded gateway events.
func (s *Server) Delivered() uint64   { return s.delivered.Load() }
func (s *Server) Undelivered() uint64 { return s.undelivered.Load() }

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	n := 0
	s.clients.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

func (s *Server) pushLifecycle(_ context.Context, event domain.Event) {
	if event.Type == domain.EventClientConnected || event.Type == domain.EventClientDisconnected {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	frame := Frame{Type: FrameTypeEvent, Method: EventMethodLifecycle, Payload: payload}
	s.clients.Range(func(_, value any) bool {
		cc := value.(*clientConn)
		if cc.info.Can(domain.PermSessionView) {
			s.enqueue(cc, frame)
		}
		return true
	})
}

func (s *Server) enqueue(cc *clientConn, frame Frame) bool {
	select {
	case <-cc.done:
		return false
	default:
	}
	select {
	case cc.sendCh <- frame:
		return true
	default:
		s.logger.Warn("control: dropped frame for slow client", "client", cc.info.Name, "method", frame.Method)
		return false
	}
}

func (s *Server) newClientID() string {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	return ulid.MustNew(ulid.Now(), s.entropy).String()
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	info, err := s.auth.Authenticate(tokenFromRequest(r))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: s.origins})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}
	ws.SetReadLimit(1 << 20)

	cc := &clientConn{
		id:     s.newClientID(),
		info:   info,
		ws:     ws,
		sendCh: make(chan Frame, clientSendBuffer),
		done:   make(chan struct{}),
	}
	s.clients.Store(cc.id, cc)
	s.logger.Info("control client connected", "client_id", cc.id, "client", info.Name)
	s.publishClient(r.Context(), domain.EventClientConnected, cc)

	go s.writeLoop(cc)
	s.readLoop(r.Context(), cc)

	cc.close()
	s.clients.Delete(cc.id)
	ws.Close(websocket.StatusNormalClosure, "")
	s.logger.Info("control client disconnected", "client_id", cc.id)
	s.publishClient(context.WithoutCancel(r.Context()), domain.EventClientDisconnected, cc)
}

func (s *Server) publishClient(ctx context.Context, t domain.EventType, cc *clientConn) {
	if s.bus == nil {
		return
	}
	payload, _ := json.Marshal(map[string]string{"client_id": cc.id, "name": cc.info.Name})
	s.bus.Publish(ctx, domain.Event{Type: t, Timestamp: time.Now(), Payload: payload})
}

func (s *Server) readLoop(ctx context.Context, cc *clientConn) {
	for {
		select {
		case <-cc.done:
			return
		default:
		}

		var frame Frame
		if err := wsjson.Read(ctx, cc.ws, &frame); err != nil {
			return
		}
		if frame.Type != FrameTypeRequest {
			continue
		}
		go s.dispatchRPC(ctx, cc, frame)
	}
}

func (s *Server) writeLoop(cc *clientConn) {
	for {
		select {
		case <-cc.done:
			return
		case frame := <-cc.sendCh:
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			err := wsjson.Write(ctx, cc.ws, frame)
			cancel()
			if err != nil {
				cc.close()
				return
			}
		}
	}
}

func (s *Server) dispatchRPC(ctx context.Context, cc *clientConn, req Frame) {
	s.handlersMu.RLock()
	handler, ok := s.handlers[req.Method]
	s.handlersMu.RUnlock()
	if !ok {
		s.sendResponse(cc, req.ID, nil, domain.NewDomainError("Server.dispatchRPC", domain.ErrRPCMethodNotFound, req.Method))
		return
	}
	result, err := handler(ctx, cc.info, req.Payload)
	if err != nil {
		s.logger.Debug("rpc failed", "method", req.Method, "client", cc.info.Name, "error", err)
	}
	s.sendResponse(cc, req.ID, result, err)
}

func (s *Server) sendResponse(cc *clientConn, id uint64, result json.RawMessage, err error) {
	resp := Frame{Type: FrameTypeResponse, ID: id, Payload: result}
	if err != nil {
		resp.Error = err.Error()
		resp.Code = string(domain.ErrorCodeOf(err))
	}
	if !s.enqueue(cc, resp) {
		s.logger.Warn("control: dropped RPC response", "frame_id", id)
	}
}

var _ domain.Forwarder = (*Server)(nil)
