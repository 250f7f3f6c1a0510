// Package bus implements the agent bus (C2): a non-blocking,
// per-agent order-preserving advisory channel between the controller and
// connected Newt/Olm edge agents.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/tunnelctl/controller/internal/domain"
)

const defaultSendQueueSize = 64

// agentConn tracks a single WebSocket connection to an agent.
type agentConn struct {
	info      AgentInfo
	ws        *websocket.Conn
	sendCh    chan Message // buffered outbound queue, drained by writeLoop
	done      chan struct{}
	closeOnce sync.Once
}

// Server is the agent bus's WebSocket transport.
type Server struct {
	events domain.EventBus // internal fan-out, distinct from the agent wire protocol
	audit  domain.AuditLogger

	conns sync.Map // agentID (string) -> *agentConn
	auth  Authenticator

	handlersMu sync.RWMutex
	handlers   map[string]domain.MessageHandler

	connectMu       sync.Mutex
	connectHandlers []domain.ConnectHandler

	logger        *slog.Logger
	addr          string
	sendQueueSize int

	httpSrv    *http.Server
	boundAddr  string
	httpRoutes []httpRoute
}

type httpRoute struct {
	pattern string
	handler http.HandlerFunc
}

// NewServer creates an agent bus server.
func NewServer(events domain.EventBus, audit domain.AuditLogger, auth Authenticator, addr string, logger *slog.Logger) *Server {
	return &Server{
		events:        events,
		audit:         audit,
		auth:          auth,
		handlers:      make(map[string]domain.MessageHandler),
		logger:        logger,
		addr:          addr,
		sendQueueSize: defaultSendQueueSize,
	}
}

// SetSendQueueSize overrides the default per-agent outbound queue depth.
// Must be called before Start.
func (s *Server) SetSendQueueSize(n int) {
	if n > 0 {
		s.sendQueueSize = n
	}
}

// Register binds an inbound message type to a handler.
func (s *Server) Register(msgType string, handler domain.MessageHandler) {
	s.handlersMu.Lock()
	s.handlers[msgType] = handler
	s.handlersMu.Unlock()
}

// OnConnect registers a callback fired once per (re)connect.
func (s *Server) OnConnect(handler domain.ConnectHandler) {
	s.connectMu.Lock()
	s.connectHandlers = append(s.connectHandlers, handler)
	s.connectMu.Unlock()
}

// Send delivers msg to agentID's outbound queue without blocking on network
// I/O. Returns SendDropped if the agent is not connected or its queue is
// full; there is no retry — recovery happens on the agent's next resync.
func (s *Server) Send(ctx context.Context, agentID string, msgType string, data any) domain.SendResult {
	raw, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("bus: failed to marshal outbound message", "type", msgType, "agent_id", agentID, "error", err)
		return domain.SendDropped
	}

	v, ok := s.conns.Load(agentID)
	if !ok {
		s.logger.Warn("bus: send to disconnected agent", "type", msgType, "agent_id", agentID)
		return domain.SendDropped
	}
	cc := v.(*agentConn)

	select {
	case cc.sendCh <- Message{Type: msgType, Data: raw}:
		return domain.SendOK
	default:
		s.logger.Warn("bus: outbound queue full, dropping message", "type", msgType, "agent_id", agentID)
		s.publishEvent(ctx, domain.EventAgentQueueDropped, agentID)
		if s.audit != nil {
			s.audit.Log(ctx, domain.AuditEvent{Type: domain.AuditAgentDrop, Actor: agentID, Action: msgType, Outcome: "dropped"})
		}
		return domain.SendDropped
	}
}

func (s *Server) publishEvent(ctx context.Context, eventType domain.EventType, siteID string) {
	if s.events == nil {
		return
	}
	s.events.Publish(ctx, domain.Event{Type: eventType, Timestamp: time.Now().UTC(), SiteID: siteID})
}

// RegisterHTTPRoute adds an HTTP handler to the bus's mux. Must be called
// before Start.
func (s *Server) RegisterHTTPRoute(pattern string, handler http.HandlerFunc) {
	s.httpRoutes = append(s.httpRoutes, httpRoute{pattern: pattern, handler: handler})
}

// Start begins accepting WebSocket connections. Blocks until context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)
	for _, route := range s.httpRoutes {
		mux.HandleFunc(route.pattern, route.handler)
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("bus listen: %w", err)
	}
	s.boundAddr = listener.Addr().String()
	s.httpSrv = &http.Server{Handler: mux}

	s.logger.Info("agent bus started", "addr", s.boundAddr)

	go func() {
		<-ctx.Done()
		s.Stop(context.Background())
	}()

	if err := s.httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("bus serve: %w", err)
	}
	return nil
}

// Stop gracefully shuts down the bus server.
func (s *Server) Stop(ctx context.Context) error {
	s.conns.Range(func(key, value any) bool {
		cc := value.(*agentConn)
		cc.closeOnce.Do(func() { close(cc.done) })
		cc.ws.Close(websocket.StatusGoingAway, "server shutting down")
		s.conns.Delete(key)
		return true
	})

	if s.httpSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(shutdownCtx)
	}
	return nil
}

// BoundAddr returns the actual address the server bound to. Only valid after Start.
func (s *Server) BoundAddr() string { return s.boundAddr }

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	info, err := s.auth.Authenticate(token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{
			"localhost",
			"localhost:*",
			"127.0.0.1",
			"127.0.0.1:*",
			"[::1]",
			"[::1]:*",
		},
	})
	if err != nil {
		s.logger.Warn("websocket accept failed", "error", err)
		return
	}

	cc := &agentConn{
		info:   *info,
		ws:     ws,
		sendCh: make(chan Message, s.sendQueueSize),
		done:   make(chan struct{}),
	}

	// A reconnecting agent replaces its previous connection.
	if prev, loaded := s.conns.Swap(info.ID, cc); loaded {
		prevConn := prev.(*agentConn)
		prevConn.closeOnce.Do(func() { close(prevConn.done) })
		prevConn.ws.Close(websocket.StatusGoingAway, "replaced by new connection")
	}

	s.logger.Info("agent connected", "agent_id", info.ID, "agent_kind", info.Kind)
	s.publishEvent(r.Context(), domain.EventAgentConnected, "")
	if s.audit != nil {
		s.audit.Log(r.Context(), domain.AuditEvent{Type: domain.AuditAgentConnect, Actor: info.ID})
	}
	s.fireOnConnect(r.Context(), info.Kind, info.ID)

	go s.writeLoop(cc)
	s.readLoop(r.Context(), cc)

	cc.closeOnce.Do(func() { close(cc.done) })
	// Only remove the map entry if it still refers to this connection —
	// a reconnect may have already replaced it.
	if v, ok := s.conns.Load(info.ID); ok && v.(*agentConn) == cc {
		s.conns.Delete(info.ID)
	}
	ws.Close(websocket.StatusNormalClosure, "")
	s.logger.Info("agent disconnected", "agent_id", info.ID, "agent_kind", info.Kind)
	s.publishEvent(context.Background(), domain.EventAgentDisconnected, "")
	if s.audit != nil {
		s.audit.Log(context.Background(), domain.AuditEvent{Type: domain.AuditAgentDisconnect, Actor: info.ID})
	}
}

func (s *Server) fireOnConnect(ctx context.Context, kind domain.AgentKind, agentID string) {
	s.connectMu.Lock()
	handlers := make([]domain.ConnectHandler, len(s.connectHandlers))
	copy(handlers, s.connectHandlers)
	s.connectMu.Unlock()

	for _, h := range handlers {
		go h(ctx, kind, agentID)
	}
}

func (s *Server) readLoop(ctx context.Context, cc *agentConn) {
	for {
		select {
		case <-cc.done:
			return
		default:
		}

		var msg Message
		if err := wsjson.Read(ctx, cc.ws, &msg); err != nil {
			return
		}

		go s.dispatch(ctx, cc, msg)
	}
}

func (s *Server) writeLoop(cc *agentConn) {
	for {
		select {
		case <-cc.done:
			return
		case msg := <-cc.sendCh:
			writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := wsjson.Write(writeCtx, cc.ws, msg)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (s *Server) dispatch(ctx context.Context, cc *agentConn, msg Message) {
	s.handlersMu.RLock()
	handler, ok := s.handlers[msg.Type]
	s.handlersMu.RUnlock()
	if !ok {
		s.logger.Warn("bus: no handler registered for message type", "type", msg.Type, "agent_id", cc.info.ID)
		return
	}
	handler(ctx, cc.info.Kind, cc.info.ID, msg.Data)
}

var _ domain.Bus = (*Server)(nil)
