// Package remote exposes playback control to paired remote-control clients
// over a WebSocket endpoint. Clients authenticate with a pairing token
// which is stored hashed and checked on every connection.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/playhead/playhead/internal/event"
	"github.com/playhead/playhead/internal/store"
	"github.com/playhead/playhead/internal/token"
)

// HeaderPairingToken is the request header carrying the raw pairing token.
// Browser clients may pass it as the "token" query parameter instead.
const HeaderPairingToken = "X-Playhead-Token"

const (
	pairingTokenKey  = "pairing-token"
	pairingTokenTTL  = 90 * 24 * time.Hour
	outboundChanSize = 10
)

// EnsurePairingToken returns a valid pairing token, generating and storing
// a new one if none exists or the stored one has expired. The raw token is
// non-empty only when a new token was generated; it cannot be recovered
// later.
func EnsurePairingToken(tokenStore *store.TokenStore) (token.RawToken, bool, error) {
	existing, err := tokenStore.Get(pairingTokenKey)
	if err == nil && !token.Expired(existing, time.Now()) {
		return "", false, nil
	}
	if err != nil && !errors.Is(err, store.ErrTokenNotFound) {
		return "", false, fmt.Errorf("read pairing token: %w", err)
	}

	raw, tok, err := token.Generate(time.Now().Add(pairingTokenTTL))
	if err != nil {
		return "", false, fmt.Errorf("generate pairing token: %w", err)
	}
	if err := tokenStore.Put(pairingTokenKey, tok); err != nil {
		return "", false, fmt.Errorf("store pairing token: %w", err)
	}

	return raw, true, nil
}

// Dispatcher routes a remote command into the application. The boolean
// result indicates whether arbitration allowed the command.
type Dispatcher interface {
	Dispatch(cmd event.Command) bool
}

// ConnectionObserver is notified when the first remote client attaches and
// when the last one detaches.
type ConnectionObserver func(connected bool, clientName string)

// Server accepts remote-control WebSocket connections.
type Server struct {
	listener   func() (net.Listener, error)
	bus        *event.Bus
	tokenStore *store.TokenStore
	dispatcher Dispatcher
	observer   ConnectionObserver
	upgrader   websocket.Upgrader
	logger     *slog.Logger

	mu      sync.Mutex
	clients map[string]string // client ID -> name
}

// NewServerParams contains the parameters for building a new Server.
type NewServerParams struct {
	ListenAddr string
	// Listener takes precedence over ListenAddr when set.
	Listener   net.Listener
	Bus        *event.Bus
	TokenStore *store.TokenStore
	Dispatcher Dispatcher
	// Observer may be nil.
	Observer ConnectionObserver
	Logger   *slog.Logger
}

// NewServer creates a new Server.
func NewServer(params NewServerParams) *Server {
	listener := func() (net.Listener, error) {
		if params.Listener != nil {
			return params.Listener, nil
		}
		return net.Listen("tcp", params.ListenAddr)
	}

	observer := params.Observer
	if observer == nil {
		observer = func(bool, string) {}
	}

	return &Server{
		listener:   listener,
		bus:        params.Bus,
		tokenStore: params.TokenStore,
		dispatcher: params.Dispatcher,
		observer:   observer,
		upgrader:   websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		logger:     params.Logger.With("component", "remote"),
		clients:    make(map[string]string),
	}
}

// Run serves remote-control connections until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	lis, err := s.listener()
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/remote", s.handleConnection)

	srv := &http.Server{
		Handler:     mux,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	s.logger.Info("Remote control listening", "addr", lis.Addr().String())

	if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}

	return ctx.Err()
}

// ClientCount returns the number of connected remote clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) handleConnection(w http.ResponseWriter, r *http.Request) {
	if !s.authenticate(r) {
		s.logger.Warn("Unauthorized remote connection attempt", "remote_addr", r.RemoteAddr)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade remote connection", "err", err)
		return
	}

	clientID := uuid.NewString()
	clientName := r.URL.Query().Get("name")
	if clientName == "" {
		clientName = r.RemoteAddr
	}

	s.logger.Info("Remote client connected", "client_id", clientID, "name", clientName)
	s.addClient(clientID, clientName)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Close() also unblocks the read side: the HTTP server does not track
	// hijacked connections, so shutdown must close them here.
	closeConn := sync.OnceFunc(func() {
		if err := conn.Close(); err != nil {
			s.logger.Debug("Failed to close remote connection", "err", err)
		}
	})
	go func() {
		<-ctx.Done()
		closeConn()
	}()

	outboundC := make(chan eventMessage, outboundChanSize)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeMessages(conn, outboundC)
	}()

	var producers sync.WaitGroup
	producers.Add(1)
	go func() {
		defer producers.Done()
		s.forwardEvents(ctx, outboundC)
	}()

	s.readMessages(ctx, conn, outboundC)

	cancel()
	producers.Wait()
	close(outboundC)
	<-writerDone
	closeConn()

	s.removeClient(clientID)
	s.logger.Info("Remote client disconnected", "client_id", clientID, "name", clientName)
}

func (s *Server) authenticate(r *http.Request) bool {
	raw := r.Header.Get(HeaderPairingToken)
	if raw == "" {
		raw = r.URL.Query().Get("token")
	}
	if raw == "" {
		return false
	}

	tok, err := s.tokenStore.Get(pairingTokenKey)
	if err != nil {
		if !errors.Is(err, store.ErrTokenNotFound) {
			s.logger.Error("Failed to read pairing token", "err", err)
		}
		return false
	}
	if token.Expired(tok, time.Now()) {
		return false
	}

	matches, err := token.Matches(tok, token.RawToken(raw))
	if err != nil {
		s.logger.Error("Failed to verify pairing token", "err", err)
		return false
	}

	return matches
}

// readMessages reads command frames until the connection fails, pushing a
// result frame per command. It owns the connection's read side.
func (s *Server) readMessages(ctx context.Context, conn *websocket.Conn, outboundC chan<- eventMessage) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Error("Remote read error", "err", err)
			}
			return
		}

		var msg commandMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.Error("Failed to parse remote message", "err", err)
			return
		}

		cmd, err := parseCommand(msg)
		if err != nil {
			s.logger.Warn("Rejecting remote command", "err", err)
			result := eventMessage{
				Type: "command_result",
				Data: map[string]any{"command": msg.Type, "accepted": false, "error": err.Error()},
			}
			select {
			case outboundC <- result:
			case <-ctx.Done():
				return
			}
			continue
		}

		accepted := s.dispatcher.Dispatch(cmd)
		result := eventMessage{
			Type: "command_result",
			Data: map[string]any{"command": cmd.Name(), "accepted": accepted},
		}
		select {
		case outboundC <- result:
		case <-ctx.Done():
			return
		}
	}
}

// writeMessages owns the connection's write side.
func (s *Server) writeMessages(conn *websocket.Conn, outboundC <-chan eventMessage) {
	for msg := range outboundC {
		if err := conn.WriteJSON(msg); err != nil {
			s.logger.Error("Remote write error", "err", err)
			return
		}
	}
}

// forwardEvents mirrors bus events to the client until the connection's
// context is cancelled.
func (s *Server) forwardEvents(ctx context.Context, outboundC chan<- eventMessage) {
	busC := s.bus.Register()
	defer s.bus.Deregister(busC)

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-busC:
			if !ok {
				return
			}
			msg, ok := buildEventMessage(evt)
			if !ok {
				continue
			}
			select {
			case outboundC <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *Server) addClient(id, name string) {
	s.mu.Lock()
	s.clients[id] = name
	first := len(s.clients) == 1
	s.mu.Unlock()

	if first {
		s.observer(true, name)
	}
}

func (s *Server) removeClient(id string) {
	s.mu.Lock()
	delete(s.clients, id)
	last := len(s.clients) == 0
	s.mu.Unlock()

	if last {
		s.observer(false, "")
	}
}
