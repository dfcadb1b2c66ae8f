// Package local serves the local channel as JSON-RPC 2.0 over TCP.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/coreengine/internal/commands"
	"github.com/coreengine/internal/config"
	"github.com/coreengine/internal/engine"
	"github.com/google/uuid"
)

// Server handles local-channel TCP connections
type Server struct {
	config            *config.Config
	dispatcher        *commands.Dispatcher
	allowed           []*net.IPNet
	listener          net.Listener
	stopChan          chan struct{}
	activeConnections map[net.Conn]struct{}
	connectionsMutex  sync.Mutex
	closed            bool
	maxConnections    int
	idleTimeout       time.Duration
	wg                sync.WaitGroup
}

// NewServer creates a local-channel server dispatching to eng
func NewServer(cfg *config.Config, eng *engine.CoreEngine) (*Server, error) {
	allowed := make([]*net.IPNet, 0, len(cfg.Network.Local.AllowedCIDRs))
	for _, cidrStr := range cfg.Network.Local.AllowedCIDRs {
		_, network, err := net.ParseCIDR(cidrStr)
		if err != nil {
			return nil, fmt.Errorf("invalid CIDR %q: %w", cidrStr, err)
		}
		allowed = append(allowed, network)
	}

	registry := commands.NewCommandRegistry()
	commands.RegisterLocalCommands(registry, eng)
	commands.RegisterStatusCommands(registry, eng)

	return &Server{
		config:            cfg,
		dispatcher:        commands.NewDispatcher(registry, string(engine.ChannelLocal), ""),
		allowed:           allowed,
		stopChan:          make(chan struct{}),
		activeConnections: make(map[net.Conn]struct{}),
		maxConnections:    cfg.Network.Local.MaxConnections,
		idleTimeout:       time.Duration(cfg.Network.Local.IdleTimeoutSec) * time.Second,
	}, nil
}

// Dispatcher returns the dispatcher behind the TCP endpoint
func (s *Server) Dispatcher() *commands.Dispatcher {
	return s.dispatcher
}

// ListenAndServe listens on the configured local port and serves connections
func (s *Server) ListenAndServe() error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", s.config.Network.Local.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", s.config.Network.Local.Port, err)
	}
	return s.Serve(listener)
}

// Serve accepts connections on listener until Close is called
func (s *Server) Serve(listener net.Listener) error {
	s.connectionsMutex.Lock()
	if s.closed {
		s.connectionsMutex.Unlock()
		return listener.Close()
	}
	s.listener = listener
	s.connectionsMutex.Unlock()

	log.Printf("Local server listening on %s", listener.Addr())

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-s.stopChan:
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			log.Printf("Failed to accept connection: %v", err)
			continue
		}

		if !s.isAllowedConnection(conn) {
			log.Printf("Rejected connection from %s (not in allowed CIDRs)", conn.RemoteAddr())
			conn.Close()
			continue
		}

		if !s.track(conn) {
			log.Printf("Rejected connection from %s (limit of %d reached)", conn.RemoteAddr(), s.maxConnections)
			conn.Close()
			continue
		}

		go s.handleConnection(conn)
	}
}

// Addr returns the listener address, or nil before Serve
func (s *Server) Addr() net.Addr {
	s.connectionsMutex.Lock()
	defer s.connectionsMutex.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) track(conn net.Conn) bool {
	s.connectionsMutex.Lock()
	defer s.connectionsMutex.Unlock()
	if s.closed || (s.maxConnections > 0 && len(s.activeConnections) >= s.maxConnections) {
		return false
	}
	s.activeConnections[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.connectionsMutex.Lock()
	defer s.connectionsMutex.Unlock()
	delete(s.activeConnections, conn)
}

// handleConnection serves requests on one connection until EOF, idle timeout or a parse error
func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	defer conn.Close()

	cc := commands.CommandContext{
		SessionID:  uuid.NewString(),
		Channel:    string(engine.ChannelLocal),
		RemoteAddr: conn.RemoteAddr().String(),
		Timestamp:  time.Now(),
	}
	ctx := commands.WithCommandContext(context.Background(), cc)

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	for {
		if s.idleTimeout > 0 {
			conn.SetDeadline(time.Now().Add(s.idleTimeout))
		}

		var req commands.Request
		if err := decoder.Decode(&req); err != nil {
			var typeErr *json.UnmarshalTypeError
			switch {
			case errors.Is(err, io.EOF):
				return
			case errors.As(err, &typeErr):
				// the value was consumed whole, so the stream is still usable
				if err := encoder.Encode(commands.ErrorResponse(nil, commands.CodeInvalidRequest, "Invalid Request")); err != nil {
					return
				}
				continue
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				log.Printf("Local connection idle, closing: client=%s", conn.RemoteAddr())
				return
			}
			log.Printf("Failed to decode JSON-RPC request: %v", err)
			encoder.Encode(commands.ErrorResponse(nil, commands.CodeParseError, "Parse error"))
			return
		}

		response := s.dispatcher.Dispatch(ctx, &req)
		if err := encoder.Encode(response); err != nil {
			log.Printf("Failed to encode response: %v", err)
			return
		}
	}
}

// isAllowedConnection checks if the connection is from an allowed CIDR
func (s *Server) isAllowedConnection(conn net.Conn) bool {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		return false
	}

	clientIP := net.ParseIP(host)
	if clientIP == nil {
		return false
	}

	for _, network := range s.allowed {
		if network.Contains(clientIP) {
			return true
		}
	}
	return false
}

// Close stops accepting, drops open connections and waits for their handlers
func (s *Server) Close() error {
	s.connectionsMutex.Lock()
	if s.closed {
		s.connectionsMutex.Unlock()
		return nil
	}
	s.closed = true
	close(s.stopChan)

	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	for conn := range s.activeConnections {
		conn.Close()
	}
	s.connectionsMutex.Unlock()

	s.wg.Wait()
	return err
}
