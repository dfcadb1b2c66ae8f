// Package jsonrpc serves the cloud channel as JSON-RPC 2.0 over HTTP.
package jsonrpc

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/coreengine/internal/auth"
	"github.com/coreengine/internal/commands"
	"github.com/coreengine/internal/config"
	"github.com/coreengine/internal/engine"
	"github.com/google/uuid"
)

// Server handles JSON-RPC HTTP requests for the cloud channel
type Server struct {
	config     *config.Config
	engine     *engine.CoreEngine
	dispatcher *commands.Dispatcher
	middleware *auth.Middleware
}

// NewServer creates a new cloud JSON-RPC server. A bearer-token middleware is
// installed when auth is enabled in cfg.
func NewServer(cfg *config.Config, eng *engine.CoreEngine) (*Server, error) {
	registry := commands.NewCommandRegistry()
	registerMethods(registry, eng)

	s := &Server{
		config:     cfg,
		engine:     eng,
		dispatcher: commands.NewDispatcher(registry, string(engine.ChannelCloud), cfg.Network.HTTP.ServerHeader),
	}

	if cfg.Auth.Enabled {
		verifier, err := auth.NewVerifier(auth.VerifierConfig{
			SecretKey: cfg.Auth.SecretKey,
			Issuer:    cfg.Auth.Issuer,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create token verifier: %w", err)
		}
		s.middleware = auth.NewMiddleware(verifier, writeAuthError, healthPath)
	}

	return s, nil
}

// Dispatcher returns the dispatcher behind the HTTP endpoint
func (s *Server) Dispatcher() *commands.Dispatcher {
	return s.dispatcher
}

// Handler returns the HTTP handler serving the JSON-RPC path and /health
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.config.Network.HTTP.Path, s.HandleRequest)
	mux.HandleFunc(healthPath, s.handleHealth)

	var handler http.Handler = mux
	if s.middleware != nil {
		handler = s.middleware.RequireAuth(handler)
	}
	return handler
}

// HTTPServer builds the http.Server for the configured port
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Network.HTTP.Port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// HandleRequest handles HTTP POST requests to the cloud endpoint. The token
// subject, when present, is carried into the command context.
func (s *Server) HandleRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if claims := auth.ClaimsFromContext(r.Context()); claims != nil {
		ctx := commands.WithCommandContext(r.Context(), commands.CommandContext{
			SessionID:  uuid.NewString(),
			Channel:    string(engine.ChannelCloud),
			RemoteAddr: r.RemoteAddr,
			Subject:    claims.Subject,
			Timestamp:  start,
		})
		r = r.WithContext(ctx)
	}
	s.dispatcher.HandleRequest(w, r)
	log.Printf("HTTP request served: remote=%s duration=%v", r.RemoteAddr, time.Since(start))
}

// writeAuthError answers an unauthenticated request with a JSON-RPC error body
func writeAuthError(w http.ResponseWriter, status int, message string) {
	commands.WriteHTTPError(w, status, commands.CodeInvalidRequest, message, nil)
}
