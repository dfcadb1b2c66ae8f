package jsonrpc

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/coreengine/internal/commands"
	"github.com/coreengine/internal/engine"
)

const healthPath = "/health"

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status  string `json:"status"`
	Mode    string `json:"mode"`
	Channel string `json:"channel"`
}

// registerMethods installs the methods reachable over the cloud channel
func registerMethods(registry *commands.CommandRegistry, eng *engine.CoreEngine) {
	commands.RegisterCloudCommands(registry, eng)
	commands.RegisterStatusCommands(registry, eng)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if s.config.Network.HTTP.ServerHeader != "" {
		w.Header().Set("Server", s.config.Network.HTTP.ServerHeader)
	}
	resp := HealthResponse{
		Status:  "ok",
		Mode:    s.config.Mode,
		Channel: string(engine.ChannelCloud),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("Failed to encode health response: %v", err)
	}
}
