package commands

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// JSON-RPC 2.0 error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Request represents a JSON-RPC 2.0 request
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  []string    `json:"params,omitempty"`
	ID      interface{} `json:"id"`
}

// Response represents a JSON-RPC 2.0 response
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// RPCError represents a JSON-RPC 2.0 error object
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// CommandInfo provides information about a command
type CommandInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ReadOnly    bool   `json:"read_only"`
}

// Dispatcher routes JSON-RPC requests for one channel to registered command handlers
type Dispatcher struct {
	registry     *CommandRegistry
	channel      string
	serverHeader string
}

// NewDispatcher creates a dispatcher over registry. It registers list_commands itself.
func NewDispatcher(registry *CommandRegistry, channel, serverHeader string) *Dispatcher {
	d := &Dispatcher{
		registry:     registry,
		channel:      channel,
		serverHeader: serverHeader,
	}
	registry.Register(NewFuncHandler("list_commands", "List the commands available on this channel", true,
		func(ctx context.Context, params []string) (interface{}, error) {
			return d.GetAvailableCommands(), nil
		}))
	return d
}

// HandleRequest handles HTTP POST requests to the JSON-RPC endpoint
func (d *Dispatcher) HandleRequest(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if d.serverHeader != "" {
		w.Header().Set("Server", d.serverHeader)
	}

	// Only accept POST requests
	if r.Method != http.MethodPost {
		WriteHTTPError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid Request", nil)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// well-formed JSON with a mistyped member is a bad request, not a parse failure
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			WriteHTTPError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid Request", req.ID)
			return
		}
		WriteHTTPError(w, http.StatusBadRequest, CodeParseError, "Parse error", nil)
		return
	}

	ctx := r.Context()
	if _, ok := CommandContextFrom(ctx); !ok {
		ctx = WithCommandContext(ctx, CommandContext{
			SessionID:  uuid.NewString(),
			Channel:    d.channel,
			RemoteAddr: r.RemoteAddr,
			Timestamp:  time.Now(),
		})
	}

	response := d.Dispatch(ctx, &req)
	if response.Error != nil && response.Error.Code == CodeInvalidRequest {
		w.WriteHeader(http.StatusBadRequest)
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// Dispatch validates a request and runs the matching handler
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) *Response {
	start := time.Now()

	if req.JSONRPC != "2.0" || req.Method == "" {
		return errorResponse(req.ID, CodeInvalidRequest, "Invalid Request", nil)
	}

	cc, ok := CommandContextFrom(ctx)
	if !ok {
		cc = CommandContext{SessionID: uuid.NewString(), Channel: d.channel, Timestamp: start}
		ctx = WithCommandContext(ctx, cc)
	}

	response := d.processRequest(ctx, req)

	errCode := ""
	if response.Error != nil {
		errCode = response.Error.Message
	}
	log.Printf("JSON-RPC request processed: channel=%s method=%s session=%s subject=%s error=%s duration=%v",
		d.channel, req.Method, cc.SessionID, cc.Subject, errCode, time.Since(start))

	return response
}

// processRequest processes a JSON-RPC request using the command registry
func (d *Dispatcher) processRequest(ctx context.Context, req *Request) *Response {
	handler, exists := d.registry.Get(req.Method)
	if !exists {
		return errorResponse(req.ID, CodeMethodNotFound, "Method not found", nil)
	}

	result, err := handler.Handle(ctx, req.Params)
	if err != nil {
		if cmdErr, ok := err.(*CommandError); ok {
			var data interface{}
			if cmdErr.Details != "" {
				data = cmdErr.Details
			}
			return errorResponse(req.ID, CodeInvalidParams, cmdErr.Code, data)
		}

		return errorResponse(req.ID, CodeInternalError, ErrInternal, nil)
	}

	return &Response{
		JSONRPC: "2.0",
		Result:  result,
		ID:      req.ID,
	}
}

// GetAvailableCommands returns a sorted list of available commands
func (d *Dispatcher) GetAvailableCommands() []CommandInfo {
	names := d.registry.List()
	infos := make([]CommandInfo, 0, len(names))
	for _, name := range names {
		handler, ok := d.registry.Get(name)
		if !ok {
			continue
		}
		infos = append(infos, CommandInfo{
			Name:        handler.GetName(),
			Description: handler.GetDescription(),
			ReadOnly:    handler.IsReadOnly(),
		})
	}
	return infos
}

// AddCustomCommand allows adding custom commands at runtime
func (d *Dispatcher) AddCustomCommand(handler CommandHandler) {
	d.registry.Register(handler)
}

// RemoveCommand allows removing commands at runtime
func (d *Dispatcher) RemoveCommand(commandName string) {
	d.registry.Remove(commandName)
}

// ErrorResponse builds a JSON-RPC error response
func ErrorResponse(id interface{}, code int, message string) *Response {
	return errorResponse(id, code, message, nil)
}

func errorResponse(id interface{}, code int, message string, data interface{}) *Response {
	return &Response{
		JSONRPC: "2.0",
		Error: &RPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
		ID: id,
	}
}

// WriteHTTPError writes a JSON-RPC error response with the given HTTP status
func WriteHTTPError(w http.ResponseWriter, status, code int, message string, id interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse(id, code, message, nil)); err != nil {
		log.Printf("Failed to encode error response: %v", err)
	}
}
