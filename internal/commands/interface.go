package commands

import (
	"context"
	"sort"
	"sync"
	"time"
)

// CommandHandler defines the interface for command handlers
type CommandHandler interface {
	// Handle processes a command and returns the response
	Handle(ctx context.Context, params []string) (interface{}, error)

	// GetName returns the command name
	GetName() string

	// GetDescription returns a human-readable description
	GetDescription() string

	// IsReadOnly returns true if the command only reads data
	IsReadOnly() bool
}

// CommandRegistry manages available commands
type CommandRegistry struct {
	mu       sync.RWMutex
	handlers map[string]CommandHandler
}

// NewCommandRegistry creates a new command registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		handlers: make(map[string]CommandHandler),
	}
}

// Register adds a command handler to the registry, replacing any handler with the same name
func (r *CommandRegistry) Register(handler CommandHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[handler.GetName()] = handler
}

// Get returns a command handler by name
func (r *CommandRegistry) Get(name string) (CommandHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handler, exists := r.handlers[name]
	return handler, exists
}

// Remove deletes a command handler by name
func (r *CommandRegistry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, name)
}

// List returns all registered command names in sorted order
func (r *CommandRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CommandContext provides context for command execution
type CommandContext struct {
	SessionID  string
	Channel    string
	RemoteAddr string
	Subject    string // authenticated token subject, empty when auth is off
	Timestamp  time.Time
}

type commandContextKey struct{}

// WithCommandContext attaches cc to ctx
func WithCommandContext(ctx context.Context, cc CommandContext) context.Context {
	return context.WithValue(ctx, commandContextKey{}, cc)
}

// CommandContextFrom returns the CommandContext attached to ctx, if any
func CommandContextFrom(ctx context.Context) (CommandContext, bool) {
	cc, ok := ctx.Value(commandContextKey{}).(CommandContext)
	return cc, ok
}

// CommandError represents a command-specific error
type CommandError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *CommandError) Error() string {
	return e.Message
}

// Common error codes
const (
	ErrInvalidRange   = "INVALID_RANGE"
	ErrBusy           = "BUSY"
	ErrUnavailable    = "UNAVAILABLE"
	ErrInternal       = "INTERNAL"
	ErrNotSupported   = "NOT_SUPPORTED"
	ErrInvalidParams  = "INVALID_PARAMS"
	ErrDispatchFailed = "DISPATCH_FAILED"
)
