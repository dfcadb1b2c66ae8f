package commands

import (
	"context"
	"errors"
	"strings"

	"github.com/coreengine/internal/engine"
	"github.com/coreengine/internal/state"
)

// ProcessResult is returned by the process handlers
type ProcessResult struct {
	Normalized  string `json:"normalized"`
	Accumulated string `json:"accumulated"`
}

// ProcessCommandHandler normalises, accumulates and dispatches a command on one channel
type ProcessCommandHandler struct {
	engine  *engine.CoreEngine
	channel engine.Channel
}

// NewProcessCommandHandler creates a process handler for the given channel
func NewProcessCommandHandler(eng *engine.CoreEngine, channel engine.Channel) *ProcessCommandHandler {
	return &ProcessCommandHandler{
		engine:  eng,
		channel: channel,
	}
}

// Handle processes the command text given as params (joined with spaces)
func (h *ProcessCommandHandler) Handle(ctx context.Context, params []string) (interface{}, error) {
	if len(params) == 0 {
		return nil, &CommandError{Code: ErrInvalidParams, Message: "command text is required"}
	}
	text := strings.Join(params, " ")

	var err error
	result := ProcessResult{}
	if h.channel == engine.ChannelLocal {
		result.Normalized = h.engine.AddCommasToLocalCommand(text)
		err = h.engine.ProcessLocalCommand(ctx, text)
		result.Accumulated = h.engine.GetLocalCmd()
	} else {
		result.Normalized = h.engine.AddCommasToCommand(text)
		err = h.engine.ProcessCommand(ctx, text)
		result.Accumulated = h.engine.GetCloudCmd()
	}

	if err != nil {
		return nil, toCommandError(err)
	}
	return result, nil
}

// GetName returns the command name
func (h *ProcessCommandHandler) GetName() string {
	if h.channel == engine.ChannelLocal {
		return "process_local_command"
	}
	return "process_command"
}

// GetDescription returns the command description
func (h *ProcessCommandHandler) GetDescription() string {
	return "Normalise, accumulate and dispatch a " + string(h.channel) + " command"
}

// IsReadOnly returns false (processing drives the device)
func (h *ProcessCommandHandler) IsReadOnly() bool {
	return false
}

// AddCommasHandler returns the comma-delimited form of a command without dispatching it
type AddCommasHandler struct {
	engine  *engine.CoreEngine
	channel engine.Channel
}

// NewAddCommasHandler creates a normalisation handler for the given channel
func NewAddCommasHandler(eng *engine.CoreEngine, channel engine.Channel) *AddCommasHandler {
	return &AddCommasHandler{
		engine:  eng,
		channel: channel,
	}
}

// Handle normalises the command text given as params
func (h *AddCommasHandler) Handle(ctx context.Context, params []string) (interface{}, error) {
	if len(params) == 0 {
		return nil, &CommandError{Code: ErrInvalidParams, Message: "command text is required"}
	}
	text := strings.Join(params, " ")

	if h.channel == engine.ChannelLocal {
		return []string{h.engine.AddCommasToLocalCommand(text)}, nil
	}
	return []string{h.engine.AddCommasToCommand(text)}, nil
}

// GetName returns the command name
func (h *AddCommasHandler) GetName() string {
	if h.channel == engine.ChannelLocal {
		return "add_commas_local"
	}
	return "add_commas"
}

// GetDescription returns the command description
func (h *AddCommasHandler) GetDescription() string {
	return "Return the comma-delimited form of a " + string(h.channel) + " command"
}

// IsReadOnly returns true (normalisation has no side effects)
func (h *AddCommasHandler) IsReadOnly() bool {
	return true
}

// FuncHandler adapts a function to CommandHandler
type FuncHandler struct {
	name        string
	description string
	readOnly    bool
	handlerFunc func(ctx context.Context, params []string) (interface{}, error)
}

// NewFuncHandler creates a handler backed by handlerFunc
func NewFuncHandler(name, description string, readOnly bool, handlerFunc func(ctx context.Context, params []string) (interface{}, error)) *FuncHandler {
	return &FuncHandler{
		name:        name,
		description: description,
		readOnly:    readOnly,
		handlerFunc: handlerFunc,
	}
}

func (h *FuncHandler) Handle(ctx context.Context, params []string) (interface{}, error) {
	return h.handlerFunc(ctx, params)
}

func (h *FuncHandler) GetName() string {
	return h.name
}

func (h *FuncHandler) GetDescription() string {
	return h.description
}

func (h *FuncHandler) IsReadOnly() bool {
	return h.readOnly
}

// RegisterCloudCommands registers the cloud channel commands
func RegisterCloudCommands(registry *CommandRegistry, eng *engine.CoreEngine) {
	registry.Register(NewProcessCommandHandler(eng, engine.ChannelCloud))
	registry.Register(NewAddCommasHandler(eng, engine.ChannelCloud))
	registry.Register(NewFuncHandler("cloud_cmd", "Get the accumulated cloud command", true,
		func(ctx context.Context, params []string) (interface{}, error) {
			if len(params) > 0 {
				return nil, noParams()
			}
			return []string{eng.GetCloudCmd()}, nil
		}))
	registry.Register(NewFuncHandler("reset_cloud_cmd", "Clear the accumulated cloud command", false,
		func(ctx context.Context, params []string) (interface{}, error) {
			if len(params) > 0 {
				return nil, noParams()
			}
			eng.ResetCloudCmd()
			return []string{""}, nil
		}))
}

// RegisterLocalCommands registers the local channel commands
func RegisterLocalCommands(registry *CommandRegistry, eng *engine.CoreEngine) {
	registry.Register(NewProcessCommandHandler(eng, engine.ChannelLocal))
	registry.Register(NewAddCommasHandler(eng, engine.ChannelLocal))
	registry.Register(NewFuncHandler("local_cmd", "Get the accumulated local command", true,
		func(ctx context.Context, params []string) (interface{}, error) {
			if len(params) > 0 {
				return nil, noParams()
			}
			return []string{eng.GetLocalCmd()}, nil
		}))
	registry.Register(NewFuncHandler("reset_local_cmd", "Clear the accumulated local command", false,
		func(ctx context.Context, params []string) (interface{}, error) {
			if len(params) > 0 {
				return nil, noParams()
			}
			eng.ResetLocalCmd()
			return []string{""}, nil
		}))
	registry.Register(NewFuncHandler("device_motion", "Get the motion state and direction", true,
		func(ctx context.Context, params []string) (interface{}, error) {
			if len(params) > 0 {
				return nil, noParams()
			}
			motion, err := eng.Motion(ctx)
			if err != nil {
				return nil, toCommandError(err)
			}
			return motion, nil
		}))
	registry.Register(NewFuncHandler("reset_device", "Return every pin and the motion state to their initial values", false,
		func(ctx context.Context, params []string) (interface{}, error) {
			if len(params) > 0 {
				return nil, noParams()
			}
			if err := eng.ResetDevice(ctx); err != nil {
				return nil, toCommandError(err)
			}
			return []string{""}, nil
		}))
}

// RegisterStatusCommands registers read-only commands shared by both channels
func RegisterStatusCommands(registry *CommandRegistry, eng *engine.CoreEngine) {
	registry.Register(NewFuncHandler("device_status", "Get pin levels and motion state", true,
		func(ctx context.Context, params []string) (interface{}, error) {
			if len(params) > 0 {
				return nil, noParams()
			}
			status, err := eng.Status(ctx)
			if err != nil {
				return nil, toCommandError(err)
			}
			return status, nil
		}))
	registry.Register(NewFuncHandler("device_pin", "Get the pin level of one device", true,
		func(ctx context.Context, params []string) (interface{}, error) {
			if len(params) == 0 {
				return nil, &CommandError{Code: ErrInvalidParams, Message: "device name is required"}
			}
			level, err := eng.DeviceLevel(ctx, strings.Join(params, " "))
			if err != nil {
				return nil, toCommandError(err)
			}
			return []string{level}, nil
		}))
	registry.Register(NewFuncHandler("list_tables", "Get the device, keyword, direction and command tables", true,
		func(ctx context.Context, params []string) (interface{}, error) {
			if len(params) > 0 {
				return nil, noParams()
			}
			return eng.Tables(), nil
		}))
}

func noParams() *CommandError {
	return &CommandError{Code: ErrInvalidParams, Message: "This command does not accept parameters"}
}

// toCommandError maps engine and device errors onto command error codes
func toCommandError(err error) *CommandError {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		return cmdErr
	}

	var respErr *state.ResponseError
	switch {
	case errors.Is(err, engine.ErrEmptyCommand):
		return &CommandError{Code: ErrInvalidParams, Message: "command has no recognised words", Details: err.Error()}
	case errors.Is(err, engine.ErrUnknownDevice):
		return &CommandError{Code: ErrInvalidParams, Message: "unknown device", Details: err.Error()}
	case errors.Is(err, engine.ErrNotSupported):
		return &CommandError{Code: ErrNotSupported, Message: "not supported", Details: err.Error()}
	case errors.As(err, &respErr) && (respErr.Code == ErrBusy || respErr.Code == ErrUnavailable):
		return &CommandError{Code: respErr.Code, Message: respErr.Code, Details: err.Error()}
	}

	var subErr *engine.SubCommandError
	if errors.As(err, &subErr) {
		return &CommandError{Code: ErrDispatchFailed, Message: "one or more sub-commands failed", Details: err.Error()}
	}
	return &CommandError{Code: ErrInternal, Message: ErrInternal, Details: err.Error()}
}
