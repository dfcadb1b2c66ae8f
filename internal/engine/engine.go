// Package engine implements CoreEngine, which normalises textual commands
// received on the cloud and local channels, accumulates the normalised text
// per channel and dispatches each sub-command to an Actuator.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreengine/internal/state"
	"github.com/coreengine/internal/tables"
)

// Channel names a command source
type Channel string

const (
	ChannelCloud Channel = "cloud"
	ChannelLocal Channel = "local"
)

// Actuator performs the device effects sub-commands resolve to
type Actuator interface {
	SetPin(ctx context.Context, pin, level string) error
	Drive(ctx context.Context, motionState, direction string) error
}

// StatusReporter is implemented by actuators that can report their state
type StatusReporter interface {
	Snapshot(ctx context.Context) (state.Status, error)
}

// PinReader is implemented by actuators that can read back a single pin
type PinReader interface {
	Pin(ctx context.Context, pin string) (string, error)
}

// MotionReporter is implemented by actuators that track motion
type MotionReporter interface {
	Motion(ctx context.Context) (state.Motion, error)
}

// Resetter is implemented by actuators that can return to their initial state
type Resetter interface {
	Reset(ctx context.Context) error
}

var (
	// ErrNotSupported is returned when the actuator lacks an optional capability
	ErrNotSupported = errors.New("not supported by actuator")

	ErrUnknownDevice = errors.New("unknown device")
)

// CoreEngine accumulates and dispatches cloud and local commands
type CoreEngine struct {
	tables   *tables.Tables
	actuator Actuator
	cloud    *channel
	local    *channel
}

// New creates an engine with empty accumulators
func New(tbl *tables.Tables, actuator Actuator) *CoreEngine {
	e := &CoreEngine{
		tables:   tbl,
		actuator: actuator,
	}
	e.cloud = newChannel(ChannelCloud, e.AddCommasToCommand, e.executeCommand)
	e.local = newChannel(ChannelLocal, e.AddCommasToLocalCommand, e.executeLocalCommand)
	return e
}

// ProcessCommand normalises a cloud command, appends it to the cloud
// accumulator and dispatches every sub-command in order.
func (e *CoreEngine) ProcessCommand(ctx context.Context, command string) error {
	return e.cloud.process(ctx, command)
}

// GetCloudCmd returns the accumulated cloud command string
func (e *CoreEngine) GetCloudCmd() string {
	return e.cloud.get()
}

// AddCommasToCommand returns the comma-delimited form of a cloud command
func (e *CoreEngine) AddCommasToCommand(command string) string {
	return groupCloud(e.tables.Scan(tables.Tokenize(command), tables.KindKeyword, tables.KindDevice))
}

// ResetCloudCmd clears the cloud accumulator
func (e *CoreEngine) ResetCloudCmd() {
	e.cloud.reset()
}

// ProcessLocalCommand normalises a local command, appends it to the local
// accumulator and dispatches every sub-command in order.
func (e *CoreEngine) ProcessLocalCommand(ctx context.Context, command string) error {
	return e.local.process(ctx, command)
}

// GetLocalCmd returns the accumulated local command string
func (e *CoreEngine) GetLocalCmd() string {
	return e.local.get()
}

// AddCommasToLocalCommand returns the comma-delimited form of a local command
func (e *CoreEngine) AddCommasToLocalCommand(command string) string {
	return groupLocal(e.tables.Scan(tables.Tokenize(command), tables.KindCommand, tables.KindDirection))
}

// ResetLocalCmd clears the local accumulator
func (e *CoreEngine) ResetLocalCmd() {
	e.local.reset()
}

// Tables returns the lookup tables used for dispatch
func (e *CoreEngine) Tables() *tables.Tables {
	return e.tables
}

// Status reports the actuator state when the actuator supports it
func (e *CoreEngine) Status(ctx context.Context) (state.Status, error) {
	r, ok := e.actuator.(StatusReporter)
	if !ok {
		return state.Status{}, ErrNotSupported
	}
	return r.Snapshot(ctx)
}

// DeviceLevel reads the pin level of the device called name
func (e *CoreEngine) DeviceLevel(ctx context.Context, name string) (string, error) {
	kernel, ok := e.tables.Lookup(tables.KindDevice, name)
	if !ok {
		return "", fmt.Errorf("%q: %w", name, ErrUnknownDevice)
	}
	r, ok := e.actuator.(PinReader)
	if !ok {
		return "", ErrNotSupported
	}
	return r.Pin(ctx, kernel)
}

// Motion reports the current motion state and direction
func (e *CoreEngine) Motion(ctx context.Context) (state.Motion, error) {
	r, ok := e.actuator.(MotionReporter)
	if !ok {
		return state.Motion{}, ErrNotSupported
	}
	return r.Motion(ctx)
}

// ResetDevice returns the actuator to its initial state. Accumulators are untouched.
func (e *CoreEngine) ResetDevice(ctx context.Context) error {
	r, ok := e.actuator.(Resetter)
	if !ok {
		return ErrNotSupported
	}
	return r.Reset(ctx)
}
