package state

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coreengine/internal/config"
	"github.com/coreengine/internal/tables"
)

// Error codes returned in CommandResponse.Error
const (
	ErrInvalidParams = "INVALID_PARAMS"
	ErrInvalidRange  = "INVALID_RANGE"
	ErrUnavailable   = "UNAVAILABLE"
	ErrBusy          = "BUSY"
	ErrInternal      = "INTERNAL"
)

// MotionHalt is the motion state that clears the current direction
const MotionHalt = "HALT"

// DeviceState represents the thread-safe simulated state of the device
type DeviceState struct {
	mu              sync.RWMutex
	pins            map[string]string
	motion          Motion
	mode            string
	initialPin      string
	updatedAt       time.Time
	validLevels     map[string]bool
	validMotion     map[string]bool
	validDirections map[string]bool
	queueWait       time.Duration
	responseTimeout time.Duration
	commandQueue    chan Command
	stopChan        chan struct{}
	closeOnce       sync.Once
	wg              sync.WaitGroup  // For graceful shutdown
	ctx             context.Context // For cancellation
	cancel          context.CancelFunc
}

// Motion is the current motion state and direction code
type Motion struct {
	State     string `json:"state"`
	Direction string `json:"direction,omitempty"`
}

// Status is a point-in-time copy of the device state
type Status struct {
	Mode      string            `json:"mode"`
	Pins      map[string]string `json:"pins"`
	Motion    Motion            `json:"motion"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Command represents a command to be processed by the device state
type Command struct {
	Type      string
	Params    []string
	Response  chan CommandResponse
	Timestamp time.Time
}

// CommandResponse represents the response from a command
type CommandResponse struct {
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// ResponseError is returned by the typed helpers when the worker reports an error code
type ResponseError struct {
	Code string
}

func (e *ResponseError) Error() string {
	return "device: " + e.Code
}

// NewDeviceState creates a new device state instance with every pin at the
// configured initial level and motion halted.
func NewDeviceState(cfg *config.Config, tbl *tables.Tables) *DeviceState {
	ctx, cancel := context.WithCancel(context.Background())

	ds := &DeviceState{
		pins:            make(map[string]string),
		motion:          Motion{State: MotionHalt},
		mode:            cfg.Mode,
		initialPin:      cfg.Tables.InitialPin,
		updatedAt:       time.Now(),
		validLevels:     toSet(tbl.PinStates()),
		validMotion:     toSet(tbl.MotionStates()),
		validDirections: toSet(tbl.DirectionValues()),
		queueWait:       time.Duration(cfg.Timing.Queue.WaitMs) * time.Millisecond,
		responseTimeout: time.Duration(cfg.Timing.Commands.TimeoutSec) * time.Second,
		commandQueue:    make(chan Command, cfg.Timing.Queue.Size),
		stopChan:        make(chan struct{}),
		ctx:             ctx,
		cancel:          cancel,
	}
	ds.validMotion[MotionHalt] = true

	for _, pin := range tbl.KernelNames() {
		ds.pins[pin] = ds.initialPin
	}

	// Start the command processing worker with proper lifecycle management
	ds.wg.Add(1)
	go ds.commandWorker()

	return ds
}

// commandWorker processes commands in FIFO order
func (ds *DeviceState) commandWorker() {
	defer ds.wg.Done()

	for {
		select {
		case cmd := <-ds.commandQueue:
			ds.processCommand(cmd)
		case <-ds.stopChan:
			return
		case <-ds.ctx.Done():
			return
		}
	}
}

// processCommand processes a single command
func (ds *DeviceState) processCommand(cmd Command) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.mode == "offline" {
		cmd.Response <- CommandResponse{Error: ErrUnavailable}
		return
	}

	switch cmd.Type {
	case "setPin":
		ds.handleSetPin(cmd)
	case "getPin":
		ds.handleGetPin(cmd)
	case "drive":
		ds.handleDrive(cmd)
	case "getMotion":
		cmd.Response <- CommandResponse{Result: ds.motion}
	case "snapshot":
		cmd.Response <- CommandResponse{Result: ds.snapshotLocked()}
	case "reset":
		ds.handleReset(cmd)
	default:
		cmd.Response <- CommandResponse{Error: ErrInternal}
	}
}

// handleSetPin drives a known pin to a known level
func (ds *DeviceState) handleSetPin(cmd Command) {
	if len(cmd.Params) != 2 {
		cmd.Response <- CommandResponse{Error: ErrInvalidParams}
		return
	}

	pin, level := cmd.Params[0], cmd.Params[1]
	if _, ok := ds.pins[pin]; !ok {
		cmd.Response <- CommandResponse{Error: ErrInvalidParams}
		return
	}
	if !ds.validLevels[level] {
		cmd.Response <- CommandResponse{Error: ErrInvalidRange}
		return
	}

	ds.pins[pin] = level
	ds.updatedAt = cmd.Timestamp
	cmd.Response <- CommandResponse{Result: []string{pin, level}}
}

// handleGetPin reads a single pin level
func (ds *DeviceState) handleGetPin(cmd Command) {
	if len(cmd.Params) != 1 {
		cmd.Response <- CommandResponse{Error: ErrInvalidParams}
		return
	}

	level, ok := ds.pins[cmd.Params[0]]
	if !ok {
		cmd.Response <- CommandResponse{Error: ErrInvalidParams}
		return
	}
	cmd.Response <- CommandResponse{Result: []string{level}}
}

// handleDrive updates the motion state. HALT always clears the direction.
func (ds *DeviceState) handleDrive(cmd Command) {
	if len(cmd.Params) < 1 || len(cmd.Params) > 2 {
		cmd.Response <- CommandResponse{Error: ErrInvalidParams}
		return
	}

	motion := Motion{State: cmd.Params[0]}
	if len(cmd.Params) == 2 {
		motion.Direction = cmd.Params[1]
	}

	if !ds.validMotion[motion.State] {
		cmd.Response <- CommandResponse{Error: ErrInvalidRange}
		return
	}
	if motion.Direction != "" && !ds.validDirections[motion.Direction] {
		cmd.Response <- CommandResponse{Error: ErrInvalidRange}
		return
	}

	if motion.State == MotionHalt {
		motion.Direction = ""
	} else if motion.Direction == "" {
		// keep heading when only the motion state changes
		motion.Direction = ds.motion.Direction
	}

	ds.motion = motion
	ds.updatedAt = cmd.Timestamp
	cmd.Response <- CommandResponse{Result: motion}
}

// handleReset returns every pin to its initial level and halts motion
func (ds *DeviceState) handleReset(cmd Command) {
	for pin := range ds.pins {
		ds.pins[pin] = ds.initialPin
	}
	ds.motion = Motion{State: MotionHalt}
	ds.updatedAt = cmd.Timestamp

	cmd.Response <- CommandResponse{Result: []string{""}}
}

// snapshotLocked copies the state; caller holds mu
func (ds *DeviceState) snapshotLocked() Status {
	pins := make(map[string]string, len(ds.pins))
	for k, v := range ds.pins {
		pins[k] = v
	}
	return Status{
		Mode:      ds.mode,
		Pins:      pins,
		Motion:    ds.motion,
		UpdatedAt: ds.updatedAt,
	}
}

// ExecuteCommand executes a command and returns the response
func (ds *DeviceState) ExecuteCommand(ctx context.Context, cmdType string, params []string) CommandResponse {
	response := make(chan CommandResponse, 1)
	cmd := Command{
		Type:      cmdType,
		Params:    params,
		Response:  response,
		Timestamp: time.Now(),
	}

	// Add backpressure handling and timeout
	select {
	case ds.commandQueue <- cmd:
		select {
		case resp := <-response:
			return resp
		case <-time.After(ds.responseTimeout):
			return CommandResponse{Error: ErrInternal}
		case <-ctx.Done():
			return CommandResponse{Error: ErrUnavailable}
		case <-ds.ctx.Done():
			return CommandResponse{Error: ErrUnavailable}
		}
	case <-time.After(ds.queueWait):
		// Command queue full or system busy
		return CommandResponse{Error: ErrBusy}
	case <-ctx.Done():
		return CommandResponse{Error: ErrUnavailable}
	case <-ds.ctx.Done():
		// System shutting down
		return CommandResponse{Error: ErrUnavailable}
	}
}

// SetPin drives the named kernel pin to level
func (ds *DeviceState) SetPin(ctx context.Context, pin, level string) error {
	return responseErr(ds.ExecuteCommand(ctx, "setPin", []string{pin, level}))
}

// Pin reads the level of a kernel pin
func (ds *DeviceState) Pin(ctx context.Context, pin string) (string, error) {
	resp := ds.ExecuteCommand(ctx, "getPin", []string{pin})
	if err := responseErr(resp); err != nil {
		return "", err
	}
	return resp.Result.([]string)[0], nil
}

// Drive sets the motion state and optional direction code
func (ds *DeviceState) Drive(ctx context.Context, motionState, direction string) error {
	params := []string{motionState}
	if direction != "" {
		params = append(params, direction)
	}
	return responseErr(ds.ExecuteCommand(ctx, "drive", params))
}

// Motion returns the current motion state
func (ds *DeviceState) Motion(ctx context.Context) (Motion, error) {
	resp := ds.ExecuteCommand(ctx, "getMotion", nil)
	if err := responseErr(resp); err != nil {
		return Motion{}, err
	}
	return resp.Result.(Motion), nil
}

// Snapshot returns a copy of the current device state
func (ds *DeviceState) Snapshot(ctx context.Context) (Status, error) {
	resp := ds.ExecuteCommand(ctx, "snapshot", nil)
	if err := responseErr(resp); err != nil {
		return Status{}, err
	}
	return resp.Result.(Status), nil
}

// Reset returns the device to its initial state
func (ds *DeviceState) Reset(ctx context.Context) error {
	return responseErr(ds.ExecuteCommand(ctx, "reset", nil))
}

// Mode returns the configured operating mode
func (ds *DeviceState) Mode() string {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.mode
}

// Close shuts down the device state gracefully
func (ds *DeviceState) Close() error {
	// Cancel context to stop all operations
	ds.cancel()

	ds.closeOnce.Do(func() {
		close(ds.stopChan)
	})

	// Wait for goroutines to finish with timeout
	done := make(chan struct{})
	go func() {
		ds.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(10 * time.Second):
		return fmt.Errorf("shutdown timeout")
	}
}

func responseErr(resp CommandResponse) error {
	if resp.Error != "" {
		return &ResponseError{Code: resp.Error}
	}
	return nil
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
