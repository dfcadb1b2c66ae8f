package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/coreengine/internal/config"
	"github.com/coreengine/internal/state"
	"github.com/coreengine/internal/tables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockActuator records the effects requested by the engine
type mockActuator struct {
	mock.Mock
}

func (m *mockActuator) SetPin(ctx context.Context, pin, level string) error {
	args := m.Called(pin, level)
	return args.Error(0)
}

func (m *mockActuator) Drive(ctx context.Context, motionState, direction string) error {
	args := m.Called(motionState, direction)
	return args.Error(0)
}

func newTestTables(t *testing.T) *tables.Tables {
	t.Helper()
	cfg := config.Default().Tables
	cfg.Devices = append(cfg.Devices, config.DeviceEntry{Name: "living room light", Kernel: "D9"})
	tbl, err := tables.New(cfg)
	require.NoError(t, err)
	return tbl
}

func newTestEngine(t *testing.T) (*CoreEngine, *mockActuator) {
	t.Helper()
	act := &mockActuator{}
	return New(newTestTables(t), act), act
}

func TestNewEngineStartsEmpty(t *testing.T) {
	e, _ := newTestEngine(t)

	assert.Equal(t, "", e.GetCloudCmd())
	assert.Equal(t, "", e.GetLocalCmd())
}

func TestAddCommasToCommand(t *testing.T) {
	e, _ := newTestEngine(t)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"single pair", "on light", "on light"},
		{"filler words dropped", "Please turn ON the light", "on light"},
		{"two pairs", "turn on the light and off the fan", "on light,off fan"},
		{"device first", "light on fan off", "light on,fan off"},
		{"keyword carried to next device", "turn on light and fan", "on light,on fan"},
		{"existing commas are separators", "on light,off,fan", "on light,off fan"},
		{"multi-word device", "switch the living room light off", "living room light off"},
		{"keyword without device", "on off light", "on,off light"},
		{"device without keyword", "light fan on", "light,fan on"},
		{"nothing recognised", "hello there", ""},
		{"empty", "", ""},
		{"local words ignored", "go forward", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.AddCommasToCommand(tt.in))
		})
	}
}

func TestAddCommasToLocalCommand(t *testing.T) {
	e, _ := newTestEngine(t)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"single command", "stop", "stop"},
		{"command and direction", "GO forward", "go forward"},
		{"sequence", "go forward then turn left and stop", "go forward,turn left,stop"},
		{"direction repeats command", "go forward left", "go forward,go left"},
		{"direction without command", "forward left", "forward,left"},
		{"cloud words ignored", "turn on the light", "turn"},
		{"nothing recognised", "hello", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.AddCommasToLocalCommand(tt.in))
		})
	}
}

func TestAddCommasIsIdempotent(t *testing.T) {
	e, _ := newTestEngine(t)

	for _, in := range []string{"turn on light and fan", "light on fan off", "on off light"} {
		once := e.AddCommasToCommand(in)
		assert.Equal(t, once, e.AddCommasToCommand(once), in)
	}
	for _, in := range []string{"go forward left", "go forward then turn left and stop"} {
		once := e.AddCommasToLocalCommand(in)
		assert.Equal(t, once, e.AddCommasToLocalCommand(once), in)
	}
}

func TestProcessCommandDispatches(t *testing.T) {
	e, act := newTestEngine(t)
	act.On("SetPin", "D1", "HIGH").Return(nil).Once()
	act.On("SetPin", "D2", "HIGH").Return(nil).Once()
	act.On("SetPin", "D9", "LOW").Return(nil).Once()

	require.NoError(t, e.ProcessCommand(context.Background(), "turn on light and fan"))
	assert.Equal(t, "on light,on fan", e.GetCloudCmd())

	require.NoError(t, e.ProcessCommand(context.Background(), "living room light off"))
	assert.Equal(t, "on light,on fan,living room light off", e.GetCloudCmd())

	act.AssertExpectations(t)
}

func TestProcessLocalCommandDispatches(t *testing.T) {
	e, act := newTestEngine(t)
	act.On("Drive", "RUN", "F").Return(nil).Once()
	act.On("Drive", "TURN", "L").Return(nil).Once()
	act.On("Drive", "HALT", "").Return(nil).Once()

	require.NoError(t, e.ProcessLocalCommand(context.Background(), "go forward, turn left, stop"))
	assert.Equal(t, "go forward,turn left,stop", e.GetLocalCmd())

	act.AssertExpectations(t)
}

func TestProcessEmptyCommand(t *testing.T) {
	e, act := newTestEngine(t)

	err := e.ProcessCommand(context.Background(), "what a nice day")
	assert.ErrorIs(t, err, ErrEmptyCommand)
	assert.Equal(t, "", e.GetCloudCmd(), "empty commands are not accumulated")

	err = e.ProcessLocalCommand(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyCommand)
	assert.Equal(t, "", e.GetLocalCmd())

	act.AssertNotCalled(t, "SetPin", mock.Anything, mock.Anything)
	act.AssertNotCalled(t, "Drive", mock.Anything, mock.Anything)
}

func TestProcessCommandReportsFailedSubCommands(t *testing.T) {
	e, act := newTestEngine(t)
	deviceErr := errors.New("pin stuck")
	act.On("SetPin", "D2", "LOW").Return(deviceErr).Once()
	act.On("SetPin", "D3", "HIGH").Return(nil).Once()

	err := e.ProcessCommand(context.Background(), "on, off fan, on pump")
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrMissingDevice)
	assert.ErrorIs(t, err, deviceErr)

	var subErr *SubCommandError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, ChannelCloud, subErr.Channel)
	assert.Equal(t, "on", subErr.SubCommand)

	// every sub-command is attempted and the text is still accumulated
	assert.Equal(t, "on,off fan,on pump", e.GetCloudCmd())
	act.AssertExpectations(t)
}

func TestProcessLocalCommandErrors(t *testing.T) {
	e, act := newTestEngine(t)

	err := e.ProcessLocalCommand(context.Background(), "forward")
	assert.ErrorIs(t, err, ErrMissingCommand)
	assert.Equal(t, "forward", e.GetLocalCmd())

	act.AssertNotCalled(t, "Drive", mock.Anything, mock.Anything)
}

func TestExecuteCommandAmbiguous(t *testing.T) {
	e, _ := newTestEngine(t)

	assert.ErrorIs(t, e.executeCommand(context.Background(), "on light fan"), ErrAmbiguous)
	assert.ErrorIs(t, e.executeCommand(context.Background(), "on off light"), ErrAmbiguous)
	assert.ErrorIs(t, e.executeCommand(context.Background(), "light"), ErrMissingKeyword)
	assert.ErrorIs(t, e.executeLocalCommand(context.Background(), "go stop"), ErrAmbiguous)
	assert.ErrorIs(t, e.executeLocalCommand(context.Background(), "go left right"), ErrAmbiguous)
}

func TestResetClearsOnlyItsChannel(t *testing.T) {
	e, act := newTestEngine(t)
	act.On("SetPin", mock.Anything, mock.Anything).Return(nil)
	act.On("Drive", mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	require.NoError(t, e.ProcessCommand(ctx, "on light"))
	require.NoError(t, e.ProcessLocalCommand(ctx, "go left"))

	e.ResetCloudCmd()
	assert.Equal(t, "", e.GetCloudCmd())
	assert.Equal(t, "go left", e.GetLocalCmd())

	require.NoError(t, e.ProcessCommand(ctx, "off light"))
	e.ResetLocalCmd()
	assert.Equal(t, "", e.GetLocalCmd())
	assert.Equal(t, "off light", e.GetCloudCmd())

	// resetting an empty accumulator is harmless
	e.ResetLocalCmd()
	assert.Equal(t, "", e.GetLocalCmd())
}

func TestChannelIsolation(t *testing.T) {
	e, act := newTestEngine(t)
	act.On("SetPin", mock.Anything, mock.Anything).Return(nil)
	act.On("Drive", mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	require.NoError(t, e.ProcessCommand(ctx, "on fan"))
	assert.Equal(t, "", e.GetLocalCmd())

	require.NoError(t, e.ProcessLocalCommand(ctx, "stop"))
	assert.Equal(t, "on fan", e.GetCloudCmd())
}

func TestConcurrentProcessing(t *testing.T) {
	e, act := newTestEngine(t)
	act.On("SetPin", mock.Anything, mock.Anything).Return(nil)
	act.On("Drive", mock.Anything, mock.Anything).Return(nil)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, e.ProcessCommand(ctx, "on light"))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, e.ProcessLocalCommand(ctx, "stop"))
		}()
	}
	wg.Wait()

	assert.Len(t, SplitSubCommands(e.GetCloudCmd()), n)
	assert.Len(t, SplitSubCommands(e.GetLocalCmd()), n)
}

func TestSplitSubCommands(t *testing.T) {
	assert.Equal(t, []string{"on light", "off fan"}, SplitSubCommands(" on light , off fan ,"))
	assert.Empty(t, SplitSubCommands(""))
	assert.Empty(t, SplitSubCommands(",,"))
}

func TestStatusAndResetDevice(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Status(context.Background())
	assert.ErrorIs(t, err, ErrNotSupported)
	assert.ErrorIs(t, e.ResetDevice(context.Background()), ErrNotSupported)

	_, err = e.Motion(context.Background())
	assert.ErrorIs(t, err, ErrNotSupported)
	_, err = e.DeviceLevel(context.Background(), "light")
	assert.ErrorIs(t, err, ErrNotSupported)
	_, err = e.DeviceLevel(context.Background(), "toaster")
	assert.ErrorIs(t, err, ErrUnknownDevice)
}

func TestEngineWithDeviceState(t *testing.T) {
	cfg := config.Default()
	tbl, err := tables.New(cfg.Tables)
	require.NoError(t, err)
	ds := state.NewDeviceState(cfg, tbl)
	defer ds.Close()

	e := New(tbl, ds)
	ctx := context.Background()

	require.NoError(t, e.ProcessCommand(ctx, "turn on the pump and the heater"))
	require.NoError(t, e.ProcessLocalCommand(ctx, "move backward"))

	status, err := e.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "HIGH", status.Pins["D3"])
	assert.Equal(t, "HIGH", status.Pins["D4"])
	assert.Equal(t, "LOW", status.Pins["D1"])
	assert.Equal(t, state.Motion{State: "RUN", Direction: "B"}, status.Motion)

	level, err := e.DeviceLevel(ctx, "Pump")
	require.NoError(t, err)
	assert.Equal(t, "HIGH", level)
	motion, err := e.Motion(ctx)
	require.NoError(t, err)
	assert.Equal(t, state.Motion{State: "RUN", Direction: "B"}, motion)

	require.NoError(t, e.ResetDevice(ctx))
	status, err = e.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, "LOW", status.Pins["D3"])
	assert.Equal(t, "on pump,on heater", e.GetCloudCmd(), "device reset keeps accumulators")
}
