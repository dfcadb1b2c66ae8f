package state

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/coreengine/internal/config"
	"github.com/coreengine/internal/tables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestDeviceState(t *testing.T, mutate ...func(*config.Config)) *DeviceState {
	t.Helper()
	cfg := config.Default()
	for _, m := range mutate {
		m(cfg)
	}
	tbl, err := tables.New(cfg.Tables)
	require.NoError(t, err)

	ds := NewDeviceState(cfg, tbl)
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

func TestNewDeviceState(t *testing.T) {
	ds := createTestDeviceState(t)

	assert.Equal(t, "normal", ds.Mode())
	assert.Len(t, ds.pins, 5)
	for pin, level := range ds.pins {
		assert.Equal(t, "LOW", level, "pin %s should start at the initial level", pin)
	}
	assert.Equal(t, Motion{State: MotionHalt}, ds.motion)
}

func TestExecuteCommandSetPin(t *testing.T) {
	tests := []struct {
		name    string
		params  []string
		wantErr string
	}{
		{"valid high", []string{"D1", "HIGH"}, ""},
		{"valid low", []string{"D2", "LOW"}, ""},
		{"unknown pin", []string{"D42", "HIGH"}, ErrInvalidParams},
		{"unknown level", []string{"D1", "FLOAT"}, ErrInvalidRange},
		{"missing level", []string{"D1"}, ErrInvalidParams},
		{"no params", nil, ErrInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := createTestDeviceState(t)
			resp := ds.ExecuteCommand(context.Background(), "setPin", tt.params)
			assert.Equal(t, tt.wantErr, resp.Error)

			if tt.wantErr == "" {
				level, err := ds.Pin(context.Background(), tt.params[0])
				require.NoError(t, err)
				assert.Equal(t, tt.params[1], level)
			}
		})
	}
}

func TestExecuteCommandGetPin(t *testing.T) {
	ds := createTestDeviceState(t)
	ctx := context.Background()

	resp := ds.ExecuteCommand(ctx, "getPin", []string{"D3"})
	require.Empty(t, resp.Error)
	assert.Equal(t, []string{"LOW"}, resp.Result)

	resp = ds.ExecuteCommand(ctx, "getPin", []string{"nope"})
	assert.Equal(t, ErrInvalidParams, resp.Error)

	resp = ds.ExecuteCommand(ctx, "getPin", nil)
	assert.Equal(t, ErrInvalidParams, resp.Error)
}

func TestExecuteCommandDrive(t *testing.T) {
	ds := createTestDeviceState(t)
	ctx := context.Background()

	require.NoError(t, ds.Drive(ctx, "RUN", "F"))
	assert.Equal(t, Motion{State: "RUN", Direction: "F"}, ds.ExecuteCommand(ctx, "getMotion", nil).Result)

	// a state change without a direction keeps the heading
	require.NoError(t, ds.Drive(ctx, "TURN", ""))
	assert.Equal(t, Motion{State: "TURN", Direction: "F"}, ds.ExecuteCommand(ctx, "getMotion", nil).Result)

	// halting clears the heading even if one is given
	require.NoError(t, ds.Drive(ctx, MotionHalt, "L"))
	motion, err := ds.Motion(ctx)
	require.NoError(t, err)
	assert.Equal(t, Motion{State: MotionHalt}, motion)

	err = ds.Drive(ctx, "FLY", "")
	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, ErrInvalidRange, respErr.Code)

	err = ds.Drive(ctx, "RUN", "Z")
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, ErrInvalidRange, respErr.Code)

	resp := ds.ExecuteCommand(ctx, "drive", nil)
	assert.Equal(t, ErrInvalidParams, resp.Error)
}

func TestSnapshotAndReset(t *testing.T) {
	ds := createTestDeviceState(t)
	ctx := context.Background()

	require.NoError(t, ds.SetPin(ctx, "D1", "HIGH"))
	require.NoError(t, ds.Drive(ctx, "RUN", "B"))

	status, err := ds.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "normal", status.Mode)
	assert.Equal(t, "HIGH", status.Pins["D1"])
	assert.Equal(t, Motion{State: "RUN", Direction: "B"}, status.Motion)
	assert.False(t, status.UpdatedAt.IsZero())

	// the snapshot is a copy
	status.Pins["D1"] = "LOW"
	level, err := ds.Pin(ctx, "D1")
	require.NoError(t, err)
	assert.Equal(t, "HIGH", level)

	require.NoError(t, ds.Reset(ctx))
	status, err = ds.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "LOW", status.Pins["D1"])
	assert.Equal(t, Motion{State: MotionHalt}, status.Motion)
}

func TestOfflineMode(t *testing.T) {
	ds := createTestDeviceState(t, func(c *config.Config) { c.Mode = "offline" })

	err := ds.SetPin(context.Background(), "D1", "HIGH")
	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, ErrUnavailable, respErr.Code)
	assert.Equal(t, "device: UNAVAILABLE", err.Error())
}

func TestInvalidCommand(t *testing.T) {
	ds := createTestDeviceState(t)

	resp := ds.ExecuteCommand(context.Background(), "selfDestruct", nil)
	assert.Equal(t, ErrInternal, resp.Error)
}

func TestExecuteCommandCancelledContext(t *testing.T) {
	ds := createTestDeviceState(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// either the worker answers first or the cancellation wins
	resp := ds.ExecuteCommand(ctx, "getMotion", nil)
	if resp.Error != "" {
		assert.Equal(t, ErrUnavailable, resp.Error)
	}
}

func TestExecuteAfterClose(t *testing.T) {
	cfg := config.Default()
	tbl, err := tables.New(cfg.Tables)
	require.NoError(t, err)
	ds := NewDeviceState(cfg, tbl)

	require.NoError(t, ds.Close())
	require.NoError(t, ds.Close(), "close is idempotent")

	resp := ds.ExecuteCommand(context.Background(), "getMotion", nil)
	assert.Equal(t, ErrUnavailable, resp.Error)
}

func TestConcurrentAccess(t *testing.T) {
	ds := createTestDeviceState(t)
	ctx := context.Background()

	const numGoroutines = 10
	const numCommands = 5

	var wg sync.WaitGroup
	errs := make(chan error, numGoroutines*numCommands)

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			for j := 0; j < numCommands; j++ {
				// Mix of read and write operations
				if j%2 == 0 {
					if _, err := ds.Snapshot(ctx); err != nil {
						errs <- fmt.Errorf("goroutine %d: snapshot failed: %w", id, err)
						return
					}
				} else if err := ds.SetPin(ctx, "D2", "HIGH"); err != nil {
					errs <- fmt.Errorf("goroutine %d: setPin failed: %w", id, err)
					return
				}
			}
		}(i)
	}

	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
