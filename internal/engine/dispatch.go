package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreengine/internal/tables"
)

var (
	ErrEmptyCommand   = errors.New("command has no recognised words")
	ErrMissingDevice  = errors.New("sub-command names no device")
	ErrMissingKeyword = errors.New("sub-command names no keyword")
	ErrMissingCommand = errors.New("sub-command names no command")
	ErrAmbiguous      = errors.New("sub-command is ambiguous")
)

// SubCommandError reports a sub-command that could not be dispatched
type SubCommandError struct {
	Channel    Channel
	SubCommand string
	Err        error
}

func (e *SubCommandError) Error() string {
	return fmt.Sprintf("%s sub-command %q: %v", e.Channel, e.SubCommand, e.Err)
}

func (e *SubCommandError) Unwrap() error {
	return e.Err
}

// executeCommand resolves one cloud sub-command to a pin write
func (e *CoreEngine) executeCommand(ctx context.Context, subCommand string) error {
	var keys, devs []tables.Match
	for _, m := range e.tables.Scan(tables.Tokenize(subCommand), tables.KindKeyword, tables.KindDevice) {
		if m.Kind == tables.KindKeyword {
			keys = append(keys, m)
		} else {
			devs = append(devs, m)
		}
	}

	switch {
	case len(devs) == 0:
		return ErrMissingDevice
	case len(keys) == 0:
		return ErrMissingKeyword
	case len(devs) > 1 || len(keys) > 1:
		return ErrAmbiguous
	}

	dev, key := devs[0], keys[0]
	if err := e.actuator.SetPin(ctx, dev.Value, key.Value); err != nil {
		return fmt.Errorf("set %s (%s) to %s: %w", dev.Name, dev.Value, key.Value, err)
	}
	return nil
}

// executeLocalCommand resolves one local sub-command to a motion change
func (e *CoreEngine) executeLocalCommand(ctx context.Context, subCommand string) error {
	var cmds, dirs []tables.Match
	for _, m := range e.tables.Scan(tables.Tokenize(subCommand), tables.KindCommand, tables.KindDirection) {
		if m.Kind == tables.KindCommand {
			cmds = append(cmds, m)
		} else {
			dirs = append(dirs, m)
		}
	}

	switch {
	case len(cmds) == 0:
		return ErrMissingCommand
	case len(cmds) > 1 || len(dirs) > 1:
		return ErrAmbiguous
	}

	cmd := cmds[0]
	var direction string
	if len(dirs) == 1 {
		direction = dirs[0].Value
	}

	if err := e.actuator.Drive(ctx, cmd.Value, direction); err != nil {
		return fmt.Errorf("drive %s %s: %w", cmd.Value, direction, err)
	}
	return nil
}
