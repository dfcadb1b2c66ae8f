package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
)

// channel is the accumulator and dispatch path shared by the cloud and local
// sides of the engine.
type channel struct {
	name      Channel
	normalize func(string) string
	execute   func(context.Context, string) error

	mu  sync.Mutex // guards acc
	acc string

	// serialises dispatch so sub-commands of one channel never interleave
	dispatchMu sync.Mutex
}

func newChannel(name Channel, normalize func(string) string, execute func(context.Context, string) error) *channel {
	return &channel{
		name:      name,
		normalize: normalize,
		execute:   execute,
	}
}

func (c *channel) process(ctx context.Context, command string) error {
	normalized := c.normalize(command)
	if normalized == "" {
		return fmt.Errorf("%s command %q: %w", c.name, command, ErrEmptyCommand)
	}

	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	c.append(normalized)

	subCommands := SplitSubCommands(normalized)
	var errs []error
	for _, sub := range subCommands {
		if err := c.execute(ctx, sub); err != nil {
			errs = append(errs, &SubCommandError{Channel: c.name, SubCommand: sub, Err: err})
		}
	}

	log.Printf("Processed %s command: normalized=%q sub_commands=%d failed=%d", c.name, normalized, len(subCommands), len(errs))
	return errors.Join(errs...)
}

func (c *channel) append(normalized string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.acc == "" {
		c.acc = normalized
		return
	}
	c.acc += "," + normalized
}

func (c *channel) get() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acc
}

func (c *channel) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acc = ""
}

// SplitSubCommands splits a comma-delimited command into trimmed, non-empty sub-commands
func SplitSubCommands(command string) []string {
	parts := strings.Split(command, ",")
	subs := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			subs = append(subs, p)
		}
	}
	return subs
}
