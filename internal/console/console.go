// Package console is an interactive readline front end for the local channel.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/chzyer/readline"
	"github.com/coreengine/internal/engine"
	"github.com/coreengine/internal/ui"
)

// Prompt is shown before every input line
const Prompt = "local> "

// Console feeds typed lines to the engine's local channel
type Console struct {
	engine *engine.CoreEngine
	rl     *readline.Instance
	out    io.Writer
}

// New creates a console reading from the terminal.
func New(eng *engine.CoreEngine) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          Prompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Console{
		engine: eng,
		rl:     rl,
		out:    rl.Stdout(),
	}, nil
}

// newWithWriter creates a console without a terminal, for driving Execute directly.
func newWithWriter(eng *engine.CoreEngine, out io.Writer) *Console {
	return &Console{engine: eng, out: out}
}

// Stdout returns a writer that coordinates with the readline prompt.
// Use it for log output so log lines don't garble the input line.
func (c *Console) Stdout() io.Writer {
	return c.out
}

// Run reads lines until EOF, exit/quit or ctx is done, then calls cancel.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()
	defer cancel()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			return
		}

		if !c.Execute(ctx, line) {
			fmt.Fprintln(c.out, "Exiting...")
			return
		}
	}
}

// Execute handles one input line. It returns false when the console should exit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return true
	}

	switch strings.ToLower(input) {
	case "help", "?":
		c.printHelp()
	case "show":
		c.cmdShow()
	case "reset":
		c.engine.ResetLocalCmd()
		fmt.Fprintln(c.out, ui.SuccessColor("local command cleared"))
	case "status":
		c.cmdStatus(ctx)
	case "exit", "quit", "q":
		return false
	default:
		c.cmdProcess(ctx, input)
	}
	return true
}

func (c *Console) cmdProcess(ctx context.Context, input string) {
	normalized := c.engine.AddCommasToLocalCommand(input)
	if err := c.engine.ProcessLocalCommand(ctx, input); err != nil {
		if errors.Is(err, engine.ErrEmptyCommand) {
			fmt.Fprintf(c.out, "%s no command or direction recognised, type help for the word list\n", ui.WarningColor("warning:"))
			return
		}
		fmt.Fprintf(c.out, "%s %v\n", ui.ErrorColor("error:"), err)
		return
	}
	fmt.Fprintf(c.out, "%s %s\n", ui.SuccessColor("ok:"), ui.LocalColor(normalized))
}

func (c *Console) cmdShow() {
	cmd := c.engine.GetLocalCmd()
	if cmd == "" {
		fmt.Fprintln(c.out, ui.DetailColor("(empty)"))
		return
	}
	fmt.Fprintln(c.out, ui.LocalColor(cmd))
}

func (c *Console) cmdStatus(ctx context.Context) {
	status, err := c.engine.Status(ctx)
	if err != nil {
		fmt.Fprintf(c.out, "%s %v\n", ui.ErrorColor("error:"), err)
		return
	}

	fmt.Fprintf(c.out, "%s %s\n", ui.HeaderColor("mode:"), status.Mode)
	motion := status.Motion.State
	if status.Motion.Direction != "" {
		motion += " " + status.Motion.Direction
	}
	fmt.Fprintf(c.out, "%s %s\n", ui.HeaderColor("motion:"), motion)

	pins := make([]string, 0, len(status.Pins))
	for pin := range status.Pins {
		pins = append(pins, pin)
	}
	sort.Strings(pins)
	for _, pin := range pins {
		fmt.Fprintf(c.out, "  %s = %s\n", pin, status.Pins[pin])
	}
}

func (c *Console) printHelp() {
	tbl := c.engine.Tables()
	var cmds, dirs []string
	for _, e := range tbl.Cmd {
		cmds = append(cmds, e.CmdName)
	}
	for _, e := range tbl.Dir {
		dirs = append(dirs, e.DirName)
	}

	fmt.Fprintln(c.out, ui.HeaderColor("Local command console"))
	fmt.Fprintln(c.out, "  <text>   normalise, record and dispatch a local command")
	fmt.Fprintln(c.out, "  show     print the accumulated local command")
	fmt.Fprintln(c.out, "  reset    clear the accumulated local command")
	fmt.Fprintln(c.out, "  status   print pin levels and motion state")
	fmt.Fprintln(c.out, "  help     show this help")
	fmt.Fprintln(c.out, "  exit     leave the console")
	fmt.Fprintf(c.out, "%s %s\n", ui.InfoColor("commands:"), strings.Join(cmds, ", "))
	fmt.Fprintf(c.out, "%s %s\n", ui.InfoColor("directions:"), strings.Join(dirs, ", "))
}
