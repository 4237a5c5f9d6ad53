package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/roach88/seed/internal/ir"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Session SessionOptions
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <models>...",
		Short: "Start an interactive console over the models",
		Long: `Compile the models and open a console for calling actions and
inspecting state. Type 'help' in the console for its commands.

With --db every delivered action is journaled, state from an earlier run
is restored on start, and a checkpoint is written on exit.

Example:
  seed run models/ --db ./seed.db --base-url http://localhost:8080`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Session.Models = args
			return runConsole(opts, cmd)
		},
	}

	addSessionFlags(cmd, &opts.Session)

	return cmd
}

func runConsole(opts *RunOptions, cmd *cobra.Command) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opts.Session.Timeout = opts.Timeout
	session, err := OpenSession(ctx, opts.Session, slog.Default())
	if err != nil {
		return err
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			slog.Error("session close failed", "error", cerr)
		}
	}()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "seed> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start console", err)
	}
	defer rl.Close()

	console := NewConsole(session, rl.Stdout())
	defer console.Close()
	if session.Resumed > 0 {
		fmt.Fprintf(rl.Stdout(), "Restored %d action(s) from %s\n", session.Resumed, opts.Session.Database)
	}
	console.printHelp()

	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(rl.Stdout(), "Exiting...")
			return nil
		}
		if console.Exec(line) {
			return nil
		}
	}
}

// Console executes console command lines against a session.
type Console struct {
	session *Session
	out     io.Writer

	mu       sync.Mutex
	watching bool
	stop     func()
}

// NewConsole creates a console writing to out.
func NewConsole(session *Session, out io.Writer) *Console {
	c := &Console{session: session, out: out}
	c.stop = session.Engine.Subscribe(c.echo)
	return c
}

// Close detaches the console from the engine.
func (c *Console) Close() {
	c.stop()
}

// Exec runs one command line and reports whether the console should exit.
func (c *Console) Exec(line string) (quit bool) {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}

	cmd, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(cmd) {
	case "help", "?":
		c.printHelp()
	case "call", "c":
		c.cmdCall(rest)
	case "dispatch", "d":
		c.cmdDispatch(rest)
	case "state", "s":
		c.cmdState(rest)
	case "models", "m":
		c.cmdModels()
	case "actions", "a":
		c.cmdActions(rest)
	case "watch", "w":
		c.cmdWatch(rest)
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Exiting...")
		return true
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
Commands:
  call <model.action> [args]     - Call an action; args is JSON (an array spreads)
  dispatch <type|intent> [data]  - Dispatch a raw action or intent
  state [model]                  - Show one model's state, or all of them
  models                         - List models with their revisions
  actions <model>                - List a model's actions
  watch on|off                   - Print every delivered action
  help                           - Show this help
  quit                           - Exit`)
}

func (c *Console) cmdCall(rest string) {
	name, raw, _ := strings.Cut(rest, " ")
	if name == "" {
		fmt.Fprintln(c.out, "Usage: call <model.action> [args]")
		return
	}
	args, err := consoleArgs(strings.TrimSpace(raw))
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	result, err := c.session.Call(name, args...)
	if err != nil {
		fmt.Fprintf(c.out, "✗ %s: %v\n", name, err)
		return
	}
	fmt.Fprintf(c.out, "✓ %s → %s\n", name, formatValue(result))
}

// consoleArgs accepts JSON, or a bare word as a single string argument.
func consoleArgs(raw string) ([]any, error) {
	if raw == "" {
		return nil, nil
	}
	args, err := ParseArgs(raw)
	if err == nil {
		return args, nil
	}
	if !strings.ContainsAny(raw, "[]{}\"") {
		return []any{raw}, nil
	}
	return nil, err
}

func (c *Console) cmdDispatch(rest string) {
	name, raw, _ := strings.Cut(rest, " ")
	if name == "" {
		fmt.Fprintln(c.out, "Usage: dispatch <model/action[/status]|model.action> [data]")
		return
	}

	var data any
	if raw = strings.TrimSpace(raw); raw != "" {
		v, err := ir.DecodeJSON([]byte(raw))
		if err != nil {
			fmt.Fprintf(c.out, "Error: data must be JSON: %v\n", err)
			return
		}
		data = v
	}

	a := ir.Action{Payload: ir.Payload{Data: data}}
	if strings.Contains(name, "/") {
		a.Type = name
	} else {
		a.Intent = name
	}
	if err := c.session.Dispatch(a); err != nil {
		fmt.Fprintf(c.out, "✗ %s: %v\n", name, err)
		return
	}
	fmt.Fprintf(c.out, "✓ dispatched %s\n", name)
}

func (c *Console) cmdState(model string) {
	if model == "" {
		fmt.Fprintln(c.out, formatValue(c.session.Engine.States()))
		return
	}
	state, ok := c.session.Engine.State(model)
	if !ok {
		fmt.Fprintf(c.out, "Unknown model: %s\n", model)
		return
	}
	fmt.Fprintln(c.out, formatValue(state))
}

func (c *Console) cmdModels() {
	for _, name := range c.session.Engine.Models() {
		fmt.Fprintf(c.out, "  %-20s revision %d\n", name, c.session.Engine.Revision(name))
	}
}

func (c *Console) cmdActions(model string) {
	m, ok := c.session.Engine.GetModel(model)
	if !ok {
		fmt.Fprintf(c.out, "Unknown model: %s\n", model)
		return
	}
	for _, name := range m.ActionNames() {
		fmt.Fprintf(c.out, "  %s.%s\n", model, name)
	}
}

func (c *Console) cmdWatch(arg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch arg {
	case "on":
		c.watching = true
	case "off":
		c.watching = false
	default:
		fmt.Fprintln(c.out, "Usage: watch on|off")
		return
	}
	fmt.Fprintf(c.out, "watch %s\n", arg)
}

func (c *Console) echo(a ir.Action) {
	c.mu.Lock()
	watching := c.watching
	c.mu.Unlock()
	if !watching {
		return
	}
	name := a.Type
	if a.IsIntent() {
		name = "intent " + a.Intent
	}
	line := fmt.Sprintf("  [%d] %s", a.Seq, name)
	if a.Payload.Data != nil {
		line += " " + formatValue(a.Payload.Data)
	}
	if a.Error {
		line += fmt.Sprintf(" error=%q", a.Payload.Message)
	}
	fmt.Fprintln(c.out, line)
}
