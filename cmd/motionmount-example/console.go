package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/motionmount/motionmount-go/pkg/motionmount"
)

// Console is the interactive command interface.
type Console struct {
	rl      *readline.Instance
	out     io.Writer
	session *motionmount.Session
}

// NewConsole creates a console reading from the terminal.
func NewConsole() (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "motionmount> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{rl: rl, out: rl.Stdout()}, nil
}

// Stdout returns a writer that does not interfere with the prompt.
func (c *Console) Stdout() io.Writer {
	return c.out
}

// Close releases the terminal.
func (c *Console) Close() error {
	if c.rl == nil {
		return nil
	}
	return c.rl.Close()
}

// Run reads commands until quit, EOF or ctx is done.
func (c *Console) Run(ctx context.Context, session *motionmount.Session) error {
	c.session = session
	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			return nil
		}

		if quit := c.Execute(ctx, line); quit {
			return nil
		}
	}
}

// Execute runs one command line and reports whether the console should
// exit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp()

	case "status", "s":
		c.cmdStatus()

	case "preset", "p":
		c.cmdPreset(ctx, args)

	case "position", "pos":
		c.cmdPosition(ctx, args)

	case "extension", "ext":
		c.cmdExtension(ctx, args)

	case "turn":
		c.cmdTurn(ctx, args)

	case "name":
		c.cmdName(ctx, args)

	case "firmware", "fw":
		c.cmdFirmware(ctx)

	case "update", "u":
		c.cmdUpdate(ctx)

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
MotionMount Commands:
  Movement:
    preset <index>           - Go to a stored preset (0 is the wall position)
    position <ext> <turn>    - Go to extension 0..100 and turn -100..100
    extension <ext>          - Set the extension only
    turn <turn>              - Set the turn only

  Device:
    name [new name]          - Show or change the device name
    firmware                 - Show the firmware version
    update                   - Refresh the position
    status                   - Show connection and position

  General:
    help                     - Show this help
    quit                     - Exit`)
}

func (c *Console) cmdStatus() {
	s := c.session
	snap := s.Snapshot()
	fmt.Fprintf(c.out, "Address:       %s\n", s.Address())
	fmt.Fprintf(c.out, "State:         %s\n", s.State())
	fmt.Fprintf(c.out, "Authenticated: %t (required: %t)\n", snap.Authenticated, snap.AuthRequired)
	fmt.Fprintf(c.out, "Name:          %s\n", snap.Name)
	fmt.Fprintf(c.out, "Extension:     %s\n", formatOptional(s.Extension()))
	fmt.Fprintf(c.out, "Turn:          %s\n", formatOptional(s.Turn()))
	fmt.Fprintf(c.out, "Preset:        %s\n", formatOptional(s.Preset()))
	fmt.Fprintf(c.out, "Presets:       %d\n", snap.PresetCount)
}

func (c *Console) cmdPreset(ctx context.Context, args []string) {
	ints, ok := c.parseInts(args, "preset <index>", 1)
	if !ok {
		return
	}
	c.report(c.session.GoToPreset(ctx, ints[0]))
}

func (c *Console) cmdPosition(ctx context.Context, args []string) {
	ints, ok := c.parseInts(args, "position <extension> <turn>", 2)
	if !ok {
		return
	}
	c.report(c.session.GoToPosition(ctx, ints[0], ints[1]))
}

func (c *Console) cmdExtension(ctx context.Context, args []string) {
	ints, ok := c.parseInts(args, "extension <0..100>", 1)
	if !ok {
		return
	}
	c.report(c.session.SetExtension(ctx, ints[0]))
}

func (c *Console) cmdTurn(ctx context.Context, args []string) {
	ints, ok := c.parseInts(args, "turn <-100..100>", 1)
	if !ok {
		return
	}
	c.report(c.session.SetTurn(ctx, ints[0]))
}

func (c *Console) cmdName(ctx context.Context, args []string) {
	if len(args) > 0 {
		c.report(c.session.SetName(ctx, strings.Join(args, " ")))
		return
	}
	name, err := c.session.GetName(ctx)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Name: %q\n", name)
}

func (c *Console) cmdFirmware(ctx context.Context) {
	fw, err := c.session.Firmware(ctx)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Firmware: %s\n", fw)
}

func (c *Console) cmdUpdate(ctx context.Context) {
	if err := c.session.UpdatePosition(ctx); err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Extension: %s, turn: %s\n", formatOptional(c.session.Extension()), formatOptional(c.session.Turn()))
}

func (c *Console) parseInts(args []string, usage string, n int) ([]int, bool) {
	if len(args) != n {
		fmt.Fprintf(c.out, "Usage: %s\n", usage)
		return nil, false
	}
	ints := make([]int, n)
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil {
			fmt.Fprintf(c.out, "Invalid number %q\n", a)
			return nil, false
		}
		ints[i] = v
	}
	return ints, true
}

func (c *Console) report(err error) {
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintln(c.out, "OK")
}

func formatOptional(v int, ok bool) string {
	if !ok {
		return "unknown"
	}
	return strconv.Itoa(v)
}
