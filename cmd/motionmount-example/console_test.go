package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motionmount/motionmount-go/internal/simulator"
	"github.com/motionmount/motionmount-go/pkg/motionmount"
)

func testConsole(t *testing.T) (*Console, *bytes.Buffer, *simulator.Device) {
	t.Helper()
	d, err := simulator.Start(simulator.Config{Name: "Den", Firmware: "3.0.2"})
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })

	s := motionmount.NewSession(d.Host(), d.Port(), motionmount.WithConnectTimeout(2*time.Second))
	require.NoError(t, s.Connect(context.Background()))
	t.Cleanup(s.Disconnect)

	var out bytes.Buffer
	return &Console{out: &out, session: s}, &out, d
}

func TestConsoleCommands(t *testing.T) {
	c, out, d := testConsole(t)
	ctx := context.Background()

	assert.False(t, c.Execute(ctx, "position 40 -30"))
	assert.Contains(t, out.String(), "OK")
	ext, turn := d.Position()
	assert.Equal(t, 40, ext)
	assert.Equal(t, -30, turn)

	out.Reset()
	c.Execute(ctx, "name")
	assert.Contains(t, out.String(), `Name: "Den"`)

	out.Reset()
	c.Execute(ctx, "name Living Room")
	assert.Equal(t, "Living Room", d.Name())

	out.Reset()
	c.Execute(ctx, "fw")
	assert.Contains(t, out.String(), "Firmware: 3.0.2")

	out.Reset()
	c.Execute(ctx, "status")
	assert.Contains(t, out.String(), "State:         READY")
	assert.Contains(t, out.String(), "Extension:     40")

	out.Reset()
	c.Execute(ctx, "preset 2")
	assert.Contains(t, out.String(), "OK")
	preset, ok := c.session.Preset()
	require.True(t, ok)
	assert.Equal(t, 2, preset)
}

func TestConsoleInvalidInput(t *testing.T) {
	c, out, _ := testConsole(t)
	ctx := context.Background()

	tests := []struct {
		line string
		want string
	}{
		{"position 10", "Usage: position <extension> <turn>"},
		{"turn left", `Invalid number "left"`},
		{"extension 101", "Error: invalid argument"},
		{"preset 42", "Error: invalid argument"},
		{"dance", "Unknown command: dance"},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			out.Reset()
			assert.False(t, c.Execute(ctx, tt.line))
			assert.Contains(t, out.String(), tt.want)
		})
	}
}

func TestConsoleQuit(t *testing.T) {
	c, _, _ := testConsole(t)

	assert.False(t, c.Execute(context.Background(), "   "))
	assert.True(t, c.Execute(context.Background(), "quit"))
}
