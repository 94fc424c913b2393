package simulator

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/motionmount/motionmount-go/pkg/auth"
	"github.com/motionmount/motionmount-go/pkg/wire"
)

// WriteReply selects how the device confirms writes.
type WriteReply uint8

const (
	// ReplyEcho echoes the accepted value ("key = value").
	ReplyEcho WriteReply = iota

	// ReplyStatus answers with "#202".
	ReplyStatus
)

// Config configures a simulated mount.
type Config struct {
	// Name is the initial device name (default: "MotionMount").
	Name string

	// Firmware is the reported firmware version (default: "1.0.0").
	Firmware string

	// PresetCount is the number of presets, wall included (default: 10).
	PresetCount int

	// Secret enables authentication when non-empty.
	Secret []byte

	// WriteReply selects how writes are confirmed.
	WriteReply WriteReply

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// Device is a simulated MotionMount.
type Device struct {
	config Config
	logger *slog.Logger

	mu        sync.Mutex
	ln        net.Listener
	extension int
	turn      int
	preset    int
	name      string
	presets   map[int][2]int
	silent    map[string]bool
	overrides map[string]wire.Status
	scripted  map[string][]string
	conns     map[*clientConn]struct{}
	received  []string
	notify    chan struct{}

	wg sync.WaitGroup
}

type clientConn struct {
	conn          net.Conn
	writeMu       sync.Mutex
	nonce         []byte
	authenticated bool
}

func (c *clientConn) writeLine(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.conn.Write([]byte(line + "\n"))
	return err
}

// New creates a device that is not yet listening.
func New(config Config) *Device {
	if config.Name == "" {
		config.Name = "MotionMount"
	}
	if config.Firmware == "" {
		config.Firmware = "1.0.0"
	}
	if config.PresetCount <= 0 {
		config.PresetCount = wire.DefaultPresetCount
	}

	presets := make(map[int][2]int, config.PresetCount)
	presets[0] = [2]int{0, 0}
	for i := 1; i < config.PresetCount; i++ {
		turn := (i*20)%200 - 100
		presets[i] = [2]int{i * 100 / config.PresetCount, turn}
	}

	return &Device{
		config:    config,
		logger:    config.Logger,
		preset:    0,
		name:      config.Name,
		presets:   presets,
		silent:    make(map[string]bool),
		overrides: make(map[string]wire.Status),
		scripted:  make(map[string][]string),
		conns:     make(map[*clientConn]struct{}),
		notify:    make(chan struct{}),
	}
}

// Start creates a device and starts listening on a loopback port.
func Start(config Config) (*Device, error) {
	d := New(config)
	if err := d.Listen("127.0.0.1:0"); err != nil {
		return nil, err
	}
	return d, nil
}

// Listen starts accepting connections on address.
func (d *Device) Listen(address string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ln != nil {
		return ErrAlreadyStarted
	}
	ln, err := net.Listen("tcp", address)
	if err != nil {
		return err
	}
	d.ln = ln

	d.wg.Add(1)
	go d.acceptLoop(ln)
	return nil
}

// Addr returns the listen address (host:port).
func (d *Device) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ln == nil {
		return ""
	}
	return d.ln.Addr().String()
}

// Host returns the listen host.
func (d *Device) Host() string {
	host, _, _ := net.SplitHostPort(d.Addr())
	return host
}

// Port returns the listen port.
func (d *Device) Port() int {
	_, port, _ := net.SplitHostPort(d.Addr())
	n, _ := strconv.Atoi(port)
	return n
}

// Close stops listening and drops every connection.
func (d *Device) Close() error {
	d.mu.Lock()
	ln := d.ln
	d.ln = nil
	d.mu.Unlock()

	if ln == nil {
		return ErrNotStarted
	}
	err := ln.Close()
	d.ResetConnections()
	d.wg.Wait()
	return err
}

// ResetConnections closes every client connection, as a mount reboot or
// network failure would.
func (d *Device) ResetConnections() {
	d.mu.Lock()
	conns := make([]*clientConn, 0, len(d.conns))
	for c := range d.conns {
		conns = append(conns, c)
	}
	d.mu.Unlock()

	for _, c := range conns {
		if tcp, ok := c.conn.(*net.TCPConn); ok {
			_ = tcp.SetLinger(0)
		}
		_ = c.conn.Close()
	}
}

// ConnectionCount returns the number of connected clients.
func (d *Device) ConnectionCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

// Silence makes the device ignore requests for key.
func (d *Device) Silence(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.silent[key] = true
}

// Unsilence reverts Silence.
func (d *Device) Unsilence(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.silent, key)
}

// RespondWith makes the device answer every request for key with status.
func (d *Device) RespondWith(key string, status wire.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.overrides[key] = status
}

// ReplyLines makes the device answer the next request for key with the
// given raw lines, in order, instead of its normal reply.
func (d *Device) ReplyLines(key string, lines ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scripted[key] = lines
}

// Push sends a raw line to every connected client.
func (d *Device) Push(line string) error {
	d.mu.Lock()
	conns := make([]*clientConn, 0, len(d.conns))
	for c := range d.conns {
		conns = append(conns, c)
	}
	d.mu.Unlock()

	if len(conns) == 0 {
		return ErrNotStarted
	}
	for _, c := range conns {
		if err := c.writeLine(line); err != nil {
			return err
		}
	}
	return nil
}

// SetPosition moves the mount as if by hand and pushes the new position.
func (d *Device) SetPosition(extension, turn int) {
	d.mu.Lock()
	d.extension = extension
	d.turn = turn
	d.preset = -1
	d.mu.Unlock()

	_ = d.Push(fmt.Sprintf("%s = %d", wire.KeyExtension, extension))
	_ = d.Push(fmt.Sprintf("%s = %d", wire.KeyTurn, turn))
}

// Position returns the current extension and turn.
func (d *Device) Position() (extension, turn int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.extension, d.turn
}

// Name returns the current device name.
func (d *Device) Name() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.name
}

// Received returns every line received so far, without terminators.
func (d *Device) Received() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	result := make([]string, len(d.received))
	copy(result, d.received)
	return result
}

// ClearReceived forgets the received lines.
func (d *Device) ClearReceived() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.received = d.received[:0]
}

// WaitReceived blocks until a line equal to line has been received.
func (d *Device) WaitReceived(ctx context.Context, line string) error {
	for {
		d.mu.Lock()
		for _, l := range d.received {
			if l == line {
				d.mu.Unlock()
				return nil
			}
		}
		notify := d.notify
		d.mu.Unlock()

		select {
		case <-notify:
		case <-ctx.Done():
			return fmt.Errorf("waiting for %q: %w", line, ctx.Err())
		}
	}
}

func (d *Device) acceptLoop(ln net.Listener) {
	defer d.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		c := &clientConn{conn: conn, authenticated: len(d.config.Secret) == 0}

		d.mu.Lock()
		d.conns[c] = struct{}{}
		d.mu.Unlock()

		d.wg.Add(1)
		go d.serve(c)
	}
}

func (d *Device) serve(c *clientConn) {
	defer d.wg.Done()
	defer func() {
		d.mu.Lock()
		delete(d.conns, c)
		d.mu.Unlock()
		c.conn.Close()
	}()

	d.debugLog("client connected", "remote", c.conn.RemoteAddr().String())
	r := bufio.NewReader(c.conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			d.debugLog("client disconnected", "error", err)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		d.record(line)

		for _, reply := range d.handle(c, line) {
			if err := c.writeLine(reply); err != nil {
				return
			}
		}
	}
}

func (d *Device) record(line string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.received = append(d.received, line)
	close(d.notify)
	d.notify = make(chan struct{})
}

func status(s wire.Status) string {
	return "#" + strconv.Itoa(int(s))
}

func valueLine(key string, value any) string {
	switch v := value.(type) {
	case string:
		return fmt.Sprintf("%s = %q", key, v)
	default:
		return fmt.Sprintf("%s = %v", key, v)
	}
}

// handle executes one request and returns the reply lines.
func (d *Device) handle(c *clientConn, line string) []string {
	key, value, isWrite := strings.Cut(line, "=")
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.silent[key] {
		return nil
	}
	if lines, ok := d.scripted[key]; ok {
		delete(d.scripted, key)
		return lines
	}
	if s, ok := d.overrides[key]; ok {
		return []string{status(s)}
	}

	switch key {
	case wire.KeyAuthChallenge:
		if isWrite {
			return []string{status(wire.StatusMethodNotAllowed)}
		}
		if len(d.config.Secret) == 0 {
			return []string{valueLine(key, "")}
		}
		c.nonce = make([]byte, 16)
		_, _ = rand.Read(c.nonce)
		c.authenticated = false
		return []string{valueLine(key, hex.EncodeToString(c.nonce))}

	case wire.KeyAuthResponse:
		if !isWrite || c.nonce == nil {
			return []string{status(wire.StatusBadRequest)}
		}
		resp, err := hex.DecodeString(strings.Trim(value, `"`))
		if err != nil {
			return []string{status(wire.StatusBadRequest)}
		}
		c.authenticated = auth.Verify(d.config.Secret, c.nonce, resp)
		c.nonce = nil
		if c.authenticated {
			return []string{wire.KeyAuthResult + " = 1"}
		}
		return []string{wire.KeyAuthResult + " = 0"}
	}

	if !c.authenticated {
		return []string{status(wire.StatusUnauthorised)}
	}
	if isWrite {
		return d.write(key, value)
	}
	return d.query(key)
}

func (d *Device) query(key string) []string {
	switch key {
	case wire.KeyName:
		return []string{valueLine(key, d.name)}
	case wire.KeyFirmware:
		return []string{valueLine(key, d.config.Firmware)}
	case wire.KeyExtension, wire.KeyExtensionTarget:
		return []string{valueLine(key, d.extension)}
	case wire.KeyTurn, wire.KeyTurnTarget:
		return []string{valueLine(key, d.turn)}
	case wire.KeyPresetCount:
		return []string{valueLine(key, d.config.PresetCount)}
	case wire.KeyPresetIndex:
		return []string{valueLine(key, d.preset)}
	case wire.KeyPresetPosition:
		return []string{key + " = [" + hex.EncodeToString(wire.EncodePosition(d.extension, d.turn)) + "]"}
	}
	return []string{status(wire.StatusNotFound)}
}

func (d *Device) write(key, value string) []string {
	f := wire.ParseLine(key + " = " + value)
	bad := []string{status(wire.StatusBadRequest)}

	switch key {
	case wire.KeyName:
		name := f.Text()
		if wire.CheckName(name) != nil {
			return bad
		}
		d.name = name
		return d.confirm(key, value)

	case wire.KeyPresetIndex:
		n, err := f.Int()
		if err != nil || n < 0 || n >= d.config.PresetCount {
			return bad
		}
		pos := d.presets[n]
		d.preset = n
		return append(d.confirm(key, value), d.moveTo(pos[0], pos[1])...)

	case wire.KeyPresetPosition:
		b, err := f.Bytes()
		if err != nil {
			return bad
		}
		ext, turn, err := wire.DecodePosition(b)
		if err != nil || ext > wire.MaxExtension || turn < wire.MinTurn || turn > wire.MaxTurn {
			return bad
		}
		d.preset = -1
		return append(d.confirm(key, value), d.moveTo(ext, turn)...)

	case wire.KeyExtensionTarget:
		n, err := f.Int()
		if err != nil || n < wire.MinExtension || n > wire.MaxExtension {
			return bad
		}
		d.preset = -1
		return append(d.confirm(key, value), d.moveTo(n, d.turn)...)

	case wire.KeyTurnTarget:
		n, err := f.Int()
		if err != nil || n < wire.MinTurn || n > wire.MaxTurn {
			return bad
		}
		d.preset = -1
		return append(d.confirm(key, value), d.moveTo(d.extension, n)...)

	case wire.KeyExtension, wire.KeyTurn, wire.KeyPresetCount, wire.KeyFirmware:
		return []string{status(wire.StatusMethodNotAllowed)}
	}
	return []string{status(wire.StatusNotFound)}
}

func (d *Device) confirm(key, value string) []string {
	if d.config.WriteReply == ReplyStatus {
		return []string{status(wire.StatusAccepted)}
	}
	return []string{key + " = " + value}
}

// moveTo sets the position and returns the pushes that report it.
// The mount moves instantly.
func (d *Device) moveTo(extension, turn int) []string {
	var pushes []string
	if extension != d.extension {
		d.extension = extension
		pushes = append(pushes, valueLine(wire.KeyExtension, extension))
	}
	if turn != d.turn {
		d.turn = turn
		pushes = append(pushes, valueLine(wire.KeyTurn, turn))
	}
	return pushes
}

func (d *Device) debugLog(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Debug(msg, args...)
	}
}
