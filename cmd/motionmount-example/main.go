// Command motionmount-example connects to a Vogel's MotionMount and moves it.
//
// Without -interactive it runs a short demo: go to preset 1, print the
// extension and the device name, then move to extension 50, turn -50.
//
// Usage:
//
//	motionmount-example [flags]
//
// Flags:
//
//	-config string          Configuration file path (YAML)
//	-host string            MotionMount host name or IP address
//	-port int               MotionMount control port (default 23)
//	-name string            Find the mount by mDNS instance name
//	-secret string          Secret for mounts that require authentication
//	-log-level string       Log level: debug, info, warn, error (default "info")
//	-protocol-log string    Write protocol events to this file (CBOR)
//	-reconnect              Reconnect with backoff after connection loss
//	-interactive            Start the interactive console instead of the demo
//	-discover               List MotionMounts on the network and exit
//	-simulate               Run against a built-in simulated mount
//
// Examples:
//
//	# Run the demo against a mount
//	motionmount-example -host MMF8A55F.local.
//
//	# Find the mount by name and open the console
//	motionmount-example -name "Living Room" -interactive
//
//	# Try it without hardware
//	motionmount-example -simulate -interactive -log-level debug
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/motionmount/motionmount-go/internal/simulator"
	"github.com/motionmount/motionmount-go/pkg/auth"
	"github.com/motionmount/motionmount-go/pkg/connection"
	"github.com/motionmount/motionmount-go/pkg/discovery"
	"github.com/motionmount/motionmount-go/pkg/log"
	"github.com/motionmount/motionmount-go/pkg/motionmount"
	"github.com/motionmount/motionmount-go/pkg/state"
)

func main() {
	cfg, err := parseArgs(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "motionmount-example:", err)
		os.Exit(2)
	}

	logger := newLogger(cfg.LogLevel, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	browser := discovery.NewMDNSBrowser(discovery.BrowserConfig{Logger: logger})
	defer browser.Stop()

	if err := run(ctx, cfg, browser, logger, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Something bad happened", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string, w io.Writer) *slog.Logger {
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l}))
}

func run(ctx context.Context, cfg Config, browser discovery.Browser, logger *slog.Logger, out io.Writer) error {
	if cfg.Discover {
		return listDevices(ctx, browser, out)
	}

	var console *Console
	if cfg.Interactive {
		var err error
		if console, err = NewConsole(); err != nil {
			return err
		}
		defer console.Close()
		// Keep log lines from tearing the prompt.
		logger = newLogger(cfg.LogLevel, console.Stdout())
	}

	host, port, cleanup, err := resolveTarget(ctx, cfg, browser, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	opts, closeLog, err := sessionOptions(cfg, logger)
	if err != nil {
		return err
	}
	defer closeLog()

	session := motionmount.NewSession(host, port, opts...)
	session.OnChange(func(c state.Change, _ state.DeviceState) {
		logger.Info("Update received", "key", c.Key, "fields", c.Fields.String())
	})

	if cfg.Reconnect {
		startReconnector(ctx, session, logger)
	}

	logger.Info("Connecting", "address", session.Address())
	if err := session.Connect(ctx); err != nil {
		return fmt.Errorf("connect %s: %w", session.Address(), err)
	}
	defer session.Disconnect()

	if console != nil {
		return console.Run(ctx, session)
	}
	return runDemo(ctx, session, out)
}

// resolveTarget returns the host and port to connect to.
func resolveTarget(ctx context.Context, cfg Config, browser discovery.Browser, logger *slog.Logger) (string, int, func(), error) {
	switch {
	case cfg.Simulate:
		sim, err := simulator.Start(simulator.Config{
			Name:   "Simulated MotionMount",
			Secret: []byte(cfg.Secret),
			Logger: logger,
		})
		if err != nil {
			return "", 0, nil, fmt.Errorf("start simulator: %w", err)
		}
		logger.Info("Simulator listening", "address", sim.Addr())
		return sim.Host(), sim.Port(), func() { _ = sim.Close() }, nil

	case cfg.Name != "":
		svc, err := browser.FindByName(ctx, cfg.Name)
		if err != nil {
			return "", 0, nil, err
		}
		logger.Info("Found MotionMount", "name", svc.Instance, "address", svc.Address())
		return svc.DialHost(), svc.Port, func() {}, nil
	}
	return cfg.Host, cfg.Port, func() {}, nil
}

func sessionOptions(cfg Config, logger *slog.Logger) ([]motionmount.Option, func(), error) {
	opts := []motionmount.Option{
		motionmount.WithLogger(logger),
		motionmount.WithMaxPreset(cfg.MaxPreset),
	}
	if cfg.ConnectTimeout > 0 {
		opts = append(opts, motionmount.WithConnectTimeout(cfg.ConnectTimeout))
	}
	if cfg.RequestTimeout > 0 {
		opts = append(opts, motionmount.WithRequestTimeout(cfg.RequestTimeout))
	}
	if cfg.Secret != "" {
		opts = append(opts, motionmount.WithCredentials(auth.NewCredentials(cfg.Secret)))
	}

	if cfg.ProtocolLog == "" {
		return opts, func() {}, nil
	}
	fileLogger, err := log.NewFileLogger(cfg.ProtocolLog)
	if err != nil {
		return nil, nil, fmt.Errorf("open protocol log: %w", err)
	}
	var plog log.Logger = fileLogger
	if strings.EqualFold(cfg.LogLevel, "debug") {
		plog = log.NewMultiLogger(fileLogger, log.NewSlogAdapter(logger))
	}
	opts = append(opts, motionmount.WithProtocolLogger(plog))
	return opts, func() { _ = fileLogger.Close() }, nil
}

func startReconnector(ctx context.Context, session *motionmount.Session, logger *slog.Logger) {
	r := connection.NewReconnector(session, connection.ReconnectorConfig{
		Logger: logger,
		Permanent: func(err error) bool {
			return errors.Is(err, motionmount.ErrAuthenticationFailed)
		},
		OnAttempt: func(attempt int, err error, next time.Duration) {
			logger.Warn("Reconnect failed", "attempt", attempt, "error", err, "retryIn", next)
		},
		OnReconnected: func(attempts int) {
			logger.Info("Reconnected", "attempts", attempts)
		},
	})
	session.OnStateChange(func(old, next motionmount.State) {
		if old == motionmount.StateReady && next == motionmount.StateDisconnected {
			logger.Warn("Connection lost")
			r.NotifyLost()
		}
	})
	go func() {
		if err := r.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Giving up reconnecting", "error", err)
		}
	}()
}

func listDevices(ctx context.Context, browser discovery.Browser, out io.Writer) error {
	fmt.Fprintf(out, "Browsing %s.%s ...\n", discovery.ServiceType, discovery.Domain)
	services, err := browser.FindAll(ctx)
	if err != nil {
		return err
	}
	if len(services) == 0 {
		fmt.Fprintln(out, "No MotionMounts found")
		return nil
	}

	fmt.Fprintf(out, "Found %d MotionMount(s):\n", len(services))
	for i, svc := range services {
		fmt.Fprintf(out, "  %d. %s\n", i+1, svc.Instance)
		fmt.Fprintf(out, "      Server: %s\n", svc.Host)
		fmt.Fprintf(out, "      Address: %s\n", svc.Address())
		for k, v := range svc.Text {
			fmt.Fprintf(out, "      %s: %s\n", k, v)
		}
	}
	return nil
}

// runDemo moves the mount to preset 1, reports the extension and name, then
// moves to an explicit position.
func runDemo(ctx context.Context, session *motionmount.Session, out io.Writer) error {
	if err := session.GoToPreset(ctx, 1); err != nil {
		return fmt.Errorf("go to preset 1: %w", err)
	}
	if ext, ok := session.Extension(); ok {
		fmt.Fprintf(out, "Extension: %d\n", ext)
	} else {
		fmt.Fprintln(out, "Extension: unknown")
	}

	name, err := session.GetName(ctx)
	if err != nil {
		return fmt.Errorf("get name: %w", err)
	}
	fmt.Fprintf(out, "The name is: %q\n", name)

	if err := session.GoToPosition(ctx, 50, -50); err != nil {
		return fmt.Errorf("go to position: %w", err)
	}

	// Give unsolicited position updates a moment to arrive.
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
	}
	return nil
}
