package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/motionmount/motionmount-go/internal/simulator"
	"github.com/motionmount/motionmount-go/pkg/discovery"
	"github.com/motionmount/motionmount-go/pkg/discovery/mocks"
	"github.com/motionmount/motionmount-go/pkg/log"
)

func quietLogger() *slog.Logger { return newLogger("error", io.Discard) }

func TestRunDemoSimulated(t *testing.T) {
	cfg := Config{Simulate: true, LogLevel: "error", ConnectTimeout: 2 * time.Second, RequestTimeout: time.Second}
	var out bytes.Buffer

	err := run(context.Background(), cfg, mocks.NewMockBrowser(t), quietLogger(), &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Extension: ")
	assert.Contains(t, out.String(), `The name is: "Simulated MotionMount"`)
}

func TestRunDemoAuthenticated(t *testing.T) {
	cfg := Config{Simulate: true, Secret: "1234", LogLevel: "error"}
	var out bytes.Buffer

	err := run(context.Background(), cfg, mocks.NewMockBrowser(t), quietLogger(), &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "The name is:")
}

func TestRunWritesProtocolLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.mlog")
	cfg := Config{Simulate: true, LogLevel: "error", ProtocolLog: path}

	require.NoError(t, run(context.Background(), cfg, mocks.NewMockBrowser(t), quietLogger(), io.Discard))

	r, err := log.NewReader(path)
	require.NoError(t, err)
	defer r.Close()

	count := 0
	for {
		_, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		count++
	}
	assert.Positive(t, count)
}

func TestRunConnectRefused(t *testing.T) {
	d, err := simulator.Start(simulator.Config{})
	require.NoError(t, err)
	host, port := d.Host(), d.Port()
	require.NoError(t, d.Close())

	cfg := Config{Host: host, Port: port, LogLevel: "error"}
	err = run(context.Background(), cfg, mocks.NewMockBrowser(t), quietLogger(), io.Discard)
	assert.ErrorContains(t, err, "connect")
}

func TestResolveTargetByName(t *testing.T) {
	browser := mocks.NewMockBrowser(t)
	browser.EXPECT().FindByName(mock.Anything, "Living Room").Return(&discovery.Service{
		Instance:  "Living Room",
		Host:      "mm-1.local.",
		Port:      23,
		Addresses: []string{"192.168.1.20"},
	}, nil)

	host, port, cleanup, err := resolveTarget(context.Background(), Config{Name: "Living Room"}, browser, quietLogger())
	require.NoError(t, err)
	defer cleanup()
	assert.Equal(t, "192.168.1.20", host)
	assert.Equal(t, 23, port)
}

func TestResolveTargetNotFound(t *testing.T) {
	browser := mocks.NewMockBrowser(t)
	browser.EXPECT().FindByName(mock.Anything, "Attic").Return(nil, discovery.ErrNotFound)

	_, _, _, err := resolveTarget(context.Background(), Config{Name: "Attic"}, browser, quietLogger())
	assert.ErrorIs(t, err, discovery.ErrNotFound)
}

func TestListDevices(t *testing.T) {
	browser := mocks.NewMockBrowser(t)
	browser.EXPECT().FindAll(mock.Anything).Return([]*discovery.Service{
		{Instance: "Bedroom", Host: "mm-2.local.", Port: 23, Addresses: []string{"192.168.1.21"}},
		{Instance: "Living Room", Host: "mm-1.local.", Port: 23},
	}, nil)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), Config{Discover: true}, browser, quietLogger(), &out))

	assert.Contains(t, out.String(), "Found 2 MotionMount(s)")
	assert.Contains(t, out.String(), "1. Bedroom")
	assert.Contains(t, out.String(), "Address: 192.168.1.21:23")
	assert.Contains(t, out.String(), "Address: mm-1.local:23")
}

func TestListDevicesEmpty(t *testing.T) {
	browser := mocks.NewMockBrowser(t)
	browser.EXPECT().FindAll(mock.Anything).Return(nil, nil)

	var out bytes.Buffer
	require.NoError(t, listDevices(context.Background(), browser, &out))
	assert.Contains(t, out.String(), "No MotionMounts found")
}
