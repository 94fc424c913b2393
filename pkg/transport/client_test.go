package transport_test

import (
	"bufio"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/motionmount/motionmount-go/pkg/transport"
	"github.com/motionmount/motionmount-go/pkg/transport/mocks"
	"github.com/motionmount/motionmount-go/pkg/wire"
)

// startLineServer accepts one connection and hands it to handle.
func startLineServer(t *testing.T, handle func(net.Conn)) net.Listener {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		handle(conn)
	}()
	return ln
}

func TestClientSendReceive(t *testing.T) {
	ln := startLineServer(t, func(conn net.Conn) {
		defer conn.Close()
		r := bufio.NewReader(conn)
		line, err := r.ReadString('\n')
		if err != nil || line != "configuration/name\n" {
			return
		}
		// Split the reply across two writes.
		conn.Write([]byte("configuration/na"))
		time.Sleep(10 * time.Millisecond)
		conn.Write([]byte("me = \"Den\"\n"))
		time.Sleep(50 * time.Millisecond)
	})

	client := transport.NewClient(transport.ClientConfig{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := client.Connect(ctx, ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	assert.NotEmpty(t, conn.ID())
	assert.Equal(t, ln.Addr().String(), conn.RemoteAddr().String())

	require.NoError(t, conn.Send(wire.QueryName()))

	f, err := conn.Receive()
	require.NoError(t, err)
	assert.Equal(t, wire.FramePush, f.Type)
	assert.Equal(t, "Den", f.Text())
}

func TestClientConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	client := transport.NewClient(transport.ClientConfig{ConnectTimeout: 2 * time.Second})
	_, err = client.Connect(context.Background(), addr)

	assert.ErrorIs(t, err, transport.ErrConnectionRefused)
}

func TestClientConnectTimeout(t *testing.T) {
	dialer := mocks.NewMockDialer(t)
	dialer.EXPECT().DialContext(mock.Anything, "tcp", "10.0.0.9:23").
		RunAndReturn(func(ctx context.Context, _, _ string) (net.Conn, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}).Once()

	client := transport.NewClient(transport.ClientConfig{
		ConnectTimeout: 50 * time.Millisecond,
		Dialer:         dialer,
	})

	start := time.Now()
	_, err := client.Connect(context.Background(), "10.0.0.9:23")

	assert.ErrorIs(t, err, transport.ErrConnectTimeout)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClientOtherDialErrorsAreRefused(t *testing.T) {
	dialer := mocks.NewMockDialer(t)
	dialer.EXPECT().DialContext(mock.Anything, "tcp", "mount.invalid:23").
		Return(nil, errors.New("no such host")).Once()

	client := transport.NewClient(transport.ClientConfig{Dialer: dialer})
	_, err := client.Connect(context.Background(), "mount.invalid:23")

	assert.ErrorIs(t, err, transport.ErrConnectionRefused)
	assert.NotErrorIs(t, err, transport.ErrConnectTimeout)
}

func TestClientConnectCanceled(t *testing.T) {
	dialer := mocks.NewMockDialer(t)
	dialer.EXPECT().DialContext(mock.Anything, mock.Anything, mock.Anything).
		RunAndReturn(func(ctx context.Context, _, _ string) (net.Conn, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}).Once()

	client := transport.NewClient(transport.ClientConfig{Dialer: dialer})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Connect(ctx, "10.0.0.9:23")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConnReceiveAfterPeerReset(t *testing.T) {
	ln := startLineServer(t, func(conn net.Conn) {
		conn.Close()
	})

	client := transport.NewClient(transport.ClientConfig{})
	conn, err := client.Connect(context.Background(), ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Receive()
	assert.ErrorIs(t, err, transport.ErrConnectionLost)
}

func TestConnReceiveAfterLocalClose(t *testing.T) {
	hold := make(chan struct{})
	ln := startLineServer(t, func(conn net.Conn) {
		<-hold
		conn.Close()
	})
	defer close(hold)

	client := transport.NewClient(transport.ClientConfig{})
	conn, err := client.Connect(context.Background(), ln.Addr().String())
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := conn.Receive()
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, transport.ErrConnectionClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("Receive did not return after Close")
	}

	assert.ErrorIs(t, conn.Send(wire.QueryName()), transport.ErrConnectionClosed)
}

func TestConnSendEncodingError(t *testing.T) {
	ln := startLineServer(t, func(conn net.Conn) {
		defer conn.Close()
		time.Sleep(50 * time.Millisecond)
	})

	client := transport.NewClient(transport.ClientConfig{WriteTimeout: time.Second})
	conn, err := client.Connect(context.Background(), ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	err = conn.Send(wire.Request{Key: wire.KeyName, Value: "bad \"quote\""})
	assert.ErrorIs(t, err, wire.ErrEncoding)
}
