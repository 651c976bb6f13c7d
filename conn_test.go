package multidisplay

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDial(t *testing.T) {
	listener, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	defer listener.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := listener.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	addr := listener.Addr().(*net.TCPAddr)
	conn, err := Dial(context.Background(), "127.0.0.1", addr.Port, LoggerOption(NopLogger()))
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, Connected, conn.State())
	assert.True(t, conn.IsConnected())
	assert.NoError(t, conn.Err())

	select {
	case c := <-accepted:
		c.Close()
	case <-time.After(5 * time.Second):
		t.Fatal("server never accepted")
	}
}

func TestDial_Refused(t *testing.T) {
	listener, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	conn, err := Dial(context.Background(), "127.0.0.1", port, LoggerOption(NopLogger()))
	assert.Nil(t, conn)

	var connErr *ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, "dial", connErr.Op)
}

func TestDial_InvalidOptions(t *testing.T) {
	_, err := Dial(context.Background(), "127.0.0.1", 1, QueueLimitOption(-1))
	assert.Equal(t, ErrInvalidQueueLimit, err)
}

func TestConn_ReadWrite(t *testing.T) {
	conn, peer := newTestConn(t)

	require.NoError(t, conn.Write([]byte("ping")))

	buf := make([]byte, 4)
	_, err := io.ReadFull(peer, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))

	_, err = peer.Write([]byte("pong"))
	require.NoError(t, err)

	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(buf))
}

func TestConn_CloseIdempotent(t *testing.T) {
	conn, _ := newTestConn(t)

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = conn.Close()
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, Disconnected, conn.State())
	assert.NoError(t, conn.Err(), "local close is not a failure")

	select {
	case <-conn.Disconnected():
	default:
		t.Fatal("disconnected channel not closed")
	}
}

func TestConn_CloseUnblocksRead(t *testing.T) {
	conn, _ := newTestConn(t)

	done := make(chan error, 1)
	go func() {
		_, err := conn.Read(make([]byte, 1))
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, conn.Close())

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("read still blocked after close")
	}
	assert.NoError(t, conn.Err())
}

func TestConn_PeerCloseRecordsCause(t *testing.T) {
	conn, peer := newTestConn(t)
	require.NoError(t, peer.Close())

	_, err := conn.Read(make([]byte, 1))
	require.ErrorIs(t, err, io.EOF)

	assert.Equal(t, Disconnected, conn.State())
	assert.ErrorIs(t, conn.Err(), io.EOF)
}

func TestConn_WriteAfterClose(t *testing.T) {
	conn, _ := newTestConn(t)
	require.NoError(t, conn.Close())

	err := conn.Write([]byte("late"))

	var connErr *ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.True(t, errors.Is(err, ErrConnectionClosed))
}

func TestConn_FailKeepsFirstCause(t *testing.T) {
	conn, _ := newTestConn(t)

	first := errors.New("first")
	conn.fail(first)
	conn.fail(errors.New("second"))

	assert.Equal(t, first, conn.Err())
	assert.Equal(t, Disconnected, conn.State())
}

func TestConnectionState_String(t *testing.T) {
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "closing", Closing.String())
	assert.Equal(t, "unknown", ConnectionState(42).String())
}
