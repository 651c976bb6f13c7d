package multidisplay

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, display Display, opt ...Option) *Client {
	t.Helper()

	opts := append([]Option{
		LoggerOption(NopLogger()),
		TempDirOption(filepath.Join(t.TempDir(), "session")),
	}, opt...)

	client, err := NewClient(display, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// tickUntil ticks the client until display has recorded n calls.
func tickUntil(t *testing.T, client *Client, display *recordingDisplay, n int) []displayCall {
	t.Helper()
	require.Eventually(t, func() bool {
		client.Tick()
		return len(display.Calls()) >= n
	}, 5*time.Second, 10*time.Millisecond)
	return display.Calls()
}

func TestNewClient_InvalidDisplay(t *testing.T) {
	_, err := NewClient(nil)
	assert.Equal(t, ErrInvalidDisplay, err)
}

func TestClient_EndToEnd(t *testing.T) {
	inputs := make(chan StringMessage, 1)
	server, peers := startTestServer(t, func(m StringMessage) { inputs <- m })
	port := server.Addr().(*net.TCPAddr).Port

	display := &recordingDisplay{}
	client := newTestClient(t, display)
	assert.Equal(t, Disconnected, client.State())
	assert.Empty(t, client.Session())

	require.NoError(t, client.Connect(context.Background(), "127.0.0.1", port))
	assert.Equal(t, Connected, client.State())
	assert.NotEmpty(t, client.Session())

	peer := waitPeer(t, peers)
	require.NoError(t, peer.SendText(2, "playVideo"))
	require.NoError(t, peer.SendFile(5, "slides (v2).pdf", []byte("%PDF")))
	require.NoError(t, peer.SendText(2, "stopVideo"))

	calls := tickUntil(t, client, display, 3)
	assert.Equal(t, displayCall{DisplayID: 2, Text: "playVideo"}, calls[0])
	assert.Equal(t, displayCall{
		DisplayID: 5,
		Path:      filepath.Join(client.TempDir().Path(), "slides-v2-.pdf"),
		TempRoot:  client.TempDir().Path(),
	}, calls[1])
	assert.Equal(t, displayCall{DisplayID: 2, Text: "stopVideo"}, calls[2])

	got, err := os.ReadFile(calls[1].Path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(got))

	require.NoError(t, client.SendUserInput(5, "nextSlide"))
	select {
	case m := <-inputs:
		assert.Equal(t, StringMessage{DisplayID: 5, Text: "nextSlide"}, m)
	case <-time.After(5 * time.Second):
		t.Fatal("user input never reached the server")
	}

	assert.False(t, client.TakeDisconnect())
}

func TestClient_ServerDropSignalsOnce(t *testing.T) {
	server, peers := startTestServer(t, nil)
	port := server.Addr().(*net.TCPAddr).Port

	var (
		mu       sync.Mutex
		reported []error
	)
	client := newTestClient(t, &recordingDisplay{}, OnErrorOption(func(err error) {
		mu.Lock()
		reported = append(reported, err)
		mu.Unlock()
	}))
	require.NoError(t, client.Connect(context.Background(), "127.0.0.1", port))

	peer := waitPeer(t, peers)
	require.NoError(t, peer.Close())

	require.Eventually(t, client.TakeDisconnect, 5*time.Second, 10*time.Millisecond)
	assert.False(t, client.TakeDisconnect(), "the signal is consumed exactly once")
	assert.Equal(t, Disconnected, client.State())
	assert.Error(t, client.Err())
	assert.Error(t, client.Wait())

	mu.Lock()
	assert.Len(t, reported, 1)
	mu.Unlock()

	err := client.SendUserInput(1, "late")
	assert.True(t, errors.Is(err, ErrConnectionClosed))
}

func TestClient_ProtocolErrorDisconnects(t *testing.T) {
	server, peers := startTestServer(t, nil)
	port := server.Addr().(*net.TCPAddr).Port

	display := &recordingDisplay{}
	client := newTestClient(t, display)
	require.NoError(t, client.Connect(context.Background(), "127.0.0.1", port))

	peer := waitPeer(t, peers)
	require.NoError(t, peer.conn.Write([]byte("XYZ")))

	require.Eventually(t, client.TakeDisconnect, 5*time.Second, 10*time.Millisecond)
	assert.True(t, errors.Is(client.Err(), ErrUnknownTag))
	assert.Zero(t, client.Tick())
	assert.Empty(t, display.Calls())
}

func TestClient_CloseDoesNotSignal(t *testing.T) {
	server, peers := startTestServer(t, nil)
	port := server.Addr().(*net.TCPAddr).Port

	client := newTestClient(t, &recordingDisplay{})
	require.NoError(t, client.Connect(context.Background(), "127.0.0.1", port))
	waitPeer(t, peers)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	assert.Equal(t, Disconnected, client.State())
	assert.NoError(t, client.Err())
	assert.NoError(t, client.Wait())
	assert.False(t, client.TakeDisconnect())
}

func TestClient_ConnectTwice(t *testing.T) {
	server, peers := startTestServer(t, nil)
	port := server.Addr().(*net.TCPAddr).Port

	client := newTestClient(t, &recordingDisplay{})
	require.NoError(t, client.Connect(context.Background(), "127.0.0.1", port))
	waitPeer(t, peers)

	assert.Equal(t, ErrAlreadyConnected, client.Connect(context.Background(), "127.0.0.1", port))
}

func TestClient_ReconnectResetsTempDir(t *testing.T) {
	server, peers := startTestServer(t, nil)
	port := server.Addr().(*net.TCPAddr).Port

	display := &recordingDisplay{}
	client := newTestClient(t, display)
	require.NoError(t, client.Connect(context.Background(), "127.0.0.1", port))
	first := client.Session()

	peer := waitPeer(t, peers)
	require.NoError(t, peer.SendFile(1, "old.png", []byte("old")))
	calls := tickUntil(t, client, display, 1)
	oldPath := calls[0].Path

	require.NoError(t, client.Close())
	require.NoError(t, client.Connect(context.Background(), "127.0.0.1", port))
	waitPeer(t, peers)

	assert.NotEqual(t, first, client.Session())
	_, err := os.Stat(oldPath)
	assert.True(t, os.IsNotExist(err), "previous session files must be discarded")
}

func TestClient_ConnectFailure(t *testing.T) {
	listener, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	client := newTestClient(t, &recordingDisplay{})
	err = client.Connect(context.Background(), "127.0.0.1", port)

	var connErr *ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.Equal(t, Disconnected, client.State())
	assert.False(t, client.TakeDisconnect())
}
