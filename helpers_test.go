package multidisplay

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// createTestTCPPair creates a connected pair of TCP connections for testing.
func createTestTCPPair(t *testing.T) (server *net.TCPConn, client *net.TCPConn) {
	t.Helper()

	listener, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	require.NoError(t, err)
	defer listener.Close()

	clientChan := make(chan *net.TCPConn, 1)
	errChan := make(chan error, 1)
	go func() {
		conn, err := net.DialTCP("tcp", nil, listener.Addr().(*net.TCPAddr))
		if err != nil {
			errChan <- err
			return
		}
		clientChan <- conn
	}()

	serverConn, err := listener.AcceptTCP()
	require.NoError(t, err)

	select {
	case clientConn := <-clientChan:
		t.Cleanup(func() {
			_ = serverConn.Close()
			_ = clientConn.Close()
		})
		return serverConn, clientConn
	case err := <-errChan:
		serverConn.Close()
		t.Fatalf("client dial failed: %v", err)
	case <-time.After(5 * time.Second):
		serverConn.Close()
		t.Fatal("timeout waiting for client connection")
	}
	return nil, nil
}

// newTestConn wraps the client side of a TCP pair in a Conn and returns the
// raw server side to script the peer.
func newTestConn(t *testing.T) (*Conn, *net.TCPConn) {
	t.Helper()

	serverRaw, clientRaw := createTestTCPPair(t)
	conn, err := NewConn(clientRaw, LoggerOption(NopLogger()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, serverRaw
}

type displayCall struct {
	DisplayID uint8
	Text      string
	Path      string
	TempRoot  string
}

// recordingDisplay implements Display and records every call.
type recordingDisplay struct {
	mu    sync.Mutex
	calls []displayCall
}

func (d *recordingDisplay) ApplyUserInput(displayID uint8, text string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, displayCall{DisplayID: displayID, Text: text})
}

func (d *recordingDisplay) ApplyFile(displayID uint8, path, tempDirRoot string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, displayCall{DisplayID: displayID, Path: path, TempRoot: tempDirRoot})
}

func (d *recordingDisplay) Calls() []displayCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]displayCall(nil), d.calls...)
}

// strFrame builds a raw STR frame without going through the codec.
func strFrame(displayID byte, text string) []byte {
	frame := []byte(TagString)
	frame = append(frame, displayID, byte(len(text)))
	return append(frame, text...)
}

// objFrame builds an OBJ frame with the codec's encoder.
func objFrame(t *testing.T, displayID uint8, name string, data []byte) []byte {
	t.Helper()
	frame, err := NewFrameCodec(0).Encode(ObjectMessage{DisplayID: displayID, FileName: name, FileBytes: data})
	require.NoError(t, err)
	return frame
}
