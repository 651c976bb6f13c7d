package multidisplay

import (
	"io"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSender_SendUserInput(t *testing.T) {
	conn, peer := newTestConn(t)
	s := NewSender(conn, nil, NopLogger())

	require.NoError(t, s.SendUserInput(3, "nextSlide"))

	want := strFrame(3, "nextSlide")
	got := make([]byte, len(want))
	_, err := io.ReadFull(peer, got)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSender_Validation(t *testing.T) {
	conn, _ := newTestConn(t)
	s := NewSender(conn, nil, NopLogger())

	tests := []struct {
		name      string
		displayID int
		text      string
		want      error
	}{
		{"negative display", -1, "x", ErrDisplayIDRange},
		{"display too large", 256, "x", ErrDisplayIDRange},
		{"text too long", 1, strings.Repeat("x", 256), ErrTextTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.SendUserInput(tt.displayID, tt.text)

			var protoErr *ProtocolError
			require.True(t, errors.As(err, &protoErr))
			assert.True(t, errors.Is(err, tt.want))
		})
	}

	assert.True(t, conn.IsConnected(), "rejected input must not touch the connection")
}

func TestSender_ClosedConnection(t *testing.T) {
	conn, _ := newTestConn(t)
	s := NewSender(conn, nil, NopLogger())
	require.NoError(t, conn.Close())

	err := s.SendUserInput(1, "late")

	var connErr *ConnectionError
	require.True(t, errors.As(err, &connErr))
	assert.True(t, errors.Is(err, ErrConnectionClosed))
}
