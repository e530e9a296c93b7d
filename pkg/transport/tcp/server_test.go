package tcp_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tschof/subscriptions/internal/log"
	"github.com/tschof/subscriptions/pkg/transport/tcp"
)

func TestServerAcceptsAndEchoes(t *testing.T) {
	handled := make(chan struct{}, 1)
	srv := tcp.NewServer("127.0.0.1:0", 4, func(ctx context.Context, conn net.Conn) {
		buf := make([]byte, 5)
		n, err := conn.Read(buf)
		if err == nil {
			_, _ = conn.Write(buf[:n])
		}
		handled <- struct{}{}
	}, log.NewNopLogger())

	require.NoError(t, srv.Start())
	defer srv.Stop()

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("hello"))
	require.NoError(t, err)

	select {
	case <-handled:
	case <-time.After(2 * time.Second):
		t.Fatal("connection was never handled")
	}

	buf := make([]byte, 5)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestServerStopClosesListener(t *testing.T) {
	srv := tcp.NewServer("127.0.0.1:0", 4, func(ctx context.Context, conn net.Conn) {}, log.NewNopLogger())
	require.NoError(t, srv.Start())
	addr := srv.Addr().String()
	require.NoError(t, srv.Stop())

	_, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
	assert.Error(t, err)
}
