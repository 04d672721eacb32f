package proxy

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xproxy "golang.org/x/net/proxy"

	"github.com/cloaknet/cloak/internal/onion"
)

// directClient satisfies onion.Client by dialing the host network
// directly, standing in for a bootstrapped anonymity client.
type directClient struct {
	dialer net.Dialer
}

func (d *directClient) Bootstrap(context.Context) error    { return nil }
func (d *directClient) SetDormant(onion.DormantMode) error { return nil }
func (d *directClient) Close() error                       { return nil }

func (d *directClient) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	return d.dialer.DialContext(ctx, network, addr)
}

// startEcho runs a one-shot echo server and returns its address.
func startEcho(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	go func() {
		conn, err := l.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		conn.Write(buf[:n])
	}()
	return l.Addr().String()
}

// TestServeForwards verifies a SOCKS5 handshake against the proxy reaches
// the target through the client's dialer.
func TestServeForwards(t *testing.T) {
	echoAddr := startEcho(t)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	served := make(chan error, 1)
	go func() {
		served <- Serve(ctx, nil, &directClient{}, l)
	}()

	socks, err := xproxy.SOCKS5("tcp", l.Addr().String(), nil, xproxy.Direct)
	require.NoError(t, err)

	conn, err := socks.Dial("tcp", echoAddr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("ping"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf))

	cancel()
	select {
	case err := <-served:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancellation")
	}
}

// TestServeCancelledBeforeUse verifies cancellation alone unblocks Serve.
func TestServeCancelledBeforeUse(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() {
		served <- Serve(ctx, nil, &directClient{}, l)
	}()

	cancel()
	select {
	case err := <-served:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancellation")
	}
}

// TestRunEphemeralPort verifies port 0 binds successfully and the server
// runs until cancelled.
func TestRunEphemeralPort(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	served := make(chan error, 1)
	go func() {
		served <- Run(ctx, nil, &directClient{}, 0)
	}()

	// Give Run a moment to reach Serve before cancelling.
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-served:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not stop after cancellation")
	}
}
