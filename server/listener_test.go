package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chat-relay/domain"
)

// failingListener always errors on Accept until closed, like a socket
// stuck on EMFILE.
type failingListener struct {
	mu       sync.Mutex
	attempts int
	closed   bool
}

func (l *failingListener) Accept() (net.Conn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, net.ErrClosed
	}
	l.attempts++
	return nil, errors.New("accept tcp: too many open files")
}

func (l *failingListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	return nil
}

func (l *failingListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)}
}

func (l *failingListener) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attempts
}

func startTestServer(t *testing.T) (*Server, context.CancelFunc, chan error) {
	t.Helper()
	env := newTestEnv()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := NewServer(env.log, listener, env.registry, env.directory, env.router,
		1<<20, 2*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()
	return srv, cancel, done
}

func TestServer_AcceptsAndServes(t *testing.T) {
	req := require.New(t)
	srv, cancel, done := startTestServer(t)
	defer cancel()

	// When a client connects over real TCP and logs in
	conn, err := net.DialTimeout("tcp", srv.Addr().String(), readTimeout)
	req.NoError(err)
	defer conn.Close()

	line, err := domain.NewLogin("alice").Encode()
	req.NoError(err)
	_, err = conn.Write(append(line, '\n'))
	req.NoError(err)

	sc := bufio.NewScanner(conn)
	req.NoError(conn.SetReadDeadline(time.Now().Add(readTimeout)))
	req.True(sc.Scan())
	response, err := domain.Decode(sc.Bytes())
	req.NoError(err)
	req.Equal(domain.TypeLoginResponse, response.Type)

	cancel()
	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(readTimeout):
		t.Fatal("server did not stop after cancel")
	}
}

func TestServer_ShutdownDisconnectsClients(t *testing.T) {
	req := require.New(t)
	srv, cancel, done := startTestServer(t)

	conn, err := net.DialTimeout("tcp", srv.Addr().String(), readTimeout)
	req.NoError(err)
	defer conn.Close()

	line, err := domain.NewLogin("alice").Encode()
	req.NoError(err)
	_, err = conn.Write(append(line, '\n'))
	req.NoError(err)

	sc := bufio.NewScanner(conn)
	req.NoError(conn.SetReadDeadline(time.Now().Add(readTimeout)))
	req.True(sc.Scan()) // LOGIN_RESPONSE

	// When the server is stopped
	cancel()
	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(readTimeout):
		t.Fatal("server did not stop after cancel")
	}

	// Then the client eventually hits EOF
	req.NoError(conn.SetReadDeadline(time.Now().Add(readTimeout)))
	for sc.Scan() {
	}
	req.NoError(sc.Err())
}

func TestServer_AcceptErrors_Throttled(t *testing.T) {
	req := require.New(t)
	env := newTestEnv()
	listener := &failingListener{}

	srv := NewServer(env.log, listener, env.registry, env.directory, env.router,
		1<<20, 2*time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	// Given Accept fails persistently for a while
	time.Sleep(3 * acceptBackoff)

	// Then the loop retries at the backoff cadence instead of spinning
	attempts := listener.count()
	req.Positive(attempts)
	req.LessOrEqual(attempts, 10)

	// And cancellation still stops the server cleanly
	cancel()
	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(readTimeout):
		t.Fatal("server did not stop after cancel")
	}
}
