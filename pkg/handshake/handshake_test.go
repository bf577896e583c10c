package handshake

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"code.hybscloud.com/iox"
	"github.com/mash-protocol/busgo/pkg/log"
	"github.com/mash-protocol/busgo/pkg/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingLogger collects protocol events.
type recordingLogger struct {
	mu     sync.Mutex
	events []log.Event
}

func (l *recordingLogger) Log(event log.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *recordingLogger) Events() []log.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]log.Event(nil), l.events...)
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newPair(t *testing.T, client ClientConfig, server ServerConfig) (*ClientHandshake, *ServerHandshake) {
	t.Helper()
	a, b := transport.Pipe()
	t.Cleanup(func() {
		a.Close()
		b.Close()
	})

	c, err := NewClientHandshake(a, client)
	require.NoError(t, err)
	s, err := NewServerHandshake(b, server)
	require.NoError(t, err)
	return c, s
}

// readAll drains whatever is currently queued on sock.
func readAll(t *testing.T, sock transport.Socket) string {
	t.Helper()
	var sb strings.Builder
	buf := make([]byte, 256)
	for {
		n, _, err := sock.Recv(buf)
		if iox.IsWouldBlock(err) || errors.Is(err, io.EOF) {
			return sb.String()
		}
		require.NoError(t, err)
		sb.Write(buf[:n])
	}
}

// --- Convergence ---

func TestHandshakeConvergesOverPipe(t *testing.T) {
	serverCfg := DefaultServerConfig()
	c, s := newPair(t, DefaultClientConfig(), serverCfg)

	ca, sa, err := FinishPair(testContext(t), c, s)
	require.NoError(t, err)

	assert.Equal(t, serverCfg.GUID, ca.ServerGUID)
	assert.Equal(t, ca.ServerGUID, sa.ServerGUID)
	assert.Equal(t, ca.CapUnixFD, sa.CapUnixFD)
	assert.Equal(t, transport.Socket(c.Socket()), ca.Socket)
	assert.Equal(t, ClientDone, c.Step())
	assert.Equal(t, ServerDone, s.Step())
}

func TestHandshakeConvergesWithBlockingFinish(t *testing.T) {
	c, s := newPair(t, DefaultClientConfig(), DefaultServerConfig())
	ctx := testContext(t)

	type result struct {
		auth *Authenticated
		err  error
	}
	serverCh := make(chan result, 1)
	go func() {
		auth, err := BlockingFinish(ctx, s)
		serverCh <- result{auth, err}
	}()

	ca, err := BlockingFinish(ctx, c)
	require.NoError(t, err)
	sr := <-serverCh
	require.NoError(t, sr.err)

	assert.Equal(t, ca.ServerGUID, sr.auth.ServerGUID)
	assert.Equal(t, ca.CapUnixFD, sr.auth.CapUnixFD)
}

func TestHandshakeWithoutFdNegotiation(t *testing.T) {
	client := DefaultClientConfig()
	client.NegotiateUnixFD = false
	c, s := newPair(t, client, DefaultServerConfig())

	ca, sa, err := FinishPair(testContext(t), c, s)
	require.NoError(t, err)
	assert.False(t, ca.CapUnixFD)
	assert.False(t, sa.CapUnixFD)
}

func TestHandshakeServerRefusesFds(t *testing.T) {
	server := DefaultServerConfig()
	server.AllowUnixFD = false
	c, s := newPair(t, DefaultClientConfig(), server)

	ca, sa, err := FinishPair(testContext(t), c, s)
	require.NoError(t, err)
	assert.False(t, ca.CapUnixFD)
	assert.False(t, sa.CapUnixFD)
}

func TestHandshakeLeftoverAfterBegin(t *testing.T) {
	a, b := transport.Pipe()
	defer a.Close()
	defer b.Close()

	s, err := NewServerHandshake(b, DefaultServerConfig())
	require.NoError(t, err)

	auth := "\x00AUTH EXTERNAL " + EncodeUID(CurrentUID()) + "\r\n"
	_, err = a.Send([]byte(auth), nil)
	require.NoError(t, err)
	require.True(t, iox.IsWouldBlock(s.Advance()))
	assert.True(t, strings.HasPrefix(readAll(t, a), "OK "))

	// BEGIN and the first message bytes arrive in one chunk.
	_, err = a.Send([]byte("BEGIN\r\nl\x01\x00\x01"), nil)
	require.NoError(t, err)
	require.NoError(t, s.Advance())

	sa, err := s.TryFinish()
	require.NoError(t, err)
	assert.Equal(t, []byte("l\x01\x00\x01"), sa.Leftover)
}

// --- Rejection ---

func TestServerRejectsMismatchedUIDUntilEOF(t *testing.T) {
	a, b := transport.Pipe()
	defer b.Close()

	server := DefaultServerConfig()
	server.ClientUID = 1000
	s, err := NewServerHandshake(b, server)
	require.NoError(t, err)

	attempts := "\x00" + strings.Repeat("AUTH EXTERNAL "+EncodeUID(1001)+"\r\n", 3)
	_, err = a.Send([]byte(attempts), nil)
	require.NoError(t, err)
	require.True(t, iox.IsWouldBlock(s.Advance()))
	readAll(t, a)
	a.Close()

	err = s.Advance()
	assert.ErrorIs(t, err, io.EOF)
	assert.NotEqual(t, ServerDone, s.Step())
	assert.Equal(t, ServerWaitingForAuth, s.Step())

	_, err = s.TryFinish()
	assert.ErrorIs(t, err, ErrNotDone)
}

func TestServerRejectionRepliesCounted(t *testing.T) {
	a, b := transport.Pipe()
	defer a.Close()
	defer b.Close()

	server := DefaultServerConfig()
	server.ClientUID = 1000
	s, err := NewServerHandshake(b, server)
	require.NoError(t, err)

	_, err = a.Send([]byte("\x00"+strings.Repeat("AUTH EXTERNAL 31303031\r\n", 3)), nil)
	require.NoError(t, err)
	require.True(t, iox.IsWouldBlock(s.Advance()))

	assert.Equal(t, strings.Repeat("REJECTED EXTERNAL\r\n", 3), readAll(t, a))
}

func TestClientFailsOnRejection(t *testing.T) {
	client := DefaultClientConfig()
	client.UID = 4242
	server := DefaultServerConfig()
	server.ClientUID = 1000
	c, s := newPair(t, client, server)

	_, _, err := FinishPair(testContext(t), c, s)
	assert.ErrorIs(t, err, ErrUnexpectedReply)
	assert.NotEqual(t, ClientDone, c.Step())
}

func TestServerMalformedAuthIsRejected(t *testing.T) {
	a, b := transport.Pipe()
	defer a.Close()
	defer b.Close()

	s, err := NewServerHandshake(b, DefaultServerConfig())
	require.NoError(t, err)

	_, err = a.Send([]byte("\x00AUTH EXTERNAL\r\n"), nil)
	require.NoError(t, err)
	require.True(t, iox.IsWouldBlock(s.Advance()))

	assert.Equal(t, "REJECTED EXTERNAL\r\n", readAll(t, a))
	assert.Equal(t, ServerWaitingForAuth, s.Step())
}

// --- Fatal errors ---

func TestServerFatalErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"first byte not NUL", "AUTH EXTERNAL 30\r\n", ErrNotNul},
		{"begin before auth", "\x00BEGIN\r\n", ErrBeginBeforeAuth},
		{"undecodable uid", "\x00AUTH EXTERNAL xyz\r\n", ErrInvalidUID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := transport.Pipe()
			defer a.Close()
			defer b.Close()

			logger := &recordingLogger{}
			cfg := DefaultServerConfig()
			cfg.ProtocolLogger = logger
			s, err := NewServerHandshake(b, cfg)
			require.NoError(t, err)

			_, err = a.Send([]byte(tt.input), nil)
			require.NoError(t, err)

			err = s.Advance()
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrHandshake)

			var sawError bool
			for _, e := range logger.Events() {
				if e.Category == log.CategoryError {
					sawError = true
				}
			}
			assert.True(t, sawError, "fatal error should be logged")
		})
	}
}

func TestServerLineTooLong(t *testing.T) {
	a, b := transport.Pipe()
	defer a.Close()
	defer b.Close()

	cfg := DefaultServerConfig()
	cfg.MaxLineLength = 16
	s, err := NewServerHandshake(b, cfg)
	require.NoError(t, err)

	_, err = a.Send([]byte("\x00"+strings.Repeat("A", 64)), nil)
	require.NoError(t, err)
	assert.ErrorIs(t, s.Advance(), ErrLineTooLong)
}

func TestTryFinishBeforeDone(t *testing.T) {
	c, s := newPair(t, DefaultClientConfig(), DefaultServerConfig())

	_, err := c.TryFinish()
	assert.ErrorIs(t, err, ErrNotDone)
	_, err = s.TryFinish()
	assert.ErrorIs(t, err, ErrNotDone)

	// The handshake is unchanged and still completes.
	_, _, err = FinishPair(testContext(t), c, s)
	assert.NoError(t, err)
}

func TestBlockingFinishHonorsContext(t *testing.T) {
	_, s := newPair(t, DefaultClientConfig(), DefaultServerConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := BlockingFinish(ctx, s)
	assert.ErrorIs(t, err, context.Canceled)
}

// --- Logging ---

func TestHandshakeLogsLinesAndStates(t *testing.T) {
	clientLog := &recordingLogger{}
	serverLog := &recordingLogger{}

	client := DefaultClientConfig()
	client.ProtocolLogger = clientLog
	client.ConnectionID = "conn-c"
	server := DefaultServerConfig()
	server.ProtocolLogger = serverLog
	server.ConnectionID = "conn-s"

	c, s := newPair(t, client, server)
	_, _, err := FinishPair(testContext(t), c, s)
	require.NoError(t, err)

	var commands []string
	var finalState string
	for _, e := range clientLog.Events() {
		assert.Equal(t, "conn-c", e.ConnectionID)
		assert.Equal(t, log.RoleClient, e.LocalRole)
		assert.Equal(t, log.LayerAuth, e.Layer)
		if e.AuthLine != nil && e.Direction == log.DirectionOut {
			commands = append(commands, e.AuthLine.Command)
		}
		if e.StateChange != nil {
			finalState = e.StateChange.NewState
		}
	}
	assert.Equal(t, []string{"AUTH", "NEGOTIATE_UNIX_FD", "BEGIN"}, commands)
	assert.Equal(t, "Done", finalState)

	var serverReplies []string
	for _, e := range serverLog.Events() {
		assert.Equal(t, log.RoleServer, e.LocalRole)
		if e.AuthLine != nil && e.Direction == log.DirectionOut {
			serverReplies = append(serverReplies, e.AuthLine.Command)
		}
		assert.NotEqual(t, log.CategoryError, e.Category, "would-block must not be logged as an error")
	}
	assert.Equal(t, []string{"OK", "AGREE_UNIX_FD"}, serverReplies)
}
