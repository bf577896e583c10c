package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/mash-protocol/busgo/pkg/handshake"
	buslog "github.com/mash-protocol/busgo/pkg/log"
	"github.com/mash-protocol/busgo/pkg/signature"
	"github.com/mash-protocol/busgo/pkg/transport"
	"github.com/mash-protocol/busgo/pkg/variant"
)

// Socket kinds.
const (
	socketPipe = "pipe"
	socketPair = "socketpair"
)

// newSocketPair returns the two connected ends for kind.
func newSocketPair(kind string) (transport.Socket, transport.Socket, error) {
	switch kind {
	case socketPipe:
		a, b := transport.Pipe()
		return a, b, nil
	case socketPair:
		a, b, err := transport.SocketPair()
		if err != nil {
			return nil, nil, err
		}
		return a, b, nil
	default:
		return nil, nil, fmt.Errorf("invalid socket: %q", kind)
	}
}

// session runs both sides of a connection in process.
type session struct {
	cfg            Config
	logger         *slog.Logger
	protocolLogger buslog.Logger
	out            io.Writer
}

// run authenticates a client against a server and, when message is set,
// sends it from client to server as a bus value. Standard error travels
// along as a descriptor when both sides agreed on descriptor passing.
func (s *session) run(ctx context.Context, message string) error {
	clientSock, serverSock, err := newSocketPair(s.cfg.Socket)
	if err != nil {
		return err
	}
	defer clientSock.Close()
	defer serverSock.Close()

	connID := uuid.NewString()
	clientCfg := s.cfg.Client
	clientCfg.ConnectionID = connID
	clientCfg.ProtocolLogger = s.protocolLogger
	serverCfg := s.cfg.Server
	serverCfg.ConnectionID = connID
	serverCfg.ProtocolLogger = s.protocolLogger

	client, err := handshake.NewClientHandshake(clientSock, clientCfg)
	if err != nil {
		return fmt.Errorf("client: %w", err)
	}
	server, err := handshake.NewServerHandshake(serverSock, serverCfg)
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}

	s.logger.Debug("Starting handshake", "conn_id", connID, "socket", s.cfg.Socket)
	clientAuth, serverAuth, err := handshake.FinishPair(ctx, client, server)
	if err != nil {
		return fmt.Errorf("handshake failed: %w", err)
	}

	fmt.Fprintf(s.out, "Connection: %s\n", connID)
	fmt.Fprintf(s.out, "Server GUID: %s\n", clientAuth.ServerGUID)
	fmt.Fprintf(s.out, "Unix FD passing: %s\n", agreed(clientAuth.CapUnixFD))
	s.logger.Info("Handshake complete", "guid", serverAuth.ServerGUID.String(), "unix_fd", serverAuth.CapUnixFD)

	if message == "" {
		return nil
	}
	return s.exchange(ctx, connID, message, clientAuth, serverAuth)
}

func (s *session) exchange(ctx context.Context, connID, message string, clientAuth, serverAuth *handshake.Authenticated) error {
	encCtx := variant.NewDBusContext(variant.LE, 0)

	sig := signature.MustParse("(s)")
	value := variant.Struct{message}
	if clientAuth.CapUnixFD {
		sig = signature.MustParse("(sh)")
		value = append(value, variant.UnixFD(os.Stderr.Fd()))
	}

	data, err := variant.EncodeForSignature(encCtx, sig, value)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	defer data.Close()

	sender := transport.NewSender(clientAuth.Socket, s.cfg.Transport)
	sender.SetLogger(s.protocolLogger, connID)
	receiver := transport.NewReceiver(serverAuth.Socket, s.cfg.Transport.MaxPayloadSize)
	receiver.SetLogger(s.protocolLogger, connID)
	receiver.Prepend(serverAuth.Leftover, serverAuth.LeftoverFds)

	n := data.Len()
	if err := sender.Send(ctx, data); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	b, fds, err := receiver.Receive(ctx, n)
	if err != nil {
		return fmt.Errorf("receive: %w", err)
	}
	received := variant.NewData(b, encCtx, fds)
	defer received.Close()

	var got variant.Struct
	if _, err := received.Decode(sig, &got); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	fmt.Fprintf(s.out, "Server received %s: %q (%d bytes, %d fds)\n", sig, got[0], n, fds.Len())
	return nil
}

func agreed(b bool) string {
	if b {
		return "agreed"
	}
	return "refused"
}
