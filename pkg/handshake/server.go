package handshake

import (
	"fmt"

	"code.hybscloud.com/iox"

	"github.com/mash-protocol/busgo/pkg/log"
	"github.com/mash-protocol/busgo/pkg/transport"
)

// ServerHandshake authenticates the server end of a connection.
// It is not safe for concurrent use.
type ServerHandshake struct {
	sock   Socket
	params serverParams
	events eventSink

	step      ServerStep
	recv      lineBuffer
	send      sendBuffer
	capUnixFD bool
}

// NewServerHandshake starts a server handshake on sock. With
// UsePeerCredentials set, the expected uid is taken from the socket when
// it implements transport.PeerCredentials.
func NewServerHandshake(sock Socket, config ServerConfig) (*ServerHandshake, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	clientUID := config.ClientUID
	if config.UsePeerCredentials {
		if pc, ok := sock.(transport.PeerCredentials); ok {
			uid, err := pc.PeerUID()
			if err != nil {
				return nil, fmt.Errorf("peer credentials: %w", err)
			}
			clientUID = uid
		}
	}

	return &ServerHandshake{
		sock: sock,
		params: serverParams{
			clientUID: clientUID,
			guid:      config.GUID,
			rejected:  rejectedLine(config.Mechanisms),
			allowFd:   config.AllowUnixFD && sock.CanPassUnixFD(),
		},
		events: newEventSink(config.ProtocolLogger, config.ConnectionID, log.RoleServer),
		step:   ServerWaitingForNull,
		recv:   lineBuffer{max: config.MaxLineLength},
	}, nil
}

// Step returns the current step.
func (h *ServerHandshake) Step() ServerStep {
	return h.step
}

// Advance implements Handshake. A client presenting the wrong uid is
// answered with REJECTED and may retry; Advance keeps serving it until the
// stream ends.
func (h *ServerHandshake) Advance() error {
	err := h.advance()
	if err != nil && !iox.IsWouldBlock(err) {
		h.recv.discard()
	}
	return err
}

func (h *ServerHandshake) advance() error {
	for {
		switch h.step {
		case ServerWaitingForNull:
			b, err := h.recv.readByte(h.sock)
			if err != nil {
				h.events.failure(err, h.step.String())
				return err
			}
			if b != 0 {
				err := fmt.Errorf("%w: got 0x%02x", ErrNotNul, b)
				h.events.failure(err, h.step.String())
				return err
			}
			h.setStep(ServerWaitingForAuth)

		case ServerWaitingForAuth, ServerWaitingForBegin:
			line, err := h.recv.readLine(h.sock)
			if err != nil {
				h.events.failure(err, h.step.String())
				return err
			}
			h.events.line(log.DirectionIn, line)

			res, err := serverTransition(h.step, line, h.params)
			if err != nil {
				h.events.failure(err, line)
				return err
			}
			h.capUnixFD = res.fd.apply(h.capUnixFD)
			if res.reply != "" {
				h.events.line(log.DirectionOut, res.reply)
				h.send.queue(res.reply)
			}
			h.setStep(res.next)

		case ServerSendingAuthOK, ServerSendingAuthError, ServerSendingBeginMessage:
			if err := h.send.flush(h.sock); err != nil {
				h.events.failure(err, h.step.String())
				return err
			}
			h.setStep(serverAfterFlush(h.step))

		case ServerDone:
			return nil

		default:
			return fmt.Errorf("%w: invalid step %d", ErrHandshake, h.step)
		}
	}
}

func (h *ServerHandshake) setStep(next ServerStep) {
	h.events.state(h.step, next)
	h.step = next
}

// NextIoOperation implements Handshake.
func (h *ServerHandshake) NextIoOperation() transport.IoOperation {
	return serverIoOperation(h.step)
}

// TryFinish implements Handshake.
func (h *ServerHandshake) TryFinish() (*Authenticated, error) {
	if h.step != ServerDone {
		return nil, fmt.Errorf("%w: server in %s", ErrNotDone, h.step)
	}
	leftover, leftoverFds := h.recv.takeLeftover()
	return &Authenticated{
		Socket:      h.sock,
		ServerGUID:  h.params.guid,
		CapUnixFD:   h.capUnixFD,
		Leftover:    leftover,
		LeftoverFds: leftoverFds,
	}, nil
}

// Socket implements Handshake.
func (h *ServerHandshake) Socket() Socket {
	return h.sock
}
