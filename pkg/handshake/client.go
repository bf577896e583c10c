package handshake

import (
	"fmt"

	"code.hybscloud.com/iox"

	"github.com/mash-protocol/busgo/pkg/log"
	"github.com/mash-protocol/busgo/pkg/transport"
)

// ClientHandshake authenticates the client end of a connection.
// It is not safe for concurrent use.
type ClientHandshake struct {
	sock   Socket
	config ClientConfig
	events eventSink

	step      ClientStep
	recv      lineBuffer
	send      sendBuffer
	guid      GUID
	capUnixFD bool
}

// NewClientHandshake starts a client handshake on sock.
func NewClientHandshake(sock Socket, config ClientConfig) (*ClientHandshake, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &ClientHandshake{
		sock:   sock,
		config: config,
		events: newEventSink(config.ProtocolLogger, config.ConnectionID, log.RoleClient),
		step:   ClientInit,
		recv:   lineBuffer{max: config.MaxLineLength},
	}, nil
}

// Step returns the current step.
func (h *ClientHandshake) Step() ClientStep {
	return h.step
}

// Advance implements Handshake.
func (h *ClientHandshake) Advance() error {
	err := h.advance()
	if err != nil && !iox.IsWouldBlock(err) {
		h.recv.discard()
	}
	return err
}

func (h *ClientHandshake) advance() error {
	for {
		if err := h.send.flush(h.sock); err != nil {
			h.events.failure(err, h.step.String())
			return err
		}

		switch h.step {
		case ClientInit:
			h.apply(clientStart(h.config.UID))

		case ClientWaitingForAuthReply, ClientWaitingForFdNegotiationReply:
			line, err := h.recv.readLine(h.sock)
			if err != nil {
				h.events.failure(err, h.step.String())
				return err
			}
			h.events.line(log.DirectionIn, line)

			negotiate := h.config.NegotiateUnixFD && h.sock.CanPassUnixFD()
			res, err := clientTransition(h.step, line, negotiate)
			if err != nil {
				h.events.failure(err, line)
				return err
			}
			h.apply(res)

		case ClientDone:
			return nil

		default:
			return fmt.Errorf("%w: invalid step %d", ErrHandshake, h.step)
		}
	}
}

func (h *ClientHandshake) apply(res clientResult) {
	if !res.guid.IsZero() {
		h.guid = res.guid
	}
	h.capUnixFD = res.fd.apply(h.capUnixFD)
	if res.reply != "" {
		h.events.line(log.DirectionOut, res.reply)
		h.send.queue(res.reply)
	}
	h.events.state(h.step, res.next)
	h.step = res.next
}

// NextIoOperation implements Handshake.
func (h *ClientHandshake) NextIoOperation() transport.IoOperation {
	return clientIoOperation(h.step, h.send.pending())
}

// TryFinish implements Handshake. The handshake is done once BEGIN has
// been flushed.
func (h *ClientHandshake) TryFinish() (*Authenticated, error) {
	if h.step != ClientDone || h.send.pending() {
		return nil, fmt.Errorf("%w: client in %s", ErrNotDone, h.step)
	}
	leftover, leftoverFds := h.recv.takeLeftover()
	return &Authenticated{
		Socket:      h.sock,
		ServerGUID:  h.guid,
		CapUnixFD:   h.capUnixFD,
		Leftover:    leftover,
		LeftoverFds: leftoverFds,
	}, nil
}

// Socket implements Handshake.
func (h *ClientHandshake) Socket() Socket {
	return h.sock
}
