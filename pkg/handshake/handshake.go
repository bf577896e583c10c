package handshake

import (
	"context"

	"code.hybscloud.com/iox"
	"github.com/mash-protocol/busgo/pkg/transport"
	"github.com/mash-protocol/busgo/pkg/variant"
)

// Socket is the byte stream a handshake runs over.
type Socket = transport.Socket

// Handshake is implemented by ClientHandshake and ServerHandshake.
type Handshake interface {
	// Advance makes as much progress as the socket allows. It returns nil
	// once the handshake is done, iox.ErrWouldBlock when it must wait for
	// the direction NextIoOperation reports, or a fatal error.
	Advance() error

	// NextIoOperation returns the readiness Advance is waiting for.
	NextIoOperation() transport.IoOperation

	// TryFinish converts a finished handshake into its result. Before
	// that it returns ErrNotDone and leaves the handshake untouched.
	TryFinish() (*Authenticated, error)

	// Socket returns the underlying socket, for readiness registration.
	Socket() Socket
}

// Compile-time interface satisfaction checks.
var (
	_ Handshake = (*ClientHandshake)(nil)
	_ Handshake = (*ServerHandshake)(nil)
)

// Authenticated is the result of a completed handshake.
type Authenticated struct {
	// Socket is the authenticated stream, ready for bus messages.
	Socket Socket

	// ServerGUID identifies the server.
	ServerGUID GUID

	// CapUnixFD reports whether both sides agreed on descriptor passing.
	CapUnixFD bool

	// Leftover holds bytes that arrived after the last handshake line.
	// They are the start of the first message.
	Leftover []byte

	// LeftoverFds holds descriptors received during the handshake, which
	// belong to the message starting in Leftover. The caller owns them;
	// only the first TryFinish returns them. Nil when none arrived.
	LeftoverFds *variant.OwnedFds
}

// BlockingFinish drives h to completion, waiting for socket readiness
// whenever it would block. ctx bounds only the waiting.
func BlockingFinish(ctx context.Context, h Handshake) (*Authenticated, error) {
	var bo iox.Backoff
	for {
		err := h.Advance()
		if err == nil {
			return h.TryFinish()
		}
		if !iox.IsWouldBlock(err) {
			return nil, err
		}
		if err := transport.Wait(ctx, h.Socket(), h.NextIoOperation(), &bo); err != nil {
			return nil, err
		}
	}
}

// FinishPair drives both ends of an in-process handshake on the calling
// goroutine, interleaving them and backing off when neither can move.
func FinishPair(ctx context.Context, client, server Handshake) (*Authenticated, *Authenticated, error) {
	var bo iox.Backoff
	clientDone, serverDone := false, false
	for !clientDone || !serverDone {
		progress := false
		if !clientDone {
			switch err := client.Advance(); {
			case err == nil:
				clientDone, progress = true, true
			case !iox.IsWouldBlock(err):
				return nil, nil, err
			}
		}
		if !serverDone {
			switch err := server.Advance(); {
			case err == nil:
				serverDone, progress = true, true
			case !iox.IsWouldBlock(err):
				return nil, nil, err
			}
		}
		if progress {
			bo.Reset()
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		bo.Wait()
	}

	c, err := client.TryFinish()
	if err != nil {
		return nil, nil, err
	}
	s, err := server.TryFinish()
	if err != nil {
		return nil, nil, err
	}
	return c, s, nil
}
