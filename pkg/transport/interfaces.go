package transport

import (
	"context"
	"errors"
)

// Transport errors.
var (
	// ErrClosed is returned when operating on a socket that was closed locally.
	ErrClosed = errors.New("socket closed")

	// ErrPeerClosed is returned when sending to a peer that went away.
	ErrPeerClosed = errors.New("peer closed")

	// ErrFdPassingUnsupported is returned when descriptors are sent over a
	// socket that cannot carry them.
	ErrFdPassingUnsupported = errors.New("descriptor passing not supported")

	// ErrControlTruncated indicates the kernel dropped ancillary data
	// because the receive buffer for it was too small.
	ErrControlTruncated = errors.New("control message truncated")
)

// IoOperation names the readiness direction a non-blocking step waits for.
type IoOperation uint8

const (
	// IoNone means no I/O is needed.
	IoNone IoOperation = iota

	// IoRead means the step waits for the socket to become readable.
	IoRead

	// IoWrite means the step waits for the socket to become writable.
	IoWrite
)

// String returns the operation name.
func (op IoOperation) String() string {
	switch op {
	case IoNone:
		return "NONE"
	case IoRead:
		return "READ"
	case IoWrite:
		return "WRITE"
	default:
		return "UNKNOWN"
	}
}

// Socket is a non-blocking byte stream that may carry unix descriptors.
// Implemented by UnixSocket and PipeSocket.
type Socket interface {
	// Send writes a prefix of p and returns its length. fds are attached
	// to the first byte written. Returns iox.ErrWouldBlock when nothing
	// could be written.
	Send(p []byte, fds []int) (int, error)

	// Recv reads into p. Descriptors received with the bytes are returned
	// and owned by the caller. Returns iox.ErrWouldBlock when nothing is
	// available and io.EOF once the peer closed and all data was read.
	Recv(p []byte) (int, []int, error)

	// CanPassUnixFD reports whether descriptors can be sent.
	CanPassUnixFD() bool

	// Close releases the socket.
	Close() error
}

// Waiter is implemented by sockets that can block until they are ready
// for the given operation.
type Waiter interface {
	WaitReady(ctx context.Context, op IoOperation) error
}

// PeerCredentials is implemented by sockets that know the identity of the
// process on the other end.
type PeerCredentials interface {
	PeerUID() (uint32, error)
}

// Compile-time interface satisfaction checks.
var (
	_ Socket = (*PipeSocket)(nil)
)
