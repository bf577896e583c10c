//go:build linux

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"code.hybscloud.com/iox"
	"golang.org/x/sys/unix"
)

// maxRecvFds is the most descriptors a single recvmsg call accepts
// (SCM_MAX_FD on Linux).
const maxRecvFds = 253

// pollInterval bounds each poll(2) call so WaitReady notices cancellation.
const pollInterval = 100

// UnixSocket is a non-blocking AF_UNIX stream socket.
type UnixSocket struct {
	mu     sync.Mutex
	fd     int
	closed bool
	oob    []byte
}

// Compile-time interface satisfaction checks.
var (
	_ Socket          = (*UnixSocket)(nil)
	_ Waiter          = (*UnixSocket)(nil)
	_ PeerCredentials = (*UnixSocket)(nil)
)

// SocketPair creates a connected pair of non-blocking unix sockets.
func SocketPair() (*UnixSocket, *UnixSocket, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("socketpair: %w", err)
	}
	return newUnixSocket(fds[0]), newUnixSocket(fds[1]), nil
}

// NewUnixSocket takes a non-blocking duplicate of the connection's
// descriptor. The caller keeps ownership of conn.
func NewUnixSocket(conn *net.UnixConn) (*UnixSocket, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return nil, err
	}
	var dup int
	var dupErr error
	if err := raw.Control(func(fd uintptr) {
		dup, dupErr = unix.FcntlInt(fd, unix.F_DUPFD_CLOEXEC, 0)
	}); err != nil {
		return nil, err
	}
	if dupErr != nil {
		return nil, fmt.Errorf("dup socket: %w", dupErr)
	}
	if err := unix.SetNonblock(dup, true); err != nil {
		_ = unix.Close(dup)
		return nil, fmt.Errorf("set non-blocking: %w", err)
	}
	return newUnixSocket(dup), nil
}

func newUnixSocket(fd int) *UnixSocket {
	return &UnixSocket{
		fd:  fd,
		oob: make([]byte, unix.CmsgSpace(maxRecvFds*4)),
	}
}

// Fd returns the raw descriptor, or -1 after Close.
func (s *UnixSocket) Fd() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return -1
	}
	return s.fd
}

// Send writes a prefix of p with fds attached as SCM_RIGHTS.
func (s *UnixSocket) Send(p []byte, fds []int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}

	var oob []byte
	if len(fds) > 0 {
		oob = unix.UnixRights(fds...)
	}
	for {
		n, err := unix.SendmsgN(s.fd, p, oob, nil, unix.MSG_NOSIGNAL)
		if err == nil {
			return n, nil
		}
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.EAGAIN):
			return 0, iox.ErrWouldBlock
		case errors.Is(err, unix.EPIPE), errors.Is(err, unix.ECONNRESET):
			return 0, fmt.Errorf("%w: %v", ErrPeerClosed, err)
		default:
			return 0, fmt.Errorf("sendmsg: %w", err)
		}
	}
}

// Recv reads into p and collects any SCM_RIGHTS descriptors. Received
// descriptors have close-on-exec set.
func (s *UnixSocket) Recv(p []byte) (int, []int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, nil, ErrClosed
	}

	for {
		n, oobn, flags, _, err := unix.Recvmsg(s.fd, p, s.oob, unix.MSG_CMSG_CLOEXEC)
		if err != nil {
			switch {
			case errors.Is(err, unix.EINTR):
				continue
			case errors.Is(err, unix.EAGAIN):
				return 0, nil, iox.ErrWouldBlock
			case errors.Is(err, unix.ECONNRESET):
				return 0, nil, io.EOF
			default:
				return 0, nil, fmt.Errorf("recvmsg: %w", err)
			}
		}

		fds, err := parseRights(s.oob[:oobn])
		if err != nil {
			return 0, nil, err
		}
		if flags&unix.MSG_CTRUNC != 0 {
			closeFds(fds)
			return 0, nil, ErrControlTruncated
		}
		if n == 0 && len(p) > 0 && len(fds) == 0 {
			return 0, nil, io.EOF
		}
		return n, fds, nil
	}
}

func parseRights(oob []byte) ([]int, error) {
	if len(oob) == 0 {
		return nil, nil
	}
	msgs, err := unix.ParseSocketControlMessage(oob)
	if err != nil {
		return nil, fmt.Errorf("parse control message: %w", err)
	}
	var fds []int
	for i := range msgs {
		if msgs[i].Header.Level != unix.SOL_SOCKET || msgs[i].Header.Type != unix.SCM_RIGHTS {
			continue
		}
		rights, err := unix.ParseUnixRights(&msgs[i])
		if err != nil {
			closeFds(fds)
			return nil, fmt.Errorf("parse rights: %w", err)
		}
		fds = append(fds, rights...)
	}
	return fds, nil
}

// CanPassUnixFD always reports true for unix sockets.
func (s *UnixSocket) CanPassUnixFD() bool {
	return true
}

// WaitReady blocks until the socket is readable or writable, as op asks,
// or ctx is done. Hang-up and error conditions count as ready so the next
// Send or Recv reports them.
func (s *UnixSocket) WaitReady(ctx context.Context, op IoOperation) error {
	var events int16
	switch op {
	case IoRead:
		events = unix.POLLIN
	case IoWrite:
		events = unix.POLLOUT
	default:
		return nil
	}

	fd := s.Fd()
	if fd < 0 {
		return ErrClosed
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		pollFds := []unix.PollFd{{Fd: int32(fd), Events: events}}
		count, err := unix.Poll(pollFds, pollInterval)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("poll: %w", err)
		}
		if count > 0 {
			return nil
		}
	}
}

// PeerUID returns the user id of the connected process (SO_PEERCRED).
func (s *UnixSocket) PeerUID() (uint32, error) {
	fd := s.Fd()
	if fd < 0 {
		return 0, ErrClosed
	}
	cred, err := unix.GetsockoptUcred(fd, unix.SOL_SOCKET, unix.SO_PEERCRED)
	if err != nil {
		return 0, fmt.Errorf("SO_PEERCRED: %w", err)
	}
	return cred.Uid, nil
}

// Close closes the descriptor. It is safe to call Close multiple times.
func (s *UnixSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return unix.Close(s.fd)
}
