package transport

import (
	"io"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/iox"
	"code.hybscloud.com/lfq"
)

// DefaultPipeCapacity is the number of chunks each direction of a pipe can
// hold before Send reports would-block.
const DefaultPipeCapacity = 64

// chunk is one Send call in flight.
type chunk struct {
	data []byte
	fds  []int
}

// PipeSocket is one end of an in-memory, non-blocking socket pair.
// Each end must be driven by a single goroutine.
type PipeSocket struct {
	sendQ      *lfq.SPSC[chunk]
	recvQ      *lfq.SPSC[chunk]
	closed     *atomix.Uint32
	peerClosed *atomix.Uint32

	sendSlot chunk
	pending  chunk
}

// pipePair holds both ends, their queues and close flags in a single
// allocation.
type pipePair struct {
	a       PipeSocket
	b       PipeSocket
	closedA atomix.Uint32
	closedB atomix.Uint32
	dataAB  lfq.SPSC[chunk]
	dataBA  lfq.SPSC[chunk]
}

// Pipe creates a connected pair of in-memory sockets with the default
// capacity.
func Pipe() (*PipeSocket, *PipeSocket) {
	return PipeWithCapacity(DefaultPipeCapacity)
}

// MinPipeCapacity is the smallest per-direction capacity of a pipe.
const MinPipeCapacity = 2

// PipeWithCapacity creates a connected pair of in-memory sockets. capacity
// bounds the number of unread Send calls per direction. Values below
// MinPipeCapacity are raised to it, and the queue rounds up to a power of
// two, so the effective capacity may exceed the request.
func PipeWithCapacity(capacity int) (*PipeSocket, *PipeSocket) {
	if capacity < MinPipeCapacity {
		capacity = MinPipeCapacity
	}
	pair := &pipePair{}
	pair.dataAB.Init(capacity)
	pair.dataBA.Init(capacity)

	pair.a = PipeSocket{
		sendQ:      &pair.dataAB,
		recvQ:      &pair.dataBA,
		closed:     &pair.closedA,
		peerClosed: &pair.closedB,
	}
	pair.b = PipeSocket{
		sendQ:      &pair.dataBA,
		recvQ:      &pair.dataAB,
		closed:     &pair.closedB,
		peerClosed: &pair.closedA,
	}
	return &pair.a, &pair.b
}

// Send queues a copy of p. Descriptors are duplicated so the receiver owns
// independent copies and the caller keeps its own.
func (s *PipeSocket) Send(p []byte, fds []int) (int, error) {
	if s.closed.Load() != 0 {
		return 0, ErrClosed
	}
	if s.peerClosed.Load() != 0 {
		return 0, ErrPeerClosed
	}
	if len(p) == 0 && len(fds) == 0 {
		return 0, nil
	}

	c := chunk{data: append([]byte(nil), p...)}
	if len(fds) > 0 {
		dup, err := dupFds(fds)
		if err != nil {
			return 0, err
		}
		c.fds = dup
	}

	s.sendSlot = c
	if err := s.sendQ.Enqueue(&s.sendSlot); err != nil {
		closeFds(c.fds)
		s.sendSlot = chunk{}
		return 0, iox.ErrWouldBlock
	}
	s.sendSlot = chunk{}
	return len(p), nil
}

// Recv reads queued bytes into p. A chunk larger than p is delivered over
// several calls; its descriptors come with the first.
func (s *PipeSocket) Recv(p []byte) (int, []int, error) {
	if s.closed.Load() != 0 {
		return 0, nil, ErrClosed
	}
	if len(s.pending.data) == 0 && len(s.pending.fds) == 0 {
		c, err := s.recvQ.Dequeue()
		if err != nil {
			if s.peerClosed.Load() == 0 {
				return 0, nil, iox.ErrWouldBlock
			}
			// The peer may have queued data right before closing.
			if c, err = s.recvQ.Dequeue(); err != nil {
				return 0, nil, io.EOF
			}
		}
		s.pending = c
	}

	n := copy(p, s.pending.data)
	s.pending.data = s.pending.data[n:]
	fds := s.pending.fds
	s.pending.fds = nil
	return n, fds, nil
}

// CanPassUnixFD reports whether descriptors can be sent through the pipe.
func (s *PipeSocket) CanPassUnixFD() bool {
	return fdPassingSupported
}

// Close marks this end closed. Descriptors in unread chunks are closed,
// including chunks still queued by the peer. The peer reads the remaining
// data and then io.EOF.
func (s *PipeSocket) Close() error {
	if s.closed.Load() != 0 {
		return nil
	}
	s.closed.Add(1)
	closeFds(s.pending.fds)
	s.pending = chunk{}
	for {
		c, err := s.recvQ.Dequeue()
		if err != nil {
			break
		}
		closeFds(c.fds)
	}
	return nil
}
