package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"code.hybscloud.com/iox"
	"github.com/mash-protocol/busgo/pkg/log"
	"github.com/mash-protocol/busgo/pkg/variant"
)

// Payload errors.
var (
	// ErrPayloadTooLarge indicates the payload exceeds the maximum size.
	ErrPayloadTooLarge = errors.New("payload too large")

	// ErrPayloadEmpty indicates an empty payload.
	ErrPayloadEmpty = errors.New("payload is empty")

	// ErrPayloadTruncated indicates the peer closed mid-payload.
	ErrPayloadTruncated = errors.New("payload truncated")

	// ErrSendInProgress is returned when queueing while a payload is
	// still being flushed.
	ErrSendInProgress = errors.New("send in progress")
)

// Wait blocks until s is likely ready for op. Sockets implementing Waiter
// are polled; others are retried after an adaptive backoff.
func Wait(ctx context.Context, s Socket, op IoOperation, bo *iox.Backoff) error {
	if w, ok := s.(Waiter); ok {
		return w.WaitReady(ctx, op)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	bo.Wait()
	return nil
}

// Sender flushes encoded payloads to a socket. The descriptor table of a
// payload travels with its first byte and is closed once every byte has
// been accepted by the socket.
type Sender struct {
	sock   Socket
	config SenderConfig

	data    []byte
	fds     *variant.OwnedFds
	sent    int
	fdsSent bool

	// Logging support (optional)
	logger log.Logger
	connID string
}

// NewSender creates a sender. An invalid config is replaced by the default.
func NewSender(sock Socket, config SenderConfig) *Sender {
	if config.Validate() != nil {
		config = DefaultSenderConfig()
	}
	return &Sender{sock: sock, config: config}
}

// SetLogger configures logging for this sender.
// Pass nil to disable logging.
func (s *Sender) SetLogger(logger log.Logger, connID string) {
	s.logger = logger
	s.connID = connID
}

// Queue takes ownership of d's descriptors and prepares its bytes for
// Flush. On error the descriptors are left with the caller.
func (s *Sender) Queue(d *variant.Data) error {
	if s.data != nil {
		return ErrSendInProgress
	}
	if d.Len() == 0 {
		return ErrPayloadEmpty
	}
	if d.Len() > s.config.MaxPayloadSize {
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, d.Len(), s.config.MaxPayloadSize)
	}
	if d.Fds().Len() > 0 && !s.sock.CanPassUnixFD() {
		return ErrFdPassingUnsupported
	}
	s.data = d.Bytes()
	s.fds = d.Fds()
	s.sent = 0
	s.fdsSent = false
	return nil
}

// Pending reports whether a queued payload has bytes left to send.
func (s *Sender) Pending() bool {
	return s.data != nil
}

// Flush sends as much of the queued payload as the socket accepts.
// It returns iox.ErrWouldBlock when the socket is full; progress is kept
// and Flush can be retried.
func (s *Sender) Flush() error {
	for s.sent < len(s.data) {
		end := min(s.sent+s.config.ChunkSize, len(s.data))
		var fds []int
		if !s.fdsSent {
			fds = s.fds.Fds()
		}
		n, err := s.sock.Send(s.data[s.sent:end], fds)
		if err != nil {
			if !iox.IsWouldBlock(err) {
				s.fail(err)
			}
			return err
		}
		if n > 0 {
			s.fdsSent = true
			s.sent += n
		}
	}
	if s.data == nil {
		return nil
	}

	if s.logger != nil {
		s.logger.Log(makeFrameEvent(s.connID, log.DirectionOut, s.data, s.fds.Len()))
	}
	err := s.fds.Close()
	s.data = nil
	s.fds = nil
	return err
}

// Send queues d and flushes it, waiting for writability as needed.
func (s *Sender) Send(ctx context.Context, d *variant.Data) error {
	if err := s.Queue(d); err != nil {
		return err
	}
	var bo iox.Backoff
	for {
		err := s.Flush()
		if err == nil {
			return nil
		}
		if !iox.IsWouldBlock(err) {
			return err
		}
		if err := Wait(ctx, s.sock, IoWrite, &bo); err != nil {
			return err
		}
	}
}

// fail drops the queued payload after a fatal socket error. Bytes already
// sent leave the stream unusable, so there is nothing to resume.
func (s *Sender) fail(err error) {
	if s.logger != nil {
		s.logger.Log(makeErrorEvent(s.connID, err))
	}
	_ = s.fds.Close()
	s.data = nil
	s.fds = nil
}

// Receiver reads payloads of known length from a socket.
type Receiver struct {
	sock           Socket
	maxPayloadSize int

	prefix []byte
	buf    []byte
	got    int
	fds    []int

	// Logging support (optional)
	logger log.Logger
	connID string
}

// NewReceiver creates a receiver. maxPayloadSize <= 0 selects
// DefaultMaxPayloadSize.
func NewReceiver(sock Socket, maxPayloadSize int) *Receiver {
	if maxPayloadSize <= 0 {
		maxPayloadSize = DefaultMaxPayloadSize
	}
	return &Receiver{sock: sock, maxPayloadSize: maxPayloadSize}
}

// SetLogger configures logging for this receiver.
// Pass nil to disable logging.
func (r *Receiver) SetLogger(logger log.Logger, connID string) {
	r.logger = logger
	r.connID = connID
}

// Prepend makes b the first bytes returned, ahead of anything on the
// socket. Used for data that arrived together with the handshake. The
// receiver takes ownership of fds, which are delivered with the next
// payload.
func (r *Receiver) Prepend(b []byte, fds *variant.OwnedFds) {
	r.fds = append(fds.Release(), r.fds...)
	if len(b) == 0 {
		return
	}
	r.prefix = append(append([]byte(nil), b...), r.prefix...)
}

// ReadExact reads exactly n bytes and the descriptors that arrived with
// them. It returns iox.ErrWouldBlock when the socket has no more data yet;
// progress is kept and ReadExact must be retried with the same n.
func (r *Receiver) ReadExact(n int) ([]byte, *variant.OwnedFds, error) {
	if n <= 0 {
		return nil, nil, ErrPayloadEmpty
	}
	if n > r.maxPayloadSize {
		return nil, nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, n, r.maxPayloadSize)
	}
	if r.buf == nil {
		r.buf = make([]byte, n)
		r.got = 0
	}

	if len(r.prefix) > 0 {
		c := copy(r.buf[r.got:], r.prefix)
		r.got += c
		r.prefix = r.prefix[c:]
	}

	for r.got < len(r.buf) {
		c, fds, err := r.sock.Recv(r.buf[r.got:])
		r.fds = append(r.fds, fds...)
		if err != nil {
			if iox.IsWouldBlock(err) {
				return nil, nil, err
			}
			if errors.Is(err, io.EOF) && r.got > 0 {
				err = fmt.Errorf("%w: got %d of %d bytes", ErrPayloadTruncated, r.got, len(r.buf))
			}
			r.reset()
			return nil, nil, err
		}
		r.got += c
	}

	data := r.buf
	fds := variant.NewOwnedFds(r.fds...)
	r.buf = nil
	r.fds = nil
	r.got = 0

	if r.logger != nil {
		r.logger.Log(makeFrameEvent(r.connID, log.DirectionIn, data, fds.Len()))
	}
	return data, fds, nil
}

// Receive is the blocking form of ReadExact.
func (r *Receiver) Receive(ctx context.Context, n int) ([]byte, *variant.OwnedFds, error) {
	var bo iox.Backoff
	for {
		data, fds, err := r.ReadExact(n)
		if err == nil {
			return data, fds, nil
		}
		if !iox.IsWouldBlock(err) {
			return nil, nil, err
		}
		if err := Wait(ctx, r.sock, IoRead, &bo); err != nil {
			return nil, nil, err
		}
	}
}

// reset drops a partial read and closes descriptors collected for it.
func (r *Receiver) reset() {
	closeFds(r.fds)
	r.buf = nil
	r.fds = nil
	r.got = 0
}

// makeFrameEvent creates a log event for a payload.
func makeFrameEvent(connID string, direction log.Direction, data []byte, numFds int) log.Event {
	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    direction,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		Frame:        log.NewFrameEvent(data, numFds),
	}
}

func makeErrorEvent(connID string, err error) log.Event {
	return log.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Layer:        log.LayerTransport,
		Category:     log.CategoryError,
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: err.Error(),
		},
	}
}
