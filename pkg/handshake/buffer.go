package handshake

import (
	"bytes"
	"fmt"

	"github.com/mash-protocol/busgo/pkg/transport"
	"github.com/mash-protocol/busgo/pkg/variant"
)

// recvChunkSize is how much is read from the socket at a time. Bytes past
// the current line stay buffered for the next one.
const recvChunkSize = 256

var crlf = []byte("\r\n")

// lineBuffer accumulates received bytes and splits them into lines.
// Descriptors received along the way belong to the first message after the
// handshake; they are kept until takeLeftover or discard.
type lineBuffer struct {
	buf []byte
	fds []int
	max int
	tmp [recvChunkSize]byte
}

// readLine returns the next CRLF-terminated line without the terminator.
// On error (including would-block) everything received so far stays
// buffered.
func (b *lineBuffer) readLine(sock transport.Socket) (string, error) {
	for {
		if i := bytes.Index(b.buf, crlf); i >= 0 {
			line := string(b.buf[:i])
			b.consume(i + len(crlf))
			return line, nil
		}
		if len(b.buf) >= b.max {
			return "", fmt.Errorf("%w: more than %d bytes without CRLF", ErrLineTooLong, b.max)
		}
		if err := b.fill(sock); err != nil {
			return "", err
		}
	}
}

// readByte returns the next single byte.
func (b *lineBuffer) readByte(sock transport.Socket) (byte, error) {
	for len(b.buf) == 0 {
		if err := b.fill(sock); err != nil {
			return 0, err
		}
	}
	c := b.buf[0]
	b.consume(1)
	return c, nil
}

// fill performs one Recv.
func (b *lineBuffer) fill(sock transport.Socket) error {
	n, fds, err := sock.Recv(b.tmp[:])
	b.fds = append(b.fds, fds...)
	if err != nil {
		return err
	}
	b.buf = append(b.buf, b.tmp[:n]...)
	return nil
}

func (b *lineBuffer) consume(n int) {
	b.buf = append(b.buf[:0], b.buf[n:]...)
}

// takeLeftover returns a copy of the bytes received past the last line and
// hands over the received descriptors. Descriptors go to the first caller;
// with no leftover bytes they cannot belong to a message and are closed.
func (b *lineBuffer) takeLeftover() ([]byte, *variant.OwnedFds) {
	if len(b.buf) == 0 {
		b.discard()
		return nil, nil
	}
	data := append([]byte(nil), b.buf...)
	if len(b.fds) == 0 {
		return data, nil
	}
	fds := variant.NewOwnedFds(b.fds...)
	b.fds = nil
	return data, fds
}

// discard closes the received descriptors.
func (b *lineBuffer) discard() {
	if len(b.fds) > 0 {
		_ = variant.NewOwnedFds(b.fds...).Close()
		b.fds = nil
	}
}

// sendBuffer holds a queued line until the socket accepted all of it.
type sendBuffer struct {
	buf []byte
}

func (s *sendBuffer) queue(line string) {
	s.buf = append(s.buf, line...)
}

func (s *sendBuffer) pending() bool {
	return len(s.buf) > 0
}

// flush sends the queued bytes. On error the unsent rest stays queued.
func (s *sendBuffer) flush(sock transport.Socket) error {
	for len(s.buf) > 0 {
		n, err := sock.Send(s.buf, nil)
		if err != nil {
			return err
		}
		s.buf = s.buf[n:]
	}
	s.buf = nil
	return nil
}
