package variant

import (
	"errors"
	"fmt"
)

// OwnedFds is the descriptor table of one encoded or received message.
// Wire values of type 'h' are indices into it.
//
// The table owns its descriptors: Close closes all of them. A table produced
// by an encode must stay open until the transport has sent the bytes that
// refer to it; closing it earlier is a caller bug that cannot be detected
// across the process boundary.
type OwnedFds struct {
	fds    []int
	closed bool
}

// NewOwnedFds takes ownership of fds, for example descriptors received
// alongside a message.
func NewOwnedFds(fds ...int) *OwnedFds {
	return &OwnedFds{fds: append([]int(nil), fds...)}
}

// Len returns the number of descriptors. A nil table is empty.
func (f *OwnedFds) Len() int {
	if f == nil {
		return 0
	}
	return len(f.fds)
}

// Get returns the descriptor at index i.
func (f *OwnedFds) Get(i uint32) (int, error) {
	if f == nil || int64(i) >= int64(len(f.fds)) {
		return -1, fmt.Errorf("%w: index %d, table has %d", ErrFdIndexOutOfRange, i, f.Len())
	}
	return f.fds[i], nil
}

// Fds returns a copy of the raw descriptors, in index order.
func (f *OwnedFds) Fds() []int {
	if f == nil {
		return nil
	}
	return append([]int(nil), f.fds...)
}

// Release returns the descriptors and gives up ownership of them. The
// table is empty afterwards and Close no longer affects them.
func (f *OwnedFds) Release() []int {
	if f == nil {
		return nil
	}
	fds := f.fds
	f.fds = nil
	return fds
}

// Close closes every descriptor. It is safe to call more than once.
func (f *OwnedFds) Close() error {
	if f == nil || f.closed {
		return nil
	}
	f.closed = true
	var errs []error
	for _, fd := range f.fds {
		if err := closeFd(fd); err != nil {
			errs = append(errs, err)
		}
	}
	f.fds = nil
	return errors.Join(errs...)
}

// fdCollector resolves descriptors to table indices during an encode.
// With owned == nil it only counts, for size computation.
type fdCollector struct {
	owned *OwnedFds
	index map[int]uint32
}

func (c *fdCollector) add(fd int) (uint32, error) {
	if fd < 0 {
		return 0, fmt.Errorf("%w: negative file descriptor %d", ErrIncorrectValue, fd)
	}
	if idx, ok := c.index[fd]; ok {
		return idx, nil
	}
	if c.index == nil {
		c.index = make(map[int]uint32)
	}
	idx := uint32(len(c.index))
	if c.owned != nil {
		dup, err := dupFd(fd)
		if err != nil {
			return 0, err
		}
		c.owned.fds = append(c.owned.fds, dup)
	}
	c.index[fd] = idx
	return idx, nil
}

func (c *fdCollector) count() int {
	return len(c.index)
}
