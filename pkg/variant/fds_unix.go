//go:build unix

package variant

import (
	"fmt"

	"golang.org/x/sys/unix"
)

func dupFd(fd int) (int, error) {
	dup, err := unix.FcntlInt(uintptr(fd), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("%w %d: %w", ErrFdDup, fd, err)
	}
	return dup, nil
}

func closeFd(fd int) error {
	return unix.Close(fd)
}
