//go:build unix

package transport

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const fdPassingSupported = true

// dupFds duplicates fds with close-on-exec set. On failure the copies made
// so far are closed.
func dupFds(fds []int) ([]int, error) {
	out := make([]int, 0, len(fds))
	for _, fd := range fds {
		dup, err := unix.FcntlInt(uintptr(fd), unix.F_DUPFD_CLOEXEC, 0)
		if err != nil {
			closeFds(out)
			return nil, fmt.Errorf("dup fd %d: %w", fd, err)
		}
		out = append(out, dup)
	}
	return out, nil
}

func closeFds(fds []int) {
	for _, fd := range fds {
		_ = unix.Close(fd)
	}
}
