//go:build !unix

package transport

const fdPassingSupported = false

func dupFds(fds []int) ([]int, error) {
	return nil, ErrFdPassingUnsupported
}

func closeFds(fds []int) {}
