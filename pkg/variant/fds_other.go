//go:build !unix

package variant

func dupFd(fd int) (int, error) {
	return -1, ErrFdsUnsupported
}

func closeFd(fd int) error {
	return nil
}
