//go:build !linux

package transport

import "fmt"

// SocketPair is only available on Linux.
func SocketPair() (Socket, Socket, error) {
	return nil, nil, fmt.Errorf("socketpair: %w", ErrFdPassingUnsupported)
}
