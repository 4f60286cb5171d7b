//go:build linux

package eventloop

import (
	"golang.org/x/sys/unix"
)

// openWakeFDs returns a non-blocking eventfd, as both the read and write end.
func openWakeFDs() (int, int, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return -1, -1, err
	}
	return fd, fd, nil
}
