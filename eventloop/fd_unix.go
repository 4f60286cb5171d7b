//go:build linux || darwin

package eventloop

import (
	"encoding/binary"
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

// fdWaker blocks in poll(2) on the read end of a wake fd.
type fdWaker struct {
	pollFds [1]unix.PollFd
	readFd  int
	writeFd int
	buf     [8]byte
	one     [8]byte
}

func newFDWaker() (*fdWaker, error) {
	r, w, err := openWakeFDs()
	if err != nil {
		return nil, err
	}
	x := &fdWaker{
		readFd:  r,
		writeFd: w,
	}
	x.pollFds[0] = unix.PollFd{Fd: int32(r), Events: unix.POLLIN}
	// eventfd requires an 8 byte counter increment, pipes accept any bytes
	binary.NativeEndian.PutUint64(x.one[:], 1)
	return x, nil
}

func (x *fdWaker) wait(timeout time.Duration) error {
	x.pollFds[0].Revents = 0
	n, err := unix.Poll(x.pollFds[:], pollTimeoutMillis(timeout))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			// spurious, the loop recomputes its deadline
			return nil
		}
		return err
	}
	if n > 0 {
		x.drain()
	}
	return nil
}

// drain reads until the (non-blocking) fd would block.
func (x *fdWaker) drain() {
	for {
		if _, err := unix.Read(x.readFd, x.buf[:]); err != nil {
			return
		}
	}
}

func (x *fdWaker) wake() error {
	_, err := unix.Write(x.writeFd, x.one[:])
	if errors.Is(err, unix.EAGAIN) {
		// counter or pipe is saturated, a wake-up is already pending
		return nil
	}
	return err
}

func (x *fdWaker) close() error {
	err := unix.Close(x.readFd)
	if x.writeFd != x.readFd {
		if err2 := unix.Close(x.writeFd); err == nil {
			err = err2
		}
	}
	return err
}
