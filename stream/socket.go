// Copyright 2026 The Smart Proxy REX Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// Compile-time interface checks.
var (
	_ Channel  = (*SocketChannel)(nil)
	_ Waitable = (*SocketChannel)(nil)
)

// SocketChannel implements [Channel] and [Waitable] over a file
// descriptor using non-blocking reads and writes, with poll(2) for the
// write-readiness wait. It works with any descriptor that supports
// non-blocking I/O: TCP sockets, Unix sockets, pipes, PTY masters.
//
// The channel takes ownership of the descriptor; Close releases it.
type SocketChannel struct {
	fd int
}

// NewSocketChannel puts fd into non-blocking mode and wraps it. The
// caller must not use fd directly afterwards.
func NewSocketChannel(fd int) (*SocketChannel, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("set descriptor %d non-blocking: %w", fd, err)
	}
	return &SocketChannel{fd: fd}, nil
}

// Descriptor returns the underlying file descriptor, for callers that
// multiplex readiness over many channels.
func (c *SocketChannel) Descriptor() int {
	return c.fd
}

// Receive reads up to maxBytes without blocking. No data available
// returns an empty result; the peer's orderly close returns io.EOF.
func (c *SocketChannel) Receive(maxBytes int) ([]byte, error) {
	buffer := make([]byte, maxBytes)
	for {
		bytesRead, err := unix.Read(c.fd, buffer)
		switch err {
		case nil:
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return nil, nil
		default:
			return nil, os.NewSyscallError("read", err)
		}
		if bytesRead == 0 {
			return nil, io.EOF
		}
		return buffer[:bytesRead], nil
	}
}

// Send writes as much of data as the descriptor will accept without
// blocking and returns the count. A full kernel buffer returns 0.
func (c *SocketChannel) Send(data []byte) (int, error) {
	for {
		bytesSent, err := unix.Write(c.fd, data)
		switch err {
		case nil:
			return bytesSent, nil
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return 0, nil
		default:
			return 0, os.NewSyscallError("write", err)
		}
	}
}

// WaitWritable blocks in poll(2) until the descriptor is writable.
// A hangup or error condition reported by poll surfaces as an error —
// the channel is no longer usable for sends.
func (c *SocketChannel) WaitWritable() error {
	for {
		pollFds := []unix.PollFd{{Fd: int32(c.fd), Events: unix.POLLOUT}}
		_, err := unix.Poll(pollFds, -1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return os.NewSyscallError("poll", err)
		}
		revents := pollFds[0].Revents
		if revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			return fmt.Errorf("descriptor %d no longer writable (revents %#x)", c.fd, revents)
		}
		if revents&unix.POLLOUT != 0 {
			return nil
		}
	}
}

// Close releases the descriptor. A blocked WaitWritable on another
// goroutine is not interrupted — invalidating a channel mid-wait is
// the caller's affair (see Buffered.WaitForPendingSends).
func (c *SocketChannel) Close() error {
	if err := unix.Close(c.fd); err != nil {
		return os.NewSyscallError("close", err)
	}
	return nil
}
