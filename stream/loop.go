// Copyright 2026 The Smart Proxy REX Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"log/slog"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// ReadHandler consumes input that a [Loop] has filled into a stream.
// The handler drains what it wants with ReadAvailable; anything left
// unread stays buffered for the next call. After the peer closes, the
// handler runs one final time (Available may be zero) before the
// stream leaves the loop — check ClosedByPeer to observe the close.
type ReadHandler func(s *Buffered)

// Loop is a poll-based readiness multiplexer driving many buffered
// streams from a single goroutine: the external event loop the
// fill/drain protocol is designed for. Each Wait call polls every
// registered descriptor, fills streams whose channels are readable,
// and pushes pending output on streams whose channels are writable.
//
// Loop never calls WaitForPendingSends — blocking on one stream would
// starve the rest. It is not safe for concurrent use.
type Loop struct {
	logger  *slog.Logger
	entries []loopEntry
}

type loopEntry struct {
	channel *SocketChannel
	stream  *Buffered
	handler ReadHandler
}

// NewLoop returns an empty loop. A nil logger means slog.Default().
func NewLoop(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{logger: logger}
}

// Add registers a stream. The stream must wrap the given channel, and
// neither may be driven from outside the loop afterwards.
func (l *Loop) Add(channel *SocketChannel, stream *Buffered, handler ReadHandler) {
	l.entries = append(l.entries, loopEntry{channel: channel, stream: stream, handler: handler})
}

// Len returns the number of streams currently registered. Streams
// whose peers have closed are removed during Wait, so a loop drains
// to zero as its channels end.
func (l *Loop) Len() int {
	return len(l.entries)
}

// Wait polls all registered descriptors for up to timeout (negative
// means block until something is ready) and services whatever became
// ready: readable channels are filled and their handlers invoked,
// writable channels with staged output get one SendPending. Returns
// the number of descriptors serviced; zero means the timeout elapsed.
//
// A fatal channel error (anything other than the peer's orderly
// close) aborts the Wait and propagates. The failing stream is
// removed from the loop; the remaining streams are untouched and a
// subsequent Wait resumes them.
func (l *Loop) Wait(timeout time.Duration) (int, error) {
	if len(l.entries) == 0 {
		return 0, nil
	}

	pollFds := make([]unix.PollFd, len(l.entries))
	for i, entry := range l.entries {
		events := int16(unix.POLLIN)
		if entry.stream.PendingOutput() > 0 {
			events |= unix.POLLOUT
		}
		pollFds[i] = unix.PollFd{Fd: int32(entry.channel.Descriptor()), Events: events}
	}

	timeoutMs := -1
	if timeout >= 0 {
		timeoutMs = int(timeout.Milliseconds())
	}
	ready, err := unix.Poll(pollFds, timeoutMs)
	if err == unix.EINTR {
		return 0, nil
	}
	if err != nil {
		return 0, os.NewSyscallError("poll", err)
	}
	if ready == 0 {
		return 0, nil
	}

	serviced := 0
	kept := l.entries[:0]
	for i, entry := range l.entries {
		revents := pollFds[i].Revents
		if revents == 0 {
			kept = append(kept, entry)
			continue
		}
		serviced++

		// POLLHUP and POLLERR arrive without POLLIN on some
		// transports; Fill turns them into a read that observes the
		// close or the fault.
		if revents&(unix.POLLIN|unix.POLLHUP|unix.POLLERR) != 0 {
			if _, fillErr := entry.stream.Fill(0); fillErr != nil {
				l.entries = append(kept, l.entries[i+1:]...)
				return serviced, fillErr
			}
			if entry.stream.Available() > 0 || entry.stream.ClosedByPeer() {
				entry.handler(entry.stream)
			}
		}
		if revents&unix.POLLOUT != 0 && entry.stream.PendingOutput() > 0 {
			if _, sendErr := entry.stream.SendPending(); sendErr != nil {
				l.entries = append(kept, l.entries[i+1:]...)
				return serviced, sendErr
			}
		}

		if entry.stream.ClosedByPeer() {
			l.logger.Debug("stream closed by peer, leaving loop",
				"descriptor", entry.channel.Descriptor())
			continue
		}
		kept = append(kept, entry)
	}
	l.entries = kept
	return serviced, nil
}
