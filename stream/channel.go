// Copyright 2026 The Smart Proxy REX Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import "errors"

// ErrNotWaitable is returned by [Buffered.WaitForPendingSends] when
// output remains queued but the channel offers no write-readiness
// primitive to block on.
var ErrNotWaitable = errors.New("stream: channel does not support write-readiness waits")

// Channel is the minimal duplex contract a buffered stream drives: a
// non-blocking receive and a non-blocking send. Any transport
// satisfies it — a TCP socket, a pipe, an in-memory test double.
type Channel interface {
	// Receive returns at most maxBytes immediately available bytes.
	// An empty result with a nil error means no data is currently
	// available. An orderly close by the peer is signalled with
	// io.EOF; any other error is a transport fault. Receive must not
	// block.
	Receive(maxBytes int) ([]byte, error)

	// Send transmits as much of data as the transport will accept
	// right now and returns the number of bytes taken. A short count
	// is normal; zero means the transport is currently full. Send
	// must not block.
	Send(data []byte) (int, error)
}

// Waitable is the readiness extension a channel implements when it can
// block until it becomes writable. [Buffered.WaitForPendingSends]
// requires it; everything else on [Buffered] works with a bare
// [Channel].
type Waitable interface {
	// WaitWritable blocks until the channel can accept more outbound
	// bytes, or fails because the channel is no longer usable.
	WaitWritable() error
}
