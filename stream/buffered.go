// Copyright 2026 The Smart Proxy REX Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"errors"
	"io"

	"github.com/jhoblitt/smart-proxy-remote-execution-ssh/lib/bytebuf"
)

// DefaultFillSize is the receive size used when Fill is called with a
// non-positive maxBytes. 8 KB comfortably covers the bursts an
// interactive remote session produces between readiness wakeups.
const DefaultFillSize = 8192

// Buffered pairs a duplex channel with one inbound and one outbound
// byte buffer. The two buffers are fully independent: Fill and
// ReadAvailable touch only input, Enqueue and SendPending touch only
// output, and the caller may interleave the two sides freely. Byte
// order within each side is strictly FIFO.
//
// A Buffered stream is not safe for concurrent use and a channel must
// be driven by at most one stream. The buffers are owned exclusively;
// nothing else may mutate them.
type Buffered struct {
	channel Channel
	input   *bytebuf.Buffer
	output  *bytebuf.Buffer

	// inputErrors records recoverable receive conditions, currently
	// only the peer's orderly close observed by Fill. Callers that
	// need to distinguish "no data right now" from "peer closed"
	// inspect this log.
	inputErrors []error
	// outputErrors is the symmetric slot for the send side. The core
	// operations never populate it today; it exists so composing
	// protocol code has one place to record deferred send faults.
	outputErrors []error
}

// NewBuffered wraps channel with fresh input and output buffers. Each
// stream allocates its own pair; buffers are never shared between
// streams.
func NewBuffered(channel Channel) *Buffered {
	return &Buffered{
		channel: channel,
		input:   bytebuf.New(),
		output:  bytebuf.New(),
	}
}

// Fill performs one non-blocking receive of up to maxBytes (or
// DefaultFillSize when maxBytes <= 0) and appends the result to the
// input buffer. Before receiving it discards the input prefix already
// consumed by reads, so input growth stays bounded to one fill's worth
// of data past the read cursor.
//
// Returns the number of bytes received. Zero is a legal non-error
// result: either no data was available or the peer closed in an
// orderly way. The orderly close (io.EOF from the channel) is
// recorded in the input error log rather than returned — see
// InputErrors. Any other channel error is fatal to this call and
// propagates unmodified, with the input buffer untouched.
func (s *Buffered) Fill(maxBytes int) (int, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultFillSize
	}
	s.input.ConsumePosition()

	data, err := s.channel.Receive(maxBytes)
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.inputErrors = append(s.inputErrors, err)
			return 0, nil
		}
		return 0, err
	}
	s.input.Append(data)
	return len(data), nil
}

// ReadAvailable returns up to length unread bytes from the input
// buffer, advancing its cursor. The output side is untouched.
func (s *Buffered) ReadAvailable(length int) []byte {
	return s.input.Read(length)
}

// ReadAllAvailable returns every unread input byte, advancing the
// cursor to the end.
func (s *Buffered) ReadAllAvailable() []byte {
	return s.input.ReadAll()
}

// Available returns the number of unread bytes in the input buffer.
func (s *Buffered) Available() int {
	return s.input.Available()
}

// Enqueue stages data for transmission without touching the channel.
// The bytes sit in the output buffer until SendPending or
// WaitForPendingSends pushes them. There is no backpressure signal
// beyond SendPending's return value; callers must not enqueue faster
// than they drain.
func (s *Buffered) Enqueue(data []byte) {
	s.output.Append(data)
}

// PendingOutput returns the number of bytes staged but not yet
// accepted by the channel.
func (s *Buffered) PendingOutput() int {
	return s.output.Length()
}

// SendPending attempts exactly one non-blocking send of the staged
// output. An empty output buffer returns false without touching the
// channel. Otherwise the bytes the channel accepted are dropped from
// the buffer and SendPending reports whether any were. A short send
// is normal; the remainder stays staged for the next call. A channel
// send error propagates unmodified with the output buffer unchanged.
func (s *Buffered) SendPending() (bool, error) {
	if s.output.Length() == 0 {
		return false, nil
	}
	sent, err := s.channel.Send(s.output.Snapshot())
	if err != nil {
		return false, err
	}
	s.output.Consume(sent)
	return sent > 0, nil
}

// WaitForPendingSends blocks until the output buffer is fully drained.
// It sends what it can immediately, then alternates between waiting
// for the channel to become writable and sending again. This is the
// only blocking operation on a Buffered stream; it must not be called
// from a loop that is multiplexing other streams, because it waits on
// this one channel alone.
//
// A channel that does not implement [Waitable] yields ErrNotWaitable
// if bytes remain after the first send attempt. There is no
// cancellation: to break a stuck flush, invalidate the channel so the
// wait or the send fails.
func (s *Buffered) WaitForPendingSends() error {
	if _, err := s.SendPending(); err != nil {
		return err
	}
	if s.output.Length() == 0 {
		return nil
	}

	waitable, ok := s.channel.(Waitable)
	if !ok {
		return ErrNotWaitable
	}
	for s.output.Length() > 0 {
		if err := waitable.WaitWritable(); err != nil {
			return err
		}
		if _, err := s.SendPending(); err != nil {
			return err
		}
	}
	return nil
}

// InputErrors returns the recoverable receive conditions recorded so
// far, in order of occurrence. The caller must not mutate the slice.
func (s *Buffered) InputErrors() []error {
	return s.inputErrors
}

// OutputErrors returns the send-side error log. The core operations
// never populate it; composing protocol code may.
func (s *Buffered) OutputErrors() []error {
	return s.outputErrors
}

// RecordOutputError appends err to the send-side error log.
func (s *Buffered) RecordOutputError(err error) {
	s.outputErrors = append(s.outputErrors, err)
}

// ClosedByPeer reports whether a Fill has observed the peer's orderly
// close.
func (s *Buffered) ClosedByPeer() bool {
	for _, err := range s.inputErrors {
		if errors.Is(err, io.EOF) {
			return true
		}
	}
	return false
}
