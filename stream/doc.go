// Copyright 2026 The Smart Proxy REX Authors
// SPDX-License-Identifier: Apache-2.0

// Package stream layers accumulate-then-drain semantics on top of a
// non-blocking duplex channel, for use underneath a readiness-driven
// event loop.
//
// The package is organized around the data flow:
//
//   - channel.go: the minimal duplex channel contract ([Channel]) and
//     the write-readiness extension ([Waitable])
//   - buffered.go: [Buffered], pairing a channel with one inbound and
//     one outbound byte buffer and the fill/drain/enqueue/flush protocol
//   - socket.go: [SocketChannel], the file-descriptor implementation
//     built on non-blocking reads, writes, and poll(2)
//   - loop.go: [Loop], a poll-based readiness multiplexer that drives
//     many buffered streams from a single goroutine
//
// A [Buffered] stream is a single-threaded building block: an outer
// loop detects that the channel is readable and calls Fill, drains
// decoded bytes with ReadAvailable, stages outbound bytes with Enqueue,
// and pushes them with SendPending when the channel is writable. Only
// WaitForPendingSends blocks, and only on the one channel's writable
// state. Running many streams concurrently is the outer loop's job;
// nothing here locks or schedules.
package stream
