// Copyright 2026 The Smart Proxy REX Authors
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"context"
	"sync"

	"github.com/jhoblitt/smart-proxy-remote-execution-ssh/session"
)

// State is a job's lifecycle position.
type State string

const (
	// StatePending means the job exists but has not dialed yet.
	StatePending State = "pending"
	// StateRunning means the remote command is executing.
	StateRunning State = "running"
	// StateSucceeded means the remote command exited zero.
	StateSucceeded State = "succeeded"
	// StateFailed means the remote command exited non-zero or the
	// transport failed; see Job.Failure for the latter.
	StateFailed State = "failed"
	// StateCancelled means Cancel ended the job before completion.
	StateCancelled State = "cancelled"
)

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateCancelled
}

// Spec describes one remote script run. Either Script (staged at
// RemotePath and then executed) or a bare Command must be given.
type Spec struct {
	// Target is the SSH destination.
	Target session.Config

	// Script is the script body to upload. Empty means run Command
	// without staging anything.
	Script []byte

	// RemotePath is where Script is staged on the target. Required
	// when Script is set.
	RemotePath string

	// Command is the remote command line. Empty with Script set means
	// execute the staged script.
	Command string
}

// command returns the remote command line to execute.
func (s Spec) command() string {
	if s.Command != "" {
		return s.Command
	}
	return s.RemotePath
}

// Job is one tracked run. All accessors are safe for concurrent use;
// the runner's execution goroutine is the only writer.
type Job struct {
	// ID is the runner-unique job identifier.
	ID string
	// Spec is the request that created the job.
	Spec Spec

	mu       sync.Mutex
	state    State
	exitCode int
	failure  string
	chunks   []session.OutputChunk
	watchers []chan session.OutputChunk

	done   chan struct{}
	cancel context.CancelFunc
}

// State returns the job's current lifecycle state.
func (j *Job) State() State {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.state
}

// ExitCode returns the remote exit code. Meaningful only once the job
// reached StateSucceeded or StateFailed without a transport failure.
func (j *Job) ExitCode() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.exitCode
}

// Failure returns the transport failure message, or "" when the job
// did not fail in transport.
func (j *Job) Failure() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.failure
}

// Chunks returns a copy of all output recorded so far, in order.
func (j *Job) Chunks() []session.OutputChunk {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]session.OutputChunk(nil), j.chunks...)
}

// Done returns a channel closed when the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// emit records a chunk and forwards it to every watcher. Watchers
// must drain their channels; a stalled watcher stalls the job.
func (j *Job) emit(chunk session.OutputChunk) {
	j.mu.Lock()
	j.chunks = append(j.chunks, chunk)
	watchers := append([]chan session.OutputChunk(nil), j.watchers...)
	j.mu.Unlock()
	for _, watcher := range watchers {
		watcher <- chunk
	}
}

// watch registers a new watcher channel and returns it along with a
// replay of the chunks recorded before the watcher existed.
func (j *Job) watch() (replay []session.OutputChunk, live <-chan session.OutputChunk) {
	j.mu.Lock()
	defer j.mu.Unlock()
	watcher := make(chan session.OutputChunk, watcherBuffer)
	if j.state.Terminal() {
		close(watcher)
	} else {
		j.watchers = append(j.watchers, watcher)
	}
	return append([]session.OutputChunk(nil), j.chunks...), watcher
}

// finish moves the job to a terminal state and closes all watcher
// channels. The done channel stays open until markDone so that
// archiving completes before Done observers wake.
func (j *Job) finish(state State, exitCode int, failure string) {
	j.mu.Lock()
	j.state = state
	j.exitCode = exitCode
	j.failure = failure
	watchers := j.watchers
	j.watchers = nil
	j.mu.Unlock()

	for _, watcher := range watchers {
		close(watcher)
	}
}

// markDone closes the done channel.
func (j *Job) markDone() {
	close(j.done)
}

// setRunning marks the job as executing.
func (j *Job) setRunning() {
	j.mu.Lock()
	j.state = StateRunning
	j.mu.Unlock()
}

// watcherBuffer is the per-watcher channel capacity. It absorbs
// bursts so interactive consumers do not stall the job on every
// chunk.
const watcherBuffer = 64
