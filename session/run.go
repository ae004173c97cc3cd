// Copyright 2026 The Smart Proxy REX Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/jhoblitt/smart-proxy-remote-execution-ssh/lib/bytebuf"
)

// StreamName identifies which remote stream an output chunk came from.
type StreamName string

const (
	// StreamStdout is the remote command's standard output.
	StreamStdout StreamName = "stdout"
	// StreamStderr is the remote command's standard error.
	StreamStderr StreamName = "stderr"
)

// OutputChunk is one drained read from a remote output stream. Chunks
// from the same stream arrive in order; stdout and stderr interleave
// in arrival order.
type OutputChunk struct {
	Stream StreamName `cbor:"stream"`
	Data   []byte     `cbor:"data"`
	At     time.Time  `cbor:"at"`
}

// OutputSink receives output chunks as the remote command produces
// them. Run calls the sink from a single goroutine, in order.
type OutputSink func(chunk OutputChunk)

// readChunkSize is the scratch read size for draining remote streams.
const readChunkSize = 4096

// Run executes command on the remote host, streaming its output to
// sink, and returns the remote exit code. A non-zero exit code is
// data, not an error: the error return covers transport and protocol
// failures only. Cancelling ctx kills the remote command and returns
// the context's error.
func (c *Client) Run(ctx context.Context, command string, sink OutputSink) (int, error) {
	sess, err := c.sshClient.NewSession()
	if err != nil {
		return 0, fmt.Errorf("open exec channel: %w", err)
	}
	defer sess.Close()

	stdout, err := sess.StdoutPipe()
	if err != nil {
		return 0, fmt.Errorf("attach stdout: %w", err)
	}
	stderr, err := sess.StderrPipe()
	if err != nil {
		return 0, fmt.Errorf("attach stderr: %w", err)
	}

	if err := sess.Start(command); err != nil {
		return 0, fmt.Errorf("start remote command: %w", err)
	}
	c.logger.Debug("remote command started", "command", command)

	// Kill the remote command if the context ends first.
	cancelWatch := make(chan struct{})
	defer close(cancelWatch)
	go func() {
		select {
		case <-ctx.Done():
			_ = sess.Signal(ssh.SIGKILL)
			sess.Close()
		case <-cancelWatch:
		}
	}()

	// Both streams drain into one channel so the sink sees a single
	// ordered sequence without locking.
	chunks := make(chan OutputChunk)
	var drainWait sync.WaitGroup
	drainWait.Add(2)
	go c.drainStream(stdout, StreamStdout, chunks, &drainWait)
	go c.drainStream(stderr, StreamStderr, chunks, &drainWait)
	go func() {
		drainWait.Wait()
		close(chunks)
	}()
	for chunk := range chunks {
		if sink != nil {
			sink(chunk)
		}
	}

	waitErr := sess.Wait()
	if ctx.Err() != nil {
		return 0, ctx.Err()
	}
	if waitErr != nil {
		var exitErr *ssh.ExitError
		if errors.As(waitErr, &exitErr) {
			return exitErr.ExitStatus(), nil
		}
		return 0, fmt.Errorf("wait for remote command: %w", waitErr)
	}
	return 0, nil
}

// drainStream accumulates reads from one remote stream through a byte
// buffer and emits each drained batch as a timestamped chunk.
func (c *Client) drainStream(reader io.Reader, name StreamName, chunks chan<- OutputChunk, drainWait *sync.WaitGroup) {
	defer drainWait.Done()
	buffer := bytebuf.New()
	scratch := make([]byte, readChunkSize)
	for {
		bytesRead, err := reader.Read(scratch)
		if bytesRead > 0 {
			buffer.Append(scratch[:bytesRead])
			chunks <- OutputChunk{
				Stream: name,
				Data:   buffer.ReadAll(),
				At:     c.clock.Now(),
			}
			buffer.ConsumePosition()
		}
		if err != nil {
			// io.EOF is the stream's normal end; any other error
			// also ends the drain and surfaces through Wait.
			return
		}
	}
}
