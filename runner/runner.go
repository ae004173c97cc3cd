// Copyright 2026 The Smart Proxy REX Authors
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jhoblitt/smart-proxy-remote-execution-ssh/lib/clock"
	"github.com/jhoblitt/smart-proxy-remote-execution-ssh/session"
)

// Executor is the remote-execution surface a job drives. It is the
// subset of [session.Client] the runner needs, kept as an interface so
// tests substitute a scripted fake.
type Executor interface {
	UploadScript(ctx context.Context, content []byte, remotePath string) error
	Run(ctx context.Context, command string, sink session.OutputSink) (int, error)
	Close() error
}

// Compile-time check that the real client satisfies Executor.
var _ Executor = (*session.Client)(nil)

// DialFunc opens an Executor for a job's target.
type DialFunc func(ctx context.Context, cfg session.Config) (Executor, error)

// Options configures a Runner.
type Options struct {
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger

	// Clock is used for archive bookkeeping. If nil, the real clock
	// is used.
	Clock clock.Clock

	// ArchiveDir is where finished job records are written. Empty
	// disables archiving.
	ArchiveDir string

	// Dial opens the SSH connection for each job. Nil means
	// session.Dial with default client options.
	Dial DialFunc
}

// Runner starts, tracks, and cancels remote script runs.
type Runner struct {
	logger     *slog.Logger
	clock      clock.Clock
	archiveDir string
	dial       DialFunc

	mu     sync.Mutex
	jobs   map[string]*Job
	nextID int
}

// New returns a Runner with the given options.
func New(options Options) *Runner {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}
	dial := options.Dial
	if dial == nil {
		dial = func(ctx context.Context, cfg session.Config) (Executor, error) {
			return session.Dial(ctx, cfg, session.ClientOptions{Logger: logger, Clock: clk})
		}
	}
	return &Runner{
		logger:     logger,
		clock:      clk,
		archiveDir: options.ArchiveDir,
		dial:       dial,
		jobs:       make(map[string]*Job),
	}
}

// Start validates spec and launches the run asynchronously. The
// returned Job is immediately trackable; wait on Job.Done or consume
// Watch to follow it.
func (r *Runner) Start(ctx context.Context, spec Spec) (*Job, error) {
	if len(spec.Script) > 0 && spec.RemotePath == "" {
		return nil, errors.New("runner: spec has a script but no remote path to stage it at")
	}
	if len(spec.Script) == 0 && spec.Command == "" {
		return nil, errors.New("runner: spec has neither script nor command")
	}

	jobCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.nextID++
	job := &Job{
		ID:     fmt.Sprintf("job-%d", r.nextID),
		Spec:   spec,
		state:  StatePending,
		done:   make(chan struct{}),
		cancel: cancel,
	}
	r.jobs[job.ID] = job
	r.mu.Unlock()

	r.logger.Info("job started", "job", job.ID, "target", spec.Target.Address(), "command", spec.command())
	go r.execute(jobCtx, job)
	return job, nil
}

// Job returns a tracked job by ID.
func (r *Runner) Job(id string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	return job, ok
}

// Watch returns a replay of the chunks recorded so far and a live
// channel carrying subsequent chunks. The live channel is closed when
// the job finishes (immediately, for a finished job). The caller must
// drain it promptly; a stalled watcher stalls the job.
func (r *Runner) Watch(id string) ([]session.OutputChunk, <-chan session.OutputChunk, error) {
	job, ok := r.Job(id)
	if !ok {
		return nil, nil, fmt.Errorf("runner: no such job %q", id)
	}
	replay, live := job.watch()
	return replay, live, nil
}

// Cancel requests termination of a running job. Cancelling a finished
// job is a no-op.
func (r *Runner) Cancel(id string) error {
	job, ok := r.Job(id)
	if !ok {
		return fmt.Errorf("runner: no such job %q", id)
	}
	job.cancel()
	return nil
}

// execute runs one job to completion: dial, stage, run, archive.
func (r *Runner) execute(ctx context.Context, job *Job) {
	executor, err := r.dial(ctx, job.Spec.Target)
	if err != nil {
		r.finish(ctx, job, StateFailed, 0, fmt.Errorf("dial target: %w", err))
		return
	}
	defer executor.Close()

	if len(job.Spec.Script) > 0 {
		if err := executor.UploadScript(ctx, job.Spec.Script, job.Spec.RemotePath); err != nil {
			r.finish(ctx, job, StateFailed, 0, fmt.Errorf("stage script: %w", err))
			return
		}
	}

	job.setRunning()
	exitCode, err := executor.Run(ctx, job.Spec.command(), job.emit)
	if err != nil {
		r.finish(ctx, job, StateFailed, 0, err)
		return
	}
	if exitCode == 0 {
		r.finish(ctx, job, StateSucceeded, 0, nil)
	} else {
		r.finish(ctx, job, StateFailed, exitCode, nil)
	}
}

// finish resolves the job's terminal state, logs it, and archives the
// record. A context already cancelled turns any failure into
// StateCancelled.
func (r *Runner) finish(ctx context.Context, job *Job, state State, exitCode int, failure error) {
	failureMessage := ""
	if failure != nil {
		if ctx.Err() != nil {
			state = StateCancelled
		}
		failureMessage = failure.Error()
	}
	job.finish(state, exitCode, failureMessage)
	r.logger.Info("job finished", "job", job.ID, "state", state, "exit_code", exitCode)

	if r.archiveDir != "" {
		path, err := writeArchive(r.archiveDir, job, r.clock.Now())
		if err != nil {
			r.logger.Warn("job archive failed", "job", job.ID, "error", err)
		} else {
			r.logger.Debug("job archived", "job", job.ID, "path", path)
		}
	}
	job.markDone()
}
