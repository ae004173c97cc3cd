// Copyright 2026 The Smart Proxy REX Authors
// SPDX-License-Identifier: Apache-2.0

// Package runner orchestrates asynchronous remote script runs.
//
// A [Runner] starts jobs ([Runner.Start]), each of which dials its
// target, stages the script, executes it, and streams timestamped
// output chunks to watchers ([Runner.Watch]) while recording them on
// the [Job]. Jobs are cancellable ([Runner.Cancel]) and their final
// state distinguishes transport failure from a non-zero remote exit.
//
// Finished jobs are archived when the runner is configured with an
// archive directory: the job record is encoded with deterministic CBOR
// and compressed with zstd into <dir>/<job-id>.rexlog.zst, readable
// back with [ReadArchive].
package runner
