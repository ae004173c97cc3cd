// Copyright 2026 The Smart Proxy REX Authors
// SPDX-License-Identifier: Apache-2.0

package runner

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/jhoblitt/smart-proxy-remote-execution-ssh/lib/codec"
	"github.com/jhoblitt/smart-proxy-remote-execution-ssh/session"
)

// ArchiveSuffix is the file name suffix of job archives.
const ArchiveSuffix = ".rexlog.zst"

// Record is the archived form of a finished job: deterministic CBOR,
// zstd-compressed on disk. The encoding is byte-stable for identical
// records, so re-archiving an unchanged job rewrites identical files.
type Record struct {
	JobID      string                `cbor:"job_id"`
	Target     string                `cbor:"target"`
	Command    string                `cbor:"command"`
	State      State                 `cbor:"state"`
	ExitCode   int                   `cbor:"exit_code"`
	Failure    string                `cbor:"failure,omitempty"`
	FinishedAt time.Time             `cbor:"finished_at"`
	Chunks     []session.OutputChunk `cbor:"chunks"`
}

// ArchivePath returns the archive file path for a job ID in dir.
func ArchivePath(dir, jobID string) string {
	return filepath.Join(dir, jobID+ArchiveSuffix)
}

// writeArchive persists the job's record and returns the file path.
func writeArchive(dir string, job *Job, finishedAt time.Time) (string, error) {
	record := Record{
		JobID:      job.ID,
		Target:     job.Spec.Target.Address(),
		Command:    job.Spec.command(),
		State:      job.State(),
		ExitCode:   job.ExitCode(),
		Failure:    job.Failure(),
		FinishedAt: finishedAt,
		Chunks:     job.Chunks(),
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive directory: %w", err)
	}
	path := ArchivePath(dir, job.ID)
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create archive file: %w", err)
	}

	compressor, err := zstd.NewWriter(file)
	if err != nil {
		file.Close()
		return "", fmt.Errorf("init zstd writer: %w", err)
	}
	if err := codec.NewEncoder(compressor).Encode(record); err != nil {
		compressor.Close()
		file.Close()
		return "", fmt.Errorf("encode job record: %w", err)
	}
	if err := compressor.Close(); err != nil {
		file.Close()
		return "", fmt.Errorf("flush archive: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("close archive file: %w", err)
	}
	return path, nil
}

// ReadArchive loads a job record written by the runner.
func ReadArchive(path string) (Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return Record{}, fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	decompressor, err := zstd.NewReader(file)
	if err != nil {
		return Record{}, fmt.Errorf("init zstd reader: %w", err)
	}
	defer decompressor.Close()

	var record Record
	if err := codec.NewDecoder(decompressor).Decode(&record); err != nil {
		return Record{}, fmt.Errorf("decode job record: %w", err)
	}
	return record, nil
}
