// Copyright 2026 The Smart Proxy REX Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"
)

// dialTest starts an in-process SSH server with the given scripted
// responses and connects a Client to it.
func dialTest(t *testing.T, responses map[string]execResponse) (*Client, *testServer) {
	t.Helper()
	server, signer := startTestServer(t, responses)
	host, _, err := net.SplitHostPort(server.address)
	if err != nil {
		t.Fatalf("split server address: %v", err)
	}
	cfg := Config{
		Host:   host,
		Port:   portOf(t, server.address),
		User:   "rex",
		Signer: signer,
	}

	client, err := Dial(context.Background(), cfg, ClientOptions{})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client, server
}

func portOf(t *testing.T, address string) int {
	t.Helper()
	addr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		t.Fatalf("resolve %s: %v", address, err)
	}
	return addr.Port
}

func TestRunStreamsOutputAndExitCode(t *testing.T) {
	t.Parallel()
	client, _ := dialTest(t, map[string]execResponse{
		"check-disk": {stdout: []byte("ok\n"), stderr: []byte("warning: slow\n"), exit: 3},
	})

	var stdout, stderr bytes.Buffer
	exitCode, err := client.Run(context.Background(), "check-disk", func(chunk OutputChunk) {
		switch chunk.Stream {
		case StreamStdout:
			stdout.Write(chunk.Data)
		case StreamStderr:
			stderr.Write(chunk.Data)
		}
		if chunk.At.IsZero() {
			t.Error("chunk timestamp is zero")
		}
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if exitCode != 3 {
		t.Errorf("exit code: got %d, want 3", exitCode)
	}
	if got := stdout.String(); got != "ok\n" {
		t.Errorf("stdout: got %q, want %q", got, "ok\n")
	}
	if got := stderr.String(); got != "warning: slow\n" {
		t.Errorf("stderr: got %q, want %q", got, "warning: slow\n")
	}
}

func TestRunZeroExitNilSink(t *testing.T) {
	t.Parallel()
	client, _ := dialTest(t, map[string]execResponse{
		"true": {exit: 0},
	})

	exitCode, err := client.Run(context.Background(), "true", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if exitCode != 0 {
		t.Errorf("exit code: got %d, want 0", exitCode)
	}
}

func TestRunContextCancelKillsCommand(t *testing.T) {
	t.Parallel()
	client, _ := dialTest(t, map[string]execResponse{
		"sleep-forever": {blockUntilClosed: true},
	})

	ctx, cancel := context.WithCancel(context.Background())
	firstChunk := make(chan struct{})
	var once bool
	go func() {
		// Cancel as soon as the command demonstrably started.
		<-firstChunk
		cancel()
	}()

	_, err := client.Run(ctx, "sleep-forever", func(OutputChunk) {
		if !once {
			once = true
			close(firstChunk)
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run after cancel: got %v, want context.Canceled", err)
	}
}

func TestUploadScriptSkipsUnchangedContent(t *testing.T) {
	t.Parallel()
	script := []byte("#!/bin/sh\necho deployed\n")
	uploadCommand := "cat > '/tmp/rex/task.sh' && chmod 0700 '/tmp/rex/task.sh'"
	client, server := dialTest(t, map[string]execResponse{
		uploadCommand: {exit: 0},
	})

	if err := client.UploadScript(context.Background(), script, "/tmp/rex/task.sh"); err != nil {
		t.Fatalf("UploadScript: %v", err)
	}
	// Identical content: no second exec.
	if err := client.UploadScript(context.Background(), script, "/tmp/rex/task.sh"); err != nil {
		t.Fatalf("repeated UploadScript: %v", err)
	}
	records := server.observed()
	if len(records) != 1 {
		t.Fatalf("server observed %d execs, want 1", len(records))
	}
	if records[0].command != uploadCommand {
		t.Errorf("upload command: got %q, want %q", records[0].command, uploadCommand)
	}
	if !bytes.Equal(records[0].stdin, script) {
		t.Errorf("uploaded content: got %q, want %q", records[0].stdin, script)
	}

	// Changed content goes through again.
	changed := append(append([]byte{}, script...), []byte("echo more\n")...)
	if err := client.UploadScript(context.Background(), changed, "/tmp/rex/task.sh"); err != nil {
		t.Fatalf("UploadScript with changed content: %v", err)
	}
	if got := len(server.observed()); got != 2 {
		t.Errorf("server observed %d execs after change, want 2", got)
	}
}

func TestShellQuote(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"/tmp/plain":      "'/tmp/plain'",
		"/tmp/with space": "'/tmp/with space'",
		"/tmp/o'brien.sh": `'/tmp/o'\''brien.sh'`,
		"$(rm -rf /)":     "'$(rm -rf /)'",
		"semi;colon&&x":   "'semi;colon&&x'",
	}
	for input, want := range cases {
		if got := shellQuote(input); got != want {
			t.Errorf("shellQuote(%q): got %s, want %s", input, got, want)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()
	valid := Config{Host: "node1", User: "rex", IdentityFile: "/etc/rex/id_ed25519"}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	for name, cfg := range map[string]Config{
		"missing host":     {User: "rex", IdentityFile: "/k"},
		"missing user":     {Host: "node1", IdentityFile: "/k"},
		"missing identity": {Host: "node1", User: "rex"},
	} {
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: Validate accepted an invalid config", name)
		}
	}
}

func TestConfigAddress(t *testing.T) {
	t.Parallel()
	if got := (Config{Host: "node1"}).Address(); got != "node1:22" {
		t.Errorf("default port address: got %q, want %q", got, "node1:22")
	}
	if got := (Config{Host: "node1", Port: 2222}).Address(); got != "node1:2222" {
		t.Errorf("explicit port address: got %q, want %q", got, "node1:2222")
	}
}

func TestConfigValidateTimeout(t *testing.T) {
	t.Parallel()
	cfg := Config{Host: "node1", User: "rex", IdentityFile: "/k", ConnectTimeout: 5 * time.Second}
	if err := cfg.Validate(); err != nil {
		t.Errorf("config with timeout rejected: %v", err)
	}
	if !strings.Contains(cfg.Address(), "node1") {
		t.Errorf("Address lost the host: %q", cfg.Address())
	}
}
