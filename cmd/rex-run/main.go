// Copyright 2026 The Smart Proxy REX Authors
// SPDX-License-Identifier: Apache-2.0

// rex-run executes a script or command on a remote host over SSH,
// streaming stdout and stderr to the local terminal as they arrive.
// The local exit code mirrors the remote one.
//
// Usage:
//
//	rex-run [flags] <script>
//	rex-run [flags] --command "systemctl restart httpd"
//
// Configuration comes from the file named by --config or the
// REX_CONFIG environment variable; individual flags override it.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/jhoblitt/smart-proxy-remote-execution-ssh/lib/config"
	"github.com/jhoblitt/smart-proxy-remote-execution-ssh/lib/version"
	"github.com/jhoblitt/smart-proxy-remote-execution-ssh/runner"
	"github.com/jhoblitt/smart-proxy-remote-execution-ssh/session"
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	os.Exit(code)
}

func run() (int, error) {
	var (
		configPath string
		host       string
		port       int
		user       string
		identity   string
		knownHosts string
		archiveDir string
		command    string
		timeout    time.Duration
		verbose    bool
	)

	flagSet := pflag.NewFlagSet("rex-run", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to rex.yaml (default: $REX_CONFIG)")
	flagSet.StringVar(&host, "host", "", "remote hostname or address")
	flagSet.IntVar(&port, "port", 0, "SSH port (default from config, then 22)")
	flagSet.StringVar(&user, "user", "", "remote login name")
	flagSet.StringVar(&identity, "identity", "", "private key file for public-key auth")
	flagSet.StringVar(&knownHosts, "known-hosts", "", "known_hosts file for host key verification")
	flagSet.StringVar(&archiveDir, "archive-dir", "", "directory for finished job records")
	flagSet.StringVarP(&command, "command", "c", "", "remote command line (instead of a script)")
	flagSet.DurationVar(&timeout, "timeout", 0, "overall deadline for the run (0 means none)")
	flagSet.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flagSet.BoolP("help", "h", false, "show help")

	// Handle --version before flag parsing to match other REX binaries.
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("rex-run %s\n", version.Info())
		return 0, nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return 0, nil
		}
		return 0, err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return 0, nil
	}

	args := flagSet.Args()
	if len(args) > 1 {
		return 0, fmt.Errorf("unexpected argument: %s", args[1])
	}
	scriptPath := ""
	if len(args) == 1 {
		scriptPath = args[0]
	}
	if scriptPath == "" && command == "" {
		return 0, fmt.Errorf("nothing to run: pass a script path or --command")
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return 0, err
	}
	applyFlags(cfg, flagSet, host, port, user, identity, knownHosts, archiveDir)
	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	if cfg.SSH.Host == "" {
		return 0, fmt.Errorf("no target host: set ssh.host in the config file or pass --host")
	}

	logger := newLogger(cfg.LogLevel, verbose)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	spec := runner.Spec{
		Target:  cfg.SSH,
		Command: command,
	}
	if scriptPath != "" {
		script, err := os.ReadFile(scriptPath)
		if err != nil {
			return 0, fmt.Errorf("reading script: %w", err)
		}
		spec.Script = script
		spec.RemotePath = filepath.Join(cfg.RemoteScriptDir, filepath.Base(scriptPath))
	}

	runs := runner.New(runner.Options{
		Logger:     logger,
		ArchiveDir: cfg.ArchiveDir,
	})

	job, err := runs.Start(ctx, spec)
	if err != nil {
		return 0, err
	}

	replay, live, err := runs.Watch(job.ID)
	if err != nil {
		return 0, err
	}
	for _, chunk := range replay {
		writeChunk(chunk)
	}
	for chunk := range live {
		writeChunk(chunk)
	}

	<-job.Done()

	switch job.State() {
	case runner.StateSucceeded:
		return 0, nil
	case runner.StateFailed:
		if failure := job.Failure(); failure != "" {
			return 0, fmt.Errorf("%s", failure)
		}
		return job.ExitCode(), nil
	case runner.StateCancelled:
		return 0, fmt.Errorf("run cancelled: %s", job.Failure())
	default:
		return 0, fmt.Errorf("job finished in unexpected state %s", job.State())
	}
}

// loadConfig resolves the configuration source: explicit path, then
// REX_CONFIG, then built-in defaults when neither is present.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	if os.Getenv("REX_CONFIG") != "" {
		return config.Load()
	}
	return config.Default(), nil
}

// applyFlags overrides config fields with explicitly-set flags.
func applyFlags(cfg *config.Config, flagSet *pflag.FlagSet, host string, port int, user, identity, knownHosts, archiveDir string) {
	if flagSet.Changed("host") {
		cfg.SSH.Host = host
	}
	if flagSet.Changed("port") {
		cfg.SSH.Port = port
	}
	if flagSet.Changed("user") {
		cfg.SSH.User = user
	}
	if flagSet.Changed("identity") {
		cfg.SSH.IdentityFile = identity
	}
	if flagSet.Changed("known-hosts") {
		cfg.SSH.KnownHostsFile = knownHosts
	}
	if flagSet.Changed("archive-dir") {
		cfg.ArchiveDir = archiveDir
	}
}

func newLogger(level string, verbose bool) *slog.Logger {
	slogLevel := slog.LevelInfo
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	}
	if verbose {
		slogLevel = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel}))
}

func writeChunk(chunk session.OutputChunk) {
	switch chunk.Stream {
	case session.StreamStderr:
		os.Stderr.Write(chunk.Data)
	default:
		os.Stdout.Write(chunk.Data)
	}
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `rex-run — execute a script or command on a remote host over SSH.

USAGE
    rex-run [flags] <script>
    rex-run [flags] --command "uptime"

The script is uploaded to the remote script directory, marked
executable, and run. Output streams back live; the local exit code
mirrors the remote one. Press Ctrl-C to kill the remote command.

FLAGS
%s`, flagSet.FlagUsages())
}
