// Copyright 2026 The Smart Proxy REX Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"golang.org/x/crypto/ssh"

	"github.com/jhoblitt/smart-proxy-remote-execution-ssh/lib/clock"
)

// ClientOptions configures optional Client collaborators.
type ClientOptions struct {
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger

	// Clock supplies output chunk timestamps. If nil, the real clock
	// is used.
	Clock clock.Clock
}

// Client is an authenticated SSH connection to one remote host. A
// Client runs commands and uploads scripts over fresh exec channels on
// the shared connection; it is safe to hold for the lifetime of a job.
type Client struct {
	logger    *slog.Logger
	clock     clock.Clock
	sshClient *ssh.Client

	// uploaded maps remote path to the BLAKE3 digest of the content
	// last uploaded there, so unchanged scripts are not re-sent.
	uploaded map[string][32]byte
}

// Dial connects and authenticates to the host described by cfg.
func Dial(ctx context.Context, cfg Config, options ClientOptions) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	clientConfig, err := cfg.clientConfig()
	if err != nil {
		return nil, err
	}

	address := cfg.Address()
	dialer := net.Dialer{Timeout: cfg.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", address, err)
	}
	sshConn, channels, requests, err := ssh.NewClientConn(conn, address, clientConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", address, err)
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := options.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger.Debug("ssh connection established", "address", address, "user", cfg.User)

	return &Client{
		logger:    logger,
		clock:     clk,
		sshClient: ssh.NewClient(sshConn, channels, requests),
		uploaded:  make(map[string][32]byte),
	}, nil
}

// Close tears down the SSH connection. In-flight Run and UploadScript
// calls fail as their channels collapse.
func (c *Client) Close() error {
	return c.sshClient.Close()
}
