// Copyright 2026 The Smart Proxy REX Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/term"
)

// DefaultPort is the SSH port used when Config.Port is zero.
const DefaultPort = 22

// Config describes one SSH target. The yaml tags match the proxy's
// configuration file; the function-valued fields are programmatic
// hooks for embedding and tests.
type Config struct {
	// Host is the remote hostname or address. Required.
	Host string `yaml:"host"`

	// Port is the SSH port. Zero means DefaultPort.
	Port int `yaml:"port"`

	// User is the login name on the remote host. Required.
	User string `yaml:"user"`

	// IdentityFile is the path to the private key used for
	// public-key auth. Required unless Signer is set.
	IdentityFile string `yaml:"identity_file"`

	// KnownHostsFile is the OpenSSH known_hosts file used to verify
	// the host key. Empty means no verification — acceptable only on
	// isolated provisioning networks, which is why the proxy config
	// never defaults it.
	KnownHostsFile string `yaml:"known_hosts_file"`

	// ConnectTimeout bounds TCP connection establishment. Zero means
	// only the dial context's deadline applies.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// Signer, when set, is used for auth instead of reading
	// IdentityFile. Tests and embedding code use this.
	Signer ssh.Signer `yaml:"-"`

	// HostKeyCallback, when set, overrides the KnownHostsFile policy.
	HostKeyCallback ssh.HostKeyCallback `yaml:"-"`

	// PassphrasePrompt is called when IdentityFile is encrypted. Nil
	// means prompt on the controlling terminal; without one, an
	// encrypted key is an error.
	PassphrasePrompt func(prompt string) ([]byte, error) `yaml:"-"`
}

// Validate reports configuration errors a Dial would hit.
func (c Config) Validate() error {
	if c.Host == "" {
		return errors.New("session: host is required")
	}
	if c.User == "" {
		return errors.New("session: user is required")
	}
	if c.IdentityFile == "" && c.Signer == nil {
		return errors.New("session: identity_file is required")
	}
	return nil
}

// Address returns the host:port dial target.
func (c Config) Address() string {
	port := c.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// clientConfig builds the ssh.ClientConfig: signer, host key policy,
// connect timeout.
func (c Config) clientConfig() (*ssh.ClientConfig, error) {
	signer := c.Signer
	if signer == nil {
		var err error
		signer, err = c.loadIdentity()
		if err != nil {
			return nil, err
		}
	}

	hostKeyCallback := c.HostKeyCallback
	if hostKeyCallback == nil {
		if c.KnownHostsFile != "" {
			var err error
			hostKeyCallback, err = knownhosts.New(c.KnownHostsFile)
			if err != nil {
				return nil, fmt.Errorf("load known hosts %s: %w", c.KnownHostsFile, err)
			}
		} else {
			hostKeyCallback = ssh.InsecureIgnoreHostKey()
		}
	}

	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         c.ConnectTimeout,
	}, nil
}

// loadIdentity reads and parses the private key, prompting for a
// passphrase if the key is encrypted.
func (c Config) loadIdentity() (ssh.Signer, error) {
	keyData, err := os.ReadFile(c.IdentityFile)
	if err != nil {
		return nil, fmt.Errorf("read identity file: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(keyData)
	if err == nil {
		return signer, nil
	}
	var missingErr *ssh.PassphraseMissingError
	if !errors.As(err, &missingErr) {
		return nil, fmt.Errorf("parse identity file %s: %w", c.IdentityFile, err)
	}

	prompt := c.PassphrasePrompt
	if prompt == nil {
		prompt = terminalPassphrasePrompt
	}
	passphrase, err := prompt(fmt.Sprintf("Enter passphrase for %s: ", c.IdentityFile))
	if err != nil {
		return nil, fmt.Errorf("read passphrase: %w", err)
	}
	signer, err = ssh.ParsePrivateKeyWithPassphrase(keyData, passphrase)
	if err != nil {
		return nil, fmt.Errorf("decrypt identity file %s: %w", c.IdentityFile, err)
	}
	return signer, nil
}

// terminalPassphrasePrompt reads a passphrase from the controlling
// terminal with echo disabled.
func terminalPassphrasePrompt(prompt string) ([]byte, error) {
	stdinFd := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFd) {
		return nil, errors.New("identity file is encrypted and no terminal is attached")
	}
	fmt.Fprint(os.Stderr, prompt)
	passphrase, err := term.ReadPassword(stdinFd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, err
	}
	return passphrase, nil
}
