// Copyright 2026 The Smart Proxy REX Authors
// SPDX-License-Identifier: Apache-2.0

// Package session drives remote command execution over SSH.
//
// A [Client] wraps an authenticated SSH connection to one host.
// [Dial] establishes the connection with public-key auth, prompting
// for a passphrase only when the key is encrypted and a terminal is
// attached. [Client.UploadScript] stages a script on the remote host
// through a plain exec channel (no SFTP dependency on the target),
// skipping re-uploads of unchanged content by BLAKE3 digest.
// [Client.Run] executes a command and streams its stdout and stderr
// back as timestamped [OutputChunk] values, accumulated through the
// same byte buffers the stream layer uses.
//
// The package is a collaborator above lib/bytebuf and stream: it owns
// the SSH protocol state and leaves buffering policy to the core.
package session
