// Copyright 2026 The Smart Proxy REX Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

// UploadScript stages content at remotePath on the remote host, mode
// 0700, using a plain exec channel ("cat > path") so the target needs
// no SFTP subsystem. Re-uploading identical content to the same path
// is a no-op: the client remembers the BLAKE3 digest of what each
// path last received.
func (c *Client) UploadScript(ctx context.Context, content []byte, remotePath string) error {
	digest := blake3.Sum256(content)
	if previous, ok := c.uploaded[remotePath]; ok && previous == digest {
		c.logger.Debug("script unchanged, skipping upload", "path", remotePath)
		return nil
	}

	sess, err := c.sshClient.NewSession()
	if err != nil {
		return fmt.Errorf("open exec channel: %w", err)
	}
	defer sess.Close()

	cancelWatch := make(chan struct{})
	defer close(cancelWatch)
	go func() {
		select {
		case <-ctx.Done():
			sess.Close()
		case <-cancelWatch:
		}
	}()

	quoted := shellQuote(remotePath)
	sess.Stdin = bytes.NewReader(content)
	command := fmt.Sprintf("cat > %s && chmod 0700 %s", quoted, quoted)
	if err := sess.Run(command); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("upload script to %s: %w", remotePath, err)
	}

	c.uploaded[remotePath] = digest
	c.logger.Debug("script uploaded", "path", remotePath, "bytes", len(content))
	return nil
}

// shellQuote wraps s in single quotes for the remote shell, escaping
// embedded single quotes with the '\'' idiom.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
