// Copyright 2026 The Smart Proxy REX Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"crypto/ed25519"
	"crypto/rand"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"
)

// execResponse scripts the test server's reaction to one command.
type execResponse struct {
	stdout []byte
	stderr []byte
	exit   uint32
	// blockUntilClosed makes the handler write stdout and then wait
	// for the client to tear the channel down before exiting, for
	// cancellation tests.
	blockUntilClosed bool
}

// execRecord is one exec request the test server observed.
type execRecord struct {
	command string
	stdin   []byte
}

// testServer is a minimal in-process SSH server that accepts any
// authentication and answers exec requests from a scripted response
// table.
type testServer struct {
	address   string
	responses map[string]execResponse

	mu      sync.Mutex
	records []execRecord
}

func (s *testServer) observed() []execRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]execRecord(nil), s.records...)
}

// startTestServer runs a loopback SSH server for the duration of the
// test and returns it along with a client signer accepted by it.
func startTestServer(t *testing.T, responses map[string]execResponse) (*testServer, ssh.Signer) {
	t.Helper()

	_, hostKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate host key: %v", err)
	}
	hostSigner, err := ssh.NewSignerFromKey(hostKey)
	if err != nil {
		t.Fatalf("host signer: %v", err)
	}
	_, clientKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate client key: %v", err)
	}
	clientSigner, err := ssh.NewSignerFromKey(clientKey)
	if err != nil {
		t.Fatalf("client signer: %v", err)
	}

	serverConfig := &ssh.ServerConfig{
		PublicKeyCallback: func(ssh.ConnMetadata, ssh.PublicKey) (*ssh.Permissions, error) {
			return nil, nil
		},
	}
	serverConfig.AddHostKey(hostSigner)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })

	server := &testServer{address: listener.Addr().String(), responses: responses}
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go server.handleConn(conn, serverConfig)
		}
	}()
	return server, clientSigner
}

func (s *testServer) handleConn(conn net.Conn, config *ssh.ServerConfig) {
	serverConn, channels, requests, err := ssh.NewServerConn(conn, config)
	if err != nil {
		conn.Close()
		return
	}
	defer serverConn.Close()
	go ssh.DiscardRequests(requests)

	for newChannel := range channels {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "unsupported channel type")
			continue
		}
		channel, channelRequests, err := newChannel.Accept()
		if err != nil {
			continue
		}
		go s.handleSession(channel, channelRequests)
	}
}

func (s *testServer) handleSession(channel ssh.Channel, requests <-chan *ssh.Request) {
	defer channel.Close()
	for request := range requests {
		if request.Type != "exec" {
			if request.WantReply {
				request.Reply(false, nil)
			}
			continue
		}
		var payload struct{ Command string }
		if err := ssh.Unmarshal(request.Payload, &payload); err != nil {
			request.Reply(false, nil)
			continue
		}
		request.Reply(true, nil)

		// Drain stdin first: exec channels used for uploads carry
		// the script body there, terminated by the client's EOF.
		stdin, _ := io.ReadAll(channel)
		s.mu.Lock()
		s.records = append(s.records, execRecord{command: payload.Command, stdin: stdin})
		s.mu.Unlock()

		response := s.responses[payload.Command]
		if len(response.stdout) > 0 {
			channel.Write(response.stdout)
		}
		if len(response.stderr) > 0 {
			channel.Stderr().Write(response.stderr)
		}
		if response.blockUntilClosed {
			// Trickle output until the client collapses the channel
			// (the cancellation path): a failed write is the only
			// reliable close signal on the server side.
			for {
				if _, err := channel.Write([]byte("tick\n")); err != nil {
					break
				}
				time.Sleep(10 * time.Millisecond)
			}
		}
		channel.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{response.exit}))
		return
	}
}
