package sshclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/treykane/lagoon-alias/internal/util"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// NativeRunner speaks SSH in-process. It authenticates with the key at
// Command.KeyPath and, when SSH_AUTH_SOCK is set, with the agent's keys.
// Host keys are not verified, matching StrictHostKeyChecking=no.
type NativeRunner struct {
	// AgentSocket defaults to $SSH_AUTH_SOCK.
	AgentSocket string
}

// NewNativeRunner returns a runner that uses the environment's agent socket.
func NewNativeRunner() *NativeRunner {
	return &NativeRunner{AgentSocket: os.Getenv("SSH_AUTH_SOCK")}
}

func (r *NativeRunner) authMethods(keyPath string) ([]ssh.AuthMethod, func(), error) {
	var (
		methods []ssh.AuthMethod
		closers []func()
	)
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	if keyPath != "" {
		pem, err := os.ReadFile(expandHome(keyPath))
		if err != nil {
			return nil, cleanup, fmt.Errorf("read ssh key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(pem)
		if err != nil {
			return nil, cleanup, fmt.Errorf("parse ssh key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	if r.AgentSocket != "" {
		conn, err := net.Dial("unix", r.AgentSocket)
		if err == nil {
			closers = append(closers, func() { _ = conn.Close() })
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(conn).Signers))
		}
	}

	if len(methods) == 0 {
		return nil, cleanup, errors.New("no ssh key available: set LAGOON_SSH_KEY or start an ssh agent")
	}
	return methods, cleanup, nil
}

// Run dials, runs cmd.Remote in one session, and closes the connection.
func (r *NativeRunner) Run(ctx context.Context, cmd Command) (Output, error) {
	auth, cleanup, err := r.authMethods(cmd.KeyPath)
	defer cleanup()
	if err != nil {
		return Output{}, err
	}

	timeout := cmd.ConnectTimeout
	if timeout <= 0 {
		timeout = util.SSHConnectTimeout
	}
	config := &ssh.ClientConfig{
		User:            cmd.User,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	}

	addr := net.JoinHostPort(cmd.Host, strconv.Itoa(cmd.Port))
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		if ctx.Err() != nil {
			return Output{}, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		}
		return Output{}, err
	}

	// Bound the handshake by the connect timeout; the session itself is
	// bounded by ctx below.
	_ = conn.SetDeadline(time.Now().Add(timeout))
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		_ = conn.Close()
		return Output{}, err
	}
	_ = conn.SetDeadline(time.Time{})
	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return Output{}, err
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(cmd.Remote) }()

	select {
	case <-ctx.Done():
		_ = client.Close()
		<-done
		return Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	case err := <-done:
		out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			return out, &ExitError{Code: exitErr.ExitStatus()}
		}
		return out, err
	}
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return home + path[1:]
}
