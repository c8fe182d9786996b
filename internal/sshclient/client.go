// Package sshclient runs single remote commands over SSH.
//
// The default transport shells out to the system "ssh" binary, which means
// the user's agent, keys and ssh_config apply without reimplementing any of
// that logic. A native transport built on golang.org/x/crypto/ssh exists for
// hosts without an OpenSSH client.
//
// Every connection made here is non-interactive: host-key prompts are
// disabled (StrictHostKeyChecking=no, UserKnownHostsFile=/dev/null), password
// prompts are disabled (BatchMode=yes), and the handshake is bounded by a
// fixed connect timeout that is independent of the caller's overall deadline,
// which is carried by the context.
//
// Security note: all SSH arguments are passed via exec.Command's argv (not via
// shell interpolation), which prevents injection from project or environment
// names that contain shell metacharacters.
package sshclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/treykane/lagoon-alias/internal/util"
)

// Command describes one remote command execution.
type Command struct {
	Host    string
	Port    int
	User    string
	KeyPath string
	// Remote is the command line executed on the remote side.
	Remote         string
	ConnectTimeout time.Duration
}

// Destination is the user@host argument.
func (c Command) Destination() string {
	if c.User == "" {
		return c.Host
	}
	return c.User + "@" + c.Host
}

// Output holds what the remote command wrote.
type Output struct {
	Stdout []byte
	Stderr []byte
}

// Runner executes a Command and waits for it to finish. Implementations must
// honour ctx cancellation and return a non-nil error for non-zero exits.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Output, error)
}

// ExitError reports a remote command that ran but exited non-zero.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("remote command exited with status %d", e.Code)
}

// ErrTimeout is returned when the context deadline ends the command.
var ErrTimeout = errors.New("ssh command timed out")

// EnsureSSHBinary checks that the "ssh" binary is available on the system PATH.
func EnsureSSHBinary() error {
	_, err := exec.LookPath("ssh")
	if err != nil {
		return fmt.Errorf("ssh binary not found in PATH")
	}
	return nil
}

// BaseOptions are the -o options every connection uses. They match the
// options baked into generated aliases, plus BatchMode so ssh never waits on
// a prompt nobody will answer.
func BaseOptions(connectTimeout time.Duration) []string {
	if connectTimeout <= 0 {
		connectTimeout = util.SSHConnectTimeout
	}
	return []string{
		"-o", "ConnectTimeout=" + strconv.Itoa(int(connectTimeout.Round(time.Second)/time.Second)),
		"-o", "LogLevel=FATAL",
		"-o", "UserKnownHostsFile=/dev/null",
		"-o", "StrictHostKeyChecking=no",
		"-o", "BatchMode=yes",
	}
}

// BuildArgs constructs the ssh argv for cmd without starting a process.
//
// Example output:
//
//	["-p", "32222", "-o", "ConnectTimeout=5", ..., "lagoon@ssh.example.com", "token"]
func BuildArgs(cmd Command) []string {
	args := []string{"-p", strconv.Itoa(cmd.Port)}
	args = append(args, BaseOptions(cmd.ConnectTimeout)...)
	if cmd.KeyPath != "" {
		args = append(args, "-i", cmd.KeyPath)
	}
	args = append(args, cmd.Destination())
	if cmd.Remote != "" {
		args = append(args, cmd.Remote)
	}
	return args
}

// ExecRunner runs commands through the system ssh binary.
//
// ExecRunner is stateless and safe for concurrent use; each call creates an
// independent exec.Cmd.
type ExecRunner struct {
	// Binary defaults to "ssh".
	Binary string
}

// NewExecRunner returns a runner using the ssh binary on PATH.
func NewExecRunner() *ExecRunner { return &ExecRunner{Binary: "ssh"} }

// Run starts ssh, collects stdout and stderr separately, and waits. The
// process is killed when ctx ends.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Output, error) {
	bin := r.Binary
	if bin == "" {
		bin = "ssh"
	}
	c := exec.CommandContext(ctx, bin, BuildArgs(cmd)...)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	c.Stdin = nil

	err := c.Run()
	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return out, nil
	}
	if ctx.Err() != nil {
		return out, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return out, &ExitError{Code: exitErr.ExitCode()}
	}
	return out, err
}
