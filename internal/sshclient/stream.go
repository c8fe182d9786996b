package sshclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"syscall"

	"github.com/creack/pty"
)

// StreamOptions controls how a streamed command is attached to the caller.
type StreamOptions struct {
	Stdout io.Writer
	Stderr io.Writer
	// PTY runs the process on a pseudo-terminal so remote tools that check
	// for a TTY keep colouring and line-buffering their output. Stderr is
	// merged into Stdout in this mode.
	PTY bool
}

// Stream runs name with args and copies its output to the writers as it is
// produced. It returns an *ExitError for non-zero exits.
func Stream(ctx context.Context, name string, args []string, opts StreamOptions) error {
	cmd := exec.CommandContext(ctx, name, args...)
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = opts.Stdout
	}

	if opts.PTY {
		// pty.Start allocates a pseudo-terminal, makes it the controlling
		// terminal of the child and returns the master side.
		f, err := pty.Start(cmd)
		if err != nil {
			return err
		}
		defer f.Close()
		// Reading the master returns EIO once the child side closes.
		if _, err := io.Copy(opts.Stdout, f); err != nil && !errors.Is(err, syscall.EIO) {
			_ = cmd.Process.Kill()
			_ = cmd.Wait()
			return fmt.Errorf("read pty: %w", err)
		}
		return exitError(ctx, cmd.Wait())
	}

	cmd.Stdout = opts.Stdout
	cmd.Stderr = opts.Stderr
	return exitError(ctx, cmd.Run())
}

func exitError(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		return &ExitError{Code: ee.ExitCode()}
	}
	return err
}
