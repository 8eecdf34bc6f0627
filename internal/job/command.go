package job

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

const (
	defaultShell     = "/bin/sh"
	defaultMaxOutput = 64 * 1024
	defaultWaitDelay = 5 * time.Second
)

// CommandJob runs a shell command. The command gets its own process group
// and the whole group is killed when the context is done.
type CommandJob struct {
	Command   string
	Shell     string   // defaults to /bin/sh
	Dir       string   // working directory
	Env       []string // KEY=VALUE pairs added to the inherited environment
	MaxOutput int      // bytes of combined output kept, defaults to 64 KiB
}

// Execute runs the command. A non-zero exit is an unsuccessful Outcome, not
// an error. Errors are reserved for commands that could not be run or were
// interrupted by ctx.
func (c *CommandJob) Execute(ctx context.Context) (Outcome, error) {
	shell := c.Shell
	if shell == "" {
		shell = defaultShell
	}

	cmd := exec.CommandContext(ctx, shell, "-c", c.Command)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
	cmd.WaitDelay = defaultWaitDelay

	limit := c.MaxOutput
	if limit <= 0 {
		limit = defaultMaxOutput
	}
	out := &cappedBuffer{limit: limit}
	cmd.Stdout = out
	cmd.Stderr = out

	err := cmd.Run()
	outcome := Outcome{
		Output:   out.String(),
		ExitCode: exitCode(err),
		Metadata: map[string]any{"command": c.Command},
	}
	if out.truncated {
		outcome.Metadata["output_truncated"] = true
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return outcome, ctxErr
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		outcome.Success = true
		outcome.Message = "command completed"
	case errors.As(err, &exitErr):
		outcome.Message = fmt.Sprintf("command exited with status %d", outcome.ExitCode)
	default:
		return outcome, fmt.Errorf("run command: %w", err)
	}
	return outcome, nil
}

// exitCode extracts the exit code from a Run error. Commands that did not
// exit normally report -1.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// cappedBuffer keeps the first limit bytes written and discards the rest.
// exec uses one copying goroutine when Stdout and Stderr are the same
// writer, so no locking is needed.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.buf.Len()
	if room <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}
