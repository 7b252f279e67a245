// Package runner wraps the external commands kextforge shells out to.
package runner

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/blacktop/kextforge/internal/errs"
)

// DefaultTimeout bounds every external command that does not set its own
const DefaultTimeout = 10 * time.Second

// Command describes one external process invocation
type Command struct {
	Name string
	Args []string
	// Stdin is piped to the process when non-nil
	Stdin []byte
	// Interactive attaches the caller's terminal instead of capturing output
	Interactive bool
	Timeout     time.Duration
}

func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result is the outcome of a command that started.
// Stdout/Stderr keep the raw bytes; Text/ErrText give the decoded view.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
	TimedOut bool
}

// OK reports a zero exit status
func (r *Result) OK() bool { return r != nil && r.ExitCode == 0 }

// Text returns trimmed stdout
func (r *Result) Text() string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(string(r.Stdout))
}

// ErrText returns trimmed stderr
func (r *Result) ErrText() string {
	if r == nil {
		return ""
	}
	return strings.TrimSpace(string(r.Stderr))
}

// Runner runs external commands.
//
// A non-zero exit is not an error: it is reported in Result.ExitCode.
// Errors are reserved for commands that could not run (errs.NotFound),
// exceeded their timeout or were cancelled (errs.ExternalTool).
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
	LookPath(name string) (string, error)
}

// Exec runs commands with os/exec
type Exec struct {
	Timeout time.Duration
}

// NewExec returns an Exec runner; a zero timeout means DefaultTimeout
func NewExec(timeout time.Duration) *Exec {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Exec{Timeout: timeout}
}

// LookPath finds name in PATH
func (e *Exec) LookPath(name string) (string, error) {
	p, err := exec.LookPath(name)
	if err != nil {
		return "", errs.Wrap(errs.NotFound, name, err, "required tool not found")
	}
	return p, nil
}

// Run executes cmd and waits for it, bounded by its timeout
func (e *Exec) Run(ctx context.Context, cmd Command) (*Result, error) {
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = e.Timeout
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := exec.CommandContext(execCtx, cmd.Name, cmd.Args...)

	var stdout, stderr bytes.Buffer
	if cmd.Interactive {
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
	} else {
		if cmd.Stdin != nil {
			c.Stdin = bytes.NewReader(cmd.Stdin)
		}
		c.Stdout = &stdout
		c.Stderr = &stderr
	}

	log.WithField("cmd", cmd.String()).Debug("Running")

	start := time.Now()
	err := c.Run()
	res := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}

	if err != nil {
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			res.ExitCode = -1
			res.TimedOut = true
			return res, errs.New(errs.ExternalTool, cmd.Name, "timed out after %v", timeout)
		}
		if ctx.Err() != nil {
			res.ExitCode = -1
			return res, errs.Wrap(errs.ExternalTool, cmd.Name, ctx.Err(), "cancelled")
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, errs.Wrap(errs.NotFound, cmd.Name, err, "command not found")
		}
		return nil, errs.Wrap(errs.ExternalTool, cmd.Name, err, "failed to run")
	}

	return res, nil
}

// Check turns a non-zero exit into an errs.ExternalTool error for fail-fast callers
func Check(cmd Command, res *Result, err error) error {
	if err != nil {
		return err
	}
	if res.OK() {
		return nil
	}
	msg := res.ErrText()
	if msg == "" {
		msg = res.Text()
	}
	if msg == "" {
		return errs.New(errs.ExternalTool, cmd.Name, "'%s' exited with status %d", cmd, res.ExitCode)
	}
	return errs.New(errs.ExternalTool, cmd.Name, "'%s' exited with status %d: %s", cmd, res.ExitCode, msg)
}

// MustRun runs cmd and applies Check
func MustRun(ctx context.Context, r Runner, cmd Command) (*Result, error) {
	res, err := r.Run(ctx, cmd)
	return res, Check(cmd, res, err)
}
