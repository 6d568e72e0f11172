// internal/exe/run.go
package exe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Cmd is one external process invocation. Dir is always set explicitly on
// the child; the parent's working directory is never changed.
type Cmd struct {
	Name  string
	Args  []string
	Dir   string
	Stdin string // file fed to standard input, optional
	// Stdout, when set, receives the child's standard output (for tools that
	// write their result there). Otherwise standard output is captured.
	Stdout string
}

func (c Cmd) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result of a finished process. Stderr (and Stdout unless redirected) are
// captured in full.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

// Runner executes commands. Tests substitute fakes.
type Runner interface {
	Run(ctx context.Context, c Cmd) (Result, error)
}

const waitDelay = 2 * time.Second

// OSRunner runs commands as child processes.
type OSRunner struct {
	Log *slog.Logger
}

// Run starts c and waits for it. A non-zero exit is reported through
// Result.ExitCode with a nil error; the error is reserved for failures to
// start the process, to open redirections, or context cancellation.
func (r OSRunner) Run(ctx context.Context, c Cmd) (Result, error) {
	if r.Log != nil {
		r.Log.Debug("exec", "cmd", c.String(), "dir", c.Dir)
	}
	if c.Dir != "" {
		if err := os.MkdirAll(c.Dir, 0o755); err != nil {
			return Result{}, err
		}
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	// Grandchildren may hold the stderr pipe after a kill.
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stderr = &stderr
	var outFile *os.File
	if c.Stdout != "" {
		f, err := os.Create(c.Stdout)
		if err != nil {
			return Result{}, err
		}
		outFile = f
		cmd.Stdout = f
	} else {
		cmd.Stdout = &stdout
	}
	if c.Stdin != "" {
		f, err := os.Open(c.Stdin)
		if err != nil {
			if outFile != nil {
				_ = outFile.Close()
			}
			return Result{}, err
		}
		defer f.Close()
		cmd.Stdin = f
	}

	err := cmd.Run()
	if outFile != nil {
		if cerr := outFile.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", c.Stdout, cerr)
		}
	}
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return res, ctx.Err()
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		res.ExitCode = ee.ExitCode()
		if res.ExitCode < 0 {
			res.ExitCode = 1 // killed by signal
		}
		return res, nil
	}
	return res, err
}

// Tail returns the last n lines of b, for diagnostics.
func Tail(b []byte, n int) string {
	lines := strings.Split(strings.TrimRight(string(b), "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
