package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes an external program and returns its combined output
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs programs with os/exec
type ExecRunner struct{}

// Run executes name with args. On failure the returned error carries the
// program's output, which is where yt-dlp and ffmpeg report problems.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return output.Bytes(), fmt.Errorf("%s interrupted: %w", name, ctxErr)
		}
		return output.Bytes(), &ExitError{Program: name, Output: strings.TrimSpace(output.String()), Err: err}
	}
	return output.Bytes(), nil
}

// ExitError reports a program that ran but did not succeed
type ExitError struct {
	Program string
	Output  string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Output == "" {
		return e.Program + ": " + e.Err.Error()
	}
	return e.Program + ": " + lastLine(e.Output)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err means the program is not installed
func IsNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
