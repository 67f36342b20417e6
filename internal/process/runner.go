package process

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/mattn/go-isatty"

	"github.com/oshokin/rpm-stager/internal/failure"
	"github.com/oshokin/rpm-stager/internal/logger"
)

const (
	// spinnerCharSet is the index of the spinner frames in spinner.CharSets.
	spinnerCharSet = 9
	// spinnerUpdateTime is the delay between spinner frames.
	spinnerUpdateTime = 100 * time.Millisecond
)

// Command is one external tool invocation.
type Command struct {
	// Name is the executable, looked up in PATH when it has no separator.
	Name string
	// Args are passed to the executable as is.
	Args []string
	// Dir is the working directory. Empty means the current one.
	Dir string
}

// Argv returns the executable followed by its arguments.
func (c Command) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}

// String renders the command line for logs.
func (c Command) String() string {
	return strings.Join(c.Argv(), " ")
}

// Runner executes external commands.
// A non-zero exit status must be reported as a failure.KindCommand error.
type Runner interface {
	Run(ctx context.Context, cmd Command) error
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// verbose streams tool output instead of buffering it.
	verbose bool
	// output receives tool output: always when verbose, on failure otherwise.
	output io.Writer
	// spinner enables the progress spinner for quiet runs.
	spinner bool
}

// Option configures an ExecRunner.
type Option func(*ExecRunner)

// WithVerbose streams tool output while the command runs.
func WithVerbose(verbose bool) Option {
	return func(r *ExecRunner) {
		r.verbose = verbose
	}
}

// WithOutput sets where tool output goes. Defaults to stderr.
func WithOutput(w io.Writer) Option {
	return func(r *ExecRunner) {
		if w != nil {
			r.output = w
		}
	}
}

// NewExecRunner returns a Runner backed by os/exec.
// Quiet runs show a spinner when stderr is a terminal.
func NewExecRunner(opts ...Option) *ExecRunner {
	r := &ExecRunner{
		output:  os.Stderr,
		spinner: isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run starts cmd and waits for it.
func (r *ExecRunner) Run(ctx context.Context, cmd Command) error {
	logger.InfoKV(ctx, "Running external command", "command", cmd.String(), "dir", cmd.Dir)

	//nolint:gosec // Running configured packaging tools is the purpose of this runner.
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir

	var captured bytes.Buffer

	if r.verbose {
		c.Stdout = r.output
		c.Stderr = r.output
	} else {
		c.Stdout = &captured
		c.Stderr = &captured

		if r.spinner {
			s := spinner.New(spinner.CharSets[spinnerCharSet], spinnerUpdateTime, spinner.WithWriter(os.Stderr))
			s.Suffix = " " + cmd.Name
			s.Start()

			defer s.Stop()
		}
	}

	err := c.Run()
	if err == nil {
		return nil
	}

	if captured.Len() > 0 {
		_, _ = r.output.Write(captured.Bytes())
	}

	exitCode := -1

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
	}

	return failure.Command(cmd.Argv(), exitCode, err)
}
