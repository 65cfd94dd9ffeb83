package claude

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"

	"beacon/internal/logging"
)

// Executor runs a single prompt through the Claude CLI.
//
// ExecutePrompt blocks until the Claude process exits. Streamed output is
// delivered through the given [Callbacks] in arrival order; exactly one of
// OnComplete or OnError is invoked before ExecutePrompt returns. The returned
// error is the same error passed to OnError, or nil on success.
type Executor interface {
	ExecutePrompt(ctx context.Context, prompt string, cb Callbacks) error
}

// ProcessError reports a Claude process that exited with a non-zero code or
// was killed by a signal.
//
// Stderr holds everything the process wrote to standard error, trimmed. It is
// included in the error message to give the user context on the failure.
// When Signal is set, Code follows the shell convention of 128 plus the
// signal number.
type ProcessError struct {
	Code   int
	Signal syscall.Signal
	Stderr string
}

func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("claude CLI exited with code %d", e.Code)
	if e.Signal != 0 {
		msg = fmt.Sprintf("claude CLI terminated by signal %v", e.Signal)
	}
	if e.Stderr != "" {
		msg += "\n" + e.Stderr
	}
	return msg
}

// ExecutorConfig contains configuration for the Claude CLI executor.
type ExecutorConfig struct {
	// BinaryPath is the path to the Claude CLI binary.
	// Defaults to "claude" (assumes Claude is in PATH).
	BinaryPath string

	// Model is passed as --model when non-empty.
	Model string

	// Stderr receives the child's standard error as it arrives.
	// Defaults to os.Stderr.
	Stderr io.Writer

	// Logger receives debug diagnostics. A discarded logger is used when nil.
	Logger *logrus.Entry
}

// DefaultExecutor implements [Executor] by spawning the Claude CLI with
// streaming JSON output and partial messages enabled.
//
// The process inherits standard input. Its standard error is passed through
// unaltered to [ExecutorConfig.Stderr] while also being buffered for the error
// message. SIGINT and SIGTERM received by this process while a prompt is
// running are forwarded to the child as a single SIGTERM.
type DefaultExecutor struct {
	config ExecutorConfig
}

// NewExecutor creates a new [DefaultExecutor] with the given configuration.
func NewExecutor(config ExecutorConfig) *DefaultExecutor {
	if config.BinaryPath == "" {
		config.BinaryPath = "claude"
	}
	if config.Stderr == nil {
		config.Stderr = os.Stderr
	}
	if config.Logger == nil {
		config.Logger = logging.Discard()
	}
	return &DefaultExecutor{config: config}
}

// Args returns the argument list passed to the Claude binary for prompt.
// The prompt is always the final positional argument.
func (e *DefaultExecutor) Args(prompt string) []string {
	args := []string{
		"--print",
		"--output-format", "stream-json",
		"--verbose",
		"--include-partial-messages",
		"--permission-mode", "bypassPermissions",
	}
	if e.config.Model != "" {
		args = append(args, "--model", e.config.Model)
	}
	return append(args, prompt)
}

// ExecutePrompt spawns Claude for prompt and streams its output to cb.
func (e *DefaultExecutor) ExecutePrompt(ctx context.Context, prompt string, cb Callbacks) error {
	args := e.Args(prompt)
	e.config.Logger.WithField("binary", e.config.BinaryPath).WithField("args", len(args)).Debug("spawning claude")

	cmd := exec.Command(e.config.BinaryPath, args...)
	cmd.Stdin = os.Stdin

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return e.spawnFailed(cb, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return e.spawnFailed(cb, err)
	}

	if err := cmd.Start(); err != nil {
		return e.spawnFailed(cb, err)
	}

	stopForwarding := forwardSignals(ctx, cmd.Process)
	defer stopForwarding()

	var stderrBuf bytes.Buffer
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = io.Copy(io.MultiWriter(e.config.Stderr, &stderrBuf), stderr)
	}()

	parser := NewStreamParser(cb.token, cb.start)
	_, _ = io.Copy(parser, stdout)
	parser.Flush()

	// Both pipes must be drained before Wait closes them.
	wg.Wait()
	waitErr := cmd.Wait()

	if waitErr == nil {
		cb.complete()
		return nil
	}

	var exitErr *exec.ExitError
	if !errors.As(waitErr, &exitErr) {
		return e.spawnFailed(cb, waitErr)
	}

	procErr := &ProcessError{
		Code:   exitErr.ExitCode(),
		Stderr: strings.TrimSpace(stderrBuf.String()),
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		procErr.Signal = ws.Signal()
		procErr.Code = 128 + int(ws.Signal())
	}
	e.config.Logger.WithFields(logrus.Fields{
		"code":   procErr.Code,
		"signal": procErr.Signal,
	}).Debug("claude exited with error")
	cb.fail(procErr)
	return procErr
}

func (e *DefaultExecutor) spawnFailed(cb Callbacks, cause error) error {
	err := fmt.Errorf("failed to spawn claude CLI: %w", cause)
	cb.fail(err)
	return err
}

// forwardSignals terminates proc once when this process is interrupted or
// ctx is cancelled. The returned function deregisters the handlers and must
// be called when proc has exited.
func forwardSignals(ctx context.Context, proc *os.Process) func() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	var once sync.Once
	kill := func() {
		once.Do(func() {
			_ = proc.Signal(syscall.SIGTERM)
		})
	}

	go func() {
		select {
		case <-sigCh:
			kill()
		case <-ctx.Done():
			kill()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}
