//go:build unix

package claude

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sleeperScript prints one token so OnStart fires, then blocks. exec keeps
// the sleep in the stub's own process so a single SIGTERM ends it.
func sleeperScript(t *testing.T) string {
	t.Helper()
	return writeScript(t, "cat <<'EOF'\n"+textDelta("waiting")+"\nEOF\nexec sleep 20\n")
}

// catchInterrupts keeps a stray SIGINT from killing the test binary.
func catchInterrupts(t *testing.T) chan os.Signal {
	t.Helper()
	caught := make(chan os.Signal, 4)
	signal.Notify(caught, os.Interrupt)
	t.Cleanup(func() { signal.Stop(caught) })
	return caught
}

func interruptSelf(t *testing.T) {
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGINT))
}

func requireTerminated(t *testing.T, err error) {
	t.Helper()
	var procErr *ProcessError
	require.True(t, errors.As(err, &procErr), "got %v", err)
	assert.Equal(t, syscall.SIGTERM, procErr.Signal)
	assert.Equal(t, 128+int(syscall.SIGTERM), procErr.Code)
	assert.Equal(t, "claude CLI terminated by signal terminated", err.Error())
}

func TestDefaultExecutor_InterruptTerminatesChild(t *testing.T) {
	catchInterrupts(t)
	script := sleeperScript(t)
	e := NewExecutor(ExecutorConfig{BinaryPath: script, Stderr: &bytes.Buffer{}})

	log := &callbackLog{}
	cb := log.callbacks()
	onStart := cb.OnStart
	cb.OnStart = func() {
		onStart()
		interruptSelf(t)
	}

	started := time.Now()
	err := e.ExecutePrompt(context.Background(), "hello", cb)

	assert.Less(t, time.Since(started), 10*time.Second)
	requireTerminated(t, err)
	assert.Equal(t, []string{"start", "error"}, log.events)
	assert.Same(t, err, log.err)
}

func TestDefaultExecutor_ContextCancelTerminatesChild(t *testing.T) {
	script := writeScript(t, "exec sleep 20\n")
	e := NewExecutor(ExecutorConfig{BinaryPath: script, Stderr: &bytes.Buffer{}})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	log := &callbackLog{}
	started := time.Now()
	err := e.ExecutePrompt(ctx, "hello", log.callbacks())

	assert.Less(t, time.Since(started), 10*time.Second)
	requireTerminated(t, err)
	assert.Equal(t, []string{"error"}, log.events)
}

func TestDefaultExecutor_HandlerRemovedAfterCall(t *testing.T) {
	caught := catchInterrupts(t)
	e := NewExecutor(ExecutorConfig{BinaryPath: sleeperScript(t), Stderr: &bytes.Buffer{}})

	log := &callbackLog{}
	cb := log.callbacks()
	cb.OnStart = func() { interruptSelf(t) }
	requireTerminated(t, e.ExecutePrompt(context.Background(), "first", cb))
	<-caught

	// An interrupt between calls reaches only this test's handler.
	interruptSelf(t)
	select {
	case <-caught:
	case <-time.After(5 * time.Second):
		t.Fatal("interrupt was not delivered")
	}

	slow := writeScript(t, "sleep 0.3\ncat <<'EOF'\n"+textDelta("done")+"\nEOF\n")
	e = NewExecutor(ExecutorConfig{BinaryPath: slow, Stderr: &bytes.Buffer{}})

	log = &callbackLog{}
	err := e.ExecutePrompt(context.Background(), "second", log.callbacks())

	require.NoError(t, err)
	assert.Equal(t, []string{"start", "complete"}, log.events)
	assert.Equal(t, "done", log.tokens.String())
}
