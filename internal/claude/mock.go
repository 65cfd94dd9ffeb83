package claude

import "context"

// MockResponse is one scripted response of a [MockExecutor].
//
// Lines, when set, are raw stream-json lines fed through a real [StreamParser]
// so tests exercise the full token pipeline. Tokens are delivered directly
// after Lines. When Err is set the response fails with it after all output
// has been delivered.
type MockResponse struct {
	Lines  []string
	Tokens []string
	Err    error
}

// MockExecutor implements [Executor] for testing without spawning processes.
//
// Each ExecutePrompt call consumes the next entry of Responses; once they are
// exhausted the last entry is reused. With no responses configured, every call
// succeeds without output.
type MockExecutor struct {
	Responses []MockResponse

	// RecordedPrompts records every prompt passed to ExecutePrompt, in order.
	RecordedPrompts []string
}

// ExecutePrompt replays the next scripted response through cb.
func (m *MockExecutor) ExecutePrompt(ctx context.Context, prompt string, cb Callbacks) error {
	call := len(m.RecordedPrompts)
	m.RecordedPrompts = append(m.RecordedPrompts, prompt)

	var resp MockResponse
	if n := len(m.Responses); n > 0 {
		resp = m.Responses[min(call, n-1)]
	}

	started := false
	start := func() {
		if !started {
			started = true
			cb.start()
		}
	}

	parser := NewStreamParser(cb.token, start)
	for _, line := range resp.Lines {
		_, _ = parser.Write([]byte(line + "\n"))
	}
	for _, tok := range resp.Tokens {
		start()
		cb.token(tok)
	}

	if resp.Err != nil {
		cb.fail(resp.Err)
		return resp.Err
	}
	cb.complete()
	return nil
}
