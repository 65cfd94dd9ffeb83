// Package claude provides types and functionality for interacting with the Claude CLI.
//
// This package handles spawning Claude as a subprocess, parsing its streaming JSON
// output with partial messages enabled, and turning the raw event stream into
// ordered text tokens and one-line tool-usage annotations.
//
// Key types:
//   - [Executor]: Interface for running a prompt through the Claude CLI
//   - [StreamParser]: Incremental parser over raw stdout chunks
//   - [StreamEvent]: One line of Claude's stream-json output
//
// For testing, use [MockExecutor] which implements [Executor] without spawning
// real processes.
package claude

// StreamEvent represents a raw JSON line from Claude's streaming output.
//
// With --include-partial-messages, Claude wraps the Anthropic streaming events
// in an envelope of type "stream_event". Only those envelopes are interpreted;
// every other line type (system, assistant, user, result) is ignored by the
// [StreamParser].
type StreamEvent struct {
	Type  string      `json:"type"`
	Event *InnerEvent `json:"event,omitempty"`
}

// InnerEvent is the streaming event carried inside a [StreamEvent] envelope.
//
// The Type field discriminates the event:
//   - "content_block_start": ContentBlock describes the block being opened
//   - "content_block_delta": Delta carries a text or tool-input fragment
//   - "content_block_stop": the current block is finished
//
// Any other type is treated as "other" and has no effect.
type InnerEvent struct {
	Type         string        `json:"type"`
	Index        int           `json:"index,omitempty"`
	ContentBlock *ContentBlock `json:"content_block,omitempty"`
	Delta        *Delta        `json:"delta,omitempty"`
}

// ContentBlock describes a content block opened by a content_block_start event.
//
// Type is "text" for prose or "tool_use" for a tool invocation. Name and ID are
// only set for tool_use blocks.
type ContentBlock struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
	ID   string `json:"id,omitempty"`
}

// Delta is an incremental fragment of a content block.
//
// For text blocks Type is "text_delta" and Text holds the fragment. For tool_use
// blocks Type is "input_json_delta" and PartialJSON holds a piece of the tool's
// input object, which is only valid JSON once all fragments are concatenated.
type Delta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
}

// Stream event and block type names used by the Claude CLI.
const (
	TypeStreamEvent = "stream_event"

	EventContentBlockStart = "content_block_start"
	EventContentBlockDelta = "content_block_delta"
	EventContentBlockStop  = "content_block_stop"

	BlockText    = "text"
	BlockToolUse = "tool_use"

	DeltaText      = "text_delta"
	DeltaInputJSON = "input_json_delta"
)

// Callbacks receives the streamed response of a single prompt execution.
//
// All fields are optional. For a given [Executor.ExecutePrompt] call, OnStart
// fires at most once, before the first OnToken carrying model output, and
// exactly one of OnComplete or OnError fires before ExecutePrompt returns.
type Callbacks struct {
	// OnStart is called when the first output (text or tool usage) arrives.
	OnStart func()

	// OnToken is called for each text fragment or tool annotation, in order.
	OnToken func(text string)

	// OnComplete is called when the process exits with code 0.
	OnComplete func()

	// OnError is called with the failure when the process cannot be spawned
	// or exits with a non-zero code.
	OnError func(err error)
}

func (c Callbacks) start() {
	if c.OnStart != nil {
		c.OnStart()
	}
}

func (c Callbacks) token(text string) {
	if c.OnToken != nil {
		c.OnToken(text)
	}
}

func (c Callbacks) complete() {
	if c.OnComplete != nil {
		c.OnComplete()
	}
}

func (c Callbacks) fail(err error) {
	if c.OnError != nil {
		c.OnError(err)
	}
}
