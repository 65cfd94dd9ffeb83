package claude

import (
	"bytes"
	"encoding/json"
	"strings"
)

// StreamParser incrementally parses Claude's stream-json output.
//
// Unlike a line scanner bound to a reader, StreamParser is fed raw chunks as
// they arrive via [StreamParser.Write]. Chunks carry no alignment guarantee:
// a JSON line may be split across any number of writes. The parser keeps the
// trailing incomplete fragment between writes and only interprets complete,
// newline-terminated lines, so the emitted token sequence is the same no
// matter where the chunk boundaries fall.
//
// Lines that are empty, not valid JSON, or not "stream_event" envelopes are
// silently skipped.
//
// A StreamParser is single-use and not safe for concurrent writes. Create one
// per prompt execution with [NewStreamParser].
type StreamParser struct {
	onToken       func(text string)
	onFirstOutput func()

	pending       []byte
	emittedFirst  bool
	seenTextBlock bool
	toolName      string
	toolInput     strings.Builder
}

// NewStreamParser creates a [StreamParser] that reports tokens to onToken and
// the first output of any kind to onFirstOutput. Either callback may be nil.
func NewStreamParser(onToken func(text string), onFirstOutput func()) *StreamParser {
	return &StreamParser{
		onToken:       onToken,
		onFirstOutput: onFirstOutput,
	}
}

// Write appends a chunk of raw stdout bytes and processes every line it
// completes. It implements [io.Writer] so a subprocess pipe can be copied
// straight into the parser; it never returns an error.
func (p *StreamParser) Write(chunk []byte) (int, error) {
	p.pending = append(p.pending, chunk...)

	for {
		i := bytes.IndexByte(p.pending, '\n')
		if i < 0 {
			break
		}
		line := p.pending[:i]
		p.handleLine(line)
		p.pending = p.pending[i+1:]
	}

	// Release the consumed prefix so a long stream does not pin its history.
	if len(p.pending) == 0 {
		p.pending = nil
	}

	return len(chunk), nil
}

// Flush processes any trailing fragment left without a newline.
//
// Call Flush once the stream reaches EOF. A well-formed stream always ends in
// a newline, in which case Flush is a no-op.
func (p *StreamParser) Flush() {
	if len(p.pending) == 0 {
		return
	}
	line := p.pending
	p.pending = nil
	p.handleLine(line)
}

func (p *StreamParser) handleLine(line []byte) {
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}

	var raw StreamEvent
	if err := json.Unmarshal(line, &raw); err != nil {
		return
	}
	if raw.Type != TypeStreamEvent || raw.Event == nil {
		return
	}
	ev := raw.Event

	// A text block after any earlier text block is separated by a newline.
	if ev.Type == EventContentBlockStart && ev.ContentBlock != nil && ev.ContentBlock.Type == BlockText {
		if p.seenTextBlock {
			p.emit("\n")
		}
		p.seenTextBlock = true
	}

	if ev.Type == EventContentBlockStart && ev.ContentBlock != nil &&
		ev.ContentBlock.Type == BlockToolUse && ev.ContentBlock.Name != "" {
		p.firstOutput()
		p.toolName = ev.ContentBlock.Name
		p.toolInput.Reset()
	}

	if ev.Type == EventContentBlockDelta && ev.Delta != nil &&
		ev.Delta.Type == DeltaInputJSON && ev.Delta.PartialJSON != "" {
		p.toolInput.WriteString(ev.Delta.PartialJSON)
	}

	if ev.Type == EventContentBlockStop && p.toolName != "" {
		info := FormatToolUsage(p.toolName, p.toolInput.String())
		p.emit("\n\n" + info + "\n")
		p.toolName = ""
		p.toolInput.Reset()
	}

	if ev.Type == EventContentBlockDelta && ev.Delta != nil &&
		ev.Delta.Type == DeltaText && ev.Delta.Text != "" {
		p.firstOutput()
		p.emit(ev.Delta.Text)
	}
}

func (p *StreamParser) firstOutput() {
	if p.emittedFirst {
		return
	}
	p.emittedFirst = true
	if p.onFirstOutput != nil {
		p.onFirstOutput()
	}
}

func (p *StreamParser) emit(text string) {
	if p.onToken != nil {
		p.onToken(text)
	}
}
