package claude

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	lineInit      = `{"type":"system","subtype":"init","session_id":"abc"}`
	lineTextStart = `{"type":"stream_event","event":{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}}`
	lineStop      = `{"type":"stream_event","event":{"type":"content_block_stop","index":0}}`
	lineReadStart = `{"type":"stream_event","event":{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_1","name":"Read"}}}`
	lineResult    = `{"type":"result","subtype":"success"}`
)

func textDelta(text string) string {
	return `{"type":"stream_event","event":{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"` + text + `"}}}`
}

func inputDelta(escapedJSON string) string {
	return `{"type":"stream_event","event":{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"` + escapedJSON + `"}}}`
}

func toolStart(name string) string {
	return `{"type":"stream_event","event":{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_x","name":"` + name + `"}}}`
}

// fixtureStream is a realistic session: text, a Read tool call whose input is
// split over two deltas, then a second text block.
func fixtureStream() string {
	lines := []string{
		lineInit,
		lineTextStart,
		textDelta("Hello"),
		textDelta(" world"),
		lineStop,
		lineReadStart,
		inputDelta(`{\"file_path\":`),
		inputDelta(`\"/tmp/a.go\"}`),
		lineStop,
		lineTextStart,
		textDelta("Done"),
		lineStop,
		lineResult,
	}
	return strings.Join(lines, "\n") + "\n"
}

var fixtureTokens = []string{
	"Hello",
	" world",
	"\n\n[Reading /tmp/a.go]\n",
	"\n",
	"Done",
}

type recorder struct {
	tokens []string
	starts int
}

func (r *recorder) parser() *StreamParser {
	return NewStreamParser(
		func(text string) { r.tokens = append(r.tokens, text) },
		func() { r.starts++ },
	)
}

func TestStreamParser_WholeStream(t *testing.T) {
	rec := &recorder{}
	p := rec.parser()

	n, err := p.Write([]byte(fixtureStream()))
	require.NoError(t, err)
	assert.Equal(t, len(fixtureStream()), n)

	assert.Equal(t, fixtureTokens, rec.tokens)
	assert.Equal(t, 1, rec.starts)
}

func TestStreamParser_ChunkingInvariance(t *testing.T) {
	stream := []byte(fixtureStream())

	for split := 0; split <= len(stream); split++ {
		rec := &recorder{}
		p := rec.parser()
		_, _ = p.Write(stream[:split])
		_, _ = p.Write(stream[split:])

		require.Equal(t, fixtureTokens, rec.tokens, "split at byte %d", split)
		require.Equal(t, 1, rec.starts, "split at byte %d", split)
	}
}

func TestStreamParser_ByteAtATime(t *testing.T) {
	stream := []byte(fixtureStream())
	rec := &recorder{}
	p := rec.parser()

	for i := range stream {
		_, _ = p.Write(stream[i : i+1])
	}

	assert.Equal(t, fixtureTokens, rec.tokens)
	assert.Equal(t, 1, rec.starts)
}

func TestStreamParser_TextBlockSeparator(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  []string
	}{
		{
			name:  "first text block has no leading newline",
			lines: []string{lineTextStart, textDelta("a")},
			want:  []string{"a"},
		},
		{
			name:  "second text block gets a leading newline",
			lines: []string{lineTextStart, textDelta("a"), lineStop, lineTextStart, textDelta("b")},
			want:  []string{"a", "\n", "b"},
		},
		{
			name:  "empty text block still counts as seen",
			lines: []string{lineTextStart, lineStop, lineTextStart, textDelta("b")},
			want:  []string{"\n", "b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			p := rec.parser()
			_, _ = p.Write([]byte(strings.Join(tt.lines, "\n") + "\n"))
			assert.Equal(t, tt.want, rec.tokens)
		})
	}
}

func TestStreamParser_FirstOutputFiresOnce(t *testing.T) {
	tests := []struct {
		name       string
		lines      []string
		wantStarts int
	}{
		{
			name:       "no output",
			lines:      []string{lineInit, lineTextStart, lineStop, lineResult},
			wantStarts: 0,
		},
		{
			name:       "tool use only",
			lines:      []string{toolStart("Bash"), lineStop, toolStart("Read"), lineStop},
			wantStarts: 1,
		},
		{
			name:       "text then tool",
			lines:      []string{lineTextStart, textDelta("x"), textDelta("y"), lineStop, toolStart("Bash"), lineStop},
			wantStarts: 1,
		},
		{
			name:       "empty text delta is not output",
			lines:      []string{lineTextStart, textDelta("")},
			wantStarts: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			p := rec.parser()
			_, _ = p.Write([]byte(strings.Join(tt.lines, "\n") + "\n"))
			assert.Equal(t, tt.wantStarts, rec.starts)
		})
	}
}

func TestStreamParser_SkipsMalformedLines(t *testing.T) {
	rec := &recorder{}
	p := rec.parser()

	stream := strings.Join([]string{
		"not json at all",
		"",
		"   ",
		`{"type":"stream_event","event":`,
		textDelta("kept"),
		`{"type":"assistant","message":{"content":[{"type":"text","text":"ignored"}]}}`,
		`{"type":"stream_event"}`,
	}, "\n") + "\n"
	_, _ = p.Write([]byte(stream))

	assert.Equal(t, []string{"kept"}, rec.tokens)
}

func TestStreamParser_ToolWithoutInput(t *testing.T) {
	rec := &recorder{}
	p := rec.parser()

	_, _ = p.Write([]byte(toolStart("TodoWrite") + "\n" + lineStop + "\n"))

	assert.Equal(t, []string{"\n\n[Using TodoWrite]\n"}, rec.tokens)
}

func TestStreamParser_StopWithoutToolEmitsNothing(t *testing.T) {
	rec := &recorder{}
	p := rec.parser()

	_, _ = p.Write([]byte(lineStop + "\n" + lineStop + "\n"))

	assert.Empty(t, rec.tokens)
}

func TestStreamParser_IncompleteLineHeldUntilNewline(t *testing.T) {
	rec := &recorder{}
	p := rec.parser()

	_, _ = p.Write([]byte(textDelta("partial")))
	assert.Empty(t, rec.tokens)

	_, _ = p.Write([]byte("\n"))
	assert.Equal(t, []string{"partial"}, rec.tokens)
}

func TestStreamParser_Flush(t *testing.T) {
	rec := &recorder{}
	p := rec.parser()

	_, _ = p.Write([]byte(textDelta("a") + "\n" + textDelta("tail")))
	assert.Equal(t, []string{"a"}, rec.tokens)

	p.Flush()
	assert.Equal(t, []string{"a", "tail"}, rec.tokens)

	// A second flush has nothing left to process.
	p.Flush()
	assert.Equal(t, []string{"a", "tail"}, rec.tokens)
}

func TestStreamParser_CRLFLines(t *testing.T) {
	rec := &recorder{}
	p := rec.parser()

	_, _ = p.Write([]byte(lineTextStart + "\r\n" + textDelta("win") + "\r\n"))

	assert.Equal(t, []string{"win"}, rec.tokens)
}

func TestStreamParser_NilCallbacks(t *testing.T) {
	p := NewStreamParser(nil, nil)
	assert.NotPanics(t, func() {
		_, _ = p.Write([]byte(fixtureStream()))
		p.Flush()
	})
}
