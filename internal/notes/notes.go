// Package notes extracts and re-formats the fenced note blocks that stages
// emit for reuse by later stages.
//
// A note is any markdown code fence tagged with the "note" language:
//
//	```note
//	[Label]
//	content
//	```
package notes

import (
	"regexp"
	"strings"
)

// noteBlock matches a ```note fence up to the next closing fence on its own
// line. Content is captured lazily so consecutive blocks stay separate.
var noteBlock = regexp.MustCompile("(?s)```note\\s*\\n(.*?)\\n```")

// Extract returns the trimmed contents of every note block in text, in order
// of appearance. Blocks that are empty after trimming are dropped. A text with
// no note blocks yields an empty (nil) slice.
func Extract(text string) []string {
	var found []string
	for _, m := range noteBlock.FindAllStringSubmatch(text, -1) {
		content := strings.TrimSpace(m[1])
		if content != "" {
			found = append(found, content)
		}
	}
	return found
}

// ContextHeader introduces prior notes in a stage prompt.
const ContextHeader = "Previous notes from earlier stages:"

// FormatForContext wraps each note in its own note fence, separates them by a
// blank line and frames the result with [ContextHeader] and a trailing rule.
// It returns the empty string when there are no notes.
func FormatForContext(contents []string) string {
	if len(contents) == 0 {
		return ""
	}

	blocks := make([]string, len(contents))
	for i, c := range contents {
		blocks[i] = "```note\n" + c + "\n```"
	}

	return ContextHeader + "\n\n" + strings.Join(blocks, "\n\n") + "\n\n---\n\n"
}
