package claude

import (
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// ToolFormat renders a one-line annotation for invocations of the named tools.
//
// Format receives the tool's fully accumulated input object. Entries in
// [ToolFormats] are matched in order; the first entry listing the tool name
// wins.
type ToolFormat struct {
	Names  []string
	Format func(params gjson.Result) string
}

// ToolFormats maps Claude's built-in tool names to their annotation format.
// Tools not listed here fall through to the generic format used by
// [FormatToolUsage].
var ToolFormats = []ToolFormat{
	{
		Names: []string{"Write"},
		Format: func(params gjson.Result) string {
			return fmt.Sprintf("[Writing %s]", params.Get("file_path").String())
		},
	},
	{
		Names: []string{"Read"},
		Format: func(params gjson.Result) string {
			return fmt.Sprintf("[Reading %s]", params.Get("file_path").String())
		},
	},
	{
		Names: []string{"Edit"},
		Format: func(params gjson.Result) string {
			return fmt.Sprintf("[Editing %s]", baseName(params.Get("file_path").String()))
		},
	},
	{
		Names: []string{"Bash"},
		Format: func(params gjson.Result) string {
			desc := params.Get("description").String()
			if desc == "" {
				desc = truncateRunes(params.Get("command").String(), maxCommandRunes)
			}
			return fmt.Sprintf("[Running: %s]", desc)
		},
	},
	{
		Names: []string{"Grep", "Glob"},
		Format: func(params gjson.Result) string {
			target := params.Get("pattern").String()
			if target == "" {
				target = params.Get("path").String()
			}
			return fmt.Sprintf("[Searching: %s]", target)
		},
	},
}

const (
	// maxCommandRunes is how much of a Bash command is shown when the
	// invocation has no description.
	maxCommandRunes = 50

	// maxGenericParamRunes bounds the first parameter shown for unknown tools.
	maxGenericParamRunes = 60
)

// FormatToolUsage renders the annotation for a completed tool invocation.
//
// inputJSON is the concatenation of every input_json_delta fragment for the
// tool. If it is not a valid JSON object the annotation degrades to
// "[Using <tool>]". Unknown tools show their first parameter, in document
// order, when it is a string shorter than 60 characters.
func FormatToolUsage(toolName, inputJSON string) string {
	if !gjson.Valid(inputJSON) {
		return usingTool(toolName)
	}
	params := gjson.Parse(inputJSON)
	if !params.IsObject() {
		return usingTool(toolName)
	}

	for _, f := range ToolFormats {
		if slices.Contains(f.Names, toolName) {
			return f.Format(params)
		}
	}

	var first gjson.Result
	found := false
	params.ForEach(func(_, value gjson.Result) bool {
		first = value
		found = true
		return false
	})
	if found && first.Type == gjson.String && utf8.RuneCountInString(first.Str) < maxGenericParamRunes {
		return fmt.Sprintf("[%s: %s]", toolName, first.Str)
	}
	return usingTool(toolName)
}

func usingTool(toolName string) string {
	return fmt.Sprintf("[Using %s]", toolName)
}

// baseName returns the last slash-separated element of path, or path itself
// when that element is empty.
func baseName(path string) string {
	name := path[strings.LastIndex(path, "/")+1:]
	if name == "" {
		return path
	}
	return name
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
