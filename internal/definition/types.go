// Package definition loads workflow definitions from YAML files.
//
// A workflow lives in <dir>/<name>.yml and has the shape:
//
//	system_prompt: optional text prepended to every stage prompt
//	stages:
//	  - title: Plan
//	    type: prompt
//	    prompt: Outline the change before writing any code.
//
// Structural checks beyond "stages is a list" belong to the workflow
// validator, so a loaded [Definition] may still be invalid.
package definition

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ErrMalformed is returned when a workflow file is not a mapping with a
// stages list.
var ErrMalformed = errors.New("malformed workflow definition")

// StageType is the dispatch tag of a [Stage].
type StageType string

// StageTypePrompt sends the stage's prompt to Claude.
const StageTypePrompt StageType = "prompt"

// Stage is one step of a workflow.
type Stage struct {
	Title  string    `yaml:"title"`
	Type   StageType `yaml:"type"`
	Prompt string    `yaml:"prompt"`

	// FieldErrors lists values that had the wrong YAML shape. The field keeps
	// its zero value.
	FieldErrors []FieldError `yaml:"-"`
}

// FieldError records a stage value that is not a scalar. Field is empty when
// the stage itself is not a mapping.
type FieldError struct {
	Field string
	Got   string
}

// HasFieldError reports whether field was recorded in s.FieldErrors.
func (s Stage) HasFieldError(field string) bool {
	for _, fe := range s.FieldErrors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// UnmarshalYAML implements [yaml.Unmarshaler]. Scalars of any tag are kept
// as text and null means absent. Lists and mappings are recorded in
// FieldErrors instead of failing the whole file.
func (s *Stage) UnmarshalYAML(value *yaml.Node) error {
	value = resolveAlias(value)
	if value.Kind != yaml.MappingNode {
		s.FieldErrors = append(s.FieldErrors, FieldError{Got: describeNode(value)})
		return nil
	}

	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i], resolveAlias(value.Content[i+1])

		var dst *string
		switch key.Value {
		case "title":
			dst = &s.Title
		case "type":
			dst = (*string)(&s.Type)
		case "prompt":
			dst = &s.Prompt
		default:
			continue
		}

		if val.Kind != yaml.ScalarNode {
			s.FieldErrors = append(s.FieldErrors, FieldError{Field: key.Value, Got: describeNode(val)})
			continue
		}
		if val.ShortTag() == "!!null" {
			continue
		}
		*dst = val.Value
	}
	return nil
}

func resolveAlias(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func describeNode(n *yaml.Node) string {
	switch n.Kind {
	case yaml.SequenceNode:
		return "a list"
	case yaml.MappingNode:
		return "a mapping"
	}
	return n.ShortTag()
}

// Definition is a parsed workflow file.
type Definition struct {
	// SystemPrompt is the system_prompt text, empty when absent.
	SystemPrompt string

	// SystemPromptTag is the YAML tag of system_prompt when it was present
	// but not a string (for example "!!map" or "!!null"). It is empty
	// otherwise.
	SystemPromptTag string

	Stages []Stage
}

// Parse decodes a workflow definition from YAML.
func Parse(data []byte) (*Definition, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse workflow: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMalformed)
	}

	var def Definition
	if err := doc.Decode(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// UnmarshalYAML implements [yaml.Unmarshaler].
func (d *Definition) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: expected a mapping", ErrMalformed)
	}

	hasStages := false
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i], value.Content[i+1]
		switch key.Value {
		case "system_prompt":
			if val.Kind == yaml.ScalarNode && val.ShortTag() == "!!str" {
				d.SystemPrompt = val.Value
			} else {
				d.SystemPromptTag = val.ShortTag()
			}
		case "stages":
			if val.Kind != yaml.SequenceNode {
				return fmt.Errorf("%w: stages must be a list", ErrMalformed)
			}
			if err := val.Decode(&d.Stages); err != nil {
				return fmt.Errorf("failed to decode stages: %w", err)
			}
			hasStages = true
		}
	}

	if !hasStages {
		return fmt.Errorf("%w: missing stages", ErrMalformed)
	}
	return nil
}
