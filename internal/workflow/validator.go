package workflow

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"beacon/internal/definition"
)

// MinPromptLength is the shortest accepted stage prompt, counted in
// characters after trimming.
const MinPromptLength = 10

// ErrValidation is wrapped by every [ValidationError].
var ErrValidation = errors.New("workflow validation failed")

// ValidationResult is the outcome of [Validate].
type ValidationResult struct {
	Valid  bool
	Errors []string
}

// ValidationError reports an invalid workflow definition. Errors holds every
// problem found, in the order they were detected.
type ValidationError struct {
	Workflow string
	Errors   []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("workflow %q is invalid: %s", e.Workflow, strings.Join(e.Errors, "; "))
}

// Unwrap allows errors.Is(err, ErrValidation).
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Validate checks a workflow definition.
//
// A definition without stages yields a single error and no further checks.
// Otherwise every stage is checked and all problems are reported with their
// 1-based stage number. A field with the wrong YAML shape is reported once
// and skips that field's other checks.
func Validate(def *definition.Definition) ValidationResult {
	var errs []string

	if def.SystemPromptTag != "" {
		errs = append(errs, "system_prompt must be a string if provided")
	}

	if len(def.Stages) == 0 {
		errs = append(errs, "Workflow must have at least one stage")
		return ValidationResult{Valid: false, Errors: errs}
	}

	for i, stage := range def.Stages {
		n := i + 1

		if stage.HasFieldError("") {
			errs = append(errs, fmt.Sprintf("Stage %d: must be a mapping (got %s)", n, stage.FieldErrors[0].Got))
			continue
		}
		for _, fe := range stage.FieldErrors {
			errs = append(errs, fmt.Sprintf("Stage %d: %s must be a string (got %s)", n, fe.Field, fe.Got))
		}

		if !stage.HasFieldError("title") && strings.TrimSpace(stage.Title) == "" {
			errs = append(errs, fmt.Sprintf("Stage %d: missing or empty title", n))
		}

		if !stage.HasFieldError("type") && stage.Type != definition.StageTypePrompt {
			errs = append(errs, fmt.Sprintf("Stage %d: type must be 'prompt' (got '%s')", n, stage.Type))
		}

		if stage.HasFieldError("prompt") {
			continue
		}
		prompt := strings.TrimSpace(stage.Prompt)
		if prompt == "" {
			errs = append(errs, fmt.Sprintf("Stage %d: missing or empty prompt", n))
		} else if l := utf8.RuneCountInString(prompt); l < MinPromptLength {
			errs = append(errs, fmt.Sprintf("Stage %d: prompt is too short (minimum %d characters, got %d)", n, MinPromptLength, l))
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
