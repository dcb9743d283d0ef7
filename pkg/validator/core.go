package validator

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError represents a single failed rule.
type ValidationError struct {
	Field   string
	Message string
}

// ValidationErrors represents a collection of validation errors.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(ve))
	for _, err := range ve {
		parts = append(parts, fmt.Sprintf("%s: %s", err.Field, err.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether any error was recorded for the given field.
func (ve ValidationErrors) Has(field string) bool {
	for _, err := range ve {
		if err.Field == field {
			return true
		}
	}
	return false
}

// Get returns all messages recorded for the given field.
func (ve ValidationErrors) Get(field string) []string {
	var messages []string
	for _, err := range ve {
		if err.Field == field {
			messages = append(messages, err.Message)
		}
	}
	return messages
}

// Rule represents a single validation rule.
type Rule struct {
	Check func() bool
	Error ValidationError
}

// Apply executes the rules and returns accumulated ValidationErrors, or
// nil if every rule passed.
func Apply(rules ...Rule) error {
	var failed ValidationErrors
	for _, rule := range rules {
		if !rule.Check() {
			failed = append(failed, rule.Error)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return failed
}

// Extract pulls ValidationErrors out of an error chain, returning nil if
// the error does not carry any.
func Extract(err error) ValidationErrors {
	var ve ValidationErrors
	if errors.As(err, &ve) {
		return ve
	}
	return nil
}

// IsValidationError reports whether err carries validation failures.
func IsValidationError(err error) bool {
	return Extract(err) != nil
}
