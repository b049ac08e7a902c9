package routing

import (
	"errors"
	"fmt"
)

var (
	ErrNoRoutes   = errors.New("routing: no routes configured")
	ErrEmptyTopic = errors.New("routing: empty topic")
)

// RuleError reports an invalid rule by its position in the file
type RuleError struct {
	Index int    // Zero-based rule index
	Field string // from_topic or to_topic
	Err   error  // Underlying error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("routing rule %d: %s: %v", e.Index, e.Field, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}
