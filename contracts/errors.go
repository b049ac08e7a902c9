package contracts

import (
	"errors"
	"fmt"
)

// ErrReplyChainExhausted is returned when replying to a message with no response topics left
var ErrReplyChainExhausted = errors.New("contracts: response chain is empty")

// ReplyError represents a failed reply
type ReplyError struct {
	Sender string // Sender of the message being replied to
	Err    error  // Underlying error
}

func (e *ReplyError) Error() string {
	return fmt.Sprintf("cannot reply to message from %q: %v", e.Sender, e.Err)
}

func (e *ReplyError) Unwrap() error {
	return e.Err
}
