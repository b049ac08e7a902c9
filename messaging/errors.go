package messaging

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrTransportClosed = errors.New("messaging: transport is closed")
	ErrMissingFrame    = errors.New("messaging: expected two frames")
	ErrInvalidUTF8     = errors.New("messaging: frame is not valid UTF-8")
)

// ConnectionError represents a failure to reach the broker
type ConnectionError struct {
	Op        string    // Operation that failed
	Endpoint  string    // Endpoint (sanitized)
	Err       error     // Underlying error
	Timestamp time.Time // When the error occurred
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error: %s %s failed: %v", e.Op, e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// SubscribeError represents a failed subscription
type SubscribeError struct {
	Topic string // Topic being subscribed
	Err   error  // Underlying error
}

func (e *SubscribeError) Error() string {
	return fmt.Sprintf("error subscribing to topic %q: %v", e.Topic, e.Err)
}

func (e *SubscribeError) Unwrap() error {
	return e.Err
}

// PublishError represents a failed publish
type PublishError struct {
	Topic   string // Target topic
	Payload []byte // Encoded message
	Err     error  // Underlying error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("error publishing %d bytes to topic %q: %v", len(e.Payload), e.Topic, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}

// ReceiveError represents a failure to obtain the next unit from the transport
type ReceiveError struct {
	Err error // Underlying error
}

func (e *ReceiveError) Error() string {
	return fmt.Sprintf("error receiving message: %v", e.Err)
}

func (e *ReceiveError) Unwrap() error {
	return e.Err
}

// ConversionError represents a frame that could not be turned into text
type ConversionError struct {
	Frame int   // Index of the offending frame
	Err   error // Underlying error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("error converting frame %d: %v", e.Frame, e.Err)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}
