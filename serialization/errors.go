package serialization

import (
	"errors"
	"fmt"
)

var (
	ErrPayloadTooShort       = errors.New("serialization: payload shorter than its header implies")
	ErrUnknownMessageType    = errors.New("serialization: unknown message type code")
	ErrFieldNotFound         = errors.New("serialization: field not found")
	ErrUnexpectedToken       = errors.New("serialization: unexpected token")
	ErrTooManyParams         = errors.New("serialization: more than 255 params")
	ErrTooManyResponseTopics = errors.New("serialization: more than 255 response topics")
	ErrSeparatorInField      = errors.New("serialization: field contains the separator byte")
)

// CodecError represents a failed encode or decode
type CodecError struct {
	Op    string // "encode" or "decode"
	Field string // Field being processed when the failure happened
	Err   error  // Underlying error
}

func (e *CodecError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("codec %s error: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("codec %s error on field %s: %v", e.Op, e.Field, e.Err)
}

func (e *CodecError) Unwrap() error {
	return e.Err
}

func encodeError(field string, err error) error {
	return &CodecError{Op: "encode", Field: field, Err: err}
}

func decodeError(field string, err error) error {
	return &CodecError{Op: "decode", Field: field, Err: err}
}
