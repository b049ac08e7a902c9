package serialization

import (
	"bytes"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/alfredmq/alfred-go/contracts"
)

const (
	// Separator splits the fields of an encoded message
	Separator byte = 0x00

	// HeaderSize is the number of fixed bytes before the body
	HeaderSize = 3

	// MaxCount is the largest params or response topic count a header can hold
	MaxCount = 255
)

var separator = []byte{Separator}

// Codec converts messages to and from transport payloads
type Codec interface {
	Encode(msg contracts.Message) ([]byte, error)
	Decode(payload []byte) (contracts.Message, error)
}

// BinaryCodec is the positional wire codec used by every alfred module
type BinaryCodec struct{}

// NewBinaryCodec creates the default codec
func NewBinaryCodec() *BinaryCodec {
	return &BinaryCodec{}
}

// Encode implements Codec
func (c *BinaryCodec) Encode(msg contracts.Message) ([]byte, error) {
	return Encode(msg)
}

// Decode implements Codec
func (c *BinaryCodec) Decode(payload []byte) (contracts.Message, error) {
	return Decode(payload)
}

// Encode serializes msg. Params are written in key order so equal messages
// always produce identical payloads.
func Encode(msg contracts.Message) ([]byte, error) {
	if !msg.Type.Valid() {
		return nil, encodeError("message_type", ErrUnknownMessageType)
	}
	if len(msg.Params) > MaxCount {
		return nil, encodeError("params", ErrTooManyParams)
	}
	topics := msg.ResponseTopics.Topics()
	if len(topics) > MaxCount {
		return nil, encodeError("response_topics", ErrTooManyResponseTopics)
	}

	keys := make([]string, 0, len(msg.Params))
	for k := range msg.Params {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var buf bytes.Buffer
	buf.Grow(HeaderSize + len(msg.Sender) + len(msg.Text) + 16*(len(keys)+len(topics)))
	buf.WriteByte(byte(msg.Type))
	buf.WriteByte(byte(len(keys)))
	buf.WriteByte(byte(len(topics)))

	for _, k := range keys {
		v := msg.Params[k]
		if containsSeparator(k) || containsSeparator(v) {
			return nil, encodeError("params", ErrSeparatorInField)
		}
		buf.WriteString(k)
		buf.WriteByte(Separator)
		buf.WriteString(v)
		buf.WriteByte(Separator)
	}

	for i, topic := range topics {
		if containsSeparator(topic) {
			return nil, encodeError("response_topics", ErrSeparatorInField)
		}
		if i > 0 {
			buf.WriteByte(Separator)
		}
		buf.WriteString(topic)
	}

	if containsSeparator(msg.Sender) {
		return nil, encodeError("sender", ErrSeparatorInField)
	}
	buf.WriteByte(Separator)
	buf.WriteString(msg.Sender)
	buf.WriteByte(Separator)
	buf.WriteString(msg.Text)

	return buf.Bytes(), nil
}

// Decode parses a payload produced by Encode
func Decode(payload []byte) (contracts.Message, error) {
	if len(payload) < HeaderSize {
		return contracts.Message{}, decodeError("header", ErrPayloadTooShort)
	}

	msgType := contracts.MessageType(payload[0])
	if !msgType.Valid() {
		return contracts.Message{}, decodeError("message_type", ErrUnknownMessageType)
	}
	paramCount := int(payload[1])
	topicCount := int(payload[2])

	tokens := bytes.Split(payload[HeaderSize:], separator)

	// an empty reply chain still occupies one (empty) token
	topicTokens := max(topicCount, 1)
	paramTokens := 2 * paramCount
	senderIndex := paramTokens + topicTokens
	textIndex := senderIndex + 1

	switch {
	case len(tokens) < paramTokens:
		return contracts.Message{}, decodeError("params", ErrFieldNotFound)
	case len(tokens) < senderIndex:
		return contracts.Message{}, decodeError("response_topics", ErrFieldNotFound)
	case len(tokens) < textIndex:
		return contracts.Message{}, decodeError("sender", ErrFieldNotFound)
	case len(tokens) < textIndex+1:
		return contracts.Message{}, decodeError("text", ErrFieldNotFound)
	}

	var params map[string]string
	if paramCount > 0 {
		params = make(map[string]string, paramCount)
		for i := 0; i < paramTokens; i += 2 {
			params[string(tokens[i])] = string(tokens[i+1])
		}
	}

	var chain contracts.ResponseChain
	if topicCount == 0 {
		if len(tokens[paramTokens]) != 0 {
			return contracts.Message{}, decodeError("response_topics", ErrUnexpectedToken)
		}
	} else {
		topics := make([]string, topicCount)
		for i := range topics {
			topics[i] = string(tokens[paramTokens+i])
		}
		chain = contracts.NewResponseChain(topics...)
	}

	return contracts.Message{
		Type:           msgType,
		Text:           string(bytes.Join(tokens[textIndex:], separator)),
		Sender:         string(tokens[senderIndex]),
		ResponseTopics: chain,
		Params:         params,
	}, nil
}

// ValidUTF8Payload reports whether the textual part of an encoded payload is
// valid UTF-8. The three header bytes are binary and are not checked.
func ValidUTF8Payload(payload []byte) bool {
	if len(payload) < HeaderSize {
		return utf8.Valid(payload)
	}
	return utf8.Valid(payload[HeaderSize:])
}

func containsSeparator(s string) bool {
	return strings.IndexByte(s, Separator) >= 0
}
