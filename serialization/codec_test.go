package serialization

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/alfredmq/alfred-go/contracts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeLayout(t *testing.T) {
	msg := contracts.Message{
		Type:           contracts.Text,
		Text:           "hello",
		Sender:         "user",
		ResponseTopics: contracts.NewResponseChain("a.reply", "b.reply"),
		Params:         map[string]string{"lang": "en"},
	}

	payload, err := Encode(msg)
	require.NoError(t, err)

	expected := []byte{byte(contracts.Text), 1, 2}
	expected = append(expected, "lang\x00en\x00a.reply\x00b.reply\x00user\x00hello"...)
	assert.Equal(t, expected, payload)
}

func TestEncodeEmptyMessage(t *testing.T) {
	payload, err := Encode(contracts.Message{})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, Separator, Separator}, payload)

	decoded, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, contracts.Message{}, decoded)
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  contracts.Message
	}{
		{
			name: "text message with reply chain",
			msg:  contracts.NewTextMessage("ciao", "123", "user.reply", "log.reply"),
		},
		{
			name: "module info with capabilities",
			msg: contracts.NewModuleInfoMessage("routing", map[string]string{
				"topics":  "a,b",
				"version": "1.2.0",
			}),
		},
		{
			name: "empty strings everywhere",
			msg: contracts.Message{
				Type:           contracts.Photo,
				ResponseTopics: contracts.NewResponseChain(""),
				Params:         map[string]string{"": ""},
			},
		},
		{
			name: "unicode content",
			msg: contracts.Message{
				Type:   contracts.Audio,
				Text:   "città ☕ 音",
				Sender: "ñ",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := Encode(tt.msg)
			require.NoError(t, err)

			decoded, err := Decode(payload)
			require.NoError(t, err)
			assert.Equal(t, tt.msg, decoded)
		})
	}
}

func TestRoundTripAtCountLimit(t *testing.T) {
	params := make(map[string]string, MaxCount)
	topics := make([]string, MaxCount)
	for i := 0; i < MaxCount; i++ {
		params[fmt.Sprintf("key%03d", i)] = fmt.Sprintf("value%d", i)
		topics[i] = fmt.Sprintf("topic.%d", i)
	}
	msg := contracts.Message{
		Type:           contracts.Text,
		Text:           "limit",
		ResponseTopics: contracts.NewResponseChain(topics...),
		Params:         params,
	}

	payload, err := Encode(msg)
	require.NoError(t, err)
	assert.Equal(t, byte(MaxCount), payload[1])
	assert.Equal(t, byte(MaxCount), payload[2])

	decoded, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)
}

func TestTextMayContainSeparator(t *testing.T) {
	msg := contracts.Message{
		Type:   contracts.Text,
		Text:   "first\x00second\x00\x00third",
		Sender: "s",
	}

	payload, err := Encode(msg)
	require.NoError(t, err)

	decoded, err := Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, msg.Text, decoded.Text)
}

func TestEncodeErrors(t *testing.T) {
	tooMany := func(n int) map[string]string {
		m := make(map[string]string, n)
		for i := 0; i < n; i++ {
			m[fmt.Sprint(i)] = "v"
		}
		return m
	}
	topics := make([]string, MaxCount+1)

	tests := []struct {
		name  string
		msg   contracts.Message
		field string
		err   error
	}{
		{"invalid type", contracts.Message{Type: contracts.MessageType(99)}, "message_type", ErrUnknownMessageType},
		{"too many params", contracts.Message{Params: tooMany(MaxCount + 1)}, "params", ErrTooManyParams},
		{"too many topics", contracts.Message{ResponseTopics: contracts.NewResponseChain(topics...)}, "response_topics", ErrTooManyResponseTopics},
		{"separator in key", contracts.Message{Params: map[string]string{"a\x00b": "v"}}, "params", ErrSeparatorInField},
		{"separator in value", contracts.Message{Params: map[string]string{"k": "\x00"}}, "params", ErrSeparatorInField},
		{"separator in topic", contracts.Message{ResponseTopics: contracts.NewResponseChain("a\x00")}, "response_topics", ErrSeparatorInField},
		{"separator in sender", contracts.Message{Sender: "x\x00y"}, "sender", ErrSeparatorInField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.msg)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)

			var codecErr *CodecError
			require.True(t, errors.As(err, &codecErr))
			assert.Equal(t, "encode", codecErr.Op)
			assert.Equal(t, tt.field, codecErr.Field)
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		field   string
		err     error
	}{
		{"nil payload", nil, "header", ErrPayloadTooShort},
		{"header only partially present", []byte{1, 0}, "header", ErrPayloadTooShort},
		{"unknown type code", []byte{0xEE, 0, 0, 0, 0}, "message_type", ErrUnknownMessageType},
		{"params missing", []byte{1, 2, 0, 'k', 0, 'v'}, "params", ErrFieldNotFound},
		{"topics missing", []byte{1, 0, 3, 'a', 0, 'b'}, "response_topics", ErrFieldNotFound},
		{"sender missing", []byte{1, 0, 0}, "sender", ErrFieldNotFound},
		{"text missing", []byte{1, 0, 0, 0, 's'}, "text", ErrFieldNotFound},
		{"content where no topic expected", []byte{1, 0, 0, 'x', 0, 's', 0, 't'}, "response_topics", ErrUnexpectedToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.payload)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)

			var codecErr *CodecError
			require.True(t, errors.As(err, &codecErr))
			assert.Equal(t, "decode", codecErr.Op)
			assert.Equal(t, tt.field, codecErr.Field)
		})
	}
}

func TestDecodeNeverPanics(t *testing.T) {
	payload, err := Encode(contracts.Message{
		Type:           contracts.ModuleInfo,
		Text:           "text\x00with\x00sep",
		Sender:         "sender",
		ResponseTopics: contracts.NewResponseChain("a", "b"),
		Params:         map[string]string{"k1": "v1", "k2": "v2"},
	})
	require.NoError(t, err)

	t.Run("every truncation", func(t *testing.T) {
		for i := 0; i <= len(payload); i++ {
			assert.NotPanics(t, func() { _, _ = Decode(payload[:i]) })
		}
	})

	t.Run("every first byte", func(t *testing.T) {
		for b := 0; b < 256; b++ {
			corrupted := bytes.Clone(payload)
			corrupted[0] = byte(b)
			assert.NotPanics(t, func() {
				_, err := Decode(corrupted)
				if !contracts.MessageType(b).Valid() {
					assert.ErrorIs(t, err, ErrUnknownMessageType)
				}
			})
		}
	})

	t.Run("random payloads", func(t *testing.T) {
		rng := rand.New(rand.NewSource(7))
		for i := 0; i < 2000; i++ {
			buf := make([]byte, rng.Intn(64))
			rng.Read(buf)
			assert.NotPanics(t, func() { _, _ = Decode(buf) })
		}
	})
}

func TestBinaryCodec(t *testing.T) {
	var codec Codec = NewBinaryCodec()
	msg := contracts.NewTextMessage("hi", "me", "back")

	payload, err := codec.Encode(msg)
	require.NoError(t, err)
	decoded, err := codec.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)
}

func TestValidUTF8Payload(t *testing.T) {
	payload, err := Encode(contracts.Message{Type: contracts.Text, Text: "ok"})
	require.NoError(t, err)
	assert.True(t, ValidUTF8Payload(payload))

	// header bytes above 0x7F are allowed
	assert.True(t, ValidUTF8Payload([]byte{1, 200, 255, 0, 0}))
	assert.False(t, ValidUTF8Payload(append(bytes.Clone(payload), 0xff, 0xfe)))
	assert.True(t, ValidUTF8Payload([]byte{1}))
}
