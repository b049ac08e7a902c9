package contracts

import (
	"fmt"
	"maps"
)

// Reserved discovery topics.
const (
	ModuleInfoRequestTopic  = "module.info.request"
	ModuleInfoResponseTopic = "module.info.response"

	// EventTopicPrefix prefixes ad hoc broadcast topics: event.<publisher>.<event>
	EventTopicPrefix = "event"

	// ListenCapability is the ModuleInfo param listing every topic a module listens to
	ListenCapability = "event"
)

// MessageType identifies the kind of payload a message carries
type MessageType uint8

const (
	Unknown MessageType = iota
	Text
	Audio
	Photo
	ModuleInfo
)

var messageTypeNames = [...]string{
	Unknown:    "Unknown",
	Text:       "Text",
	Audio:      "Audio",
	Photo:      "Photo",
	ModuleInfo: "ModuleInfo",
}

// Valid reports whether t is one of the known message types
func (t MessageType) Valid() bool {
	return int(t) < len(messageTypeNames)
}

// String returns the type name
func (t MessageType) String() string {
	if !t.Valid() {
		return fmt.Sprintf("MessageType(%d)", uint8(t))
	}
	return messageTypeNames[t]
}

// ParseMessageType parses a type name such as "Text"
func ParseMessageType(s string) (MessageType, error) {
	for i, name := range messageTypeNames {
		if name == s {
			return MessageType(i), nil
		}
	}
	return Unknown, fmt.Errorf("%q is not a valid message type", s)
}

// MarshalText implements encoding.TextMarshaler
func (t MessageType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid message type %d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (t *MessageType) UnmarshalText(text []byte) error {
	parsed, err := ParseMessageType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Message is a single unit of communication between modules
type Message struct {
	Type           MessageType
	Text           string
	Sender         string
	ResponseTopics ResponseChain
	Params         map[string]string
}

// NewTextMessage creates a Text message
func NewTextMessage(text, sender string, responseTopics ...string) Message {
	return Message{
		Type:           Text,
		Text:           text,
		Sender:         sender,
		ResponseTopics: NewResponseChain(responseTopics...),
	}
}

// NewModuleInfoMessage creates the announcement a module publishes about itself
func NewModuleInfoMessage(moduleName string, capabilities map[string]string) Message {
	return Message{
		Type:   ModuleInfo,
		Text:   moduleName,
		Params: maps.Clone(capabilities),
	}
}

// Clone returns a copy that shares no mutable state with m
func (m Message) Clone() Message {
	c := m
	c.Params = maps.Clone(m.Params)
	return c
}

// Param returns a single param value
func (m Message) Param(key string) (string, bool) {
	v, ok := m.Params[key]
	return v, ok
}

// Reply builds a reply addressed to the next topic of the response chain.
// The reply keeps the sender and the remaining chain; it carries no params.
func (m Message) Reply(text string, messageType MessageType) (string, Message, error) {
	topic, rest, ok := m.ResponseTopics.Pop()
	if !ok {
		return "", Message{}, &ReplyError{Sender: m.Sender, Err: ErrReplyChainExhausted}
	}
	return topic, Message{
		Type:           messageType,
		Text:           text,
		Sender:         m.Sender,
		ResponseTopics: rest,
	}, nil
}

// String renders the message for logs
func (m Message) String() string {
	return fmt.Sprintf("%s from %q: %q (reply to %v, params %v)",
		m.Type, m.Sender, m.Text, m.ResponseTopics.Topics(), m.Params)
}

// EventTopic builds the broadcast topic for an event raised by publisher
func EventTopic(publisher, event string) string {
	return EventTopicPrefix + "." + publisher + "." + event
}
