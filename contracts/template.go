package contracts

import "maps"

// MessageTemplate overrides selected fields of a message.
//
// A nil field keeps the value of the base message. Params is accepted so that
// configuration files carrying it still parse, but it is never applied:
// generated messages always take their params from the base.
type MessageTemplate struct {
	Text           *string           `toml:"text"`
	Sender         *string           `toml:"sender"`
	ResponseTopics *[]string         `toml:"response_topics"`
	MessageType    *MessageType      `toml:"message_type"`
	Params         map[string]string `toml:"params"`
}

// Generate returns a new message built from base with the template's overrides applied
func (t MessageTemplate) Generate(base Message) Message {
	out := Message{
		Type:           base.Type,
		Text:           base.Text,
		Sender:         base.Sender,
		ResponseTopics: base.ResponseTopics,
		Params:         maps.Clone(base.Params),
	}
	if t.Text != nil {
		out.Text = *t.Text
	}
	if t.Sender != nil {
		out.Sender = *t.Sender
	}
	if t.ResponseTopics != nil {
		out.ResponseTopics = NewResponseChain(*t.ResponseTopics...)
	}
	if t.MessageType != nil {
		out.Type = *t.MessageType
	}
	return out
}
