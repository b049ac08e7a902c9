package routing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredmq/alfred-go/contracts"
)

func strPtr(s string) *string { return &s }

func TestNewTable(t *testing.T) {
	t.Run("no rules", func(t *testing.T) {
		_, err := NewTable(nil)
		assert.ErrorIs(t, err, ErrNoRoutes)
	})

	t.Run("empty topics are rejected", func(t *testing.T) {
		tests := []struct {
			name  string
			rules []Rule
			index int
			field string
		}{
			{"from", []Rule{{FromTopic: "", ToTopic: "b"}}, 0, "from_topic"},
			{"to", []Rule{{FromTopic: "a", ToTopic: "b"}, {FromTopic: "a", ToTopic: ""}}, 1, "to_topic"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := NewTable(tt.rules)
				var ruleErr *RuleError
				require.True(t, errors.As(err, &ruleErr))
				assert.Equal(t, tt.index, ruleErr.Index)
				assert.Equal(t, tt.field, ruleErr.Field)
				assert.ErrorIs(t, err, ErrEmptyTopic)
			})
		}
	})

	t.Run("topics are distinct in first-seen order", func(t *testing.T) {
		table, err := NewTable([]Rule{
			{FromTopic: "b", ToTopic: "x"},
			{FromTopic: "a", ToTopic: "y"},
			{FromTopic: "b", ToTopic: "z"},
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "a"}, table.Topics())
		assert.Equal(t, 3, table.Len())
	})
}

func TestResolve(t *testing.T) {
	in := contracts.Message{
		Type:           contracts.Text,
		Text:           "hi",
		Sender:         "42",
		ResponseTopics: contracts.NewResponseChain("reply"),
		Params:         map[string]string{"lang": "en"},
	}

	t.Run("pass-through", func(t *testing.T) {
		table, err := NewTable([]Rule{{FromTopic: "A", ToTopic: "B"}})
		require.NoError(t, err)

		outputs := table.Resolve("A", in)
		require.Len(t, outputs, 1)
		assert.Equal(t, "B", outputs[0].Topic)
		assert.Equal(t, in, outputs[0].Message)
	})

	t.Run("fan-out in rule order", func(t *testing.T) {
		table, err := NewTable([]Rule{
			{FromTopic: "A", ToTopic: "B"},
			{FromTopic: "other", ToTopic: "D"},
			{FromTopic: "A", ToTopic: "C", Message: &contracts.MessageTemplate{Text: strPtr("hello")}},
		})
		require.NoError(t, err)

		outputs := table.Resolve("A", in)
		require.Len(t, outputs, 2)
		assert.Equal(t, "B", outputs[0].Topic)
		assert.Equal(t, "hi", outputs[0].Message.Text)
		assert.Equal(t, "C", outputs[1].Topic)
		assert.Equal(t, "hello", outputs[1].Message.Text)
		assert.Equal(t, "42", outputs[1].Message.Sender)
	})

	t.Run("template merge keeps base params", func(t *testing.T) {
		photo := contracts.Photo
		empty := []string{}
		table, err := NewTable([]Rule{{
			FromTopic: "A",
			ToTopic:   "B",
			Message: &contracts.MessageTemplate{
				Sender:         strPtr("routing"),
				ResponseTopics: &empty,
				MessageType:    &photo,
				Params:         map[string]string{"lang": "it", "extra": "x"},
			},
		}})
		require.NoError(t, err)

		out := table.Resolve("A", in)[0].Message
		assert.Equal(t, contracts.Photo, out.Type)
		assert.Equal(t, "hi", out.Text)
		assert.Equal(t, "routing", out.Sender)
		assert.True(t, out.ResponseTopics.Empty())
		assert.Equal(t, map[string]string{"lang": "en"}, out.Params)
	})

	t.Run("unknown topic", func(t *testing.T) {
		table, err := NewTable([]Rule{{FromTopic: "A", ToTopic: "B"}})
		require.NoError(t, err)
		assert.Empty(t, table.Resolve("A.sub", in))
		assert.Empty(t, table.Resolve("Z", in))
	})
}
