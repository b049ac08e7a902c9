package routing

import (
	"slices"

	"github.com/alfredmq/alfred-go/contracts"
)

// Output is one message produced by a rule
type Output struct {
	Topic   string
	Message contracts.Message
}

// Table groups rules by source topic, keeping file order within each group
type Table struct {
	topics []string
	rules  map[string][]Rule
}

// NewTable validates rules and groups them
func NewTable(rules []Rule) (*Table, error) {
	if len(rules) == 0 {
		return nil, ErrNoRoutes
	}

	t := &Table{rules: make(map[string][]Rule)}
	for i, rule := range rules {
		if rule.FromTopic == "" {
			return nil, &RuleError{Index: i, Field: "from_topic", Err: ErrEmptyTopic}
		}
		if rule.ToTopic == "" {
			return nil, &RuleError{Index: i, Field: "to_topic", Err: ErrEmptyTopic}
		}
		if _, seen := t.rules[rule.FromTopic]; !seen {
			t.topics = append(t.topics, rule.FromTopic)
		}
		t.rules[rule.FromTopic] = append(t.rules[rule.FromTopic], rule)
	}
	return t, nil
}

// Topics returns the distinct source topics in first-seen order
func (t *Table) Topics() []string {
	return slices.Clone(t.topics)
}

// Len returns the number of rules
func (t *Table) Len() int {
	n := 0
	for _, rules := range t.rules {
		n += len(rules)
	}
	return n
}

// Resolve returns the outputs for a message received on topic.
// Topics without rules resolve to nothing.
func (t *Table) Resolve(topic string, msg contracts.Message) []Output {
	rules := t.rules[topic]
	if len(rules) == 0 {
		return nil
	}
	outputs := make([]Output, 0, len(rules))
	for _, rule := range rules {
		outputs = append(outputs, Output{Topic: rule.ToTopic, Message: rule.Apply(msg)})
	}
	return outputs
}
