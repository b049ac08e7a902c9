package routing

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/alfredmq/alfred-go/contracts"
)

// DefaultFilename is read from the working directory
const DefaultFilename = "routing.toml"

// Rule forwards messages from one topic to another
type Rule struct {
	FromTopic string                     `toml:"from_topic"`
	ToTopic   string                     `toml:"to_topic"`
	Message   *contracts.MessageTemplate `toml:"message"`
}

// Apply returns the message to send on ToTopic
func (r Rule) Apply(msg contracts.Message) contracts.Message {
	if r.Message == nil {
		return msg
	}
	return r.Message.Generate(msg)
}

type file struct {
	Routing []Rule `toml:"routing"`
}

// Parse decodes the [[routing]] entries of a TOML document
func Parse(data []byte) ([]Rule, error) {
	var f file
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse routing: %w", err)
	}
	return f.Routing, nil
}

// LoadFile reads and parses a routing file
func LoadFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}
