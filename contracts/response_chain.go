package contracts

// ResponseChain is an immutable list of reply topics consumed from the front.
// Pop and Push never modify the receiver, so chains can be shared between
// messages without copying.
type ResponseChain struct {
	head *chainNode
	size int
}

type chainNode struct {
	topic string
	next  *chainNode
}

// NewResponseChain builds a chain whose front is topics[0]
func NewResponseChain(topics ...string) ResponseChain {
	var c ResponseChain
	for i := len(topics) - 1; i >= 0; i-- {
		c = c.Push(topics[i])
	}
	return c
}

// Len returns the number of topics left in the chain
func (c ResponseChain) Len() int {
	return c.size
}

// Empty reports whether the chain is exhausted
func (c ResponseChain) Empty() bool {
	return c.size == 0
}

// Front returns the next reply destination
func (c ResponseChain) Front() (string, bool) {
	if c.head == nil {
		return "", false
	}
	return c.head.topic, true
}

// Pop returns the front topic and the chain without it
func (c ResponseChain) Pop() (string, ResponseChain, bool) {
	if c.head == nil {
		return "", c, false
	}
	return c.head.topic, ResponseChain{head: c.head.next, size: c.size - 1}, true
}

// Push returns a chain with topic placed in front
func (c ResponseChain) Push(topic string) ResponseChain {
	return ResponseChain{head: &chainNode{topic: topic, next: c.head}, size: c.size + 1}
}

// Topics returns the chain as a slice, front first
func (c ResponseChain) Topics() []string {
	if c.size == 0 {
		return nil
	}
	topics := make([]string, 0, c.size)
	for n := c.head; n != nil; n = n.next {
		topics = append(topics, n.topic)
	}
	return topics
}

// Equal compares two chains topic by topic
func (c ResponseChain) Equal(other ResponseChain) bool {
	if c.size != other.size {
		return false
	}
	for a, b := c.head, other.head; a != nil; a, b = a.next, b.next {
		if a.topic != b.topic {
			return false
		}
	}
	return true
}
