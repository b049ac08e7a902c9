// Package contracts provides the message value that flows between alfred modules.
//
// This package defines:
//   - Message: an immutable unit of communication (type, text, sender, reply chain, params)
//   - MessageType: the closed set of message kinds
//   - ResponseChain: the ordered list of topics replies are sent to, consumed front-first
//   - MessageTemplate: optional per-field overrides used by routing and scheduling
//
// Messages are plain values. Library code never mutates a Message after it has been built;
// use Clone when a private copy of the params map is needed.
package contracts
