// Package routing forwards and reshapes messages between topics.
//
// Rules are read from routing.toml:
//
//	[[routing]]
//	from_topic = "event.telegram.message"
//	to_topic = "openai.request"
//
//	[[routing]]
//	from_topic = "event.telegram.message"
//	to_topic = "logs.chat"
//	message = { sender = "routing", response_topics = [] }
//
// Every rule whose from_topic equals the topic of an inbound message fires, in file
// order. A rule without a message template forwards the message unchanged; with one,
// the template's fields replace those of the inbound message.
package routing
