// Package zeromq implements the alfred transport over ZeroMQ PUB/SUB sockets.
//
// Modules dial two endpoints of a broker: the SUB socket connects to the broker's
// publish-facing XPUB endpoint and the PUB socket to its XSUB endpoint. Broker runs
// that proxy. Every unit on the wire is two frames: the topic and the encoded message.
package zeromq
