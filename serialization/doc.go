// Package serialization implements the alfred wire codec.
//
// A message is encoded positionally:
//
//	byte 0      message type code
//	byte 1      number of params (0-255)
//	byte 2      number of response topics (0-255)
//	...         key SEP value SEP, for every param
//	...         response topics joined by SEP
//	SEP sender
//	SEP text    (the remainder; text may itself contain SEP)
//
// SEP is the NUL byte. Keys, values, topics and the sender must not contain it.
package serialization
