// Package bridge provides synchronous request/reply on top of response chains.
//
// A Bridge pushes a private reply topic onto the front of a request's response
// chain, so the first Reply made downstream comes back to the caller. Replies
// are picked out of the module's receive pipeline by the Bridge interceptor:
//
//	b := bridge.New("telegram")
//	m, err := alfred.NewModule(ctx, "telegram", alfred.WithInterceptors(b))
//	...
//	go receiveLoop(m)
//	reply, err := b.Request(ctx, m, "weather", contracts.NewTextMessage("paris", "42"))
//
// A request only completes while something drives the module's Receive.
package bridge
