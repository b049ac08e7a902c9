// Package messaging couples a pub/sub transport with the wire codec and the
// discovery handshake.
//
// This package provides:
//   - Transport, TransportPublisher, TransportSubscriber: the pub/sub capability set
//     implemented by the transports/* packages
//   - Connection: typed send/receive over a transport, with the settle delay, the automatic
//     module.info.request subscription and the module info reply
//   - DiscoveryInterceptor: consumes module.info.request deliveries so they never reach
//     application code
//   - Typed errors for subscribe, publish, receive and conversion failures
//
// Example usage:
//
//	conn, err := messaging.NewConnection(ctx, transport, messaging.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	if err := conn.Listen(ctx, "user.request"); err != nil {
//		return err
//	}
//	topic, msg, err := conn.Receive(ctx)
//
// A Connection never retries and never reconnects: every failure is returned to the caller.
package messaging
