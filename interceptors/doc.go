// Package interceptors provides the receive-side middleware chain used by alfred modules.
//
// Receiving is split into stages: a raw source yields (topic, message) deliveries, the
// interceptor chain inspects each one, and only deliveries that reach the final handler
// are surfaced to the application. An interceptor consumes a delivery by not calling next.
//
// Built-in interceptors:
//   - LoggingInterceptor: Logs every delivery at debug level
//   - FilteringInterceptor: Drops deliveries rejected by a DeliveryFilter
//
// Example usage:
//
//	chain := interceptors.NewInterceptorChain(logger).
//		Add(interceptors.NewLoggingInterceptor(logger)).
//		Add(interceptors.NewFilteringInterceptor(interceptors.NewTopicPrefixFilter("event."), interceptors.SkipSilently))
//
//	topic, msg, err := chain.Receive(ctx, connection)
//
// Interceptors run in the order they were added.
package interceptors
