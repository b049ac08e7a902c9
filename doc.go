// Package alfred connects named modules to a shared publish/subscribe bus.
//
// A Module subscribes to topics, sends and receives messages, and takes part in
// the discovery protocol: it announces itself when it joins and answers every
// module.info.request with its ModuleInfo, without the application ever seeing
// the request.
//
//	module, err := alfred.NewModule(ctx, "weather")
//	if err != nil {
//		return err
//	}
//	defer module.Close()
//
//	if err := module.Listen(ctx, "weather.request"); err != nil {
//		return err
//	}
//	for {
//		topic, msg, err := module.Receive(ctx)
//		...
//	}
package alfred
