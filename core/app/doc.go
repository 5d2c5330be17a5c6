// Package app wires one actor system to a bus: a registry, the responder with
// its poller, an ask client and, optionally, a directory of identities.
//
// # Basic Usage
//
//	a, err := app.Run(app.Config{
//	    Proxy:   &cfg,
//	    Connect: redis.Connector(redis.ConfigFrom(cfg.Bus, log)),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer a.Stop()
//
//	_, err = a.Spawn("echo", actor.HandleRequest(handleEcho))
//
//	out, err := proxy.Ask[Ping, Pong](ctx, a.Client(), "echo", Ping{}, 2*time.Second)
//
// Without a Connect func the app runs on an in-process bus.Hub, which is
// handy for tests and single-process setups.
package app
