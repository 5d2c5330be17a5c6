// Package proxy bridges the actor runtime and a pub/sub bus.
//
// Inbound, a [Poller] reads request envelopes from the inbound channel and
// tells them to the addressed actor. The actor answers through the responder
// (see [NewResponder]), the only component that publishes responses. Each
// response goes to OutboundPrefix + message_id.
//
// Outbound, a [Client] subscribes to the response channel of a fresh message
// id, publishes the request and waits until the response arrives or the ask
// times out:
//
//	out, err := proxy.Ask[Ping, Pong](ctx, client, "echo", Ping{}, 2*time.Second)
//
// Every component opens its own bus connection through a [bus.Connector].
package proxy
