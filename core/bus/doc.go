// Package bus is the port between the proxy and a publish/subscribe broker.
//
// The proxy needs three things from a broker: publish bytes on a named
// channel, subscribe to a named channel, and poll a subscription for the next
// message without blocking. [Bus] captures exactly that. Adapters for NATS and
// Redis live in adapters/; [Hub] is an in-process broker for tests and
// single-binary deployments.
//
// Connections are not shared between components. Each component obtains its
// own [Bus] from a [Connector] and closes it when it stops.
//
// [Next] turns the non-blocking [Subscription.Poll] into a blocking wait with
// a short idle backoff, which is how both the dispatch poller and the
// ask-client consume subscriptions.
package bus
