// Package actor is a small in-process actor runtime.
//
// Every actor has a unique identity, a bounded mailbox and one goroutine that
// handles messages strictly in order. Actors register themselves in an
// explicit [Registry] while running; the registry is how the bus bridge in
// core/proxy finds them.
//
// Handlers are declared with [TypedHandlers]:
//
//   - [HandleMsg] for in-process messages, keyed by Go type.
//   - [HandleRequest] for bus requests, keyed by envelope tag. Results and
//     errors are sent back through the actor registered as [ResponderID].
//   - [Tick] for periodic messages delivered through the mailbox.
//
// An actor fails when a message has no handler, a HandleMsg handler returns
// an error or a handler panics. Failure runs the same shutdown as Stop: the
// tickers are stopped and joined, the OnStop hooks run and the identity is
// released. [Actor.Err] reports the cause.
package actor
