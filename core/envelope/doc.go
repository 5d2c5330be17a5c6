// Package envelope defines the wire protocol spoken between external
// processes and the actor system.
//
// A [Request] travels from an ask-client to an actor; a [Response] travels
// back. Both are JSON objects:
//
//	{"message_id": "...", "message_type": "...", "actor_urn": "...", "contents": {...}}
//
// actor_urn is only present on requests. The message_id of a response equals
// the id of the request it answers and is the only correlation mechanism.
//
// # Typed payloads
//
// Every payload type has a stable tag, see [TypeOf]. The tag is the value of a
// MessageType() string method when the type declares one, otherwise the bare
// Go type name. [Matches] checks the tag, [Extract] decodes contents into the
// expected type. There is no coercion between payload types: the receiver must
// know the type it expects.
//
//	if envelope.Matches[Ping](req) {
//	    ping, err := envelope.Extract[Ping](req)
//	    ...
//	}
package envelope
