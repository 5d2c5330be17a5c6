package actor

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/codewandler/actorbus/core/envelope"
	"github.com/codewandler/actorbus/internal/reflector"
)

type (
	// MsgHandlerFunc handles an in-process message. A returned error fails
	// the actor.
	MsgHandlerFunc func(hc HandlerCtx, msg any) error

	// RequestHandlerFunc handles an envelope.Request routed by its tag.
	RequestHandlerFunc func(hc HandlerCtx, req envelope.Request) error

	StartFunc func(hc HandlerCtx) error

	// StopFunc runs once on shutdown. cause is nil on a clean Stop.
	StopFunc func(hc HandlerCtx, cause error)

	// HandlerRegistrar collects handlers. Use the HandleXxx helpers rather
	// than calling it directly.
	HandlerRegistrar interface {
		RegisterMsg(goType string, h MsgHandlerFunc)
		RegisterRequest(tag string, h RequestHandlerFunc)
		RegisterDefault(h MsgHandlerFunc)
		RegisterStart(f StartFunc)
		RegisterStop(f StopFunc)
		RegisterTick(t TickSpec)
	}

	// HandlerRegistration is created by [HandleMsg], [HandleRequest],
	// [Tick] and friends.
	HandlerRegistration func(registrar HandlerRegistrar)

	// TickSpec binds a message factory to an interval. See [Tick].
	TickSpec struct {
		Name     string // unique key
		Label    string
		Interval time.Duration
		New      func() any
	}
)

// TypedHandlerRegistry dispatches mailbox messages to typed handlers.
// It is immutable once handed to [New].
type TypedHandlerRegistry struct {
	msgs           map[string]MsgHandlerFunc
	requests       map[string]RequestHandlerFunc
	defaultHandler MsgHandlerFunc
	starts         []StartFunc
	stops          []StopFunc
	ticks          []TickSpec
}

// TypedHandlers creates the handler registry for an actor.
//
//	h := actor.TypedHandlers(
//	    actor.HandleRequest[Echo, Echo](handleEcho),
//	    actor.Tick[refresh](time.Second),
//	    actor.HandleMsg[refresh](handleRefresh),
//	)
//	a := actor.New(actor.Options{ID: "urn:echo", Registry: reg}, h)
func TypedHandlers(handlers ...HandlerRegistration) *TypedHandlerRegistry {
	th := &TypedHandlerRegistry{
		msgs:     make(map[string]MsgHandlerFunc),
		requests: make(map[string]RequestHandlerFunc),
	}
	for _, h := range handlers {
		h(th)
	}
	return th
}

func (t *TypedHandlerRegistry) RegisterMsg(goType string, h MsgHandlerFunc) { t.msgs[goType] = h }
func (t *TypedHandlerRegistry) RegisterRequest(tag string, h RequestHandlerFunc) {
	t.requests[tag] = h
}
func (t *TypedHandlerRegistry) RegisterDefault(h MsgHandlerFunc) { t.defaultHandler = h }
func (t *TypedHandlerRegistry) RegisterStart(f StartFunc)        { t.starts = append(t.starts, f) }
func (t *TypedHandlerRegistry) RegisterStop(f StopFunc)          { t.stops = append(t.stops, f) }

// RegisterTick adds t, replacing an earlier tick with the same name.
func (t *TypedHandlerRegistry) RegisterTick(spec TickSpec) {
	for i, s := range t.ticks {
		if s.Name == spec.Name {
			t.ticks[i] = spec
			return
		}
	}
	t.ticks = append(t.ticks, spec)
}

// HandleMessage routes msg. Requests are matched by tag first, then every
// message by its Go type, then the default handler.
func (t *TypedHandlerRegistry) HandleMessage(hc HandlerCtx, msg any) error {
	if p, ok := msg.(*envelope.Request); ok && p != nil {
		msg = *p
	}
	if req, ok := msg.(envelope.Request); ok {
		if h, ok := t.requests[req.MessageType]; ok {
			return h(hc, req)
		}
	}
	if h, ok := t.msgs[reflector.TypeInfoOf(msg).Name]; ok {
		return h(hc, msg)
	}
	if t.defaultHandler != nil {
		return t.defaultHandler(hc, msg)
	}
	return fmt.Errorf("%w: %s", ErrUnknownMessageKind, messageLabel(msg))
}

// DefaultHandler handles everything no other handler matched.
func DefaultHandler(h MsgHandlerFunc) HandlerRegistration {
	return func(r HandlerRegistrar) { r.RegisterDefault(h) }
}

// OnStart runs f on Start before the loop begins. An error aborts Start.
func OnStart(f StartFunc) HandlerRegistration {
	return func(r HandlerRegistrar) { r.RegisterStart(f) }
}

// OnStop runs f once when the actor stops or fails.
func OnStop(f StopFunc) HandlerRegistration {
	return func(r HandlerRegistrar) { r.RegisterStop(f) }
}

// HandleMsg handles in-process messages of Go type T. Both T and *T values
// are accepted.
func HandleMsg[T any](fn func(hc HandlerCtx, msg T) error) HandlerRegistration {
	key := reflector.TypeInfoFor[T]().Name
	return func(r HandlerRegistrar) {
		r.RegisterMsg(key, func(hc HandlerCtx, msg any) error {
			switch v := msg.(type) {
			case T:
				return fn(hc, v)
			case *T:
				return fn(hc, *v)
			default:
				return fmt.Errorf("%w: %T", ErrUnknownMessageKind, msg)
			}
		})
	}
}

// HandleRequest answers requests tagged envelope.TypeOf[IN]. The result is
// sent to the responder. Decode and handler errors are answered with an
// error response and do not fail the actor.
func HandleRequest[IN, OUT any](fn func(hc HandlerCtx, in IN) (*OUT, error)) HandlerRegistration {
	tag := envelope.TypeOf[IN]()
	return func(r HandlerRegistrar) {
		r.RegisterRequest(tag, func(hc HandlerCtx, req envelope.Request) error {
			in, err := envelope.Extract[IN](req)
			if err != nil {
				respondOrLog(hc, req, req.Fail(envelope.CodeDecode, err.Error()))
				return nil
			}
			out, err := fn(hc, in)
			if err != nil {
				respondOrLog(hc, req, req.Fail(envelope.CodeHandler, err.Error()))
				return nil
			}
			if out == nil {
				out = new(OUT)
			}
			resp, err := req.Reply(*out)
			if err != nil {
				respondOrLog(hc, req, req.Fail(envelope.CodeHandler, err.Error()))
				return nil
			}
			respondOrLog(hc, req, resp)
			return nil
		})
	}
}

func respondOrLog(hc HandlerCtx, req envelope.Request, resp envelope.Response) {
	if err := hc.Tell(ResponderID, resp); err != nil {
		hc.Log().Error(
			"failed to hand response to responder",
			slog.String("message_id", req.MessageID),
			slog.String("message_type", resp.MessageType),
			slog.Any("error", err),
		)
	}
}

func messageLabel(msg any) string {
	switch m := msg.(type) {
	case envelope.Request:
		return m.MessageType
	case envelope.Response:
		return "response"
	case nil:
		return "nil"
	}
	if s := reflector.TypeInfoOf(msg).Short; s != "" {
		return s
	}
	return fmt.Sprintf("%T", msg)
}
