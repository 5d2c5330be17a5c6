package actor

import (
	"context"
	"log/slog"

	"github.com/codewandler/actorbus/core/envelope"
)

// HandlerCtx is passed to every handler. It is cancelled when the actor
// begins shutting down.
type HandlerCtx interface {
	context.Context
	Log() *slog.Logger
	Self() Ref
	Registry() *Registry

	// Tell delivers msg to the actor registered as id.
	Tell(id string, msg any) error
	// Respond sends payload as the response to req through the responder.
	Respond(req envelope.Request, payload any) error
	// Stop asks the actor to stop after the current message. It does not wait.
	Stop()
}

type handlerCtx struct {
	context.Context
	actor *Actor
}

func (hc *handlerCtx) Log() *slog.Logger   { return hc.actor.log }
func (hc *handlerCtx) Self() Ref           { return hc.actor }
func (hc *handlerCtx) Registry() *Registry { return hc.actor.registry }
func (hc *handlerCtx) Stop()               { hc.actor.signalStop() }

func (hc *handlerCtx) Tell(id string, msg any) error {
	return hc.actor.registry.Tell(id, msg)
}

func (hc *handlerCtx) Respond(req envelope.Request, payload any) error {
	resp, err := req.Reply(payload)
	if err != nil {
		return err
	}
	return hc.Tell(ResponderID, resp)
}

var _ HandlerCtx = (*handlerCtx)(nil)
