package actor

import "errors"

var (
	ErrDuplicateIdentity  = errors.New("actor: identity already registered")
	ErrUnknownIdentity    = errors.New("actor: unknown identity")
	ErrUnknownMessageKind = errors.New("actor: no handler for message")
	ErrNotStarted         = errors.New("actor: not started")
	ErrAlreadyStarted     = errors.New("actor: already started")
	ErrActorStopped       = errors.New("actor: stopped")
	ErrMailboxFull        = errors.New("actor: mailbox full")
	ErrPanic              = errors.New("actor: handler panicked")
)
