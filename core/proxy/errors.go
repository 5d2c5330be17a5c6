package proxy

import (
	"errors"
	"fmt"

	"github.com/codewandler/actorbus/core/actor"
	"github.com/codewandler/actorbus/core/envelope"
)

var (
	ErrAskTimeout     = errors.New("proxy: ask timed out")
	ErrNotStarted     = errors.New("proxy: not started")
	ErrAlreadyStarted = errors.New("proxy: already started")
	ErrInvalidConfig  = errors.New("proxy: invalid config")
)

// RemoteError is returned by Ask when the actor side answered with an error
// response.
type RemoteError struct {
	MessageID string
	Code      string
	Message   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("proxy: remote error: code=%s message=%s", e.Code, e.Message)
}

// Unwrap maps well-known codes to sentinel errors, so that
// errors.Is(err, actor.ErrUnknownIdentity) holds for a NACK.
func (e *RemoteError) Unwrap() error {
	if e.Code == envelope.CodeUnknownIdentity {
		return actor.ErrUnknownIdentity
	}
	return nil
}
