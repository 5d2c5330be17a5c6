package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ErrorType tags responses that carry an [ErrorContents] instead of a payload.
const ErrorType = "actorbus.Error"

// Codes carried in [ErrorContents].
const (
	CodeUnknownIdentity = "unknown_identity"
	CodeDecode          = "decode_error"
	CodeHandler         = "handler_error"
)

type (
	// Envelope is implemented by [Request] and [Response].
	Envelope interface {
		tag() string
		body() json.RawMessage
	}

	// Request is sent from outside the actor system to the actor ActorURN.
	Request struct {
		MessageID   string          `json:"message_id"`
		MessageType string          `json:"message_type"`
		ActorURN    string          `json:"actor_urn"`
		Contents    json.RawMessage `json:"contents"`
	}

	// Response answers the Request with the same MessageID.
	Response struct {
		MessageID   string          `json:"message_id"`
		MessageType string          `json:"message_type"`
		Contents    json.RawMessage `json:"contents"`
	}

	// ErrorContents is the payload of a negative acknowledgement.
	ErrorContents struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
)

func (ErrorContents) MessageType() string { return ErrorType }

func (r Request) tag() string            { return r.MessageType }
func (r Request) body() json.RawMessage  { return r.Contents }
func (r Response) tag() string           { return r.MessageType }
func (r Response) body() json.RawMessage { return r.Contents }

// NewMessageID returns "<actorURN>-<random suffix>".
func NewMessageID(actorURN string) string {
	return actorURN + "-" + gonanoid.Must()
}

// NewRequest wraps payload in a Request addressed to actorURN with a fresh id.
func NewRequest(actorURN string, payload any) (Request, error) {
	contents, err := marshalContents(payload)
	if err != nil {
		return Request{}, err
	}
	return Request{
		MessageID:   NewMessageID(actorURN),
		MessageType: TypeOfValue(payload),
		ActorURN:    actorURN,
		Contents:    contents,
	}, nil
}

// Reply builds the Response answering r.
func (r Request) Reply(payload any) (Response, error) {
	contents, err := marshalContents(payload)
	if err != nil {
		return Response{}, err
	}
	return Response{
		MessageID:   r.MessageID,
		MessageType: TypeOfValue(payload),
		Contents:    contents,
	}, nil
}

// Fail builds an error Response answering r.
func (r Request) Fail(code, message string) Response {
	contents, _ := json.Marshal(ErrorContents{Code: code, Message: message})
	return Response{
		MessageID:   r.MessageID,
		MessageType: ErrorType,
		Contents:    contents,
	}
}

// IsError reports whether r is a negative acknowledgement.
func (r Response) IsError() bool { return r.MessageType == ErrorType }

func (r Request) Encode() ([]byte, error)  { return json.Marshal(r) }
func (r Response) Encode() ([]byte, error) { return json.Marshal(r) }

func DecodeRequest(data []byte) (r Request, err error) {
	if err = json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("%w: request: %w", ErrDecode, err)
	}
	if r.ActorURN == "" {
		return r, fmt.Errorf("%w: request: missing actor_urn", ErrDecode)
	}
	if err = validateCommon(r.MessageID, r.MessageType, r.Contents); err != nil {
		return r, fmt.Errorf("%w: request: %w", ErrDecode, err)
	}
	return r, nil
}

func DecodeResponse(data []byte) (r Response, err error) {
	if err = json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("%w: response: %w", ErrDecode, err)
	}
	if err = validateCommon(r.MessageID, r.MessageType, r.Contents); err != nil {
		return r, fmt.Errorf("%w: response: %w", ErrDecode, err)
	}
	return r, nil
}

func validateCommon(id, msgType string, contents json.RawMessage) error {
	switch {
	case id == "":
		return fmt.Errorf("missing message_id")
	case msgType == "":
		return fmt.Errorf("missing message_type")
	case !isObject(contents):
		return ErrContentsNotObject
	}
	return nil
}

func marshalContents(payload any) (json.RawMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal contents: %w", err)
	}
	if !isObject(data) {
		return nil, fmt.Errorf("%w: got %T", ErrContentsNotObject, payload)
	}
	return data, nil
}

func isObject(data []byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) >= 2 && data[0] == '{'
}
