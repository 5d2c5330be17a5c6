package envelope

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Matches reports whether e carries a payload of type T.
func Matches[T any](e Envelope) bool {
	return e.tag() == TypeOf[T]()
}

// Extract decodes the contents of e into T. It fails with [ErrDecode] when the
// tag of e is not the tag of T, when contents have fields T does not declare,
// or when T's Validate method (if any) rejects the value.
func Extract[T any](e Envelope) (out T, err error) {
	want := TypeOf[T]()
	if e.tag() != want {
		return out, fmt.Errorf("%w: message_type=%s, expected %s", ErrDecode, e.tag(), want)
	}

	dec := json.NewDecoder(bytes.NewReader(e.body()))
	dec.DisallowUnknownFields()
	if err = dec.Decode(&out); err != nil {
		return out, fmt.Errorf("%w: %s: %w", ErrDecode, want, err)
	}

	if v, ok := any(&out).(interface{ Validate() error }); ok {
		if err = v.Validate(); err != nil {
			return out, fmt.Errorf("%w: %s: %w", ErrDecode, want, err)
		}
	}
	return out, nil
}
