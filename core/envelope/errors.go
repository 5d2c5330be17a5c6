package envelope

import "errors"

var (
	// ErrDecode is returned when an envelope or its contents do not match the
	// expected shape.
	ErrDecode = errors.New("envelope decode failed")
	// ErrContentsNotObject is returned when a payload does not serialize to a JSON object.
	ErrContentsNotObject = errors.New("contents must be a JSON object")
)
