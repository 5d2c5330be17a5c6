package envelope

import (
	"reflect"

	"github.com/codewandler/actorbus/internal/reflector"
)

type msgTyper interface{ MessageType() string }

// TypeOf returns the tag of payload type T. Pointer types share the tag of
// their element type.
func TypeOf[T any]() string {
	return typeTag(reflect.TypeFor[T]())
}

// TypeOfValue returns the tag of the dynamic type of v. It agrees with
// TypeOf for the same type, whether MessageType has a value or a pointer
// receiver.
func TypeOfValue(v any) string {
	if v == nil {
		return reflector.TypeInfoOf(v).Short
	}
	return typeTag(reflect.TypeOf(v))
}

func typeTag(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	// a *T has the methods of both receivers
	if mt, ok := reflect.New(t).Interface().(msgTyper); ok {
		return mt.MessageType()
	}
	return reflector.TypeInfoForType(t).Short
}
