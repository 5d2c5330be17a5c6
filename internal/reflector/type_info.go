// Package reflector derives stable names for Go types and caches them.
package reflector

import (
	"reflect"
	"sync"
)

var (
	muCache sync.RWMutex
	cache   = make(map[reflect.Type]TypeInfo)
)

// TypeInfo holds naming metadata about a type. Pointer types are unwrapped.
type TypeInfo struct {
	Name  string       // "pkg/path.TypeName", unique inside a process
	Short string       // "TypeName", used as the wire tag
	Type  reflect.Type // element type
}

func TypeInfoOf(x any) TypeInfo {
	return TypeInfoForType(reflect.TypeOf(x))
}

func TypeInfoFor[T any]() TypeInfo {
	return TypeInfoForType(reflect.TypeFor[T]())
}

func TypeInfoForType(t reflect.Type) TypeInfo {
	if t == nil {
		return TypeInfo{}
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	muCache.RLock()
	ti, ok := cache[t]
	muCache.RUnlock()
	if ok {
		return ti
	}

	short := t.Name()
	if short == "" {
		// unnamed types (maps, slices, anonymous structs)
		short = t.String()
	}
	name := short
	if t.PkgPath() != "" {
		name = t.PkgPath() + "." + short
	}
	ti = TypeInfo{Name: name, Short: short, Type: t}

	muCache.Lock()
	cache[t] = ti
	muCache.Unlock()
	return ti
}
