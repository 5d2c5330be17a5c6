package reflector

import (
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type testStruct struct {
	Name string
}

func TestTypeInfoOf(t *testing.T) {
	ti := TypeInfoOf(testStruct{Name: "test"})
	require.Equal(t, "github.com/codewandler/actorbus/internal/reflector.testStruct", ti.Name)
	require.Equal(t, "testStruct", ti.Short)
	require.Equal(t, reflect.TypeFor[testStruct](), ti.Type)
}

func TestTypeInfoOf_Pointer(t *testing.T) {
	ti := TypeInfoOf(&testStruct{})
	require.Equal(t, "testStruct", ti.Short)
	require.NotEqual(t, reflect.Pointer, ti.Type.Kind())

	ti = TypeInfoFor[**testStruct]()
	require.Equal(t, "testStruct", ti.Short)
}

func TestTypeInfo_Unnamed(t *testing.T) {
	ti := TypeInfoFor[map[string]any]()
	require.Equal(t, "map[string]interface {}", ti.Short)
	require.Equal(t, ti.Short, ti.Name)

	require.Equal(t, TypeInfo{}, TypeInfoOf(nil))
}

func TestTypeInfo_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.Equal(t, "testStruct", TypeInfoFor[testStruct]().Short)
		}()
	}
	wg.Wait()
}
