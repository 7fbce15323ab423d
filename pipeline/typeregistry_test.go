package pipeline

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTypeRegistry_AllowsOnlyRegisteredDirection(t *testing.T) {
	r := &TypeRegistry{conversions: make(map[reflect.Type]map[reflect.Type]bool)}
	int32Type := reflect.TypeOf(int32(0))
	int64Type := reflect.TypeOf(int64(0))

	require.False(t, r.Allows(int32Type, int64Type))
	r.RegisterConversion(int32Type, int64Type)
	require.True(t, r.Allows(int32Type, int64Type))
	require.False(t, r.Allows(int64Type, int32Type))
}

func TestTypeRegistry_ResetClearsAllConversions(t *testing.T) {
	r := &TypeRegistry{conversions: make(map[reflect.Type]map[reflect.Type]bool)}
	int32Type := reflect.TypeOf(int32(0))
	int64Type := reflect.TypeOf(int64(0))

	r.RegisterConversion(int32Type, int64Type)
	r.Reset()
	require.False(t, r.Allows(int32Type, int64Type))
}

func TestGlobalTypeRegistry_PackageLevelHelperUsesGlobalInstance(t *testing.T) {
	defer globalTypeRegistry.Reset()
	floatType := reflect.TypeOf(float32(0))
	doubleType := reflect.TypeOf(float64(0))

	RegisterConversion(floatType, doubleType)
	require.True(t, GlobalTypeRegistry().Allows(floatType, doubleType))
}
