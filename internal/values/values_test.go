package values

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdlrun/wdlrun/internal/types"
)

func TestToJSONRoundTrip_Scalars(t *testing.T) {
	j, err := ToJSON(Int(42))
	require.NoError(t, err)
	assert.Equal(t, int64(42), j)

	v, err := FromJSON(types.Int(), float64(42))
	require.NoError(t, err)
	assert.Equal(t, int64(42), v.Int())
}

func TestToJSON_Array(t *testing.T) {
	arr := Array(types.String(), []Value{Str("a"), Str("b")})
	j, err := ToJSON(arr)
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, j)
}

func TestFromJSON_Array(t *testing.T) {
	v, err := FromJSON(types.Array(types.Int(), false), []any{float64(1), float64(2), float64(3)})
	require.NoError(t, err)
	require.Equal(t, 3, v.Len())
	assert.Equal(t, int64(2), v.Elements()[1].Int())
}

func TestToJSON_MapStringKey(t *testing.T) {
	m := Map(types.String(), types.Int(), []MapEntry{
		{Key: Str("a"), Value: Int(1)},
		{Key: Str("b"), Value: Int(2)},
	})
	j, err := ToJSON(m)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": int64(1), "b": int64(2)}, j)
}

func TestFromJSON_Struct_MissingOptional(t *testing.T) {
	st := types.Struct("Sample", []types.StructMember{
		{Name: "name", Type: types.String()},
		{Name: "depth", Type: types.Int().WithOptional(true)},
	})
	v, err := FromJSON(st, map[string]any{"name": "s1"})
	require.NoError(t, err)
	depth, ok := v.Field("depth")
	require.True(t, ok)
	assert.True(t, depth.IsNull())
}

func TestFromJSON_Struct_MissingRequired(t *testing.T) {
	st := types.Struct("Sample", []types.StructMember{
		{Name: "name", Type: types.String()},
	})
	_, err := FromJSON(st, map[string]any{})
	assert.Error(t, err)
}

func TestFromJSON_Null(t *testing.T) {
	v, err := FromJSON(types.Int().WithOptional(true), nil)
	require.NoError(t, err)
	assert.True(t, v.IsNull())

	_, err = FromJSON(types.Int(), nil)
	assert.Error(t, err)
}

func TestPairRoundTrip(t *testing.T) {
	p := Pair(Int(1), Str("x"))
	j, err := ToJSON(p)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"left": int64(1), "right": "x"}, j)

	v, err := FromJSON(types.Pair(types.Int(), types.String()), j)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v.Left().Int())
	assert.Equal(t, "x", v.Right().String())
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Int(1), Int(1)))
	assert.False(t, Equal(Int(1), Int(2)))
	assert.True(t, Equal(Str("a"), Str("a")))
}

func TestFiles_WithFiles(t *testing.T) {
	arr := Array(types.File(), []Value{FilePath("a.txt"), FilePath("b.txt")})
	var seen []string
	Files(arr, func(v Value) { seen = append(seen, v.String()) })
	assert.ElementsMatch(t, []string{"a.txt", "b.txt"}, seen)

	rewritten := WithFiles(arr, func(v Value) Value { return FilePath("/abs/" + v.String()) })
	assert.Equal(t, "/abs/a.txt", rewritten.Elements()[0].String())
}
