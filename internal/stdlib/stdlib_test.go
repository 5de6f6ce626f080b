package stdlib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wdlrun/wdlrun/internal/types"
	"github.com/wdlrun/wdlrun/internal/values"
)

func TestLookup_Basename(t *testing.T) {
	sig, ok := Lookup("basename")
	require.True(t, ok)

	resultType, err := sig.CheckArgs([]types.Type{types.File()})
	require.NoError(t, err)
	assert.Equal(t, types.String(), resultType)

	v, err := sig.Call(nil, []values.Value{values.FilePath("/tmp/dir/file.txt")})
	require.NoError(t, err)
	assert.Equal(t, "file.txt", v.String())
}

func TestLookup_BasenameWithSuffix(t *testing.T) {
	sig, ok := Lookup("basename")
	require.True(t, ok)

	v, err := sig.Call(nil, []values.Value{values.FilePath("/tmp/dir/file.txt"), values.Str(".txt")})
	require.NoError(t, err)
	assert.Equal(t, "file", v.String())
}

func TestLookup_SelectFirst(t *testing.T) {
	sig, ok := Lookup("select_first")
	require.True(t, ok)

	arr := values.Array(types.Int().WithOptional(true), []values.Value{
		values.Null(types.Int().WithOptional(true)),
		values.Int(7),
	})
	v, err := sig.Call(nil, []values.Value{arr})
	require.NoError(t, err)
	assert.Equal(t, int64(7), v.Int())
}

func TestLookup_SelectFirst_AllNull(t *testing.T) {
	sig, ok := Lookup("select_first")
	require.True(t, ok)

	arr := values.Array(types.Int().WithOptional(true), []values.Value{
		values.Null(types.Int().WithOptional(true)),
	})
	_, err := sig.Call(nil, []values.Value{arr})
	assert.Error(t, err)
}

func TestLookup_Sub(t *testing.T) {
	sig, ok := Lookup("sub")
	require.True(t, ok)

	v, err := sig.Call(nil, []values.Value{values.Str("hello world"), values.Str("world"), values.Str("there")})
	require.NoError(t, err)
	assert.Equal(t, "hello there", v.String())
}

func TestLookup_Length_CheckArgs(t *testing.T) {
	sig, ok := Lookup("length")
	require.True(t, ok)

	_, err := sig.CheckArgs([]types.Type{types.Array(types.Int(), false), types.Int()})
	assert.Error(t, err, "length takes exactly one argument")
}

func TestLookup_Unknown(t *testing.T) {
	_, ok := Lookup("not_a_real_function")
	assert.False(t, ok)
}

// fakeSizeIO serves FileSize from a fixed table; every other method is
// unused by size().
type fakeSizeIO struct{ sizes map[string]int64 }

func (f fakeSizeIO) ReadFile(string) (string, error)     { return "", nil }
func (f fakeSizeIO) WriteFile(string) (string, error)    { return "", nil }
func (f fakeSizeIO) Glob(string) ([]string, error)       { return nil, nil }
func (f fakeSizeIO) FileSize(path string) (int64, error) { return f.sizes[path], nil }

func TestLookup_Size_DefaultsToBytes(t *testing.T) {
	sig, ok := Lookup("size")
	require.True(t, ok)

	io := fakeSizeIO{sizes: map[string]int64{"/f": 2048}}
	v, err := sig.Call(io, []values.Value{values.FilePath("/f")})
	require.NoError(t, err)
	assert.Equal(t, 2048.0, v.Float())
}

func TestLookup_Size_ConvertsUnit(t *testing.T) {
	sig, ok := Lookup("size")
	require.True(t, ok)

	io := fakeSizeIO{sizes: map[string]int64{"/f": 2048}}
	v, err := sig.Call(io, []values.Value{values.FilePath("/f"), values.Str("KiB")})
	require.NoError(t, err)
	assert.Equal(t, 2.0, v.Float())
}

func TestLookup_Size_UnknownUnitFails(t *testing.T) {
	sig, ok := Lookup("size")
	require.True(t, ok)

	io := fakeSizeIO{sizes: map[string]int64{"/f": 2048}}
	_, err := sig.Call(io, []values.Value{values.FilePath("/f"), values.Str("furlongs")})
	assert.Error(t, err)
}

func TestLookup_Size_NullFileIsZero(t *testing.T) {
	sig, ok := Lookup("size")
	require.True(t, ok)

	v, err := sig.Call(fakeSizeIO{}, []values.Value{values.Null(types.File())})
	require.NoError(t, err)
	assert.Equal(t, 0.0, v.Float())
}

// fakeReadIO serves ReadFile a fixed string; every other method is unused
// by read_map.
type fakeReadIO struct{ content string }

func (f fakeReadIO) ReadFile(string) (string, error)  { return f.content, nil }
func (f fakeReadIO) WriteFile(string) (string, error) { return "", nil }
func (f fakeReadIO) Glob(string) ([]string, error)    { return nil, nil }
func (f fakeReadIO) FileSize(string) (int64, error)   { return 0, nil }

func TestLookup_ReadMap_Basic(t *testing.T) {
	sig, ok := Lookup("read_map")
	require.True(t, ok)

	v, err := sig.Call(fakeReadIO{content: "a\t1\nb\t2\n"}, []values.Value{values.FilePath("/f")})
	require.NoError(t, err)
	entries := v.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Key.String())
	assert.Equal(t, "1", entries[0].Value.String())
}

func TestLookup_ReadMap_RejectsExtraColumns(t *testing.T) {
	sig, ok := Lookup("read_map")
	require.True(t, ok)

	_, err := sig.Call(fakeReadIO{content: "a\t1\textra\n"}, []values.Value{values.FilePath("/f")})
	assert.Error(t, err)
}

func TestLookup_ReadMap_RejectsDuplicateKeys(t *testing.T) {
	sig, ok := Lookup("read_map")
	require.True(t, ok)

	_, err := sig.Call(fakeReadIO{content: "a\t1\na\t2\n"}, []values.Value{values.FilePath("/f")})
	assert.Error(t, err)
}
