package encoding

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/malinoff/amqproto-sub000/internal/buffer"
)

func TestTableRoundTrip(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	tbl := NewTable(map[string]interface{}{
		"str":   "hello",
		"flag":  true,
		"ts":    now,
		"bytes": []byte{1, 2, 3},
	})

	var w buffer.Buffer
	require.NoError(t, WriteTable(&w, tbl))

	got, err := ReadTable(buffer.New(w.Bytes()))
	require.NoError(t, err)
	require.Equal(t, tbl.Len(), got.Len())

	v, ok := got.Get("str")
	require.True(t, ok)
	require.Equal(t, "hello", v)

	v, ok = got.Get("flag")
	require.True(t, ok)
	require.Equal(t, true, v)

	v, ok = got.Get("ts")
	require.True(t, ok)
	require.True(t, now.Equal(v.(time.Time)))

	v, ok = got.Get("bytes")
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3}, v)
}

func TestTablePreservesInsertionOrder(t *testing.T) {
	var tbl Table
	tbl.Set("z", int32(1))
	tbl.Set("a", int32(2))
	tbl.Set("m", int32(3))

	require.Equal(t, []string{"z", "a", "m"}, tbl.Keys())
}

func TestArrayRoundTripHeterogeneous(t *testing.T) {
	arr := Array{int32(1), "two", true}

	var w buffer.Buffer
	require.NoError(t, WriteArray(&w, arr))

	got, err := ReadArray(buffer.New(w.Bytes()))
	require.NoError(t, err)
	require.Equal(t, Array{int32(1), "two", true}, got)
}

func TestNestedTableRoundTrip(t *testing.T) {
	inner := NewTable(map[string]interface{}{"nested": int32(42)})
	outer := NewTable(map[string]interface{}{"inner": inner})

	var w buffer.Buffer
	require.NoError(t, WriteTable(&w, outer))

	got, err := ReadTable(buffer.New(w.Bytes()))
	require.NoError(t, err)

	v, ok := got.Get("inner")
	require.True(t, ok)
	innerGot := v.(Table)
	nv, ok := innerGot.Get("nested")
	require.True(t, ok)
	require.Equal(t, int32(42), nv)
}

func TestIntegerNarrowingPicksTightestDomain(t *testing.T) {
	cases := []struct {
		v    int
		want Tag
	}{
		{v: 5, want: TagSByte},
		{v: 200, want: TagSShort},
		{v: 30000, want: TagSShort},
		{v: 70000, want: TagSLong},
		{v: 3000000000, want: TagSLongLong},
		{v: -3000000000, want: TagSLongLong},
	}
	for _, c := range cases {
		tag, err := narrowIntTag(int64(c.v))
		require.NoError(t, err)
		require.Equalf(t, c.want, tag, "value %d", c.v)
	}
}

func TestReadTableRejectsExcessiveNesting(t *testing.T) {
	// Build a table nested more than maxTableDepth levels deep by chaining
	// WriteTable calls around a trivial innermost table.
	inner := NewTable(map[string]interface{}{"leaf": int32(1)})
	var buf []byte
	{
		var w buffer.Buffer
		require.NoError(t, WriteTable(&w, inner))
		buf = w.Bytes()
	}
	for i := 0; i <= maxTableDepth+1; i++ {
		var w buffer.Buffer
		require.NoError(t, WriteShortString(&w, "k"))
		w.Append([]byte{byte(TagTable)})
		w.Append(buf)
		var outer buffer.Buffer
		WriteLong(&outer, uint32(w.Len()))
		outer.Append(w.Bytes())
		buf = outer.Bytes()
	}

	_, err := ReadTable(buffer.New(buf))
	require.Error(t, err)
}
