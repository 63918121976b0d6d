package table

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func sample() *Table {
	t := New("id", "name", "amount_vl")
	t.Rows = [][]any{
		{int64(1), "alice", 10.5},
		{int64(2), "bob", nil},
		{int64(3), "carol", 7.0},
	}
	return t
}

func TestChunks(t *testing.T) {
	testCases := []struct {
		rows     int
		n        int
		expected []int
	}{
		{rows: 10, n: 3, expected: []int{4, 3, 3}},
		{rows: 10, n: 100, expected: []int{10}},
		{rows: 7, n: 2, expected: []int{3, 2, 2}},
		{rows: 0, n: 5, expected: []int{0}},
		{rows: 6, n: 0, expected: []int{1, 1, 1, 1, 1, 1}},
	}

	for _, test := range testCases {
		tbl := New("x")
		for i := 0; i < test.rows; i++ {
			require.NoError(t, tbl.AddRow(i))
		}
		var sizes []int
		total := 0
		for _, c := range tbl.Chunks(test.n) {
			sizes = append(sizes, c.Len())
			total += c.Len()
		}
		if diff := cmp.Diff(test.expected, sizes); diff != "" {
			t.Fatalf("chunks(%d rows, n=%d) mismatch (-want +got):\n%s", test.rows, test.n, diff)
		}
		require.Equal(t, test.rows, total)
	}
}

func TestMissingColumnSuggestion(t *testing.T) {
	tbl := sample()

	_, err := tbl.Index("amount_vll")
	var missing *MissingColumnError
	require.True(t, errors.As(err, &missing))
	require.Equal(t, "amount_vl", missing.Suggestion)
	require.Contains(t, err.Error(), "did you mean")

	_, err = tbl.Index("zzz")
	require.True(t, errors.As(err, &missing))
	require.Empty(t, missing.Suggestion)
}

func TestKeyNormalizesDriverTypes(t *testing.T) {
	require.Equal(t, Key(int64(3)), Key(3.0))
	require.Equal(t, Key(3), Key(uint8(3)))
	require.Equal(t, Key("abc"), Key([]byte("abc")))
	require.NotEqual(t, Key("3"), Key(3))
	require.NotEqual(t, Key(nil), Key(""))
}

func TestKeyLargeIntegers(t *testing.T) {
	// above 2^53 neighbouring integers share a float64
	const big = int64(1) << 53
	require.NotEqual(t, Key(big), Key(big+1))
	require.NotEqual(t, Key(big-2), Key(big))
	require.Equal(t, Key(big), Key(float64(big)))
	require.Equal(t, Key(uint64(big+1)), Key(big+1))
	require.NotEqual(t, Key(uint64(math.MaxUint64)), Key(uint64(math.MaxUint64-1)))
	require.Equal(t, "n:1.5", Key(1.5))

	require.Equal(t, -1, Compare(big, big+1))
	require.Equal(t, 1, Compare(big+1, float64(big)))
	require.Equal(t, 0, Compare(uint64(big+1), big+1))
	require.Equal(t, 1, Compare(uint64(math.MaxUint64), int64(math.MaxInt64)))
	require.Equal(t, -1, Compare(int64(math.MinInt64), uint64(0)))
	require.Equal(t, -1, Compare(2.5, int64(3)))
	require.Equal(t, 1, Compare(1e300, int64(math.MaxInt64)))
}

func TestChunksDoNotShareCapacity(t *testing.T) {
	tbl := New("x")
	for i := 0; i < 4; i++ {
		require.NoError(t, tbl.AddRow(i))
	}
	chunks := tbl.Chunks(2)
	require.Len(t, chunks, 2)

	chunks[0].Rows = append(chunks[0].Rows, []any{99})
	require.Equal(t, [][]any{{2}, {3}}, chunks[1].Rows)
	require.Equal(t, [][]any{{0}, {1}, {2}, {3}}, tbl.Rows)
}

func TestBoundsAndUnique(t *testing.T) {
	tbl := New("pk")
	tbl.Rows = [][]any{{int64(5)}, {2.0}, {nil}, {int64(9)}, {int64(5)}}

	lo, hi, err := tbl.Bounds("pk")
	require.NoError(t, err)
	require.Equal(t, 2.0, lo)
	require.Equal(t, int64(9), hi)

	unique, err := tbl.Unique("pk")
	require.NoError(t, err)
	require.Equal(t, []any{int64(5), 2.0, int64(9)}, unique)
}

func TestSetColumnAndDrop(t *testing.T) {
	tbl := sample()

	require.NoError(t, tbl.SetColumn("flag", []any{true, false, true}))
	require.Equal(t, []string{"id", "name", "amount_vl", "flag"}, tbl.Columns)
	require.NoError(t, tbl.SetColumn("name", []any{"a", "b", "c"}))
	require.Equal(t, "b", tbl.Rows[1][1])
	require.Error(t, tbl.SetColumn("short", []any{1}))

	dropped := tbl.Drop("flag", "unknown")
	require.Equal(t, []string{"id", "name", "amount_vl"}, dropped.Columns)
	require.Len(t, tbl.Columns, 4)
}

func TestFloats(t *testing.T) {
	values, err := sample().Floats("amount_vl")
	require.NoError(t, err)
	require.Equal(t, 10.5, values[0])
	require.True(t, math.IsNaN(values[1]))
	require.Equal(t, 7.0, values[2])
}

func TestSelectPrefix(t *testing.T) {
	tbl := New("order.id", "order.total", "customer")
	tbl.Rows = [][]any{{1, 2, "x"}}

	selected, original, err := tbl.SelectPrefix(`order\.`)
	require.NoError(t, err)
	require.Equal(t, []string{"id", "total"}, selected.Columns)
	require.Equal(t, []string{"order.id", "order.total"}, original)
}

func TestDropLists(t *testing.T) {
	tbl := New("a", "b")
	tbl.Rows = [][]any{{1, "x"}, {2, []any{"y", "z"}}}
	require.Equal(t, []string{"a"}, tbl.DropLists().Columns)
}

func TestReadCSV(t *testing.T) {
	input := "id;name;score\n1;alice;2.5\n2;;3\n"
	tbl, err := ReadCSV(strings.NewReader(input), ';')
	require.NoError(t, err)
	require.Equal(t, []string{"id", "name", "score"}, tbl.Columns)
	require.Equal(t, [][]any{
		{int64(1), "alice", 2.5},
		{int64(2), nil, int64(3)},
	}, tbl.Rows)

	_, err = ReadCSV(strings.NewReader(""), ',')
	require.Error(t, err)
}
