package table

import (
	"cmp"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/antzucaro/matchr"
)

// Key turns a cell into a comparable map key. Values read back from a
// database rarely have the type they were written with (int vs int64 vs
// float64, string vs []byte), so numbers are keyed by their decimal
// representation and bytes by their string contents. Integers are keyed
// exactly, floats only collapse onto them when integral.
func Key(v any) string {
	if v == nil {
		return "\x00null"
	}
	if n, ok := numberOf(v); ok {
		return "n:" + n.String()
	}
	switch s := v.(type) {
	case string:
		return "s:" + s
	case []byte:
		return "s:" + string(s)
	case time.Time:
		return "t:" + s.UTC().Format(time.RFC3339Nano)
	case bool:
		if s {
			return "n:1"
		}
		return "n:0"
	}
	return "s:" + fmt.Sprint(v)
}

// Compare orders numbers numerically, times chronologically and everything
// else by its string representation. nil sorts first.
func Compare(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	na, aok := numberOf(a)
	nb, bok := numberOf(b)
	if aok && bok {
		return na.compare(nb)
	}
	ta, aok := a.(time.Time)
	tb, bok := b.(time.Time)
	if aok && bok {
		return ta.Compare(tb)
	}
	return strings.Compare(stringOf(a), stringOf(b))
}

type numberKind int

const (
	kindInt numberKind = iota
	// only for values above math.MaxInt64
	kindUint
	kindFloat
)

type number struct {
	kind numberKind
	i    int64
	u    uint64
	f    float64
}

// 2^63 as a float64, the first value outside the int64 range
const int64Limit = float64(1 << 63)

func numberOf(v any) (number, bool) {
	switch n := v.(type) {
	case int:
		return number{kind: kindInt, i: int64(n)}, true
	case int8:
		return number{kind: kindInt, i: int64(n)}, true
	case int16:
		return number{kind: kindInt, i: int64(n)}, true
	case int32:
		return number{kind: kindInt, i: int64(n)}, true
	case int64:
		return number{kind: kindInt, i: n}, true
	case uint:
		return unsigned(uint64(n)), true
	case uint8:
		return unsigned(uint64(n)), true
	case uint16:
		return unsigned(uint64(n)), true
	case uint32:
		return unsigned(uint64(n)), true
	case uint64:
		return unsigned(n), true
	case float32:
		return floating(float64(n)), true
	case float64:
		return floating(n), true
	}
	return number{}, false
}

func unsigned(u uint64) number {
	if u > math.MaxInt64 {
		return number{kind: kindUint, u: u}
	}
	return number{kind: kindInt, i: int64(u)}
}

func floating(f float64) number {
	if f == math.Trunc(f) && f >= -int64Limit && f < int64Limit {
		return number{kind: kindInt, i: int64(f)}
	}
	return number{kind: kindFloat, f: f}
}

func (n number) String() string {
	switch n.kind {
	case kindInt:
		return strconv.FormatInt(n.i, 10)
	case kindUint:
		return strconv.FormatUint(n.u, 10)
	}
	return strconv.FormatFloat(n.f, 'g', -1, 64)
}

func (n number) float() float64 {
	switch n.kind {
	case kindInt:
		return float64(n.i)
	case kindUint:
		return float64(n.u)
	}
	return n.f
}

func (n number) compare(o number) int {
	switch {
	case n.kind == kindInt && o.kind == kindInt:
		return cmp.Compare(n.i, o.i)
	case n.kind == kindUint && o.kind == kindUint:
		return cmp.Compare(n.u, o.u)
	case n.kind == kindUint && o.kind == kindInt:
		return 1
	case n.kind == kindInt && o.kind == kindUint:
		return -1
	}
	// a non integral or out of range float is involved, float64 precision
	// is enough to order it
	return cmp.Compare(n.float(), o.float())
}

func stringOf(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprint(v)
}

// Bounds returns the smallest and largest non-null values of a column.
func (t *Table) Bounds(name string) (lo, hi any, err error) {
	values, err := t.Column(name)
	if err != nil {
		return nil, nil, err
	}
	for _, v := range values {
		if IsNull(v) {
			continue
		}
		if lo == nil || Compare(v, lo) < 0 {
			lo = v
		}
		if hi == nil || Compare(v, hi) > 0 {
			hi = v
		}
	}
	return lo, hi, nil
}

// Unique returns the distinct non-null values of a column in first-seen order.
func (t *Table) Unique(name string) ([]any, error) {
	values, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{}
	var out []any
	for _, v := range values {
		if IsNull(v) {
			continue
		}
		k := Key(v)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, v)
	}
	return out, nil
}

// KeySet returns the keys of every value in a column.
func (t *Table) KeySet(name string) (map[string]struct{}, error) {
	values, err := t.Column(name)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[Key(v)] = struct{}{}
	}
	return set, nil
}

type MissingColumnError struct {
	Name       string
	Suggestion string
}

func (e *MissingColumnError) Error() string {
	if e.Suggestion == "" {
		return fmt.Sprintf("column %q not found", e.Name)
	}
	return fmt.Sprintf("column %q not found, did you mean %q?", e.Name, e.Suggestion)
}

// below this similarity a suggestion is more noise than help
const minSuggestionSimilarity = 0.8

func newMissingColumnError(name string, columns []string) *MissingColumnError {
	var best string
	var bestScore float64
	for _, c := range columns {
		score := matchr.JaroWinkler(name, c, false)
		if score > bestScore {
			bestScore = score
			best = c
		}
	}
	err := &MissingColumnError{Name: name}
	if bestScore >= minSuggestionSimilarity {
		err.Suggestion = best
	}
	return err
}
