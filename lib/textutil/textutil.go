package textutil

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"libgal/lib/table"
)

const printable = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~ \t\n\r\x0b\x0c"

var latin1Allowed = func() map[rune]struct{} {
	set := make(map[rune]struct{}, len(printable)+94)
	for _, r := range printable {
		set[r] = struct{}{}
	}
	for r := rune(161); r < 255; r++ {
		set[r] = struct{}{}
	}
	return set
}()

var accentReplacer = strings.NewReplacer("´", "'", "`", "'")

// RemoveNonLatin1 drops every rune outside printable ASCII and the latin1
// extension range, after normalizing stray accents to apostrophes.
func RemoveNonLatin1(s string) string {
	s = accentReplacer.Replace(s)
	var out strings.Builder
	out.Grow(len(s))
	for _, r := range s {
		if _, ok := latin1Allowed[r]; ok {
			out.WriteRune(r)
		}
	}
	return out.String()
}

// both escaped and raw control characters break PowerCenter flat files
var powercenterReplacer = strings.NewReplacer(
	`\t`, " ",
	`\n`, " ",
	`\r`, " ",
	"|", " ",
	"\t", " ",
	"\n", " ",
	"\r", " ",
)

// PowercenterCompat removes tabs, newlines, carriage returns and pipes.
func PowercenterCompat(message string) string {
	return powercenterReplacer.Replace(message)
}

// PowercenterCompatTable applies PowercenterCompat to every string cell.
func PowercenterCompatTable(t *table.Table) *table.Table {
	out := t.Clone()
	for _, row := range out.Rows {
		for i, v := range row {
			if s, ok := v.(string); ok {
				row[i] = PowercenterCompat(s)
			}
		}
	}
	return out
}

type HashOptions struct {
	// when set, the key is prefixed with the unix epoch of this field
	TimestampField string
	// go time layout of TimestampField, "iso" accepts RFC 3339 style values.
	// defaults to "2006-01-02"
	TimestampLayout string
	// location used for values without an offset, defaults to time.Local
	Location *time.Location
	// number of hash characters to keep, 0 keeps the whole digest
	// (12 when TimestampField is set)
	Trim int
}

// HashPrimaryKey builds a surrogate key for a row from the sha256 digest of
// the concatenated fields.
func HashPrimaryKey(row map[string]string, fields []string, opts HashOptions) (string, error) {
	var joined strings.Builder
	for _, f := range fields {
		v, ok := row[f]
		if !ok {
			return "", fmt.Errorf("hash primary key: field %q not in row", f)
		}
		joined.WriteString(v)
	}
	sum := sha256.Sum256([]byte(joined.String()))
	digest := hex.EncodeToString(sum[:])

	if opts.TimestampField == "" {
		if opts.Trim > 0 && opts.Trim < len(digest) {
			return digest[:opts.Trim], nil
		}
		return digest, nil
	}

	trim := opts.Trim
	if trim <= 0 {
		trim = 12
	}
	if trim > len(digest) {
		trim = len(digest)
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	raw, ok := row[opts.TimestampField]
	if !ok {
		return "", fmt.Errorf("hash primary key: timestamp field %q not in row", opts.TimestampField)
	}
	ts, err := parseTimestamp(raw, opts.TimestampLayout, loc)
	if err != nil {
		return "", fmt.Errorf("hash primary key: %w", err)
	}
	return fmt.Sprintf("%d_%s", ts.Unix(), digest[:trim]), nil
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

func parseTimestamp(value, layout string, loc *time.Location) (time.Time, error) {
	switch strings.ToLower(layout) {
	case "":
		layout = time.DateOnly
	case "iso", "iso8601":
		var lastErr error
		for _, l := range isoLayouts {
			ts, err := time.ParseInLocation(l, value, loc)
			if err == nil {
				return ts, nil
			}
			lastErr = err
		}
		return time.Time{}, lastErr
	}
	return time.ParseInLocation(layout, value, loc)
}
