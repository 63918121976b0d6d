package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadCSV reads a header row followed by records. Cells that parse as
// integers become int64, other numbers become float64 and empty cells nil.
func ReadCSV(r io.Reader, comma rune) (*Table, error) {
	reader := csv.NewReader(r)
	if comma != 0 {
		reader.Comma = comma
	}

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read csv: missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	for i, h := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	t := New(header...)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		row := make([]any, len(record))
		for i, cell := range record {
			row[i] = inferCell(cell)
		}
		if err := t.AddRow(row...); err != nil {
			return nil, fmt.Errorf("read csv: line %d: %w", len(t.Rows)+2, err)
		}
	}
	return t, nil
}

func inferCell(cell string) any {
	trimmed := strings.TrimSpace(cell)
	if trimmed == "" {
		return nil
	}
	if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	return cell
}
