package commands

import (
	"fmt"
	"io"
	"time"

	"libgal/lib/table"

	prettytable "github.com/jedib0t/go-pretty/v6/table"
)

func newPrettyTable(w io.Writer) prettytable.Writer {
	t := prettytable.NewWriter()
	t.SetStyle(prettytable.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

func cell(v any) any {
	switch v := v.(type) {
	case nil:
		return ""
	case time.Time:
		return v.Format(time.DateTime)
	case []byte:
		return string(v)
	}
	return v
}

func renderTable(w io.Writer, t *table.Table) {
	out := newPrettyTable(w)
	header := prettytable.Row{}
	for _, c := range t.Columns {
		header = append(header, c)
	}
	out.AppendHeader(header)
	for _, row := range t.Rows {
		r := make(prettytable.Row, len(row))
		for i, v := range row {
			r[i] = cell(v)
		}
		out.AppendRow(r)
	}
	out.AppendFooter(prettytable.Row{fmt.Sprintf("%d rows", t.Len())})
	out.Render()
}
