package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
)

// TableWriter collects rows and prints them column-aligned.
type TableWriter struct {
	writer  *tabwriter.Writer
	headers []string
	rows    [][]string
}

// NewTable creates a table writer on stdout.
func NewTable() *TableWriter {
	return NewTableTo(os.Stdout)
}

// NewTableTo creates a table writer on w.
func NewTableTo(w io.Writer) *TableWriter {
	return &TableWriter{writer: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

// WithHeaders sets the column headers.
func (t *TableWriter) WithHeaders(headers ...string) *TableWriter {
	t.headers = headers
	return t
}

// AddRow appends a row.
func (t *TableWriter) AddRow(values ...string) *TableWriter {
	t.rows = append(t.rows, values)
	return t
}

// Render writes the headers, an underline and the rows, then flushes.
func (t *TableWriter) Render() error {
	if len(t.headers) > 0 {
		_, _ = fmt.Fprintln(t.writer, strings.Join(t.headers, "\t"))
		underline := make([]string, len(t.headers))
		for i, h := range t.headers {
			underline[i] = strings.Repeat("-", len(h))
		}
		_, _ = fmt.Fprintln(t.writer, strings.Join(underline, "\t"))
	}
	for _, row := range t.rows {
		_, _ = fmt.Fprintln(t.writer, strings.Join(row, "\t"))
	}
	return t.writer.Flush()
}
