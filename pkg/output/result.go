package output

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Result is the envelope every command prints in JSON mode.
type Result struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Tabular is implemented by results that know how to lay themselves out
// as a table.
type Tabular interface {
	Table(t *TableWriter)
}

// Printer writes results as JSON or as text.
type Printer struct {
	Out  io.Writer
	JSON bool
}

// NewPrinter prints JSON when forced or when stdout is not a terminal.
func NewPrinter(forceJSON bool) *Printer {
	return &Printer{
		Out:  os.Stdout,
		JSON: forceJSON || !term.IsTerminal(int(os.Stdout.Fd())),
	}
}

// Success prints a successful result. Data implementing Tabular is shown
// as a table below the message in text mode.
func (p *Printer) Success(message string, data interface{}) error {
	if p.JSON {
		return JSONTo(p.Out, Result{Success: true, Message: message, Data: data})
	}
	if message != "" {
		_, _ = fmt.Fprintln(p.Out, message)
	}
	if tab, ok := data.(Tabular); ok {
		t := NewTableTo(p.Out)
		tab.Table(t)
		return t.Render()
	}
	return nil
}

// Failure prints a failed result. In text mode errors go to stderr through
// the CLI's error handling, so only JSON mode writes here.
func (p *Printer) Failure(message string, err error) error {
	if !p.JSON {
		return nil
	}
	r := Result{Success: false, Message: message}
	if err != nil {
		r.Error = err.Error()
	}
	return JSONTo(p.Out, r)
}
