// Package output renders command results as JSON or aligned tables.
package output

import (
	"encoding/json"
	"io"
	"os"
)

// JSONToStdout writes data as indented JSON to stdout.
func JSONToStdout(data interface{}) error {
	return JSONTo(os.Stdout, data)
}

// JSONTo writes data as indented JSON to w.
func JSONTo(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
