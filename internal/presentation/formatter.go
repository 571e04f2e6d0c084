// Package presentation formats command output.
package presentation

import (
	"encoding/json"
	"io"
)

// Formatter writes JSON output.
type Formatter struct {
	writer io.Writer
}

// NewFormatter creates a formatter writing to writer.
func NewFormatter(writer io.Writer) *Formatter {
	return &Formatter{
		writer: writer,
	}
}

// FormatPartials writes partials as an indented JSON array.
func (f *Formatter) FormatPartials(partials []PartialDTO) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(partials)
}
