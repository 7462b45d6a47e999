package output

import (
	"encoding/json"
	"io"
)

// JSONFormatter writes one indented JSON document per call, for scripts
// that read token and status output.
type JSONFormatter struct{}

// Format encodes data with two-space indent. HTML escaping is off so
// daemon error text such as "<nil>" or "a & b" comes through unchanged.
func (f *JSONFormatter) Format(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
