package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/nainya/entitystore/pkg/value"
)

// OutputFormatter writes command results as text or JSON
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// Print writes data as indented JSON in json mode, otherwise calls text
func (f *OutputFormatter) Print(data any, text func(w io.Writer)) error {
	if f.Format == "json" {
		enc := json.NewEncoder(f.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}
	text(f.Writer)
	return nil
}

func newFormatter(opts *RootOptions, w io.Writer) *OutputFormatter {
	return &OutputFormatter{Format: opts.Format, Writer: w}
}

// parseValueArg reads a command-line value as JSON, falling back to plain
// text so that `function` and `"function"` mean the same thing
func parseValueArg(s string) value.Value {
	v, err := value.Decode([]byte(s))
	if err != nil {
		return value.Text(s)
	}
	return v
}

func formatValue(v value.Value) string {
	data, err := value.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}

func printIDs(w io.Writer, ids []string) {
	if len(ids) == 0 {
		fmt.Fprintln(w, "(no entities)")
		return
	}
	fmt.Fprintln(w, strings.Join(ids, "\n"))
}
