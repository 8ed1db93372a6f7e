// Package output renders command results as tables, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/agentstation/recon/internal/cmd/table"
	"github.com/agentstation/recon/pkg/errors"
)

// Format names an output encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates s case-insensitively. The empty string is
// accepted and means "detect".
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML, "":
		return f, nil
	default:
		return "", errors.NewValidationError("output", s,
			fmt.Sprintf("invalid format %q: must be one of: table, json, yaml", s))
	}
}

// DetectFormat returns explicit when set, otherwise table on a terminal
// and JSON when stdout is a pipe or file.
func DetectFormat(explicit string) Format {
	if explicit != "" {
		return Format(strings.ToLower(explicit))
	}
	fd := os.Stdout.Fd()
	if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
		return FormatTable
	}
	return FormatJSON
}

// Formatter encodes a value to w.
type Formatter interface {
	Format(w io.Writer, data any) error
}

// FormatterFunc is a function Formatter.
type FormatterFunc func(io.Writer, any) error

func (f FormatterFunc) Format(w io.Writer, data any) error { return f(w, data) }

// NewFormatter returns the encoder for format; unknown formats get the
// table encoder.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return FormatterFunc(encodeJSON)
	case FormatYAML:
		return FormatterFunc(encodeYAML)
	default:
		return FormatterFunc(encodeTable)
	}
}

func encodeJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func encodeYAML(w io.Writer, data any) error {
	b, err := yaml.MarshalWithOptions(data, yaml.Indent(2), yaml.IndentSequence(false))
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

// encodeTable renders table.Data directly, structs and struct slices by
// reflection, and anything else as JSON.
func encodeTable(w io.Writer, data any) error {
	switch v := data.(type) {
	case table.Data:
		return renderTable(w, v)
	case *table.Data:
		return renderTable(w, *v)
	}
	if d, ok := reflectTable(data); ok {
		return renderTable(w, d)
	}
	return encodeJSON(w, data)
}

func renderTable(w io.Writer, data table.Data) error {
	var cfg tablewriter.Config
	if n := len(data.ColumnAlignment); n > 0 {
		align := make([]tw.Align, n)
		for i, a := range data.ColumnAlignment {
			align[i] = alignments[a]
		}
		cfg.Header.Alignment = tw.CellAlignment{PerColumn: align}
		cfg.Row.Alignment = tw.CellAlignment{PerColumn: align}
	}

	t := tablewriter.NewTable(w, tablewriter.WithConfig(cfg))
	if len(data.Headers) > 0 {
		t.Header(cells(data.Headers)...)
	}
	for _, row := range data.Rows {
		if err := t.Append(cells(row)...); err != nil {
			return err
		}
	}
	return t.Render()
}

var alignments = map[table.Align]tw.Align{
	table.AlignDefault: tw.Skip,
	table.AlignLeft:    tw.AlignLeft,
	table.AlignCenter:  tw.AlignCenter,
	table.AlignRight:   tw.AlignRight,
}

func cells(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
