package output

import (
	"io"

	"github.com/agentstation/recon/internal/cmd/table"
)

// Write renders data to w in format. For table output, toTable supplies
// the rows; structured formats encode data as is.
func Write(w io.Writer, format Format, data any, toTable func() table.Data) error {
	if format == FormatTable || format == "" {
		if toTable != nil {
			return NewFormatter(FormatTable).Format(w, toTable())
		}
	}
	return NewFormatter(format).Format(w, data)
}
