package cli

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// renderTable writes rows under header as a bordered table.
func renderTable(w io.Writer, header []string, rows [][]string) error {
	var table = tablewriter.NewWriter(w)
	table.SetHeader(header)
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
	return nil
}
