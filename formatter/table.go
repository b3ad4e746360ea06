package formatter

import (
	"encoding/json"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/gnolang/cegar/verify"
)

// WriteTable renders one row per property.
func WriteTable(w io.Writer, reports []verify.TaskReport) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Task", "Property", "Verdict", "Reason", "Round"})
	for _, rep := range reports {
		if rep.Report == nil {
			continue
		}
		for _, p := range rep.Properties {
			t.AppendRow(table.Row{rep.Task, p.Name, p.Verdict.String(), string(p.Reason), p.Round})
		}
	}
	t.Render()
}

// WriteJSON encodes the reports as indented JSON.
func WriteJSON(w io.Writer, reports []verify.TaskReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}
