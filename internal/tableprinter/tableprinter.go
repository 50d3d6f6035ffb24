// Package tableprinter provides behavior to write tabular data to a given
// destination.
package tableprinter

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"go.solutions.arcgis.dev/engine/internal/handler"
	"go.solutions.arcgis.dev/engine/internal/template"
)

const (
	tabwriterMinWidth = 6
	tabwriterWidth    = 4
	tabwriterPadding  = 3
	tabwriterPadChar  = ' '
	tabwriterFlags    = tabwriter.FilterHTML
)

// NewTabWriter returns a tabwriter that transforms tabbed columns into aligned
// text.
func NewTabWriter(output io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(output, tabwriterMinWidth, tabwriterWidth, tabwriterPadding, tabwriterPadChar, tabwriterFlags)
}

// PrintTable writes a table with headers to a given output destination. Rows
// shorter than the headers are padded with empty cells.
func PrintTable(output io.Writer, headers []string, rows [][]string) {
	w := NewTabWriter(output)

	// column headers are at the top, so they are written first
	upper := make([]string, len(headers))
	for i, col := range headers {
		upper[i] = strings.ToUpper(col)
	}
	_, _ = fmt.Fprintln(w, strings.Join(upper, "\t"))

	for _, row := range rows {
		cells := make([]string, len(headers))
		copy(cells, row)
		_, _ = fmt.Fprintln(w, strings.Join(cells, "\t"))
	}

	_ = w.Flush()
}

// PrintTemplates writes a table of templates with their types and dependency
// counts in the order they were passed.
func PrintTemplates(output io.Writer, templates []*template.Template) {
	rows := make([][]string, 0, len(templates))
	for _, t := range templates {
		rows = append(rows, []string{
			t.ItemID,
			t.Type,
			fmt.Sprintf("%d", len(t.Dependencies)),
		})
	}
	PrintTable(output, []string{"item", "type", "dependencies"}, rows)
}

// PrintBuildOrder writes the deployment order of a solution, mapping each
// source item to the item created from it.
func PrintBuildOrder(output io.Writer, buildOrder []string, created map[string]*handler.Created) {
	rows := make([][]string, 0, len(buildOrder))
	for i, id := range buildOrder {
		row := []string{fmt.Sprintf("%d", i+1), id}
		if c, ok := created[template.BaseID(id)]; ok {
			row = append(row, c.Type, c.ItemID)
		}
		rows = append(rows, row)
	}
	PrintTable(output, []string{"step", "source", "type", "created"}, rows)
}
