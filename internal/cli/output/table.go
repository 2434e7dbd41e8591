// Package output renders list pages for terminal commands.
package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/light-bringer/storefront-listview/internal/app/listing/domain"
)

// Table renders records as borderless, left-aligned columns.
type Table struct {
	table   *tablewriter.Table
	columns []string
	rows    [][]string
}

// NewTable creates a table writing to w with one column per record field.
func NewTable(w io.Writer, columns []string) *Table {
	table := tablewriter.NewTable(w,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoWrap: tw.WrapNone,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignLeft,
				},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{
					AutoFormat: tw.On,
				},
				Alignment: tw.CellAlignment{
					Global: tw.AlignLeft,
				},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{
					ShowHeader: tw.Off,
				},
			},
		}),
	)

	return &Table{table: table, columns: columns}
}

// AddRecords adds one row per record. Missing fields render empty.
func (t *Table) AddRecords(records []domain.Record) {
	for _, r := range records {
		row := make([]string, len(t.columns))
		for i, col := range t.columns {
			row[i] = r.String(col)
		}
		t.rows = append(t.rows, row)
	}
}

// Len returns the number of rows added.
func (t *Table) Len() int {
	return len(t.rows)
}

// Render outputs the table.
func (t *Table) Render() error {
	t.table.Header(t.columns)
	if err := t.table.Bulk(t.rows); err != nil {
		return err
	}
	return t.table.Render()
}
