package document

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/kpi-cli/internal/model"
)

// XLSXReader reads workbooks. Each sheet becomes one page holding one table.
type XLSXReader struct{}

// Read implements Reader.
func (XLSXReader) Read(ctx context.Context, path string) (*model.Document, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "document: open workbook %s", path)
	}

	pages := make([]model.Page, 0, len(f.Sheets))
	for _, sheet := range f.Sheets {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "document: context cancelled")
		}
		table := sheetTable(sheet)
		if len(table) == 0 {
			continue
		}
		pages = append(pages, model.Page{
			Text:   tableText(sheet.Name, table),
			Tables: []model.Table{table},
		})
	}
	if len(pages) == 0 {
		return nil, eris.Errorf("document: workbook %s has no data", path)
	}
	return Build(IDFromPath(path), pages), nil
}

// sheetTable returns the sheet's rows with trailing blank rows and cells
// removed.
func sheetTable(sheet *xlsx.Sheet) model.Table {
	var table model.Table
	for _, row := range sheet.Rows {
		if row == nil {
			table = append(table, nil)
			continue
		}
		table = append(table, rowToStrings(row))
	}
	for len(table) > 0 && blankRow(table[len(table)-1]) {
		table = table[:len(table)-1]
	}
	return table
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = strings.TrimSpace(cell.String())
	}
	for len(cells) > 0 && cells[len(cells)-1] == "" {
		cells = cells[:len(cells)-1]
	}
	return cells
}

func blankRow(row []string) bool {
	for _, c := range row {
		if c != "" {
			return false
		}
	}
	return true
}

// tableText lays the grid out as text, cells separated by wide gaps so the
// layout-text extractor sees column boundaries.
func tableText(title string, table model.Table) string {
	var sb strings.Builder
	sb.WriteString(title)
	sb.WriteString("\n")
	for _, row := range table {
		sb.WriteString(strings.Join(row, "    "))
		sb.WriteString("\n")
	}
	return sb.String()
}
