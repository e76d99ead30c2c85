// Package sheet maps thread records onto tabular exports: a styled XLSX workbook and the
// plain CSV the first versions of the product shipped.
package sheet

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.io/infrasutra/emlconvert/internal/thread"
)

const (
	SheetName = "Emails"

	// CharsPerLine approximates how many body characters fit on one line of the body
	// column. Rows are sized from it instead of measuring text.
	CharsPerLine = 90
	MaxLines     = 20
	LineHeight   = 15.0

	// maxCellRunes is the Excel limit for the text of a single cell.
	maxCellRunes = 32767
)

// Column is one fixed grid column.
type Column struct {
	Title string
	Width float64
	Value func(thread.Record) string
}

// Columns is the fixed column set, in order.
var Columns = []Column{
	{Title: "File Name", Width: 28, Value: func(r thread.Record) string { return r.FileName }},
	{Title: "From", Width: 30, Value: func(r thread.Record) string { return r.From }},
	{Title: "To", Width: 30, Value: func(r thread.Record) string { return r.To }},
	{Title: "Subject", Width: 36, Value: func(r thread.Record) string { return r.Subject }},
	{Title: "Date", Width: 22, Value: func(r thread.Record) string { return r.Date }},
	{Title: "Body", Width: 100, Value: func(r thread.Record) string { return r.Body }},
}

// RowHeight estimates the height of a data row from the length of its body.
func RowHeight(body string) float64 {
	lines := int(math.Ceil(float64(utf8.RuneCountInString(body)) / CharsPerLine))
	lines = max(1, min(lines, MaxLines))
	return float64(lines) * LineHeight
}

// BuildXLSX writes records to a single-sheet workbook with a styled header row.
func BuildXLSX(records []thread.Record) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	styles, err := newStyles(f)
	if err != nil {
		return nil, err
	}

	lastCol, err := excelize.ColumnNumberToName(len(Columns))
	if err != nil {
		return nil, fmt.Errorf("column name: %w", err)
	}
	for i, col := range Columns {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, fmt.Errorf("column name: %w", err)
		}
		if err := f.SetColWidth(SheetName, name, name, col.Width); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}

	header := make([]any, len(Columns))
	for i, col := range Columns {
		header[i] = col.Title
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	if err := f.SetCellStyle(SheetName, "A1", lastCol+"1", styles.header); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}
	if err := f.SetRowHeight(SheetName, 1, 22); err != nil {
		return nil, fmt.Errorf("size header: %w", err)
	}

	for i, record := range records {
		row := i + 2
		values := make([]any, len(Columns))
		for c, col := range Columns {
			values[c] = cellText(col.Value(record))
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", row, err)
		}
		style := styles.even
		if i%2 == 1 {
			style = styles.odd
		}
		if err := f.SetCellStyle(SheetName, cell, fmt.Sprintf("%s%d", lastCol, row), style); err != nil {
			return nil, fmt.Errorf("style row %d: %w", row, err)
		}
		if err := f.SetRowHeight(SheetName, row, RowHeight(record.Body)); err != nil {
			return nil, fmt.Errorf("size row %d: %w", row, err)
		}
	}

	lastRow := max(len(records)+1, 2)
	if err := f.AutoFilter(SheetName, fmt.Sprintf("A1:%s%d", lastCol, lastRow), nil); err != nil {
		return nil, fmt.Errorf("auto filter: %w", err)
	}
	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

type gridStyles struct {
	header int
	even   int
	odd    int
}

func newStyles(f *excelize.File) (gridStyles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "B7C3D0", Style: 1},
		{Type: "top", Color: "B7C3D0", Style: 1},
		{Type: "right", Color: "B7C3D0", Style: 1},
		{Type: "bottom", Color: "B7C3D0", Style: 1},
	}
	cell := &excelize.Alignment{WrapText: true, Vertical: "top"}

	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"1F4E78"}, Pattern: 1},
		Border:    border,
		Alignment: &excelize.Alignment{Vertical: "center"},
	})
	if err != nil {
		return gridStyles{}, fmt.Errorf("header style: %w", err)
	}
	even, err := f.NewStyle(&excelize.Style{Border: border, Alignment: cell})
	if err != nil {
		return gridStyles{}, fmt.Errorf("row style: %w", err)
	}
	odd, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"F3F5F8"}, Pattern: 1},
		Border:    border,
		Alignment: cell,
	})
	if err != nil {
		return gridStyles{}, fmt.Errorf("row style: %w", err)
	}
	return gridStyles{header: header, even: even, odd: odd}, nil
}

func cellText(value string) string {
	if utf8.RuneCountInString(value) <= maxCellRunes {
		return value
	}
	return string([]rune(value)[:maxCellRunes])
}
