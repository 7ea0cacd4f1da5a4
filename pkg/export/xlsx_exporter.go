package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

const maxSheetName = 31

// XLSXExporter renders each workbook sheet into its own spreadsheet tab.
type XLSXExporter struct{}

// NewXLSXExporter constructs an XLSX exporter.
func NewXLSXExporter() *XLSXExporter {
	return &XLSXExporter{}
}

// Render builds the spreadsheet.
func (e *XLSXExporter) Render(book Workbook) ([]byte, error) {
	if err := book.validate(); err != nil {
		return nil, err
	}
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	bodyStyle, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
	})
	if err != nil {
		return nil, fmt.Errorf("create body style: %w", err)
	}

	used := make(map[string]bool, len(book.Sheets))
	for i, sheet := range book.Sheets {
		name := sheetName(sheet.Name, used)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}

		row := 1
		for _, meta := range sheet.Meta {
			_ = f.SetCellValue(name, cell(1, row), meta[0])
			_ = f.SetCellValue(name, cell(2, row), meta[1])
			row++
		}
		if len(sheet.Meta) > 0 {
			row++
		}

		for col, header := range sheet.Headers {
			_ = f.SetCellValue(name, cell(col+1, row), header)
		}
		_ = f.SetCellStyle(name, cell(1, row), cell(len(sheet.Headers), row), headerStyle)
		headerRow := row
		row++

		for _, values := range sheet.Rows {
			for col := range sheet.Headers {
				if col < len(values) {
					_ = f.SetCellValue(name, cell(col+1, row), values[col])
				}
			}
			row++
		}
		if row > headerRow+1 {
			_ = f.SetCellStyle(name, cell(1, headerRow+1), cell(len(sheet.Headers), row-1), bodyStyle)
		}

		_ = f.SetColWidth(name, "A", "A", 12)
		if len(sheet.Headers) > 1 {
			last, _ := excelize.ColumnNumberToName(len(sheet.Headers))
			_ = f.SetColWidth(name, "B", last, 24)
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write xlsx: %w", err)
	}
	return buf.Bytes(), nil
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

// sheetName trims to the spreadsheet limit, strips forbidden characters and
// de-duplicates.
func sheetName(raw string, used map[string]bool) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '-'
		}
		return r
	}, strings.TrimSpace(raw))
	if name == "" {
		name = "Sheet"
	}
	if len([]rune(name)) > maxSheetName {
		name = string([]rune(name)[:maxSheetName])
	}
	candidate := name
	for n := 2; used[strings.ToLower(candidate)]; n++ {
		suffix := fmt.Sprintf(" (%d)", n)
		base := []rune(name)
		if len(base)+len(suffix) > maxSheetName {
			base = base[:maxSheetName-len(suffix)]
		}
		candidate = string(base) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}
