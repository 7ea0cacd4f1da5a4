package export

import "fmt"

// Sheet is one titled grid: a short key/value preamble followed by a header
// row and data rows.
type Sheet struct {
	Name    string
	Meta    [][2]string
	Headers []string
	Rows    [][]string
}

// Workbook groups the sheets rendered into one file.
type Workbook struct {
	Title  string
	Sheets []Sheet
}

func (w Workbook) validate() error {
	if len(w.Sheets) == 0 {
		return fmt.Errorf("workbook has no sheets")
	}
	for _, sheet := range w.Sheets {
		if len(sheet.Headers) == 0 {
			return fmt.Errorf("sheet %q requires at least one header", sheet.Name)
		}
	}
	return nil
}

// Content types for rendered exports.
const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypePDF  = "application/pdf"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeICS  = "text/calendar; charset=utf-8"
	ContentTypeJSON = "application/json"
)
