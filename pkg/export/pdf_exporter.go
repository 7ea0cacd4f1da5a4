package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders a workbook as a landscape PDF with one page per sheet.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates the PDF document.
func (e *PDFExporter) Render(book Workbook) ([]byte, error) {
	if err := book.validate(); err != nil {
		return nil, err
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(8, 12, 8)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	const usable = 281.0
	for _, sheet := range book.Sheets {
		pdf.AddPage()

		if book.Title != "" {
			pdf.SetFont("Arial", "B", 14)
			pdf.CellFormat(0, 9, tr(strings.ToUpper(book.Title)), "", 1, "C", false, 0, "")
		}
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(0, 8, tr(sheet.Name), "", 1, "C", false, 0, "")
		pdf.SetFont("Arial", "", 9)
		for _, meta := range sheet.Meta {
			pdf.CellFormat(0, 5, tr(fmt.Sprintf("%s: %s", meta[0], meta[1])), "", 1, "L", false, 0, "")
		}
		pdf.Ln(3)

		first := 20.0
		rest := (usable - first) / float64(max(len(sheet.Headers)-1, 1))
		width := func(i int) float64 {
			if i == 0 {
				return first
			}
			return rest
		}

		pdf.SetFont("Arial", "B", 7)
		pdf.SetFillColor(230, 230, 230)
		for i, header := range sheet.Headers {
			pdf.CellFormat(width(i), 8, tr(header), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 6)
		for _, row := range sheet.Rows {
			for i := range sheet.Headers {
				value := ""
				if i < len(row) {
					value = row[i]
				}
				pdf.CellFormat(width(i), 14, tr(truncate(value, 38)), "1", 0, "C", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "."
}
