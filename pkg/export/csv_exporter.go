package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/gocarina/gocsv"
)

const sectionBanner = "========================================================"

// CSVExporter renders every sheet of a workbook into one CSV stream, each
// block introduced by a START_OF_SECTION banner.
type CSVExporter struct{}

// NewCSVExporter builds a CSV exporter.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{}
}

// Render produces CSV encoded bytes for the workbook.
func (e *CSVExporter) Render(book Workbook) ([]byte, error) {
	if err := book.validate(); err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	writer := gocsv.NewSafeCSVWriter(csv.NewWriter(buf))

	for _, sheet := range book.Sheets {
		blocks := [][]string{
			{},
			{sectionBanner},
			{"START_OF_SECTION", sheet.Name},
			{sectionBanner},
			{},
		}
		for _, meta := range sheet.Meta {
			blocks = append(blocks, []string{meta[0], meta[1]})
		}
		if len(sheet.Meta) > 0 {
			blocks = append(blocks, []string{})
		}
		blocks = append(blocks, sheet.Headers)
		for _, row := range sheet.Rows {
			record := make([]string, len(sheet.Headers))
			for i := range record {
				if i < len(row) {
					record[i] = sanitizeCell(row[i])
				}
			}
			blocks = append(blocks, record)
		}
		for _, record := range blocks {
			if err := writer.Write(record); err != nil {
				return nil, fmt.Errorf("write csv row: %w", err)
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// sanitizeCell drops embedded commas so spreadsheet imports keep one cell
// per slot even without quote handling.
func sanitizeCell(value string) string {
	return strings.ReplaceAll(value, ",", "")
}
