package dto

import "time"

// Export formats.
const (
	ExportFormatCSV  = "csv"
	ExportFormatPDF  = "pdf"
	ExportFormatXLSX = "xlsx"
	ExportFormatICS  = "ics"
	ExportFormatJSON = "json"
)

// ExportFile is a rendered timetable document.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportLinkResponse carries a signed download link.
type ExportLinkResponse struct {
	URL       string    `json:"url"`
	Token     string    `json:"token"`
	Filename  string    `json:"filename"`
	ExpiresAt time.Time `json:"expiresAt"`
}
