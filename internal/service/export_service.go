package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/export"
	"github.com/noah-isme/timetable-api/pkg/storage"
)

type timetableReader interface {
	Get(ctx context.Context, id string) (*dto.TimetableView, bool, error)
	Course(ctx context.Context, courseID string) (CourseMeta, error)
}

type exportStore interface {
	Put(key string, data []byte) error
	Open(key string) (*storage.Object, error)
	RemoveAll(key string) error
	Sweep(cutoff time.Time) ([]string, error)
}

type workbookRenderer interface {
	Render(book export.Workbook) ([]byte, error)
}

type calendarRenderer interface {
	Render(cal export.Calendar) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportService renders stored timetables into downloadable documents.
type ExportService struct {
	timetables timetableReader
	storage    exportStore
	csv        workbookRenderer
	pdf        workbookRenderer
	xlsx       workbookRenderer
	ics        calendarRenderer
	signer     *storage.LinkSigner
	logger     *zap.Logger
	cfg        ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(timetables timetableReader, store exportStore, signer *storage.LinkSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		timetables: timetables,
		storage:    store,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		xlsx:       export.NewXLSXExporter(),
		ics:        export.NewICSExporter(""),
		signer:     signer,
		logger:     logger,
		cfg:        cfg,
	}
}

// Export renders a timetable. A non-empty section narrows the document to
// that section.
func (s *ExportService) Export(ctx context.Context, id, format, section string) (*dto.ExportFile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = dto.ExportFormatCSV
	}
	section = strings.ToUpper(strings.TrimSpace(section))

	view, _, err := s.timetables.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	meta, err := s.timetables.Course(ctx, view.CourseID)
	if err != nil {
		return nil, err
	}

	var (
		payload     []byte
		contentType string
	)
	switch format {
	case dto.ExportFormatJSON:
		payload, err = json.MarshalIndent(view, "", "  ")
		contentType = export.ContentTypeJSON
	case dto.ExportFormatICS:
		var cal export.Calendar
		cal, err = GridCalendar(meta, view.Grid, section, view.CreatedAt)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrUnprocessable.Code, appErrors.ErrUnprocessable.Status, err.Error())
		}
		payload, err = s.ics.Render(cal)
		contentType = export.ContentTypeICS
	case dto.ExportFormatCSV, dto.ExportFormatPDF, dto.ExportFormatXLSX:
		var book export.Workbook
		book, err = GridWorkbook(meta, view.Grid, section, format != dto.ExportFormatCSV)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, err.Error())
		}
		payload, contentType, err = s.renderWorkbook(format, book)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	return &dto.ExportFile{
		Filename:    ExportFilename(meta, section, format),
		ContentType: contentType,
		Data:        payload,
	}, nil
}

func (s *ExportService) renderWorkbook(format string, book export.Workbook) ([]byte, string, error) {
	switch format {
	case dto.ExportFormatPDF:
		data, err := s.pdf.Render(book)
		return data, export.ContentTypePDF, err
	case dto.ExportFormatXLSX:
		data, err := s.xlsx.Render(book)
		return data, export.ContentTypeXLSX, err
	default:
		data, err := s.csv.Render(book)
		return data, export.ContentTypeCSV, err
	}
}

// CreateDownloadLink renders the export, stores it and returns a signed link.
func (s *ExportService) CreateDownloadLink(ctx context.Context, id, format, section string) (*dto.ExportLinkResponse, error) {
	file, err := s.Export(ctx, id, format, section)
	if err != nil {
		return nil, err
	}
	key := path.Join(id, file.Filename)
	if err := s.storage.Put(key, file.Data); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store export")
	}
	token, expiresAt, err := s.signer.Sign(id, key)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign export link")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Info("export link issued", zap.String("timetable_id", id), zap.String("key", key))
	return &dto.ExportLinkResponse{
		URL:       fmt.Sprintf("%s/exports/download?token=%s", prefix, token),
		Token:     token,
		Filename:  file.Filename,
		ExpiresAt: expiresAt,
	}, nil
}

// Download validates a signed token and opens the stored file. The caller
// closes the object.
func (s *ExportService) Download(token string) (*storage.Object, error) {
	claims, err := s.signer.Verify(token)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download token")
	}
	obj, err := s.storage.Open(claims.Key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export file no longer available")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export")
	}
	return obj, nil
}

// Purge drops every stored export of a timetable version.
func (s *ExportService) Purge(ctx context.Context, id string) error {
	if err := s.storage.RemoveAll(id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to purge exports")
	}
	s.logger.Debug("exports purged", zap.String("timetable_id", id))
	return nil
}

// Cleanup removes files older than ttl, or older than ResultTTL when ttl <= 0.
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.Sweep(time.Now().Add(-ttl))
}

// RunCleanup removes stale exports every interval until ctx is done.
func (s *ExportService) RunCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.Cleanup(0)
			if err != nil {
				s.logger.Warn("export cleanup failed", zap.Error(err))
				continue
			}
			if len(removed) > 0 {
				s.logger.Info("stale exports removed", zap.Int("files", len(removed)))
			}
		}
	}
}

// ExportFilename names an export the way downloads are labelled:
// Timetable_<course>_<section>_Sem<n> for one section and
// Timetables_ALL_Sections_<course>_Sem<n> for the whole course.
func ExportFilename(meta CourseMeta, section, format string) string {
	course := sanitizeFilename(strings.Join(strings.Fields(meta.Name), "-"))
	semester := sanitizeFilename(meta.Semester)
	if section != "" {
		return fmt.Sprintf("Timetable_%s_%s_Sem%s.%s", course, sanitizeFilename(section), semester, format)
	}
	return fmt.Sprintf("Timetables_ALL_Sections_%s_Sem%s.%s", course, semester, format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
