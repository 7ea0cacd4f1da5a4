package handler

import (
	"context"
	"path"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timetable-api/internal/dto"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/response"
	"github.com/noah-isme/timetable-api/pkg/storage"
)

type timetableExporter interface {
	Export(ctx context.Context, id, format, section string) (*dto.ExportFile, error)
	CreateDownloadLink(ctx context.Context, id, format, section string) (*dto.ExportLinkResponse, error)
	Download(token string) (*storage.Object, error)
}

// ExportHandler serves rendered timetable documents.
type ExportHandler struct {
	service timetableExporter
}

// NewExportHandler constructs the handler.
func NewExportHandler(svc timetableExporter) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Export godoc
// @Summary Download a timetable document
// @Tags Exports
// @Produce application/octet-stream
// @Param id path string true "Timetable ID"
// @Param format query string false "csv|pdf|xlsx|ics|json" default(csv)
// @Param section query string false "Limit to one section"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /timetables/{id}/export [get]
func (h *ExportHandler) Export(c *gin.Context) {
	file, err := h.service.Export(c.Request.Context(), c.Param("id"), c.Query("format"), c.Query("section"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

// CreateLink godoc
// @Summary Create a signed download link
// @Tags Exports
// @Produce json
// @Param id path string true "Timetable ID"
// @Param format query string false "csv|pdf|xlsx|ics|json" default(csv)
// @Param section query string false "Limit to one section"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /timetables/{id}/export-link [post]
func (h *ExportHandler) CreateLink(c *gin.Context) {
	link, err := h.service.CreateDownloadLink(c.Request.Context(), c.Param("id"), c.Query("format"), c.Query("section"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, link)
}

// Download godoc
// @Summary Fetch a stored export by signed token
// @Tags Exports
// @Produce application/octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /exports/download [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	obj, err := h.service.Download(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer obj.Close()
	response.Stream(c, path.Base(obj.Key), obj.Size, obj)
}
