package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isassess/isassess/pkg/apperr"
	"github.com/isassess/isassess/pkg/dashboard"
	"github.com/isassess/isassess/pkg/export"
	"github.com/isassess/isassess/pkg/model"
)

type ExportSource interface {
	ExportRows(ctx context.Context) ([]model.Application, error)
	LatestCommentsByPair(ctx context.Context) (map[uuid.UUID]map[uint]model.Comment, error)
}

type DepartmentLister interface {
	List(ctx context.Context) ([]model.Department, error)
}

// ReportHandler serves the dashboard and the file exports.
type ReportHandler struct {
	dashboard   *dashboard.Service
	rows        ExportSource
	departments DepartmentLister
	loc         *time.Location
	logger      *zap.Logger
}

func NewReportHandler(stats *dashboard.Service, rows ExportSource, departments DepartmentLister, loc *time.Location, logger *zap.Logger) *ReportHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &ReportHandler{dashboard: stats, rows: rows, departments: departments, loc: loc, logger: logger}
}

func (h *ReportHandler) Dashboard(c *gin.Context) {
	stats, err := h.dashboard.Get(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *ReportHandler) attachment(c *gin.Context, name, contentType string, body *bytes.Buffer) {
	stamp := time.Now().In(h.loc).Format("20060102_150405")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s_%s"`, stamp, name))
	c.Data(http.StatusOK, contentType, body.Bytes())
}

// Applications exports every active application with each department's
// status and latest comment.
func (h *ReportHandler) Applications(c *gin.Context) {
	ctx := c.Request.Context()
	apps, err := h.rows.ExportRows(ctx)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	departments, err := h.departments.List(ctx)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	comments, err := h.rows.LatestCommentsByPair(ctx)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var buf bytes.Buffer
	err = export.WriteOverview(&buf, export.Overview{
		Applications: apps,
		Departments:  departments,
		Comments:     comments,
	}, h.loc)
	if err != nil {
		respondError(c, h.logger, apperr.Internal(err, "write export"))
		return
	}
	h.attachment(c, "applications.csv", "text/csv; charset=utf-8", &buf)
}

// Verticals exports a zip with one status sheet per vertical.
func (h *ReportHandler) Verticals(c *gin.Context) {
	ctx := c.Request.Context()
	apps, err := h.rows.ExportRows(ctx)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	departments, err := h.departments.List(ctx)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteVerticalArchive(&buf, apps, departments); err != nil {
		respondError(c, h.logger, apperr.Internal(err, "write export"))
		return
	}
	h.attachment(c, "verticals.zip", "application/zip", &buf)
}
