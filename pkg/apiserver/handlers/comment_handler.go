package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isassess/isassess/pkg/apperr"
	"github.com/isassess/isassess/pkg/auth"
	"github.com/isassess/isassess/pkg/model"
)

type CommentStore interface {
	Create(ctx context.Context, comment *model.Comment) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Comment, error)
	UpdateContent(ctx context.Context, id uuid.UUID, content string) (*model.Comment, error)
	ByApplication(ctx context.Context, appID uuid.UUID) ([]model.Comment, error)
	ByApplicationDepartment(ctx context.Context, appID uuid.UUID, deptID uint) ([]model.Comment, error)
	LatestPerDepartment(ctx context.Context, appID uuid.UUID) ([]model.Comment, error)
}

type CommentHandler struct {
	comments    CommentStore
	departments DepartmentStore
	logger      *zap.Logger
}

func NewCommentHandler(comments CommentStore, departments DepartmentStore, logger *zap.Logger) *CommentHandler {
	return &CommentHandler{comments: comments, departments: departments, logger: logger}
}

type commentRequest struct {
	ApplicationID string `json:"application_id" binding:"required"`
	DepartmentID  uint   `json:"department_id" binding:"required"`
	Content       string `json:"content" binding:"required"`
}

type commentUpdateRequest struct {
	Content string `json:"content" binding:"required"`
}

// Create posts a comment on behalf of a department. The caller must belong to
// the department and the department must be mapped to the application.
func (h *CommentHandler) Create(c *gin.Context) {
	p, ok := principal(c, h.logger)
	if !ok {
		return
	}
	var req commentRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	appID, err := uuid.Parse(strings.TrimSpace(req.ApplicationID))
	if err != nil {
		respondError(c, h.logger, apperr.Validation("invalid application_id"))
		return
	}
	if !requireMembership(c, h.logger, h.departments, req.DepartmentID) {
		return
	}

	ctx := c.Request.Context()
	mapped, err := h.departments.IsMapped(ctx, appID, req.DepartmentID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !mapped {
		respondError(c, h.logger, apperr.NotFound("department %d is not mapped to application %s", req.DepartmentID, appID))
		return
	}

	comment := &model.Comment{
		ID:            uuid.New(),
		Content:       strings.TrimSpace(req.Content),
		AuthorID:      p.UserID,
		ApplicationID: appID,
		DepartmentID:  req.DepartmentID,
	}
	if err := h.comments.Create(ctx, comment); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, comment)
}

func (h *CommentHandler) Update(c *gin.Context) {
	p, ok := principal(c, h.logger)
	if !ok {
		return
	}
	id, ok := uuidParam(c, h.logger, "comment_id")
	if !ok {
		return
	}
	var req commentUpdateRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	ctx := c.Request.Context()
	existing, err := h.comments.GetByID(ctx, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := auth.Authorize(p, auth.ActionEditComment, &auth.Resource{AuthorID: existing.AuthorID}); err != nil {
		respondError(c, h.logger, err)
		return
	}

	updated, err := h.comments.UpdateContent(ctx, id, strings.TrimSpace(req.Content))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *CommentHandler) ByApplication(c *gin.Context) {
	appID, ok := uuidParam(c, h.logger, "id")
	if !ok {
		return
	}
	comments, err := h.comments.ByApplication(c.Request.Context(), appID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

func (h *CommentHandler) ByApplicationDepartment(c *gin.Context) {
	appID, ok := uuidParam(c, h.logger, "id")
	if !ok {
		return
	}
	deptID, ok := uintParam(c, h.logger, "dept_id")
	if !ok {
		return
	}
	comments, err := h.comments.ByApplicationDepartment(c.Request.Context(), appID, deptID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

func (h *CommentHandler) Latest(c *gin.Context) {
	appID, ok := uuidParam(c, h.logger, "id")
	if !ok {
		return
	}
	comments, err := h.comments.LatestPerDepartment(c.Request.Context(), appID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}
