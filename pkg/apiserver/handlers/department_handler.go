package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isassess/isassess/pkg/apperr"
	"github.com/isassess/isassess/pkg/assessment"
	"github.com/isassess/isassess/pkg/model"
)

type DepartmentStore interface {
	Create(ctx context.Context, dept *model.Department) error
	List(ctx context.Context) ([]model.Department, error)
	GetByID(ctx context.Context, id uint) (*model.Department, error)
	ForApplication(ctx context.Context, appID uuid.UUID) ([]model.ApplicationDepartment, error)
	AddUsers(ctx context.Context, deptID uint, userIDs []uuid.UUID, role string) error
	Members(ctx context.Context, deptID uint) ([]model.User, error)
	IsMember(ctx context.Context, deptID uint, userID uuid.UUID) (bool, error)
	IsMapped(ctx context.Context, appID uuid.UUID, deptID uint) (bool, error)
}

type DepartmentHandler struct {
	departments DepartmentStore
	comments    CommentStore
	service     *assessment.Service
	logger      *zap.Logger
}

func NewDepartmentHandler(departments DepartmentStore, comments CommentStore, service *assessment.Service, logger *zap.Logger) *DepartmentHandler {
	return &DepartmentHandler{departments: departments, comments: comments, service: service, logger: logger}
}

type departmentCreateRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type assignUsersRequest struct {
	UserIDs []string `json:"user_ids" binding:"required"`
	Role    string   `json:"role"`
}

// requireMembership rejects callers who do not belong to the department.
func requireMembership(c *gin.Context, logger *zap.Logger, departments DepartmentStore, deptID uint) bool {
	p, ok := principal(c, logger)
	if !ok {
		return false
	}
	member, err := departments.IsMember(c.Request.Context(), deptID, p.UserID)
	if err != nil {
		respondError(c, logger, err)
		return false
	}
	if !member {
		respondError(c, logger, apperr.Forbidden("not a member of department %d", deptID))
		return false
	}
	return true
}

func (h *DepartmentHandler) Create(c *gin.Context) {
	var req departmentCreateRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(c, h.logger, apperr.Validation("name is required"))
		return
	}

	dept := &model.Department{Name: name, Description: strings.TrimSpace(req.Description), IsActive: true}
	if err := h.departments.Create(c.Request.Context(), dept); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, dept)
}

func (h *DepartmentHandler) List(c *gin.Context) {
	departments, err := h.departments.List(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"departments": departments})
}

func (h *DepartmentHandler) AssignUsers(c *gin.Context) {
	deptID, ok := uintParam(c, h.logger, "dept_id")
	if !ok {
		return
	}
	var req assignUsersRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	userIDs := make([]uuid.UUID, 0, len(req.UserIDs))
	for _, raw := range req.UserIDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			respondError(c, h.logger, apperr.Validation("invalid user id %q", raw))
			return
		}
		userIDs = append(userIDs, id)
	}

	if err := h.departments.AddUsers(c.Request.Context(), deptID, userIDs, strings.TrimSpace(req.Role)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"department_id": deptID, "assigned": len(userIDs)})
}

func (h *DepartmentHandler) Members(c *gin.Context) {
	deptID, ok := uintParam(c, h.logger, "dept_id")
	if !ok {
		return
	}
	if _, err := h.departments.GetByID(c.Request.Context(), deptID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	users, err := h.departments.Members(c.Request.Context(), deptID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *DepartmentHandler) ForApplication(c *gin.Context) {
	appID, ok := uuidParam(c, h.logger, "id")
	if !ok {
		return
	}
	rows, err := h.departments.ForApplication(c.Request.Context(), appID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	response := make([]appDepartmentResponse, 0, len(rows))
	for _, row := range rows {
		response = append(response, mapAppDepartment(row))
	}
	c.JSON(http.StatusOK, gin.H{"departments": response})
}

// ChangeStatus moves one association row and rolls the result up to the
// application. The route's role guard is the only check; department
// membership is not required.
func (h *DepartmentHandler) ChangeStatus(c *gin.Context) {
	appID, ok := uuidParam(c, h.logger, "id")
	if !ok {
		return
	}
	deptID, ok := uintParam(c, h.logger, "dept_id")
	if !ok {
		return
	}
	var req statusRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	result, err := h.service.ChangeDepartmentStatus(c.Request.Context(), appID, deptID, req.Status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"application_id": result.ApplicationID.String(),
		"department_id":  result.DepartmentID,
		"status":         result.Status,
		"application": gin.H{
			"status":       result.Application.Status,
			"is_completed": result.Application.IsCompleted,
			"changed":      result.Application.Changed,
		},
	})
}

// Info returns one association row with the department's comments on the
// application.
func (h *DepartmentHandler) Info(c *gin.Context) {
	appID, ok := uuidParam(c, h.logger, "id")
	if !ok {
		return
	}
	deptID, ok := uintParam(c, h.logger, "dept_id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	rows, err := h.departments.ForApplication(ctx, appID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	var row *model.ApplicationDepartment
	for i := range rows {
		if rows[i].DepartmentID == deptID {
			row = &rows[i]
			break
		}
	}
	if row == nil {
		respondError(c, h.logger, apperr.NotFound("department %d is not mapped to application %s", deptID, appID))
		return
	}

	comments, err := h.comments.ByApplicationDepartment(ctx, appID, deptID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"department": mapAppDepartment(*row),
		"comments":   comments,
	})
}
