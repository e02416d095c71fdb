package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isassess/isassess/pkg/apperr"
	"github.com/isassess/isassess/pkg/assessment"
	"github.com/isassess/isassess/pkg/model"
	"github.com/isassess/isassess/pkg/query"
)

type ApplicationStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Application, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (*model.Application, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f query.Filter) (*query.Result[model.Application], error)
	LatestComments(ctx context.Context, appIDs []uuid.UUID, deptID uint) (map[uuid.UUID]model.Comment, error)
}

type ApplicationHandler struct {
	apps    ApplicationStore
	service *assessment.Service
	logger  *zap.Logger
}

func NewApplicationHandler(apps ApplicationStore, service *assessment.Service, logger *zap.Logger) *ApplicationHandler {
	return &ApplicationHandler{apps: apps, service: service, logger: logger}
}

type applicationRequest struct {
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Environment    string     `json:"environment"`
	Region         string     `json:"region"`
	OwnerName      string     `json:"owner_name"`
	VendorCompany  string     `json:"vendor_company"`
	InfraHost      string     `json:"infra_host"`
	AppTech        string     `json:"app_tech"`
	Vertical       string     `json:"vertical"`
	AppURL         string     `json:"app_url"`
	UserType       string     `json:"user_type"`
	DataType       string     `json:"data_type"`
	AppType        string     `json:"app_type"`
	IsAppAI        bool       `json:"is_app_ai"`
	TicketID       string     `json:"ticket_id"`
	ImitraTicketID string     `json:"imitra_ticket_id"`
	TitanSPOC      string     `json:"titan_spoc"`
	Status         string     `json:"status"`
	AppPriority    *int       `json:"app_priority"`
	OwnerID        *string    `json:"owner_id"`
	StartedAt      *time.Time `json:"started_at"`
	DueDate        *time.Time `json:"due_date"`
}

// applicationUpdateRequest leaves fields the caller did not send untouched.
type applicationUpdateRequest struct {
	Name           *string    `json:"name"`
	Description    *string    `json:"description"`
	Environment    *string    `json:"environment"`
	Region         *string    `json:"region"`
	OwnerName      *string    `json:"owner_name"`
	VendorCompany  *string    `json:"vendor_company"`
	InfraHost      *string    `json:"infra_host"`
	AppTech        *string    `json:"app_tech"`
	Vertical       *string    `json:"vertical"`
	AppURL         *string    `json:"app_url"`
	UserType       *string    `json:"user_type"`
	DataType       *string    `json:"data_type"`
	AppType        *string    `json:"app_type"`
	IsAppAI        *bool      `json:"is_app_ai"`
	TicketID       *string    `json:"ticket_id"`
	ImitraTicketID *string    `json:"imitra_ticket_id"`
	TitanSPOC      *string    `json:"titan_spoc"`
	StartedAt      *time.Time `json:"started_at"`
	DueDate        *time.Time `json:"due_date"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

type departmentIDsRequest struct {
	DepartmentIDs []uint `json:"department_ids" binding:"required"`
}

type appDepartmentResponse struct {
	DepartmentID   uint   `json:"department_id"`
	DepartmentName string `json:"department_name,omitempty"`
	Status         string `json:"status"`
	AppCategory    string `json:"app_category,omitempty"`
	CategoryStatus string `json:"category_status,omitempty"`
	UpdatedAt      string `json:"updated_at"`
}

type applicationResponse struct {
	ID             string                  `json:"id"`
	Name           string                  `json:"name"`
	Description    string                  `json:"description"`
	Environment    string                  `json:"environment"`
	Region         string                  `json:"region"`
	OwnerName      string                  `json:"owner_name"`
	VendorCompany  string                  `json:"vendor_company"`
	InfraHost      string                  `json:"infra_host"`
	AppTech        string                  `json:"app_tech"`
	Vertical       string                  `json:"vertical"`
	AppURL         string                  `json:"app_url"`
	UserType       string                  `json:"user_type"`
	DataType       string                  `json:"data_type"`
	AppType        string                  `json:"app_type"`
	IsAppAI        bool                    `json:"is_app_ai"`
	TicketID       string                  `json:"ticket_id"`
	ImitraTicketID string                  `json:"imitra_ticket_id"`
	TitanSPOC      string                  `json:"titan_spoc"`
	Status         string                  `json:"status"`
	AppPriority    int                     `json:"app_priority"`
	IsActive       bool                    `json:"is_active"`
	IsCompleted    bool                    `json:"is_completed"`
	StartedAt      *string                 `json:"started_at,omitempty"`
	CompletedAt    *string                 `json:"completed_at,omitempty"`
	DueDate        *string                 `json:"due_date,omitempty"`
	CreatedAt      string                  `json:"created_at"`
	UpdatedAt      string                  `json:"updated_at"`
	Departments    []appDepartmentResponse `json:"departments"`
	LatestComment  *model.Comment          `json:"latest_comment,omitempty"`
}

func mapAppDepartment(row model.ApplicationDepartment) appDepartmentResponse {
	resp := appDepartmentResponse{
		DepartmentID:   row.DepartmentID,
		Status:         string(row.Status),
		AppCategory:    row.AppCategory,
		CategoryStatus: row.CategoryStatus,
		UpdatedAt:      row.UpdatedAt.UTC().Format(timeRFC3339Nano),
	}
	if row.Department != nil {
		resp.DepartmentName = row.Department.Name
	}
	return resp
}

func mapApplication(app *model.Application) applicationResponse {
	departments := make([]appDepartmentResponse, 0, len(app.Departments))
	for _, row := range app.Departments {
		departments = append(departments, mapAppDepartment(row))
	}
	return applicationResponse{
		ID:             app.ID.String(),
		Name:           app.Name,
		Description:    app.Description,
		Environment:    app.Environment,
		Region:         app.Region,
		OwnerName:      app.OwnerName,
		VendorCompany:  app.VendorCompany,
		InfraHost:      app.InfraHost,
		AppTech:        app.AppTech,
		Vertical:       app.Vertical,
		AppURL:         app.AppURL,
		UserType:       app.UserType,
		DataType:       app.DataType,
		AppType:        app.AppType,
		IsAppAI:        app.IsAppAI,
		TicketID:       app.TicketID,
		ImitraTicketID: app.ImitraTicketID,
		TitanSPOC:      app.TitanSPOC,
		Status:         string(app.Status),
		AppPriority:    int(app.AppPriority),
		IsActive:       app.IsActive,
		IsCompleted:    app.IsCompleted,
		StartedAt:      formatTime(app.StartedAt),
		CompletedAt:    formatTime(app.CompletedAt),
		DueDate:        formatTime(app.DueDate),
		CreatedAt:      app.CreatedAt.UTC().Format(timeRFC3339Nano),
		UpdatedAt:      app.UpdatedAt.UTC().Format(timeRFC3339Nano),
		Departments:    departments,
	}
}

func (h *ApplicationHandler) Create(c *gin.Context) {
	p, ok := principal(c, h.logger)
	if !ok {
		return
	}
	var req applicationRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	var ownerID *uuid.UUID
	if req.OwnerID != nil && strings.TrimSpace(*req.OwnerID) != "" {
		id, err := uuid.Parse(strings.TrimSpace(*req.OwnerID))
		if err != nil {
			respondError(c, h.logger, apperr.Validation("invalid owner_id"))
			return
		}
		ownerID = &id
	}

	app, err := h.service.CreateApplication(c.Request.Context(), assessment.NewApplication{
		Name:           req.Name,
		Description:    req.Description,
		Environment:    req.Environment,
		Region:         req.Region,
		OwnerName:      req.OwnerName,
		VendorCompany:  req.VendorCompany,
		InfraHost:      req.InfraHost,
		AppTech:        req.AppTech,
		Vertical:       req.Vertical,
		AppURL:         req.AppURL,
		UserType:       req.UserType,
		DataType:       req.DataType,
		AppType:        req.AppType,
		IsAppAI:        req.IsAppAI,
		TicketID:       req.TicketID,
		ImitraTicketID: req.ImitraTicketID,
		TitanSPOC:      req.TitanSPOC,
		Status:         req.Status,
		AppPriority:    req.AppPriority,
		OwnerID:        ownerID,
		StartedAt:      req.StartedAt,
		DueDate:        req.DueDate,
	}, p.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	app, err = h.apps.GetByID(c.Request.Context(), app.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, mapApplication(app))
}

func (h *ApplicationHandler) List(c *gin.Context) {
	filter, err := query.ParseListParams(c.Request.URL.Query())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	ctx := c.Request.Context()
	result, err := h.apps.List(ctx, filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	items := make([]applicationResponse, 0, len(result.Items))
	for i := range result.Items {
		items = append(items, mapApplication(&result.Items[i]))
	}

	if filter.DepartmentID != nil && len(result.Items) > 0 {
		ids := make([]uuid.UUID, 0, len(result.Items))
		for _, app := range result.Items {
			ids = append(ids, app.ID)
		}
		latest, err := h.apps.LatestComments(ctx, ids, *filter.DepartmentID)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		for i := range items {
			if comment, ok := latest[result.Items[i].ID]; ok {
				comment := comment
				items[i].LatestComment = &comment
			}
		}
	}

	response := gin.H{
		"items":          items,
		"total_count":    result.TotalCount,
		"filtered_count": result.FilteredCount,
		"apps_summary":   result.AppsSummary,
		"page":           filter.Page,
		"page_size":      filter.PageSize,
	}
	if result.FilteredSummary != nil {
		response["filtered_summary"] = result.FilteredSummary
	}
	c.JSON(http.StatusOK, response)
}

func (h *ApplicationHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, h.logger, "id")
	if !ok {
		return
	}
	app, err := h.apps.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, mapApplication(app))
}

func (req applicationUpdateRequest) updates() map[string]interface{} {
	updates := map[string]interface{}{}
	set := func(column string, v *string) {
		if v != nil {
			updates[column] = strings.TrimSpace(*v)
		}
	}
	set("name", req.Name)
	set("description", req.Description)
	set("environment", req.Environment)
	set("region", req.Region)
	set("owner_name", req.OwnerName)
	set("vendor_company", req.VendorCompany)
	set("infra_host", req.InfraHost)
	set("app_tech", req.AppTech)
	set("vertical", req.Vertical)
	set("app_url", req.AppURL)
	set("user_type", req.UserType)
	set("data_type", req.DataType)
	set("app_type", req.AppType)
	set("ticket_id", req.TicketID)
	set("imitra_ticket_id", req.ImitraTicketID)
	set("titan_spoc", req.TitanSPOC)
	if req.IsAppAI != nil {
		updates["is_app_ai"] = *req.IsAppAI
	}
	if req.StartedAt != nil {
		updates["started_at"] = *req.StartedAt
	}
	if req.DueDate != nil {
		updates["due_date"] = *req.DueDate
	}
	return updates
}

func (h *ApplicationHandler) Update(c *gin.Context) {
	id, ok := uuidParam(c, h.logger, "id")
	if !ok {
		return
	}
	var req applicationUpdateRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	updates := req.updates()
	if name, ok := updates["name"]; ok {
		if name == "" {
			respondError(c, h.logger, apperr.Validation("name must not be empty"))
			return
		}
		if err := model.ValidateAppName(name.(string)); err != nil {
			respondError(c, h.logger, apperr.Validation("%s", err.Error()))
			return
		}
	}

	app, err := h.apps.Update(c.Request.Context(), id, updates)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, mapApplication(app))
}

func (h *ApplicationHandler) Deactivate(c *gin.Context) {
	id, ok := uuidParam(c, h.logger, "id")
	if !ok {
		return
	}
	if err := h.apps.Deactivate(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deactivated"})
}

func (h *ApplicationHandler) UpdateStatus(c *gin.Context) {
	id, ok := uuidParam(c, h.logger, "id")
	if !ok {
		return
	}
	var req statusRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	app, err := h.service.ChangeAppStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":           app.ID.String(),
		"status":       app.Status,
		"is_completed": app.IsCompleted,
	})
}

func (h *ApplicationHandler) AddDepartments(c *gin.Context) {
	id, ok := uuidParam(c, h.logger, "id")
	if !ok {
		return
	}
	var req departmentIDsRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	added, err := h.service.AddDepartments(c.Request.Context(), id, req.DepartmentIDs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if added == nil {
		added = []uint{}
	}
	c.JSON(http.StatusOK, gin.H{"added": added})
}

// ComputePriority evaluates the current answers without storing the result.
func (h *ApplicationHandler) ComputePriority(c *gin.Context) {
	id, ok := uuidParam(c, h.logger, "id")
	if !ok {
		return
	}
	priority, err := h.service.ComputePriority(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"application_id": id.String(), "app_priority": int(priority), "tier": priority.String()})
}
