package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isassess/isassess/pkg/apperr"
	"github.com/isassess/isassess/pkg/auth"
	"github.com/isassess/isassess/pkg/model"
	"github.com/isassess/isassess/pkg/store/postgres"
)

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	UpdateProfile(ctx context.Context, id uuid.UUID, update postgres.UserProfileUpdate) (*model.User, error)
}

type AuthHandler struct {
	users  UserStore
	tokens *auth.TokenManager
	logger *zap.Logger
}

func NewAuthHandler(users UserStore, tokens *auth.TokenManager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type createUserRequest struct {
	Email    string `json:"email" binding:"required"`
	FullName string `json:"full_name"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

type userUpdateRequest struct {
	FullName      *string `json:"full_name"`
	Role          *string `json:"role"`
	IsActive      *bool   `json:"is_active"`
	DepartmentIDs *[]uint `json:"department_ids"`
}

type tokenResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresAt   string      `json:"expires_at"`
	User        *model.User `json:"user"`
}

func (h *AuthHandler) issue(c *gin.Context, user *model.User) {
	token, expiresAt, err := h.tokens.Generate(user)
	if err != nil {
		respondError(c, h.logger, apperr.Internal(err, "failed to issue token"))
		return
	}
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt.UTC().Format(time.RFC3339),
		User:        user,
	})
}

// Login answers every credential failure the same way so the response does
// not reveal which emails exist.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	ctx := c.Request.Context()
	user, err := h.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			respondError(c, h.logger, apperr.Unauthorized("invalid email or password"))
			return
		}
		respondError(c, h.logger, err)
		return
	}
	if user.Disabled || !auth.CheckPassword(user.PasswordHash, req.Password) {
		respondError(c, h.logger, apperr.Unauthorized("invalid email or password"))
		return
	}

	now := time.Now()
	if err := h.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		h.logger.Warn("failed to record last login", zap.String("user_id", user.ID.String()), zap.Error(err))
	} else {
		user.LastLogin = &now
	}

	h.logger.Info("user logged in", zap.String("user_id", user.ID.String()))
	h.issue(c, user)
}

func (h *AuthHandler) Me(c *gin.Context) {
	p, ok := principal(c, h.logger)
	if !ok {
		return
	}
	user, err := h.users.GetByID(c.Request.Context(), p.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Refresh issues a fresh token for a caller whose token is still valid. The
// role is re-read so a demoted user does not keep old privileges.
func (h *AuthHandler) Refresh(c *gin.Context) {
	p, ok := principal(c, h.logger)
	if !ok {
		return
	}
	user, err := h.users.GetByID(c.Request.Context(), p.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if user.Disabled {
		respondError(c, h.logger, apperr.Unauthorized("account disabled"))
		return
	}
	h.issue(c, user)
}

func (h *AuthHandler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	role := model.RoleUser
	if strings.TrimSpace(req.Role) != "" {
		role = model.Role(strings.ToLower(strings.TrimSpace(req.Role)))
		if !role.Valid() {
			respondError(c, h.logger, apperr.Validation("invalid role %q", req.Role))
			return
		}
	}
	email := strings.TrimSpace(req.Email)
	if !strings.Contains(email, "@") {
		respondError(c, h.logger, apperr.Validation("invalid email"))
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrWeakPassword) {
			respondError(c, h.logger, apperr.Validation("%s", err.Error()))
			return
		}
		respondError(c, h.logger, apperr.Internal(err, "failed to hash password"))
		return
	}

	user := &model.User{
		ID:           uuid.New(),
		FullName:     strings.TrimSpace(req.FullName),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := h.users.Create(c.Request.Context(), user); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) ListUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// UpdateUser changes role, name, active flag and department memberships. A
// role change takes effect on the user's next refresh or login.
func (h *AuthHandler) UpdateUser(c *gin.Context) {
	id, ok := uuidParam(c, h.logger, "id")
	if !ok {
		return
	}
	var req userUpdateRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	if req.FullName == nil && req.Role == nil && req.IsActive == nil && req.DepartmentIDs == nil {
		respondError(c, h.logger, apperr.Validation("nothing to update"))
		return
	}

	update := postgres.UserProfileUpdate{
		FullName:      req.FullName,
		Active:        req.IsActive,
		DepartmentIDs: req.DepartmentIDs,
	}
	if req.Role != nil {
		role := model.Role(strings.ToLower(strings.TrimSpace(*req.Role)))
		if !role.Valid() {
			respondError(c, h.logger, apperr.Validation("invalid role %q", *req.Role))
			return
		}
		update.Role = &role
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), id, update)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	h.logger.Info("user profile updated", zap.String("user_id", id.String()))
	c.JSON(http.StatusOK, user)
}
