package handlers

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/isassess/isassess/pkg/apiserver/middleware"
	"github.com/isassess/isassess/pkg/apperr"
	"github.com/isassess/isassess/pkg/auth"
)

const timeRFC3339Nano = time.RFC3339Nano

// respondError writes an apperr as {"error", "kind"}. Internal errors are
// logged and their detail is withheld from the client.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	message := err.Error()
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	if kind == apperr.KindInternal {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err),
		)
		message = "internal server error"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(apperr.HTTPStatus(kind), gin.H{"error": message, "kind": kind})
}

func bindJSON(c *gin.Context, logger *zap.Logger, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		respondError(c, logger, apperr.Validation("invalid request: %v", err))
		return false
	}
	return true
}

func principal(c *gin.Context, logger *zap.Logger) (auth.Principal, bool) {
	p, ok := middleware.PrincipalFrom(c)
	if !ok {
		respondError(c, logger, apperr.Unauthorized("missing authorization"))
	}
	return p, ok
}

func uuidParam(c *gin.Context, logger *zap.Logger, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil {
		respondError(c, logger, apperr.Validation("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

func uintParam(c *gin.Context, logger *zap.Logger, name string) (uint, bool) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || id == 0 {
		respondError(c, logger, apperr.Validation("invalid %s", name))
		return 0, false
	}
	return uint(id), true
}

func optionalUint(value string) (*uint, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(value, 10, 64)
	if err != nil || id == 0 {
		return nil, apperr.Validation("invalid id %q", value)
	}
	out := uint(id)
	return &out, nil
}

func formatTime(value *time.Time) *string {
	if value == nil {
		return nil
	}
	formatted := value.UTC().Format(timeRFC3339Nano)
	return &formatted
}
