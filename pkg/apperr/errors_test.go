package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestFromDB(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind Kind
	}{
		{"record not found", gorm.ErrRecordNotFound, KindNotFound},
		{"wrapped not found", fmt.Errorf("lookup: %w", gorm.ErrRecordNotFound), KindNotFound},
		{"duplicate key", gorm.ErrDuplicatedKey, KindConflict},
		{"foreign key", gorm.ErrForeignKeyViolated, KindValidation},
		{"wrapped foreign key", fmt.Errorf("insert members: %w", gorm.ErrForeignKeyViolated), KindValidation},
		{"unknown", errors.New("connection reset"), KindInternal},
		{"already classified", Forbidden("not a member"), KindForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(FromDB(tt.err, "application")))
		})
	}

	assert.NoError(t, FromDB(nil, "application"))
}

func TestFromDBMessage(t *testing.T) {
	err := FromDB(gorm.ErrRecordNotFound, "question")
	var appErr *Error
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, "question not found", appErr.Message)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	err = FromDB(gorm.ErrForeignKeyViolated, "department member")
	assert.True(t, errors.As(err, &appErr))
	assert.Equal(t, "department member references a record that does not exist", appErr.Message)
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(KindOf(err)))
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
	assert.True(t, Is(fmt.Errorf("ctx: %w", NotFound("x")), KindNotFound))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(KindNotFound))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(KindValidation))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(KindForbidden))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(KindUnauthorized))
	assert.Equal(t, http.StatusConflict, HTTPStatus(KindConflict))
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(KindRateLimited))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(KindInternal))
}
