package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isassess/isassess/pkg/apperr"
	"github.com/isassess/isassess/pkg/model"
)

func testUser(role model.Role) *model.User {
	return &model.User{ID: uuid.New(), Email: "reviewer@example.com", Role: role}
}

func TestTokenRoundTrip(t *testing.T) {
	m := NewTokenManager([]byte("secret"), time.Hour, "isassess")
	user := testUser(model.RoleManager)

	token, expiresAt, err := m.Generate(user)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	claims, err := m.Validate(token)
	require.NoError(t, err)
	p := claims.Principal()
	assert.Equal(t, user.ID, p.UserID)
	assert.Equal(t, model.RoleManager, p.Role)
	assert.Equal(t, user.Email, p.Email)
}

func TestTokenRejections(t *testing.T) {
	m := NewTokenManager([]byte("secret"), time.Hour, "isassess")
	token, _, err := m.Generate(testUser(model.RoleUser))
	require.NoError(t, err)

	t.Run("wrong key", func(t *testing.T) {
		other := NewTokenManager([]byte("other"), time.Hour, "isassess")
		_, err := other.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewTokenManager([]byte("secret"), time.Hour, "someone-else")
		_, err := other.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		later := NewTokenManager([]byte("secret"), time.Hour, "isassess")
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := m.Validate("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString(), Issuer: "isassess"},
			Role:             model.RoleAdmin,
		})
		raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = m.Validate(raw)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "wrong horse"))

	_, err = HashPassword("short")
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestAuthorizeRoles(t *testing.T) {
	tests := []struct {
		role    model.Role
		action  Action
		allowed bool
	}{
		{model.RoleUser, ActionView, true},
		{model.RoleUser, ActionCreateApplication, false},
		{model.RoleModerator, ActionChangeDeptStatus, true},
		{model.RoleManager, ActionCreateApplication, true},
		{model.RoleManager, ActionUploadEvidence, true},
		{model.RoleManager, ActionChangeAppStatus, false},
		{model.RoleModerator, ActionMapDepartments, false},
		{model.RoleAdmin, ActionChangeAppStatus, true},
		{model.RoleAdmin, ActionManageUsers, true},
		{model.Role("guest"), ActionView, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.action), func(t *testing.T) {
			err := Authorize(Principal{UserID: uuid.New(), Role: tt.role}, tt.action, nil)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.True(t, apperr.Is(err, apperr.KindForbidden))
			}
		})
	}
}

func TestAuthorizeCommentEdit(t *testing.T) {
	author := Principal{UserID: uuid.New(), Role: model.RoleUser}
	admin := Principal{UserID: uuid.New(), Role: model.RoleAdmin}
	res := &Resource{AuthorID: author.UserID}

	assert.NoError(t, Authorize(author, ActionEditComment, res))
	assert.True(t, apperr.Is(Authorize(admin, ActionEditComment, res), apperr.KindForbidden))
	assert.True(t, apperr.Is(Authorize(author, ActionEditComment, nil), apperr.KindForbidden))
}
