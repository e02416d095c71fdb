package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/isassess/isassess/pkg/apperr"
	"github.com/isassess/isassess/pkg/assessment"
	"github.com/isassess/isassess/pkg/auth"
	"github.com/isassess/isassess/pkg/model"
	"github.com/isassess/isassess/pkg/query"
	"github.com/isassess/isassess/pkg/store/postgres"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// withPrincipal stands in for the auth middleware.
func withPrincipal(p auth.Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("principal", p)
		c.Next()
	}
}

func serve(r *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	recorder := httptest.NewRecorder()
	r.ServeHTTP(recorder, req)
	return recorder
}

type fakeComments struct {
	byID    map[uuid.UUID]*model.Comment
	created []model.Comment
}

func (f *fakeComments) Create(ctx context.Context, comment *model.Comment) error {
	f.created = append(f.created, *comment)
	return nil
}

func (f *fakeComments) GetByID(ctx context.Context, id uuid.UUID) (*model.Comment, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, apperr.NotFound("comment not found")
	}
	return c, nil
}

func (f *fakeComments) UpdateContent(ctx context.Context, id uuid.UUID, content string) (*model.Comment, error) {
	c := f.byID[id]
	c.Content = content
	return c, nil
}

func (f *fakeComments) ByApplication(ctx context.Context, appID uuid.UUID) ([]model.Comment, error) {
	return nil, nil
}

func (f *fakeComments) ByApplicationDepartment(ctx context.Context, appID uuid.UUID, deptID uint) ([]model.Comment, error) {
	return nil, nil
}

func (f *fakeComments) LatestPerDepartment(ctx context.Context, appID uuid.UUID) ([]model.Comment, error) {
	return nil, nil
}

type fakeDepartments struct {
	members map[uint][]uuid.UUID
	mapped  map[uuid.UUID][]uint
}

func (f *fakeDepartments) Create(ctx context.Context, dept *model.Department) error { return nil }

func (f *fakeDepartments) List(ctx context.Context) ([]model.Department, error) { return nil, nil }

func (f *fakeDepartments) GetByID(ctx context.Context, id uint) (*model.Department, error) {
	return &model.Department{ID: id}, nil
}

func (f *fakeDepartments) ForApplication(ctx context.Context, appID uuid.UUID) ([]model.ApplicationDepartment, error) {
	return nil, nil
}

func (f *fakeDepartments) AddUsers(ctx context.Context, deptID uint, userIDs []uuid.UUID, role string) error {
	return nil
}

func (f *fakeDepartments) Members(ctx context.Context, deptID uint) ([]model.User, error) {
	return nil, nil
}

func (f *fakeDepartments) IsMember(ctx context.Context, deptID uint, userID uuid.UUID) (bool, error) {
	for _, id := range f.members[deptID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDepartments) IsMapped(ctx context.Context, appID uuid.UUID, deptID uint) (bool, error) {
	for _, id := range f.mapped[appID] {
		if id == deptID {
			return true, nil
		}
	}
	return false, nil
}

func TestCommentCreateRequiresMembership(t *testing.T) {
	appID := uuid.New()
	member := auth.Principal{UserID: uuid.New(), Role: model.RoleUser}
	outsider := auth.Principal{UserID: uuid.New(), Role: model.RoleAdmin}
	comments := &fakeComments{}
	departments := &fakeDepartments{
		members: map[uint][]uuid.UUID{4: {member.UserID}},
		mapped:  map[uuid.UUID][]uint{appID: {4}},
	}
	h := NewCommentHandler(comments, departments, zap.NewNop())
	body := `{"application_id":"` + appID.String() + `","department_id":4,"content":"looks fine"}`

	r := gin.New()
	r.POST("/comments", withPrincipal(outsider), h.Create)
	recorder := serve(r, http.MethodPost, "/comments", body)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Empty(t, comments.created)

	r = gin.New()
	r.POST("/comments", withPrincipal(member), h.Create)
	recorder = serve(r, http.MethodPost, "/comments", body)
	require.Equal(t, http.StatusCreated, recorder.Code)
	require.Len(t, comments.created, 1)
	assert.Equal(t, member.UserID, comments.created[0].AuthorID)
}

func TestCommentCreateUnmappedDepartment(t *testing.T) {
	p := auth.Principal{UserID: uuid.New(), Role: model.RoleUser}
	departments := &fakeDepartments{members: map[uint][]uuid.UUID{4: {p.UserID}}}
	h := NewCommentHandler(&fakeComments{}, departments, zap.NewNop())

	r := gin.New()
	r.POST("/comments", withPrincipal(p), h.Create)
	recorder := serve(r, http.MethodPost, "/comments", `{"application_id":"`+uuid.NewString()+`","department_id":4,"content":"x"}`)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestCommentUpdateAuthorOnly(t *testing.T) {
	author := auth.Principal{UserID: uuid.New(), Role: model.RoleUser}
	admin := auth.Principal{UserID: uuid.New(), Role: model.RoleAdmin}
	commentID := uuid.New()
	comments := &fakeComments{byID: map[uuid.UUID]*model.Comment{
		commentID: {ID: commentID, AuthorID: author.UserID, Content: "draft"},
	}}
	h := NewCommentHandler(comments, &fakeDepartments{}, zap.NewNop())

	r := gin.New()
	r.PATCH("/comments/:comment_id", withPrincipal(admin), h.Update)
	recorder := serve(r, http.MethodPatch, "/comments/"+commentID.String(), `{"content":"edited"}`)
	assert.Equal(t, http.StatusForbidden, recorder.Code)
	assert.Equal(t, "draft", comments.byID[commentID].Content)

	r = gin.New()
	r.PATCH("/comments/:comment_id", withPrincipal(author), h.Update)
	recorder = serve(r, http.MethodPatch, "/comments/"+commentID.String(), `{"content":"edited"}`)
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "edited", comments.byID[commentID].Content)
}

type fakeApps struct {
	result     *query.Result[model.Application]
	lastFilter query.Filter
	latest     map[uuid.UUID]model.Comment
}

func (f *fakeApps) GetByID(ctx context.Context, id uuid.UUID) (*model.Application, error) {
	return nil, apperr.NotFound("application not found")
}

func (f *fakeApps) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (*model.Application, error) {
	return nil, nil
}

func (f *fakeApps) Deactivate(ctx context.Context, id uuid.UUID) error { return nil }

func (f *fakeApps) List(ctx context.Context, filter query.Filter) (*query.Result[model.Application], error) {
	f.lastFilter = filter
	return f.result, nil
}

func (f *fakeApps) LatestComments(ctx context.Context, appIDs []uuid.UUID, deptID uint) (map[uuid.UUID]model.Comment, error) {
	return f.latest, nil
}

type listResponse struct {
	Items []struct {
		ID            string         `json:"id"`
		LatestComment *model.Comment `json:"latest_comment"`
	} `json:"items"`
	TotalCount      int64               `json:"total_count"`
	FilteredCount   int64               `json:"filtered_count"`
	AppsSummary     query.StatusSummary `json:"apps_summary"`
	FilteredSummary query.StatusSummary `json:"filtered_summary"`
	Page            int                 `json:"page"`
	PageSize        int                 `json:"page_size"`
}

func TestApplicationListAttachesLatestComments(t *testing.T) {
	first, second := uuid.New(), uuid.New()
	apps := &fakeApps{
		result: &query.Result[model.Application]{
			Items:           []model.Application{{ID: first, Name: "a"}, {ID: second, Name: "b"}},
			TotalCount:      40,
			FilteredCount:   2,
			AppsSummary:     query.StatusSummary{"completed": 40},
			FilteredSummary: query.StatusSummary{"completed": 2},
		},
		latest: map[uuid.UUID]model.Comment{second: {Content: "waiting on vendor", CreatedAt: time.Now()}},
	}
	h := NewApplicationHandler(apps, nil, zap.NewNop())

	r := gin.New()
	r.GET("/applications", h.List)
	values := url.Values{"dept_filter_id": {"7"}, "dept_status": {"completed"}, "page": {"2"}, "page_size": {"10"}}
	recorder := serve(r, http.MethodGet, "/applications?"+values.Encode(), "")
	require.Equal(t, http.StatusOK, recorder.Code)

	var response listResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	require.Len(t, response.Items, 2)
	assert.Nil(t, response.Items[0].LatestComment)
	require.NotNil(t, response.Items[1].LatestComment)
	assert.Equal(t, "waiting on vendor", response.Items[1].LatestComment.Content)
	assert.Equal(t, int64(40), response.TotalCount)
	assert.Equal(t, int64(2), response.FilteredCount)
	assert.Equal(t, int64(2), response.FilteredSummary["completed"])
	assert.Equal(t, 2, response.Page)
	assert.Equal(t, 10, apps.lastFilter.PageSize)
	require.NotNil(t, apps.lastFilter.DepartmentID)
	assert.Equal(t, uint(7), *apps.lastFilter.DepartmentID)
}

func TestApplicationListOmitsFilteredSummaryWithoutFilters(t *testing.T) {
	apps := &fakeApps{result: &query.Result[model.Application]{AppsSummary: query.StatusSummary{}}}
	h := NewApplicationHandler(apps, nil, zap.NewNop())

	r := gin.New()
	r.GET("/applications", h.List)
	recorder := serve(r, http.MethodGet, "/applications?status=all&vertical=null", "")
	require.Equal(t, http.StatusOK, recorder.Code)

	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &raw))
	assert.NotContains(t, raw, "filtered_summary")
	assert.Contains(t, raw, "apps_summary")
}

type fakeUsers struct {
	user        *model.User
	touched     bool
	departments []uint
}

func (f *fakeUsers) Create(ctx context.Context, user *model.User) error { return nil }

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	if f.user == nil || !strings.EqualFold(email, f.user.Email) {
		return nil, apperr.NotFound("user not found")
	}
	return f.user, nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return f.user, nil
}

func (f *fakeUsers) List(ctx context.Context) ([]model.User, error) { return nil, nil }

func (f *fakeUsers) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	f.touched = true
	return nil
}

func (f *fakeUsers) UpdateProfile(ctx context.Context, id uuid.UUID, update postgres.UserProfileUpdate) (*model.User, error) {
	if f.user == nil || f.user.ID != id {
		return nil, apperr.NotFound("user not found")
	}
	if update.FullName != nil {
		f.user.FullName = *update.FullName
	}
	if update.Role != nil {
		f.user.Role = *update.Role
	}
	if update.Active != nil {
		f.user.Disabled = !*update.Active
	}
	if update.DepartmentIDs != nil {
		f.departments = *update.DepartmentIDs
	}
	return f.user, nil
}

func TestLogin(t *testing.T) {
	hash, err := auth.HashPassword("correct horse")
	require.NoError(t, err)
	users := &fakeUsers{user: &model.User{ID: uuid.New(), Email: "lead@example.com", PasswordHash: hash, Role: model.RoleManager}}
	tokens := auth.NewTokenManager([]byte("secret"), time.Hour, "isassess")
	h := NewAuthHandler(users, tokens, zap.NewNop())

	r := gin.New()
	r.POST("/login", h.Login)

	for _, body := range []string{
		`{"email":"lead@example.com","password":"wrong password"}`,
		`{"email":"nobody@example.com","password":"correct horse"}`,
	} {
		recorder := serve(r, http.MethodPost, "/login", body)
		assert.Equal(t, http.StatusUnauthorized, recorder.Code)
		assert.Contains(t, recorder.Body.String(), "invalid email or password")
	}
	assert.False(t, users.touched)

	recorder := serve(r, http.MethodPost, "/login", `{"email":"lead@example.com","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.True(t, users.touched)

	var response tokenResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	claims, err := tokens.Validate(response.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, model.RoleManager, claims.Role)
	assert.NotContains(t, recorder.Body.String(), hash)
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	r := gin.New()
	r.GET("/boom", func(c *gin.Context) {
		respondError(c, zap.NewNop(), apperr.Internal(assert.AnError, "query failed"))
	})
	recorder := serve(r, http.MethodGet, "/boom", "")

	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.NotContains(t, recorder.Body.String(), assert.AnError.Error())
	assert.Contains(t, recorder.Body.String(), "internal server error")
}

// rollupRepo keeps just enough state for department status changes. Methods
// the status flow never calls fall through to the nil embedded interface.
type rollupRepo struct {
	assessment.Repository
	app   model.Application
	depts map[uint]model.DeptStatus
}

func (r *rollupRepo) Transaction(ctx context.Context, fn func(repo assessment.Repository) error) error {
	return fn(r)
}

func (r *rollupRepo) GetApplication(ctx context.Context, id uuid.UUID) (*model.Application, error) {
	if id != r.app.ID {
		return nil, apperr.NotFound("application not found")
	}
	app := r.app
	return &app, nil
}

func (r *rollupRepo) GetAppDepartment(ctx context.Context, appID uuid.UUID, deptID uint) (*model.ApplicationDepartment, error) {
	status, ok := r.depts[deptID]
	if !ok {
		return nil, apperr.NotFound("department not mapped")
	}
	return &model.ApplicationDepartment{ApplicationID: appID, DepartmentID: deptID, Status: status}, nil
}

func (r *rollupRepo) UpdateAppDepartmentStatus(ctx context.Context, appID uuid.UUID, deptID uint, status model.DeptStatus) error {
	r.depts[deptID] = status
	return nil
}

func (r *rollupRepo) AppDepartmentStatuses(ctx context.Context, appID uuid.UUID) ([]model.DeptStatus, error) {
	statuses := make([]model.DeptStatus, 0, len(r.depts))
	for _, status := range r.depts {
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (r *rollupRepo) UpdateApplicationStatus(ctx context.Context, id uuid.UUID, status model.AppStatus, completed bool) error {
	r.app.Status = status
	r.app.IsCompleted = completed
	return nil
}

func TestDepartmentStatusChangeByNonMember(t *testing.T) {
	repo := &rollupRepo{
		app:   model.Application{ID: uuid.New(), Name: "crm", Status: model.AppInProgress},
		depts: map[uint]model.DeptStatus{1: model.DeptPending, 2: model.DeptCompleted},
	}
	service := assessment.NewService(repo, assessment.NewEvaluator(true), nil, zap.NewNop())
	admin := auth.Principal{UserID: uuid.New(), Role: model.RoleAdmin}
	h := NewDepartmentHandler(&fakeDepartments{}, &fakeComments{}, service, zap.NewNop())

	r := gin.New()
	r.PUT("/applications/:id/departments/:dept_id/status", withPrincipal(admin), h.ChangeStatus)
	recorder := serve(r, http.MethodPut, "/applications/"+repo.app.ID.String()+"/departments/1/status", `{"status":"Completed"}`)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	var response struct {
		Status      string `json:"status"`
		Application struct {
			Status      string `json:"status"`
			IsCompleted bool   `json:"is_completed"`
			Changed     bool   `json:"changed"`
		} `json:"application"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.Equal(t, "completed", response.Status)
	assert.Equal(t, "completed", response.Application.Status)
	assert.True(t, response.Application.IsCompleted)
	assert.True(t, response.Application.Changed)
	assert.Equal(t, model.AppCompleted, repo.app.Status)
}

func TestUpdateUserRoleSeenByRefresh(t *testing.T) {
	target := &model.User{ID: uuid.New(), Email: "analyst@example.com", Role: model.RoleUser}
	users := &fakeUsers{user: target}
	tokens := auth.NewTokenManager([]byte("secret"), time.Hour, "isassess")
	h := NewAuthHandler(users, tokens, zap.NewNop())
	admin := auth.Principal{UserID: uuid.New(), Role: model.RoleAdmin}
	self := auth.Principal{UserID: target.ID, Email: target.Email, Role: model.RoleUser}

	r := gin.New()
	r.PATCH("/users/:id", withPrincipal(admin), h.UpdateUser)
	r.POST("/refresh", withPrincipal(self), h.Refresh)

	recorder := serve(r, http.MethodPatch, "/users/"+target.ID.String(), `{"role":"archivist"}`)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	recorder = serve(r, http.MethodPatch, "/users/"+target.ID.String(), `{}`)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = serve(r, http.MethodPatch, "/users/"+target.ID.String(),
		`{"role":"Manager","full_name":"Asha Rao","department_ids":[3,5]}`)
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())
	assert.Equal(t, model.RoleManager, target.Role)
	assert.Equal(t, []uint{3, 5}, users.departments)

	recorder = serve(r, http.MethodPost, "/refresh", "")
	require.Equal(t, http.StatusOK, recorder.Code)
	var response tokenResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	claims, err := tokens.Validate(response.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, model.RoleManager, claims.Role)

	recorder = serve(r, http.MethodPatch, "/users/"+target.ID.String(), `{"is_active":false}`)
	require.Equal(t, http.StatusOK, recorder.Code)
	recorder = serve(r, http.MethodPost, "/refresh", "")
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}

func TestApplicationUpdateRejectsPathLikeName(t *testing.T) {
	h := NewApplicationHandler(&fakeApps{}, nil, zap.NewNop())

	r := gin.New()
	r.PATCH("/applications/:id", h.Update)
	for _, name := range []string{"crm/v2", "..", "a\\b"} {
		body, err := json.Marshal(map[string]string{"name": name})
		require.NoError(t, err)
		recorder := serve(r, http.MethodPatch, "/applications/"+uuid.NewString(), string(body))
		assert.Equal(t, http.StatusBadRequest, recorder.Code, name)
	}
}
