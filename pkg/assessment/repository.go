package assessment

import (
	"context"

	"github.com/google/uuid"

	"github.com/isassess/isassess/pkg/model"
)

// Repository is the storage the assessment workflows run against. Lookups of
// missing rows return apperr NotFound errors.
type Repository interface {
	// Transaction runs fn against a repository bound to one transaction. The
	// transaction is rolled back when fn returns an error.
	Transaction(ctx context.Context, fn func(repo Repository) error) error

	GetApplication(ctx context.Context, id uuid.UUID) (*model.Application, error)
	CreateApplication(ctx context.Context, app *model.Application) error
	UpdateApplicationStatus(ctx context.Context, id uuid.UUID, status model.AppStatus, completed bool) error
	UpdatePriority(ctx context.Context, id uuid.UUID, priority model.Priority) error

	LatestActiveQuestionSetID(ctx context.Context) (*uint, error)
	GetQuestionSet(ctx context.Context, id uint) (*model.QuestionSet, error)
	GetQuestion(ctx context.Context, id uint) (*model.Question, error)
	UpsertAnswer(ctx context.Context, answer *model.ApplicationAnswer) error
	ScoredQuestions(ctx context.Context, appID uuid.UUID, questionSetID uint) ([]ScoredQuestion, error)

	ActiveDepartmentIDs(ctx context.Context) ([]uint, error)
	ExistingDepartmentIDs(ctx context.Context, ids []uint) ([]uint, error)
	CreateAppDepartments(ctx context.Context, rows []model.ApplicationDepartment) error
	GetAppDepartment(ctx context.Context, appID uuid.UUID, deptID uint) (*model.ApplicationDepartment, error)
	UpdateAppDepartmentStatus(ctx context.Context, appID uuid.UUID, deptID uint, status model.DeptStatus) error
	AppDepartmentStatuses(ctx context.Context, appID uuid.UUID) ([]model.DeptStatus, error)

	GetDeptQuestion(ctx context.Context, id uint) (*model.DeptQuestion, error)
	IsDepartmentMember(ctx context.Context, deptID uint, userID uuid.UUID) (bool, error)
	UpsertDeptAnswer(ctx context.Context, answer *model.AppDeptAnswer) error
	DeptProgress(ctx context.Context, appID uuid.UUID, deptID uint) (Progress, error)

	EnqueueNotification(ctx context.Context, event *model.NotificationEvent) error
}

// Progress summarizes a department questionnaire for one application.
type Progress struct {
	Total             int64 `json:"total"`
	Answered          int64 `json:"answered"`
	MandatoryTotal    int64 `json:"mandatory_total"`
	MandatoryAnswered int64 `json:"mandatory_answered"`
}

func (p Progress) MandatoryComplete() bool {
	return p.MandatoryAnswered >= p.MandatoryTotal
}
