package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/isassess/isassess/pkg/apperr"
	"github.com/isassess/isassess/pkg/assessment"
	"github.com/isassess/isassess/pkg/model"
)

// AssessmentRepository backs the assessment workflows.
type AssessmentRepository struct {
	db *gorm.DB
}

var _ assessment.Repository = (*AssessmentRepository)(nil)

func NewAssessmentRepository(db *gorm.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

func (r *AssessmentRepository) Transaction(ctx context.Context, fn func(repo assessment.Repository) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&AssessmentRepository{db: tx})
	})
	return apperr.FromDB(err, "transaction")
}

func (r *AssessmentRepository) GetApplication(ctx context.Context, id uuid.UUID) (*model.Application, error) {
	var app model.Application
	if err := r.db.WithContext(ctx).First(&app, "id = ?", id).Error; err != nil {
		return nil, apperr.FromDB(err, "application")
	}
	return &app, nil
}

func (r *AssessmentRepository) CreateApplication(ctx context.Context, app *model.Application) error {
	return apperr.FromDB(r.db.WithContext(ctx).Omit(clause.Associations).Create(app).Error, "application")
}

func (r *AssessmentRepository) UpdateApplicationStatus(ctx context.Context, id uuid.UUID, status model.AppStatus, completed bool) error {
	now := time.Now()
	updates := map[string]interface{}{
		"status":       status,
		"is_completed": completed,
		"updated_at":   now,
	}
	if completed {
		updates["completed_at"] = now
	}

	result := r.db.WithContext(ctx).Model(&model.Application{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return apperr.FromDB(result.Error, "application")
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("application not found")
	}
	return nil
}

func (r *AssessmentRepository) UpdatePriority(ctx context.Context, id uuid.UUID, priority model.Priority) error {
	err := r.db.WithContext(ctx).Model(&model.Application{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"app_priority": priority, "updated_at": time.Now()}).Error
	return apperr.FromDB(err, "application")
}

func (r *AssessmentRepository) LatestActiveQuestionSetID(ctx context.Context) (*uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&model.QuestionSet{}).
		Where("is_active = ?", true).
		Order("created_at DESC, id DESC").
		Limit(1).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, apperr.FromDB(err, "question set")
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return &ids[0], nil
}

func (r *AssessmentRepository) GetQuestionSet(ctx context.Context, id uint) (*model.QuestionSet, error) {
	var set model.QuestionSet
	if err := r.db.WithContext(ctx).First(&set, id).Error; err != nil {
		return nil, apperr.FromDB(err, "question set")
	}
	return &set, nil
}

func (r *AssessmentRepository) GetQuestion(ctx context.Context, id uint) (*model.Question, error) {
	var question model.Question
	if err := r.db.WithContext(ctx).First(&question, id).Error; err != nil {
		return nil, apperr.FromDB(err, "question")
	}
	return &question, nil
}

func (r *AssessmentRepository) UpsertAnswer(ctx context.Context, answer *model.ApplicationAnswer) error {
	answer.UpdatedAt = time.Now()
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "application_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"answer_text", "author_id", "updated_at"}),
		}).
		Create(answer).Error
	return apperr.FromDB(err, "answer")
}

type scoredRow struct {
	QuestionID uint
	IsHigh     bool
	IsMedium   bool
	AnswerText *string
}

func (r *AssessmentRepository) ScoredQuestions(ctx context.Context, appID uuid.UUID, questionSetID uint) ([]assessment.ScoredQuestion, error) {
	var rows []scoredRow
	err := r.db.WithContext(ctx).
		Table("questions AS q").
		Select("q.id AS question_id, q.is_high, q.is_medium, a.answer_text").
		Joins("LEFT JOIN application_answers AS a ON a.question_id = q.id AND a.application_id = ?", appID).
		Where("q.question_set_id = ?", questionSetID).
		Order("q.sequence_number, q.id").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.FromDB(err, "questions")
	}

	questions := make([]assessment.ScoredQuestion, 0, len(rows))
	for _, row := range rows {
		questions = append(questions, assessment.ScoredQuestion{
			QuestionID: row.QuestionID,
			IsHigh:     row.IsHigh,
			IsMedium:   row.IsMedium,
			Answer:     row.AnswerText,
		})
	}
	return questions, nil
}

func (r *AssessmentRepository) ActiveDepartmentIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&model.Department{}).
		Where("is_active = ?", true).
		Order("id").
		Pluck("id", &ids).Error
	return ids, apperr.FromDB(err, "departments")
}

func (r *AssessmentRepository) ExistingDepartmentIDs(ctx context.Context, ids []uint) ([]uint, error) {
	var existing []uint
	err := r.db.WithContext(ctx).Model(&model.Department{}).
		Where("id IN ?", ids).
		Order("id").
		Pluck("id", &existing).Error
	return existing, apperr.FromDB(err, "departments")
}

func (r *AssessmentRepository) CreateAppDepartments(ctx context.Context, rows []model.ApplicationDepartment) error {
	err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&rows).Error
	return apperr.FromDB(err, "application department")
}

func (r *AssessmentRepository) GetAppDepartment(ctx context.Context, appID uuid.UUID, deptID uint) (*model.ApplicationDepartment, error) {
	var row model.ApplicationDepartment
	err := r.db.WithContext(ctx).
		Where("application_id = ? AND department_id = ?", appID, deptID).
		First(&row).Error
	if err != nil {
		return nil, apperr.FromDB(err, "application department")
	}
	return &row, nil
}

func (r *AssessmentRepository) UpdateAppDepartmentStatus(ctx context.Context, appID uuid.UUID, deptID uint, status model.DeptStatus) error {
	result := r.db.WithContext(ctx).Model(&model.ApplicationDepartment{}).
		Where("application_id = ? AND department_id = ?", appID, deptID).
		Updates(map[string]interface{}{"status": status, "updated_at": time.Now()})
	if result.Error != nil {
		return apperr.FromDB(result.Error, "application department")
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("application department not found")
	}
	return nil
}

func (r *AssessmentRepository) AppDepartmentStatuses(ctx context.Context, appID uuid.UUID) ([]model.DeptStatus, error) {
	var raw []string
	err := r.db.WithContext(ctx).Model(&model.ApplicationDepartment{}).
		Where("application_id = ?", appID).
		Pluck("status", &raw).Error
	if err != nil {
		return nil, apperr.FromDB(err, "application department")
	}

	statuses := make([]model.DeptStatus, 0, len(raw))
	for _, s := range raw {
		statuses = append(statuses, model.DeptStatus(model.NormalizeStatus(s)))
	}
	return statuses, nil
}

func (r *AssessmentRepository) GetDeptQuestion(ctx context.Context, id uint) (*model.DeptQuestion, error) {
	var question model.DeptQuestion
	if err := r.db.WithContext(ctx).Preload("QuestionSet").First(&question, id).Error; err != nil {
		return nil, apperr.FromDB(err, "department question")
	}
	return &question, nil
}

func (r *AssessmentRepository) IsDepartmentMember(ctx context.Context, deptID uint, userID uuid.UUID) (bool, error) {
	return isDepartmentMember(r.db.WithContext(ctx), deptID, userID)
}

func isDepartmentMember(db *gorm.DB, deptID uint, userID uuid.UUID) (bool, error) {
	var count int64
	err := db.Model(&model.DepartmentUser{}).
		Where("department_id = ? AND user_id = ?", deptID, userID).
		Count(&count).Error
	if err != nil {
		return false, apperr.FromDB(err, "department membership")
	}
	return count > 0, nil
}

func (r *AssessmentRepository) UpsertDeptAnswer(ctx context.Context, answer *model.AppDeptAnswer) error {
	answer.UpdatedAt = time.Now()
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "application_id"}, {Name: "department_id"}, {Name: "dept_question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"answer_text", "author_id", "updated_at"}),
		}).
		Create(answer).Error
	return apperr.FromDB(err, "department answer")
}

func (r *AssessmentRepository) DeptProgress(ctx context.Context, appID uuid.UUID, deptID uint) (assessment.Progress, error) {
	var progress assessment.Progress
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			COUNT(q.id) AS total,
			COUNT(a.id) AS answered,
			COUNT(q.id) FILTER (WHERE q.is_mandatory) AS mandatory_total,
			COUNT(a.id) FILTER (WHERE q.is_mandatory) AS mandatory_answered
		FROM dept_questions q
		JOIN dept_question_sets s ON s.id = q.question_set_id
		LEFT JOIN app_dept_answers a
			ON a.dept_question_id = q.id AND a.application_id = ? AND a.department_id = ?
		WHERE s.department_id = ?
	`, appID, deptID, deptID).Scan(&progress).Error
	return progress, apperr.FromDB(err, "department questionnaire")
}

func (r *AssessmentRepository) EnqueueNotification(ctx context.Context, event *model.NotificationEvent) error {
	return apperr.FromDB(r.db.WithContext(ctx).Create(event).Error, "notification")
}
