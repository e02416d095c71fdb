package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/isassess/isassess/pkg/apperr"
	"github.com/isassess/isassess/pkg/model"
)

type QuestionnaireRepository struct {
	db *gorm.DB
}

func NewQuestionnaireRepository(db *gorm.DB) *QuestionnaireRepository {
	return &QuestionnaireRepository{db: db}
}

// AnsweredQuestion pairs a question with the application's current answer.
type AnsweredQuestion struct {
	model.Question
	Answer *string `json:"answer"`
}

type AnsweredDeptQuestion struct {
	model.DeptQuestion
	Answer *string `json:"answer"`
}

func (r *QuestionnaireRepository) CreateQuestionSet(ctx context.Context, set *model.QuestionSet) error {
	return apperr.FromDB(r.db.WithContext(ctx).Create(set).Error, "question set")
}

func (r *QuestionnaireRepository) GetQuestionSet(ctx context.Context, id uint) (*model.QuestionSet, error) {
	var set model.QuestionSet
	err := r.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("sequence_number, id") }).
		First(&set, id).Error
	if err != nil {
		return nil, apperr.FromDB(err, "question set")
	}
	return &set, nil
}

func (r *QuestionnaireRepository) ListQuestionSets(ctx context.Context) ([]model.QuestionSet, error) {
	var sets []model.QuestionSet
	err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Find(&sets).Error
	return sets, apperr.FromDB(err, "question sets")
}

// AddQuestions appends questions to a set, numbering them after the current
// last sequence number when none is given.
func (r *QuestionnaireRepository) AddQuestions(ctx context.Context, setID uint, questions []model.Question) ([]model.Question, error) {
	if len(questions) == 0 {
		return nil, apperr.Validation("questions must not be empty")
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&model.QuestionSet{}, setID).Error; err != nil {
			return apperr.FromDB(err, "question set")
		}
		var last int
		if err := tx.Model(&model.Question{}).
			Where("question_set_id = ?", setID).
			Select("COALESCE(MAX(sequence_number), 0)").
			Scan(&last).Error; err != nil {
			return apperr.FromDB(err, "questions")
		}
		for i := range questions {
			if questions[i].Text == "" {
				return apperr.Validation("question %d has no text", i+1)
			}
			questions[i].ID = 0
			questions[i].QuestionSetID = setID
			if questions[i].SequenceNumber == 0 {
				last++
				questions[i].SequenceNumber = last
			}
		}
		return apperr.FromDB(tx.Create(&questions).Error, "questions")
	})
	if err != nil {
		return nil, err
	}
	return questions, nil
}

// QuestionsWithAnswers returns the questions of the application's question
// set with the stored answers.
func (r *QuestionnaireRepository) QuestionsWithAnswers(ctx context.Context, appID uuid.UUID) ([]AnsweredQuestion, error) {
	var app model.Application
	if err := r.db.WithContext(ctx).Select("id", "question_set_id").First(&app, "id = ?", appID).Error; err != nil {
		return nil, apperr.FromDB(err, "application")
	}
	if app.QuestionSetID == nil {
		return nil, apperr.NotFound("application %s has no question set", appID)
	}

	var rows []AnsweredQuestion
	err := r.db.WithContext(ctx).
		Table("questions AS q").
		Select("q.*, a.answer_text AS answer").
		Joins("LEFT JOIN application_answers AS a ON a.question_id = q.id AND a.application_id = ?", appID).
		Where("q.question_set_id = ?", *app.QuestionSetID).
		Order("q.sequence_number, q.id").
		Scan(&rows).Error
	return rows, apperr.FromDB(err, "questions")
}

func (r *QuestionnaireRepository) CreateDeptQuestionSet(ctx context.Context, set *model.DeptQuestionSet) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&model.Department{}, set.DepartmentID).Error; err != nil {
			return apperr.FromDB(err, "department")
		}
		return apperr.FromDB(tx.Create(set).Error, "department question set")
	})
	return err
}

func (r *QuestionnaireRepository) DeptQuestionSet(ctx context.Context, deptID uint) (*model.DeptQuestionSet, error) {
	var set model.DeptQuestionSet
	err := r.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("sequence_number, id") }).
		Where("department_id = ?", deptID).
		First(&set).Error
	if err != nil {
		return nil, apperr.FromDB(err, "department question set")
	}
	return &set, nil
}

func (r *QuestionnaireRepository) AddDeptQuestion(ctx context.Context, deptID uint, question *model.DeptQuestion) error {
	if question.Text == "" {
		return apperr.Validation("question text is required")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var set model.DeptQuestionSet
		if err := tx.Where("department_id = ?", deptID).First(&set).Error; err != nil {
			return apperr.FromDB(err, "department question set")
		}
		question.ID = 0
		question.QuestionSetID = set.ID
		question.QuestionSet = nil
		if question.SequenceNumber == 0 {
			var last int
			if err := tx.Model(&model.DeptQuestion{}).
				Where("question_set_id = ?", set.ID).
				Select("COALESCE(MAX(sequence_number), 0)").
				Scan(&last).Error; err != nil {
				return apperr.FromDB(err, "department questions")
			}
			question.SequenceNumber = last + 1
		}
		return apperr.FromDB(tx.Create(question).Error, "department question")
	})
}

// DeptQuestionsWithAnswers returns a department's questionnaire with the
// answers recorded for one application.
func (r *QuestionnaireRepository) DeptQuestionsWithAnswers(ctx context.Context, appID uuid.UUID, deptID uint) ([]AnsweredDeptQuestion, error) {
	var rows []AnsweredDeptQuestion
	err := r.db.WithContext(ctx).
		Table("dept_questions AS q").
		Select("q.*, a.answer_text AS answer").
		Joins("JOIN dept_question_sets AS s ON s.id = q.question_set_id").
		Joins("LEFT JOIN app_dept_answers AS a ON a.dept_question_id = q.id AND a.application_id = ? AND a.department_id = ?", appID, deptID).
		Where("s.department_id = ?", deptID).
		Order("q.sequence_number, q.id").
		Scan(&rows).Error
	return rows, apperr.FromDB(err, "department questions")
}
