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
	"github.com/isassess/isassess/pkg/store/postgres"
)

type QuestionnaireStore interface {
	CreateQuestionSet(ctx context.Context, set *model.QuestionSet) error
	GetQuestionSet(ctx context.Context, id uint) (*model.QuestionSet, error)
	ListQuestionSets(ctx context.Context) ([]model.QuestionSet, error)
	AddQuestions(ctx context.Context, setID uint, questions []model.Question) ([]model.Question, error)
	QuestionsWithAnswers(ctx context.Context, appID uuid.UUID) ([]postgres.AnsweredQuestion, error)
	CreateDeptQuestionSet(ctx context.Context, set *model.DeptQuestionSet) error
	DeptQuestionSet(ctx context.Context, deptID uint) (*model.DeptQuestionSet, error)
	AddDeptQuestion(ctx context.Context, deptID uint, question *model.DeptQuestion) error
	DeptQuestionsWithAnswers(ctx context.Context, appID uuid.UUID, deptID uint) ([]postgres.AnsweredDeptQuestion, error)
}

// QuestionnaireHandler serves the global criticality questionnaire and the
// per-department questionnaires.
type QuestionnaireHandler struct {
	questionnaires QuestionnaireStore
	service        *assessment.Service
	logger         *zap.Logger
}

func NewQuestionnaireHandler(questionnaires QuestionnaireStore, service *assessment.Service, logger *zap.Logger) *QuestionnaireHandler {
	return &QuestionnaireHandler{questionnaires: questionnaires, service: service, logger: logger}
}

type questionSetRequest struct {
	Name      string            `json:"name" binding:"required"`
	Questions []questionRequest `json:"questions"`
}

type questionRequest struct {
	Text           string `json:"text" binding:"required"`
	SequenceNumber int    `json:"sequence_number"`
	IsHigh         bool   `json:"is_high"`
	IsMedium       bool   `json:"is_medium"`
	IsDefault      bool   `json:"is_default"`
}

type addQuestionsRequest struct {
	Questions []questionRequest `json:"questions" binding:"required"`
}

type answerRequest struct {
	QuestionID uint   `json:"question_id" binding:"required"`
	Answer     string `json:"answer"`
}

type deptQuestionSetRequest struct {
	Name string `json:"name" binding:"required"`
}

type deptQuestionRequest struct {
	Text           string `json:"text" binding:"required"`
	SequenceNumber int    `json:"sequence_number"`
	IsMandatory    bool   `json:"is_mandatory"`
	IsDefault      bool   `json:"is_default"`
}

func (req questionRequest) model() model.Question {
	return model.Question{
		Text:           strings.TrimSpace(req.Text),
		SequenceNumber: req.SequenceNumber,
		IsHigh:         req.IsHigh,
		IsMedium:       req.IsMedium,
		IsDefault:      req.IsDefault,
	}
}

func (h *QuestionnaireHandler) CreateSet(c *gin.Context) {
	var req questionSetRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(c, h.logger, apperr.Validation("name is required"))
		return
	}

	ctx := c.Request.Context()
	set := &model.QuestionSet{Name: name, IsActive: true}
	if err := h.questionnaires.CreateQuestionSet(ctx, set); err != nil {
		respondError(c, h.logger, err)
		return
	}
	if len(req.Questions) > 0 {
		questions := make([]model.Question, 0, len(req.Questions))
		for _, q := range req.Questions {
			questions = append(questions, q.model())
		}
		created, err := h.questionnaires.AddQuestions(ctx, set.ID, questions)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		set.Questions = created
	}
	c.JSON(http.StatusCreated, set)
}

func (h *QuestionnaireHandler) ListSets(c *gin.Context) {
	sets, err := h.questionnaires.ListQuestionSets(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"question_sets": sets})
}

func (h *QuestionnaireHandler) GetSet(c *gin.Context) {
	setID, ok := uintParam(c, h.logger, "set_id")
	if !ok {
		return
	}
	set, err := h.questionnaires.GetQuestionSet(c.Request.Context(), setID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, set)
}

func (h *QuestionnaireHandler) AddQuestions(c *gin.Context) {
	setID, ok := uintParam(c, h.logger, "set_id")
	if !ok {
		return
	}
	var req addQuestionsRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	questions := make([]model.Question, 0, len(req.Questions))
	for _, q := range req.Questions {
		questions = append(questions, q.model())
	}
	created, err := h.questionnaires.AddQuestions(c.Request.Context(), setID, questions)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"questions": created})
}

func (h *QuestionnaireHandler) AppQuestions(c *gin.Context) {
	appID, ok := uuidParam(c, h.logger, "id")
	if !ok {
		return
	}
	questions, err := h.questionnaires.QuestionsWithAnswers(c.Request.Context(), appID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"application_id": appID.String(), "questions": questions})
}

// SubmitAnswer stores one answer and returns the recomputed priority.
func (h *QuestionnaireHandler) SubmitAnswer(c *gin.Context) {
	p, ok := principal(c, h.logger)
	if !ok {
		return
	}
	appID, ok := uuidParam(c, h.logger, "id")
	if !ok {
		return
	}
	var req answerRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	result, err := h.service.SubmitAnswer(c.Request.Context(), appID, req.QuestionID, req.Answer, p.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"application_id":    appID.String(),
		"question_id":       result.Answer.QuestionID,
		"answer":            result.Answer.AnswerText,
		"app_priority":      int(result.Priority),
		"previous_priority": int(result.PreviousPriority),
	})
}

func (h *QuestionnaireHandler) CreateDeptSet(c *gin.Context) {
	deptID, ok := uintParam(c, h.logger, "dept_id")
	if !ok {
		return
	}
	var req deptQuestionSetRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	set := &model.DeptQuestionSet{DepartmentID: deptID, Name: strings.TrimSpace(req.Name)}
	if set.Name == "" {
		respondError(c, h.logger, apperr.Validation("name is required"))
		return
	}
	if err := h.questionnaires.CreateDeptQuestionSet(c.Request.Context(), set); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, set)
}

func (h *QuestionnaireHandler) AddDeptQuestion(c *gin.Context) {
	deptID, ok := uintParam(c, h.logger, "dept_id")
	if !ok {
		return
	}
	var req deptQuestionRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}
	question := &model.DeptQuestion{
		Text:           strings.TrimSpace(req.Text),
		SequenceNumber: req.SequenceNumber,
		IsMandatory:    req.IsMandatory,
		IsDefault:      req.IsDefault,
	}
	if err := h.questionnaires.AddDeptQuestion(c.Request.Context(), deptID, question); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, question)
}

func (h *QuestionnaireHandler) GetDeptSet(c *gin.Context) {
	deptID, ok := uintParam(c, h.logger, "dept_id")
	if !ok {
		return
	}
	set, err := h.questionnaires.DeptQuestionSet(c.Request.Context(), deptID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, set)
}

// AppDeptQuestions returns a department questionnaire with one application's
// answers and its completion progress.
func (h *QuestionnaireHandler) AppDeptQuestions(c *gin.Context) {
	appID, ok := uuidParam(c, h.logger, "id")
	if !ok {
		return
	}
	deptID, ok := uintParam(c, h.logger, "dept_id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	progress, err := h.service.DepartmentProgress(ctx, appID, deptID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	questions, err := h.questionnaires.DeptQuestionsWithAnswers(ctx, appID, deptID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"application_id":     appID.String(),
		"department_id":      deptID,
		"questions":          questions,
		"progress":           progress,
		"mandatory_complete": progress.MandatoryComplete(),
	})
}

func (h *QuestionnaireHandler) SubmitDeptAnswer(c *gin.Context) {
	p, ok := principal(c, h.logger)
	if !ok {
		return
	}
	appID, ok := uuidParam(c, h.logger, "id")
	if !ok {
		return
	}
	var req answerRequest
	if !bindJSON(c, h.logger, &req) {
		return
	}

	result, err := h.service.SubmitDeptAnswer(c.Request.Context(), appID, req.QuestionID, req.Answer, p.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"application_id":     appID.String(),
		"department_id":      result.Answer.DepartmentID,
		"question_id":        result.Answer.DeptQuestionID,
		"answer":             result.Answer.AnswerText,
		"department_status":  result.DepartmentStatus,
		"progress":           result.Progress,
		"mandatory_complete": result.Progress.MandatoryComplete(),
	})
}
