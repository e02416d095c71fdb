package assessment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/isassess/isassess/pkg/apperr"
	"github.com/isassess/isassess/pkg/eventbus"
	"github.com/isassess/isassess/pkg/metrics"
	"github.com/isassess/isassess/pkg/model"
)

type Publisher interface {
	Publish(ctx context.Context, channel string, event eventbus.Event) error
}

type Service struct {
	repo      Repository
	evaluator Evaluator
	events    Publisher
	logger    *zap.Logger
}

// NewService wires the workflows. events may be nil, in which case nothing is
// published after commits.
func NewService(repo Repository, evaluator Evaluator, events Publisher, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, evaluator: evaluator, events: events, logger: logger}
}

type AnswerResult struct {
	Answer           model.ApplicationAnswer
	Priority         model.Priority
	PreviousPriority model.Priority
}

type DepartmentStatusResult struct {
	ApplicationID uuid.UUID
	DepartmentID  uint
	Status        model.DeptStatus
	Application   RollupResult
}

type DeptAnswerResult struct {
	Answer           model.AppDeptAnswer
	DepartmentStatus model.DeptStatus
	Progress         Progress
	Application      RollupResult
}

type NewApplication struct {
	Name           string
	Description    string
	Environment    string
	Region         string
	OwnerName      string
	VendorCompany  string
	InfraHost      string
	AppTech        string
	Vertical       string
	AppURL         string
	UserType       string
	DataType       string
	AppType        string
	IsAppAI        bool
	TicketID       string
	ImitraTicketID string
	TitanSPOC      string
	Status         string
	AppPriority    *int
	OwnerID        *uuid.UUID
	StartedAt      *time.Time
	DueDate        *time.Time
}

func (s *Service) ComputePriority(ctx context.Context, appID uuid.UUID) (model.Priority, error) {
	app, err := s.repo.GetApplication(ctx, appID)
	if err != nil {
		return 0, err
	}
	setID, err := s.questionSetOf(ctx, s.repo, app)
	if err != nil {
		return 0, err
	}
	questions, err := s.repo.ScoredQuestions(ctx, appID, setID)
	if err != nil {
		return 0, err
	}
	return s.evaluator.Evaluate(questions), nil
}

// SubmitAnswer stores the answer and rewrites app_priority in one transaction.
func (s *Service) SubmitAnswer(ctx context.Context, appID uuid.UUID, questionID uint, text string, authorID uuid.UUID) (*AnswerResult, error) {
	var result AnswerResult

	err := s.repo.Transaction(ctx, func(repo Repository) error {
		app, err := repo.GetApplication(ctx, appID)
		if err != nil {
			return err
		}
		setID, err := s.questionSetOf(ctx, repo, app)
		if err != nil {
			return err
		}
		question, err := repo.GetQuestion(ctx, questionID)
		if err != nil {
			return err
		}
		if question.QuestionSetID != setID {
			return apperr.Validation("question %d does not belong to the application's question set", questionID)
		}

		author := authorID
		answer := model.ApplicationAnswer{
			ApplicationID: appID,
			QuestionID:    questionID,
			AnswerText:    text,
			AuthorID:      &author,
		}
		if err := repo.UpsertAnswer(ctx, &answer); err != nil {
			return err
		}

		questions, err := repo.ScoredQuestions(ctx, appID, setID)
		if err != nil {
			return err
		}
		priority := s.evaluator.Evaluate(questions)
		if err := repo.UpdatePriority(ctx, appID, priority); err != nil {
			return err
		}

		result = AnswerResult{Answer: answer, Priority: priority, PreviousPriority: app.AppPriority}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.PriorityEvaluations.WithLabelValues(result.Priority.String()).Inc()
	if result.Priority != result.PreviousPriority {
		s.publish(ctx, eventbus.ChannelApplication, eventbus.EventPriorityChanged, eventbus.ApplicationEvent{
			ApplicationID:    appID.String(),
			Priority:         int(result.Priority),
			PreviousPriority: int(result.PreviousPriority),
		})
	}
	return &result, nil
}

func (s *Service) questionSetOf(ctx context.Context, repo Repository, app *model.Application) (uint, error) {
	if app.QuestionSetID == nil {
		return 0, apperr.NotFound("application %s has no question set", app.ID)
	}
	set, err := repo.GetQuestionSet(ctx, *app.QuestionSetID)
	if err != nil {
		return 0, err
	}
	return set.ID, nil
}

func (s *Service) ChangeDepartmentStatus(ctx context.Context, appID uuid.UUID, deptID uint, rawStatus string) (*DepartmentStatusResult, error) {
	status, err := model.ParseDeptStatus(rawStatus)
	if err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	var result DepartmentStatusResult
	err = s.repo.Transaction(ctx, func(repo Repository) error {
		app, err := repo.GetApplication(ctx, appID)
		if err != nil {
			return err
		}
		if _, err := repo.GetAppDepartment(ctx, appID, deptID); err != nil {
			return err
		}
		if err := repo.UpdateAppDepartmentStatus(ctx, appID, deptID, status); err != nil {
			return err
		}
		rollup, err := s.rollup(ctx, repo, app)
		if err != nil {
			return err
		}
		result = DepartmentStatusResult{ApplicationID: appID, DepartmentID: deptID, Status: status, Application: rollup}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.DeptStatusChanges.WithLabelValues(string(status)).Inc()
	s.publish(ctx, eventbus.ChannelDepartment, eventbus.EventDepartmentStatusChanged, eventbus.DepartmentEvent{
		ApplicationID: appID.String(),
		DepartmentID:  deptID,
		Status:        string(status),
	})
	s.afterRollup(ctx, appID, result.Application)
	return &result, nil
}

func (s *Service) rollup(ctx context.Context, repo Repository, app *model.Application) (RollupResult, error) {
	statuses, err := repo.AppDepartmentStatuses(ctx, app.ID)
	if err != nil {
		return RollupResult{}, err
	}
	result := Rollup(app.Status, app.IsCompleted, statuses)
	if result.Changed {
		if err := repo.UpdateApplicationStatus(ctx, app.ID, result.Status, result.IsCompleted); err != nil {
			return RollupResult{}, err
		}
	}
	return result, nil
}

func (s *Service) afterRollup(ctx context.Context, appID uuid.UUID, result RollupResult) {
	if !result.Changed {
		return
	}
	metrics.AppStatusTransitions.WithLabelValues(string(result.Status), "rollup").Inc()
	s.publish(ctx, eventbus.ChannelApplication, eventbus.EventApplicationStatusChanged, eventbus.ApplicationEvent{
		ApplicationID: appID.String(),
		Status:        string(result.Status),
		Source:        "rollup",
	})
}

func (s *Service) ChangeAppStatus(ctx context.Context, appID uuid.UUID, rawStatus string) (*model.Application, error) {
	status, err := model.ParseAppStatus(rawStatus)
	if err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	var app *model.Application
	err = s.repo.Transaction(ctx, func(repo Repository) error {
		var err error
		app, err = repo.GetApplication(ctx, appID)
		if err != nil {
			return err
		}
		if err := repo.UpdateApplicationStatus(ctx, appID, status, status.IsCompleted()); err != nil {
			return err
		}
		app.Status = status
		app.IsCompleted = status.IsCompleted()
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.AppStatusTransitions.WithLabelValues(string(status), "manual").Inc()
	s.publish(ctx, eventbus.ChannelApplication, eventbus.EventApplicationStatusChanged, eventbus.ApplicationEvent{
		ApplicationID: appID.String(),
		Status:        string(status),
		Source:        "manual",
	})
	return app, nil
}

// CreateApplication inserts the application, one association row per active
// department and the creation notification. A failure at any step leaves
// nothing behind.
func (s *Service) CreateApplication(ctx context.Context, input NewApplication, creatorID uuid.UUID) (*model.Application, error) {
	app, err := buildApplication(input, creatorID)
	if err != nil {
		return nil, err
	}

	err = s.repo.Transaction(ctx, func(repo Repository) error {
		setID, err := repo.LatestActiveQuestionSetID(ctx)
		if err != nil {
			return err
		}
		app.QuestionSetID = setID

		if err := repo.CreateApplication(ctx, app); err != nil {
			return err
		}

		deptIDs, err := repo.ActiveDepartmentIDs(ctx)
		if err != nil {
			return err
		}
		rows := associationRows(app.ID, deptIDs)
		if len(rows) > 0 {
			if err := repo.CreateAppDepartments(ctx, rows); err != nil {
				return err
			}
		}
		app.Departments = rows

		return repo.EnqueueNotification(ctx, &model.NotificationEvent{
			EventID:   uuid.New(),
			EventType: model.NotificationApplicationCreated,
			Status:    model.OutboxStatusPending,
			Payload: datatypes.JSONMap{
				"application_id": app.ID.String(),
				"name":           app.Name,
				"description":    app.Description,
				"vendor_company": app.VendorCompany,
				"owner_name":     app.OwnerName,
				"vertical":       app.Vertical,
				"environment":    app.Environment,
				"creator_id":     creatorID.String(),
				"due_date":       formatDueDate(app.DueDate),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("application created",
		zap.String("application_id", app.ID.String()),
		zap.Int("departments", len(app.Departments)),
	)
	s.publish(ctx, eventbus.ChannelApplication, eventbus.EventApplicationCreated, eventbus.ApplicationEvent{
		ApplicationID: app.ID.String(),
		Name:          app.Name,
		Status:        string(app.Status),
		Priority:      int(app.AppPriority),
	})
	return app, nil
}

func buildApplication(input NewApplication, creatorID uuid.UUID) (*model.Application, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if err := model.ValidateAppName(name); err != nil {
		return nil, apperr.Validation("%s", err.Error())
	}

	priority := model.DefaultPriority
	if input.AppPriority != nil {
		priority = model.Priority(*input.AppPriority)
		if !priority.Valid() {
			return nil, apperr.Validation("app_priority must be between 1 and 3")
		}
	}

	status := model.AppNewRequest
	if strings.TrimSpace(input.Status) != "" {
		parsed, err := model.ParseAppStatus(input.Status)
		if err != nil {
			return nil, apperr.Validation("%s", err.Error())
		}
		status = parsed
	}

	creator := creatorID
	return &model.Application{
		ID:             uuid.New(),
		Name:           name,
		Description:    input.Description,
		Environment:    input.Environment,
		Region:         input.Region,
		OwnerName:      input.OwnerName,
		VendorCompany:  input.VendorCompany,
		InfraHost:      input.InfraHost,
		AppTech:        input.AppTech,
		Vertical:       input.Vertical,
		AppURL:         input.AppURL,
		UserType:       input.UserType,
		DataType:       input.DataType,
		AppType:        input.AppType,
		IsAppAI:        input.IsAppAI,
		TicketID:       input.TicketID,
		ImitraTicketID: input.ImitraTicketID,
		TitanSPOC:      input.TitanSPOC,
		Status:         status,
		AppPriority:    priority,
		IsActive:       true,
		IsCompleted:    status.IsCompleted(),
		CreatorID:      &creator,
		OwnerID:        input.OwnerID,
		StartedAt:      input.StartedAt,
		DueDate:        input.DueDate,
	}, nil
}

func formatDueDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func associationRows(appID uuid.UUID, deptIDs []uint) []model.ApplicationDepartment {
	rows := make([]model.ApplicationDepartment, 0, len(deptIDs))
	for _, id := range deptIDs {
		rows = append(rows, model.ApplicationDepartment{
			ApplicationID: appID,
			DepartmentID:  id,
			Status:        model.DeptYetToConnect,
		})
	}
	return rows
}

// AddDepartments maps extra departments to an application. Pairs that
// already exist keep their current status.
func (s *Service) AddDepartments(ctx context.Context, appID uuid.UUID, deptIDs []uint) ([]uint, error) {
	if len(deptIDs) == 0 {
		return nil, apperr.Validation("department_ids must not be empty")
	}

	var added []uint
	var rollup RollupResult
	err := s.repo.Transaction(ctx, func(repo Repository) error {
		app, err := repo.GetApplication(ctx, appID)
		if err != nil {
			return err
		}
		existing, err := repo.ExistingDepartmentIDs(ctx, deptIDs)
		if err != nil {
			return err
		}
		if missing := difference(deptIDs, existing); len(missing) > 0 {
			return apperr.NotFound("departments %v not found", missing)
		}

		for _, deptID := range existing {
			_, err := repo.GetAppDepartment(ctx, appID, deptID)
			if err == nil {
				continue
			}
			if !apperr.Is(err, apperr.KindNotFound) {
				return err
			}
			added = append(added, deptID)
		}
		if len(added) == 0 {
			return nil
		}
		if err := repo.CreateAppDepartments(ctx, associationRows(appID, added)); err != nil {
			return err
		}
		rollup, err = s.rollup(ctx, repo, app)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.afterRollup(ctx, appID, rollup)
	return added, nil
}

func difference(want, have []uint) []uint {
	present := make(map[uint]struct{}, len(have))
	for _, id := range have {
		present[id] = struct{}{}
	}
	var missing []uint
	for _, id := range want {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

// SubmitDeptAnswer records a department questionnaire answer. Only members of
// the question's department may answer.
func (s *Service) SubmitDeptAnswer(ctx context.Context, appID uuid.UUID, questionID uint, text string, authorID uuid.UUID) (*DeptAnswerResult, error) {
	var result DeptAnswerResult

	err := s.repo.Transaction(ctx, func(repo Repository) error {
		app, err := repo.GetApplication(ctx, appID)
		if err != nil {
			return err
		}
		question, err := repo.GetDeptQuestion(ctx, questionID)
		if err != nil {
			return err
		}
		if question.QuestionSet == nil {
			return apperr.NotFound("question set for question %d not found", questionID)
		}
		deptID := question.QuestionSet.DepartmentID

		member, err := repo.IsDepartmentMember(ctx, deptID, authorID)
		if err != nil {
			return err
		}
		if !member {
			return apperr.Forbidden("user is not a member of department %d", deptID)
		}

		assoc, err := repo.GetAppDepartment(ctx, appID, deptID)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return apperr.Validation("application is not mapped to department %d", deptID)
			}
			return err
		}

		author := authorID
		answer := model.AppDeptAnswer{
			ApplicationID:  appID,
			DepartmentID:   deptID,
			DeptQuestionID: questionID,
			AnswerText:     text,
			AuthorID:       &author,
		}
		if err := repo.UpsertDeptAnswer(ctx, &answer); err != nil {
			return err
		}

		progress, err := repo.DeptProgress(ctx, appID, deptID)
		if err != nil {
			return err
		}

		status := AdvanceOnAnswer(assoc.Status)
		var rollup RollupResult
		if status != assoc.Status {
			if err := repo.UpdateAppDepartmentStatus(ctx, appID, deptID, status); err != nil {
				return err
			}
			if rollup, err = s.rollup(ctx, repo, app); err != nil {
				return err
			}
		}

		result = DeptAnswerResult{Answer: answer, DepartmentStatus: status, Progress: progress, Application: rollup}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.afterRollup(ctx, appID, result.Application)
	return &result, nil
}

// DepartmentProgress reports how much of a department questionnaire has been
// answered for an application.
func (s *Service) DepartmentProgress(ctx context.Context, appID uuid.UUID, deptID uint) (Progress, error) {
	if _, err := s.repo.GetAppDepartment(ctx, appID, deptID); err != nil {
		return Progress{}, err
	}
	return s.repo.DeptProgress(ctx, appID, deptID)
}

func (s *Service) publish(ctx context.Context, channel, eventType string, payload interface{}) {
	if s.events == nil {
		return
	}
	event, err := eventbus.NewEvent(eventType, payload)
	if err != nil {
		s.logger.Warn("failed to encode event", zap.String("type", eventType), zap.Error(err))
		return
	}
	if err := s.events.Publish(ctx, channel, event); err != nil {
		s.logger.Warn("failed to publish event", zap.String("type", eventType), zap.Error(err))
	}
}
