package assessment

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"

	"github.com/isassess/isassess/pkg/apperr"
	"github.com/isassess/isassess/pkg/eventbus"
	"github.com/isassess/isassess/pkg/model"
)

type answerKey struct {
	app      uuid.UUID
	question uint
}

type assocKey struct {
	app  uuid.UUID
	dept uint
}

type deptAnswerKey struct {
	app      uuid.UUID
	dept     uint
	question uint
}

type memberKey struct {
	dept uint
	user uuid.UUID
}

type memState struct {
	apps          map[uuid.UUID]model.Application
	sets          map[uint]model.QuestionSet
	questions     map[uint]model.Question
	answers       map[answerKey]model.ApplicationAnswer
	departments   map[uint]model.Department
	assoc         map[assocKey]model.ApplicationDepartment
	deptSets      map[uint]model.DeptQuestionSet
	deptQuestions map[uint]model.DeptQuestion
	members       map[memberKey]bool
	deptAnswers   map[deptAnswerKey]model.AppDeptAnswer
	outbox        []model.NotificationEvent
	nextID        uint
}

func cloneMap[K comparable, V any](in map[K]V) map[K]V {
	out := make(map[K]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *memState) clone() *memState {
	return &memState{
		apps:          cloneMap(s.apps),
		sets:          cloneMap(s.sets),
		questions:     cloneMap(s.questions),
		answers:       cloneMap(s.answers),
		departments:   cloneMap(s.departments),
		assoc:         cloneMap(s.assoc),
		deptSets:      cloneMap(s.deptSets),
		deptQuestions: cloneMap(s.deptQuestions),
		members:       cloneMap(s.members),
		deptAnswers:   cloneMap(s.deptAnswers),
		outbox:        append([]model.NotificationEvent(nil), s.outbox...),
		nextID:        s.nextID,
	}
}

// memRepo is an in-memory Repository. Transaction restores the previous state
// when the callback fails, mirroring a database rollback.
type memRepo struct {
	state  *memState
	failOn map[string]error
}

func newMemRepo() *memRepo {
	return &memRepo{
		state: &memState{
			apps:          map[uuid.UUID]model.Application{},
			sets:          map[uint]model.QuestionSet{},
			questions:     map[uint]model.Question{},
			answers:       map[answerKey]model.ApplicationAnswer{},
			departments:   map[uint]model.Department{},
			assoc:         map[assocKey]model.ApplicationDepartment{},
			deptSets:      map[uint]model.DeptQuestionSet{},
			deptQuestions: map[uint]model.DeptQuestion{},
			members:       map[memberKey]bool{},
			deptAnswers:   map[deptAnswerKey]model.AppDeptAnswer{},
		},
		failOn: map[string]error{},
	}
}

func (r *memRepo) id() uint {
	r.state.nextID++
	return r.state.nextID
}

func (r *memRepo) Transaction(ctx context.Context, fn func(repo Repository) error) error {
	snapshot := r.state.clone()
	if err := fn(r); err != nil {
		r.state = snapshot
		return err
	}
	return nil
}

func (r *memRepo) GetApplication(ctx context.Context, id uuid.UUID) (*model.Application, error) {
	app, ok := r.state.apps[id]
	if !ok {
		return nil, apperr.NotFound("application not found")
	}
	return &app, nil
}

func (r *memRepo) CreateApplication(ctx context.Context, app *model.Application) error {
	if err := r.failOn["CreateApplication"]; err != nil {
		return err
	}
	for _, existing := range r.state.apps {
		if existing.Name == app.Name {
			return apperr.Conflict("application already exists")
		}
	}
	r.state.apps[app.ID] = *app
	return nil
}

func (r *memRepo) UpdateApplicationStatus(ctx context.Context, id uuid.UUID, status model.AppStatus, completed bool) error {
	app, ok := r.state.apps[id]
	if !ok {
		return apperr.NotFound("application not found")
	}
	app.Status = status
	app.IsCompleted = completed
	r.state.apps[id] = app
	return nil
}

func (r *memRepo) UpdatePriority(ctx context.Context, id uuid.UUID, priority model.Priority) error {
	if err := r.failOn["UpdatePriority"]; err != nil {
		return err
	}
	app := r.state.apps[id]
	app.AppPriority = priority
	r.state.apps[id] = app
	return nil
}

func (r *memRepo) LatestActiveQuestionSetID(ctx context.Context) (*uint, error) {
	var latest *uint
	for id, set := range r.state.sets {
		if set.IsActive && (latest == nil || id > *latest) {
			id := id
			latest = &id
		}
	}
	return latest, nil
}

func (r *memRepo) GetQuestionSet(ctx context.Context, id uint) (*model.QuestionSet, error) {
	set, ok := r.state.sets[id]
	if !ok {
		return nil, apperr.NotFound("question set not found")
	}
	return &set, nil
}

func (r *memRepo) GetQuestion(ctx context.Context, id uint) (*model.Question, error) {
	q, ok := r.state.questions[id]
	if !ok {
		return nil, apperr.NotFound("question not found")
	}
	return &q, nil
}

func (r *memRepo) UpsertAnswer(ctx context.Context, answer *model.ApplicationAnswer) error {
	key := answerKey{answer.ApplicationID, answer.QuestionID}
	if existing, ok := r.state.answers[key]; ok {
		answer.ID = existing.ID
	} else {
		answer.ID = r.id()
	}
	r.state.answers[key] = *answer
	return nil
}

func (r *memRepo) ScoredQuestions(ctx context.Context, appID uuid.UUID, questionSetID uint) ([]ScoredQuestion, error) {
	if err := r.failOn["ScoredQuestions"]; err != nil {
		return nil, err
	}
	var out []ScoredQuestion
	for _, q := range r.state.questions {
		if q.QuestionSetID != questionSetID {
			continue
		}
		sq := ScoredQuestion{QuestionID: q.ID, IsHigh: q.IsHigh, IsMedium: q.IsMedium}
		if a, ok := r.state.answers[answerKey{appID, q.ID}]; ok {
			text := a.AnswerText
			sq.Answer = &text
		}
		out = append(out, sq)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

func (r *memRepo) ActiveDepartmentIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	for id, d := range r.state.departments {
		if d.IsActive {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (r *memRepo) ExistingDepartmentIDs(ctx context.Context, ids []uint) ([]uint, error) {
	var out []uint
	for _, id := range ids {
		if _, ok := r.state.departments[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *memRepo) CreateAppDepartments(ctx context.Context, rows []model.ApplicationDepartment) error {
	for i, row := range rows {
		if i > 0 {
			if err := r.failOn["CreateAppDepartments"]; err != nil {
				return err
			}
		}
		key := assocKey{row.ApplicationID, row.DepartmentID}
		if _, ok := r.state.assoc[key]; ok {
			continue
		}
		row.ID = r.id()
		r.state.assoc[key] = row
	}
	return nil
}

func (r *memRepo) GetAppDepartment(ctx context.Context, appID uuid.UUID, deptID uint) (*model.ApplicationDepartment, error) {
	row, ok := r.state.assoc[assocKey{appID, deptID}]
	if !ok {
		return nil, apperr.NotFound("application department not found")
	}
	return &row, nil
}

func (r *memRepo) UpdateAppDepartmentStatus(ctx context.Context, appID uuid.UUID, deptID uint, status model.DeptStatus) error {
	key := assocKey{appID, deptID}
	row, ok := r.state.assoc[key]
	if !ok {
		return apperr.NotFound("application department not found")
	}
	row.Status = status
	r.state.assoc[key] = row
	return nil
}

func (r *memRepo) AppDepartmentStatuses(ctx context.Context, appID uuid.UUID) ([]model.DeptStatus, error) {
	var out []model.DeptStatus
	for key, row := range r.state.assoc {
		if key.app == appID {
			out = append(out, row.Status)
		}
	}
	return out, nil
}

func (r *memRepo) GetDeptQuestion(ctx context.Context, id uint) (*model.DeptQuestion, error) {
	q, ok := r.state.deptQuestions[id]
	if !ok {
		return nil, apperr.NotFound("department question not found")
	}
	if set, ok := r.state.deptSets[q.QuestionSetID]; ok {
		q.QuestionSet = &set
	}
	return &q, nil
}

func (r *memRepo) IsDepartmentMember(ctx context.Context, deptID uint, userID uuid.UUID) (bool, error) {
	return r.state.members[memberKey{deptID, userID}], nil
}

func (r *memRepo) UpsertDeptAnswer(ctx context.Context, answer *model.AppDeptAnswer) error {
	key := deptAnswerKey{answer.ApplicationID, answer.DepartmentID, answer.DeptQuestionID}
	if existing, ok := r.state.deptAnswers[key]; ok {
		answer.ID = existing.ID
	} else {
		answer.ID = r.id()
	}
	r.state.deptAnswers[key] = *answer
	return nil
}

func (r *memRepo) DeptProgress(ctx context.Context, appID uuid.UUID, deptID uint) (Progress, error) {
	var p Progress
	for _, q := range r.state.deptQuestions {
		set, ok := r.state.deptSets[q.QuestionSetID]
		if !ok || set.DepartmentID != deptID {
			continue
		}
		_, answered := r.state.deptAnswers[deptAnswerKey{appID, deptID, q.ID}]
		p.Total++
		if answered {
			p.Answered++
		}
		if q.IsMandatory {
			p.MandatoryTotal++
			if answered {
				p.MandatoryAnswered++
			}
		}
	}
	return p, nil
}

func (r *memRepo) EnqueueNotification(ctx context.Context, event *model.NotificationEvent) error {
	if err := r.failOn["EnqueueNotification"]; err != nil {
		return err
	}
	r.state.outbox = append(r.state.outbox, *event)
	return nil
}

type recordedEvent struct {
	channel string
	event   eventbus.Event
}

type fakePublisher struct {
	events []recordedEvent
	err    error
}

func (p *fakePublisher) Publish(ctx context.Context, channel string, event eventbus.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, recordedEvent{channel: channel, event: event})
	return nil
}

func (p *fakePublisher) types() []string {
	var out []string
	for _, e := range p.events {
		out = append(out, e.event.Type)
	}
	return out
}

var errStorage = errors.New("storage unavailable")
