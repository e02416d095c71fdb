package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/isassess/isassess/pkg/apperr"
	"github.com/isassess/isassess/pkg/model"
	"github.com/isassess/isassess/pkg/query"
)

type ApplicationRepository struct {
	db  *gorm.DB
	loc *time.Location
	now func() time.Time
}

func NewApplicationRepository(db *gorm.DB, loc *time.Location) *ApplicationRepository {
	if loc == nil {
		loc = time.UTC
	}
	return &ApplicationRepository{db: db, loc: loc, now: time.Now}
}

// normalizedStatus folds a stored status the same way model.NormalizeStatus does.
func normalizedStatus(column string) string {
	return fmt.Sprintf("REPLACE(REPLACE(LOWER(TRIM(%s)), ' ', '_'), '-', '_')", column)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func (r *ApplicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Application, error) {
	var app model.Application
	err := r.db.WithContext(ctx).
		Preload("Departments", func(db *gorm.DB) *gorm.DB { return db.Order("department_id") }).
		Preload("Departments.Department").
		First(&app, "id = ?", id).Error
	if err != nil {
		return nil, apperr.FromDB(err, "application")
	}
	return &app, nil
}

// Update applies field changes. Status, priority and completion are owned by
// the assessment workflows and are rejected here.
func (r *ApplicationRepository) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (*model.Application, error) {
	for _, column := range []string{"status", "app_priority", "is_completed", "id"} {
		if _, ok := updates[column]; ok {
			return nil, apperr.Validation("%s cannot be updated directly", column)
		}
	}
	if len(updates) > 0 {
		updates["updated_at"] = time.Now()
		result := r.db.WithContext(ctx).Model(&model.Application{}).Where("id = ?", id).Updates(updates)
		if result.Error != nil {
			return nil, apperr.FromDB(result.Error, "application")
		}
		if result.RowsAffected == 0 {
			return nil, apperr.NotFound("application not found")
		}
	}
	return r.GetByID(ctx, id)
}

func (r *ApplicationRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Model(&model.Application{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]interface{}{"is_active": false, "updated_at": time.Now()})
	if result.Error != nil {
		return apperr.FromDB(result.Error, "application")
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("application not found")
	}
	return nil
}

func (r *ApplicationRepository) active(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.Application{}).Where("applications.is_active = ?", true)
}

func (r *ApplicationRepository) filterScope(f query.Filter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(f.Statuses) > 0 {
			db = db.Where(normalizedStatus("applications.status")+" = ANY(?)", pq.Array(f.Statuses))
		}

		if f.HasDepartmentFilter() {
			db = db.Joins("JOIN application_departments AS ad ON ad.application_id = applications.id").
				Where("ad.department_id = ?", *f.DepartmentID).
				Where(normalizedStatus("ad.status")+" = ANY(?)", pq.Array(f.DeptStatuses))
		}

		if len(f.Priorities) > 0 {
			priorities := make([]int64, 0, len(f.Priorities))
			for _, p := range f.Priorities {
				priorities = append(priorities, int64(p))
			}
			db = db.Where("applications.app_priority = ANY(?)", pq.Array(priorities))
		}

		if f.Vertical != "" {
			db = db.Where("applications.vertical ILIKE ?", containsPattern(f.Vertical))
		}

		if f.SLA != query.SLANone {
			from, to := f.SLA.Window(r.now(), r.loc)
			db = db.Where("applications.started_at IS NOT NULL")
			if from != nil {
				db = db.Where("applications.started_at >= ?", *from)
			}
			if to != nil {
				db = db.Where("applications.started_at < ?", *to)
			}
		}

		if f.Search != "" {
			columns := f.SearchColumns()
			conditions := make([]string, 0, len(columns))
			args := make([]interface{}, 0, len(columns))
			for _, column := range columns {
				conditions = append(conditions, "applications."+column+" ILIKE ?")
				args = append(args, containsPattern(f.Search))
			}
			db = db.Where("("+strings.Join(conditions, " OR ")+")", args...)
		}

		return db
	}
}

func (r *ApplicationRepository) orderBy(f query.Filter) clause.OrderBy {
	direction := "ASC NULLS FIRST"
	if f.SortDesc {
		direction = "DESC NULLS LAST"
	}
	return clause.OrderBy{Expression: clause.Expr{
		SQL: "? " + direction + ", ?",
		Vars: []interface{}{
			clause.Column{Table: "applications", Name: f.SortBy},
			clause.Column{Table: "applications", Name: "id"},
		},
	}}
}

// ListQuery is the page query of a listing, exposed for inspection in tests.
func (r *ApplicationRepository) ListQuery(ctx context.Context, f query.Filter) *gorm.DB {
	return r.active(ctx).
		Scopes(r.filterScope(f)).
		Select("applications.*").
		Clauses(r.orderBy(f)).
		Limit(f.PageSize).
		Offset(f.Offset())
}

func (r *ApplicationRepository) List(ctx context.Context, f query.Filter) (*query.Result[model.Application], error) {
	var result query.Result[model.Application]

	if err := r.active(ctx).Count(&result.TotalCount).Error; err != nil {
		return nil, apperr.FromDB(err, "applications")
	}
	if err := r.active(ctx).Scopes(r.filterScope(f)).Count(&result.FilteredCount).Error; err != nil {
		return nil, apperr.FromDB(err, "applications")
	}

	err := r.ListQuery(ctx, f).
		Preload("Departments", func(db *gorm.DB) *gorm.DB { return db.Order("department_id") }).
		Preload("Departments.Department").
		Find(&result.Items).Error
	if err != nil {
		return nil, apperr.FromDB(err, "applications")
	}

	summary, err := r.statusSummary(r.active(ctx))
	if err != nil {
		return nil, err
	}
	result.AppsSummary = summary

	if f.Active() {
		filtered, err := r.statusSummary(r.active(ctx).Scopes(r.filterScope(f)))
		if err != nil {
			return nil, err
		}
		result.FilteredSummary = filtered
	}

	return &result, nil
}

func (r *ApplicationRepository) statusSummary(db *gorm.DB) (query.StatusSummary, error) {
	var rows []query.StatusCount
	expr := normalizedStatus("applications.status")
	if err := db.Select(expr + " AS status, COUNT(*) AS count").Group(expr).Scan(&rows).Error; err != nil {
		return nil, apperr.FromDB(err, "application status summary")
	}
	return query.NewStatusSummary(rows), nil
}

// LatestComments returns the newest comment of one department for each of
// the given applications.
func (r *ApplicationRepository) LatestComments(ctx context.Context, appIDs []uuid.UUID, deptID uint) (map[uuid.UUID]model.Comment, error) {
	out := make(map[uuid.UUID]model.Comment, len(appIDs))
	if len(appIDs) == 0 {
		return out, nil
	}

	latest := r.db.Model(&model.Comment{}).
		Select("DISTINCT ON (application_id) id").
		Where("department_id = ? AND application_id IN ?", deptID, appIDs).
		Order("application_id, created_at DESC")

	var comments []model.Comment
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("id IN (?)", latest).
		Find(&comments).Error
	if err != nil {
		return nil, apperr.FromDB(err, "comments")
	}
	for _, c := range comments {
		out[c.ApplicationID] = c
	}
	return out, nil
}

// ExportRows returns every active application with its department rows,
// ordered by name.
func (r *ApplicationRepository) ExportRows(ctx context.Context) ([]model.Application, error) {
	var apps []model.Application
	err := r.active(ctx).
		Preload("Departments").
		Order("applications.name").
		Find(&apps).Error
	return apps, apperr.FromDB(err, "applications")
}

// LatestCommentsByPair returns the newest comment per (application, department).
func (r *ApplicationRepository) LatestCommentsByPair(ctx context.Context) (map[uuid.UUID]map[uint]model.Comment, error) {
	latest := r.db.Model(&model.Comment{}).
		Select("DISTINCT ON (application_id, department_id) id").
		Order("application_id, department_id, created_at DESC")

	var comments []model.Comment
	if err := r.db.WithContext(ctx).Where("id IN (?)", latest).Find(&comments).Error; err != nil {
		return nil, apperr.FromDB(err, "comments")
	}

	out := make(map[uuid.UUID]map[uint]model.Comment)
	for _, c := range comments {
		if out[c.ApplicationID] == nil {
			out[c.ApplicationID] = make(map[uint]model.Comment)
		}
		out[c.ApplicationID][c.DepartmentID] = c
	}
	return out, nil
}
