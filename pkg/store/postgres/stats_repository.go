package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/isassess/isassess/pkg/apperr"
	"github.com/isassess/isassess/pkg/dashboard"
	"github.com/isassess/isassess/pkg/model"
	"github.com/isassess/isassess/pkg/query"
)

// StatsRepository aggregates over active applications for the dashboard.
type StatsRepository struct {
	db *gorm.DB
}

var _ dashboard.Source = (*StatsRepository)(nil)

func NewStatsRepository(db *gorm.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

func (r *StatsRepository) active(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.Application{}).Where("applications.is_active = ?", true)
}

func (r *StatsRepository) StatusCounts(ctx context.Context) ([]query.StatusCount, error) {
	var rows []query.StatusCount
	expr := normalizedStatus("applications.status")
	err := r.active(ctx).Select(expr + " AS status, COUNT(*) AS count").Group(expr).Scan(&rows).Error
	return rows, apperr.FromDB(err, "status counts")
}

func (r *StatsRepository) DepartmentStatusCounts(ctx context.Context) ([]dashboard.DepartmentStatusCount, error) {
	var rows []dashboard.DepartmentStatusCount
	expr := normalizedStatus("ad.status")
	err := r.active(ctx).
		Select("d.id AS department_id, d.name AS department_name, " + expr + " AS status, COUNT(*) AS count").
		Joins("JOIN application_departments AS ad ON ad.application_id = applications.id").
		Joins("JOIN departments AS d ON d.id = ad.department_id").
		Group("d.id, d.name, " + expr).
		Order("d.id").
		Scan(&rows).Error
	return rows, apperr.FromDB(err, "department status counts")
}

func (r *StatsRepository) PriorityStatusCounts(ctx context.Context) ([]dashboard.PriorityStatusCount, error) {
	var rows []dashboard.PriorityStatusCount
	expr := normalizedStatus("applications.status")
	err := r.active(ctx).
		Select("applications.app_priority AS priority, " + expr + " AS status, COUNT(*) AS count").
		Group("applications.app_priority, " + expr).
		Scan(&rows).Error
	return rows, apperr.FromDB(err, "priority counts")
}

func (r *StatsRepository) VerticalCounts(ctx context.Context) ([]dashboard.VerticalCount, error) {
	var rows []dashboard.VerticalCount
	err := r.active(ctx).
		Select("COALESCE(NULLIF(TRIM(applications.vertical), ''), 'unspecified') AS vertical, COUNT(*) AS count").
		Group("1").
		Order("count DESC, vertical").
		Scan(&rows).Error
	return rows, apperr.FromDB(err, "vertical counts")
}

func (r *StatsRepository) StartDates(ctx context.Context) ([]time.Time, error) {
	var starts []time.Time
	err := r.active(ctx).
		Where("applications.started_at IS NOT NULL").
		Pluck("applications.started_at", &starts).Error
	return starts, apperr.FromDB(err, "start dates")
}

func (r *StatsRepository) OverdueCount(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.active(ctx).
		Where("applications.is_completed = ? AND applications.due_date IS NOT NULL AND applications.due_date < ?", false, now).
		Count(&count).Error
	return count, apperr.FromDB(err, "overdue count")
}
