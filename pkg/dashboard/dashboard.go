package dashboard

import (
	"context"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/isassess/isassess/pkg/metrics"
	"github.com/isassess/isassess/pkg/model"
	"github.com/isassess/isassess/pkg/query"
)

type DepartmentStatusCount struct {
	DepartmentID   uint
	DepartmentName string
	Status         string
	Count          int64
}

type PriorityStatusCount struct {
	Priority int
	Status   string
	Count    int64
}

type VerticalCount struct {
	Vertical string `json:"vertical"`
	Count    int64  `json:"count"`
}

// Source reads the raw aggregates over active applications.
type Source interface {
	StatusCounts(ctx context.Context) ([]query.StatusCount, error)
	DepartmentStatusCounts(ctx context.Context) ([]DepartmentStatusCount, error)
	PriorityStatusCounts(ctx context.Context) ([]PriorityStatusCount, error)
	VerticalCounts(ctx context.Context) ([]VerticalCount, error)
	StartDates(ctx context.Context) ([]time.Time, error)
	OverdueCount(ctx context.Context, now time.Time) (int64, error)
}

type Cache interface {
	Get(ctx context.Context, dest interface{}) (bool, error)
	Set(ctx context.Context, value interface{}) error
	Invalidate(ctx context.Context) error
}

type DepartmentStats struct {
	DepartmentID uint             `json:"department_id"`
	Name         string           `json:"name"`
	Statuses     map[string]int64 `json:"statuses"`
}

type Stats struct {
	TotalApplications int64                          `json:"total_applications"`
	StatusSummary     query.StatusSummary            `json:"status_summary"`
	Departments       []DepartmentStats              `json:"departments"`
	PriorityWise      map[string]query.StatusSummary `json:"priority_wise"`
	SLABuckets        map[string]int64               `json:"sla_buckets"`
	Verticals         []VerticalCount                `json:"verticals"`
	Overdue           int64                          `json:"overdue"`
	GeneratedAt       time.Time                      `json:"generated_at"`
}

type Service struct {
	source Source
	cache  Cache
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewService builds the dashboard. cache may be nil.
func NewService(source Source, cache Cache, loc *time.Location, logger *zap.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{source: source, cache: cache, loc: loc, now: time.Now, logger: logger}
}

// Get serves cached stats when present. Cache failures fall through to the
// database.
func (s *Service) Get(ctx context.Context) (*Stats, error) {
	if s.cache != nil {
		var cached Stats
		ok, err := s.cache.Get(ctx, &cached)
		if err != nil {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		} else if ok {
			return &cached, nil
		}
	}

	stats, err := s.Compute(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, stats); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return stats, nil
}

func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}

func (s *Service) Compute(ctx context.Context) (*Stats, error) {
	now := s.now()

	statusRows, err := s.source.StatusCounts(ctx)
	if err != nil {
		return nil, err
	}
	summary := query.NewStatusSummary(statusRows)

	deptRows, err := s.source.DepartmentStatusCounts(ctx)
	if err != nil {
		return nil, err
	}
	priorityRows, err := s.source.PriorityStatusCounts(ctx)
	if err != nil {
		return nil, err
	}
	verticals, err := s.source.VerticalCounts(ctx)
	if err != nil {
		return nil, err
	}
	starts, err := s.source.StartDates(ctx)
	if err != nil {
		return nil, err
	}
	overdue, err := s.source.OverdueCount(ctx, now)
	if err != nil {
		return nil, err
	}

	return &Stats{
		TotalApplications: summary.Total(),
		StatusSummary:     summary,
		Departments:       departmentStats(deptRows),
		PriorityWise:      priorityWise(priorityRows),
		SLABuckets:        slaBuckets(starts, now, s.loc),
		Verticals:         verticals,
		Overdue:           overdue,
		GeneratedAt:       now,
	}, nil
}

// RefreshGauges recomputes the stats and publishes them as prometheus gauges.
func (s *Service) RefreshGauges(ctx context.Context) error {
	stats, err := s.Compute(ctx)
	if err != nil {
		return err
	}
	for status, count := range stats.StatusSummary {
		metrics.ApplicationsByStatus.WithLabelValues(status).Set(float64(count))
	}
	metrics.ApplicationsOverdue.Set(float64(stats.Overdue))
	return nil
}

func departmentStats(rows []DepartmentStatusCount) []DepartmentStats {
	byID := make(map[uint]*DepartmentStats)
	var order []uint
	for _, row := range rows {
		d, ok := byID[row.DepartmentID]
		if !ok {
			d = &DepartmentStats{DepartmentID: row.DepartmentID, Name: row.DepartmentName, Statuses: map[string]int64{}}
			for _, status := range model.DeptStatuses {
				d.Statuses[string(status)] = 0
			}
			byID[row.DepartmentID] = d
			order = append(order, row.DepartmentID)
		}
		d.Statuses[model.NormalizeStatus(row.Status)] += row.Count
	}

	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	out := make([]DepartmentStats, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}

func priorityWise(rows []PriorityStatusCount) map[string]query.StatusSummary {
	grouped := make(map[model.Priority][]query.StatusCount)
	for _, row := range rows {
		p := model.Priority(row.Priority)
		grouped[p] = append(grouped[p], query.StatusCount{Status: row.Status, Count: row.Count})
	}

	out := make(map[string]query.StatusSummary, 3)
	for _, p := range []model.Priority{model.PriorityLow, model.PriorityMedium, model.PriorityHigh} {
		out[strconv.Itoa(int(p))] = query.NewStatusSummary(grouped[p])
	}
	return out
}

func slaBuckets(starts []time.Time, now time.Time, loc *time.Location) map[string]int64 {
	out := make(map[string]int64, len(query.SLABuckets))
	for _, b := range query.SLABuckets {
		out[strconv.Itoa(int(b))] = 0
	}
	for i := range starts {
		if b := query.BucketFor(&starts[i], now, loc); b != query.SLANone {
			out[strconv.Itoa(int(b))]++
		}
	}
	return out
}
