package query

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/isassess/isassess/pkg/apperr"
	"github.com/isassess/isassess/pkg/model"
)

const (
	DefaultSortBy   = "started_at"
	DefaultPage     = 1
	DefaultPageSize = 15
	MaxPageSize     = 200
)

// SearchColumns maps a search_by value to the columns it matches.
var SearchColumns = map[string][]string{
	"name":           {"name"},
	"environment":    {"environment"},
	"region":         {"region"},
	"owner_name":     {"owner_name"},
	"vendor_company": {"vendor_company"},
	"vertical":       {"vertical"},
	"ticket_id":      {"ticket_id", "imitra_ticket_id"},
}

var SortColumns = map[string]bool{
	"name":           true,
	"created_at":     true,
	"updated_at":     true,
	"started_at":     true,
	"completed_at":   true,
	"due_date":       true,
	"app_priority":   true,
	"status":         true,
	"vertical":       true,
	"vendor_company": true,
	"environment":    true,
	"region":         true,
}

// Filter is a validated listing request. Zero values mean "no filter".
type Filter struct {
	Statuses     []string
	DepartmentID *uint
	DeptStatuses []string
	Priorities   []int
	Vertical     string
	SLA          SLABucket
	Search       string
	SearchBy     string
	SortBy       string
	SortDesc     bool
	Page         int
	PageSize     int
}

func (f Filter) Offset() int {
	return (f.Page - 1) * f.PageSize
}

func (f Filter) SearchColumns() []string {
	return SearchColumns[f.SearchBy]
}

// HasDepartmentFilter is true when both halves of the department pair are set.
func (f Filter) HasDepartmentFilter() bool {
	return f.DepartmentID != nil && len(f.DeptStatuses) > 0
}

// Active reports whether any optional filter narrows the active set.
func (f Filter) Active() bool {
	return len(f.Statuses) > 0 ||
		f.HasDepartmentFilter() ||
		len(f.Priorities) > 0 ||
		f.Vertical != "" ||
		f.SLA != SLANone ||
		f.Search != ""
}

func isUnset(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "null", "undefined", "all":
		return true
	}
	return false
}

func value(values url.Values, key string) string {
	v := values.Get(key)
	if isUnset(v) {
		return ""
	}
	return strings.TrimSpace(v)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if isUnset(part) {
			continue
		}
		out = append(out, strings.TrimSpace(part))
	}
	return out
}

func ParseListParams(values url.Values) (Filter, error) {
	f := Filter{
		SortBy:   DefaultSortBy,
		SortDesc: true,
		Page:     DefaultPage,
		PageSize: DefaultPageSize,
	}

	if v := value(values, "sort_by"); v != "" {
		if !SortColumns[v] {
			return Filter{}, apperr.Validation("invalid sort_by %q", v)
		}
		f.SortBy = v
	}

	if v := value(values, "sort_order"); v != "" {
		switch strings.ToLower(v) {
		case "asc":
			f.SortDesc = false
		case "desc":
			f.SortDesc = true
		default:
			return Filter{}, apperr.Validation("sort_order must be asc or desc")
		}
	}

	if v := value(values, "page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return Filter{}, apperr.Validation("page must be a positive integer")
		}
		f.Page = page
	}

	if v := value(values, "page_size"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size < 1 || size > MaxPageSize {
			return Filter{}, apperr.Validation("page_size must be between 1 and %d", MaxPageSize)
		}
		f.PageSize = size
	}

	if v := value(values, "search"); v != "" {
		searchBy := value(values, "search_by")
		if searchBy == "" {
			searchBy = "name"
		}
		if _, ok := SearchColumns[searchBy]; !ok {
			return Filter{}, apperr.Validation("invalid search_by %q", searchBy)
		}
		f.Search = v
		f.SearchBy = searchBy
	}

	for _, s := range splitList(values.Get("status")) {
		f.Statuses = append(f.Statuses, model.NormalizeStatus(s))
	}

	if v := value(values, "dept_filter_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil || id == 0 {
			return Filter{}, apperr.Validation("dept_filter_id must be a positive integer")
		}
		deptID := uint(id)
		f.DepartmentID = &deptID
	}

	for _, s := range splitList(values.Get("dept_status")) {
		f.DeptStatuses = append(f.DeptStatuses, model.NormalizeStatus(s))
	}

	for _, s := range splitList(values.Get("app_priority")) {
		p, err := strconv.Atoi(s)
		if err != nil || !model.Priority(p).Valid() {
			return Filter{}, apperr.Validation("app_priority values must be 1, 2 or 3")
		}
		f.Priorities = append(f.Priorities, p)
	}

	f.Vertical = value(values, "vertical")

	if v := value(values, "sla_filter"); v != "" {
		bucket, err := ParseSLABucket(v)
		if err != nil {
			return Filter{}, apperr.Validation("%s", err.Error())
		}
		f.SLA = bucket
	}

	return f, nil
}
