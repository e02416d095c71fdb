package query

import "github.com/isassess/isassess/pkg/model"

// StatusCount is one row of a grouped status query.
type StatusCount struct {
	Status string
	Count  int64
}

// StatusSummary counts applications per normalized status. Every known
// status is present, and statuses outside the vocabulary are kept under
// their normalized name.
type StatusSummary map[string]int64

func NewStatusSummary(rows []StatusCount) StatusSummary {
	summary := StatusSummary{}
	for _, status := range model.AppStatuses {
		summary[string(status)] = 0
	}
	for _, row := range rows {
		summary[model.NormalizeStatus(row.Status)] += row.Count
	}
	return summary
}

func (s StatusSummary) Total() int64 {
	var total int64
	for _, n := range s {
		total += n
	}
	return total
}

// Result is a page of applications with its counts.
type Result[T any] struct {
	Items           []T
	TotalCount      int64
	FilteredCount   int64
	AppsSummary     StatusSummary
	FilteredSummary StatusSummary
}
