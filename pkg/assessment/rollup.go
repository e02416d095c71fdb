package assessment

import "github.com/isassess/isassess/pkg/model"

type RollupResult struct {
	Status      model.AppStatus
	IsCompleted bool
	Changed     bool
}

// Rollup derives the application status from its department rows. Only the
// completed state is driven from departments: all rows completed completes the
// application, and a completed application whose rows regress drops back to
// in_progress. Any other status is left for explicit changes.
func Rollup(current model.AppStatus, isCompleted bool, departments []model.DeptStatus) RollupResult {
	next := RollupResult{Status: current, IsCompleted: isCompleted}

	switch {
	case allCompleted(departments):
		next.Status = model.AppCompleted
		next.IsCompleted = true
	case current == model.AppCompleted:
		next.Status = model.AppInProgress
		next.IsCompleted = false
	}

	next.Changed = next.Status != current || next.IsCompleted != isCompleted
	return next
}

func allCompleted(departments []model.DeptStatus) bool {
	if len(departments) == 0 {
		return false
	}
	for _, status := range departments {
		if status != model.DeptCompleted {
			return false
		}
	}
	return true
}

// AdvanceOnAnswer moves an association row that has not started yet into
// in_progress once the department records its first questionnaire answer.
// Decisions already taken by the department are kept.
func AdvanceOnAnswer(current model.DeptStatus) model.DeptStatus {
	if current.IsTerminal() {
		return current
	}
	return model.DeptInProgress
}
