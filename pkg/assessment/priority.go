package assessment

import (
	"strings"

	"github.com/isassess/isassess/pkg/model"
)

// ScoredQuestion is a question of an application's question set joined with
// the application's answer to it, if any.
type ScoredQuestion struct {
	QuestionID uint
	IsHigh     bool
	IsMedium   bool
	Answer     *string
}

type Evaluator struct {
	// EmptyPartitionSatisfied decides whether a tier with no questions counts
	// as satisfied. When true, a set without high questions scores 3.
	EmptyPartitionSatisfied bool
}

func NewEvaluator(emptyPartitionSatisfied bool) Evaluator {
	return Evaluator{EmptyPartitionSatisfied: emptyPartitionSatisfied}
}

func (e Evaluator) Evaluate(questions []ScoredQuestion) model.Priority {
	var high, medium []ScoredQuestion
	for _, q := range questions {
		if q.IsHigh {
			high = append(high, q)
		}
		if q.IsMedium {
			medium = append(medium, q)
		}
	}

	switch {
	case e.satisfied(high):
		return model.PriorityHigh
	case e.satisfied(medium):
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}

func (e Evaluator) satisfied(partition []ScoredQuestion) bool {
	if len(partition) == 0 {
		return e.EmptyPartitionSatisfied
	}
	for _, q := range partition {
		if !IsAffirmative(q.Answer) {
			return false
		}
	}
	return true
}

func IsAffirmative(answer *string) bool {
	return answer != nil && strings.EqualFold(strings.TrimSpace(*answer), "yes")
}
