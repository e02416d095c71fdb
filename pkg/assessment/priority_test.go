package assessment

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/isassess/isassess/pkg/model"
)

func answer(s string) *string {
	return &s
}

func TestEvaluate(t *testing.T) {
	evaluator := NewEvaluator(true)

	tests := []struct {
		name      string
		questions []ScoredQuestion
		want      model.Priority
	}{
		{
			name: "all high answered yes",
			questions: []ScoredQuestion{
				{QuestionID: 1, IsHigh: true, Answer: answer("Yes")},
				{QuestionID: 2, IsHigh: true, Answer: answer(" yes ")},
				{QuestionID: 3, IsMedium: true, Answer: answer("no")},
			},
			want: model.PriorityHigh,
		},
		{
			name: "high unanswered falls through to medium",
			questions: []ScoredQuestion{
				{QuestionID: 1, IsHigh: true, Answer: answer("YES")},
				{QuestionID: 2, IsHigh: true},
				{QuestionID: 3, IsMedium: true, Answer: answer("yes")},
			},
			want: model.PriorityMedium,
		},
		{
			name: "nothing satisfied",
			questions: []ScoredQuestion{
				{QuestionID: 1, IsHigh: true, Answer: answer("no")},
				{QuestionID: 2, IsMedium: true, Answer: answer("maybe")},
			},
			want: model.PriorityLow,
		},
		{
			name: "no answers at all",
			questions: []ScoredQuestion{
				{QuestionID: 1, IsHigh: true},
				{QuestionID: 2, IsMedium: true},
			},
			want: model.PriorityLow,
		},
		{
			name: "yes with surrounding text is not affirmative",
			questions: []ScoredQuestion{
				{QuestionID: 1, IsHigh: true, Answer: answer("yes, partially")},
				{QuestionID: 2, IsMedium: true, Answer: answer("y")},
			},
			want: model.PriorityLow,
		},
		{
			name: "question in both partitions counts for both",
			questions: []ScoredQuestion{
				{QuestionID: 1, IsHigh: true, IsMedium: true, Answer: answer("no")},
				{QuestionID: 2, IsMedium: true, Answer: answer("yes")},
			},
			want: model.PriorityLow,
		},
		{
			name: "unflagged questions are ignored",
			questions: []ScoredQuestion{
				{QuestionID: 1, IsHigh: true, Answer: answer("yes")},
				{QuestionID: 2, Answer: answer("no")},
			},
			want: model.PriorityHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, evaluator.Evaluate(tt.questions))
		})
	}
}

func TestEvaluateEmptyPartitions(t *testing.T) {
	// An empty tier is vacuously satisfied by default.
	assert.Equal(t, model.PriorityHigh, NewEvaluator(true).Evaluate(nil))
	assert.Equal(t, model.PriorityHigh, NewEvaluator(true).Evaluate([]ScoredQuestion{
		{QuestionID: 1, IsMedium: true, Answer: answer("no")},
	}))

	strict := NewEvaluator(false)
	assert.Equal(t, model.PriorityLow, strict.Evaluate(nil))
	assert.Equal(t, model.PriorityMedium, strict.Evaluate([]ScoredQuestion{
		{QuestionID: 1, IsMedium: true, Answer: answer("Yes")},
	}))
}

func TestEvaluateAlwaysInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	answers := []string{"yes", "no", "Yes ", "", "n/a"}

	for _, evaluator := range []Evaluator{NewEvaluator(true), NewEvaluator(false)} {
		for i := 0; i < 500; i++ {
			questions := make([]ScoredQuestion, rng.Intn(6))
			for j := range questions {
				questions[j] = ScoredQuestion{QuestionID: uint(j + 1), IsHigh: rng.Intn(2) == 0, IsMedium: rng.Intn(2) == 0}
				if rng.Intn(4) > 0 {
					questions[j].Answer = answer(answers[rng.Intn(len(answers))])
				}
			}
			assert.True(t, evaluator.Evaluate(questions).Valid())
		}
	}
}

func TestIsAffirmative(t *testing.T) {
	assert.True(t, IsAffirmative(answer("yes")))
	assert.True(t, IsAffirmative(answer("\tYES\n")))
	assert.False(t, IsAffirmative(answer("yess")))
	assert.False(t, IsAffirmative(answer("")))
	assert.False(t, IsAffirmative(nil))
}
