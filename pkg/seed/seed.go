// Package seed loads departments and questionnaires from a JSON file.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/isassess/isassess/pkg/model"
)

const schema = `{
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "departments": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "description": {"type": "string"}
        }
      }
    },
    "question_sets": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["name", "questions"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "questions": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["text"],
              "properties": {
                "text": {"type": "string", "minLength": 1},
                "is_high": {"type": "boolean"},
                "is_medium": {"type": "boolean"},
                "is_default": {"type": "boolean"}
              }
            }
          }
        }
      }
    },
    "dept_questionnaires": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["department", "name", "questions"],
        "properties": {
          "department": {"type": "string", "minLength": 1},
          "name": {"type": "string", "minLength": 1},
          "questions": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["text"],
              "properties": {
                "text": {"type": "string", "minLength": 1},
                "is_mandatory": {"type": "boolean"},
                "is_default": {"type": "boolean"}
              }
            }
          }
        }
      }
    }
  }
}`

type File struct {
	Departments        []Department        `json:"departments"`
	QuestionSets       []QuestionSet       `json:"question_sets"`
	DeptQuestionnaires []DeptQuestionnaire `json:"dept_questionnaires"`
}

type Department struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type QuestionSet struct {
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

type Question struct {
	Text      string `json:"text"`
	IsHigh    bool   `json:"is_high"`
	IsMedium  bool   `json:"is_medium"`
	IsDefault bool   `json:"is_default"`
}

type DeptQuestionnaire struct {
	Department string         `json:"department"`
	Name       string         `json:"name"`
	Questions  []DeptQuestion `json:"questions"`
}

type DeptQuestion struct {
	Text        string `json:"text"`
	IsMandatory bool   `json:"is_mandatory"`
	IsDefault   bool   `json:"is_default"`
}

// Parse validates data against the seed schema before decoding it.
func Parse(data []byte) (*File, error) {
	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(schema), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return nil, fmt.Errorf("seed file validation failed: %s", strings.Join(errs, "; "))
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

type Departments interface {
	Create(ctx context.Context, dept *model.Department) error
	List(ctx context.Context) ([]model.Department, error)
}

type Questionnaires interface {
	CreateQuestionSet(ctx context.Context, set *model.QuestionSet) error
	AddQuestions(ctx context.Context, setID uint, questions []model.Question) ([]model.Question, error)
	CreateDeptQuestionSet(ctx context.Context, set *model.DeptQuestionSet) error
	AddDeptQuestion(ctx context.Context, deptID uint, question *model.DeptQuestion) error
}

// Apply creates what the file describes. Departments that already exist by
// name are reused rather than created again.
func Apply(ctx context.Context, f *File, departments Departments, questionnaires Questionnaires, logger *zap.Logger) error {
	existing, err := departments.List(ctx)
	if err != nil {
		return err
	}
	byName := make(map[string]uint, len(existing))
	for _, d := range existing {
		byName[strings.ToLower(d.Name)] = d.ID
	}

	for _, d := range f.Departments {
		if _, ok := byName[strings.ToLower(d.Name)]; ok {
			logger.Info("department exists, skipping", zap.String("name", d.Name))
			continue
		}
		dept := &model.Department{Name: d.Name, Description: d.Description, IsActive: true}
		if err := departments.Create(ctx, dept); err != nil {
			return fmt.Errorf("department %q: %w", d.Name, err)
		}
		byName[strings.ToLower(d.Name)] = dept.ID
		logger.Info("department created", zap.String("name", d.Name), zap.Uint("id", dept.ID))
	}

	for _, s := range f.QuestionSets {
		set := &model.QuestionSet{Name: s.Name, IsActive: true}
		if err := questionnaires.CreateQuestionSet(ctx, set); err != nil {
			return fmt.Errorf("question set %q: %w", s.Name, err)
		}
		questions := make([]model.Question, 0, len(s.Questions))
		for _, q := range s.Questions {
			questions = append(questions, model.Question{
				Text:      q.Text,
				IsHigh:    q.IsHigh,
				IsMedium:  q.IsMedium,
				IsDefault: q.IsDefault,
			})
		}
		if _, err := questionnaires.AddQuestions(ctx, set.ID, questions); err != nil {
			return fmt.Errorf("question set %q: %w", s.Name, err)
		}
		logger.Info("question set created", zap.String("name", s.Name), zap.Int("questions", len(questions)))
	}

	for _, dq := range f.DeptQuestionnaires {
		deptID, ok := byName[strings.ToLower(dq.Department)]
		if !ok {
			return fmt.Errorf("department questionnaire %q: unknown department %q", dq.Name, dq.Department)
		}
		if err := questionnaires.CreateDeptQuestionSet(ctx, &model.DeptQuestionSet{DepartmentID: deptID, Name: dq.Name}); err != nil {
			return fmt.Errorf("department questionnaire %q: %w", dq.Name, err)
		}
		for _, q := range dq.Questions {
			question := &model.DeptQuestion{Text: q.Text, IsMandatory: q.IsMandatory, IsDefault: q.IsDefault}
			if err := questionnaires.AddDeptQuestion(ctx, deptID, question); err != nil {
				return fmt.Errorf("department questionnaire %q: %w", dq.Name, err)
			}
		}
		logger.Info("department questionnaire created", zap.String("department", dq.Department), zap.Int("questions", len(dq.Questions)))
	}
	return nil
}
