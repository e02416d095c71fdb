package model

import (
	"time"

	"github.com/google/uuid"
)

// QuestionSet is a global criticality questionnaire. New applications are
// bound to the most recently created active set.
type QuestionSet struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	Name      string     `gorm:"not null" json:"name"`
	IsActive  bool       `gorm:"default:true" json:"is_active"`
	Questions []Question `gorm:"foreignKey:QuestionSetID" json:"questions,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

type Question struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	QuestionSetID  uint      `gorm:"not null;index" json:"question_set_id"`
	SequenceNumber int       `json:"sequence_number"`
	Text           string    `gorm:"not null" json:"text"`
	IsHigh         bool      `gorm:"default:false" json:"is_high"`
	IsMedium       bool      `gorm:"default:false" json:"is_medium"`
	IsDefault      bool      `gorm:"default:false" json:"is_default"`
	CreatedAt      time.Time `json:"created_at"`
}

type ApplicationAnswer struct {
	ID            uint      `gorm:"primaryKey"`
	ApplicationID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_app_question"`
	QuestionID    uint      `gorm:"not null;uniqueIndex:uq_app_question"`
	AnswerText    string
	AuthorID      *uuid.UUID `gorm:"type:uuid"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type DeptQuestionSet struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	DepartmentID uint           `gorm:"not null;uniqueIndex" json:"department_id"`
	Name         string         `gorm:"not null" json:"name"`
	Questions    []DeptQuestion `gorm:"foreignKey:QuestionSetID" json:"questions,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

type DeptQuestion struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	QuestionSetID  uint             `gorm:"not null;index" json:"question_set_id"`
	QuestionSet    *DeptQuestionSet `gorm:"foreignKey:QuestionSetID" json:"-"`
	SequenceNumber int              `json:"sequence_number"`
	Text           string           `gorm:"not null" json:"text"`
	IsMandatory    bool             `gorm:"default:false" json:"is_mandatory"`
	IsDefault      bool             `gorm:"default:false" json:"is_default"`
	CreatedAt      time.Time        `json:"created_at"`
}

type AppDeptAnswer struct {
	ID             uint      `gorm:"primaryKey"`
	ApplicationID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_app_dept_question"`
	DepartmentID   uint      `gorm:"not null;uniqueIndex:uq_app_dept_question"`
	DeptQuestionID uint      `gorm:"not null;uniqueIndex:uq_app_dept_question"`
	AnswerText     string
	AuthorID       *uuid.UUID `gorm:"type:uuid"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
