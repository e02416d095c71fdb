package model

import (
	"time"

	"github.com/google/uuid"
)

type Comment struct {
	ID            uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Content       string     `gorm:"not null" json:"content"`
	AuthorID      uuid.UUID  `gorm:"type:uuid;not null" json:"author_id"`
	Author        *User      `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	ApplicationID uuid.UUID  `gorm:"type:uuid;not null;index" json:"application_id"`
	DepartmentID  uint       `gorm:"not null;index" json:"department_id"`
	Evidences     []Evidence `gorm:"foreignKey:CommentID" json:"evidences,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type Evidence struct {
	ID            uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ApplicationID uuid.UUID  `gorm:"type:uuid;not null;index"`
	DepartmentID  *uint      `gorm:"index"`
	CommentID     *uuid.UUID `gorm:"type:uuid;index"`
	UploaderID    uuid.UUID  `gorm:"type:uuid;not null"`
	EvidencePath  string     `gorm:"not null"`
	Severity      Severity   `gorm:"type:varchar(20);default:'medium'"`
	CreatedAt     time.Time
}

func (Evidence) TableName() string {
	return "application_evidences"
}
