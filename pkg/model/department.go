package model

import (
	"time"

	"github.com/google/uuid"
)

type Department struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"not null;uniqueIndex" json:"name"`
	Description string    `json:"description"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type DepartmentUser struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	DepartmentID uint      `gorm:"not null;uniqueIndex:uq_dept_user" json:"department_id"`
	UserID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uq_dept_user" json:"user_id"`
	Role         string    `gorm:"default:'member'" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

func (DepartmentUser) TableName() string {
	return "department_users"
}
