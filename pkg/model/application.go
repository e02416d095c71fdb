package model

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Application struct {
	ID             uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name           string    `gorm:"not null;uniqueIndex"`
	Description    string
	Environment    string
	Region         string
	OwnerName      string
	VendorCompany  string
	InfraHost      string
	AppTech        string
	Vertical       string
	AppURL         string `gorm:"column:app_url"`
	UserType       string
	DataType       string
	AppType        string
	IsAppAI        bool       `gorm:"column:is_app_ai;default:false"`
	TicketID       string     `gorm:"index"`
	ImitraTicketID string     `gorm:"index"`
	TitanSPOC      string     `gorm:"column:titan_spoc"`
	Status         AppStatus  `gorm:"type:varchar(50);default:'new_request';index"`
	AppPriority    Priority   `gorm:"default:2"`
	IsActive       bool       `gorm:"default:true;index"`
	IsCompleted    bool       `gorm:"default:false"`
	CreatorID      *uuid.UUID `gorm:"type:uuid"`
	OwnerID        *uuid.UUID `gorm:"type:uuid"`
	QuestionSetID  *uint
	StartedAt      *time.Time
	CompletedAt    *time.Time
	DueDate        *time.Time
	Departments    []ApplicationDepartment `gorm:"foreignKey:ApplicationID"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ApplicationDepartment is the per-(application, department) association
// carrying the department's own review status.
type ApplicationDepartment struct {
	ID             uint        `gorm:"primaryKey"`
	ApplicationID  uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:uq_app_dept"`
	DepartmentID   uint        `gorm:"not null;uniqueIndex:uq_app_dept"`
	Department     *Department `gorm:"foreignKey:DepartmentID"`
	Status         DeptStatus  `gorm:"type:varchar(50);default:'yet_to_connect'"`
	AppCategory    string
	CategoryStatus string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (ApplicationDepartment) TableName() string {
	return "application_departments"
}

// ValidateAppName rejects names that cannot be used verbatim as a storage key
// segment.
func ValidateAppName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("application name is required")
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return errors.New(`application name must not contain "/", "\" or ".."`)
	}
	return nil
}
