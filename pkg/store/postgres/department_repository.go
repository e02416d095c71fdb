package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/isassess/isassess/pkg/apperr"
	"github.com/isassess/isassess/pkg/model"
)

type DepartmentRepository struct {
	db *gorm.DB
}

func NewDepartmentRepository(db *gorm.DB) *DepartmentRepository {
	return &DepartmentRepository{db: db}
}

func (r *DepartmentRepository) Create(ctx context.Context, dept *model.Department) error {
	return apperr.FromDB(r.db.WithContext(ctx).Create(dept).Error, "department")
}

func (r *DepartmentRepository) List(ctx context.Context) ([]model.Department, error) {
	var depts []model.Department
	err := r.db.WithContext(ctx).Order("name").Find(&depts).Error
	return depts, apperr.FromDB(err, "departments")
}

func (r *DepartmentRepository) GetByID(ctx context.Context, id uint) (*model.Department, error) {
	var dept model.Department
	if err := r.db.WithContext(ctx).First(&dept, id).Error; err != nil {
		return nil, apperr.FromDB(err, "department")
	}
	return &dept, nil
}

// ForApplication returns the association rows of an application with their
// departments loaded.
func (r *DepartmentRepository) ForApplication(ctx context.Context, appID uuid.UUID) ([]model.ApplicationDepartment, error) {
	var rows []model.ApplicationDepartment
	err := r.db.WithContext(ctx).
		Preload("Department").
		Where("application_id = ?", appID).
		Order("department_id").
		Find(&rows).Error
	return rows, apperr.FromDB(err, "application departments")
}

// AddUsers assigns users to a department. Existing memberships are kept.
func (r *DepartmentRepository) AddUsers(ctx context.Context, deptID uint, userIDs []uuid.UUID, role string) error {
	if len(userIDs) == 0 {
		return apperr.Validation("user_ids must not be empty")
	}
	if role == "" {
		role = "member"
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&model.Department{}, deptID).Error; err != nil {
			return apperr.FromDB(err, "department")
		}

		var found int64
		if err := tx.Model(&model.User{}).Where("id IN ?", userIDs).Count(&found).Error; err != nil {
			return apperr.FromDB(err, "users")
		}
		if int(found) != len(uniqueUUIDs(userIDs)) {
			return apperr.NotFound("one or more users not found")
		}

		rows := make([]model.DepartmentUser, 0, len(userIDs))
		for _, id := range uniqueUUIDs(userIDs) {
			rows = append(rows, model.DepartmentUser{DepartmentID: deptID, UserID: id, Role: role})
		}
		err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
		return apperr.FromDB(err, "department users")
	})
}

func (r *DepartmentRepository) Members(ctx context.Context, deptID uint) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Joins("JOIN department_users AS du ON du.user_id = users.id").
		Where("du.department_id = ?", deptID).
		Order("users.email").
		Find(&users).Error
	return users, apperr.FromDB(err, "department users")
}

func (r *DepartmentRepository) IsMember(ctx context.Context, deptID uint, userID uuid.UUID) (bool, error) {
	return isDepartmentMember(r.db.WithContext(ctx), deptID, userID)
}

// IsMapped reports whether the application has an association row for the
// department.
func (r *DepartmentRepository) IsMapped(ctx context.Context, appID uuid.UUID, deptID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ApplicationDepartment{}).
		Where("application_id = ? AND department_id = ?", appID, deptID).
		Count(&count).Error
	if err != nil {
		return false, apperr.FromDB(err, "application department")
	}
	return count > 0, nil
}

func uniqueUUIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
