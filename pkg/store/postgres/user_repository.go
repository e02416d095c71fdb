package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/isassess/isassess/pkg/apperr"
	"github.com/isassess/isassess/pkg/model"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return apperr.FromDB(r.db.WithContext(ctx).Create(user).Error, "user")
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&user).Error
	if err != nil {
		return nil, apperr.FromDB(err, "user")
	}
	return &user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, apperr.FromDB(err, "user")
	}
	return &user, nil
}

func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).Order("email").Find(&users).Error
	return users, apperr.FromDB(err, "users")
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", id).
		Update("last_login", at).Error
	return apperr.FromDB(err, "user")
}

// Recipients returns the enabled users holding one of the roles.
func (r *UserRepository) Recipients(ctx context.Context, roles ...model.Role) ([]model.User, error) {
	var users []model.User
	err := r.db.WithContext(ctx).
		Where("disabled = ? AND role IN ?", false, roles).
		Order("email").
		Find(&users).Error
	return users, apperr.FromDB(err, "users")
}

// UserProfileUpdate carries the fields an administrator may change. Nil
// fields are left as they are; a non-nil DepartmentIDs replaces every
// membership of the user.
type UserProfileUpdate struct {
	FullName      *string
	Role          *model.Role
	Active        *bool
	DepartmentIDs *[]uint
}

// UpdateProfile applies the update and the membership replacement in one
// transaction and returns the stored user.
func (r *UserRepository) UpdateProfile(ctx context.Context, id uuid.UUID, update UserProfileUpdate) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, "id = ?", id).Error; err != nil {
			return apperr.FromDB(err, "user")
		}

		updates := map[string]interface{}{}
		if update.FullName != nil {
			updates["full_name"] = strings.TrimSpace(*update.FullName)
		}
		if update.Role != nil {
			updates["role"] = *update.Role
		}
		if update.Active != nil {
			updates["disabled"] = !*update.Active
		}
		if len(updates) > 0 {
			if err := tx.Model(&user).Updates(updates).Error; err != nil {
				return apperr.FromDB(err, "user")
			}
		}

		if update.DepartmentIDs != nil {
			if err := replaceMemberships(tx, id, uniqueUints(*update.DepartmentIDs)); err != nil {
				return err
			}
		}
		return apperr.FromDB(tx.First(&user, "id = ?", id).Error, "user")
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func replaceMemberships(tx *gorm.DB, userID uuid.UUID, deptIDs []uint) error {
	if len(deptIDs) > 0 {
		var found int64
		if err := tx.Model(&model.Department{}).Where("id IN ?", deptIDs).Count(&found).Error; err != nil {
			return apperr.FromDB(err, "departments")
		}
		if int(found) != len(deptIDs) {
			return apperr.NotFound("one or more departments not found")
		}
	}

	remove := tx.Where("user_id = ?", userID)
	if len(deptIDs) > 0 {
		remove = remove.Where("department_id NOT IN ?", deptIDs)
	}
	if err := remove.Delete(&model.DepartmentUser{}).Error; err != nil {
		return apperr.FromDB(err, "department users")
	}
	if len(deptIDs) == 0 {
		return nil
	}

	rows := make([]model.DepartmentUser, 0, len(deptIDs))
	for _, deptID := range deptIDs {
		rows = append(rows, model.DepartmentUser{DepartmentID: deptID, UserID: userID, Role: "member"})
	}
	err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
	return apperr.FromDB(err, "department users")
}

func uniqueUints(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
