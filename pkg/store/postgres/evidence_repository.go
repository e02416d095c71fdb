package postgres

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/isassess/isassess/pkg/apperr"
	"github.com/isassess/isassess/pkg/model"
)

type EvidenceRepository struct {
	db *gorm.DB
}

func NewEvidenceRepository(db *gorm.DB) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

func (r *EvidenceRepository) Create(ctx context.Context, evidence *model.Evidence) error {
	if evidence.ID == uuid.Nil {
		evidence.ID = uuid.New()
	}
	return apperr.FromDB(r.db.WithContext(ctx).Create(evidence).Error, "evidence")
}

// EvidenceFilter narrows an evidence listing. Nil fields are ignored.
type EvidenceFilter struct {
	ApplicationID uuid.UUID
	DepartmentID  *uint
	CommentID     *uuid.UUID
}

func (r *EvidenceRepository) List(ctx context.Context, f EvidenceFilter) ([]model.Evidence, error) {
	db := r.db.WithContext(ctx).Where("application_id = ?", f.ApplicationID)
	if f.DepartmentID != nil {
		db = db.Where("department_id = ?", *f.DepartmentID)
	}
	if f.CommentID != nil {
		db = db.Where("comment_id = ?", *f.CommentID)
	}

	var evidences []model.Evidence
	err := db.Order("created_at DESC").Find(&evidences).Error
	return evidences, apperr.FromDB(err, "evidences")
}

// CommentBelongsTo reports whether the comment was made on the application,
// and on the department when one is given.
func (r *EvidenceRepository) CommentBelongsTo(ctx context.Context, commentID, appID uuid.UUID, deptID *uint) (bool, error) {
	db := r.db.WithContext(ctx).Model(&model.Comment{}).Where("id = ? AND application_id = ?", commentID, appID)
	if deptID != nil {
		db = db.Where("department_id = ?", *deptID)
	}
	var count int64
	if err := db.Count(&count).Error; err != nil {
		return false, apperr.FromDB(err, "comment")
	}
	return count > 0, nil
}
