package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/isassess/isassess/pkg/apperr"
	"github.com/isassess/isassess/pkg/model"
)

type CommentRepository struct {
	db *gorm.DB
}

func NewCommentRepository(db *gorm.DB) *CommentRepository {
	return &CommentRepository{db: db}
}

func (r *CommentRepository) Create(ctx context.Context, comment *model.Comment) error {
	if strings.TrimSpace(comment.Content) == "" {
		return apperr.Validation("content is required")
	}
	if comment.ID == uuid.Nil {
		comment.ID = uuid.New()
	}
	return apperr.FromDB(r.db.WithContext(ctx).Omit("Author", "Evidences").Create(comment).Error, "comment")
}

func (r *CommentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Comment, error) {
	var comment model.Comment
	if err := r.db.WithContext(ctx).Preload("Author").First(&comment, "id = ?", id).Error; err != nil {
		return nil, apperr.FromDB(err, "comment")
	}
	return &comment, nil
}

func (r *CommentRepository) UpdateContent(ctx context.Context, id uuid.UUID, content string) (*model.Comment, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperr.Validation("content is required")
	}
	result := r.db.WithContext(ctx).Model(&model.Comment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"content": content, "updated_at": time.Now()})
	if result.Error != nil {
		return nil, apperr.FromDB(result.Error, "comment")
	}
	if result.RowsAffected == 0 {
		return nil, apperr.NotFound("comment not found")
	}
	return r.GetByID(ctx, id)
}

func (r *CommentRepository) withRelations(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Author").
		Preload("Evidences").
		Order("created_at DESC")
}

func (r *CommentRepository) ByApplication(ctx context.Context, appID uuid.UUID) ([]model.Comment, error) {
	var comments []model.Comment
	err := r.withRelations(ctx).Where("application_id = ?", appID).Find(&comments).Error
	return comments, apperr.FromDB(err, "comments")
}

func (r *CommentRepository) ByApplicationDepartment(ctx context.Context, appID uuid.UUID, deptID uint) ([]model.Comment, error) {
	var comments []model.Comment
	err := r.withRelations(ctx).
		Where("application_id = ? AND department_id = ?", appID, deptID).
		Find(&comments).Error
	return comments, apperr.FromDB(err, "comments")
}

// LatestPerDepartment returns the newest comment of every department that
// commented on the application.
func (r *CommentRepository) LatestPerDepartment(ctx context.Context, appID uuid.UUID) ([]model.Comment, error) {
	latest := r.db.Model(&model.Comment{}).
		Select("DISTINCT ON (department_id) id").
		Where("application_id = ?", appID).
		Order("department_id, created_at DESC")

	var comments []model.Comment
	err := r.db.WithContext(ctx).
		Preload("Author").
		Where("id IN (?)", latest).
		Order("department_id").
		Find(&comments).Error
	return comments, apperr.FromDB(err, "comments")
}
