package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/isassess/isassess/pkg/apperr"
	"github.com/isassess/isassess/pkg/model"
)

type OutboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) ListPending(ctx context.Context, limit int) ([]model.NotificationEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var events []model.NotificationEvent
	err := r.db.WithContext(ctx).
		Where("status = ?", model.OutboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error
	return events, apperr.FromDB(err, "notifications")
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, eventID uuid.UUID, publishedAt time.Time) error {
	updates := map[string]interface{}{
		"status":       model.OutboxStatusPublished,
		"published_at": publishedAt,
		"attempts":     gorm.Expr("attempts + 1"),
		"last_error":   "",
	}
	return r.update(ctx, eventID, updates)
}

// MarkAttempt records a failed delivery. The row stays pending until
// maxAttempts is reached and is then marked failed. deliveredTo is stored in
// the payload so retries skip recipients already reached.
func (r *OutboxRepository) MarkAttempt(ctx context.Context, eventID uuid.UUID, cause error, maxAttempts int, deliveredTo []string) error {
	updates := map[string]interface{}{
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": cause.Error(),
		"status": gorm.Expr("CASE WHEN attempts + 1 >= ? THEN ? ELSE status END",
			maxAttempts, model.OutboxStatusFailed),
	}
	if len(deliveredTo) > 0 {
		raw, err := json.Marshal(deliveredTo)
		if err != nil {
			return apperr.Internal(err, "encode delivered recipients")
		}
		updates["payload"] = gorm.Expr("jsonb_set(payload, ?::text[], ?::jsonb)",
			"{"+model.PayloadDeliveredTo+"}", string(raw))
	}
	return r.update(ctx, eventID, updates)
}

func (r *OutboxRepository) update(ctx context.Context, eventID uuid.UUID, updates map[string]interface{}) error {
	err := r.db.WithContext(ctx).
		Model(&model.NotificationEvent{}).
		Where("event_id = ?", eventID).
		Updates(updates).Error
	return apperr.FromDB(err, "notification")
}
