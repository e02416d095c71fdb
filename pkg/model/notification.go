package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	OutboxStatusPending   = "pending"
	OutboxStatusPublished = "published"
	OutboxStatusFailed    = "failed"
)

const NotificationApplicationCreated = "application_created"

// PayloadDeliveredTo lists the recipients an earlier attempt already reached.
const PayloadDeliveredTo = "delivered_to"

// NotificationEvent is an outbox row written in the same transaction as the
// change it announces and delivered later by the relay.
type NotificationEvent struct {
	EventID     uuid.UUID         `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	EventType   string            `gorm:"not null"`
	Payload     datatypes.JSONMap `gorm:"type:jsonb;not null"`
	Status      string            `gorm:"not null;default:'pending'"`
	Attempts    int               `gorm:"not null;default:0"`
	LastError   string
	CreatedAt   time.Time `gorm:"autoCreateTime;not null"`
	PublishedAt *time.Time
}

func (NotificationEvent) TableName() string {
	return "notification_outbox"
}
