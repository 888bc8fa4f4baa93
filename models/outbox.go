package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/bakery_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OutboxMessage is the transactional outbox row. Writers append it inside
// their own DB transaction; the dispatcher publishes to Pub/Sub after commit
// and flips the publish status. Nothing is sent on the write path itself.
type OutboxMessage struct {
	ID            int                 `gorm:"primary_key" json:"id"`
	BusinessId    string              `gorm:"index;size:100;not null" json:"business_id"`
	OccurredAt    time.Time           `gorm:"not null" json:"occurred_at"`
	ReferenceId   int                 `gorm:"index;not null" json:"reference_id"`
	ReferenceType EventReferenceType  `gorm:"index;size:50;not null" json:"reference_type"`
	Action        EventAction         `gorm:"size:20;not null" json:"action"`
	Payload       []byte              `gorm:"type:json" json:"payload"`
	PublishStatus OutboxPublishStatus `gorm:"index;size:20;not null;default:PENDING" json:"publish_status"`
	AttemptCount  int                 `gorm:"not null;default:0" json:"attempt_count"`
	LastError     string              `gorm:"type:text" json:"last_error"`
	PublishedAt   *time.Time          `json:"published_at"`
	CorrelationId string              `gorm:"size:64" json:"correlation_id"`
	CreatedAt     time.Time           `gorm:"autoCreateTime" json:"created_at"`
}

// PublishOperationsOutbox appends an outbox row inside the caller's DB
// transaction. It must only be called with a tx that also carries the domain
// write, so the event and the state change commit or roll back together.
func PublishOperationsOutbox(ctx context.Context, tx *gorm.DB, businessId string, occurredAt time.Time, refId int, refType EventReferenceType, action EventAction, payload interface{}) error {

	var payloadInByte []byte
	var err error
	if payload != nil {
		payloadInByte, err = json.Marshal(payload)
		if err != nil {
			return err
		}
	}

	record := OutboxMessage{
		BusinessId:    businessId,
		OccurredAt:    occurredAt,
		ReferenceId:   refId,
		ReferenceType: refType,
		Action:        action,
		Payload:       payloadInByte,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// FetchPendingOutboxMessages returns the oldest unpublished rows, skipping
// rows another dispatcher instance has already claimed.
func FetchPendingOutboxMessages(tx *gorm.DB, limit int) ([]*OutboxMessage, error) {
	var messages []*OutboxMessage
	err := tx.Where("publish_status = ?", OutboxPublishStatusPending).
		Order("id ASC").
		Limit(limit).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (m *OutboxMessage) MarkPublished(tx *gorm.DB) error {
	now := time.Now().UTC()
	return tx.Model(&OutboxMessage{}).Where("id = ?", m.ID).
		Updates(map[string]interface{}{
			"publish_status": OutboxPublishStatusPublished,
			"published_at":   now,
			"last_error":     "",
		}).Error
}

func (m *OutboxMessage) MarkFailed(tx *gorm.DB, publishErr error, maxAttempts int) error {
	status := OutboxPublishStatusPending
	if m.AttemptCount+1 >= maxAttempts {
		status = OutboxPublishStatusFailed
	}
	return tx.Model(&OutboxMessage{}).Where("id = ?", m.ID).
		Updates(map[string]interface{}{
			"publish_status": status,
			"attempt_count":  gorm.Expr("attempt_count + 1"),
			"last_error":     publishErr.Error(),
		}).Error
}
