package workflow

import (
	"context"
	"time"

	"bitbucket.org/mmdatafocus/bakery_backend/config"
	"bitbucket.org/mmdatafocus/bakery_backend/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OutboxDispatcher publishes committed outbox rows to Pub/Sub. The write
// paths never publish directly; this loop is the only bridge between the
// database and the broker, so a crashed publish can always be retried.
type OutboxDispatcher struct {
	DB           *gorm.DB
	Logger       *logrus.Logger
	DispatcherID string

	BatchSize    int
	PollInterval time.Duration
	MaxAttempts  int
}

func NewOutboxDispatcher(db *gorm.DB, logger *logrus.Logger) *OutboxDispatcher {
	return &OutboxDispatcher{
		DB:           db,
		Logger:       logger,
		DispatcherID: uuid.NewString(),
		BatchSize:    50,
		PollInterval: 500 * time.Millisecond,
		MaxAttempts:  20,
	}
}

func (d *OutboxDispatcher) Run(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.dispatchOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.PollInterval):
		}
	}
}

func (d *OutboxDispatcher) dispatchOnce(ctx context.Context) {
	db := d.DB
	if db == nil {
		return
	}

	claimed, err := models.FetchPendingOutboxMessages(db.WithContext(ctx), d.BatchSize)
	if err != nil {
		config.LogError(d.Logger, "outboxDispatcher.go", "dispatchOnce", "claim batch", d.DispatcherID, err)
		return
	}

	for _, msg := range claimed {
		d.publishOne(ctx, db, msg)
	}
}

func (d *OutboxDispatcher) publishOne(ctx context.Context, db *gorm.DB, msg *models.OutboxMessage) {
	event := config.EventMessage{
		ID:            msg.ID,
		BusinessId:    msg.BusinessId,
		OccurredAt:    msg.OccurredAt,
		ReferenceId:   msg.ReferenceId,
		ReferenceType: string(msg.ReferenceType),
		Action:        string(msg.Action),
		Payload:       msg.Payload,
		CorrelationId: msg.CorrelationId,
	}

	if _, err := config.PublishOperationsEvent(ctx, event); err != nil {
		config.LogError(d.Logger, "outboxDispatcher.go", "publishOne", "publish", msg.ID, err)
		if markErr := msg.MarkFailed(db, err, d.MaxAttempts); markErr != nil {
			config.LogError(d.Logger, "outboxDispatcher.go", "publishOne", "mark failed", msg.ID, markErr)
		}
		return
	}

	if err := msg.MarkPublished(db); err != nil {
		// The event went out but the row stayed pending; the next tick will
		// publish a duplicate, which consumers must tolerate.
		config.LogError(d.Logger, "outboxDispatcher.go", "publishOne", "mark published", msg.ID, err)
	}
}
