package events

import (
	"context"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/stamin-up/service-requests/pkg/domain"
	"github.com/stamin-up/service-requests/pkg/kafka"
)

// closeReportRetries bounds how often a close is retried after losing an
// optimistic-version race to a concurrent mutation.
const closeReportRetries = 3

// ReportModerator closes reports in response to moderation decisions.
type ReportModerator interface {
	ResolveReport(ctx context.Context, requestID, reportID uuid.UUID) error
	DismissReport(ctx context.Context, requestID, reportID uuid.UUID) error
}

// ModerationEventConsumer listens to moderation events and closes reports.
type ModerationEventConsumer struct {
	consumer  *kafka.Consumer
	moderator ReportModerator
	logger    *zap.Logger
}

// NewModerationEventConsumer creates a new ModerationEventConsumer.
func NewModerationEventConsumer(
	brokers []string,
	groupID string,
	moderator ReportModerator,
	logger *zap.Logger,
) *ModerationEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, TopicModerationEvents, logger)
	return &ModerationEventConsumer{
		consumer:  consumer,
		moderator: moderator,
		logger:    logger,
	}
}

// Start begins consuming moderation events. This blocks until the context is cancelled.
func (c *ModerationEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *ModerationEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *ModerationEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from moderation topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case ReportResolved, ReportDismissed:
		return c.handleReportClosed(ctx, cloudEvent)
	default:
		c.logger.Debug("ignoring unhandled moderation event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *ModerationEventConsumer) handleReportClosed(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	var evt ReportModerationEvent
	if err := cloudEvent.ParseData(&evt); err != nil {
		c.logger.Error("failed to parse ReportModerationEvent data",
			zap.Error(err),
		)
		return nil // Don't retry malformed data
	}

	c.logger.Info("processing report moderation event",
		zap.String("type", cloudEvent.Type),
		zap.String("request_id", evt.RequestID.String()),
		zap.String("report_id", evt.ReportID.String()),
	)

	var err error
	for attempt := 0; attempt <= closeReportRetries; attempt++ {
		if cloudEvent.Type == ReportResolved {
			err = c.moderator.ResolveReport(ctx, evt.RequestID, evt.ReportID)
		} else {
			err = c.moderator.DismissReport(ctx, evt.RequestID, evt.ReportID)
		}
		// Conflict means another writer bumped the version between our read
		// and write. The moderator re-reads on every call, so retry.
		if !domain.IsCode(err, domain.CodeConflict) {
			break
		}
	}

	switch {
	case err == nil:
		return nil
	case domain.IsCode(err, domain.CodeNotFound), domain.IsCode(err, domain.CodeInvalidState):
		// Unknown request or already-closed report: the topic is
		// at-least-once, so duplicates land here. Ack, don't retry.
		c.logger.Warn("ignoring non-retryable moderation event",
			zap.String("request_id", evt.RequestID.String()),
			zap.String("report_id", evt.ReportID.String()),
			zap.Error(err),
		)
		return nil
	default:
		c.logger.Error("failed to close report after moderation event",
			zap.String("request_id", evt.RequestID.String()),
			zap.String("report_id", evt.ReportID.String()),
			zap.Error(err),
		)
		return err
	}
}
