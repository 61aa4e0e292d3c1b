package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/service-desk/internal/events"
	"github.com/spec-kit/service-desk/internal/notify"
)

// NotificationService forwards informational domain events to the outbound
// dispatcher. Caller-critical notifications (escalations, decisions) are
// sent synchronously by their owning components; this covers the
// fire-and-forget notices around them.
type NotificationService struct {
	dispatcher events.Dispatcher
	notifier   notify.Dispatcher
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, notifier notify.Dispatcher, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventSubmissionCreated, n.handleSubmissionCreated)
	n.dispatcher.Subscribe(events.EventSubmissionStatusChanged, n.handleStatusChanged)
}

func (n *NotificationService) handleSubmissionCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("SubmissionCreated", zap.String("submission_id", event.SubmissionID))
	n.send(ctx, event, notify.KindReceived, "submission received")
	return nil
}

func (n *NotificationService) handleStatusChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("SubmissionStatusChanged", zap.String("submission_id", event.SubmissionID), zap.Any("payload", event.Payload))
	recipient := ""
	if payload, ok := event.Payload.(events.SubmissionStatusChangedPayload); ok {
		recipient = payload.RequesterID
	}
	n.sendTo(ctx, recipient, event, notify.KindStatus, "submission status changed")
	return nil
}

func (n *NotificationService) send(ctx context.Context, event events.Event, kind notify.Kind, subject string) {
	recipient := ""
	if event.Actor.UserID != nil {
		recipient = *event.Actor.UserID
	}
	n.sendTo(ctx, recipient, event, kind, subject)
}

func (n *NotificationService) sendTo(ctx context.Context, recipient string, event events.Event, kind notify.Kind, subject string) {
	if recipient == "" {
		return
	}
	msg := notify.Message{
		Recipient:    recipient,
		Kind:         kind,
		SubmissionID: event.SubmissionID,
		Subject:      subject,
		Payload:      map[string]any{"event_type": string(event.Type)},
	}
	if err := n.notifier.Send(ctx, msg); err != nil {
		n.logger.Warn("informational notification failed",
			zap.String("submission_id", event.SubmissionID),
			zap.Error(err))
	}
}
