package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogDispatcher writes notifications to the log instead of a queue. Used in
// development and by dry-run scans.
type LogDispatcher struct {
	logger *zap.Logger
}

// NewLogDispatcher builds the dispatcher.
func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

// Send logs the message and always succeeds.
func (d *LogDispatcher) Send(_ context.Context, msg Message) error {
	d.logger.Info("notification",
		zap.String("recipient", msg.Recipient),
		zap.String("kind", string(msg.Kind)),
		zap.String("submission_id", msg.SubmissionID),
		zap.String("subject", msg.Subject))
	return nil
}
