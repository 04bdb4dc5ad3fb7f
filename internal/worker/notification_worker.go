package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/theatre-service/internal/mailer"
	"github.com/spec-kit/theatre-service/internal/service"
)

// NotificationWorker owns the mail loop that event handlers feed.
type NotificationWorker struct {
	mail   *mailer.Mailer
	logger *zap.Logger
}

// StartNotificationWorker registers notification handlers and starts the
// mail loop.
func StartNotificationWorker(ctx context.Context, notifications *service.NotificationService, mail *mailer.Mailer, logger *zap.Logger) *NotificationWorker {
	if notifications != nil {
		notifications.RegisterHandlers()
	}
	if mail != nil {
		mail.Start(ctx)
	}
	logger.Info("notification worker started")
	return &NotificationWorker{mail: mail, logger: logger}
}

// Stop ends the mail loop and waits for it to exit.
func (w *NotificationWorker) Stop() {
	if w == nil || w.mail == nil {
		return
	}
	w.mail.Stop()
	w.logger.Info("notification worker stopped")
}
