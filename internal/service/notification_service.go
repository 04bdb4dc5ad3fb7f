package service

import (
	"context"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/spec-kit/theatre-service/internal/auth"
	"github.com/spec-kit/theatre-service/internal/events"
	"github.com/spec-kit/theatre-service/internal/mailer"
)

// VerifyEmailPath is the route that consumes email_key tokens.
const VerifyEmailPath = "/api/v1/auth/verify"

// NotificationService turns domain events into outbound mail and log lines.
type NotificationService struct {
	dispatcher events.Dispatcher
	mail       mailer.Queue
	tokens     *auth.TokenCodec
	logger     *zap.Logger
	publicURL  string
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, mail mailer.Queue, tokens *auth.TokenCodec, logger *zap.Logger, publicURL string) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		mail:       mail,
		tokens:     tokens,
		logger:     logger,
		publicURL:  publicURL,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventUserRegistered, n.handleUserRegistered)
	n.dispatcher.Subscribe(events.EventTicketIssued, n.handleTicketIssued)
	n.dispatcher.Subscribe(events.EventTicketUsageChanged, n.handleTicketUsageChanged)
}

func (n *NotificationService) handleUserRegistered(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.UserRegisteredPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}

	token, _, err := n.tokens.IssueEmail(payload.UserID)
	if err != nil {
		return err
	}
	link := n.publicURL + VerifyEmailPath + "?email_key=" + url.QueryEscape(token)

	n.logger.Info("UserRegistered", zap.String("user_id", payload.UserID.String()))
	return n.mail.Enqueue(ctx, mailer.Message{
		To:      payload.Email,
		Subject: "Verify your email address",
		Body: fmt.Sprintf("Hi %s,\n\nconfirm your account %s by opening the link below within 24 hours:\n\n%s\n",
			payload.FirstName, payload.Username, link),
	})
}

func (n *NotificationService) handleTicketIssued(_ context.Context, event events.Event) error {
	n.logger.Info("TicketIssued", zap.String("actor_id", event.ActorID.String()), zap.Any("payload", event.Payload))
	return nil
}

func (n *NotificationService) handleTicketUsageChanged(_ context.Context, event events.Event) error {
	n.logger.Info("TicketUsageChanged", zap.String("actor_id", event.ActorID.String()), zap.Any("payload", event.Payload))
	return nil
}
