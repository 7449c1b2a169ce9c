package mailer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/taskhub/apiserver/internal/mq"
	"github.com/taskhub/apiserver/types"
	"go.uber.org/zap"
)

// Worker consumes notification payloads from the queue and delivers
// them through the configured Mailer.
type Worker struct {
	queue  *mq.MQ
	mailer Mailer
	log    *zap.Logger
}

func NewWorker(queue *mq.MQ, mailer Mailer, log *zap.Logger) *Worker {
	return &Worker{queue: queue, mailer: mailer, log: log}
}

// Run blocks consuming the notifications channel until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	return w.queue.Subscribe(ctx, mq.NotificationsChannel, w.handle)
}

func (w *Worker) handle(ctx context.Context, msg mq.Message) error {
	var notification types.Notification
	if err := json.Unmarshal(msg.Data, &notification); err != nil {
		// Undecodable payloads are dropped, not redelivered.
		w.log.Warn("dropping malformed notification", zap.String("message_id", msg.ID), zap.Error(err))
		return nil
	}

	subject, body, err := Compose(notification)
	if err != nil {
		w.log.Warn("dropping unknown notification kind",
			zap.String("message_id", msg.ID),
			zap.String("kind", notification.Kind),
		)
		return nil
	}

	if err := w.mailer.Send(ctx, notification.Email, notification.Name, subject, body); err != nil {
		w.log.Error("failed to send notification email",
			zap.String("kind", notification.Kind),
			zap.Error(err),
		)
		return err
	}

	w.log.Info("notification email sent", zap.String("kind", notification.Kind))
	return nil
}

// Compose renders the subject and body for a notification.
func Compose(n types.Notification) (subject, body string, err error) {
	switch n.Kind {
	case types.NotificationWelcome:
		subject = "Welcome to TaskHub"
		body = fmt.Sprintf("Welcome to the app %s. Let me know how you get along with the app.", n.Name)
	case types.NotificationCancellation:
		subject = "Sorry to see you go"
		body = fmt.Sprintf("Hello %s. We have processed your request of account deletion. Please help us understand where we were not up to your mark.", n.Name)
	default:
		return "", "", fmt.Errorf("unknown notification kind %q", n.Kind)
	}
	return subject, body, nil
}
