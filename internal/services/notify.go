package services

import (
	"context"
	"encoding/json"

	"github.com/taskhub/apiserver/internal/mq"
	"github.com/taskhub/apiserver/types"
	"go.uber.org/zap"
)

// NotificationPublisher hands email notifications off to the message
// queue. Publishing is fire-and-forget: failures are logged and never
// propagate to the operation that triggered the notification.
type NotificationPublisher struct {
	queue *mq.MQ
	log   *zap.Logger
}

// NewNotificationPublisher constructs a publisher. A nil queue disables
// delivery entirely (no broker configured).
func NewNotificationPublisher(queue *mq.MQ, log *zap.Logger) *NotificationPublisher {
	return &NotificationPublisher{queue: queue, log: log}
}

func (p *NotificationPublisher) Welcome(ctx context.Context, user types.User) {
	p.publish(ctx, types.Notification{
		Kind:  types.NotificationWelcome,
		Email: user.Email,
		Name:  user.Name,
	})
}

func (p *NotificationPublisher) Cancellation(ctx context.Context, user types.User) {
	p.publish(ctx, types.Notification{
		Kind:  types.NotificationCancellation,
		Email: user.Email,
		Name:  user.Name,
	})
}

func (p *NotificationPublisher) publish(ctx context.Context, notification types.Notification) {
	if p.queue == nil {
		p.log.Debug("notification queue not configured, skipping",
			zap.String("kind", notification.Kind))
		return
	}

	data, err := json.Marshal(notification)
	if err != nil {
		p.log.Warn("failed to encode notification", zap.Error(err))
		return
	}

	if _, err := p.queue.Publish(ctx, mq.NotificationsChannel, data, nil); err != nil {
		p.log.Warn("failed to publish notification",
			zap.String("kind", notification.Kind),
			zap.Error(err),
		)
	}
}
