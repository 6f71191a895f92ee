// Package notify реализует фоновую отправку рассылок по сегментам
// пользователей.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/avasiliev/chatshop-system/internal/model"
)

// batchSize — сколько рассылок забирается из очереди за один проход.
const batchSize = 10

// Repository описывает доступ к очереди рассылок.
type Repository interface {
	DueNotifications(ctx context.Context, limit int) ([]model.Notification, error)
	SegmentUserIDs(ctx context.Context, segment model.Segment, customUserIDs []int64) ([]int64, error)
	RecordDelivery(ctx context.Context, notificationID, userID int64, success bool, errText *string) error
	SetNotificationStatus(ctx context.Context, id int64, status model.NotificationStatus) error
}

// Sender отправляет сообщение пользователю через чат-шлюз.
type Sender interface {
	SendMessage(ctx context.Context, userID int64, text string) error
}

// Dispatcher периодически забирает готовые к отправке рассылки и доставляет
// их получателям.
type Dispatcher struct {
	repo     Repository
	sender   Sender
	log      *zap.SugaredLogger
	interval time.Duration
}

// NewDispatcher создаёт диспетчер рассылок.
func NewDispatcher(repo Repository, sender Sender, log *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		repo:     repo,
		sender:   sender,
		log:      log,
		interval: 5 * time.Second,
	}
}

// Start запускает фоновый цикл отправки. Без настроенного отправителя цикл
// не запускается.
func (d *Dispatcher) Start(ctx context.Context) {
	if d.sender == nil {
		return
	}

	go func() {
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.processBatch(ctx)
			}
		}
	}()
}

// processBatch отправляет очередную порцию рассылок. Сбой на одном получателе
// не прерывает остальных: итог фиксируется статусом sent или partial.
func (d *Dispatcher) processBatch(ctx context.Context) {
	due, err := d.repo.DueNotifications(ctx, batchSize)
	if err != nil {
		d.log.Errorw("load due notifications", "error", err)
		return
	}

	for _, n := range due {
		recipients, err := d.repo.SegmentUserIDs(ctx, n.Segment, n.CustomUserIDs)
		if err != nil {
			d.log.Errorw("resolve segment", "notification_id", n.ID, "segment", n.Segment, "error", err)
			continue
		}

		failed := 0
		for _, userID := range recipients {
			if ctx.Err() != nil {
				return
			}
			sendErr := d.sender.SendMessage(ctx, userID, n.Text)
			var errText *string
			if sendErr != nil {
				failed++
				msg := sendErr.Error()
				errText = &msg
			}
			if err := d.repo.RecordDelivery(ctx, n.ID, userID, sendErr == nil, errText); err != nil {
				d.log.Errorw("record delivery", "notification_id", n.ID, "user_id", userID, "error", err)
			}
		}

		status := model.NotificationStatusSent
		if failed > 0 {
			status = model.NotificationStatusPartial
		}
		if err := d.repo.SetNotificationStatus(ctx, n.ID, status); err != nil {
			d.log.Errorw("set notification status", "notification_id", n.ID, "error", err)
		}
		d.log.Infow("notification dispatched",
			"notification_id", n.ID, "recipients", len(recipients), "failed", failed)
	}
}
