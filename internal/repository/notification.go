package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/avasiliev/chatshop-system/internal/model"
)

// QueueNotification ставит рассылку в очередь. scheduleAt == nil означает
// немедленную отправку.
func (r *PostgresRepository) QueueNotification(ctx context.Context, text string, segment model.Segment,
	customUserIDs []int64, scheduleAt *time.Time) (int64, error) {

	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO notifications (text, segment, custom_user_ids, schedule_at, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`,
		text, string(segment), customUserIDs, scheduleAt, string(model.NotificationStatusQueued),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("queue notification: %w", err)
	}
	return id, nil
}

// DueNotifications возвращает рассылки, готовые к отправке.
func (r *PostgresRepository) DueNotifications(ctx context.Context, limit int) ([]model.Notification, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, text, segment, custom_user_ids, schedule_at, status
		 FROM notifications
		 WHERE status = $1 AND (schedule_at IS NULL OR schedule_at <= now())
		 ORDER BY id
		 LIMIT $2`,
		string(model.NotificationStatusQueued), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select due notifications: %w", err)
	}
	defer rows.Close()

	var res []model.Notification
	for rows.Next() {
		var n model.Notification
		var segment, status string
		if err := rows.Scan(&n.ID, &n.Text, &segment, &n.CustomUserIDs, &n.ScheduleAt, &status); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Segment = model.Segment(segment)
		n.Status = model.NotificationStatus(status)
		res = append(res, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

// SegmentUserIDs возвращает получателей для сегмента рассылки.
func (r *PostgresRepository) SegmentUserIDs(ctx context.Context, segment model.Segment, customUserIDs []int64) ([]int64, error) {
	var q string
	var args []any

	switch segment {
	case model.SegmentRecent:
		q = `SELECT id FROM users ORDER BY last_active DESC LIMIT 50`
	case model.SegmentBuyers:
		q = `SELECT DISTINCT user_id FROM orders`
	case model.SegmentInactive:
		q = `SELECT id FROM users WHERE last_active < now() - interval '7 days'`
	case model.SegmentCustom:
		if len(customUserIDs) == 0 {
			return nil, nil
		}
		q = `SELECT id FROM users WHERE id = ANY($1)`
		args = append(args, customUserIDs)
	default:
		q = `SELECT id FROM users`
	}

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("select segment users: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return ids, nil
}

// RecordDelivery сохраняет результат доставки уведомления одному получателю.
func (r *PostgresRepository) RecordDelivery(ctx context.Context, notificationID, userID int64, success bool, errText *string) error {
	if _, err := r.pool.Exec(ctx,
		`INSERT INTO notification_deliveries (notification_id, user_id, success, error)
		 VALUES ($1, $2, $3, $4)`,
		notificationID, userID, success, errText,
	); err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}

// SetNotificationStatus обновляет итоговый статус рассылки.
func (r *PostgresRepository) SetNotificationStatus(ctx context.Context, id int64, status model.NotificationStatus) error {
	if _, err := r.pool.Exec(ctx,
		`UPDATE notifications SET status = $2 WHERE id = $1`,
		id, string(status),
	); err != nil {
		return fmt.Errorf("set notification status: %w", err)
	}
	return nil
}
