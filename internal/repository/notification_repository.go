package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/skillswap/internal/model"
	"github.com/Freeeeeet/skillswap/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationRepository struct {
	*base.Repository
}

func NewNotificationRepository(pool *pgxpool.Pool) *NotificationRepository {
	return &NotificationRepository{Repository: base.NewRepository(pool)}
}

const notificationColumns = `
	id, kind, owner_uid, from_uid, created_at, read, booking_id, from_name,
	session_start, post_title, sequence_number, demander_uid, provider_uid
`

func scanNotification(row pgx.Row) (*model.Notification, error) {
	var n model.Notification
	var sessionStart *time.Time
	err := row.Scan(
		&n.ID,
		&n.Kind,
		&n.OwnerUID,
		&n.FromUID,
		&n.CreatedAt,
		&n.Read,
		&n.BookingID,
		&n.FromName,
		&sessionStart,
		&n.PostTitle,
		&n.SequenceNumber,
		&n.DemanderUID,
		&n.ProviderUID,
	)
	if err != nil {
		return nil, err
	}
	if sessionStart != nil {
		n.TimeRange = &model.TimeRange{Start: *sessionStart}
	}
	return &n, nil
}

// Insert вставляет уведомления одним батчем в транзакции. Уже существующие
// ID пропускаются
func (r *NotificationRepository) Insert(ctx context.Context, notifications []*model.Notification) ([]*model.Notification, error) {
	var inserted []*model.Notification

	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, n := range notifications {
			var sessionStart *time.Time
			if n.TimeRange != nil {
				start := n.TimeRange.Start
				sessionStart = &start
			}
			batch.Queue(`
				INSERT INTO notifications (`+notificationColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
				ON CONFLICT (id) DO NOTHING
			`,
				n.ID, n.Kind, n.OwnerUID, n.FromUID, n.CreatedAt, n.Read, n.BookingID, n.FromName,
				sessionStart, n.PostTitle, n.SequenceNumber, n.DemanderUID, n.ProviderUID,
			)
		}

		results := tx.SendBatch(ctx, batch)
		for _, n := range notifications {
			tag, err := results.Exec()
			if err != nil {
				results.Close()
				return base.Unavailable("insert notification", err)
			}
			if tag.RowsAffected() == 1 {
				inserted = append(inserted, n)
			}
		}
		if err := results.Close(); err != nil {
			return base.Unavailable("insert notifications", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return inserted, nil
}

func (r *NotificationRepository) list(ctx context.Context, query string, args ...any) ([]*model.Notification, error) {
	rows, err := r.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, base.Unavailable("list notifications", err)
	}
	defer rows.Close()

	var notifications []*model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifications = append(notifications, n)
	}

	return notifications, rows.Err()
}

// ListByOwner все уведомления пользователя
func (r *NotificationRepository) ListByOwner(ctx context.Context, ownerUID string) ([]*model.Notification, error) {
	return r.list(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE owner_uid = $1
		ORDER BY created_at DESC
	`, ownerUID)
}

// ListUnread непрочитанные уведомления пользователя одного типа
func (r *NotificationRepository) ListUnread(ctx context.Context, ownerUID string, kind model.NotificationKind) ([]*model.Notification, error) {
	return r.list(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE owner_uid = $1 AND kind = $2 AND NOT read
		ORDER BY created_at DESC
	`, ownerUID, kind)
}

// GetByID уведомление пользователя по ID
func (r *NotificationRepository) GetByID(ctx context.Context, ownerUID, id string) (*model.Notification, error) {
	n, err := scanNotification(r.Pool().QueryRow(ctx, `
		SELECT `+notificationColumns+`
		FROM notifications
		WHERE owner_uid = $1 AND id = $2
	`, ownerUID, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, base.Unavailable("get notification", err)
	}
	return n, nil
}

// MarkRead одним UPDATE, поэтому либо все, либо ничего
func (r *NotificationRepository) MarkRead(ctx context.Context, ownerUID string, ids []string) error {
	_, err := r.Pool().Exec(ctx, `
		UPDATE notifications
		SET read = true
		WHERE owner_uid = $1 AND id = ANY($2) AND NOT read
	`, ownerUID, ids)
	if err != nil {
		return base.Unavailable("mark notifications read", err)
	}
	return nil
}
