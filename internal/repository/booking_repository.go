package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/skillswap/internal/model"
	"github.com/Freeeeeet/skillswap/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BookingRepository struct {
	*base.Repository
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{Repository: base.NewRepository(pool)}
}

const bookingColumns = `
	id, post_id, post_title, demander_uid, provider_uid, course_option,
	selected_times, coins_total, status, created_at, updated_at
`

func scanBooking(row pgx.Row) (*model.Booking, error) {
	var booking model.Booking
	err := row.Scan(
		&booking.ID,
		&booking.PostID,
		&booking.PostTitle,
		&booking.DemanderUID,
		&booking.ProviderUID,
		&booking.CourseOption,
		&booking.SelectedTimes,
		&booking.CoinsTotal,
		&booking.Status,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// CreateWithSlots закрывает слоты условным UPDATE и создаёт бронирование в
// одной транзакции. Конкурирующая транзакция ждёт блокировку строки слота и
// после коммита первой видит open = false
func (r *BookingRepository) CreateWithSlots(ctx context.Context, booking *model.Booking) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		for _, ref := range booking.SelectedTimes {
			day, err := ref.Day()
			if err != nil {
				return model.ErrInsufficientSelection
			}

			tag, err := tx.Exec(ctx, `
				UPDATE post_slots
				SET open = false
				WHERE post_id = $1 AND slot_date = $2 AND hour = $3 AND open
			`, booking.PostID, day, ref.Hour)
			if err != nil {
				return base.Unavailable("close slot", err)
			}
			if tag.RowsAffected() == 0 {
				return model.ErrSlotUnavailable
			}
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO bookings (`+bookingColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`,
			booking.ID,
			booking.PostID,
			booking.PostTitle,
			booking.DemanderUID,
			booking.ProviderUID,
			booking.CourseOption,
			booking.SelectedTimes,
			booking.CoinsTotal,
			booking.Status,
			booking.CreatedAt,
			booking.UpdatedAt,
		)
		if err != nil {
			return base.Unavailable("create booking", err)
		}
		return nil
	})
}

// GetByID получает бронирование по ID
func (r *BookingRepository) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	booking, err := scanBooking(r.Pool().QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, base.Unavailable("get booking by id", err)
	}
	return booking, nil
}

// TransitionStatus условный переход статуса: from -> to
func (r *BookingRepository) TransitionStatus(ctx context.Context, id string, from, to model.BookingStatus) (*model.Booking, error) {
	booking, err := scanBooking(r.Pool().QueryRow(ctx, `
		UPDATE bookings
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3
		RETURNING `+bookingColumns, to, id, from))
	if err == nil {
		return booking, nil
	}
	if !base.IsNotFound(err) {
		return nil, base.Unavailable("update booking status", err)
	}

	// Ни одна строка не обновилась: бронирования нет или статус уже другой
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, model.ErrNotFound
	}
	return nil, model.ErrNotPending
}

func (r *BookingRepository) list(ctx context.Context, query string, args ...any) ([]*model.Booking, error) {
	rows, err := r.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, base.Unavailable("list bookings", err)
	}
	defer rows.Close()

	var bookings []*model.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}

	return bookings, rows.Err()
}

// ListByDemander получает все бронирования ученика
func (r *BookingRepository) ListByDemander(ctx context.Context, uid string) ([]*model.Booking, error) {
	return r.list(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE demander_uid = $1
		ORDER BY created_at DESC
	`, uid)
}

// ListByProvider получает бронирования постов автора, опционально по статусу
func (r *BookingRepository) ListByProvider(ctx context.Context, uid string, status *model.BookingStatus) ([]*model.Booking, error) {
	if status == nil {
		return r.list(ctx, `
			SELECT `+bookingColumns+`
			FROM bookings
			WHERE provider_uid = $1
			ORDER BY created_at DESC
		`, uid)
	}
	return r.list(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE provider_uid = $1 AND status = $2
		ORDER BY created_at ASC
	`, uid, *status)
}
