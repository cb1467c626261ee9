package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/skillswap/internal/model"
	"github.com/Freeeeeet/skillswap/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PortfolioRepository struct {
	*base.Repository
}

func NewPortfolioRepository(pool *pgxpool.Pool) *PortfolioRepository {
	return &PortfolioRepository{Repository: base.NewRepository(pool)}
}

// Для каждой роли свой upsert: ON CONFLICT обновляет только колонки этой роли
var upsertFeedbackQueries = map[model.Role]string{
	model.RoleDemander: `
		INSERT INTO feedback_records (booking_id, course, session_time, demander_feedback, demander_suggestions, demander_rating)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (booking_id, course) DO UPDATE
		SET demander_feedback = EXCLUDED.demander_feedback,
		    demander_suggestions = EXCLUDED.demander_suggestions,
		    demander_rating = EXCLUDED.demander_rating
	`,
	model.RoleProvider: `
		INSERT INTO feedback_records (booking_id, course, session_time, provider_feedback, provider_suggestions, provider_rating)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (booking_id, course) DO UPDATE
		SET provider_feedback = EXCLUDED.provider_feedback,
		    provider_suggestions = EXCLUDED.provider_suggestions,
		    provider_rating = EXCLUDED.provider_rating
	`,
}

// UpsertFeedback создаёт запись портфолио при необходимости и записывает отзыв роли
func (r *PortfolioRepository) UpsertFeedback(ctx context.Context, entry *model.PortfolioEntry, course int, role model.Role, record *model.FeedbackRecord) error {
	query, ok := upsertFeedbackQueries[role]
	if !ok {
		return fmt.Errorf("unknown role %q", role)
	}

	feedback, suggestions, rating := record.DemanderFeedback, record.DemanderSuggestions, record.DemanderRating
	if role == model.RoleProvider {
		feedback, suggestions, rating = record.ProviderFeedback, record.ProviderSuggestions, record.ProviderRating
	}

	return r.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO portfolio_entries (booking_id, post_title, demander_uid, provider_uid)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (booking_id) DO NOTHING
		`, entry.BookingID, entry.PostTitle, entry.DemanderUID, entry.ProviderUID)
		if err != nil {
			return base.Unavailable("create portfolio entry", err)
		}

		_, err = tx.Exec(ctx, query, entry.BookingID, course, record.Time, feedback, suggestions, rating)
		if err != nil {
			return base.Unavailable("upsert feedback record", err)
		}
		return nil
	})
}

// GetByBooking запись портфолио с отзывами по возрастанию номера занятия
func (r *PortfolioRepository) GetByBooking(ctx context.Context, bookingID string) (*model.PortfolioEntry, error) {
	var entry model.PortfolioEntry
	err := r.Pool().QueryRow(ctx, `
		SELECT booking_id, post_title, demander_uid, provider_uid
		FROM portfolio_entries
		WHERE booking_id = $1
	`, bookingID).Scan(&entry.BookingID, &entry.PostTitle, &entry.DemanderUID, &entry.ProviderUID)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, base.Unavailable("get portfolio entry", err)
	}

	records, err := r.records(ctx, []string{bookingID})
	if err != nil {
		return nil, err
	}
	entry.Feedback = records[bookingID]

	return &entry, nil
}

// ListByUser записи, где пользователь ученик или автор
func (r *PortfolioRepository) ListByUser(ctx context.Context, uid string) ([]*model.PortfolioEntry, error) {
	rows, err := r.Pool().Query(ctx, `
		SELECT booking_id, post_title, demander_uid, provider_uid
		FROM portfolio_entries
		WHERE demander_uid = $1 OR provider_uid = $1
		ORDER BY booking_id
	`, uid)
	if err != nil {
		return nil, base.Unavailable("list portfolio entries", err)
	}
	defer rows.Close()

	var entries []*model.PortfolioEntry
	var ids []string
	for rows.Next() {
		var entry model.PortfolioEntry
		if err := rows.Scan(&entry.BookingID, &entry.PostTitle, &entry.DemanderUID, &entry.ProviderUID); err != nil {
			return nil, fmt.Errorf("scan portfolio entry: %w", err)
		}
		entries = append(entries, &entry)
		ids = append(ids, entry.BookingID)
	}
	if err := rows.Err(); err != nil {
		return nil, base.Unavailable("list portfolio entries", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	records, err := r.records(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		entry.Feedback = records[entry.BookingID]
	}

	return entries, nil
}

func (r *PortfolioRepository) records(ctx context.Context, bookingIDs []string) (map[string][]model.FeedbackRecord, error) {
	rows, err := r.Pool().Query(ctx, `
		SELECT booking_id, course, session_time,
		       demander_feedback, demander_suggestions, demander_rating,
		       provider_feedback, provider_suggestions, provider_rating
		FROM feedback_records
		WHERE booking_id = ANY($1)
		ORDER BY booking_id, course
	`, bookingIDs)
	if err != nil {
		return nil, base.Unavailable("list feedback records", err)
	}
	defer rows.Close()

	out := make(map[string][]model.FeedbackRecord)
	for rows.Next() {
		var bookingID string
		var rec model.FeedbackRecord
		err := rows.Scan(
			&bookingID,
			&rec.Course,
			&rec.Time,
			&rec.DemanderFeedback,
			&rec.DemanderSuggestions,
			&rec.DemanderRating,
			&rec.ProviderFeedback,
			&rec.ProviderSuggestions,
			&rec.ProviderRating,
		)
		if err != nil {
			return nil, fmt.Errorf("scan feedback record: %w", err)
		}
		out[bookingID] = append(out[bookingID], rec)
	}

	return out, rows.Err()
}
