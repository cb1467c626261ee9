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

type PostRepository struct {
	*base.Repository
}

func NewPostRepository(pool *pgxpool.Pool) *PostRepository {
	return &PostRepository{Repository: base.NewRepository(pool)}
}

// Create создаёт пост вместе с календарём слотов
func (r *PostRepository) Create(ctx context.Context, post *model.Post) error {
	options := make([]string, len(post.CourseOptions))
	for i, o := range post.CourseOptions {
		options[i] = string(o)
	}

	return r.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO posts (id, author_id, title, coin_cost, course_options, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, post.ID, post.AuthorID, post.Title, post.CoinCost, options, post.CreatedAt)
		if err != nil {
			return base.Unavailable("create post", err)
		}

		for date, hours := range post.Calendar {
			for hour, open := range hours {
				ref := model.SlotRef{Date: date, Hour: hour}
				day, err := ref.Day()
				if err != nil {
					return fmt.Errorf("slot %s: %w", ref, err)
				}
				_, err = tx.Exec(ctx, `
					INSERT INTO post_slots (post_id, slot_date, hour, open)
					VALUES ($1, $2, $3, $4)
				`, post.ID, day, hour, open)
				if err != nil {
					return base.Unavailable("create post slot", err)
				}
			}
		}
		return nil
	})
}

// GetByID получает пост с календарём
func (r *PostRepository) GetByID(ctx context.Context, id string) (*model.Post, error) {
	query := `
		SELECT id, author_id, title, coin_cost, course_options, created_at
		FROM posts
		WHERE id = $1
	`

	var post model.Post
	var options []string
	err := r.Pool().QueryRow(ctx, query, id).Scan(
		&post.ID,
		&post.AuthorID,
		&post.Title,
		&post.CoinCost,
		&options,
		&post.CreatedAt,
	)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, base.Unavailable("get post by id", err)
	}

	for _, o := range options {
		post.CourseOptions = append(post.CourseOptions, model.CourseOption(o))
	}

	post.Calendar, err = r.calendar(ctx, id)
	if err != nil {
		return nil, err
	}

	return &post, nil
}

func (r *PostRepository) calendar(ctx context.Context, postID string) (model.SlotCalendar, error) {
	rows, err := r.Pool().Query(ctx, `
		SELECT slot_date, hour, open
		FROM post_slots
		WHERE post_id = $1
		ORDER BY slot_date, hour
	`, postID)
	if err != nil {
		return nil, base.Unavailable("get post slots", err)
	}
	defer rows.Close()

	calendar := make(model.SlotCalendar)
	for rows.Next() {
		var day time.Time
		var hour int
		var open bool
		if err := rows.Scan(&day, &hour, &open); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		ref := model.NewSlotRef(day, hour)
		calendar.Open(ref)
		if !open {
			calendar.Close(ref)
		}
	}

	return calendar, rows.Err()
}

// ReopenSlots открывает слоты обратно
func (r *PostRepository) ReopenSlots(ctx context.Context, postID string, slots []model.SlotRef) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		for _, ref := range slots {
			day, err := ref.Day()
			if err != nil {
				return fmt.Errorf("slot %s: %w", ref, err)
			}
			_, err = tx.Exec(ctx, `
				UPDATE post_slots
				SET open = true
				WHERE post_id = $1 AND slot_date = $2 AND hour = $3
			`, postID, day, ref.Hour)
			if err != nil {
				return base.Unavailable("reopen slot", err)
			}
		}
		return nil
	})
}
