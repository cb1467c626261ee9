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

type UserRepository struct {
	*base.Repository
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{Repository: base.NewRepository(pool)}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var user model.User
	if err := row.Scan(&user.UID, &user.Name, &user.TelegramID, &user.CreatedAt); err != nil {
		return nil, err
	}
	return &user, nil
}

// Upsert создаёт пользователя или обновляет имя. Telegram ID меняется
// только через RedeemLinkToken
func (r *UserRepository) Upsert(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (uid, name, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (uid) DO UPDATE
		SET name = EXCLUDED.name
		RETURNING telegram_id, created_at
	`

	err := r.Pool().QueryRow(ctx, query,
		user.UID,
		user.Name,
		user.CreatedAt,
	).Scan(&user.TelegramID, &user.CreatedAt)
	if err != nil {
		return base.Unavailable("upsert user", err)
	}

	return nil
}

// GetByID получает пользователя по uid
func (r *UserRepository) GetByID(ctx context.Context, uid string) (*model.User, error) {
	user, err := scanUser(r.Pool().QueryRow(ctx, `
		SELECT uid, name, telegram_id, created_at
		FROM users
		WHERE uid = $1
	`, uid))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil // Пользователь не найден
		}
		return nil, base.Unavailable("get user by id", err)
	}
	return user, nil
}

// GetByTelegramID получает пользователя по Telegram ID
func (r *UserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	user, err := scanUser(r.Pool().QueryRow(ctx, `
		SELECT uid, name, telegram_id, created_at
		FROM users
		WHERE telegram_id = $1
	`, telegramID))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, base.Unavailable("get user by telegram id", err)
	}
	return user, nil
}

// ListLinked пользователи с привязанным Telegram
func (r *UserRepository) ListLinked(ctx context.Context) ([]*model.User, error) {
	rows, err := r.Pool().Query(ctx, `
		SELECT uid, name, telegram_id, created_at
		FROM users
		WHERE telegram_id IS NOT NULL
		ORDER BY uid
	`)
	if err != nil {
		return nil, base.Unavailable("list linked users", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

// CreateLinkToken сохраняет токен привязки Telegram
func (r *UserRepository) CreateLinkToken(ctx context.Context, token *model.LinkToken) error {
	_, err := r.Pool().Exec(ctx, `
		INSERT INTO telegram_link_tokens (token, uid, expires_at)
		VALUES ($1, $2, $3)
	`, token.Token, token.UID, token.ExpiresAt)
	if err != nil {
		return base.Unavailable("create link token", err)
	}
	return nil
}

// RedeemLinkToken гасит токен и привязывает Telegram ID в одной транзакции
func (r *UserRepository) RedeemLinkToken(ctx context.Context, token string, telegramID int64, now time.Time) (*model.User, error) {
	var user *model.User
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		var uid string
		err := tx.QueryRow(ctx, `
			DELETE FROM telegram_link_tokens
			WHERE token = $1 AND expires_at > $2
			RETURNING uid
		`, token, now).Scan(&uid)
		if err != nil {
			if base.IsNotFound(err) {
				return model.ErrLinkTokenInvalid
			}
			return base.Unavailable("redeem link token", err)
		}

		user, err = scanUser(tx.QueryRow(ctx, `
			UPDATE users
			SET telegram_id = $2
			WHERE uid = $1
			RETURNING uid, name, telegram_id, created_at
		`, uid, telegramID))
		switch {
		case base.IsNotFound(err):
			return model.ErrLinkTokenInvalid
		case base.IsUniqueViolation(err):
			return model.ErrTelegramLinked
		case err != nil:
			return base.Unavailable("link telegram", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}
