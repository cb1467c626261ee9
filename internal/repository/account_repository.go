package repository

import (
	"context"
	"sort"

	"github.com/Freeeeeet/skillswap/internal/model"
	"github.com/Freeeeeet/skillswap/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AccountRepository struct {
	*base.Repository
}

func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{Repository: base.NewRepository(pool)}
}

// GetBalance получает аккаунт, nil если его ещё нет
func (r *AccountRepository) GetBalance(ctx context.Context, uid string) (*model.Account, error) {
	var account model.Account
	err := r.Pool().QueryRow(ctx, `
		SELECT uid, coins, updated_at FROM accounts WHERE uid = $1
	`, uid).Scan(&account.UID, &account.Coins, &account.UpdatedAt)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, base.Unavailable("get account", err)
	}
	return &account, nil
}

// Deposit зачисляет монеты, создавая аккаунт при необходимости
func (r *AccountRepository) Deposit(ctx context.Context, uid string, amount int) (*model.Account, error) {
	var account model.Account
	err := r.Pool().QueryRow(ctx, `
		INSERT INTO accounts (uid, coins, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (uid) DO UPDATE
		SET coins = accounts.coins + EXCLUDED.coins, updated_at = now()
		RETURNING uid, coins, updated_at
	`, uid, amount).Scan(&account.UID, &account.Coins, &account.UpdatedAt)
	if err != nil {
		return nil, base.Unavailable("deposit", err)
	}
	return &account, nil
}

// Transfer выполняет обе части перевода в одной транзакции
func (r *AccountRepository) Transfer(ctx context.Context, t *model.Transfer) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		var bookingID *string
		if t.BookingID != "" {
			bookingID = &t.BookingID
		}

		tag, err := tx.Exec(ctx, `
			INSERT INTO transfers (id, booking_id, from_uid, to_uid, amount, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (booking_id) DO NOTHING
		`, t.ID, bookingID, t.FromUID, t.ToUID, t.Amount, t.CreatedAt)
		if err != nil {
			return base.Unavailable("insert transfer", err)
		}
		if tag.RowsAffected() == 0 {
			return model.ErrTransferExists
		}

		return moveCoins(ctx, tx, t)
	})
}

// Reverse отменяет перевод по бронированию: запись удаляется, монеты
// возвращаются, обратный перевод сохраняется под model.RefundKey. Всё в одной
// транзакции. Возвращает отменённый перевод, nil если отменять нечего
func (r *AccountRepository) Reverse(ctx context.Context, bookingID string, refund *model.Transfer) (*model.Transfer, error) {
	var original *model.Transfer
	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		var t model.Transfer
		err := tx.QueryRow(ctx, `
			DELETE FROM transfers
			WHERE booking_id = $1
			RETURNING id, booking_id, from_uid, to_uid, amount, created_at
		`, bookingID).Scan(&t.ID, &t.BookingID, &t.FromUID, &t.ToUID, &t.Amount, &t.CreatedAt)
		if err != nil {
			if base.IsNotFound(err) {
				return nil
			}
			return base.Unavailable("delete transfer", err)
		}

		refund.BookingID = model.RefundKey(t.ID)
		refund.FromUID = t.ToUID
		refund.ToUID = t.FromUID
		refund.Amount = t.Amount

		_, err = tx.Exec(ctx, `
			INSERT INTO transfers (id, booking_id, from_uid, to_uid, amount, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, refund.ID, refund.BookingID, refund.FromUID, refund.ToUID, refund.Amount, refund.CreatedAt)
		if err != nil {
			return base.Unavailable("insert refund", err)
		}

		if err := moveCoins(ctx, tx, refund); err != nil {
			return err
		}
		original = &t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return original, nil
}

// moveCoins списывает и зачисляет монеты внутри транзакции. Строки аккаунтов
// блокируются в порядке uid, чтобы встречные переводы не давали дедлок
func moveCoins(ctx context.Context, q base.Querier, t *model.Transfer) error {
	_, err := q.Exec(ctx, `
		INSERT INTO accounts (uid, coins, updated_at)
		VALUES ($1, 0, now()), ($2, 0, now())
		ON CONFLICT (uid) DO NOTHING
	`, t.FromUID, t.ToUID)
	if err != nil {
		return base.Unavailable("ensure accounts", err)
	}

	uids := []string{t.FromUID, t.ToUID}
	sort.Strings(uids)
	rows, err := q.Query(ctx, `
		SELECT uid FROM accounts WHERE uid = ANY($1) ORDER BY uid FOR UPDATE
	`, uids)
	if err != nil {
		return base.Unavailable("lock accounts", err)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return base.Unavailable("lock accounts", err)
	}

	// Условное списание: баланс не может уйти в минус
	tag, err := q.Exec(ctx, `
		UPDATE accounts
		SET coins = coins - $1, updated_at = $3
		WHERE uid = $2 AND coins >= $1
	`, t.Amount, t.FromUID, t.CreatedAt)
	if err != nil {
		return base.Unavailable("debit account", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrInsufficientFunds
	}

	_, err = q.Exec(ctx, `
		UPDATE accounts
		SET coins = coins + $1, updated_at = $3
		WHERE uid = $2
	`, t.Amount, t.ToUID, t.CreatedAt)
	if err != nil {
		return base.Unavailable("credit account", err)
	}
	return nil
}

// GetTransferByBooking получает перевод, применённый для бронирования
func (r *AccountRepository) GetTransferByBooking(ctx context.Context, bookingID string) (*model.Transfer, error) {
	var t model.Transfer
	err := r.Pool().QueryRow(ctx, `
		SELECT id, booking_id, from_uid, to_uid, amount, created_at
		FROM transfers
		WHERE booking_id = $1
	`, bookingID).Scan(&t.ID, &t.BookingID, &t.FromUID, &t.ToUID, &t.Amount, &t.CreatedAt)
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, base.Unavailable("get transfer", err)
	}
	return &t, nil
}
