package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/skillswap/internal/metrics"
	"github.com/Freeeeeet/skillswap/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TransferRequest запрос на перевод монет. BookingID делает перевод идемпотентным
type TransferRequest struct {
	BookingID string
	FromUID   string
	ToUID     string
	Amount    int
}

type LedgerService struct {
	accountRepo AccountRepository
	logger      *zap.Logger
	now         func() time.Time
}

func NewLedgerService(accountRepo AccountRepository, logger *zap.Logger) *LedgerService {
	return &LedgerService{
		accountRepo: accountRepo,
		logger:      logger,
		now:         time.Now,
	}
}

// Transfer переводит монеты между двумя аккаунтами. Обе части перевода
// применяются в одной транзакции хранилища, поэтому баланс не уходит в минус
// и частичных изменений не бывает
func (s *LedgerService) Transfer(ctx context.Context, req TransferRequest) (*model.Transfer, error) {
	if req.Amount <= 0 {
		metrics.Transfers.WithLabelValues("invalid").Inc()
		return nil, model.ErrInvalidAmount
	}
	if req.FromUID == "" || req.ToUID == "" {
		return nil, model.ErrNotAuthenticated
	}
	if req.FromUID == req.ToUID {
		metrics.Transfers.WithLabelValues("invalid").Inc()
		return nil, model.ErrSelfTransfer
	}

	transfer := &model.Transfer{
		ID:        uuid.NewString(),
		BookingID: req.BookingID,
		FromUID:   req.FromUID,
		ToUID:     req.ToUID,
		Amount:    req.Amount,
		CreatedAt: s.now().UTC(),
	}

	err := s.accountRepo.Transfer(ctx, transfer)
	switch {
	case errors.Is(err, model.ErrTransferExists):
		// Повторный вызов для того же бронирования
		existing, getErr := s.accountRepo.GetTransferByBooking(ctx, req.BookingID)
		if getErr != nil {
			return nil, fmt.Errorf("get existing transfer: %w", getErr)
		}
		metrics.Transfers.WithLabelValues("replayed").Inc()
		s.logger.Info("Transfer already applied",
			zap.String("booking_id", req.BookingID),
			zap.String("transfer_id", existing.ID),
		)
		return existing, nil
	case errors.Is(err, model.ErrInsufficientFunds):
		metrics.Transfers.WithLabelValues("insufficient_funds").Inc()
		s.logger.Info("Transfer rejected: insufficient funds",
			zap.String("from_uid", req.FromUID),
			zap.Int("amount", req.Amount),
		)
		return nil, model.ErrInsufficientFunds
	case err != nil:
		metrics.Transfers.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("transfer coins: %w", err)
	}

	metrics.Transfers.WithLabelValues("ok").Inc()
	metrics.CoinsMoved.Add(float64(req.Amount))

	s.logger.Info("Coins transferred",
		zap.String("transfer_id", transfer.ID),
		zap.String("booking_id", req.BookingID),
		zap.String("from_uid", req.FromUID),
		zap.String("to_uid", req.ToUID),
		zap.Int("amount", req.Amount),
	)

	return transfer, nil
}

// Refund отменяет перевод по бронированию. Исходная запись удаляется вместе
// с возвратом монет, поэтому повторный Transfer для того же бронирования
// списывает монеты заново. Повторный Refund ничего не делает
func (s *LedgerService) Refund(ctx context.Context, bookingID string) error {
	refund := &model.Transfer{
		ID:        uuid.NewString(),
		CreatedAt: s.now().UTC(),
	}

	original, err := s.accountRepo.Reverse(ctx, bookingID, refund)
	switch {
	case errors.Is(err, model.ErrInsufficientFunds):
		metrics.Transfers.WithLabelValues("refund_insufficient_funds").Inc()
		return model.ErrInsufficientFunds
	case err != nil:
		metrics.Transfers.WithLabelValues("error").Inc()
		return fmt.Errorf("refund transfer: %w", err)
	}
	if original == nil {
		return nil
	}

	metrics.Transfers.WithLabelValues("refunded").Inc()
	s.logger.Warn("Transfer refunded",
		zap.String("booking_id", bookingID),
		zap.String("transfer_id", original.ID),
		zap.String("refund_id", refund.ID),
		zap.Int("amount", original.Amount),
	)
	return nil
}

// Balance возвращает баланс, для неизвестного пользователя 0
func (s *LedgerService) Balance(ctx context.Context, uid string) (*model.Account, error) {
	if uid == "" {
		return nil, model.ErrNotAuthenticated
	}
	account, err := s.accountRepo.GetBalance(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	if account == nil {
		return &model.Account{UID: uid}, nil
	}
	return account, nil
}

// Deposit начисляет монеты (стартовый баланс, административное пополнение)
func (s *LedgerService) Deposit(ctx context.Context, uid string, amount int) (*model.Account, error) {
	if uid == "" {
		return nil, model.ErrNotAuthenticated
	}
	if amount <= 0 {
		return nil, model.ErrInvalidAmount
	}
	account, err := s.accountRepo.Deposit(ctx, uid, amount)
	if err != nil {
		return nil, fmt.Errorf("deposit coins: %w", err)
	}

	s.logger.Info("Coins deposited",
		zap.String("uid", uid),
		zap.Int("amount", amount),
		zap.Int("balance", account.Coins),
	)
	return account, nil
}
