package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Freeeeeet/skillswap/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type UserService struct {
	userRepo     UserRepository
	ledger       *LedgerService
	initialCoins int
	logger       *zap.Logger
	now          func() time.Time
}

func NewUserService(userRepo UserRepository, ledger *LedgerService, initialCoins int, logger *zap.Logger) *UserService {
	return &UserService{
		userRepo:     userRepo,
		ledger:       ledger,
		initialCoins: initialCoins,
		logger:       logger,
		now:          time.Now,
	}
}

// RegisterUser регистрирует или обновляет пользователя. Новому пользователю
// начисляется стартовый баланс
func (s *UserService) RegisterUser(ctx context.Context, uid, name string) (*model.User, error) {
	if uid == "" {
		return nil, model.ErrNotAuthenticated
	}
	name = strings.TrimSpace(name)

	existingUser, err := s.userRepo.GetByID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("check existing user: %w", err)
	}

	// Если пользователь уже существует, обновляем имя
	if existingUser != nil {
		existingUser.Name = name
		if err := s.userRepo.Upsert(ctx, existingUser); err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
		return existingUser, nil
	}

	user := &model.User{
		UID:       uid,
		Name:      name,
		CreatedAt: s.now().UTC(),
	}
	if err := s.userRepo.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	if s.initialCoins > 0 {
		if _, err := s.ledger.Deposit(ctx, uid, s.initialCoins); err != nil {
			return nil, fmt.Errorf("initial deposit: %w", err)
		}
	}

	s.logger.Info("New user registered",
		zap.String("uid", uid),
		zap.String("name", name),
		zap.Int("initial_coins", s.initialCoins),
	)

	return user, nil
}

// IssueLinkToken выдаёт одноразовый токен для привязки Telegram. Пользователь
// отправляет его боту командой /start <token>
func (s *UserService) IssueLinkToken(ctx context.Context, uid string) (*model.LinkToken, error) {
	if uid == "" {
		return nil, model.ErrNotAuthenticated
	}
	user, err := s.userRepo.GetByID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, model.ErrNotFound
	}

	token := &model.LinkToken{
		Token:     strings.ReplaceAll(uuid.NewString(), "-", ""),
		UID:       uid,
		ExpiresAt: s.now().UTC().Add(model.LinkTokenTTL),
	}
	if err := s.userRepo.CreateLinkToken(ctx, token); err != nil {
		return nil, fmt.Errorf("create link token: %w", err)
	}

	s.logger.Info("Telegram link token issued",
		zap.String("uid", uid),
		zap.Time("expires_at", token.ExpiresAt),
	)
	return token, nil
}

// RedeemLinkToken привязывает Telegram-чат к владельцу токена
func (s *UserService) RedeemLinkToken(ctx context.Context, token string, telegramID int64) (*model.User, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, model.ErrLinkTokenInvalid
	}

	user, err := s.userRepo.RedeemLinkToken(ctx, token, telegramID, s.now().UTC())
	if err != nil {
		if errors.Is(err, model.ErrLinkTokenInvalid) || errors.Is(err, model.ErrTelegramLinked) {
			s.logger.Info("Telegram link rejected",
				zap.Int64("telegram_id", telegramID),
				zap.Error(err),
			)
			return nil, err
		}
		return nil, fmt.Errorf("redeem link token: %w", err)
	}

	s.logger.Info("Telegram linked",
		zap.String("uid", user.UID),
		zap.Int64("telegram_id", telegramID),
	)
	return user, nil
}

// GetByTelegramID получает пользователя по Telegram ID
func (s *UserService) GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	return s.userRepo.GetByTelegramID(ctx, telegramID)
}

// GetByID получает пользователя по uid
func (s *UserService) GetByID(ctx context.Context, uid string) (*model.User, error) {
	return s.userRepo.GetByID(ctx, uid)
}

// ListLinked пользователи с привязанным Telegram
func (s *UserService) ListLinked(ctx context.Context) ([]*model.User, error) {
	return s.userRepo.ListLinked(ctx)
}
