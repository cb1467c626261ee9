package app

import (
	"context"
	"time"

	"github.com/Freeeeeet/skillswap/internal/service"
	"go.uber.org/zap"
)

// Sweeper периодически вызывает sweep уведомлений для пользователей с
// привязанным Telegram и доставляет показанные уведомления
type Sweeper struct {
	notificationService *service.NotificationService
	userService         *service.UserService
	deliverer           service.Deliverer
	interval            time.Duration
	logger              *zap.Logger
	now                 func() time.Time
}

// NewSweeper создаёт планировщик sweep. deliverer может быть nil
func NewSweeper(
	notificationService *service.NotificationService,
	userService *service.UserService,
	deliverer service.Deliverer,
	interval time.Duration,
	logger *zap.Logger,
) *Sweeper {
	return &Sweeper{
		notificationService: notificationService,
		userService:         userService,
		deliverer:           deliverer,
		interval:            interval,
		logger:              logger,
		now:                 time.Now,
	}
}

// Run выполняет sweep каждые interval до отмены ctx
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Info("Starting notification sweeper", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SweepOnce(ctx)
		case <-ctx.Done():
			s.logger.Info("Notification sweeper stopped")
			return nil
		}
	}
}

// SweepOnce один проход по всем привязанным пользователям
func (s *Sweeper) SweepOnce(ctx context.Context) {
	now := s.now().In(s.notificationService.Location())

	// Вне окна sweep ничего не делает, не читаем даже список пользователей
	if !service.InSweepWindow(now) {
		return
	}

	users, err := s.userService.ListLinked(ctx)
	if err != nil {
		s.logger.Error("Failed to list linked users", zap.Error(err))
		return
	}

	for _, user := range users {
		surfaced, err := s.notificationService.Sweep(ctx, user.UID, now)
		if err != nil {
			s.logger.Error("Sweep failed", zap.String("uid", user.UID), zap.Error(err))
			continue
		}
		if s.deliverer == nil {
			continue
		}
		for _, n := range surfaced {
			if err := s.deliverer.Deliver(ctx, n); err != nil {
				s.logger.Warn("Failed to deliver surfaced notification",
					zap.String("uid", user.UID),
					zap.String("notification_id", n.ID),
					zap.Error(err),
				)
			}
		}
	}
}
