package telegram

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/skillswap/internal/model"
	"github.com/go-telegram/bot"
	"go.uber.org/zap"
)

// UserLookup источник Telegram ID пользователей
type UserLookup interface {
	GetByID(ctx context.Context, uid string) (*model.User, error)
}

// Deliverer отправляет уведомления в привязанный Telegram-чат владельца
type Deliverer struct {
	sender Sender
	users  UserLookup
	logger *zap.Logger
}

func NewDeliverer(sender Sender, users UserLookup, logger *zap.Logger) *Deliverer {
	return &Deliverer{
		sender: sender,
		users:  users,
		logger: logger,
	}
}

// Deliver отправляет уведомление. Новые course_endtime не отправляются:
// о конце занятия сообщает sweep, когда уведомление уже прочитано
func (d *Deliverer) Deliver(ctx context.Context, n *model.Notification) error {
	if n.Kind == model.NotificationCourseEndtime && !n.Read {
		return nil
	}

	user, err := d.users.GetByID(ctx, n.OwnerUID)
	if err != nil {
		return fmt.Errorf("get owner: %w", err)
	}
	if user == nil || user.TelegramID == nil {
		return nil
	}

	params := &bot.SendMessageParams{
		ChatID: *user.TelegramID,
		Text:   FormatNotification(n),
	}
	if n.Kind == model.NotificationBookingApply && n.BookingID != "" {
		params.ReplyMarkup = bookingKeyboard(n.BookingID)
	}

	if _, err := d.sender.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	d.logger.Debug("Notification delivered to telegram",
		zap.String("notification_id", n.ID),
		zap.Int64("chat_id", *user.TelegramID),
	)
	return nil
}
