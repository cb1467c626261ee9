package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/Freeeeeet/skillswap/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// handleStart привязывает чат по одноразовому токену: /start <token>.
// Токен выдаёт API аутентифицированному пользователю
func (c *BotController) handleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	// Сообщения от каналов и анонимных админов приходят без отправителя
	if update.Message.From == nil {
		return
	}

	token := strings.TrimSpace(strings.TrimPrefix(update.Message.Text, "/start"))
	if token == "" {
		c.send(ctx, b, chatID, "👋 Откройте ссылку привязки из приложения, чтобы получать уведомления здесь.")
		return
	}

	user, err := c.users.RedeemLinkToken(ctx, token, update.Message.From.ID)
	if err != nil {
		c.logger.Info("Failed to link telegram",
			zap.Int64("telegram_id", update.Message.From.ID),
			zap.Error(err),
		)
		c.send(ctx, b, chatID, errorMessage(err))
		return
	}

	c.send(ctx, b, chatID, fmt.Sprintf("✅ %s, уведомления будут приходить в этот чат.\n\n/notifications - последние уведомления\n/balance - баланс", displayName(user)))
}

// requireUser находит пользователя по Telegram ID отправителя
func (c *BotController) requireUser(ctx context.Context, b *bot.Bot, update *models.Update) (*model.User, bool) {
	if update.Message == nil || update.Message.From == nil {
		return nil, false
	}

	user, err := c.users.GetByTelegramID(ctx, update.Message.From.ID)
	if err != nil {
		c.logger.Error("Failed to get user", zap.Int64("telegram_id", update.Message.From.ID), zap.Error(err))
		c.send(ctx, b, update.Message.Chat.ID, "❌ Произошла ошибка. Попробуйте позже.")
		return nil, false
	}
	if user == nil {
		c.send(ctx, b, update.Message.Chat.ID, "❌ Аккаунт не привязан. Используйте ссылку привязки из приложения.")
		return nil, false
	}
	return user, true
}

func (c *BotController) handleNotifications(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := c.requireUser(ctx, b, update)
	if !ok {
		return
	}

	view, err := c.notifications.List(ctx, user.UID)
	if err != nil {
		c.logger.Error("Failed to list notifications", zap.String("uid", user.UID), zap.Error(err))
		c.send(ctx, b, update.Message.Chat.ID, errorMessage(err))
		return
	}

	c.send(ctx, b, update.Message.Chat.ID, FormatNotificationList(view))
}

func (c *BotController) handleApplications(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := c.requireUser(ctx, b, update)
	if !ok {
		return
	}

	pending := model.BookingStatusPending
	bookings, err := c.bookings.ListForProvider(ctx, user.UID, &pending)
	if err != nil {
		c.send(ctx, b, update.Message.Chat.ID, errorMessage(err))
		return
	}
	if len(bookings) == 0 {
		c.send(ctx, b, update.Message.Chat.ID, "📭 Новых заявок нет")
		return
	}

	for _, booking := range bookings {
		_, err := b.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:      update.Message.Chat.ID,
			Text:        FormatPendingBooking(booking),
			ReplyMarkup: bookingKeyboard(booking.ID),
		})
		if err != nil {
			c.logger.Error("Failed to send application", zap.String("booking_id", booking.ID), zap.Error(err))
		}
	}
}

func (c *BotController) handleBalance(ctx context.Context, b *bot.Bot, update *models.Update) {
	user, ok := c.requireUser(ctx, b, update)
	if !ok {
		return
	}

	account, err := c.ledger.Balance(ctx, user.UID)
	if err != nil {
		c.send(ctx, b, update.Message.Chat.ID, errorMessage(err))
		return
	}
	c.send(ctx, b, update.Message.Chat.ID, fmt.Sprintf("💰 Баланс: %d %s", account.Coins, pluralizeCoins(account.Coins)))
}

// handleBookingCallback обрабатывает кнопки "Подтвердить" и "Отклонить"
func (c *BotController) handleBookingCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	query := update.CallbackQuery
	if query == nil {
		return
	}

	answer := func(text string) {
		_, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: query.ID,
			Text:            text,
		})
		if err != nil {
			c.logger.Error("Failed to answer callback", zap.Error(err))
		}
	}

	action, bookingID, err := parseCallback(query.Data)
	if err != nil {
		answer("❌ Неверный формат данных")
		return
	}

	user, err := c.users.GetByTelegramID(ctx, query.From.ID)
	if err != nil || user == nil {
		answer("❌ Аккаунт не привязан")
		return
	}

	switch action {
	case actionConfirm:
		_, err = c.bookings.Confirm(ctx, user.UID, bookingID)
	case actionReject:
		_, err = c.bookings.Reject(ctx, user.UID, bookingID)
	}
	if err != nil {
		c.logger.Info("Booking callback failed",
			zap.String("action", action),
			zap.String("booking_id", bookingID),
			zap.Error(err),
		)
		answer(errorMessage(err))
		return
	}

	if action == actionConfirm {
		answer("✅ Заявка подтверждена")
	} else {
		answer("🚫 Заявка отклонена")
	}
}

// send отправляет сообщение и логирует если не удалось
func (c *BotController) send(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		c.logger.Error("Failed to send message",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}
