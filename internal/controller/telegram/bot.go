package telegram

import (
	"context"

	"github.com/Freeeeeet/skillswap/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// Sender часть API бота, нужная для доставки уведомлений
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

type BotController struct {
	bot           *bot.Bot
	users         *service.UserService
	bookings      *service.BookingService
	ledger        *service.LedgerService
	notifications *service.NotificationService
	logger        *zap.Logger
}

func NewBotController(
	botInstance *bot.Bot,
	users *service.UserService,
	bookings *service.BookingService,
	ledger *service.LedgerService,
	notifications *service.NotificationService,
	logger *zap.Logger,
) *BotController {
	return &BotController{
		bot:           botInstance,
		users:         users,
		bookings:      bookings,
		ledger:        ledger,
		notifications: notifications,
		logger:        logger,
	}
}

// RegisterHandlers регистрирует все обработчики команд
func (c *BotController) RegisterHandlers(ctx context.Context) error {
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix, c.handleStart)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/notifications", bot.MatchTypeExact, c.handleNotifications)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/applications", bot.MatchTypeExact, c.handleApplications)
	c.bot.RegisterHandler(bot.HandlerTypeMessageText, "/balance", bot.MatchTypeExact, c.handleBalance)

	// Кнопки подтверждения и отклонения заявок
	c.bot.RegisterHandler(bot.HandlerTypeCallbackQueryData, callbackPrefix, bot.MatchTypePrefix, c.handleBookingCallback)

	return c.setCommands(ctx)
}

// setCommands устанавливает список команд в меню бота
func (c *BotController) setCommands(ctx context.Context) error {
	commands := []models.BotCommand{
		{Command: "start", Description: "🚀 Привязать аккаунт"},
		{Command: "notifications", Description: "🔔 Последние уведомления"},
		{Command: "applications", Description: "📥 Заявки на мои посты"},
		{Command: "balance", Description: "💰 Баланс монет"},
	}

	_, err := c.bot.SetMyCommands(ctx, &bot.SetMyCommandsParams{
		Commands: commands,
	})
	if err != nil {
		c.logger.Error("Failed to set bot commands", zap.Error(err))
		return err
	}

	c.logger.Info("Bot commands menu set")
	return nil
}

// Run запускает long polling до отмены ctx
func (c *BotController) Run(ctx context.Context) error {
	c.logger.Info("Starting bot...")
	c.bot.Start(ctx)
	return nil
}
