package telegram

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Freeeeeet/skillswap/internal/model"
	"github.com/go-telegram/bot/models"
)

const (
	callbackPrefix = "booking:"
	actionConfirm  = "confirm"
	actionReject   = "reject"
)

var errInvalidCallback = errors.New("invalid callback format")

// parseCallback разбирает "booking:<action>:<booking_id>"
func parseCallback(data string) (action, bookingID string, err error) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) != 3 || parts[0]+":" != callbackPrefix || parts[2] == "" {
		return "", "", errInvalidCallback
	}
	switch parts[1] {
	case actionConfirm, actionReject:
		return parts[1], parts[2], nil
	}
	return "", "", errInvalidCallback
}

func callbackData(action, bookingID string) string {
	return callbackPrefix + action + ":" + bookingID
}

func bookingKeyboard(bookingID string) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{{
			{Text: "✅ Подтвердить", CallbackData: callbackData(actionConfirm, bookingID)},
			{Text: "🚫 Отклонить", CallbackData: callbackData(actionReject, bookingID)},
		}},
	}
}

func displayName(user *model.User) string {
	if user.Name != "" {
		return user.Name
	}
	return user.UID
}

// FormatNotification текст одного уведомления
func FormatNotification(n *model.Notification) string {
	switch n.Kind {
	case model.NotificationBookingApply:
		return fmt.Sprintf("📥 Новая заявка на «%s»", n.PostTitle)
	case model.NotificationBookingConfirm:
		return fmt.Sprintf("✅ %s подтвердил(а) вашу заявку", n.FromName)
	case model.NotificationCourseEndtime:
		if n.Read {
			return fmt.Sprintf("📝 Занятие %d по «%s» закончилось (%s). Оставьте отзыв!",
				n.SequenceNumber, n.PostTitle, n.DisplayTimeRange())
		}
		return fmt.Sprintf("📅 Занятие %d по «%s»: %s", n.SequenceNumber, n.PostTitle, n.DisplayTimeRange())
	}
	return ""
}

// FormatNotificationList текст упорядоченной ленты
func FormatNotificationList(view []*model.Notification) string {
	if len(view) == 0 {
		return "🔕 Уведомлений нет"
	}

	var sb strings.Builder
	sb.WriteString("🔔 Последние уведомления:\n")
	for i, n := range view {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, FormatNotification(n))
	}
	return sb.String()
}

// pluralizeCoins возвращает правильное склонение слова "монета"
func pluralizeCoins(count int) string {
	if count%10 == 1 && count%100 != 11 {
		return "монета"
	}
	if count%10 >= 2 && count%10 <= 4 && (count%100 < 10 || count%100 >= 20) {
		return "монеты"
	}
	return "монет"
}

// FormatPendingBooking текст заявки для автора поста
func FormatPendingBooking(b *model.Booking) string {
	times := make([]string, len(b.SelectedTimes))
	for i, ref := range b.SelectedTimes {
		times[i] = ref.String()
	}
	return fmt.Sprintf("📥 Заявка на «%s»\nПакет: %s\nСтоимость: %d %s\nВремя:\n%s",
		b.PostTitle, b.CourseOption, b.CoinsTotal, pluralizeCoins(b.CoinsTotal), strings.Join(times, "\n"))
}

// errorMessage возвращает пользовательское сообщение для ошибки ядра
func errorMessage(err error) string {
	switch {
	case errors.Is(err, model.ErrLinkTokenInvalid):
		return "❌ Ссылка привязки недействительна или устарела. Получите новую в приложении"
	case errors.Is(err, model.ErrTelegramLinked):
		return "❌ Этот Telegram уже привязан к другому аккаунту"
	case errors.Is(err, model.ErrNotFound):
		return "❌ Не найдено"
	case errors.Is(err, model.ErrNotPending):
		return "❌ Заявка уже обработана"
	case errors.Is(err, model.ErrNotAuthorized):
		return "❌ У вас нет доступа к этой заявке"
	case errors.Is(err, model.ErrInsufficientFunds):
		return "❌ У ученика недостаточно монет. Заявка остаётся в ожидании"
	case errors.Is(err, model.ErrStorageUnavailable):
		return "❌ Сервис временно недоступен. Попробуйте позже"
	default:
		return "❌ Произошла ошибка"
	}
}
