package telegram

import (
	"testing"
	"time"

	"github.com/Freeeeeet/skillswap/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCallback(t *testing.T) {
	action, bookingID, err := parseCallback(callbackData(actionConfirm, "b-1"))
	require.NoError(t, err)
	assert.Equal(t, actionConfirm, action)
	assert.Equal(t, "b-1", bookingID)

	action, _, err = parseCallback("booking:reject:b-2")
	require.NoError(t, err)
	assert.Equal(t, actionReject, action)

	for _, data := range []string{"", "booking:", "booking:confirm:", "booking:delete:b-1", "slot:confirm:b-1"} {
		_, _, err := parseCallback(data)
		assert.ErrorIs(t, err, errInvalidCallback, data)
	}
}

func TestBookingKeyboard(t *testing.T) {
	kb := bookingKeyboard("b-1")
	require.Len(t, kb.InlineKeyboard, 1)
	require.Len(t, kb.InlineKeyboard[0], 2)
	assert.Equal(t, "booking:confirm:b-1", kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "booking:reject:b-1", kb.InlineKeyboard[0][1].CallbackData)
}

func TestFormatNotification(t *testing.T) {
	tr := &model.TimeRange{Start: time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)}
	end := &model.Notification{
		Kind:           model.NotificationCourseEndtime,
		PostTitle:      "Go basics",
		SequenceNumber: 2,
		TimeRange:      tr,
	}

	assert.Equal(t, "📅 Занятие 2 по «Go basics»: 2024-06-01 (Sat) 14:00 - 14:50", FormatNotification(end))

	end.Read = true
	assert.Contains(t, FormatNotification(end), "Оставьте отзыв")

	confirm := &model.Notification{Kind: model.NotificationBookingConfirm, FromName: "Bob"}
	assert.Equal(t, "✅ Bob подтвердил(а) вашу заявку", FormatNotification(confirm))
}

func TestFormatNotificationList(t *testing.T) {
	assert.Equal(t, "🔕 Уведомлений нет", FormatNotificationList(nil))

	text := FormatNotificationList([]*model.Notification{
		{Kind: model.NotificationBookingConfirm, FromName: "Bob"},
		{Kind: model.NotificationBookingConfirm, FromName: "Carol"},
	})
	assert.Contains(t, text, "1. ✅ Bob")
	assert.Contains(t, text, "2. ✅ Carol")
}

func TestFormatPendingBooking(t *testing.T) {
	text := FormatPendingBooking(&model.Booking{
		PostTitle:     "Go basics",
		CourseOption:  model.CourseX3,
		CoinsTotal:    6,
		SelectedTimes: []model.SlotRef{{Date: "2024-06-01", Hour: 9}, {Date: "2024-06-01", Hour: 10}},
	})
	assert.Contains(t, text, "Пакет: x3")
	assert.Contains(t, text, "Стоимость: 6 монет")
	assert.Contains(t, text, "2024-06-01 09:00\n2024-06-01 10:00")
}

func TestErrorMessage(t *testing.T) {
	assert.Contains(t, errorMessage(model.ErrInsufficientFunds), "недостаточно монет")
	assert.Contains(t, errorMessage(model.ErrNotPending), "уже обработана")
	assert.Contains(t, errorMessage(model.ErrLinkTokenInvalid), "недействительна")
	assert.Contains(t, errorMessage(model.ErrTelegramLinked), "другому аккаунту")
}

func TestPluralizeCoins(t *testing.T) {
	tests := map[int]string{1: "монета", 2: "монеты", 4: "монеты", 5: "монет", 11: "монет", 12: "монет", 21: "монета", 22: "монеты"}
	for count, want := range tests {
		assert.Equal(t, want, pluralizeCoins(count), count)
	}
}
