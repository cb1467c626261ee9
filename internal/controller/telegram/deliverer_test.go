package telegram

import (
	"context"
	"errors"
	"testing"

	"github.com/Freeeeeet/skillswap/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeSender struct {
	sent []*bot.SendMessageParams
	err  error
}

func (s *fakeSender) SendMessage(_ context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.sent = append(s.sent, params)
	return &models.Message{}, nil
}

type fakeUsers map[string]*model.User

func (u fakeUsers) GetByID(_ context.Context, uid string) (*model.User, error) {
	return u[uid], nil
}

func linkedUsers() fakeUsers {
	chat := int64(1001)
	return fakeUsers{
		"bob":   {UID: "bob", Name: "Bob", TelegramID: &chat},
		"alice": {UID: "alice", Name: "Alice"},
	}
}

func TestDeliverBookingApplyWithKeyboard(t *testing.T) {
	sender := &fakeSender{}
	d := NewDeliverer(sender, linkedUsers(), zaptest.NewLogger(t))

	err := d.Deliver(context.Background(), &model.Notification{
		ID:        "n1",
		Kind:      model.NotificationBookingApply,
		OwnerUID:  "bob",
		BookingID: "b-1",
		PostTitle: "Go basics",
	})
	require.NoError(t, err)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(1001), sender.sent[0].ChatID)
	assert.Contains(t, sender.sent[0].Text, "Go basics")
	assert.Equal(t, bookingKeyboard("b-1"), sender.sent[0].ReplyMarkup)
}

func TestDeliverSkips(t *testing.T) {
	sender := &fakeSender{}
	d := NewDeliverer(sender, linkedUsers(), zaptest.NewLogger(t))
	ctx := context.Background()

	// Непрочитанный course_endtime ждёт sweep
	require.NoError(t, d.Deliver(ctx, &model.Notification{Kind: model.NotificationCourseEndtime, OwnerUID: "bob"}))
	// Нет привязанного чата
	require.NoError(t, d.Deliver(ctx, &model.Notification{Kind: model.NotificationBookingConfirm, OwnerUID: "alice"}))
	// Неизвестный пользователь
	require.NoError(t, d.Deliver(ctx, &model.Notification{Kind: model.NotificationBookingConfirm, OwnerUID: "eve"}))

	assert.Empty(t, sender.sent)

	require.NoError(t, d.Deliver(ctx, &model.Notification{Kind: model.NotificationCourseEndtime, OwnerUID: "bob", Read: true}))
	assert.Len(t, sender.sent, 1)
}

func TestDeliverSendError(t *testing.T) {
	sender := &fakeSender{err: errors.New("blocked by user")}
	d := NewDeliverer(sender, linkedUsers(), zaptest.NewLogger(t))

	err := d.Deliver(context.Background(), &model.Notification{Kind: model.NotificationBookingConfirm, OwnerUID: "bob"})
	assert.Error(t, err)
}
