package service

import (
	"context"
	"testing"
	"time"

	"github.com/Freeeeeet/skillswap/internal/model"
	"github.com/Freeeeeet/skillswap/internal/repository/memory"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	alice = "alice" // ученик
	bob   = "bob"   // автор поста
)

var testDay = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

type fixture struct {
	store         *memory.Store
	ledger        *LedgerService
	notifications *NotificationService
	bookings      *BookingService
	portfolio     *PortfolioService
	users         *UserService
}

func newFixture(t *testing.T, policy BookingPolicy) *fixture {
	t.Helper()

	logger := zaptest.NewLogger(t)
	store := memory.NewStore()

	ledger := NewLedgerService(store.Accounts(), logger)
	notifications := NewNotificationService(store.Notifications(), store.Feed(), time.UTC, logger)

	return &fixture{
		store:         store,
		ledger:        ledger,
		notifications: notifications,
		bookings:      NewBookingService(store.Posts(), store.Bookings(), store.Users(), ledger, notifications, policy, logger),
		portfolio:     NewPortfolioService(store.Portfolio(), store.Bookings(), store.Notifications(), logger),
		users:         NewUserService(store.Users(), ledger, 0, logger),
	}
}

func slot(hour int) model.SlotRef {
	return model.NewSlotRef(testDay, hour)
}

func (f *fixture) registerParties(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	_, err := f.users.RegisterUser(ctx, alice, "Alice")
	require.NoError(t, err)
	_, err = f.users.RegisterUser(ctx, bob, "Bob")
	require.NoError(t, err)
}

// seedPost создаёт пост bob с coin_cost=2 и даёт alice монеты
func (f *fixture) seedPost(t *testing.T, aliceCoins int, hours ...int) *model.Post {
	t.Helper()
	ctx := context.Background()

	f.registerParties(t)

	if aliceCoins > 0 {
		_, err := f.ledger.Deposit(ctx, alice, aliceCoins)
		require.NoError(t, err)
	}

	slots := make([]model.SlotRef, len(hours))
	for i, h := range hours {
		slots[i] = slot(h)
	}

	post, err := f.bookings.CreatePost(ctx, bob, CreatePostRequest{
		Title:         "Go basics",
		CoinCost:      2,
		CourseOptions: []model.CourseOption{model.CourseTrial, model.CourseX1, model.CourseX3},
		Slots:         slots,
	})
	require.NoError(t, err)
	return post
}

func (f *fixture) balance(t *testing.T, uid string) int {
	t.Helper()
	account, err := f.ledger.Balance(context.Background(), uid)
	require.NoError(t, err)
	return account.Coins
}

func (f *fixture) notificationsOf(t *testing.T, uid string, kind model.NotificationKind) []*model.Notification {
	t.Helper()
	all, err := f.store.Notifications().ListByOwner(context.Background(), uid)
	require.NoError(t, err)

	var out []*model.Notification
	for _, n := range all {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}
