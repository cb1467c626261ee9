package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Freeeeeet/skillswap/internal/model"
	"github.com/Freeeeeet/skillswap/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveClosesSlots(t *testing.T) {
	f := newFixture(t, BookingPolicy{})
	ctx := context.Background()
	post := f.seedPost(t, 10, 9, 10)

	booking, err := f.bookings.Reserve(ctx, alice, post.ID, model.CourseX1, []model.SlotRef{slot(9)})
	require.NoError(t, err)

	assert.Equal(t, model.BookingStatusPending, booking.Status)
	assert.Equal(t, 2, booking.CoinsTotal)
	assert.Equal(t, bob, booking.ProviderUID)
	assert.Equal(t, alice, booking.DemanderUID)

	open, err := f.bookings.OpenSlots(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.SlotRef{slot(10)}, open)

	// Монеты не двигаются до подтверждения
	assert.Equal(t, 10, f.balance(t, alice))

	apps := f.notificationsOf(t, bob, model.NotificationBookingApply)
	require.Len(t, apps, 1)
	assert.Equal(t, booking.ID, apps[0].BookingID)
	assert.Equal(t, alice, apps[0].FromUID)
}

func TestReserveSortsSelection(t *testing.T) {
	f := newFixture(t, BookingPolicy{})
	post := f.seedPost(t, 10, 9, 10, 11)

	booking, err := f.bookings.Reserve(context.Background(), alice, post.ID, model.CourseX3,
		[]model.SlotRef{slot(11), slot(9), slot(10)})
	require.NoError(t, err)

	assert.Equal(t, []model.SlotRef{slot(9), slot(10), slot(11)}, booking.SelectedTimes)
	assert.Equal(t, 6, booking.CoinsTotal)
}

func TestReserveTrialCostsOneCoin(t *testing.T) {
	f := newFixture(t, BookingPolicy{})
	post := f.seedPost(t, 10, 9)

	booking, err := f.bookings.Reserve(context.Background(), alice, post.ID, model.CourseTrial, []model.SlotRef{slot(9)})
	require.NoError(t, err)
	assert.Equal(t, model.TrialPrice, booking.CoinsTotal)
}

func TestReserveValidation(t *testing.T) {
	f := newFixture(t, BookingPolicy{})
	ctx := context.Background()
	post := f.seedPost(t, 10, 9, 10)

	tests := []struct {
		name   string
		caller string
		postID string
		option model.CourseOption
		slots  []model.SlotRef
		want   error
	}{
		{"unauthenticated", "", post.ID, model.CourseX1, []model.SlotRef{slot(9)}, model.ErrNotAuthenticated},
		{"self booking", bob, post.ID, model.CourseX1, []model.SlotRef{slot(9)}, model.ErrSelfBooking},
		{"unknown option", alice, post.ID, model.CourseOption("x2"), []model.SlotRef{slot(9)}, model.ErrCourseOptionUnavailable},
		{"option not offered", alice, post.ID, model.CourseX5, []model.SlotRef{slot(9)}, model.ErrCourseOptionUnavailable},
		{"count mismatch", alice, post.ID, model.CourseX1, []model.SlotRef{slot(9), slot(10)}, model.ErrInsufficientSelection},
		{"duplicate slots", alice, post.ID, model.CourseX3, []model.SlotRef{slot(9), slot(9), slot(10)}, model.ErrInsufficientSelection},
		{"slot not in calendar", alice, post.ID, model.CourseX1, []model.SlotRef{slot(15)}, model.ErrSlotUnavailable},
		{"unknown post", alice, "missing", model.CourseX1, []model.SlotRef{slot(9)}, model.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.bookings.Reserve(ctx, tt.caller, tt.postID, tt.option, tt.slots)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	// Ни одна неудачная попытка не закрыла слоты
	open, err := f.bookings.OpenSlots(ctx, post.ID)
	require.NoError(t, err)
	assert.Len(t, open, 2)
}

func TestReserveAlreadyTaken(t *testing.T) {
	f := newFixture(t, BookingPolicy{})
	ctx := context.Background()
	post := f.seedPost(t, 10, 9, 10)

	_, err := f.bookings.Reserve(ctx, alice, post.ID, model.CourseX1, []model.SlotRef{slot(9)})
	require.NoError(t, err)

	_, err = f.users.RegisterUser(ctx, "carol", "Carol")
	require.NoError(t, err)
	_, err = f.bookings.Reserve(ctx, "carol", post.ID, model.CourseX1, []model.SlotRef{slot(9)})
	assert.ErrorIs(t, err, model.ErrSlotUnavailable)
}

func TestReserveConcurrentSingleWinner(t *testing.T) {
	f := newFixture(t, BookingPolicy{})
	ctx := context.Background()
	post := f.seedPost(t, 10, 9)

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			uid := "demander-" + string(rune('a'+i))
			_, err := f.bookings.Reserve(ctx, uid, post.ID, model.CourseX1, []model.SlotRef{slot(9)})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, model.ErrSlotUnavailable):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)
}

func TestConfirmMovesCoinsAndNotifies(t *testing.T) {
	f := newFixture(t, BookingPolicy{})
	ctx := context.Background()
	post := f.seedPost(t, 10, 9, 10)

	booking, err := f.bookings.Reserve(ctx, alice, post.ID, model.CourseX1, []model.SlotRef{slot(9)})
	require.NoError(t, err)

	confirmed, err := f.bookings.Confirm(ctx, bob, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, confirmed.Status)

	assert.Equal(t, 8, f.balance(t, alice))
	assert.Equal(t, 2, f.balance(t, bob))

	confirms := f.notificationsOf(t, alice, model.NotificationBookingConfirm)
	require.Len(t, confirms, 1)
	assert.Equal(t, "Bob", confirms[0].FromName)
	assert.Equal(t, bob, confirms[0].FromUID)

	for _, owner := range []string{alice, bob} {
		endtimes := f.notificationsOf(t, owner, model.NotificationCourseEndtime)
		require.Len(t, endtimes, 1, owner)
		n := endtimes[0]
		assert.Equal(t, 1, n.SequenceNumber)
		assert.Equal(t, "Go basics", n.PostTitle)
		assert.Equal(t, alice, n.DemanderUID)
		assert.Equal(t, bob, n.ProviderUID)
		assert.Equal(t, "2024-06-01 (Sat) 09:00 - 09:50", n.DisplayTimeRange())
		assert.False(t, n.Read)
	}
	// FromUID указывает на другую сторону
	assert.Equal(t, bob, f.notificationsOf(t, alice, model.NotificationCourseEndtime)[0].FromUID)
	assert.Equal(t, alice, f.notificationsOf(t, bob, model.NotificationCourseEndtime)[0].FromUID)
}

func TestConfirmSequenceNumbersFollowTime(t *testing.T) {
	f := newFixture(t, BookingPolicy{})
	ctx := context.Background()
	post := f.seedPost(t, 10, 9, 10, 11)

	booking, err := f.bookings.Reserve(ctx, alice, post.ID, model.CourseX3, []model.SlotRef{slot(10), slot(11), slot(9)})
	require.NoError(t, err)
	_, err = f.bookings.Confirm(ctx, bob, booking.ID)
	require.NoError(t, err)

	bySeq := make(map[int]int)
	for _, n := range f.notificationsOf(t, alice, model.NotificationCourseEndtime) {
		bySeq[n.SequenceNumber] = n.TimeRange.Start.Hour()
	}
	assert.Equal(t, map[int]int{1: 9, 2: 10, 3: 11}, bySeq)
}

func TestConfirmInsufficientFundsKeepsPending(t *testing.T) {
	f := newFixture(t, BookingPolicy{})
	ctx := context.Background()
	post := f.seedPost(t, 1, 9, 10, 11)

	booking, err := f.bookings.Reserve(ctx, alice, post.ID, model.CourseX3, []model.SlotRef{slot(9), slot(10), slot(11)})
	require.NoError(t, err)

	_, err = f.bookings.Confirm(ctx, bob, booking.ID)
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)

	current, err := f.bookings.Get(ctx, bob, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusPending, current.Status)
	assert.Equal(t, 1, f.balance(t, alice))
	assert.Equal(t, 0, f.balance(t, bob))
	assert.Empty(t, f.notificationsOf(t, alice, model.NotificationBookingConfirm))

	// После пополнения подтверждение проходит
	_, err = f.ledger.Deposit(ctx, alice, 5)
	require.NoError(t, err)
	_, err = f.bookings.Confirm(ctx, bob, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, f.balance(t, alice))
	assert.Equal(t, 6, f.balance(t, bob))
}

func TestConfirmAndRejectGuards(t *testing.T) {
	f := newFixture(t, BookingPolicy{})
	ctx := context.Background()
	post := f.seedPost(t, 10, 9, 10)

	booking, err := f.bookings.Reserve(ctx, alice, post.ID, model.CourseX1, []model.SlotRef{slot(9)})
	require.NoError(t, err)

	_, err = f.bookings.Confirm(ctx, alice, booking.ID)
	assert.ErrorIs(t, err, model.ErrNotAuthorized)
	_, err = f.bookings.Reject(ctx, alice, booking.ID)
	assert.ErrorIs(t, err, model.ErrNotAuthorized)
	_, err = f.bookings.Confirm(ctx, "", booking.ID)
	assert.ErrorIs(t, err, model.ErrNotAuthenticated)
	_, err = f.bookings.Confirm(ctx, bob, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = f.bookings.Confirm(ctx, bob, booking.ID)
	require.NoError(t, err)

	_, err = f.bookings.Confirm(ctx, bob, booking.ID)
	assert.ErrorIs(t, err, model.ErrNotPending)
	_, err = f.bookings.Reject(ctx, bob, booking.ID)
	assert.ErrorIs(t, err, model.ErrNotPending)

	// Повторные вызовы не двигают монеты
	assert.Equal(t, 8, f.balance(t, alice))
	assert.Equal(t, 2, f.balance(t, bob))
}

func TestRejectKeepsSlotsClosedByDefault(t *testing.T) {
	f := newFixture(t, BookingPolicy{})
	ctx := context.Background()
	post := f.seedPost(t, 10, 9, 10)

	booking, err := f.bookings.Reserve(ctx, alice, post.ID, model.CourseX1, []model.SlotRef{slot(9)})
	require.NoError(t, err)

	rejected, err := f.bookings.Reject(ctx, bob, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusCancelled, rejected.Status)

	open, err := f.bookings.OpenSlots(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.SlotRef{slot(10)}, open)
	assert.Equal(t, 10, f.balance(t, alice))
}

func TestRejectReopensSlotsWithPolicy(t *testing.T) {
	f := newFixture(t, BookingPolicy{ReopenSlotsOnReject: true})
	ctx := context.Background()
	post := f.seedPost(t, 10, 9, 10)

	booking, err := f.bookings.Reserve(ctx, alice, post.ID, model.CourseX1, []model.SlotRef{slot(9)})
	require.NoError(t, err)
	_, err = f.bookings.Reject(ctx, bob, booking.ID)
	require.NoError(t, err)

	open, err := f.bookings.OpenSlots(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.SlotRef{slot(9), slot(10)}, open)
}

// rejectingBookingRepo отклоняет бронирование прямо перед подтверждением,
// имитируя гонку двух действий автора
type rejectingBookingRepo struct {
	*memory.BookingRepository
}

func (r rejectingBookingRepo) TransitionStatus(ctx context.Context, id string, from, to model.BookingStatus) (*model.Booking, error) {
	if to == model.BookingStatusConfirmed {
		if _, err := r.BookingRepository.TransitionStatus(ctx, id, from, model.BookingStatusCancelled); err != nil {
			return nil, err
		}
	}
	return r.BookingRepository.TransitionStatus(ctx, id, from, to)
}

func TestConfirmLosingRaceRefunds(t *testing.T) {
	f := newFixture(t, BookingPolicy{})
	ctx := context.Background()
	post := f.seedPost(t, 10, 9, 10)

	booking, err := f.bookings.Reserve(ctx, alice, post.ID, model.CourseX1, []model.SlotRef{slot(9)})
	require.NoError(t, err)

	f.bookings.bookingRepo = rejectingBookingRepo{f.store.Bookings()}

	_, err = f.bookings.Confirm(ctx, bob, booking.ID)
	assert.ErrorIs(t, err, model.ErrNotPending)

	assert.Equal(t, 10, f.balance(t, alice))
	assert.Equal(t, 0, f.balance(t, bob))
	assert.Empty(t, f.notificationsOf(t, alice, model.NotificationBookingConfirm))
}

// flakyBookingRepo один раз отвечает ошибкой хранилища на подтверждение
type flakyBookingRepo struct {
	*memory.BookingRepository
	failed bool
}

func (r *flakyBookingRepo) TransitionStatus(ctx context.Context, id string, from, to model.BookingStatus) (*model.Booking, error) {
	if to == model.BookingStatusConfirmed && !r.failed {
		r.failed = true
		return nil, model.ErrStorageUnavailable
	}
	return r.BookingRepository.TransitionStatus(ctx, id, from, to)
}

func TestConfirmRetryAfterStorageFailureChargesAgain(t *testing.T) {
	f := newFixture(t, BookingPolicy{})
	ctx := context.Background()
	post := f.seedPost(t, 10, 9)

	booking, err := f.bookings.Reserve(ctx, alice, post.ID, model.CourseX1, []model.SlotRef{slot(9)})
	require.NoError(t, err)

	f.bookings.bookingRepo = &flakyBookingRepo{BookingRepository: f.store.Bookings()}

	_, err = f.bookings.Confirm(ctx, bob, booking.ID)
	require.ErrorIs(t, err, model.ErrStorageUnavailable)
	assert.Equal(t, 10, f.balance(t, alice))
	assert.Equal(t, 0, f.balance(t, bob))

	confirmed, err := f.bookings.Confirm(ctx, bob, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, confirmed.Status)
	assert.Equal(t, 10-booking.CoinsTotal, f.balance(t, alice))
	assert.Equal(t, booking.CoinsTotal, f.balance(t, bob))
}

func TestBookingVisibleOnlyToParties(t *testing.T) {
	f := newFixture(t, BookingPolicy{})
	ctx := context.Background()
	post := f.seedPost(t, 10, 9)

	booking, err := f.bookings.Reserve(ctx, alice, post.ID, model.CourseX1, []model.SlotRef{slot(9)})
	require.NoError(t, err)

	_, err = f.bookings.Get(ctx, alice, booking.ID)
	assert.NoError(t, err)
	_, err = f.bookings.Get(ctx, bob, booking.ID)
	assert.NoError(t, err)
	_, err = f.bookings.Get(ctx, "eve", booking.ID)
	assert.ErrorIs(t, err, model.ErrNotAuthorized)

	pending := model.BookingStatusPending
	list, err := f.bookings.ListForProvider(ctx, bob, &pending)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, booking.ID, list[0].ID)

	mine, err := f.bookings.ListForDemander(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestRepairNotificationsIsIdempotent(t *testing.T) {
	f := newFixture(t, BookingPolicy{})
	ctx := context.Background()
	post := f.seedPost(t, 10, 9, 10)

	booking, err := f.bookings.Reserve(ctx, alice, post.ID, model.CourseX1, []model.SlotRef{slot(9)})
	require.NoError(t, err)
	_, err = f.bookings.Confirm(ctx, bob, booking.ID)
	require.NoError(t, err)

	require.NoError(t, f.bookings.RepairNotifications(ctx, alice, booking.ID))
	require.NoError(t, f.bookings.RepairNotifications(ctx, bob, booking.ID))

	assert.Len(t, f.notificationsOf(t, bob, model.NotificationBookingApply), 1)
	assert.Len(t, f.notificationsOf(t, alice, model.NotificationBookingConfirm), 1)
	assert.Len(t, f.notificationsOf(t, alice, model.NotificationCourseEndtime), 1)
	assert.Len(t, f.notificationsOf(t, bob, model.NotificationCourseEndtime), 1)
}

func TestCreatePostValidation(t *testing.T) {
	f := newFixture(t, BookingPolicy{})
	ctx := context.Background()

	_, err := f.bookings.CreatePost(ctx, bob, CreatePostRequest{Title: " ", CoinCost: 1, CourseOptions: []model.CourseOption{model.CourseX1}})
	assert.Equal(t, model.KindValidation, model.KindOf(err))

	_, err = f.bookings.CreatePost(ctx, bob, CreatePostRequest{Title: "Go", CoinCost: 0, CourseOptions: []model.CourseOption{model.CourseX1}})
	assert.Equal(t, model.KindValidation, model.KindOf(err))

	_, err = f.bookings.CreatePost(ctx, bob, CreatePostRequest{
		Title:         "Go",
		CoinCost:      1,
		CourseOptions: []model.CourseOption{model.CourseX1},
		Slots:         []model.SlotRef{{Date: "2024-06-01", Hour: 5}},
	})
	assert.Equal(t, model.KindValidation, model.KindOf(err))
}
