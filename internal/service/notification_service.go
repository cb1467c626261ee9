package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/Freeeeeet/skillswap/internal/metrics"
	"github.com/Freeeeeet/skillswap/internal/model"
	"go.uber.org/zap"
)

const (
	// OrderedViewLimit сколько уведомлений показывается в ленте
	OrderedViewLimit = 5

	// Sweep работает только в окне минут [50,55] каждого часа
	sweepWindowFrom = 50
	sweepWindowTo   = 55

	// Занятие показывается, если с его окончания прошло 0..2 минуты
	sweepGraceMinutes = 2
)

type NotificationService struct {
	notificationRepo NotificationRepository
	feed             NotificationFeed
	deliverer        Deliverer
	location         *time.Location
	logger           *zap.Logger
	now              func() time.Time
}

func NewNotificationService(
	notificationRepo NotificationRepository,
	feed NotificationFeed,
	location *time.Location,
	logger *zap.Logger,
) *NotificationService {
	if location == nil {
		location = time.UTC
	}
	return &NotificationService{
		notificationRepo: notificationRepo,
		feed:             feed,
		location:         location,
		logger:           logger,
		now:              time.Now,
	}
}

// SetDeliverer подключает внешний канал доставки новых уведомлений
func (s *NotificationService) SetDeliverer(d Deliverer) {
	s.deliverer = d
}

// Location часовой пояс, в котором интерпретируются слоты
func (s *NotificationService) Location() *time.Location {
	return s.location
}

// NotifyBookingApply уведомляет автора поста о новой заявке
func (s *NotificationService) NotifyBookingApply(ctx context.Context, booking *model.Booking) error {
	n := &model.Notification{
		ID:        model.NotificationID(model.NotificationBookingApply, booking.ProviderUID, booking.ID, 0),
		Kind:      model.NotificationBookingApply,
		OwnerUID:  booking.ProviderUID,
		FromUID:   booking.DemanderUID,
		CreatedAt: s.now().UTC(),
		BookingID: booking.ID,
		PostTitle: booking.PostTitle,
	}
	return s.emit(ctx, []*model.Notification{n})
}

// NotifyBookingConfirmed отправляет ученику подтверждение и обеим сторонам
// по одному уведомлению о конце каждого занятия
func (s *NotificationService) NotifyBookingConfirmed(ctx context.Context, booking *model.Booking, providerName string) error {
	created := s.now().UTC()

	notifications := []*model.Notification{{
		ID:        model.NotificationID(model.NotificationBookingConfirm, booking.DemanderUID, booking.ID, 0),
		Kind:      model.NotificationBookingConfirm,
		OwnerUID:  booking.DemanderUID,
		FromUID:   booking.ProviderUID,
		FromName:  providerName,
		CreatedAt: created,
		BookingID: booking.ID,
	}}

	for i, ref := range booking.SelectedTimes {
		tr, err := ref.TimeRange(s.location)
		if err != nil {
			return fmt.Errorf("session %d time range: %w", i+1, err)
		}
		for _, owner := range []string{booking.DemanderUID, booking.ProviderUID} {
			from := booking.ProviderUID
			if owner == booking.ProviderUID {
				from = booking.DemanderUID
			}
			timeRange := tr
			notifications = append(notifications, &model.Notification{
				ID:             model.NotificationID(model.NotificationCourseEndtime, owner, booking.ID, i+1),
				Kind:           model.NotificationCourseEndtime,
				OwnerUID:       owner,
				FromUID:        from,
				CreatedAt:      created,
				BookingID:      booking.ID,
				TimeRange:      &timeRange,
				PostTitle:      booking.PostTitle,
				SequenceNumber: i + 1,
				DemanderUID:    booking.DemanderUID,
				ProviderUID:    booking.ProviderUID,
			})
		}
	}

	return s.emit(ctx, notifications)
}

func (s *NotificationService) emit(ctx context.Context, notifications []*model.Notification) error {
	inserted, err := s.notificationRepo.Insert(ctx, notifications)
	if err != nil {
		return fmt.Errorf("insert notifications: %w", err)
	}

	for _, n := range inserted {
		metrics.NotificationsEmitted.WithLabelValues(string(n.Kind)).Inc()
	}

	if s.deliverer == nil {
		return nil
	}
	for _, n := range inserted {
		// Доставка best-effort: уведомление уже сохранено
		if err := s.deliverer.Deliver(ctx, n); err != nil {
			s.logger.Warn("Failed to deliver notification",
				zap.String("notification_id", n.ID),
				zap.String("owner_uid", n.OwnerUID),
				zap.Error(err),
			)
		}
	}
	return nil
}

// OrderNotifications строит ленту уведомлений: course_endtime и booking_confirm
// (booking_apply показываются отдельно), по убыванию времени, не больше пяти.
// Результат зависит только от множества входных уведомлений
func OrderNotifications(notifications []*model.Notification) []*model.Notification {
	var endtimes, confirms []*model.Notification
	for _, n := range notifications {
		switch n.Kind {
		case model.NotificationCourseEndtime:
			endtimes = append(endtimes, n)
		case model.NotificationBookingConfirm:
			confirms = append(confirms, n)
		}
	}

	byID := func(list []*model.Notification) {
		sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	}
	byID(endtimes)
	byID(confirms)

	merged := make([]*model.Notification, 0, len(endtimes)+len(confirms))
	merged = append(merged, endtimes...)
	merged = append(merged, confirms...)

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.BookingID != "" && a.BookingID == b.BookingID && a.Kind != b.Kind {
			// Для одного бронирования конец занятия важнее подтверждения
			return a.Kind == model.NotificationCourseEndtime
		}
		return a.SortTime().After(b.SortTime())
	})

	if len(merged) > OrderedViewLimit {
		merged = merged[:OrderedViewLimit]
	}
	return merged
}

// List возвращает упорядоченную ленту пользователя
func (s *NotificationService) List(ctx context.Context, uid string) ([]*model.Notification, error) {
	if uid == "" {
		return nil, model.ErrNotAuthenticated
	}
	all, err := s.notificationRepo.ListByOwner(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return OrderNotifications(all), nil
}

// Applications возвращает заявки на бронирование (показываются отдельно от ленты)
func (s *NotificationService) Applications(ctx context.Context, uid string) ([]*model.Notification, error) {
	if uid == "" {
		return nil, model.ErrNotAuthenticated
	}
	all, err := s.notificationRepo.ListByOwner(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	var apps []*model.Notification
	for _, n := range all {
		if n.Kind == model.NotificationBookingApply {
			apps = append(apps, n)
		}
	}
	sort.SliceStable(apps, func(i, j int) bool { return apps[i].CreatedAt.After(apps[j].CreatedAt) })
	return apps, nil
}

// Get возвращает уведомление пользователя
func (s *NotificationService) Get(ctx context.Context, uid, id string) (*model.Notification, error) {
	if uid == "" {
		return nil, model.ErrNotAuthenticated
	}
	n, err := s.notificationRepo.GetByID(ctx, uid, id)
	if err != nil {
		return nil, fmt.Errorf("get notification: %w", err)
	}
	if n == nil {
		return nil, model.ErrNotFound
	}
	return n, nil
}

// InSweepWindow true, если now попадает в ежечасное окно проверки
func InSweepWindow(now time.Time) bool {
	m := now.Minute()
	return m >= sweepWindowFrom && m <= sweepWindowTo
}

// justEnded true, если занятие закончилось 0..2 целых минуты назад
func justEnded(now time.Time, tr *model.TimeRange) bool {
	if tr == nil {
		return false
	}
	delta := now.Sub(tr.End())
	if delta < 0 {
		return false
	}
	return int(delta/time.Minute) <= sweepGraceMinutes
}

// Sweep находит непрочитанные уведомления о только что закончившихся занятиях,
// помечает их прочитанными одним батчем и возвращает. Вне окна минут
// [50,55] ничего не читает и не меняет
func (s *NotificationService) Sweep(ctx context.Context, uid string, now time.Time) ([]*model.Notification, error) {
	if uid == "" {
		return nil, model.ErrNotAuthenticated
	}
	now = now.In(s.location)
	if !InSweepWindow(now) {
		return nil, nil
	}

	unread, err := s.notificationRepo.ListUnread(ctx, uid, model.NotificationCourseEndtime)
	if err != nil {
		return nil, fmt.Errorf("list unread course endtime: %w", err)
	}

	var surfaced []*model.Notification
	var ids []string
	for _, n := range unread {
		if !justEnded(now, n.TimeRange) {
			continue
		}
		surfaced = append(surfaced, n)
		ids = append(ids, n.ID)
	}

	if len(ids) == 0 {
		return nil, nil
	}

	if err := s.notificationRepo.MarkRead(ctx, uid, ids); err != nil {
		return nil, fmt.Errorf("mark surfaced read: %w", err)
	}

	for _, n := range surfaced {
		n.Read = true
	}
	metrics.SweepSurfaced.Add(float64(len(surfaced)))

	s.logger.Info("Course end notifications surfaced",
		zap.String("uid", uid),
		zap.Int("count", len(surfaced)),
	)
	return surfaced, nil
}

// MarkRead помечает уведомления прочитанными. Повторный вызов ничего не меняет
func (s *NotificationService) MarkRead(ctx context.Context, uid string, ids []string) error {
	if uid == "" {
		return model.ErrNotAuthenticated
	}
	if len(ids) == 0 {
		return nil
	}
	if err := s.notificationRepo.MarkRead(ctx, uid, ids); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// Watch подписывается на изменения уведомлений пользователя и на каждое
// изменение отдаёт пересчитанную ленту. Канал закрывается при отмене ctx
func (s *NotificationService) Watch(ctx context.Context, uid string) (<-chan []*model.Notification, error) {
	if uid == "" {
		return nil, model.ErrNotAuthenticated
	}
	changes, err := s.feed.Subscribe(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("subscribe notifications: %w", err)
	}

	out := make(chan []*model.Notification, 1)
	go func() {
		defer close(out)

		push := func() bool {
			view, err := s.List(ctx, uid)
			if err != nil {
				s.logger.Warn("Failed to reload notifications",
					zap.String("uid", uid),
					zap.Error(err),
				)
				return ctx.Err() == nil
			}
			select {
			case out <- view:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !push() {
			return
		}
		for {
			select {
			case _, ok := <-changes:
				if !ok || !push() {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
