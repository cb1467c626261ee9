package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Freeeeeet/skillswap/internal/metrics"
	"github.com/Freeeeeet/skillswap/internal/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BookingPolicy настройки поведения слотов
type BookingPolicy struct {
	// ReopenSlotsOnReject открывает слоты обратно при отклонении заявки.
	// По умолчанию выключено: слоты сгорают в момент бронирования
	ReopenSlotsOnReject bool
}

// CreatePostRequest данные нового поста
type CreatePostRequest struct {
	Title         string
	CoinCost      int
	CourseOptions []model.CourseOption
	Slots         []model.SlotRef
}

type BookingService struct {
	postRepo      PostRepository
	bookingRepo   BookingRepository
	userRepo      UserRepository
	ledger        *LedgerService
	notifications *NotificationService
	policy        BookingPolicy
	logger        *zap.Logger
	now           func() time.Time
}

func NewBookingService(
	postRepo PostRepository,
	bookingRepo BookingRepository,
	userRepo UserRepository,
	ledger *LedgerService,
	notifications *NotificationService,
	policy BookingPolicy,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		postRepo:      postRepo,
		bookingRepo:   bookingRepo,
		userRepo:      userRepo,
		ledger:        ledger,
		notifications: notifications,
		policy:        policy,
		logger:        logger,
		now:           time.Now,
	}
}

// CreatePost создаёт пост с открытыми слотами
func (s *BookingService) CreatePost(ctx context.Context, authorUID string, req CreatePostRequest) (*model.Post, error) {
	if authorUID == "" {
		return nil, model.ErrNotAuthenticated
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, &model.Error{Kind: model.KindValidation, Message: "post title is required"}
	}
	if req.CoinCost <= 0 {
		return nil, &model.Error{Kind: model.KindValidation, Message: "coin cost must be positive"}
	}
	if len(req.CourseOptions) == 0 {
		return nil, &model.Error{Kind: model.KindValidation, Message: "at least one course option is required"}
	}
	for _, opt := range req.CourseOptions {
		if !opt.Valid() {
			return nil, model.ErrCourseOptionUnavailable
		}
	}

	calendar := make(model.SlotCalendar)
	for _, ref := range req.Slots {
		if err := ref.Validate(); err != nil {
			return nil, &model.Error{Kind: model.KindValidation, Message: err.Error()}
		}
		calendar.Open(ref)
	}

	post := &model.Post{
		ID:            uuid.NewString(),
		AuthorID:      authorUID,
		Title:         req.Title,
		CoinCost:      req.CoinCost,
		CourseOptions: req.CourseOptions,
		Calendar:      calendar,
		CreatedAt:     s.now().UTC(),
	}

	if err := s.postRepo.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}

	s.logger.Info("Post created",
		zap.String("post_id", post.ID),
		zap.String("author_uid", authorUID),
		zap.Int("slots", len(req.Slots)),
	)
	return post, nil
}

// GetPost получает пост по ID
func (s *BookingService) GetPost(ctx context.Context, postID string) (*model.Post, error) {
	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("get post: %w", err)
	}
	if post == nil {
		return nil, model.ErrNotFound
	}
	return post, nil
}

// OpenSlots оставшиеся открытые слоты поста, чтобы повторить бронирование
// после ErrSlotUnavailable
func (s *BookingService) OpenSlots(ctx context.Context, postID string) ([]model.SlotRef, error) {
	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	return post.Calendar.OpenSlots(), nil
}

// validateSelection проверяет количество и уникальность слотов и
// возвращает их в хронологическом порядке
func validateSelection(option model.CourseOption, slots []model.SlotRef) ([]model.SlotRef, error) {
	if len(slots) != option.Sessions() {
		return nil, model.ErrInsufficientSelection
	}

	seen := make(map[model.SlotRef]struct{}, len(slots))
	sorted := make([]model.SlotRef, 0, len(slots))
	for _, ref := range slots {
		if err := ref.Validate(); err != nil {
			return nil, model.ErrInsufficientSelection
		}
		if _, dup := seen[ref]; dup {
			return nil, model.ErrInsufficientSelection
		}
		seen[ref] = struct{}{}
		sorted = append(sorted, ref)
	}

	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Less(sorted[j]) })
	return sorted, nil
}

// Reserve бронирует слоты поста. Слоты закрываются сразу, не дожидаясь
// подтверждения; из двух конкурирующих бронирований одного слота проходит одно
func (s *BookingService) Reserve(ctx context.Context, callerUID, postID string, option model.CourseOption, slots []model.SlotRef) (*model.Booking, error) {
	if callerUID == "" {
		return nil, model.ErrNotAuthenticated
	}
	if !option.Valid() {
		metrics.Reservations.WithLabelValues("invalid").Inc()
		return nil, model.ErrCourseOptionUnavailable
	}

	post, err := s.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	if post.AuthorID == callerUID {
		metrics.Reservations.WithLabelValues("invalid").Inc()
		return nil, model.ErrSelfBooking
	}
	if !post.Offers(option) {
		metrics.Reservations.WithLabelValues("invalid").Inc()
		return nil, model.ErrCourseOptionUnavailable
	}

	selected, err := validateSelection(option, slots)
	if err != nil {
		metrics.Reservations.WithLabelValues("invalid").Inc()
		return nil, err
	}

	// Быстрая проверка по прочитанному календарю. Окончательная - условная
	// запись в CreateWithSlots
	for _, ref := range selected {
		if !post.Calendar.IsOpen(ref) {
			metrics.Reservations.WithLabelValues("slot_unavailable").Inc()
			return nil, model.ErrSlotUnavailable
		}
	}

	now := s.now().UTC()
	booking := &model.Booking{
		ID:            uuid.NewString(),
		PostID:        post.ID,
		PostTitle:     post.Title,
		DemanderUID:   callerUID,
		ProviderUID:   post.AuthorID,
		CourseOption:  option,
		SelectedTimes: selected,
		CoinsTotal:    option.Price(post.CoinCost),
		Status:        model.BookingStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	err = s.bookingRepo.CreateWithSlots(ctx, booking)
	if errors.Is(err, model.ErrSlotUnavailable) {
		metrics.Reservations.WithLabelValues("slot_unavailable").Inc()
		s.logger.Info("Reservation lost slot race",
			zap.String("post_id", postID),
			zap.String("demander_uid", callerUID),
		)
		return nil, model.ErrSlotUnavailable
	}
	if err != nil {
		metrics.Reservations.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("create booking: %w", err)
	}

	metrics.Reservations.WithLabelValues("ok").Inc()
	s.logger.Info("Slots reserved",
		zap.String("booking_id", booking.ID),
		zap.String("post_id", post.ID),
		zap.String("demander_uid", callerUID),
		zap.String("course_option", string(option)),
		zap.Int("coins_total", booking.CoinsTotal),
	)

	if err := s.notifications.NotifyBookingApply(ctx, booking); err != nil {
		// Бронирование уже сохранено, уведомление можно переотправить через RepairNotifications
		s.logger.Error("Failed to emit booking apply notification",
			zap.String("booking_id", booking.ID),
			zap.Error(err),
		)
	}

	return booking, nil
}

// getForProvider получает бронирование и проверяет, что вызывающий - автор поста
func (s *BookingService) getForProvider(ctx context.Context, callerUID, bookingID string) (*model.Booking, error) {
	if callerUID == "" {
		return nil, model.ErrNotAuthenticated
	}
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if booking == nil {
		return nil, model.ErrNotFound
	}
	if booking.ProviderUID != callerUID {
		return nil, model.ErrNotAuthorized
	}
	if booking.Status != model.BookingStatusPending {
		return nil, model.ErrNotPending
	}
	return booking, nil
}

// Confirm подтверждает заявку: сначала перевод монет (идемпотентен по ID
// бронирования), затем условный переход Pending -> Confirmed. При нехватке
// монет бронирование остаётся Pending. Если переход статуса проиграл гонку,
// перевод компенсируется
func (s *BookingService) Confirm(ctx context.Context, callerUID, bookingID string) (*model.Booking, error) {
	booking, err := s.getForProvider(ctx, callerUID, bookingID)
	if err != nil {
		return nil, err
	}

	_, err = s.ledger.Transfer(ctx, TransferRequest{
		BookingID: booking.ID,
		FromUID:   booking.DemanderUID,
		ToUID:     booking.ProviderUID,
		Amount:    booking.CoinsTotal,
	})
	if err != nil {
		s.logger.Info("Booking confirmation failed on transfer",
			zap.String("booking_id", booking.ID),
			zap.Error(err),
		)
		return nil, err
	}

	confirmed, err := s.bookingRepo.TransitionStatus(ctx, booking.ID, model.BookingStatusPending, model.BookingStatusConfirmed)
	if err != nil {
		s.compensateTransfer(ctx, booking.ID)
		if errors.Is(err, model.ErrNotPending) {
			return nil, model.ErrNotPending
		}
		return nil, fmt.Errorf("confirm booking: %w", err)
	}

	metrics.BookingTransitions.WithLabelValues(string(model.BookingStatusConfirmed)).Inc()
	s.logger.Info("Booking confirmed",
		zap.String("booking_id", confirmed.ID),
		zap.String("provider_uid", confirmed.ProviderUID),
		zap.String("demander_uid", confirmed.DemanderUID),
		zap.Int("coins", confirmed.CoinsTotal),
	)

	if err := s.notifications.NotifyBookingConfirmed(ctx, confirmed, s.displayName(ctx, confirmed.ProviderUID)); err != nil {
		s.logger.Error("Failed to emit booking confirmed notifications",
			zap.String("booking_id", confirmed.ID),
			zap.Error(err),
		)
	}

	return confirmed, nil
}

// compensateTransfer возвращает монеты, если бронирование так и не стало Confirmed
func (s *BookingService) compensateTransfer(ctx context.Context, bookingID string) {
	current, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil || current == nil {
		s.logger.Error("Cannot verify booking state for compensation",
			zap.String("booking_id", bookingID),
			zap.Error(err),
		)
		return
	}
	if current.Status == model.BookingStatusConfirmed {
		return
	}

	if err := s.ledger.Refund(ctx, bookingID); err != nil {
		s.logger.Error("Failed to compensate transfer",
			zap.String("booking_id", bookingID),
			zap.Error(err),
		)
	}
}

// Reject отклоняет заявку. Слоты не открываются обратно, если политика
// ReopenSlotsOnReject выключена
func (s *BookingService) Reject(ctx context.Context, callerUID, bookingID string) (*model.Booking, error) {
	booking, err := s.getForProvider(ctx, callerUID, bookingID)
	if err != nil {
		return nil, err
	}

	cancelled, err := s.bookingRepo.TransitionStatus(ctx, booking.ID, model.BookingStatusPending, model.BookingStatusCancelled)
	if err != nil {
		if errors.Is(err, model.ErrNotPending) {
			return nil, model.ErrNotPending
		}
		return nil, fmt.Errorf("reject booking: %w", err)
	}

	metrics.BookingTransitions.WithLabelValues(string(model.BookingStatusCancelled)).Inc()

	if s.policy.ReopenSlotsOnReject {
		if err := s.postRepo.ReopenSlots(ctx, cancelled.PostID, cancelled.SelectedTimes); err != nil {
			return nil, fmt.Errorf("reopen slots: %w", err)
		}
	}

	s.logger.Info("Booking rejected",
		zap.String("booking_id", cancelled.ID),
		zap.String("provider_uid", callerUID),
		zap.Bool("slots_reopened", s.policy.ReopenSlotsOnReject),
	)

	return cancelled, nil
}

// Get возвращает бронирование одной из его сторон
func (s *BookingService) Get(ctx context.Context, callerUID, bookingID string) (*model.Booking, error) {
	if callerUID == "" {
		return nil, model.ErrNotAuthenticated
	}
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking: %w", err)
	}
	if booking == nil {
		return nil, model.ErrNotFound
	}
	if booking.DemanderUID != callerUID && booking.ProviderUID != callerUID {
		return nil, model.ErrNotAuthorized
	}
	return booking, nil
}

// ListForDemander бронирования, сделанные пользователем
func (s *BookingService) ListForDemander(ctx context.Context, uid string) ([]*model.Booking, error) {
	if uid == "" {
		return nil, model.ErrNotAuthenticated
	}
	return s.bookingRepo.ListByDemander(ctx, uid)
}

// ListForProvider бронирования постов пользователя, опционально по статусу
func (s *BookingService) ListForProvider(ctx context.Context, uid string, status *model.BookingStatus) ([]*model.Booking, error) {
	if uid == "" {
		return nil, model.ErrNotAuthenticated
	}
	return s.bookingRepo.ListByProvider(ctx, uid, status)
}

// RepairNotifications повторно создаёт уведомления бронирования после сбоя.
// Уведомления идемпотентны по ID, дубликатов не будет
func (s *BookingService) RepairNotifications(ctx context.Context, callerUID, bookingID string) error {
	booking, err := s.Get(ctx, callerUID, bookingID)
	if err != nil {
		return err
	}

	if err := s.notifications.NotifyBookingApply(ctx, booking); err != nil {
		return fmt.Errorf("repair booking apply: %w", err)
	}
	if booking.Status == model.BookingStatusConfirmed {
		if err := s.notifications.NotifyBookingConfirmed(ctx, booking, s.displayName(ctx, booking.ProviderUID)); err != nil {
			return fmt.Errorf("repair booking confirmed: %w", err)
		}
	}
	return nil
}

func (s *BookingService) displayName(ctx context.Context, uid string) string {
	user, err := s.userRepo.GetByID(ctx, uid)
	if err != nil {
		s.logger.Warn("Failed to load user name", zap.String("uid", uid), zap.Error(err))
		return uid
	}
	if user == nil || user.Name == "" {
		return uid
	}
	return user.Name
}
