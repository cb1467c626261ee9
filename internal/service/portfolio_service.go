package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/skillswap/internal/metrics"
	"github.com/Freeeeeet/skillswap/internal/model"
	"go.uber.org/zap"
)

type PortfolioService struct {
	portfolioRepo    PortfolioRepository
	bookingRepo      BookingRepository
	notificationRepo NotificationRepository
	logger           *zap.Logger
}

func NewPortfolioService(
	portfolioRepo PortfolioRepository,
	bookingRepo BookingRepository,
	notificationRepo NotificationRepository,
	logger *zap.Logger,
) *PortfolioService {
	return &PortfolioService{
		portfolioRepo:    portfolioRepo,
		bookingRepo:      bookingRepo,
		notificationRepo: notificationRepo,
		logger:           logger,
	}
}

// SubmitFeedback записывает отзыв о занятии. Роль берётся из уведомления о
// конце занятия, без повторного чтения бронирования. Повторная отправка
// перезаписывает поля только этой роли
func (s *PortfolioService) SubmitFeedback(ctx context.Context, submitterUID string, n *model.Notification, fb model.Feedback) error {
	if submitterUID == "" {
		return model.ErrNotAuthenticated
	}
	if n == nil || n.Kind != model.NotificationCourseEndtime || n.TimeRange == nil || n.SequenceNumber < 1 {
		return model.ErrInvalidNotification
	}
	if n.OwnerUID != submitterUID {
		return model.ErrNotAuthorized
	}
	role, ok := n.RoleOf(submitterUID)
	if !ok {
		return model.ErrNotAuthorized
	}
	if fb.Rating < model.MinRating || fb.Rating > model.MaxRating {
		return model.ErrInvalidRating
	}

	entry := &model.PortfolioEntry{
		BookingID:   n.BookingID,
		PostTitle:   n.PostTitle,
		DemanderUID: n.DemanderUID,
		ProviderUID: n.ProviderUID,
	}
	record := &model.FeedbackRecord{
		Course: n.SequenceNumber,
		Time:   n.TimeRange.Start,
	}
	record.Apply(role, fb)

	if err := s.portfolioRepo.UpsertFeedback(ctx, entry, n.SequenceNumber, role, record); err != nil {
		return fmt.Errorf("upsert feedback: %w", err)
	}

	metrics.FeedbackSubmitted.WithLabelValues(string(role)).Inc()
	s.logger.Info("Feedback submitted",
		zap.String("booking_id", n.BookingID),
		zap.Int("course", n.SequenceNumber),
		zap.String("role", string(role)),
		zap.Int("rating", fb.Rating),
	)
	return nil
}

// SubmitFeedbackFor находит уведомление пользователя по ID и записывает отзыв
func (s *PortfolioService) SubmitFeedbackFor(ctx context.Context, submitterUID, notificationID string, fb model.Feedback) error {
	if submitterUID == "" {
		return model.ErrNotAuthenticated
	}
	n, err := s.notificationRepo.GetByID(ctx, submitterUID, notificationID)
	if err != nil {
		return fmt.Errorf("get notification: %w", err)
	}
	if n == nil {
		return model.ErrNotFound
	}
	return s.SubmitFeedback(ctx, submitterUID, n, fb)
}

// HasFilled заполнил ли пользователь свою часть отзыва о занятии
func (s *PortfolioService) HasFilled(ctx context.Context, uid, bookingID string, sequenceNumber int) (bool, error) {
	entry, err := s.portfolioRepo.GetByBooking(ctx, bookingID)
	if err != nil {
		return false, fmt.Errorf("get portfolio entry: %w", err)
	}
	if entry == nil {
		return false, nil
	}

	var role model.Role
	switch uid {
	case entry.DemanderUID:
		role = model.RoleDemander
	case entry.ProviderUID:
		role = model.RoleProvider
	default:
		return false, nil
	}

	record := entry.Record(sequenceNumber)
	return record != nil && record.Filled(role), nil
}

// CompletionStatus Completed, когда у подтверждённого бронирования столько же
// записей отзывов, сколько выбранных слотов
func (s *PortfolioService) CompletionStatus(ctx context.Context, bookingID string) (model.CompletionStatus, error) {
	booking, err := s.bookingRepo.GetByID(ctx, bookingID)
	if err != nil {
		return "", fmt.Errorf("get booking: %w", err)
	}
	if booking == nil {
		return "", model.ErrNotFound
	}
	if booking.Status != model.BookingStatusConfirmed {
		return model.CompletionInProgress, nil
	}

	entry, err := s.portfolioRepo.GetByBooking(ctx, bookingID)
	if err != nil {
		return "", fmt.Errorf("get portfolio entry: %w", err)
	}
	if entry != nil && len(entry.Feedback) == len(booking.SelectedTimes) {
		return model.CompletionCompleted, nil
	}
	return model.CompletionInProgress, nil
}

// Get запись портфолио, доступна только сторонам бронирования
func (s *PortfolioService) Get(ctx context.Context, uid, bookingID string) (*model.PortfolioEntry, error) {
	if uid == "" {
		return nil, model.ErrNotAuthenticated
	}
	entry, err := s.portfolioRepo.GetByBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get portfolio entry: %w", err)
	}
	if entry == nil {
		return nil, model.ErrNotFound
	}
	if entry.DemanderUID != uid && entry.ProviderUID != uid {
		return nil, model.ErrNotAuthorized
	}
	return entry, nil
}

// ListForUser все записи портфолио, где пользователь ученик или автор
func (s *PortfolioService) ListForUser(ctx context.Context, uid string) ([]*model.PortfolioEntry, error) {
	if uid == "" {
		return nil, model.ErrNotAuthenticated
	}
	return s.portfolioRepo.ListByUser(ctx, uid)
}
