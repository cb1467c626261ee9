package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/skillswap/internal/model"
)

// Сервисы зависят только от этих интерфейсов. Реализации: repository
// (PostgreSQL) и repository/memory (в памяти, для тестов и dev-режима)

type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, id string) (*model.Post, error)
	// ReopenSlots открывает слоты обратно (только политика reopen-on-reject)
	ReopenSlots(ctx context.Context, postID string, slots []model.SlotRef) error
}

type BookingRepository interface {
	// CreateWithSlots атомарно закрывает слоты поста и сохраняет бронирование.
	// Если хотя бы один слот уже закрыт, возвращает model.ErrSlotUnavailable
	// и ничего не меняет
	CreateWithSlots(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id string) (*model.Booking, error)
	// TransitionStatus меняет статус только если текущий равен from,
	// иначе model.ErrNotPending
	TransitionStatus(ctx context.Context, id string, from, to model.BookingStatus) (*model.Booking, error)
	ListByDemander(ctx context.Context, uid string) ([]*model.Booking, error)
	ListByProvider(ctx context.Context, uid string, status *model.BookingStatus) ([]*model.Booking, error)
}

type AccountRepository interface {
	GetBalance(ctx context.Context, uid string) (*model.Account, error)
	// Deposit зачисляет монеты, создавая аккаунт при необходимости
	Deposit(ctx context.Context, uid string, amount int) (*model.Account, error)
	// Transfer списывает и зачисляет в одной транзакции. Без изменений
	// возвращает model.ErrInsufficientFunds или model.ErrTransferExists
	Transfer(ctx context.Context, t *model.Transfer) error
	// Reverse удаляет перевод по бронированию и применяет обратный refund
	// атомарно. Без перевода возвращает nil, nil
	Reverse(ctx context.Context, bookingID string, refund *model.Transfer) (*model.Transfer, error)
	GetTransferByBooking(ctx context.Context, bookingID string) (*model.Transfer, error)
}

type NotificationRepository interface {
	// Insert идемпотентен по ID: существующие записи не перезаписываются.
	// Возвращает только реально вставленные уведомления
	Insert(ctx context.Context, notifications []*model.Notification) ([]*model.Notification, error)
	ListByOwner(ctx context.Context, ownerUID string) ([]*model.Notification, error)
	ListUnread(ctx context.Context, ownerUID string, kind model.NotificationKind) ([]*model.Notification, error)
	GetByID(ctx context.Context, ownerUID, id string) (*model.Notification, error)
	// MarkRead одним батчем, всё или ничего
	MarkRead(ctx context.Context, ownerUID string, ids []string) error
}

// NotificationFeed поток изменений коллекции уведомлений пользователя.
// Канал закрывается после отмены ctx
type NotificationFeed interface {
	Subscribe(ctx context.Context, ownerUID string) (<-chan struct{}, error)
}

type PortfolioRepository interface {
	// UpsertFeedback создаёт запись портфолио и отзыв при необходимости и
	// перезаписывает только поля указанной роли
	UpsertFeedback(ctx context.Context, entry *model.PortfolioEntry, course int, role model.Role, record *model.FeedbackRecord) error
	GetByBooking(ctx context.Context, bookingID string) (*model.PortfolioEntry, error)
	ListByUser(ctx context.Context, uid string) ([]*model.PortfolioEntry, error)
}

type UserRepository interface {
	Upsert(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, uid string) (*model.User, error)
	GetByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	CreateLinkToken(ctx context.Context, token *model.LinkToken) error
	// RedeemLinkToken гасит токен и привязывает telegramID к его владельцу.
	// Возвращает model.ErrLinkTokenInvalid для неизвестного, использованного
	// или просроченного токена и model.ErrTelegramLinked, если Telegram уже
	// привязан к другому пользователю
	RedeemLinkToken(ctx context.Context, token string, telegramID int64, now time.Time) (*model.User, error)
	ListLinked(ctx context.Context) ([]*model.User, error)
}

// Deliverer доставляет новые уведомления во внешний канал (Telegram)
type Deliverer interface {
	Deliver(ctx context.Context, n *model.Notification) error
}
