package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// NotificationChannel канал pg_notify, в который триггер таблицы notifications
// пишет owner_uid изменённой строки
const NotificationChannel = "notification_changed"

// NotificationListener держит одно соединение с LISTEN и раздаёт сигналы
// подписчикам по owner_uid
type NotificationListener struct {
	pool   *pgxpool.Pool
	logger *zap.Logger

	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

func NewNotificationListener(pool *pgxpool.Pool, logger *zap.Logger) *NotificationListener {
	return &NotificationListener{
		pool:   pool,
		logger: logger,
		subs:   make(map[string]map[chan struct{}]struct{}),
	}
}

// Subscribe регистрирует подписчика. Канал закрывается после отмены ctx
func (l *NotificationListener) Subscribe(ctx context.Context, ownerUID string) (<-chan struct{}, error) {
	ch := make(chan struct{}, 1)

	l.mu.Lock()
	if l.subs[ownerUID] == nil {
		l.subs[ownerUID] = make(map[chan struct{}]struct{})
	}
	l.subs[ownerUID][ch] = struct{}{}
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.mu.Lock()
		delete(l.subs[ownerUID], ch)
		if len(l.subs[ownerUID]) == 0 {
			delete(l.subs, ownerUID)
		}
		close(ch)
		l.mu.Unlock()
	}()

	return ch, nil
}

func (l *NotificationListener) dispatch(ownerUID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for ch := range l.subs[ownerUID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Run слушает канал до отмены ctx, переподключаясь при обрыве соединения
func (l *NotificationListener) Run(ctx context.Context) error {
	l.logger.Info("Starting notification listener", zap.String("channel", NotificationChannel))

	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			l.logger.Info("Notification listener stopped")
			return nil
		}

		l.logger.Warn("Notification listener disconnected, reconnecting", zap.Error(err))
		select {
		case <-time.After(time.Second):
		case <-ctx.Done():
			return nil
		}
	}
}

func (l *NotificationListener) listen(ctx context.Context) error {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+NotificationChannel); err != nil {
		return err
	}

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		l.dispatch(notification.Payload)
	}
}
