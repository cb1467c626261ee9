package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Freeeeeet/skillswap/internal/config"
	"github.com/Freeeeeet/skillswap/internal/controller/httpapi"
	"github.com/Freeeeeet/skillswap/internal/controller/telegram"
	"github.com/Freeeeeet/skillswap/internal/repository"
	"github.com/Freeeeeet/skillswap/internal/repository/memory"
	"github.com/Freeeeeet/skillswap/internal/service"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Repositories набор реализаций хранилища для сервисов
type Repositories struct {
	Posts         service.PostRepository
	Bookings      service.BookingRepository
	Accounts      service.AccountRepository
	Notifications service.NotificationRepository
	Feed          service.NotificationFeed
	Portfolio     service.PortfolioRepository
	Users         service.UserRepository
}

// PostgresRepositories репозитории поверх пула pgx
func PostgresRepositories(pool *pgxpool.Pool, listener *repository.NotificationListener) Repositories {
	return Repositories{
		Posts:         repository.NewPostRepository(pool),
		Bookings:      repository.NewBookingRepository(pool),
		Accounts:      repository.NewAccountRepository(pool),
		Notifications: repository.NewNotificationRepository(pool),
		Feed:          listener,
		Portfolio:     repository.NewPortfolioRepository(pool),
		Users:         repository.NewUserRepository(pool),
	}
}

// MemoryRepositories репозитории в памяти (dev-режим и тесты)
func MemoryRepositories(store *memory.Store) Repositories {
	return Repositories{
		Posts:         store.Posts(),
		Bookings:      store.Bookings(),
		Accounts:      store.Accounts(),
		Notifications: store.Notifications(),
		Feed:          store.Feed(),
		Portfolio:     store.Portfolio(),
		Users:         store.Users(),
	}
}

// Services сервисы ядра
type Services struct {
	Ledger        *service.LedgerService
	Bookings      *service.BookingService
	Notifications *service.NotificationService
	Portfolio     *service.PortfolioService
	Users         *service.UserService
}

// NewServices собирает сервисы поверх репозиториев
func NewServices(cfg *config.Config, repos Repositories, logger *zap.Logger) *Services {
	ledger := service.NewLedgerService(repos.Accounts, logger)
	notifications := service.NewNotificationService(repos.Notifications, repos.Feed, cfg.Timezone, logger)

	return &Services{
		Ledger:        ledger,
		Notifications: notifications,
		Bookings: service.NewBookingService(
			repos.Posts,
			repos.Bookings,
			repos.Users,
			ledger,
			notifications,
			service.BookingPolicy{ReopenSlotsOnReject: cfg.ReopenSlotsOnReject},
			logger,
		),
		Portfolio: service.NewPortfolioService(repos.Portfolio, repos.Bookings, repos.Notifications, logger),
		Users:     service.NewUserService(repos.Users, ledger, cfg.InitialCoins, logger),
	}
}

// Run поднимает хранилище, HTTP API, бота и sweeper и работает до отмены ctx
func Run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	g, ctx := errgroup.WithContext(ctx)

	var (
		repos    Repositories
		listener *repository.NotificationListener
	)
	switch cfg.Storage {
	case config.StorageMemory:
		logger.Warn("Using in-memory storage, data is lost on restart")
		repos = MemoryRepositories(memory.NewStore())
	default:
		pool, err := pgxpool.New(ctx, cfg.DBDSN)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}

		migrator, err := NewMigrator(pool, cfg.MigrationsDir, logger)
		if err != nil {
			return err
		}
		err = migrator.Up(ctx)
		migrator.Close()
		if err != nil {
			return err
		}

		listener = repository.NewNotificationListener(pool, logger)
		repos = PostgresRepositories(pool, listener)
	}

	services := NewServices(cfg, repos, logger)

	var deliverer service.Deliverer
	if cfg.TelegramToken != "" {
		b, err := bot.New(cfg.TelegramToken)
		if err != nil {
			return fmt.Errorf("create telegram bot: %w", err)
		}
		telegramDeliverer := telegram.NewDeliverer(b, repos.Users, logger)
		services.Notifications.SetDeliverer(telegramDeliverer)
		deliverer = telegramDeliverer

		controller := telegram.NewBotController(b, services.Users, services.Bookings, services.Ledger, services.Notifications, logger)
		if err := controller.RegisterHandlers(ctx); err != nil {
			return fmt.Errorf("register bot handlers: %w", err)
		}
		g.Go(func() error { return controller.Run(ctx) })
	} else {
		logger.Info("TELEGRAM_TOKEN not set, telegram delivery disabled")
	}

	// Слушатель держит соединение пула, запускаем его после всех шагов,
	// которые могут завершиться ошибкой
	if listener != nil {
		g.Go(func() error { return listener.Run(ctx) })
	}

	sweeper := NewSweeper(services.Notifications, services.Users, deliverer, cfg.SweepInterval, logger)
	g.Go(func() error { return sweeper.Run(ctx) })

	handler := httpapi.NewHandler(services.Bookings, services.Ledger, services.Notifications, services.Portfolio, services.Users, logger)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
