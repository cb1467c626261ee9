// Package httpapi HTTP-обработчики, через которые внешние клиенты вызывают
// ядро бронирований
package httpapi

import (
	"net/http"
	"time"

	"github.com/Freeeeeet/skillswap/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Handler struct {
	bookings      *service.BookingService
	ledger        *service.LedgerService
	notifications *service.NotificationService
	portfolio     *service.PortfolioService
	users         *service.UserService
	validate      *validator.Validate
	logger        *zap.Logger
	now           func() time.Time
}

func NewHandler(
	bookings *service.BookingService,
	ledger *service.LedgerService,
	notifications *service.NotificationService,
	portfolio *service.PortfolioService,
	users *service.UserService,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		bookings:      bookings,
		ledger:        ledger,
		notifications: notifications,
		portfolio:     portfolio,
		users:         users,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		logger:        logger,
		now:           time.Now,
	}
}

// Routes собирает роутер API
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(withCaller)

		r.Post("/users", h.registerUser)
		r.Post("/users/me/telegram-link", h.issueTelegramLink)
		r.Get("/accounts/me", h.balance)

		r.Post("/posts", h.createPost)
		r.Get("/posts/{postID}", h.getPost)
		r.Get("/posts/{postID}/slots", h.openSlots)
		r.Post("/posts/{postID}/bookings", h.reserve)

		r.Get("/bookings", h.listBookings)
		r.Get("/bookings/{bookingID}", h.getBooking)
		r.Post("/bookings/{bookingID}/confirm", h.confirm)
		r.Post("/bookings/{bookingID}/reject", h.reject)
		r.Post("/bookings/{bookingID}/notifications/repair", h.repairNotifications)
		r.Get("/bookings/{bookingID}/completion", h.completion)

		r.Get("/notifications", h.listNotifications)
		r.Get("/notifications/applications", h.listApplications)
		r.Get("/notifications/stream", h.streamNotifications)
		r.Post("/notifications/read", h.markRead)
		r.Post("/notifications/sweep", h.sweep)
		r.Post("/notifications/{notificationID}/feedback", h.submitFeedback)

		r.Get("/portfolio", h.listPortfolio)
		r.Get("/portfolio/{bookingID}", h.getPortfolio)
		r.Get("/portfolio/{bookingID}/sessions/{seq}/filled", h.hasFilled)
	})

	return r
}
