// Package metrics содержит Prometheus-метрики ядра бронирований
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Reservations попытки бронирования по результату: ok, slot_unavailable, invalid, error
	Reservations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skillswap",
		Name:      "reservations_total",
		Help:      "Booking reservation attempts by outcome.",
	}, []string{"outcome"})

	// BookingTransitions переходы статуса бронирования
	BookingTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skillswap",
		Name:      "booking_transitions_total",
		Help:      "Booking status transitions by target status.",
	}, []string{"status"})

	// Transfers переводы монет по результату
	Transfers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skillswap",
		Name:      "ledger_transfers_total",
		Help:      "Ledger transfers by outcome.",
	}, []string{"outcome"})

	// CoinsMoved сумма переведённых монет
	CoinsMoved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "skillswap",
		Name:      "ledger_coins_moved_total",
		Help:      "Coins moved between accounts.",
	})

	// NotificationsEmitted созданные уведомления по типу
	NotificationsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skillswap",
		Name:      "notifications_emitted_total",
		Help:      "Notifications emitted by kind.",
	}, []string{"kind"})

	// SweepSurfaced уведомления о конце занятия, показанные sweep'ом
	SweepSurfaced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "skillswap",
		Name:      "sweep_surfaced_total",
		Help:      "Course end notifications surfaced by the sweep.",
	})

	// FeedbackSubmitted отзывы по роли
	FeedbackSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "skillswap",
		Name:      "feedback_submitted_total",
		Help:      "Feedback submissions by role.",
	}, []string{"role"})
)
