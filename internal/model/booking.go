package model

import "time"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"   // Ожидает подтверждения автора поста
	BookingStatusConfirmed BookingStatus = "confirmed" // Подтверждено, монеты списаны
	BookingStatusCancelled BookingStatus = "cancelled" // Отклонено автором
)

type Booking struct {
	ID            string        `json:"id"`
	PostID        string        `json:"post_id"`
	PostTitle     string        `json:"post_title"`
	DemanderUID   string        `json:"demander_uid"`
	ProviderUID   string        `json:"provider_uid"`
	CourseOption  CourseOption  `json:"course_option"`
	SelectedTimes []SlotRef     `json:"selected_times"`
	CoinsTotal    int           `json:"coins_total"`
	Status        BookingStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
