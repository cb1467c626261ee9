package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type NotificationKind string

const (
	NotificationBookingApply   NotificationKind = "booking_apply"   // Автору: новая заявка
	NotificationBookingConfirm NotificationKind = "booking_confirm" // Ученику: заявка подтверждена
	NotificationCourseEndtime  NotificationKind = "course_endtime"  // Обеим сторонам: занятие закончилось
)

// notificationNamespace пространство имён для детерминированных ID уведомлений
var notificationNamespace = uuid.MustParse("6f1c9a3e-2b7d-4f0a-9c55-8e2d41b7a0c3")

// Notification одно уведомление пользователя. Поля после Read заполняются
// в зависимости от Kind
type Notification struct {
	ID        string           `json:"id"`
	Kind      NotificationKind `json:"kind"`
	OwnerUID  string           `json:"owner_uid"`
	FromUID   string           `json:"from_uid"`
	CreatedAt time.Time        `json:"created_at"`
	Read      bool             `json:"read"`

	BookingID string `json:"booking_id,omitempty"`

	// booking_confirm
	FromName string `json:"from_name,omitempty"`

	// course_endtime
	TimeRange      *TimeRange `json:"time_range,omitempty"`
	PostTitle      string     `json:"post_title,omitempty"`
	SequenceNumber int        `json:"sequence_number,omitempty"`
	DemanderUID    string     `json:"demander_uid,omitempty"`
	ProviderUID    string     `json:"provider_uid,omitempty"`
}

// NotificationID детерминированный ID: повторная отправка того же события
// даёт тот же ID и не создаёт дубликат
func NotificationID(kind NotificationKind, ownerUID, bookingID string, seq int) string {
	key := fmt.Sprintf("%s|%s|%s|%d", kind, ownerUID, bookingID, seq)
	return uuid.NewSHA1(notificationNamespace, []byte(key)).String()
}

// SortTime время, по которому уведомление сортируется при отображении
func (n *Notification) SortTime() time.Time {
	if n.Kind == NotificationCourseEndtime && n.TimeRange != nil {
		return n.TimeRange.Start
	}
	return n.CreatedAt
}

// RoleOf определяет роль пользователя по уведомлению о конце занятия
func (n *Notification) RoleOf(uid string) (Role, bool) {
	switch uid {
	case n.DemanderUID:
		return RoleDemander, true
	case n.ProviderUID:
		return RoleProvider, true
	}
	return "", false
}

// DisplayTimeRange строка вида "date (weekday) HH:MM - HH:MM"
func (n *Notification) DisplayTimeRange() string {
	if n.TimeRange == nil {
		return ""
	}
	return n.TimeRange.Format()
}
