package model

import "time"

type User struct {
	UID        string    `json:"uid"`
	Name       string    `json:"name"`
	TelegramID *int64    `json:"telegram_id,omitempty"` // указатель - может быть nil
	CreatedAt  time.Time `json:"created_at"`
}

// LinkTokenTTL время жизни токена привязки Telegram
const LinkTokenTTL = 15 * time.Minute

// LinkToken одноразовый токен привязки Telegram-чата к пользователю.
// Выдаётся аутентифицированному пользователю и передаётся боту через /start
type LinkToken struct {
	Token     string    `json:"token"`
	UID       string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}
