package model

import "time"

// Account баланс монет пользователя, не бывает отрицательным
type Account struct {
	UID       string    `json:"uid"`
	Coins     int       `json:"coins"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Transfer применённый перевод монет. BookingID уникален, если задан
type Transfer struct {
	ID        string    `json:"id"`
	BookingID string    `json:"booking_id,omitempty"`
	FromUID   string    `json:"from_uid"`
	ToUID     string    `json:"to_uid"`
	Amount    int       `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// RefundKey ключ записи об обратном переводе. Исходная запись удаляется при
// возврате, поэтому ключ строится от ID перевода, а не бронирования
func RefundKey(transferID string) string {
	return "refund:" + transferID
}
