package model

import "time"

// Post предложение обучения с календарём слотов
type Post struct {
	ID            string         `json:"id"`
	AuthorID      string         `json:"author_id"`
	Title         string         `json:"title"`
	CoinCost      int            `json:"coin_cost"`
	CourseOptions []CourseOption `json:"course_options"`
	Calendar      SlotCalendar   `json:"slot_calendar"`
	CreatedAt     time.Time      `json:"created_at"`
}

// Offers проверяет что пакет доступен в посте
func (p *Post) Offers(opt CourseOption) bool {
	for _, o := range p.CourseOptions {
		if o == opt {
			return true
		}
	}
	return false
}
