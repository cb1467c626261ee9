package model

import "time"

// Role сторона занятия
type Role string

const (
	RoleDemander Role = "demander" // Ученик
	RoleProvider Role = "provider" // Автор поста
)

type CompletionStatus string

const (
	CompletionInProgress CompletionStatus = "in_progress"
	CompletionCompleted  CompletionStatus = "completed"
)

const (
	MinRating = 1
	MaxRating = 5
)

// Feedback то, что заполняет одна сторона после занятия
type Feedback struct {
	Text        string `json:"feedback" validate:"max=2000"`
	Suggestions string `json:"suggestions" validate:"max=2000"`
	Rating      int    `json:"rating" validate:"min=1,max=5"`
}

// FeedbackRecord отзыв обеих сторон об одном занятии. Nil-поля ещё не заполнены
type FeedbackRecord struct {
	Course              int       `json:"course"`
	Time                time.Time `json:"time"`
	DemanderFeedback    *string   `json:"demander_feedback,omitempty"`
	DemanderSuggestions *string   `json:"demander_suggestions,omitempty"`
	DemanderRating      *int      `json:"demander_rating,omitempty"`
	ProviderFeedback    *string   `json:"provider_feedback,omitempty"`
	ProviderSuggestions *string   `json:"provider_suggestions,omitempty"`
	ProviderRating      *int      `json:"provider_rating,omitempty"`
}

// Filled заполнила ли сторона свою часть
func (r *FeedbackRecord) Filled(role Role) bool {
	if role == RoleDemander {
		return r.DemanderRating != nil
	}
	return r.ProviderRating != nil
}

// Apply записывает поля одной стороны, не трогая другую
func (r *FeedbackRecord) Apply(role Role, fb Feedback) {
	text, sugg, rating := fb.Text, fb.Suggestions, fb.Rating
	if role == RoleDemander {
		r.DemanderFeedback, r.DemanderSuggestions, r.DemanderRating = &text, &sugg, &rating
		return
	}
	r.ProviderFeedback, r.ProviderSuggestions, r.ProviderRating = &text, &sugg, &rating
}

// PortfolioEntry агрегат отзывов по одному бронированию
type PortfolioEntry struct {
	BookingID   string           `json:"booking_id"`
	PostTitle   string           `json:"post_title"`
	DemanderUID string           `json:"demander_uid"`
	ProviderUID string           `json:"provider_uid"`
	Feedback    []FeedbackRecord `json:"feedback"`
}

// Record ищет запись по номеру занятия
func (e *PortfolioEntry) Record(course int) *FeedbackRecord {
	for i := range e.Feedback {
		if e.Feedback[i].Course == course {
			return &e.Feedback[i]
		}
	}
	return nil
}
