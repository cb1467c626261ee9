// Package memory реализует репозитории в памяти. Все операции выполняются
// под одним мьютексом, поэтому условные записи атомарны
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/skillswap/internal/model"
)

// Store общее хранилище для всех репозиториев
type Store struct {
	mu sync.Mutex

	posts         map[string]*model.Post
	bookings      map[string]*model.Booking
	accounts      map[string]*model.Account
	transfers     map[string]*model.Transfer // booking_id -> transfer
	notifications map[string]map[string]*model.Notification
	portfolio     map[string]*model.PortfolioEntry
	users         map[string]*model.User
	linkTokens    map[string]*model.LinkToken

	subscribers map[string]map[chan struct{}]struct{}
}

func NewStore() *Store {
	return &Store{
		posts:         make(map[string]*model.Post),
		bookings:      make(map[string]*model.Booking),
		accounts:      make(map[string]*model.Account),
		transfers:     make(map[string]*model.Transfer),
		notifications: make(map[string]map[string]*model.Notification),
		portfolio:     make(map[string]*model.PortfolioEntry),
		users:         make(map[string]*model.User),
		linkTokens:    make(map[string]*model.LinkToken),
		subscribers:   make(map[string]map[chan struct{}]struct{}),
	}
}

func (s *Store) Posts() *PostRepository                 { return &PostRepository{s: s} }
func (s *Store) Bookings() *BookingRepository           { return &BookingRepository{s: s} }
func (s *Store) Accounts() *AccountRepository           { return &AccountRepository{s: s} }
func (s *Store) Notifications() *NotificationRepository { return &NotificationRepository{s: s} }
func (s *Store) Portfolio() *PortfolioRepository        { return &PortfolioRepository{s: s} }
func (s *Store) Users() *UserRepository                 { return &UserRepository{s: s} }

// Feed подписка на изменения уведомлений
func (s *Store) Feed() *Feed { return &Feed{s: s} }

func copyPost(p *model.Post) *model.Post {
	cp := *p
	cp.CourseOptions = append([]model.CourseOption(nil), p.CourseOptions...)
	cp.Calendar = p.Calendar.Clone()
	return &cp
}

func copyBooking(b *model.Booking) *model.Booking {
	cp := *b
	cp.SelectedTimes = append([]model.SlotRef(nil), b.SelectedTimes...)
	return &cp
}

func copyNotification(n *model.Notification) *model.Notification {
	cp := *n
	if n.TimeRange != nil {
		tr := *n.TimeRange
		cp.TimeRange = &tr
	}
	return &cp
}

func copyEntry(e *model.PortfolioEntry) *model.PortfolioEntry {
	cp := *e
	cp.Feedback = append([]model.FeedbackRecord(nil), e.Feedback...)
	return &cp
}

// PostRepository

type PostRepository struct {
	s *Store
}

func (r *PostRepository) Create(_ context.Context, post *model.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if post.Calendar == nil {
		post.Calendar = make(model.SlotCalendar)
	}
	r.s.posts[post.ID] = copyPost(post)
	return nil
}

func (r *PostRepository) GetByID(_ context.Context, id string) (*model.Post, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.posts[id]
	if !ok {
		return nil, nil
	}
	return copyPost(p), nil
}

func (r *PostRepository) ReopenSlots(_ context.Context, postID string, slots []model.SlotRef) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.posts[postID]
	if !ok {
		return model.ErrNotFound
	}
	for _, ref := range slots {
		p.Calendar.Open(ref)
	}
	return nil
}

// BookingRepository

type BookingRepository struct {
	s *Store
}

func (r *BookingRepository) CreateWithSlots(_ context.Context, booking *model.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.posts[booking.PostID]
	if !ok {
		return model.ErrNotFound
	}
	for _, ref := range booking.SelectedTimes {
		if !p.Calendar.IsOpen(ref) {
			return model.ErrSlotUnavailable
		}
	}
	for _, ref := range booking.SelectedTimes {
		p.Calendar.Close(ref)
	}
	r.s.bookings[booking.ID] = copyBooking(booking)
	return nil
}

func (r *BookingRepository) GetByID(_ context.Context, id string) (*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.bookings[id]
	if !ok {
		return nil, nil
	}
	return copyBooking(b), nil
}

func (r *BookingRepository) TransitionStatus(_ context.Context, id string, from, to model.BookingStatus) (*model.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.bookings[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	if b.Status != from {
		return nil, model.ErrNotPending
	}
	b.Status = to
	b.UpdatedAt = time.Now().UTC()
	return copyBooking(b), nil
}

func (r *BookingRepository) list(match func(*model.Booking) bool) []*model.Booking {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*model.Booking
	for _, b := range r.s.bookings {
		if match(b) {
			out = append(out, copyBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *BookingRepository) ListByDemander(_ context.Context, uid string) ([]*model.Booking, error) {
	return r.list(func(b *model.Booking) bool { return b.DemanderUID == uid }), nil
}

func (r *BookingRepository) ListByProvider(_ context.Context, uid string, status *model.BookingStatus) ([]*model.Booking, error) {
	return r.list(func(b *model.Booking) bool {
		return b.ProviderUID == uid && (status == nil || b.Status == *status)
	}), nil
}

// AccountRepository

type AccountRepository struct {
	s *Store
}

func (r *AccountRepository) GetBalance(_ context.Context, uid string) (*model.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a, ok := r.s.accounts[uid]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *AccountRepository) Deposit(_ context.Context, uid string, amount int) (*model.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	a := r.s.account(uid)
	a.Coins += amount
	a.UpdatedAt = time.Now().UTC()
	cp := *a
	return &cp, nil
}

func (s *Store) account(uid string) *model.Account {
	a, ok := s.accounts[uid]
	if !ok {
		a = &model.Account{UID: uid}
		s.accounts[uid] = a
	}
	return a
}

func (r *AccountRepository) Transfer(_ context.Context, t *model.Transfer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if t.BookingID != "" {
		if _, exists := r.s.transfers[t.BookingID]; exists {
			return model.ErrTransferExists
		}
	}

	if err := r.s.moveCoins(t); err != nil {
		return err
	}

	if t.BookingID != "" {
		cp := *t
		r.s.transfers[t.BookingID] = &cp
	}
	return nil
}

// Reverse удаляет перевод по бронированию и возвращает монеты
func (r *AccountRepository) Reverse(_ context.Context, bookingID string, refund *model.Transfer) (*model.Transfer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	original, ok := r.s.transfers[bookingID]
	if !ok {
		return nil, nil
	}

	refund.BookingID = model.RefundKey(original.ID)
	refund.FromUID = original.ToUID
	refund.ToUID = original.FromUID
	refund.Amount = original.Amount
	if err := r.s.moveCoins(refund); err != nil {
		return nil, err
	}

	delete(r.s.transfers, bookingID)
	cp := *refund
	r.s.transfers[refund.BookingID] = &cp
	orig := *original
	return &orig, nil
}

// moveCoins вызывается под s.mu
func (s *Store) moveCoins(t *model.Transfer) error {
	from := s.account(t.FromUID)
	if from.Coins-t.Amount < 0 {
		return model.ErrInsufficientFunds
	}
	to := s.account(t.ToUID)

	from.Coins -= t.Amount
	to.Coins += t.Amount
	from.UpdatedAt, to.UpdatedAt = t.CreatedAt, t.CreatedAt
	return nil
}

func (r *AccountRepository) GetTransferByBooking(_ context.Context, bookingID string) (*model.Transfer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.transfers[bookingID]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

// NotificationRepository

type NotificationRepository struct {
	s *Store
}

func (r *NotificationRepository) Insert(_ context.Context, notifications []*model.Notification) ([]*model.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var inserted []*model.Notification
	changed := make(map[string]struct{})
	for _, n := range notifications {
		owned, ok := r.s.notifications[n.OwnerUID]
		if !ok {
			owned = make(map[string]*model.Notification)
			r.s.notifications[n.OwnerUID] = owned
		}
		if _, exists := owned[n.ID]; exists {
			continue
		}
		owned[n.ID] = copyNotification(n)
		inserted = append(inserted, n)
		changed[n.OwnerUID] = struct{}{}
	}

	for owner := range changed {
		r.s.notifyLocked(owner)
	}
	return inserted, nil
}

func (r *NotificationRepository) ListByOwner(_ context.Context, ownerUID string) ([]*model.Notification, error) {
	return r.filter(ownerUID, func(*model.Notification) bool { return true }), nil
}

func (r *NotificationRepository) ListUnread(_ context.Context, ownerUID string, kind model.NotificationKind) ([]*model.Notification, error) {
	return r.filter(ownerUID, func(n *model.Notification) bool { return !n.Read && n.Kind == kind }), nil
}

func (r *NotificationRepository) filter(ownerUID string, match func(*model.Notification) bool) []*model.Notification {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*model.Notification
	for _, n := range r.s.notifications[ownerUID] {
		if match(n) {
			out = append(out, copyNotification(n))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *NotificationRepository) GetByID(_ context.Context, ownerUID, id string) (*model.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n, ok := r.s.notifications[ownerUID][id]
	if !ok {
		return nil, nil
	}
	return copyNotification(n), nil
}

func (r *NotificationRepository) MarkRead(_ context.Context, ownerUID string, ids []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	changed := false
	for _, id := range ids {
		if n, ok := r.s.notifications[ownerUID][id]; ok && !n.Read {
			n.Read = true
			changed = true
		}
	}
	if changed {
		r.s.notifyLocked(ownerUID)
	}
	return nil
}

// PortfolioRepository

type PortfolioRepository struct {
	s *Store
}

func (r *PortfolioRepository) UpsertFeedback(_ context.Context, entry *model.PortfolioEntry, course int, role model.Role, record *model.FeedbackRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.portfolio[entry.BookingID]
	if !ok {
		stored = &model.PortfolioEntry{
			BookingID:   entry.BookingID,
			PostTitle:   entry.PostTitle,
			DemanderUID: entry.DemanderUID,
			ProviderUID: entry.ProviderUID,
		}
		r.s.portfolio[entry.BookingID] = stored
	}

	existing := stored.Record(course)
	if existing == nil {
		stored.Feedback = append(stored.Feedback, model.FeedbackRecord{Course: course, Time: record.Time})
		sort.Slice(stored.Feedback, func(i, j int) bool { return stored.Feedback[i].Course < stored.Feedback[j].Course })
		existing = stored.Record(course)
	}

	if role == model.RoleDemander {
		existing.DemanderFeedback = record.DemanderFeedback
		existing.DemanderSuggestions = record.DemanderSuggestions
		existing.DemanderRating = record.DemanderRating
	} else {
		existing.ProviderFeedback = record.ProviderFeedback
		existing.ProviderSuggestions = record.ProviderSuggestions
		existing.ProviderRating = record.ProviderRating
	}
	return nil
}

func (r *PortfolioRepository) GetByBooking(_ context.Context, bookingID string) (*model.PortfolioEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.portfolio[bookingID]
	if !ok {
		return nil, nil
	}
	return copyEntry(e), nil
}

func (r *PortfolioRepository) ListByUser(_ context.Context, uid string) ([]*model.PortfolioEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*model.PortfolioEntry
	for _, e := range r.s.portfolio {
		if e.DemanderUID == uid || e.ProviderUID == uid {
			out = append(out, copyEntry(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookingID < out[j].BookingID })
	return out, nil
}

// UserRepository

type UserRepository struct {
	s *Store
}

func (r *UserRepository) Upsert(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *user
	if existing, ok := r.s.users[user.UID]; ok {
		cp.TelegramID = existing.TelegramID
		cp.CreatedAt = existing.CreatedAt
	} else {
		cp.TelegramID = nil
	}
	user.TelegramID, user.CreatedAt = cp.TelegramID, cp.CreatedAt
	r.s.users[user.UID] = &cp
	return nil
}

func (r *UserRepository) CreateLinkToken(_ context.Context, token *model.LinkToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *token
	r.s.linkTokens[token.Token] = &cp
	return nil
}

func (r *UserRepository) RedeemLinkToken(_ context.Context, token string, telegramID int64, now time.Time) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.linkTokens[token]
	if !ok || !t.ExpiresAt.After(now) {
		return nil, model.ErrLinkTokenInvalid
	}
	user, ok := r.s.users[t.UID]
	if !ok {
		return nil, model.ErrLinkTokenInvalid
	}
	for uid, u := range r.s.users {
		if uid != t.UID && u.TelegramID != nil && *u.TelegramID == telegramID {
			return nil, model.ErrTelegramLinked
		}
	}

	delete(r.s.linkTokens, token)
	id := telegramID
	user.TelegramID = &id
	cp := *user
	return &cp, nil
}

func (r *UserRepository) GetByID(_ context.Context, uid string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[uid]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepository) GetByTelegramID(_ context.Context, telegramID int64) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.TelegramID != nil && *u.TelegramID == telegramID {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *UserRepository) ListLinked(_ context.Context) ([]*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*model.User
	for _, u := range r.s.users {
		if u.TelegramID != nil {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, nil
}
