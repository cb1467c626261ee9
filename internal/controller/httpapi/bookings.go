package httpapi

import (
	"errors"
	"net/http"

	"github.com/Freeeeeet/skillswap/internal/model"
	"github.com/Freeeeeet/skillswap/internal/service"
	"github.com/go-chi/chi/v5"
)

type registerUserRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

type slotRequest struct {
	Date string `json:"date" validate:"required,datetime=2006-01-02"`
	Hour int    `json:"hour" validate:"min=7,max=22"`
}

type createPostRequest struct {
	Title         string        `json:"title" validate:"required,max=200"`
	CoinCost      int           `json:"coin_cost" validate:"gt=0"`
	CourseOptions []string      `json:"course_options" validate:"required,min=1,dive,oneof=trial x1 x3 x5 x10"`
	Slots         []slotRequest `json:"slots" validate:"dive"`
}

type reserveRequest struct {
	CourseOption string        `json:"course_option" validate:"required"`
	Slots        []slotRequest `json:"slots" validate:"required,min=1,dive"`
}

type slotConflictResponse struct {
	errorResponse
	OpenSlots []model.SlotRef `json:"open_slots"`
}

func toSlotRefs(in []slotRequest) []model.SlotRef {
	refs := make([]model.SlotRef, len(in))
	for i, s := range in {
		refs[i] = model.SlotRef{Date: s.Date, Hour: s.Hour}
	}
	return refs
}

func (h *Handler) registerUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.users.RegisterUser(r.Context(), callerUID(r), req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// issueTelegramLink выдаёт токен для команды боту /start <token>
func (h *Handler) issueTelegramLink(w http.ResponseWriter, r *http.Request) {
	token, err := h.users.IssueLinkToken(r.Context(), callerUID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, token)
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	account, err := h.ledger.Balance(r.Context(), callerUID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *Handler) createPost(w http.ResponseWriter, r *http.Request) {
	var req createPostRequest
	if !h.decode(w, r, &req) {
		return
	}

	options := make([]model.CourseOption, len(req.CourseOptions))
	for i, o := range req.CourseOptions {
		options[i] = model.CourseOption(o)
	}

	post, err := h.bookings.CreatePost(r.Context(), callerUID(r), service.CreatePostRequest{
		Title:         req.Title,
		CoinCost:      req.CoinCost,
		CourseOptions: options,
		Slots:         toSlotRefs(req.Slots),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (h *Handler) getPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.bookings.GetPost(r.Context(), chi.URLParam(r, "postID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *Handler) openSlots(w http.ResponseWriter, r *http.Request) {
	slots, err := h.bookings.OpenSlots(r.Context(), chi.URLParam(r, "postID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, slots)
}

func (h *Handler) reserve(w http.ResponseWriter, r *http.Request) {
	var req reserveRequest
	if !h.decode(w, r, &req) {
		return
	}

	option, err := model.ParseCourseOption(req.CourseOption)
	if err != nil {
		h.badRequest(w, err.Error())
		return
	}

	postID := chi.URLParam(r, "postID")
	booking, err := h.bookings.Reserve(r.Context(), callerUID(r), postID, option, toSlotRefs(req.Slots))
	if errors.Is(err, model.ErrSlotUnavailable) {
		// Клиент перерисовывает оставшиеся слоты и повторяет
		open, openErr := h.bookings.OpenSlots(r.Context(), postID)
		if openErr != nil {
			h.writeError(w, r, openErr)
			return
		}
		writeJSON(w, http.StatusConflict, slotConflictResponse{
			errorResponse: errorResponse{Error: err.Error(), Kind: string(model.KindConflict)},
			OpenSlots:     open,
		})
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

func (h *Handler) listBookings(w http.ResponseWriter, r *http.Request) {
	uid := callerUID(r)

	var (
		bookings []*model.Booking
		err      error
	)
	switch r.URL.Query().Get("role") {
	case "", string(model.RoleDemander):
		bookings, err = h.bookings.ListForDemander(r.Context(), uid)
	case string(model.RoleProvider):
		var status *model.BookingStatus
		if s := r.URL.Query().Get("status"); s != "" {
			st := model.BookingStatus(s)
			status = &st
		}
		bookings, err = h.bookings.ListForProvider(r.Context(), uid, status)
	default:
		h.badRequest(w, "role must be demander or provider")
		return
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if bookings == nil {
		bookings = []*model.Booking{}
	}
	writeJSON(w, http.StatusOK, bookings)
}

func (h *Handler) getBooking(w http.ResponseWriter, r *http.Request) {
	booking, err := h.bookings.Get(r.Context(), callerUID(r), chi.URLParam(r, "bookingID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	booking, err := h.bookings.Confirm(r.Context(), callerUID(r), chi.URLParam(r, "bookingID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *Handler) reject(w http.ResponseWriter, r *http.Request) {
	booking, err := h.bookings.Reject(r.Context(), callerUID(r), chi.URLParam(r, "bookingID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (h *Handler) repairNotifications(w http.ResponseWriter, r *http.Request) {
	if err := h.bookings.RepairNotifications(r.Context(), callerUID(r), chi.URLParam(r, "bookingID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) completion(w http.ResponseWriter, r *http.Request) {
	bookingID := chi.URLParam(r, "bookingID")
	// Проверка доступа: статус видят только стороны бронирования
	if _, err := h.bookings.Get(r.Context(), callerUID(r), bookingID); err != nil {
		h.writeError(w, r, err)
		return
	}
	status, err := h.portfolio.CompletionStatus(r.Context(), bookingID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"booking_id": bookingID, "status": string(status)})
}
