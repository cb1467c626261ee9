package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/Freeeeeet/skillswap/internal/model"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type markReadRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,required"`
}

func nonNil(ns []*model.Notification) []*model.Notification {
	if ns == nil {
		return []*model.Notification{}
	}
	return ns
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	view, err := h.notifications.List(r.Context(), callerUID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(view))
}

func (h *Handler) listApplications(w http.ResponseWriter, r *http.Request) {
	apps, err := h.notifications.Applications(r.Context(), callerUID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(apps))
}

// streamNotifications отдаёт ленту через Server-Sent Events при каждом изменении
func (h *Handler) streamNotifications(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.badRequest(w, "streaming is not supported")
		return
	}

	views, err := h.notifications.Watch(r.Context(), callerUID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for view := range views {
		data, err := json.Marshal(nonNil(view))
		if err != nil {
			h.logger.Error("Failed to encode notification view", zap.Error(err))
			return
		}
		if _, err := fmt.Fprintf(w, "event: notifications\ndata: %s\n\n", data); err != nil {
			return
		}
		flusher.Flush()
	}
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	var req markReadRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.notifications.MarkRead(r.Context(), callerUID(r), req.IDs); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sweep вызывается клиентом периодически, пока открыта лента
func (h *Handler) sweep(w http.ResponseWriter, r *http.Request) {
	surfaced, err := h.notifications.Sweep(r.Context(), callerUID(r), h.now())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(surfaced))
}

func (h *Handler) submitFeedback(w http.ResponseWriter, r *http.Request) {
	var req model.Feedback
	if !h.decode(w, r, &req) {
		return
	}
	err := h.portfolio.SubmitFeedbackFor(r.Context(), callerUID(r), chi.URLParam(r, "notificationID"), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listPortfolio(w http.ResponseWriter, r *http.Request) {
	entries, err := h.portfolio.ListForUser(r.Context(), callerUID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*model.PortfolioEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) getPortfolio(w http.ResponseWriter, r *http.Request) {
	entry, err := h.portfolio.Get(r.Context(), callerUID(r), chi.URLParam(r, "bookingID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *Handler) hasFilled(w http.ResponseWriter, r *http.Request) {
	seq, err := strconv.Atoi(chi.URLParam(r, "seq"))
	if err != nil || seq < 1 {
		h.badRequest(w, "sequence number must be a positive integer")
		return
	}
	uid := callerUID(r)
	if uid == "" {
		h.writeError(w, r, model.ErrNotAuthenticated)
		return
	}

	filled, err := h.portfolio.HasFilled(r.Context(), uid, chi.URLParam(r, "bookingID"), seq)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"filled": filled})
}
