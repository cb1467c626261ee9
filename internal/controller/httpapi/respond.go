package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Freeeeeet/skillswap/internal/model"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

var kindStatus = map[model.ErrorKind]int{
	model.KindValidation:        http.StatusBadRequest,
	model.KindConflict:          http.StatusConflict,
	model.KindInsufficientFunds: http.StatusPaymentRequired,
	model.KindNotFound:          http.StatusNotFound,
	model.KindForbidden:         http.StatusForbidden,
	model.KindUnauthenticated:   http.StatusUnauthorized,
	model.KindUnavailable:       http.StatusServiceUnavailable,
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError отдаёт типизированную ошибку ядра. Необработанные ошибки
// логируются и отдаются как 503
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := model.KindOf(err)
	status := kindStatus[kind]

	var typed *model.Error
	msg := err.Error()
	if !errors.As(err, &typed) || kind == model.KindUnavailable {
		h.logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		msg = model.ErrStorageUnavailable.Message
	}

	writeJSON(w, status, errorResponse{Error: msg, Kind: string(kind)})
}

func (h *Handler) badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg, Kind: string(model.KindValidation)})
}

// decode читает JSON-тело и проверяет теги validate
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.badRequest(w, "invalid JSON body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.badRequest(w, err.Error())
		return false
	}
	return true
}
