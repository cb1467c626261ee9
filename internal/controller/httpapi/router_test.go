package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Freeeeeet/skillswap/internal/model"
	"github.com/Freeeeeet/skillswap/internal/repository/memory"
	"github.com/Freeeeeet/skillswap/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()

	logger := zaptest.NewLogger(t)
	store := memory.NewStore()
	ledger := service.NewLedgerService(store.Accounts(), logger)
	notifications := service.NewNotificationService(store.Notifications(), store.Feed(), time.UTC, logger)
	bookings := service.NewBookingService(store.Posts(), store.Bookings(), store.Users(), ledger, notifications, service.BookingPolicy{}, logger)
	portfolio := service.NewPortfolioService(store.Portfolio(), store.Bookings(), store.Notifications(), logger)
	users := service.NewUserService(store.Users(), ledger, 10, logger)

	return NewHandler(bookings, ledger, notifications, portfolio, users, logger)
}

func do(t *testing.T, h http.Handler, method, path, uid string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if uid != "" {
		req.Header.Set(UserIDHeader, uid)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type testServer struct {
	h      *Handler
	routes http.Handler
	postID string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	h := newTestHandler(t)
	s := &testServer{h: h, routes: h.Routes()}

	for _, uid := range []string{"alice", "bob", "carol"} {
		rec := do(t, s.routes, http.MethodPost, "/users", uid, map[string]string{"name": uid})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec := do(t, s.routes, http.MethodPost, "/posts", "bob", map[string]any{
		"title":          "Go basics",
		"coin_cost":      2,
		"course_options": []string{"x1", "x3"},
		"slots": []map[string]any{
			{"date": "2024-06-01", "hour": 9},
			{"date": "2024-06-01", "hour": 10},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	s.postID = decodeBody[model.Post](t, rec).ID
	return s
}

func (s *testServer) reserve(t *testing.T, uid string, option string, hours ...int) *httptest.ResponseRecorder {
	t.Helper()
	slots := make([]map[string]any, len(hours))
	for i, h := range hours {
		slots[i] = map[string]any{"date": "2024-06-01", "hour": h}
	}
	return do(t, s.routes, http.MethodPost, "/posts/"+s.postID+"/bookings", uid, map[string]any{
		"course_option": option,
		"slots":         slots,
	})
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := do(t, s.routes, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReserveAndConfirmFlow(t *testing.T) {
	s := newTestServer(t)

	rec := s.reserve(t, "alice", "x1", 9)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	booking := decodeBody[model.Booking](t, rec)
	assert.Equal(t, model.BookingStatusPending, booking.Status)
	assert.Equal(t, 2, booking.CoinsTotal)

	rec = do(t, s.routes, http.MethodPost, "/bookings/"+booking.ID+"/confirm", "alice", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, s.routes, http.MethodPost, "/bookings/"+booking.ID+"/confirm", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.BookingStatusConfirmed, decodeBody[model.Booking](t, rec).Status)

	rec = do(t, s.routes, http.MethodPost, "/bookings/"+booking.ID+"/reject", "bob", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, s.routes, http.MethodGet, "/accounts/me", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 8, decodeBody[model.Account](t, rec).Coins)

	rec = do(t, s.routes, http.MethodGet, "/notifications", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeBody[[]model.Notification](t, rec)
	require.Len(t, view, 2)
	assert.Equal(t, model.NotificationCourseEndtime, view[0].Kind)

	rec = do(t, s.routes, http.MethodGet, "/notifications/applications", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]model.Notification](t, rec), 1)

	rec = do(t, s.routes, http.MethodGet, "/bookings?role=provider&status=confirmed", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]model.Booking](t, rec), 1)
}

func TestReserveConflictReturnsOpenSlots(t *testing.T) {
	s := newTestServer(t)

	rec := s.reserve(t, "alice", "x1", 9)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.reserve(t, "carol", "x1", 9)
	require.Equal(t, http.StatusConflict, rec.Code)

	resp := decodeBody[slotConflictResponse](t, rec)
	assert.Equal(t, string(model.KindConflict), resp.Kind)
	assert.Equal(t, []model.SlotRef{{Date: "2024-06-01", Hour: 10}}, resp.OpenSlots)
}

func TestErrorStatusMapping(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		rec    *httptest.ResponseRecorder
		status int
		kind   model.ErrorKind
	}{
		{"missing caller", s.reserve(t, "", "x1", 9), http.StatusUnauthorized, model.KindUnauthenticated},
		{"self booking", s.reserve(t, "bob", "x1", 9), http.StatusBadRequest, model.KindValidation},
		{"selection mismatch", s.reserve(t, "alice", "x3", 9), http.StatusBadRequest, model.KindValidation},
		{"option not offered", s.reserve(t, "alice", "x5", 9), http.StatusBadRequest, model.KindValidation},
		{"unknown option", s.reserve(t, "alice", "x2", 9), http.StatusBadRequest, model.KindValidation},
		{"unknown post", do(t, s.routes, http.MethodGet, "/posts/missing", "alice", nil), http.StatusNotFound, model.KindNotFound},
		{"bad body", do(t, s.routes, http.MethodPost, "/posts/"+s.postID+"/bookings", "alice", map[string]any{"slots": []any{}}), http.StatusBadRequest, model.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.rec.Code, tt.rec.Body.String())
			assert.Equal(t, string(tt.kind), decodeBody[errorResponse](t, tt.rec).Kind)
		})
	}
}

func TestConfirmInsufficientFunds(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s.routes, http.MethodPost, "/posts", "bob", map[string]any{
		"title":          "Piano",
		"coin_cost":      5,
		"course_options": []string{"x3"},
		"slots": []map[string]any{
			{"date": "2024-06-02", "hour": 9},
			{"date": "2024-06-02", "hour": 10},
			{"date": "2024-06-02", "hour": 11},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	postID := decodeBody[model.Post](t, rec).ID

	rec = do(t, s.routes, http.MethodPost, "/posts/"+postID+"/bookings", "alice", map[string]any{
		"course_option": "x3",
		"slots": []map[string]any{
			{"date": "2024-06-02", "hour": 9},
			{"date": "2024-06-02", "hour": 10},
			{"date": "2024-06-02", "hour": 11},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	booking := decodeBody[model.Booking](t, rec)

	rec = do(t, s.routes, http.MethodPost, "/bookings/"+booking.ID+"/confirm", "bob", nil)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	rec = do(t, s.routes, http.MethodGet, "/bookings/"+booking.ID, "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.BookingStatusPending, decodeBody[model.Booking](t, rec).Status)
}

func TestSweepAndFeedback(t *testing.T) {
	s := newTestServer(t)
	s.h.now = func() time.Time { return time.Date(2024, 6, 1, 9, 51, 0, 0, time.UTC) }

	rec := s.reserve(t, "alice", "x1", 9)
	require.Equal(t, http.StatusCreated, rec.Code)
	booking := decodeBody[model.Booking](t, rec)
	rec = do(t, s.routes, http.MethodPost, "/bookings/"+booking.ID+"/confirm", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s.routes, http.MethodPost, "/notifications/sweep", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	surfaced := decodeBody[[]model.Notification](t, rec)
	require.Len(t, surfaced, 1)
	assert.True(t, surfaced[0].Read)

	rec = do(t, s.routes, http.MethodPost, "/notifications/sweep", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]model.Notification](t, rec))

	path := "/notifications/" + surfaced[0].ID + "/feedback"
	rec = do(t, s.routes, http.MethodPost, path, "alice", map[string]any{"feedback": "great", "rating": 9})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s.routes, http.MethodPost, path, "alice", map[string]any{"feedback": "great", "rating": 5})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = do(t, s.routes, http.MethodGet, "/portfolio/"+booking.ID+"/sessions/1/filled", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]bool{"filled": true}, decodeBody[map[string]bool](t, rec))

	rec = do(t, s.routes, http.MethodGet, "/bookings/"+booking.ID+"/completion", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(model.CompletionCompleted), decodeBody[map[string]string](t, rec)["status"])

	rec = do(t, s.routes, http.MethodGet, "/portfolio/"+booking.ID, "carol", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMarkRead(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s.routes, http.MethodPost, "/notifications/read", "alice", map[string]any{"ids": []string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s.routes, http.MethodPost, "/notifications/read", "alice", map[string]any{"ids": []string{"unknown"}})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestTelegramLinkToken(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s.routes, http.MethodPost, "/users/me/telegram-link", "alice", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	token := decodeBody[model.LinkToken](t, rec)
	assert.NotEmpty(t, token.Token)
	assert.NotContains(t, rec.Body.String(), "alice")

	user, err := s.h.users.RedeemLinkToken(context.Background(), token.Token, 501)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.UID)

	rec = do(t, s.routes, http.MethodPost, "/users/me/telegram-link", "nobody", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s.routes, http.MethodPost, "/users/me/telegram-link", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
