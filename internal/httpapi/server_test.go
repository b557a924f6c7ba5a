package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ykvlv/reminder-bot/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type submission struct {
	chatID int64
	text   string
}

type fakeSubmitter struct {
	mu    sync.Mutex
	calls []submission
	at    time.Time
	err   error
}

func (f *fakeSubmitter) Submit(_ context.Context, chatID int64, raw string) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, submission{chatID: chatID, text: raw})
	return f.at, f.err
}

type fakeUpdates struct {
	mu  sync.Mutex
	got []tgbotapi.Update
}

func (f *fakeUpdates) HandleUpdate(_ context.Context, upd tgbotapi.Update) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, upd)
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestCreateReminder_OK(t *testing.T) {
	svc := &fakeSubmitter{at: time.Date(2024, time.January, 2, 15, 0, 0, 0, time.UTC)}
	h := NewEngine(zap.NewNop(), svc, Options{})

	rec := do(t, h, http.MethodPost, "/api/reminders", `{"telegram_chat_id": 12345, "text": "Call mom tomorrow at 15:00"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"status": "ok", "remind_at": "2024-01-02 15:00"}, decode(t, rec))
	require.Len(t, svc.calls, 1)
	assert.Equal(t, submission{chatID: 12345, text: "Call mom tomorrow at 15:00"}, svc.calls[0])
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestCreateReminder_ChatIDAsString(t *testing.T) {
	svc := &fakeSubmitter{at: time.Date(2024, time.January, 2, 15, 0, 0, 0, time.UTC)}
	h := NewEngine(zap.NewNop(), svc, Options{})

	rec := do(t, h, http.MethodPost, "/api/reminders", `{"telegram_chat_id": "-100123", "text": "x"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(-100123), svc.calls[0].chatID)
}

func TestCreateReminder_BadBody(t *testing.T) {
	for name, body := range map[string]string{
		"not json":       `nope`,
		"chat id word":   `{"telegram_chat_id": "abc", "text": "x"}`,
		"chat id float":  `{"telegram_chat_id": 1.5, "text": "x"}`,
		"text is number": `{"telegram_chat_id": 1, "text": 5}`,
	} {
		t.Run(name, func(t *testing.T) {
			svc := &fakeSubmitter{}
			h := NewEngine(zap.NewNop(), svc, Options{})

			rec := do(t, h, http.MethodPost, "/api/reminders", body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decode(t, rec)["error"])
			assert.Empty(t, svc.calls)
		})
	}
}

func TestCreateReminder_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("%w: telegram_chat_id and text are required", domain.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w, try: %q", domain.ErrNotRecognized, "tomorrow at 15:00"), http.StatusBadRequest},
		{fmt.Errorf("create reminder: %w", domain.ErrStorageUnavailable), http.StatusServiceUnavailable},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			h := NewEngine(zap.NewNop(), &fakeSubmitter{err: tc.err}, Options{})

			rec := do(t, h, http.MethodPost, "/api/reminders", `{"telegram_chat_id": 1, "text": "x"}`, nil)
			assert.Equal(t, tc.code, rec.Code)
			assert.NotEmpty(t, decode(t, rec)["error"])
		})
	}
}

func TestCreateReminder_NotRecognizedCarriesHint(t *testing.T) {
	err := fmt.Errorf("%w, try: %q", domain.ErrNotRecognized, "tomorrow at 15:00")
	h := NewEngine(zap.NewNop(), &fakeSubmitter{err: err}, Options{})

	rec := do(t, h, http.MethodPost, "/api/reminders", `{"telegram_chat_id": 1, "text": "hello"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "tomorrow at 15:00")
}

func TestCreateReminder_BearerAuth(t *testing.T) {
	svc := &fakeSubmitter{at: time.Date(2024, time.January, 2, 15, 0, 0, 0, time.UTC)}
	h := NewEngine(zap.NewNop(), svc, Options{APIToken: "s3cret"})
	body := `{"telegram_chat_id": 1, "text": "x"}`

	rec := do(t, h, http.MethodPost, "/api/reminders", body, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/reminders", body, map[string]string{"Authorization": "Bearer wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, svc.calls)

	rec = do(t, h, http.MethodPost, "/api/reminders", body, map[string]string{"Authorization": "Bearer s3cret"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, svc.calls, 1)
}

func TestWebhook(t *testing.T) {
	updates := &fakeUpdates{}
	h := NewEngine(zap.NewNop(), &fakeSubmitter{}, Options{WebhookSecret: "hook", Updates: updates})
	payload := `{"update_id": 7, "message": {"message_id": 1, "date": 0, "chat": {"id": 42, "type": "private"}, "text": "/start"}}`

	rec := do(t, h, http.MethodPost, "/webhook/wrong", payload, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, updates.got)

	rec = do(t, h, http.MethodPost, "/webhook/hook", payload, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, updates.got, 1)
	assert.Equal(t, 7, updates.got[0].UpdateID)
	assert.Equal(t, int64(42), updates.got[0].Message.Chat.ID)
	assert.Equal(t, "/start", updates.got[0].Message.Text)

	rec = do(t, h, http.MethodPost, "/webhook/hook", `{`, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_DisabledWithoutSecret(t *testing.T) {
	h := NewEngine(zap.NewNop(), &fakeSubmitter{}, Options{Updates: &fakeUpdates{}})

	rec := do(t, h, http.MethodPost, "/webhook/", `{}`, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthzAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()
	h := NewEngine(zap.NewNop(), &fakeSubmitter{}, Options{Metrics: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})})

	rec := do(t, h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	rec = do(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_total 1")
}

func TestRequestID_Propagated(t *testing.T) {
	h := NewEngine(zap.NewNop(), &fakeSubmitter{}, Options{})

	rec := do(t, h, http.MethodGet, "/healthz", "", map[string]string{requestIDHeader: "abc-123"})
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}
