package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ykvlv/reminder-bot/internal/domain"
)

// chatID accepts a JSON number or a numeric string.
type chatID int64

func (id *chatID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*id = 0
			return nil
		}
		b = []byte(s)
	}
	v, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("telegram_chat_id: %w", err)
	}
	*id = chatID(v)
	return nil
}

type createReminderRequest struct {
	TelegramChatID chatID `json:"telegram_chat_id"`
	Text           string `json:"text"`
}

type createReminderResponse struct {
	Status   string `json:"status"`
	RemindAt string `json:"remind_at"`
}

type reminderHandler struct {
	svc Submitter
	log *zap.Logger
}

func (h *reminderHandler) create(c *gin.Context) {
	var req createReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body: " + err.Error()})
		return
	}

	at, err := h.svc.Submit(c.Request.Context(), int64(req.TelegramChatID), req.Text)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, createReminderResponse{Status: "ok", RemindAt: domain.FormatMinute(at)})
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrNotRecognized):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrStorageUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable, try again later"})
	default:
		h.log.Error("submit failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
