package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ykvlv/reminder-bot/internal/domain"
)

// SendMessage sends a plain text message to the given chat. Rate limited;
// flood-control, server and network errors are retried with backoff.
// This makes Router satisfy scheduler.Sender.
func (r *Router) SendMessage(ctx context.Context, chatID int64, text string) error {
	op := func() error {
		if err := r.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		_, err := r.bot.Send(tgbotapi.NewMessage(chatID, text))
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(r.newBackOff(), ctx)); err != nil {
		return fmt.Errorf("%w: chat %d: %w", domain.ErrDeliveryFailed, chatID, err)
	}
	return nil
}

// retryable reports whether a Send error may succeed on a later attempt.
// API errors other than 429 and 5xx (blocked bot, bad chat id) are final.
func retryable(err error) bool {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return true
}
