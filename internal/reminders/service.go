// Package reminders implements reminder ingestion: validation, time
// extraction and persistence of a submitted text.
package reminders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ykvlv/reminder-bot/internal/domain"
	"github.com/ykvlv/reminder-bot/internal/metrics"
	"github.com/ykvlv/reminder-bot/internal/store"
)

// Service accepts reminder submissions.
type Service struct {
	repo      store.Repo
	extractor *domain.Extractor
	log       *zap.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the reference clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMetrics attaches collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates an ingestion service.
func NewService(repo store.Repo, extractor *domain.Extractor, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		extractor: extractor,
		log:       log,
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Submit validates the request, resolves the reminder time relative to the
// current UTC time and persists the reminder. It returns the resolved time.
// The user is not registered here; that happens on inbound Telegram contact.
func (s *Service) Submit(ctx context.Context, chatID int64, raw string) (time.Time, error) {
	text := strings.TrimSpace(raw)
	if chatID == 0 || text == "" {
		s.metrics.ReminderRejected("validation")
		return time.Time{}, fmt.Errorf("%w: telegram_chat_id and text are required", domain.ErrValidation)
	}

	now := s.now().UTC()
	at, err := s.extractor.Extract(text, now)
	if err != nil {
		s.metrics.ReminderRejected("not_recognized")
		if errors.Is(err, domain.ErrNotRecognized) {
			return time.Time{}, fmt.Errorf("%w, try: %q", err, s.extractor.Hint())
		}
		return time.Time{}, err
	}

	rem := &domain.Reminder{
		ChatID:    chatID,
		Text:      text,
		RemindAt:  at,
		CreatedAt: domain.TruncateMinute(now),
	}
	id, err := s.repo.CreateReminder(ctx, rem)
	if err != nil {
		s.log.Error("create reminder failed", zap.Error(err), zap.Int64("chatID", chatID))
		return time.Time{}, err
	}
	s.metrics.ReminderCreated()
	s.log.Info("reminder created",
		zap.Int64("id", id),
		zap.Int64("chatID", chatID),
		zap.String("remindAt", domain.FormatMinute(at)),
	)
	return at, nil
}
