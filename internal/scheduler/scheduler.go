package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ykvlv/reminder-bot/internal/domain"
	"github.com/ykvlv/reminder-bot/internal/metrics"
	"github.com/ykvlv/reminder-bot/internal/store"
)

// Sender is the minimal transport the scheduler needs to notify a chat.
// telegram.Router implements it.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Config controls the polling cadence.
type Config struct {
	Interval time.Duration // pause between ticks
	CatchUp  time.Duration // how far back a tick looks for missed reminders
	Title    string        // first line of every notification
}

// DefaultConfig polls every 30s and recovers reminders missed within an hour.
func DefaultConfig() Config {
	return Config{Interval: 30 * time.Second, CatchUp: time.Hour, Title: "🔔 Reminder:"}
}

// Scheduler periodically polls the store and delivers due reminders.
//
// Delivery is at least once within the catch-up window: a reminder is
// deleted right after its send attempt, so a crash between the two repeats
// that one message on the next start, and a failed send is not retried.
// Only one Scheduler may run against a store.
type Scheduler struct {
	repo    store.Repo
	log     *zap.Logger
	sender  Sender
	metrics *metrics.Metrics
	cfg     Config
	now     func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the tick clock.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithMetrics attaches collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// New creates a new Scheduler. Zero config fields fall back to DefaultConfig.
func New(repo store.Repo, log *zap.Logger, sender Sender, cfg Config, opts ...Option) *Scheduler {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.CatchUp <= 0 {
		cfg.CatchUp = def.CatchUp
	}
	if cfg.Title == "" {
		cfg.Title = def.Title
	}
	s := &Scheduler{
		repo:   repo,
		log:    log,
		sender: sender,
		cfg:    cfg,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run ticks once immediately, then every Interval until ctx is canceled.
// A tick in progress is finished before Run returns.
func (s *Scheduler) Run(ctx context.Context) {
	s.log.Info("scheduler started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Duration("catchUp", s.cfg.CatchUp),
	)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	// Ticks must not be cut short by shutdown.
	tickCtx := context.WithoutCancel(ctx)
	s.Tick(tickCtx)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping")
			return
		case <-ticker.C:
			s.Tick(tickCtx)
		}
	}
}

// Start runs the loop in a background goroutine.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("scheduler already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done = cancel, done
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	return nil
}

// Stop cancels a loop started with Start and waits for it to exit. Safe to
// call multiple times.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Tick performs one dispatch cycle: fetch due reminders, send, delete.
// Failures are logged per item and never abort the cycle.
func (s *Scheduler) Tick(ctx context.Context) {
	started := time.Now()
	now := domain.TruncateMinute(s.now())

	due, err := s.repo.FetchDue(ctx, now.Add(-s.cfg.CatchUp), now)
	if err != nil {
		s.metrics.FetchFailed()
		s.log.Error("FetchDue failed", zap.Error(err))
		return
	}
	if len(due) > 0 {
		s.log.Info("due reminders", zap.Int("count", len(due)), zap.String("now", domain.FormatMinute(now)))
	}

	for _, r := range due {
		s.deliver(ctx, r)
	}
	s.metrics.Tick(time.Since(started), len(due))
}

func (s *Scheduler) deliver(ctx context.Context, r domain.Reminder) {
	err := s.sender.SendMessage(ctx, r.ChatID, Notification(s.cfg.Title, r.Text))
	s.metrics.Delivery(err == nil)
	if err != nil {
		s.log.Error("send failed", zap.Error(err), zap.Int64("chatID", r.ChatID), zap.Int64("id", r.ID))
	}

	// Removed regardless of the send outcome.
	if err := s.repo.DeleteReminder(ctx, r.ID); err != nil {
		s.metrics.DeleteFailed()
		s.log.Error("DeleteReminder failed", zap.Error(err), zap.Int64("id", r.ID))
	}
}

// Notification renders the message sent for a reminder text.
func Notification(title, text string) string {
	return title + "\n\n" + text
}
