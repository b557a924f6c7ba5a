package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ykvlv/reminder-bot/internal/store"
)

// BotClient is the part of *tgbotapi.BotAPI the router uses.
type BotClient interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Router handles inbound Telegram updates and delivers outgoing messages.
type Router struct {
	bot        BotClient
	log        *zap.Logger
	repo       store.Repo
	texts      Texts
	limiter    *rate.Limiter
	newBackOff func() backoff.BackOff
	now        func() time.Time
}

// Option customizes a Router.
type Option func(*Router)

// WithRateLimit caps outgoing messages per second (Telegram allows ~30).
func WithRateLimit(perSecond float64) Option {
	return func(r *Router) {
		if perSecond > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithBackOff sets the retry policy factory for SendMessage.
func WithBackOff(factory func() backoff.BackOff) Option {
	return func(r *Router) { r.newBackOff = factory }
}

// WithClock overrides the clock used for registration timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

// NewRouter creates a new Telegram router.
func NewRouter(bot BotClient, log *zap.Logger, repo store.Repo, texts Texts, opts ...Option) *Router {
	r := &Router{
		bot:        bot,
		log:        log,
		repo:       repo,
		texts:      texts,
		limiter:    rate.NewLimiter(rate.Limit(25), 1),
		newBackOff: defaultBackOff,
		now:        time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second
	return backoff.WithMaxRetries(b, 3)
}

// HandleUpdate registers the sender of any inbound message and answers it.
// Reminders themselves are only accepted through the HTTP API.
func (r *Router) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	chatID := upd.Message.Chat.ID
	text := strings.TrimSpace(upd.Message.Text)

	created, err := r.repo.RegisterUser(ctx, chatID, r.now().UTC())
	if err != nil {
		r.log.Error("RegisterUser failed", zap.Error(err), zap.Int64("chatID", chatID))
	} else if created {
		r.log.Info("new user", zap.Int64("chatID", chatID))
	}

	switch {
	case strings.HasPrefix(text, "/start"):
		r.reply(ctx, chatID, fmt.Sprintf(r.texts.Start, chatID))
	default:
		r.reply(ctx, chatID, r.texts.Info)
	}
}

func (r *Router) reply(ctx context.Context, chatID int64, text string) {
	if err := r.SendMessage(ctx, chatID, text); err != nil {
		r.log.Warn("reply failed", zap.Error(err), zap.Int64("chatID", chatID))
	}
}
