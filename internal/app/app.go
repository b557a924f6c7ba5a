package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ykvlv/reminder-bot/internal/config"
	"github.com/ykvlv/reminder-bot/internal/domain"
	"github.com/ykvlv/reminder-bot/internal/httpapi"
	"github.com/ykvlv/reminder-bot/internal/metrics"
	"github.com/ykvlv/reminder-bot/internal/reminders"
	"github.com/ykvlv/reminder-bot/internal/scheduler"
	"github.com/ykvlv/reminder-bot/internal/store"
	"github.com/ykvlv/reminder-bot/internal/telegram"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	cfg config.Config
	log *zap.Logger
	bot *tgbotapi.BotAPI
}

func New(cfg config.Config, log *zap.Logger) (*App, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("telegram: %w", err)
	}
	bot.Debug = false
	return &App{cfg: cfg, log: log, bot: bot}, nil
}

// Run serves until SIGINT/SIGTERM or until one of the components fails.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.log.Info("starting reminder-bot",
		zap.String("mode", a.cfg.RunMode),
		zap.String("http", a.cfg.HTTPAddr),
		zap.String("store", a.cfg.DBDriver),
		zap.String("locale", a.cfg.Locale),
	)

	repo, err := store.Open(ctx, a.cfg.DBDriver, a.cfg.DSN())
	if err != nil {
		a.log.Error("open store failed", zap.Error(err))
		return err
	}
	// Closed after every component below has stopped.
	defer func() {
		if err := repo.Close(); err != nil {
			a.log.Warn("store close error", zap.Error(err))
		}
	}()
	a.log.Info("store ready", zap.String("driver", a.cfg.DBDriver))

	extractor, err := domain.NewExtractor(a.cfg.Locale)
	if err != nil {
		return err
	}
	m := metrics.MustNew(prometheus.DefaultRegisterer)
	texts := telegram.TextsFor(a.cfg.Locale)

	router := telegram.NewRouter(a.bot, a.log, repo, texts, telegram.WithRateLimit(a.cfg.SendRate))
	svc := reminders.NewService(repo, extractor, a.log, reminders.WithMetrics(m))
	sched := scheduler.New(repo, a.log, router, scheduler.Config{
		Interval: a.cfg.PollInterval,
		CatchUp:  a.cfg.CatchUpWindow,
		Title:    texts.ReminderTitle,
	}, scheduler.WithMetrics(m))

	var janitor *scheduler.Janitor
	if a.cfg.PurgeSchedule != "" {
		janitor, err = scheduler.NewJanitor(repo, a.log, a.cfg.CatchUpWindow, a.cfg.PurgeSchedule, m)
		if err != nil {
			return err
		}
	}

	opts := httpapi.Options{APIToken: a.cfg.APIToken, Metrics: promhttp.Handler()}
	if a.cfg.RunMode == config.RunModeWebhook {
		opts.WebhookSecret = a.cfg.WebhookSecret
		opts.Updates = router
	}
	gin.SetMode(gin.ReleaseMode)
	srv := httpapi.NewServer(a.cfg.HTTPAddr, httpapi.NewEngine(a.log, svc, opts))

	g, gctx := errgroup.WithContext(ctx)
	if err := sched.Start(gctx); err != nil {
		return err
	}
	defer sched.Stop()

	g.Go(func() error { return a.serveHTTP(gctx, srv) })
	if janitor != nil {
		g.Go(func() error {
			janitor.Run(gctx)
			return nil
		})
	}
	switch a.cfg.RunMode {
	case config.RunModeWebhook:
		g.Go(func() error { return a.webhook(gctx) })
	default:
		g.Go(func() error { return a.poll(gctx, router) })
	}

	err = g.Wait()
	sched.Stop()
	a.log.Info("shutdown complete")
	return err
}

func (a *App) serveHTTP(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			a.log.Error("http server error", zap.Error(err))
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		a.log.Warn("http server shutdown error", zap.Error(err))
	}
	return nil
}

// poll consumes long-polling updates until ctx is done.
func (a *App) poll(ctx context.Context, router *telegram.Router) error {
	// getUpdates is refused while a webhook from an earlier run is set.
	if _, err := a.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		a.log.Warn("delete webhook failed", zap.Error(err))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updCh := a.bot.GetUpdatesChan(u)
	defer a.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			a.log.Info("update polling stopped")
			return nil
		case upd, ok := <-updCh:
			if !ok {
				return nil
			}
			router.HandleUpdate(ctx, upd)
		}
	}
}

// webhook registers the webhook for the lifetime of ctx; updates arrive
// through the HTTP server.
func (a *App) webhook(ctx context.Context) error {
	url := a.cfg.BaseURL + "/webhook/" + a.cfg.WebhookSecret
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("webhook url: %w", err)
	}
	if _, err := a.bot.Request(wh); err != nil {
		a.log.Error("set webhook failed", zap.Error(err))
		return fmt.Errorf("set webhook: %w", err)
	}
	a.log.Info("webhook registered", zap.String("baseURL", a.cfg.BaseURL))

	<-ctx.Done()
	if _, err := a.bot.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		a.log.Warn("delete webhook failed", zap.Error(err))
	}
	return nil
}

// Purge runs one janitor pass against the configured store.
func Purge(ctx context.Context, cfg config.Config, log *zap.Logger) (int64, error) {
	repo, err := store.Open(ctx, cfg.DBDriver, cfg.DSN())
	if err != nil {
		return 0, err
	}
	defer func() { _ = repo.Close() }()

	j, err := scheduler.NewJanitor(repo, log, cfg.CatchUpWindow, "", nil)
	if err != nil {
		return 0, err
	}
	return j.Purge(ctx)
}
