// Package httpapi exposes the reminder ingestion endpoint, the Telegram
// webhook receiver, health and metrics over gin.
package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Submitter accepts reminder submissions (reminders.Service).
type Submitter interface {
	Submit(ctx context.Context, chatID int64, raw string) (time.Time, error)
}

// UpdateHandler consumes Telegram updates (telegram.Router).
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, upd tgbotapi.Update)
}

// Options configure the optional routes.
type Options struct {
	// APIToken guards /api with a bearer token; empty leaves it open.
	APIToken string

	// WebhookSecret is the path secret of /webhook/:secret; empty disables the route.
	WebhookSecret string
	Updates       UpdateHandler

	// Metrics is served on /metrics when set.
	Metrics http.Handler
}

// NewEngine builds the gin engine with all routes.
func NewEngine(log *zap.Logger, svc Submitter, opts Options) *gin.Engine {
	engine := gin.New()
	engine.Use(requestID(), accessLog(log), gin.Recovery())

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	api := engine.Group("/api")
	if opts.APIToken != "" {
		api.Use(bearerAuth(opts.APIToken))
	}
	h := &reminderHandler{svc: svc, log: log}
	api.POST("/reminders", h.create)

	if opts.WebhookSecret != "" && opts.Updates != nil {
		engine.POST("/webhook/:secret", webhook(log, opts.WebhookSecret, opts.Updates))
	}
	return engine
}

// NewServer wraps handler in an http.Server with conservative timeouts.
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 3 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

func webhook(log *zap.Logger, secret string, updates UpdateHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if subtle.ConstantTimeCompare([]byte(c.Param("secret")), []byte(secret)) != 1 {
			c.Status(http.StatusNotFound)
			return
		}
		var upd tgbotapi.Update
		if err := c.ShouldBindJSON(&upd); err != nil {
			log.Warn("bad webhook payload", zap.Error(err))
			c.Status(http.StatusBadRequest)
			return
		}
		updates.HandleUpdate(c.Request.Context(), upd)
		c.Status(http.StatusOK)
	}
}
