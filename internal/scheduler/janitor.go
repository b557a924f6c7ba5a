package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ykvlv/reminder-bot/internal/domain"
	"github.com/ykvlv/reminder-bot/internal/metrics"
	"github.com/ykvlv/reminder-bot/internal/store"
)

// Janitor removes abandoned reminders: rows that fell out of the catch-up
// window without being delivered. The dispatcher never returns them again,
// so without the janitor they would accumulate forever.
type Janitor struct {
	repo    store.Repo
	log     *zap.Logger
	metrics *metrics.Metrics
	catchUp time.Duration
	now     func() time.Time
	cron    *cron.Cron
}

// NewJanitor schedules purges on a cron spec such as "@every 1h" or "0 * * * *".
// An empty spec schedules nothing; Purge can still be called directly.
func NewJanitor(repo store.Repo, log *zap.Logger, catchUp time.Duration, spec string, m *metrics.Metrics) (*Janitor, error) {
	if catchUp <= 0 {
		catchUp = DefaultConfig().CatchUp
	}
	j := &Janitor{
		repo:    repo,
		log:     log,
		metrics: m,
		catchUp: catchUp,
		now:     time.Now,
	}
	cronLog := cron.PrintfLogger(zap.NewStdLog(log))
	j.cron = cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.SkipIfStillRunning(cronLog)),
	)
	if spec == "" {
		return j, nil
	}
	if _, err := j.cron.AddFunc(spec, func() { _, _ = j.Purge(context.Background()) }); err != nil {
		return nil, fmt.Errorf("janitor schedule %q: %w", spec, err)
	}
	return j, nil
}

// Purge deletes reminders due at or before now minus the catch-up window.
func (j *Janitor) Purge(ctx context.Context) (int64, error) {
	cutoff := domain.TruncateMinute(j.now()).Add(-j.catchUp)
	n, err := j.repo.PurgeBefore(ctx, cutoff)
	if err != nil {
		j.log.Error("purge failed", zap.Error(err))
		return 0, err
	}
	j.metrics.Purged(n)
	if n > 0 {
		j.log.Warn("purged abandoned reminders",
			zap.Int64("count", n),
			zap.String("cutoff", domain.FormatMinute(cutoff)),
		)
	}
	return n, nil
}

// Run starts the cron engine and blocks until ctx is done; a running purge
// is allowed to finish.
func (j *Janitor) Run(ctx context.Context) {
	j.cron.Start()
	<-ctx.Done()
	<-j.cron.Stop().Done()
	j.log.Info("janitor stopped")
}
