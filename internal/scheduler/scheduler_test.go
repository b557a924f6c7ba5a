package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ykvlv/reminder-bot/internal/domain"
	"github.com/ykvlv/reminder-bot/internal/metrics"
	"github.com/ykvlv/reminder-bot/internal/store"
)

type sentMessage struct {
	ChatID int64
	Text   string
}

// mockSender records messages; chats listed in fail get an error.
type mockSender struct {
	mu   sync.Mutex
	sent []sentMessage
	fail map[int64]bool
}

func (m *mockSender) SendMessage(_ context.Context, chatID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{ChatID: chatID, Text: text})
	if m.fail[chatID] {
		return errors.New("forbidden: bot was blocked by the user")
	}
	return nil
}

func (m *mockSender) messages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}

// flakyRepo injects failures into a real store.
type flakyRepo struct {
	store.Repo
	mu         sync.Mutex
	fetchErrs  int
	deleteErrs int
}

func (f *flakyRepo) FetchDue(ctx context.Context, from, to time.Time) ([]domain.Reminder, error) {
	f.mu.Lock()
	if f.fetchErrs > 0 {
		f.fetchErrs--
		f.mu.Unlock()
		return nil, domain.ErrStorageUnavailable
	}
	f.mu.Unlock()
	return f.Repo.FetchDue(ctx, from, to)
}

func (f *flakyRepo) DeleteReminder(ctx context.Context, id int64) error {
	f.mu.Lock()
	if f.deleteErrs > 0 {
		f.deleteErrs--
		f.mu.Unlock()
		return domain.ErrStorageUnavailable
	}
	f.mu.Unlock()
	return f.Repo.DeleteReminder(ctx, id)
}

var dueAt = time.Date(2024, time.January, 2, 15, 0, 0, 0, time.UTC)

func openRepo(t *testing.T) store.Repo {
	t.Helper()
	r, err := store.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "reminders.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func addReminder(t *testing.T, repo store.Repo, chatID int64, text string, at time.Time) int64 {
	t.Helper()
	id, err := repo.CreateReminder(context.Background(), &domain.Reminder{
		ChatID: chatID, Text: text, RemindAt: at, CreatedAt: at.Add(-time.Hour),
	})
	require.NoError(t, err)
	return id
}

func remaining(t *testing.T, repo store.Repo) []domain.Reminder {
	t.Helper()
	got, err := repo.FetchDue(context.Background(), dueAt.AddDate(-1, 0, 0), dueAt.AddDate(1, 0, 0))
	require.NoError(t, err)
	return got
}

func newTestScheduler(repo store.Repo, sender Sender, now time.Time) *Scheduler {
	return New(repo, zap.NewNop(), sender, Config{Interval: 10 * time.Millisecond, CatchUp: time.Hour},
		WithClock(func() time.Time { return now }),
		WithMetrics(metrics.MustNew(prometheus.NewRegistry())),
	)
}

func TestTick_DeliversDueReminderOnce(t *testing.T) {
	repo := openRepo(t)
	sender := &mockSender{}
	addReminder(t, repo, 42, "Call mom tomorrow at 15:00", dueAt)

	s := newTestScheduler(repo, sender, dueAt.Add(20*time.Second))
	s.Tick(context.Background())

	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(42), msgs[0].ChatID)
	assert.Equal(t, Notification(DefaultConfig().Title, "Call mom tomorrow at 15:00"), msgs[0].Text)
	assert.Empty(t, remaining(t, repo))

	s.Tick(context.Background())
	assert.Len(t, sender.messages(), 1)
}

func TestTick_NotYetDue(t *testing.T) {
	repo := openRepo(t)
	sender := &mockSender{}
	addReminder(t, repo, 42, "later", dueAt)

	newTestScheduler(repo, sender, dueAt.Add(-time.Minute)).Tick(context.Background())

	assert.Empty(t, sender.messages())
	assert.Len(t, remaining(t, repo), 1)
}

func TestTick_CatchesUpWithinWindow(t *testing.T) {
	repo := openRepo(t)
	sender := &mockSender{}
	addReminder(t, repo, 1, "missed while down", dueAt.Add(-59*time.Minute))
	addReminder(t, repo, 2, "abandoned", dueAt.Add(-2*time.Hour))

	newTestScheduler(repo, sender, dueAt).Tick(context.Background())

	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(1), msgs[0].ChatID)

	left := remaining(t, repo)
	require.Len(t, left, 1)
	assert.Equal(t, "abandoned", left[0].Text)
}

func TestTick_SendFailureStillDeletesAndContinues(t *testing.T) {
	repo := openRepo(t)
	sender := &mockSender{fail: map[int64]bool{1: true}}
	addReminder(t, repo, 1, "blocked", dueAt.Add(-time.Minute))
	addReminder(t, repo, 2, "fine", dueAt)

	newTestScheduler(repo, sender, dueAt).Tick(context.Background())

	msgs := sender.messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(1), msgs[0].ChatID)
	assert.Equal(t, int64(2), msgs[1].ChatID)
	assert.Empty(t, remaining(t, repo))
}

func TestTick_FetchFailureRetriedNextTick(t *testing.T) {
	repo := &flakyRepo{Repo: openRepo(t), fetchErrs: 1}
	sender := &mockSender{}
	addReminder(t, repo, 7, "eventually", dueAt)
	s := newTestScheduler(repo, sender, dueAt)

	s.Tick(context.Background())
	assert.Empty(t, sender.messages())

	s.Tick(context.Background())
	assert.Len(t, sender.messages(), 1)
}

func TestTick_DeleteFailureCausesOneDuplicate(t *testing.T) {
	repo := &flakyRepo{Repo: openRepo(t), deleteErrs: 1}
	sender := &mockSender{}
	addReminder(t, repo, 7, "twice", dueAt)
	s := newTestScheduler(repo, sender, dueAt)

	s.Tick(context.Background())
	s.Tick(context.Background())
	s.Tick(context.Background())

	assert.Len(t, sender.messages(), 2)
	assert.Empty(t, remaining(t, repo))
}

func TestStartStop(t *testing.T) {
	repo := openRepo(t)
	sender := &mockSender{}
	addReminder(t, repo, 9, "from the loop", dueAt)
	s := newTestScheduler(repo, sender, dueAt)

	require.NoError(t, s.Start(context.Background()))
	require.Error(t, s.Start(context.Background()))

	require.Eventually(t, func() bool { return len(sender.messages()) == 1 }, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()
	assert.Len(t, sender.messages(), 1)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	s := newTestScheduler(openRepo(t), &mockSender{}, dueAt)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNew_Defaults(t *testing.T) {
	s := New(nil, zap.NewNop(), nil, Config{})
	assert.Equal(t, DefaultConfig(), s.cfg)
}
