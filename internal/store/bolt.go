package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/ykvlv/reminder-bot/internal/domain"
)

var (
	usersBucket     = []byte("users")
	remindersBucket = []byte("reminders")
	dueBucket       = []byte("due") // "<remind_at>|<id>" -> empty
)

const dueSep = '|'

// BoltRepo implements Repo on a single bbolt file. Every operation is one
// bbolt transaction, so writers are serialized by the database itself.
type BoltRepo struct{ db *bbolt.DB }

type boltReminder struct {
	ID        int64  `json:"id"`
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	RemindAt  string `json:"remind_at"`
	CreatedAt string `json:"created_at"`
}

// OpenBolt opens (or creates) the bbolt file at path.
func OpenBolt(path string) (*BoltRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{usersBucket, remindersBucket, dueBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltRepo{db: db}, nil
}

// Close releases the file lock.
func (r *BoltRepo) Close() error {
	return r.db.Close()
}

func idKey(id int64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, uint64(id))
	return k
}

func dueKey(remindAt string, id int64) []byte {
	k := make([]byte, 0, len(remindAt)+9)
	k = append(k, remindAt...)
	k = append(k, dueSep)
	return append(k, idKey(id)...)
}

// splitDueKey returns the remind_at part and the id of an index key.
func splitDueKey(k []byte) (string, int64, bool) {
	i := bytes.IndexByte(k, dueSep)
	if i < 0 || len(k)-i-1 != 8 {
		return "", 0, false
	}
	return string(k[:i]), int64(binary.BigEndian.Uint64(k[i+1:])), true
}

// RegisterUser inserts the chat if it is not known yet.
func (r *BoltRepo) RegisterUser(ctx context.Context, chatID int64, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	var created bool
	err := r.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(usersBucket)
		k := idKey(chatID)
		if b.Get(k) != nil {
			return nil
		}
		created = true
		return b.Put(k, []byte(formatCreated(at)))
	})
	if err != nil {
		return false, unavailable("register user", err)
	}
	return created, nil
}

// GetUser returns the user for chatID or ErrNotFound.
func (r *BoltRepo) GetUser(ctx context.Context, chatID int64) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var u *domain.User
	err := r.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(usersBucket).Get(idKey(chatID))
		if v == nil {
			return ErrNotFound
		}
		u = &domain.User{ChatID: chatID, CreatedAt: parseCreated(string(v))}
		return nil
	})
	if err != nil {
		return nil, unavailable("get user", err)
	}
	return u, nil
}

// CreateReminder stores the reminder and its due-index entry atomically.
func (r *BoltRepo) CreateReminder(ctx context.Context, rem *domain.Reminder) (int64, error) {
	if rem == nil {
		return 0, errors.New("nil reminder")
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var id int64
	err := r.db.Update(func(tx *bbolt.Tx) error {
		rb := tx.Bucket(remindersBucket)
		seq, err := rb.NextSequence()
		if err != nil {
			return err
		}
		id = int64(seq)
		rec := boltReminder{
			ID:        id,
			ChatID:    rem.ChatID,
			Text:      rem.Text,
			RemindAt:  domain.FormatMinute(rem.RemindAt),
			CreatedAt: formatCreated(rem.CreatedAt),
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := rb.Put(idKey(id), data); err != nil {
			return err
		}
		return tx.Bucket(dueBucket).Put(dueKey(rec.RemindAt, id), []byte{})
	})
	if err != nil {
		return 0, unavailable("create reminder", err)
	}
	return id, nil
}

// FetchDue scans the due index for from < remind_at <= to.
func (r *BoltRepo) FetchDue(ctx context.Context, from, to time.Time) ([]domain.Reminder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lo, hi := domain.FormatMinute(from), domain.FormatMinute(to)

	var res []domain.Reminder
	err := r.db.View(func(tx *bbolt.Tx) error {
		rb := tx.Bucket(remindersBucket)
		c := tx.Bucket(dueBucket).Cursor()
		for k, _ := c.Seek([]byte(lo)); k != nil; k, _ = c.Next() {
			at, id, ok := splitDueKey(k)
			if !ok || at == lo {
				continue
			}
			if at > hi {
				break
			}
			v := rb.Get(idKey(id))
			if v == nil {
				continue
			}
			var rec boltReminder
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("reminder %d: %w", id, err)
			}
			remindAt, err := domain.ParseMinute(rec.RemindAt)
			if err != nil {
				return fmt.Errorf("reminder %d: %w", id, err)
			}
			res = append(res, domain.Reminder{
				ID:        rec.ID,
				ChatID:    rec.ChatID,
				Text:      rec.Text,
				RemindAt:  remindAt,
				CreatedAt: parseCreated(rec.CreatedAt),
			})
		}
		return nil
	})
	if err != nil {
		return nil, unavailable("fetch due", err)
	}
	return res, nil
}

// DeleteReminder removes the record and its index entry.
func (r *BoltRepo) DeleteReminder(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := r.db.Update(func(tx *bbolt.Tx) error {
		return deleteBoltReminder(tx, id)
	})
	return unavailable("delete reminder", err)
}

func deleteBoltReminder(tx *bbolt.Tx, id int64) error {
	rb := tx.Bucket(remindersBucket)
	v := rb.Get(idKey(id))
	if v == nil {
		return nil
	}
	var rec boltReminder
	if err := json.Unmarshal(v, &rec); err != nil {
		return fmt.Errorf("reminder %d: %w", id, err)
	}
	if err := tx.Bucket(dueBucket).Delete(dueKey(rec.RemindAt, id)); err != nil {
		return err
	}
	return rb.Delete(idKey(id))
}

// PurgeBefore removes reminders due at or before cutoff.
func (r *BoltRepo) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	hi := domain.FormatMinute(cutoff)
	var n int64
	err := r.db.Update(func(tx *bbolt.Tx) error {
		var ids []int64
		c := tx.Bucket(dueBucket).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			at, id, ok := splitDueKey(k)
			if !ok {
				continue
			}
			if at > hi {
				break
			}
			ids = append(ids, id)
		}
		// delete after the scan: mutating a bucket invalidates its cursors
		for _, id := range ids {
			if err := deleteBoltReminder(tx, id); err != nil {
				return err
			}
		}
		n = int64(len(ids))
		return nil
	})
	if err != nil {
		return 0, unavailable("purge", err)
	}
	return n, nil
}
